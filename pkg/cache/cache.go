// Package cache stores rendered artifacts keyed by a hash of their inputs.
//
// # Backends
//
//   - [NullCache]: stores nothing (caching disabled)
//   - [FileCache]: one JSON file per entry, for CLI use
//   - [RedisCache]: shared cache for multi-instance servers
//   - [MongoCache]: persistent artifact store with TTL expiry
//
// # Keys
//
// Keys are produced by a [Keyer]. The default keyer hashes the graph
// description together with the layout and format, so the same input
// rendered differently never collides. [NewScopedKeyer] adds a namespace
// prefix for deployments that share one backend.
package cache

import (
	"context"
	"time"
)

// TTLArtifact is how long rendered artifacts are kept by default.
const TTLArtifact = 7 * 24 * time.Hour

// Cache is a byte-oriented key/value store with expiry.
type Cache interface {
	// Get returns the value for key. A miss is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// ArtifactKeyOpts are the render settings that distinguish artifacts of the
// same source.
type ArtifactKeyOpts struct {
	Layout string `json:"layout"`
	Format string `json:"format"`
}

// Keyer builds cache keys.
type Keyer interface {
	// ArtifactKey returns the key for the artifact rendered from the source
	// with the given content hash.
	ArtifactKey(sourceHash string, opts ArtifactKeyOpts) string
}

// DefaultKeyer builds unscoped keys.
type DefaultKeyer struct{}

// NewDefaultKeyer returns a [DefaultKeyer].
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// ArtifactKey implements [Keyer].
func (DefaultKeyer) ArtifactKey(sourceHash string, opts ArtifactKeyOpts) string {
	return hashKey("artifact", sourceHash, opts)
}
