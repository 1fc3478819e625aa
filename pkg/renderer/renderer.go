// Package renderer runs graph renders with caching.
//
// The CLI and the HTTP server both go through a [Runner]: it normalizes the
// requested layout and format, looks the artifact up in the cache, and on a
// miss renders it through an [adapter.Adapter] and stores the result.
package renderer

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/grapher/pkg/adapter"
	"github.com/matzehuels/grapher/pkg/cache"
	"github.com/matzehuels/grapher/pkg/engine"
	"github.com/matzehuels/grapher/pkg/errors"
	"github.com/matzehuels/grapher/pkg/observability"
	"github.com/matzehuels/grapher/pkg/workflow"
)

const keyTypeArtifact = "artifact"

// Request describes one render.
type Request struct {
	// Source is the DOT description.
	Source []byte
	// Layout and Format are parsed case-insensitively; empty means default.
	Layout string
	Format string
	// Refresh skips the cache lookup. The fresh result is still stored.
	Refresh bool
}

// Result is a finished render.
type Result struct {
	ID       string
	Data     []byte
	Layout   engine.Layout
	Format   engine.Format
	CacheHit bool
	Duration time.Duration
}

// ContentType returns the MIME type of the result data.
func (r *Result) ContentType() string {
	return engine.ContentType(r.Format)
}

// Runner renders requests through an engine with caching.
//
// The Runner holds no per-render state; multiple goroutines can share one.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Engine engine.Engine
	Logger *log.Logger
	// TTL is how long artifacts stay cached. Zero means [cache.TTLArtifact].
	TTL time.Duration
}

// NewRunner creates a runner for e.
// If c is nil, a NullCache is used (caching disabled).
// If keyer is nil, a DefaultKeyer is used.
func NewRunner(e engine.Engine, c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if c == nil {
		c = cache.NewNullCache()
	}
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Engine: e,
		Logger: logger,
	}
}

// Render produces the artifact for req.
//
// An empty source is not an error: the result has no data and neither the
// cache nor the engine is touched.
func (r *Runner) Render(ctx context.Context, req Request) (*Result, error) {
	layout, err := engine.ParseLayout(req.Layout)
	if err != nil {
		return nil, err
	}
	format, err := engine.ParseFormat(req.Format)
	if err != nil {
		return nil, err
	}

	result := &Result{
		ID:     uuid.NewString(),
		Layout: layout,
		Format: format,
	}
	if len(req.Source) == 0 {
		return result, nil
	}

	start := time.Now()
	key := r.Keyer.ArtifactKey(cache.Hash(req.Source), cache.ArtifactKeyOpts{
		Layout: string(layout),
		Format: string(format),
	})

	if !req.Refresh {
		if data, ok := r.lookup(ctx, key); ok {
			result.Data = data
			result.CacheHit = true
			result.Duration = time.Since(start)
			r.Logger.Debug("cache hit", "id", result.ID, "layout", layout, "format", format)
			return result, nil
		}
	}

	a, err := adapter.New(r.Engine, adapter.WithLayout(layout), adapter.WithFormat(format))
	if err != nil {
		return nil, err
	}

	hooks := observability.Render()
	hooks.OnRenderStart(ctx, string(layout), string(format), len(req.Source))
	data, err := a.Render(ctx, req.Source)
	result.Duration = time.Since(start)
	hooks.OnRenderComplete(ctx, string(layout), string(format), len(data), result.Duration, err)
	if err != nil {
		r.Logger.Debug("render failed", "id", result.ID, "err", err)
		return nil, err
	}
	result.Data = data

	r.store(ctx, key, data)
	r.Logger.Info("rendered graph",
		"id", result.ID,
		"layout", layout,
		"format", format,
		"bytes", len(data),
		"duration", result.Duration.Round(time.Millisecond))
	return result, nil
}

// RenderWorkflow converts req.Source from a workflow DAG file to DOT and
// renders it.
func (r *Runner) RenderWorkflow(ctx context.Context, req Request) (*Result, error) {
	dot, err := WorkflowDOT(req.Source)
	if err != nil {
		return nil, err
	}
	req.Source = dot
	return r.Render(ctx, req)
}

// WorkflowDOT parses a workflow DAG file and returns its DOT description.
// An empty file yields an empty description.
func WorkflowDOT(src []byte) ([]byte, error) {
	if len(src) == 0 {
		return nil, nil
	}
	d, err := workflow.ParseBytes(src)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeParse, err, "parse workflow")
	}
	return []byte(d.DOT()), nil
}

func (r *Runner) lookup(ctx context.Context, key string) ([]byte, bool) {
	data, hit, err := r.Cache.Get(ctx, key)
	if err != nil {
		r.Logger.Warn("cache read failed", "err", err)
		return nil, false
	}
	if !hit {
		observability.Cache().OnCacheMiss(ctx, keyTypeArtifact)
		return nil, false
	}
	observability.Cache().OnCacheHit(ctx, keyTypeArtifact)
	return data, true
}

func (r *Runner) store(ctx context.Context, key string, data []byte) {
	ttl := r.TTL
	if ttl == 0 {
		ttl = cache.TTLArtifact
	}
	if err := r.Cache.Set(ctx, key, data, ttl); err != nil {
		r.Logger.Warn("cache write failed", "err", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, keyTypeArtifact, len(data))
}
