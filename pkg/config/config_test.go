package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matzehuels/grapher/pkg/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() error: %v", err)
	}
	if cfg.Render.Layout != "dot" || cfg.Render.Format != "svg" {
		t.Errorf("render defaults = %+v", cfg.Render)
	}
	if cfg.Cache.Backend != BackendFile {
		t.Errorf("Cache.Backend = %q, want %q", cfg.Cache.Backend, BackendFile)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("Server.Addr = %q", cfg.Server.Addr)
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Render.Layout != "dot" {
		t.Errorf("Layout = %q, want defaults", cfg.Render.Layout)
	}
}

func TestLoadEmptyPath(t *testing.T) {
	if _, err := Load(""); err != nil {
		t.Fatalf("Load(\"\") error: %v", err)
	}
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
[render]
layout = "neato"
format = "png"

[cache]
backend = "redis"
redis_addr = "localhost:6379"
ttl = "90m"
prefix = "team-a"

[server]
max_body_bytes = 2048
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Render.Layout != "neato" || cfg.Render.Format != "png" {
		t.Errorf("Render = %+v", cfg.Render)
	}
	if cfg.Cache.TTL.Duration != 90*time.Minute {
		t.Errorf("TTL = %v, want 90m", cfg.Cache.TTL)
	}
	if cfg.Cache.Prefix != "team-a" {
		t.Errorf("Prefix = %q", cfg.Cache.Prefix)
	}
	if cfg.Server.MaxBodyBytes != 2048 {
		t.Errorf("MaxBodyBytes = %d", cfg.Server.MaxBodyBytes)
	}
	// Unset keys keep their defaults.
	if cfg.Server.Addr != ":8080" {
		t.Errorf("Addr = %q, want default", cfg.Server.Addr)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"syntax", "[render\n"},
		{"unknown key", "[render]\ncolour = \"red\"\n"},
		{"bad layout", "[render]\nlayout = \"spiral\"\n"},
		{"bad format", "[render]\nformat = \"gif\"\n"},
		{"bad backend", "[cache]\nbackend = \"memcached\"\n"},
		{"redis without addr", "[cache]\nbackend = \"redis\"\n"},
		{"mongo without uri", "[cache]\nbackend = \"mongo\"\n"},
		{"bad ttl", "[cache]\nttl = \"soon\"\n"},
		{"negative ttl", "[cache]\nttl = \"-1h\"\n"},
		{"zero body limit", "[server]\nmax_body_bytes = 0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if !errors.Is(err, errors.ErrCodeInvalidConfig) {
				t.Errorf("Load() error = %v, want INVALID_CONFIG", err)
			}
		})
	}
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	path, err := DefaultPath()
	if err != nil {
		t.Fatalf("DefaultPath() error: %v", err)
	}
	if want := filepath.Join("/tmp/xdg", "grapher", "config.toml"); path != want {
		t.Errorf("DefaultPath() = %q, want %q", path, want)
	}
}

func TestDefaultCacheDir(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/tmp/cache")
	dir, err := DefaultCacheDir()
	if err != nil {
		t.Fatalf("DefaultCacheDir() error: %v", err)
	}
	if want := filepath.Join("/tmp/cache", "grapher"); dir != want {
		t.Errorf("DefaultCacheDir() = %q, want %q", dir, want)
	}
}
