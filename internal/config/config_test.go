package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/therealutkarshpriyadarshi/parallel/internal/logging"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Logging.Level != DefaultLogLevel {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, DefaultLogLevel)
	}
	if cfg.Logging.Format != DefaultLogFormat {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, DefaultLogFormat)
	}
	if cfg.Render.Size != DefaultRenderSize {
		t.Errorf("Render.Size = %d, want %d", cfg.Render.Size, DefaultRenderSize)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}

func TestLoad(t *testing.T) {
	content := `
logging:
  level: debug
  format: console
sync_pool:
  threads: 8
async_pool:
  threads: 4
metrics:
  enabled: true
render:
  size: 512
  center_x: -0.75
  save_image: true
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.SyncPool.Threads != 8 {
		t.Errorf("SyncPool.Threads = %d, want 8", cfg.SyncPool.Threads)
	}
	if cfg.AsyncPool.Threads != 4 {
		t.Errorf("AsyncPool.Threads = %d, want 4", cfg.AsyncPool.Threads)
	}
	if cfg.Metrics == nil || !cfg.Metrics.Enabled {
		t.Error("Metrics not enabled")
	}
	if cfg.Metrics.Address != DefaultMetricsAddr {
		t.Errorf("Metrics.Address = %q, want default %q", cfg.Metrics.Address, DefaultMetricsAddr)
	}
	if cfg.Render.Size != 512 {
		t.Errorf("Render.Size = %d, want 512", cfg.Render.Size)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load() of a missing file did not error")
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{
			name:   "bad log level",
			mutate: func(c *Config) { c.Logging.Level = "verbose" },
		},
		{
			name:   "bad log format",
			mutate: func(c *Config) { c.Logging.Format = "xml" },
		},
		{
			name:   "sync threads out of range",
			mutate: func(c *Config) { c.SyncPool.Threads = 1000 },
		},
		{
			name:   "negative async threads",
			mutate: func(c *Config) { c.AsyncPool.Threads = -1 },
		},
		{
			name:   "tracing without endpoint",
			mutate: func(c *Config) { c.Tracing = &TracingConfig{Enabled: true} },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("sync_pool:\n  threads: 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan *Config, 1)
	logger := logging.New(logging.Config{Level: "error"})
	err := Watch(ctx, path, logger, func(cfg *Config) {
		select {
		case changed <- cfg:
		default:
		}
	})
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	if err := os.WriteFile(path, []byte("sync_pool:\n  threads: 6\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-changed:
		if cfg.SyncPool.Threads != 6 {
			t.Errorf("reloaded SyncPool.Threads = %d, want 6", cfg.SyncPool.Threads)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not report the change")
	}
}
