package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/therealutkarshpriyadarshi/parallel/pkg/parallel"
)

// Defaults for unspecified fields.
const (
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "json"
	DefaultRenderSize  = 2000
	DefaultMetricsAddr = "localhost:9090"
	DefaultPprofAddr   = "localhost:6060"
)

// Config is the configuration shared by the demo binaries.
type Config struct {
	Logging   LoggingConfig    `yaml:"logging"`
	SyncPool  PoolConfig       `yaml:"sync_pool"`
	AsyncPool PoolConfig       `yaml:"async_pool"`
	Metrics   *MetricsConfig   `yaml:"metrics,omitempty"`
	Tracing   *TracingConfig   `yaml:"tracing,omitempty"`
	Profiling *ProfilingConfig `yaml:"profiling,omitempty"`
	Render    RenderConfig     `yaml:"render"`
}

// LoggingConfig defines logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// PoolConfig sizes one worker pool.
type PoolConfig struct {
	Threads int `yaml:"threads"`
}

// MetricsConfig configures the prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// TracingConfig configures the OTLP trace exporter.
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Endpoint   string  `yaml:"endpoint"`
	SampleRate float64 `yaml:"sample_rate"`
}

// ProfilingConfig configures the pprof endpoint.
type ProfilingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// RenderConfig holds the demo renderer parameters.
type RenderConfig struct {
	Size      int     `yaml:"size"`
	CenterX   float64 `yaml:"center_x"`
	CenterY   float64 `yaml:"center_y"`
	OutputDir string  `yaml:"output_dir"`
	SaveImage bool    `yaml:"save_image"`
}

// Load reads, defaults, and validates a YAML config file. Environment
// variables in the file are expanded first.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(expandedData, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// LoadOrDefault loads path when it is set and loads cleanly, and falls back
// to the defaults otherwise (including a missing or invalid file).
func LoadOrDefault(path string) *Config {
	if path != "" {
		if cfg, err := Load(path); err == nil {
			return cfg
		}
	}
	return DefaultConfig()
}

// applyDefaults sets default values for unspecified configuration
func (c *Config) applyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
	if c.Render.Size == 0 {
		c.Render.Size = DefaultRenderSize
	}
	if c.Render.OutputDir == "" {
		c.Render.OutputDir = "."
	}
	if c.Metrics != nil && c.Metrics.Address == "" {
		c.Metrics.Address = DefaultMetricsAddr
	}
	if c.Profiling != nil && c.Profiling.Address == "" {
		c.Profiling.Address = DefaultPprofAddr
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true, "warn": true, "error": true, "fatal": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"json": true, "console": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	if c.SyncPool.Threads < 0 || c.SyncPool.Threads > parallel.MaxThread {
		return fmt.Errorf("sync_pool.threads %d out of range [0, %d]", c.SyncPool.Threads, parallel.MaxThread)
	}
	if c.AsyncPool.Threads < 0 || c.AsyncPool.Threads > parallel.MaxThread {
		return fmt.Errorf("async_pool.threads %d out of range [0, %d]", c.AsyncPool.Threads, parallel.MaxThread)
	}

	if c.Render.Size < 0 {
		return fmt.Errorf("render.size must not be negative, got %d", c.Render.Size)
	}

	if c.Tracing != nil && c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return fmt.Errorf("tracing enabled without an endpoint")
	}

	return nil
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}
