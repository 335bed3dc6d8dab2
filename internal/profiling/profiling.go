package profiling

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"runtime"
	runtimepprof "runtime/pprof"
	"time"

	"github.com/therealutkarshpriyadarshi/parallel/internal/logging"
)

// Config holds profiling configuration
type Config struct {
	Enabled        bool   `yaml:"enabled"`
	Address        string `yaml:"address"`     // HTTP server address for pprof
	CPUProfilePath string `yaml:"cpu_profile"` // Path for CPU profile output
	MemProfilePath string `yaml:"mem_profile"` // Path for heap profile output
}

// Profiler serves pprof endpoints and optionally writes profile files.
type Profiler struct {
	config  Config
	logger  *logging.Logger
	server  *http.Server
	cpuFile *os.File
}

// New creates a new profiler
func New(config Config, logger *logging.Logger) *Profiler {
	if logger == nil {
		logger = logging.Global()
	}
	if config.Address == "" {
		config.Address = "localhost:6060"
	}
	return &Profiler{config: config, logger: logger}
}

// Start begins profiling. A no-op when disabled.
func (p *Profiler) Start() error {
	if !p.config.Enabled {
		return nil
	}

	if p.config.CPUProfilePath != "" {
		f, err := os.Create(p.config.CPUProfilePath)
		if err != nil {
			return fmt.Errorf("failed to create CPU profile: %w", err)
		}
		if err := runtimepprof.StartCPUProfile(f); err != nil {
			f.Close()
			return fmt.Errorf("failed to start CPU profile: %w", err)
		}
		p.cpuFile = f
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	p.server = &http.Server{
		Addr:        p.config.Address,
		Handler:     mux,
		ReadTimeout: 5 * time.Second,
	}
	go func() {
		if err := p.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			p.logger.Error().Err(err).Msg("pprof server failed")
		}
	}()

	p.logger.Info().Str("address", p.config.Address).Msg("profiling started")
	return nil
}

// Stop finishes profiles and shuts the server down.
func (p *Profiler) Stop(ctx context.Context) error {
	if !p.config.Enabled {
		return nil
	}

	if p.cpuFile != nil {
		runtimepprof.StopCPUProfile()
		p.cpuFile.Close()
		p.cpuFile = nil
	}

	if p.config.MemProfilePath != "" {
		f, err := os.Create(p.config.MemProfilePath)
		if err != nil {
			return fmt.Errorf("failed to create heap profile: %w", err)
		}
		defer f.Close()
		runtime.GC()
		if err := runtimepprof.WriteHeapProfile(f); err != nil {
			return fmt.Errorf("failed to write heap profile: %w", err)
		}
	}

	if p.server != nil {
		return p.server.Shutdown(ctx)
	}
	return nil
}
