// Command mandelbrot exercises both pools by rendering a sequence of
// Mandelbrot frames: one overview plus progressively deeper zooms.
//
// In sync mode every frame is a range-partitioned job over image rows. In
// async mode each frame is one fire-and-forget job and the frames render
// concurrently.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/therealutkarshpriyadarshi/parallel/internal/config"
	"github.com/therealutkarshpriyadarshi/parallel/internal/logging"
	"github.com/therealutkarshpriyadarshi/parallel/internal/metrics"
	"github.com/therealutkarshpriyadarshi/parallel/internal/profiling"
	"github.com/therealutkarshpriyadarshi/parallel/internal/render"
	"github.com/therealutkarshpriyadarshi/parallel/internal/tracing"
	"github.com/therealutkarshpriyadarshi/parallel/pkg/parallel"
)

var (
	configPath = flag.String("config", "", "Path to YAML config file")
	mode       = flag.String("mode", "sync", "Pool flavor to exercise (sync or async)")
	size       = flag.Int("size", 0, "Frame size in pixels (overrides config)")
	threads    = flag.Int("threads", 0, "Pool size (overrides config)")
	save       = flag.Bool("save", false, "Write frames as PGM files")
	outDir     = flag.String("out", "", "Output directory for PGM files")
)

// Zoom target from the original demo: a seahorse-valley neighborhood.
const (
	zoomX = 0.27322626
	zoomY = 0.595153338
)

// rowJob renders rows [start, end) of one frame.
type rowJob struct {
	parallel.SyncJob
	frame *render.Frame
	view  render.View
}

func (j *rowJob) Call(tid, start, end int) {
	render.DrawRows(j.frame, j.view, start, end)
}

// frameJob renders and optionally saves a whole frame.
type frameJob struct {
	parallel.AsyncJob
	size int
	view render.View
	path string
	log  *logging.Logger
}

func (j *frameJob) Call() {
	f := render.NewFrame(j.size, j.size)
	render.Draw(f, j.view)
	if j.path != "" {
		if err := render.WritePGM(f, j.path); err != nil {
			j.log.Error().Err(err).Str("path", j.path).Msg("failed to save frame")
		}
	}
}

func main() {
	flag.Parse()

	cfg := config.LoadOrDefault(*configPath)
	if *size > 0 {
		cfg.Render.Size = *size
	}
	if *save {
		cfg.Render.SaveImage = true
	}
	if *outDir != "" {
		cfg.Render.OutputDir = *outDir
	}

	logger := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	logging.SetGlobal(logger)

	if err := run(cfg, logger); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *logging.Logger) error {
	ctx := context.Background()

	tracerCfg := tracing.Config{}
	if cfg.Tracing != nil {
		tracerCfg = tracing.Config{
			Enabled:    cfg.Tracing.Enabled,
			Endpoint:   cfg.Tracing.Endpoint,
			SampleRate: cfg.Tracing.SampleRate,
		}
	}
	tracer, err := tracing.NewProvider(ctx, tracerCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer tracer.Shutdown(ctx)

	if cfg.Profiling != nil {
		prof := profiling.New(profiling.Config{
			Enabled: cfg.Profiling.Enabled,
			Address: cfg.Profiling.Address,
		}, logger)
		if err := prof.Start(); err != nil {
			return err
		}
		defer prof.Stop(ctx)
	}

	collector := metrics.NewCollector()
	if cfg.Metrics != nil && cfg.Metrics.Enabled {
		srv := collector.Serve(cfg.Metrics.Address)
		defer srv.Shutdown(ctx)
		logger.Info().Str("address", cfg.Metrics.Address).Msg("metrics server started")
	}

	// Build the frame list: one overview, then five deepening zooms.
	views := []render.View{{CenterX: -0.75, CenterY: 0, Radius: 1.5}}
	for i := 2; i < 7; i++ {
		views = append(views, render.View{
			CenterX: zoomX,
			CenterY: zoomY,
			Radius:  math.Pow(0.2, float64(i-1)),
		})
	}

	logger.Info().
		Str("mode", *mode).
		Int("size", cfg.Render.Size).
		Int("frames", len(views)).
		Msg("starting render")

	start := time.Now()
	switch *mode {
	case "sync":
		err = runSync(ctx, cfg, views, tracer, collector, logger)
	case "async":
		err = runAsync(ctx, cfg, views, tracer, logger)
	default:
		return fmt.Errorf("unknown mode %q", *mode)
	}
	if err != nil {
		return err
	}

	logger.Info().Dur("took", time.Since(start)).Msg("render finished")
	return nil
}

// poolSizeWalk mirrors the original demo: resize the pool a few times
// before rendering to exercise worker creation and teardown.
var poolSizeWalk = []int{0, 4, 2, 5, 3, 6}

func runSync(ctx context.Context, cfg *config.Config, views []render.View,
	tracer *tracing.Provider, collector *metrics.Collector, logger *logging.Logger) error {

	pool := parallel.NewSyncPool()
	defer pool.Close()
	for _, n := range poolSizeWalk {
		pool.SetNumThread(n)
		time.Sleep(100 * time.Millisecond)
	}
	if cfg.SyncPool.Threads > 0 {
		pool.SetNumThread(cfg.SyncPool.Threads)
	}

	for i, view := range views {
		_, span := tracing.TraceRender(ctx, tracer.Tracer(), i, view.Radius)

		frame := render.NewFrame(cfg.Render.Size, cfg.Render.Size)
		job := &rowJob{frame: frame, view: view}
		job.Start = 0
		job.End = frame.Rows

		begin := time.Now()
		pool.Submit(job)
		collector.SyncSubmitDuration.Observe(time.Since(begin).Seconds())
		span.End()

		if cfg.Render.SaveImage {
			path := filepath.Join(cfg.Render.OutputDir, fmt.Sprintf("mandelbrot_%f.pgm", view.Radius))
			if err := render.WritePGM(frame, path); err != nil {
				return err
			}
			logger.Info().Str("path", path).Msg("frame saved")
		}
	}

	collector.UpdateSync(pool.Stats())
	collector.UpdateSystem()
	return nil
}

func runAsync(ctx context.Context, cfg *config.Config, views []render.View,
	tracer *tracing.Provider, logger *logging.Logger) error {

	pool := parallel.NewAsyncPool()
	defer pool.Close()
	for _, n := range poolSizeWalk {
		pool.SetNumThread(n)
		time.Sleep(100 * time.Millisecond)
	}
	if cfg.AsyncPool.Threads > 0 {
		pool.SetNumThread(cfg.AsyncPool.Threads)
	}

	newJob := func(view render.View) *frameJob {
		j := &frameJob{size: cfg.Render.Size, view: view, log: logger}
		if cfg.Render.SaveImage {
			j.path = filepath.Join(cfg.Render.OutputDir, fmt.Sprintf("mandelbrot_%f.pgm", view.Radius))
		}
		return j
	}

	_, span := tracing.TraceSubmit(ctx, tracer.Tracer(), "async")

	// The overview goes in alone; the zooms are batched.
	first := newJob(views[0])
	pool.Submit(first)

	rest := make([]parallel.AsyncRunner, 0, len(views)-1)
	for _, view := range views[1:] {
		rest = append(rest, newJob(view))
	}
	pool.SubmitAll(rest)
	span.End()

	first.Wait()
	logger.Info().Msg("overview frame done")
	pool.Wait()
	return nil
}
