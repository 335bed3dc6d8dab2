// Command loadtest drives an AsyncPool at a target submission rate and
// reports throughput and completion latency.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"golang.org/x/time/rate"

	"github.com/therealutkarshpriyadarshi/parallel/internal/buffer"
	"github.com/therealutkarshpriyadarshi/parallel/internal/config"
	"github.com/therealutkarshpriyadarshi/parallel/internal/logging"
	"github.com/therealutkarshpriyadarshi/parallel/internal/metrics"
	"github.com/therealutkarshpriyadarshi/parallel/internal/shutdown"
	"github.com/therealutkarshpriyadarshi/parallel/pkg/parallel"
)

var (
	configPath     = flag.String("config", "", "Path to YAML config file (watched for pool resizes)")
	targetRate     = flag.Int("rate", 10000, "Target submissions per second")
	duration       = flag.Int("duration", 30, "Test duration in seconds")
	workers        = flag.Int("workers", 8, "Async pool workers")
	workSpin       = flag.Int("spin", 2000, "Iterations of busy work per job")
	urgentEvery    = flag.Int("urgent", 100, "Submit a priority job every N submissions (0 disables)")
	ringSize       = flag.Int("ring", 65536, "Latency sample ring capacity")
	reportInterval = flag.Int("interval", 5, "Report interval in seconds")
)

// workJob burns a bounded amount of CPU and records its queue-to-done
// latency.
type workJob struct {
	parallel.AsyncJob
	spin      int
	submitted time.Time
	ring      *buffer.SampleRing
	collector *metrics.Collector
}

func (j *workJob) Call() {
	acc := 0.0
	for i := 0; i < j.spin; i++ {
		acc += float64(i%7) * 0.5
	}
	_ = acc
	took := time.Since(j.submitted)
	j.ring.Add(took)
	j.collector.AsyncJobDuration.Observe(took.Seconds())
}

func main() {
	flag.Parse()

	cfg := config.LoadOrDefault(*configPath)
	logger := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: "console",
	})
	logging.SetGlobal(logger)

	if err := run(cfg, logger); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *logging.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := parallel.NewAsyncPool()
	if cfg.AsyncPool.Threads > 0 {
		pool.SetNumThread(cfg.AsyncPool.Threads)
	} else {
		pool.SetNumThread(*workers)
	}

	collector := metrics.NewCollector()
	var metricsAddr string
	if cfg.Metrics != nil && cfg.Metrics.Enabled {
		metricsAddr = cfg.Metrics.Address
		srv := collector.Serve(metricsAddr)
		defer srv.Shutdown(context.Background())
	}

	mgr := shutdown.New(shutdown.Config{Timeout: 10 * time.Second, Logger: logger})
	mgr.RegisterFunc("asyncpool", func(context.Context) error {
		pool.Wait()
		pool.Close()
		return nil
	})
	go mgr.WaitForSignal()

	// Live-resize the pool when the config file changes.
	if *configPath != "" {
		err := config.Watch(ctx, *configPath, logger, func(next *config.Config) {
			pool.SetNumThread(next.AsyncPool.Threads)
		})
		if err != nil {
			logger.Warn().Err(err).Msg("config watch unavailable")
		}
	}

	ring := buffer.NewSampleRing(*ringSize)
	limiter := rate.NewLimiter(rate.Limit(*targetRate), *targetRate/10+1)

	logger.Info().
		Int("rate", *targetRate).
		Int("duration_s", *duration).
		Int("workers", pool.NumThread()).
		Str("metrics", metricsAddr).
		Msg("starting load test")

	reporter := time.NewTicker(time.Duration(*reportInterval) * time.Second)
	defer reporter.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-reporter.C:
				report(pool, ring, collector, logger)
			}
		}
	}()

	deadline := time.After(time.Duration(*duration) * time.Second)
	submitted := 0

loop:
	for {
		select {
		case <-deadline:
			break loop
		case <-mgr.ShutdownChannel():
			break loop
		default:
		}
		if err := limiter.Wait(ctx); err != nil {
			break
		}
		job := &workJob{
			spin:      *workSpin,
			submitted: time.Now(),
			ring:      ring,
			collector: collector,
		}
		if *urgentEvery > 0 && submitted%*urgentEvery == 0 {
			job.Priority = uint32(rand.Intn(64) + 1)
		}
		pool.Submit(job)
		submitted++
	}

	logger.Info().Int("submitted", submitted).Msg("draining")
	pool.Wait()
	cancel()

	report(pool, ring, collector, logger)
	finalReport(collector, logger)

	mgr.Shutdown()
	return nil
}

func report(pool *parallel.AsyncPool, ring *buffer.SampleRing, collector *metrics.Collector, logger *logging.Logger) {
	st := pool.Stats()
	collector.UpdateAsync(st)
	collector.UpdateSystem()

	ev := logger.Info().
		Uint64("submitted", st.Submitted).
		Uint64("completed", st.Completed).
		Int("queue", st.QueueDepth).
		Int("workers", st.NumThread)
	if ps := ring.Percentiles(50, 95, 99); ps != nil {
		ev = ev.Dur("p50", ps[0]).Dur("p95", ps[1]).Dur("p99", ps[2])
	}
	ev.Msg("progress")
}

func finalReport(collector *metrics.Collector, logger *logging.Logger) {
	snap, err := metrics.Snapshot(collector.Registry())
	if err != nil {
		logger.Error().Err(err).Msg("failed to snapshot metrics")
		return
	}

	fmt.Printf("\n=== Load Test Results ===\n")
	fmt.Printf("Submitted:  %.0f\n", snap["parallel_async_jobs_submitted_total"])
	fmt.Printf("Completed:  %.0f\n", snap["parallel_async_jobs_completed_total"])
	count := snap["parallel_async_job_duration_seconds_count"]
	if count > 0 {
		fmt.Printf("Mean latency: %.3f ms\n",
			snap["parallel_async_job_duration_seconds_sum"]/count*1000)
	}
	fmt.Printf("=========================\n")
}
