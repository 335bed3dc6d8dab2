package metrics

import (
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/therealutkarshpriyadarshi/parallel/pkg/parallel"
)

// Namespace for all metrics
const namespace = "parallel"

// Collector provides a central place for all pool metrics
type Collector struct {
	// Sync pool metrics
	SyncPoolThreads    prometheus.Gauge
	SyncJobsTotal      prometheus.Gauge
	SyncJobsInline     prometheus.Gauge
	SyncStripesClaimed prometheus.Gauge
	SyncSubmitDuration prometheus.Histogram

	// Async pool metrics
	AsyncPoolThreads   prometheus.Gauge
	AsyncJobsSubmitted prometheus.Gauge
	AsyncJobsCompleted prometheus.Gauge
	AsyncJobsInline    prometheus.Gauge
	AsyncQueueDepth    prometheus.Gauge
	AsyncJobDuration   prometheus.Histogram

	// System metrics
	SystemGoroutines prometheus.Gauge
	SystemMemAlloc   prometheus.Gauge

	registry *prometheus.Registry
}

// NewCollector creates a new metrics collector with its own registry.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	c := &Collector{registry: registry}

	c.SyncPoolThreads = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "pool_threads",
		Help:      "Working threads of the sync pool, including the submitter",
	})
	c.SyncJobsTotal = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "jobs_total",
		Help:      "Total jobs submitted to the sync pool",
	})
	c.SyncJobsInline = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "jobs_inline_total",
		Help:      "Sync jobs that ran entirely on the submitter",
	})
	c.SyncStripesClaimed = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "stripes_claimed_total",
		Help:      "Stripes claimed off the shared cursor",
	})
	c.SyncSubmitDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "submit_duration_seconds",
		Help:      "Wall time of sync pool submissions",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
	})

	c.AsyncPoolThreads = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "async",
		Name:      "pool_threads",
		Help:      "Background workers of the async pool",
	})
	c.AsyncJobsSubmitted = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "async",
		Name:      "jobs_submitted_total",
		Help:      "Total submissions queued on the async pool",
	})
	c.AsyncJobsCompleted = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "async",
		Name:      "jobs_completed_total",
		Help:      "Total submissions completed by async workers",
	})
	c.AsyncJobsInline = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "async",
		Name:      "jobs_inline_total",
		Help:      "Submissions that ran inline because the pool had no workers",
	})
	c.AsyncQueueDepth = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "async",
		Name:      "queue_depth",
		Help:      "Jobs waiting in the async pool's priority heap",
	})
	c.AsyncJobDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "async",
		Name:      "job_duration_seconds",
		Help:      "Submission-to-completion latency of async jobs",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
	})

	c.SystemGoroutines = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "system",
		Name:      "goroutines",
		Help:      "Number of goroutines",
	})
	c.SystemMemAlloc = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "system",
		Name:      "mem_alloc_bytes",
		Help:      "Bytes of allocated heap objects",
	})

	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler returns an HTTP handler serving the collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// UpdateSync publishes a sync pool snapshot.
func (c *Collector) UpdateSync(st parallel.SyncStats) {
	c.SyncPoolThreads.Set(float64(st.NumThread))
	c.SyncJobsTotal.Set(float64(st.Jobs))
	c.SyncJobsInline.Set(float64(st.InlineJobs))
	c.SyncStripesClaimed.Set(float64(st.StripesClaimed))
}

// UpdateAsync publishes an async pool snapshot.
func (c *Collector) UpdateAsync(st parallel.AsyncStats) {
	c.AsyncPoolThreads.Set(float64(st.NumThread))
	c.AsyncJobsSubmitted.Set(float64(st.Submitted))
	c.AsyncJobsCompleted.Set(float64(st.Completed))
	c.AsyncJobsInline.Set(float64(st.InlineRuns))
	c.AsyncQueueDepth.Set(float64(st.QueueDepth))
}

// UpdateSystem refreshes the runtime gauges.
func (c *Collector) UpdateSystem() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	c.SystemGoroutines.Set(float64(runtime.NumGoroutine()))
	c.SystemMemAlloc.Set(float64(ms.Alloc))
}

// Serve starts an HTTP server exposing /metrics on addr. It returns the
// server so the caller can shut it down.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go srv.ListenAndServe()
	return srv
}
