package metrics

import (
	"testing"

	"github.com/therealutkarshpriyadarshi/parallel/pkg/parallel"
)

func TestCollectorUpdate(t *testing.T) {
	c := NewCollector()

	c.UpdateSync(parallel.SyncStats{
		NumThread:      4,
		Jobs:           10,
		InlineJobs:     2,
		StripesClaimed: 57,
	})
	c.UpdateAsync(parallel.AsyncStats{
		NumThread: 8,
		Submitted: 100,
		Completed: 90,
	})
	c.UpdateSystem()

	snap, err := Snapshot(c.Registry())
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}

	want := map[string]float64{
		"parallel_sync_pool_threads":          4,
		"parallel_sync_jobs_total":            10,
		"parallel_sync_jobs_inline_total":     2,
		"parallel_sync_stripes_claimed_total": 57,
		"parallel_async_pool_threads":         8,
		"parallel_async_jobs_submitted_total": 100,
		"parallel_async_jobs_completed_total": 90,
	}
	for name, v := range want {
		if got, ok := snap[name]; !ok {
			t.Errorf("metric %s missing from snapshot", name)
		} else if got != v {
			t.Errorf("metric %s = %v, want %v", name, got, v)
		}
	}

	if snap["parallel_system_goroutines"] <= 0 {
		t.Error("system goroutine gauge not populated")
	}
}

func TestSnapshotHistogram(t *testing.T) {
	c := NewCollector()
	c.AsyncJobDuration.Observe(0.5)
	c.AsyncJobDuration.Observe(1.5)

	snap, err := Snapshot(c.Registry())
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}

	if got := snap["parallel_async_job_duration_seconds_count"]; got != 2 {
		t.Errorf("histogram count = %v, want 2", got)
	}
	if got := snap["parallel_async_job_duration_seconds_sum"]; got != 2 {
		t.Errorf("histogram sum = %v, want 2", got)
	}
}
