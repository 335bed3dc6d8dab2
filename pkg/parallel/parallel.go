// Package parallel provides two flavors of worker pool for compute-bound
// work.
//
// SyncPool is a parallel-for: Submit hands one range-partitioned job to the
// workers plus the calling goroutine and returns when the whole range has
// been processed. Load is balanced dynamically by racing all participants
// on an atomic stripe cursor.
//
// AsyncPool is a fire-and-forget queue: jobs are enqueued into a priority
// heap and picked up by background workers. The same job may be submitted
// several times so that several workers run its Call concurrently; waiters
// can block per job or pool-wide.
//
// Both pools share the reference-counting protocol from pkg/refcount and
// the counting events from internal/event.
package parallel

import (
	"runtime"
	"sync/atomic"
)

// MaxThread is the largest number of threads either pool will manage,
// including the submitting goroutine for SyncPool.
const MaxThread = 32

// activeWait bounds the busy-wait phase before a participant parks.
// Bridges the dispatch latency of short jobs without pinning cores on
// long ones.
const activeWait = 10240

// Process-wide sequences for debug ids. Correctness never depends on the
// concrete values; they only show up in log fields.
var (
	jobSeq    atomic.Uint32
	workerSeq atomic.Uint32
)

// spinUntil busy-waits up to activeWait scheduler yields for ready to
// return true. It is not a suspension point in the condvar sense; callers
// fall through to a blocking wait when it gives up.
func spinUntil(ready func() bool) bool {
	for i := 0; i < activeWait; i++ {
		if ready() {
			return true
		}
		runtime.Gosched()
	}
	return ready()
}

func minInt(a, b int) int {
	if b < a {
		return b
	}
	return a
}
