package parallel

import (
	"sync"
	"sync/atomic"
	"testing"
)

// sumJob accumulates the sum of every integer in its slices.
type sumJob struct {
	SyncJob
	total atomic.Int64
	calls atomic.Int64
}

func (j *sumJob) Call(tid, start, end int) {
	sum := int64(0)
	for i := start; i < end; i++ {
		sum += int64(i)
	}
	j.total.Add(sum)
	j.calls.Add(1)
}

func TestSubmitSum(t *testing.T) {
	const want = 999 * 1000 / 2

	for _, threads := range []int{1, 2, 4, 8} {
		pool := NewSyncPool()
		pool.SetNumThread(threads)

		job := &sumJob{}
		job.Start = 0
		job.End = 1000
		pool.Submit(job)

		if got := job.total.Load(); got != want {
			t.Errorf("threads=%d: sum = %d, want %d", threads, got, want)
		}
		pool.Close()
	}
}

func TestSubmitEmptyRange(t *testing.T) {
	pool := NewSyncPool()
	pool.SetNumThread(4)
	defer pool.Close()

	job := &sumJob{}
	job.Start = 10
	job.End = 10
	pool.Submit(job)

	if got := job.calls.Load(); got != 0 {
		t.Errorf("calls = %d for empty range, want 0", got)
	}
}

// tidJob records which tid received which slice.
type tidJob struct {
	SyncJob

	mu     sync.Mutex
	slices map[int][][2]int
}

func (j *tidJob) Call(tid, start, end int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.slices == nil {
		j.slices = make(map[int][][2]int)
	}
	j.slices[tid] = append(j.slices[tid], [2]int{start, end})
}

func TestSubmitSingleElementRunsInline(t *testing.T) {
	pool := NewSyncPool()
	pool.SetNumThread(8)
	defer pool.Close()

	job := &tidJob{}
	job.Start = 5
	job.End = 6
	pool.Submit(job)

	if len(job.slices) != 1 {
		t.Fatalf("got slices for %d tids, want 1", len(job.slices))
	}
	got, ok := job.slices[0]
	if !ok {
		t.Fatal("single-element range did not run as tid 0")
	}
	if len(got) != 1 || got[0] != [2]int{5, 6} {
		t.Errorf("slices for tid 0 = %v, want [[5 6]]", got)
	}
}

func TestStripeCoverageWithMaxCall(t *testing.T) {
	const (
		rangeLen = 10000
		maxCall  = 7
	)

	pool := NewSyncPool()
	pool.SetNumThread(16)
	defer pool.Close()

	job := &tidJob{}
	job.MaxCall = maxCall
	job.Start = 0
	job.End = rangeLen
	pool.Submit(job)

	seen := make([]int, rangeLen)
	for tid, slices := range job.slices {
		if tid < 0 || tid >= maxCall {
			t.Errorf("tid %d out of range [0, %d)", tid, maxCall)
		}
		if len(slices) > 1 {
			t.Errorf("tid %d received %d slices, want at most 1", tid, len(slices))
		}
		for _, s := range slices {
			for i := s[0]; i < s[1]; i++ {
				seen[i]++
			}
		}
	}
	for i, n := range seen {
		if n != 1 {
			t.Fatalf("index %d covered %d times, want exactly 1", i, n)
		}
	}
}

func TestDynamicStripeCoverage(t *testing.T) {
	const rangeLen = 4096

	pool := NewSyncPool()
	pool.SetNumThread(8)
	defer pool.Close()

	var seen [rangeLen]atomic.Int32
	job := &funcJob{fn: func(tid, start, end int) {
		for i := start; i < end; i++ {
			seen[i].Add(1)
		}
	}}
	job.Start = 0
	job.End = rangeLen
	pool.Submit(job)

	for i := range seen {
		if n := seen[i].Load(); n != 1 {
			t.Fatalf("index %d covered %d times, want exactly 1", i, n)
		}
	}
}

// funcJob adapts a plain function to SyncRunner.
type funcJob struct {
	SyncJob
	fn func(tid, start, end int)
}

func (j *funcJob) Call(tid, start, end int) { j.fn(tid, start, end) }

func TestMaxCallOneRunsSerial(t *testing.T) {
	pool := NewSyncPool()
	pool.SetNumThread(8)
	defer pool.Close()

	job := &tidJob{}
	job.MaxCall = 1
	job.Start = 0
	job.End = 100
	pool.Submit(job)

	if len(job.slices) != 1 || len(job.slices[0]) != 1 {
		t.Fatalf("slices = %v, want a single call on tid 0", job.slices)
	}
	if got := job.slices[0][0]; got != [2]int{0, 100} {
		t.Errorf("slice = %v, want [0 100]", got)
	}
}

func TestSetNumThreadClamp(t *testing.T) {
	pool := NewSyncPool()
	defer pool.Close()

	tests := []struct {
		set  int
		want int
	}{
		{set: 0, want: 1},
		{set: 1, want: 1},
		{set: 4, want: 4},
		{set: 100, want: MaxThread},
	}
	for _, tt := range tests {
		pool.SetNumThread(tt.set)
		if got := pool.NumThread(); got != tt.want {
			t.Errorf("SetNumThread(%d): NumThread() = %d, want %d", tt.set, got, tt.want)
		}
	}
}

func TestSetNumThreadIdempotent(t *testing.T) {
	pool := NewSyncPool()
	defer pool.Close()

	pool.SetNumThread(4)
	before := workerSeq.Load()
	pool.SetNumThread(4)
	if after := workerSeq.Load(); after != before {
		t.Errorf("repeated SetNumThread spawned %d new workers", after-before)
	}
}

func TestResubmitSameJob(t *testing.T) {
	const want = 999 * 1000 / 2

	pool := NewSyncPool()
	pool.SetNumThread(4)
	defer pool.Close()

	job := &sumJob{}
	job.Start = 0
	job.End = 1000
	pool.Submit(job)
	pool.Submit(job)

	if got := job.total.Load(); got != 2*want {
		t.Errorf("sum after two submits = %d, want %d", got, 2*want)
	}
}

func TestSubmitAfterResize(t *testing.T) {
	const want = 999 * 1000 / 2

	pool := NewSyncPool()
	defer pool.Close()

	for _, threads := range []int{1, 5, 3, 6, 2} {
		pool.SetNumThread(threads)
		job := &sumJob{}
		job.Start = 0
		job.End = 1000
		pool.Submit(job)
		if got := job.total.Load(); got != want {
			t.Fatalf("threads=%d: sum = %d, want %d", threads, got, want)
		}
	}
}
