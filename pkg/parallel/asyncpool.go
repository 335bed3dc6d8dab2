package parallel

import (
	"container/heap"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/therealutkarshpriyadarshi/parallel/internal/event"
	"github.com/therealutkarshpriyadarshi/parallel/internal/logging"
	"github.com/therealutkarshpriyadarshi/parallel/pkg/refcount"
)

// AsyncJob is the shared state of a fire-and-forget job. Embed it and
// implement Call to build a submittable job.
//
// Until it completes, a job may be submitted multiple times (the per-job
// limit is event.MaxSubmit outstanding submissions) so that several workers
// run Call simultaneously; partitioning the work between those runs is up
// to the implementation. Once completed the job may be reused.
type AsyncJob struct {
	refcount.Object

	// Priority asks to bypass queued work by a bounded number of
	// positions. Zero keeps submission order.
	Priority uint32

	event event.Event
	id    atomic.Uint32
}

func (j *AsyncJob) asyncJob() *AsyncJob { return j }

// Wait blocks until every outstanding submission of this job has completed.
// Multiple goroutines may wait on the same job.
func (j *AsyncJob) Wait() { j.event.Wait(0) }

// AsyncRunner is the job contract for AsyncPool: embed AsyncJob and define
// Call. Call runs as many times as the job was submitted.
type AsyncRunner interface {
	refcount.Referent
	Call()
	asyncJob() *AsyncJob
}

// idJob keys a queued submission by its effective id; the waitlist is a
// min-heap on that id.
type idJob struct {
	id  uint32
	job refcount.Ptr[AsyncRunner]
}

type jobHeap []idJob

func (h jobHeap) Len() int            { return len(h) }
func (h jobHeap) Less(i, j int) bool  { return h[i].id < h[j].id }
func (h jobHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *jobHeap) Push(x interface{}) { *h = append(*h, x.(idJob)) }
func (h *jobHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = idJob{}
	*h = old[:n-1]
	return it
}

type asyncWorker struct {
	index int
	seq   uint32
	stop  bool // read and written under the pool's work lock
	done  chan struct{}
}

// AsyncPool runs queued jobs on background workers.
type AsyncPool struct {
	poolMu    sync.Mutex
	numThread int
	workers   [MaxThread]*asyncWorker

	workMu    sync.Mutex
	workCond  *sync.Cond
	waitlist  jobHeap
	currentID uint32

	// Outstanding submissions pool-wide.
	event event.Event

	log *logging.Logger

	submitted atomic.Uint64
	completed atomic.Uint64
	inline    atomic.Uint64
}

// AsyncStats is a snapshot of pool activity.
type AsyncStats struct {
	NumThread  int
	Submitted  uint64
	Completed  uint64
	InlineRuns uint64
	QueueDepth int
	Pending    uint32
}

// NewAsyncPool creates a pool with no workers; size it with SetNumThread.
// With zero workers Submit runs jobs inline, which also yields complete
// stacks when debugging.
func NewAsyncPool() *AsyncPool {
	p := &AsyncPool{log: logging.Global().WithComponent("asyncpool")}
	p.workCond = sync.NewCond(&p.workMu)
	return p
}

// NumThread returns the number of background workers.
func (p *AsyncPool) NumThread() int {
	p.poolMu.Lock()
	defer p.poolMu.Unlock()
	return p.numThread
}

// SetNumThread sizes the pool to n background workers, clamped to
// [0, MaxThread]. Shrinking stops and joins the highest-index workers;
// their inflight jobs run to completion first.
func (p *AsyncPool) SetNumThread(n int) {
	if n < 0 {
		n = 0
	}
	if n > MaxThread {
		n = MaxThread
	}

	p.poolMu.Lock()
	defer p.poolMu.Unlock()
	if n == p.numThread {
		return
	}
	p.log.Info().Int("from", p.numThread).Int("to", n).Msg("resizing async pool")
	if n < p.numThread {
		p.workMu.Lock()
		for i := n; i < p.numThread; i++ {
			p.workers[i].stop = true
		}
		p.workMu.Unlock()
		p.workCond.Broadcast()
		for i := n; i < p.numThread; i++ {
			<-p.workers[i].done
			p.workers[i] = nil
		}
	}
	for i := p.numThread; i < n; i++ {
		w := &asyncWorker{
			index: i,
			seq:   workerSeq.Add(1) - 1,
			done:  make(chan struct{}),
		}
		p.workers[i] = w
		go p.run(w)
	}
	p.numThread = n
}

// Submit queues one execution of job. With zero workers the job runs
// inline on the caller and does not count toward Wait.
func (p *AsyncPool) Submit(job AsyncRunner) {
	if job == nil {
		return
	}
	p.poolMu.Lock()
	n := p.numThread
	p.poolMu.Unlock()
	if n < 1 {
		p.inline.Add(1)
		job.Call()
		return
	}

	p.event.Enter()
	j := job.asyncJob()
	j.event.Enter()
	h := refcount.New(job)

	p.workMu.Lock()
	p.push(job, h)
	p.workMu.Unlock()
	p.workCond.Signal()
	p.submitted.Add(1)
}

// SubmitAll queues one execution of every job in the slice under a single
// lock acquisition. Nil entries are skipped.
func (p *AsyncPool) SubmitAll(jobs []AsyncRunner) {
	if len(jobs) == 0 {
		return
	}
	p.poolMu.Lock()
	n := p.numThread
	p.poolMu.Unlock()
	if n < 1 {
		for _, job := range jobs {
			if job == nil {
				continue
			}
			p.inline.Add(1)
			job.Call()
		}
		return
	}

	ok := 0
	p.workMu.Lock()
	for _, job := range jobs {
		if job == nil {
			continue
		}
		ok++
		p.event.Enter()
		job.asyncJob().event.Enter()
		p.push(job, refcount.New(job))
	}
	p.workMu.Unlock()
	if ok == 1 {
		p.workCond.Signal()
	} else if ok > 1 {
		p.workCond.Broadcast()
	}
	p.submitted.Add(uint64(ok))
}

// push assigns the effective id and inserts the handle into the waitlist.
// Called with the work lock held.
func (p *AsyncPool) push(job AsyncRunner, h refcount.Ptr[AsyncRunner]) {
	j := job.asyncJob()
	if j.id.Load() == 0 {
		j.id.CompareAndSwap(0, jobSeq.Add(1))
	}
	id := p.currentID
	p.currentID++
	if j.Priority > 0 {
		// Cut in by priority, but no further than a randomized 8..15
		// positions so queued work cannot starve.
		jump := uint32(rand.Intn(8)) + 8
		cut := j.Priority
		if jump < cut {
			cut = jump
		}
		if id < cut {
			cut = id
		}
		id -= cut
	}
	heap.Push(&p.waitlist, idJob{id: id, job: h})
}

// Wait blocks until the pool-wide count of outstanding submissions drops
// to zero. Jobs submitted while waiting are not guaranteed to complete
// before Wait returns.
//
// Wait must not be called from inside a job's Call: the running submission
// is itself outstanding. To block on work spawned from within Call, wait
// on the spawned job instead (requires at least two workers).
func (p *AsyncPool) Wait() { p.event.Wait(0) }

// Close stops and joins every worker, then discards queued jobs that never
// ran, removing them from the pool's accounting. Per-job events of the
// discarded submissions are not settled: call Wait before Close when
// completion matters.
func (p *AsyncPool) Close() {
	p.SetNumThread(0)

	p.workMu.Lock()
	dropped := len(p.waitlist)
	for i := range p.waitlist {
		p.waitlist[i].job.Reset()
	}
	p.waitlist = nil
	p.workMu.Unlock()

	for i := 0; i < dropped; i++ {
		if p.event.Leave() == 1 {
			p.event.Wake()
		}
	}
	if dropped > 0 {
		p.log.Warn().Int("jobs", dropped).Msg("discarded queued jobs on close")
	}
}

func (p *AsyncPool) run(w *asyncWorker) {
	defer close(w.done)
	p.log.Debug().Int("worker", w.index).Uint32("seq", w.seq).Msg("async worker started")
	for {
		var h refcount.Ptr[AsyncRunner]
		p.workMu.Lock()
		for !w.stop && len(p.waitlist) == 0 {
			p.workCond.Wait()
		}
		if !w.stop {
			it := heap.Pop(&p.waitlist).(idJob)
			h.Swap(&it.job)
		}
		p.workMu.Unlock()
		if h.IsNil() {
			break
		}

		job := h.Get()
		j := job.asyncJob()
		start := time.Now()
		job.Call()
		p.completed.Add(1)
		p.log.Debug().
			Int("worker", w.index).
			Uint32("job", j.id.Load()).
			Dur("took", time.Since(start)).
			Msg("async job call done")

		// Completion protocol: settle the job first so its waiters wake
		// before pool-wide waiters.
		if j.event.Leave() == 1 {
			j.event.Wake()
		}
		if p.event.Leave() == 1 {
			p.event.Wake()
		}
		h.Reset()
	}
	p.log.Debug().Int("worker", w.index).Uint32("seq", w.seq).Msg("async worker stopped")
}

// Stats returns a snapshot of pool counters.
func (p *AsyncPool) Stats() AsyncStats {
	p.poolMu.Lock()
	n := p.numThread
	p.poolMu.Unlock()
	p.workMu.Lock()
	depth := len(p.waitlist)
	p.workMu.Unlock()
	return AsyncStats{
		NumThread:  n,
		Submitted:  p.submitted.Load(),
		Completed:  p.completed.Load(),
		InlineRuns: p.inline.Load(),
		QueueDepth: depth,
		Pending:    p.event.Outstanding(),
	}
}
