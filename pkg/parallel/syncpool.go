package parallel

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/therealutkarshpriyadarshi/parallel/internal/event"
	"github.com/therealutkarshpriyadarshi/parallel/internal/logging"
	"github.com/therealutkarshpriyadarshi/parallel/pkg/refcount"
)

// SyncJob describes a contiguous integer range [Start, End) to be processed
// in slices. Embed it and implement Call to build a submittable job; the
// fields are read by the pool at Submit time and may be changed between
// submissions.
type SyncJob struct {
	// MaxCall caps how many times Call runs for one Submit:
	// 0 picks the slicing dynamically, 1 runs the whole range on the
	// submitter, larger values bound the number of participating threads.
	MaxCall int

	// Start and End delimit the input range, End exclusive.
	// Callers must keep Start <= End.
	Start, End int
}

func (j *SyncJob) syncJob() *SyncJob { return j }

// SyncRunner is the job contract for SyncPool. Implementations embed
// SyncJob and define Call, which must be safe to run concurrently with
// itself on disjoint slices.
//
// tid identifies the participating thread within one Submit, starting
// from 0; the submitting goroutine gets the highest tid.
type SyncRunner interface {
	Call(tid, start, end int)
	syncJob() *SyncJob
}

// jobRef is the scheduling state of one submission, shared with every
// participating worker through strong handles.
type jobRef struct {
	refcount.Object

	pool   *SyncPool
	runner SyncRunner
	id     uint32

	allend int64
	// nstripe tunes dynamic slicing; serial is the fixed slice size used
	// when MaxCall caps the participant count (one claim per participant).
	nstripe int64
	serial  int64

	index atomic.Int64
	event event.Event
}

func (p *SyncPool) newJobRef(runner SyncRunner, nthread int) *jobRef {
	sj := runner.syncJob()
	total := int64(sj.End) - int64(sj.Start)
	r := &jobRef{
		pool:   p,
		runner: runner,
		id:     jobSeq.Add(1) - 1,
		allend: int64(sj.End),
	}
	r.index.Store(int64(sj.Start))
	if sj.MaxCall > 0 {
		r.serial = (total + int64(nthread) - 1) / int64(nthread)
	} else {
		ns := int64(nthread * minInt(nthread, 4))
		if ns > 128 {
			ns = 128
		}
		if ns > total {
			ns = total
		}
		if ns < 1 {
			ns = 1
		}
		r.nstripe = ns
	}
	return r
}

// Finalize runs when the last handle drops; by then the range must have
// been fully claimed.
func (r *jobRef) Finalize() {
	if cur := r.index.Load(); cur < r.allend {
		panic(fmt.Sprintf("parallel: job %d dropped with cursor %d before end %d", r.id, cur, r.allend))
	}
}

// execute races on the stripe cursor until the range is drained. All
// participants run the same loop; whoever wins the fetch-add owns that
// slice. With a MaxCall cap each participant claims at most one slice.
func (r *jobRef) execute(tid int) {
	for {
		cur := r.index.Load()
		if cur >= r.allend {
			return
		}
		stripe := r.serial
		if stripe == 0 {
			stripe = (r.allend - cur) / r.nstripe
			if stripe < 1 {
				stripe = 1
			}
		}
		cur = r.index.Add(stripe) - stripe
		if cur >= r.allend {
			return
		}
		end := cur + stripe
		if end > r.allend {
			end = r.allend
		}
		r.pool.stripes.Add(1)
		r.runner.Call(tid, int(cur), int(end))
		if r.serial > 0 {
			return
		}
	}
}

// syncWorker is one background participant: a slot for the current job
// handle, a wake signal checked by the spin phase, and a cond to park on.
type syncWorker struct {
	pool  *SyncPool
	index int
	seq   uint32

	mu     sync.Mutex
	cond   *sync.Cond
	ref    refcount.Ptr[*jobRef]
	stop   bool
	signal atomic.Uint32

	done chan struct{}
}

// assign installs a job handle and wakes the worker. Called with the pool
// lock held; the previous job must have drained (single-submitter
// discipline).
func (w *syncWorker) assign(h refcount.Ptr[*jobRef]) {
	w.mu.Lock()
	w.ref.Reset()
	w.ref = h.Clone()
	w.signal.Store(1)
	w.mu.Unlock()
	w.cond.Signal()
}

func (w *syncWorker) run() {
	defer close(w.done)
	log := w.pool.log
	log.Debug().Int("worker", w.index).Uint32("seq", w.seq).Msg("sync worker started")
	for {
		var h refcount.Ptr[*jobRef]

		spinUntil(func() bool { return w.signal.Load() != 0 })

		w.mu.Lock()
		for w.signal.Load() == 0 {
			w.cond.Wait()
		}
		stopped := w.stop
		h.Swap(&w.ref)
		w.signal.Store(0)
		w.mu.Unlock()

		if stopped {
			h.Reset()
			break
		}
		if ref := h.Get(); ref != nil {
			ref.event.Enter()
			ref.execute(w.index)
			if ref.event.Leave() == 1 {
				ref.event.Wake()
			}
		}
		h.Reset()
	}
	log.Debug().Int("worker", w.index).Uint32("seq", w.seq).Msg("sync worker stopped")
}

// SyncPool runs range-partitioned jobs across background workers plus the
// submitting goroutine.
//
// Submit must not be called concurrently on one pool, and SetNumThread must
// not overlap an inflight Submit; both are caller responsibilities.
type SyncPool struct {
	mu        sync.Mutex
	workers   [MaxThread - 1]*syncWorker
	numWorker int

	log *logging.Logger

	jobs    atomic.Uint64
	inline  atomic.Uint64
	stripes atomic.Uint64
}

// SyncStats is a snapshot of pool activity.
type SyncStats struct {
	NumThread      int
	Jobs           uint64
	InlineJobs     uint64
	StripesClaimed uint64
}

// NewSyncPool creates a pool with no background workers; size it with
// SetNumThread.
func NewSyncPool() *SyncPool {
	return &SyncPool{log: logging.Global().WithComponent("syncpool")}
}

// NumThread returns the working thread count including the submitter.
func (p *SyncPool) NumThread() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.numWorker + 1
}

// SetNumThread sizes the pool to n working threads including the
// submitter, clamped to [1, MaxThread]. Shrinking joins the removed
// workers before returning. Workers that already match are untouched.
func (p *SyncPool) SetNumThread(n int) {
	if n < 1 {
		n = 1
	}
	if n > MaxThread {
		n = MaxThread
	}
	target := n - 1

	p.mu.Lock()
	defer p.mu.Unlock()
	if target == p.numWorker {
		return
	}
	p.log.Info().Int("from", p.numWorker+1).Int("to", n).Msg("resizing sync pool")
	for i := target; i < p.numWorker; i++ {
		w := p.workers[i]
		w.mu.Lock()
		w.stop = true
		w.ref.Reset()
		w.signal.Store(1)
		w.mu.Unlock()
		w.cond.Signal()
		<-w.done
		p.workers[i] = nil
	}
	for i := p.numWorker; i < target; i++ {
		w := &syncWorker{
			pool:  p,
			index: i,
			seq:   workerSeq.Add(1) - 1,
			done:  make(chan struct{}),
		}
		w.cond = sync.NewCond(&w.mu)
		p.workers[i] = w
		go w.run()
	}
	p.numWorker = target
}

// Close joins all background workers. The pool stays usable afterwards
// with submissions running inline.
func (p *SyncPool) Close() { p.SetNumThread(1) }

// Submit processes job's range and returns once every Call has returned.
// An empty range returns immediately; a range too small (or a pool too
// small) to share runs inline on the caller.
func (p *SyncPool) Submit(job SyncRunner) {
	if job == nil {
		return
	}
	sj := job.syncJob()
	if sj.Start >= sj.End {
		return
	}

	nthread := sj.End - sj.Start
	if sj.MaxCall > 0 && sj.MaxCall < nthread {
		nthread = sj.MaxCall
	}

	p.mu.Lock()
	nthread = minInt(nthread, p.numWorker+1)
	if nthread < 2 {
		p.mu.Unlock()
		p.inline.Add(1)
		p.jobs.Add(1)
		p.stripes.Add(1)
		job.Call(0, sj.Start, sj.End)
		return
	}

	ref := p.newJobRef(job, nthread)
	h := refcount.New(ref)
	p.log.Debug().
		Uint32("job", ref.id).
		Int("start", sj.Start).
		Int("end", sj.End).
		Int("threads", nthread).
		Msg("sync job scheduled")
	for i := 0; i < nthread-1; i++ {
		p.workers[i].assign(h)
	}
	p.mu.Unlock()

	ref.execute(nthread - 1)

	// The range is fully claimed; wait for the workers still holding
	// slices, spinning briefly before sleeping on the job event.
	spinUntil(func() bool { return ref.event.Outstanding() == 0 })
	ref.event.Wait(0)

	p.jobs.Add(1)
	p.log.Debug().Uint32("job", ref.id).Msg("sync job finished")
	h.Reset()
}

// Stats returns a snapshot of pool counters.
func (p *SyncPool) Stats() SyncStats {
	p.mu.Lock()
	n := p.numWorker + 1
	p.mu.Unlock()
	return SyncStats{
		NumThread:      n,
		Jobs:           p.jobs.Load(),
		InlineJobs:     p.inline.Load(),
		StripesClaimed: p.stripes.Load(),
	}
}
