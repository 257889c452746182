package editor

import (
	"context"
	"sync"
	"time"
)

// Clock schedules deferred calls. Tests substitute a manual clock.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending call created by a Clock.
type Timer interface {
	// Stop prevents the call from firing. Reports whether it was still pending.
	Stop() bool
}

type systemClock struct{}

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Persister stores a serialized document under the host's identifier.
// Persist must return once ctx is done: unmounting a session cancels it.
type Persister interface {
	Persist(ctx context.Context, id, html string) error
}

// PersisterFunc adapts a function to Persister.
type PersisterFunc func(ctx context.Context, id, html string) error

// Persist calls f.
func (f PersisterFunc) Persist(ctx context.Context, id, html string) error {
	return f(ctx, id, html)
}

// saveJob carries one full serialization to the host. gen and seq identify
// the document and edit it was taken from. ctx is set for explicit saves
// and bounded by the caller.
type saveJob struct {
	ctx     context.Context
	gen     uint64
	seq     uint64
	id      string
	html    string
	persist bool
	barrier bool
	done    chan error
}

// saveQueue runs save jobs one at a time in submission order on a single
// worker goroutine. Jobs see the queue context, which close cancels.
type saveQueue struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	jobs    []*saveJob
	closed  bool
	signal  chan struct{}
	stopped chan struct{}
}

func newSaveQueue(handle func(context.Context, *saveJob)) *saveQueue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &saveQueue{
		ctx:     ctx,
		cancel:  cancel,
		signal:  make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
	go q.run(handle)
	return q
}

// push appends a job without blocking. Returns false once the queue is closed.
func (q *saveQueue) push(job *saveJob) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.jobs = append(q.jobs, job)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

func (q *saveQueue) run(handle func(context.Context, *saveJob)) {
	defer close(q.stopped)
	for range q.signal {
		for {
			q.mu.Lock()
			if len(q.jobs) == 0 {
				closed := q.closed
				q.mu.Unlock()
				if closed {
					return
				}
				break
			}
			job := q.jobs[0]
			q.jobs[0] = nil
			q.jobs = q.jobs[1:]
			q.mu.Unlock()

			handle(q.ctx, job)
		}
	}
}

// close stops accepting jobs and cancels the queue context, so an in-flight
// persistence call returns and queued jobs fail fast. It then waits for the
// worker to drain.
func (q *saveQueue) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.stopped
		return
	}
	q.closed = true
	q.mu.Unlock()
	q.cancel()

	select {
	case q.signal <- struct{}{}:
	default:
	}
	<-q.stopped
}
