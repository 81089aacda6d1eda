// Package worker runs chat turns on a bounded worker pool while keeping the
// turns of one conversation strictly sequential.
package worker

import (
	"container/list"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrDispatcherBusy is returned when the pending queue is full.
	ErrDispatcherBusy = errors.New("dispatcher busy")
	// ErrDispatcherClosed is returned after Close.
	ErrDispatcherClosed = errors.New("dispatcher closed")
)

const (
	DefaultWorkers   = 8
	DefaultQueueSize = 256
)

type Options struct {
	MinWorkers  int
	MaxWorkers  int
	QueueSize   int
	IdleTimeout time.Duration
	Logger      zerolog.Logger
}

type keyQueue struct {
	jobs    []*job
	running bool
	ready   bool
}

// Dispatcher serves per-key FIFO queues round-robin. At most one job per key
// runs at a time; keys with more work go to the back of the ready list.
type Dispatcher struct {
	pool   *workerPool
	logger zerolog.Logger

	mu        sync.Mutex
	cond      *sync.Cond
	queues    map[string]*keyQueue
	ready     *list.List // keys with a runnable job, in service order
	positions map[string]*list.Element
	pending   int
	capacity  int
	closed    bool

	inflight sync.WaitGroup
	loopDone chan struct{}
}

func NewDispatcher(opts Options) *Dispatcher {
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = DefaultWorkers
	}
	if opts.MinWorkers <= 0 || opts.MinWorkers > opts.MaxWorkers {
		opts.MinWorkers = opts.MaxWorkers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	d := &Dispatcher{
		pool:      newWorkerPool(opts.MinWorkers, opts.MaxWorkers, opts.IdleTimeout, opts.Logger),
		logger:    opts.Logger,
		queues:    make(map[string]*keyQueue),
		ready:     list.New(),
		positions: make(map[string]*list.Element),
		capacity:  opts.QueueSize,
		loopDone:  make(chan struct{}),
	}
	d.cond = sync.NewCond(&d.mu)
	go d.run()
	return d
}

// Submit queues fn under key and waits until it has run or ctx is done. A job
// whose ctx ends while still queued is skipped.
func (d *Dispatcher) Submit(ctx context.Context, key string, fn func(ctx context.Context)) error {
	j := &job{
		key:  key,
		ctx:  ctx,
		run:  fn,
		done: make(chan struct{}),
	}
	j.finish = d.complete

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrDispatcherClosed
	}
	if d.pending >= d.capacity {
		d.mu.Unlock()
		d.logger.Warn().Str("key", key).Int("capacity", d.capacity).Msg("dispatcher queue full")
		return ErrDispatcherBusy
	}
	q := d.queues[key]
	if q == nil {
		q = &keyQueue{}
		d.queues[key] = q
	}
	q.jobs = append(q.jobs, j)
	d.pending++
	d.inflight.Add(1)
	if !q.running {
		d.markReadyLocked(key, q)
	}
	d.mu.Unlock()

	select {
	case <-j.done:
		return j.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending returns the number of queued jobs that have not started.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Close rejects new jobs, lets queued ones drain and stops the workers.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.loopDone
		return
	}
	d.closed = true
	d.cond.Broadcast()
	d.mu.Unlock()

	<-d.loopDone
	d.inflight.Wait()
	d.pool.close()
}

func (d *Dispatcher) markReadyLocked(key string, q *keyQueue) {
	if q.ready || len(q.jobs) == 0 {
		return
	}
	q.ready = true
	d.positions[key] = d.ready.PushBack(key)
	d.cond.Signal()
}

func (d *Dispatcher) run() {
	defer close(d.loopDone)
	for {
		j, ok := d.next()
		if !ok {
			return
		}
		w := d.pool.acquire()
		d.logger.Debug().Str("key", j.key).Int("worker", w.id).Msg("dispatching job")
		w.jobs <- j
	}
}

// next pops the first job of the key at the front of the ready list.
func (d *Dispatcher) next() (*job, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for d.ready.Len() == 0 {
		if d.closed && d.pending == 0 {
			return nil, false
		}
		d.cond.Wait()
	}
	elem := d.ready.Front()
	key := elem.Value.(string)
	d.ready.Remove(elem)
	delete(d.positions, key)

	q := d.queues[key]
	q.ready = false
	j := q.jobs[0]
	q.jobs[0] = nil
	q.jobs = q.jobs[1:]
	q.running = true
	d.pending--
	return j, true
}

// complete runs on the worker after a job returns.
func (d *Dispatcher) complete(j *job) {
	d.mu.Lock()
	if q := d.queues[j.key]; q != nil {
		q.running = false
		if len(q.jobs) > 0 {
			d.markReadyLocked(j.key, q)
		} else {
			delete(d.queues, j.key)
		}
	}
	d.mu.Unlock()
	d.inflight.Done()
}
