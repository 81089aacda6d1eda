package worker

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type workerMeta struct {
	w         *worker
	lastUsed  time.Time
	enqueued  bool // is in the idle queue
	discarded bool // is targeted as delete
}

// workerPool keeps between min and max workers alive. Idle workers above min
// are retired after the expiry.
type workerPool struct {
	mu       sync.Mutex
	cond     *sync.Cond
	idle     []*workerMeta
	metadata map[*worker]*workerMeta
	min      int
	max      int
	running  int
	nextID   int
	expiry   time.Duration
	logger   zerolog.Logger
	stop     chan struct{}
}

const defaultWorkerIdle = 30 * time.Second

func newWorkerPool(minWorkers, maxWorkers int, idle time.Duration, logger zerolog.Logger) *workerPool {
	if idle <= 0 {
		idle = defaultWorkerIdle
	}
	if minWorkers < 1 {
		minWorkers = 1
	}
	if maxWorkers < minWorkers {
		maxWorkers = minWorkers
	}
	p := &workerPool{
		metadata: make(map[*worker]*workerMeta),
		min:      minWorkers,
		max:      maxWorkers,
		expiry:   idle,
		logger:   logger,
		stop:     make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)
	for i := 0; i < minWorkers; i++ {
		p.mu.Lock()
		w := p.spawnLocked()
		meta := p.metadata[w]
		meta.enqueued = true
		meta.lastUsed = time.Now()
		p.idle = append(p.idle, meta)
		p.mu.Unlock()
	}
	go p.purgeStaleWorkers()
	return p
}

func (p *workerPool) spawnLocked() *worker {
	p.nextID++
	w := newWorker(p.nextID, p)
	p.metadata[w] = &workerMeta{w: w}
	p.running++
	w.start()
	return w
}

// acquire returns an idle worker, spawning one when below max, and blocks
// otherwise.
func (p *workerPool) acquire() *worker {
	p.mu.Lock()
	defer p.mu.Unlock()
	for {
		if meta := p.popIdleLocked(); meta != nil {
			return meta.w
		}
		if p.running < p.max {
			return p.spawnLocked()
		}
		p.cond.Wait()
	}
}

// release puts a worker back into the idle queue.
func (p *workerPool) release(w *worker) {
	p.mu.Lock()
	meta, ok := p.metadata[w]
	if !ok || meta.discarded || meta.enqueued {
		p.mu.Unlock()
		return
	}
	meta.enqueued = true
	meta.lastUsed = time.Now()
	p.idle = append(p.idle, meta)
	p.mu.Unlock()
	p.cond.Signal()
}

func (p *workerPool) popIdleLocked() *workerMeta {
	for len(p.idle) > 0 {
		meta := p.idle[0]
		p.idle = p.idle[1:]
		if meta.discarded {
			continue
		}
		meta.enqueued = false
		return meta
	}
	return nil
}

func (p *workerPool) purgeStaleWorkers() {
	ticker := time.NewTicker(p.expiry)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.shutdownExpired()
		case <-p.stop:
			return
		}
	}
}

// shutdownExpired retires idle workers unused for longer than the expiry,
// never going below min.
func (p *workerPool) shutdownExpired() {
	var stale []*workerMeta
	now := time.Now()

	p.mu.Lock()
	remaining := p.idle[:0]
	for _, meta := range p.idle {
		if meta.discarded {
			continue
		}
		if now.Sub(meta.lastUsed) >= p.expiry && p.running-len(stale) > p.min {
			meta.discarded = true
			meta.enqueued = false
			stale = append(stale, meta)
			continue
		}
		remaining = append(remaining, meta)
	}
	p.idle = remaining
	for _, meta := range stale {
		delete(p.metadata, meta.w)
	}
	p.running -= len(stale)
	p.mu.Unlock()

	for _, meta := range stale {
		p.logger.Debug().Int("worker", meta.w.id).Msg("retiring idle worker")
		meta.w.jobs <- nil
	}
}

// size reports running and idle worker counts.
func (p *workerPool) size() (running, idle int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running, len(p.idle)
}

// close stops every idle worker. Callers must ensure no job is in flight.
func (p *workerPool) close() {
	close(p.stop)
	p.mu.Lock()
	workers := make([]*worker, 0, len(p.metadata))
	for w, meta := range p.metadata {
		meta.discarded = true
		workers = append(workers, w)
	}
	p.metadata = make(map[*worker]*workerMeta)
	p.idle = nil
	p.running = 0
	p.mu.Unlock()
	for _, w := range workers {
		w.jobs <- nil
	}
}
