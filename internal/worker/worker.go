package worker

import (
	"context"
	"fmt"
)

// job is one unit of work submitted for a key.
type job struct {
	key  string
	ctx  context.Context
	run  func(ctx context.Context)
	done chan struct{}
	err  error
	// finish is called by the worker once the job has returned.
	finish func(*job)
}

type worker struct {
	id   int
	jobs chan *job
	pool *workerPool
}

func newWorker(id int, pool *workerPool) *worker {
	return &worker{
		id:   id,
		jobs: make(chan *job),
		pool: pool,
	}
}

// start runs jobs until it receives a nil job.
func (w *worker) start() {
	go func() {
		for j := range w.jobs {
			if j == nil {
				return
			}
			w.execute(j)
			w.pool.release(w)
		}
	}()
}

func (w *worker) execute(j *job) {
	defer func() {
		if r := recover(); r != nil {
			j.err = fmt.Errorf("job for %q panicked: %v", j.key, r)
			w.pool.logger.Error().Int("worker", w.id).Str("key", j.key).Interface("panic", r).Msg("job panicked")
		}
		if j.finish != nil {
			j.finish(j)
		}
		close(j.done)
	}()
	if err := j.ctx.Err(); err != nil {
		j.err = err
		return
	}
	w.pool.logger.Debug().Int("worker", w.id).Str("key", j.key).Msg("running job")
	j.run(j.ctx)
}
