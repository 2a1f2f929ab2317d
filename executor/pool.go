// Package executor is the concurrent execution substrate: one
// single-threaded worker per CPU core, a leased counting semaphore,
// and an exclusive-lock barrier for flush/reset.
package executor

import (
	"context"
	"runtime"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/tarungka/streamcore/internal/logger"
)

// Task is a unit of work submitted to a specific worker by index.
type Task func(ctx context.Context)

// retryLimit bounds the rate at which a buffered aggregator backs off
// and retries after losing a capacity-overflow CAS race.
const retryLimit = rate.Limit(1000)

// Pool is a fixed set of single-threaded workers, one per CPU core by
// default, each owning its own FIFO queue. A worker recovers from a
// panic inside a submitted task and keeps serving its queue.
type Pool struct {
	queues       []chan Task
	group        *errgroup.Group
	ctx          context.Context
	cancel       context.CancelFunc
	logger       zerolog.Logger
	retryLimiter *rate.Limiter
}

// New builds a Pool of workers workers (runtime.NumCPU() if <= 0), each
// with a bounded FIFO queue, and starts them immediately.
func New(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)
	p := &Pool{
		queues:       make([]chan Task, workers),
		group:        g,
		ctx:          gctx,
		cancel:       cancel,
		logger:       logger.Component("executor"),
		retryLimiter: rate.NewLimiter(retryLimit, 1),
	}
	for i := range p.queues {
		p.queues[i] = make(chan Task, 256)
		idx := i
		g.Go(func() error {
			p.worker(idx)
			return nil
		})
	}
	return p
}

// RetryLimiter returns the pool's shared capacity-stall retry
// throttle, borrowed by every buffered aggregator fed by this pool
// rather than each constructing its own.
func (p *Pool) RetryLimiter() *rate.Limiter { return p.retryLimiter }

func (p *Pool) worker(idx int) {
	logger := p.logger.With().Int("worker", idx).Logger()
	for {
		select {
		case <-p.ctx.Done():
			return
		case task, ok := <-p.queues[idx]:
			if !ok {
				return
			}
			p.run(logger, task)
		}
	}
}

func (p *Pool) run(logger zerolog.Logger, task Task) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("shard failure: submitted task panicked, worker continues")
		}
	}()
	task(p.ctx)
}

// NumWorkers returns the number of single-threaded workers in the pool.
func (p *Pool) NumWorkers() int { return len(p.queues) }

// Submit enqueues task onto the worker at index (mod NumWorkers()),
// blocking only if that worker's queue is full.
func (p *Pool) Submit(index int, task Task) {
	idx := normalizeIndex(index, p.NumWorkers())
	select {
	case p.queues[idx] <- task:
	case <-p.ctx.Done():
	}
}

// SubmitLeased leases a permit from sem for ctx (joining the ambient
// task if ctx already runs inside one), submits task to the worker at
// index, and releases the lease when task completes. If the worker's
// queue cannot accept task because the pool is shutting down, the
// lease is released immediately without running task.
func (p *Pool) SubmitLeased(ctx context.Context, sem *Semaphore, index int, task Task) {
	leaseCtx, release, err := sem.Lease(ctx)
	if err != nil {
		return
	}
	idx := normalizeIndex(index, p.NumWorkers())
	wrapped := func(_ context.Context) {
		defer release()
		task(leaseCtx)
	}
	select {
	case p.queues[idx] <- wrapped:
	case <-p.ctx.Done():
		release()
	}
}

func normalizeIndex(index, n int) int {
	idx := index % n
	if idx < 0 {
		idx += n
	}
	return idx
}

// Stop cancels the pool's context and closes every queue, then waits
// for the workers to exit. Tasks still queued when Stop is called may
// not run.
func (p *Pool) Stop() {
	p.cancel()
	for _, q := range p.queues {
		close(q)
	}
	_ = p.group.Wait()
}
