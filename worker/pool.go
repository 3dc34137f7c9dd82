package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/xraph/rostersync/id"
)

// ErrPoolStopped is returned by Submit after the pool has been stopped.
var ErrPoolStopped = errors.New("rostersync/worker: pool stopped")

// Task is a unit of work submitted to the pool. The context it receives
// is cancelled when the pool is force-stopped.
type Task func(ctx context.Context)

// Pool fans tasks out over a bounded set of worker goroutines. The
// trigger layer submits one task per program run; per-program mutual
// exclusion comes from locks, not from the pool, so full concurrency
// across programs is safe.
type Pool struct {
	concurrency int
	workerID    id.WorkerID
	logger      *slog.Logger

	tasks  chan Task
	stopCh chan struct{}
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool

	// baseCtx is cancelled on forced shutdown so in-flight runs abort.
	baseCtx context.Context
	cancel  context.CancelFunc
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithPoolConcurrency sets the number of concurrent worker goroutines.
func WithPoolConcurrency(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithPoolLogger sets the structured logger.
func WithPoolLogger(l *slog.Logger) PoolOption {
	return func(p *Pool) { p.logger = l }
}

// NewPool creates a worker pool.
func NewPool(opts ...PoolOption) *Pool {
	p := &Pool{
		concurrency: 4,
		workerID:    id.NewWorkerID(),
		logger:      slog.Default(),
		tasks:       make(chan Task),
		stopCh:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WorkerID returns the pool's unique worker identifier. It doubles as
// the fleet member identity in logs.
func (p *Pool) WorkerID() id.WorkerID { return p.workerID }

// Start launches the worker goroutines. It returns immediately.
func (p *Pool) Start(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}
	p.running = true
	p.baseCtx, p.cancel = context.WithCancel(context.Background())

	p.logger.Info("worker pool starting",
		slog.String("worker_id", p.workerID.String()),
		slog.Int("concurrency", p.concurrency),
	)

	for range p.concurrency {
		p.wg.Add(1)
		go p.workLoop()
	}

	return nil
}

// Submit hands a task to the pool, blocking while all workers are busy.
// It returns ErrPoolStopped when the pool has been stopped, or the
// context error if ctx expires while waiting for a free worker.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	select {
	case p.tasks <- task:
		return nil
	case <-p.stopCh:
		return ErrPoolStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop signals all workers to stop and waits for in-flight tasks to
// finish. If the context expires first, in-flight task contexts are
// cancelled and Stop waits for the workers to unwind.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.mu.Unlock()

	p.logger.Info("worker pool stopping", slog.String("worker_id", p.workerID.String()))

	close(p.stopCh)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped gracefully")
	case <-ctx.Done():
		p.logger.Warn("worker pool shutdown timed out, cancelling active runs")
		p.cancel()
		<-done
	}

	p.cancel()
	return nil
}

// workLoop is run by each worker goroutine.
func (p *Pool) workLoop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopCh:
			return
		case task := <-p.tasks:
			task(p.baseCtx)
		}
	}
}
