package dispatch

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smukkama/water-quality-server/internal/database"
)

// ErrStopped is returned after Stop has been called
var ErrStopped = errors.New("evaluation pool is stopped")

// Handler evaluates one persisted reading
type Handler func(ctx context.Context, readingID uuid.UUID) error

// job represents one evaluation waiting for a worker
type job struct {
	readingID uuid.UUID
	location  string
}

// WorkerPool runs evaluations on a fixed set of goroutines fed by a
// buffered channel. Jobs that do not fit in the channel wait in an
// unbounded backlog, so an accepted reading is never dropped. Jobs reach the
// workers in dispatch order.
type WorkerPool struct {
	jobQueue    chan job
	workerCount int
	logger      *zap.Logger

	mu      sync.Mutex
	backlog []job
	feeding bool // the feeder holds a job taken from the backlog
	notify  chan struct{}
	started bool
	stopped bool
	wg      sync.WaitGroup
}

// NewWorkerPool creates a pool. Non-positive sizes fall back to defaults.
func NewWorkerPool(workerCount, queueSize int, logger *zap.Logger) *WorkerPool {
	if workerCount <= 0 {
		workerCount = 4
	}
	if queueSize <= 0 {
		queueSize = 1000
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &WorkerPool{
		jobQueue:    make(chan job, queueSize),
		workerCount: workerCount,
		logger:      logger,
		notify:      make(chan struct{}, 1),
	}
}

// Start launches the workers. Each job runs with ctx.
func (p *WorkerPool) Start(ctx context.Context, handler Handler) {
	p.mu.Lock()
	p.started = true
	p.mu.Unlock()

	p.wg.Add(1)
	go p.feed()

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i, handler)
	}
	p.logger.Info("Evaluation workers started", zap.Int("workers", p.workerCount))
}

func (p *WorkerPool) worker(ctx context.Context, id int, handler Handler) {
	defer p.wg.Done()

	for j := range p.jobQueue {
		if err := handler(ctx, j.readingID); err != nil {
			p.logger.Error("Evaluation failed",
				zap.Int("worker", id),
				zap.String("reading_id", j.readingID.String()),
				zap.String("location", j.location),
				zap.Error(err))
		}
	}
}

// feed moves backlogged jobs into the queue. Once stopped and empty it
// closes the queue, which ends the workers.
func (p *WorkerPool) feed() {
	defer p.wg.Done()

	for {
		p.mu.Lock()
		for len(p.backlog) == 0 && !p.stopped {
			p.mu.Unlock()
			<-p.notify
			p.mu.Lock()
		}
		if len(p.backlog) == 0 {
			p.mu.Unlock()
			close(p.jobQueue)
			return
		}
		j := p.backlog[0]
		p.backlog[0] = job{}
		p.backlog = p.backlog[1:]
		p.feeding = true
		p.mu.Unlock()

		p.jobQueue <- j

		p.mu.Lock()
		p.feeding = false
		p.mu.Unlock()
	}
}

func (p *WorkerPool) wake() {
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// Dispatch queues a reading for evaluation without blocking
func (p *WorkerPool) Dispatch(_ context.Context, r *database.Reading) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return ErrStopped
	}

	j := job{readingID: r.ID, location: r.Location}
	if len(p.backlog) == 0 && !p.feeding {
		select {
		case p.jobQueue <- j:
			return nil
		default:
		}
	}

	p.backlog = append(p.backlog, j)
	if len(p.backlog) == 1 {
		p.logger.Warn("Evaluation queue full, backlogging", zap.Int("queue_size", cap(p.jobQueue)))
	}
	p.wake()
	return nil
}

// Pending returns the number of jobs waiting for a worker
func (p *WorkerPool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.jobQueue) + len(p.backlog)
}

// Stop refuses new jobs, lets workers drain the queue and the backlog and
// waits for them
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	started := p.started
	p.mu.Unlock()

	if !started {
		return
	}
	p.wake()
	p.wg.Wait()
	p.logger.Info("Evaluation workers stopped")
}
