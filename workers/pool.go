package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ErrQueueFull is returned by Submit when the pool cannot take more work (backpressure)
var ErrQueueFull = errors.New("worker pool queue full")

// ErrPoolClosed is returned by Submit after Shutdown
var ErrPoolClosed = errors.New("worker pool closed")

// Task is a unit of background work
type Task struct {
	Name string
	Run  func(ctx context.Context) error
	// OnDone, if set, receives the result of Run (nil on success)
	OnDone func(err error)
}

// Stats is a snapshot of the pool counters
type Stats struct {
	Processed    int64
	Failed       int64
	Backpressure int64
	Queued       int
	Capacity     int
}

// Pool runs tasks on a fixed number of goroutines fed by a buffered queue
type Pool struct {
	jobs        chan Task
	workerCount int
	taskTimeout time.Duration
	log         *zap.Logger

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool

	processed    atomic.Int64
	failed       atomic.Int64
	backpressure atomic.Int64
}

// NewPool creates a pool; Start launches the workers
func NewPool(workerCount int, queueSize int, taskTimeout time.Duration, log *zap.Logger) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		jobs:        make(chan Task, queueSize),
		workerCount: workerCount,
		taskTimeout: taskTimeout,
		log:         log,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start launches the worker goroutines
func (p *Pool) Start() {
	p.log.Info("starting worker pool",
		zap.Int("workers", p.workerCount),
		zap.Int("queue", cap(p.jobs)))

	for i := 1; i <= p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case task, ok := <-p.jobs:
			if !ok {
				return
			}
			p.process(id, task)
		}
	}
}

func (p *Pool) process(workerID int, task Task) {
	var err error

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			p.log.Error("worker panic recovered",
				zap.Int("worker", workerID),
				zap.String("task", task.Name),
				zap.Any("panic", r))
		}
		if err != nil {
			p.failed.Add(1)
		} else {
			p.processed.Add(1)
		}
		if task.OnDone != nil {
			task.OnDone(err)
		}
	}()

	ctx := p.ctx
	if p.taskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(p.ctx, p.taskTimeout)
		defer cancel()
	}

	err = task.Run(ctx)
}

// Submit queues a task without blocking
func (p *Pool) Submit(task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.jobs <- task:
		return nil
	default:
		p.backpressure.Add(1)
		return ErrQueueFull
	}
}

// Shutdown stops accepting tasks and waits for the queue to drain
func (p *Pool) Shutdown(timeout time.Duration) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s := p.Stats()
		p.log.Info("worker pool drained",
			zap.Int64("processed", s.Processed),
			zap.Int64("failed", s.Failed),
			zap.Int64("backpressure", s.Backpressure))
		return nil
	case <-time.After(timeout):
		p.cancel()
		return fmt.Errorf("worker pool shutdown timed out after %v", timeout)
	}
}

// Stats returns the current counters
func (p *Pool) Stats() Stats {
	return Stats{
		Processed:    p.processed.Load(),
		Failed:       p.failed.Load(),
		Backpressure: p.backpressure.Load(),
		Queued:       len(p.jobs),
		Capacity:     cap(p.jobs),
	}
}
