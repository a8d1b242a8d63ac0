package hub

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

var (
	// ErrQueueFull is returned when the task queue cannot accept more work
	ErrQueueFull = errors.New("task queue is full")
	// ErrPoolStopped is returned when submitting to a pool that is not running
	ErrPoolStopped = errors.New("task pool is not running")
)

// Task is a unit of asynchronous work. ctx is cancelled when the pool is forced to stop.
type Task func(ctx context.Context)

// Pool runs tasks on a fixed number of workers fed by a bounded queue
type Pool struct {
	mu      sync.RWMutex
	tasks   chan Task
	workers int
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
	stopped bool
	active  atomic.Int64
	log     logrus.FieldLogger
}

// NewPool creates a pool; call Start before submitting tasks
func NewPool(workers, queueSize int, log logrus.FieldLogger) *Pool {
	return &Pool{
		tasks:   make(chan Task, queueSize),
		workers: workers,
		log:     log,
	}
}

// Start launches the workers. Tasks run with a context derived from ctx.
// Starting a running pool is a no-op; a stopped pool cannot be restarted.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return ErrPoolStopped
	}
	if p.running {
		return nil
	}

	p.ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.work()
	}
	p.running = true
	return nil
}

func (p *Pool) work() {
	defer p.wg.Done()

	for task := range p.tasks {
		p.active.Add(1)
		p.run(task)
		p.active.Add(-1)
	}
}

func (p *Pool) run(task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.log.WithField("panic", r).Error("Task panicked")
		}
	}()
	task(p.ctx)
}

// Submit queues task without blocking
func (p *Pool) Submit(task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.running {
		return ErrPoolStopped
	}

	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop stops accepting tasks and waits for queued ones to finish. If ctx expires
// first, running tasks are cancelled and Stop returns ctx's error once they return.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.stopped = true
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.stopped = true
	close(p.tasks)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}

// Running reports whether the pool accepts tasks
func (p *Pool) Running() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

// Queued returns the number of tasks waiting for a worker
func (p *Pool) Queued() int {
	return len(p.tasks)
}

// Active returns the number of tasks currently running
func (p *Pool) Active() int {
	return int(p.active.Load())
}
