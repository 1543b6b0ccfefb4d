package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var (
	ErrPoolFull   = errors.New("worker queue is full")
	ErrPoolClosed = errors.New("worker pool is stopped")
)

// Task is a unit of work run by the pool
type Task func(ctx context.Context)

// Pool runs tasks on a fixed set of workers fed by a bounded queue
type Pool struct {
	tasks   chan Task
	workers int
	log     *slog.Logger

	mu      sync.RWMutex
	stopped bool
	started bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPool creates a pool with the given worker count and queue capacity
func NewPool(workers, queueSize int, log *slog.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	return &Pool{
		tasks:   make(chan Task, queueSize),
		workers: workers,
		log:     log.With("component", "pool"),
	}
}

// Start starts the workers
// Tasks receive a context that is cancelled only by Stop's deadline.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	p.ctx, p.cancel = context.WithCancel(context.WithoutCancel(ctx))

	p.wg.Add(p.workers)
	for i := 0; i < p.workers; i++ {
		go p.worker(i)
	}
	p.log.Info("started", "workers", p.workers, "queue", cap(p.tasks))
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for task := range p.tasks {
		p.run(id, task)
	}
}

func (p *Pool) run(id int, task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("task panicked", "worker", id, "panic", fmt.Sprint(r))
		}
	}()
	task(p.ctx)
}

// TrySubmit queues a task without blocking
func (p *Pool) TrySubmit(task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrPoolClosed
	}
	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrPoolFull
	}
}

// Stop stops accepting tasks and waits for queued ones to finish
// When ctx expires first, running tasks see their context cancelled.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.tasks)
	started := p.started
	p.mu.Unlock()

	if !started {
		return nil
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		p.log.Info("stopped")
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}
