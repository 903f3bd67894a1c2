// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package loader

import (
	"context"
	"sync"

	xglog "github.com/ManuGH/venuecache/internal/log"
	"github.com/ManuGH/venuecache/internal/metrics"
)

// PoolConfig defines the size of the shared worker pool.
type PoolConfig struct {
	Workers   int
	QueueSize int
}

// Pool runs background fetch routines for every active loader on a fixed set
// of worker goroutines.
type Pool struct {
	jobs    chan func(context.Context)
	workers int

	ctx    context.Context    // Pool context, parent of every task context
	cancel context.CancelFunc // Cancels all in-flight tasks on Stop

	mu     sync.RWMutex // guards closed against concurrent Submit/Stop
	closed bool

	wg       sync.WaitGroup
	once     sync.Once
	stopOnce sync.Once
}

// NewPool creates a pool. Workers are not running until Start is called.
func NewPool(cfg PoolConfig) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		jobs:    make(chan func(context.Context), cfg.QueueSize),
		workers: cfg.Workers,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the workers. Calling it more than once has no effect.
func (p *Pool) Start() {
	p.once.Do(func() {
		for i := 0; i < p.workers; i++ {
			p.wg.Go(func() {
				for job := range p.jobs {
					metrics.SetPoolQueueDepth(len(p.jobs))
					job(p.ctx)
				}
			})
		}
		logger := xglog.WithComponent("loader")
		logger.Debug().
			Int("workers", p.workers).
			Int("queue_size", cap(p.jobs)).
			Msg("worker pool started")
	})
}

// Stop cancels every task context, lets the workers drain the queue (queued
// jobs observe the cancelled context and unwind) and waits for them to exit.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.cancel()

		p.mu.Lock()
		p.closed = true
		close(p.jobs)
		p.mu.Unlock()

		p.wg.Wait()

		// Pool stopped before Start: run leftovers against the cancelled context.
		for job := range p.jobs {
			job(p.ctx)
		}
	})
}

// Context is cancelled when the pool stops.
func (p *Pool) Context() context.Context { return p.ctx }

// Submit queues job, blocking while the queue is full. It fails with
// ErrPoolStopped once Stop has been called; job is then never run.
func (p *Pool) Submit(job func(context.Context)) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolStopped
	}
	select {
	case p.jobs <- job:
		metrics.SetPoolQueueDepth(len(p.jobs))
		return nil
	case <-p.ctx.Done():
		return ErrPoolStopped
	}
}
