// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package loader

import (
	"context"
	"sync"
)

// Dispatcher is the single delivery context. Every result, redelivery and reset
// notification runs on the goroutine that called Run, in post order.
//
// The queue is unbounded so a callback that posts (for example by calling
// Start from OnDeliver) never blocks the goroutine that has to drain it.
type Dispatcher struct {
	mu      sync.Mutex
	pending []func()
	stopped bool

	wake chan struct{}
	done chan struct{}
}

// NewDispatcher creates an idle dispatcher. Call Run to start delivering.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Post schedules fn on the delivery context. It returns false once the
// dispatcher has stopped; fn is then never run and the caller owns cleanup.
func (d *Dispatcher) Post(fn func()) bool {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return false
	}
	d.pending = append(d.pending, fn)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
	return true
}

// Run drains posted closures until ctx is cancelled. Everything accepted by
// Post before cancellation still runs before Run returns.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-d.wake:
			d.drain()
		case <-ctx.Done():
			d.mu.Lock()
			d.stopped = true
			d.mu.Unlock()
			d.drain()
			close(d.done)
			return
		}
	}
}

// Done is closed after Run has returned.
func (d *Dispatcher) Done() <-chan struct{} { return d.done }

func (d *Dispatcher) drain() {
	for {
		d.mu.Lock()
		batch := d.pending
		d.pending = nil
		d.mu.Unlock()
		if len(batch) == 0 {
			return
		}
		for _, fn := range batch {
			fn()
		}
	}
}
