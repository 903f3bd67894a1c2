// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package loader implements the background loader lifecycle shared by the
// catalog and image loaders: start/stop/reset/force-load, at most one task in
// flight per loader, exactly-once delivery on a single delivery context and
// explicit release of results that are discarded or superseded.
package loader

import (
	"context"
	"sync"

	xglog "github.com/ManuGH/venuecache/internal/log"
	"github.com/ManuGH/venuecache/internal/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Interface is the control surface collaborators hold on to.
type Interface interface {
	Start()
	Stop()
	Reset()
	ForceLoad()
	OnContentChanged()
}

// Callbacks receive results on the delivery context.
type Callbacks[T any] struct {
	// OnLoadFinished receives every delivered result exactly once per task,
	// plus redeliveries of the held result on Start. The value stays owned by
	// the loader; it remains valid until the next result or reset arrives.
	OnLoadFinished func(T)
	// OnReset fires after Reset, once the held result has been released.
	OnReset func()
}

// Options configure a Loader.
type Options[T any] struct {
	// Name labels logs and metrics ("catalog", "image").
	Name string
	// Fetch is the background routine. It must be fail-soft (return an empty or
	// nil value instead of an error) and observe ctx at every chunk boundary.
	Fetch func(ctx context.Context) T
	// Release frees a result's resources. It must accept the zero value.
	Release func(T)
	// OnDeliver runs on the delivery context right before OnLoadFinished for
	// every fresh result, while the loader lock is held. It must not call back
	// into the loader.
	OnDeliver func(T)
	// OnReset runs synchronously inside Reset, under the loader lock.
	OnReset func()
}

type phase int

const (
	phaseIdle phase = iota
	phaseStarted
	phaseStopped
	phaseReset
)

type task struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
}

// Loader is one logical background load. The zero value is not usable; build
// it with New.
type Loader[T any] struct {
	id   string
	opts Options[T]
	cb   Callbacks[T]
	pool *Pool
	disp *Dispatcher

	logger zerolog.Logger

	mu             sync.Mutex
	phase          phase
	current        *task
	result         T
	hasResult      bool
	generation     uint64
	contentChanged bool

	// inflight counts launched tasks not yet finished; idle is closed when
	// it drops to zero.
	inflight int
	idle     chan struct{}
}

// New creates a loader bound to a worker pool and a delivery context.
func New[T any](pool *Pool, disp *Dispatcher, opts Options[T], cb Callbacks[T]) *Loader[T] {
	if opts.Name == "" {
		opts.Name = "loader"
	}
	id := uuid.NewString()
	return &Loader[T]{
		id:   id,
		opts: opts,
		cb:   cb,
		pool: pool,
		disp: disp,
		logger: xglog.WithComponent("loader").With().
			Str(xglog.FieldLoader, opts.Name).
			Str("loader_id", id).
			Logger(),
	}
}

// ID identifies this loader instance in logs.
func (l *Loader[T]) ID() string { return l.id }

// State reports the lifecycle position.
func (l *Loader[T]) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stateLocked()
}

func (l *Loader[T]) stateLocked() State {
	switch l.phase {
	case phaseIdle:
		return StateIdle
	case phaseStopped:
		return StateStopped
	case phaseReset:
		return StateReset
	}
	if l.current != nil {
		return StateLoading
	}
	if l.hasResult {
		return StateDelivered
	}
	return StateStarted
}

// Result returns the currently held result without transferring ownership.
func (l *Loader[T]) Result() (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.result, l.hasResult
}

// Start begins loading. A held result is redelivered when no reload is
// pending; otherwise a fetch is launched. Calling Start on a started loader
// does nothing.
func (l *Loader[T]) Start() {
	l.mu.Lock()
	if l.phase == phaseStarted {
		l.mu.Unlock()
		return
	}
	old := l.stateLocked()
	l.phase = phaseStarted

	var t *task
	redeliverGen := uint64(0)
	redeliver := false
	if l.contentChanged || !l.hasResult {
		t = l.launchLocked()
	} else {
		redeliver = true
		redeliverGen = l.generation
	}
	l.logger.Debug().
		Str(xglog.FieldOldState, string(old)).
		Str(xglog.FieldNewState, string(l.stateLocked())).
		Msg("loader started")
	l.mu.Unlock()

	if t != nil {
		l.submit(t)
	}
	if redeliver {
		l.disp.Post(func() { l.redeliver(redeliverGen) })
	}
}

// ForceLoad marks the content changed. A started loader cancels its in-flight
// task and launches a new one; a loader that is not started reloads on its
// next Start.
func (l *Loader[T]) ForceLoad() {
	l.mu.Lock()
	l.contentChanged = true
	if l.phase != phaseStarted {
		l.mu.Unlock()
		return
	}
	t := l.launchLocked()
	l.mu.Unlock()

	l.submit(t)
}

// OnContentChanged is the collaborator's signal that the underlying data
// changed. It behaves like ForceLoad.
func (l *Loader[T]) OnContentChanged() { l.ForceLoad() }

// Stop cancels the in-flight task cooperatively. The held result is kept.
func (l *Loader[T]) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.phase == phaseStarted {
		l.phase = phaseStopped
	}
	l.cancelLocked()
}

// Reset stops the loader, releases and clears the held result and notifies
// the collaborator. The loader can be started again afterwards.
func (l *Loader[T]) Reset() {
	l.mu.Lock()
	l.cancelLocked()
	l.phase = phaseReset
	l.contentChanged = false
	old, hadOld := l.result, l.hasResult
	var zero T
	l.result = zero
	l.hasResult = false
	l.generation++
	if l.opts.OnReset != nil {
		l.opts.OnReset()
	}
	l.mu.Unlock()

	notify := func() {
		if hadOld {
			l.release(old)
		}
		if l.cb.OnReset != nil {
			l.cb.OnReset()
		}
	}
	// Serialise with deliveries so a result is never released while its
	// callback is still running.
	if !l.disp.Post(notify) {
		notify()
	}
	l.logger.Debug().Msg("loader reset")
}

// Wait blocks until every task launched so far has finished, including its
// delivery or release, or until ctx is done.
func (l *Loader[T]) Wait(ctx context.Context) error {
	l.mu.Lock()
	if l.inflight == 0 {
		l.mu.Unlock()
		return nil
	}
	idle := l.idle
	l.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// launchLocked supersedes the current task with a new one. Caller must hold mu
// and submit the returned task after unlocking.
func (l *Loader[T]) launchLocked() *task {
	l.cancelLocked()
	l.contentChanged = false

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(xglog.ContextWithJobID(l.pool.Context(), id))
	t := &task{id: id, ctx: ctx, cancel: cancel}
	l.current = t
	if l.inflight == 0 {
		l.idle = make(chan struct{})
	}
	l.inflight++
	metrics.AddLoaderInFlight(l.opts.Name, 1)
	return t
}

func (l *Loader[T]) cancelLocked() {
	if l.current != nil {
		l.current.cancel()
		l.current = nil
	}
}

func (l *Loader[T]) submit(t *task) {
	err := l.pool.Submit(func(context.Context) { l.run(t) })
	if err != nil {
		l.logger.Warn().Err(err).Str(xglog.FieldJobID, t.id).Msg("task not scheduled")
		t.cancel()
		var zero T
		l.discard(t, zero)
	}
}

// run executes on a pool worker.
func (l *Loader[T]) run(t *task) {
	var v T
	if t.ctx.Err() == nil {
		v = l.opts.Fetch(t.ctx)
	}
	if !l.disp.Post(func() { l.complete(t, v) }) {
		l.discard(t, v)
	}
}

// complete executes on the delivery context, exactly once per task.
func (l *Loader[T]) complete(t *task, v T) {
	defer l.finish(t)

	l.mu.Lock()
	if l.current != t || t.ctx.Err() != nil || l.phase != phaseStarted {
		if l.current == t {
			l.current = nil
		}
		l.mu.Unlock()
		l.release(v)
		metrics.IncLoaderResult(l.opts.Name, metrics.ResultDiscarded)
		l.logger.Debug().Str(xglog.FieldJobID, t.id).Msg("result discarded")
		return
	}
	l.current = nil
	old, hadOld := l.result, l.hasResult
	l.result = v
	l.hasResult = true
	l.generation++
	if l.opts.OnDeliver != nil {
		l.opts.OnDeliver(v)
	}
	l.mu.Unlock()

	if l.cb.OnLoadFinished != nil {
		l.cb.OnLoadFinished(v)
	}
	metrics.IncLoaderResult(l.opts.Name, metrics.ResultDelivered)

	// The previous result is only released once the new one is in hand.
	if hadOld {
		l.release(old)
	}
}

func (l *Loader[T]) redeliver(gen uint64) {
	l.mu.Lock()
	if l.phase != phaseStarted || !l.hasResult || l.generation != gen {
		l.mu.Unlock()
		return
	}
	v := l.result
	l.mu.Unlock()

	if l.cb.OnLoadFinished != nil {
		l.cb.OnLoadFinished(v)
	}
	metrics.IncLoaderResult(l.opts.Name, metrics.ResultRedelivered)
}

func (l *Loader[T]) discard(t *task, v T) {
	defer l.finish(t)
	l.mu.Lock()
	if l.current == t {
		l.current = nil
	}
	l.mu.Unlock()
	l.release(v)
	metrics.IncLoaderResult(l.opts.Name, metrics.ResultDiscarded)
}

func (l *Loader[T]) finish(t *task) {
	t.cancel()
	metrics.AddLoaderInFlight(l.opts.Name, -1)
	l.mu.Lock()
	l.inflight--
	if l.inflight == 0 {
		close(l.idle)
	}
	l.mu.Unlock()
}

func (l *Loader[T]) release(v T) {
	if l.opts.Release != nil {
		l.opts.Release(v)
	}
}
