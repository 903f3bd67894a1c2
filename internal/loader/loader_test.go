// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package loader

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type resource struct {
	id       int
	released atomic.Int32
}

// recorder collects everything that happens on the delivery context.
type recorder struct {
	mu     sync.Mutex
	events []string
	got    []*resource
	resets int
	ch     chan *resource
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan *resource, 16)}
}

func (r *recorder) callbacks() Callbacks[*resource] {
	return Callbacks[*resource]{
		OnLoadFinished: func(v *resource) {
			r.mu.Lock()
			r.got = append(r.got, v)
			if v != nil {
				r.events = append(r.events, "deliver")
			}
			r.mu.Unlock()
			r.ch <- v
		},
		OnReset: func() {
			r.mu.Lock()
			r.resets++
			r.mu.Unlock()
		},
	}
}

func (r *recorder) release(v *resource) {
	if v == nil {
		return
	}
	v.released.Add(1)
	r.mu.Lock()
	r.events = append(r.events, "release")
	r.mu.Unlock()
}

func (r *recorder) deliveries() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

func (r *recorder) await(t *testing.T) *resource {
	t.Helper()
	select {
	case v := <-r.ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for delivery")
		return nil
	}
}

type harness struct {
	pool *Pool
	disp *Dispatcher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	pool := NewPool(PoolConfig{Workers: 2, QueueSize: 8})
	pool.Start()
	disp := NewDispatcher()
	ctx, cancel := context.WithCancel(context.Background())
	go disp.Run(ctx)
	t.Cleanup(func() {
		pool.Stop()
		cancel()
		<-disp.Done()
	})
	return &harness{pool: pool, disp: disp}
}

func waitIdle[T any](t *testing.T, l *Loader[T]) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, l.Wait(ctx))
}

// flush waits until everything posted so far has run on the delivery context.
func flush(t *testing.T, d *Dispatcher) {
	t.Helper()
	done := make(chan struct{})
	require.True(t, d.Post(func() { close(done) }))
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("dispatcher did not drain")
	}
}

func TestLoader_StartDeliversExactlyOnce(t *testing.T) {
	h := newHarness(t)
	rec := newRecorder()
	var fetches atomic.Int32

	l := New(h.pool, h.disp, Options[*resource]{
		Name: "test",
		Fetch: func(context.Context) *resource {
			return &resource{id: int(fetches.Add(1))}
		},
		Release: rec.release,
	}, rec.callbacks())

	assert.Equal(t, StateIdle, l.State())
	l.Start()
	v := rec.await(t)
	waitIdle(t, l)

	assert.Equal(t, 1, v.id)
	assert.Equal(t, int32(1), fetches.Load())
	assert.Equal(t, 1, rec.deliveries())
	assert.Equal(t, StateDelivered, l.State())
	assert.Zero(t, v.released.Load())
}

func TestLoader_StartIsIdempotentWhileLoading(t *testing.T) {
	h := newHarness(t)
	rec := newRecorder()
	var fetches atomic.Int32
	gate := make(chan struct{})

	l := New(h.pool, h.disp, Options[*resource]{
		Name: "test",
		Fetch: func(context.Context) *resource {
			fetches.Add(1)
			<-gate
			return &resource{id: 1}
		},
		Release: rec.release,
	}, rec.callbacks())

	l.Start()
	l.Start()
	l.Start()
	assert.Equal(t, StateLoading, l.State())
	close(gate)

	rec.await(t)
	waitIdle(t, l)
	assert.Equal(t, int32(1), fetches.Load())
	assert.Equal(t, 1, rec.deliveries())
}

func TestLoader_RestartRedeliversHeldResult(t *testing.T) {
	h := newHarness(t)
	rec := newRecorder()
	var fetches atomic.Int32

	l := New(h.pool, h.disp, Options[*resource]{
		Name: "test",
		Fetch: func(context.Context) *resource {
			return &resource{id: int(fetches.Add(1))}
		},
		Release: rec.release,
	}, rec.callbacks())

	l.Start()
	first := rec.await(t)
	waitIdle(t, l)

	l.Stop()
	assert.Equal(t, StateStopped, l.State())
	l.Start()
	again := rec.await(t)

	assert.Same(t, first, again)
	assert.Equal(t, int32(1), fetches.Load(), "redelivery must not fetch")
	assert.Zero(t, first.released.Load())
}

func TestLoader_ContentChangedReloadsOnStart(t *testing.T) {
	h := newHarness(t)
	rec := newRecorder()
	var fetches atomic.Int32

	l := New(h.pool, h.disp, Options[*resource]{
		Name: "test",
		Fetch: func(context.Context) *resource {
			return &resource{id: int(fetches.Add(1))}
		},
		Release: rec.release,
	}, rec.callbacks())

	l.Start()
	first := rec.await(t)
	waitIdle(t, l)

	l.Stop()
	l.OnContentChanged() // not started: only marks content changed
	assert.Equal(t, int32(1), fetches.Load())

	l.Start()
	second := rec.await(t)
	waitIdle(t, l)

	assert.Equal(t, 2, second.id)
	assert.Equal(t, int32(1), first.released.Load(), "previous result released after handoff")
}

func TestLoader_ForceLoadSupersedesInFlightTask(t *testing.T) {
	h := newHarness(t)
	rec := newRecorder()
	var calls atomic.Int32
	firstStarted := make(chan struct{})
	var firstValue *resource

	l := New(h.pool, h.disp, Options[*resource]{
		Name: "test",
		Fetch: func(ctx context.Context) *resource {
			n := calls.Add(1)
			if n == 1 {
				firstValue = &resource{id: 1}
				close(firstStarted)
				<-ctx.Done()
				return firstValue
			}
			return &resource{id: int(n)}
		},
		Release: rec.release,
	}, rec.callbacks())

	l.Start()
	<-firstStarted
	l.ForceLoad()

	v := rec.await(t)
	waitIdle(t, l)
	flush(t, h.disp)

	assert.Equal(t, 2, v.id)
	assert.Equal(t, 1, rec.deliveries(), "superseded task must not deliver")
	assert.Equal(t, int32(1), firstValue.released.Load(), "superseded result must be released")
}

func TestLoader_ResetDiscardsInFlightResult(t *testing.T) {
	h := newHarness(t)
	rec := newRecorder()
	started := make(chan struct{})
	var produced *resource

	l := New(h.pool, h.disp, Options[*resource]{
		Name: "test",
		Fetch: func(ctx context.Context) *resource {
			close(started)
			<-ctx.Done()
			produced = &resource{id: 1}
			return produced
		},
		Release: rec.release,
	}, rec.callbacks())

	l.Start()
	<-started
	l.Reset()
	waitIdle(t, l)
	flush(t, h.disp)

	assert.Equal(t, StateReset, l.State())
	assert.Zero(t, rec.deliveries())
	require.NotNil(t, produced)
	assert.Equal(t, int32(1), produced.released.Load())
	rec.mu.Lock()
	assert.Equal(t, 1, rec.resets)
	rec.mu.Unlock()
}

func TestLoader_ResetReleasesHeldResultAndAllowsRestart(t *testing.T) {
	h := newHarness(t)
	rec := newRecorder()
	var fetches atomic.Int32
	var hookCalls atomic.Int32

	l := New(h.pool, h.disp, Options[*resource]{
		Name: "test",
		Fetch: func(context.Context) *resource {
			return &resource{id: int(fetches.Add(1))}
		},
		Release: rec.release,
		OnReset: func() { hookCalls.Add(1) },
	}, rec.callbacks())

	l.Start()
	first := rec.await(t)
	waitIdle(t, l)

	l.Reset()
	flush(t, h.disp)
	assert.Equal(t, int32(1), first.released.Load())
	assert.Equal(t, int32(1), hookCalls.Load())
	_, ok := l.Result()
	assert.False(t, ok)

	l.Start()
	second := rec.await(t)
	waitIdle(t, l)
	assert.Equal(t, 2, second.id)
}

func TestLoader_PreviousReleasedAfterNewDelivered(t *testing.T) {
	h := newHarness(t)
	rec := newRecorder()
	var fetches atomic.Int32

	l := New(h.pool, h.disp, Options[*resource]{
		Name: "test",
		Fetch: func(context.Context) *resource {
			return &resource{id: int(fetches.Add(1))}
		},
		Release: rec.release,
	}, rec.callbacks())

	l.Start()
	rec.await(t)
	waitIdle(t, l)

	l.ForceLoad()
	rec.await(t)
	waitIdle(t, l)
	flush(t, h.disp)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []string{"deliver", "deliver", "release"}, rec.events)
}

func TestLoader_OnDeliverRunsBeforeCallback(t *testing.T) {
	h := newHarness(t)
	var order []string
	var mu sync.Mutex
	done := make(chan struct{})

	l := New(h.pool, h.disp, Options[int]{
		Name:  "test",
		Fetch: func(context.Context) int { return 42 },
		OnDeliver: func(v int) {
			mu.Lock()
			order = append(order, "hook")
			mu.Unlock()
		},
	}, Callbacks[int]{
		OnLoadFinished: func(v int) {
			mu.Lock()
			order = append(order, "callback")
			mu.Unlock()
			close(done)
		},
	})

	l.Start()
	<-done
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"hook", "callback"}, order)
}

func TestLoader_StopCancelsWithoutDelivery(t *testing.T) {
	h := newHarness(t)
	rec := newRecorder()
	started := make(chan struct{})
	var sawCancel atomic.Bool

	l := New(h.pool, h.disp, Options[*resource]{
		Name: "test",
		Fetch: func(ctx context.Context) *resource {
			close(started)
			<-ctx.Done()
			sawCancel.Store(true)
			return nil
		},
		Release: rec.release,
	}, rec.callbacks())

	l.Start()
	<-started
	l.Stop()
	waitIdle(t, l)
	flush(t, h.disp)

	assert.True(t, sawCancel.Load())
	assert.Zero(t, rec.deliveries())
	assert.Equal(t, StateStopped, l.State())
}

func TestLoader_StoppedDispatcherReleasesResult(t *testing.T) {
	pool := NewPool(PoolConfig{Workers: 1})
	pool.Start()
	defer pool.Stop()

	disp := NewDispatcher()
	ctx, cancel := context.WithCancel(context.Background())
	go disp.Run(ctx)
	cancel()
	<-disp.Done()

	rec := newRecorder()
	var produced *resource
	l := New(pool, disp, Options[*resource]{
		Name: "test",
		Fetch: func(context.Context) *resource {
			produced = &resource{id: 1}
			return produced
		},
		Release: rec.release,
	}, rec.callbacks())

	l.Start()
	waitIdle(t, l)

	require.NotNil(t, produced)
	assert.Equal(t, int32(1), produced.released.Load())
	assert.Zero(t, rec.deliveries())
}

func TestPool_StopLeavesNoGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	pool := NewPool(PoolConfig{Workers: 3, QueueSize: 4})
	pool.Start()
	disp := NewDispatcher()
	ctx, cancel := context.WithCancel(context.Background())
	go disp.Run(ctx)

	rec := newRecorder()
	l := New(pool, disp, Options[*resource]{
		Name: "test",
		Fetch: func(ctx context.Context) *resource {
			<-ctx.Done()
			return &resource{}
		},
		Release: rec.release,
	}, rec.callbacks())
	l.Start()

	pool.Stop()
	waitIdle(t, l)
	cancel()
	<-disp.Done()

	assert.ErrorIs(t, pool.Submit(func(context.Context) {}), ErrPoolStopped)
}

func TestPool_StopBeforeStartRunsQueuedJobs(t *testing.T) {
	pool := NewPool(PoolConfig{Workers: 1, QueueSize: 2})
	var ran atomic.Int32
	var sawCancel atomic.Bool
	require.NoError(t, pool.Submit(func(ctx context.Context) {
		ran.Add(1)
		sawCancel.Store(ctx.Err() != nil)
	}))

	pool.Stop()
	assert.Equal(t, int32(1), ran.Load())
	assert.True(t, sawCancel.Load())
}

func TestLoader_WaitTimeoutLeavesNoGoroutine(t *testing.T) {
	h := newHarness(t)
	rec := newRecorder()
	gate := make(chan struct{})
	started := make(chan struct{})

	l := New(h.pool, h.disp, Options[*resource]{
		Name: "test",
		Fetch: func(ctx context.Context) *resource {
			close(started)
			<-gate
			return &resource{id: 1}
		},
		Release: rec.release,
	}, rec.callbacks())

	assert.NoError(t, l.Wait(context.Background()), "no task launched yet")

	l.Start()
	<-started
	ignore := goleak.IgnoreCurrent()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Wait(ctx), context.DeadlineExceeded)
	goleak.VerifyNone(t, ignore)

	close(gate)
	rec.await(t)
	waitIdle(t, l)
}
