package kirq

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joeycumines/kernelcore/arch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWorkerFabric(t *testing.T) (*Fabric, *arch.Sim, func()) {
	t.Helper()
	sim := arch.NewSim()
	f := NewFabric(sim)
	ctx, cancel := context.WithCancel(context.Background())
	go f.Worker(ctx)
	return f, sim, cancel
}

func TestFabric_EventRoundTrip(t *testing.T) {
	f, sim, cancel := newWorkerFabric(t)
	defer cancel()

	var got atomic.Int32
	done := make(chan struct{})
	_, err := f.Bind(3, func(gsi uint32) {
		got.Store(int32(gsi))
		close(done)
	})
	require.NoError(t, err)

	require.True(t, sim.Fire(3))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("deferred handler did not run")
	}
	assert.Equal(t, int32(3), got.Load())
}

func TestFabric_MultiHandlerCoalescing(t *testing.T) {
	f, sim, cancel := newWorkerFabric(t)
	defer cancel()

	var calls atomic.Int32
	done := make(chan struct{}, 2)
	handler := func(uint32) {
		calls.Add(1)
		done <- struct{}{}
	}
	_, err := f.Bind(6, handler)
	require.NoError(t, err)
	_, err = f.Bind(6, handler)
	require.NoError(t, err)

	require.True(t, sim.Fire(6))

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatalf("only %d of 2 handlers ran", i)
		}
	}
	assert.Equal(t, int32(2), calls.Load())
}

func TestFabric_BindingHandleCloseOnlyRemovesOneHandler(t *testing.T) {
	f, sim, cancel := newWorkerFabric(t)
	defer cancel()

	var calls1, calls2 atomic.Int32
	ch := make(chan struct{}, 2)
	h1, err := f.Bind(9, func(uint32) { calls1.Add(1); ch <- struct{}{} })
	require.NoError(t, err)
	_, err = f.Bind(9, func(uint32) { calls2.Add(1); ch <- struct{}{} })
	require.NoError(t, err)

	require.NoError(t, h1.Close())

	require.True(t, sim.Fire(9))
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("remaining handler did not run")
	}
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, int32(0), calls1.Load())
	assert.Equal(t, int32(1), calls2.Load())
}

func TestFabric_LastHandlerCloseUnbindsFromArchitecture(t *testing.T) {
	f, sim, cancel := newWorkerFabric(t)
	defer cancel()

	h, err := f.Bind(12, func(uint32) {})
	require.NoError(t, err)
	require.NoError(t, h.Close())

	assert.False(t, sim.Fire(12))
}

func TestFabric_HandlerPanicIsIsolated(t *testing.T) {
	f, sim, cancel := newWorkerFabric(t)
	defer cancel()

	var secondRan atomic.Bool
	done := make(chan struct{})
	_, err := f.Bind(15, func(uint32) {
		panic("boom")
	})
	require.NoError(t, err)
	_, err = f.Bind(15, func(uint32) {
		secondRan.Store(true)
		close(done)
	})
	require.NoError(t, err)

	require.True(t, sim.Fire(15))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler after a panicking one did not run")
	}
	assert.True(t, secondRan.Load())
}

func TestFabric_WorkerStopsOnContextCancel(t *testing.T) {
	sim := arch.NewSim()
	f := NewFabric(sim)
	ctx, cancel := context.WithCancel(context.Background())

	stopped := make(chan struct{})
	go func() {
		f.Worker(ctx)
		close(stopped)
	}()

	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Worker did not stop after context cancellation")
	}
}

func TestFabric_DoubleWorkerPanics(t *testing.T) {
	sim := arch.NewSim()
	f := NewFabric(sim)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	go func() {
		close(started)
		f.Worker(ctx)
	}()
	<-started
	time.Sleep(20 * time.Millisecond)

	assert.Panics(t, func() {
		f.Worker(ctx)
	})
}
