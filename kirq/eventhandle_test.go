package kirq

import (
	"context"
	"testing"
	"time"

	"github.com/joeycumines/kernelcore/arch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventHandle_WaitReturnsOnFire(t *testing.T) {
	f, sim, cancel := newWorkerFabric(t)
	defer cancel()

	eh, err := NewEventHandle(f, 20)
	require.NoError(t, err)
	defer eh.Close()

	done := make(chan bool, 1)
	go func() { done <- eh.Wait(0) }()

	time.Sleep(20 * time.Millisecond)
	require.True(t, sim.Fire(20))

	select {
	case fired := <-done:
		assert.True(t, fired)
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after Fire")
	}
}

func TestEventHandle_WaitTimesOut(t *testing.T) {
	f, _, cancel := newWorkerFabric(t)
	defer cancel()

	eh, err := NewEventHandle(f, 21)
	require.NoError(t, err)
	defer eh.Close()

	fired := eh.Wait(30 * time.Millisecond)
	assert.False(t, fired)
}

func TestObjectHandle_CloneReleaseAndWait(t *testing.T) {
	sim := arch.NewSim()
	f := NewFabric(sim)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.Worker(ctx)

	eh, err := NewEventHandle(f, 25)
	require.NoError(t, err)

	h := NewObjectHandle(42, eh)
	h2 := h.Clone()

	assert.Equal(t, 42, *h.Get())

	_, last, err := h.Close()
	require.NoError(t, err)
	assert.False(t, last)

	done := make(chan bool, 1)
	go func() { done <- h2.Wait(0) }()
	time.Sleep(20 * time.Millisecond)
	require.True(t, sim.Fire(25))

	select {
	case fired := <-done:
		assert.True(t, fired)
	case <-time.After(time.Second):
		t.Fatal("ObjectHandle.Wait did not return after Fire")
	}

	val, last, err := h2.Close()
	require.NoError(t, err)
	assert.True(t, last)
	assert.Equal(t, 42, val)
}

func TestObjectHandle_WaitWithoutEventPanics(t *testing.T) {
	h := NewObjectHandle("x", nil)
	assert.Panics(t, func() {
		h.Wait(0)
	})
}
