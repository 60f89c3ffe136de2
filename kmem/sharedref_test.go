package kmem

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNonAtomicCounter_OneIsOne(t *testing.T) {
	var c NonAtomicCounter
	c.init()
	assert.Equal(t, uint32(1), c.load())
	assert.Equal(t, c.One(), c.load())
}

func TestAtomicCounter_OneIsOne(t *testing.T) {
	var c AtomicCounter
	c.init()
	assert.Equal(t, uint32(1), c.load())
	assert.Equal(t, c.One(), c.load())
}

func TestSharedRef_CloneIncrementsCount(t *testing.T) {
	r := NewShared[NonAtomicCounter, *NonAtomicCounter, int](7)
	require.Equal(t, uint32(1), r.Count())

	r2 := r.Clone()
	assert.Equal(t, uint32(2), r.Count())
	assert.Equal(t, uint32(2), r2.Count())
	assert.Equal(t, 7, *r.Get())
}

func TestSharedRef_ReleaseLastReturnsValue(t *testing.T) {
	r := NewShared[NonAtomicCounter, *NonAtomicCounter, string]("hello")
	r2 := r.Clone()

	v, last := r.Release()
	assert.False(t, last)
	assert.Equal(t, "", v)

	v, last = r2.Release()
	assert.True(t, last)
	assert.Equal(t, "hello", v)
}

func TestSharedRef_GetMutOnlyWhenUnique(t *testing.T) {
	r := NewShared[NonAtomicCounter, *NonAtomicCounter, int](1)

	ptr, ok := r.GetMut()
	require.True(t, ok)
	*ptr = 2
	assert.Equal(t, 2, *r.Get())

	r2 := r.Clone()
	_, ok = r.GetMut()
	assert.False(t, ok)
	_, ok = r2.GetMut()
	assert.False(t, ok)

	_, _ = r.Release()
	ptr, ok = r2.GetMut()
	require.True(t, ok)
	*ptr = 3
	assert.Equal(t, 3, *r2.Get())
}

func TestSharedRef_ReleaseOfZeroValuePanics(t *testing.T) {
	var r SharedRef[NonAtomicCounter, *NonAtomicCounter, int]
	assert.Panics(t, func() {
		_, _ = r.Release()
	})
}

func TestSharedRef_AtomicCounterConcurrentCloneRelease(t *testing.T) {
	r := NewShared[AtomicCounter, *AtomicCounter, int](0)

	const n = 64
	var wg sync.WaitGroup
	clones := make([]SharedRef[AtomicCounter, *AtomicCounter, int], n)
	for i := range clones {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			clones[i] = r.Clone()
		}(i)
	}
	wg.Wait()
	assert.Equal(t, uint32(n+1), r.Count())

	for i := range clones {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = clones[i].Release()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, uint32(1), r.Count())
	_, last := r.Release()
	assert.True(t, last)
}

func TestNewSharedSliceOf_ExactLength(t *testing.T) {
	seq := func(yield func(int) bool) {
		for i := 0; i < 5; i++ {
			if !yield(i * i) {
				return
			}
		}
	}

	r := NewSharedSliceOf[NonAtomicCounter, *NonAtomicCounter](5, seq)
	assert.Equal(t, []int{0, 1, 4, 9, 16}, *r.Get())
}

func TestNewSharedSliceOf_ShortIteratorPanics(t *testing.T) {
	seq := func(yield func(int) bool) {
		yield(1)
	}
	assert.Panics(t, func() {
		NewSharedSliceOf[NonAtomicCounter, *NonAtomicCounter](5, seq)
	})
}
