// Package democache is a small supplemental demonstration of
// [kmem.SharedRef] in a realistic role: an in-memory cache of loaded
// filesystem metadata records, keyed by record index, shared between
// however many callers currently have one open.
//
// It is modeled on the MFT entry cache an NTFS filesystem driver keeps
// (one Arc<...> per loaded record, looked up under a read lock and
// inserted under a write lock on miss) rather than on anything this
// kernel core's interrupt/timer/wait subsystem needs directly - it
// exists to exercise SharedRef under concurrent access outside of
// kmem's own unit tests.
package democache

import (
	"sync"

	"github.com/joeycumines/kernelcore/kmem"
)

type entryRef = kmem.SharedRef[kmem.AtomicCounter, *kmem.AtomicCounter, []byte]

// MFTCache caches loaded fixed-size metadata records by index. Load
// misses call the supplied loader and cache the result; hits clone the
// cached SharedRef so every caller can release independently.
type MFTCache struct {
	mu      sync.RWMutex
	entries map[uint32]entryRef
	load    func(index uint32) ([]byte, error)
}

// NewMFTCache constructs an empty cache that calls load on a miss.
func NewMFTCache(load func(index uint32) ([]byte, error)) *MFTCache {
	return &MFTCache{
		entries: make(map[uint32]entryRef),
		load:    load,
	}
}

// Get returns a cloned handle to the record at index, loading it on a
// cache miss. The caller owns the returned handle and must Release it
// when done.
func (c *MFTCache) Get(index uint32) (entryRef, error) {
	c.mu.RLock()
	ref, ok := c.entries[index]
	if ok {
		clone := ref.Clone()
		c.mu.RUnlock()
		return clone, nil
	}
	c.mu.RUnlock()

	data, err := c.load(index)
	if err != nil {
		var zero entryRef
		return zero, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if ref, ok := c.entries[index]; ok {
		// Lost the race to another loader; use theirs, drop ours.
		return ref.Clone(), nil
	}
	fresh := kmem.NewShared[kmem.AtomicCounter, *kmem.AtomicCounter, []byte](data)
	c.entries[index] = fresh
	return fresh.Clone(), nil
}

// Prune drops every cached entry the cache itself is the sole remaining
// owner of - i.e. no caller is currently holding a cloned handle to it.
// It returns the number of entries evicted.
func (c *MFTCache) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	evicted := 0
	for index, ref := range c.entries {
		if ref.Count() == 1 {
			delete(c.entries, index)
			r := ref
			r.Release()
			evicted++
		}
	}
	return evicted
}

// Len reports the number of entries currently cached.
func (c *MFTCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
