package cache

import (
	"context"
	"sync"
)

func newHandle(c *Cache, e *Entry) *Handle {
	return &Handle{
		c:    c,
		e:    e,
		once: &sync.Once{},
	}
}

// Handle is one observer's subscription to a cache entry
type Handle struct {
	c    *Cache
	e    *Entry
	once *sync.Once
}

// Key returns the resource key of the handle
func (h *Handle) Key() string {
	return h.e.Key
}

// Entry returns the shared entry behind the handle
func (h *Handle) Entry() *Entry {
	return h.e
}

// State returns the current state of the entry
func (h *Handle) State() State {
	return h.e.State()
}

// Subscribe calls fn with the new state on every change of the entry until cancel is called
// or the entry is evicted.
// fn is called from the goroutine completing the change and must not block.
func (h *Handle) Subscribe(fn func(State)) (cancel func()) {
	return h.e.subscribe(fn)
}

// Wait blocks until the entry has finished loading or ctx is done
func (h *Handle) Wait(ctx context.Context) (State, error) {
	return h.e.wait(ctx)
}

// Refresh refetches the entry
func (h *Handle) Refresh() {
	h.e.load()
}

// Close releases the handle, closing a handle more than once has no effect
func (h *Handle) Close() {
	h.once.Do(func() {
		h.c.release(h.e)
	})
}
