// Package cache shares fetched resources between observers with reference counting.
package cache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var (
	// ErrDisposed represents an acquire on a disposed cache or a load cut short by DisposeAll
	ErrDisposed = errors.New("cache has been disposed")
	// ErrEvicted represents a load cut short because its last observer released the entry
	ErrEvicted = errors.New("cache entry has been evicted")
)

// Registrar registers periodic refresh callbacks per key
type Registrar interface {
	Register(key string, fn func())
	Deregister(key string)
}

// Option configures a Cache
type Option func(*Cache)

// WithFetchTimeout limits the duration of a single fetch
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Cache) {
		c.timeout = d
	}
}

// WithContext sets the parent context of all fetches
func WithContext(ctx context.Context) Option {
	return func(c *Cache) {
		c.parent = ctx
	}
}

// New returns a new Cache instance
// tasks receives a refresh task for every entry acquired with refresh enabled, it may be nil
func New(tasks Registrar, opts ...Option) *Cache {
	c := &Cache{
		b:      newBackend(),
		tasks:  tasks,
		parent: context.Background(),
	}
	for _, o := range opts {
		o(c)
	}
	c.ctx, c.cancel = context.WithCancel(c.parent)

	return c
}

// Cache represents a cache instance
type Cache struct {
	b        *backend
	tasks    Registrar
	timeout  time.Duration
	parent   context.Context
	ctx      context.Context
	cancel   context.CancelFunc
	disposed bool
}

// Acquire returns a handle on the entry for key.
// The first acquire of a key creates the entry, starts a fetch and, when refresh is set,
// registers a refresh task. Later acquires share the existing entry.
// Fetch failures are recorded in the entry state and never returned.
func (c *Cache) Acquire(key string, fetch FetchFunc, refresh bool) *Handle {
	c.b.m.Lock()
	if c.disposed {
		c.b.m.Unlock()
		e := newEntry(c.ctx, key, fetch, c.timeout)
		e.evict(ErrDisposed)
		return newHandle(c, e)
	}

	e, err := c.b.findEntry(key)
	if err == nil {
		e.refCount++
		log.Debugf("acquired %s (%s), %d observers", key, e.ID, e.refCount)
		c.b.m.Unlock()
		return newHandle(c, e)
	}

	e = newEntry(c.ctx, key, fetch, c.timeout)
	e.refCount = 1
	c.b.addEntry(e)
	if refresh && c.tasks != nil {
		e.refresh = true
		c.tasks.Register(key, e.load)
	}
	log.Debugf("created %s (%s), refresh %t", key, e.ID, e.refresh)
	c.b.m.Unlock()

	e.load()
	return newHandle(c, e)
}

// release drops one observer of e, the last one evicts it
func (c *Cache) release(e *Entry) {
	c.b.m.Lock()
	if e.refCount > 0 {
		e.refCount--
	}
	if e.refCount > 0 {
		log.Debugf("released %s (%s), %d observers", e.Key, e.ID, e.refCount)
		c.b.m.Unlock()
		return
	}
	if c.b.removeEntry(e) && e.refresh && c.tasks != nil {
		c.tasks.Deregister(e.Key)
	}
	c.b.m.Unlock()

	e.evict(ErrEvicted)
	log.Debugf("evicted %s (%s)", e.Key, e.ID)
}

// Refresh refetches the entry for key
func (c *Cache) Refresh(key string) error {
	c.b.m.Lock()
	e, err := c.b.findEntry(key)
	c.b.m.Unlock()
	if err != nil {
		return errors.Wrapf(err, "failed to refresh %s", key)
	}
	e.load()

	return nil
}

// RefCount returns the number of observers of key, 0 when key is not cached
func (c *Cache) RefCount(key string) int {
	c.b.m.Lock()
	defer c.b.m.Unlock()
	e, err := c.b.findEntry(key)
	if err != nil {
		return 0
	}
	return e.refCount
}

// Len returns the number of live entries
func (c *Cache) Len() int {
	c.b.m.Lock()
	defer c.b.m.Unlock()
	return len(c.b.data)
}

// Keys returns the keys of all live entries sorted
func (c *Cache) Keys() []string {
	c.b.m.Lock()
	defer c.b.m.Unlock()
	return c.b.keys()
}

// DisposeAll evicts every entry, deregisters their refresh tasks and cancels outstanding fetches.
// Acquires after DisposeAll return handles in an error state.
func (c *Cache) DisposeAll() {
	c.b.m.Lock()
	evicted := make([]*Entry, 0, len(c.b.data))
	for _, e := range c.b.data {
		evicted = append(evicted, e)
	}
	for _, e := range evicted {
		c.b.removeEntry(e)
		if e.refresh && c.tasks != nil {
			c.tasks.Deregister(e.Key)
		}
	}
	c.disposed = true
	c.b.m.Unlock()

	for _, e := range evicted {
		e.evict(ErrDisposed)
	}
	c.cancel()
	log.Debugf("disposed %d cache entries", len(evicted))
}
