package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// FetchFunc performs the request backing an entry
type FetchFunc func(ctx context.Context) (interface{}, error)

// State represents the observable state of a cache entry
type State struct {
	// Data is the last successfully fetched payload, nil after a failed fetch
	Data interface{}
	// IsLoading is true while a fetch for the entry is outstanding
	IsLoading bool
	// Error is the message of the last failed fetch, empty after a successful fetch
	Error string
	// Err is the error of the last failed fetch
	Err error
}

type subscriber struct {
	id string
	fn func(State)
}

func newEntry(ctx context.Context, key string, fetch FetchFunc, timeout time.Duration) *Entry {
	return &Entry{
		ID:      uuid.New().String(),
		Key:     key,
		state:   State{IsLoading: true},
		fetch:   fetch,
		ctx:     ctx,
		timeout: timeout,
		done:    make(chan struct{}),
		m:       &sync.Mutex{},
	}
}

// Entry represents a shared resource, one per live key
type Entry struct {
	// ID identifies this entry instance, a reacquired key gets a new ID
	ID string
	// Key is the resource key the entry is indexed under
	Key string

	// refCount and refresh are guarded by the cache backend lock
	refCount int
	refresh  bool

	state   State
	evicted bool
	gen     uint64
	subs    []subscriber
	done    chan struct{}
	m       *sync.Mutex

	fetch   FetchFunc
	flight  singleflight.Group
	ctx     context.Context
	timeout time.Duration
}

// State returns a copy of the current entry state
func (e *Entry) State() State {
	e.m.Lock()
	defer e.m.Unlock()
	return e.state
}

// Evicted reports whether the entry has been removed from the cache
func (e *Entry) Evicted() bool {
	e.m.Lock()
	defer e.m.Unlock()
	return e.evicted
}

// load marks the entry as loading and starts a fetch.
// A load while a fetch is outstanding joins that fetch.
func (e *Entry) load() {
	e.m.Lock()
	if e.evicted {
		e.m.Unlock()
		return
	}
	e.gen++
	gen := e.gen
	e.state.IsLoading = true
	e.m.Unlock()
	e.notify()

	go e.run(gen)
}

func (e *Entry) run(gen uint64) {
	v, err, _ := e.flight.Do("fetch", func() (interface{}, error) {
		ctx := e.ctx
		if e.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, e.timeout)
			defer cancel()
		}
		log.Debugf("fetching %s (%s)", e.Key, e.ID)
		return e.fetch(ctx)
	})
	e.complete(gen, v, err)
}

// complete writes the outcome of the load gen into the entry.
// Results for evicted entries and of loads superseded by a later load are discarded,
// the later load completes the entry.
func (e *Entry) complete(gen uint64, v interface{}, err error) {
	e.m.Lock()
	if e.evicted {
		e.m.Unlock()
		log.Debugf("discarding result for evicted entry %s (%s)", e.Key, e.ID)
		return
	}
	if gen != e.gen {
		e.m.Unlock()
		log.Debugf("discarding superseded result for %s (%s)", e.Key, e.ID)
		return
	}
	if err != nil {
		e.state = State{Error: err.Error(), Err: err}
	} else {
		e.state = State{Data: v}
	}
	e.m.Unlock()

	if err != nil {
		log.Debugf("fetching %s failed: %s", e.Key, err)
	}
	e.notify()
}

// evict detaches the entry from the cache.
// A load still outstanding is settled with reason so that waiters and subscribers see a final state.
func (e *Entry) evict(reason error) {
	e.m.Lock()
	if e.evicted {
		e.m.Unlock()
		return
	}
	e.evicted = true
	settled := e.state.IsLoading
	if settled {
		e.state = State{Error: reason.Error(), Err: reason}
	}
	state := e.state
	subs := e.subs
	e.subs = nil
	close(e.done)
	e.m.Unlock()

	if settled {
		for _, s := range subs {
			s.fn(state)
		}
	}
}

// subscribe registers fn to be called with the new state on every change
func (e *Entry) subscribe(fn func(State)) func() {
	id := uuid.New().String()
	e.m.Lock()
	e.subs = append(e.subs, subscriber{id: id, fn: fn})
	e.m.Unlock()

	return func() {
		e.m.Lock()
		defer e.m.Unlock()
		for i, s := range e.subs {
			if s.id == id {
				e.subs = append(e.subs[:i:i], e.subs[i+1:]...)
				return
			}
		}
	}
}

func (e *Entry) notify() {
	e.m.Lock()
	state := e.state
	subs := make([]subscriber, len(e.subs))
	copy(subs, e.subs)
	e.m.Unlock()

	for _, s := range subs {
		s.fn(state)
	}
}

// wait blocks until the entry is not loading, it is evicted or ctx is done
func (e *Entry) wait(ctx context.Context) (State, error) {
	done := make(chan State, 1)
	cancel := e.subscribe(func(s State) {
		if s.IsLoading {
			return
		}
		select {
		case done <- s:
		default:
		}
	})
	defer cancel()

	if s := e.State(); !s.IsLoading {
		return s, nil
	}

	select {
	case s := <-done:
		return s, nil
	case <-e.done:
		return e.State(), nil
	case <-ctx.Done():
		return e.State(), ctx.Err()
	}
}
