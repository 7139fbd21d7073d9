package cache

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
)

var (
	// ErrEntryNotFound represents an error where a cache entry was not found
	ErrEntryNotFound = errors.New("cache entry not found")
)

func newBackend() *backend {
	return &backend{
		data: make(map[string]*Entry),
		m:    &sync.Mutex{},
	}
}

// backend is the key index of the cache
// all methods expect the backend to be locked
type backend struct {
	data map[string]*Entry
	m    *sync.Mutex
}

func (b *backend) findEntry(key string) (*Entry, error) {
	e, ok := b.data[key]
	if !ok {
		return nil, ErrEntryNotFound
	}

	return e, nil
}

func (b *backend) addEntry(e *Entry) {
	b.data[e.Key] = e
}

// removeEntry removes e from the index, it reports false when e is not the indexed entry for its key
func (b *backend) removeEntry(e *Entry) bool {
	cur, ok := b.data[e.Key]
	if !ok || cur != e {
		return false
	}
	delete(b.data, e.Key)

	return true
}

func (b *backend) keys() []string {
	keys := make([]string, 0, len(b.data))
	for k := range b.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}
