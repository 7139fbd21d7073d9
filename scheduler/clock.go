package scheduler

import (
	"sync"
	"time"
)

// Clock abstracts time so ticks can be driven deterministically
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock
type SystemClock struct{}

// Now returns the current local time
func (SystemClock) Now() time.Time {
	return time.Now()
}

// Setting holds the refresh interval selected at runtime.
// Zero or negative disables scheduled refresh.
type Setting struct {
	m        sync.RWMutex
	interval time.Duration
}

// NewSetting returns a Setting initialised to interval
func NewSetting(interval time.Duration) *Setting {
	return &Setting{interval: interval}
}

// Get returns the current interval
func (s *Setting) Get() time.Duration {
	if s == nil {
		return 0
	}
	s.m.RLock()
	defer s.m.RUnlock()
	return s.interval
}

// Set changes the interval, it is picked up by the next tick
func (s *Setting) Set(interval time.Duration) {
	s.m.Lock()
	s.interval = interval
	s.m.Unlock()
}

// Enabled reports whether scheduled refresh is turned on
func (s *Setting) Enabled() bool {
	return s.Get() > 0
}
