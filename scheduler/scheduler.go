// Package scheduler drives periodic refresh of registered resources from one shared clock.
package scheduler

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultTickPeriod is how often a running scheduler checks the elapsed time
const DefaultTickPeriod = 100 * time.Millisecond

// Option configures a Scheduler
type Option func(*Scheduler)

// WithClock sets the clock used to measure elapsed time
func WithClock(c Clock) Option {
	return func(s *Scheduler) {
		s.clock = c
	}
}

// WithTickPeriod sets the period of the ticker while running
func WithTickPeriod(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.tickPeriod = d
		}
	}
}

// New returns a new idle Scheduler
// setting provides the refresh interval and is read on every tick
func New(setting *Setting, opts ...Option) *Scheduler {
	s := &Scheduler{
		setting:    setting,
		clock:      SystemClock{},
		tickPeriod: DefaultTickPeriod,
		index:      make(map[string]int),
	}
	for _, o := range opts {
		o(s)
	}

	return s
}

type task struct {
	key string
	fn  func()
}

// Scheduler invokes every registered task whenever the shared interval elapses
type Scheduler struct {
	setting    *Setting
	clock      Clock
	tickPeriod time.Duration

	m        sync.Mutex
	tasks    []task
	index    map[string]int
	start    time.Time
	progress float64
	// firing is set while the ticker goroutine runs tasks
	firing bool

	quit chan struct{}
	wg   sync.WaitGroup
}

// Start starts ticking, it is a no-op when already running
func (s *Scheduler) Start() {
	s.m.Lock()
	defer s.m.Unlock()
	if s.quit != nil {
		return
	}

	s.start = s.clock.Now()
	s.progress = 0
	s.quit = make(chan struct{})
	s.wg.Add(1)
	go s.run(s.quit)
	log.Debugf("refresh scheduler started")
}

// Stop stops ticking and waits for the ticker to exit, it is a no-op when idle.
// While the ticker is running tasks, for instance when a task stops the scheduler,
// Stop returns without waiting and the ticker exits once the tasks are done.
func (s *Scheduler) Stop() {
	s.m.Lock()
	quit := s.quit
	firing := s.firing
	s.quit = nil
	s.m.Unlock()
	if quit == nil {
		return
	}

	close(quit)
	if firing {
		log.Debugf("refresh scheduler stopping after the current tick")
		return
	}
	s.wg.Wait()
	log.Debugf("refresh scheduler stopped")
}

// Running reports whether the scheduler is ticking
func (s *Scheduler) Running() bool {
	s.m.Lock()
	defer s.m.Unlock()
	return s.quit != nil
}

func (s *Scheduler) run(quit <-chan struct{}) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.tickPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			select {
			case <-quit:
				return
			default:
			}
			s.tick(true)
		case <-quit:
			return
		}
	}
}

// Tick updates the progress and fires all tasks in registration order once the interval has elapsed
func (s *Scheduler) Tick() {
	s.tick(false)
}

func (s *Scheduler) tick(ticker bool) {
	interval := s.setting.Get()
	now := s.clock.Now()

	s.m.Lock()
	if interval <= 0 {
		// a re-enabled interval starts a fresh cycle
		s.start = now
		s.progress = 0
		s.m.Unlock()
		return
	}
	if s.start.IsZero() {
		s.start = now
	}
	elapsed := now.Sub(s.start)
	ratio := float64(elapsed) / float64(interval)
	if ratio > 1 {
		ratio = 1
	}
	if ratio < 0 {
		ratio = 0
	}
	s.progress = ratio * 100
	if elapsed < interval {
		s.m.Unlock()
		return
	}

	snapshot := make([]task, len(s.tasks))
	copy(snapshot, s.tasks)
	if ticker {
		s.firing = true
	}
	s.m.Unlock()

	log.Debugf("refresh interval %s elapsed, refreshing %d resources", interval, len(snapshot))
	for _, t := range snapshot {
		s.invoke(t)
	}

	s.m.Lock()
	if ticker {
		s.firing = false
	}
	s.start = s.clock.Now()
	s.progress = 0
	s.m.Unlock()
}

func (s *Scheduler) invoke(t task) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("refresh of %s panicked: %v", t.key, r)
		}
	}()
	t.fn()
}

// Register adds a task for key, registering an existing key replaces its callback
func (s *Scheduler) Register(key string, fn func()) {
	s.m.Lock()
	defer s.m.Unlock()

	if i, ok := s.index[key]; ok {
		s.tasks[i].fn = fn
		return
	}
	s.index[key] = len(s.tasks)
	s.tasks = append(s.tasks, task{key: key, fn: fn})
}

// Deregister removes the task for key
func (s *Scheduler) Deregister(key string) {
	s.m.Lock()
	defer s.m.Unlock()

	i, ok := s.index[key]
	if !ok {
		return
	}
	s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
	delete(s.index, key)
	for j := i; j < len(s.tasks); j++ {
		s.index[s.tasks[j].key] = j
	}
}

// Tasks returns the registered keys in registration order
func (s *Scheduler) Tasks() []string {
	s.m.Lock()
	defer s.m.Unlock()

	keys := make([]string, len(s.tasks))
	for i, t := range s.tasks {
		keys[i] = t.key
	}
	return keys
}

// Progress returns the elapsed share of the current interval in percent
func (s *Scheduler) Progress() float64 {
	s.m.Lock()
	defer s.m.Unlock()
	return s.progress
}

// Interval returns the currently configured refresh interval
func (s *Scheduler) Interval() time.Duration {
	return s.setting.Get()
}
