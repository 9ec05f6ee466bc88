package clock

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Scheduler tracks one deadline callback per key. Scheduling a key that
// already has a pending callback replaces it; settling cancels it. Callbacks
// run on their own goroutine (the timer's), so callees must do their own
// locking.
type Scheduler struct {
	clock  Clock
	mu     sync.Mutex
	timers map[uuid.UUID]Timer
	closed bool
}

func NewScheduler(clock Clock) *Scheduler {
	return &Scheduler{
		clock:  clock,
		timers: make(map[uuid.UUID]Timer),
	}
}

// Schedule arranges for fn to run at the given instant. Deadlines already in
// the past fire immediately on the timer goroutine.
func (s *Scheduler) Schedule(key uuid.UUID, at time.Time, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	if prev, ok := s.timers[key]; ok {
		prev.Stop()
	}

	d := at.Sub(s.clock.Now())
	if d < 0 {
		d = 0
	}
	s.timers[key] = s.clock.AfterFunc(d, func() {
		s.mu.Lock()
		delete(s.timers, key)
		s.mu.Unlock()
		fn()
	})
}

// Cancel stops the pending callback for key, if any.
func (s *Scheduler) Cancel(key uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[key]; ok {
		t.Stop()
		delete(s.timers, key)
	}
}

// Pending reports whether key has a callback waiting to fire.
func (s *Scheduler) Pending(key uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[key]
	return ok
}

// Shutdown cancels all pending callbacks. The scheduler accepts no further
// work afterwards.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for key, t := range s.timers {
		t.Stop()
		delete(s.timers, key)
	}
}
