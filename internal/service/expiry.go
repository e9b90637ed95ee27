package service

import (
	"sync"
	"time"
)

// ExpiryScheduler owns the cancellable display-window timers: the login
// error auto-clear and the reset-notice auto-close. At most one task is
// pending per key; scheduling again for the same key supersedes (and
// cancels) the earlier task, so a stale clear can never fire after a newer
// state was installed. Stop cancels everything outstanding on shutdown.
type ExpiryScheduler struct {
	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
}

// NewExpiryScheduler creates an empty scheduler.
func NewExpiryScheduler() *ExpiryScheduler {
	return &ExpiryScheduler{timers: make(map[string]*time.Timer)}
}

// Schedule runs fn after d, replacing any pending task for key.
func (s *ExpiryScheduler) Schedule(key string, d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	if t, ok := s.timers[key]; ok {
		t.Stop()
	}
	s.timers[key] = time.AfterFunc(d, func() {
		s.mu.Lock()
		delete(s.timers, key)
		stopped := s.stopped
		s.mu.Unlock()
		if !stopped {
			fn()
		}
	})
}

// Cancel drops the pending task for key, if any.
func (s *ExpiryScheduler) Cancel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[key]; ok {
		t.Stop()
		delete(s.timers, key)
	}
}

// Stop cancels all pending tasks and rejects new ones.
func (s *ExpiryScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	for key, t := range s.timers {
		t.Stop()
		delete(s.timers, key)
	}
}
