package watch

import (
	"log/slog"
	"sync"
	"time"
)

// Scheduler coalesces bursts of change reasons into a single trigger.
// Every Record restarts the quiet period; when it elapses the pending set
// is taken as a whole and passed to the fire callback. Reasons recorded
// afterwards start a new, empty set.
type Scheduler struct {
	quiet time.Duration
	fire  func(reasons []string)

	mu      sync.Mutex
	pending map[string]struct{}
	order   []string
	timer   *time.Timer
	gen     uint64
	stopped bool
}

// NewScheduler creates a scheduler that waits for quiet before calling fire
// with the reasons recorded since the previous trigger, in first-seen order.
func NewScheduler(quiet time.Duration, fire func(reasons []string)) *Scheduler {
	return &Scheduler{
		quiet:   quiet,
		fire:    fire,
		pending: make(map[string]struct{}),
	}
}

// Record adds reason to the pending set and restarts the quiet period.
// Duplicate reasons collapse into one entry.
func (s *Scheduler) Record(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	if _, ok := s.pending[reason]; !ok {
		s.pending[reason] = struct{}{}
		s.order = append(s.order, reason)
	}

	if s.timer != nil {
		s.timer.Stop()
	}

	// A timer whose Stop lost the race still runs; gen lets it see that it
	// was superseded.
	s.gen++
	gen := s.gen

	s.timer = time.AfterFunc(s.quiet, func() { s.flush(gen) })
}

func (s *Scheduler) flush(gen uint64) {
	s.mu.Lock()
	if s.stopped || gen != s.gen {
		s.mu.Unlock()
		return
	}

	reasons := s.order
	s.order = nil
	s.pending = make(map[string]struct{})
	s.timer = nil
	s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("scheduler trigger panicked", slog.Any("error", r))
		}
	}()

	s.fire(reasons)
}

// Pending returns a copy of the reasons waiting for the next trigger.
func (s *Scheduler) Pending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.order...)
}

// Stop cancels any pending trigger. Later Records are ignored.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
