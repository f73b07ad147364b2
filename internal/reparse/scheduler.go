// Package reparse decides when a document with pending edits is parsed.
// A Scheduler holds at most one pending run; it can be reset by new edits,
// cancelled, or forced to run synchronously.
package reparse

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/t-wilkinson/zortex.nvim-sub001/internal/clock"
)

// Policy selects how Schedule turns edits into parses.
type Policy string

const (
	// Immediate parses as soon as possible after each edit.
	Immediate Policy = "immediate"
	// Debounce parses once no edit arrived for the delay.
	Debounce Policy = "debounce"
	// Deferred parses only on Force, typically the save signal.
	Deferred Policy = "deferred"
)

// DefaultDelay is the debounce window used when none is configured.
const DefaultDelay = 300 * time.Millisecond

// ParsePolicy validates a policy name.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case Immediate, Debounce, Deferred:
		return p, nil
	case "":
		return Debounce, nil
	default:
		return "", fmt.Errorf("reparse: unknown policy %q", s)
	}
}

// Scheduler runs a callback according to a Policy. A run that has started
// is never interrupted; Cancel only drops work that has not started.
type Scheduler struct {
	mu      sync.Mutex
	policy  Policy
	delay   time.Duration
	run     func()
	clock   clock.Clock
	logger  *slog.Logger
	timer   *clock.Timer
	pending bool
	gen     uint64
	stopped bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the time source for timers.
func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithLogger sets the scheduler logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// New returns a scheduler that calls run.
func New(policy Policy, delay time.Duration, run func(), opts ...Option) *Scheduler {
	if delay <= 0 {
		delay = DefaultDelay
	}
	s := &Scheduler{
		policy: policy,
		delay:  delay,
		run:    run,
		clock:  clock.Real(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy returns the configured policy.
func (s *Scheduler) Policy() Policy { return s.policy }

// Schedule registers that edits are waiting.
func (s *Scheduler) Schedule() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.pending = true

	switch s.policy {
	case Deferred:
		return
	case Immediate:
		if s.timer == nil {
			s.arm(0)
		}
	default:
		if s.timer != nil {
			s.timer.Stop()
		}
		s.arm(s.delay)
	}
}

// arm must be called with s.mu held.
func (s *Scheduler) arm(d time.Duration) {
	s.gen++
	gen := s.gen
	s.timer = s.clock.AfterFunc(d, func() { s.fire(gen) })
}

func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || !s.pending || s.stopped {
		s.mu.Unlock()
		return
	}
	s.pending = false
	s.timer = nil
	s.mu.Unlock()

	s.logger.Debug("reparse: timer fired", slog.String("policy", string(s.policy)))
	s.run()
}

// Cancel drops pending work and reports whether there was any.
func (s *Scheduler) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelLocked()
}

func (s *Scheduler) cancelLocked() bool {
	was := s.pending
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
	s.pending = false
	return was
}

// Force cancels any pending timer and runs the callback synchronously.
func (s *Scheduler) Force() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.cancelLocked()
	s.mu.Unlock()
	s.run()
}

// Pending reports whether a run is waiting.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Stop cancels pending work; later Schedule and Force calls do nothing.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
	s.stopped = true
}
