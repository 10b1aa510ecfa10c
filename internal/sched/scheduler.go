package sched

import (
	"sync"
	"time"
)

// Kind names a timer class. At most one timer per (subject, kind) is active.
type Kind string

const (
	// KindVerificationExpiry fires when a challenge deadline passes.
	KindVerificationExpiry Kind = "verification_expiry"
	// KindQuarantineReversal lifts an expired quarantine.
	KindQuarantineReversal Kind = "quarantine_reversal"
	// KindTimeoutReversal lifts an expired timeout.
	KindTimeoutReversal Kind = "timeout_reversal"
)

// Token identifies one scheduled timer for cancellation.
type Token struct {
	subject string
	kind    Kind
	gen     uint64
}

type entry struct {
	timer *time.Timer
	gen   uint64
}

// Scheduler runs delayed reversal and expiry callbacks. Cancellation is
// advisory: a fire racing a cancel may still run, so handlers must re-check
// authoritative state before acting.
type Scheduler struct {
	mu     sync.Mutex
	timers map[Token]*entry
	gen    uint64
}

// NewScheduler creates a scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{timers: make(map[Token]*entry)}
}

// Schedule arms fire to run after delay. An existing timer for the same
// (subject, kind) is replaced. The callback runs at most once per Schedule
// call, on the timer goroutine.
func (s *Scheduler) Schedule(subject string, kind Kind, delay time.Duration, fire func()) Token {
	key := Token{subject: subject, kind: kind}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.timers[key]; ok {
		old.timer.Stop()
	}

	s.gen++
	gen := s.gen
	e := &entry{gen: gen}
	e.timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		cur, ok := s.timers[key]
		if !ok || cur.gen != gen {
			// Replaced or cancelled after arming.
			s.mu.Unlock()
			return
		}
		delete(s.timers, key)
		s.mu.Unlock()
		fire()
	})
	s.timers[key] = e

	key.gen = gen
	return key
}

// Cancel stops the timer identified by token, if it is still the active one.
// Returns whether a pending timer was removed.
func (s *Scheduler) Cancel(token Token) bool {
	key := Token{subject: token.subject, kind: token.kind}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.timers[key]
	if !ok || cur.gen != token.gen {
		return false
	}
	cur.timer.Stop()
	delete(s.timers, key)
	return true
}

// CancelKind stops the active timer for (subject, kind) regardless of
// generation. Returns whether a pending timer was removed.
func (s *Scheduler) CancelKind(subject string, kind Kind) bool {
	key := Token{subject: subject, kind: kind}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.timers[key]
	if !ok {
		return false
	}
	cur.timer.Stop()
	delete(s.timers, key)
	return true
}

// CancelAll stops every pending timer for subject. Used when a subject leaves
// the moderated state entirely.
func (s *Scheduler) CancelAll(subject string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, e := range s.timers {
		if key.subject == subject {
			e.timer.Stop()
			delete(s.timers, key)
		}
	}
}

// Len returns the number of pending timers.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels all pending timers.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, e := range s.timers {
		e.timer.Stop()
		delete(s.timers, key)
	}
}
