package sched

import (
	"sync/atomic"
	"testing"
	"time"
)

func waitFired(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not fire")
	}
}

func TestScheduleFiresOnce(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var fires int32
	done := make(chan struct{})
	s.Schedule("u1", KindTimeoutReversal, 10*time.Millisecond, func() {
		atomic.AddInt32(&fires, 1)
		close(done)
	})

	waitFired(t, done)
	time.Sleep(50 * time.Millisecond)
	if n := atomic.LoadInt32(&fires); n != 1 {
		t.Fatalf("expected exactly one fire, got %d", n)
	}
	if s.Len() != 0 {
		t.Fatalf("fired timer still tracked: %d", s.Len())
	}
}

func TestCancelPreventsFire(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var fires int32
	token := s.Schedule("u1", KindTimeoutReversal, 50*time.Millisecond, func() {
		atomic.AddInt32(&fires, 1)
	})
	if !s.Cancel(token) {
		t.Fatal("cancel of pending timer returned false")
	}

	time.Sleep(100 * time.Millisecond)
	if n := atomic.LoadInt32(&fires); n != 0 {
		t.Fatalf("cancelled timer fired %d times", n)
	}
}

func TestRescheduleReplacesTimer(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var first, second int32
	done := make(chan struct{})
	s.Schedule("u1", KindQuarantineReversal, 30*time.Millisecond, func() {
		atomic.AddInt32(&first, 1)
	})
	s.Schedule("u1", KindQuarantineReversal, 10*time.Millisecond, func() {
		atomic.AddInt32(&second, 1)
		close(done)
	})

	waitFired(t, done)
	time.Sleep(80 * time.Millisecond)
	if atomic.LoadInt32(&first) != 0 {
		t.Fatal("replaced timer fired")
	}
	if atomic.LoadInt32(&second) != 1 {
		t.Fatal("replacement timer did not fire exactly once")
	}
}

func TestStaleTokenCancelIsNoOp(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	stale := s.Schedule("u1", KindVerificationExpiry, time.Hour, func() {})
	fresh := s.Schedule("u1", KindVerificationExpiry, time.Hour, func() {})

	if s.Cancel(stale) {
		t.Fatal("stale token cancelled the active timer")
	}
	if !s.Cancel(fresh) {
		t.Fatal("fresh token failed to cancel")
	}
}

func TestTimerKindsAreIndependent(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	s.Schedule("u1", KindTimeoutReversal, time.Hour, func() {})
	s.Schedule("u1", KindQuarantineReversal, time.Hour, func() {})
	if s.Len() != 2 {
		t.Fatalf("expected 2 pending timers, got %d", s.Len())
	}

	s.CancelAll("u1")
	if s.Len() != 0 {
		t.Fatalf("CancelAll left %d timers", s.Len())
	}
}
