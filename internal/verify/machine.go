package verify

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const maxAttempts = 3

// Challenge is one pending arithmetic verification.
type Challenge struct {
	ID        string
	UserID    string
	Question  string
	Attempts  int
	CreatedAt time.Time
	Deadline  time.Time

	answer int
}

// SubmitStatus classifies the outcome of one answer submission.
type SubmitStatus int

const (
	// SubmitNotPending means the user has no active challenge.
	SubmitNotPending SubmitStatus = iota
	// SubmitCorrect means the user verified successfully.
	SubmitCorrect
	// SubmitIncorrect means the answer was wrong but attempts remain.
	SubmitIncorrect
	// SubmitFailed means no attempts remain.
	SubmitFailed
)

// ExpireStatus classifies the outcome of a deadline firing.
type ExpireStatus int

const (
	// ExpireNoOp means the challenge was already resolved or replaced.
	ExpireNoOp ExpireStatus = iota
	// ExpireExpired means the pending challenge timed out.
	ExpireExpired
)

// EffectKind names a side effect the caller must perform. The machine itself
// performs no I/O.
type EffectKind int

const (
	// EffectNone reports no side effect.
	EffectNone EffectKind = iota
	// EffectSendChallenge asks the caller to DM the challenge question.
	EffectSendChallenge
	// EffectSendResult asks the caller to DM a verification outcome.
	EffectSendResult
	// EffectLiftRestriction asks the caller to remove the unverified restriction.
	EffectLiftRestriction
	// EffectKick asks the caller to remove the user from the guild.
	EffectKick
)

// Effect is one typed side effect reported by a transition.
type Effect struct {
	Kind   EffectKind
	UserID string
	Text   string
}

// SubmitResult reports a Submit transition.
type SubmitResult struct {
	Status    SubmitStatus
	Remaining int
	Effects   []Effect
}

// ExpireResult reports an Expire transition.
type ExpireResult struct {
	Status  ExpireStatus
	Effects []Effect
}

// Config tunes challenge generation.
type Config struct {
	Timeout time.Duration
}

// Machine holds pending verification challenges keyed by user. Terminal
// transitions delete the entry; only pending state is stored.
type Machine struct {
	cfg Config

	mu       sync.Mutex
	pending  map[string]*Challenge
	now      func() time.Time
	randIntn func(n int) int
}

// NewMachine creates a verification machine.
func NewMachine(cfg Config) *Machine {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	return &Machine{
		cfg:      cfg,
		pending:  make(map[string]*Challenge),
		now:      time.Now,
		randIntn: rand.Intn,
	}
}

// SetNow overrides the clock, for tests.
func (m *Machine) SetNow(now func() time.Time) {
	m.now = now
}

// SetRandIntn overrides the operand source, for tests.
func (m *Machine) SetRandIntn(fn func(n int) int) {
	m.randIntn = fn
}

// Begin starts a challenge for userID, or returns the existing pending one.
// The bool reports whether a new challenge was created. Both paths carry a
// send-challenge effect so a lost DM can be replayed.
func (m *Machine) Begin(userID string) (Challenge, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.pending[userID]; ok {
		return *existing, false
	}

	now := m.now()
	a := m.randIntn(9) + 1
	b := m.randIntn(9) + 1
	ch := &Challenge{
		ID:        uuid.NewString(),
		UserID:    userID,
		Question:  fmt.Sprintf("What is %d + %d?", a, b),
		CreatedAt: now,
		Deadline:  now.Add(m.cfg.Timeout),
		answer:    a + b,
	}
	m.pending[userID] = ch
	return *ch, true
}

// Pending returns the active challenge for userID, if any.
func (m *Machine) Pending(userID string) (Challenge, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.pending[userID]
	if !ok {
		return Challenge{}, false
	}
	return *ch, true
}

// Submit applies one answer. Non-numeric input counts as an incorrect
// attempt. The third incorrect attempt fails the challenge.
func (m *Machine) Submit(userID, raw string) SubmitResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch, ok := m.pending[userID]
	if !ok {
		return SubmitResult{Status: SubmitNotPending}
	}

	answer, err := strconv.Atoi(strings.TrimSpace(raw))
	if err == nil && answer == ch.answer {
		delete(m.pending, userID)
		return SubmitResult{
			Status: SubmitCorrect,
			Effects: []Effect{
				{Kind: EffectSendResult, UserID: userID, Text: "Verification passed. Welcome!"},
				{Kind: EffectLiftRestriction, UserID: userID},
			},
		}
	}

	ch.Attempts++
	if ch.Attempts >= maxAttempts {
		delete(m.pending, userID)
		return SubmitResult{
			Status: SubmitFailed,
			Effects: []Effect{
				{Kind: EffectSendResult, UserID: userID, Text: "Verification failed."},
				{Kind: EffectKick, UserID: userID},
			},
		}
	}

	remaining := maxAttempts - ch.Attempts
	return SubmitResult{
		Status:    SubmitIncorrect,
		Remaining: remaining,
		Effects: []Effect{
			{
				Kind:   EffectSendResult,
				UserID: userID,
				Text:   fmt.Sprintf("Incorrect. %d attempt(s) remaining.", remaining),
			},
		},
	}
}

// Expire times out the challenge identified by challengeID. A mismatched or
// missing challenge means the deadline raced a resolution and is a no-op.
func (m *Machine) Expire(userID, challengeID string) ExpireResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch, ok := m.pending[userID]
	if !ok || ch.ID != challengeID {
		return ExpireResult{Status: ExpireNoOp}
	}

	delete(m.pending, userID)
	return ExpireResult{
		Status: ExpireExpired,
		Effects: []Effect{
			{Kind: EffectSendResult, UserID: userID, Text: "Verification timed out."},
			{Kind: EffectKick, UserID: userID},
		},
	}
}

// Drop silently discards any pending challenge for userID, for when the user
// leaves the system before resolving it. Unlike Expire it carries no effects.
func (m *Machine) Drop(userID string) {
	m.mu.Lock()
	delete(m.pending, userID)
	m.mu.Unlock()
}

// Len returns the number of pending challenges.
func (m *Machine) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}
