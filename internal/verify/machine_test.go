package verify

import (
	"testing"
	"time"
)

func testMachine(now time.Time) *Machine {
	m := NewMachine(Config{Timeout: 5 * time.Minute})
	m.SetNow(func() time.Time { return now })
	// Operands are always 4 and 4, so the answer is 8.
	m.SetRandIntn(func(n int) int { return 3 })
	return m
}

func TestBeginIsIdempotent(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := testMachine(now)

	first, created := m.Begin("u1")
	if !created {
		t.Fatal("expected fresh challenge on first Begin")
	}
	if first.Question != "What is 4 + 4?" {
		t.Fatalf("unexpected question: %s", first.Question)
	}
	if !first.Deadline.Equal(now.Add(5 * time.Minute)) {
		t.Fatalf("unexpected deadline: %v", first.Deadline)
	}

	second, created := m.Begin("u1")
	if created {
		t.Fatal("second Begin created a new challenge")
	}
	if second.ID != first.ID {
		t.Fatalf("challenge id changed across Begin calls: %s vs %s", first.ID, second.ID)
	}
}

func TestSubmitCorrectAnswer(t *testing.T) {
	m := testMachine(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	m.Begin("u1")

	res := m.Submit("u1", " 8 ")
	if res.Status != SubmitCorrect {
		t.Fatalf("expected correct, got %v", res.Status)
	}
	if len(res.Effects) != 2 || res.Effects[0].Kind != EffectSendResult || res.Effects[1].Kind != EffectLiftRestriction {
		t.Fatalf("unexpected effects: %+v", res.Effects)
	}
	if m.Len() != 0 {
		t.Fatal("challenge survived a correct answer")
	}
}

func TestThreeIncorrectAttemptsFail(t *testing.T) {
	m := testMachine(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	m.Begin("u1")

	res := m.Submit("u1", "7")
	if res.Status != SubmitIncorrect || res.Remaining != 2 {
		t.Fatalf("expected incorrect with 2 remaining, got %+v", res)
	}
	// Non-numeric input burns an attempt.
	res = m.Submit("u1", "eight")
	if res.Status != SubmitIncorrect || res.Remaining != 1 {
		t.Fatalf("expected incorrect with 1 remaining, got %+v", res)
	}
	res = m.Submit("u1", "0")
	if res.Status != SubmitFailed {
		t.Fatalf("expected failure on third miss, got %+v", res)
	}
	if len(res.Effects) != 2 || res.Effects[1].Kind != EffectKick {
		t.Fatalf("expected kick effect on failure, got %+v", res.Effects)
	}
	if m.Len() != 0 {
		t.Fatal("failed challenge was not removed")
	}
}

func TestSubmitWithoutChallenge(t *testing.T) {
	m := testMachine(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	if res := m.Submit("u1", "8"); res.Status != SubmitNotPending {
		t.Fatalf("expected not pending, got %+v", res)
	}
}

func TestExpirePendingChallenge(t *testing.T) {
	m := testMachine(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	ch, _ := m.Begin("u1")

	res := m.Expire("u1", ch.ID)
	if res.Status != ExpireExpired {
		t.Fatalf("expected expiry, got %+v", res)
	}
	if len(res.Effects) != 2 || res.Effects[1].Kind != EffectKick {
		t.Fatalf("expected kick effect on expiry, got %+v", res.Effects)
	}
}

func TestExpireAfterResolutionIsNoOp(t *testing.T) {
	m := testMachine(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	ch, _ := m.Begin("u1")
	m.Submit("u1", "8")

	if res := m.Expire("u1", ch.ID); res.Status != ExpireNoOp {
		t.Fatalf("expected no-op after verification, got %+v", res)
	}
}

func TestExpireStaleChallengeIsNoOp(t *testing.T) {
	m := testMachine(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	old, _ := m.Begin("u1")
	m.Submit("u1", "8")
	fresh, created := m.Begin("u1")
	if !created || fresh.ID == old.ID {
		t.Fatalf("expected a fresh challenge after resolution")
	}

	// The old deadline firing must not touch the new challenge.
	if res := m.Expire("u1", old.ID); res.Status != ExpireNoOp {
		t.Fatalf("stale expiry was not a no-op: %+v", res)
	}
	if m.Len() != 1 {
		t.Fatal("stale expiry removed the active challenge")
	}
}

func TestDropDiscardsPendingChallenge(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := testMachine(now)

	ch, _ := m.Begin("u1")
	m.Drop("u1")

	if m.Len() != 0 {
		t.Fatalf("challenge survived Drop: %d pending", m.Len())
	}
	if res := m.Submit("u1", "8"); res.Status != SubmitNotPending {
		t.Fatalf("expected not-pending after Drop, got %v", res.Status)
	}
	if res := m.Expire("u1", ch.ID); res.Status != ExpireNoOp {
		t.Fatalf("expected no-op expiry after Drop, got %v", res.Status)
	}
	// Dropping an unknown user is harmless.
	m.Drop("u2")
}
