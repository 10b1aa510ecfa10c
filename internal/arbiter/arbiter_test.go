package arbiter

import (
	"testing"
	"time"

	"guardpost/internal/policy"
)

func TestDecideBotScoreThresholdOrder(t *testing.T) {
	p := policy.DefaultPolicy() // quarantine 55, kick 70, ban 85

	cases := []struct {
		score int
		want  Verdict
	}{
		{100, VerdictBan},
		{85, VerdictBan},
		{84, VerdictKick},
		{75, VerdictKick},
		{70, VerdictKick},
		{69, VerdictQuarantine},
		{55, VerdictQuarantine},
		{54, VerdictBeginVerification},
		{0, VerdictBeginVerification},
	}
	for _, tc := range cases {
		got := DecideBotScore(tc.score, p)
		if got.Verdict != tc.want {
			t.Fatalf("score %d: expected %v, got %v", tc.score, tc.want, got.Verdict)
		}
	}
}

func TestDecideBotScoreWithoutVerification(t *testing.T) {
	p := policy.DefaultPolicy()
	p.VerificationEnabled = false

	if got := DecideBotScore(40, p); got.Verdict != VerdictNone {
		t.Fatalf("expected none below quarantine with verification off, got %v", got.Verdict)
	}
}

func TestConfiguredQuarantineActionBelowThreshold(t *testing.T) {
	p := policy.DefaultPolicy()
	p.Action = policy.ActionQuarantine

	got := DecideBotScore(30, p)
	if got.Verdict != VerdictQuarantine {
		t.Fatalf("expected quarantine for scored member, got %v", got.Verdict)
	}
	if got.Duration != p.QuarantineDuration {
		t.Fatalf("expected quarantine duration %v, got %v", p.QuarantineDuration, got.Duration)
	}

	// Higher tiers still win, and clean members are left alone.
	if got := DecideBotScore(90, p); got.Verdict != VerdictBan {
		t.Fatalf("expected ban above ban threshold, got %v", got.Verdict)
	}
	if got := DecideBotScore(0, p); got.Verdict != VerdictBeginVerification {
		t.Fatalf("expected verification for unscored member, got %v", got.Verdict)
	}
}

func TestImpersonatorScoreGetsKicked(t *testing.T) {
	// Age under a day, lookalike name, no avatar: 40 + 25 + 10 = 75.
	got := DecideBotScore(75, policy.DefaultPolicy())
	if got.Verdict != VerdictKick {
		t.Fatalf("expected kick at score 75, got %v", got.Verdict)
	}
}

func TestBrokenPolicyFallsBackToVerification(t *testing.T) {
	p := policy.DefaultPolicy()
	p.KickThreshold = 90 // above ban

	got := DecideBotScore(95, p)
	if got.Verdict != VerdictBeginVerification {
		t.Fatalf("expected verification fallback, got %v", got.Verdict)
	}
	if !got.PolicyFallback || got.PolicyErr == nil {
		t.Fatalf("fallback not reported: %+v", got)
	}
}

func TestDecideSuspicion(t *testing.T) {
	p := policy.DefaultPolicy() // threshold 50, timeout 300s

	if got := DecideSuspicion(49, p); got.Verdict != VerdictNone {
		t.Fatalf("expected none below threshold, got %v", got.Verdict)
	}

	got := DecideSuspicion(50, p)
	if got.Verdict != VerdictTimeout {
		t.Fatalf("expected timeout at threshold, got %v", got.Verdict)
	}
	if got.Duration != 300*time.Second {
		t.Fatalf("expected 300s timeout, got %v", got.Duration)
	}
}

func TestDecideSuspicionZeroPolicyUsesDefaults(t *testing.T) {
	got := DecideSuspicion(60, policy.Policy{})
	if got.Verdict != VerdictTimeout || got.Duration != 300*time.Second {
		t.Fatalf("expected default-backed timeout, got %+v", got)
	}
}
