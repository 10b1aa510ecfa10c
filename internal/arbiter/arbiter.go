package arbiter

import (
	"fmt"
	"time"

	"guardpost/internal/policy"
)

// Verdict names the action the engine should request.
type Verdict int

const (
	// VerdictNone takes no action.
	VerdictNone Verdict = iota
	// VerdictBan permanently removes the subject.
	VerdictBan
	// VerdictKick removes the subject from the guild.
	VerdictKick
	// VerdictQuarantine restricts the subject pending review.
	VerdictQuarantine
	// VerdictBeginVerification starts an arithmetic challenge.
	VerdictBeginVerification
	// VerdictTimeout mutes the subject for a fixed duration.
	VerdictTimeout
)

// String returns the verdict name for logs and audit text.
func (v Verdict) String() string {
	switch v {
	case VerdictBan:
		return "ban"
	case VerdictKick:
		return "kick"
	case VerdictQuarantine:
		return "quarantine"
	case VerdictBeginVerification:
		return "begin_verification"
	case VerdictTimeout:
		return "timeout"
	default:
		return "none"
	}
}

// Decision is the arbiter's output for one signal.
type Decision struct {
	Verdict  Verdict
	Duration time.Duration
	Reason   string

	// PolicyFallback is set when the configured policy failed validation and
	// the verification-only fallback was applied instead.
	PolicyFallback bool
	PolicyErr      error
}

// DecideBotScore maps a heuristic bot score onto a verdict using first-match
// threshold order: ban, kick, quarantine, then verification.
func DecideBotScore(score int, p policy.Policy) Decision {
	if err := p.Validate(); err != nil {
		// Never ban or kick on a broken policy.
		return Decision{
			Verdict:        VerdictBeginVerification,
			Reason:         "policy invalid, verification fallback",
			PolicyFallback: true,
			PolicyErr:      err,
		}
	}

	switch {
	case score >= p.BanThreshold:
		return Decision{Verdict: VerdictBan, Reason: fmt.Sprintf("bot score %d >= ban threshold %d", score, p.BanThreshold)}
	case score >= p.KickThreshold:
		return Decision{Verdict: VerdictKick, Reason: fmt.Sprintf("bot score %d >= kick threshold %d", score, p.KickThreshold)}
	case score >= p.QuarantineThreshold:
		return Decision{
			Verdict:  VerdictQuarantine,
			Duration: p.QuarantineDuration,
			Reason:   fmt.Sprintf("bot score %d >= quarantine threshold %d", score, p.QuarantineThreshold),
		}
	case p.Action == policy.ActionQuarantine && score > 0:
		// A guild can opt to quarantine every scored member instead of
		// waiting for the threshold tiers.
		return Decision{
			Verdict:  VerdictQuarantine,
			Duration: p.QuarantineDuration,
			Reason:   fmt.Sprintf("bot score %d, configured action quarantine", score),
		}
	case p.VerificationEnabled:
		return Decision{Verdict: VerdictBeginVerification, Reason: "verification required for new members"}
	default:
		return Decision{}
	}
}

// DecideSuspicion maps an accumulated suspicion level onto a verdict. The
// suspicion ledger is independent of the bot score and only ever escalates to
// a timeout.
func DecideSuspicion(level int, p policy.Policy) Decision {
	threshold := p.SuspicionThreshold
	if threshold <= 0 {
		threshold = policy.DefaultPolicy().SuspicionThreshold
	}
	if level < threshold {
		return Decision{}
	}

	duration := p.TimeoutDuration
	if duration <= 0 {
		duration = policy.DefaultPolicy().TimeoutDuration
	}
	return Decision{
		Verdict:  VerdictTimeout,
		Duration: duration,
		Reason:   fmt.Sprintf("suspicion level %d >= threshold %d", level, threshold),
	}
}
