package policy

import (
	"fmt"
	"time"
)

// ActionQuarantine is the configured-action value that forces quarantine for
// any scored member regardless of the threshold tiers.
const ActionQuarantine = "quarantine"

// Policy holds the per-guild moderation thresholds. Zero-valued fields in an
// override inherit the default.
type Policy struct {
	KickThreshold       int           `yaml:"kick_threshold"`
	BanThreshold        int           `yaml:"ban_threshold"`
	QuarantineThreshold int           `yaml:"quarantine_threshold"`
	Action              string        `yaml:"action"`
	SuspicionThreshold  int           `yaml:"suspicion_threshold"`
	SpamIncrement       int           `yaml:"spam_increment"`
	SpamWindow          time.Duration `yaml:"spam_window"`
	MaxMessages         int           `yaml:"max_messages"`
	MaxMentions         int           `yaml:"max_mentions"`
	TimeoutDuration     time.Duration `yaml:"timeout_duration"`
	QuarantineDuration  time.Duration `yaml:"quarantine_duration"`
	MaxJoins            int           `yaml:"max_joins"`
	JoinWindow          time.Duration `yaml:"join_window"`
	VerificationEnabled bool          `yaml:"verification_enabled"`
	WhitelistedUsers    []string      `yaml:"whitelisted_users"`
}

// DefaultPolicy returns the baseline policy applied when no configuration is
// provided.
func DefaultPolicy() Policy {
	return Policy{
		KickThreshold:       70,
		BanThreshold:        85,
		QuarantineThreshold: 55,
		SuspicionThreshold:  50,
		SpamIncrement:       10,
		SpamWindow:          10 * time.Second,
		MaxMessages:         10,
		MaxMentions:         5,
		TimeoutDuration:     300 * time.Second,
		QuarantineDuration:  time.Hour,
		MaxJoins:            10,
		JoinWindow:          300 * time.Second,
		VerificationEnabled: true,
	}
}

// IsWhitelisted reports whether userID is exempt from detection in this guild.
func (p Policy) IsWhitelisted(userID string) bool {
	for _, id := range p.WhitelistedUsers {
		if id == userID {
			return true
		}
	}
	return false
}

// Validate reports whether the thresholds are usable by the arbiter.
func (p Policy) Validate() error {
	if p.KickThreshold <= 0 || p.BanThreshold <= 0 || p.QuarantineThreshold <= 0 {
		return fmt.Errorf("thresholds must be positive: kick=%d ban=%d quarantine=%d",
			p.KickThreshold, p.BanThreshold, p.QuarantineThreshold)
	}
	if p.KickThreshold >= p.BanThreshold {
		return fmt.Errorf("kick threshold %d must be below ban threshold %d",
			p.KickThreshold, p.BanThreshold)
	}
	if p.QuarantineThreshold >= p.KickThreshold {
		return fmt.Errorf("quarantine threshold %d must be below kick threshold %d",
			p.QuarantineThreshold, p.KickThreshold)
	}
	if p.SuspicionThreshold <= 0 {
		return fmt.Errorf("suspicion threshold must be positive: %d", p.SuspicionThreshold)
	}
	return nil
}

// merge overlays non-zero override fields onto the base policy.
func merge(base, override Policy) Policy {
	out := base
	if override.KickThreshold != 0 {
		out.KickThreshold = override.KickThreshold
	}
	if override.BanThreshold != 0 {
		out.BanThreshold = override.BanThreshold
	}
	if override.QuarantineThreshold != 0 {
		out.QuarantineThreshold = override.QuarantineThreshold
	}
	if override.Action != "" {
		out.Action = override.Action
	}
	if override.SuspicionThreshold != 0 {
		out.SuspicionThreshold = override.SuspicionThreshold
	}
	if override.SpamIncrement != 0 {
		out.SpamIncrement = override.SpamIncrement
	}
	if override.SpamWindow != 0 {
		out.SpamWindow = override.SpamWindow
	}
	if override.MaxMessages != 0 {
		out.MaxMessages = override.MaxMessages
	}
	if override.MaxMentions != 0 {
		out.MaxMentions = override.MaxMentions
	}
	if override.TimeoutDuration != 0 {
		out.TimeoutDuration = override.TimeoutDuration
	}
	if override.QuarantineDuration != 0 {
		out.QuarantineDuration = override.QuarantineDuration
	}
	if override.MaxJoins != 0 {
		out.MaxJoins = override.MaxJoins
	}
	if override.JoinWindow != 0 {
		out.JoinWindow = override.JoinWindow
	}
	// Overrides can enable verification but not disable it.
	if override.VerificationEnabled {
		out.VerificationEnabled = true
	}
	if len(override.WhitelistedUsers) > 0 {
		out.WhitelistedUsers = append([]string(nil), override.WhitelistedUsers...)
	}
	return out
}
