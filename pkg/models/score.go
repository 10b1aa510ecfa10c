package models

import "time"

// MemberSnapshot is the one-shot view of a newly observed member consumed by
// the heuristic scorer. It is never stored.
type MemberSnapshot struct {
	GuildID          string
	UserID           string
	DisplayName      string
	HasAvatar        bool
	AccountCreatedAt time.Time
	JoinedAt         time.Time
}

// ScoreResult is a bot-likelihood score with one reason per triggered rule,
// in evaluation order, for audit-log consumption.
type ScoreResult struct {
	Score   int      `json:"score"`
	Reasons []string `json:"reasons,omitempty"`
}
