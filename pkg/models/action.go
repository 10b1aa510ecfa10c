package models

import "time"

// ActionKind identifies a remedial action requested from the external executor.
type ActionKind string

const (
	ActionKick             ActionKind = "kick"
	ActionBan              ActionKind = "ban"
	ActionTimeout          ActionKind = "timeout"
	ActionQuarantine       ActionKind = "quarantine"
	ActionRemoveQuarantine ActionKind = "remove_quarantine"
	ActionRemoveTimeout    ActionKind = "remove_timeout"
)

// ActionResult is the executor's report for a previously emitted request.
type ActionResult string

const (
	ResultApplied          ActionResult = "applied"
	ResultPermissionDenied ActionResult = "permission_denied"
	ResultNotFound         ActionResult = "not_found"
)

// ModerationActionRequest asks the external executor to apply one action.
// The engine never holds platform credentials; the executor reports back an
// ActionResult on the inbound event stream.
type ModerationActionRequest struct {
	RequestID string        `json:"request_id"`
	GuildID   string        `json:"guild_id"`
	UserID    string        `json:"user_id"`
	Kind      ActionKind    `json:"kind"`
	Duration  time.Duration `json:"duration,omitempty"`
	Reason    string        `json:"reason"`
	IssuedAt  time.Time     `json:"issued_at"`
}

// ActionResultReceived is the inbound executor report.
type ActionResultReceived struct {
	RequestID string       `json:"request_id"`
	GuildID   string       `json:"guild_id"`
	UserID    string       `json:"user_id"`
	Kind      ActionKind   `json:"kind"`
	Result    ActionResult `json:"result"`
}
