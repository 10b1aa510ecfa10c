package models

import "time"

// Inbound event type discriminators used by the platform-connection layer.
const (
	EventMemberJoin         = "member_join"
	EventMessage            = "message"
	EventVerifyAnswer       = "verify_answer"
	EventActionResult       = "action_result"
	EventRestrictionCleared = "restriction_cleared"
)

// MemberJoined reports a new member entering a guild.
type MemberJoined struct {
	GuildID          string    `json:"guild_id"`
	UserID           string    `json:"user_id"`
	AccountCreatedAt time.Time `json:"account_created_at"`
	DisplayName      string    `json:"display_name"`
	HasAvatar        bool      `json:"has_avatar"`
	Timestamp        time.Time `json:"ts"`
}

// MessageReceived reports a guild message.
type MessageReceived struct {
	GuildID      string    `json:"guild_id"`
	UserID       string    `json:"user_id"`
	Content      string    `json:"content"`
	MentionCount int       `json:"mention_count"`
	Timestamp    time.Time `json:"ts"`
}

// VerificationAnswerReceived carries a member's reply to a pending challenge.
type VerificationAnswerReceived struct {
	UserID    string    `json:"user_id"`
	RawText   string    `json:"raw_text"`
	Timestamp time.Time `json:"ts"`
}

// RestrictionCleared reports a manual reversal performed outside the engine,
// for example a moderator lifting a quarantine by hand.
type RestrictionCleared struct {
	GuildID string     `json:"guild_id"`
	UserID  string     `json:"user_id"`
	Kind    ActionKind `json:"kind"`
}
