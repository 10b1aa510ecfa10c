package models

import "time"

// AuditKind classifies audit events for the external audit sink.
type AuditKind string

const (
	AuditBotDetected     AuditKind = "bot_detected"
	AuditSpamDetected    AuditKind = "spam_detected"
	AuditRaidDetected    AuditKind = "raid_detected"
	AuditActionRequested AuditKind = "action_requested"
	AuditActionFailed    AuditKind = "action_failed"
	AuditVerification    AuditKind = "verification"
	AuditPolicyFallback  AuditKind = "policy_fallback"
)

// AuditEvent is emitted to the external logging/audit sink. The engine does
// not render or deliver presentation; description is plain text.
type AuditEvent struct {
	GuildID     string    `json:"guild_id"`
	Kind        AuditKind `json:"kind"`
	Description string    `json:"description"`
	SubjectID   string    `json:"subject_id,omitempty"`
	ActorID     string    `json:"actor_id,omitempty"`
	Timestamp   time.Time `json:"ts"`
}
