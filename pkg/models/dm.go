package models

// DirectMessageKind distinguishes challenge prompts from result notices.
type DirectMessageKind string

const (
	DMChallenge DirectMessageKind = "challenge"
	DMResult    DirectMessageKind = "result"
)

// DirectMessageRequest asks the external messaging dispatcher to DM a user.
type DirectMessageRequest struct {
	UserID string            `json:"user_id"`
	Kind   DirectMessageKind `json:"kind"`
	Text   string            `json:"text"`
}
