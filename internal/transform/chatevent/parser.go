package chatevent

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"guardpost/pkg/models"
)

// Inbound is one parsed gateway event. Exactly one payload pointer is set,
// matching Type.
type Inbound struct {
	Type string

	MemberJoined       *models.MemberJoined
	Message            *models.MessageReceived
	VerifyAnswer       *models.VerificationAnswerReceived
	ActionResult       *models.ActionResultReceived
	RestrictionCleared *models.RestrictionCleared
}

type envelope struct {
	Type             string `json:"type"`
	GuildID          string `json:"guild_id"`
	UserID           string `json:"user_id"`
	AccountCreatedAt string `json:"account_created_at"`
	DisplayName      string `json:"display_name"`
	HasAvatar        bool   `json:"has_avatar"`
	Content          string `json:"content"`
	MentionCount     int    `json:"mention_count"`
	RawText          string `json:"raw_text"`
	RequestID        string `json:"request_id"`
	Kind             string `json:"kind"`
	Result           string `json:"result"`
	Timestamp        string `json:"ts"`
}

// Parse converts a gateway envelope into a typed inbound event. A missing or
// unparseable timestamp falls back to received.
func Parse(data []byte, received time.Time) (*Inbound, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	ts := received
	if parsed, ok := parseTime(env.Timestamp); ok {
		ts = parsed
	}

	switch env.Type {
	case models.EventMemberJoin:
		if env.GuildID == "" || env.UserID == "" {
			return nil, fmt.Errorf("member_join missing guild_id or user_id")
		}
		createdAt, ok := parseTime(env.AccountCreatedAt)
		if !ok {
			return nil, fmt.Errorf("member_join has invalid account_created_at %q", env.AccountCreatedAt)
		}
		return &Inbound{
			Type: env.Type,
			MemberJoined: &models.MemberJoined{
				GuildID:          env.GuildID,
				UserID:           env.UserID,
				AccountCreatedAt: createdAt,
				DisplayName:      env.DisplayName,
				HasAvatar:        env.HasAvatar,
				Timestamp:        ts,
			},
		}, nil

	case models.EventMessage:
		if env.GuildID == "" || env.UserID == "" {
			return nil, fmt.Errorf("message missing guild_id or user_id")
		}
		return &Inbound{
			Type: env.Type,
			Message: &models.MessageReceived{
				GuildID:      env.GuildID,
				UserID:       env.UserID,
				Content:      env.Content,
				MentionCount: env.MentionCount,
				Timestamp:    ts,
			},
		}, nil

	case models.EventVerifyAnswer:
		if env.UserID == "" {
			return nil, fmt.Errorf("verify_answer missing user_id")
		}
		return &Inbound{
			Type: env.Type,
			VerifyAnswer: &models.VerificationAnswerReceived{
				UserID:    env.UserID,
				RawText:   env.RawText,
				Timestamp: ts,
			},
		}, nil

	case models.EventActionResult:
		if env.UserID == "" {
			return nil, fmt.Errorf("action_result missing user_id")
		}
		return &Inbound{
			Type: env.Type,
			ActionResult: &models.ActionResultReceived{
				RequestID: env.RequestID,
				GuildID:   env.GuildID,
				UserID:    env.UserID,
				Kind:      models.ActionKind(env.Kind),
				Result:    models.ActionResult(env.Result),
			},
		}, nil

	case models.EventRestrictionCleared:
		if env.GuildID == "" || env.UserID == "" {
			return nil, fmt.Errorf("restriction_cleared missing guild_id or user_id")
		}
		return &Inbound{
			Type: env.Type,
			RestrictionCleared: &models.RestrictionCleared{
				GuildID: env.GuildID,
				UserID:  env.UserID,
				Kind:    models.ActionKind(env.Kind),
			},
		}, nil

	default:
		return nil, fmt.Errorf("unknown event type %q", env.Type)
	}
}

func parseTime(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}

	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}

	for _, layout := range []string{
		"2006-01-02 15:04:05.000000",
		"2006-01-02 15:04:05.000",
		"2006-01-02 15:04:05",
	} {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t.UTC(), true
		}
	}

	return time.Time{}, false
}
