package detect

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"guardpost/pkg/models"
)

// Point values for the additive bot-likelihood model.
const (
	pointsAccountVeryNew = 40
	pointsAccountNew     = 20
	pointsUsernameToken  = 25
	pointsUsernameDigits = 15
	pointsNoAvatar       = 10
	pointsJoinBurstHigh  = 30
	pointsJoinBurstLow   = 15

	joinBurstHighThreshold = 10
	joinBurstLowThreshold  = 6

	maxScore = 100
)

// Usernames containing any of these read as impersonation or automation.
var suspiciousTokens = []string{
	"discord", "nitro", "free", "gift", "official", "support",
	"moderator", "admin", "staff", "team", "bot", "auto",
}

// Scorer computes a one-shot bot-likelihood score for a new member. It is
// stateless and deterministic; the guild join rate is supplied by the caller.
type Scorer struct {
	now func() time.Time
}

// NewScorer creates a scorer.
func NewScorer() *Scorer {
	return &Scorer{now: time.Now}
}

// SetNow overrides the clock, for tests.
func (s *Scorer) SetNow(now func() time.Time) {
	s.now = now
}

// Score evaluates the snapshot against the point model. Points are summed,
// reasons emitted in evaluation order, and the total clamped to 100. Of the
// two join-burst tiers only the higher matching tier fires.
func (s *Scorer) Score(snapshot models.MemberSnapshot, guildJoinRate int) models.ScoreResult {
	score := 0
	var reasons []string

	ageDays := int(s.now().Sub(snapshot.AccountCreatedAt).Hours() / 24)
	switch {
	case ageDays < 1:
		score += pointsAccountVeryNew
		reasons = append(reasons, "Very new account (< 1 day)")
	case ageDays < 7:
		score += pointsAccountNew
		reasons = append(reasons, fmt.Sprintf("New account (%d days old)", ageDays))
	}

	name := strings.ToLower(snapshot.DisplayName)
	for _, token := range suspiciousTokens {
		if strings.Contains(name, token) {
			score += pointsUsernameToken
			reasons = append(reasons, "Suspicious username pattern")
			break
		}
	}

	if digitHeavy(name) {
		score += pointsUsernameDigits
		reasons = append(reasons, "Username is mostly digits")
	}

	if !snapshot.HasAvatar {
		score += pointsNoAvatar
		reasons = append(reasons, "No custom avatar")
	}

	switch {
	case guildJoinRate > joinBurstHighThreshold:
		score += pointsJoinBurstHigh
		reasons = append(reasons, "Mass join event in progress")
	case guildJoinRate >= joinBurstLowThreshold:
		score += pointsJoinBurstLow
		reasons = append(reasons, "Rapid join pattern")
	}

	if score > maxScore {
		score = maxScore
	}
	return models.ScoreResult{Score: score, Reasons: reasons}
}

func digitHeavy(name string) bool {
	if name == "" {
		return false
	}
	digits := 0
	total := 0
	for _, r := range name {
		total++
		if unicode.IsDigit(r) {
			digits++
		}
	}
	return digits*2 > total
}
