package rules

import "guardpost/pkg/models"

// Engine applies content rules to messages.
type Engine interface {
	Apply(msg *models.MessageReceived) []models.RuleTag
}

// NoopEngine returns no tags.
type NoopEngine struct{}

// Apply returns an empty tag list.
func (n *NoopEngine) Apply(msg *models.MessageReceived) []models.RuleTag {
	return nil
}
