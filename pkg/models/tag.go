package models

// RuleTag annotates a message that matched a content rule.
type RuleTag struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name,omitempty"`
	Severity string `json:"severity,omitempty"`
}

// Weight maps a rule severity to a suspicion-ledger increment.
func (t RuleTag) Weight(base int) int {
	switch t.Severity {
	case "critical":
		return base * 3
	case "high":
		return base * 2
	default:
		return base
	}
}
