// internal/models/rule.go
package models

// WildcardMilestoneType matches every milestone type without a specific rule.
const WildcardMilestoneType = "*"

type NotificationRule struct {
	ID                string   `json:"id"`
	AgentID           string   `json:"agentId"`
	MilestoneType     string   `json:"milestoneType"` // specific type or '*' for all
	DaysBefore        int      `json:"daysBefore"`
	AutoSend          bool     `json:"autoSend"`
	RecipientRoles    []string `json:"recipientRoles"`
	EscalationEnabled bool     `json:"escalationEnabled"`
	EscalationDays    []int    `json:"escalationDays"` // non-decreasing, default [1,3,7]
	IsActive          bool     `json:"isActive"`
}

// DefaultEscalationDays is applied when a rule has no thresholds configured.
var DefaultEscalationDays = []int{1, 3, 7}

// EffectiveEscalationDays returns the configured thresholds or the default.
func (r *NotificationRule) EffectiveEscalationDays() []int {
	if len(r.EscalationDays) == 0 {
		return DefaultEscalationDays
	}
	return r.EscalationDays
}

// RuleSet holds an agent's active rules keyed by milestone type.
type RuleSet map[string]*NotificationRule

// Resolve returns the rule for a milestone type: exact match first, then the
// wildcard rule, then nil.
func (s RuleSet) Resolve(milestoneType string) *NotificationRule {
	if r, ok := s[milestoneType]; ok {
		return r
	}
	return s[WildcardMilestoneType]
}
