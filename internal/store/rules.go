// internal/store/rules.go
package store

import (
	"context"
	"database/sql"
	"fmt"

	"nudge-engine/internal/models"

	"github.com/lib/pq"
)

// RuleStore reads per-agent notification rules.
type RuleStore struct {
	db *sql.DB
}

func NewRuleStore(db *sql.DB) *RuleStore {
	return &RuleStore{db: db}
}

// ActiveRulesForAgent returns the agent's active rules keyed by milestone
// type, wildcard included.
func (s *RuleStore) ActiveRulesForAgent(ctx context.Context, agentID string) (models.RuleSet, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, agent_id, milestone_type, days_before, auto_send,
		       recipient_roles, escalation_enabled, escalation_days, is_active
		FROM notification_rules
		WHERE agent_id = $1 AND is_active = TRUE`,
		agentID,
	)
	if err != nil {
		return nil, fmt.Errorf("select notification rules: %w", err)
	}
	defer rows.Close()

	set := models.RuleSet{}
	for rows.Next() {
		var r models.NotificationRule
		var roles pq.StringArray
		var escalationDays pq.Int64Array
		if err := rows.Scan(
			&r.ID, &r.AgentID, &r.MilestoneType, &r.DaysBefore, &r.AutoSend,
			&roles, &r.EscalationEnabled, &escalationDays, &r.IsActive,
		); err != nil {
			return nil, fmt.Errorf("scan notification rule: %w", err)
		}
		r.RecipientRoles = roles
		r.EscalationDays = make([]int, 0, len(escalationDays))
		for _, d := range escalationDays {
			r.EscalationDays = append(r.EscalationDays, int(d))
		}
		rule := r
		set[r.MilestoneType] = &rule
	}
	return set, rows.Err()
}
