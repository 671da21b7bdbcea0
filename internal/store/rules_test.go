// internal/store/rules_test.go
package store

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nudge-engine/internal/models"
)

func TestRuleStore_ActiveRulesForAgent(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	cols := []string{
		"id", "agent_id", "milestone_type", "days_before", "auto_send",
		"recipient_roles", "escalation_enabled", "escalation_days", "is_active",
	}
	rows := sqlmock.NewRows(cols).
		AddRow("rule-1", "agent-1", "inspection", 3, true,
			`{buyer,seller}`, true, `{1,3,7}`, true).
		AddRow("rule-2", "agent-1", "*", 5, false,
			`{buyer}`, false, `{}`, true)

	mock.ExpectQuery(`FROM notification_rules`).
		WithArgs("agent-1").
		WillReturnRows(rows)

	set, err := NewRuleStore(db).ActiveRulesForAgent(context.Background(), "agent-1")

	require.NoError(t, err)
	require.Len(t, set, 2)

	exact := set.Resolve("inspection")
	require.NotNil(t, exact)
	assert.Equal(t, "rule-1", exact.ID)
	assert.Equal(t, []string{"buyer", "seller"}, exact.RecipientRoles)
	assert.Equal(t, []int{1, 3, 7}, exact.EscalationDays)

	fallback := set.Resolve("appraisal")
	require.NotNil(t, fallback)
	assert.Equal(t, "rule-2", fallback.ID)
	assert.Equal(t, models.DefaultEscalationDays, fallback.EffectiveEscalationDays())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRuleSet_ResolveReturnsNilWithoutWildcard(t *testing.T) {
	set := models.RuleSet{
		"inspection": &models.NotificationRule{ID: "rule-1"},
	}
	assert.Nil(t, set.Resolve("appraisal"))
}
