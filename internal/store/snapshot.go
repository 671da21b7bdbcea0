// internal/store/snapshot.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"nudge-engine/internal/models"

	"github.com/lib/pq"
)

// SnapshotStore is the read-only view over transactions, milestones and
// parties that rule evaluation needs. The owning CRUD layer writes these
// tables; the scanner only reads them.
type SnapshotStore struct {
	db *sql.DB
}

func NewSnapshotStore(db *sql.DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

// AgentsWithActiveTransactions returns every distinct agent owning at least
// one in-flight transaction.
func (s *SnapshotStore) AgentsWithActiveTransactions(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT u.id, u.email, u.name, COALESCE(u.timezone, ''), u.vacation_mode
		FROM users u
		JOIN transactions t ON t.agent_id = u.id
		WHERE t.status = ANY($1)`,
		pq.Array(models.ActiveTransactionStatuses),
	)
	if err != nil {
		return nil, fmt.Errorf("select agents: %w", err)
	}
	defer rows.Close()

	var out []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.Timezone, &u.VacationMode); err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// ActiveTransactions returns the agent's in-flight transactions with their
// milestones and parties loaded.
func (s *SnapshotStore) ActiveTransactions(ctx context.Context, agentID string) ([]models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, agent_id, status, notification_overrides
		FROM transactions
		WHERE agent_id = $1 AND status = ANY($2)`,
		agentID, pq.Array(models.ActiveTransactionStatuses),
	)
	if err != nil {
		return nil, fmt.Errorf("select transactions: %w", err)
	}
	defer rows.Close()

	var txns []models.Transaction
	for rows.Next() {
		var t models.Transaction
		var overrides []byte
		if err := rows.Scan(&t.ID, &t.AgentID, &t.Status, &overrides); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if len(overrides) > 0 {
			var o models.NotificationOverrides
			if err := json.Unmarshal(overrides, &o); err == nil {
				t.Overrides = &o
			}
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range txns {
		milestones, err := s.milestonesForTransaction(ctx, txns[i].ID)
		if err != nil {
			return nil, err
		}
		txns[i].Milestones = milestones

		parties, err := s.partiesForTransaction(ctx, txns[i].ID)
		if err != nil {
			return nil, err
		}
		txns[i].Parties = parties
	}

	return txns, nil
}

func (s *SnapshotStore) milestonesForTransaction(ctx context.Context, transactionID string) ([]models.Milestone, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, transaction_id, type, title, due_date, status,
		       responsible_party_role, reminder_days_before,
		       reminder_sent_count, escalation_level, reminders_paused_until
		FROM milestones
		WHERE transaction_id = $1`,
		transactionID,
	)
	if err != nil {
		return nil, fmt.Errorf("select milestones: %w", err)
	}
	defer rows.Close()

	var out []models.Milestone
	for rows.Next() {
		var m models.Milestone
		var dueDate, pausedUntil sql.NullTime
		var reminderDays sql.NullInt64
		if err := rows.Scan(
			&m.ID, &m.TransactionID, &m.Type, &m.Title, &dueDate, &m.Status,
			&m.ResponsiblePartyRole, &reminderDays,
			&m.ReminderSentCount, &m.EscalationLevel, &pausedUntil,
		); err != nil {
			return nil, fmt.Errorf("scan milestone: %w", err)
		}
		if dueDate.Valid {
			d := dueDate.Time
			m.DueDate = &d
		}
		if pausedUntil.Valid {
			p := pausedUntil.Time
			m.RemindersPausedUntil = &p
		}
		if reminderDays.Valid {
			r := int(reminderDays.Int64)
			m.ReminderDaysBefore = &r
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SnapshotStore) partiesForTransaction(ctx context.Context, transactionID string) ([]models.Party, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, transaction_id, role, name, COALESCE(email, ''),
		       email_bounced, unsubscribed_at, COALESCE(notification_preference, '')
		FROM parties
		WHERE transaction_id = $1`,
		transactionID,
	)
	if err != nil {
		return nil, fmt.Errorf("select parties: %w", err)
	}
	defer rows.Close()

	var out []models.Party
	for rows.Next() {
		var p models.Party
		var unsubscribedAt sql.NullTime
		if err := rows.Scan(
			&p.ID, &p.TransactionID, &p.Role, &p.Name, &p.Email,
			&p.EmailBounced, &unsubscribedAt, &p.NotificationPreference,
		); err != nil {
			return nil, fmt.Errorf("scan party: %w", err)
		}
		if unsubscribedAt.Valid {
			u := unsubscribedAt.Time
			p.UnsubscribedAt = &u
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// MilestoneStatus returns the current status of one milestone. The
// dispatcher re-reads it just before sending to catch milestones resolved
// after the scan.
func (s *SnapshotStore) MilestoneStatus(ctx context.Context, milestoneID string) (string, error) {
	var status string
	err := s.db.QueryRowContext(ctx, `
		SELECT status FROM milestones WHERE id = $1`,
		milestoneID,
	).Scan(&status)
	if err != nil {
		return "", fmt.Errorf("select milestone status: %w", err)
	}
	return status, nil
}
