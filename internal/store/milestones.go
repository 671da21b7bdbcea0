// internal/store/milestones.go
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// MilestoneStore updates the reminder-tracking fields on milestones. The
// rest of the milestone lifecycle belongs to the CRUD layer.
type MilestoneStore struct {
	db *sql.DB
}

func NewMilestoneStore(db *sql.DB) *MilestoneStore {
	return &MilestoneStore{db: db}
}

// RecordReminder increments the milestone's reminder counter and records the
// escalation level of the intent just queued.
func (s *MilestoneStore) RecordReminder(ctx context.Context, milestoneID string, escalationLevel int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE milestones
		SET reminder_sent_count = reminder_sent_count + 1,
		    escalation_level = $1,
		    last_reminder_sent_at = $2
		WHERE id = $3`,
		escalationLevel, time.Now().UTC(), milestoneID,
	)
	if err != nil {
		return fmt.Errorf("record reminder: %w", err)
	}
	return nil
}
