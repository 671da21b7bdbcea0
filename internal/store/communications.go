// internal/store/communications.go
package store

import (
	"context"
	"database/sql"
	"fmt"

	"nudge-engine/internal/models"

	"github.com/google/uuid"
)

// CommunicationStore records actually-transmitted messages for the
// per-transaction timeline.
type CommunicationStore struct {
	db *sql.DB
}

func NewCommunicationStore(db *sql.DB) *CommunicationStore {
	return &CommunicationStore{db: db}
}

// Create inserts the durable proof of transmission. Called only by the
// dispatcher after a successful send.
func (s *CommunicationStore) Create(ctx context.Context, c *models.Communication) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Type == "" {
		c.Type = "email"
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO communications
			(id, transaction_id, milestone_id, type, recipient_email, subject,
			 body, status, delivery_status, provider_message_id,
			 notification_log_id, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		c.ID, c.TransactionID, nullStr(c.MilestoneID), c.Type,
		c.RecipientEmail, c.Subject, c.Body, c.Status,
		nullStr(c.DeliveryStatus), nullStr(c.ProviderMessageID),
		nullStr(c.NotificationLogID), c.SentAt,
	)
	if err != nil {
		return fmt.Errorf("insert communication: %w", err)
	}
	return nil
}

// ListForTransaction returns the transaction's communications, newest first.
func (s *CommunicationStore) ListForTransaction(ctx context.Context, transactionID string) ([]models.Communication, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, transaction_id, milestone_id, type, recipient_email,
		       subject, status, COALESCE(delivery_status, ''),
		       COALESCE(provider_message_id, ''), sent_at
		FROM communications
		WHERE transaction_id = $1
		ORDER BY sent_at DESC`,
		transactionID,
	)
	if err != nil {
		return nil, fmt.Errorf("select communications: %w", err)
	}
	defer rows.Close()

	var out []models.Communication
	for rows.Next() {
		var c models.Communication
		var milestoneID sql.NullString
		var sentAt sql.NullTime
		if err := rows.Scan(
			&c.ID, &c.TransactionID, &milestoneID, &c.Type, &c.RecipientEmail,
			&c.Subject, &c.Status, &c.DeliveryStatus, &c.ProviderMessageID,
			&sentAt,
		); err != nil {
			return nil, fmt.Errorf("scan communication: %w", err)
		}
		c.MilestoneID = milestoneID.String
		if sentAt.Valid {
			t := sentAt.Time
			c.SentAt = &t
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
