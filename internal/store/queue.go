// internal/store/queue.go
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"nudge-engine/internal/models"

	"github.com/google/uuid"
)

// QueueStore persists the durable notification queue. The UNIQUE constraint
// on idempotency_key is the sole concurrency-control primitive for intent
// creation; overlapping scanner runs race on the insert and the loser
// no-ops.
type QueueStore struct {
	db *sql.DB
}

func NewQueueStore(db *sql.DB) *QueueStore {
	return &QueueStore{db: db}
}

// Enqueue inserts a new queued notification unless a row with the same
// idempotency key already exists. Reports whether a row was inserted.
func (s *QueueStore) Enqueue(ctx context.Context, n *models.NotificationLog) (bool, error) {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.Status == "" {
		n.Status = models.NotificationStatusQueued
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO notification_log
			(id, transaction_id, milestone_id, rule_id, type, escalation_level,
			 recipient_email, recipient_name, recipient_role, subject, status,
			 scheduled_for, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (idempotency_key) DO NOTHING`,
		n.ID, n.TransactionID, nullStr(n.MilestoneID), nullStr(n.RuleID),
		n.Type, n.EscalationLevel, n.RecipientEmail, nullStr(n.RecipientName),
		nullStr(n.RecipientRole), nullStr(n.Subject), n.Status,
		n.ScheduledFor, n.IdempotencyKey, time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("enqueue notification: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return inserted > 0, nil
}

// DueBatch returns up to limit queued rows due for dispatch, most urgent
// first: escalation level descending, then scheduled time ascending.
func (s *QueueStore) DueBatch(ctx context.Context, now time.Time, limit int) ([]models.NotificationLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, transaction_id, milestone_id, rule_id, type, escalation_level,
		       recipient_email, recipient_name, recipient_role, subject, status,
		       provider_message_id, scheduled_for, retry_count, idempotency_key
		FROM notification_log
		WHERE status = $1 AND scheduled_for <= $2
		ORDER BY escalation_level DESC, scheduled_for ASC
		LIMIT $3`,
		models.NotificationStatusQueued, now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select due batch: %w", err)
	}
	defer rows.Close()

	var out []models.NotificationLog
	for rows.Next() {
		var n models.NotificationLog
		var milestoneID, ruleID, name, role, subject, providerID sql.NullString
		if err := rows.Scan(
			&n.ID, &n.TransactionID, &milestoneID, &ruleID, &n.Type,
			&n.EscalationLevel, &n.RecipientEmail, &name, &role, &subject,
			&n.Status, &providerID, &n.ScheduledFor, &n.RetryCount,
			&n.IdempotencyKey,
		); err != nil {
			return nil, fmt.Errorf("scan due batch row: %w", err)
		}
		n.MilestoneID = milestoneID.String
		n.RuleID = ruleID.String
		n.RecipientName = name.String
		n.RecipientRole = role.String
		n.Subject = subject.String
		n.ProviderMessageID = providerID.String
		out = append(out, n)
	}
	return out, rows.Err()
}

// Claim moves a row from queued to sending. The WHERE status guard makes the
// claim atomic: a second dispatcher instance racing on the same row loses
// and skips it. scheduled_for is stamped with the claim time so that a
// backlog row does not look stale to RequeueStale while its send is in
// flight.
func (s *QueueStore) Claim(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE notification_log SET status = $1, scheduled_for = NOW()
		WHERE id = $2 AND status = $3`,
		models.NotificationStatusSending, id, models.NotificationStatusQueued,
	)
	if err != nil {
		return false, fmt.Errorf("claim notification: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkSent records a successful send and the provider-assigned message id.
func (s *QueueStore) MarkSent(ctx context.Context, id, providerMessageID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE notification_log
		SET status = $1, sent_at = $2, provider_message_id = $3, error_message = NULL
		WHERE id = $4`,
		models.NotificationStatusSent, at, providerMessageID, id,
	)
	if err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	return nil
}

// MarkCancelled records that the notification is no longer relevant, as
// opposed to undeliverable.
func (s *QueueStore) MarkCancelled(ctx context.Context, id, reason string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE notification_log SET status = $1, error_message = $2
		WHERE id = $3`,
		models.NotificationStatusCancelled, reason, id,
	)
	if err != nil {
		return fmt.Errorf("mark cancelled: %w", err)
	}
	return nil
}

// MarkFailed records a terminal delivery failure after retries ran out.
func (s *QueueStore) MarkFailed(ctx context.Context, id string, retryCount int, errMsg string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE notification_log SET status = $1, retry_count = $2, error_message = $3
		WHERE id = $4`,
		models.NotificationStatusFailed, retryCount, errMsg, id,
	)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

// Reschedule returns a row to the queue with its next attempt time after a
// transient failure. Content is untouched; retries are replay-safe.
func (s *QueueStore) Reschedule(ctx context.Context, id string, retryCount int, nextAt time.Time, errMsg string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE notification_log
		SET status = $1, retry_count = $2, scheduled_for = $3, error_message = $4
		WHERE id = $5`,
		models.NotificationStatusQueued, retryCount, nextAt, errMsg, id,
	)
	if err != nil {
		return fmt.Errorf("reschedule notification: %w", err)
	}
	return nil
}

// RequeueStale resets rows stuck in sending back to queued. Claim stamps
// scheduled_for, so a sending row whose scheduled_for is older than
// staleBefore was claimed by a dispatcher that crashed mid-send; the next
// pass picks it up again (at-least-once).
func (s *QueueStore) RequeueStale(ctx context.Context, staleBefore time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE notification_log SET status = $1
		WHERE status = $2 AND scheduled_for < $3`,
		models.NotificationStatusQueued, models.NotificationStatusSending, staleBefore,
	)
	if err != nil {
		return 0, fmt.Errorf("requeue stale: %w", err)
	}
	return res.RowsAffected()
}

// ApplyDeliveryEvent reconciles an asynchronous provider event against the
// queue record carrying that provider message id. Absolute values are set,
// never incremented, so replayed events are no-ops. Reports whether a row
// matched.
func (s *QueueStore) ApplyDeliveryEvent(ctx context.Context, ev models.DeliveryEvent, at time.Time) (bool, error) {
	var res sql.Result
	var err error

	switch ev.Type {
	case models.DeliveryEventDelivered:
		res, err = s.db.ExecContext(ctx, `
			UPDATE notification_log SET status = $1, delivered_at = $2
			WHERE provider_message_id = $3`,
			models.NotificationStatusDelivered, at, ev.ProviderMessageID,
		)
	case models.DeliveryEventOpened:
		// Enrichment only, status unchanged.
		res, err = s.db.ExecContext(ctx, `
			UPDATE notification_log SET opened_at = $1
			WHERE provider_message_id = $2`,
			at, ev.ProviderMessageID,
		)
	case models.DeliveryEventClicked:
		res, err = s.db.ExecContext(ctx, `
			UPDATE notification_log SET clicked_at = $1
			WHERE provider_message_id = $2`,
			at, ev.ProviderMessageID,
		)
	case models.DeliveryEventBounced:
		res, err = s.db.ExecContext(ctx, `
			UPDATE notification_log SET status = $1, bounced_at = $2, bounce_reason = $3
			WHERE provider_message_id = $4`,
			models.NotificationStatusBounced, at, ev.Detail, ev.ProviderMessageID,
		)
	case models.DeliveryEventComplained:
		res, err = s.db.ExecContext(ctx, `
			UPDATE notification_log SET status = $1
			WHERE provider_message_id = $2`,
			models.NotificationStatusComplained, ev.ProviderMessageID,
		)
	default:
		return false, fmt.Errorf("unsupported delivery event type: %s", ev.Type)
	}

	if err != nil {
		return false, fmt.Errorf("apply delivery event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// RecipientEmailByProviderID returns the recipient of the queue row carrying
// the provider message id, or empty when no row matches.
func (s *QueueStore) RecipientEmailByProviderID(ctx context.Context, providerMessageID string) (string, error) {
	var email string
	err := s.db.QueryRowContext(ctx, `
		SELECT recipient_email FROM notification_log
		WHERE provider_message_id = $1`,
		providerMessageID,
	).Scan(&email)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("select recipient by provider id: %w", err)
	}
	return email, nil
}

// LogsForTransaction returns the notification feed of one transaction,
// newest first, optionally filtered by status.
func (s *QueueStore) LogsForTransaction(ctx context.Context, transactionID, status string) ([]models.NotificationLog, error) {
	query := `
		SELECT id, transaction_id, milestone_id, type, escalation_level,
		       recipient_email, status, scheduled_for, retry_count, idempotency_key
		FROM notification_log
		WHERE transaction_id = $1`
	args := []interface{}{transactionID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select notification logs: %w", err)
	}
	defer rows.Close()

	var out []models.NotificationLog
	for rows.Next() {
		var n models.NotificationLog
		var milestoneID sql.NullString
		if err := rows.Scan(
			&n.ID, &n.TransactionID, &milestoneID, &n.Type, &n.EscalationLevel,
			&n.RecipientEmail, &n.Status, &n.ScheduledFor, &n.RetryCount,
			&n.IdempotencyKey,
		); err != nil {
			return nil, fmt.Errorf("scan notification log: %w", err)
		}
		n.MilestoneID = milestoneID.String
		out = append(out, n)
	}
	return out, rows.Err()
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
