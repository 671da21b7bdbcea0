// internal/store/drafts.go
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	stderrors "nudge-engine/internal/common/errors"
	"nudge-engine/internal/models"

	"github.com/google/uuid"
)

// DraftStore persists agent-reviewed email drafts. Status transitions are
// guarded in SQL so concurrent approvals and the janitor cannot move a draft
// out of a terminal state.
type DraftStore struct {
	db *sql.DB
}

func NewDraftStore(db *sql.DB) *DraftStore {
	return &DraftStore{db: db}
}

func (s *DraftStore) Create(ctx context.Context, d *models.EmailDraft) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.Status == "" {
		d.Status = models.DraftStatusDraft
	}
	d.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO email_drafts
			(id, transaction_id, milestone_id, party_id, rule_id,
			 recipient_email, recipient_name, recipient_role, subject,
			 body_html, body_text, email_type, escalation_level, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		d.ID, d.TransactionID, nullStr(d.MilestoneID), nullStr(d.PartyID),
		nullStr(d.RuleID), d.RecipientEmail, nullStr(d.RecipientName),
		nullStr(d.RecipientRole), d.Subject, d.BodyHTML, nullStr(d.BodyText),
		d.EmailType, d.EscalationLevel, d.Status, d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert email draft: %w", err)
	}
	return nil
}

func (s *DraftStore) Get(ctx context.Context, id string) (*models.EmailDraft, error) {
	var d models.EmailDraft
	var approvedAt, rejectedAt, sentAt sql.NullTime
	var approvedBy, rejectedReason sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT id, transaction_id, recipient_email, subject, body_html,
		       email_type, escalation_level, status, approved_at, approved_by,
		       rejected_at, rejected_reason, sent_at, created_at
		FROM email_drafts
		WHERE id = $1`,
		id,
	).Scan(
		&d.ID, &d.TransactionID, &d.RecipientEmail, &d.Subject, &d.BodyHTML,
		&d.EmailType, &d.EscalationLevel, &d.Status, &approvedAt, &approvedBy,
		&rejectedAt, &rejectedReason, &sentAt, &d.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("select email draft: %w", err)
	}

	if approvedAt.Valid {
		t := approvedAt.Time
		d.ApprovedAt = &t
	}
	d.ApprovedBy = approvedBy.String
	if rejectedAt.Valid {
		t := rejectedAt.Time
		d.RejectedAt = &t
	}
	d.RejectedReason = rejectedReason.String
	if sentAt.Valid {
		t := sentAt.Time
		d.SentAt = &t
	}
	return &d, nil
}

// Approve moves a draft to approved. Only draft status may transition.
func (s *DraftStore) Approve(ctx context.Context, id, approverID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE email_drafts
		SET status = $1, approved_at = $2, approved_by = $3
		WHERE id = $4 AND status = $5`,
		models.DraftStatusApproved, time.Now().UTC(), approverID,
		id, models.DraftStatusDraft,
	)
	if err != nil {
		return fmt.Errorf("approve draft: %w", err)
	}
	return s.requireTransition(res, id, models.DraftStatusApproved)
}

// Reject moves a draft to rejected. Only draft status may transition.
func (s *DraftStore) Reject(ctx context.Context, id, reason string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE email_drafts
		SET status = $1, rejected_at = $2, rejected_reason = $3
		WHERE id = $4 AND status = $5`,
		models.DraftStatusRejected, time.Now().UTC(), reason,
		id, models.DraftStatusDraft,
	)
	if err != nil {
		return fmt.Errorf("reject draft: %w", err)
	}
	return s.requireTransition(res, id, models.DraftStatusRejected)
}

// MarkSent finalizes an approved draft after explicit send.
func (s *DraftStore) MarkSent(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE email_drafts SET status = $1, sent_at = $2
		WHERE id = $3 AND status = $4`,
		models.DraftStatusSent, at, id, models.DraftStatusApproved,
	)
	if err != nil {
		return fmt.Errorf("mark draft sent: %w", err)
	}
	return s.requireTransition(res, id, models.DraftStatusSent)
}

// ExpireStale transitions drafts still in draft status older than the cutoff
// to expired, and returns how many rows moved.
func (s *DraftStore) ExpireStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE email_drafts SET status = $1
		WHERE status = $2 AND created_at < $3`,
		models.DraftStatusExpired, models.DraftStatusDraft, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("expire stale drafts: %w", err)
	}
	return res.RowsAffected()
}

// ListForTransaction returns drafts for the approval UI, newest first.
func (s *DraftStore) ListForTransaction(ctx context.Context, transactionID, status string) ([]models.EmailDraft, error) {
	query := `
		SELECT id, transaction_id, recipient_email, subject, body_html,
		       email_type, escalation_level, status, created_at
		FROM email_drafts
		WHERE transaction_id = $1`
	args := []interface{}{transactionID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select email drafts: %w", err)
	}
	defer rows.Close()

	var out []models.EmailDraft
	for rows.Next() {
		var d models.EmailDraft
		if err := rows.Scan(
			&d.ID, &d.TransactionID, &d.RecipientEmail, &d.Subject, &d.BodyHTML,
			&d.EmailType, &d.EscalationLevel, &d.Status, &d.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan email draft: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *DraftStore) requireTransition(res sql.Result, id, to string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return stderrors.NewDraftTransitionError(id, "current", to)
	}
	return nil
}
