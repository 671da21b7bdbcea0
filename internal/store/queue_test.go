// internal/store/queue_test.go
package store

import (
	"context"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nudge-engine/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

func newMockQueueStore(t *testing.T) (*QueueStore, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewQueueStore(db), mock
}

func queuedNotification() *models.NotificationLog {
	return &models.NotificationLog{
		TransactionID:   "txn-1",
		MilestoneID:     "ms-1",
		Type:            models.NotificationTypeReminder,
		EscalationLevel: 0,
		RecipientEmail:  "buyer@example.com",
		ScheduledFor:    time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC),
		IdempotencyKey:  "ms-1:buyer@example.com:reminder:2026-03-10",
	}
}

// ==========================
// Enqueue
// ==========================

func TestQueueStore_Enqueue_InsertsNewRow(t *testing.T) {
	store, mock := newMockQueueStore(t)

	mock.ExpectExec(`INSERT INTO notification_log`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	n := queuedNotification()
	inserted, err := store.Enqueue(context.Background(), n)

	assert.NoError(t, err)
	assert.True(t, inserted)
	assert.NotEmpty(t, n.ID)
	assert.Equal(t, models.NotificationStatusQueued, n.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueueStore_Enqueue_DuplicateKeyIsNoOp(t *testing.T) {
	store, mock := newMockQueueStore(t)

	// ON CONFLICT DO NOTHING reports zero rows affected for the loser.
	mock.ExpectExec(`INSERT INTO notification_log`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err := store.Enqueue(context.Background(), queuedNotification())

	assert.NoError(t, err)
	assert.False(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// DueBatch / Claim
// ==========================

func TestQueueStore_DueBatch_OrdersByUrgency(t *testing.T) {
	store, mock := newMockQueueStore(t)
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

	cols := []string{
		"id", "transaction_id", "milestone_id", "rule_id", "type",
		"escalation_level", "recipient_email", "recipient_name",
		"recipient_role", "subject", "status", "provider_message_id",
		"scheduled_for", "retry_count", "idempotency_key",
	}
	rows := sqlmock.NewRows(cols).
		AddRow("n-3", "txn-1", "ms-3", nil, "overdue_l3", 3,
			"agent@example.com", nil, nil, nil, "queued", nil,
			now.Add(-time.Hour), 0, "k3").
		AddRow("n-1", "txn-1", "ms-1", nil, "reminder", 0,
			"buyer@example.com", nil, nil, nil, "queued", nil,
			now.Add(-2*time.Hour), 1, "k1")

	mock.ExpectQuery(`ORDER BY escalation_level DESC, scheduled_for ASC`).
		WithArgs(models.NotificationStatusQueued, now, 50).
		WillReturnRows(rows)

	batch, err := store.DueBatch(context.Background(), now, 50)

	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, "n-3", batch[0].ID)
	assert.Equal(t, 3, batch[0].EscalationLevel)
	assert.Equal(t, "overdue_l3", batch[0].Type)
	assert.Equal(t, 1, batch[1].RetryCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueueStore_Claim_WinsWhenQueued(t *testing.T) {
	store, mock := newMockQueueStore(t)

	// The claim must refresh scheduled_for, otherwise a backlog row counts
	// as stale the moment it is claimed and a second instance resends it.
	mock.ExpectExec(`UPDATE notification_log SET status = \$1, scheduled_for = NOW\(\)`).
		WithArgs(models.NotificationStatusSending, "n-1", models.NotificationStatusQueued).
		WillReturnResult(sqlmock.NewResult(0, 1))

	claimed, err := store.Claim(context.Background(), "n-1")

	assert.NoError(t, err)
	assert.True(t, claimed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueueStore_Claim_LosesWhenAlreadyClaimed(t *testing.T) {
	store, mock := newMockQueueStore(t)

	mock.ExpectExec(`UPDATE notification_log SET status = \$1, scheduled_for = NOW\(\)`).
		WithArgs(models.NotificationStatusSending, "n-1", models.NotificationStatusQueued).
		WillReturnResult(sqlmock.NewResult(0, 0))

	claimed, err := store.Claim(context.Background(), "n-1")

	assert.NoError(t, err)
	assert.False(t, claimed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Terminal transitions
// ==========================

func TestQueueStore_Reschedule_RestoresQueuedStatus(t *testing.T) {
	store, mock := newMockQueueStore(t)
	nextAt := time.Date(2026, 3, 10, 15, 2, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE notification_log`).
		WithArgs(models.NotificationStatusQueued, 2, nextAt, "ses timeout", "n-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Reschedule(context.Background(), "n-1", 2, nextAt, "ses timeout")

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueueStore_RequeueStale_ReturnsCount(t *testing.T) {
	store, mock := newMockQueueStore(t)
	staleBefore := time.Date(2026, 3, 10, 14, 45, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE notification_log SET status`).
		WithArgs(models.NotificationStatusQueued, models.NotificationStatusSending, staleBefore).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := store.RequeueStale(context.Background(), staleBefore)

	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Delivery events
// ==========================

func TestQueueStore_ApplyDeliveryEvent(t *testing.T) {
	at := time.Date(2026, 3, 10, 16, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		event       models.DeliveryEvent
		expectQuery string
		expectArgs  []driver.Value
		rows        int64
		wantMatched bool
	}{
		{
			name:        "delivered updates status and timestamp",
			event:       models.DeliveryEvent{Type: "delivered", ProviderMessageID: "ses-1"},
			expectQuery: `UPDATE notification_log SET status = \$1, delivered_at = \$2`,
			expectArgs:  []driver.Value{models.NotificationStatusDelivered, at, "ses-1"},
			rows:        1,
			wantMatched: true,
		},
		{
			name:        "opened leaves status untouched",
			event:       models.DeliveryEvent{Type: "opened", ProviderMessageID: "ses-1"},
			expectQuery: `UPDATE notification_log SET opened_at = \$1`,
			expectArgs:  []driver.Value{at, "ses-1"},
			rows:        1,
			wantMatched: true,
		},
		{
			name:        "bounce records reason",
			event:       models.DeliveryEvent{Type: "bounced", ProviderMessageID: "ses-1", Detail: "mailbox full"},
			expectQuery: `UPDATE notification_log SET status = \$1, bounced_at = \$2, bounce_reason = \$3`,
			expectArgs:  []driver.Value{models.NotificationStatusBounced, at, "mailbox full", "ses-1"},
			rows:        1,
			wantMatched: true,
		},
		{
			name:        "unknown provider id matches nothing",
			event:       models.DeliveryEvent{Type: "delivered", ProviderMessageID: "unknown"},
			expectQuery: `UPDATE notification_log SET status = \$1, delivered_at = \$2`,
			expectArgs:  []driver.Value{models.NotificationStatusDelivered, at, "unknown"},
			rows:        0,
			wantMatched: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := newMockQueueStore(t)

			mock.ExpectExec(tt.expectQuery).
				WithArgs(tt.expectArgs...).
				WillReturnResult(sqlmock.NewResult(0, tt.rows))

			matched, err := store.ApplyDeliveryEvent(context.Background(), tt.event, at)

			assert.NoError(t, err)
			assert.Equal(t, tt.wantMatched, matched)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestQueueStore_ApplyDeliveryEvent_RejectsUnknownType(t *testing.T) {
	store, _ := newMockQueueStore(t)

	_, err := store.ApplyDeliveryEvent(context.Background(),
		models.DeliveryEvent{Type: "teleported", ProviderMessageID: "ses-1"}, time.Now())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported delivery event type")
}
