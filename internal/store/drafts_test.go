// internal/store/drafts_test.go
package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stderrors "nudge-engine/internal/common/errors"
	"nudge-engine/internal/models"
)

func newMockDraftStore(t *testing.T) (*DraftStore, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewDraftStore(db), mock
}

// ==========================
// Status transitions
// ==========================

func TestDraftStore_Approve_FromDraft(t *testing.T) {
	store, mock := newMockDraftStore(t)

	mock.ExpectExec(`UPDATE email_drafts`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Approve(context.Background(), "draft-1", "agent-9")

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDraftStore_Approve_RejectedDraftFails(t *testing.T) {
	store, mock := newMockDraftStore(t)

	// The WHERE status guard matches nothing for a non-draft row.
	mock.ExpectExec(`UPDATE email_drafts`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Approve(context.Background(), "draft-1", "agent-9")

	require.Error(t, err)
	var stdErr *stderrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, stderrors.ErrCodeDraftInvalidTransition, stdErr.Code)
	assert.False(t, stdErr.Retryable)
}

func TestDraftStore_MarkSent_RequiresApproved(t *testing.T) {
	store, mock := newMockDraftStore(t)

	mock.ExpectExec(`UPDATE email_drafts SET status`).
		WithArgs(models.DraftStatusSent, sqlmock.AnyArg(), "draft-1", models.DraftStatusApproved).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.MarkSent(context.Background(), "draft-1", time.Now().UTC())

	require.Error(t, err)
	var stdErr *stderrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, stderrors.ErrCodeDraftInvalidTransition, stdErr.Code)
}

// ==========================
// Expiry
// ==========================

func TestDraftStore_ExpireStale_OnlyDraftStatusMoves(t *testing.T) {
	store, mock := newMockDraftStore(t)
	cutoff := time.Date(2026, 3, 8, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE email_drafts SET status`).
		WithArgs(models.DraftStatusExpired, models.DraftStatusDraft, cutoff).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := store.ExpireStale(context.Background(), cutoff)

	assert.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
