// internal/store/parties.go
package store

import (
	"context"
	"database/sql"
	"fmt"
)

// PartyStore mutates recipient reachability state. Reads come through
// SnapshotStore as part of the transaction snapshot.
type PartyStore struct {
	db *sql.DB
}

func NewPartyStore(db *sql.DB) *PartyStore {
	return &PartyStore{db: db}
}

// UnsubscribeByToken records an unsubscribe for the party holding the token.
// Returns false when the token is unknown or already consumed.
func (s *PartyStore) UnsubscribeByToken(ctx context.Context, token string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE parties
		SET unsubscribed_at = NOW()
		WHERE unsubscribe_token = $1 AND unsubscribed_at IS NULL`,
		token,
	)
	if err != nil {
		return false, fmt.Errorf("unsubscribe party: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("unsubscribe party rows: %w", err)
	}
	return n > 0, nil
}

// MarkEmailBounced flags every party sharing the bounced address so future
// scans stop targeting it. Returns the number of parties updated.
func (s *PartyStore) MarkEmailBounced(ctx context.Context, email string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE parties
		SET email_bounced = TRUE
		WHERE email = $1 AND email_bounced = FALSE`,
		email,
	)
	if err != nil {
		return 0, fmt.Errorf("mark email bounced: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark email bounced rows: %w", err)
	}
	return n, nil
}
