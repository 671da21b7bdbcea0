// internal/tasks/draftexpire/service.go
package draftexpire

import (
	"context"
	"fmt"
	"time"

	"nudge-engine/internal/common/logger"
	"nudge-engine/internal/common/metrics"
)

// DraftExpirer is the store surface for the janitor.
type DraftExpirer interface {
	ExpireStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// Service expires email drafts nobody reviewed in time. Approved, rejected
// and sent drafts are left alone.
type Service struct {
	drafts DraftExpirer
	ttl    time.Duration
	logger logger.Logger
	now    func() time.Time
}

func NewService(drafts DraftExpirer, ttl time.Duration, log logger.Logger) *Service {
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	return &Service{
		drafts: drafts,
		ttl:    ttl,
		logger: log,
		now:    time.Now,
	}
}

// Run executes one janitor pass. Suitable as a scheduler task.
func (s *Service) Run(ctx context.Context) error {
	cutoff := s.now().Add(-s.ttl)

	n, err := s.drafts.ExpireStale(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("expire stale drafts: %w", err)
	}

	metrics.DraftsExpired.Add(float64(n))
	s.logger.Info("draft expiry pass completed", map[string]interface{}{
		"expired": n,
		"cutoff":  cutoff,
	})
	return nil
}
