// internal/tasks/deliverytrack/service.go
package deliverytrack

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"nudge-engine/internal/common/logger"
	"nudge-engine/internal/common/metrics"
	"nudge-engine/internal/models"
)

// dedupeTTL bounds how long a provider event id is remembered. Providers
// retry within hours, not days.
const dedupeTTL = 24 * time.Hour

// EventApplier reconciles delivery events against the notification queue.
type EventApplier interface {
	ApplyDeliveryEvent(ctx context.Context, ev models.DeliveryEvent, at time.Time) (bool, error)
	RecipientEmailByProviderID(ctx context.Context, providerMessageID string) (string, error)
}

// PartyWriter mutates recipient reachability on bounces and unsubscribes.
type PartyWriter interface {
	MarkEmailBounced(ctx context.Context, email string) (int64, error)
	UnsubscribeByToken(ctx context.Context, token string) (bool, error)
}

// Deduper is the SETNX surface used to absorb provider webhook retries.
type Deduper interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
}

// Service ingests asynchronous provider delivery events. Events arrive with
// no ordering or exactly-once guarantee; the queue application uses absolute
// value sets so replays are harmless even when dedupe misses.
type Service struct {
	queue   EventApplier
	parties PartyWriter
	dedupe  Deduper
	logger  logger.Logger
	now     func() time.Time
}

func NewService(queue EventApplier, parties PartyWriter, dedupe Deduper, log logger.Logger) *Service {
	return &Service{
		queue:   queue,
		parties: parties,
		dedupe:  dedupe,
		logger:  log,
		now:     time.Now,
	}
}

// HandleEvent processes one provider event. Unknown types and unknown
// message ids are dropped, never errors; the provider must not retry them.
func (s *Service) HandleEvent(ctx context.Context, ev models.DeliveryEvent) error {
	if !models.KnownDeliveryEventType(ev.Type) {
		s.logger.Warn("ignoring unknown delivery event type", map[string]interface{}{
			"type":                ev.Type,
			"provider_message_id": ev.ProviderMessageID,
		})
		return nil
	}
	if ev.ProviderMessageID == "" {
		s.logger.Warn("delivery event without provider message id, dropping", map[string]interface{}{
			"type": ev.Type,
		})
		return nil
	}

	if s.isDuplicate(ctx, ev) {
		return nil
	}

	matched, err := s.queue.ApplyDeliveryEvent(ctx, ev, s.now())
	if err != nil {
		return fmt.Errorf("apply delivery event: %w", err)
	}

	metrics.DeliveryEvents.WithLabelValues(ev.Type, strconv.FormatBool(matched)).Inc()
	if !matched {
		s.logger.Warn("delivery event for unknown provider message id, dropping", map[string]interface{}{
			"type":                ev.Type,
			"provider_message_id": ev.ProviderMessageID,
		})
		return nil
	}

	if ev.Type == models.DeliveryEventBounced {
		s.flagBouncedRecipient(ctx, ev)
	}
	return nil
}

// Unsubscribe consumes a one-time unsubscribe token. Returns false for
// unknown or already used tokens.
func (s *Service) Unsubscribe(ctx context.Context, token string) (bool, error) {
	ok, err := s.parties.UnsubscribeByToken(ctx, token)
	if err != nil {
		return false, fmt.Errorf("unsubscribe: %w", err)
	}
	if ok {
		s.logger.Info("party unsubscribed", map[string]interface{}{
			"token": token,
		})
	}
	return ok, nil
}

// isDuplicate claims the event key in Redis. A dedupe-store failure lets the
// event through: the queue application is idempotent anyway.
func (s *Service) isDuplicate(ctx context.Context, ev models.DeliveryEvent) bool {
	key := fmt.Sprintf("delivery:evt:%s:%s", ev.ProviderMessageID, ev.Type)
	fresh, err := s.dedupe.SetNX(ctx, key, 1, dedupeTTL)
	if err != nil {
		s.logger.WithError(err).Warn("delivery dedupe unavailable, processing event", map[string]interface{}{
			"key": key,
		})
		return false
	}
	if !fresh {
		s.logger.Debug("duplicate delivery event, dropping", map[string]interface{}{
			"key": key,
		})
	}
	return !fresh
}

// flagBouncedRecipient propagates a bounce to every party sharing the
// address so the scanner stops targeting it.
func (s *Service) flagBouncedRecipient(ctx context.Context, ev models.DeliveryEvent) {
	email, err := s.queue.RecipientEmailByProviderID(ctx, ev.ProviderMessageID)
	if err != nil || email == "" {
		if err != nil {
			s.logger.WithError(err).Warn("could not resolve bounced recipient", map[string]interface{}{
				"provider_message_id": ev.ProviderMessageID,
			})
		}
		return
	}

	n, err := s.parties.MarkEmailBounced(ctx, email)
	if err != nil {
		s.logger.WithError(err).Error("failed to flag bounced email", map[string]interface{}{
			"email": email,
		})
		return
	}
	s.logger.Info("flagged bounced email", map[string]interface{}{
		"email":   email,
		"parties": n,
		"reason":  ev.Detail,
	})
}
