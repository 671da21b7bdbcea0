// internal/tasks/dispatch/service.go
package dispatch

import (
	"context"
	"fmt"
	"html"
	"time"

	stderrors "nudge-engine/internal/common/errors"
	"nudge-engine/internal/common/logger"
	"nudge-engine/internal/common/mailer"
	"nudge-engine/internal/common/metrics"
	"nudge-engine/internal/models"
)

// backoffSchedule spaces retries out after transient send failures. The last
// step repeats until retries run out.
var backoffSchedule = []time.Duration{
	30 * time.Second,
	2 * time.Minute,
	8 * time.Minute,
	30 * time.Minute,
	2 * time.Hour,
}

// Queue is the durable notification queue as seen by the dispatcher.
type Queue interface {
	DueBatch(ctx context.Context, now time.Time, limit int) ([]models.NotificationLog, error)
	Claim(ctx context.Context, id string) (bool, error)
	MarkSent(ctx context.Context, id, providerMessageID string, at time.Time) error
	MarkCancelled(ctx context.Context, id, reason string) error
	MarkFailed(ctx context.Context, id string, retryCount int, errMsg string) error
	Reschedule(ctx context.Context, id string, retryCount int, nextAt time.Time, errMsg string) error
	RequeueStale(ctx context.Context, staleBefore time.Time) (int64, error)
}

// MilestoneStatusReader answers the pre-send relevance check.
type MilestoneStatusReader interface {
	MilestoneStatus(ctx context.Context, milestoneID string) (string, error)
}

// CommunicationWriter records transmitted messages for the timeline.
type CommunicationWriter interface {
	Create(ctx context.Context, c *models.Communication) error
}

// FeedIndexer pushes sent notifications into the activity-feed index.
type FeedIndexer interface {
	IndexDocument(ctx context.Context, id string, doc interface{}) error
}

// Service drains due notification intents and performs the actual sends.
// Every row commits individually; one bad row never aborts the batch.
type Service struct {
	config     *Config
	queue      Queue
	milestones MilestoneStatusReader
	comms      CommunicationWriter
	feed       FeedIndexer
	sender     mailer.Sender
	logger     logger.Logger
	now        func() time.Time
}

func NewService(
	cfg *Config,
	queue Queue,
	milestones MilestoneStatusReader,
	comms CommunicationWriter,
	feed FeedIndexer,
	sender mailer.Sender,
	log logger.Logger,
) *Service {
	return &Service{
		config:     cfg,
		queue:      queue,
		milestones: milestones,
		comms:      comms,
		feed:       feed,
		sender:     sender,
		logger:     log,
		now:        time.Now,
	}
}

// Run executes one dispatch pass. Suitable as a scheduler task.
func (s *Service) Run(ctx context.Context) error {
	now := s.now()

	requeued, err := s.queue.RequeueStale(ctx, now.Add(-s.config.staleAfter()))
	if err != nil {
		s.logger.WithError(err).Warn("failed to requeue stale rows", nil)
	} else if requeued > 0 {
		s.logger.Warn("requeued rows stuck in sending", map[string]interface{}{
			"count": requeued,
		})
	}

	batch, err := s.queue.DueBatch(ctx, now, s.config.batchSize())
	if err != nil {
		return fmt.Errorf("load due batch: %w", err)
	}
	if len(batch) == 0 {
		return nil
	}

	sent := 0
	for i := range batch {
		if s.dispatchOne(ctx, &batch[i]) {
			sent++
		}
	}

	s.logger.Info("dispatch pass completed", map[string]interface{}{
		"batch": len(batch),
		"sent":  sent,
	})
	return nil
}

// dispatchOne claims, validates and sends a single row, reporting whether
// the send succeeded.
func (s *Service) dispatchOne(ctx context.Context, n *models.NotificationLog) bool {
	claimed, err := s.queue.Claim(ctx, n.ID)
	if err != nil {
		s.logger.WithError(err).Error("claim failed", map[string]interface{}{
			"notification_id": n.ID,
		})
		return false
	}
	if !claimed {
		// Another dispatcher got there first.
		metrics.DispatchResults.WithLabelValues("claim_lost").Inc()
		return false
	}

	if s.milestoneResolved(ctx, n.MilestoneID) {
		if err := s.queue.MarkCancelled(ctx, n.ID, "milestone resolved before send"); err != nil {
			s.logger.WithError(err).Error("failed to cancel notification", map[string]interface{}{
				"notification_id": n.ID,
			})
			return false
		}
		metrics.DispatchResults.WithLabelValues("cancelled").Inc()
		s.logger.Info("notification cancelled, milestone resolved", map[string]interface{}{
			"notification_id": n.ID,
			"milestone_id":    n.MilestoneID,
		})
		return false
	}

	start := s.now()
	providerID, sendErr := s.sender.Send(ctx, n.RecipientEmail, n.Subject, renderBody(n))
	metrics.SendDuration.Observe(time.Since(start).Seconds())

	if sendErr != nil {
		s.handleSendFailure(ctx, n, sendErr)
		return false
	}

	sentAt := s.now()
	if err := s.queue.MarkSent(ctx, n.ID, providerID, sentAt); err != nil {
		s.logger.WithError(err).Error("send succeeded but status update failed", map[string]interface{}{
			"notification_id":     n.ID,
			"provider_message_id": providerID,
		})
		return false
	}
	metrics.DispatchResults.WithLabelValues("sent").Inc()

	s.recordCommunication(ctx, n, providerID, sentAt)
	s.indexToFeed(ctx, n, providerID, sentAt)
	return true
}

// handleSendFailure reschedules with backoff or gives up after the retry
// budget is spent.
func (s *Service) handleSendFailure(ctx context.Context, n *models.NotificationLog, sendErr error) {
	retryCount := n.RetryCount + 1
	fields := map[string]interface{}{
		"notification_id": n.ID,
		"recipient":       n.RecipientEmail,
		"retry_count":     retryCount,
	}

	if !stderrors.IsRetryable(sendErr) || retryCount >= s.config.maxRetries() {
		if err := s.queue.MarkFailed(ctx, n.ID, retryCount, sendErr.Error()); err != nil {
			s.logger.WithError(err).Error("failed to mark notification failed", fields)
			return
		}
		metrics.DispatchResults.WithLabelValues("failed").Inc()
		s.logger.WithError(sendErr).Error("notification failed permanently", fields)
		return
	}

	nextAt := s.now().Add(backoffFor(retryCount))
	if err := s.queue.Reschedule(ctx, n.ID, retryCount, nextAt, sendErr.Error()); err != nil {
		s.logger.WithError(err).Error("failed to reschedule notification", fields)
		return
	}
	metrics.DispatchResults.WithLabelValues("retried").Inc()
	fields["next_attempt_at"] = nextAt
	s.logger.WithError(sendErr).Warn("send failed, rescheduled", fields)
}

func (s *Service) milestoneResolved(ctx context.Context, milestoneID string) bool {
	if milestoneID == "" {
		return false
	}
	status, err := s.milestones.MilestoneStatus(ctx, milestoneID)
	if err != nil {
		// Validation is best effort; at-least-once delivery tolerates a
		// stale read here.
		s.logger.WithError(err).Warn("milestone status check failed, sending anyway", map[string]interface{}{
			"milestone_id": milestoneID,
		})
		return false
	}
	return models.IsTerminalMilestoneStatus(status)
}

func (s *Service) recordCommunication(ctx context.Context, n *models.NotificationLog, providerID string, sentAt time.Time) {
	comm := &models.Communication{
		TransactionID:     n.TransactionID,
		MilestoneID:       n.MilestoneID,
		Type:              "email",
		RecipientEmail:    n.RecipientEmail,
		Subject:           n.Subject,
		Body:              renderBody(n),
		Status:            "sent",
		ProviderMessageID: providerID,
		NotificationLogID: n.ID,
		SentAt:            &sentAt,
	}
	if err := s.comms.Create(ctx, comm); err != nil {
		s.logger.WithError(err).Error("failed to record communication", map[string]interface{}{
			"notification_id": n.ID,
		})
	}
}

func (s *Service) indexToFeed(ctx context.Context, n *models.NotificationLog, providerID string, sentAt time.Time) {
	if s.feed == nil {
		return
	}
	doc := map[string]interface{}{
		"transaction_id":      n.TransactionID,
		"milestone_id":        n.MilestoneID,
		"type":                n.Type,
		"escalation_level":    n.EscalationLevel,
		"recipient_email":     n.RecipientEmail,
		"subject":             n.Subject,
		"provider_message_id": providerID,
		"sent_at":             sentAt,
	}
	if err := s.feed.IndexDocument(ctx, n.ID, doc); err != nil {
		s.logger.WithError(err).Warn("activity feed indexing failed", map[string]interface{}{
			"notification_id": n.ID,
		})
	}
}

// backoffFor returns the wait before the given attempt number (1-based).
func backoffFor(retryCount int) time.Duration {
	idx := retryCount - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(backoffSchedule) {
		idx = len(backoffSchedule) - 1
	}
	return backoffSchedule[idx]
}

// renderBody builds the message body from the queue row alone, so a retry
// replays byte-identical content.
func renderBody(n *models.NotificationLog) string {
	name := n.RecipientName
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf(
		"<html><body><p>Hi %s,</p><p>%s</p><p>This is an automated notification from your transaction timeline.</p></body></html>",
		html.EscapeString(name), html.EscapeString(n.Subject),
	)
}
