// internal/models/notification.go
package models

import (
	"fmt"
	"time"
)

// Notification types
const (
	NotificationTypeReminder = "reminder"
	NotificationTypeDueToday = "due_today"
	// Overdue types are "overdue_l0".."overdue_l3", built via OverdueType.
)

// OverdueType returns the overdue notification type for an escalation level.
func OverdueType(level int) string {
	return fmt.Sprintf("overdue_l%d", level)
}

// Notification statuses
const (
	NotificationStatusQueued     = "queued"
	NotificationStatusSending    = "sending"
	NotificationStatusSent       = "sent"
	NotificationStatusDelivered  = "delivered"
	NotificationStatusBounced    = "bounced"
	NotificationStatusComplained = "complained"
	NotificationStatusCancelled  = "cancelled"
	NotificationStatusFailed     = "failed"
)

// NotificationLog is one row of the durable notification queue: one record
// per (milestone, recipient, type, calendar day) occasion.
type NotificationLog struct {
	ID                string     `json:"id"`
	TransactionID     string     `json:"transactionId"`
	MilestoneID       string     `json:"milestoneId,omitempty"`
	RuleID            string     `json:"ruleId,omitempty"`
	Type              string     `json:"type"`
	EscalationLevel   int        `json:"escalationLevel"`
	RecipientEmail    string     `json:"recipientEmail"`
	RecipientName     string     `json:"recipientName,omitempty"`
	RecipientRole     string     `json:"recipientRole,omitempty"`
	Subject           string     `json:"subject,omitempty"`
	Status            string     `json:"status"`
	ProviderMessageID string     `json:"providerMessageId,omitempty"`
	ScheduledFor      time.Time  `json:"scheduledFor"`
	SentAt            *time.Time `json:"sentAt,omitempty"`
	DeliveredAt       *time.Time `json:"deliveredAt,omitempty"`
	OpenedAt          *time.Time `json:"openedAt,omitempty"`
	ClickedAt         *time.Time `json:"clickedAt,omitempty"`
	BouncedAt         *time.Time `json:"bouncedAt,omitempty"`
	BounceReason      string     `json:"bounceReason,omitempty"`
	ErrorMessage      string     `json:"errorMessage,omitempty"`
	RetryCount        int        `json:"retryCount"`
	IdempotencyKey    string     `json:"idempotencyKey"`
	CreatedAt         time.Time  `json:"createdAt"`
}

// Delivery event types reported by the provider webhook feed.
const (
	DeliveryEventDelivered  = "delivered"
	DeliveryEventOpened     = "opened"
	DeliveryEventClicked    = "clicked"
	DeliveryEventBounced    = "bounced"
	DeliveryEventComplained = "complained"
)

// DeliveryEvent is one asynchronous delivery-status event. The provider
// feed has no ordering or exactly-once guarantee.
type DeliveryEvent struct {
	Type              string `json:"type"`
	ProviderMessageID string `json:"provider_message_id"`
	Detail            string `json:"detail,omitempty"`
}

// KnownDeliveryEventType reports whether the event type is one this system
// processes.
func KnownDeliveryEventType(t string) bool {
	switch t {
	case DeliveryEventDelivered, DeliveryEventOpened, DeliveryEventClicked,
		DeliveryEventBounced, DeliveryEventComplained:
		return true
	}
	return false
}
