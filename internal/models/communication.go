// internal/models/communication.go
package models

import "time"

// Communication is the durable record of an actually transmitted message,
// created only on dispatcher success and linked back to its NotificationLog.
type Communication struct {
	ID                string     `json:"id"`
	TransactionID     string     `json:"transactionId"`
	MilestoneID       string     `json:"milestoneId,omitempty"`
	Type              string     `json:"type"` // "email"
	RecipientEmail    string     `json:"recipientEmail"`
	Subject           string     `json:"subject"`
	Body              string     `json:"body"`
	Status            string     `json:"status"`
	DeliveryStatus    string     `json:"deliveryStatus,omitempty"`
	BounceReason      string     `json:"bounceReason,omitempty"`
	ProviderMessageID string     `json:"providerMessageId,omitempty"`
	NotificationLogID string     `json:"notificationLogId,omitempty"`
	SentAt            *time.Time `json:"sentAt,omitempty"`
}
