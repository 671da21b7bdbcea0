// internal/models/transaction.go
package models

import "time"

// Transaction statuses eligible for reminder scanning
const (
	TransactionStatusActive       = "active"
	TransactionStatusConfirmed    = "confirmed"
	TransactionStatusPendingClose = "pending_close"
)

// NotificationOverrides is the per-transaction notification configuration.
// Nil fields mean "no override".
type NotificationOverrides struct {
	RemindersEnabled     *bool `json:"reminders_enabled,omitempty"`
	ReminderDaysOverride *int  `json:"reminder_days_override,omitempty"`
}

// RemindersDisabled reports whether reminders are explicitly switched off.
func (o *NotificationOverrides) RemindersDisabled() bool {
	if o == nil || o.RemindersEnabled == nil {
		return false
	}
	return !*o.RemindersEnabled
}

type Transaction struct {
	ID          string     `json:"id"`
	AgentID     string     `json:"agentId"`
	Status      string     `json:"status"`
	ClosingDate *time.Time `json:"closingDate,omitempty"`

	Overrides *NotificationOverrides `json:"notificationOverrides,omitempty"`

	// Loaded by the snapshot reader for scanning
	Milestones []Milestone `json:"milestones,omitempty"`
	Parties    []Party     `json:"parties,omitempty"`
}

// ActiveTransactionStatuses lists statuses the scanner considers in-flight.
var ActiveTransactionStatuses = []string{
	TransactionStatusActive,
	TransactionStatusConfirmed,
	TransactionStatusPendingClose,
}
