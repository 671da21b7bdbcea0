// internal/models/milestone.go
package models

import "time"

// Milestone statuses
const (
	MilestoneStatusPending     = "pending"
	MilestoneStatusCompleted   = "completed"
	MilestoneStatusOverdue     = "overdue"
	MilestoneStatusPendingDate = "pending_date"
	MilestoneStatusWaived      = "waived"
	MilestoneStatusCancelled   = "cancelled"
)

type Milestone struct {
	ID                    string     `json:"id"`
	TransactionID         string     `json:"transactionId"`
	Type                  string     `json:"type"`
	Title                 string     `json:"title"`
	DueDate               *time.Time `json:"dueDate,omitempty"` // nil for pending_date milestones
	Status                string     `json:"status"`
	ResponsiblePartyRole  string     `json:"responsiblePartyRole"`
	ReminderDaysBefore    *int       `json:"reminderDaysBefore,omitempty"`
	ReminderSentCount     int        `json:"reminderSentCount"`
	EscalationLevel       int        `json:"escalationLevel"`
	RemindersPausedUntil  *time.Time `json:"remindersPausedUntil,omitempty"`
	LastReminderSentAt    *time.Time `json:"lastReminderSentAt,omitempty"`
}

// IsTerminal reports whether the milestone can never generate new
// notification intents.
func (m *Milestone) IsTerminal() bool {
	return IsTerminalMilestoneStatus(m.Status)
}

func IsTerminalMilestoneStatus(status string) bool {
	switch status {
	case MilestoneStatusCompleted, MilestoneStatusWaived, MilestoneStatusCancelled:
		return true
	}
	return false
}
