// internal/models/draft.go
package models

import "time"

// Email draft statuses. draft -> approved -> sent, draft -> rejected,
// draft -> expired. sent, rejected and expired are terminal.
const (
	DraftStatusDraft    = "draft"
	DraftStatusApproved = "approved"
	DraftStatusRejected = "rejected"
	DraftStatusSent     = "sent"
	DraftStatusExpired  = "expired"
)

// EmailDraft is an agent-reviewed message awaiting explicit send, as opposed
// to auto-sent reminders.
type EmailDraft struct {
	ID              string     `json:"id"`
	TransactionID   string     `json:"transactionId"`
	MilestoneID     string     `json:"milestoneId,omitempty"`
	PartyID         string     `json:"partyId,omitempty"`
	RuleID          string     `json:"ruleId,omitempty"`
	RecipientEmail  string     `json:"recipientEmail"`
	RecipientName   string     `json:"recipientName,omitempty"`
	RecipientRole   string     `json:"recipientRole,omitempty"`
	Subject         string     `json:"subject"`
	BodyHTML        string     `json:"bodyHtml"`
	BodyText        string     `json:"bodyText,omitempty"`
	EmailType       string     `json:"emailType"`
	EscalationLevel int        `json:"escalationLevel"`
	Status          string     `json:"status"`
	ApprovedAt      *time.Time `json:"approvedAt,omitempty"`
	ApprovedBy      string     `json:"approvedBy,omitempty"`
	RejectedAt      *time.Time `json:"rejectedAt,omitempty"`
	RejectedReason  string     `json:"rejectedReason,omitempty"`
	SentAt          *time.Time `json:"sentAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}
