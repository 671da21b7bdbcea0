// internal/models/party.go
package models

import "time"

// Notification preference values
const (
	PartyPreferenceAll  = "all"
	PartyPreferenceNone = "none"
)

type Party struct {
	ID                     string     `json:"id"`
	TransactionID          string     `json:"transactionId"`
	Role                   string     `json:"role"`
	Name                   string     `json:"name"`
	Email                  string     `json:"email"`
	Phone                  string     `json:"phone,omitempty"`
	EmailBounced           bool       `json:"emailBounced"`
	UnsubscribedAt         *time.Time `json:"unsubscribedAt,omitempty"`
	UnsubscribeToken       string     `json:"unsubscribeToken,omitempty"`
	NotificationPreference string     `json:"notificationPreference,omitempty"`
}

// Reachable reports whether the party may receive notification email.
func (p *Party) Reachable() bool {
	if p.Email == "" || p.EmailBounced || p.UnsubscribedAt != nil {
		return false
	}
	return p.NotificationPreference != PartyPreferenceNone
}
