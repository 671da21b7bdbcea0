// internal/models/user.go
package models

type User struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	Timezone     string `json:"timezone,omitempty"`
	VacationMode bool   `json:"vacationMode"`
}
