package models

import (
	"time"

	"github.com/google/uuid"
)

// Application status values.
const (
	ApplicationPending   = "pending"
	ApplicationAccepted  = "accepted"
	ApplicationRejected  = "rejected"
	ApplicationWithdrawn = "withdrawn"
)

// Application is a volunteer's application to an opportunity
// (unique per opportunity+volunteer).
type Application struct {
	ID            uuid.UUID `json:"id"`
	OpportunityID uuid.UUID `json:"opportunity_id"`
	UserID        uuid.UUID `json:"user_id"`
	Status        string    `json:"status"`
	Message       string    `json:"message,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// HourEntry is a logged block of volunteer hours on an opportunity.
type HourEntry struct {
	ID            uuid.UUID `json:"id"`
	OpportunityID uuid.UUID `json:"opportunity_id"`
	UserID        uuid.UUID `json:"user_id"`
	WorkedOn      time.Time `json:"worked_on"`
	Hours         float64   `json:"hours"`
	Note          string    `json:"note,omitempty"`
	Confirmed     bool      `json:"confirmed"`
	CreatedAt     time.Time `json:"created_at"`
}
