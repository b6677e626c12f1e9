package models

import (
	"time"

	"github.com/google/uuid"
)

// Opportunity is a volunteering opportunity published by an organization.
type Opportunity struct {
	ID             uuid.UUID  `json:"id"`
	OrganizationID uuid.UUID  `json:"organization_id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	CategoryID     *int64     `json:"category_id,omitempty"`
	CityID         *int64     `json:"city_id,omitempty"`
	Address        string     `json:"address,omitempty"`
	StartsAt       time.Time  `json:"starts_at"`
	EndsAt         *time.Time `json:"ends_at,omitempty"`
	Capacity       int        `json:"capacity"`
	Published      bool       `json:"published"`
	CreatedBy      uuid.UUID  `json:"created_by"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
