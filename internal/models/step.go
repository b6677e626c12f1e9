package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// StepRecord is one saved wizard step for a subject. Rows live in
// user_registration_steps or organization_registration_steps and are unique
// per (subject_key, step_name); subject_key is a user id for the volunteer
// flow and an onboarding session token for the organization flow.
type StepRecord struct {
	ID             uuid.UUID       `json:"id"`
	SubjectKey     string          `json:"subject_key"`
	StepName       string          `json:"step_name"`
	StepData       json.RawMessage `json:"step_data,omitempty"`
	IsCompleted    bool            `json:"is_completed"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
	OrganizationID *uuid.UUID      `json:"organization_id,omitempty"`
	UserID         *uuid.UUID      `json:"user_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// OrganizationDraft is an anonymous organization-registration session. The
// token is the subject key for the organization flow until the organization
// row exists.
type OrganizationDraft struct {
	ID             uuid.UUID  `json:"id"`
	Token          string     `json:"token"`
	UserID         *uuid.UUID `json:"user_id,omitempty"`
	OrganizationID *uuid.UUID `json:"organization_id,omitempty"`
	ExpiresAt      time.Time  `json:"expires_at"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Expired reports whether the draft session has passed its expiry.
func (d *OrganizationDraft) Expired() bool {
	return time.Now().After(d.ExpiresAt)
}
