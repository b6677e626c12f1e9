package models

import (
	"time"

	"github.com/google/uuid"
)

// Organization represents a volunteer-hosting organization.
type Organization struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone,omitempty"`
	Website     string    `json:"website,omitempty"`
	Description string    `json:"description,omitempty"`
	CategoryID  *int64    `json:"category_id,omitempty"`
	CountryID   *int64    `json:"country_id,omitempty"`
	CityID      *int64    `json:"city_id,omitempty"`
	Address     string    `json:"address,omitempty"`
	Verified    bool      `json:"verified"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// OrganizationUserRole is the role of a user in an organization.
const (
	OrgRoleOwner       = "owner"
	OrgRoleCoordinator = "coordinator"
	OrgRoleMember      = "member"
)

// OrganizationUser links a user to an organization with a role.
type OrganizationUser struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	UserID         uuid.UUID `json:"user_id"`
	Role           string    `json:"role"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
