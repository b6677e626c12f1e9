package models

import (
	"time"

	"github.com/google/uuid"
)

// Role represents user role in the platform.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleOrganizer Role = "organizer"
	RoleVolunteer Role = "volunteer"
)

// User represents a platform user. Volunteer profile fields are filled in
// by the registration wizard; RegisteredAt is set once onboarding finishes.
type User struct {
	ID           uuid.UUID  `json:"id"`
	Email        string     `json:"email"`
	Password     string     `json:"-"`
	FullName     string     `json:"full_name"`
	Role         Role       `json:"role"`
	Phone        string     `json:"phone,omitempty"`
	Bio          string     `json:"bio,omitempty"`
	DateOfBirth  *time.Time `json:"date_of_birth,omitempty"`
	CountryID    *int64     `json:"country_id,omitempty"`
	CityID       *int64     `json:"city_id,omitempty"`
	Availability string     `json:"availability,omitempty"`
	RegisteredAt *time.Time `json:"registered_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// UserPublic is User without sensitive fields for API responses.
type UserPublic struct {
	ID           uuid.UUID  `json:"id"`
	Email        string     `json:"email"`
	FullName     string     `json:"full_name"`
	Role         Role       `json:"role"`
	Phone        string     `json:"phone,omitempty"`
	RegisteredAt *time.Time `json:"registered_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// ToPublic converts User to UserPublic.
func (u *User) ToPublic() UserPublic {
	return UserPublic{
		ID:           u.ID,
		Email:        u.Email,
		FullName:     u.FullName,
		Role:         u.Role,
		Phone:        u.Phone,
		RegisteredAt: u.RegisteredAt,
		CreatedAt:    u.CreatedAt,
	}
}

// IsRegistered reports whether the volunteer finished onboarding.
func (u *User) IsRegistered() bool {
	return u.RegisteredAt != nil
}
