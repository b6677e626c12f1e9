package auth

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voluntree/backend/internal/models"
)

// Repository handles user persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, email, password_hash, full_name, role,
	COALESCE(phone,''), COALESCE(bio,''), date_of_birth, country_id, city_id,
	COALESCE(availability,''), registered_at, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.Password, &u.FullName, &u.Role,
		&u.Phone, &u.Bio, &u.DateOfBirth, &u.CountryID, &u.CityID,
		&u.Availability, &u.RegisteredAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByID returns a user by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetByEmail returns a user by email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

// List returns all users for admin views.
func (r *Repository) List(ctx context.Context) ([]models.UserPublic, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, email, full_name, role,
		COALESCE(phone,''), registered_at, created_at FROM users ORDER BY full_name, email`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.UserPublic
	for rows.Next() {
		var u models.UserPublic
		var role string
		if err := rows.Scan(&u.ID, &u.Email, &u.FullName, &role, &u.Phone, &u.RegisteredAt, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.Role = models.Role(role)
		list = append(list, u)
	}
	return list, rows.Err()
}

// Create inserts a new user. Profile fields stay empty until the registration
// wizard fills them in.
func (r *Repository) Create(ctx context.Context, email, passwordHash, fullName string, role models.Role) (*models.User, error) {
	const q = `INSERT INTO users (email, password_hash, full_name, role)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + userColumns
	return scanUser(r.pool.QueryRow(ctx, q, email, passwordHash, fullName, string(role)))
}

// wizardProfile mirrors the basic_info and profile_details step payloads.
type wizardProfile struct {
	FullName     string `json:"full_name"`
	Phone        string `json:"phone"`
	DateOfBirth  string `json:"date_of_birth"`
	CountryID    int64  `json:"country_id"`
	CityID       int64  `json:"city_id"`
	Bio          string `json:"bio"`
	Availability string `json:"availability"`
}

// FinishRegistration applies the completed wizard step data to the user row
// and stamps registered_at. The stamp is monotonic: a second call never moves
// it.
func (r *Repository) FinishRegistration(ctx context.Context, userID uuid.UUID) error {
	rows, err := r.pool.Query(ctx, `SELECT step_data FROM user_registration_steps
		WHERE subject_key = $1 AND is_completed AND step_name IN ('basic_info', 'profile_details')
		AND step_data IS NOT NULL`, userID.String())
	if err != nil {
		return err
	}
	defer rows.Close()

	var profile wizardProfile
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return err
		}
		// the two steps carry disjoint keys, so unmarshaling into the same
		// struct accumulates both
		if err := json.Unmarshal(raw, &profile); err != nil {
			continue
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	var dob *time.Time
	if profile.DateOfBirth != "" {
		if t, err := time.Parse("2006-01-02", profile.DateOfBirth); err == nil {
			dob = &t
		}
	}
	var countryID, cityID *int64
	if profile.CountryID > 0 {
		countryID = &profile.CountryID
	}
	if profile.CityID > 0 {
		cityID = &profile.CityID
	}

	const q = `UPDATE users SET
		full_name = COALESCE(NULLIF($2, ''), full_name),
		phone = COALESCE(NULLIF($3, ''), phone),
		bio = COALESCE(NULLIF($4, ''), bio),
		date_of_birth = COALESCE($5, date_of_birth),
		country_id = COALESCE($6, country_id),
		city_id = COALESCE($7, city_id),
		availability = COALESCE(NULLIF($8, ''), availability),
		registered_at = COALESCE(registered_at, NOW()),
		updated_at = NOW()
		WHERE id = $1`
	_, err = r.pool.Exec(ctx, q, userID,
		profile.FullName, profile.Phone, profile.Bio, dob, countryID, cityID, profile.Availability)
	return err
}
