package organizations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voluntree/backend/internal/models"
)

// Repository handles organization and organization_user persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an organizations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const orgColumns = `id, name, slug, email, COALESCE(phone,''), COALESCE(website,''),
	COALESCE(description,''), category_id, country_id, city_id, COALESCE(address,''),
	verified, created_at, updated_at`

func scanOrg(row interface{ Scan(...any) error }) (*models.Organization, error) {
	var o models.Organization
	err := row.Scan(&o.ID, &o.Name, &o.Slug, &o.Email, &o.Phone, &o.Website,
		&o.Description, &o.CategoryID, &o.CountryID, &o.CityID, &o.Address,
		&o.Verified, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// GetByID returns an organization by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	return scanOrg(r.pool.QueryRow(ctx, `SELECT `+orgColumns+` FROM organizations WHERE id = $1`, id))
}

// GetBySlug returns an organization by slug.
func (r *Repository) GetBySlug(ctx context.Context, slug string) (*models.Organization, error) {
	return scanOrg(r.pool.QueryRow(ctx, `SELECT `+orgColumns+` FROM organizations WHERE slug = $1`, slug))
}

// AddUser adds a user to an organization with a role.
func (r *Repository) AddUser(ctx context.Context, orgID, userID uuid.UUID, role string) error {
	const q = `INSERT INTO organization_users (id, organization_id, user_id, role)
		VALUES (gen_random_uuid(), $1, $2, $3)
		ON CONFLICT (organization_id, user_id) DO UPDATE SET role = EXCLUDED.role, updated_at = NOW()`
	_, err := r.pool.Exec(ctx, q, orgID, userID, role)
	return err
}

// GetUserRole returns the user's role in the organization, or empty if not a member.
func (r *Repository) GetUserRole(ctx context.Context, orgID, userID uuid.UUID) (string, error) {
	const q = `SELECT role FROM organization_users WHERE organization_id = $1 AND user_id = $2`
	var role string
	err := r.pool.QueryRow(ctx, q, orgID, userID).Scan(&role)
	if err != nil {
		return "", err
	}
	return role, nil
}

// UserHasOrgAccess returns true if the user manages the org (owner or coordinator).
func (r *Repository) UserHasOrgAccess(ctx context.Context, orgID, userID uuid.UUID) (bool, error) {
	role, err := r.GetUserRole(ctx, orgID, userID)
	if err != nil || role == "" {
		return false, nil
	}
	return role == models.OrgRoleOwner || role == models.OrgRoleCoordinator, nil
}

// ListOrganizationsForUser returns organizations the user is a member of.
func (r *Repository) ListOrganizationsForUser(ctx context.Context, userID uuid.UUID) ([]*models.Organization, error) {
	const q = `SELECT o.id, o.name, o.slug, o.email, COALESCE(o.phone,''), COALESCE(o.website,''),
		COALESCE(o.description,''), o.category_id, o.country_id, o.city_id, COALESCE(o.address,''),
		o.verified, o.created_at, o.updated_at
		FROM organizations o
		INNER JOIN organization_users ou ON ou.organization_id = o.id
		WHERE ou.user_id = $1
		ORDER BY o.name`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Organization
	for rows.Next() {
		o, err := scanOrg(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, o)
	}
	return list, rows.Err()
}

// Member represents an organization member with user details.
type Member struct {
	ID       uuid.UUID `json:"id"`
	UserID   uuid.UUID `json:"user_id"`
	Email    string    `json:"email"`
	FullName string    `json:"full_name"`
	Role     string    `json:"role"`
	AddedAt  time.Time `json:"added_at"`
}

// ListMembers returns members of an organization.
func (r *Repository) ListMembers(ctx context.Context, orgID uuid.UUID) ([]Member, error) {
	const q = `SELECT ou.id, ou.user_id, u.email, COALESCE(u.full_name, ''), ou.role, ou.created_at
		FROM organization_users ou
		INNER JOIN users u ON u.id = ou.user_id
		WHERE ou.organization_id = $1
		ORDER BY ou.created_at ASC`
	rows, err := r.pool.Query(ctx, q, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ID, &m.UserID, &m.Email, &m.FullName, &m.Role, &m.AddedAt); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

// onboardingFields mirrors the merged organization wizard payloads.
type onboardingFields struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	CountryID   int64  `json:"country_id"`
	CityID      int64  `json:"city_id"`
	Address     string `json:"address"`
	CategoryID  int64  `json:"category_id"`
	Description string `json:"description"`
	Website     string `json:"website"`
}

// CreateFromOnboarding creates the permanent organization from merged wizard
// step data. The draft's user, when present, becomes the owner. subjectKey is
// the draft session token.
func (r *Repository) CreateFromOnboarding(ctx context.Context, subjectKey string, fields map[string]json.RawMessage) (uuid.UUID, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return uuid.Nil, err
	}
	var f onboardingFields
	if err := json.Unmarshal(raw, &f); err != nil {
		return uuid.Nil, fmt.Errorf("decode onboarding fields: %w", err)
	}
	if f.Name == "" || f.Email == "" {
		return uuid.Nil, fmt.Errorf("onboarding fields missing name or email")
	}

	org := &models.Organization{
		Name:        f.Name,
		Email:       f.Email,
		Phone:       f.Phone,
		Website:     f.Website,
		Description: f.Description,
		Address:     f.Address,
	}
	if f.CategoryID > 0 {
		org.CategoryID = &f.CategoryID
	}
	if f.CountryID > 0 {
		org.CountryID = &f.CountryID
	}
	if f.CityID > 0 {
		org.CityID = &f.CityID
	}

	// one transaction: a failed owner insert must not leave an organization
	// row behind, or a retried finalization would create a second one
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	defer tx.Rollback(ctx)

	base := Slugify(f.Name)
	org.Slug = base
	for attempt := 0; attempt < 4; attempt++ {
		var taken bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM organizations WHERE slug = $1)`, org.Slug).Scan(&taken); err != nil {
			return uuid.Nil, err
		}
		if !taken {
			break
		}
		org.Slug = fmt.Sprintf("%s-%s", base, uuid.New().String()[:8])
	}

	const insertOrg = `INSERT INTO organizations (id, name, slug, email, phone, website, description, category_id, country_id, city_id, address)
		VALUES (gen_random_uuid(), $1, $2, $3, NULLIF($4,''), NULLIF($5,''), NULLIF($6,''), $7, $8, $9, NULLIF($10,''))
		RETURNING id, created_at, updated_at`
	err = tx.QueryRow(ctx, insertOrg, org.Name, org.Slug, org.Email, org.Phone, org.Website,
		org.Description, org.CategoryID, org.CountryID, org.CityID, org.Address).
		Scan(&org.ID, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		return uuid.Nil, err
	}

	var ownerID *uuid.UUID
	err = tx.QueryRow(ctx,
		`SELECT user_id FROM organization_drafts WHERE token = $1`, subjectKey).Scan(&ownerID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, err
	}
	if ownerID != nil {
		const insertOwner = `INSERT INTO organization_users (id, organization_id, user_id, role)
			VALUES (gen_random_uuid(), $1, $2, $3)
			ON CONFLICT (organization_id, user_id) DO UPDATE SET role = EXCLUDED.role, updated_at = NOW()`
		if _, err := tx.Exec(ctx, insertOwner, org.ID, *ownerID, models.OrgRoleOwner); err != nil {
			return uuid.Nil, fmt.Errorf("add owner: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, err
	}
	return org.ID, nil
}

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives a URL slug from an organization name.
func Slugify(name string) string {
	s := nonSlugChars.ReplaceAllString(strings.ToLower(name), "-")
	s = strings.Trim(s, "-")
	if len(s) > 64 {
		s = strings.Trim(s[:64], "-")
	}
	if s == "" {
		s = "org"
	}
	return s
}
