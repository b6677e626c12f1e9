package opportunities

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voluntree/backend/internal/models"
)

// Repository handles opportunity persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an opportunities repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const oppColumns = `id, organization_id, title, description, category_id, city_id,
	COALESCE(address,''), starts_at, ends_at, capacity, published, created_by, created_at, updated_at`

func scanOpportunity(row interface{ Scan(...any) error }) (*models.Opportunity, error) {
	var o models.Opportunity
	err := row.Scan(&o.ID, &o.OrganizationID, &o.Title, &o.Description, &o.CategoryID, &o.CityID,
		&o.Address, &o.StartsAt, &o.EndsAt, &o.Capacity, &o.Published, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// Create inserts a new opportunity.
func (r *Repository) Create(ctx context.Context, o *models.Opportunity) error {
	const q = `INSERT INTO opportunities (id, organization_id, title, description, category_id, city_id, address, starts_at, ends_at, capacity, published, created_by)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, NULLIF($6,''), $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, o.OrganizationID, o.Title, o.Description, o.CategoryID, o.CityID,
		o.Address, o.StartsAt, o.EndsAt, o.Capacity, o.Published, o.CreatedBy).
		Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
}

// GetByID returns an opportunity by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Opportunity, error) {
	return scanOpportunity(r.pool.QueryRow(ctx, `SELECT `+oppColumns+` FROM opportunities WHERE id = $1`, id))
}

// ListFilter narrows the public opportunity listing.
type ListFilter struct {
	OrganizationID *uuid.UUID
	CategoryID     *int64
	CityID         *int64
	PublishedOnly  bool
}

// List returns opportunities matching the filter, newest start first.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]models.Opportunity, error) {
	q := `SELECT ` + oppColumns + ` FROM opportunities WHERE 1=1`
	var args []interface{}
	if f.PublishedOnly {
		q += ` AND published`
	}
	if f.OrganizationID != nil {
		args = append(args, *f.OrganizationID)
		q += ` AND organization_id = $` + argn(len(args))
	}
	if f.CategoryID != nil {
		args = append(args, *f.CategoryID)
		q += ` AND category_id = $` + argn(len(args))
	}
	if f.CityID != nil {
		args = append(args, *f.CityID)
		q += ` AND city_id = $` + argn(len(args))
	}
	rows, err := r.pool.Query(ctx, q+` ORDER BY starts_at DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Opportunity
	for rows.Next() {
		o, err := scanOpportunity(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *o)
	}
	return list, rows.Err()
}

func argn(n int) string {
	return strconv.Itoa(n)
}

// Update updates mutable opportunity fields.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, title, description string, startsAt, endsAt *time.Time, capacity *int) error {
	const q = `UPDATE opportunities SET
		title = COALESCE(NULLIF($1,''), title),
		description = COALESCE(NULLIF($2,''), description),
		starts_at = COALESCE($3, starts_at),
		ends_at = COALESCE($4, ends_at),
		capacity = COALESCE($5, capacity),
		updated_at = NOW()
		WHERE id = $6`
	_, err := r.pool.Exec(ctx, q, title, description, startsAt, endsAt, capacity, id)
	return err
}

// SetPublished toggles the listing's visibility.
func (r *Repository) SetPublished(ctx context.Context, id uuid.UUID, published bool) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE opportunities SET published = $2, updated_at = NOW() WHERE id = $1`, id, published)
	return err
}

// Delete removes an opportunity by ID.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM opportunities WHERE id = $1`, id)
	return err
}
