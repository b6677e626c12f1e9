package applications

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voluntree/backend/internal/models"
)

// ErrAlreadyApplied is returned on duplicate application to an opportunity.
var ErrAlreadyApplied = errors.New("already applied to this opportunity")

// Repository handles application persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an applications repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const appColumns = `id, opportunity_id, user_id, status, COALESCE(message,''), created_at, updated_at`

func scanApplication(row interface{ Scan(...any) error }) (*models.Application, error) {
	var a models.Application
	err := row.Scan(&a.ID, &a.OpportunityID, &a.UserID, &a.Status, &a.Message, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Create inserts an application (unique per opportunity+user).
func (r *Repository) Create(ctx context.Context, a *models.Application) error {
	const q = `INSERT INTO applications (id, opportunity_id, user_id, status, message)
		VALUES (gen_random_uuid(), $1, $2, 'pending', NULLIF($3,''))
		ON CONFLICT (opportunity_id, user_id) DO NOTHING
		RETURNING id, status, created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, a.OpportunityID, a.UserID, a.Message).
		Scan(&a.ID, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrAlreadyApplied
	}
	return err
}

// GetByID returns an application by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	return scanApplication(r.pool.QueryRow(ctx, `SELECT `+appColumns+` FROM applications WHERE id = $1`, id))
}

// ListByOpportunity returns applications for an opportunity, newest first.
func (r *Repository) ListByOpportunity(ctx context.Context, opportunityID uuid.UUID) ([]models.Application, error) {
	return r.list(ctx, `SELECT `+appColumns+` FROM applications WHERE opportunity_id = $1 ORDER BY created_at DESC`, opportunityID)
}

// ListByUser returns a volunteer's applications, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Application, error) {
	return r.list(ctx, `SELECT `+appColumns+` FROM applications WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

func (r *Repository) list(ctx context.Context, q string, arg any) ([]models.Application, error) {
	rows, err := r.pool.Query(ctx, q, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Application
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *a)
	}
	return list, rows.Err()
}

// CountByOpportunity returns total and accepted application counts.
func (r *Repository) CountByOpportunity(ctx context.Context, opportunityID uuid.UUID) (total, accepted int, err error) {
	const q = `SELECT COUNT(*), COUNT(*) FILTER (WHERE status = 'accepted') FROM applications WHERE opportunity_id = $1`
	err = r.pool.QueryRow(ctx, q, opportunityID).Scan(&total, &accepted)
	return total, accepted, err
}

// UpdateStatus sets a new status and returns the updated application.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*models.Application, error) {
	const q = `UPDATE applications SET status = $2, updated_at = NOW() WHERE id = $1
		RETURNING ` + appColumns
	return scanApplication(r.pool.QueryRow(ctx, q, id, status))
}
