package hours

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voluntree/backend/internal/models"
)

// Repository handles volunteer hour persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an hours repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const hourColumns = `id, opportunity_id, user_id, worked_on, hours, COALESCE(note,''), confirmed, created_at`

func scanEntry(row interface{ Scan(...any) error }) (*models.HourEntry, error) {
	var e models.HourEntry
	err := row.Scan(&e.ID, &e.OpportunityID, &e.UserID, &e.WorkedOn, &e.Hours, &e.Note, &e.Confirmed, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Log inserts an hour entry.
func (r *Repository) Log(ctx context.Context, e *models.HourEntry) error {
	const q = `INSERT INTO volunteer_hours (id, opportunity_id, user_id, worked_on, hours, note)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, NULLIF($5,''))
		RETURNING id, confirmed, created_at`
	return r.pool.QueryRow(ctx, q, e.OpportunityID, e.UserID, e.WorkedOn, e.Hours, e.Note).
		Scan(&e.ID, &e.Confirmed, &e.CreatedAt)
}

// GetByID returns an hour entry by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.HourEntry, error) {
	return scanEntry(r.pool.QueryRow(ctx, `SELECT `+hourColumns+` FROM volunteer_hours WHERE id = $1`, id))
}

// ListByUser returns a volunteer's hour entries, newest work first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.HourEntry, error) {
	return r.list(ctx, `SELECT `+hourColumns+` FROM volunteer_hours WHERE user_id = $1 ORDER BY worked_on DESC, created_at DESC`, userID)
}

// ListByOpportunity returns hour entries for an opportunity.
func (r *Repository) ListByOpportunity(ctx context.Context, opportunityID uuid.UUID) ([]models.HourEntry, error) {
	return r.list(ctx, `SELECT `+hourColumns+` FROM volunteer_hours WHERE opportunity_id = $1 ORDER BY worked_on DESC, created_at DESC`, opportunityID)
}

func (r *Repository) list(ctx context.Context, q string, arg any) ([]models.HourEntry, error) {
	rows, err := r.pool.Query(ctx, q, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.HourEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *e)
	}
	return list, rows.Err()
}

// Totals holds aggregated hours for a volunteer.
type Totals struct {
	TotalHours     float64    `json:"total_hours"`
	ConfirmedHours float64    `json:"confirmed_hours"`
	Entries        int        `json:"entries"`
	FirstWorkedOn  *time.Time `json:"first_worked_on,omitempty"`
	LastWorkedOn   *time.Time `json:"last_worked_on,omitempty"`
}

// TotalsByUser aggregates a volunteer's logged hours.
func (r *Repository) TotalsByUser(ctx context.Context, userID uuid.UUID) (*Totals, error) {
	const q = `SELECT COALESCE(SUM(hours), 0), COALESCE(SUM(hours) FILTER (WHERE confirmed), 0),
		COUNT(*), MIN(worked_on), MAX(worked_on)
		FROM volunteer_hours WHERE user_id = $1`
	var t Totals
	err := r.pool.QueryRow(ctx, q, userID).
		Scan(&t.TotalHours, &t.ConfirmedHours, &t.Entries, &t.FirstWorkedOn, &t.LastWorkedOn)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Confirm marks an hour entry as confirmed by the organization.
func (r *Repository) Confirm(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE volunteer_hours SET confirmed = TRUE WHERE id = $1`, id)
	return err
}
