package notifications

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voluntree/backend/internal/models"
)

// Repository handles notification and email log persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a notifications repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a notification.
func (r *Repository) Create(ctx context.Context, n *models.Notification) error {
	const q = `INSERT INTO notifications (id, user_id, type, title, body)
		VALUES (gen_random_uuid(), $1, $2, $3, NULLIF($4,''))
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, n.UserID, n.Type, n.Title, n.Body).
		Scan(&n.ID, &n.CreatedAt)
}

// ListByUser returns a user's notifications, newest first, capped at limit.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT id, user_id, type, title, COALESCE(body,''), read_at, created_at
		FROM notifications WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Body, &n.ReadAt, &n.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, n)
	}
	return list, rows.Err()
}

// UnreadCount returns the number of unread notifications for a user.
func (r *Repository) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read_at IS NULL`, userID).Scan(&n)
	return n, err
}

// MarkRead stamps read_at on a notification owned by the user.
func (r *Repository) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE notifications SET read_at = NOW() WHERE id = $1 AND user_id = $2 AND read_at IS NULL`,
		id, userID)
	return err
}

// MarkAllRead stamps read_at on all of a user's unread notifications.
func (r *Repository) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE notifications SET read_at = NOW() WHERE user_id = $1 AND read_at IS NULL`, userID)
	return err
}

// OrganizationOwner returns the owner's user id for an organization, or
// uuid.Nil when no owner membership exists.
func (r *Repository) OrganizationOwner(ctx context.Context, orgID uuid.UUID) (uuid.UUID, error) {
	var owner uuid.UUID
	err := r.pool.QueryRow(ctx,
		`SELECT user_id FROM organization_users WHERE organization_id = $1 AND role = 'owner' LIMIT 1`,
		orgID).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, nil
	}
	if err != nil {
		return uuid.Nil, err
	}
	return owner, nil
}

// CreateEmailLog inserts a pending email log row.
func (r *Repository) CreateEmailLog(ctx context.Context, e *models.EmailLog) error {
	const q = `INSERT INTO email_logs (id, user_id, email_type, recipient_email, subject, status)
		VALUES (gen_random_uuid(), $1, $2, $3, NULLIF($4,''), 'pending')
		RETURNING id, status, created_at`
	return r.pool.QueryRow(ctx, q, e.UserID, e.EmailType, e.RecipientEmail, e.Subject).
		Scan(&e.ID, &e.Status, &e.CreatedAt)
}

// MarkEmailSent records successful delivery.
func (r *Repository) MarkEmailSent(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE email_logs SET status = 'sent', sent_at = NOW(), error_message = NULL WHERE id = $1`, id)
	return err
}

// MarkEmailFailed records a delivery failure.
func (r *Repository) MarkEmailFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE email_logs SET status = 'failed', error_message = $2 WHERE id = $1`, id, errMsg)
	return err
}
