package onboarding

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voluntree/backend/internal/models"
)

// ErrDraftNotFound is returned for unknown draft session tokens.
var ErrDraftNotFound = errors.New("onboarding session not found")

// DraftRepository handles anonymous organization-registration sessions. The
// draft token is the organization flow's subject key until the organization
// row exists.
type DraftRepository struct {
	pool *pgxpool.Pool
}

// NewDraftRepository creates a draft session repository.
func NewDraftRepository(pool *pgxpool.Pool) *DraftRepository {
	return &DraftRepository{pool: pool}
}

// Create issues a new draft session. userID may be nil for fully anonymous
// registration.
func (r *DraftRepository) Create(ctx context.Context, userID *uuid.UUID, ttl time.Duration) (*models.OrganizationDraft, error) {
	token, err := generateDraftToken()
	if err != nil {
		return nil, err
	}
	const q = `INSERT INTO organization_drafts (id, token, user_id, expires_at)
		VALUES (gen_random_uuid(), $1, $2, $3)
		RETURNING id, token, user_id, organization_id, expires_at, created_at`
	var d models.OrganizationDraft
	err = r.pool.QueryRow(ctx, q, token, userID, time.Now().Add(ttl)).
		Scan(&d.ID, &d.Token, &d.UserID, &d.OrganizationID, &d.ExpiresAt, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// GetByToken returns the draft session for a token, or ErrDraftNotFound.
func (r *DraftRepository) GetByToken(ctx context.Context, token string) (*models.OrganizationDraft, error) {
	const q = `SELECT id, token, user_id, organization_id, expires_at, created_at
		FROM organization_drafts WHERE token = $1`
	var d models.OrganizationDraft
	err := r.pool.QueryRow(ctx, q, token).
		Scan(&d.ID, &d.Token, &d.UserID, &d.OrganizationID, &d.ExpiresAt, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDraftNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// MarkConverted records the created organization on the draft.
func (r *DraftRepository) MarkConverted(ctx context.Context, token string, orgID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE organization_drafts SET organization_id = $2 WHERE token = $1`,
		token, orgID)
	return err
}

// DeleteExpired removes expired unconverted drafts and their step records.
// Returns the number of drafts removed.
func (r *DraftRepository) DeleteExpired(ctx context.Context) (int64, error) {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM organization_registration_steps
		 WHERE subject_key IN (
			SELECT token FROM organization_drafts
			WHERE expires_at < NOW() AND organization_id IS NULL)`)
	if err != nil {
		return 0, err
	}
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM organization_drafts WHERE expires_at < NOW() AND organization_id IS NULL`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func generateDraftToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b)[:43], nil
}
