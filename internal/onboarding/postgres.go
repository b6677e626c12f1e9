package onboarding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voluntree/backend/internal/models"
)

// PostgresStore persists step records in user_registration_steps and
// organization_registration_steps.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed step store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func tableFor(flow FlowName) string {
	if flow == FlowOrganization {
		return "organization_registration_steps"
	}
	return "user_registration_steps"
}

const stepColumns = `id, subject_key, step_name, step_data, is_completed, completed_at, organization_id, user_id, created_at, updated_at`

func scanStep(row pgx.Row) (*models.StepRecord, error) {
	var rec models.StepRecord
	err := row.Scan(&rec.ID, &rec.SubjectKey, &rec.StepName, &rec.StepData, &rec.IsCompleted,
		&rec.CompletedAt, &rec.OrganizationID, &rec.UserID, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetStep returns the saved record for (subject, step), or ErrNotFound.
func (s *PostgresStore) GetStep(ctx context.Context, flow FlowName, subjectKey, stepName string) (*models.StepRecord, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE subject_key = $1 AND step_name = $2`, stepColumns, tableFor(flow))
	rec, err := scanStep(s.pool.QueryRow(ctx, q, subjectKey, stepName))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// SaveStepData upserts step_data without touching completion state. For the
// volunteer flow the subject key is the user id and fills the user_id
// backref on first insert.
func (s *PostgresStore) SaveStepData(ctx context.Context, flow FlowName, subjectKey, stepName string, data json.RawMessage) error {
	data = normalizeJSON(data)
	if flow == FlowVolunteer {
		const q = `INSERT INTO user_registration_steps (id, subject_key, step_name, step_data, user_id)
			VALUES (gen_random_uuid(), $1, $2, $3, $1::uuid)
			ON CONFLICT (subject_key, step_name)
			DO UPDATE SET step_data = EXCLUDED.step_data, updated_at = NOW()`
		_, err := s.pool.Exec(ctx, q, subjectKey, stepName, data)
		return err
	}
	const q = `INSERT INTO organization_registration_steps (id, subject_key, step_name, step_data)
		VALUES (gen_random_uuid(), $1, $2, $3)
		ON CONFLICT (subject_key, step_name)
		DO UPDATE SET step_data = EXCLUDED.step_data, updated_at = NOW()`
	_, err := s.pool.Exec(ctx, q, subjectKey, stepName, data)
	return err
}

// CompleteStep upserts step_data and marks the step completed. completed_at
// is preserved across re-submits (first completion only).
func (s *PostgresStore) CompleteStep(ctx context.Context, flow FlowName, subjectKey, stepName string, data json.RawMessage) error {
	data = normalizeJSON(data)
	if flow == FlowVolunteer {
		const q = `INSERT INTO user_registration_steps (id, subject_key, step_name, step_data, is_completed, completed_at, user_id)
			VALUES (gen_random_uuid(), $1, $2, $3, TRUE, NOW(), $1::uuid)
			ON CONFLICT (subject_key, step_name)
			DO UPDATE SET step_data = EXCLUDED.step_data, is_completed = TRUE,
				completed_at = COALESCE(user_registration_steps.completed_at, NOW()), updated_at = NOW()`
		_, err := s.pool.Exec(ctx, q, subjectKey, stepName, data)
		return err
	}
	const q = `INSERT INTO organization_registration_steps (id, subject_key, step_name, step_data, is_completed, completed_at)
		VALUES (gen_random_uuid(), $1, $2, $3, TRUE, NOW())
		ON CONFLICT (subject_key, step_name)
		DO UPDATE SET step_data = EXCLUDED.step_data, is_completed = TRUE,
			completed_at = COALESCE(organization_registration_steps.completed_at, NOW()), updated_at = NOW()`
	_, err := s.pool.Exec(ctx, q, subjectKey, stepName, data)
	return err
}

// ListSteps returns all saved records for the subject.
func (s *PostgresStore) ListSteps(ctx context.Context, flow FlowName, subjectKey string) ([]models.StepRecord, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE subject_key = $1 ORDER BY created_at`, stepColumns, tableFor(flow))
	rows, err := s.pool.Query(ctx, q, subjectKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.StepRecord
	for rows.Next() {
		var rec models.StepRecord
		if err := rows.Scan(&rec.ID, &rec.SubjectKey, &rec.StepName, &rec.StepData, &rec.IsCompleted,
			&rec.CompletedAt, &rec.OrganizationID, &rec.UserID, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, rec)
	}
	return list, rows.Err()
}

// ClaimFinalization wins the finalize-once transition for exactly one caller
// per (flow, subject) via the registration_finalizations unique insert.
func (s *PostgresStore) ClaimFinalization(ctx context.Context, flow FlowName, subjectKey string) (bool, error) {
	const q = `INSERT INTO registration_finalizations (flow, subject_key)
		VALUES ($1, $2) ON CONFLICT (flow, subject_key) DO NOTHING`
	tag, err := s.pool.Exec(ctx, q, string(flow), subjectKey)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ReleaseFinalization removes a claim after a failed downstream create.
func (s *PostgresStore) ReleaseFinalization(ctx context.Context, flow FlowName, subjectKey string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM registration_finalizations WHERE flow = $1 AND subject_key = $2`,
		string(flow), subjectKey)
	return err
}

// AttachOrganization backfills organization_id onto the draft's step records.
func (s *PostgresStore) AttachOrganization(ctx context.Context, subjectKey string, orgID uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE organization_registration_steps SET organization_id = $2, updated_at = NOW() WHERE subject_key = $1`,
		subjectKey, orgID)
	return err
}

// normalizeJSON maps empty auto-save/skip payloads to JSON null so jsonb
// columns accept them.
func normalizeJSON(data json.RawMessage) json.RawMessage {
	if len(data) == 0 {
		return json.RawMessage("null")
	}
	return data
}
