package onboarding

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/voluntree/backend/internal/models"
)

// Store persists wizard step records. Implementations must keep
// (subject_key, step_name) unique per flow and must never flip a completed
// step back to incomplete through SaveStepData.
type Store interface {
	// GetStep returns the saved record for (subject, step), or ErrNotFound.
	GetStep(ctx context.Context, flow FlowName, subjectKey, stepName string) (*models.StepRecord, error)
	// SaveStepData upserts step_data without validation and without touching
	// is_completed/completed_at (auto-save).
	SaveStepData(ctx context.Context, flow FlowName, subjectKey, stepName string, data json.RawMessage) error
	// CompleteStep upserts step_data and marks the step completed;
	// completed_at is set only on the first completion.
	CompleteStep(ctx context.Context, flow FlowName, subjectKey, stepName string, data json.RawMessage) error
	// ListSteps returns all saved records for the subject.
	ListSteps(ctx context.Context, flow FlowName, subjectKey string) ([]models.StepRecord, error)
	// ClaimFinalization atomically claims the finalize-once transition.
	// Exactly one caller per (flow, subject) ever receives true.
	ClaimFinalization(ctx context.Context, flow FlowName, subjectKey string) (bool, error)
	// ReleaseFinalization undoes a claim after a failed downstream create so
	// a retry can finalize.
	ReleaseFinalization(ctx context.Context, flow FlowName, subjectKey string) error
	// AttachOrganization backfills organization_id onto all of the subject's
	// organization-flow step records once the organization exists.
	AttachOrganization(ctx context.Context, subjectKey string, orgID uuid.UUID) error
}
