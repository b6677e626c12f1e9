package onboarding

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voluntree/backend/internal/models"
)

// VolunteerFinalizer marks a user's registration complete.
type VolunteerFinalizer interface {
	FinishRegistration(ctx context.Context, userID uuid.UUID) error
}

// OrganizationFinalizer creates the permanent organization from the merged
// step payloads of a finished draft.
type OrganizationFinalizer interface {
	CreateFromOnboarding(ctx context.Context, subjectKey string, fields map[string]json.RawMessage) (uuid.UUID, error)
}

// Notifier dispatches downstream notifications after finalization. Calls are
// fire-and-forget from the engine's point of view.
type Notifier interface {
	VolunteerRegistered(ctx context.Context, userID uuid.UUID)
	OrganizationRegistered(ctx context.Context, orgID uuid.UUID, contactEmail string)
}

// Result is the outcome of a successful Submit or Skip.
type Result struct {
	NextStep       string     `json:"next_step,omitempty"`
	Completed      bool       `json:"completed"`
	OrganizationID *uuid.UUID `json:"organization_id,omitempty"`
}

// StepStatus is one entry of a progress report.
type StepStatus struct {
	Name        string     `json:"name"`
	Required    bool       `json:"required"`
	Skippable   bool       `json:"skippable"`
	IsCompleted bool       `json:"is_completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Progress is the resumable-progress report for a subject.
type Progress struct {
	CompletedCount int          `json:"completed_count"`
	TotalRequired  int          `json:"total_required"`
	Percentage     int          `json:"percentage"`
	Steps          []StepStatus `json:"steps"`
}

// Engine drives subjects through registration flows: validates and persists
// step input, reports progress, and gates the finalize-once transition.
type Engine struct {
	flows         map[FlowName]*Flow
	store         Store
	volunteers    VolunteerFinalizer
	organizations OrganizationFinalizer
	notifier      Notifier
	logger        *zap.Logger
}

// NewEngine creates an engine with the volunteer and organization flows.
func NewEngine(store Store, volunteers VolunteerFinalizer, organizations OrganizationFinalizer, notifier Notifier, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		flows: map[FlowName]*Flow{
			FlowVolunteer:    VolunteerFlow(),
			FlowOrganization: OrganizationFlow(),
		},
		store:         store,
		volunteers:    volunteers,
		organizations: organizations,
		notifier:      notifier,
		logger:        logger,
	}
}

// Flow returns the flow definition by name.
func (e *Engine) Flow(name FlowName) (*Flow, bool) {
	f, ok := e.flows[name]
	return f, ok
}

func (e *Engine) stepDef(flow FlowName, stepName string) (*Flow, *StepDefinition, error) {
	f, ok := e.flows[flow]
	if !ok {
		return nil, nil, fmt.Errorf("%w: flow %s", ErrUnknownStep, flow)
	}
	def, ok := f.Step(stepName)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownStep, stepName)
	}
	return f, def, nil
}

// Step returns the most recently saved record for a step so a revisited form
// can be pre-filled. Returns ErrNotFound when nothing was saved yet.
func (e *Engine) Step(ctx context.Context, flow FlowName, subjectKey, stepName string) (*models.StepRecord, error) {
	if _, _, err := e.stepDef(flow, stepName); err != nil {
		return nil, err
	}
	return e.store.GetStep(ctx, flow, subjectKey, stepName)
}

// SaveDraft upserts step data without validation and without completing the
// step (auto-save). It fails only on unknown steps or persistence errors.
func (e *Engine) SaveDraft(ctx context.Context, flow FlowName, subjectKey, stepName string, payload json.RawMessage) error {
	if _, _, err := e.stepDef(flow, stepName); err != nil {
		return err
	}
	return e.store.SaveStepData(ctx, flow, subjectKey, stepName, payload)
}

// Submit validates and persists a step, marks it completed, and reports the
// next step or, when all required steps are done, finalizes the subject.
func (e *Engine) Submit(ctx context.Context, flow FlowName, subjectKey, stepName string, payload json.RawMessage) (*Result, error) {
	f, def, err := e.stepDef(flow, stepName)
	if err != nil {
		return nil, err
	}

	completed, err := e.completedSet(ctx, flow, subjectKey)
	if err != nil {
		return nil, err
	}
	if missing := firstMissingDep(def, completed); missing != "" {
		return nil, &StepOrderError{Step: stepName, Missing: missing}
	}
	if err := validatePayload(def, payload); err != nil {
		return nil, err
	}
	if err := e.store.CompleteStep(ctx, flow, subjectKey, stepName, payload); err != nil {
		return nil, err
	}
	completed[stepName] = true
	return e.advance(ctx, f, subjectKey, completed)
}

// Skip marks a skippable step completed with empty data, bypassing
// validation, and advances like Submit. A step that was already submitted
// keeps its data.
func (e *Engine) Skip(ctx context.Context, flow FlowName, subjectKey, stepName string) (*Result, error) {
	f, def, err := e.stepDef(flow, stepName)
	if err != nil {
		return nil, err
	}
	if !def.Skippable {
		return nil, fmt.Errorf("%w: %s", ErrNotSkippable, stepName)
	}
	completed, err := e.completedSet(ctx, flow, subjectKey)
	if err != nil {
		return nil, err
	}
	if missing := firstMissingDep(def, completed); missing != "" {
		return nil, &StepOrderError{Step: stepName, Missing: missing}
	}
	// an already-completed step keeps its submitted data; skip just advances
	if !completed[stepName] {
		if err := e.store.CompleteStep(ctx, flow, subjectKey, stepName, nil); err != nil {
			return nil, err
		}
		completed[stepName] = true
	}
	return e.advance(ctx, f, subjectKey, completed)
}

// Progress reports per-step completion and the rounded percentage of
// required steps done.
func (e *Engine) Progress(ctx context.Context, flow FlowName, subjectKey string) (*Progress, error) {
	f, ok := e.flows[flow]
	if !ok {
		return nil, fmt.Errorf("%w: flow %s", ErrUnknownStep, flow)
	}
	records, err := e.store.ListSteps(ctx, flow, subjectKey)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]*models.StepRecord, len(records))
	for i := range records {
		byName[records[i].StepName] = &records[i]
	}

	p := &Progress{TotalRequired: f.RequiredCount(), Steps: make([]StepStatus, 0, len(f.Steps))}
	for i := range f.Steps {
		def := &f.Steps[i]
		status := StepStatus{Name: def.Name, Required: def.Required, Skippable: def.Skippable}
		if rec, ok := byName[def.Name]; ok && rec.IsCompleted {
			status.IsCompleted = true
			status.CompletedAt = rec.CompletedAt
			if def.Required {
				p.CompletedCount++
			}
		}
		p.Steps = append(p.Steps, status)
	}
	if p.TotalRequired > 0 {
		p.Percentage = int(math.Round(100 * float64(p.CompletedCount) / float64(p.TotalRequired)))
	}
	return p, nil
}

func (e *Engine) completedSet(ctx context.Context, flow FlowName, subjectKey string) (map[string]bool, error) {
	records, err := e.store.ListSteps(ctx, flow, subjectKey)
	if err != nil {
		return nil, err
	}
	completed := make(map[string]bool, len(records))
	for i := range records {
		if records[i].IsCompleted {
			completed[records[i].StepName] = true
		}
	}
	return completed, nil
}

func firstMissingDep(def *StepDefinition, completed map[string]bool) string {
	for _, dep := range def.DependsOn {
		if !completed[dep] {
			return dep
		}
	}
	return ""
}

// advance picks the next eligible step, or finalizes when every required
// step is completed.
func (e *Engine) advance(ctx context.Context, f *Flow, subjectKey string, completed map[string]bool) (*Result, error) {
	next := ""
	allRequired := true
	for i := range f.Steps {
		def := &f.Steps[i]
		if completed[def.Name] {
			continue
		}
		if def.Required {
			allRequired = false
		}
		if next == "" && firstMissingDep(def, completed) == "" {
			next = def.Name
		}
	}
	if allRequired {
		return e.finalize(ctx, f.Name, subjectKey)
	}
	return &Result{NextStep: next}, nil
}

// finalize performs the complete-exactly-once transition. Losing a
// concurrent claim is treated as already-completed, not an error.
func (e *Engine) finalize(ctx context.Context, flow FlowName, subjectKey string) (*Result, error) {
	won, err := e.store.ClaimFinalization(ctx, flow, subjectKey)
	if err != nil {
		return nil, err
	}
	if !won {
		e.logger.Info("duplicate finalization attempt ignored",
			zap.String("flow", string(flow)), zap.String("subject", subjectKey))
		return &Result{Completed: true}, nil
	}

	switch flow {
	case FlowVolunteer:
		userID, err := uuid.Parse(subjectKey)
		if err != nil {
			e.releaseClaim(ctx, flow, subjectKey)
			return nil, fmt.Errorf("volunteer subject key: %w", err)
		}
		if err := e.volunteers.FinishRegistration(ctx, userID); err != nil {
			e.releaseClaim(ctx, flow, subjectKey)
			return nil, fmt.Errorf("finish registration: %w", err)
		}
		if e.notifier != nil {
			e.notifier.VolunteerRegistered(ctx, userID)
		}
		e.logger.Info("volunteer registration finalized", zap.String("user_id", subjectKey))
		return &Result{Completed: true}, nil

	case FlowOrganization:
		fields, contactEmail, err := e.mergedDraftFields(ctx, subjectKey)
		if err != nil {
			e.releaseClaim(ctx, flow, subjectKey)
			return nil, err
		}
		orgID, err := e.organizations.CreateFromOnboarding(ctx, subjectKey, fields)
		if err != nil {
			e.releaseClaim(ctx, flow, subjectKey)
			return nil, fmt.Errorf("create organization: %w", err)
		}
		if err := e.store.AttachOrganization(ctx, subjectKey, orgID); err != nil {
			// the organization exists; losing the backref is logged, not fatal
			e.logger.Error("attach organization to step records failed",
				zap.Error(err), zap.String("organization_id", orgID.String()))
		}
		if e.notifier != nil {
			e.notifier.OrganizationRegistered(ctx, orgID, contactEmail)
		}
		e.logger.Info("organization registration finalized",
			zap.String("subject", subjectKey), zap.String("organization_id", orgID.String()))
		return &Result{Completed: true, OrganizationID: &orgID}, nil

	default:
		return nil, fmt.Errorf("%w: flow %s", ErrUnknownStep, flow)
	}
}

func (e *Engine) releaseClaim(ctx context.Context, flow FlowName, subjectKey string) {
	if err := e.store.ReleaseFinalization(ctx, flow, subjectKey); err != nil {
		e.logger.Error("release finalization claim failed",
			zap.Error(err), zap.String("flow", string(flow)), zap.String("subject", subjectKey))
	}
}

// mergedDraftFields flattens all saved step payloads into one field map;
// later steps win on key collisions. Also extracts the contact email for
// post-creation notification.
func (e *Engine) mergedDraftFields(ctx context.Context, subjectKey string) (map[string]json.RawMessage, string, error) {
	f := e.flows[FlowOrganization]
	records, err := e.store.ListSteps(ctx, FlowOrganization, subjectKey)
	if err != nil {
		return nil, "", err
	}
	byName := make(map[string]json.RawMessage, len(records))
	for i := range records {
		byName[records[i].StepName] = records[i].StepData
	}

	fields := make(map[string]json.RawMessage)
	for i := range f.Steps {
		raw := byName[f.Steps[i].Name]
		if len(raw) == 0 {
			continue
		}
		var part map[string]json.RawMessage
		if err := json.Unmarshal(raw, &part); err != nil {
			continue
		}
		for k, v := range part {
			fields[k] = v
		}
	}

	email := ""
	if raw, ok := fields["email"]; ok {
		_ = json.Unmarshal(raw, &email)
	}
	return fields, email, nil
}
