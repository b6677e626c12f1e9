package onboarding

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voluntree/backend/internal/models"
)

// MemoryStore is a mutex-guarded in-memory Store for tests and local
// development. It mirrors the Postgres upsert semantics, including the
// monotonic is_completed flag and the single-winner finalization claim.
type MemoryStore struct {
	mu        sync.Mutex
	steps     map[FlowName]map[string]map[string]*models.StepRecord
	finalized map[string]bool
}

// NewMemoryStore creates an empty in-memory step store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		steps: map[FlowName]map[string]map[string]*models.StepRecord{
			FlowVolunteer:    {},
			FlowOrganization: {},
		},
		finalized: make(map[string]bool),
	}
}

func (m *MemoryStore) subject(flow FlowName, subjectKey string) map[string]*models.StepRecord {
	flowSteps := m.steps[flow]
	if flowSteps[subjectKey] == nil {
		flowSteps[subjectKey] = make(map[string]*models.StepRecord)
	}
	return flowSteps[subjectKey]
}

func (m *MemoryStore) upsert(flow FlowName, subjectKey, stepName string, data json.RawMessage, complete bool) *models.StepRecord {
	subject := m.subject(flow, subjectKey)
	rec, ok := subject[stepName]
	now := time.Now()
	if !ok {
		rec = &models.StepRecord{
			ID:         uuid.New(),
			SubjectKey: subjectKey,
			StepName:   stepName,
			CreatedAt:  now,
		}
		if flow == FlowVolunteer {
			if uid, err := uuid.Parse(subjectKey); err == nil {
				rec.UserID = &uid
			}
		}
		subject[stepName] = rec
	}
	rec.StepData = append(json.RawMessage(nil), data...)
	rec.UpdatedAt = now
	if complete && !rec.IsCompleted {
		rec.IsCompleted = true
		at := now
		rec.CompletedAt = &at
	}
	return rec
}

func (m *MemoryStore) GetStep(_ context.Context, flow FlowName, subjectKey, stepName string) (*models.StepRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.subject(flow, subjectKey)[stepName]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *MemoryStore) SaveStepData(_ context.Context, flow FlowName, subjectKey, stepName string, data json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsert(flow, subjectKey, stepName, data, false)
	return nil
}

func (m *MemoryStore) CompleteStep(_ context.Context, flow FlowName, subjectKey, stepName string, data json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsert(flow, subjectKey, stepName, data, true)
	return nil
}

func (m *MemoryStore) ListSteps(_ context.Context, flow FlowName, subjectKey string) ([]models.StepRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	subject := m.subject(flow, subjectKey)
	list := make([]models.StepRecord, 0, len(subject))
	for _, rec := range subject {
		list = append(list, *rec)
	}
	return list, nil
}

func (m *MemoryStore) ClaimFinalization(_ context.Context, flow FlowName, subjectKey string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := string(flow) + "/" + subjectKey
	if m.finalized[key] {
		return false, nil
	}
	m.finalized[key] = true
	return true, nil
}

func (m *MemoryStore) ReleaseFinalization(_ context.Context, flow FlowName, subjectKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.finalized, string(flow)+"/"+subjectKey)
	return nil
}

func (m *MemoryStore) AttachOrganization(_ context.Context, subjectKey string, orgID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.subject(FlowOrganization, subjectKey) {
		id := orgID
		rec.OrganizationID = &id
	}
	return nil
}
