package onboarding

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
)

type fakeVolunteers struct {
	mu    sync.Mutex
	calls []uuid.UUID
	err   error
}

func (f *fakeVolunteers) FinishRegistration(_ context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, userID)
	return nil
}

type fakeOrganizations struct {
	mu     sync.Mutex
	calls  int
	fields map[string]json.RawMessage
	orgID  uuid.UUID
	err    error
}

func (f *fakeOrganizations) CreateFromOnboarding(_ context.Context, _ string, fields map[string]json.RawMessage) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return uuid.Nil, f.err
	}
	f.calls++
	f.fields = fields
	if f.orgID == uuid.Nil {
		f.orgID = uuid.New()
	}
	return f.orgID, nil
}

type fakeNotifier struct {
	mu         sync.Mutex
	volunteers []uuid.UUID
	orgs       []uuid.UUID
	emails     []string
}

func (f *fakeNotifier) VolunteerRegistered(_ context.Context, userID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volunteers = append(f.volunteers, userID)
}

func (f *fakeNotifier) OrganizationRegistered(_ context.Context, orgID uuid.UUID, contactEmail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orgs = append(f.orgs, orgID)
	f.emails = append(f.emails, contactEmail)
}

func newTestEngine() (*Engine, *MemoryStore, *fakeVolunteers, *fakeOrganizations, *fakeNotifier) {
	store := NewMemoryStore()
	vols := &fakeVolunteers{}
	orgs := &fakeOrganizations{}
	notif := &fakeNotifier{}
	return NewEngine(store, vols, orgs, notif, nil), store, vols, orgs, notif
}

func mustSubmit(t *testing.T, e *Engine, flow FlowName, subject, step, payload string) *Result {
	t.Helper()
	res, err := e.Submit(context.Background(), flow, subject, step, json.RawMessage(payload))
	if err != nil {
		t.Fatalf("submit %s: %v", step, err)
	}
	return res
}

const (
	basicInfoJSON      = `{"full_name":"Ada Lovelace","phone":"+4415551234"}`
	profileDetailsJSON = `{"country_id":1,"city_id":2,"bio":"I like teaching","availability":"weekends"}`
	interestsJSON      = `{"category_ids":[1,3]}`
	verificationJSON   = `{"document_type":"passport","document_key":"documents/verification/u/p.pdf","accept_terms":true}`

	orgBasicJSON    = `{"name":"Green Hands","email":"hello@greenhands.org"}`
	orgAddressJSON  = `{"country_id":1,"city_id":2,"address":"12 Elm Street"}`
	orgCategoryJSON = `{"category_id":8,"description":"Environmental cleanups"}`
	orgReviewJSON   = `{"accept_terms":true}`
)

func TestSubmitUnknownStep(t *testing.T) {
	e, _, _, _, _ := newTestEngine()
	_, err := e.Submit(context.Background(), FlowVolunteer, uuid.New().String(), "nonsense", nil)
	if !errors.Is(err, ErrUnknownStep) {
		t.Fatalf("expected ErrUnknownStep, got %v", err)
	}
}

func TestSubmitOutOfOrder(t *testing.T) {
	e, _, _, _, _ := newTestEngine()
	_, err := e.Submit(context.Background(), FlowVolunteer, uuid.New().String(), StepProfileDetails, json.RawMessage(profileDetailsJSON))
	var orderErr *StepOrderError
	if !errors.As(err, &orderErr) {
		t.Fatalf("expected StepOrderError, got %v", err)
	}
	if orderErr.Missing != StepBasicInfo {
		t.Fatalf("expected missing %s, got %s", StepBasicInfo, orderErr.Missing)
	}
}

func TestSubmitValidationFailure(t *testing.T) {
	e, store, _, _, _ := newTestEngine()
	subject := uuid.New().String()

	_, err := e.Submit(context.Background(), FlowVolunteer, subject, StepBasicInfo, json.RawMessage(`{"full_name":"A"}`))
	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, ok := valErr.Fields["full_name"]; !ok {
		t.Fatalf("expected full_name message, got %v", valErr.Fields)
	}
	if _, ok := valErr.Fields["phone"]; !ok {
		t.Fatalf("expected phone message, got %v", valErr.Fields)
	}

	// a rejected submit must not complete the step
	if _, err := store.GetStep(context.Background(), FlowVolunteer, subject, StepBasicInfo); !errors.Is(err, ErrNotFound) {
		t.Fatalf("rejected submit should not persist completion, got %v", err)
	}
}

func TestAutoSaveDoesNotComplete(t *testing.T) {
	e, store, _, _, _ := newTestEngine()
	subject := uuid.New().String()

	// garbage by schema standards, but auto-save skips validation
	if err := e.SaveDraft(context.Background(), FlowVolunteer, subject, StepBasicInfo, json.RawMessage(`{"full_name":"A"}`)); err != nil {
		t.Fatalf("save draft: %v", err)
	}
	rec, err := store.GetStep(context.Background(), FlowVolunteer, subject, StepBasicInfo)
	if err != nil {
		t.Fatalf("get step: %v", err)
	}
	if rec.IsCompleted {
		t.Fatal("auto-save must not complete a step")
	}

	// completion is monotonic: a later draft save keeps is_completed
	mustSubmit(t, e, FlowVolunteer, subject, StepBasicInfo, basicInfoJSON)
	if err := e.SaveDraft(context.Background(), FlowVolunteer, subject, StepBasicInfo, json.RawMessage(`{"full_name":"Draft"}`)); err != nil {
		t.Fatalf("save draft after submit: %v", err)
	}
	rec, _ = store.GetStep(context.Background(), FlowVolunteer, subject, StepBasicInfo)
	if !rec.IsCompleted {
		t.Fatal("draft save flipped a completed step back to incomplete")
	}
}

func TestAutoSaveUpsertsSingleRecord(t *testing.T) {
	e, store, _, _, _ := newTestEngine()
	subject := uuid.New().String()

	payloads := []string{`{"full_name":"A"}`, `{"full_name":"Ad"}`, `{"full_name":"Ada"}`}
	for _, p := range payloads {
		if err := e.SaveDraft(context.Background(), FlowVolunteer, subject, StepBasicInfo, json.RawMessage(p)); err != nil {
			t.Fatalf("save draft: %v", err)
		}
	}

	recs, err := store.ListSteps(context.Background(), FlowVolunteer, subject)
	if err != nil {
		t.Fatalf("list steps: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected a single upserted record, got %d", len(recs))
	}
	if string(recs[0].StepData) != payloads[len(payloads)-1] {
		t.Fatalf("step_data should be the last payload, got %s", recs[0].StepData)
	}
	if recs[0].IsCompleted {
		t.Fatal("auto-save completed the step")
	}
}

func TestResubmitKeepsFirstCompletedAt(t *testing.T) {
	e, store, _, _, _ := newTestEngine()
	subject := uuid.New().String()

	mustSubmit(t, e, FlowVolunteer, subject, StepBasicInfo, basicInfoJSON)
	first, _ := store.GetStep(context.Background(), FlowVolunteer, subject, StepBasicInfo)

	mustSubmit(t, e, FlowVolunteer, subject, StepBasicInfo, `{"full_name":"Ada L.","phone":"+4415551234"}`)
	second, _ := store.GetStep(context.Background(), FlowVolunteer, subject, StepBasicInfo)

	if !second.CompletedAt.Equal(*first.CompletedAt) {
		t.Fatal("re-submit moved completed_at")
	}
	var got struct {
		FullName string `json:"full_name"`
	}
	if err := json.Unmarshal(second.StepData, &got); err != nil || got.FullName != "Ada L." {
		t.Fatalf("re-submit should update step_data, got %s", second.StepData)
	}
}

func TestSkip(t *testing.T) {
	e, _, _, _, _ := newTestEngine()
	subject := uuid.New().String()

	// verification is not skippable
	mustSubmit(t, e, FlowVolunteer, subject, StepBasicInfo, basicInfoJSON)
	mustSubmit(t, e, FlowVolunteer, subject, StepProfileDetails, profileDetailsJSON)
	if _, err := e.Skip(context.Background(), FlowVolunteer, subject, StepVerification); !errors.Is(err, ErrNotSkippable) {
		t.Fatalf("expected ErrNotSkippable, got %v", err)
	}

	res, err := e.Skip(context.Background(), FlowVolunteer, subject, StepInterests)
	if err != nil {
		t.Fatalf("skip interests: %v", err)
	}
	if res.NextStep != StepVerification {
		t.Fatalf("expected next step %s, got %s", StepVerification, res.NextStep)
	}
}

func TestSkipKeepsSubmittedData(t *testing.T) {
	e, store, _, _, _ := newTestEngine()
	subject := uuid.New().String()

	mustSubmit(t, e, FlowVolunteer, subject, StepBasicInfo, basicInfoJSON)
	mustSubmit(t, e, FlowVolunteer, subject, StepProfileDetails, profileDetailsJSON)
	mustSubmit(t, e, FlowVolunteer, subject, StepInterests, interestsJSON)

	// a stray skip after a real submit must not erase the submitted payload
	res, err := e.Skip(context.Background(), FlowVolunteer, subject, StepInterests)
	if err != nil {
		t.Fatalf("skip completed step: %v", err)
	}
	if res.NextStep != StepVerification {
		t.Fatalf("expected next step %s, got %s", StepVerification, res.NextStep)
	}

	rec, err := store.GetStep(context.Background(), FlowVolunteer, subject, StepInterests)
	if err != nil {
		t.Fatalf("get step: %v", err)
	}
	if !rec.IsCompleted {
		t.Fatal("skip reverted completion")
	}
	var got struct {
		CategoryIDs []int64 `json:"category_ids"`
	}
	if err := json.Unmarshal(rec.StepData, &got); err != nil || len(got.CategoryIDs) != 2 {
		t.Fatalf("skip erased submitted data: %s", rec.StepData)
	}
}

func TestSkipRespectsDependencies(t *testing.T) {
	e, _, _, _, _ := newTestEngine()
	_, err := e.Skip(context.Background(), FlowVolunteer, uuid.New().String(), StepInterests)
	var orderErr *StepOrderError
	if !errors.As(err, &orderErr) {
		t.Fatalf("expected StepOrderError, got %v", err)
	}
}

func TestProgressPercentage(t *testing.T) {
	e, _, _, _, _ := newTestEngine()
	subject := uuid.New().String()

	p, err := e.Progress(context.Background(), FlowVolunteer, subject)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if p.Percentage != 0 || p.TotalRequired != 4 || len(p.Steps) != 4 {
		t.Fatalf("empty progress wrong: %+v", p)
	}

	mustSubmit(t, e, FlowVolunteer, subject, StepBasicInfo, basicInfoJSON)
	mustSubmit(t, e, FlowVolunteer, subject, StepProfileDetails, profileDetailsJSON)

	p, _ = e.Progress(context.Background(), FlowVolunteer, subject)
	if p.CompletedCount != 2 || p.Percentage != 50 {
		t.Fatalf("expected 2/4 = 50%%, got %d/%d = %d%%", p.CompletedCount, p.TotalRequired, p.Percentage)
	}
	for _, s := range p.Steps {
		wantDone := s.Name == StepBasicInfo || s.Name == StepProfileDetails
		if s.IsCompleted != wantDone {
			t.Fatalf("step %s completion = %v", s.Name, s.IsCompleted)
		}
	}
}

func TestVolunteerFlowEndToEnd(t *testing.T) {
	e, _, vols, _, notif := newTestEngine()
	userID := uuid.New()
	subject := userID.String()

	res := mustSubmit(t, e, FlowVolunteer, subject, StepBasicInfo, basicInfoJSON)
	if res.Completed || res.NextStep != StepProfileDetails {
		t.Fatalf("after basic_info: %+v", res)
	}
	res = mustSubmit(t, e, FlowVolunteer, subject, StepProfileDetails, profileDetailsJSON)
	if res.NextStep != StepInterests {
		t.Fatalf("after profile_details: %+v", res)
	}
	res = mustSubmit(t, e, FlowVolunteer, subject, StepInterests, interestsJSON)
	if res.NextStep != StepVerification {
		t.Fatalf("after interests: %+v", res)
	}
	res = mustSubmit(t, e, FlowVolunteer, subject, StepVerification, verificationJSON)
	if !res.Completed {
		t.Fatalf("expected completion, got %+v", res)
	}

	if len(vols.calls) != 1 || vols.calls[0] != userID {
		t.Fatalf("finalizer calls: %v", vols.calls)
	}
	if len(notif.volunteers) != 1 || notif.volunteers[0] != userID {
		t.Fatalf("notifier calls: %v", notif.volunteers)
	}

	p, _ := e.Progress(context.Background(), FlowVolunteer, subject)
	if p.Percentage != 100 {
		t.Fatalf("expected 100%%, got %d%%", p.Percentage)
	}
}

func TestOrganizationFlowEndToEnd(t *testing.T) {
	e, store, _, orgs, notif := newTestEngine()
	subject := "draft-token-1"

	mustSubmit(t, e, FlowOrganization, subject, StepOrgBasic, orgBasicJSON)
	mustSubmit(t, e, FlowOrganization, subject, StepOrgAddress, orgAddressJSON)

	// org_category depends only on org_basic, so ordering between address and
	// category is free
	p, _ := e.Progress(context.Background(), FlowOrganization, subject)
	if p.Percentage != 50 {
		t.Fatalf("expected 50%%, got %d%%", p.Percentage)
	}

	mustSubmit(t, e, FlowOrganization, subject, StepOrgCategory, orgCategoryJSON)

	// before the last step no organization exists and no backrefs are set
	p, _ = e.Progress(context.Background(), FlowOrganization, subject)
	if p.Percentage != 75 {
		t.Fatalf("expected 75%%, got %d%%", p.Percentage)
	}
	recs, _ := store.ListSteps(context.Background(), FlowOrganization, subject)
	for _, rec := range recs {
		if rec.OrganizationID != nil {
			t.Fatalf("step %s has organization backref before finalization", rec.StepName)
		}
	}

	res := mustSubmit(t, e, FlowOrganization, subject, StepOrgReview, orgReviewJSON)
	if !res.Completed || res.OrganizationID == nil || *res.OrganizationID != orgs.orgID {
		t.Fatalf("expected completion with org id, got %+v", res)
	}

	// merged fields carry keys from every step
	for _, key := range []string{"name", "email", "address", "category_id"} {
		if _, ok := orgs.fields[key]; !ok {
			t.Fatalf("merged fields missing %q: %v", key, orgs.fields)
		}
	}
	if len(notif.emails) != 1 || notif.emails[0] != "hello@greenhands.org" {
		t.Fatalf("contact email: %v", notif.emails)
	}

	// step records get the organization backref
	recs, _ = store.ListSteps(context.Background(), FlowOrganization, subject)
	for _, rec := range recs {
		if rec.OrganizationID == nil || *rec.OrganizationID != orgs.orgID {
			t.Fatalf("step %s missing organization backref", rec.StepName)
		}
	}
}

func TestOrgReviewRequiresBothBranches(t *testing.T) {
	e, _, _, _, _ := newTestEngine()
	subject := "draft-token-2"

	mustSubmit(t, e, FlowOrganization, subject, StepOrgBasic, orgBasicJSON)
	mustSubmit(t, e, FlowOrganization, subject, StepOrgCategory, orgCategoryJSON)

	_, err := e.Submit(context.Background(), FlowOrganization, subject, StepOrgReview, json.RawMessage(orgReviewJSON))
	var orderErr *StepOrderError
	if !errors.As(err, &orderErr) {
		t.Fatalf("expected StepOrderError, got %v", err)
	}
	if orderErr.Missing != StepOrgAddress {
		t.Fatalf("expected missing %s, got %s", StepOrgAddress, orderErr.Missing)
	}
}

func TestFinalizeExactlyOnceConcurrent(t *testing.T) {
	e, _, vols, _, _ := newTestEngine()
	userID := uuid.New()
	subject := userID.String()

	mustSubmit(t, e, FlowVolunteer, subject, StepBasicInfo, basicInfoJSON)
	mustSubmit(t, e, FlowVolunteer, subject, StepProfileDetails, profileDetailsJSON)
	mustSubmit(t, e, FlowVolunteer, subject, StepInterests, interestsJSON)

	const workers = 16
	var wg sync.WaitGroup
	results := make([]*Result, workers)
	errs := make([]error, workers)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = e.Submit(context.Background(), FlowVolunteer, subject, StepVerification, json.RawMessage(verificationJSON))
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("worker %d: %v", i, errs[i])
		}
		if !results[i].Completed {
			t.Fatalf("worker %d: expected completed=true, got %+v", i, results[i])
		}
	}
	if len(vols.calls) != 1 {
		t.Fatalf("finalizer ran %d times, want exactly 1", len(vols.calls))
	}
}

func TestFinalizeReleasedOnFailure(t *testing.T) {
	e, _, vols, _, _ := newTestEngine()
	userID := uuid.New()
	subject := userID.String()

	mustSubmit(t, e, FlowVolunteer, subject, StepBasicInfo, basicInfoJSON)
	mustSubmit(t, e, FlowVolunteer, subject, StepProfileDetails, profileDetailsJSON)
	mustSubmit(t, e, FlowVolunteer, subject, StepInterests, interestsJSON)

	vols.err = errors.New("users table on fire")
	if _, err := e.Submit(context.Background(), FlowVolunteer, subject, StepVerification, json.RawMessage(verificationJSON)); err == nil {
		t.Fatal("expected finalization error")
	}

	// the claim is released, so a retry can finish
	vols.err = nil
	res := mustSubmit(t, e, FlowVolunteer, subject, StepVerification, verificationJSON)
	if !res.Completed {
		t.Fatalf("retry should finalize, got %+v", res)
	}
	if len(vols.calls) != 1 {
		t.Fatalf("finalizer calls after retry: %d", len(vols.calls))
	}
}

func TestOrganizationFinalizeReleasedOnFailure(t *testing.T) {
	e, _, _, orgs, notif := newTestEngine()
	subject := "draft-token-3"

	mustSubmit(t, e, FlowOrganization, subject, StepOrgBasic, orgBasicJSON)
	mustSubmit(t, e, FlowOrganization, subject, StepOrgAddress, orgAddressJSON)
	mustSubmit(t, e, FlowOrganization, subject, StepOrgCategory, orgCategoryJSON)

	// the repository creates org and owner atomically, so a failure leaves no
	// organization behind and the claim must be released for the retry
	orgs.err = errors.New("owner row insert failed")
	if _, err := e.Submit(context.Background(), FlowOrganization, subject, StepOrgReview, json.RawMessage(orgReviewJSON)); err == nil {
		t.Fatal("expected finalization error")
	}
	if orgs.calls != 0 {
		t.Fatalf("failed finalization counted as a creation: %d", orgs.calls)
	}

	orgs.err = nil
	res := mustSubmit(t, e, FlowOrganization, subject, StepOrgReview, orgReviewJSON)
	if !res.Completed || res.OrganizationID == nil {
		t.Fatalf("retry should finalize, got %+v", res)
	}
	if orgs.calls != 1 {
		t.Fatalf("organizations created across retry: %d, want exactly 1", orgs.calls)
	}
	if len(notif.orgs) != 1 {
		t.Fatalf("organization notifications: %d", len(notif.orgs))
	}
}

func TestStepReturnsSavedRecord(t *testing.T) {
	e, _, _, _, _ := newTestEngine()
	subject := uuid.New().String()

	if _, err := e.Step(context.Background(), FlowVolunteer, subject, StepBasicInfo); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	mustSubmit(t, e, FlowVolunteer, subject, StepBasicInfo, basicInfoJSON)
	rec, err := e.Step(context.Background(), FlowVolunteer, subject, StepBasicInfo)
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if !rec.IsCompleted || rec.StepName != StepBasicInfo {
		t.Fatalf("unexpected record: %+v", rec)
	}
}
