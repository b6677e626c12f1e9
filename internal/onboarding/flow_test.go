package onboarding

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestVolunteerFlowShape(t *testing.T) {
	f := VolunteerFlow()
	want := []string{StepBasicInfo, StepProfileDetails, StepInterests, StepVerification}
	if len(f.Steps) != len(want) {
		t.Fatalf("step count: %d", len(f.Steps))
	}
	for i, name := range want {
		if f.Steps[i].Name != name {
			t.Fatalf("step %d = %s, want %s", i, f.Steps[i].Name, name)
		}
	}
	if f.RequiredCount() != 4 {
		t.Fatalf("required count: %d", f.RequiredCount())
	}

	interests, _ := f.Step(StepInterests)
	if !interests.Skippable {
		t.Fatal("interests should be skippable")
	}
	for _, name := range []string{StepBasicInfo, StepProfileDetails, StepVerification} {
		def, ok := f.Step(name)
		if !ok {
			t.Fatalf("missing step %s", name)
		}
		if def.Skippable {
			t.Fatalf("%s should not be skippable", name)
		}
	}

	if _, ok := f.Step("no_such_step"); ok {
		t.Fatal("unknown step resolved")
	}
}

func TestOrganizationFlowShape(t *testing.T) {
	f := OrganizationFlow()
	if f.RequiredCount() != 4 {
		t.Fatalf("required count: %d", f.RequiredCount())
	}
	review, ok := f.Step(StepOrgReview)
	if !ok {
		t.Fatal("missing org_review")
	}
	deps := map[string]bool{}
	for _, d := range review.DependsOn {
		deps[d] = true
	}
	if !deps[StepOrgAddress] || !deps[StepOrgCategory] {
		t.Fatalf("org_review deps: %v", review.DependsOn)
	}
	for i := range f.Steps {
		if f.Steps[i].Skippable {
			t.Fatalf("%s should not be skippable", f.Steps[i].Name)
		}
	}
}

func TestValidatePayloadMessages(t *testing.T) {
	f := VolunteerFlow()
	basic, _ := f.Step(StepBasicInfo)

	err := validatePayload(basic, json.RawMessage(`{"full_name":"A","phone":"+4415551234","date_of_birth":"31-12-1999"}`))
	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if got := valErr.Fields["full_name"]; got != "must be at least 2 characters" {
		t.Fatalf("full_name message: %q", got)
	}
	if got := valErr.Fields["date_of_birth"]; got != "must be a date in YYYY-MM-DD format" {
		t.Fatalf("date_of_birth message: %q", got)
	}

	if err := validatePayload(basic, json.RawMessage(`{"full_name":"Ada Lovelace","phone":"+4415551234"}`)); err != nil {
		t.Fatalf("valid payload rejected: %v", err)
	}
}

func TestValidatePayloadInvalidJSON(t *testing.T) {
	f := VolunteerFlow()
	basic, _ := f.Step(StepBasicInfo)

	err := validatePayload(basic, json.RawMessage(`{"full_name":`))
	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if valErr.Fields["_body"] == "" {
		t.Fatalf("expected _body message, got %v", valErr.Fields)
	}
}

func TestValidatePayloadInterests(t *testing.T) {
	f := VolunteerFlow()
	interests, _ := f.Step(StepInterests)

	err := validatePayload(interests, json.RawMessage(`{"category_ids":[]}`))
	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, ok := valErr.Fields["category_ids"]; !ok {
		t.Fatalf("expected category_ids message, got %v", valErr.Fields)
	}

	if err := validatePayload(interests, json.RawMessage(`{"category_ids":[1,2]}`)); err != nil {
		t.Fatalf("valid interests rejected: %v", err)
	}
}

func TestValidatePayloadAcceptTerms(t *testing.T) {
	f := OrganizationFlow()
	review, _ := f.Step(StepOrgReview)

	err := validatePayload(review, json.RawMessage(`{"accept_terms":false}`))
	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if got := valErr.Fields["accept_terms"]; got != "must be accepted" {
		t.Fatalf("accept_terms message: %q", got)
	}
}
