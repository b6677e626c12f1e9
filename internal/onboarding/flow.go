package onboarding

// FlowName identifies a registration workflow variant.
type FlowName string

const (
	FlowVolunteer    FlowName = "volunteer"
	FlowOrganization FlowName = "organization"
)

// Volunteer flow step names.
const (
	StepBasicInfo      = "basic_info"
	StepProfileDetails = "profile_details"
	StepInterests      = "interests"
	StepVerification   = "verification"
)

// Organization flow step names.
const (
	StepOrgBasic    = "org_basic"
	StepOrgAddress  = "org_address"
	StepOrgCategory = "org_category"
	StepOrgReview   = "org_review"
)

// StepDefinition describes one ordered wizard step. Payload returns a fresh
// prototype struct carrying validate tags; a nil Payload means the step
// accepts any (or no) data.
type StepDefinition struct {
	Name      string
	Required  bool
	Skippable bool
	DependsOn []string
	Payload   func() any
}

// Flow is the ordered step list for one registration variant, resolved once
// at engine construction.
type Flow struct {
	Name  FlowName
	Steps []StepDefinition
}

// Step returns the definition for name, or false if the step is not part of
// this flow.
func (f *Flow) Step(name string) (*StepDefinition, bool) {
	for i := range f.Steps {
		if f.Steps[i].Name == name {
			return &f.Steps[i], true
		}
	}
	return nil, false
}

// RequiredCount returns the number of required steps in the flow.
func (f *Flow) RequiredCount() int {
	n := 0
	for i := range f.Steps {
		if f.Steps[i].Required {
			n++
		}
	}
	return n
}

// BasicInfoPayload is the volunteer basic_info step schema.
type BasicInfoPayload struct {
	FullName    string `json:"full_name" validate:"required,min=2,max=100"`
	Phone       string `json:"phone" validate:"required,min=7,max=20"`
	DateOfBirth string `json:"date_of_birth" validate:"omitempty,datetime=2006-01-02"`
}

// ProfileDetailsPayload is the volunteer profile_details step schema.
type ProfileDetailsPayload struct {
	CountryID    int64  `json:"country_id" validate:"required,gt=0"`
	CityID       int64  `json:"city_id" validate:"required,gt=0"`
	Address      string `json:"address" validate:"max=255"`
	Bio          string `json:"bio" validate:"max=2000"`
	Availability string `json:"availability" validate:"omitempty,oneof=weekdays weekends evenings flexible"`
}

// InterestsPayload is the volunteer interests step schema.
type InterestsPayload struct {
	CategoryIDs []int64 `json:"category_ids" validate:"required,min=1,max=10,dive,gt=0"`
}

// VerificationPayload is the volunteer verification step schema. DocumentKey
// is the S3 object key returned by the upload-url endpoint.
type VerificationPayload struct {
	DocumentType string `json:"document_type" validate:"required,oneof=id_card passport driver_license"`
	DocumentKey  string `json:"document_key" validate:"required,max=512"`
	AcceptTerms  bool   `json:"accept_terms" validate:"eq=true"`
}

// OrgBasicPayload is the organization org_basic step schema.
type OrgBasicPayload struct {
	Name  string `json:"name" validate:"required,min=2,max=255"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone" validate:"omitempty,min=7,max=20"`
}

// OrgAddressPayload is the organization org_address step schema.
type OrgAddressPayload struct {
	CountryID int64  `json:"country_id" validate:"required,gt=0"`
	CityID    int64  `json:"city_id" validate:"required,gt=0"`
	Address   string `json:"address" validate:"required,max=255"`
}

// OrgCategoryPayload is the organization org_category step schema.
type OrgCategoryPayload struct {
	CategoryID  int64  `json:"category_id" validate:"required,gt=0"`
	Description string `json:"description" validate:"max=2000"`
}

// OrgReviewPayload is the organization org_review step schema.
type OrgReviewPayload struct {
	Website     string `json:"website" validate:"omitempty,url,max=255"`
	AcceptTerms bool   `json:"accept_terms" validate:"eq=true"`
}

// VolunteerFlow returns the volunteer registration flow:
// basic_info -> profile_details -> interests (skippable) -> verification.
func VolunteerFlow() *Flow {
	return &Flow{
		Name: FlowVolunteer,
		Steps: []StepDefinition{
			{
				Name:     StepBasicInfo,
				Required: true,
				Payload:  func() any { return &BasicInfoPayload{} },
			},
			{
				Name:      StepProfileDetails,
				Required:  true,
				DependsOn: []string{StepBasicInfo},
				Payload:   func() any { return &ProfileDetailsPayload{} },
			},
			{
				Name:      StepInterests,
				Required:  true,
				Skippable: true,
				DependsOn: []string{StepProfileDetails},
				Payload:   func() any { return &InterestsPayload{} },
			},
			{
				Name:      StepVerification,
				Required:  true,
				DependsOn: []string{StepProfileDetails},
				Payload:   func() any { return &VerificationPayload{} },
			},
		},
	}
}

// OrganizationFlow returns the organization registration flow, culminating in
// organization creation at org_review completion.
func OrganizationFlow() *Flow {
	return &Flow{
		Name: FlowOrganization,
		Steps: []StepDefinition{
			{
				Name:     StepOrgBasic,
				Required: true,
				Payload:  func() any { return &OrgBasicPayload{} },
			},
			{
				Name:      StepOrgAddress,
				Required:  true,
				DependsOn: []string{StepOrgBasic},
				Payload:   func() any { return &OrgAddressPayload{} },
			},
			{
				Name:      StepOrgCategory,
				Required:  true,
				DependsOn: []string{StepOrgBasic},
				Payload:   func() any { return &OrgCategoryPayload{} },
			},
			{
				Name:      StepOrgReview,
				Required:  true,
				DependsOn: []string{StepOrgAddress, StepOrgCategory},
				Payload:   func() any { return &OrgReviewPayload{} },
			},
		},
	}
}
