package models

// Country is a geographic reference row.
type Country struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

// City is a geographic reference row scoped to a country.
type City struct {
	ID        int64  `json:"id"`
	CountryID int64  `json:"country_id"`
	Name      string `json:"name"`
}

// Category kinds.
const (
	CategoryKindVolunteer    = "volunteer"
	CategoryKindOrganization = "organization"
)

// Category is an interest/organization category reference row.
type Category struct {
	ID   int64  `json:"id"`
	Kind string `json:"kind"`
	Name string `json:"name"`
}
