package domain

// User is the identity snapshot returned by the identity endpoint.
// It is refreshed on every successful credential validation and never
// mutated in place.
type User struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	FullName       string `json:"full_name,omitempty"`
	OrganizationID string `json:"organization_id,omitempty"`
}

// Organization is the tenant namespace a user belongs to.
// Cached per-credential; invalid once the owning credential is cleared.
type Organization struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	LogoURL  string `json:"logo_url,omitempty"`
	IsActive bool   `json:"is_active"`
}
