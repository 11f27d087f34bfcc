package models

// Gender is the parent profile's optional gender selection.
type Gender string

const (
	GenderBoy  Gender = "boy"
	GenderGirl Gender = "girl"
	GenderNone Gender = ""
)

// Valid reports whether the gender is a known selection. Empty is valid:
// the selection is optional.
func (g Gender) Valid() bool {
	return g == GenderBoy || g == GenderGirl || g == GenderNone
}

// Profile is the signed-in parent's display info.
type Profile struct {
	// UserID is the owning user's unique identifier.
	UserID string

	// Name is the parent's display name. Empty for a freshly provisioned
	// profile.
	Name string

	// Gender is the optional gender selection.
	Gender Gender
}

// Session is an authenticated session with the backend.
type Session struct {
	// UserID is the authenticated user's unique identifier.
	UserID string

	// Email is the authenticated user's email address.
	Email string

	// AccessToken is the bearer token presented on authenticated calls.
	AccessToken string

	// ExpiresAt is the Unix timestamp when the token expires, 0 when the
	// backend did not report one.
	ExpiresAt int64
}
