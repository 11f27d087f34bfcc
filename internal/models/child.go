package models

// Child represents a child profile owned by the signed-in parent.
type Child struct {
	// ID is the unique identifier for the child (UUID format).
	ID string

	// Name is the child's display name.
	Name string

	// AvatarURL is an optional avatar image reference.
	AvatarURL string

	// Balance is the child's accumulated unredeemed reward total, as last
	// reported by the backend. Never mutated by local arithmetic.
	Balance float64

	// Chores is the child's chore list when the backend returned it nested
	// (children list loads include chores; chore list loads are separate).
	Chores []Chore

	// CreatedAt is the Unix timestamp when the child was created.
	CreatedAt int64

	// UpdatedAt is the Unix timestamp of the last modification.
	UpdatedAt int64
}
