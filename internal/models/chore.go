package models

// RoutineType is the time-of-day grouping used to filter the active chore list.
type RoutineType string

const (
	RoutineMorning RoutineType = "morning"
	RoutineEvening RoutineType = "evening"
)

// Valid reports whether the routine type is one of the known groupings.
func (r RoutineType) Valid() bool {
	return r == RoutineMorning || r == RoutineEvening
}

// Chore represents a recurring task assigned to a child.
type Chore struct {
	// ID is the unique identifier for the chore (UUID format).
	ID string

	// ChildID is the child this chore belongs to.
	ChildID string

	// Title is the display name of the chore (e.g., "Brush teeth").
	Title string

	// Description is an optional longer description.
	Description string

	// RewardAmount is the money credited to the child's balance when the
	// chore is completed. Always non-negative.
	RewardAmount float64

	// RoutineType is the morning/evening grouping.
	RoutineType RoutineType

	// IsCustom marks parent-created chores, as opposed to the default set
	// seeded when a child is created.
	IsCustom bool

	// Completed is the current completion state.
	Completed bool

	// CompletedAt is the Unix timestamp of the last completion, 0 when the
	// chore is not completed.
	CompletedAt int64

	// CreatedAt is the Unix timestamp when the chore was created.
	CreatedAt int64

	// UpdatedAt is the Unix timestamp of the last modification.
	UpdatedAt int64
}

// ToggleResult is the authoritative response to a toggle operation. The
// backend computes the new balance in the same transaction that records the
// completion, so the client never does reward arithmetic itself.
type ToggleResult struct {
	// Chore is the chore after the toggle was applied.
	Chore Chore

	// Balance is the child's balance after the toggle.
	Balance float64

	// PreviousBalance is the child's balance before the toggle.
	PreviousBalance float64

	// RewardAmount is the reward that was credited or debited.
	RewardAmount float64

	// Completed is the completion state after the toggle.
	Completed bool
}
