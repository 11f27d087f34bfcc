// Package backend defines the capability set the client core depends on.
//
// All persistence and business-rule enforcement (balance arithmetic, chore
// reset, redemption) live behind this interface. The hosted service
// implements it over HTTP (backend/remote); an embedded SQLite
// implementation (backend/local) serves tests and offline use. Swapping
// implementations never changes the session/reconciler layer.
package backend

import (
	"context"

	"github.com/fennwick/chorecoins/internal/models"
)

// ChoreFields carries the full field set for creating a chore.
type ChoreFields struct {
	Title        string
	Description  string
	RewardAmount float64
	RoutineType  models.RoutineType
	IsCustom     bool
}

// ChoreUpdate carries a partial update; nil fields are left unchanged.
type ChoreUpdate struct {
	Title        *string
	Description  *string
	RewardAmount *float64
	RoutineType  *models.RoutineType
}

// ChildUpdate carries a partial update; nil fields are left unchanged.
type ChildUpdate struct {
	Name      *string
	AvatarURL *string
}

// AuthChangeFunc receives the new session on every auth state change.
// A nil session means signed out.
type AuthChangeFunc func(*models.Session)

// Backend is the full capability set of the remote service.
type Backend interface {
	// GetSession returns the current session, or (nil, nil) when there is
	// none to restore.
	GetSession(ctx context.Context) (*models.Session, error)

	// SignIn authenticates with email and password.
	SignIn(ctx context.Context, email, password string) (*models.Session, error)

	// SignUp registers a new account and returns its session.
	SignUp(ctx context.Context, email, password string) (*models.Session, error)

	// SignOut invalidates the current session. Implementations clear their
	// local session state even when the remote call fails.
	SignOut(ctx context.Context) error

	// SubscribeAuthChanges registers a callback for auth state changes and
	// returns an unsubscribe handle.
	SubscribeAuthChanges(fn AuthChangeFunc) (unsubscribe func())

	// GetProfile fetches the parent profile. Returns ErrNotFound when no
	// profile row exists yet.
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)

	// UpsertProfile creates or updates the parent profile.
	UpsertProfile(ctx context.Context, profile *models.Profile) error

	// ListChildren returns the parent's children, ordered by creation time,
	// with balances and nested chores.
	ListChildren(ctx context.Context, parentID string) ([]models.Child, error)

	// CreateChild creates a child together with its parent relationship,
	// zero balance, and default chore set, atomically.
	CreateChild(ctx context.Context, name, avatarURL string) (*models.Child, error)

	// UpdateChild applies a partial update and returns the updated child.
	UpdateChild(ctx context.Context, id string, update ChildUpdate) (*models.Child, error)

	// DeleteChild deletes a child; relationship and balance rows cascade.
	DeleteChild(ctx context.Context, id string) error

	// ListChores returns a child's chores ordered by creation time. An empty
	// routine returns all routines.
	ListChores(ctx context.Context, childID string, routine models.RoutineType) ([]models.Chore, error)

	// CreateChore creates a chore and returns the canonical record.
	CreateChore(ctx context.Context, childID string, fields ChoreFields) (*models.Chore, error)

	// UpdateChore applies a partial update and returns the updated chore.
	UpdateChore(ctx context.Context, id string, update ChoreUpdate) (*models.Chore, error)

	// DeleteChore deletes a chore.
	DeleteChore(ctx context.Context, id string) error

	// ToggleChore sets the chore's completion state and adjusts the owning
	// child's balance in one atomic operation. Either the whole toggle
	// applies or none of it does.
	ToggleChore(ctx context.Context, choreID string, completed bool) (*models.ToggleResult, error)

	// ResetChores clears completion on all chores in the routine. Balances
	// are unaffected; redemption is a separate operation.
	ResetChores(ctx context.Context, childID string, routine models.RoutineType) error

	// ResetBalance zeroes the child's balance and returns the new balance.
	ResetBalance(ctx context.Context, childID string) (float64, error)
}
