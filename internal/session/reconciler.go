// Package session maintains the single source of truth for who is signed in
// and which chores and children are currently displayed.
//
// The Reconciler owns all mutation of that state (single-writer discipline);
// views read snapshots and issue intents. Mutations follow the protocol the
// backend's guarantees demand:
//
//   - toggle is confirm-then-apply: the local list and balance update only
//     from the authoritative toggle response, never from local arithmetic
//   - delete is optimistic, with a compensating full reload on failure
//   - create and update are remote-first: local state changes only with the
//     canonical record the backend returned
//
// Every remote call runs under a uniform deadline on every target.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fennwick/chorecoins/internal/backend"
	"github.com/fennwick/chorecoins/internal/metrics"
	"github.com/fennwick/chorecoins/internal/models"
)

// DefaultTimeout is the deadline applied to every remote call.
const DefaultTimeout = 10 * time.Second

// ErrToggleInFlight is returned when a toggle is requested for a chore whose
// previous toggle has not resolved. Two toggles racing on the same row can
// resolve out of order and leave the UI showing a stale balance.
var ErrToggleInFlight = errors.New("toggle already in flight for this chore")

// Phase is the session lifecycle state.
type Phase int

const (
	// PhaseBootstrapping means session restore is still in progress. All
	// list operations are suppressed.
	PhaseBootstrapping Phase = iota

	// PhaseAnonymous means no user is signed in.
	PhaseAnonymous

	// PhaseAuthenticated means a session is established.
	PhaseAuthenticated
)

func (p Phase) String() string {
	switch p {
	case PhaseBootstrapping:
		return "bootstrapping"
	case PhaseAnonymous:
		return "anonymous"
	case PhaseAuthenticated:
		return "authenticated"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithTimeout overrides the per-call deadline.
func WithTimeout(d time.Duration) Option {
	return func(r *Reconciler) { r.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) { r.logger = logger }
}

// WithOnCompleted sets a callback invoked after a toggle lands on
// completed=true (the app celebrates: sound and dialog).
func WithOnCompleted(fn func(models.ToggleResult)) Option {
	return func(r *Reconciler) { r.onCompleted = fn }
}

// Reconciler manages the session lifecycle and the displayed child/chore
// lists, reconciling optimistic local mutations with authoritative remote
// results.
type Reconciler struct {
	be          backend.Backend
	logger      *slog.Logger
	timeout     time.Duration
	onCompleted func(models.ToggleResult)

	mu          sync.Mutex
	phase       Phase
	session     *models.Session
	profile     *models.Profile
	children    []models.Child
	selectedID  string
	routine     models.RoutineType
	chores      []models.Chore
	inflight    map[string]bool
	unsubscribe func()
}

// New creates a Reconciler over the given backend. The phase starts at
// Bootstrapping; call Bootstrap to resolve it.
func New(be backend.Backend, opts ...Option) *Reconciler {
	r := &Reconciler{
		be:       be,
		logger:   slog.Default(),
		timeout:  DefaultTimeout,
		phase:    PhaseBootstrapping,
		routine:  models.RoutineMorning,
		inflight: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// call runs one remote operation under the uniform deadline and records it.
func (r *Reconciler) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%s: %w", op, backend.ErrTimeout)
	}
	metrics.ObserveBackendCall(op, time.Since(start), err)
	return err
}

// Bootstrap restores the session, subscribes to auth changes, and loads the
// profile and children when a session exists.
func (r *Reconciler) Bootstrap(ctx context.Context) error {
	r.logger.Info("bootstrapping session")

	var sess *models.Session
	err := r.call(ctx, "get_session", func(ctx context.Context) error {
		var callErr error
		sess, callErr = r.be.GetSession(ctx)
		return callErr
	})
	if err != nil {
		r.mu.Lock()
		r.phase = PhaseAnonymous
		r.mu.Unlock()
		r.logger.Error("session restore failed", "error", err)
		return err
	}

	unsub := r.be.SubscribeAuthChanges(func(s *models.Session) {
		r.HandleAuthChange(context.Background(), s)
	})
	r.mu.Lock()
	r.unsubscribe = unsub
	r.mu.Unlock()

	if sess == nil {
		r.mu.Lock()
		r.phase = PhaseAnonymous
		r.mu.Unlock()
		r.logger.Info("no session to restore")
		return nil
	}

	r.mu.Lock()
	r.session = sess
	r.phase = PhaseAuthenticated
	r.mu.Unlock()
	r.logger.Info("session restored", "user_id", sess.UserID)

	return r.loadUserInfo(ctx, sess.UserID)
}

// Close releases the auth-change subscription. Safe to call more than once.
func (r *Reconciler) Close() {
	r.mu.Lock()
	unsub := r.unsubscribe
	r.unsubscribe = nil
	r.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

// HandleAuthChange applies an externally pushed session change: a new
// session triggers a full reload of profile and children; a nil session
// clears all local state.
func (r *Reconciler) HandleAuthChange(ctx context.Context, sess *models.Session) {
	if sess == nil {
		r.mu.Lock()
		r.clearLocked()
		r.mu.Unlock()
		r.logger.Info("auth change: signed out")
		return
	}

	r.mu.Lock()
	r.session = sess
	r.phase = PhaseAuthenticated
	r.mu.Unlock()
	r.logger.Info("auth change: session established", "user_id", sess.UserID)

	if err := r.loadUserInfo(ctx, sess.UserID); err != nil {
		r.logger.Error("reload after auth change failed", "error", err)
	}
}

// clearLocked resets all session-derived state. Caller holds r.mu.
func (r *Reconciler) clearLocked() {
	r.phase = PhaseAnonymous
	r.session = nil
	r.profile = nil
	r.children = nil
	r.selectedID = ""
	r.chores = nil
}

// SignIn authenticates and loads the user's profile and children.
func (r *Reconciler) SignIn(ctx context.Context, email, password string) error {
	if email == "" {
		return &backend.ValidationError{Field: "email", Message: "required"}
	}
	if password == "" {
		return &backend.ValidationError{Field: "password", Message: "required"}
	}

	var sess *models.Session
	err := r.call(ctx, "sign_in", func(ctx context.Context) error {
		var callErr error
		sess, callErr = r.be.SignIn(ctx, email, password)
		return callErr
	})
	if err != nil {
		r.logger.Warn("sign in failed", "email", email, "error", err)
		return err
	}

	r.mu.Lock()
	r.session = sess
	r.phase = PhaseAuthenticated
	r.mu.Unlock()
	r.logger.Info("signed in", "user_id", sess.UserID)

	return r.loadUserInfo(ctx, sess.UserID)
}

// SignUp registers a new account, signs it in, and provisions its profile.
func (r *Reconciler) SignUp(ctx context.Context, email, password string) error {
	if email == "" {
		return &backend.ValidationError{Field: "email", Message: "required"}
	}
	if password == "" {
		return &backend.ValidationError{Field: "password", Message: "required"}
	}

	var sess *models.Session
	err := r.call(ctx, "sign_up", func(ctx context.Context) error {
		var callErr error
		sess, callErr = r.be.SignUp(ctx, email, password)
		return callErr
	})
	if err != nil {
		r.logger.Warn("sign up failed", "email", email, "error", err)
		return err
	}

	r.mu.Lock()
	r.session = sess
	r.phase = PhaseAuthenticated
	r.mu.Unlock()
	r.logger.Info("signed up", "user_id", sess.UserID)

	return r.loadUserInfo(ctx, sess.UserID)
}

// SignOut clears local state first, then invalidates the remote session.
// Local state is cleared even when the remote call fails.
func (r *Reconciler) SignOut(ctx context.Context) error {
	r.mu.Lock()
	r.clearLocked()
	r.mu.Unlock()

	err := r.call(ctx, "sign_out", func(ctx context.Context) error {
		return r.be.SignOut(ctx)
	})
	if err != nil {
		r.logger.Error("remote sign out failed", "error", err)
		return err
	}
	r.logger.Info("signed out")
	return nil
}

// loadUserInfo fetches profile and children, auto-provisioning a blank
// profile when none exists, and preserves the selected child across the
// reload when it still exists.
func (r *Reconciler) loadUserInfo(ctx context.Context, userID string) error {
	var profile *models.Profile
	err := r.call(ctx, "get_profile", func(ctx context.Context) error {
		var callErr error
		profile, callErr = r.be.GetProfile(ctx, userID)
		return callErr
	})
	if errors.Is(err, backend.ErrNotFound) {
		profile = &models.Profile{UserID: userID}
		err = r.call(ctx, "upsert_profile", func(ctx context.Context) error {
			return r.be.UpsertProfile(ctx, profile)
		})
		if err == nil {
			r.logger.Info("provisioned blank profile", "user_id", userID)
		}
	}
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}

	var children []models.Child
	err = r.call(ctx, "list_children", func(ctx context.Context) error {
		var callErr error
		children, callErr = r.be.ListChildren(ctx, userID)
		return callErr
	})
	if err != nil {
		return fmt.Errorf("load children: %w", err)
	}

	r.mu.Lock()
	r.profile = profile
	r.children = children
	if !childExists(children, r.selectedID) {
		r.selectedID = ""
		if len(children) > 0 {
			r.selectedID = children[0].ID
		}
	}
	selected := r.selectedID
	r.mu.Unlock()
	r.logger.Debug("user info loaded", "user_id", userID, "children", len(children))

	if selected == "" {
		r.mu.Lock()
		r.chores = nil
		r.mu.Unlock()
		return nil
	}
	return r.ReloadChores(ctx)
}

func childExists(children []models.Child, id string) bool {
	if id == "" {
		return false
	}
	for _, c := range children {
		if c.ID == id {
			return true
		}
	}
	return false
}

// requireUser returns the signed-in user id, or ErrNotAuthenticated while
// bootstrapping or anonymous.
func (r *Reconciler) requireUser() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phase != PhaseAuthenticated || r.session == nil {
		return "", backend.ErrNotAuthenticated
	}
	return r.session.UserID, nil
}

// requireChild returns the selected child id.
func (r *Reconciler) requireChild() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phase != PhaseAuthenticated || r.session == nil {
		return "", backend.ErrNotAuthenticated
	}
	if r.selectedID == "" {
		return "", backend.ErrNotFound
	}
	return r.selectedID, nil
}

// Phase returns the session lifecycle state.
func (r *Reconciler) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// Session returns a copy of the current session, or nil.
func (r *Reconciler) Session() *models.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session == nil {
		return nil
	}
	sess := *r.session
	return &sess
}

// Profile returns a copy of the parent profile, or nil.
func (r *Reconciler) Profile() *models.Profile {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.profile == nil {
		return nil
	}
	p := *r.profile
	return &p
}

// Children returns a snapshot of the children list.
func (r *Reconciler) Children() []models.Child {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Child, len(r.children))
	copy(out, r.children)
	return out
}

// SelectedChild returns a copy of the selected child, or nil.
func (r *Reconciler) SelectedChild() *models.Child {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.children {
		if c.ID == r.selectedID {
			child := c
			return &child
		}
	}
	return nil
}

// Chores returns a snapshot of the displayed chore list.
func (r *Reconciler) Chores() []models.Chore {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Chore, len(r.chores))
	copy(out, r.chores)
	return out
}

// Routine returns the active routine filter.
func (r *Reconciler) Routine() models.RoutineType {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.routine
}

// SelectChild switches the selected child and reloads its chores. The
// selection only ever changes through this operation, never implicitly
// during a background reload.
func (r *Reconciler) SelectChild(ctx context.Context, childID string) error {
	if _, err := r.requireUser(); err != nil {
		return err
	}

	r.mu.Lock()
	if !childExists(r.children, childID) {
		r.mu.Unlock()
		return backend.ErrNotFound
	}
	r.selectedID = childID
	r.mu.Unlock()

	return r.ReloadChores(ctx)
}

// SetRoutine switches the routine filter and reloads the chore list.
func (r *Reconciler) SetRoutine(ctx context.Context, routine models.RoutineType) error {
	if !routine.Valid() {
		return &backend.ValidationError{Field: "routine_type", Message: "must be morning or evening"}
	}
	if _, err := r.requireUser(); err != nil {
		return err
	}

	r.mu.Lock()
	r.routine = routine
	r.mu.Unlock()

	return r.ReloadChores(ctx)
}

// ReloadChildren refetches the children list, preserving the selection.
func (r *Reconciler) ReloadChildren(ctx context.Context) error {
	userID, err := r.requireUser()
	if err != nil {
		return err
	}
	return r.loadUserInfo(ctx, userID)
}

// ReloadChores refetches the chore list for the selected child and routine.
func (r *Reconciler) ReloadChores(ctx context.Context) error {
	childID, err := r.requireChild()
	if err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			// No child yet; nothing to display.
			return nil
		}
		return err
	}

	r.mu.Lock()
	routine := r.routine
	r.mu.Unlock()

	var chores []models.Chore
	err = r.call(ctx, "list_chores", func(ctx context.Context) error {
		var callErr error
		chores, callErr = r.be.ListChores(ctx, childID, routine)
		return callErr
	})
	if err != nil {
		return fmt.Errorf("load chores: %w", err)
	}

	r.mu.Lock()
	r.chores = chores
	r.mu.Unlock()
	return nil
}

// SetProfile upserts the parent's display info and reloads user state.
func (r *Reconciler) SetProfile(ctx context.Context, name string, gender models.Gender) error {
	userID, err := r.requireUser()
	if err != nil {
		return err
	}
	if name == "" {
		return &backend.ValidationError{Field: "name", Message: "required"}
	}
	if !gender.Valid() {
		return &backend.ValidationError{Field: "gender", Message: "must be boy or girl"}
	}

	err = r.call(ctx, "upsert_profile", func(ctx context.Context) error {
		return r.be.UpsertProfile(ctx, &models.Profile{UserID: userID, Name: name, Gender: gender})
	})
	if err != nil {
		return err
	}
	return r.loadUserInfo(ctx, userID)
}

// CreateChild creates a child remote-first and reloads the children list.
func (r *Reconciler) CreateChild(ctx context.Context, name, avatarURL string) (*models.Child, error) {
	userID, err := r.requireUser()
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, &backend.ValidationError{Field: "name", Message: "required"}
	}

	var child *models.Child
	err = r.call(ctx, "create_child", func(ctx context.Context) error {
		var callErr error
		child, callErr = r.be.CreateChild(ctx, name, avatarURL)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	r.logger.Info("child created", "child_id", child.ID)

	if err := r.loadUserInfo(ctx, userID); err != nil {
		return child, err
	}
	return child, nil
}

// UpdateChild applies a partial update remote-first.
func (r *Reconciler) UpdateChild(ctx context.Context, id string, update backend.ChildUpdate) (*models.Child, error) {
	if _, err := r.requireUser(); err != nil {
		return nil, err
	}

	var child *models.Child
	err := r.call(ctx, "update_child", func(ctx context.Context) error {
		var callErr error
		child, callErr = r.be.UpdateChild(ctx, id, update)
		return callErr
	})
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	for i := range r.children {
		if r.children[i].ID == child.ID {
			chores := r.children[i].Chores
			r.children[i] = *child
			r.children[i].Chores = chores
			break
		}
	}
	r.mu.Unlock()
	return child, nil
}

// DeleteChild deletes a child and reloads; a deleted selected child falls
// back to the first remaining child.
func (r *Reconciler) DeleteChild(ctx context.Context, id string) error {
	userID, err := r.requireUser()
	if err != nil {
		return err
	}

	err = r.call(ctx, "delete_child", func(ctx context.Context) error {
		return r.be.DeleteChild(ctx, id)
	})
	if err != nil {
		return err
	}
	r.logger.Info("child deleted", "child_id", id)
	return r.loadUserInfo(ctx, userID)
}
