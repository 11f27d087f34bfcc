package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/fennwick/chorecoins/internal/backend"
	"github.com/fennwick/chorecoins/internal/metrics"
	"github.com/fennwick/chorecoins/internal/models"
)

// ToggleChore flips the chore's completion state. The toggle is
// confirm-then-apply: local state updates only from the authoritative
// response, so the displayed balance never diverges from the completion
// ledger. At most one toggle may be in flight per chore; a second request
// while one is outstanding returns ErrToggleInFlight.
func (r *Reconciler) ToggleChore(ctx context.Context, choreID string) (*models.ToggleResult, error) {
	r.mu.Lock()
	if r.phase != PhaseAuthenticated || r.session == nil {
		r.mu.Unlock()
		return nil, backend.ErrNotAuthenticated
	}
	if r.inflight[choreID] {
		r.mu.Unlock()
		metrics.ToggleRejections.Inc()
		return nil, ErrToggleInFlight
	}

	var target bool
	found := false
	for _, c := range r.chores {
		if c.ID == choreID {
			target = !c.Completed
			found = true
			break
		}
	}
	if !found {
		r.mu.Unlock()
		return nil, backend.ErrNotFound
	}
	r.inflight[choreID] = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.inflight, choreID)
		r.mu.Unlock()
	}()

	var result *models.ToggleResult
	err := r.call(ctx, "toggle_chore", func(ctx context.Context) error {
		var callErr error
		result, callErr = r.be.ToggleChore(ctx, choreID, target)
		return callErr
	})
	if err != nil {
		r.logger.Error("toggle failed", "chore_id", choreID, "error", err)
		return nil, err
	}

	r.mu.Lock()
	for i := range r.chores {
		if r.chores[i].ID == choreID {
			r.chores[i] = result.Chore
			break
		}
	}
	for i := range r.children {
		if r.children[i].ID == result.Chore.ChildID {
			r.children[i].Balance = result.Balance
			break
		}
	}
	r.mu.Unlock()
	r.logger.Debug("toggle applied",
		"chore_id", choreID,
		"completed", result.Completed,
		"balance", result.Balance,
	)

	if result.Completed && r.onCompleted != nil {
		r.onCompleted(*result)
	}
	return result, nil
}

// CreateChore creates a chore remote-first: the canonical record is appended
// locally only after the backend returns it.
func (r *Reconciler) CreateChore(ctx context.Context, fields backend.ChoreFields) (*models.Chore, error) {
	childID, err := r.requireChild()
	if err != nil {
		return nil, err
	}
	if fields.Title == "" {
		return nil, &backend.ValidationError{Field: "title", Message: "required"}
	}
	if fields.RewardAmount < 0 {
		return nil, &backend.ValidationError{Field: "reward_amount", Message: "must be non-negative"}
	}
	if !fields.RoutineType.Valid() {
		return nil, &backend.ValidationError{Field: "routine_type", Message: "must be morning or evening"}
	}

	var chore *models.Chore
	err = r.call(ctx, "create_chore", func(ctx context.Context) error {
		var callErr error
		chore, callErr = r.be.CreateChore(ctx, childID, fields)
		return callErr
	})
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if chore.RoutineType == r.routine {
		r.chores = append(r.chores, *chore)
	}
	r.mu.Unlock()
	r.logger.Info("chore created", "chore_id", chore.ID, "child_id", childID)
	return chore, nil
}

// UpdateChore applies a partial update remote-first: the local entry is
// replaced only with the record the backend returned.
func (r *Reconciler) UpdateChore(ctx context.Context, id string, update backend.ChoreUpdate) (*models.Chore, error) {
	if _, err := r.requireUser(); err != nil {
		return nil, err
	}
	if update.Title != nil && *update.Title == "" {
		return nil, &backend.ValidationError{Field: "title", Message: "required"}
	}
	if update.RewardAmount != nil && *update.RewardAmount < 0 {
		return nil, &backend.ValidationError{Field: "reward_amount", Message: "must be non-negative"}
	}

	var chore *models.Chore
	err := r.call(ctx, "update_chore", func(ctx context.Context) error {
		var callErr error
		chore, callErr = r.be.UpdateChore(ctx, id, update)
		return callErr
	})
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	for i := range r.chores {
		if r.chores[i].ID == id {
			r.chores[i] = *chore
			break
		}
	}
	r.mu.Unlock()
	return chore, nil
}

// DeleteChore removes the chore optimistically, then issues the remote
// delete. On failure the full list is reloaded to restore consistency — a
// compensating reload, not a targeted undo — and the error is returned.
func (r *Reconciler) DeleteChore(ctx context.Context, choreID string) error {
	if _, err := r.requireUser(); err != nil {
		return err
	}

	r.mu.Lock()
	removed := false
	for i := range r.chores {
		if r.chores[i].ID == choreID {
			r.chores = append(r.chores[:i], r.chores[i+1:]...)
			removed = true
			break
		}
	}
	r.mu.Unlock()
	if !removed {
		return backend.ErrNotFound
	}

	err := r.call(ctx, "delete_chore", func(ctx context.Context) error {
		return r.be.DeleteChore(ctx, choreID)
	})
	if err != nil {
		r.logger.Error("delete failed, reloading", "chore_id", choreID, "error", err)
		if reloadErr := r.ReloadChores(ctx); reloadErr != nil {
			return errors.Join(err, fmt.Errorf("compensating reload: %w", reloadErr))
		}
		return err
	}
	r.logger.Info("chore deleted", "chore_id", choreID)
	return nil
}

// ResetChores clears completion on the selected child's active routine, then
// unconditionally reloads the list. No optimism.
func (r *Reconciler) ResetChores(ctx context.Context) error {
	childID, err := r.requireChild()
	if err != nil {
		return err
	}

	r.mu.Lock()
	routine := r.routine
	r.mu.Unlock()

	err = r.call(ctx, "reset_chores", func(ctx context.Context) error {
		return r.be.ResetChores(ctx, childID, routine)
	})
	if err != nil {
		return err
	}
	r.logger.Info("chores reset", "child_id", childID, "routine", routine)
	return r.ReloadChores(ctx)
}

// RedeemBalance zeroes the selected child's balance and applies the
// authoritative new balance from the response.
func (r *Reconciler) RedeemBalance(ctx context.Context) (float64, error) {
	childID, err := r.requireChild()
	if err != nil {
		return 0, err
	}

	var balance float64
	err = r.call(ctx, "reset_balance", func(ctx context.Context) error {
		var callErr error
		balance, callErr = r.be.ResetBalance(ctx, childID)
		return callErr
	})
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	for i := range r.children {
		if r.children[i].ID == childID {
			r.children[i].Balance = balance
			break
		}
	}
	r.mu.Unlock()
	r.logger.Info("balance redeemed", "child_id", childID)
	return balance, nil
}
