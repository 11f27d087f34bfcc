package local

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fennwick/chorecoins/internal/backend"
	"github.com/fennwick/chorecoins/internal/models"
)

const choreColumns = `id, child_id, title, description, reward_amount, routine_type,
	is_custom, completion_status, completed_at, created_at, updated_at`

func scanChore(row interface{ Scan(dest ...any) error }) (models.Chore, error) {
	var c models.Chore
	var routine string
	err := row.Scan(&c.ID, &c.ChildID, &c.Title, &c.Description, &c.RewardAmount,
		&routine, &c.IsCustom, &c.Completed, &c.CompletedAt, &c.CreatedAt, &c.UpdatedAt)
	c.RoutineType = models.RoutineType(routine)
	return c, err
}

// listChoresRows loads a child's chores, optionally filtered by routine.
func (s *Store) listChoresRows(ctx context.Context, childID string, routine models.RoutineType) ([]models.Chore, error) {
	query := "SELECT " + choreColumns + " FROM chores WHERE child_id = ?"
	args := []any{childID}
	if routine != "" {
		query += " AND routine_type = ?"
		args = append(args, string(routine))
	}
	query += " ORDER BY created_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list chores: %w", err)
	}
	defer rows.Close()

	var chores []models.Chore
	for rows.Next() {
		c, err := scanChore(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chore: %w", err)
		}
		chores = append(chores, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chores: %w", err)
	}
	return chores, nil
}

// ListChores returns a child's chores ordered by creation time.
func (s *Store) ListChores(ctx context.Context, childID string, routine models.RoutineType) ([]models.Chore, error) {
	parentID, err := s.currentUserID()
	if err != nil {
		return nil, err
	}
	owns, err := ownsChild(ctx, s.db, parentID, childID)
	if err != nil {
		return nil, err
	}
	if !owns {
		return nil, backend.ErrNotFound
	}
	return s.listChoresRows(ctx, childID, routine)
}

// CreateChore creates a chore and returns the canonical record.
func (s *Store) CreateChore(ctx context.Context, childID string, fields backend.ChoreFields) (*models.Chore, error) {
	parentID, err := s.currentUserID()
	if err != nil {
		return nil, err
	}
	owns, err := ownsChild(ctx, s.db, parentID, childID)
	if err != nil {
		return nil, err
	}
	if !owns {
		return nil, backend.ErrNotFound
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

	now := time.Now().Unix()
	chore := &models.Chore{
		ID:           uuid.New().String(),
		ChildID:      childID,
		Title:        fields.Title,
		Description:  fields.Description,
		RewardAmount: fields.RewardAmount,
		RoutineType:  fields.RoutineType,
		IsCustom:     fields.IsCustom,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO chores (id, child_id, title, description, reward_amount, routine_type,
		                    is_custom, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		chore.ID, chore.ChildID, chore.Title, chore.Description, chore.RewardAmount,
		string(chore.RoutineType), chore.IsCustom, chore.CreatedAt, chore.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert chore: %w", err)
	}
	return chore, nil
}

// getOwnedChore loads a chore and verifies the caller's parent relationship.
func (s *Store) getOwnedChore(ctx context.Context, q interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}, parentID, choreID string) (models.Chore, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+choreColumns+` FROM chores
		WHERE id = ? AND child_id IN (
			SELECT child_id FROM parent_child_relationships WHERE parent_id = ?
		)`, choreID, parentID)
	c, err := scanChore(row)
	if errors.Is(err, sql.ErrNoRows) {
		return c, backend.ErrNotFound
	}
	if err != nil {
		return c, fmt.Errorf("failed to get chore: %w", err)
	}
	return c, nil
}

// UpdateChore applies a partial update and returns the updated chore.
func (s *Store) UpdateChore(ctx context.Context, id string, update backend.ChoreUpdate) (*models.Chore, error) {
	parentID, err := s.currentUserID()
	if err != nil {
		return nil, err
	}

	c, err := s.getOwnedChore(ctx, s.db, parentID, id)
	if err != nil {
		return nil, err
	}

	if update.Title != nil {
		if *update.Title == "" {
			return nil, &backend.ValidationError{Field: "title", Message: "required"}
		}
		c.Title = *update.Title
	}
	if update.Description != nil {
		c.Description = *update.Description
	}
	if update.RewardAmount != nil {
		if *update.RewardAmount < 0 {
			return nil, &backend.ValidationError{Field: "reward_amount", Message: "must be non-negative"}
		}
		c.RewardAmount = *update.RewardAmount
	}
	if update.RoutineType != nil {
		if !update.RoutineType.Valid() {
			return nil, &backend.ValidationError{Field: "routine_type", Message: "must be morning or evening"}
		}
		c.RoutineType = *update.RoutineType
	}
	c.UpdatedAt = time.Now().Unix()

	_, err = s.db.ExecContext(ctx, `
		UPDATE chores SET title = ?, description = ?, reward_amount = ?, routine_type = ?, updated_at = ?
		WHERE id = ?`,
		c.Title, c.Description, c.RewardAmount, string(c.RoutineType), c.UpdatedAt, c.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update chore: %w", err)
	}
	return &c, nil
}

// DeleteChore deletes a chore.
func (s *Store) DeleteChore(ctx context.Context, id string) error {
	parentID, err := s.currentUserID()
	if err != nil {
		return err
	}
	if _, err := s.getOwnedChore(ctx, s.db, parentID, id); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM chores WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete chore: %w", err)
	}
	return nil
}

// ToggleChore is the toggle_chore procedure: set the completion state and
// adjust the child's balance in one transaction. Either the whole toggle
// applies or none of it does. Toggling to the current state is a no-op that
// returns the current balances unchanged.
func (s *Store) ToggleChore(ctx context.Context, choreID string, completed bool) (*models.ToggleResult, error) {
	parentID, err := s.currentUserID()
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	c, err := s.getOwnedChore(ctx, tx, parentID, choreID)
	if errors.Is(err, backend.ErrNotFound) {
		// Distinguish a missing chore from one owned by someone else.
		var n int
		if scanErr := tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM chores WHERE id = ?", choreID).Scan(&n); scanErr == nil && n > 0 {
			return nil, backend.ErrUnauthorized
		}
		return nil, backend.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var previousBalance float64
	err = tx.QueryRowContext(ctx,
		"SELECT COALESCE(amount, 0) FROM child_balances WHERE child_id = ?", c.ChildID,
	).Scan(&previousBalance)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}

	newBalance := previousBalance
	if c.Completed != completed {
		now := time.Now().Unix()
		c.Completed = completed
		c.UpdatedAt = now
		if completed {
			c.CompletedAt = now
			newBalance = previousBalance + c.RewardAmount
		} else {
			c.CompletedAt = 0
			newBalance = previousBalance - c.RewardAmount
			if newBalance < 0 {
				newBalance = 0
			}
		}

		_, err = tx.ExecContext(ctx,
			"UPDATE chores SET completion_status = ?, completed_at = ?, updated_at = ? WHERE id = ?",
			c.Completed, c.CompletedAt, c.UpdatedAt, c.ID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to update chore: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			"UPDATE child_balances SET amount = ?, updated_at = ? WHERE child_id = ?",
			newBalance, now, c.ChildID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to update balance: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &models.ToggleResult{
		Chore:           c,
		Balance:         newBalance,
		PreviousBalance: previousBalance,
		RewardAmount:    c.RewardAmount,
		Completed:       c.Completed,
	}, nil
}

// ResetChores is the reset_chores procedure: clear completion on all chores
// in the routine. Balances are unaffected.
func (s *Store) ResetChores(ctx context.Context, childID string, routine models.RoutineType) error {
	parentID, err := s.currentUserID()
	if err != nil {
		return err
	}
	owns, err := ownsChild(ctx, s.db, parentID, childID)
	if err != nil {
		return err
	}
	if !owns {
		return backend.ErrNotFound
	}
	if !routine.Valid() {
		return &backend.ValidationError{Field: "routine_type", Message: "must be morning or evening"}
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE chores SET completion_status = 0, completed_at = 0, updated_at = ?
		WHERE child_id = ? AND routine_type = ?`,
		time.Now().Unix(), childID, string(routine),
	)
	if err != nil {
		return fmt.Errorf("failed to reset chores: %w", err)
	}
	return nil
}
