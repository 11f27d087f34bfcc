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

// defaultChores is the non-custom chore set installed for every new child,
// split by routine.
var defaultChores = []backend.ChoreFields{
	{Title: "Brush teeth", RewardAmount: 0.10, RoutineType: models.RoutineMorning},
	{Title: "Wash your face", RewardAmount: 0.10, RoutineType: models.RoutineMorning},
	{Title: "Make the bed", RewardAmount: 0.20, RoutineType: models.RoutineMorning},
	{Title: "Change clothes", RewardAmount: 0.10, RoutineType: models.RoutineMorning},
	{Title: "Brush teeth", RewardAmount: 0.10, RoutineType: models.RoutineEvening},
	{Title: "Tidy up clothes", RewardAmount: 0.10, RoutineType: models.RoutineEvening},
	{Title: "Help with dishes", RewardAmount: 0.30, RoutineType: models.RoutineEvening},
	{Title: "Clean the room", RewardAmount: 0.50, RoutineType: models.RoutineEvening},
}

// ownsChild verifies the parent relationship inside the given querier.
func ownsChild(ctx context.Context, q interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}, parentID, childID string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM parent_child_relationships WHERE parent_id = ? AND child_id = ?",
		parentID, childID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check ownership: %w", err)
	}
	return n > 0, nil
}

// ListChildren returns the parent's children ordered by creation time, each
// with its balance and nested chores.
func (s *Store) ListChildren(ctx context.Context, parentID string) ([]models.Child, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.avatar_url, c.created_at, c.updated_at,
		       COALESCE(b.amount, 0)
		FROM children c
		JOIN parent_child_relationships r ON r.child_id = c.id
		LEFT JOIN child_balances b ON b.child_id = c.id
		WHERE r.parent_id = ?
		ORDER BY c.created_at, c.id`,
		parentID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list children: %w", err)
	}
	defer rows.Close()

	var children []models.Child
	for rows.Next() {
		var c models.Child
		if err := rows.Scan(&c.ID, &c.Name, &c.AvatarURL, &c.CreatedAt, &c.UpdatedAt, &c.Balance); err != nil {
			return nil, fmt.Errorf("failed to scan child: %w", err)
		}
		children = append(children, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate children: %w", err)
	}

	for i := range children {
		chores, err := s.listChoresRows(ctx, children[i].ID, "")
		if err != nil {
			return nil, err
		}
		children[i].Chores = chores
	}

	return children, nil
}

// CreateChild creates the child, its parent relationship, a zero balance row,
// and the default chore set in one transaction.
func (s *Store) CreateChild(ctx context.Context, name, avatarURL string) (*models.Child, error) {
	parentID, err := s.currentUserID()
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, &backend.ValidationError{Field: "name", Message: "required"}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	child := &models.Child{
		ID:        uuid.New().String(),
		Name:      name,
		AvatarURL: avatarURL,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO children (id, name, avatar_url, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		child.ID, child.Name, child.AvatarURL, child.CreatedAt, child.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert child: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO parent_child_relationships (parent_id, child_id, relationship_type) VALUES (?, ?, 'parent')",
		parentID, child.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert relationship: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO child_balances (child_id, amount, updated_at) VALUES (?, 0, ?)",
		child.ID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert balance: %w", err)
	}

	for _, fields := range defaultChores {
		chore := models.Chore{
			ID:           uuid.New().String(),
			ChildID:      child.ID,
			Title:        fields.Title,
			RewardAmount: fields.RewardAmount,
			RoutineType:  fields.RoutineType,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO chores (id, child_id, title, description, reward_amount, routine_type,
			                    is_custom, created_at, updated_at)
			VALUES (?, ?, ?, '', ?, ?, 0, ?, ?)`,
			chore.ID, chore.ChildID, chore.Title, chore.RewardAmount,
			string(chore.RoutineType), chore.CreatedAt, chore.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to seed default chore: %w", err)
		}
		child.Chores = append(child.Chores, chore)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return child, nil
}

// UpdateChild applies a partial update and returns the updated child.
func (s *Store) UpdateChild(ctx context.Context, id string, update backend.ChildUpdate) (*models.Child, error) {
	parentID, err := s.currentUserID()
	if err != nil {
		return nil, err
	}
	owns, err := ownsChild(ctx, s.db, parentID, id)
	if err != nil {
		return nil, err
	}
	if !owns {
		return nil, backend.ErrNotFound
	}

	if update.Name != nil && *update.Name == "" {
		return nil, &backend.ValidationError{Field: "name", Message: "required"}
	}

	c := &models.Child{}
	err = s.db.QueryRowContext(ctx,
		"SELECT id, name, avatar_url, created_at, updated_at FROM children WHERE id = ?", id,
	).Scan(&c.ID, &c.Name, &c.AvatarURL, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, backend.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get child: %w", err)
	}

	if update.Name != nil {
		c.Name = *update.Name
	}
	if update.AvatarURL != nil {
		c.AvatarURL = *update.AvatarURL
	}
	c.UpdatedAt = time.Now().Unix()

	_, err = s.db.ExecContext(ctx,
		"UPDATE children SET name = ?, avatar_url = ?, updated_at = ? WHERE id = ?",
		c.Name, c.AvatarURL, c.UpdatedAt, c.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update child: %w", err)
	}

	err = s.db.QueryRowContext(ctx,
		"SELECT COALESCE(amount, 0) FROM child_balances WHERE child_id = ?", id,
	).Scan(&c.Balance)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}

	return c, nil
}

// DeleteChild deletes a child; chores, relationship, and balance cascade.
func (s *Store) DeleteChild(ctx context.Context, id string) error {
	parentID, err := s.currentUserID()
	if err != nil {
		return err
	}
	owns, err := ownsChild(ctx, s.db, parentID, id)
	if err != nil {
		return err
	}
	if !owns {
		return backend.ErrNotFound
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM children WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete child: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete child: %w", err)
	}
	if n == 0 {
		return backend.ErrNotFound
	}
	return nil
}

// ResetBalance zeroes the child's balance (the reset_child_balance procedure)
// and returns the new balance.
func (s *Store) ResetBalance(ctx context.Context, childID string) (float64, error) {
	parentID, err := s.currentUserID()
	if err != nil {
		return 0, err
	}
	owns, err := ownsChild(ctx, s.db, parentID, childID)
	if err != nil {
		return 0, err
	}
	if !owns {
		return 0, backend.ErrUnauthorized
	}

	res, err := s.db.ExecContext(ctx,
		"UPDATE child_balances SET amount = 0, updated_at = ? WHERE child_id = ?",
		time.Now().Unix(), childID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to reset balance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to reset balance: %w", err)
	}
	if n == 0 {
		return 0, backend.ErrNotFound
	}
	return 0, nil
}
