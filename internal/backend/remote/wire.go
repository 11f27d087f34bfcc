package remote

import (
	"github.com/fennwick/chorecoins/internal/models"
)

// Wire types mirror the hosted service's JSON shapes (snake_case, nested
// balance/chores on children).

type wireSession struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"expires_at"`
}

func (w wireSession) toModel() *models.Session {
	return &models.Session{
		UserID:      w.UserID,
		Email:       w.Email,
		AccessToken: w.AccessToken,
		ExpiresAt:   w.ExpiresAt,
	}
}

type wireProfile struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Gender string `json:"gender"`
}

func (w wireProfile) toModel() *models.Profile {
	return &models.Profile{
		UserID: w.UserID,
		Name:   w.Name,
		Gender: models.Gender(w.Gender),
	}
}

type wireChore struct {
	ID           string  `json:"id"`
	ChildID      string  `json:"child_id"`
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	RewardAmount float64 `json:"reward_amount"`
	RoutineType  string  `json:"routine_type"`
	IsCustom     bool    `json:"is_custom"`
	Completed    bool    `json:"completion_status"`
	CompletedAt  int64   `json:"completed_at"`
	CreatedAt    int64   `json:"created_at"`
	UpdatedAt    int64   `json:"updated_at"`
}

func (w wireChore) toModel() models.Chore {
	return models.Chore{
		ID:           w.ID,
		ChildID:      w.ChildID,
		Title:        w.Title,
		Description:  w.Description,
		RewardAmount: w.RewardAmount,
		RoutineType:  models.RoutineType(w.RoutineType),
		IsCustom:     w.IsCustom,
		Completed:    w.Completed,
		CompletedAt:  w.CompletedAt,
		CreatedAt:    w.CreatedAt,
		UpdatedAt:    w.UpdatedAt,
	}
}

type wireChild struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	AvatarURL string      `json:"avatar_url"`
	Balance   float64     `json:"balance"`
	Chores    []wireChore `json:"chores"`
	CreatedAt int64       `json:"created_at"`
	UpdatedAt int64       `json:"updated_at"`
}

func (w wireChild) toModel() models.Child {
	child := models.Child{
		ID:        w.ID,
		Name:      w.Name,
		AvatarURL: w.AvatarURL,
		Balance:   w.Balance,
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	}
	for _, c := range w.Chores {
		child.Chores = append(child.Chores, c.toModel())
	}
	return child
}

type wireToggleResult struct {
	Chore           wireChore `json:"chore"`
	Balance         float64   `json:"balance"`
	PreviousBalance float64   `json:"previousBalance"`
	RewardAmount    float64   `json:"rewardAmount"`
	Completed       bool      `json:"completed"`
}

func (w wireToggleResult) toModel() *models.ToggleResult {
	return &models.ToggleResult{
		Chore:           w.Chore.toModel(),
		Balance:         w.Balance,
		PreviousBalance: w.PreviousBalance,
		RewardAmount:    w.RewardAmount,
		Completed:       w.Completed,
	}
}

type wireError struct {
	Error   string `json:"error"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message,omitempty"`
}
