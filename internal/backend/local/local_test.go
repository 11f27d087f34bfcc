package local

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/fennwick/chorecoins/internal/backend"
	"github.com/fennwick/chorecoins/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "chorecoins.db"), "test-secret")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func signedUp(t *testing.T, s *Store, email string) *models.Session {
	t.Helper()
	sess, err := s.SignUp(context.Background(), email, "correcthorse")
	if err != nil {
		t.Fatalf("SignUp(%s): %v", email, err)
	}
	return sess
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSignUpAndSignIn(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess := signedUp(t, s, "parent@example.com")
	if sess.UserID == "" || sess.AccessToken == "" {
		t.Fatalf("session = %+v, want populated", sess)
	}

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{"wrong password", "parent@example.com", "nope-nope-nope", backend.ErrInvalidCredentials},
		{"unknown email", "ghost@example.com", "correcthorse", backend.ErrInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.SignIn(ctx, tt.email, tt.password)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}

	again, err := s.SignIn(ctx, "parent@example.com", "correcthorse")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if again.UserID != sess.UserID {
		t.Errorf("user id changed across sign in: %s vs %s", again.UserID, sess.UserID)
	}
}

func TestSignUpRejectsDuplicateAndWeakPassword(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	signedUp(t, s, "parent@example.com")
	if _, err := s.SignUp(ctx, "parent@example.com", "correcthorse"); !errors.Is(err, backend.ErrEmailExists) {
		t.Errorf("duplicate err = %v, want ErrEmailExists", err)
	}
	if _, err := s.SignUp(ctx, "new@example.com", "short"); !errors.Is(err, backend.ErrWeakPassword) {
		t.Errorf("weak password err = %v, want ErrWeakPassword", err)
	}
}

func TestRestoreSessionFromToken(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess := signedUp(t, s, "parent@example.com")
	if err := s.SignOut(ctx); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if got, _ := s.GetSession(ctx); got != nil {
		t.Fatal("session should be nil after sign out")
	}

	// A persisted token re-establishes the session, as between CLI runs.
	if err := s.Restore(sess.AccessToken); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	got, err := s.GetSession(ctx)
	if err != nil || got == nil || got.UserID != sess.UserID {
		t.Fatalf("GetSession after restore = %+v, %v", got, err)
	}

	if err := s.Restore("not.a.token"); !errors.Is(err, backend.ErrNotAuthenticated) {
		t.Errorf("garbage token err = %v, want ErrNotAuthenticated", err)
	}

	// A token signed with a different secret must be rejected.
	other, err := New(filepath.Join(t.TempDir(), "other.db"), "other-secret")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer other.Close()
	if err := other.Restore(sess.AccessToken); !errors.Is(err, backend.ErrNotAuthenticated) {
		t.Errorf("foreign token err = %v, want ErrNotAuthenticated", err)
	}
}

func TestAuthChangeNotifications(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var events []*models.Session
	unsubscribe := s.SubscribeAuthChanges(func(sess *models.Session) {
		events = append(events, sess)
	})

	signedUp(t, s, "parent@example.com")
	if len(events) != 1 || events[0] == nil {
		t.Fatalf("events after sign up = %d, want 1 session", len(events))
	}
	if err := s.SignOut(ctx); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if len(events) != 2 || events[1] != nil {
		t.Fatalf("events after sign out = %+v, want trailing nil", events)
	}

	unsubscribe()
	signedUp(t, s, "second@example.com")
	if len(events) != 2 {
		t.Error("unsubscribed callback still invoked")
	}
}

func TestProfileLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sess := signedUp(t, s, "parent@example.com")

	p, err := s.GetProfile(ctx, sess.UserID)
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if p.Name != "" {
		t.Errorf("fresh profile name = %q, want empty", p.Name)
	}

	if err := s.UpsertProfile(ctx, &models.Profile{UserID: sess.UserID, Name: "Alex", Gender: models.GenderGirl}); err != nil {
		t.Fatalf("UpsertProfile: %v", err)
	}
	p, err = s.GetProfile(ctx, sess.UserID)
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if p.Name != "Alex" || p.Gender != models.GenderGirl {
		t.Errorf("profile = %+v, want Alex/girl", p)
	}

	if _, err := s.GetProfile(ctx, "no-such-user"); !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("missing profile err = %v, want ErrNotFound", err)
	}
}

func TestCreateChildSeedsDefaults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sess := signedUp(t, s, "parent@example.com")

	child, err := s.CreateChild(ctx, "Ada", "")
	if err != nil {
		t.Fatalf("CreateChild: %v", err)
	}
	if len(child.Chores) != len(defaultChores) {
		t.Fatalf("seeded chores = %d, want %d", len(child.Chores), len(defaultChores))
	}

	morning, err := s.ListChores(ctx, child.ID, models.RoutineMorning)
	if err != nil {
		t.Fatalf("ListChores: %v", err)
	}
	evening, err := s.ListChores(ctx, child.ID, models.RoutineEvening)
	if err != nil {
		t.Fatalf("ListChores: %v", err)
	}
	if len(morning) != 4 || len(evening) != 4 {
		t.Errorf("morning=%d evening=%d, want 4/4", len(morning), len(evening))
	}
	for _, c := range morning {
		if c.IsCustom {
			t.Errorf("seeded chore %q marked custom", c.Title)
		}
		if c.Completed {
			t.Errorf("seeded chore %q starts completed", c.Title)
		}
	}

	children, err := s.ListChildren(ctx, sess.UserID)
	if err != nil {
		t.Fatalf("ListChildren: %v", err)
	}
	if len(children) != 1 || children[0].Balance != 0 {
		t.Errorf("children = %+v, want one child with zero balance", children)
	}
	if len(children[0].Chores) != len(defaultChores) {
		t.Errorf("nested chores = %d, want %d", len(children[0].Chores), len(defaultChores))
	}
}

func TestBalanceEqualsCompletedRewards(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sess := signedUp(t, s, "parent@example.com")
	child, err := s.CreateChild(ctx, "Ada", "")
	if err != nil {
		t.Fatalf("CreateChild: %v", err)
	}

	chores, err := s.ListChores(ctx, child.ID, models.RoutineMorning)
	if err != nil {
		t.Fatalf("ListChores: %v", err)
	}

	// Toggle on, on, off, on in mixed order; the balance must land on the
	// sum of rewards of the chores that end up completed.
	steps := []struct {
		idx       int
		completed bool
	}{
		{0, true},
		{2, true},
		{0, false},
		{1, true},
		{3, true},
		{3, false},
	}
	completed := map[int]bool{}
	for _, st := range steps {
		if _, err := s.ToggleChore(ctx, chores[st.idx].ID, st.completed); err != nil {
			t.Fatalf("ToggleChore(%d, %v): %v", st.idx, st.completed, err)
		}
		completed[st.idx] = st.completed
	}

	var want float64
	for idx, done := range completed {
		if done {
			want += chores[idx].RewardAmount
		}
	}

	children, err := s.ListChildren(ctx, sess.UserID)
	if err != nil {
		t.Fatalf("ListChildren: %v", err)
	}
	if !almostEqual(children[0].Balance, want) {
		t.Errorf("balance = %v, want %v", children[0].Balance, want)
	}
}

func TestToggleIsIdempotentPerState(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	signedUp(t, s, "parent@example.com")
	child, err := s.CreateChild(ctx, "Ada", "")
	if err != nil {
		t.Fatalf("CreateChild: %v", err)
	}
	chore := child.Chores[0]

	first, err := s.ToggleChore(ctx, chore.ID, true)
	if err != nil {
		t.Fatalf("ToggleChore: %v", err)
	}
	if !first.Completed || !almostEqual(first.Balance, chore.RewardAmount) {
		t.Fatalf("first toggle = %+v, want completed with balance %v", first, chore.RewardAmount)
	}
	if first.Chore.CompletedAt == 0 {
		t.Error("completed_at not set")
	}

	// Re-toggling to the same state must not pay out again.
	second, err := s.ToggleChore(ctx, chore.ID, true)
	if err != nil {
		t.Fatalf("repeat toggle: %v", err)
	}
	if !almostEqual(second.Balance, first.Balance) {
		t.Errorf("repeat toggle balance = %v, want %v unchanged", second.Balance, first.Balance)
	}

	off, err := s.ToggleChore(ctx, chore.ID, false)
	if err != nil {
		t.Fatalf("untoggle: %v", err)
	}
	if off.Completed || !almostEqual(off.Balance, 0) {
		t.Errorf("untoggle = %+v, want uncompleted with balance 0", off)
	}
	if off.Chore.CompletedAt != 0 {
		t.Error("completed_at not cleared")
	}
}

func TestToggleBalanceNeverNegative(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	signedUp(t, s, "parent@example.com")
	child, err := s.CreateChild(ctx, "Ada", "")
	if err != nil {
		t.Fatalf("CreateChild: %v", err)
	}
	chore := child.Chores[0]

	if _, err := s.ToggleChore(ctx, chore.ID, true); err != nil {
		t.Fatalf("ToggleChore: %v", err)
	}
	if _, err := s.ResetBalance(ctx, child.ID); err != nil {
		t.Fatalf("ResetBalance: %v", err)
	}

	// Untoggling after redemption must floor at zero, not go negative.
	result, err := s.ToggleChore(ctx, chore.ID, false)
	if err != nil {
		t.Fatalf("untoggle: %v", err)
	}
	if result.Balance != 0 {
		t.Errorf("balance = %v, want floored at 0", result.Balance)
	}
}

func TestToggleOwnership(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	signedUp(t, s, "first@example.com")
	child, err := s.CreateChild(ctx, "Ada", "")
	if err != nil {
		t.Fatalf("CreateChild: %v", err)
	}
	chore := child.Chores[0]

	// A different parent cannot toggle the chore.
	signedUp(t, s, "second@example.com")
	if _, err := s.ToggleChore(ctx, chore.ID, true); !errors.Is(err, backend.ErrUnauthorized) {
		t.Errorf("foreign toggle err = %v, want ErrUnauthorized", err)
	}
	if _, err := s.ToggleChore(ctx, "no-such-chore", true); !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("missing chore err = %v, want ErrNotFound", err)
	}
}

func TestResetChoresKeepsBalance(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	signedUp(t, s, "parent@example.com")
	child, err := s.CreateChild(ctx, "Ada", "")
	if err != nil {
		t.Fatalf("CreateChild: %v", err)
	}

	morning, err := s.ListChores(ctx, child.ID, models.RoutineMorning)
	if err != nil {
		t.Fatalf("ListChores: %v", err)
	}
	var earned float64
	for _, c := range morning {
		if _, err := s.ToggleChore(ctx, c.ID, true); err != nil {
			t.Fatalf("ToggleChore: %v", err)
		}
		earned += c.RewardAmount
	}

	if err := s.ResetChores(ctx, child.ID, models.RoutineMorning); err != nil {
		t.Fatalf("ResetChores: %v", err)
	}

	morning, err = s.ListChores(ctx, child.ID, models.RoutineMorning)
	if err != nil {
		t.Fatalf("ListChores: %v", err)
	}
	for _, c := range morning {
		if c.Completed {
			t.Errorf("chore %q still completed after reset", c.Title)
		}
	}

	// Earnings survive the routine reset; redemption is separate.
	balance, err := s.ResetBalance(ctx, child.ID)
	if err != nil {
		t.Fatalf("ResetBalance: %v", err)
	}
	if balance != 0 {
		t.Errorf("ResetBalance = %v, want 0", balance)
	}
}

func TestCreateAndUpdateChore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	signedUp(t, s, "parent@example.com")
	child, err := s.CreateChild(ctx, "Ada", "")
	if err != nil {
		t.Fatalf("CreateChild: %v", err)
	}

	chore, err := s.CreateChore(ctx, child.ID, backend.ChoreFields{
		Title:        "Water plants",
		Description:  "Front window only",
		RewardAmount: 0.15,
		RoutineType:  models.RoutineEvening,
		IsCustom:     true,
	})
	if err != nil {
		t.Fatalf("CreateChore: %v", err)
	}
	if !chore.IsCustom || chore.RoutineType != models.RoutineEvening {
		t.Errorf("chore = %+v, want custom evening chore", chore)
	}

	newTitle := "Water all plants"
	newReward := 0.25
	updated, err := s.UpdateChore(ctx, chore.ID, backend.ChoreUpdate{
		Title:        &newTitle,
		RewardAmount: &newReward,
	})
	if err != nil {
		t.Fatalf("UpdateChore: %v", err)
	}
	if updated.Title != newTitle || !almostEqual(updated.RewardAmount, newReward) {
		t.Errorf("updated = %+v, want %q at %v", updated, newTitle, newReward)
	}
	if updated.Description != "Front window only" {
		t.Error("untouched field was overwritten")
	}

	empty := ""
	if _, err := s.UpdateChore(ctx, chore.ID, backend.ChoreUpdate{Title: &empty}); err == nil {
		t.Error("empty title should be rejected")
	}
}

func TestDeleteChoreAndChildCascade(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sess := signedUp(t, s, "parent@example.com")
	child, err := s.CreateChild(ctx, "Ada", "")
	if err != nil {
		t.Fatalf("CreateChild: %v", err)
	}

	if err := s.DeleteChore(ctx, child.Chores[0].ID); err != nil {
		t.Fatalf("DeleteChore: %v", err)
	}
	chores, err := s.ListChores(ctx, child.ID, "")
	if err != nil {
		t.Fatalf("ListChores: %v", err)
	}
	if len(chores) != len(defaultChores)-1 {
		t.Errorf("chores = %d, want %d", len(chores), len(defaultChores)-1)
	}

	if err := s.DeleteChild(ctx, child.ID); err != nil {
		t.Fatalf("DeleteChild: %v", err)
	}
	children, err := s.ListChildren(ctx, sess.UserID)
	if err != nil {
		t.Fatalf("ListChildren: %v", err)
	}
	if len(children) != 0 {
		t.Errorf("children = %d, want 0 after delete", len(children))
	}

	// Chore rows cascaded with the child.
	if _, err := s.ToggleChore(ctx, chores[0].ID, true); !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("toggle on cascaded chore err = %v, want ErrNotFound", err)
	}
}

func TestOperationsRequireSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateChild(ctx, "Ada", ""); !errors.Is(err, backend.ErrNotAuthenticated) {
		t.Errorf("CreateChild err = %v, want ErrNotAuthenticated", err)
	}
	if _, err := s.ToggleChore(ctx, "x", true); !errors.Is(err, backend.ErrNotAuthenticated) {
		t.Errorf("ToggleChore err = %v, want ErrNotAuthenticated", err)
	}
	if _, err := s.ListChores(ctx, "x", ""); !errors.Is(err, backend.ErrNotAuthenticated) {
		t.Errorf("ListChores err = %v, want ErrNotAuthenticated", err)
	}
}
