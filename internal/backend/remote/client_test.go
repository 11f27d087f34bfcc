package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fennwick/chorecoins/internal/backend"
	"github.com/fennwick/chorecoins/internal/models"
)

func signedToken(t *testing.T, userID, email string, expiresAt time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{
		"user_id": userID,
		"email":   email,
		"exp":     expiresAt.Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("server-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestSignInStoresTokenAndNotifies(t *testing.T) {
	token := "tok-123"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/auth/signin":
			var creds struct {
				Email    string `json:"email"`
				Password string `json:"password"`
			}
			if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
				t.Errorf("decode credentials: %v", err)
			}
			if creds.Email != "parent@example.com" {
				t.Errorf("email = %q", creds.Email)
			}
			json.NewEncoder(w).Encode(wireSession{
				UserID:      "user-1",
				Email:       creds.Email,
				AccessToken: token,
				ExpiresAt:   time.Now().Add(time.Hour).Unix(),
			})
		case "/v1/children":
			// Subsequent calls must carry the bearer token.
			if got := r.Header.Get("Authorization"); got != "Bearer "+token {
				t.Errorf("Authorization = %q, want bearer %s", got, token)
			}
			json.NewEncoder(w).Encode([]wireChild{})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := New(srv.URL)
	var events []*models.Session
	c.SubscribeAuthChanges(func(s *models.Session) { events = append(events, s) })

	ctx := context.Background()
	sess, err := c.SignIn(ctx, "parent@example.com", "correcthorse")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if sess.UserID != "user-1" || sess.AccessToken != token {
		t.Errorf("session = %+v", sess)
	}
	if len(events) != 1 || events[0] == nil {
		t.Errorf("auth events = %d, want 1 session", len(events))
	}

	if _, err := c.ListChildren(ctx, "user-1"); err != nil {
		t.Fatalf("ListChildren: %v", err)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		call    func(c *Client) error
		wantErr error
	}{
		{
			name:    "401 on a list call",
			status:  http.StatusUnauthorized,
			call:    func(c *Client) error { _, err := c.ListChildren(context.Background(), "u"); return err },
			wantErr: backend.ErrNotAuthenticated,
		},
		{
			name:    "401 on sign in means bad credentials",
			status:  http.StatusUnauthorized,
			call:    func(c *Client) error { _, err := c.SignIn(context.Background(), "a@b.c", "pw"); return err },
			wantErr: backend.ErrInvalidCredentials,
		},
		{
			name:    "403",
			status:  http.StatusForbidden,
			call:    func(c *Client) error { _, err := c.ToggleChore(context.Background(), "ch", true); return err },
			wantErr: backend.ErrUnauthorized,
		},
		{
			name:    "404",
			status:  http.StatusNotFound,
			call:    func(c *Client) error { return c.DeleteChore(context.Background(), "ch") },
			wantErr: backend.ErrNotFound,
		},
		{
			name:    "409 on sign up",
			status:  http.StatusConflict,
			call:    func(c *Client) error { _, err := c.SignUp(context.Background(), "a@b.c", "longenough"); return err },
			wantErr: backend.ErrEmailExists,
		},
		{
			name:    "422 on the password field",
			status:  http.StatusUnprocessableEntity,
			body:    `{"field":"password","message":"too short"}`,
			call:    func(c *Client) error { _, err := c.SignUp(context.Background(), "a@b.c", "pw"); return err },
			wantErr: backend.ErrWeakPassword,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				if tt.body != "" {
					w.Write([]byte(tt.body))
				}
			}))
			defer srv.Close()

			err := tt.call(New(srv.URL))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidationErrorCarriesField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"field":"title","message":"required"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).CreateChore(context.Background(), "child-1", backend.ChoreFields{})
	var verr *backend.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if verr.Field != "title" {
		t.Errorf("field = %q, want title", verr.Field)
	}
}

func TestWithTokenRestoresSession(t *testing.T) {
	live := signedToken(t, "user-1", "parent@example.com", time.Now().Add(time.Hour))
	c := New("http://unused", WithToken(live))

	sess, err := c.GetSession(context.Background())
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if sess == nil || sess.UserID != "user-1" || sess.Email != "parent@example.com" {
		t.Fatalf("session = %+v, want user-1", sess)
	}
}

func TestWithTokenDiscardsExpired(t *testing.T) {
	expired := signedToken(t, "user-1", "parent@example.com", time.Now().Add(-time.Hour))
	c := New("http://unused", WithToken(expired))

	sess, err := c.GetSession(context.Background())
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if sess != nil {
		t.Errorf("session = %+v, want nil for expired token", sess)
	}
}

func TestSignOutClearsSessionEvenOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	live := signedToken(t, "user-1", "parent@example.com", time.Now().Add(time.Hour))
	c := New(srv.URL, WithToken(live))

	err := c.SignOut(context.Background())
	if err == nil {
		t.Error("SignOut should surface the remote failure")
	}
	if sess, _ := c.GetSession(context.Background()); sess != nil {
		t.Error("local session not cleared after failed remote sign out")
	}
}

func TestSignOutTreatsUnauthenticatedAsSignedOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	live := signedToken(t, "user-1", "parent@example.com", time.Now().Add(time.Hour))
	c := New(srv.URL, WithToken(live))

	// The server already considers the session dead; sign-out succeeded.
	if err := c.SignOut(context.Background()); err != nil {
		t.Errorf("SignOut: %v", err)
	}
	if sess, _ := c.GetSession(context.Background()); sess != nil {
		t.Error("local session not cleared")
	}
}

func TestToggleChoreDecodesResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/rpc/toggle_chore" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var body struct {
			ChoreID   string `json:"chore_id"`
			Completed bool   `json:"completed"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.ChoreID != "ch-1" || !body.Completed {
			t.Errorf("body = %+v", body)
		}
		json.NewEncoder(w).Encode(wireToggleResult{
			Chore: wireChore{
				ID:           "ch-1",
				ChildID:      "child-1",
				Title:        "Brush teeth",
				RewardAmount: 0.10,
				RoutineType:  "morning",
				Completed:    true,
			},
			Balance:         0.30,
			PreviousBalance: 0.20,
			RewardAmount:    0.10,
			Completed:       true,
		})
	}))
	defer srv.Close()

	result, err := New(srv.URL).ToggleChore(context.Background(), "ch-1", true)
	if err != nil {
		t.Fatalf("ToggleChore: %v", err)
	}
	if result.Balance != 0.30 || result.PreviousBalance != 0.20 || !result.Completed {
		t.Errorf("result = %+v", result)
	}
	if result.Chore.ID != "ch-1" || !result.Chore.Completed {
		t.Errorf("chore = %+v", result.Chore)
	}
}

func TestListChoresRoutineFilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/children/child-1/chores" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("routine"); got != "evening" {
			t.Errorf("routine = %q, want evening", got)
		}
		json.NewEncoder(w).Encode([]wireChore{
			{ID: "ch-3", ChildID: "child-1", Title: "Clean the room", RoutineType: "evening", RewardAmount: 0.50},
		})
	}))
	defer srv.Close()

	chores, err := New(srv.URL).ListChores(context.Background(), "child-1", models.RoutineEvening)
	if err != nil {
		t.Fatalf("ListChores: %v", err)
	}
	if len(chores) != 1 || chores[0].RoutineType != models.RoutineEvening {
		t.Errorf("chores = %+v", chores)
	}
}
