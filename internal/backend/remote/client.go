// Package remote implements the backend capability set over the hosted
// service's REST API. The client holds the session token, maps HTTP failure
// statuses onto the shared error taxonomy, and emits auth-change events for
// its own sign-in/sign-out transitions (the service has no push channel;
// auth state only changes through calls this client makes).
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fennwick/chorecoins/internal/backend"
	"github.com/fennwick/chorecoins/internal/models"
)

var _ backend.Backend = (*Client)(nil)

// Client talks to the hosted chorecoins service.
type Client struct {
	baseURL string
	http    *http.Client

	mu      sync.Mutex
	session *models.Session
	subs    map[int]backend.AuthChangeFunc
	nextSub int
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken restores a persisted access token. The token's claims are read
// without signature verification — the client cannot verify a server-signed
// token and treats it as introspectable-but-opaque; the server re-validates
// on every call. Expired tokens are discarded.
func WithToken(token string) Option {
	return func(c *Client) {
		sess, err := sessionFromToken(token)
		if err == nil {
			c.session = sess
		}
	}
}

// New creates a client for the service at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{},
		subs:    make(map[int]backend.AuthChangeFunc),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// sessionFromToken rebuilds a session from a bearer token's claims.
func sessionFromToken(token string) (*models.Session, error) {
	var claims struct {
		UserID string `json:"user_id"`
		Email  string `json:"email"`
		jwt.RegisteredClaims
	}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if claims.ExpiresAt != nil && !claims.ExpiresAt.After(time.Now()) {
		return nil, backend.ErrNotAuthenticated
	}

	sess := &models.Session{
		UserID:      claims.UserID,
		Email:       claims.Email,
		AccessToken: token,
	}
	if claims.ExpiresAt != nil {
		sess.ExpiresAt = claims.ExpiresAt.Unix()
	}
	return sess, nil
}

func (c *Client) notifyAuthChange(sess *models.Session) {
	c.mu.Lock()
	fns := make([]backend.AuthChangeFunc, 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(sess)
	}
}

// SubscribeAuthChanges registers a callback for auth state changes.
func (c *Client) SubscribeAuthChanges(fn backend.AuthChangeFunc) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

func (c *Client) token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ""
	}
	return c.session.AccessToken
}

// do issues one JSON request and decodes the response into out (when
// non-nil). Failure statuses map onto the shared error taxonomy.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.mapError(resp)
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// mapError converts a failure response into the shared error taxonomy.
func (c *Client) mapError(resp *http.Response) error {
	var payload wireError
	_ = json.NewDecoder(resp.Body).Decode(&payload)

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return backend.ErrNotAuthenticated
	case http.StatusForbidden:
		return backend.ErrUnauthorized
	case http.StatusNotFound:
		return backend.ErrNotFound
	case http.StatusConflict:
		return backend.ErrEmailExists
	case http.StatusUnprocessableEntity:
		if payload.Field == "password" {
			return backend.ErrWeakPassword
		}
		return &backend.ValidationError{Field: payload.Field, Message: payload.Message}
	default:
		if payload.Error != "" {
			return fmt.Errorf("server error (%d): %s", resp.StatusCode, payload.Error)
		}
		return fmt.Errorf("server error (%d)", resp.StatusCode)
	}
}

// GetSession returns the restored session when its token is still live.
func (c *Client) GetSession(ctx context.Context) (*models.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil, nil
	}
	if c.session.ExpiresAt != 0 && c.session.ExpiresAt <= time.Now().Unix() {
		c.session = nil
		return nil, nil
	}
	sess := *c.session
	return &sess, nil
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignIn authenticates with email and password.
func (c *Client) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	var w wireSession
	err := c.do(ctx, http.MethodPost, "/v1/auth/signin", credentials{email, password}, &w)
	if err != nil {
		// An unauthenticated status on the sign-in endpoint means bad
		// credentials, not a missing session.
		if errors.Is(err, backend.ErrNotAuthenticated) {
			return nil, backend.ErrInvalidCredentials
		}
		return nil, err
	}

	sess := w.toModel()
	c.mu.Lock()
	c.session = sess
	c.mu.Unlock()
	c.notifyAuthChange(sess)

	out := *sess
	return &out, nil
}

// SignUp registers a new account.
func (c *Client) SignUp(ctx context.Context, email, password string) (*models.Session, error) {
	var w wireSession
	if err := c.do(ctx, http.MethodPost, "/v1/auth/signup", credentials{email, password}, &w); err != nil {
		return nil, err
	}

	sess := w.toModel()
	c.mu.Lock()
	c.session = sess
	c.mu.Unlock()
	c.notifyAuthChange(sess)

	out := *sess
	return &out, nil
}

// SignOut invalidates the session. The local session is cleared even when
// the remote call fails.
func (c *Client) SignOut(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/v1/auth/signout", nil, nil)

	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
	c.notifyAuthChange(nil)

	if err != nil && !errors.Is(err, backend.ErrNotAuthenticated) {
		return err
	}
	return nil
}

// GetProfile fetches the parent profile.
func (c *Client) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	var w wireProfile
	if err := c.do(ctx, http.MethodGet, "/v1/profile", nil, &w); err != nil {
		return nil, err
	}
	return w.toModel(), nil
}

// UpsertProfile creates or updates the parent profile.
func (c *Client) UpsertProfile(ctx context.Context, profile *models.Profile) error {
	body := wireProfile{
		UserID: profile.UserID,
		Name:   profile.Name,
		Gender: string(profile.Gender),
	}
	return c.do(ctx, http.MethodPut, "/v1/profile", body, nil)
}

// ListChildren returns the parent's children with balances and chores.
func (c *Client) ListChildren(ctx context.Context, userID string) ([]models.Child, error) {
	var w []wireChild
	if err := c.do(ctx, http.MethodGet, "/v1/children", nil, &w); err != nil {
		return nil, err
	}
	children := make([]models.Child, 0, len(w))
	for _, wc := range w {
		children = append(children, wc.toModel())
	}
	return children, nil
}

// CreateChild creates a child with relationship, balance, and default chores.
func (c *Client) CreateChild(ctx context.Context, name, avatarURL string) (*models.Child, error) {
	body := map[string]string{"name": name, "avatar_url": avatarURL}
	var w wireChild
	if err := c.do(ctx, http.MethodPost, "/v1/children", body, &w); err != nil {
		return nil, err
	}
	child := w.toModel()
	return &child, nil
}

// UpdateChild applies a partial update.
func (c *Client) UpdateChild(ctx context.Context, id string, update backend.ChildUpdate) (*models.Child, error) {
	body := map[string]any{}
	if update.Name != nil {
		body["name"] = *update.Name
	}
	if update.AvatarURL != nil {
		body["avatar_url"] = *update.AvatarURL
	}

	var w wireChild
	if err := c.do(ctx, http.MethodPatch, "/v1/children/"+url.PathEscape(id), body, &w); err != nil {
		return nil, err
	}
	child := w.toModel()
	return &child, nil
}

// DeleteChild deletes a child.
func (c *Client) DeleteChild(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/children/"+url.PathEscape(id), nil, nil)
}

// ListChores returns a child's chores, optionally filtered by routine.
func (c *Client) ListChores(ctx context.Context, childID string, routine models.RoutineType) ([]models.Chore, error) {
	path := "/v1/children/" + url.PathEscape(childID) + "/chores"
	if routine != "" {
		path += "?routine=" + url.QueryEscape(string(routine))
	}

	var w []wireChore
	if err := c.do(ctx, http.MethodGet, path, nil, &w); err != nil {
		return nil, err
	}
	chores := make([]models.Chore, 0, len(w))
	for _, wc := range w {
		chores = append(chores, wc.toModel())
	}
	return chores, nil
}

// CreateChore creates a chore.
func (c *Client) CreateChore(ctx context.Context, childID string, fields backend.ChoreFields) (*models.Chore, error) {
	body := map[string]any{
		"title":         fields.Title,
		"description":   fields.Description,
		"reward_amount": fields.RewardAmount,
		"routine_type":  string(fields.RoutineType),
		"is_custom":     fields.IsCustom,
	}

	var w wireChore
	if err := c.do(ctx, http.MethodPost, "/v1/children/"+url.PathEscape(childID)+"/chores", body, &w); err != nil {
		return nil, err
	}
	chore := w.toModel()
	return &chore, nil
}

// UpdateChore applies a partial update.
func (c *Client) UpdateChore(ctx context.Context, id string, update backend.ChoreUpdate) (*models.Chore, error) {
	body := map[string]any{}
	if update.Title != nil {
		body["title"] = *update.Title
	}
	if update.Description != nil {
		body["description"] = *update.Description
	}
	if update.RewardAmount != nil {
		body["reward_amount"] = *update.RewardAmount
	}
	if update.RoutineType != nil {
		body["routine_type"] = string(*update.RoutineType)
	}

	var w wireChore
	if err := c.do(ctx, http.MethodPatch, "/v1/chores/"+url.PathEscape(id), body, &w); err != nil {
		return nil, err
	}
	chore := w.toModel()
	return &chore, nil
}

// DeleteChore deletes a chore.
func (c *Client) DeleteChore(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/chores/"+url.PathEscape(id), nil, nil)
}

// ToggleChore invokes the atomic toggle_chore procedure.
func (c *Client) ToggleChore(ctx context.Context, choreID string, completed bool) (*models.ToggleResult, error) {
	body := map[string]any{"chore_id": choreID, "completed": completed}
	var w wireToggleResult
	if err := c.do(ctx, http.MethodPost, "/v1/rpc/toggle_chore", body, &w); err != nil {
		return nil, err
	}
	return w.toModel(), nil
}

// ResetChores invokes the reset_chores procedure.
func (c *Client) ResetChores(ctx context.Context, childID string, routine models.RoutineType) error {
	body := map[string]any{"child_id": childID, "routine_type": string(routine)}
	return c.do(ctx, http.MethodPost, "/v1/rpc/reset_chores", body, nil)
}

// ResetBalance invokes the reset_child_balance procedure.
func (c *Client) ResetBalance(ctx context.Context, childID string) (float64, error) {
	body := map[string]any{"child_id": childID}
	var out struct {
		Balance float64 `json:"balance"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/rpc/reset_child_balance", body, &out); err != nil {
		return 0, err
	}
	return out.Balance, nil
}
