package local

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/fennwick/chorecoins/internal/backend"
	"github.com/fennwick/chorecoins/internal/models"
)

const defaultTokenDuration = 24 * time.Hour

// claims are the session token claims this store issues.
type claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// tokenManager signs and validates HS256 session tokens.
type tokenManager struct {
	secretKey     []byte
	tokenDuration time.Duration
}

func newTokenManager(secret string, duration time.Duration) *tokenManager {
	return &tokenManager{secretKey: []byte(secret), tokenDuration: duration}
}

func (m *tokenManager) generate(userID, email string) (string, int64, error) {
	expiresAt := time.Now().Add(m.tokenDuration)
	c := &claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(m.secretKey)
	if err != nil {
		return "", 0, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt.Unix(), nil
}

func (m *tokenManager) validate(tokenString string) (*claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secretKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", backend.ErrNotAuthenticated, err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return nil, backend.ErrNotAuthenticated
	}
	return c, nil
}

// GetSession returns the current session, or (nil, nil) when none exists.
func (s *Store) GetSession(ctx context.Context) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil, nil
	}
	if s.session.ExpiresAt != 0 && s.session.ExpiresAt <= time.Now().Unix() {
		s.session = nil
		return nil, nil
	}
	sess := *s.session
	return &sess, nil
}

// Restore re-establishes a session from a previously issued token, e.g. one
// persisted by the CLI between runs. Expired or tampered tokens are rejected.
func (s *Store) Restore(token string) error {
	c, err := s.tokens.validate(token)
	if err != nil {
		return err
	}

	session := &models.Session{
		UserID:      c.UserID,
		Email:       c.Email,
		AccessToken: token,
		ExpiresAt:   c.ExpiresAt.Unix(),
	}
	s.mu.Lock()
	s.session = session
	s.mu.Unlock()
	return nil
}

// SignUp registers a new account with a bcrypt-hashed password and signs it in.
func (s *Store) SignUp(ctx context.Context, email, password string) (*models.Session, error) {
	if email == "" {
		return nil, &backend.ValidationError{Field: "email", Message: "required"}
	}
	if len(password) < 8 {
		return nil, backend.ErrWeakPassword
	}

	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM users WHERE email = ?", email).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if exists > 0 {
		return nil, backend.ErrEmailExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	id := uuid.New().String()
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)",
		id, email, string(hash), time.Now().Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return s.establishSession(id, email)
}

// SignIn authenticates with email and password.
func (s *Store) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	var id, hash string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, password_hash FROM users WHERE email = ?", email,
	).Scan(&id, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, backend.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, backend.ErrInvalidCredentials
	}

	return s.establishSession(id, email)
}

func (s *Store) establishSession(userID, email string) (*models.Session, error) {
	token, expiresAt, err := s.tokens.generate(userID, email)
	if err != nil {
		return nil, err
	}

	session := &models.Session{
		UserID:      userID,
		Email:       email,
		AccessToken: token,
		ExpiresAt:   expiresAt,
	}
	s.mu.Lock()
	s.session = session
	s.mu.Unlock()

	s.notifyAuthChange(session)
	sess := *session
	return &sess, nil
}

// SignOut clears the session. Never fails locally.
func (s *Store) SignOut(ctx context.Context) error {
	s.mu.Lock()
	s.session = nil
	s.mu.Unlock()
	s.notifyAuthChange(nil)
	return nil
}

// GetProfile fetches the parent profile. ErrNotFound when no row exists.
func (s *Store) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	p := &models.Profile{UserID: userID}
	err := s.db.QueryRowContext(ctx,
		"SELECT name, gender FROM users WHERE id = ?", userID,
	).Scan(&p.Name, (*string)(&p.Gender))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, backend.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return p, nil
}

// UpsertProfile updates the parent's display info.
func (s *Store) UpsertProfile(ctx context.Context, profile *models.Profile) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET name = ?, gender = ? WHERE id = ?",
		profile.Name, string(profile.Gender), profile.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	if n == 0 {
		return backend.ErrNotFound
	}
	return nil
}
