// Package local provides an embedded SQLite implementation of the backend
// capability set. It performs the same atomic procedures the hosted service
// runs server-side (toggle_chore, reset_chores, reset_child_balance,
// create_child_with_relationships), so tests and the CLI's offline mode can
// exercise the full client core without a network.
package local

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/fennwick/chorecoins/internal/backend"
	"github.com/fennwick/chorecoins/internal/models"
)

// Ensure Store implements the full capability set.
var _ backend.Backend = (*Store)(nil)

// Store implements backend.Backend over an embedded SQLite database.
type Store struct {
	db     *sql.DB
	tokens *tokenManager

	mu      sync.Mutex
	session *models.Session
	subs    map[int]backend.AuthChangeFunc
	nextSub int
}

// schema sets up the database on open. Relationship and balance rows cascade
// when a child is deleted; chores cascade with their child.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    name TEXT NOT NULL DEFAULT '',
    gender TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS children (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    avatar_url TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS parent_child_relationships (
    parent_id TEXT NOT NULL,
    child_id TEXT NOT NULL,
    relationship_type TEXT NOT NULL DEFAULT 'parent',
    PRIMARY KEY (parent_id, child_id),
    FOREIGN KEY (parent_id) REFERENCES users(id) ON DELETE CASCADE,
    FOREIGN KEY (child_id) REFERENCES children(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS child_balances (
    child_id TEXT PRIMARY KEY,
    amount REAL NOT NULL DEFAULT 0,
    updated_at INTEGER NOT NULL,
    FOREIGN KEY (child_id) REFERENCES children(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS chores (
    id TEXT PRIMARY KEY,
    child_id TEXT NOT NULL,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    reward_amount REAL NOT NULL,
    routine_type TEXT NOT NULL,
    is_custom INTEGER NOT NULL DEFAULT 1,
    completion_status INTEGER NOT NULL DEFAULT 0,
    completed_at INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    FOREIGN KEY (child_id) REFERENCES children(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_chores_child_id ON chores(child_id);
CREATE INDEX IF NOT EXISTS idx_relationships_parent ON parent_child_relationships(parent_id);
`

// New opens (creating if necessary) the database at dbPath and runs the
// schema. tokenSecret signs the session tokens this store issues.
func New(dbPath, tokenSecret string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run schema: %w", err)
	}

	return &Store{
		db:     db,
		tokens: newTokenManager(tokenSecret, defaultTokenDuration),
		subs:   make(map[int]backend.AuthChangeFunc),
	}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// currentUserID returns the signed-in user's id, or ErrNotAuthenticated.
func (s *Store) currentUserID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return "", backend.ErrNotAuthenticated
	}
	return s.session.UserID, nil
}

// notifyAuthChange delivers the new session to all subscribers. Callbacks run
// outside the store lock.
func (s *Store) notifyAuthChange(session *models.Session) {
	s.mu.Lock()
	fns := make([]backend.AuthChangeFunc, 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(session)
	}
}

// SubscribeAuthChanges registers a callback for auth state changes.
func (s *Store) SubscribeAuthChanges(fn backend.AuthChangeFunc) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}
