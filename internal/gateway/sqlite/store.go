// Package sqlite provides the durable gateway.TokenStore backing the client
// session. Tokens survive process restarts, matching the behaviour of the
// browser client's persistent storage.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/bakehouse/storefront-go/internal/gateway"

	// Pure-Go SQLite driver: no CGO, so the client cross-compiles cleanly.
	_ "modernc.org/sqlite"
)

// The table holds at most one row — the current token pair. An upsert on the
// fixed id replaces it atomically.
const schema = `
CREATE TABLE IF NOT EXISTS session_tokens (
    id             INTEGER PRIMARY KEY CHECK (id = 1),
    access_token   TEXT NOT NULL,
    refresh_token  TEXT NOT NULL,
    updated_at     TEXT NOT NULL
);
`

// Store is the SQLite implementation of gateway.TokenStore.
type Store struct {
	db *sql.DB
}

var _ gateway.TokenStore = (*Store)(nil)

// Open opens (or creates) the token database at path and applies the schema.
// busy_timeout waits for locks instead of failing immediately.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}

	// SQLite performs best with a single writer connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database connection. Call it with defer in main().
func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns the stored token pair, or zero tokens when signed out.
func (s *Store) Load(ctx context.Context) (gateway.Tokens, error) {
	const q = `SELECT access_token, refresh_token FROM session_tokens WHERE id = 1`

	var t gateway.Tokens
	err := s.db.QueryRowContext(ctx, q).Scan(&t.Access, &t.Refresh)
	if err == sql.ErrNoRows {
		return gateway.Tokens{}, nil
	}
	if err != nil {
		return gateway.Tokens{}, fmt.Errorf("sqlite: load tokens: %w", err)
	}
	return t, nil
}

// Save upserts the current token pair.
func (s *Store) Save(ctx context.Context, t gateway.Tokens) error {
	const q = `
		INSERT INTO session_tokens (id, access_token, refresh_token, updated_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			access_token  = excluded.access_token,
			refresh_token = excluded.refresh_token,
			updated_at    = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, q, t.Access, t.Refresh, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("sqlite: save tokens: %w", err)
	}
	return nil
}

// Clear removes the stored tokens; part of the session-expired sign-out.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM session_tokens WHERE id = 1`); err != nil {
		return fmt.Errorf("sqlite: clear tokens: %w", err)
	}
	return nil
}
