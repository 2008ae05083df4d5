// Package store is the SQLite-backed user directory. It is the only durable
// state the server owns: message and room state stays in memory, but user
// ids, display names, and admin flags must survive restarts so tokens keep
// resolving to the same people.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrUserNotFound is returned when no directory row exists for an id.
var ErrUserNotFound = errors.New("user not found")

// User is one directory entry.
type User struct {
	ID        string
	Username  string
	IsAdmin   bool
	CreatedAt time.Time
}

// Store persists the user directory in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database and runs migrations.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	st := &Store{db: db}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	slog.Info("sqlite store opened", "path", path)
	return st, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	username TEXT NOT NULL,
	is_admin INTEGER NOT NULL DEFAULT 0,
	created_at_unix_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("run sqlite migrations: %w", err)
	}
	slog.Debug("sqlite migrations applied")
	return nil
}

// UpsertUser creates or updates one directory entry. The created timestamp
// is preserved on update.
func (s *Store) UpsertUser(ctx context.Context, u User) error {
	if strings.TrimSpace(u.ID) == "" {
		return fmt.Errorf("user id is required")
	}
	if strings.TrimSpace(u.Username) == "" {
		return fmt.Errorf("username is required")
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	const q = `
INSERT INTO users (id, username, is_admin, created_at_unix_ms)
VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET username = excluded.username, is_admin = excluded.is_admin
`
	_, err := s.db.ExecContext(ctx, q, u.ID, u.Username, boolToInt(u.IsAdmin), u.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	slog.Debug("user upserted", "user_id", u.ID, "username", u.Username, "is_admin", u.IsAdmin)
	return nil
}

// UserByID returns one directory entry.
func (s *Store) UserByID(ctx context.Context, id string) (User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return User{}, fmt.Errorf("user id is required")
	}

	const q = `SELECT id, username, is_admin, created_at_unix_ms FROM users WHERE id = ?`

	var (
		u       User
		isAdmin int
		created int64
	)
	err := s.db.QueryRowContext(ctx, q, id).Scan(&u.ID, &u.Username, &isAdmin, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("query user: %w", err)
	}
	u.IsAdmin = isAdmin != 0
	u.CreatedAt = time.UnixMilli(created).UTC()
	return u, nil
}

// Users returns all directory entries ordered by id.
func (s *Store) Users(ctx context.Context) ([]User, error) {
	const q = `SELECT id, username, is_admin, created_at_unix_ms FROM users ORDER BY id`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var (
			u       User
			isAdmin int
			created int64
		)
		if err := rows.Scan(&u.ID, &u.Username, &isAdmin, &created); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.IsAdmin = isAdmin != 0
		u.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, u)
	}
	return out, rows.Err()
}

// SetAdmin flips the admin flag for one user.
func (s *Store) SetAdmin(ctx context.Context, id string, isAdmin bool) error {
	const q = `UPDATE users SET is_admin = ? WHERE id = ?`
	res, err := s.db.ExecContext(ctx, q, boolToInt(isAdmin), id)
	if err != nil {
		return fmt.Errorf("update admin flag: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UserCount returns the number of directory entries.
func (s *Store) UserCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
