package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/arven/deadwatch/internal/domain"
	_ "modernc.org/sqlite"
)

// formatTimestamp converts time.Time to SQLite-compatible UTC ISO8601 string
// The Z suffix ensures the Go sqlite driver parses it back as UTC
func formatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

//go:embed schema.sql
var schema string

// Store provides database access
type Store struct {
	db *sql.DB
}

// New creates a new Store with the given database path
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// Enable foreign keys, WAL mode for better performance, and busy timeout for concurrency
	if _, err := db.Exec("PRAGMA foreign_keys = ON; PRAGMA journal_mode = WAL; PRAGMA busy_timeout = 5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting pragmas: %w", err)
	}

	// Create tables
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// --- Read cursor methods ---

// GetCursor returns the persisted line cursor for a monitored file, or a
// zero cursor when the file has never been read.
func (s *Store) GetCursor(ctx context.Context, tenantID int64, serverID, fileKind string) (*domain.ReadCursor, error) {
	cur := &domain.ReadCursor{
		TenantID: tenantID,
		ServerID: serverID,
		FileKind: fileKind,
	}
	err := s.db.QueryRowContext(ctx, `
		SELECT last_line, updated_at FROM read_cursors
		WHERE tenant_id = ? AND server_id = ? AND file_kind = ?
	`, tenantID, serverID, fileKind).Scan(&cur.LastLine, &cur.UpdatedAt)
	if err == sql.ErrNoRows {
		return cur, nil
	}
	if err != nil {
		return nil, err
	}
	return cur, nil
}

// SaveCursor persists the line cursor for a monitored file.
func (s *Store) SaveCursor(ctx context.Context, cur *domain.ReadCursor) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO read_cursors (tenant_id, server_id, file_kind, last_line, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, server_id, file_kind) DO UPDATE SET
			last_line = excluded.last_line,
			updated_at = excluded.updated_at
	`, cur.TenantID, cur.ServerID, cur.FileKind, cur.LastLine, formatTimestamp(now))
	if err != nil {
		return err
	}
	cur.UpdatedAt = now
	return nil
}

// ResetCursor sets a cursor back to line zero. Used when the remote file
// rotated and is now shorter than the last read position.
func (s *Store) ResetCursor(ctx context.Context, tenantID int64, serverID, fileKind string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE read_cursors SET last_line = 0, updated_at = ?
		WHERE tenant_id = ? AND server_id = ? AND file_kind = ?
	`, formatTimestamp(time.Now()), tenantID, serverID, fileKind)
	return err
}

// --- Event methods ---

// InsertEvent stores a normalized event.
func (s *Store) InsertEvent(ctx context.Context, ev *domain.NormalizedEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (
			id, tenant_id, server_id, kind, timestamp,
			actor_id, actor_name, target_id, target_name,
			weapon, distance, location, raw_source
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, ev.ID, ev.TenantID, ev.ServerID, ev.Kind, formatTimestamp(ev.Timestamp),
		ev.ActorID, ev.ActorName, ev.TargetID, ev.TargetName,
		ev.Weapon, ev.Distance, ev.Location, ev.RawSource)
	return err
}

// EventFilter defines filters for querying stored events
type EventFilter struct {
	TenantID int64
	ServerID string
	Kind     string
	Since    *time.Time
	Limit    int
}

// GetEvents returns stored events for a tenant, newest first.
func (s *Store) GetEvents(ctx context.Context, filter EventFilter) ([]domain.NormalizedEvent, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}

	query := `
		SELECT id, tenant_id, server_id, kind, timestamp,
			actor_id, actor_name, target_id, target_name,
			weapon, distance, location, raw_source
		FROM events WHERE tenant_id = ?`
	args := []interface{}{filter.TenantID}

	if filter.ServerID != "" {
		query += ` AND server_id = ?`
		args = append(args, filter.ServerID)
	}
	if filter.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, filter.Kind)
	}
	if filter.Since != nil {
		query += ` AND timestamp >= ?`
		args = append(args, formatTimestamp(*filter.Since))
	}

	query += ` ORDER BY timestamp DESC LIMIT ?`
	args = append(args, filter.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.NormalizedEvent
	for rows.Next() {
		var ev domain.NormalizedEvent
		if err := rows.Scan(
			&ev.ID, &ev.TenantID, &ev.ServerID, &ev.Kind, &ev.Timestamp,
			&ev.ActorID, &ev.ActorName, &ev.TargetID, &ev.TargetName,
			&ev.Weapon, &ev.Distance, &ev.Location, &ev.RawSource,
		); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// CountEvents returns how many events a tenant has stored.
func (s *Store) CountEvents(ctx context.Context, tenantID int64) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM events WHERE tenant_id = ?
	`, tenantID).Scan(&count)
	return count, err
}

// --- User methods ---

// User represents an authenticated user
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	IsAdmin      bool
	CreatedAt    time.Time
	LastLogin    *time.Time
}

// CreateUser creates a new user account
func (s *Store) CreateUser(ctx context.Context, username, passwordHash string, isAdmin bool) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password_hash, is_admin)
		VALUES (?, ?, ?)
	`, username, passwordHash, isAdmin)
	return err
}

// GetUserByUsername retrieves a user by username
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, is_admin, created_at, last_login
		FROM users WHERE username = ?
	`, username)
	return scanUser(row)
}

// GetUserByID retrieves a user by ID
func (s *Store) GetUserByID(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, is_admin, created_at, last_login
		FROM users WHERE id = ?
	`, id)
	return scanUser(row)
}

// DeleteUser removes a user by username
func (s *Store) DeleteUser(ctx context.Context, username string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE username = ?`, username)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("user not found: %s", username)
	}
	return nil
}

// ListUsers returns all users with details
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, password_hash, is_admin, created_at, last_login
		FROM users ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

// UpdateUserLastLogin updates the last login timestamp
func (s *Store) UpdateUserLastLogin(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET last_login = CURRENT_TIMESTAMP WHERE id = ?
	`, userID)
	return err
}

// UpdateUserPassword updates a user's password
func (s *Store) UpdateUserPassword(ctx context.Context, userID int64, newPasswordHash string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET password_hash = ? WHERE id = ?
	`, newPasswordHash, userID)
	return err
}
