package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/blankpage/blankpage/internal/domain"
	"github.com/blankpage/blankpage/internal/shared"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		title TEXT,
		messages_json TEXT NOT NULL,
		is_saved INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_owner_created ON sessions(owner_id, created_at DESC);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveSession persists a transcript snapshot and returns the created record.
func (s *SQLiteStore) SaveSession(ctx context.Context, ownerID, title string, messages domain.Transcript) (*domain.SavedSession, error) {
	if err := messages.Validate(); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	messagesJSON, err := json.Marshal(messages)
	if err != nil {
		return nil, fmt.Errorf("encode transcript: %w", err)
	}

	sess := &domain.SavedSession{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Title:     title,
		Messages:  messages,
		CreatedAt: time.Now().UTC(),
		IsSaved:   true,
	}

	query := `
	INSERT INTO sessions (id, owner_id, title, messages_json, is_saved, created_at)
	VALUES (?, ?, ?, ?, 1, ?)`

	var titleArg interface{}
	if title != "" {
		titleArg = title
	}

	_, err = s.db.ExecContext(ctx, query, sess.ID, ownerID, titleArg, string(messagesJSON), sess.CreatedAt.Unix())
	if shared.IsSQLiteConflictError(err) {
		// One retry on a transient lock; WAL keeps these rare.
		_, err = s.db.ExecContext(ctx, query, sess.ID, ownerID, titleArg, string(messagesJSON), sess.CreatedAt.Unix())
	}
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}

	return sess, nil
}

// ListSessions returns the owner's saved sessions, newest first.
func (s *SQLiteStore) ListSessions(ctx context.Context, ownerID string) ([]*domain.SavedSession, error) {
	query := `
	SELECT id, owner_id, title, messages_json, is_saved, created_at
	FROM sessions
	WHERE owner_id = ? AND is_saved = 1
	ORDER BY created_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []*domain.SavedSession
	for rows.Next() {
		var sess domain.SavedSession
		var title sql.NullString
		var messagesJSON string
		var isSaved int
		var createdAt int64

		if err := rows.Scan(&sess.ID, &sess.OwnerID, &title, &messagesJSON, &isSaved, &createdAt); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		if err := json.Unmarshal([]byte(messagesJSON), &sess.Messages); err != nil {
			return nil, fmt.Errorf("decode transcript for %s: %w", sess.ID, err)
		}
		sess.Title = title.String
		sess.IsSaved = isSaved != 0
		sess.CreatedAt = time.Unix(createdAt, 0).UTC()
		sessions = append(sessions, &sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session rows: %w", err)
	}

	return sessions, nil
}

// DeleteSession removes a session by id.
func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete session rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
