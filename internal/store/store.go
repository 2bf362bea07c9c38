// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"

	"github.com/blankpage/blankpage/internal/domain"
)

// Repository is the session persistence gateway: it stores paid-tier
// conversation snapshots. Records are created by explicit save, listed
// newest first, and removed only by explicit delete.
type Repository interface {
	// SaveSession persists a transcript snapshot for ownerID and returns
	// the created record. The transcript must be non-empty; callers guard
	// that before reaching the gateway.
	SaveSession(ctx context.Context, ownerID, title string, messages domain.Transcript) (*domain.SavedSession, error)

	// ListSessions returns ownerID's saved sessions, newest first.
	ListSessions(ctx context.Context, ownerID string) ([]*domain.SavedSession, error)

	// DeleteSession removes a session by id. Returns domain.ErrNotFound
	// when no such record exists.
	DeleteSession(ctx context.Context, id string) error

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
