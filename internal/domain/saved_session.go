package domain

import (
	"errors"
	"time"
)

// ErrNotFound is returned by the store when a record does not exist.
var ErrNotFound = errors.New("not found")

// SavedSession is a paid-tier conversation snapshot. Created only by an
// explicit save; never mutated afterwards except by deletion.
type SavedSession struct {
	ID        string     `json:"id"`
	OwnerID   string     `json:"-"`
	Title     string     `json:"title,omitempty"`
	Messages  Transcript `json:"messages"`
	CreatedAt time.Time  `json:"created_at"`
	IsSaved   bool       `json:"is_saved"`
}
