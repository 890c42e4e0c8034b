package swipe

import (
	"context"
	"errors"
	"time"
)

// ErrCursorNotFound indicates that the viewer has not answered any card of the week yet.
var ErrCursorNotFound = errors.New("swipe cursor not found")

// Cursor is the persisted position of a viewer inside a weekly batch.
type Cursor struct {
	UserID    string    `json:"user_id"`
	Week      string    `json:"week"`
	Index     int       `json:"index"`
	Length    int       `json:"length"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Phase derives the flow phase the cursor was last saved in.
func (c Cursor) Phase() Phase {
	return PhaseOf(c.Length, c.Index)
}

// Storage defines the persistence contract for swipe cursors.
type Storage interface {
	// GetCursor returns the cursor of userID for week.
	GetCursor(ctx context.Context, userID, week string) (*Cursor, error)
	// SetCursor saves the cursor.
	SetCursor(ctx context.Context, cursor *Cursor) error
}
