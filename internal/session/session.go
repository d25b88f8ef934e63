package session

import (
	"context"
	"time"
)

// Session is an instructor-created attendance window. Immutable after
// creation; only admins may delete one.
type Session struct {
	SessionID    string    `json:"session_id"`
	Name         string    `json:"name"`
	InstructorID string    `json:"instructor_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// Repository persists sessions.
type Repository interface {
	Insert(ctx context.Context, s Session) (Session, error)
	// Get returns apperr.ErrNotFound when no session has the id.
	Get(ctx context.Context, sessionID string) (Session, error)
	// Latest returns the most recently created session owned by the
	// instructor; created_at ties break toward the later insertion.
	// apperr.ErrNotFound when the instructor owns none.
	Latest(ctx context.Context, instructorID string) (Session, error)
	ListAll(ctx context.Context) ([]Session, error)
	ListByInstructor(ctx context.Context, instructorID string) ([]Session, error)
	// Delete returns apperr.ErrNotFound when no session has the id.
	Delete(ctx context.Context, sessionID string) error
}
