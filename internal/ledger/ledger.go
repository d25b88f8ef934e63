// Package ledger is the uniqueness-and-write core: at most one attendance
// record may ever exist per (session, student) pair.
package ledger

import (
	"context"
	"time"
)

// Record is a single immutable attendance event.
type Record struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	StudentID  string    `json:"student_id"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Repository persists attendance records. Insert must be atomic per
// (session_id, student_id): two concurrent inserts for the same pair may
// yield at most one row, the loser receiving apperr.ErrDuplicate.
type Repository interface {
	Insert(ctx context.Context, rec Record) (Record, error)
	// Get returns apperr.ErrNotFound when the record does not exist.
	Get(ctx context.Context, recordID string) (Record, error)
	ListBySession(ctx context.Context, sessionID string) ([]Record, error)
	ListAll(ctx context.Context) ([]Record, error)
	CountBySession(ctx context.Context, sessionID string) (int, error)
	// Delete returns apperr.ErrNotFound when the record does not exist.
	Delete(ctx context.Context, recordID string) error
}
