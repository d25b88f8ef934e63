package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"qrclass/internal/apperr"
	"qrclass/internal/auth"
	"qrclass/internal/metrics"
	"qrclass/internal/queue"
	"qrclass/internal/session"
)

// Service guards all writes to the attendance ledger.
type Service struct {
	repo     Repository
	sessions session.Repository
	events   queue.Queue
	log      *zap.Logger
	retries  int

	mu     sync.Mutex
	lastTS time.Time
}

// NewService creates the ledger service. events may be nil when no consumer
// is wired (tests, tokenless dev setups). retries bounds local retry of
// transient insert conflicts.
func NewService(repo Repository, sessions session.Repository, events queue.Queue, log *zap.Logger, retries int) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if retries < 0 {
		retries = 0
	}
	return &Service{repo: repo, sessions: sessions, events: events, log: log, retries: retries}
}

// stamp assigns a server-side timestamp that never moves backwards even if
// the wall clock does.
func (s *Service) stamp() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if now.Before(s.lastTS) {
		now = s.lastTS
	}
	s.lastTS = now
	return now
}

// Submit records attendance for the calling student. At most one record per
// (session, student) ever exists; a repeat submission fails with
// ErrDuplicate and creates nothing.
func (s *Service) Submit(ctx context.Context, ident auth.Identity, sessionID string) (Record, error) {
	if ident.Role != auth.RoleStudent {
		metrics.Submissions.WithLabelValues("rejected").Inc()
		return Record{}, fmt.Errorf("%w: only students can mark attendance", apperr.ErrForbidden)
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		metrics.Submissions.WithLabelValues("rejected").Inc()
		return Record{}, fmt.Errorf("%w: session id is required", apperr.ErrInvalidInput)
	}
	if _, err := s.sessions.Get(ctx, sessionID); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			metrics.Submissions.WithLabelValues("rejected").Inc()
			return Record{}, fmt.Errorf("session %s: %w", sessionID, apperr.ErrNotFound)
		}
		return Record{}, err
	}

	rec := Record{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		StudentID:  ident.ID,
		RecordedAt: s.stamp(),
	}

	for attempt := 0; ; attempt++ {
		inserted, err := s.repo.Insert(ctx, rec)
		if err == nil {
			rec = inserted
			break
		}
		if errors.Is(err, apperr.ErrDuplicate) {
			metrics.Submissions.WithLabelValues("duplicate").Inc()
			return Record{}, err
		}
		if errors.Is(err, apperr.ErrUnavailable) && attempt < s.retries {
			s.log.Warn("transient insert conflict, retrying",
				zap.String("session_id", sessionID), zap.Int("attempt", attempt+1))
			time.Sleep(time.Duration(attempt+1) * 25 * time.Millisecond)
			continue
		}
		metrics.Submissions.WithLabelValues("error").Inc()
		return Record{}, err
	}

	metrics.Submissions.WithLabelValues("ok").Inc()
	s.log.Info("attendance recorded",
		zap.String("record_id", rec.ID),
		zap.String("session_id", rec.SessionID),
		zap.String("student_id", rec.StudentID))

	if s.events != nil {
		evt := queue.Event{
			Type:      queue.EventRecorded,
			RecordID:  rec.ID,
			SessionID: rec.SessionID,
			StudentID: rec.StudentID,
			At:        rec.RecordedAt,
		}
		if err := s.events.Publish(ctx, evt); err != nil {
			// The record is durable; the event is best-effort.
			s.log.Warn("event publish failed", zap.String("record_id", rec.ID), zap.Error(err))
		}
	}
	return rec, nil
}

// List returns the records for a session. Admins may view any session,
// instructors only their own; students never list.
func (s *Service) List(ctx context.Context, ident auth.Identity, sessionID string) ([]Record, error) {
	if ident.Role == auth.RoleStudent {
		return nil, fmt.Errorf("%w: students cannot view attendance", apperr.ErrForbidden)
	}
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if ident.Role == auth.RoleInstructor && sess.InstructorID != ident.ID {
		return nil, fmt.Errorf("%w: session belongs to another instructor", apperr.ErrForbidden)
	}
	return s.repo.ListBySession(ctx, sessionID)
}

// ListAll returns every record in the ledger. Admin only.
func (s *Service) ListAll(ctx context.Context, ident auth.Identity) ([]Record, error) {
	if ident.Role != auth.RoleAdmin {
		return nil, fmt.Errorf("%w: only admins can view all attendance", apperr.ErrForbidden)
	}
	return s.repo.ListAll(ctx)
}

// Delete removes a record. Admin only; a missing id is ErrNotFound.
func (s *Service) Delete(ctx context.Context, ident auth.Identity, recordID string) error {
	if ident.Role != auth.RoleAdmin {
		return fmt.Errorf("%w: only admins can delete attendance records", apperr.ErrForbidden)
	}
	if err := s.repo.Delete(ctx, recordID); err != nil {
		return err
	}
	s.log.Info("attendance record deleted",
		zap.String("record_id", recordID), zap.String("admin_id", ident.ID))
	return nil
}
