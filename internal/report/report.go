// Package report exposes read-only projections of sessions and attendance
// for dashboard consumption. It holds no invariants of its own; authorization
// mirrors the registry and the ledger.
package report

import (
	"context"
	"fmt"

	"qrclass/internal/apperr"
	"qrclass/internal/auth"
	"qrclass/internal/ledger"
	"qrclass/internal/session"
	"qrclass/internal/store"
)

// SessionSummary pairs a session with its recorded attendance count.
type SessionSummary struct {
	Session    session.Session `json:"session"`
	Attendance int             `json:"attendance"`
}

// Service combines the registry and ledger stores into projections.
type Service struct {
	sessions session.Repository
	records  ledger.Repository
	cache    *store.Redis
}

// NewService creates the reporting service. cache may be nil; live counters
// are then unavailable.
func NewService(sessions session.Repository, records ledger.Repository, cache *store.Redis) *Service {
	return &Service{sessions: sessions, records: records, cache: cache}
}

// Overview returns summaries for every session the caller may see: all for
// admins, owned for instructors. Students are forbidden.
func (s *Service) Overview(ctx context.Context, ident auth.Identity) ([]SessionSummary, error) {
	var (
		sessions []session.Session
		err      error
	)
	switch ident.Role {
	case auth.RoleAdmin:
		sessions, err = s.sessions.ListAll(ctx)
	case auth.RoleInstructor:
		sessions, err = s.sessions.ListByInstructor(ctx, ident.ID)
	default:
		return nil, fmt.Errorf("%w: students cannot view reports", apperr.ErrForbidden)
	}
	if err != nil {
		return nil, err
	}

	res := make([]SessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		n, err := s.records.CountBySession(ctx, sess.SessionID)
		if err != nil {
			return nil, err
		}
		res = append(res, SessionSummary{Session: sess, Attendance: n})
	}
	return res, nil
}

// LiveCount reads the worker-maintained live scan counter for a session. The
// counter trails the ledger slightly; it is a display value, not a record of
// truth.
func (s *Service) LiveCount(ctx context.Context, ident auth.Identity, sessionID string) (int64, error) {
	if ident.Role == auth.RoleStudent {
		return 0, fmt.Errorf("%w: students cannot view live counts", apperr.ErrForbidden)
	}
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	if ident.Role == auth.RoleInstructor && sess.InstructorID != ident.ID {
		return 0, fmt.Errorf("%w: session belongs to another instructor", apperr.ErrForbidden)
	}
	if s.cache == nil {
		return 0, fmt.Errorf("%w: live counters not configured", apperr.ErrUnavailable)
	}
	return s.cache.LiveCount(ctx, sessionID)
}
