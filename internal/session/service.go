package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"qrclass/internal/apperr"
	"qrclass/internal/auth"
	"qrclass/internal/metrics"
)

// Registry creates and looks up sessions and enforces instructor ownership.
type Registry struct {
	repo Repository
	log  *zap.Logger
}

// NewRegistry creates a registry backed by a repository.
func NewRegistry(repo Repository, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{repo: repo, log: log}
}

// Create opens a new session owned by the calling instructor.
func (g *Registry) Create(ctx context.Context, ident auth.Identity, name string) (Session, error) {
	if ident.Role != auth.RoleInstructor {
		return Session{}, fmt.Errorf("%w: only instructors can create sessions", apperr.ErrForbidden)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Session{}, fmt.Errorf("%w: session name is required", apperr.ErrInvalidInput)
	}

	s := Session{
		SessionID:    uuid.NewString(),
		Name:         name,
		InstructorID: ident.ID,
		CreatedAt:    time.Now().UTC(),
	}
	created, err := g.repo.Insert(ctx, s)
	if err != nil {
		return Session{}, err
	}
	metrics.SessionsCreated.Inc()
	g.log.Info("session created",
		zap.String("session_id", created.SessionID),
		zap.String("instructor_id", created.InstructorID))
	return created, nil
}

// Get returns a session visible to the caller. Admins see any session;
// instructors see only their own. Non-owned reads fail with ErrForbidden.
func (g *Registry) Get(ctx context.Context, ident auth.Identity, sessionID string) (Session, error) {
	if ident.Role == auth.RoleStudent {
		return Session{}, fmt.Errorf("%w: students cannot view sessions", apperr.ErrForbidden)
	}
	s, err := g.repo.Get(ctx, sessionID)
	if err != nil {
		return Session{}, err
	}
	if ident.Role == auth.RoleInstructor && s.InstructorID != ident.ID {
		return Session{}, fmt.Errorf("%w: session belongs to another instructor", apperr.ErrForbidden)
	}
	return s, nil
}

// Latest returns the calling instructor's most recently created session.
func (g *Registry) Latest(ctx context.Context, ident auth.Identity) (Session, error) {
	if ident.Role != auth.RoleInstructor {
		return Session{}, fmt.Errorf("%w: only instructors have a latest session", apperr.ErrForbidden)
	}
	return g.repo.Latest(ctx, ident.ID)
}

// List returns the sessions visible to the caller: all for admins, owned
// only for instructors. Students are forbidden.
func (g *Registry) List(ctx context.Context, ident auth.Identity) ([]Session, error) {
	switch ident.Role {
	case auth.RoleAdmin:
		return g.repo.ListAll(ctx)
	case auth.RoleInstructor:
		return g.repo.ListByInstructor(ctx, ident.ID)
	}
	return nil, fmt.Errorf("%w: students cannot list sessions", apperr.ErrForbidden)
}

// Delete removes a session. Admin only; attendance rows cascade in the store.
func (g *Registry) Delete(ctx context.Context, ident auth.Identity, sessionID string) error {
	if ident.Role != auth.RoleAdmin {
		return fmt.Errorf("%w: only admins can delete sessions", apperr.ErrForbidden)
	}
	if err := g.repo.Delete(ctx, sessionID); err != nil {
		return err
	}
	g.log.Info("session deleted", zap.String("session_id", sessionID), zap.String("admin_id", ident.ID))
	return nil
}
