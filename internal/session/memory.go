package session

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"qrclass/internal/apperr"
)

// MemoryRepository is a mutex-guarded in-memory store for dev and tests.
type MemoryRepository struct {
	mu       sync.RWMutex
	sessions map[string]Session
	order    map[string]int
	seq      int
}

// NewMemoryRepository creates an empty in-memory repo.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		sessions: make(map[string]Session),
		order:    make(map[string]int),
	}
}

func (r *MemoryRepository) Insert(ctx context.Context, s Session) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[s.SessionID]; exists {
		return Session{}, fmt.Errorf("session id collision %s", s.SessionID)
	}
	r.seq++
	r.sessions[s.SessionID] = s
	r.order[s.SessionID] = r.seq
	return s, nil
}

func (r *MemoryRepository) Get(ctx context.Context, sessionID string) (Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return Session{}, apperr.ErrNotFound
	}
	return s, nil
}

func (r *MemoryRepository) Latest(ctx context.Context, instructorID string) (Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var best Session
	found := false
	for _, s := range r.sessions {
		if s.InstructorID != instructorID {
			continue
		}
		if !found || s.CreatedAt.After(best.CreatedAt) ||
			(s.CreatedAt.Equal(best.CreatedAt) && r.order[s.SessionID] > r.order[best.SessionID]) {
			best = s
			found = true
		}
	}
	if !found {
		return Session{}, apperr.ErrNotFound
	}
	return best, nil
}

func (r *MemoryRepository) ListAll(ctx context.Context) ([]Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		res = append(res, s)
	}
	r.sortNewestFirst(res)
	return res, nil
}

func (r *MemoryRepository) ListByInstructor(ctx context.Context, instructorID string) ([]Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var res []Session
	for _, s := range r.sessions {
		if s.InstructorID == instructorID {
			res = append(res, s)
		}
	}
	r.sortNewestFirst(res)
	return res, nil
}

func (r *MemoryRepository) Delete(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[sessionID]; !ok {
		return apperr.ErrNotFound
	}
	delete(r.sessions, sessionID)
	delete(r.order, sessionID)
	return nil
}

// caller must hold at least a read lock
func (r *MemoryRepository) sortNewestFirst(res []Session) {
	sort.Slice(res, func(i, j int) bool {
		if !res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].CreatedAt.After(res[j].CreatedAt)
		}
		return r.order[res[i].SessionID] > r.order[res[j].SessionID]
	})
}
