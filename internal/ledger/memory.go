package ledger

import (
	"context"
	"fmt"
	"sync"

	"qrclass/internal/apperr"
)

type pairKey struct {
	sessionID string
	studentID string
}

// MemoryRepository is a mutex-guarded in-memory store for dev and tests. The
// pair map under the lock gives the same at-most-one guarantee the unique
// constraint provides in Postgres.
type MemoryRepository struct {
	mu      sync.RWMutex
	byID    map[string]Record
	byPair  map[pairKey]string
	ordered []string
}

// NewMemoryRepository creates an empty in-memory repo.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:   make(map[string]Record),
		byPair: make(map[pairKey]string),
	}
}

func (r *MemoryRepository) Insert(ctx context.Context, rec Record) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := pairKey{rec.SessionID, rec.StudentID}
	if _, exists := r.byPair[key]; exists {
		return Record{}, fmt.Errorf("attendance for (%s,%s): %w",
			rec.SessionID, rec.StudentID, apperr.ErrDuplicate)
	}
	r.byPair[key] = rec.ID
	r.byID[rec.ID] = rec
	r.ordered = append(r.ordered, rec.ID)
	return rec, nil
}

func (r *MemoryRepository) Get(ctx context.Context, recordID string) (Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.byID[recordID]
	if !ok {
		return Record{}, apperr.ErrNotFound
	}
	return rec, nil
}

func (r *MemoryRepository) ListBySession(ctx context.Context, sessionID string) ([]Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var res []Record
	for _, id := range r.ordered {
		if rec, ok := r.byID[id]; ok && rec.SessionID == sessionID {
			res = append(res, rec)
		}
	}
	return res, nil
}

func (r *MemoryRepository) ListAll(ctx context.Context) ([]Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]Record, 0, len(r.ordered))
	for _, id := range r.ordered {
		if rec, ok := r.byID[id]; ok {
			res = append(res, rec)
		}
	}
	return res, nil
}

func (r *MemoryRepository) CountBySession(ctx context.Context, sessionID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, rec := range r.byID {
		if rec.SessionID == sessionID {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) Delete(ctx context.Context, recordID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byID[recordID]
	if !ok {
		return apperr.ErrNotFound
	}
	delete(r.byID, recordID)
	delete(r.byPair, pairKey{rec.SessionID, rec.StudentID})
	for i, id := range r.ordered {
		if id == recordID {
			r.ordered = append(r.ordered[:i], r.ordered[i+1:]...)
			break
		}
	}
	return nil
}
