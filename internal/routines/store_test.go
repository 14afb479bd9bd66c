package routines

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/benvon/voice-planner/internal/models"
	"github.com/google/uuid"
)

// memStore is an in-memory Repository with compare-and-set semantics
type memStore struct {
	mu       sync.Mutex
	routines map[uuid.UUID]*models.Routine

	// failRenew makes CompareAndRenew fail for the given routine
	failRenew map[uuid.UUID]error
	// beforeCAS runs before every compare-and-set, outside the lock
	beforeCAS func(id uuid.UUID)
}

var _ Repository = (*memStore)(nil)

func newMemStore(rs ...*models.Routine) *memStore {
	s := &memStore{routines: make(map[uuid.UUID]*models.Routine), failRenew: make(map[uuid.UUID]error)}
	for _, r := range rs {
		cp := *r
		s.routines[r.ID] = &cp
	}
	return s
}

func (s *memStore) get(id uuid.UUID) *models.Routine {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.routines[id]
	if !ok {
		return nil
	}
	cp := *r
	return &cp
}

func (s *memStore) hook(id uuid.UUID) {
	if s.beforeCAS != nil {
		s.beforeCAS(id)
	}
}

func (s *memStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Routine, error) {
	if r := s.get(id); r != nil {
		return r, nil
	}
	return nil, ErrNotFound
}

func (s *memStore) filter(keep func(*models.Routine) bool) []*models.Routine {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Routine
	for _, r := range s.routines {
		if keep(r) {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	return out
}

func (s *memStore) ListDue(ctx context.Context, userID *uuid.UUID, now time.Time) ([]*models.Routine, error) {
	return s.filter(func(r *models.Routine) bool {
		return r.IsActive && r.ExpiresAt.Before(now) && (userID == nil || r.UserID == *userID)
	}), nil
}

func (s *memStore) ListExpiring(ctx context.Context, userID *uuid.UUID, now, until time.Time) ([]*models.Routine, error) {
	return s.filter(func(r *models.Routine) bool {
		return r.IsActive && r.RenewalAskedAt == nil &&
			!r.ExpiresAt.Before(now) && !r.ExpiresAt.After(until) &&
			(userID == nil || r.UserID == *userID)
	}), nil
}

func (s *memStore) CompareAndRenew(ctx context.Context, id uuid.UUID, expected, next time.Time) (bool, error) {
	s.hook(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failRenew[id]; err != nil {
		return false, err
	}
	r, ok := s.routines[id]
	if !ok || !r.ExpiresAt.Equal(expected) {
		return false, nil
	}
	r.ExpiresAt = next
	r.RenewalAskedAt = nil
	return true, nil
}

func (s *memStore) CompareAndDeactivate(ctx context.Context, id uuid.UUID, expected time.Time) (bool, error) {
	s.hook(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.routines[id]
	if !ok || !r.IsActive || !r.ExpiresAt.Equal(expected) {
		return false, nil
	}
	r.IsActive = false
	return true, nil
}

func (s *memStore) CompareAndMarkAsked(ctx context.Context, id uuid.UUID, expected, at time.Time) (bool, error) {
	s.hook(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.routines[id]
	if !ok || !r.ExpiresAt.Equal(expected) {
		return false, nil
	}
	r.RenewalAskedAt = &at
	return true, nil
}

func (s *memStore) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.routines[id]
	if !ok {
		return ErrNotFound
	}
	r.IsActive = active
	return nil
}

func (s *memStore) Create(ctx context.Context, r *models.Routine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.routines[r.ID] = &cp
	return nil
}

func (s *memStore) ListByUser(ctx context.Context, userID uuid.UUID, activeOnly bool) ([]*models.Routine, error) {
	return s.filter(func(r *models.Routine) bool {
		return r.UserID == userID && (!activeOnly || r.IsActive)
	}), nil
}

func (s *memStore) Update(ctx context.Context, r *models.Routine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.routines[r.ID]; !ok {
		return ErrNotFound
	}
	cp := *r
	s.routines[r.ID] = &cp
	return nil
}

func (s *memStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.routines[id]; !ok {
		return ErrNotFound
	}
	delete(s.routines, id)
	return nil
}
