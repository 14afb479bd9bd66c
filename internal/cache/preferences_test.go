package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benvon/voice-planner/internal/database"
	"github.com/benvon/voice-planner/internal/models"
	"github.com/google/uuid"
)

type mockPreferencesStore struct {
	mu        sync.Mutex
	docs      map[uuid.UUID]models.Preferences
	gets      int
	getErr    error
	upsertErr error
}

var _ database.PreferencesRepositoryInterface = (*mockPreferencesStore)(nil)

func (m *mockPreferencesStore) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Preferences, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.getErr != nil {
		return nil, m.getErr
	}
	p, ok := m.docs[userID]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &p, nil
}

func (m *mockPreferencesStore) Upsert(ctx context.Context, p *models.Preferences) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.docs[p.UserID] = *p
	return nil
}

func TestPreferencesCache_DefaultsWhenMissing(t *testing.T) {
	t.Parallel()

	store := &mockPreferencesStore{docs: map[uuid.UUID]models.Preferences{}}
	c := NewPreferencesCache(store, nil, 0, nil)
	userID := uuid.New()

	p, err := c.Get(context.Background(), userID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if p.WorkHoursStart != models.DefaultWorkHoursStart || p.TaskBufferMinutes != models.DefaultTaskBufferMinutes || !p.LunchBreakEnabled {
		t.Errorf("Expected default preferences, got %+v", p)
	}
	if p.UserID != userID {
		t.Errorf("UserID = %v, want %v", p.UserID, userID)
	}
}

func TestPreferencesCache_ServesFromMemory(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	stored := models.DefaultPreferences(userID)
	stored.WorkHoursStart = "08:00"
	store := &mockPreferencesStore{docs: map[uuid.UUID]models.Preferences{userID: stored}}
	c := NewPreferencesCache(store, nil, 0, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		p, err := c.Get(ctx, userID)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if p.WorkHoursStart != "08:00" {
			t.Errorf("WorkHoursStart = %q, want 08:00", p.WorkHoursStart)
		}
	}
	if store.gets != 1 {
		t.Errorf("Expected one store read, got %d", store.gets)
	}

	c.Invalidate(ctx, userID)
	if _, err := c.Get(ctx, userID); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if store.gets != 2 {
		t.Errorf("Expected a store read after invalidation, got %d", store.gets)
	}
}

func TestPreferencesCache_PutRefreshes(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	store := &mockPreferencesStore{docs: map[uuid.UUID]models.Preferences{}}
	c := NewPreferencesCache(store, nil, 0, nil)
	ctx := context.Background()

	if _, err := c.Get(ctx, userID); err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	p := models.DefaultPreferences(userID)
	p.TaskBufferMinutes = 0
	p.WorkDays = nil
	saved, err := c.Put(ctx, p)
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if saved.TaskBufferMinutes != 0 || len(saved.WorkDays) != 5 {
		t.Errorf("Expected zero buffer kept and default work days, got %+v", saved)
	}

	got, err := c.Get(ctx, userID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.TaskBufferMinutes != 0 {
		t.Errorf("Expected cached update, got buffer %d", got.TaskBufferMinutes)
	}
}

func TestPreferencesCache_StoreErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection refused")
	store := &mockPreferencesStore{docs: map[uuid.UUID]models.Preferences{}, getErr: boom, upsertErr: boom}
	c := NewPreferencesCache(store, nil, 0, nil)

	if _, err := c.Get(context.Background(), uuid.New()); !errors.Is(err, boom) {
		t.Errorf("Expected wrapped store error, got %v", err)
	}
	if _, err := c.Put(context.Background(), models.DefaultPreferences(uuid.New())); !errors.Is(err, boom) {
		t.Errorf("Expected store error from Put, got %v", err)
	}
}

func TestNewPreferencesCache_LocalTTL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ttl  time.Duration
		want time.Duration
	}{
		{0, MaxLocalTTL},
		{DefaultTTL, MaxLocalTTL},
		{10 * time.Second, 10 * time.Second},
	}
	for _, tt := range tests {
		c := NewPreferencesCache(&mockPreferencesStore{}, nil, tt.ttl, nil)
		if c.localTTL != tt.want {
			t.Errorf("ttl %v: localTTL = %v, want %v", tt.ttl, c.localTTL, tt.want)
		}
	}
}

func TestPreferencesCache_OtherReplicaSeesWriteAfterLocalTTL(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	store := &mockPreferencesStore{docs: map[uuid.UUID]models.Preferences{userID: models.DefaultPreferences(userID)}}
	writer := NewPreferencesCache(store, nil, 50*time.Millisecond, nil)
	reader := NewPreferencesCache(store, nil, 50*time.Millisecond, nil)
	ctx := context.Background()

	if _, err := reader.Get(ctx, userID); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	updated := models.DefaultPreferences(userID)
	updated.WorkHoursStart = "07:00"
	if _, err := writer.Put(ctx, updated); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	time.Sleep(150 * time.Millisecond)
	p, err := reader.Get(ctx, userID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if p.WorkHoursStart != "07:00" {
		t.Errorf("WorkHoursStart = %q, want the other replica's write", p.WorkHoursStart)
	}
}
