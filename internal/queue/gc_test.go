package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type mockDLQPurger struct {
	purgeFunc func(ctx context.Context, retention time.Duration) (int, error)
}

func (m *mockDLQPurger) PurgeOlderThan(ctx context.Context, retention time.Duration) (int, error) {
	if m.purgeFunc != nil {
		return m.purgeFunc(ctx, retention)
	}
	return 0, nil
}

var _ DLQPurger = (*mockDLQPurger)(nil)

func TestGarbageCollector_Purge(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		purger    DLQPurger
		wantCount int
		wantErr   bool
	}{
		{name: "no purger", purger: nil},
		{
			name: "bounded purge with retention",
			purger: &mockDLQPurger{purgeFunc: func(ctx context.Context, retention time.Duration) (int, error) {
				if retention != 72*time.Hour {
					return 0, errors.New("unexpected retention")
				}
				if _, ok := ctx.Deadline(); !ok {
					return 0, errors.New("expected a deadline")
				}
				return 4, nil
			}},
			wantCount: 4,
		},
		{
			name: "broker failure",
			purger: &mockDLQPurger{purgeFunc: func(context.Context, time.Duration) (int, error) {
				return 0, errors.New("channel closed")
			}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			gc := NewGarbageCollector(tt.purger, time.Minute, 72*time.Hour, nil)
			n, err := gc.purge(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("purge() error = %v, wantErr %v", err, tt.wantErr)
			}
			if n != tt.wantCount {
				t.Errorf("purge() = %d, want %d", n, tt.wantCount)
			}
		})
	}
}

func TestGarbageCollector_StartPurgesUntilCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	purger := &mockDLQPurger{purgeFunc: func(context.Context, time.Duration) (int, error) {
		if calls.Add(1) == 1 {
			cancel()
		}
		return 1, nil
	}}

	gc := NewGarbageCollector(purger, 24*time.Hour, time.Hour, nil)
	if err := gc.Start(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Start() error = %v, want context.Canceled", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("purge calls = %d, want 1 immediate purge", got)
	}
}

func TestGarbageCollector_StartCancelledSkipsPurge(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	purger := &mockDLQPurger{purgeFunc: func(context.Context, time.Duration) (int, error) {
		t.Error("purge must not run after cancellation")
		return 0, nil
	}}
	if err := NewGarbageCollector(purger, time.Hour, time.Hour, nil).Start(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Start() error = %v", err)
	}
}
