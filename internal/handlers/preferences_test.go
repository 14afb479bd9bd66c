package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/benvon/voice-planner/internal/models"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type mockPreferencesStore struct {
	GetFunc func(ctx context.Context, userID uuid.UUID) (models.Preferences, error)
	PutFunc func(ctx context.Context, p models.Preferences) (models.Preferences, error)
}

func (m *mockPreferencesStore) Get(ctx context.Context, userID uuid.UUID) (models.Preferences, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, userID)
	}
	return models.DefaultPreferences(userID), nil
}

func (m *mockPreferencesStore) Put(ctx context.Context, p models.Preferences) (models.Preferences, error) {
	if m.PutFunc != nil {
		return m.PutFunc(ctx, p)
	}
	return p.Normalize(), nil
}

var _ PreferencesStore = (*mockPreferencesStore)(nil)

func preferenceRoutes(h *PreferencesHandler) func(*mux.Router) {
	return func(r *mux.Router) {
		h.RegisterRoutes(r.PathPrefix("/preferences").Subrouter())
	}
}

func TestPreferencesHandler_Get(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	h := NewPreferencesHandler(&mockPreferencesStore{})

	w := serve(preferenceRoutes(h), newTestRequest(http.MethodGet, "/preferences", nil, &userID))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var p models.Preferences
	if err := json.Unmarshal(decodeEnvelope(t, w).Data, &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.WorkHoursStart != "09:00" || p.WorkHoursEnd != "17:00" || !p.LunchBreakEnabled || p.Timezone != "UTC" {
		t.Errorf("defaults = %+v", p)
	}
}

func TestPreferencesHandler_Put(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	tests := []struct {
		name       string
		body       string
		wantStatus int
		check      func(*testing.T, models.Preferences)
	}{
		{
			name:       "partial update keeps other fields",
			body:       `{"workHoursStart":"08:00","timezone":"Europe/Paris"}`,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, p models.Preferences) {
				if p.WorkHoursStart != "08:00" || p.WorkHoursEnd != "17:00" || p.Timezone != "Europe/Paris" {
					t.Errorf("saved = %+v", p)
				}
				if p.UserID != userID {
					t.Errorf("user = %s, want %s", p.UserID, userID)
				}
			},
		},
		{name: "bad clock", body: `{"workHoursEnd":"5pm"}`, wantStatus: http.StatusBadRequest},
		{name: "inverted work hours", body: `{"workHoursStart":"18:00"}`, wantStatus: http.StatusBadRequest},
		{name: "inverted lunch", body: `{"lunchBreakStart":"14:00"}`, wantStatus: http.StatusBadRequest},
		{name: "unknown timezone", body: `{"timezone":"Mars/Olympus"}`, wantStatus: http.StatusBadRequest},
		{name: "unknown energy", body: `{"energyMorning":"TURBO"}`, wantStatus: http.StatusBadRequest},
		{name: "bad work day", body: `{"workDays":["FUNDAY"]}`, wantStatus: http.StatusBadRequest},
		{name: "zero daily limit", body: `{"maxTasksPerDay":0}`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var saved *models.Preferences
			store := &mockPreferencesStore{
				PutFunc: func(ctx context.Context, p models.Preferences) (models.Preferences, error) {
					saved = &p
					return p, nil
				},
			}
			h := NewPreferencesHandler(store)
			w := serve(preferenceRoutes(h), newTestRequest(http.MethodPut, "/preferences", tt.body, &userID))

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				if saved != nil {
					t.Error("invalid preferences must not be saved")
				}
				return
			}
			if tt.check != nil {
				tt.check(t, *saved)
			}
		})
	}
}

func TestPreferencesHandler_StoreFailure(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	store := &mockPreferencesStore{
		GetFunc: func(ctx context.Context, id uuid.UUID) (models.Preferences, error) {
			return models.Preferences{}, errors.New("redis: connection refused")
		},
	}
	h := NewPreferencesHandler(store)

	w := serve(preferenceRoutes(h), newTestRequest(http.MethodGet, "/preferences", nil, &userID))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if env := decodeEnvelope(t, w); env.Message != "Failed to retrieve preferences" {
		t.Errorf("message = %q", env.Message)
	}
}
