package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/benvon/voice-planner/internal/models"
	"github.com/benvon/voice-planner/internal/services/ai"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type mockExtractor struct {
	ExtractFunc func(ctx context.Context, transcript string, now time.Time, loc *time.Location) (*ai.Extraction, error)
}

func (m *mockExtractor) Extract(ctx context.Context, transcript string, now time.Time, loc *time.Location) (*ai.Extraction, error) {
	return m.ExtractFunc(ctx, transcript, now, loc)
}

var _ ai.Extractor = (*mockExtractor)(nil)

func extractRoutes(h *ExtractHandler) func(*mux.Router) {
	return func(r *mux.Router) {
		h.RegisterRoutes(r.PathPrefix("/extract").Subrouter())
	}
}

func TestExtractHandler_ErrorMapping(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	tests := []struct {
		name           string
		err            error
		wantStatus     int
		wantRetryAfter string
	}{
		{"success", nil, http.StatusOK, ""},
		{"rate limited", &ai.APIError{StatusCode: http.StatusTooManyRequests, RetryAfter: 90 * time.Second}, http.StatusTooManyRequests, "90"},
		{"quota", &ai.APIError{StatusCode: http.StatusTooManyRequests, Code: "insufficient_quota"}, http.StatusServiceUnavailable, ""},
		{"invalid response", fmt.Errorf("%w: not JSON", ai.ErrInvalidResponse), http.StatusBadGateway, ""},
		{"provider failure", errors.New("dial tcp: timeout"), http.StatusBadGateway, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			extractor := &mockExtractor{
				ExtractFunc: func(ctx context.Context, transcript string, now time.Time, loc *time.Location) (*ai.Extraction, error) {
					if tt.err != nil {
						return nil, tt.err
					}
					return &ai.Extraction{Tasks: []models.TaskInput{{Title: "Call the bank"}}}, nil
				},
			}
			h := NewExtractHandler(extractor, nil, nil)
			w := serve(extractRoutes(h), newTestRequest(http.MethodPost, "/extract", `{"text":"I need to call the bank"}`, &userID))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if got := w.Header().Get("Retry-After"); got != tt.wantRetryAfter {
				t.Errorf("Retry-After = %q, want %q", got, tt.wantRetryAfter)
			}
		})
	}
}

func TestExtractHandler_Timezone(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	var gotLoc *time.Location
	extractor := &mockExtractor{
		ExtractFunc: func(ctx context.Context, transcript string, now time.Time, loc *time.Location) (*ai.Extraction, error) {
			gotLoc = loc
			return &ai.Extraction{}, nil
		},
	}
	prefs := &mockPreferencesStore{
		GetFunc: func(ctx context.Context, id uuid.UUID) (models.Preferences, error) {
			p := models.DefaultPreferences(id)
			p.Timezone = "America/New_York"
			return p, nil
		},
	}
	h := NewExtractHandler(extractor, prefs, nil)

	w := serve(extractRoutes(h), newTestRequest(http.MethodPost, "/extract", `{"text":"gym tomorrow"}`, &userID))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if gotLoc == nil || gotLoc.String() != "America/New_York" {
		t.Errorf("location = %v, want preference timezone", gotLoc)
	}

	w = serve(extractRoutes(h), newTestRequest(http.MethodPost, "/extract", `{"text":"gym tomorrow","timezone":"Asia/Tokyo"}`, &userID))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if gotLoc.String() != "Asia/Tokyo" {
		t.Errorf("location = %v, want request override", gotLoc)
	}
}

func TestExtractHandler_Validation(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	extractor := &mockExtractor{
		ExtractFunc: func(ctx context.Context, transcript string, now time.Time, loc *time.Location) (*ai.Extraction, error) {
			t.Error("extractor must not be called for invalid requests")
			return nil, nil
		},
	}
	h := NewExtractHandler(extractor, nil, nil)

	for _, body := range []string{`{"text":"   "}`, `{"text":"hi","timezone":"Nowhere/City"}`} {
		w := serve(extractRoutes(h), newTestRequest(http.MethodPost, "/extract", body, &userID))
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %s status = %d, want 400", body, w.Code)
		}
	}
}

func TestExtractHandler_NotConfigured(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	h := NewExtractHandler(nil, nil, nil)
	w := serve(extractRoutes(h), newTestRequest(http.MethodPost, "/extract", `{"text":"hi"}`, &userID))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}
