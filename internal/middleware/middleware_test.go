package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benvon/voice-planner/internal/request"
	"github.com/google/uuid"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"
)

type mockUserEnsurer struct {
	ensureFunc func(ctx context.Context, id uuid.UUID) error
	calls      atomic.Int32
}

func (m *mockUserEnsurer) EnsureExists(ctx context.Context, id uuid.UUID) error {
	m.calls.Add(1)
	if m.ensureFunc != nil {
		return m.ensureFunc(ctx, id)
	}
	return nil
}

var _ UserEnsurer = (*mockUserEnsurer)(nil)

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func TestIdentity(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	tests := []struct {
		name       string
		header     string
		ensureErr  error
		wantStatus int
	}{
		{name: "valid user", header: userID.String(), wantStatus: http.StatusOK},
		{name: "missing header", wantStatus: http.StatusUnauthorized},
		{name: "malformed header", header: "not-a-uuid", wantStatus: http.StatusUnauthorized},
		{name: "store failure", header: userID.String(), ensureErr: errors.New("db down"), wantStatus: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			users := &mockUserEnsurer{ensureFunc: func(ctx context.Context, id uuid.UUID) error { return tt.ensureErr }}
			var seen uuid.UUID
			handler := Identity(users, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen, _ = request.UserID(r)
				okHandler(w, r)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/preferences", nil)
			if tt.header != "" {
				req.Header.Set(request.UserIDHeader, tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK && seen != userID {
				t.Errorf("context user = %v, want %v", seen, userID)
			}
			if tt.wantStatus != http.StatusOK {
				var body ErrorResponse
				if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
					t.Fatalf("decode: %v", err)
				}
				if body.Success {
					t.Error("success should be false")
				}
			}
		})
	}
}

func TestIdentity_CachesKnownUsers(t *testing.T) {
	t.Parallel()

	users := &mockUserEnsurer{}
	handler := Identity(users, zap.NewNop())(http.HandlerFunc(okHandler))
	id := uuid.New().String()

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(request.UserIDHeader, id)
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
	if n := users.calls.Load(); n != 1 {
		t.Errorf("EnsureExists called %d times, want 1", n)
	}
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	mw, err := RateLimit(memory.NewStore(), "2-M")
	if err != nil {
		t.Fatalf("RateLimit() error = %v", err)
	}
	handler := mw(http.HandlerFunc(okHandler))

	send := func(user string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(request.UserIDHeader, user)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	alice, bob := uuid.New().String(), uuid.New().String()
	for i := 0; i < 2; i++ {
		if code := send(alice); code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, code)
		}
	}
	if code := send(alice); code != http.StatusTooManyRequests {
		t.Errorf("third request status = %d, want 429", code)
	}
	if code := send(bob); code != http.StatusOK {
		t.Errorf("other user status = %d, want 200", code)
	}
}

func TestRateLimit_InvalidRate(t *testing.T) {
	t.Parallel()

	if _, err := RateLimit(memory.NewStore(), "lots"); err == nil {
		t.Error("expected error for malformed rate")
	}
}

func TestAllowedOrigins(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want []string
	}{
		{"", []string{defaultOrigin}},
		{"https://a.example, https://b.example ,https://a.example", []string{"https://a.example", "https://b.example"}},
		{" , ", []string{defaultOrigin}},
	}
	for _, tt := range tests {
		got := AllowedOrigins(tt.in)
		if strings.Join(got, "|") != strings.Join(tt.want, "|") {
			t.Errorf("AllowedOrigins(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestCORS_Preflight(t *testing.T) {
	t.Parallel()

	handler := CORS("https://app.example")(http.HandlerFunc(okHandler))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/plannings/generate", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", request.UserIDHeader)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example" {
		t.Errorf("Allow-Origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("disallowed origin got Allow-Origin %q", got)
	}
}

func TestRecover(t *testing.T) {
	t.Parallel()

	handler := Recover(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("test panic")
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/boom", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	var body ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Path != "/boom" || body.Success || strings.Contains(body.Message, "test panic") {
		t.Errorf("unexpected body %+v", body)
	}
}

func TestLogging_CapturesStatus(t *testing.T) {
	t.Parallel()

	handler := Logging(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/routines", nil))
	if rr.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", rr.Code)
	}
}

func TestGuards(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		mw         func(http.Handler) http.Handler
		req        func() *http.Request
		wantStatus int
	}{
		{
			name: "json accepted",
			mw:   ContentType,
			req: func() *http.Request {
				r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
				r.Header.Set("Content-Type", "application/json; charset=utf-8")
				return r
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "form rejected",
			mw:   ContentType,
			req: func() *http.Request {
				r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`a=b`))
				r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
				return r
			},
			wantStatus: http.StatusUnsupportedMediaType,
		},
		{
			name:       "empty post allowed",
			mw:         ContentType,
			req:        func() *http.Request { return httptest.NewRequest(http.MethodPost, "/", nil) },
			wantStatus: http.StatusOK,
		},
		{
			name:       "oversized body",
			mw:         MaxRequestSize(4),
			req:        func() *http.Request { return httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123456789")) },
			wantStatus: http.StatusRequestEntityTooLarge,
		},
		{
			name: "timeout",
			mw:   Timeout(10 * time.Millisecond),
			req:  func() *http.Request { return httptest.NewRequest(http.MethodGet, "/slow", nil) },
			// handler below blocks until the context is done
			wantStatus: http.StatusServiceUnavailable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			handler := tt.mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/slow" {
					<-r.Context().Done()
					return
				}
				okHandler(w, r)
			}))
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, tt.req())
			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	t.Parallel()

	rr := httptest.NewRecorder()
	SecurityHeaders(true)(http.HandlerFunc(okHandler)).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing nosniff")
	}
	if rr.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS must not be sent over plain HTTP")
	}
}
