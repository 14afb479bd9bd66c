package gcalendar

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

type rewriteTransport struct {
	transport http.RoundTripper
	host      string
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = "http"
	req.URL.Host = t.host
	return t.transport.RoundTrip(req)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	httpClient := &http.Client{Transport: &rewriteTransport{
		transport: http.DefaultTransport,
		host:      server.Listener.Addr().String(),
	}}
	client, err := NewClientFromHTTP(context.Background(), httpClient, option.WithEndpoint(server.URL+"/calendar/v3/"))
	if err != nil {
		t.Fatalf("NewClientFromHTTP() error = %v", err)
	}
	return client
}

func TestClient_CreateEvent(t *testing.T) {
	t.Parallel()

	var gotPath string
	var gotBody map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"evt-123","summary":"Write report"}`))
	})

	start := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)
	id, err := client.CreateEvent(context.Background(), EventRequest{
		Summary: "Write report",
		Start:   start,
		End:     start.Add(45 * time.Minute),
		TaskID:  "task-1",
	})
	if err != nil {
		t.Fatalf("CreateEvent() error = %v", err)
	}
	if id != "evt-123" {
		t.Errorf("id = %q, want evt-123", id)
	}
	if gotPath != "/calendar/v3/calendars/primary/events" {
		t.Errorf("path = %q", gotPath)
	}
	startField, _ := gotBody["start"].(map[string]any)
	if startField["dateTime"] != "2026-03-02T14:00:00Z" {
		t.Errorf("start.dateTime = %v", startField["dateTime"])
	}
}

func TestClient_CreateEvent_APIError(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"slow down"}}`))
	})

	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	_, err := client.CreateEvent(context.Background(), EventRequest{Summary: "x", Start: start, End: start.Add(time.Hour)})
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsRateLimitError(err) {
		t.Errorf("IsRateLimitError(%v) = false, want true", err)
	}
}

func TestClient_DeleteEvent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{"deleted", http.StatusNoContent, false},
		{"already gone", http.StatusNotFound, false},
		{"gone", http.StatusGone, false},
		{"forbidden", http.StatusForbidden, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var gotMethod, gotPath string
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				gotMethod, gotPath = r.Method, r.URL.Path
				if tt.status == http.StatusNoContent {
					w.WriteHeader(tt.status)
					return
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"code":` + strconv.Itoa(tt.status) + `,"message":"nope"}}`))
			})

			err := client.DeleteEvent(context.Background(), "", "evt-9")
			if (err != nil) != tt.wantErr {
				t.Fatalf("DeleteEvent() error = %v, wantErr %v", err, tt.wantErr)
			}
			if gotMethod != http.MethodDelete || gotPath != "/calendar/v3/calendars/primary/events/evt-9" {
				t.Errorf("request = %s %s", gotMethod, gotPath)
			}
		})
	}
}

func TestNewClientFromCredentials_Invalid(t *testing.T) {
	t.Parallel()

	if _, err := NewClientFromCredentialsJSON(context.Background(), []byte(`{"broken":true}`)); err == nil {
		t.Error("expected error for broken credentials")
	}

	path := filepath.Join(t.TempDir(), "creds.json")
	if err := os.WriteFile(path, []byte(`not json`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewClientFromCredentialsFile(context.Background(), path); err == nil {
		t.Error("expected error for malformed credentials file")
	}
	if _, err := NewClientFromCredentialsFile(context.Background(), filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing credentials file")
	}
}

func TestIsRateLimitError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		limited   bool
		permanent bool
	}{
		{name: "nil", err: nil},
		{name: "plain", err: errors.New("boom")},
		{name: "429", err: &googleapi.Error{Code: 429}, limited: true},
		{name: "403 quota", err: &googleapi.Error{Code: 403, Errors: []googleapi.ErrorItem{{Reason: "rateLimitExceeded"}}}, limited: true},
		{name: "403 forbidden", err: &googleapi.Error{Code: 403}, permanent: true},
		{name: "404", err: &googleapi.Error{Code: 404}, permanent: true},
		{name: "500", err: &googleapi.Error{Code: 500}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := IsRateLimitError(tt.err); got != tt.limited {
				t.Errorf("IsRateLimitError() = %v, want %v", got, tt.limited)
			}
			if got := IsPermanentError(tt.err); got != tt.permanent {
				t.Errorf("IsPermanentError() = %v, want %v", got, tt.permanent)
			}
		})
	}
}

func TestRetryDelay(t *testing.T) {
	t.Parallel()

	if got := RetryDelay(0); got != 30*time.Second {
		t.Errorf("RetryDelay(0) = %v", got)
	}
	if got := RetryDelay(2); got != 2*time.Minute {
		t.Errorf("RetryDelay(2) = %v", got)
	}
	if got := RetryDelay(20); got != 30*time.Minute {
		t.Errorf("RetryDelay(20) = %v", got)
	}
}
