package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/benvon/voice-planner/internal/models"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"
)

const transcript = "Tomorrow I need to call the bank at 14:00, then write the quarterly report. I go to the gym every Monday and Thursday."

func TestParseExtraction(t *testing.T) {
	t.Parallel()

	content := `Here you go:
` + "```json" + `
{
  "tasks": [
    {"title": "Call the bank", "priority": "HIGH", "duration": 15, "suggestedTime": "14:00", "category": "Call"},
    {"title": "Write the quarterly report", "priority": "medium", "duration": "90", "deadline": "2026-03-03", "suggestedTime": "2pm", "energyLevel": "EXTREME"},
    {"title": "Buy a yacht", "priority": "LOW", "duration": 30},
    {"title": "No priority", "duration": 30},
    {"title": "Too long", "priority": "LOW", "duration": 5000},
    "garbage"
  ],
  "routines": [
    {"title": "Gym", "frequency": "WEEKLY", "daysOfWeek": ["monday", "THURSDAY"], "time": "18:30", "duration": 60, "priority": "MEDIUM"},
    {"title": "Gym", "frequency": "CUSTOM"},
    {"title": "Gym", "frequency": "HOURLY"}
  ]
}
` + "```"

	got, err := ParseExtraction(content, transcript, time.UTC)
	if err != nil {
		t.Fatalf("ParseExtraction() error = %v", err)
	}

	if len(got.Tasks) != 2 {
		t.Fatalf("tasks = %+v, want 2", got.Tasks)
	}
	call := got.Tasks[0]
	if call.SuggestedTime != "14:00" || call.Category != "call" || call.EnergyLevel != models.EnergyMedium {
		t.Errorf("call task = %+v", call)
	}
	report := got.Tasks[1]
	if report.Duration != 90 || report.Priority != models.PriorityMedium || report.SuggestedTime != "" {
		t.Errorf("report task = %+v", report)
	}
	if report.Deadline == nil || report.Deadline.Format("2006-01-02 15:04") != "2026-03-03 23:59" {
		t.Errorf("report deadline = %v", report.Deadline)
	}

	if len(got.Routines) != 1 {
		t.Fatalf("routines = %+v, want 1", got.Routines)
	}
	gym := got.Routines[0]
	if gym.Frequency != models.FrequencyWeekly || len(gym.DaysOfWeek) != 2 || gym.DaysOfWeek[0] != models.Monday {
		t.Errorf("gym routine = %+v", gym)
	}

	joined := strings.Join(got.Issues, "\n")
	for _, want := range []string{"Buy a yacht", "No priority", "Too long", "malformed", "suggestedTime", "daysOfWeek", "valid frequency"} {
		if !strings.Contains(joined, want) {
			t.Errorf("issues missing %q:\n%s", want, joined)
		}
	}
}

func TestParseExtraction_Invalid(t *testing.T) {
	t.Parallel()

	for _, content := range []string{"", "no json here", `{"foo": 1}`, `{"tasks": [`} {
		if _, err := ParseExtraction(content, transcript, nil); !errors.Is(err, ErrInvalidResponse) {
			t.Errorf("ParseExtraction(%q) error = %v, want ErrInvalidResponse", content, err)
		}
	}
}

func TestMentioned(t *testing.T) {
	t.Parallel()

	tests := []struct {
		title string
		want  bool
	}{
		{"call the bank", true},
		{"Calling bank", true},
		{"quarterly report", true},
		{"Buy a yacht", false},
		{"xy", false},
	}
	for _, tt := range tests {
		if got := mentioned(tt.title, transcript); got != tt.want {
			t.Errorf("mentioned(%q) = %v, want %v", tt.title, got, tt.want)
		}
	}
}

func newTestExtractor(t *testing.T, handler http.HandlerFunc) *OpenAIExtractor {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewOpenAIExtractor("sk-test-key", server.URL, "", zap.NewNop(), true, option.WithMaxRetries(0))
}

func TestOpenAIExtractor_Extract(t *testing.T) {
	t.Parallel()

	var gotBody map[string]any
	e := newTestExtractor(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("path = %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		answer := `{"tasks":[{"title":"Call the bank","priority":"HIGH","duration":15}],"routines":[]}`
		resp := map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1700000000,
			"model":   DefaultOpenAIModel,
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": answer},
			}},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})

	got, err := e.Extract(context.Background(), transcript, time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC), time.UTC)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(got.Tasks) != 1 || got.Tasks[0].Title != "Call the bank" {
		t.Errorf("tasks = %+v", got.Tasks)
	}
	format, _ := gotBody["response_format"].(map[string]any)
	if format["type"] != "json_object" {
		t.Errorf("response_format = %v", gotBody["response_format"])
	}
	if gotBody["model"] != DefaultOpenAIModel {
		t.Errorf("model = %v", gotBody["model"])
	}
}

func TestOpenAIExtractor_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		code      string
		rateLimit bool
		quota     bool
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, code: "rate_limit_exceeded", rateLimit: true},
		{name: "quota", status: http.StatusTooManyRequests, code: "insufficient_quota", quota: true},
		{name: "server error", status: http.StatusInternalServerError, code: "server_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := newTestExtractor(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"requests","code":"` + tt.code + `"}}`))
			})
			_, err := e.Extract(context.Background(), transcript, time.Now(), nil)
			if err == nil {
				t.Fatal("expected error")
			}
			if IsRateLimitError(err) != tt.rateLimit {
				t.Errorf("IsRateLimitError = %v, want %v (%v)", IsRateLimitError(err), tt.rateLimit, err)
			}
			if IsQuotaError(err) != tt.quota {
				t.Errorf("IsQuotaError = %v, want %v (%v)", IsQuotaError(err), tt.quota, err)
			}
		})
	}
}

func TestExtract_EmptyTranscript(t *testing.T) {
	t.Parallel()

	e := NewOpenAIExtractor("sk", "http://127.0.0.1:1", "", nil, false)
	got, err := e.Extract(context.Background(), "   ", time.Now(), nil)
	if err != nil || len(got.Tasks) != 0 {
		t.Errorf("Extract(empty) = %+v, %v", got, err)
	}
}

func TestSanitizeAPIKey(t *testing.T) {
	t.Parallel()

	if got := SanitizeAPIKey("sk-1234567890abcd"); got != "sk-1"+RedactedValue+"abcd" {
		t.Errorf("SanitizeAPIKey() = %q", got)
	}
	if got := SanitizeAPIKey("short"); got != RedactedValue {
		t.Errorf("SanitizeAPIKey(short) = %q", got)
	}
}
