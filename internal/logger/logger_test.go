package logger

import (
	"errors"
	"strings"
	"testing"
)

func TestSanitizeString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		max   int
		want  string
	}{
		{"empty", "", 10, ""},
		{"plain", "weekly review", 0, "weekly review"},
		{"control characters removed", "gym\x00\x1b[31m", 0, "gym[31m"},
		{"newlines removed", "line1\nline2\r", 0, "line1line2"},
		{"invalid utf8 dropped", "caf\xc3", 0, "caf"},
		{"truncated", "abcdefghij", 4, "abcd..."},
		{"truncation keeps runes whole", "ééé", 3, "é..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := SanitizeString(tt.input, tt.max); got != tt.want {
				t.Errorf("SanitizeString(%q, %d) = %q, want %q", tt.input, tt.max, got, tt.want)
			}
		})
	}
}

func TestSanitizeTitle(t *testing.T) {
	t.Parallel()

	if got := SanitizeTitle("  Call\n  the   bank "); got != "Call the bank" {
		t.Errorf("SanitizeTitle() = %q", got)
	}
	long := strings.Repeat("x", MaxTitleLength+50)
	if got := SanitizeTitle(long); len(got) != MaxTitleLength+len("...") {
		t.Errorf("SanitizeTitle() length = %d", len(got))
	}
}

func TestSanitizePathAndError(t *testing.T) {
	t.Parallel()

	if got := SanitizePath("/api/v1/routines/\x07abc"); got != "/api/v1/routines/abc" {
		t.Errorf("SanitizePath() = %q", got)
	}
	if got := SanitizeError(nil); got != "" {
		t.Errorf("SanitizeError(nil) = %q", got)
	}
	if got := SanitizeError(errors.New("bad\ninput")); got != "badinput" {
		t.Errorf("SanitizeError() = %q", got)
	}
}

func TestSanitizeDebugContent(t *testing.T) {
	t.Parallel()

	if got := SanitizeDebugContent("line one\nline\x00 two"); got != "line one\nline two" {
		t.Errorf("SanitizeDebugContent() = %q", got)
	}
	long := strings.Repeat("a", MaxDebugContentLength+10)
	if got := SanitizeDebugContent(long); len(got) != MaxDebugContentLength+len("...") {
		t.Errorf("len(SanitizeDebugContent()) = %d", len(got))
	}
}

func TestConstructors(t *testing.T) {
	t.Parallel()

	if _, err := NewProductionLogger("planner-api", true); err != nil {
		t.Errorf("NewProductionLogger() error = %v", err)
	}
	if _, err := NewDevelopmentLogger(false); err != nil {
		t.Errorf("NewDevelopmentLogger() error = %v", err)
	}
	for _, format := range []string{FormatJSON, FormatConsole} {
		if _, err := New("planner-worker", format, false); err != nil {
			t.Errorf("New(%q) error = %v", format, err)
		}
	}
	if _, err := NewCLILogger(true); err != nil {
		t.Errorf("NewCLILogger() error = %v", err)
	}
	if err := Sync(nil); err != nil {
		t.Errorf("Sync(nil) = %v", err)
	}
}
