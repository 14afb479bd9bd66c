package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const dayYAML = `date: 2026-03-02
tasks:
  - title: Write quarterly report
    priority: HIGH
    duration: 90
    requiresFocus: true
  - title: Call the bank
    priority: LOW
    duration: "20"
routines:
  - title: Stretch
    frequency: DAILY
    time: "08:00"
    duration: 10
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

type planOutput struct {
	Date  string `json:"date"`
	Tasks []struct {
		Title       string `json:"title"`
		Duration    int    `json:"duration"`
		ScheduledAt string `json:"scheduledAt"`
		Deferred    bool   `json:"deferred"`
	} `json:"tasks"`
}

func TestPlanCmd_JSONOutput(t *testing.T) {
	t.Parallel()

	tasks := writeFile(t, "day.yaml", dayYAML)
	out, err := runCLI(t, "plan", "--tasks", tasks, "--no-routines", "-o", "json")
	if err != nil {
		t.Fatalf("plan error = %v", err)
	}

	var got planOutput
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if got.Date != "2026-03-02" {
		t.Errorf("date = %q, want 2026-03-02", got.Date)
	}
	if len(got.Tasks) != 2 {
		t.Fatalf("len(tasks) = %d, want 2", len(got.Tasks))
	}
	durations := map[string]int{}
	for _, task := range got.Tasks {
		durations[task.Title] = task.Duration
		if task.Deferred {
			t.Errorf("task %q deferred", task.Title)
		}
		if !strings.HasPrefix(task.ScheduledAt, "2026-03-02") {
			t.Errorf("task %q scheduled at %s", task.Title, task.ScheduledAt)
		}
	}
	if durations["Call the bank"] != 20 {
		t.Errorf("string duration decoded as %d, want 20", durations["Call the bank"])
	}
}

func TestPlanCmd_Routines(t *testing.T) {
	t.Parallel()

	tasks := writeFile(t, "day.yaml", dayYAML)
	out, err := runCLI(t, "plan", "--tasks", tasks, "-o", "json")
	if err != nil {
		t.Fatalf("plan error = %v", err)
	}
	var got planOutput
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	found := false
	for _, task := range got.Tasks {
		if task.Title == "Stretch" {
			found = true
		}
	}
	if !found {
		t.Errorf("routine missing from planning: %+v", got.Tasks)
	}
}

func TestPlanCmd_DateFlagOverridesFile(t *testing.T) {
	t.Parallel()

	tasks := writeFile(t, "day.json", `{"date":"2026-03-02","tasks":[{"title":"Review","priority":"MEDIUM","duration":30}]}`)
	out, err := runCLI(t, "plan", "--tasks", tasks, "--date", "2026-03-03", "-o", "json")
	if err != nil {
		t.Fatalf("plan error = %v", err)
	}
	var got planOutput
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if got.Date != "2026-03-03" {
		t.Errorf("date = %q, want 2026-03-03", got.Date)
	}
}

func TestPlanCmd_TableOutput(t *testing.T) {
	t.Parallel()

	tasks := writeFile(t, "day.yaml", dayYAML)
	out, err := runCLI(t, "plan", "--tasks", tasks, "--no-routines")
	if err != nil {
		t.Fatalf("plan error = %v", err)
	}
	for _, want := range []string{"Planning for 2026-03-02", "START", "Write quarterly report", "Call the bank"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPlanCmd_Errors(t *testing.T) {
	t.Parallel()

	tasks := writeFile(t, "day.yaml", dayYAML)
	badPrefs := writeFile(t, "prefs.yaml", "workHoursStart: \"18:00\"\nworkHoursEnd: \"09:00\"\n")
	badTask := writeFile(t, "bad.yaml", "tasks:\n  - title: Nothing\n    priority: SOMEDAY\n    duration: 10\n")

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"missing tasks flag", []string{"plan"}, "--tasks is required"},
		{"unknown output", []string{"plan", "--tasks", tasks, "-o", "xml"}, "--output"},
		{"missing file", []string{"plan", "--tasks", filepath.Join(t.TempDir(), "none.yaml")}, "failed to read"},
		{"invalid preferences", []string{"plan", "--tasks", tasks, "--preferences", badPrefs}, "workHoursStart must be before workHoursEnd"},
		{"invalid task", []string{"plan", "--tasks", badTask}, "task 1"},
		{"bad date", []string{"plan", "--tasks", tasks, "--date", "March 2"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := runCLI(t, tt.args...)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != "" && !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestParseUserFlag(t *testing.T) {
	t.Parallel()

	if id, err := parseUserFlag(""); err != nil || id != nil {
		t.Errorf("parseUserFlag(\"\") = %v, %v; want nil, nil", id, err)
	}
	if _, err := parseUserFlag("not-a-uuid"); err == nil {
		t.Error("expected error for malformed user ID")
	}
	id, err := parseUserFlag("6f1c2a4e-8b0d-4c3e-9a57-2f0e1d3b4c5a")
	if err != nil || id == nil || id.String() != "6f1c2a4e-8b0d-4c3e-9a57-2f0e1d3b4c5a" {
		t.Errorf("parseUserFlag() = %v, %v", id, err)
	}
}

func TestDecodeFile_EmptyYAML(t *testing.T) {
	t.Parallel()

	var file PlanFile
	if err := decodeFile(writeFile(t, "empty.yaml", ""), &file); err != nil {
		t.Errorf("decodeFile(empty) error = %v", err)
	}
	if file.Tasks != nil {
		t.Errorf("tasks = %v, want none", file.Tasks)
	}
}
