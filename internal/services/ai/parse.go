package ai

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/benvon/voice-planner/internal/clock"
	"github.com/benvon/voice-planner/internal/models"
	"github.com/benvon/voice-planner/internal/routines"
	"github.com/benvon/voice-planner/internal/validation"
)

// mentionRatio is the share of title words that must appear in the transcript
const mentionRatio = 0.7

// Extraction is the validated outcome of one extraction call
type Extraction struct {
	Tasks    []models.TaskInput `json:"tasks"`
	Routines []routines.Input   `json:"routines"`
	Issues   []string           `json:"issues,omitempty"`
}

type rawTask struct {
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Priority      string          `json:"priority"`
	Duration      json.RawMessage `json:"duration"`
	Deadline      string          `json:"deadline"`
	SuggestedTime string          `json:"suggestedTime"`
	Category      string          `json:"category"`
	DependsOn     string          `json:"dependsOn"`
	RequiresFocus bool            `json:"requiresFocus"`
	Location      string          `json:"location"`
	EnergyLevel   string          `json:"energyLevel"`
}

type rawRoutine struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Frequency   string          `json:"frequency"`
	Time        string          `json:"time"`
	DaysOfWeek  []string        `json:"daysOfWeek"`
	Duration    json.RawMessage `json:"duration"`
	Priority    string          `json:"priority"`
}

type rawExtraction struct {
	Tasks    []json.RawMessage `json:"tasks"`
	Routines []json.RawMessage `json:"routines"`
}

// ParseExtraction decodes a model answer. Prose or code fences around the
// JSON object are tolerated. Entries the transcript does not mention are
// dropped so the model cannot invent work.
func ParseExtraction(content, transcript string, loc *time.Location) (*Extraction, error) {
	var raw rawExtraction
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		start := strings.Index(content, "{")
		end := strings.LastIndex(content, "}")
		if start == -1 || end <= start {
			return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
		if err := json.Unmarshal([]byte(content[start:end+1]), &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
	}
	if raw.Tasks == nil && raw.Routines == nil {
		return nil, fmt.Errorf("%w: missing tasks and routines", ErrInvalidResponse)
	}
	if loc == nil {
		loc = time.UTC
	}

	out := &Extraction{Tasks: []models.TaskInput{}, Routines: []routines.Input{}}
	for i, msg := range raw.Tasks {
		var rt rawTask
		if err := json.Unmarshal(msg, &rt); err != nil {
			out.Issues = append(out.Issues, fmt.Sprintf("task %d: malformed entry", i))
			continue
		}
		task, issues, err := validateTask(rt, loc)
		out.Issues = append(out.Issues, issues...)
		if err != nil {
			out.Issues = append(out.Issues, fmt.Sprintf("task %q: %v", rt.Title, err))
			continue
		}
		if !mentioned(task.Title, transcript) {
			out.Issues = append(out.Issues, fmt.Sprintf("task %q: not mentioned in the text", task.Title))
			continue
		}
		out.Tasks = append(out.Tasks, task)
	}

	for i, msg := range raw.Routines {
		var rr rawRoutine
		if err := json.Unmarshal(msg, &rr); err != nil {
			out.Issues = append(out.Issues, fmt.Sprintf("routine %d: malformed entry", i))
			continue
		}
		in, err := validateRoutine(rr)
		if err != nil {
			out.Issues = append(out.Issues, fmt.Sprintf("routine %q: %v", rr.Title, err))
			continue
		}
		if !mentioned(in.Title, transcript) {
			out.Issues = append(out.Issues, fmt.Sprintf("routine %q: not mentioned in the text", in.Title))
			continue
		}
		out.Routines = append(out.Routines, in)
	}
	return out, nil
}

// validateTask rejects entries missing a title, a known priority or a usable
// duration. Malformed optional fields are dropped and reported as issues.
func validateTask(rt rawTask, loc *time.Location) (models.TaskInput, []string, error) {
	var issues []string
	title := validation.SanitizeText(rt.Title)
	if title == "" {
		return models.TaskInput{}, nil, fmt.Errorf("title is required")
	}
	priority := models.Priority(strings.ToUpper(rt.Priority))
	if !priority.Valid() {
		return models.TaskInput{}, nil, fmt.Errorf("invalid priority %q", rt.Priority)
	}
	duration, err := parseDuration(rt.Duration)
	if err != nil {
		return models.TaskInput{}, nil, err
	}

	task := models.TaskInput{
		Title:         title,
		Description:   validation.SanitizeText(rt.Description),
		Priority:      priority,
		Duration:      duration,
		Category:      strings.ToLower(strings.TrimSpace(rt.Category)),
		DependsOn:     validation.SanitizeText(rt.DependsOn),
		RequiresFocus: rt.RequiresFocus,
		Location:      validation.SanitizeText(rt.Location),
		EnergyLevel:   models.EnergyLevel(strings.ToUpper(rt.EnergyLevel)),
	}
	if !task.EnergyLevel.Valid() {
		task.EnergyLevel = models.EnergyMedium
	}
	if rt.SuggestedTime != "" {
		if clock.Valid(rt.SuggestedTime) {
			task.SuggestedTime = rt.SuggestedTime
		} else {
			issues = append(issues, fmt.Sprintf("task %q: suggestedTime %q dropped", title, rt.SuggestedTime))
		}
	}
	if rt.Deadline != "" {
		if d, ok := clock.ParseDeadline(rt.Deadline, loc); ok {
			task.Deadline = &d
		} else {
			issues = append(issues, fmt.Sprintf("task %q: deadline %q dropped", title, rt.Deadline))
		}
	}
	return task, issues, nil
}

func validateRoutine(rr rawRoutine) (routines.Input, error) {
	in := routines.Input{
		Title:       validation.SanitizeText(rr.Title),
		Description: validation.SanitizeText(rr.Description),
		Frequency:   models.Frequency(strings.ToUpper(rr.Frequency)),
		Priority:    models.Priority(strings.ToUpper(rr.Priority)),
	}
	if clock.Valid(rr.Time) {
		in.Time = rr.Time
	}
	for _, d := range rr.DaysOfWeek {
		in.DaysOfWeek = append(in.DaysOfWeek, models.Weekday(strings.ToUpper(d)))
	}
	if len(rr.Duration) > 0 && string(rr.Duration) != "null" {
		duration, err := parseDuration(rr.Duration)
		if err != nil {
			return routines.Input{}, err
		}
		in.Duration = duration
	}
	if !in.Priority.Valid() {
		in.Priority = ""
	}
	if err := validation.Struct(in); err != nil {
		return routines.Input{}, err
	}
	if in.Frequency.RequiresDays() && len(in.DaysOfWeek) == 0 {
		return routines.Input{}, routines.ErrDaysOfWeekRequired
	}
	return in, nil
}

// parseDuration accepts a JSON number or numeric string in minutes
func parseDuration(raw json.RawMessage) (int, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, fmt.Errorf("duration is required")
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, fmt.Errorf("invalid duration %s", raw)
		}
		parsed, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		n = float64(parsed)
	}
	d := int(math.Round(n))
	if d < models.MinTaskDuration || d > models.MaxTaskDuration {
		return 0, fmt.Errorf("duration %d must be between %d and %d minutes", d, models.MinTaskDuration, models.MaxTaskDuration)
	}
	return d, nil
}

// mentioned reports whether title appears in transcript, verbatim or by
// most of its significant words
func mentioned(title, transcript string) bool {
	t := strings.ToLower(title)
	text := strings.ToLower(transcript)
	if strings.Contains(text, t) {
		return true
	}
	titleWords := words(t)
	if len(titleWords) == 0 {
		return false
	}
	textWords := map[string]bool{}
	for _, w := range words(text) {
		textWords[w] = true
	}
	hits := 0
	for _, w := range titleWords {
		if textWords[w] || prefixHit(w, textWords) {
			hits++
		}
	}
	return float64(hits)/float64(len(titleWords)) >= mentionRatio
}

// prefixHit matches inflected forms such as "call" and "calling"
func prefixHit(w string, textWords map[string]bool) bool {
	if len(w) < 4 {
		return false
	}
	stem := w[:4]
	for tw := range textWords {
		if strings.HasPrefix(tw, stem) {
			return true
		}
	}
	return false
}

func words(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) > 2 {
			out = append(out, f)
		}
	}
	return out
}
