package clock

import (
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    int
		wantErr bool
	}{
		{name: "midnight", input: "00:00", want: 0},
		{name: "morning", input: "09:30", want: 570},
		{name: "last minute", input: "23:59", want: 1439},
		{name: "not zero padded", input: "9:30", wantErr: true},
		{name: "hour out of range", input: "24:00", wantErr: true},
		{name: "minute out of range", input: "12:60", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "seconds", input: "12:00:00", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Parse(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("Parse(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		minute int
		want   string
	}{
		{0, "00:00"},
		{570, "09:30"},
		{1439, "23:59"},
		{1440, "00:00"},
		{-15, "23:45"},
	}
	for _, tt := range tests {
		if got := Format(tt.minute); got != tt.want {
			t.Errorf("Format(%d) = %q, want %q", tt.minute, got, tt.want)
		}
	}
}

func TestOn(t *testing.T) {
	t.Parallel()

	loc, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		t.Skipf("timezone data unavailable: %v", err)
	}
	date := time.Date(2024, time.March, 20, 0, 0, 0, 0, loc)
	got := On(date, MustParse("14:00"))
	want := time.Date(2024, time.March, 20, 14, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("On() = %v, want %v", got, want)
	}
	if MinuteOf(got) != 840 {
		t.Errorf("MinuteOf() = %d, want 840", MinuteOf(got))
	}
}

func TestMidnight(t *testing.T) {
	t.Parallel()

	instant := time.Date(2024, time.March, 20, 23, 30, 0, 0, time.UTC)
	loc := time.FixedZone("UTC+2", 2*60*60)
	got := Midnight(instant, loc)
	want := time.Date(2024, time.March, 21, 0, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("Midnight() = %v, want %v", got, want)
	}
}

func TestParseDeadline(t *testing.T) {
	t.Parallel()

	paris, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	tests := []struct {
		in   string
		ok   bool
		want string
	}{
		{"2026-03-03T10:00:00Z", true, "2026-03-03T10:00:00Z"},
		{"2026-03-03T10:00:00", true, "2026-03-03T10:00:00+01:00"},
		{"2026-03-03", true, "2026-03-03T23:59:00+01:00"},
		{" 2026-03-29 ", true, "2026-03-29T23:59:00+02:00"},
		{"next tuesday", false, ""},
		{"", false, ""},
	}
	for _, tt := range tests {
		got, ok := ParseDeadline(tt.in, paris)
		if ok != tt.ok {
			t.Errorf("ParseDeadline(%q) ok = %v", tt.in, ok)
			continue
		}
		if ok && got.Format(time.RFC3339) != tt.want {
			t.Errorf("ParseDeadline(%q) = %s, want %s", tt.in, got.Format(time.RFC3339), tt.want)
		}
	}
}
