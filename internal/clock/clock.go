// Package clock converts between wall-clock strings (HH:mm) and minutes of a day.
package clock

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// MinutesPerDay is the number of minutes in a calendar day.
const MinutesPerDay = 24 * 60

// DateLayout is the layout used for planning dates.
const DateLayout = "2006-01-02"

var hhmm = regexp.MustCompile(`^([0-1][0-9]|2[0-3]):[0-5][0-9]$`)

// Valid reports whether s is a zero-padded 24h HH:mm time.
func Valid(s string) bool {
	return hhmm.MatchString(s)
}

// Parse returns the minute of day for an HH:mm string.
func Parse(s string) (int, error) {
	if !hhmm.MatchString(s) {
		return 0, fmt.Errorf("invalid time %q, expected HH:mm", s)
	}
	h, _ := strconv.Atoi(s[:2])
	m, _ := strconv.Atoi(s[3:])
	return h*60 + m, nil
}

// MustParse is Parse for constants. It panics on malformed input.
func MustParse(s string) int {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

// Format renders a minute of day as HH:mm. Values outside a day wrap.
func Format(minute int) string {
	minute = ((minute % MinutesPerDay) + MinutesPerDay) % MinutesPerDay
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

// Midnight returns the start of the calendar day of t in loc.
func Midnight(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = t.Location()
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// On returns the instant at the given minute of the calendar day of date.
// The result is built with time.Date so DST transitions resolve the same way
// the standard library does.
func On(date time.Time, minute int) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, minute/60, minute%60, 0, 0, date.Location())
}

// MinuteOf returns the minute of day of t in its own location.
func MinuteOf(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// ParseDeadline accepts RFC 3339 instants, local date-times and bare dates.
// A bare date means 23:59 of that day in loc.
func ParseDeadline(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04:05", s, loc); err == nil {
		return t, true
	}
	if t, err := time.ParseInLocation(DateLayout, s, loc); err == nil {
		return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 0, 0, loc), true
	}
	return time.Time{}, false
}
