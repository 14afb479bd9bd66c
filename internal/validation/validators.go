// Package validation holds the shared request validator and its domain tags.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/benvon/voice-planner/internal/clock"
	"github.com/benvon/voice-planner/internal/models"
	"github.com/go-playground/validator/v10"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	custom := map[string]validator.Func{
		"priority":     validatePriority,
		"energy_level": validateEnergyLevel,
		"frequency":    validateFrequency,
		"weekday":      validateWeekday,
		"clock":        validateClock,
		"timezone":     validateTimezone,
	}
	for tag, fn := range custom {
		if err := Validate.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("failed to register %s validator: %v", tag, err))
		}
	}
}

func validatePriority(fl validator.FieldLevel) bool {
	return models.Priority(fl.Field().String()).Valid()
}

func validateEnergyLevel(fl validator.FieldLevel) bool {
	return models.EnergyLevel(fl.Field().String()).Valid()
}

func validateFrequency(fl validator.FieldLevel) bool {
	return models.Frequency(fl.Field().String()).Valid()
}

func validateWeekday(fl validator.FieldLevel) bool {
	return models.Weekday(fl.Field().String()).Valid()
}

// validateClock accepts 24h HH:mm values
func validateClock(fl validator.FieldLevel) bool {
	return clock.Valid(fl.Field().String())
}

func validateTimezone(fl validator.FieldLevel) bool {
	return ValidateTimezone(fl.Field().String()) == nil
}

// ValidateTimezone checks that value names an IANA location
func ValidateTimezone(value string) error {
	if value == "" || value == "Local" {
		return fmt.Errorf("invalid timezone: %q", value)
	}
	if _, err := time.LoadLocation(value); err != nil {
		return fmt.Errorf("invalid timezone: %s", value)
	}
	return nil
}

// Struct validates s and flattens validator errors into one readable message
func Struct(s any) error {
	err := Validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describe(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min", "max":
		return fmt.Sprintf("%s must satisfy %s=%s", field, fe.Tag(), fe.Param())
	case "clock":
		return field + " must be HH:mm"
	default:
		return fmt.Sprintf("%s is not a valid %s", field, fe.Tag())
	}
}

// SanitizeText sanitizes text input by trimming whitespace and removing control characters
func SanitizeText(text string) string {
	text = strings.TrimSpace(text)

	// Remove control characters except newline and tab
	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}

// Preferences checks field formats, then that work hours and an enabled lunch
// break each start before they end
func Preferences(p models.Preferences) error {
	if err := Struct(p); err != nil {
		return fmt.Errorf("invalid preferences: %w", err)
	}
	start, _ := clock.Parse(p.WorkHoursStart)
	end, _ := clock.Parse(p.WorkHoursEnd)
	if start >= end {
		return errors.New("workHoursStart must be before workHoursEnd")
	}
	if p.LunchBreakEnabled {
		lunchStart, _ := clock.Parse(p.LunchBreakStart)
		lunchEnd, _ := clock.Parse(p.LunchBreakEnd)
		if lunchStart >= lunchEnd {
			return errors.New("lunchBreakStart must be before lunchBreakEnd")
		}
	}
	return nil
}
