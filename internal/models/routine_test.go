package models

import (
	"testing"
	"time"
)

func TestFrequency_RequiresDays(t *testing.T) {
	t.Parallel()

	tests := []struct {
		freq  Frequency
		valid bool
		days  bool
	}{
		{FrequencyDaily, true, false},
		{FrequencyWeekly, true, true},
		{FrequencyWeekdays, true, false},
		{FrequencyWeekends, true, false},
		{FrequencyCustom, true, true},
		{Frequency("MONTHLY"), false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.freq), func(t *testing.T) {
			t.Parallel()
			if got := tt.freq.Valid(); got != tt.valid {
				t.Errorf("Valid() = %v, want %v", got, tt.valid)
			}
			if got := tt.freq.RequiresDays(); got != tt.days {
				t.Errorf("RequiresDays() = %v, want %v", got, tt.days)
			}
		})
	}
}

func TestWeekdayOf(t *testing.T) {
	t.Parallel()

	// 2024-03-18 is a Monday
	monday := time.Date(2024, time.March, 18, 10, 0, 0, 0, time.UTC)
	want := []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}
	for i, w := range want {
		if got := WeekdayOf(monday.AddDate(0, 0, i)); got != w {
			t.Errorf("WeekdayOf(+%d days) = %s, want %s", i, got, w)
		}
	}
	if Weekday("FUNDAY").Valid() {
		t.Error("Expected FUNDAY to be invalid")
	}
}

func TestRoutine_State(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, time.March, 20, 12, 0, 0, 0, time.UTC)
	window := 7 * 24 * time.Hour
	asked := now.Add(-time.Hour)

	tests := []struct {
		name    string
		routine Routine
		want    RoutineState
	}{
		{
			name:    "far from expiry",
			routine: Routine{IsActive: true, ExpiresAt: now.AddDate(0, 0, 20)},
			want:    RoutineActive,
		},
		{
			name:    "expiring soon not asked",
			routine: Routine{IsActive: true, ExpiresAt: now.AddDate(0, 0, 3)},
			want:    RoutineExpiringSoon,
		},
		{
			name:    "expiring soon already asked",
			routine: Routine{IsActive: true, ExpiresAt: now.AddDate(0, 0, 3), RenewalAskedAt: &asked},
			want:    RoutineActive,
		},
		{
			name:    "expired awaiting sweep",
			routine: Routine{IsActive: true, ExpiresAt: now.Add(-time.Minute)},
			want:    RoutineExpired,
		},
		{
			name:    "deactivated",
			routine: Routine{IsActive: false, ExpiresAt: now.AddDate(0, 1, 0)},
			want:    RoutineDeactivated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.routine.State(now, window); got != tt.want {
				t.Errorf("State() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestPriorityAndEnergyRank(t *testing.T) {
	t.Parallel()

	if !(PriorityUrgent.Rank() > PriorityHigh.Rank() && PriorityHigh.Rank() > PriorityMedium.Rank() && PriorityMedium.Rank() > PriorityLow.Rank()) {
		t.Error("Expected URGENT > HIGH > MEDIUM > LOW")
	}
	if Priority("CRITICAL").Valid() {
		t.Error("Expected unknown priority to be invalid")
	}
	if !(EnergyHigh.Rank() > EnergyMedium.Rank() && EnergyMedium.Rank() > EnergyLow.Rank()) {
		t.Error("Expected HIGH > MEDIUM > LOW")
	}
	if EnergyLevel("").Valid() {
		t.Error("Expected empty energy level to be invalid")
	}
}
