package deadline

import (
	"testing"
	"time"
)

func workingConfig(t *testing.T) *Config {
	t.Helper()
	cfg := &Config{
		BaseHours: map[string]float64{
			"critical": 2,
			"high":     4,
			"medium":   24,
		},
		VIPOverrides:     map[string]float64{"boss@example.com": 1},
		WorkingHoursOnly: true,
		WorkStartHour:    9,
		WorkEndHour:      17,
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return cfg
}

func TestValidateRejectsInvertedWindow(t *testing.T) {
	cfg := &Config{WorkStartHour: 17, WorkEndHour: 9}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for end hour before start hour")
	}
	cfg = &Config{WorkStartHour: 9, WorkEndHour: 9}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero-width window")
	}
}

func TestComputeDeadlineWallClock(t *testing.T) {
	cfg := &Config{
		BaseHours:     map[string]float64{"high": 4},
		WorkStartHour: 9,
		WorkEndHour:   17,
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	admitted := time.Date(2025, 6, 2, 16, 0, 0, 0, time.UTC)
	deadline, hours := cfg.ComputeDeadline(admitted, "high", "someone@example.com")
	if deadline == nil {
		t.Fatal("expected a deadline")
	}
	if hours != 4 {
		t.Fatalf("allowance = %v, want 4", hours)
	}
	want := admitted.Add(4 * time.Hour)
	if !deadline.Equal(want) {
		t.Fatalf("deadline = %v, want %v", deadline, want)
	}
}

func TestComputeDeadlineWorkingHours(t *testing.T) {
	cfg := workingConfig(t)

	// Monday 16:00, 4 working hours, window 09:00-17:00: one hour Monday,
	// three hours Tuesday from 09:00.
	admitted := time.Date(2025, 6, 2, 16, 0, 0, 0, time.UTC) // Monday
	deadline, _ := cfg.ComputeDeadline(admitted, "high", "someone@example.com")
	if deadline == nil {
		t.Fatal("expected a deadline")
	}
	want := time.Date(2025, 6, 3, 12, 0, 0, 0, time.UTC) // Tuesday 12:00
	if !deadline.Equal(want) {
		t.Fatalf("deadline = %v, want %v", deadline, want)
	}
}

func TestComputeDeadlineSkipsWeekend(t *testing.T) {
	cfg := workingConfig(t)

	admitted := time.Date(2025, 6, 6, 16, 0, 0, 0, time.UTC) // Friday
	deadline, _ := cfg.ComputeDeadline(admitted, "high", "someone@example.com")
	want := time.Date(2025, 6, 9, 12, 0, 0, 0, time.UTC) // Monday 12:00
	if !deadline.Equal(want) {
		t.Fatalf("deadline = %v, want %v", deadline, want)
	}
}

func TestComputeDeadlineOffHoursAdmission(t *testing.T) {
	cfg := workingConfig(t)

	// Admitted Saturday night: the clock starts Monday 09:00.
	admitted := time.Date(2025, 6, 7, 22, 30, 0, 0, time.UTC) // Saturday
	deadline, _ := cfg.ComputeDeadline(admitted, "critical", "someone@example.com")
	want := time.Date(2025, 6, 9, 11, 0, 0, 0, time.UTC) // Monday 11:00
	if !deadline.Equal(want) {
		t.Fatalf("deadline = %v, want %v", deadline, want)
	}
}

func TestComputeDeadlineNoSLA(t *testing.T) {
	cfg := workingConfig(t)

	admitted := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	deadline, hours := cfg.ComputeDeadline(admitted, "low", "someone@example.com")
	if deadline != nil || hours != 0 {
		t.Fatalf("expected no deadline for a priority without an SLA, got %v (%v hours)", deadline, hours)
	}
}

func TestVIPOverrideWins(t *testing.T) {
	cfg := workingConfig(t)

	admitted := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC) // Monday
	deadline, hours := cfg.ComputeDeadline(admitted, "medium", "boss@example.com")
	if hours != 1 {
		t.Fatalf("allowance = %v, want VIP override 1", hours)
	}
	want := time.Date(2025, 6, 2, 11, 0, 0, 0, time.UTC)
	if !deadline.Equal(want) {
		t.Fatalf("deadline = %v, want %v", deadline, want)
	}
}

func TestEvaluate(t *testing.T) {
	cfg := workingConfig(t)

	admitted := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	deadline := admitted.Add(2 * time.Hour)

	cases := []struct {
		name string
		now  time.Time
		want Status
	}{
		{"fresh", admitted.Add(30 * time.Minute), StatusOnTime},
		{"quarter remaining", admitted.Add(105 * time.Minute), StatusAtRisk},
		{"past deadline", admitted.Add(130 * time.Minute), StatusOverdue},
		{"exactly at deadline", deadline, StatusOverdue},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := cfg.Evaluate(tc.now, deadline, 2); got != tc.want {
				t.Fatalf("Evaluate = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestWorkingDeadlineStaysInsideWindow(t *testing.T) {
	cfg := workingConfig(t)

	// Any allowance under a working day must land inside the window.
	for day := 0; day < 14; day++ {
		for hour := 0; hour < 24; hour++ {
			admitted := time.Date(2025, 6, 1+day, hour, 17, 0, 0, time.UTC)
			deadline, _ := cfg.ComputeDeadline(admitted, "critical", "x@example.com")
			if deadline == nil {
				t.Fatal("expected a deadline")
			}
			d := *deadline
			if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
				t.Fatalf("deadline %v fell on a weekend (admitted %v)", d, admitted)
			}
			start := time.Date(d.Year(), d.Month(), d.Day(), cfg.WorkStartHour, 0, 0, 0, time.UTC)
			end := time.Date(d.Year(), d.Month(), d.Day(), cfg.WorkEndHour, 0, 0, 0, time.UTC)
			if d.Before(start) || d.After(end) {
				t.Fatalf("deadline %v outside working window (admitted %v)", d, admitted)
			}
		}
	}
}
