package deadline

import (
	"fmt"
	"time"
)

// Status is the deadline standing of an item. Values mirror the queue
// domain's deadline status strings so conversion is a plain cast.
type Status string

const (
	StatusOnTime  Status = "on_time"
	StatusAtRisk  Status = "at_risk"
	StatusOverdue Status = "overdue"
)

// DefaultAtRiskFraction marks an item at-risk once this share of its
// allowance remains.
const DefaultAtRiskFraction = 0.25

// Config is the deadline policy: per-priority allowances, VIP overrides and
// the business-hours calendar. All methods are pure; Config carries no
// mutable state after Validate.
type Config struct {
	// BaseHours maps a priority level to its response allowance in hours.
	// A missing or zero entry means no SLA for that priority.
	BaseHours map[string]float64

	// VIPOverrides maps a sender address to a custom allowance that wins
	// over the priority's base hours.
	VIPOverrides map[string]float64

	// WorkingHoursOnly counts only working hours (skipping nights and
	// weekends) when rolling deadlines forward.
	WorkingHoursOnly bool
	WorkStartHour    int
	WorkEndHour      int
	Timezone         string

	// AtRiskFraction defaults to DefaultAtRiskFraction when zero.
	AtRiskFraction float64

	loc *time.Location
}

// Validate resolves the timezone and rejects a malformed working window.
// Must be called once at startup; evaluation never fails after that.
func (c *Config) Validate() error {
	if c.WorkEndHour <= c.WorkStartHour {
		return fmt.Errorf("deadline policy: work end hour %d must be after start hour %d", c.WorkEndHour, c.WorkStartHour)
	}
	if c.WorkStartHour < 0 || c.WorkEndHour > 24 {
		return fmt.Errorf("deadline policy: working window %d-%d out of range", c.WorkStartHour, c.WorkEndHour)
	}
	if c.AtRiskFraction < 0 || c.AtRiskFraction >= 1 {
		return fmt.Errorf("deadline policy: at-risk fraction %v must be in [0,1)", c.AtRiskFraction)
	}
	if c.AtRiskFraction == 0 {
		c.AtRiskFraction = DefaultAtRiskFraction
	}
	if c.Timezone == "" {
		c.loc = time.UTC
		return nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("deadline policy: invalid timezone %q: %w", c.Timezone, err)
	}
	c.loc = loc
	return nil
}

// Location returns the calendar's timezone (UTC until Validate runs)
func (c *Config) Location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}

// AllowanceFor returns the applicable allowance in hours: the sender's VIP
// override when present, else the priority's base hours. Zero means no SLA.
func (c *Config) AllowanceFor(priority, sender string) float64 {
	if hours, ok := c.VIPOverrides[sender]; ok && hours > 0 {
		return hours
	}
	return c.BaseHours[priority]
}

// ComputeDeadline rolls the admission time forward by the applicable
// allowance, in working hours when the calendar restricts to them. Returns
// nil when the priority carries no SLA, plus the allowance used.
func (c *Config) ComputeDeadline(admittedAt time.Time, priority, sender string) (*time.Time, float64) {
	hours := c.AllowanceFor(priority, sender)
	if hours <= 0 {
		return nil, 0
	}
	var d time.Time
	if c.WorkingHoursOnly {
		d = c.AddWorkingHours(admittedAt, hours)
	} else {
		d = admittedAt.Add(time.Duration(hours * float64(time.Hour)))
	}
	return &d, hours
}

// Evaluate returns the deadline standing at now. Overdue once now reaches
// the deadline; at-risk once remaining time is within the at-risk fraction
// of the original allowance.
func (c *Config) Evaluate(now, deadline time.Time, allowanceHours float64) Status {
	if !now.Before(deadline) {
		return StatusOverdue
	}
	fraction := c.AtRiskFraction
	if fraction == 0 {
		fraction = DefaultAtRiskFraction
	}
	if allowanceHours > 0 && deadline.Sub(now).Hours() <= fraction*allowanceHours {
		return StatusAtRisk
	}
	return StatusOnTime
}

// RemainingHours returns the wall-clock hours until the deadline, negative
// once it has passed.
func RemainingHours(now, deadline time.Time) float64 {
	return deadline.Sub(now).Hours()
}

// NextWorkingTime clamps t forward to the nearest instant inside the
// working window, skipping weekends. A t already inside the window is
// returned unchanged.
func (c *Config) NextWorkingTime(t time.Time) time.Time {
	t = t.In(c.Location())
	for {
		switch t.Weekday() {
		case time.Saturday:
			t = c.dayStart(t.AddDate(0, 0, 2))
			continue
		case time.Sunday:
			t = c.dayStart(t.AddDate(0, 0, 1))
			continue
		}
		if t.Before(c.dayStart(t)) {
			return c.dayStart(t)
		}
		if !t.Before(c.dayEnd(t)) {
			t = c.dayStart(t.AddDate(0, 0, 1))
			continue
		}
		return t
	}
}

// AddWorkingHours rolls t forward by the given number of working hours,
// consuming only time inside the working window Monday through Friday.
func (c *Config) AddWorkingHours(t time.Time, hours float64) time.Time {
	remaining := time.Duration(hours * float64(time.Hour))
	cur := c.NextWorkingTime(t)
	for remaining > 0 {
		available := c.dayEnd(cur).Sub(cur)
		if available >= remaining {
			return cur.Add(remaining)
		}
		remaining -= available
		cur = c.NextWorkingTime(c.dayEnd(cur))
	}
	return cur
}

func (c *Config) dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), c.WorkStartHour, 0, 0, 0, c.Location())
}

func (c *Config) dayEnd(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), c.WorkEndHour, 0, 0, 0, c.Location())
}
