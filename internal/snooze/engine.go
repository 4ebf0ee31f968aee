package snooze

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"followq-backend/internal/queue/domain"
	"followq-backend/pkg/ai"
	"followq-backend/pkg/deadline"
)

const (
	// SourceAdvisor marks suggestions produced by the advisory backend;
	// SourceFallback marks deterministic rule-based ones. Callers use the
	// source to decide how much to trust a suggestion.
	SourceAdvisor  = "advisor"
	SourceFallback = "fallback"

	// FallbackConfidence is the fixed conservative confidence attached to
	// rule-based suggestions.
	FallbackConfidence = 0.5

	defaultTimeout = 10 * time.Second
)

// Suggestion is a recommended resurfacing time for a snoozed item.
// Reasoning and Confidence are always populated.
type Suggestion struct {
	Time         time.Time   `json:"time"`
	Reasoning    string      `json:"reasoning"`
	Alternatives []time.Time `json:"alternatives"`
	Confidence   float64     `json:"confidence"`
	Source       string      `json:"source"`
}

// Preset is a fixed human-friendly snooze offset, independent of the
// advisory backend.
type Preset struct {
	Label string    `json:"label"`
	Time  time.Time `json:"time"`
}

type learnedOffset struct {
	avg   time.Duration
	count int
}

// Engine produces snooze suggestions: advisory backend first, deterministic
// rules when the backend is missing, erroring or slow. It also keeps a small
// per-category running average of how far users move suggested times, which
// nudges future suggestions.
type Engine struct {
	advisor ai.SuggestionService
	policy  *deadline.Config
	timeout time.Duration

	mu      sync.Mutex
	learned map[string]*learnedOffset
}

// NewEngine creates a suggestion engine. advisor may be nil; the engine then
// always answers from the fallback rule table.
func NewEngine(advisor ai.SuggestionService, policy *deadline.Config, timeout time.Duration) *Engine {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Engine{
		advisor: advisor,
		policy:  policy,
		timeout: timeout,
		learned: make(map[string]*learnedOffset),
	}
}

// Suggest returns a resurfacing suggestion for the item. It never fails:
// advisory errors and timeouts resolve to the deterministic fallback, marked
// with SourceFallback.
func (e *Engine) Suggest(ctx context.Context, item *domain.QueueItem, now time.Time) *Suggestion {
	if e.advisor != nil {
		cctx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()

		result, err := e.advisor.SuggestSnoozeTime(cctx, ai.SuggestionRequest{
			Subject:          item.Subject,
			Sender:           item.Sender,
			Priority:         string(item.Priority),
			Category:         item.Category,
			Now:              now,
			WorkingHoursOnly: e.policy.WorkingHoursOnly,
			WorkStartHour:    e.policy.WorkStartHour,
			WorkEndHour:      e.policy.WorkEndHour,
			Timezone:         e.policy.Timezone,
		})
		if err == nil {
			return &Suggestion{
				Time:         e.snap(e.nudge(item.Category, result.Time), now),
				Reasoning:    result.Reasoning,
				Alternatives: e.snapAll(result.Alternatives, now),
				Confidence:   result.Confidence,
				Source:       SourceAdvisor,
			}
		}
		log.Printf("[SnoozeEngine] Advisory backend failed, using fallback rules: %v", err)
	}

	return e.fallback(item, now)
}

// fallback is the deterministic rule table keyed by priority
func (e *Engine) fallback(item *domain.QueueItem, now time.Time) *Suggestion {
	var at time.Time
	var rule string

	switch item.Priority {
	case domain.PriorityCritical:
		at = e.policy.NextWorkingTime(now.Add(time.Hour))
		rule = "critical priority resurfaces within the next working hour"
	case domain.PriorityHigh:
		at = e.policy.AddWorkingHours(now, 3)
		rule = "high priority resurfaces after three working hours"
	case domain.PriorityMedium:
		at = e.nextWorkingMorning(now)
		rule = "medium priority resurfaces next working morning"
	default:
		at = now.AddDate(0, 0, 7)
		rule = "low priority resurfaces in one week"
	}

	at = e.snap(e.nudge(item.Category, at), now)

	return &Suggestion{
		Time:         at,
		Reasoning:    "fallback: " + rule,
		Alternatives: e.alternatives(at, now),
		Confidence:   FallbackConfidence,
		Source:       SourceFallback,
	}
}

// QuickPresets returns the fixed offsets shown to users regardless of
// advisory availability, in display order.
func (e *Engine) QuickPresets(now time.Time) []Preset {
	return []Preset{
		{Label: "In 1 hour", Time: now.Add(time.Hour)},
		{Label: "In 3 hours", Time: now.Add(3 * time.Hour)},
		{Label: "Tomorrow morning", Time: e.nextWorkingMorning(now)},
		{Label: "Next week", Time: now.AddDate(0, 0, 7)},
	}
}

// Learn records the signed offset between what was suggested and what the
// user actually chose, as a bounded per-category running average. The
// average nudges future suggestions but never overrides an explicit choice.
func (e *Engine) Learn(category string, suggested, chosen time.Time) {
	offset := chosen.Sub(suggested)
	if offset > 7*24*time.Hour || offset < -7*24*time.Hour {
		return
	}
	if category == "" {
		category = "default"
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	lo, ok := e.learned[category]
	if !ok {
		lo = &learnedOffset{}
		e.learned[category] = lo
	}
	if lo.count < 20 {
		lo.count++
	}
	lo.avg += (offset - lo.avg) / time.Duration(lo.count)
}

// LearnedOffset exposes the current average for a category (zero when the
// category has no samples).
func (e *Engine) LearnedOffset(category string) time.Duration {
	if category == "" {
		category = "default"
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if lo, ok := e.learned[category]; ok {
		return lo.avg
	}
	return 0
}

// nudge shifts t by half the learned per-category offset, capped at a day
func (e *Engine) nudge(category string, t time.Time) time.Time {
	shift := e.LearnedOffset(category) / 2
	if shift > 24*time.Hour {
		shift = 24 * time.Hour
	} else if shift < -24*time.Hour {
		shift = -24 * time.Hour
	}
	return t.Add(shift)
}

// snap clamps t into the working window when the policy requires it and
// keeps it in the future.
func (e *Engine) snap(t, now time.Time) time.Time {
	if !t.After(now) {
		t = now.Add(time.Hour)
	}
	if e.policy.WorkingHoursOnly {
		t = e.policy.NextWorkingTime(t)
	}
	return t
}

func (e *Engine) snapAll(times []time.Time, now time.Time) []time.Time {
	out := make([]time.Time, 0, len(times))
	for _, t := range times {
		out = append(out, e.snap(t, now))
	}
	return out
}

// alternatives surrounds the chosen time with nearby options, skipping any
// that collide with it.
func (e *Engine) alternatives(chosen, now time.Time) []time.Time {
	candidates := []time.Time{
		e.snap(now.Add(time.Hour), now),
		e.nextWorkingMorning(now),
		now.AddDate(0, 0, 7),
	}
	var out []time.Time
	for _, c := range candidates {
		if len(out) == 3 {
			break
		}
		if !c.Equal(chosen) {
			out = append(out, c)
		}
	}
	return out
}

// nextWorkingMorning is the start of the next working day
func (e *Engine) nextWorkingMorning(now time.Time) time.Time {
	t := now.In(e.policy.Location()).AddDate(0, 0, 1)
	morning := time.Date(t.Year(), t.Month(), t.Day(), e.policy.WorkStartHour, 0, 0, 0, e.policy.Location())
	return e.policy.NextWorkingTime(morning)
}

// String implements fmt.Stringer for log lines
func (s *Suggestion) String() string {
	return fmt.Sprintf("%s at %s (%.2f)", s.Source, s.Time.Format(time.RFC3339), s.Confidence)
}
