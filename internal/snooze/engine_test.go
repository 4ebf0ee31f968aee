package snooze

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"followq-backend/internal/queue/domain"
	"followq-backend/pkg/ai"
	"followq-backend/pkg/deadline"
)

type fakeAdvisor struct {
	result *ai.SuggestionResult
	err    error
	block  bool
}

func (f *fakeAdvisor) SuggestSnoozeTime(ctx context.Context, req ai.SuggestionRequest) (*ai.SuggestionResult, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func testPolicy(t *testing.T, workingHours bool) *deadline.Config {
	t.Helper()
	cfg := &deadline.Config{
		BaseHours:        map[string]float64{"critical": 2, "high": 4},
		WorkingHoursOnly: workingHours,
		WorkStartHour:    9,
		WorkEndHour:      17,
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return cfg
}

func testItem(priority domain.Priority) *domain.QueueItem {
	return &domain.QueueItem{
		ID:       "item-1",
		EmailID:  "email-1",
		Subject:  "Quarterly report",
		Sender:   "cfo@example.com",
		Priority: priority,
		Category: "finance",
	}
}

var monday10 = time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

func TestSuggestFallbackWhenAdvisorFails(t *testing.T) {
	engine := NewEngine(&fakeAdvisor{err: errors.New("backend down")}, testPolicy(t, true), time.Second)

	s := engine.Suggest(context.Background(), testItem(domain.PriorityCritical), monday10)
	if s == nil {
		t.Fatal("expected a suggestion")
	}
	if s.Source != SourceFallback {
		t.Fatalf("source = %q, want %q", s.Source, SourceFallback)
	}
	if !strings.HasPrefix(s.Reasoning, "fallback:") {
		t.Fatalf("reasoning %q missing fallback marker", s.Reasoning)
	}
	if s.Confidence != FallbackConfidence {
		t.Fatalf("confidence = %v, want %v", s.Confidence, FallbackConfidence)
	}
	want := time.Date(2025, 6, 2, 11, 0, 0, 0, time.UTC)
	if !s.Time.Equal(want) {
		t.Fatalf("time = %v, want next working hour %v", s.Time, want)
	}
}

func TestSuggestFallbackWhenAdvisorTimesOut(t *testing.T) {
	engine := NewEngine(&fakeAdvisor{block: true}, testPolicy(t, true), 10*time.Millisecond)

	s := engine.Suggest(context.Background(), testItem(domain.PriorityHigh), monday10)
	if s.Source != SourceFallback {
		t.Fatalf("source = %q, want fallback after timeout", s.Source)
	}
	want := time.Date(2025, 6, 2, 13, 0, 0, 0, time.UTC) // +3 working hours
	if !s.Time.Equal(want) {
		t.Fatalf("time = %v, want %v", s.Time, want)
	}
}

func TestSuggestFallbackWithoutAdvisor(t *testing.T) {
	engine := NewEngine(nil, testPolicy(t, true), time.Second)

	cases := []struct {
		priority domain.Priority
		want     time.Time
	}{
		{domain.PriorityCritical, time.Date(2025, 6, 2, 11, 0, 0, 0, time.UTC)},
		{domain.PriorityHigh, time.Date(2025, 6, 2, 13, 0, 0, 0, time.UTC)},
		{domain.PriorityMedium, time.Date(2025, 6, 3, 9, 0, 0, 0, time.UTC)},
		{domain.PriorityLow, time.Date(2025, 6, 9, 10, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		t.Run(string(tc.priority), func(t *testing.T) {
			s := engine.Suggest(context.Background(), testItem(tc.priority), monday10)
			if !s.Time.Equal(tc.want) {
				t.Fatalf("time = %v, want %v", s.Time, tc.want)
			}
			if s.Reasoning == "" || s.Confidence == 0 {
				t.Fatal("fallback must populate reasoning and confidence")
			}
			if n := len(s.Alternatives); n < 1 || n > 3 {
				t.Fatalf("got %d alternatives, want 1-3", n)
			}
		})
	}
}

func TestSuggestAdvisorResultSnappedIntoWindow(t *testing.T) {
	// Advisor proposes Monday 22:00, outside the 09:00-17:00 window.
	advisor := &fakeAdvisor{result: &ai.SuggestionResult{
		Time:       time.Date(2025, 6, 2, 22, 0, 0, 0, time.UTC),
		Reasoning:  "after tonight's release",
		Confidence: 0.8,
	}}
	engine := NewEngine(advisor, testPolicy(t, true), time.Second)

	s := engine.Suggest(context.Background(), testItem(domain.PriorityHigh), monday10)
	if s.Source != SourceAdvisor {
		t.Fatalf("source = %q, want %q", s.Source, SourceAdvisor)
	}
	want := time.Date(2025, 6, 3, 9, 0, 0, 0, time.UTC) // Tuesday 09:00
	if !s.Time.Equal(want) {
		t.Fatalf("time = %v, want snapped %v", s.Time, want)
	}
	if s.Reasoning != "after tonight's release" || s.Confidence != 0.8 {
		t.Fatalf("advisor reasoning/confidence not preserved: %+v", s)
	}
}

func TestQuickPresets(t *testing.T) {
	engine := NewEngine(nil, testPolicy(t, true), time.Second)

	presets := engine.QuickPresets(monday10)
	if len(presets) != 4 {
		t.Fatalf("got %d presets, want 4", len(presets))
	}
	wantLabels := []string{"In 1 hour", "In 3 hours", "Tomorrow morning", "Next week"}
	for i, p := range presets {
		if p.Label != wantLabels[i] {
			t.Fatalf("preset %d label = %q, want %q", i, p.Label, wantLabels[i])
		}
		if !p.Time.After(monday10) {
			t.Fatalf("preset %q time %v not in the future", p.Label, p.Time)
		}
	}
	if want := monday10.Add(time.Hour); !presets[0].Time.Equal(want) {
		t.Fatalf("1 hour preset = %v, want %v", presets[0].Time, want)
	}
	if want := time.Date(2025, 6, 3, 9, 0, 0, 0, time.UTC); !presets[2].Time.Equal(want) {
		t.Fatalf("tomorrow morning preset = %v, want %v", presets[2].Time, want)
	}
}

func TestLearnNudgesFallback(t *testing.T) {
	engine := NewEngine(nil, testPolicy(t, false), time.Second)

	suggested := monday10.Add(time.Hour)
	engine.Learn("finance", suggested, suggested.Add(2*time.Hour))
	engine.Learn("finance", suggested, suggested.Add(2*time.Hour))

	if got := engine.LearnedOffset("finance"); got != 2*time.Hour {
		t.Fatalf("learned offset = %v, want 2h", got)
	}

	// Low priority baseline is +1 week; half the learned offset shifts it.
	s := engine.Suggest(context.Background(), testItem(domain.PriorityLow), monday10)
	want := monday10.AddDate(0, 0, 7).Add(time.Hour)
	if !s.Time.Equal(want) {
		t.Fatalf("nudged time = %v, want %v", s.Time, want)
	}

	// Other categories are unaffected.
	if got := engine.LearnedOffset("other"); got != 0 {
		t.Fatalf("unrelated category offset = %v, want 0", got)
	}
}

func TestLearnIgnoresOutliers(t *testing.T) {
	engine := NewEngine(nil, testPolicy(t, false), time.Second)

	suggested := monday10
	engine.Learn("finance", suggested, suggested.AddDate(0, 2, 0))
	if got := engine.LearnedOffset("finance"); got != 0 {
		t.Fatalf("outlier should be ignored, got %v", got)
	}
}
