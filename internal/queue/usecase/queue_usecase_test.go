package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"followq-backend/internal/queue/domain"
	"followq-backend/internal/queue/repository"
	"followq-backend/internal/snooze"
	"followq-backend/pkg/deadline"
)

func wallClockPolicy(t *testing.T) *deadline.Config {
	t.Helper()
	cfg := &deadline.Config{
		BaseHours: map[string]float64{
			"critical": 2,
			"high":     4,
			"medium":   24,
		},
		WorkStartHour: 9,
		WorkEndHour:   17,
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return cfg
}

func newTestQueue(t *testing.T) (QueueUsecase, *snooze.Engine) {
	t.Helper()
	policy := wallClockPolicy(t)
	engine := snooze.NewEngine(nil, policy, time.Second)
	uc := NewQueueUsecase(
		repository.NewMemoryItemRepository(),
		repository.NewMemoryHistoryRepository(),
		policy, engine, Options{})
	return uc, engine
}

func mustAdd(t *testing.T, uc QueueUsecase, req AddRequest) *domain.QueueItem {
	t.Helper()
	if req.Priority == "" {
		req.Priority = "medium"
	}
	item, err := uc.Add(context.Background(), req)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	return item
}

func TestAddValidation(t *testing.T) {
	uc, _ := newTestQueue(t)
	past := time.Now().Add(-time.Hour)

	cases := []struct {
		name string
		req  AddRequest
	}{
		{"missing email id", AddRequest{Priority: "high"}},
		{"unknown priority", AddRequest{EmailID: "e1", Priority: "urgent"}},
		{"unknown reason", AddRequest{EmailID: "e1", Priority: "high", Reason: "because"}},
		{"past snooze", AddRequest{EmailID: "e1", Priority: "high", SnoozeUntil: &past}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := uc.Add(context.Background(), tc.req); !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestAddAssignsDeadlineBySLAReason(t *testing.T) {
	uc, _ := newTestQueue(t)

	withSLA := mustAdd(t, uc, AddRequest{EmailID: "e1", Subject: "s", Priority: "high", Reason: "needs_reply"})
	if withSLA.Deadline == nil || withSLA.SLAHours == nil {
		t.Fatal("needs_reply admission should carry a deadline")
	}
	if *withSLA.SLAHours != 4 {
		t.Fatalf("sla hours = %v, want 4", *withSLA.SLAHours)
	}
	want := withSLA.AddedAt.Add(4 * time.Hour)
	if !withSLA.Deadline.Equal(want) {
		t.Fatalf("deadline = %v, want %v", withSLA.Deadline, want)
	}
	if withSLA.DeadlineStatus != domain.DeadlineOnTime {
		t.Fatalf("deadline status = %v, want on_time", withSLA.DeadlineStatus)
	}

	manual := mustAdd(t, uc, AddRequest{EmailID: "e2", Subject: "s", Priority: "high", Reason: "manual"})
	if manual.Deadline != nil {
		t.Fatal("manual admission should carry no deadline")
	}
	if manual.DeadlineStatus != domain.DeadlineOnTime || manual.HoursRemaining != nil {
		t.Fatal("item without a deadline must read on-time with no remaining hours")
	}
}

func TestLifecycleTransitions(t *testing.T) {
	uc, _ := newTestQueue(t)
	until := time.Now().Add(2 * time.Hour)

	item := mustAdd(t, uc, AddRequest{EmailID: "e1", Subject: "s", Priority: "medium"})

	// Active -> Snoozed -> Active -> Waiting -> Active -> Completed
	if _, err := uc.Snooze(item.ID, until, "busy", "tester"); err != nil {
		t.Fatalf("Snooze: %v", err)
	}
	got, _ := uc.Get(item.ID)
	if got.Status != domain.StatusSnoozed || got.SnoozeUntil == nil {
		t.Fatalf("after snooze: status=%v snoozeUntil=%v", got.Status, got.SnoozeUntil)
	}

	if _, err := uc.Unsnooze(item.ID, "tester"); err != nil {
		t.Fatalf("Unsnooze: %v", err)
	}
	got, _ = uc.Get(item.ID)
	if got.Status != domain.StatusActive || got.SnoozeUntil != nil {
		t.Fatalf("after unsnooze: status=%v snoozeUntil=%v", got.Status, got.SnoozeUntil)
	}

	if _, err := uc.MarkWaiting(item.ID, "bob@example.com", "sent question", "tester"); err != nil {
		t.Fatalf("MarkWaiting: %v", err)
	}
	got, _ = uc.Get(item.ID)
	if got.Status != domain.StatusWaiting || got.WaitingOn != "bob@example.com" {
		t.Fatalf("after waiting: %+v", got)
	}

	// Waiting -> Snoozed is not a legal move.
	if _, err := uc.Snooze(item.ID, until, "", "tester"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("snooze from waiting: err = %v, want ErrInvalidTransition", err)
	}
	got, _ = uc.Get(item.ID)
	if got.Status != domain.StatusWaiting {
		t.Fatal("failed transition must not mutate state")
	}

	if _, err := uc.MarkReplyReceived(item.ID, "tester"); err != nil {
		t.Fatalf("MarkReplyReceived: %v", err)
	}
	got, _ = uc.Get(item.ID)
	if got.Status != domain.StatusActive || got.WaitingOn != "" {
		t.Fatalf("after reply received: %+v", got)
	}

	if _, err := uc.Complete(item.ID, "tester"); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	// Completed items cannot be snoozed or re-completed.
	if _, err := uc.Snooze(item.ID, until, "", "tester"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("snooze from completed: err = %v, want ErrInvalidTransition", err)
	}
	if _, err := uc.Complete(item.ID, "tester"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("double complete: err = %v, want ErrInvalidTransition", err)
	}
}

func TestNoTransitionOutOfArchived(t *testing.T) {
	uc, _ := newTestQueue(t)

	item := mustAdd(t, uc, AddRequest{EmailID: "e1", Subject: "s", Priority: "low"})
	if _, err := uc.Complete(item.ID, "tester"); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if n, err := uc.ArchiveCompletedBefore(time.Now().Add(time.Minute)); err != nil || n != 1 {
		t.Fatalf("ArchiveCompletedBefore = %d, %v", n, err)
	}

	got, _ := uc.Get(item.ID)
	if got.Status != domain.StatusArchived {
		t.Fatalf("status = %v, want archived", got.Status)
	}
	if _, err := uc.Unsnooze(item.ID, "tester"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("unsnooze from archived: err = %v, want ErrInvalidTransition", err)
	}
	if _, err := uc.Complete(item.ID, "tester"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("complete from archived: err = %v, want ErrInvalidTransition", err)
	}
}

func TestSnoozeThenSweepResurfaces(t *testing.T) {
	uc, _ := newTestQueue(t)
	until := time.Now().Add(30 * time.Minute)

	item := mustAdd(t, uc, AddRequest{EmailID: "e1", Subject: "s", Priority: "medium"})
	if _, err := uc.Snooze(item.ID, until, "", "tester"); err != nil {
		t.Fatalf("Snooze: %v", err)
	}

	// A sweep before the snooze time leaves it alone.
	if n, err := uc.ResurfaceDueSnoozed(until.Add(-time.Minute)); err != nil || n != 0 {
		t.Fatalf("early sweep resurfaced %d, %v", n, err)
	}

	// A sweep at exactly snoozeUntil resurfaces it.
	if n, err := uc.ResurfaceDueSnoozed(until); err != nil || n != 1 {
		t.Fatalf("sweep resurfaced %d, %v", n, err)
	}
	got, _ := uc.Get(item.ID)
	if got.Status != domain.StatusActive || got.SnoozeUntil != nil {
		t.Fatalf("after sweep: status=%v snoozeUntil=%v", got.Status, got.SnoozeUntil)
	}
}

func TestQueryCanonicalOrder(t *testing.T) {
	uc, _ := newTestQueue(t)
	oldMail := time.Now().Add(-48 * time.Hour)
	newMail := time.Now().Add(-1 * time.Hour)

	critical := mustAdd(t, uc, AddRequest{EmailID: "e1", Subject: "a", Priority: "critical", Reason: "needs_reply"})
	highSoon := mustAdd(t, uc, AddRequest{EmailID: "e2", Subject: "b", Priority: "high", Reason: "needs_reply"})
	highNoDeadline := mustAdd(t, uc, AddRequest{EmailID: "e3", Subject: "c", Priority: "high", Reason: "manual"})
	medium := mustAdd(t, uc, AddRequest{EmailID: "e4", Subject: "d", Priority: "medium", Reason: "needs_reply"})
	lowOld := mustAdd(t, uc, AddRequest{EmailID: "e5", Subject: "e", Priority: "low", ReceivedAt: &oldMail})
	lowNew := mustAdd(t, uc, AddRequest{EmailID: "e6", Subject: "f", Priority: "low", ReceivedAt: &newMail})

	items, total, err := uc.Query(domain.ItemFilter{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if total != 6 {
		t.Fatalf("total = %d, want 6", total)
	}

	wantOrder := []string{critical.ID, highSoon.ID, highNoDeadline.ID, medium.ID, lowNew.ID, lowOld.ID}
	for i, item := range items {
		if item.ID != wantOrder[i] {
			t.Fatalf("position %d: got %s (%s), want %s", i, item.ID, item.Subject, wantOrder[i])
		}
	}
}

func TestQueryFiltersAndPageCap(t *testing.T) {
	uc, _ := newTestQueue(t)

	a := mustAdd(t, uc, AddRequest{EmailID: "e1", Subject: "Invoice overdue", Sender: "billing@acme.com", Priority: "high", Category: "finance"})
	mustAdd(t, uc, AddRequest{EmailID: "e2", Subject: "Lunch?", Sender: "sam@example.com", Priority: "low", Category: "personal"})

	items, total, err := uc.Query(domain.ItemFilter{
		Priorities: []domain.Priority{domain.PriorityHigh},
		Categories: []string{"finance"},
		Search:     "invoice",
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if total != 1 || len(items) != 1 || items[0].ID != a.ID {
		t.Fatalf("filtered query returned %d items (total %d)", len(items), total)
	}

	if _, _, err := uc.Query(domain.ItemFilter{Limit: 10_000}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("oversized page: err = %v, want ErrValidation", err)
	}
}

func TestBulkPartialFailure(t *testing.T) {
	uc, _ := newTestQueue(t)

	a := mustAdd(t, uc, AddRequest{EmailID: "e1", Subject: "s", Priority: "high"})
	b := mustAdd(t, uc, AddRequest{EmailID: "e2", Subject: "s", Priority: "high"})

	result := uc.BulkComplete([]string{a.ID, "no-such-id", b.ID}, "tester")
	if len(result.Succeeded) != 2 {
		t.Fatalf("succeeded = %v, want 2 entries", result.Succeeded)
	}
	if len(result.Failed) != 1 || result.Failed[0].ID != "no-such-id" {
		t.Fatalf("failed = %+v, want the invalid id only", result.Failed)
	}

	// The successes stuck.
	for _, id := range []string{a.ID, b.ID} {
		got, _ := uc.Get(id)
		if got.Status != domain.StatusCompleted {
			t.Fatalf("item %s status = %v, want completed", id, got.Status)
		}
	}
}

func TestRemoveOnlyFromTerminalStates(t *testing.T) {
	uc, _ := newTestQueue(t)

	item := mustAdd(t, uc, AddRequest{EmailID: "e1", Subject: "s", Priority: "high"})
	if err := uc.Remove(item.ID, "tester"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("remove active: err = %v, want ErrValidation", err)
	}

	if _, err := uc.Complete(item.ID, "tester"); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if err := uc.Remove(item.ID, "tester"); err != nil {
		t.Fatalf("remove completed: %v", err)
	}
	if _, err := uc.Get(item.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("get after remove: err = %v, want ErrNotFound", err)
	}
}

func TestUpdatePriorityRecomputesDeadline(t *testing.T) {
	uc, _ := newTestQueue(t)

	item := mustAdd(t, uc, AddRequest{EmailID: "e1", Subject: "s", Priority: "high", Reason: "needs_reply"})
	newPriority := "critical"
	updated, err := uc.Update(item.ID, UpdateRequest{Priority: &newPriority}, "tester")
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	want := item.AddedAt.Add(2 * time.Hour)
	if updated.Deadline == nil || !updated.Deadline.Equal(want) {
		t.Fatalf("deadline = %v, want recomputed %v", updated.Deadline, want)
	}
	if *updated.SLAHours != 2 {
		t.Fatalf("sla hours = %v, want 2", *updated.SLAHours)
	}
}

func TestOverdueItemEscalatesOnSweep(t *testing.T) {
	uc, _ := newTestQueue(t)

	item := mustAdd(t, uc, AddRequest{EmailID: "e1", Subject: "s", Priority: "high", Reason: "needs_reply"})

	// 4h allowance; five hours later the deadline has passed.
	escalated, _, err := uc.RefreshDeadlineStatuses(item.AddedAt.Add(5 * time.Hour))
	if err != nil {
		t.Fatalf("RefreshDeadlineStatuses: %v", err)
	}
	if escalated != 1 {
		t.Fatalf("escalated = %d, want 1", escalated)
	}

	got, _ := uc.Get(item.ID)
	if got.Status != domain.StatusEscalated {
		t.Fatalf("status = %v, want escalated", got.Status)
	}
	if got.Priority != domain.PriorityCritical {
		t.Fatalf("priority = %v, want bumped to critical", got.Priority)
	}
	// The deadline policy re-ran with the critical allowance.
	if got.SLAHours == nil || *got.SLAHours != 2 {
		t.Fatalf("sla hours = %v, want 2 after escalation", got.SLAHours)
	}

	// Escalated items can still be completed.
	if _, err := uc.Complete(item.ID, "tester"); err != nil {
		t.Fatalf("complete escalated: %v", err)
	}
}

func TestEveryMutationAppendsHistory(t *testing.T) {
	uc, _ := newTestQueue(t)
	until := time.Now().Add(time.Hour)

	item := mustAdd(t, uc, AddRequest{EmailID: "e1", Subject: "s", Priority: "medium"})
	uc.Snooze(item.ID, until, "", "tester")
	uc.Unsnooze(item.ID, "tester")
	uc.Complete(item.ID, "tester")

	entries, err := uc.History(item.ID, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("got %d history entries, want 4", len(entries))
	}
	// Newest first.
	wantActions := []string{domain.ActionCompleted, domain.ActionUnsnoozed, domain.ActionSnoozed, domain.ActionAdded}
	for i, e := range entries {
		if e.Action != wantActions[i] {
			t.Fatalf("entry %d action = %q, want %q", i, e.Action, wantActions[i])
		}
	}
	if entries[1].FromStatus != domain.StatusSnoozed || entries[1].ToStatus != domain.StatusActive {
		t.Fatalf("unsnooze entry statuses = %s -> %s", entries[1].FromStatus, entries[1].ToStatus)
	}
}

func TestStatisticsCountsAndStaleness(t *testing.T) {
	uc, _ := newTestQueue(t)

	mustAdd(t, uc, AddRequest{EmailID: "e1", Subject: "s", Priority: "high", Reason: "needs_reply"})
	b := mustAdd(t, uc, AddRequest{EmailID: "e2", Subject: "s", Priority: "low"})
	uc.Complete(b.ID, "tester")

	stats, err := uc.Statistics(false)
	if err != nil {
		t.Fatalf("Statistics: %v", err)
	}
	if stats.TotalItems != 2 {
		t.Fatalf("total = %d, want 2", stats.TotalItems)
	}
	if stats.ByStatus[domain.StatusActive] != 1 || stats.ByStatus[domain.StatusCompleted] != 1 {
		t.Fatalf("by status = %+v", stats.ByStatus)
	}
	if stats.ByPriority[domain.PriorityHigh] != 1 || stats.ByPriority[domain.PriorityLow] != 1 {
		t.Fatalf("by priority = %+v", stats.ByPriority)
	}

	// Writes invalidate the snapshot synchronously.
	mustAdd(t, uc, AddRequest{EmailID: "e3", Subject: "s", Priority: "medium"})
	stats, _ = uc.Statistics(false)
	if stats.TotalItems != 3 {
		t.Fatalf("total after write = %d, want 3", stats.TotalItems)
	}
}

func TestSuggestSnoozeRecordsMetadataAndAcceptLearns(t *testing.T) {
	uc, engine := newTestQueue(t)

	item := mustAdd(t, uc, AddRequest{EmailID: "e1", Subject: "s", Priority: "low", Category: "newsletters"})

	suggestion, err := uc.SuggestSnooze(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("SuggestSnooze: %v", err)
	}
	if suggestion.Source != snooze.SourceFallback {
		t.Fatalf("source = %q, want fallback without an advisor", suggestion.Source)
	}
	if suggestion.Reasoning == "" || suggestion.Confidence == 0 {
		t.Fatal("suggestion must carry reasoning and confidence")
	}

	got, _ := uc.Get(item.ID)
	if got.SuggestedAt == nil || !got.SuggestedAt.Equal(suggestion.Time) {
		t.Fatalf("suggestion metadata not recorded: %+v", got)
	}
	if got.SuggestionSource != snooze.SourceFallback {
		t.Fatalf("suggestion source = %q", got.SuggestionSource)
	}

	chosen := suggestion.Time.Add(2 * time.Hour)
	accepted, err := uc.AcceptSuggestion(item.ID, chosen, "tester")
	if err != nil {
		t.Fatalf("AcceptSuggestion: %v", err)
	}
	if accepted.Status != domain.StatusSnoozed || !accepted.SnoozeUntil.Equal(chosen) {
		t.Fatalf("after accept: status=%v until=%v", accepted.Status, accepted.SnoozeUntil)
	}
	if engine.LearnedOffset("newsletters") != 2*time.Hour {
		t.Fatalf("learned offset = %v, want 2h", engine.LearnedOffset("newsletters"))
	}
}

func TestConflictingMutationFailsFast(t *testing.T) {
	locks := newItemLocks()

	release, err := locks.acquire("item-1", false)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	if _, err := locks.acquire("item-1", false); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("second acquire: err = %v, want ErrConflict", err)
	}

	// Different items are independent.
	release2, err := locks.acquire("item-2", false)
	if err != nil {
		t.Fatalf("other item acquire: %v", err)
	}
	release2()

	release()
	release3, err := locks.acquire("item-1", false)
	if err != nil {
		t.Fatalf("reacquire after release: %v", err)
	}
	release3()
}
