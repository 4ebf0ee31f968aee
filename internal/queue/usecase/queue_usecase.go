package usecase

import (
	"context"
	"fmt"
	"log"
	"time"

	"followq-backend/internal/queue/domain"
	"followq-backend/internal/queue/repository"
	"followq-backend/internal/snooze"
	"followq-backend/pkg/cache"
	"followq-backend/pkg/deadline"

	"golang.org/x/sync/singleflight"
)

const statsKey = "statistics"

// Options tunes the queue store's paging, caching and conflict behavior
type Options struct {
	// MaxPageSize is the server-enforced query page cap (default 100)
	MaxPageSize int
	// DefaultPageSize applies when a query carries no limit (default 50)
	DefaultPageSize int
	// StatsTTL bounds statistics staleness (default 5 minutes)
	StatsTTL time.Duration
	// HistoryTTL bounds per-item history cache staleness (default 1 minute)
	HistoryTTL time.Duration
	// WaitOnConflict makes a conflicting mutation wait for the holder
	// instead of failing with ErrConflict
	WaitOnConflict bool
}

func (o Options) withDefaults() Options {
	if o.MaxPageSize <= 0 {
		o.MaxPageSize = 100
	}
	if o.DefaultPageSize <= 0 {
		o.DefaultPageSize = 50
	}
	if o.StatsTTL <= 0 {
		o.StatsTTL = 5 * time.Minute
	}
	if o.HistoryTTL <= 0 {
		o.HistoryTTL = time.Minute
	}
	return o
}

// queueUsecase implements QueueUsecase
type queueUsecase struct {
	itemRepo    repository.ItemRepository
	historyRepo repository.HistoryRepository
	policy      *deadline.Config
	engine      *snooze.Engine
	mailbox     MailboxService
	opts        Options

	locks        *itemLocks
	statsCache   *cache.Cache[*domain.QueueStatistics]
	historyCache *cache.Cache[[]*domain.QueueHistory]
	statsGroup   singleflight.Group
}

// NewQueueUsecase creates the queue store service. The deadline policy must
// be validated before it is passed in.
func NewQueueUsecase(itemRepo repository.ItemRepository, historyRepo repository.HistoryRepository, policy *deadline.Config, engine *snooze.Engine, opts Options) QueueUsecase {
	opts = opts.withDefaults()
	return &queueUsecase{
		itemRepo:     itemRepo,
		historyRepo:  historyRepo,
		policy:       policy,
		engine:       engine,
		opts:         opts,
		locks:        newItemLocks(),
		statsCache:   cache.New[*domain.QueueStatistics](1, opts.StatsTTL),
		historyCache: cache.New[[]*domain.QueueHistory](256, opts.HistoryTTL),
	}
}

func (u *queueUsecase) SetMailboxService(svc MailboxService) {
	u.mailbox = svc
}

func (u *queueUsecase) Add(ctx context.Context, req AddRequest) (*domain.QueueItem, error) {
	if req.EmailID == "" {
		return nil, fmt.Errorf("%w: email id is required", domain.ErrValidation)
	}
	priority := domain.Priority(req.Priority)
	if !priority.Valid() {
		return nil, fmt.Errorf("%w: unknown priority %q", domain.ErrValidation, req.Priority)
	}
	reason := domain.Reason(req.Reason)
	if req.Reason == "" {
		reason = domain.ReasonManual
	} else if !reason.Valid() {
		return nil, fmt.Errorf("%w: unknown admission reason %q", domain.ErrValidation, req.Reason)
	}
	now := time.Now()
	if req.SnoozeUntil != nil && !req.SnoozeUntil.After(now) {
		return nil, fmt.Errorf("%w: snooze timestamp %v is in the past", domain.ErrValidation, req.SnoozeUntil)
	}

	item := &domain.QueueItem{
		EmailID:    req.EmailID,
		ThreadID:   req.ThreadID,
		Subject:    req.Subject,
		Sender:     req.Sender,
		Recipient:  req.Recipient,
		Labels:     req.Labels,
		Priority:   priority,
		Category:   req.Category,
		Reason:     reason,
		Status:     domain.StatusActive,
		AddedAt:    now,
		ReceivedAt: now,
	}
	if req.ReceivedAt != nil {
		item.ReceivedAt = *req.ReceivedAt
	}

	// Hydrate the metadata snapshot from the mailbox when the caller did
	// not supply it.
	if item.Subject == "" && u.mailbox != nil {
		meta, err := u.mailbox.FetchMetadata(ctx, req.EmailID)
		if err != nil {
			return nil, fmt.Errorf("%w: mailbox fetch for %s: %v", domain.ErrCollaborator, req.EmailID, err)
		}
		item.Subject = meta.Subject
		item.Sender = meta.Sender
		item.Recipient = meta.Recipient
		if item.ThreadID == "" {
			item.ThreadID = meta.ThreadID
		}
		if !meta.ReceivedAt.IsZero() {
			item.ReceivedAt = meta.ReceivedAt
		}
		if len(item.Labels) == 0 {
			item.Labels = meta.Labels
		}
	}

	if req.SnoozeUntil != nil {
		item.Status = domain.StatusSnoozed
		item.SnoozeUntil = req.SnoozeUntil
		item.SnoozeCount = 1
	}

	if reason.HasSLA() {
		d, hours := u.policy.ComputeDeadline(now, string(priority), item.Sender)
		if d != nil {
			item.Deadline = d
			item.SLAHours = &hours
		}
	}
	u.refreshDerived(item, now)

	if err := u.itemRepo.Create(item); err != nil {
		return nil, fmt.Errorf("%w: create item: %v", domain.ErrCollaborator, err)
	}

	u.appendHistory(item.ID, domain.ActionAdded, "", item.Status, nil, nil, req.Actor, map[string]string{
		"reason":   string(reason),
		"priority": string(priority),
	})
	u.invalidate(item.ID)
	return item, nil
}

func (u *queueUsecase) Get(id string) (*domain.QueueItem, error) {
	item, err := u.itemRepo.FindByID(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCollaborator, err)
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}
	// Derived fields refresh on read only; queries never persist changes.
	u.refreshDerived(item, time.Now())
	return item, nil
}

func (u *queueUsecase) History(id string, limit int) ([]*domain.QueueHistory, error) {
	if limit <= 0 {
		if entries, ok := u.historyCache.Get(id); ok {
			return entries, nil
		}
	}
	entries, err := u.historyRepo.FindByItemID(id, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCollaborator, err)
	}
	if limit <= 0 {
		u.historyCache.Set(id, entries)
	}
	return entries, nil
}

func (u *queueUsecase) Query(filter domain.ItemFilter) ([]*domain.QueueItem, int64, error) {
	if filter.Limit > u.opts.MaxPageSize {
		return nil, 0, fmt.Errorf("%w: page size %d exceeds maximum %d", domain.ErrValidation, filter.Limit, u.opts.MaxPageSize)
	}
	if filter.Limit <= 0 {
		filter.Limit = u.opts.DefaultPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	items, total, err := u.itemRepo.Query(filter)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", domain.ErrCollaborator, err)
	}
	now := time.Now()
	for _, item := range items {
		u.refreshDerived(item, now)
	}
	return items, total, nil
}

func (u *queueUsecase) Update(id string, req UpdateRequest, actor string) (*domain.QueueItem, error) {
	if req.Priority != nil && !domain.Priority(*req.Priority).Valid() {
		return nil, fmt.Errorf("%w: unknown priority %q", domain.ErrValidation, *req.Priority)
	}
	if req.Reason != nil && !domain.Reason(*req.Reason).Valid() {
		return nil, fmt.Errorf("%w: unknown admission reason %q", domain.ErrValidation, *req.Reason)
	}

	release, err := u.locks.acquire(id, u.opts.WaitOnConflict)
	if err != nil {
		return nil, err
	}
	defer release()

	item, err := u.loadLocked(id)
	if err != nil {
		return nil, err
	}

	fromPriority := item.Priority
	changed := map[string]string{}
	if req.Subject != nil {
		item.Subject = *req.Subject
		changed["subject"] = *req.Subject
	}
	if req.Category != nil {
		item.Category = *req.Category
		changed["category"] = *req.Category
	}
	if req.Reason != nil {
		item.Reason = domain.Reason(*req.Reason)
		changed["reason"] = *req.Reason
	}

	now := time.Now()
	var toPriority *domain.Priority
	if req.Priority != nil && domain.Priority(*req.Priority) != item.Priority {
		item.Priority = domain.Priority(*req.Priority)
		toPriority = &item.Priority
		changed["priority"] = *req.Priority
		// Reclassification recomputes the deadline from scratch, from
		// the original admission time.
		u.applyDeadline(item, item.AddedAt)
	}
	u.refreshDerived(item, now)

	if err := u.itemRepo.Update(item); err != nil {
		return nil, fmt.Errorf("%w: update item: %v", domain.ErrCollaborator, err)
	}

	var fromP *domain.Priority
	if toPriority != nil {
		fromP = &fromPriority
	}
	u.appendHistory(id, domain.ActionUpdated, item.Status, item.Status, fromP, toPriority, actor, changed)
	u.invalidate(id)
	return item, nil
}

func (u *queueUsecase) Remove(id, actor string) error {
	release, err := u.locks.acquire(id, u.opts.WaitOnConflict)
	if err != nil {
		return err
	}
	defer release()

	item, err := u.loadLocked(id)
	if err != nil {
		return err
	}
	if !item.Status.Terminal() {
		return fmt.Errorf("%w: cannot delete %s item %s; complete it first", domain.ErrValidation, item.Status, id)
	}
	if err := u.itemRepo.Delete(id); err != nil {
		return fmt.Errorf("%w: delete item: %v", domain.ErrCollaborator, err)
	}
	u.appendHistory(id, domain.ActionRemoved, item.Status, item.Status, nil, nil, actor, nil)
	u.invalidate(id)
	return nil
}

func (u *queueUsecase) Snooze(id string, until time.Time, reason, actor string) (*domain.QueueItem, error) {
	if !until.After(time.Now()) {
		return nil, fmt.Errorf("%w: snooze timestamp %v is in the past", domain.ErrValidation, until)
	}
	return u.transition(id, domain.StatusSnoozed, domain.ActionSnoozed, actor,
		func(item *domain.QueueItem) {
			item.SnoozeUntil = &until
			item.SnoozeReason = reason
			item.SnoozeCount++
		},
		map[string]string{"until": until.Format(time.RFC3339)})
}

func (u *queueUsecase) Unsnooze(id, actor string) (*domain.QueueItem, error) {
	return u.transition(id, domain.StatusActive, domain.ActionUnsnoozed, actor, nil, nil)
}

func (u *queueUsecase) Complete(id, actor string) (*domain.QueueItem, error) {
	return u.transition(id, domain.StatusCompleted, domain.ActionCompleted, actor, nil, nil)
}

func (u *queueUsecase) MarkWaiting(id, target, reason, actor string) (*domain.QueueItem, error) {
	if target == "" {
		return nil, fmt.Errorf("%w: waiting target is required", domain.ErrValidation)
	}
	return u.transition(id, domain.StatusWaiting, domain.ActionMarkedWaiting, actor,
		func(item *domain.QueueItem) {
			item.WaitingOn = target
			item.WaitingReason = reason
		},
		map[string]string{"waiting_on": target})
}

func (u *queueUsecase) MarkReplyReceived(id, actor string) (*domain.QueueItem, error) {
	return u.transition(id, domain.StatusActive, domain.ActionReplyReceived, actor,
		func(item *domain.QueueItem) {
			item.WaitingOn = ""
			item.WaitingReason = ""
		}, nil)
}

func (u *queueUsecase) Escalate(id string, newPriority domain.Priority, actor string) (*domain.QueueItem, error) {
	if newPriority != "" && !newPriority.Valid() {
		return nil, fmt.Errorf("%w: unknown priority %q", domain.ErrValidation, newPriority)
	}
	return u.transition(id, domain.StatusEscalated, domain.ActionEscalated, actor,
		func(item *domain.QueueItem) {
			target := newPriority
			if target == "" {
				target = item.Priority.Bump()
			}
			item.Priority = target
			// Escalation re-runs the deadline policy from the escalation
			// time: a fresh, shorter budget for the bumped priority.
			u.applyDeadline(item, time.Now())
		}, nil)
}

func (u *queueUsecase) BulkSnooze(ids []string, until time.Time, reason, actor string) *BulkResult {
	result := &BulkResult{}
	for _, id := range ids {
		if _, err := u.Snooze(id, until, reason, actor); err != nil {
			result.Failed = append(result.Failed, BulkFailure{ID: id, Error: err.Error()})
		} else {
			result.Succeeded = append(result.Succeeded, id)
		}
	}
	return result
}

func (u *queueUsecase) BulkComplete(ids []string, actor string) *BulkResult {
	result := &BulkResult{}
	for _, id := range ids {
		if _, err := u.Complete(id, actor); err != nil {
			result.Failed = append(result.Failed, BulkFailure{ID: id, Error: err.Error()})
		} else {
			result.Succeeded = append(result.Succeeded, id)
		}
	}
	return result
}

func (u *queueUsecase) Statistics(force bool) (*domain.QueueStatistics, error) {
	if !force {
		if stats, ok := u.statsCache.Get(statsKey); ok {
			return stats, nil
		}
	}

	v, err, _ := u.statsGroup.Do(statsKey, func() (interface{}, error) {
		items, err := u.itemRepo.FindAll()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrCollaborator, err)
		}
		now := time.Now()
		for _, item := range items {
			u.refreshDerived(item, now)
		}
		stats := domain.ComputeStatistics(items, now)
		u.statsCache.Set(statsKey, stats)
		return stats, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.QueueStatistics), nil
}

func (u *queueUsecase) SuggestSnooze(ctx context.Context, id string) (*snooze.Suggestion, error) {
	item, err := u.Get(id)
	if err != nil {
		return nil, err
	}

	// The advisory call carries external latency; run it outside any item
	// lock and apply the result under a short one.
	suggestion := u.engine.Suggest(ctx, item, time.Now())

	release, err := u.locks.acquire(id, u.opts.WaitOnConflict)
	if err != nil {
		return nil, err
	}
	defer release()

	item, err = u.loadLocked(id)
	if err != nil {
		return nil, err
	}
	item.SuggestedAt = &suggestion.Time
	item.SuggestionReason = suggestion.Reasoning
	item.SuggestionConfidence = &suggestion.Confidence
	item.SuggestionSource = suggestion.Source
	if err := u.itemRepo.Update(item); err != nil {
		return nil, fmt.Errorf("%w: update item: %v", domain.ErrCollaborator, err)
	}
	u.appendHistory(id, domain.ActionSuggested, item.Status, item.Status, nil, nil, "engine", map[string]string{
		"time":   suggestion.Time.Format(time.RFC3339),
		"source": suggestion.Source,
	})
	u.invalidate(id)
	return suggestion, nil
}

func (u *queueUsecase) AcceptSuggestion(id string, chosen time.Time, actor string) (*domain.QueueItem, error) {
	before, err := u.Get(id)
	if err != nil {
		return nil, err
	}

	item, err := u.transition(id, domain.StatusSnoozed, domain.ActionSuggestionAccepted, actor,
		func(it *domain.QueueItem) {
			it.SnoozeUntil = &chosen
			it.SnoozeReason = "accepted suggestion"
			it.SnoozeCount++
		},
		map[string]string{"until": chosen.Format(time.RFC3339)})
	if err != nil {
		return nil, err
	}

	// Feed the user's choice back so future suggestions drift toward it.
	if before.SuggestedAt != nil {
		u.engine.Learn(item.Category, *before.SuggestedAt, chosen)
	}
	return item, nil
}

func (u *queueUsecase) QuickPresets() []snooze.Preset {
	return u.engine.QuickPresets(time.Now())
}

func (u *queueUsecase) ResurfaceDueSnoozed(now time.Time) (int, error) {
	due, err := u.itemRepo.FindDueSnoozed(now)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrCollaborator, err)
	}
	count := 0
	for _, item := range due {
		if _, err := u.transition(item.ID, domain.StatusActive, domain.ActionResurfaced, "sweep", nil, nil); err != nil {
			log.Printf("[QueueStore] Failed to resurface item %s: %v", item.ID, err)
			continue
		}
		count++
	}
	return count, nil
}

func (u *queueUsecase) RefreshDeadlineStatuses(now time.Time) (int, int, error) {
	items, err := u.itemRepo.FindByStatuses([]domain.Status{domain.StatusActive, domain.StatusWaiting, domain.StatusEscalated})
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", domain.ErrCollaborator, err)
	}

	escalated, refreshed := 0, 0
	for _, item := range items {
		if item.Deadline == nil || item.SLAHours == nil {
			continue
		}
		old := item.DeadlineStatus
		status := domain.DeadlineStatus(u.policy.Evaluate(now, *item.Deadline, *item.SLAHours))

		if status == domain.DeadlineOverdue && old != domain.DeadlineOverdue &&
			domain.CanTransition(item.Status, domain.StatusEscalated) {
			if _, err := u.Escalate(item.ID, "", "sweep"); err != nil {
				log.Printf("[QueueStore] Failed to escalate overdue item %s: %v", item.ID, err)
				continue
			}
			escalated++
			continue
		}

		if status == old {
			continue
		}
		if err := u.persistDeadlineStatus(item.ID, now); err != nil {
			log.Printf("[QueueStore] Failed to refresh deadline status for item %s: %v", item.ID, err)
			continue
		}
		refreshed++
	}
	return escalated, refreshed, nil
}

func (u *queueUsecase) ArchiveCompletedBefore(cutoff time.Time) (int, error) {
	expired, err := u.itemRepo.FindCompletedBefore(cutoff)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrCollaborator, err)
	}
	count := 0
	for _, item := range expired {
		if _, err := u.transition(item.ID, domain.StatusArchived, domain.ActionArchived, "sweep", nil, nil); err != nil {
			log.Printf("[QueueStore] Failed to archive item %s: %v", item.ID, err)
			continue
		}
		count++
	}
	return count, nil
}

func (u *queueUsecase) PruneHistoryBefore(cutoff time.Time) (int64, error) {
	dropped, err := u.historyRepo.DeleteOlderThan(cutoff)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrCollaborator, err)
	}
	if dropped > 0 {
		u.historyCache.Purge()
	}
	return dropped, nil
}

// transition applies one state machine step under the item's lock. The
// mutate hook runs after the transition is validated and before persistence;
// it must not fail.
func (u *queueUsecase) transition(id string, to domain.Status, action, actor string, mutate func(*domain.QueueItem), meta map[string]string) (*domain.QueueItem, error) {
	release, err := u.locks.acquire(id, u.opts.WaitOnConflict)
	if err != nil {
		return nil, err
	}
	defer release()

	item, err := u.loadLocked(id)
	if err != nil {
		return nil, err
	}

	from := item.Status
	if !domain.CanTransition(from, to) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, from, to)
	}

	fromPriority := item.Priority
	now := time.Now()
	item.Status = to
	item.LastActionAt = &now
	item.ActionCount++
	if to != domain.StatusSnoozed {
		item.SnoozeUntil = nil
		item.SnoozeReason = ""
	}
	if mutate != nil {
		mutate(item)
	}
	u.refreshDerived(item, now)

	if err := u.itemRepo.Update(item); err != nil {
		return nil, fmt.Errorf("%w: update item: %v", domain.ErrCollaborator, err)
	}

	var fromP, toP *domain.Priority
	if item.Priority != fromPriority {
		fromP = &fromPriority
		p := item.Priority
		toP = &p
	}
	u.appendHistory(id, action, from, to, fromP, toP, actor, meta)
	u.invalidate(id)
	return item, nil
}

// loadLocked fetches an item inside a held lock, normalizing the not-found
// and collaborator error kinds.
func (u *queueUsecase) loadLocked(id string) (*domain.QueueItem, error) {
	item, err := u.itemRepo.FindByID(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCollaborator, err)
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}
	return item, nil
}

// applyDeadline recomputes the deadline and allowance for the item's current
// priority from the given reference time.
func (u *queueUsecase) applyDeadline(item *domain.QueueItem, from time.Time) {
	d, hours := u.policy.ComputeDeadline(from, string(item.Priority), item.Sender)
	if d == nil {
		item.Deadline = nil
		item.SLAHours = nil
		return
	}
	item.Deadline = d
	item.SLAHours = &hours
}

// refreshDerived recomputes deadline status and remaining hours. Items
// without a deadline always read on-time with no remaining time.
func (u *queueUsecase) refreshDerived(item *domain.QueueItem, now time.Time) {
	if item.Deadline == nil || item.SLAHours == nil {
		item.DeadlineStatus = domain.DeadlineOnTime
		item.HoursRemaining = nil
		return
	}
	item.DeadlineStatus = domain.DeadlineStatus(u.policy.Evaluate(now, *item.Deadline, *item.SLAHours))
	remaining := deadline.RemainingHours(now, *item.Deadline)
	item.HoursRemaining = &remaining
}

// persistDeadlineStatus stores freshly derived deadline fields without
// counting it as a user action.
func (u *queueUsecase) persistDeadlineStatus(id string, now time.Time) error {
	release, err := u.locks.acquire(id, u.opts.WaitOnConflict)
	if err != nil {
		return err
	}
	defer release()

	item, err := u.loadLocked(id)
	if err != nil {
		return err
	}
	u.refreshDerived(item, now)
	if err := u.itemRepo.Update(item); err != nil {
		return fmt.Errorf("%w: update item: %v", domain.ErrCollaborator, err)
	}
	u.invalidate(id)
	return nil
}

// appendHistory writes the audit entry for a mutation. Audit failures are
// logged, not propagated; the mutation itself has already been persisted.
func (u *queueUsecase) appendHistory(itemID, action string, from, to domain.Status, fromPriority, toPriority *domain.Priority, actor string, meta map[string]string) {
	entry := &domain.QueueHistory{
		ItemID:       itemID,
		Action:       action,
		FromStatus:   from,
		ToStatus:     to,
		FromPriority: fromPriority,
		ToPriority:   toPriority,
		Actor:        actor,
		Metadata:     meta,
		CreatedAt:    time.Now(),
	}
	if err := u.historyRepo.Append(entry); err != nil {
		log.Printf("[QueueStore] Failed to append history for item %s (%s): %v", itemID, action, err)
	}
}

// invalidate drops caches touched by a write to the given item
func (u *queueUsecase) invalidate(id string) {
	u.statsCache.Invalidate(statsKey)
	u.historyCache.Invalidate(id)
}
