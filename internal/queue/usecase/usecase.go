package usecase

import (
	"context"
	"time"

	"followq-backend/internal/queue/domain"
	"followq-backend/internal/snooze"
)

// QueueUsecase defines the follow-up queue's operation set. It is the only
// writer of queue state; the scheduler sweep and the HTTP delivery both go
// through it.
type QueueUsecase interface {
	// Add admits a classified item into the queue and returns it with its
	// assigned id and deadline
	Add(ctx context.Context, req AddRequest) (*domain.QueueItem, error)

	// Get retrieves one item with freshly derived deadline fields
	Get(id string) (*domain.QueueItem, error)

	// History returns an item's audit trail, newest first
	History(id string, limit int) ([]*domain.QueueHistory, error)

	// Query returns a filtered, canonically sorted page and the total count
	Query(filter domain.ItemFilter) ([]*domain.QueueItem, int64, error)

	// Update merges changed fields; a priority change recomputes the deadline
	Update(id string, req UpdateRequest, actor string) (*domain.QueueItem, error)

	// Remove hard-deletes an item; permitted from terminal states only
	Remove(id, actor string) error

	// Lifecycle transitions; each fails with ErrInvalidTransition when the
	// state machine forbids it, leaving the item untouched
	Snooze(id string, until time.Time, reason, actor string) (*domain.QueueItem, error)
	Unsnooze(id, actor string) (*domain.QueueItem, error)
	Complete(id, actor string) (*domain.QueueItem, error)
	MarkWaiting(id, target, reason, actor string) (*domain.QueueItem, error)
	MarkReplyReceived(id, actor string) (*domain.QueueItem, error)
	Escalate(id string, newPriority domain.Priority, actor string) (*domain.QueueItem, error)

	// Bulk operations apply per item with partial-failure semantics
	BulkSnooze(ids []string, until time.Time, reason, actor string) *BulkResult
	BulkComplete(ids []string, actor string) *BulkResult

	// Statistics returns the cached aggregate, recomputing when stale or forced
	Statistics(force bool) (*domain.QueueStatistics, error)

	// SuggestSnooze asks the suggestion engine for a resurfacing time and
	// records it as the item's suggestion metadata
	SuggestSnooze(ctx context.Context, id string) (*snooze.Suggestion, error)

	// AcceptSuggestion snoozes the item until the chosen time and feeds the
	// choice back into the suggestion engine
	AcceptSuggestion(id string, chosen time.Time, actor string) (*domain.QueueItem, error)

	// QuickPresets lists the fixed snooze offsets
	QuickPresets() []snooze.Preset

	// Sweep support; each call is independently retryable and skips
	// individual failing items
	ResurfaceDueSnoozed(now time.Time) (int, error)
	RefreshDeadlineStatuses(now time.Time) (escalated, refreshed int, err error)
	ArchiveCompletedBefore(cutoff time.Time) (int, error)
	PruneHistoryBefore(cutoff time.Time) (int64, error)

	// SetMailboxService wires the mailbox pull collaborator
	SetMailboxService(svc MailboxService)
}

// AddRequest is the admission payload for a classified item
type AddRequest struct {
	EmailID    string     `json:"email_id"`
	ThreadID   string     `json:"thread_id,omitempty"`
	Subject    string     `json:"subject,omitempty"`
	Sender     string     `json:"sender,omitempty"`
	Recipient  string     `json:"recipient,omitempty"`
	ReceivedAt *time.Time `json:"received_at,omitempty"`
	Labels     []string   `json:"labels,omitempty"`

	Priority string `json:"priority"`
	Category string `json:"category,omitempty"`
	Reason   string `json:"reason,omitempty"`

	// SnoozeUntil admits the item directly snoozed; must be in the future
	SnoozeUntil *time.Time `json:"snooze_until,omitempty"`

	Actor string `json:"actor,omitempty"`
}

// UpdateRequest represents the fields a partial update may change
type UpdateRequest struct {
	Subject  *string `json:"subject,omitempty"`
	Category *string `json:"category,omitempty"`
	Priority *string `json:"priority,omitempty"`
	Reason   *string `json:"reason,omitempty"`
}

// BulkFailure records one failed id inside a bulk operation
type BulkFailure struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// BulkResult reports per-item outcomes; successes are never rolled back
// because another id failed.
type BulkResult struct {
	Succeeded []string      `json:"succeeded"`
	Failed    []BulkFailure `json:"failed"`
}

// EmailMetadata is the snapshot pulled from the mailbox at admission time
type EmailMetadata struct {
	Subject    string
	Sender     string
	Recipient  string
	ThreadID   string
	ReceivedAt time.Time
	Labels     []string
}

// MailboxService is the pull interface to the mailbox collaborator. The
// queue never pushes changes back through it.
type MailboxService interface {
	FetchMetadata(ctx context.Context, messageID string) (*EmailMetadata, error)
}
