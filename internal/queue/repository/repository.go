package repository

import (
	"time"

	"followq-backend/internal/queue/domain"
)

// ItemRepository defines data access for queue items. Implementations must
// return (nil, nil) from FindByID when no item exists.
type ItemRepository interface {
	// Create persists a new queue item
	Create(item *domain.QueueItem) error

	// FindByID finds an item by its id
	FindByID(id string) (*domain.QueueItem, error)

	// Query returns the filtered page in canonical queue order plus the
	// total match count before pagination
	Query(filter domain.ItemFilter) ([]*domain.QueueItem, int64, error)

	// FindAll returns every item; used for statistics aggregation
	FindAll() ([]*domain.QueueItem, error)

	// FindDueSnoozed returns snoozed items whose snooze_until has passed
	FindDueSnoozed(now time.Time) ([]*domain.QueueItem, error)

	// FindByStatuses returns all items in any of the given statuses
	FindByStatuses(statuses []domain.Status) ([]*domain.QueueItem, error)

	// FindCompletedBefore returns completed items whose last action is
	// older than cutoff; used by the archival sweep
	FindCompletedBefore(cutoff time.Time) ([]*domain.QueueItem, error)

	// Update persists changed fields of an existing item
	Update(item *domain.QueueItem) error

	// Delete hard-deletes an item by id
	Delete(id string) error
}

// HistoryRepository defines access to the append-only audit trail
type HistoryRepository interface {
	// Append writes one audit entry; entries are never updated
	Append(entry *domain.QueueHistory) error

	// FindByItemID returns an item's entries, newest first
	FindByItemID(itemID string, limit int) ([]*domain.QueueHistory, error)

	// DeleteOlderThan removes entries past the retention window,
	// returning how many were dropped
	DeleteOlderThan(cutoff time.Time) (int64, error)
}
