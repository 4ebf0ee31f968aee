package repository

import (
	"sort"
	"sync"
	"time"

	"followq-backend/internal/queue/domain"

	"github.com/google/uuid"
)

// memoryItemRepository implements ItemRepository in process memory. It backs
// tests and database-less development; the filter and sort semantics are the
// domain package's, so both backends answer queries identically.
type memoryItemRepository struct {
	mu    sync.RWMutex
	items map[string]*domain.QueueItem
}

// NewMemoryItemRepository creates an in-memory ItemRepository
func NewMemoryItemRepository() ItemRepository {
	return &memoryItemRepository{items: make(map[string]*domain.QueueItem)}
}

func (r *memoryItemRepository) Create(item *domain.QueueItem) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	item.CreatedAt = time.Now()
	item.UpdatedAt = time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *item
	r.items[item.ID] = &clone
	return nil
}

func (r *memoryItemRepository) FindByID(id string) (*domain.QueueItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.items[id]
	if !ok {
		return nil, nil
	}
	clone := *item
	return &clone, nil
}

func (r *memoryItemRepository) Query(filter domain.ItemFilter) ([]*domain.QueueItem, int64, error) {
	r.mu.RLock()
	var matched []*domain.QueueItem
	for _, item := range r.items {
		if filter.Matches(item) {
			clone := *item
			matched = append(matched, &clone)
		}
	}
	r.mu.RUnlock()

	domain.SortItems(matched)
	total := int64(len(matched))

	offset := filter.Offset
	if offset > len(matched) {
		offset = len(matched)
	}
	matched = matched[offset:]
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

func (r *memoryItemRepository) FindAll() ([]*domain.QueueItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	items := make([]*domain.QueueItem, 0, len(r.items))
	for _, item := range r.items {
		clone := *item
		items = append(items, &clone)
	}
	return items, nil
}

func (r *memoryItemRepository) FindDueSnoozed(now time.Time) ([]*domain.QueueItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var due []*domain.QueueItem
	for _, item := range r.items {
		if item.Status == domain.StatusSnoozed && item.SnoozeUntil != nil && !item.SnoozeUntil.After(now) {
			clone := *item
			due = append(due, &clone)
		}
	}
	return due, nil
}

func (r *memoryItemRepository) FindByStatuses(statuses []domain.Status) ([]*domain.QueueItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.QueueItem
	for _, item := range r.items {
		for _, s := range statuses {
			if item.Status == s {
				clone := *item
				out = append(out, &clone)
				break
			}
		}
	}
	return out, nil
}

func (r *memoryItemRepository) FindCompletedBefore(cutoff time.Time) ([]*domain.QueueItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.QueueItem
	for _, item := range r.items {
		if item.Status == domain.StatusCompleted && item.LastActionAt != nil && !item.LastActionAt.After(cutoff) {
			clone := *item
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *memoryItemRepository) Update(item *domain.QueueItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[item.ID]; !ok {
		return domain.ErrNotFound
	}
	item.UpdatedAt = time.Now()
	clone := *item
	r.items[item.ID] = &clone
	return nil
}

func (r *memoryItemRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
	return nil
}

// memoryHistoryRepository implements HistoryRepository in process memory
type memoryHistoryRepository struct {
	mu      sync.RWMutex
	entries []*domain.QueueHistory
}

// NewMemoryHistoryRepository creates an in-memory HistoryRepository
func NewMemoryHistoryRepository() HistoryRepository {
	return &memoryHistoryRepository{}
}

func (r *memoryHistoryRepository) Append(entry *domain.QueueHistory) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *entry
	r.entries = append(r.entries, &clone)
	return nil
}

func (r *memoryHistoryRepository) FindByItemID(itemID string, limit int) ([]*domain.QueueHistory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.QueueHistory
	for i := len(r.entries) - 1; i >= 0; i-- {
		if e := r.entries[i]; e.ItemID == itemID {
			clone := *e
			out = append(out, &clone)
		}
	}
	// Stable on ties so same-instant entries keep reverse append order.
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryHistoryRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []*domain.QueueHistory
	var dropped int64
	for _, e := range r.entries {
		if e.CreatedAt.Before(cutoff) {
			dropped++
			continue
		}
		kept = append(kept, e)
	}
	r.entries = kept
	return dropped, nil
}
