package repository

import (
	"time"

	"followq-backend/internal/queue/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// priorityRankExpr sorts priorities by urgency in SQL; keep in sync with
// Priority.Rank.
const priorityRankExpr = "CASE priority WHEN 'critical' THEN 4 WHEN 'high' THEN 3 WHEN 'medium' THEN 2 WHEN 'low' THEN 1 ELSE 0 END"

// canonicalOrder is the queue ordering: priority desc, deadline asc with
// missing deadlines last, received date desc.
const canonicalOrder = priorityRankExpr + " DESC, CASE WHEN deadline IS NULL THEN 1 ELSE 0 END, deadline ASC, received_at DESC"

// gormItemRepository implements ItemRepository using GORM
type gormItemRepository struct {
	db *gorm.DB
}

// NewGormItemRepository creates a new GORM-based ItemRepository
func NewGormItemRepository(db *gorm.DB) ItemRepository {
	return &gormItemRepository{db: db}
}

func (r *gormItemRepository) Create(item *domain.QueueItem) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	item.CreatedAt = time.Now()
	item.UpdatedAt = time.Now()
	return r.db.Create(item).Error
}

func (r *gormItemRepository) FindByID(id string) (*domain.QueueItem, error) {
	var item domain.QueueItem
	err := r.db.Where("id = ?", id).First(&item).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func (r *gormItemRepository) Query(filter domain.ItemFilter) ([]*domain.QueueItem, int64, error) {
	var items []*domain.QueueItem
	var total int64

	query := r.db.Model(&domain.QueueItem{})
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	if len(filter.Priorities) > 0 {
		query = query.Where("priority IN ?", filter.Priorities)
	}
	if len(filter.Categories) > 0 {
		query = query.Where("category IN ?", filter.Categories)
	}
	if len(filter.DeadlineStatuses) > 0 {
		query = query.Where("deadline IS NOT NULL AND deadline_status IN ?", filter.DeadlineStatuses)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("subject ILIKE ? OR sender ILIKE ?", like, like)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order(canonicalOrder).
		Limit(filter.Limit).Offset(filter.Offset).Find(&items).Error

	return items, total, err
}

func (r *gormItemRepository) FindAll() ([]*domain.QueueItem, error) {
	var items []*domain.QueueItem
	err := r.db.Find(&items).Error
	return items, err
}

func (r *gormItemRepository) FindDueSnoozed(now time.Time) ([]*domain.QueueItem, error) {
	var items []*domain.QueueItem
	err := r.db.Where("status = ? AND snooze_until <= ?", domain.StatusSnoozed, now).Find(&items).Error
	return items, err
}

func (r *gormItemRepository) FindByStatuses(statuses []domain.Status) ([]*domain.QueueItem, error) {
	var items []*domain.QueueItem
	err := r.db.Where("status IN ?", statuses).Find(&items).Error
	return items, err
}

func (r *gormItemRepository) FindCompletedBefore(cutoff time.Time) ([]*domain.QueueItem, error) {
	var items []*domain.QueueItem
	err := r.db.Where("status = ? AND last_action_at <= ?", domain.StatusCompleted, cutoff).Find(&items).Error
	return items, err
}

func (r *gormItemRepository) Update(item *domain.QueueItem) error {
	item.UpdatedAt = time.Now()
	return r.db.Save(item).Error
}

func (r *gormItemRepository) Delete(id string) error {
	return r.db.Delete(&domain.QueueItem{}, "id = ?", id).Error
}
