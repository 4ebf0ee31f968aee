package repository

import (
	"time"

	"followq-backend/internal/queue/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// gormHistoryRepository implements HistoryRepository using GORM
type gormHistoryRepository struct {
	db *gorm.DB
}

// NewGormHistoryRepository creates a new GORM-based HistoryRepository
func NewGormHistoryRepository(db *gorm.DB) HistoryRepository {
	return &gormHistoryRepository{db: db}
}

func (r *gormHistoryRepository) Append(entry *domain.QueueHistory) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	return r.db.Create(entry).Error
}

func (r *gormHistoryRepository) FindByItemID(itemID string, limit int) ([]*domain.QueueHistory, error) {
	var entries []*domain.QueueHistory
	query := r.db.Where("item_id = ?", itemID).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&entries).Error
	return entries, err
}

func (r *gormHistoryRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result := r.db.Where("created_at < ?", cutoff).Delete(&domain.QueueHistory{})
	return result.RowsAffected, result.Error
}
