package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/xiaokaoba/shenlun-go-api/internal/models"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// HistoryRepository exposes persistence helpers for archived interactions.
type HistoryRepository interface {
	Create(ctx context.Context, record *models.GradingHistory) error
	List(ctx context.Context, limit int) ([]models.GradingHistory, error)
	GetByID(ctx context.Context, id string) (*models.GradingHistory, error)
	DeleteAll(ctx context.Context) (int64, error)
}

type historyRepository struct {
	db *gorm.DB
}

// NewHistoryRepository constructs the repository implementation.
func NewHistoryRepository(db *gorm.DB) HistoryRepository {
	return &historyRepository{db: db}
}

func (r *historyRepository) Create(ctx context.Context, record *models.GradingHistory) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *historyRepository) List(ctx context.Context, limit int) ([]models.GradingHistory, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	var records []models.GradingHistory
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *historyRepository) GetByID(ctx context.Context, id string) (*models.GradingHistory, error) {
	var record models.GradingHistory
	if err := r.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *historyRepository) DeleteAll(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).Where("1 = 1").Delete(&models.GradingHistory{})
	return result.RowsAffected, result.Error
}
