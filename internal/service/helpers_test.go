package service

import (
	"context"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/xiaokaoba/shenlun-go-api/internal/models"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

type fakeHistoryRepo struct {
	records []models.GradingHistory
}

func (f *fakeHistoryRepo) Create(_ context.Context, record *models.GradingHistory) error {
	f.records = append(f.records, *record)
	return nil
}

func (f *fakeHistoryRepo) List(_ context.Context, limit int) ([]models.GradingHistory, error) {
	if limit > 0 && limit < len(f.records) {
		return f.records[:limit], nil
	}
	return f.records, nil
}

func (f *fakeHistoryRepo) GetByID(_ context.Context, id string) (*models.GradingHistory, error) {
	for i := range f.records {
		if f.records[i].ID == id {
			return &f.records[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeHistoryRepo) DeleteAll(_ context.Context) (int64, error) {
	count := int64(len(f.records))
	f.records = nil
	return count, nil
}
