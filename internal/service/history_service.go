package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/xiaokaoba/shenlun-go-api/internal/dto"
	"github.com/xiaokaoba/shenlun-go-api/internal/models"
	"github.com/xiaokaoba/shenlun-go-api/internal/repository"
)

// ErrHistoryNotFound indicates the requested history record does not exist.
var ErrHistoryNotFound = errors.New("history record not found")

// HistoryAppend is one interaction to archive.
type HistoryAppend struct {
	Kind         string
	QuestionType string
	Score        *float64
	Request      interface{}
	Response     interface{}
	Extra        interface{}
}

// HistoryService archives and serves past grading interactions.
type HistoryService interface {
	Append(ctx context.Context, entry HistoryAppend) (string, error)
	List(ctx context.Context, limit int) ([]dto.HistoryItemResponse, error)
	Get(ctx context.Context, id string) (dto.HistoryDetailResponse, error)
	Clear(ctx context.Context) (int64, error)
}

type historyService struct {
	repo   repository.HistoryRepository
	logger zerolog.Logger
	now    func() time.Time
}

// NewHistoryService constructs the history service.
func NewHistoryService(repo repository.HistoryRepository, logger zerolog.Logger) HistoryService {
	return &historyService{
		repo:   repo,
		logger: logger.With().Str("component", "history_service").Logger(),
		now:    time.Now,
	}
}

func (s *historyService) Append(ctx context.Context, entry HistoryAppend) (string, error) {
	record := models.GradingHistory{
		ID:           uuid.NewString(),
		Kind:         entry.Kind,
		QuestionType: entry.QuestionType,
		Score:        entry.Score,
		CreatedAt:    s.now(),
	}

	var err error
	if record.Request, err = encodeHistoryField(entry.Request); err != nil {
		return "", err
	}
	if record.Response, err = encodeHistoryField(entry.Response); err != nil {
		return "", err
	}
	if record.Extra, err = encodeHistoryField(entry.Extra); err != nil {
		return "", err
	}

	if err := s.repo.Create(ctx, &record); err != nil {
		return "", err
	}
	return record.ID, nil
}

func (s *historyService) List(ctx context.Context, limit int) ([]dto.HistoryItemResponse, error) {
	records, err := s.repo.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	return dto.NewHistoryItemResponseSlice(records), nil
}

func (s *historyService) Get(ctx context.Context, id string) (dto.HistoryDetailResponse, error) {
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.HistoryDetailResponse{}, ErrHistoryNotFound
		}
		return dto.HistoryDetailResponse{}, err
	}
	return dto.NewHistoryDetailResponse(*record), nil
}

func (s *historyService) Clear(ctx context.Context) (int64, error) {
	deleted, err := s.repo.DeleteAll(ctx)
	if err != nil {
		return 0, err
	}
	s.logger.Info().Int64("deleted", deleted).Msg("history cleared")
	return deleted, nil
}

func encodeHistoryField(value interface{}) ([]byte, error) {
	if value == nil {
		return nil, nil
	}
	return json.Marshal(value)
}
