package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/xiaokaoba/shenlun-go-api/internal/models"
)

// QuestionRepository exposes persistence helpers for the question bank.
type QuestionRepository interface {
	ListByType(ctx context.Context, questionType string, limit int) ([]models.Question, error)
	Random(ctx context.Context, limit int, excludeIDs []string) ([]models.Question, error)
	GetByID(ctx context.Context, id string) (*models.Question, error)
	Create(ctx context.Context, question *models.Question) error
	AttachImage(ctx context.Context, image *models.QuestionImage) error
}

type questionRepository struct {
	db *gorm.DB
}

// NewQuestionRepository constructs the repository implementation.
func NewQuestionRepository(db *gorm.DB) QuestionRepository {
	return &questionRepository{db: db}
}

func (r *questionRepository) ListByType(ctx context.Context, questionType string, limit int) ([]models.Question, error) {
	query := r.db.WithContext(ctx).Preload("Images")
	if questionType != "" {
		query = query.Where("question_type = ?", questionType)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var questions []models.Question
	if err := query.Order("question_number ASC, id ASC").Find(&questions).Error; err != nil {
		return nil, err
	}
	return questions, nil
}

func (r *questionRepository) Random(ctx context.Context, limit int, excludeIDs []string) ([]models.Question, error) {
	query := r.db.WithContext(ctx).Preload("Images")
	if len(excludeIDs) > 0 {
		query = query.Where("id NOT IN ?", excludeIDs)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var questions []models.Question
	if err := query.Order("RANDOM()").Find(&questions).Error; err != nil {
		return nil, err
	}
	return questions, nil
}

func (r *questionRepository) GetByID(ctx context.Context, id string) (*models.Question, error) {
	var question models.Question
	if err := r.db.WithContext(ctx).Preload("Images").First(&question, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &question, nil
}

func (r *questionRepository) Create(ctx context.Context, question *models.Question) error {
	return r.db.WithContext(ctx).Create(question).Error
}

func (r *questionRepository) AttachImage(ctx context.Context, image *models.QuestionImage) error {
	return r.db.WithContext(ctx).Create(image).Error
}
