package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/xiaokaoba/shenlun-go-api/internal/dto"
	"github.com/xiaokaoba/shenlun-go-api/internal/models"
	"github.com/xiaokaoba/shenlun-go-api/internal/repository"
	"github.com/xiaokaoba/shenlun-go-api/pkg/ai"
)

var (
	// ErrQuestionNotFound indicates the question does not exist in the bank.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrImageTypeNotAllowed indicates the uploaded file is not an image.
	ErrImageTypeNotAllowed = errors.New("image type not allowed")
	// ErrUploaderUnavailable indicates no image storage is configured.
	ErrUploaderUnavailable = errors.New("image uploader not configured")
)

const maxQuestionImageBytes = 10 * 1024 * 1024

var allowedImageMimes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/webp": true,
	"image/gif":  true,
}

// FileUploader abstracts image storage destinations.
type FileUploader interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// QuestionService serves the question bank and its admin operations.
type QuestionService interface {
	List(ctx context.Context, filter dto.QuestionFilter) ([]dto.QuestionResponse, error)
	Get(ctx context.Context, id string) (dto.QuestionResponse, error)
	Random(ctx context.Context, limit int) ([]dto.QuestionResponse, error)
	Create(ctx context.Context, req dto.QuestionCreateRequest) (dto.QuestionResponse, error)
	AttachImage(ctx context.Context, questionID string, file *multipart.FileHeader) (dto.QuestionImageResponse, error)
}

type questionService struct {
	repo      repository.QuestionRepository
	uploader  FileUploader
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewQuestionService constructs the question bank service. uploader may be
// nil; image uploads are then rejected.
func NewQuestionService(repo repository.QuestionRepository, uploader FileUploader, validate *validator.Validate, logger zerolog.Logger) QuestionService {
	return &questionService{
		repo:      repo,
		uploader:  uploader,
		validator: validate,
		logger:    logger.With().Str("component", "question_service").Logger(),
		tracer:    otel.Tracer("github.com/xiaokaoba/shenlun-go-api/internal/service/question"),
	}
}

func (s *questionService) List(ctx context.Context, filter dto.QuestionFilter) ([]dto.QuestionResponse, error) {
	if err := s.validator.Struct(filter); err != nil {
		return nil, err
	}

	questionType := ""
	if strings.TrimSpace(filter.QuestionType) != "" {
		questionType = ai.NormalizeQuestionType(filter.QuestionType)
	}

	questions, err := s.repo.ListByType(ctx, questionType, filter.Limit)
	if err != nil {
		return nil, err
	}
	return dto.NewQuestionResponseSlice(questions), nil
}

func (s *questionService) Get(ctx context.Context, id string) (dto.QuestionResponse, error) {
	question, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.QuestionResponse{}, ErrQuestionNotFound
		}
		return dto.QuestionResponse{}, err
	}
	return dto.NewQuestionResponse(*question), nil
}

func (s *questionService) Random(ctx context.Context, limit int) ([]dto.QuestionResponse, error) {
	if limit <= 0 {
		limit = 5
	}
	questions, err := s.repo.Random(ctx, limit, nil)
	if err != nil {
		return nil, err
	}
	return dto.NewQuestionResponseSlice(questions), nil
}

func (s *questionService) Create(ctx context.Context, req dto.QuestionCreateRequest) (dto.QuestionResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.QuestionResponse{}, err
	}

	question := models.Question{
		ID:                uuid.NewString(),
		Title:             strings.TrimSpace(req.Title),
		Content:           req.Content,
		QuestionType:      ai.NormalizeQuestionType(req.QuestionType),
		QuestionNumber:    req.QuestionNumber,
		Difficulty:        req.Difficulty,
		Source:            req.Source,
		Answer:            req.Answer,
		AnswerExplanation: req.AnswerExplanation,
	}
	if err := s.repo.Create(ctx, &question); err != nil {
		return dto.QuestionResponse{}, fmt.Errorf("create question: %w", err)
	}
	return dto.NewQuestionResponse(question), nil
}

func (s *questionService) AttachImage(ctx context.Context, questionID string, file *multipart.FileHeader) (dto.QuestionImageResponse, error) {
	ctx, span := s.tracer.Start(ctx, "question.attach_image")
	span.SetAttributes(attribute.String("question.id", questionID))
	defer span.End()

	if s.uploader == nil {
		span.RecordError(ErrUploaderUnavailable)
		span.SetStatus(codes.Error, "uploader unavailable")
		return dto.QuestionImageResponse{}, ErrUploaderUnavailable
	}
	if file == nil {
		err := errors.New("image file is required")
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		return dto.QuestionImageResponse{}, err
	}

	question, err := s.repo.GetByID(ctx, questionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "question not found")
			return dto.QuestionImageResponse{}, ErrQuestionNotFound
		}
		return dto.QuestionImageResponse{}, err
	}

	handle, err := file.Open()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "open failed")
		return dto.QuestionImageResponse{}, err
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, maxQuestionImageBytes+1)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		return dto.QuestionImageResponse{}, err
	}
	if buf.Len() > maxQuestionImageBytes {
		err := fmt.Errorf("image exceeds %d bytes", maxQuestionImageBytes)
		span.RecordError(err)
		span.SetStatus(codes.Error, "payload too large")
		return dto.QuestionImageResponse{}, err
	}

	mime := mimetype.Detect(buf.Bytes())
	span.SetAttributes(attribute.String("question.image_mime", mime.String()))
	if !allowedImageMimes[mime.String()] {
		span.RecordError(ErrImageTypeNotAllowed)
		span.SetStatus(codes.Error, "type not allowed")
		return dto.QuestionImageResponse{}, ErrImageTypeNotAllowed
	}

	url, err := s.uploader.Upload(ctx, file.Filename, bytes.NewReader(buf.Bytes()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage failed")
		return dto.QuestionImageResponse{}, fmt.Errorf("upload question image: %w", err)
	}

	image := models.QuestionImage{
		ID:         uuid.NewString(),
		QuestionID: question.ID,
		ImageURL:   url,
		ImageType:  mime.String(),
		OrderIndex: len(question.Images),
	}
	if err := s.repo.AttachImage(ctx, &image); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persistence failed")
		return dto.QuestionImageResponse{}, err
	}

	s.logger.Info().Str("question_id", question.ID).Str("url", url).Msg("question image attached")

	return dto.QuestionImageResponse{
		ID:         image.ID,
		ImageURL:   image.ImageURL,
		ImageType:  image.ImageType,
		OrderIndex: image.OrderIndex,
	}, nil
}
