package service

import (
	"context"
	"fmt"
	"math/rand"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xiaokaoba/shenlun-go-api/internal/dto"
	"github.com/xiaokaoba/shenlun-go-api/internal/models"
	"github.com/xiaokaoba/shenlun-go-api/internal/repository"
)

const (
	wrongTypeLimit      = 2
	wrongTypeQuestions  = 3
	weakDimensionLimit  = 2
	weakDimensionFill   = 4
	strongDimensionFill = 3
	minRecommended      = 10
	maxRecommended      = 15

	weakScoreCeiling = 70.0
	strongScoreFloor = 80.0
)

// PracticeService builds personalized practice sets from assessment results.
type PracticeService interface {
	Personalized(ctx context.Context, req dto.PracticeRequest) (dto.PracticeResponse, error)
}

type practiceService struct {
	questions repository.QuestionRepository
	history   HistoryService
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
	shuffle   func(n int, swap func(i, j int))
}

// NewPracticeService constructs the practice recommendation service. history
// may be nil; assessment runs are then not archived.
func NewPracticeService(questions repository.QuestionRepository, history HistoryService, validate *validator.Validate, logger zerolog.Logger) PracticeService {
	return &practiceService{
		questions: questions,
		history:   history,
		validator: validate,
		logger:    logger.With().Str("component", "practice_service").Logger(),
		tracer:    otel.Tracer("github.com/xiaokaoba/shenlun-go-api/internal/service/practice"),
		shuffle:   rand.Shuffle,
	}
}

type scoredDimension struct {
	name  string
	score float64
}

// Personalized assembles a practice set in three tiers: question types the
// student answered wrongly, weak dimensions below 70, and one strong
// dimension at 80 or above for advancement. Short sets are padded with
// random questions, then the whole set is shuffled, deduplicated and capped.
func (s *practiceService) Personalized(ctx context.Context, req dto.PracticeRequest) (dto.PracticeResponse, error) {
	ctx, span := s.tracer.Start(ctx, "practice.personalized")
	defer span.End()

	if err := s.validator.Struct(req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.PracticeResponse{}, err
	}

	assessment := req.AssessmentResult
	wrongTypes := collectWrongTypes(assessment.DetailedScores)
	weak, strong := splitDimensions(assessment.DimensionScores)

	var pool []models.Question

	limit := wrongTypeLimit
	if len(wrongTypes) < limit {
		limit = len(wrongTypes)
	}
	for _, questionType := range wrongTypes[:limit] {
		questions, err := s.questions.ListByType(ctx, questionType, wrongTypeQuestions)
		if err != nil {
			span.RecordError(err)
			return dto.PracticeResponse{}, fmt.Errorf("list wrong-type questions: %w", err)
		}
		pool = append(pool, questions...)
	}

	weakLimit := weakDimensionLimit
	if len(weak) < weakLimit {
		weakLimit = len(weak)
	}
	for _, dimension := range weak[:weakLimit] {
		questions, err := s.questions.ListByType(ctx, dimension.name, weakDimensionFill)
		if err != nil {
			span.RecordError(err)
			return dto.PracticeResponse{}, fmt.Errorf("list weak-dimension questions: %w", err)
		}
		pool = append(pool, questions...)
	}

	if len(strong) > 0 {
		questions, err := s.questions.ListByType(ctx, strong[0].name, strongDimensionFill)
		if err != nil {
			span.RecordError(err)
			return dto.PracticeResponse{}, fmt.Errorf("list strong-dimension questions: %w", err)
		}
		pool = append(pool, questions...)
	}

	if len(pool) < minRecommended {
		exclude := make([]string, 0, len(pool))
		for _, question := range pool {
			exclude = append(exclude, question.ID)
		}
		filler, err := s.questions.Random(ctx, minRecommended-len(pool), exclude)
		if err != nil {
			span.RecordError(err)
			return dto.PracticeResponse{}, fmt.Errorf("list filler questions: %w", err)
		}
		pool = append(pool, filler...)
	}

	s.shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	seen := make(map[string]bool, len(pool))
	unique := make([]models.Question, 0, len(pool))
	for _, question := range pool {
		if seen[question.ID] {
			continue
		}
		seen[question.ID] = true
		unique = append(unique, question)
	}
	if len(unique) > maxRecommended {
		unique = unique[:maxRecommended]
	}

	recommended := make([]dto.RecommendedQuestion, 0, len(unique))
	for i, question := range unique {
		recommended = append(recommended, dto.RecommendedQuestion{
			QuestionResponse:     dto.NewQuestionResponse(question),
			RecommendationReason: recommendationReason(question.QuestionType, assessment.DimensionScores, wrongTypes, weak),
			SequenceNumber:       i + 1,
		})
	}

	span.SetAttributes(attribute.Int("practice.total_questions", len(recommended)))

	response := dto.PracticeResponse{
		Questions:      recommended,
		TotalQuestions: len(recommended),
		RecommendationSummary: dto.RecommendationSummary{
			WrongQuestionTypes: wrongTypes,
			WeakDimensions:     dimensionNames(weak),
			StrongDimensions:   dimensionNames(strong),
		},
	}

	s.recordAssessment(ctx, *assessment, response.RecommendationSummary)

	return response, nil
}

// recordAssessment archives the incoming assessment alongside the derived
// recommendation summary so it shows up in the history list.
func (s *practiceService) recordAssessment(ctx context.Context, assessment dto.AssessmentResult, summary dto.RecommendationSummary) {
	if s.history == nil {
		return
	}

	score := averageScore(assessment.DimensionScores)
	entry := HistoryAppend{
		Kind:     models.HistoryKindAssessment,
		Score:    score,
		Request:  assessment,
		Response: summary,
	}
	if _, err := s.history.Append(ctx, entry); err != nil {
		s.logger.Warn().Err(err).Msg("failed to archive assessment record")
	}
}

func averageScore(scores map[string]float64) *float64 {
	if len(scores) == 0 {
		return nil
	}
	var sum float64
	for _, score := range scores {
		sum += score
	}
	average := sum / float64(len(scores))
	return &average
}

// collectWrongTypes extracts the distinct question types of wrong answers,
// preserving first-seen order.
func collectWrongTypes(detailed []dto.AnsweredQuestion) []string {
	seen := make(map[string]bool)
	types := make([]string, 0)
	for _, answer := range detailed {
		if answer.Correct || answer.QuestionType == "" || seen[answer.QuestionType] {
			continue
		}
		seen[answer.QuestionType] = true
		types = append(types, answer.QuestionType)
	}
	return types
}

// splitDimensions partitions dimension scores into weak (<70, weakest first)
// and strong (>=80, strongest first).
func splitDimensions(scores map[string]float64) (weak, strong []scoredDimension) {
	for name, score := range scores {
		switch {
		case score < weakScoreCeiling:
			weak = append(weak, scoredDimension{name: name, score: score})
		case score >= strongScoreFloor:
			strong = append(strong, scoredDimension{name: name, score: score})
		}
	}
	sort.Slice(weak, func(i, j int) bool {
		if weak[i].score == weak[j].score {
			return weak[i].name < weak[j].name
		}
		return weak[i].score < weak[j].score
	})
	sort.Slice(strong, func(i, j int) bool {
		if strong[i].score == strong[j].score {
			return strong[i].name < strong[j].name
		}
		return strong[i].score > strong[j].score
	})
	return weak, strong
}

func dimensionNames(dimensions []scoredDimension) []string {
	names := make([]string, 0, len(dimensions))
	for _, dimension := range dimensions {
		names = append(names, dimension.name)
	}
	return names
}

func recommendationReason(questionType string, scores map[string]float64, wrongTypes []string, weak []scoredDimension) string {
	for _, wrong := range wrongTypes {
		if questionType == wrong {
			return fmt.Sprintf("错题巩固：针对您在%s上的错误进行强化练习", questionType)
		}
	}
	for _, dimension := range weak {
		if questionType == dimension.name {
			return fmt.Sprintf("薄弱提升：%s得分%.0f分，需要重点练习", questionType, dimension.score)
		}
	}
	if score, ok := scores[questionType]; ok && score >= strongScoreFloor {
		return fmt.Sprintf("进阶提升：%s基础较好(%.0f分)，适合进一步提升", questionType, score)
	}
	return "综合练习：基于您的整体水平推荐的练习题目"
}
