package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xiaokaoba/shenlun-go-api/internal/dto"
	"github.com/xiaokaoba/shenlun-go-api/internal/models"
	"github.com/xiaokaoba/shenlun-go-api/internal/repository"
	"github.com/xiaokaoba/shenlun-go-api/pkg/ai"
	"github.com/xiaokaoba/shenlun-go-api/pkg/grading"
)

// GradingError carries the HTTP status and user-facing message a grading
// failure should surface as.
type GradingError struct {
	Status  int
	Message string
	Err     error
}

func (e *GradingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *GradingError) Unwrap() error { return e.Err }

// classifyGradingError maps an AI pipeline failure onto the status and
// message the frontend expects.
func classifyGradingError(err error) *GradingError {
	text := strings.ToLower(err.Error())
	switch {
	case strings.Contains(text, "api_key"), strings.Contains(text, "authentication"), strings.Contains(text, "unauthorized"):
		return &GradingError{Status: 503, Message: "AI 认证异常，请稍后重试", Err: err}
	case strings.Contains(text, "connection"), strings.Contains(text, "timeout"), strings.Contains(text, "network"):
		return &GradingError{Status: 504, Message: "网络超时，请稍后重试", Err: err}
	case strings.Contains(text, "rate_limit"), strings.Contains(text, "quota"):
		return &GradingError{Status: 429, Message: "请求过多，请稍后再试", Err: err}
	case strings.Contains(text, "model_not_found"):
		return &GradingError{Status: 503, Message: "AI 模型不可用，请联系管理员", Err: err}
	default:
		return &GradingError{Status: 500, Message: "服务异常，请稍后再试", Err: err}
	}
}

// highlightSpan replaces the model's emoji headings inside dimension
// feedback; the sanitizer policy must keep it intact.
const highlightSpan = `<span style="color: #1e40af; font-weight: bold;">%s</span>`

var markupReplacer = strings.NewReplacer(
	"✅ **加分点：**", fmt.Sprintf(highlightSpan, "【得分点】"),
	"❌ **扣分点：**", fmt.Sprintf(highlightSpan, "【扣分点】"),
	"💡 **改进建议：**", fmt.Sprintf(highlightSpan, "【改进方向】"),
	"💡 **改进方向：**", fmt.Sprintf(highlightSpan, "【改进方向】"),
	"✅**加分点：**", fmt.Sprintf(highlightSpan, "【得分点】"),
	"❌**扣分点：**", fmt.Sprintf(highlightSpan, "【扣分点】"),
	"💡**改进建议：**", fmt.Sprintf(highlightSpan, "【改进方向】"),
	"💡**改进方向：**", fmt.Sprintf(highlightSpan, "【改进方向】"),
	"**加分点：**", fmt.Sprintf(highlightSpan, "【得分点】"),
	"**扣分点：**", fmt.Sprintf(highlightSpan, "【扣分点】"),
	"**改进建议：**", fmt.Sprintf(highlightSpan, "【改进方向】"),
	"**改进方向：**", fmt.Sprintf(highlightSpan, "【改进方向】"),
)

var defaultSuggestions = []string{
	"建议重新检查答题格式和逻辑结构",
	"注意题目要求的完整性和准确性",
	"加强要点概括和分析的深度",
}

// ErrNoFreshResult signals that no grading result inside the freshness window
// is available for replay.
var ErrNoFreshResult = errors.New("no fresh grading result")

// EssayService grades essay submissions through the two-stage AI pipeline.
type EssayService interface {
	Grade(ctx context.Context, req dto.EssaySubmissionRequest) (dto.GradingResponse, error)
	GradeProgressive(ctx context.Context, req dto.EssaySubmissionRequest, emit func(dto.ProgressFrame) error) error
	LatestResult(ctx context.Context) (dto.LatestResultResponse, error)
	AIStatus(ctx context.Context) dto.AIStatusResponse
}

// AIStatusInfo describes the configured grading model for the status probe.
type AIStatusInfo struct {
	Model      string
	APIBase    string
	Configured bool
}

type essayService struct {
	grader      ai.Grader
	history     repository.HistoryRepository
	store       grading.ResultStore
	validator   *validator.Validate
	nats        *nats.Conn
	natsSubject string
	statusInfo  AIStatusInfo
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
	tracer      trace.Tracer
}

// NewEssayService constructs the grading service. natsConn and store may be
// nil; the grading-completed event and the latest-result replay are then
// skipped.
func NewEssayService(grader ai.Grader, history repository.HistoryRepository, store grading.ResultStore, validate *validator.Validate, natsConn *nats.Conn, statusInfo AIStatusInfo, logger zerolog.Logger) EssayService {
	sanitizer := bluemonday.NewPolicy()
	sanitizer.AllowElements("span")
	sanitizer.AllowStyles("color", "font-weight").OnElements("span")

	return &essayService{
		grader:      grader,
		history:     history,
		store:       store,
		validator:   validate,
		nats:        natsConn,
		natsSubject: "shenlun.grading.completed",
		statusInfo:  statusInfo,
		sanitizer:   sanitizer,
		logger:      logger.With().Str("component", "essay_service").Logger(),
		tracer:      otel.Tracer("github.com/xiaokaoba/shenlun-go-api/internal/service/essay"),
	}
}

func (s *essayService) Grade(ctx context.Context, req dto.EssaySubmissionRequest) (dto.GradingResponse, error) {
	ctx, span := s.tracer.Start(ctx, "essay.grade")
	defer span.End()

	if err := s.validator.Struct(req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.GradingResponse{}, err
	}

	questionType, source := s.resolveQuestionType(ctx, req)
	span.SetAttributes(attribute.String("essay.question_type", questionType))

	input := ai.EssayInput{Content: req.Content, QuestionType: questionType}

	diagnosis, err := s.grader.Diagnose(ctx, input)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "diagnosis_failed")
		return dto.GradingResponse{}, classifyGradingError(err)
	}

	evaluation, err := s.grader.Evaluate(ctx, input, diagnosis)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "evaluation_failed")
		return dto.GradingResponse{}, classifyGradingError(err)
	}

	response := s.buildResponse(questionType, source, diagnosis, evaluation)
	span.SetAttributes(attribute.Float64("essay.score", response.Score))

	s.recordHistory(ctx, req, response)
	s.archiveResult(ctx, response)
	s.publishCompleted(response)

	return response, nil
}

func (s *essayService) GradeProgressive(ctx context.Context, req dto.EssaySubmissionRequest, emit func(dto.ProgressFrame) error) error {
	ctx, span := s.tracer.Start(ctx, "essay.grade_progressive")
	defer span.End()

	if err := s.validator.Struct(req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return err
	}

	questionType, source := s.resolveQuestionType(ctx, req)
	input := ai.EssayInput{Content: req.Content, QuestionType: questionType}

	diagnosis, err := s.grader.Diagnose(ctx, input)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "diagnosis_failed")
		return s.emitFailure(emit, err)
	}

	interim := dto.ProgressFrame{
		Stage:              1,
		Progress:           50,
		TeacherComments:    s.sanitizeText(diagnosis.TeacherComments),
		QuestionType:       questionType,
		QuestionTypeSource: source,
	}
	if err := emit(interim); err != nil {
		return fmt.Errorf("emit interim frame: %w", err)
	}

	evaluation, err := s.grader.Evaluate(ctx, input, diagnosis)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "evaluation_failed")
		return s.emitFailure(emit, err)
	}

	response := s.buildResponse(questionType, source, diagnosis, evaluation)
	final := dto.ProgressFrame{
		Stage:              2,
		Progress:           100,
		Score:              response.Score,
		Feedback:           response.Feedback,
		Suggestions:        response.Suggestions,
		ScoreDetails:       response.ScoreDetails,
		QuestionType:       response.QuestionType,
		QuestionTypeSource: response.QuestionTypeSource,
	}
	if err := emit(final); err != nil {
		return fmt.Errorf("emit final frame: %w", err)
	}

	s.recordHistory(ctx, req, response)
	s.archiveResult(ctx, response)
	s.publishCompleted(response)

	return nil
}

// LatestResult replays the most recent grading run if it is still inside the
// freshness window, so a reloaded page can restore its result view.
func (s *essayService) LatestResult(ctx context.Context) (dto.LatestResultResponse, error) {
	if s.store == nil {
		return dto.LatestResultResponse{}, ErrNoFreshResult
	}

	record, ok, err := s.store.LoadLatest(ctx)
	if err != nil {
		return dto.LatestResultResponse{}, fmt.Errorf("load latest result: %w", err)
	}
	if !ok || !record.Fresh(time.Now()) {
		return dto.LatestResultResponse{}, ErrNoFreshResult
	}

	return dto.LatestResultResponse{
		Result:     fromStoredResult(record.Result),
		CapturedAt: record.CapturedAt,
	}, nil
}

func (s *essayService) AIStatus(_ context.Context) dto.AIStatusResponse {
	if !s.statusInfo.Configured {
		return dto.AIStatusResponse{
			Status:  "unconfigured",
			Message: "AI 服务未配置，请设置 API 密钥",
		}
	}
	return dto.AIStatusResponse{
		Status:  "ok",
		Message: "AI 服务可用",
		Model:   s.statusInfo.Model,
		APIBase: s.statusInfo.APIBase,
	}
}

// emitFailure converts an AI failure into a terminal error frame. The stream
// is already open, so the mapped message travels inside the frame.
func (s *essayService) emitFailure(emit func(dto.ProgressFrame) error, cause error) error {
	mapped := classifyGradingError(cause)
	s.logger.Error().Err(cause).Int("status", mapped.Status).Msg("progressive grading failed")
	frame := dto.ProgressFrame{Stage: "error", Message: mapped.Message}
	if err := emit(frame); err != nil {
		return fmt.Errorf("emit error frame: %w", err)
	}
	return nil
}

func (s *essayService) resolveQuestionType(ctx context.Context, req dto.EssaySubmissionRequest) (string, string) {
	if strings.TrimSpace(req.QuestionType) != "" {
		return ai.NormalizeQuestionType(req.QuestionType), "client"
	}

	detected, err := s.grader.DetectQuestionType(ctx, req.Content)
	if err != nil {
		s.logger.Warn().Err(err).Msg("question type detection failed, falling back to keywords")
		return ai.ClassifyByKeywords(req.Content), "client"
	}
	return detected, "ai"
}

func (s *essayService) buildResponse(questionType, source string, diagnosis ai.Diagnosis, evaluation ai.Evaluation) dto.GradingResponse {
	return dto.GradingResponse{
		Score:              evaluation.TotalScore,
		Feedback:           s.assembleFeedback(diagnosis, evaluation),
		Suggestions:        s.assembleSuggestions(evaluation),
		ScoreDetails:       s.convertScoreDetails(questionType, diagnosis),
		QuestionType:       questionType,
		QuestionTypeSource: source,
	}
}

// assembleFeedback builds the two public feedback sections: the overall
// verdict and the detailed diagnosis. Stage-two final comments win over
// stage-one teacher comments when both are substantial.
func (s *essayService) assembleFeedback(diagnosis ai.Diagnosis, evaluation ai.Evaluation) string {
	parts := make([]string, 0, 2)

	overall := strings.TrimSpace(evaluation.OverallEvaluation)
	if overall != "" {
		parts = append(parts, "**整体评价：**\n"+overall)
	} else {
		parts = append(parts, "**整体评价：**\nAI已完成对您答案的综合评估，请参考具体评分细则进行改进。")
	}

	detailed := ""
	if utf8.RuneCountInString(strings.TrimSpace(evaluation.FinalComments)) > 50 {
		detailed = strings.TrimSpace(evaluation.FinalComments)
	} else if utf8.RuneCountInString(strings.TrimSpace(diagnosis.TeacherComments)) > 50 {
		detailed = strings.TrimSpace(diagnosis.TeacherComments)
	}
	if detailed != "" {
		parts = append(parts, "**专业诊断意见：**\n"+detailed)
	} else {
		parts = append(parts, "**专业诊断意见：**\n专家对您的答案进行了全面分析，具体建议请参考评分细则。")
	}

	return s.sanitizeText(strings.Join(parts, "\n\n"))
}

// assembleSuggestions merges priority suggestions with strengths worth
// keeping, drops trivially short entries and caps the list at five.
func (s *essayService) assembleSuggestions(evaluation ai.Evaluation) []string {
	merged := make([]string, 0, len(evaluation.PrioritySuggestions)+len(evaluation.StrengthsToMaintain))
	for _, suggestion := range append(append([]string{}, evaluation.PrioritySuggestions...), evaluation.StrengthsToMaintain...) {
		cleaned := s.sanitizeText(suggestion)
		if utf8.RuneCountInString(strings.TrimSpace(cleaned)) > 10 {
			merged = append(merged, cleaned)
		}
	}

	if len(merged) == 0 {
		merged = append(merged, defaultSuggestions...)
	}
	if len(merged) > 5 {
		merged = merged[:5]
	}
	return merged
}

// convertScoreDetails turns the per-dimension diagnosis into rubric rows,
// using the question type's full-score table. Canonical dimensions keep
// their table order; extras the model invented follow alphabetically.
func (s *essayService) convertScoreDetails(questionType string, diagnosis ai.Diagnosis) []dto.ScoreDetailResponse {
	details := make([]dto.ScoreDetailResponse, 0, len(diagnosis.Dimensions))

	seen := make(map[string]bool, len(diagnosis.Dimensions))
	ordered := make([]string, 0, len(diagnosis.Dimensions))
	for _, name := range ai.DimensionOrder(questionType) {
		if _, ok := diagnosis.Dimensions[name]; ok {
			ordered = append(ordered, name)
			seen[name] = true
		}
	}
	extras := make([]string, 0)
	for name := range diagnosis.Dimensions {
		if !seen[name] {
			extras = append(extras, name)
		}
	}
	sort.Strings(extras)
	ordered = append(ordered, extras...)

	for _, name := range ordered {
		feedback := diagnosis.Dimensions[name]
		description := feedback.Feedback
		if strings.TrimSpace(description) == "" {
			description = name + "评价"
		}
		details = append(details, dto.ScoreDetailResponse{
			Item:        name,
			FullScore:   ai.DimensionFullScore(questionType, name),
			ActualScore: feedback.Score,
			Description: s.sanitizeText(markupReplacer.Replace(description)),
		})
	}

	if len(details) == 0 {
		description := strings.TrimSpace(diagnosis.Summary)
		if description == "" {
			description = "AI专家诊断完成"
		}
		details = append(details, dto.ScoreDetailResponse{
			Item:        "综合评价",
			FullScore:   100,
			ActualScore: 75,
			Description: s.sanitizeText(description),
		})
	}

	return details
}

// sanitizeText strips leaked model instructions, then scrubs markup down to
// the allowed highlight spans.
func (s *essayService) sanitizeText(text string) string {
	return strings.TrimSpace(s.sanitizer.Sanitize(grading.SanitizeText(text)))
}

func (s *essayService) recordHistory(ctx context.Context, req dto.EssaySubmissionRequest, response dto.GradingResponse) {
	if s.history == nil {
		return
	}

	requestJSON, err := json.Marshal(req)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to encode history request")
		return
	}
	responseJSON, err := json.Marshal(response)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to encode history response")
		return
	}

	score := response.Score
	record := models.GradingHistory{
		ID:           uuid.NewString(),
		Kind:         models.HistoryKindEssay,
		QuestionType: response.QuestionType,
		Score:        &score,
		Request:      requestJSON,
		Response:     responseJSON,
		CreatedAt:    time.Now(),
	}
	if err := s.history.Create(ctx, &record); err != nil {
		s.logger.Warn().Err(err).Msg("failed to persist grading history")
	}
}

// archiveResult keeps the finished run retrievable for the latest-result
// replay and the personalized-practice handoff. Failures only cost the replay.
func (s *essayService) archiveResult(ctx context.Context, response dto.GradingResponse) {
	if s.store == nil {
		return
	}

	result := toStoredResult(response)
	if err := s.store.SaveLatest(ctx, result); err != nil {
		s.logger.Warn().Err(err).Msg("failed to archive latest result")
		return
	}
	if err := s.store.SaveHandoff(ctx, result); err != nil {
		s.logger.Warn().Err(err).Msg("failed to archive practice handoff")
	}
}

func toStoredResult(response dto.GradingResponse) grading.Result {
	details := make([]grading.ScoreDetail, 0, len(response.ScoreDetails))
	for _, detail := range response.ScoreDetails {
		details = append(details, grading.ScoreDetail(detail))
	}
	return grading.Result{
		Score:              response.Score,
		Feedback:           response.Feedback,
		Suggestions:        response.Suggestions,
		ScoreDetails:       details,
		QuestionType:       response.QuestionType,
		QuestionTypeSource: response.QuestionTypeSource,
	}
}

func fromStoredResult(result grading.Result) dto.GradingResponse {
	details := make([]dto.ScoreDetailResponse, 0, len(result.ScoreDetails))
	for _, detail := range result.ScoreDetails {
		details = append(details, dto.ScoreDetailResponse(detail))
	}
	return dto.GradingResponse{
		Score:              result.Score,
		Feedback:           result.Feedback,
		Suggestions:        result.Suggestions,
		ScoreDetails:       details,
		QuestionType:       result.QuestionType,
		QuestionTypeSource: result.QuestionTypeSource,
	}
}

func (s *essayService) publishCompleted(response dto.GradingResponse) {
	if s.nats == nil {
		return
	}

	payload, err := json.Marshal(map[string]interface{}{
		"score":         response.Score,
		"question_type": response.QuestionType,
	})
	if err != nil {
		return
	}
	if err := s.nats.Publish(s.natsSubject, payload); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		s.logger.Warn().Err(err).Msg("failed to publish grading event")
	}
}
