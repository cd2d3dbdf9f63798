package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	aiStageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "shenlun",
		Subsystem: "ai",
		Name:      "stage_duration_seconds",
		Help:      "Duration of AI grading stage requests",
	}, []string{"model", "stage"})

	aiStageFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shenlun",
		Subsystem: "ai",
		Name:      "stage_failures_total",
		Help:      "Number of AI grading stage failures",
	}, []string{"model", "stage"})
)

// OpenAIConfig defines configuration options for the OpenAI grader.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	Logger      zerolog.Logger
}

// OpenAIGrader implements Grader against an OpenAI-compatible chat
// completion API.
type OpenAIGrader struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIGrader builds a grader using the provided configuration.
func NewOpenAIGrader(cfg OpenAIConfig) (*OpenAIGrader, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.2
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	return &OpenAIGrader{
		client: openai.NewClientWithConfig(config),
		cfg:    cfg,
		tracer: otel.Tracer("github.com/xiaokaoba/shenlun-go-api/pkg/ai/openai"),
		logger: logger.With().Str("component", "openai_grader").Logger(),
	}, nil
}

// DetectQuestionType asks the model to classify the submission and maps the
// answer onto one of the four valid types.
func (g *OpenAIGrader) DetectQuestionType(parent context.Context, content string) (string, error) {
	ctx, span := g.tracer.Start(parent, "openai.detect_question_type", trace.WithAttributes(
		attribute.String("model", g.cfg.Model),
	))
	defer span.End()

	response, err := g.complete(ctx, "type", questionTypePrompt(content), 50)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		// Keyword classification keeps grading available when the model is not.
		g.logger.Warn().Err(err).Msg("question type detection failed, using keyword classification")
		return ClassifyByKeywords(content), nil
	}

	questionType := NormalizeQuestionType(response)
	span.SetAttributes(attribute.String("question_type", questionType))

	return questionType, nil
}

// Diagnose runs stage one: the per-dimension expert review.
func (g *OpenAIGrader) Diagnose(parent context.Context, input EssayInput) (Diagnosis, error) {
	ctx, span := g.tracer.Start(parent, "openai.diagnose", trace.WithAttributes(
		attribute.String("model", g.cfg.Model),
		attribute.String("question_type", input.QuestionType),
	))
	defer span.End()

	response, err := g.complete(ctx, "diagnosis", diagnosisPrompt(input), 4096)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Diagnosis{}, fmt.Errorf("diagnosis stage: %w", err)
	}

	payload, err := extractJSONObject(response)
	if err != nil {
		aiStageFailures.WithLabelValues(g.cfg.Model, "diagnosis").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Diagnosis{}, fmt.Errorf("diagnosis stage: %w", err)
	}

	if err := validateDiagnosis(payload); err != nil {
		aiStageFailures.WithLabelValues(g.cfg.Model, "diagnosis").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Diagnosis{}, fmt.Errorf("diagnosis stage schema: %w", err)
	}

	return decodeDiagnosis(payload), nil
}

// Evaluate runs stage two: the overall verdict built on the diagnosis.
func (g *OpenAIGrader) Evaluate(parent context.Context, input EssayInput, diagnosis Diagnosis) (Evaluation, error) {
	ctx, span := g.tracer.Start(parent, "openai.evaluate", trace.WithAttributes(
		attribute.String("model", g.cfg.Model),
		attribute.String("question_type", input.QuestionType),
	))
	defer span.End()

	response, err := g.complete(ctx, "evaluation", evaluationPrompt(input, diagnosis), 2048)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Evaluation{}, fmt.Errorf("evaluation stage: %w", err)
	}

	payload, err := extractJSONObject(response)
	if err != nil {
		aiStageFailures.WithLabelValues(g.cfg.Model, "evaluation").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Evaluation{}, fmt.Errorf("evaluation stage: %w", err)
	}

	if err := validateEvaluation(payload); err != nil {
		aiStageFailures.WithLabelValues(g.cfg.Model, "evaluation").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Evaluation{}, fmt.Errorf("evaluation stage schema: %w", err)
	}

	return decodeEvaluation(payload), nil
}

func (g *OpenAIGrader) complete(ctx context.Context, stage, prompt string, maxTokens int) (string, error) {
	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.cfg.Model,
		MaxTokens:   maxTokens,
		Temperature: g.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	aiStageDuration.WithLabelValues(g.cfg.Model, stage).Observe(time.Since(start).Seconds())
	if err != nil {
		aiStageFailures.WithLabelValues(g.cfg.Model, stage).Inc()
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		aiStageFailures.WithLabelValues(g.cfg.Model, stage).Inc()
		return "", fmt.Errorf("no choices returned from model")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		aiStageFailures.WithLabelValues(g.cfg.Model, stage).Inc()
		return "", fmt.Errorf("empty response from model")
	}

	return content, nil
}
