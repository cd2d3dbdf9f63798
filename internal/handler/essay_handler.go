package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/xiaokaoba/shenlun-go-api/internal/dto"
	"github.com/xiaokaoba/shenlun-go-api/internal/service"
	"github.com/xiaokaoba/shenlun-go-api/internal/utils"
)

// progressiveTimeout bounds one grading stream; the client gives up on a
// stalled stream after two minutes, so the server stops slightly later.
const progressiveTimeout = 3 * time.Minute

// EssayHandler serves essay grading endpoints.
type EssayHandler struct {
	service service.EssayService
	logger  zerolog.Logger
}

// NewEssayHandler constructs an essay handler.
func NewEssayHandler(service service.EssayService, logger zerolog.Logger) *EssayHandler {
	return &EssayHandler{
		service: service,
		logger:  logger.With().Str("component", "essay_handler").Logger(),
	}
}

// Register wires essay routes.
func (h *EssayHandler) Register(router fiber.Router) {
	router.Post("/grade", h.grade)
	router.Post("/grade-progressive", h.gradeProgressive)
	router.Get("/latest-result", h.latestResult)
	router.Get("/ai-status", h.aiStatus)
}

// grade returns the finalized grading payload at the top level, the shape
// the progressive client's fallback path expects.
func (h *EssayHandler) grade(c *fiber.Ctx) error {
	var payload dto.EssaySubmissionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "请求格式错误")
	}

	response, err := h.service.Grade(c.Context(), payload)
	if err != nil {
		return h.sendGradingError(c, err)
	}

	return c.JSON(response)
}

func (h *EssayHandler) gradeProgressive(c *fiber.Ctx) error {
	var payload dto.EssaySubmissionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "请求格式错误")
	}
	if strings.TrimSpace(payload.Content) == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "请输入作答内容")
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	logger := *requestLogger(h.logger, c)

	// The stream writer runs after this handler returns, so the request
	// context is no longer usable inside it.
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ctx, cancel := context.WithTimeout(context.Background(), progressiveTimeout)
		defer cancel()

		emit := func(frame dto.ProgressFrame) error {
			encoded, err := json.Marshal(frame)
			if err != nil {
				return fmt.Errorf("encode frame: %w", err)
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", encoded); err != nil {
				return err
			}
			return w.Flush()
		}

		if err := h.service.GradeProgressive(ctx, payload, emit); err != nil {
			logger.Error().Err(err).Msg("progressive grading stream aborted")
		}
	})

	return nil
}

func (h *EssayHandler) latestResult(c *fiber.Ctx) error {
	record, err := h.service.LatestResult(c.Context())
	if err != nil {
		if errors.Is(err, service.ErrNoFreshResult) {
			return utils.SendError(c, fiber.StatusNotFound, "暂无可用的批改结果")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("latest result lookup failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "服务异常，请稍后再试")
	}

	return utils.SendSuccess(c, "ok", record)
}

func (h *EssayHandler) aiStatus(c *fiber.Ctx) error {
	return c.JSON(h.service.AIStatus(c.Context()))
}

func (h *EssayHandler) sendGradingError(c *fiber.Ctx, err error) error {
	if isValidationError(err) {
		return utils.SendError(c, fiber.StatusBadRequest, "请输入作答内容")
	}

	var gradingErr *service.GradingError
	if errors.As(err, &gradingErr) {
		requestLogger(h.logger, c).Error().Err(gradingErr.Err).Int("status", gradingErr.Status).Msg("grading failed")
		return utils.SendError(c, gradingErr.Status, gradingErr.Message)
	}

	requestLogger(h.logger, c).Error().Err(err).Msg("grading failed")
	return utils.SendError(c, fiber.StatusInternalServerError, "服务异常，请稍后再试")
}
