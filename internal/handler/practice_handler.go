package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/xiaokaoba/shenlun-go-api/internal/dto"
	"github.com/xiaokaoba/shenlun-go-api/internal/service"
	"github.com/xiaokaoba/shenlun-go-api/internal/utils"
)

// PracticeHandler serves personalized practice recommendations.
type PracticeHandler struct {
	service service.PracticeService
	logger  zerolog.Logger
}

// NewPracticeHandler constructs a practice handler.
func NewPracticeHandler(service service.PracticeService, logger zerolog.Logger) *PracticeHandler {
	return &PracticeHandler{
		service: service,
		logger:  logger.With().Str("component", "practice_handler").Logger(),
	}
}

// Register wires practice routes.
func (h *PracticeHandler) Register(router fiber.Router) {
	router.Post("/personalized", h.personalized)
}

func (h *PracticeHandler) personalized(c *fiber.Ctx) error {
	var payload dto.PracticeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "缺少测评结果数据")
	}

	response, err := h.service.Personalized(c.Context(), payload)
	if err != nil {
		if isValidationError(err) {
			return utils.SendError(c, fiber.StatusBadRequest, "缺少测评结果数据")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to build practice set")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to build practice set")
	}

	return utils.SendSuccess(c, "practice set generated", response)
}
