package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/xiaokaoba/shenlun-go-api/internal/service"
	"github.com/xiaokaoba/shenlun-go-api/internal/utils"
)

// HistoryHandler serves archived grading interactions.
type HistoryHandler struct {
	service service.HistoryService
	logger  zerolog.Logger
}

// NewHistoryHandler constructs a history handler.
func NewHistoryHandler(service service.HistoryService, logger zerolog.Logger) *HistoryHandler {
	return &HistoryHandler{
		service: service,
		logger:  logger.With().Str("component", "history_handler").Logger(),
	}
}

// Register wires history routes.
func (h *HistoryHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Delete("", h.clear)
	router.Get("/:id", h.get)
}

func (h *HistoryHandler) list(c *fiber.Ctx) error {
	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}

	items, err := h.service.List(c.Context(), limit)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list history")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list history")
	}

	return utils.SendSuccess(c, "history retrieved", items)
}

func (h *HistoryHandler) get(c *fiber.Ctx) error {
	detail, err := h.service.Get(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, service.ErrHistoryNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "history record not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to load history record")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load history record")
	}

	return utils.SendSuccess(c, "history record retrieved", detail)
}

func (h *HistoryHandler) clear(c *fiber.Ctx) error {
	deleted, err := h.service.Clear(c.Context())
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to clear history")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to clear history")
	}

	return utils.SendSuccess(c, "history cleared", fiber.Map{"deleted": deleted})
}
