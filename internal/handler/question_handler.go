package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/xiaokaoba/shenlun-go-api/internal/dto"
	"github.com/xiaokaoba/shenlun-go-api/internal/service"
	"github.com/xiaokaoba/shenlun-go-api/internal/utils"
)

// QuestionHandler serves the question bank.
type QuestionHandler struct {
	service service.QuestionService
	logger  zerolog.Logger
}

// NewQuestionHandler constructs a question handler.
func NewQuestionHandler(service service.QuestionService, logger zerolog.Logger) *QuestionHandler {
	return &QuestionHandler{
		service: service,
		logger:  logger.With().Str("component", "question_handler").Logger(),
	}
}

// Register wires public question routes.
func (h *QuestionHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/random", h.random)
	router.Get("/:id", h.get)
}

// RegisterAdmin wires admin-only question routes.
func (h *QuestionHandler) RegisterAdmin(router fiber.Router) {
	router.Post("", h.create)
	router.Post("/:id/images", h.attachImage)
}

func (h *QuestionHandler) list(c *fiber.Ctx) error {
	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}

	filter := dto.QuestionFilter{
		QuestionType: c.Query("question_type"),
		Limit:        limit,
	}

	questions, err := h.service.List(c.Context(), filter)
	if err != nil {
		if isValidationError(err) {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid filter")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list questions")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list questions")
	}

	return utils.SendSuccess(c, "questions retrieved", questions)
}

func (h *QuestionHandler) random(c *fiber.Ctx) error {
	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}

	questions, err := h.service.Random(c.Context(), limit)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to pick random questions")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to pick random questions")
	}

	return utils.SendSuccess(c, "questions retrieved", questions)
}

func (h *QuestionHandler) get(c *fiber.Ctx) error {
	question, err := h.service.Get(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, service.ErrQuestionNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "question not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to load question")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load question")
	}

	return utils.SendSuccess(c, "question retrieved", question)
}

func (h *QuestionHandler) create(c *fiber.Ctx) error {
	var payload dto.QuestionCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	question, err := h.service.Create(c.Context(), payload)
	if err != nil {
		if isValidationError(err) {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to create question")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to create question")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "question created", question)
}

func (h *QuestionHandler) attachImage(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "image file is required")
	}

	image, err := h.service.AttachImage(c.Context(), c.Params("id"), file)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrQuestionNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "question not found")
		case errors.Is(err, service.ErrImageTypeNotAllowed):
			return utils.SendError(c, fiber.StatusUnsupportedMediaType, "image type not allowed")
		case errors.Is(err, service.ErrUploaderUnavailable):
			return utils.SendError(c, fiber.StatusServiceUnavailable, "image storage not configured")
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to attach question image")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to attach question image")
		}
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "image attached", image)
}
