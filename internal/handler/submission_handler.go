package handler

import (
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/arka-labs/sentra-go-api/internal/dto"
	"github.com/arka-labs/sentra-go-api/internal/service"
	"github.com/arka-labs/sentra-go-api/internal/utils"
)

// SubmissionHandler exposes the grading endpoint.
type SubmissionHandler struct {
	service   service.SubmissionService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewSubmissionHandler constructs the handler.
func NewSubmissionHandler(service service.SubmissionService, validator *validator.Validate, logger zerolog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "submission_handler").Logger(),
	}
}

// Register wires the handler endpoints into the router group.
func (h *SubmissionHandler) Register(router fiber.Router) {
	router.Post("", h.submit)
	router.Get("/latest", h.latest)
}

func (h *SubmissionHandler) submit(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var payload dto.SubmitCodeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	response, err := h.service.Submit(c.Context(), userID, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submission graded", response)
}

func (h *SubmissionHandler) latest(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "unauthorized")
	}

	problemID, err := strconv.ParseUint(c.Query("problem_id"), 10, 64)
	if err != nil || problemID == 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "problem_id query parameter required")
	}

	response, err := h.service.Latest(c.Context(), userID, uint(problemID))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "latest submission retrieved", response)
}

func (h *SubmissionHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrProblemNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "problem not found")
	case errors.Is(err, service.ErrProblemLocked):
		return utils.SendError(c, fiber.StatusForbidden, "problem not yet available")
	case errors.Is(err, service.ErrSubmissionInFlight):
		return utils.SendError(c, fiber.StatusConflict, "submission already being graded")
	case errors.Is(err, service.ErrVerdictNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "no graded submission for problem")
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("submission request failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
