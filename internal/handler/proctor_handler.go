package handler

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/arka-labs/sentra-go-api/internal/dto"
	"github.com/arka-labs/sentra-go-api/internal/middleware"
	"github.com/arka-labs/sentra-go-api/internal/service"
	"github.com/arka-labs/sentra-go-api/internal/utils"
)

// ProctorHandler wires proctored session endpoints including the websocket
// upgrade that backs each live session.
type ProctorHandler struct {
	service   service.ProctorService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewProctorHandler creates a proctor handler instance.
func NewProctorHandler(service service.ProctorService, validator *validator.Validate, logger zerolog.Logger) *ProctorHandler {
	return &ProctorHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "proctor_handler").Logger(),
	}
}

// Register binds proctor routes under the provided router group.
func (h *ProctorHandler) Register(router fiber.Router) {
	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			ctx := c.UserContext()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx = middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
			c.Locals("request_ctx", ctx)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	router.Get("/ws", websocket.New(h.handleConnection))
	router.Post("/sessions", h.start)
	router.Get("/sessions", h.sessions)
	router.Get("/sessions/:id", h.get)
	router.Post("/sessions/:id/dismiss", h.dismiss)
	router.Patch("/sessions/:id", h.toggle)
	router.Delete("/sessions/:id", h.teardown)
}

func (h *ProctorHandler) handleConnection(conn *websocket.Conn) {
	userID := websocketUserID(conn)
	if userID == 0 {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(fiber.StatusUnauthorized, "user id missing"))
		_ = conn.Close()
		return
	}

	sessionID := strings.TrimSpace(conn.Query("session_id"))

	var problemID uint64
	if sessionID == "" {
		var err error
		problemID, err = strconv.ParseUint(strings.TrimSpace(conn.Query("problem_id")), 10, 64)
		if err != nil || problemID == 0 {
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(fiber.StatusBadRequest, "problem_id or session_id required"))
			_ = conn.Close()
			return
		}
	}

	enabled := true
	if raw := strings.TrimSpace(conn.Query("enabled")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(fiber.StatusBadRequest, "invalid enabled flag"))
			_ = conn.Close()
			return
		}
		enabled = parsed
	}

	correlation := ""
	if v, ok := conn.Locals("correlation_id").(string); ok {
		correlation = v
	}
	baseCtx, _ := conn.Locals("request_ctx").(context.Context)

	opts := service.SessionConnectionOptions{
		SessionID:     sessionID,
		UserID:        userID,
		ProblemID:     uint(problemID),
		Enabled:       enabled,
		CorrelationID: correlation,
		Context:       baseCtx,
	}

	h.logger.Info().Uint("user_id", userID).Str("session_id", sessionID).Uint64("problem_id", problemID).Msg("proctor websocket connected")
	h.service.ServeConnection(conn, opts)
	h.logger.Info().Uint("user_id", userID).Str("session_id", sessionID).Uint64("problem_id", problemID).Msg("proctor websocket disconnected")
}

func (h *ProctorHandler) start(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var payload dto.StartSessionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	session, err := h.service.Start(c.Context(), userID, payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "session started", session)
}

func (h *ProctorHandler) sessions(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "unauthorized")
	}

	sessions := h.service.Sessions(c.Context(), userID)
	return utils.SendSuccess(c, "sessions retrieved", sessions)
}

func (h *ProctorHandler) get(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "unauthorized")
	}

	session, err := h.service.Get(c.Context(), userID, c.Params("id"))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "session retrieved", session)
}

func (h *ProctorHandler) dismiss(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "unauthorized")
	}

	session, err := h.service.DismissWarning(c.Context(), userID, c.Params("id"))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "warning dismissed", session)
}

func (h *ProctorHandler) toggle(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var payload dto.SessionToggleRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	session, err := h.service.SetEnabled(c.Context(), userID, c.Params("id"), payload.Enabled)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "session updated", session)
}

func (h *ProctorHandler) teardown(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "unauthorized")
	}

	if err := h.service.Teardown(c.Context(), userID, c.Params("id")); err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "session closed", nil)
}

func (h *ProctorHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "session not found")
	case errors.Is(err, service.ErrSessionForbidden):
		return utils.SendError(c, fiber.StatusForbidden, "forbidden")
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("proctor request failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}

func websocketUserID(conn *websocket.Conn) uint {
	if v := conn.Locals("user_id"); v != nil {
		if id, ok := v.(uint); ok {
			return id
		}
		if id, ok := v.(int); ok && id > 0 {
			return uint(id)
		}
	}
	return 0
}
