package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/arka-labs/sentra-go-api/internal/config"
	"github.com/arka-labs/sentra-go-api/internal/handler"
	"github.com/arka-labs/sentra-go-api/internal/middleware"
	"github.com/arka-labs/sentra-go-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ProblemHandler    *handler.ProblemHandler
	SubmissionHandler *handler.SubmissionHandler
	ProctorHandler    *handler.ProctorHandler
	JWTMiddleware     fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	// Common v1 group for health & headers
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	app.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	// Problem catalog with reveal gating. Management verbs share the prefix
	// but require an elevated role.
	if deps.ProblemHandler != nil {
		problems := app.Group("/api/v2/problems", jwtMiddleware)
		deps.ProblemHandler.Register(problems)
		deps.ProblemHandler.RegisterAdmin(problems.Group("", middleware.RequireRole("admin", "teacher")))
	}

	// Grading pipeline. Each grading call costs an upstream completion, so
	// submissions are rate limited per user on top of the in-flight gate.
	if deps.SubmissionHandler != nil {
		submissions := app.Group("/api/v2/submissions", jwtMiddleware, middleware.RateLimit("submissions", 10, time.Minute))
		deps.SubmissionHandler.Register(submissions)
	}

	// Proctored exam sessions (websocket + REST surface)
	if deps.ProctorHandler != nil {
		proctor := app.Group("/api/v2/proctor", jwtMiddleware)
		deps.ProctorHandler.Register(proctor)
	}
}
