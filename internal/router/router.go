package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xiaokaoba/shenlun-go-api/internal/config"
	"github.com/xiaokaoba/shenlun-go-api/internal/handler"
	"github.com/xiaokaoba/shenlun-go-api/internal/middleware"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	EssayHandler    *handler.EssayHandler
	QuestionHandler *handler.QuestionHandler
	PracticeHandler *handler.PracticeHandler
	HistoryHandler  *handler.HistoryHandler
	JWTMiddleware   fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	if deps.EssayHandler != nil {
		// Grading hits the AI backend, so keep the submission rate modest.
		essays := api.Group("/essays", middleware.RateLimit("essays", 20, time.Minute))
		deps.EssayHandler.Register(essays)
	}

	if deps.QuestionHandler != nil {
		deps.QuestionHandler.Register(api.Group("/questions"))
	}

	if deps.PracticeHandler != nil {
		deps.PracticeHandler.Register(api.Group("/practice"))
	}

	if deps.HistoryHandler != nil {
		deps.HistoryHandler.Register(api.Group("/history"))
	}

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	admin := api.Group("/admin", jwtMiddleware, middleware.RequireRole("admin"))
	if deps.QuestionHandler != nil {
		deps.QuestionHandler.RegisterAdmin(admin.Group("/questions"))
	}
}
