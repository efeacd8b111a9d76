// Package server assembles the HTTP application.
package server

import (
	"errors"
	"time"

	"careportal/internal/handlers"
	"careportal/internal/middleware"
	"careportal/internal/repositories"
	"careportal/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"
)

// Deps are the collaborators the HTTP layer needs.
type Deps struct {
	Users        repositories.UserRepository
	Auth         *services.AuthService
	Sessions     *services.SessionService
	Availability *services.AvailabilityChecker
	Router       *services.RoleRouter
	Cookie       handlers.CookieConfig
	Logger       *zap.Logger
}

// New builds the fiber app with every route registered.
func New(deps Deps) *fiber.App {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		AppName:      "careportal",
		ErrorHandler: errorHandler(logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	})

	// --- Middleware ---
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.RequestLogger(logger.Named("http")))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Every route below sees the current account, if any
	loader := middleware.NewSessionLoader(deps.Sessions, deps.Users, deps.Cookie.Name, logger)
	app.Use(loader.Attach())

	handlers.NewAuthHandler(deps.Auth, deps.Sessions, deps.Router, deps.Cookie, logger).RegisterRoutes(app)
	handlers.NewDashboardHandler(deps.Router, deps.Sessions, deps.Cookie, logger).RegisterRoutes(app)
	handlers.NewValidationHandler(deps.Availability, logger).RegisterRoutes(app)

	return app
}

// errorHandler answers unhandled errors with a generic JSON body; internal
// details are only logged.
func errorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "Internal server error"

		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			message = fe.Message
		} else {
			logger.Error("unhandled error", zap.String("path", c.Path()), zap.Error(err))
		}
		return c.Status(code).JSON(fiber.Map{"message": message})
	}
}
