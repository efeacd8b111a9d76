package handlers

import (
	"errors"

	"careportal/internal/middleware"
	"careportal/internal/models"
	"careportal/internal/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// DashboardHandler routes authenticated accounts to their role dashboard.
type DashboardHandler struct {
	router   *services.RoleRouter
	sessions *services.SessionService
	cookie   CookieConfig
	logger   *zap.Logger
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(router *services.RoleRouter, sessions *services.SessionService, cookie CookieConfig, logger *zap.Logger) *DashboardHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardHandler{
		router:   router,
		sessions: sessions,
		cookie:   cookie,
		logger:   logger.Named("dashboard_handler"),
	}
}

// RegisterRoutes registers the dashboard routes; all require a session.
func (h *DashboardHandler) RegisterRoutes(router fiber.Router) {
	dashboard := router.Group(services.DashboardPath, middleware.LoginRequired())
	dashboard.Get("/", h.HandleDashboardRedirect)
	dashboard.Get("/patient", h.roleDashboard(models.RolePatient, "Patient Dashboard"))
	dashboard.Get("/doctor", h.roleDashboard(models.RoleDoctor, "Doctor Dashboard"))
}

// HandleDashboardRedirect sends the account to its role's dashboard.
func (h *DashboardHandler) HandleDashboardRedirect(c *fiber.Ctx) error {
	account := middleware.CurrentAccount(c)
	target, err := h.router.RouteFor(account.Role)
	if err != nil {
		return h.invariantViolation(c, account, err)
	}
	return c.Redirect(target, fiber.StatusFound)
}

func (h *DashboardHandler) roleDashboard(required models.Role, title string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		account := middleware.CurrentAccount(c)
		if err := h.router.Guard(account.Role, required); err != nil {
			var denied *services.AccessDeniedError
			if errors.As(err, &denied) {
				h.logger.Info("dashboard access denied",
					zap.String("account_id", account.ID),
					zap.String("role", string(account.Role)),
					zap.String("required", string(required)),
				)
				addFlash(c, levelError, denied.Error())
				return c.Redirect(services.DashboardPath, fiber.StatusFound)
			}
			return h.invariantViolation(c, account, err)
		}

		return c.JSON(fiber.Map{
			"title":    title,
			"user":     newAccountView(account),
			"messages": takeFlashes(c),
		})
	}
}

// invariantViolation ends the session of an account whose role is outside
// the known set and sends the browser to the login page.
func (h *DashboardHandler) invariantViolation(c *fiber.Ctx, account *models.UserAccount, err error) error {
	// No dashboard exists for this role; end the session so /login does not
	// bounce the browser straight back here.
	h.logger.Error("invalid account role", zap.String("account_id", account.ID), zap.Error(err))
	if destroyErr := h.sessions.Destroy(c.UserContext(), c.Cookies(h.cookie.Name)); destroyErr != nil && !errors.Is(destroyErr, services.ErrSessionNotFound) {
		h.logger.Error("failed to destroy session", zap.String("account_id", account.ID), zap.Error(destroyErr))
	}
	expireSessionCookie(c, h.cookie)
	addFlash(c, levelError, "Invalid user type.")
	return c.Redirect(services.LoginPath, fiber.StatusFound)
}
