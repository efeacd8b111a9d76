package handlers

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"careportal/internal/middleware"
	"careportal/internal/models"
	"careportal/internal/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	msgInvalidLogin  = "Invalid username or password. Please try again."
	msgSignupFailed  = "An error occurred during registration. Please try again."
	msgLoginFailed   = "An error occurred during login. Please try again."
	msgInvalidBody   = "Invalid request body"
	msgValidationErr = "Validation failed"
)

// CookieConfig controls the session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
}

// AuthHandler handles signup, login and logout.
type AuthHandler struct {
	authService *services.AuthService
	sessions    *services.SessionService
	router      *services.RoleRouter
	cookie      CookieConfig
	logger      *zap.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService, sessions *services.SessionService, router *services.RoleRouter, cookie CookieConfig, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{
		authService: authService,
		sessions:    sessions,
		router:      router,
		cookie:      cookie,
		logger:      logger.Named("auth_handler"),
	}
}

// RegisterRoutes registers the authentication routes.
func (h *AuthHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/", func(c *fiber.Ctx) error {
		return c.Redirect(services.LoginPath, fiber.StatusFound)
	})
	router.Get("/signup", h.HandleSignupPage)
	router.Post("/signup", h.HandleSignup)
	router.Get("/login", h.HandleLoginPage)
	router.Post("/login", h.HandleLogin)
	router.Post("/logout", middleware.LoginRequired(), h.HandleLogout)
}

// HandleSignupPage describes the signup form and returns pending messages.
func (h *AuthHandler) HandleSignupPage(c *fiber.Ctx) error {
	if middleware.CurrentAccount(c) != nil {
		return c.Redirect(services.DashboardPath, fiber.StatusFound)
	}
	return c.JSON(fiber.Map{
		"title":    "Sign Up",
		"roles":    models.Roles,
		"messages": takeFlashes(c),
	})
}

// HandleLoginPage returns pending messages for the login form.
func (h *AuthHandler) HandleLoginPage(c *fiber.Ctx) error {
	if middleware.CurrentAccount(c) != nil {
		return c.Redirect(services.DashboardPath, fiber.StatusFound)
	}
	return c.JSON(fiber.Map{
		"title":    "Login",
		"next":     c.Query("next"),
		"messages": takeFlashes(c),
	})
}

// HandleSignup registers an account, logs it in and redirects to its
// dashboard.
func (h *AuthHandler) HandleSignup(c *fiber.Ctx) error {
	if middleware.CurrentAccount(c) != nil {
		return c.Redirect(services.DashboardPath, fiber.StatusSeeOther)
	}

	var req services.SignupRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": msgInvalidBody,
		})
	}

	// Register the account
	account, err := h.authService.Register(c.UserContext(), req)
	if err != nil {
		var fieldErr *services.FieldValidationError
		if errors.As(err, &fieldErr) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": msgValidationErr,
				"errors":  fieldErr.Fields,
				"form":    req.Redacted(),
			})
		}
		h.logger.Error("signup failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": msgSignupFailed,
		})
	}

	// Log the new account in
	if err := h.startSession(c, account); err != nil {
		h.logger.Error("failed to start session after signup", zap.String("account_id", account.ID), zap.Error(err))
		addFlash(c, levelInfo, "Your account has been created. Please log in.")
		return c.Redirect(services.LoginPath, fiber.StatusSeeOther)
	}

	addFlash(c, levelSuccess, fmt.Sprintf("Welcome %s! Your account has been created successfully.", account.FullName()))
	return h.redirectToDashboard(c, account)
}

// LoginRequest represents the request body for login. Username is accepted
// as an alias of Identifier.
type LoginRequest struct {
	Identifier string `json:"identifier" form:"identifier"`
	Username   string `json:"username" form:"username"`
	Password   string `json:"password" form:"password"`
	Next       string `json:"next" form:"next"`
}

// HandleLogin authenticates by username or email and starts a session.
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	if middleware.CurrentAccount(c) != nil {
		return c.Redirect(services.DashboardPath, fiber.StatusSeeOther)
	}

	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": msgInvalidBody,
		})
	}
	// The form may post the identifier as "username"
	identifier := req.Identifier
	if identifier == "" {
		identifier = req.Username
	}

	account, err := h.authService.Authenticate(c.UserContext(), identifier, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": msgInvalidLogin,
			})
		}
		h.logger.Error("login failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": msgLoginFailed,
		})
	}

	if err := h.startSession(c, account); err != nil {
		h.logger.Error("failed to start session", zap.String("account_id", account.ID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": msgLoginFailed,
		})
	}

	addFlash(c, levelSuccess, fmt.Sprintf("Welcome back, %s!", account.FullName()))

	// Redirect to next page or dashboard
	next := c.Query("next")
	if next == "" {
		next = req.Next
	}
	if target, ok := sameOriginTarget(next, c.Hostname()); ok {
		return c.Redirect(target, fiber.StatusSeeOther)
	}
	return h.redirectToDashboard(c, account)
}

// HandleLogout destroys the current session.
func (h *AuthHandler) HandleLogout(c *fiber.Ctx) error {
	account := middleware.CurrentAccount(c)
	if err := h.sessions.Destroy(c.UserContext(), c.Cookies(h.cookie.Name)); err != nil && !errors.Is(err, services.ErrSessionNotFound) {
		h.logger.Error("failed to destroy session", zap.String("account_id", account.ID), zap.Error(err))
	}
	expireSessionCookie(c, h.cookie)
	h.authService.AccountLoggedOut(account)

	addFlash(c, levelInfo, fmt.Sprintf("Goodbye %s! You have been logged out successfully.", account.FullName()))
	return c.Redirect(services.LoginPath, fiber.StatusSeeOther)
}

func (h *AuthHandler) startSession(c *fiber.Ctx, account *models.UserAccount) error {
	token, session, err := h.sessions.Establish(c.UserContext(), account, c.Cookies(h.cookie.Name))
	if err != nil {
		return err
	}
	c.Cookie(&fiber.Cookie{
		Name:     h.cookie.Name,
		Value:    token,
		Path:     "/",
		HTTPOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: fiber.CookieSameSiteLaxMode,
		Expires:  session.ExpiresAt,
	})
	return nil
}

// expireSessionCookie removes the session cookie from the browser. It carries
// the same attributes as the cookie set at login.
func expireSessionCookie(c *fiber.Ctx, cookie CookieConfig) {
	c.Cookie(&fiber.Cookie{
		Name:     cookie.Name,
		Value:    "",
		Path:     "/",
		HTTPOnly: true,
		Secure:   cookie.Secure,
		SameSite: fiber.CookieSameSiteLaxMode,
		Expires:  time.Unix(0, 0),
	})
}

func (h *AuthHandler) redirectToDashboard(c *fiber.Ctx, account *models.UserAccount) error {
	target, err := h.router.RouteFor(account.Role)
	if err != nil {
		h.logger.Error("account has invalid role", zap.String("account_id", account.ID), zap.Error(err))
		return c.Redirect(services.DashboardPath, fiber.StatusSeeOther)
	}
	return c.Redirect(target, fiber.StatusSeeOther)
}

// sameOriginTarget accepts next only if it is a local path or an absolute URL
// on host.
func sameOriginTarget(next, host string) (string, bool) {
	if next == "" || strings.ContainsAny(next, "\\\r\n") {
		return "", false
	}
	u, err := url.Parse(next)
	if err != nil {
		return "", false
	}
	if u.Scheme == "" && u.Host == "" {
		if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
			return "", false
		}
		return next, true
	}
	if (u.Scheme == "http" || u.Scheme == "https") && u.User == nil && strings.EqualFold(u.Host, host) {
		return next, true
	}
	return "", false
}
