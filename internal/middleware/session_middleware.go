package middleware

import (
	"errors"
	"net/url"

	"careportal/internal/models"
	"careportal/internal/repositories"
	"careportal/internal/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	accountKey = "account"
	sessionKey = "session"
)

// SessionLoader resolves the session cookie into an account.
type SessionLoader struct {
	sessions   *services.SessionService
	users      repositories.UserRepository
	cookieName string
	logger     *zap.Logger
}

// NewSessionLoader creates a new SessionLoader.
func NewSessionLoader(sessions *services.SessionService, users repositories.UserRepository, cookieName string, logger *zap.Logger) *SessionLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionLoader{
		sessions:   sessions,
		users:      users,
		cookieName: cookieName,
		logger:     logger.Named("session"),
	}
}

// CookieName is the name of the session cookie.
func (l *SessionLoader) CookieName() string { return l.cookieName }

// Attach loads the current account, if any, into the request. Requests
// without a valid session continue anonymously.
func (l *SessionLoader) Attach() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Cookies(l.cookieName)
		if token == "" {
			return c.Next()
		}
		session, err := l.sessions.Resolve(c.UserContext(), token)
		if err != nil {
			if !errors.Is(err, services.ErrSessionNotFound) {
				l.logger.Error("failed to resolve session", zap.Error(err))
			}
			return c.Next()
		}
		account, err := l.users.GetByID(c.UserContext(), session.AccountID)
		if err != nil {
			if !errors.Is(err, repositories.ErrNotFound) {
				l.logger.Error("failed to load session account", zap.String("account_id", session.AccountID), zap.Error(err))
			}
			return c.Next()
		}
		c.Locals(sessionKey, session)
		c.Locals(accountKey, account)
		return c.Next()
	}
}

// LoginRequired redirects anonymous requests to the login page, carrying the
// requested path in the next parameter.
func LoginRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if CurrentAccount(c) == nil {
			target := services.LoginPath + "?next=" + url.QueryEscape(c.OriginalURL())
			return c.Redirect(target, fiber.StatusFound)
		}
		return c.Next()
	}
}

// CurrentAccount returns the account bound to the request, or nil.
func CurrentAccount(c *fiber.Ctx) *models.UserAccount {
	account, _ := c.Locals(accountKey).(*models.UserAccount)
	return account
}

// CurrentSession returns the session bound to the request, or nil.
func CurrentSession(c *fiber.Ctx) *models.Session {
	session, _ := c.Locals(sessionKey).(*models.Session)
	return session
}
