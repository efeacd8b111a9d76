package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"careportal/internal/models"
	"careportal/internal/repositories"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
)

// SessionService establishes, resolves and destroys sessions. The browser
// holds a signed token naming a server-side session record; destroying the
// record revokes the token.
type SessionService struct {
	repo   repositories.SessionRepository
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionService creates a new SessionService.
func NewSessionService(repo repositories.SessionRepository, secret string, ttl time.Duration) *SessionService {
	return &SessionService{
		repo:   repo,
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// TTL is the lifetime of a new session.
func (s *SessionService) TTL() time.Duration { return s.ttl }

// Establish starts a session for account and returns its token. Any session
// named by previousToken is destroyed first so the browser context is bound
// to exactly one identity.
func (s *SessionService) Establish(ctx context.Context, account *models.UserAccount, previousToken string) (string, *models.Session, error) {
	// Drop whatever session this browser held before
	if previousToken != "" {
		if err := s.Destroy(ctx, previousToken); err != nil && !errors.Is(err, ErrSessionNotFound) {
			return "", nil, err
		}
	}

	now := s.now()
	session := &models.Session{
		ID:        uuid.New().String(),
		AccountID: account.ID,
		Role:      account.Role,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.repo.Create(ctx, session); err != nil {
		return "", nil, fmt.Errorf("failed to store session: %w", err)
	}

	// Sign a token naming the stored record
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sid": session.ID,
		"sub": account.ID,
		"iat": now.Unix(),
		"exp": session.ExpiresAt.Unix(),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		_ = s.repo.Delete(ctx, session.ID)
		return "", nil, fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, session, nil
}

// Resolve returns the live session named by token.
func (s *SessionService) Resolve(ctx context.Context, token string) (*models.Session, error) {
	sid, sub, err := s.parse(token)
	if err != nil {
		return nil, err
	}
	session, err := s.repo.GetByID(ctx, sid)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	// The record must belong to the token's subject and still be live
	if session.AccountID != sub || session.IsExpiredAt(s.now()) {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Destroy removes the session named by token.
func (s *SessionService) Destroy(ctx context.Context, token string) error {
	sid, _, err := s.parse(token)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, sid); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (s *SessionService) parse(tokenString string) (sid, sub string, err error) {
	if tokenString == "" {
		return "", "", ErrSessionNotFound
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return "", "", ErrSessionNotFound
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", ErrSessionNotFound
	}
	sid, _ = claims["sid"].(string)
	sub, _ = claims["sub"].(string)
	if sid == "" || sub == "" {
		return "", "", ErrSessionNotFound
	}
	return sid, sub, nil
}
