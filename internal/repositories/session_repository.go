package repositories

import (
	"context"

	"careportal/internal/models"
)

// SessionRepository stores server-side session records until they expire.
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, id string) (*models.Session, error)
	Delete(ctx context.Context, id string) error
}
