package repositories

import (
	"context"

	"careportal/internal/models"
)

// UserRepository defines the interface for account data access.
// Implementations must enforce uniqueness of username and lowercased email at
// write time and report violations as *DuplicateKeyError.
type UserRepository interface {
	Create(ctx context.Context, account *models.UserAccount) error
	Update(ctx context.Context, account *models.UserAccount) error
	GetByID(ctx context.Context, id string) (*models.UserAccount, error)
	GetByUsername(ctx context.Context, username string) (*models.UserAccount, error)
	GetByEmail(ctx context.Context, email string) (*models.UserAccount, error)
}
