package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"careportal/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMUserRepository is a GORM implementation of UserRepository.
// The gorm.DB should be opened with TranslateError enabled so unique index
// violations surface as gorm.ErrDuplicatedKey.
type GORMUserRepository struct {
	db *gorm.DB
}

// NewGORMUserRepository creates a new instance of GORMUserRepository.
func NewGORMUserRepository(db *gorm.DB) *GORMUserRepository {
	return &GORMUserRepository{
		db: db,
	}
}

// Migrate creates the accounts table and its unique indexes.
func (r *GORMUserRepository) Migrate() error {
	if err := r.db.AutoMigrate(&models.UserAccount{}); err != nil {
		return fmt.Errorf("failed to migrate user accounts: %w", err)
	}
	return nil
}

// Create inserts a new account. A unique index violation is reported as a
// *DuplicateKeyError naming the colliding field.
func (r *GORMUserRepository) Create(ctx context.Context, account *models.UserAccount) error {
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(account).Error; err != nil {
		if isDuplicateKey(err) {
			return r.conflict(ctx, account)
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// Update saves every column of an existing account.
func (r *GORMUserRepository) Update(ctx context.Context, account *models.UserAccount) error {
	account.Email = models.NormalizeEmail(account.Email)
	res := r.db.WithContext(ctx).Model(account).Select("*").Omit("created_at").Updates(account)
	if res.Error != nil {
		if isDuplicateKey(res.Error) {
			return r.conflict(ctx, account)
		}
		return fmt.Errorf("failed to update account: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("account with ID %s: %w", account.ID, ErrNotFound)
	}
	return nil
}

// GetByID retrieves an account by its ID.
func (r *GORMUserRepository) GetByID(ctx context.Context, id string) (*models.UserAccount, error) {
	return r.first(ctx, "id = ?", id)
}

// GetByUsername retrieves an account by exact username.
func (r *GORMUserRepository) GetByUsername(ctx context.Context, username string) (*models.UserAccount, error) {
	return r.first(ctx, "username = ?", username)
}

// GetByEmail retrieves an account by email, compared case-insensitively.
func (r *GORMUserRepository) GetByEmail(ctx context.Context, email string) (*models.UserAccount, error) {
	return r.first(ctx, "email = ?", models.NormalizeEmail(email))
}

func (r *GORMUserRepository) first(ctx context.Context, query string, arg string) (*models.UserAccount, error) {
	var account models.UserAccount
	if err := r.db.WithContext(ctx).First(&account, query, arg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("account %q: %w", arg, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get account %q: %w", arg, err)
	}
	return &account, nil
}

// conflict works out which unique index rejected the write. The username is
// checked first; anything else is attributed to the email index.
func (r *GORMUserRepository) conflict(ctx context.Context, account *models.UserAccount) error {
	existing, err := r.GetByUsername(ctx, account.Username)
	if err == nil && existing.ID != account.ID {
		return &DuplicateKeyError{Field: FieldUsername}
	}
	return &DuplicateKeyError{Field: FieldEmail}
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}
