package repositories

import (
	"context"
	"fmt"
	"sync"
	"time"

	"careportal/internal/models"

	"github.com/google/uuid"
)

// MockUserRepository is an in-memory implementation of UserRepository.
// Uniqueness is checked and the record stored under one lock, so concurrent
// creates with the same username or email admit exactly one winner.
type MockUserRepository struct {
	accounts   map[string]models.UserAccount
	byUsername map[string]string
	byEmail    map[string]string
	mu         sync.RWMutex
}

// NewMockUserRepository creates a new instance of MockUserRepository.
func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		accounts:   make(map[string]models.UserAccount),
		byUsername: make(map[string]string),
		byEmail:    make(map[string]string),
	}
}

// Create adds a new account.
func (r *MockUserRepository) Create(_ context.Context, account *models.UserAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account.Email = models.NormalizeEmail(account.Email)
	if _, ok := r.byUsername[account.Username]; ok {
		return &DuplicateKeyError{Field: FieldUsername}
	}
	if _, ok := r.byEmail[account.Email]; ok {
		return &DuplicateKeyError{Field: FieldEmail}
	}

	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	now := time.Now()
	account.CreatedAt = now
	account.UpdatedAt = now
	r.store(*account)
	return nil
}

// Update replaces an existing account, keeping its creation time.
func (r *MockUserRepository) Update(_ context.Context, account *models.UserAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.accounts[account.ID]
	if !ok {
		return fmt.Errorf("account with ID %s: %w", account.ID, ErrNotFound)
	}
	account.Email = models.NormalizeEmail(account.Email)
	if id, ok := r.byUsername[account.Username]; ok && id != account.ID {
		return &DuplicateKeyError{Field: FieldUsername}
	}
	if id, ok := r.byEmail[account.Email]; ok && id != account.ID {
		return &DuplicateKeyError{Field: FieldEmail}
	}

	delete(r.byUsername, current.Username)
	delete(r.byEmail, current.Email)
	account.CreatedAt = current.CreatedAt
	account.UpdatedAt = time.Now()
	r.store(*account)
	return nil
}

// GetByID returns an account by its ID.
func (r *MockUserRepository) GetByID(_ context.Context, id string) (*models.UserAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, ok := r.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account %q: %w", id, ErrNotFound)
	}
	return &account, nil
}

// GetByUsername returns an account by exact username.
func (r *MockUserRepository) GetByUsername(ctx context.Context, username string) (*models.UserAccount, error) {
	r.mu.RLock()
	id, ok := r.byUsername[username]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("account %q: %w", username, ErrNotFound)
	}
	return r.GetByID(ctx, id)
}

// GetByEmail returns an account by case-insensitive email.
func (r *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.UserAccount, error) {
	email = models.NormalizeEmail(email)
	r.mu.RLock()
	id, ok := r.byEmail[email]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("account %q: %w", email, ErrNotFound)
	}
	return r.GetByID(ctx, id)
}

// Count returns the number of stored accounts.
func (r *MockUserRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.accounts)
}

func (r *MockUserRepository) store(account models.UserAccount) {
	r.accounts[account.ID] = account
	r.byUsername[account.Username] = account.ID
	r.byEmail[account.Email] = account.ID
}
