package repositories_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"careportal/internal/models"
	"careportal/internal/repositories"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupGORMRepo(t *testing.T) *repositories.GORMUserRepository {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	repo := repositories.NewGORMUserRepository(db)
	require.NoError(t, repo.Migrate())
	return repo
}

func newAccount(username, email string) *models.UserAccount {
	return &models.UserAccount{
		Username:     username,
		Email:        email,
		PasswordHash: "hash",
		Role:         models.RolePatient,
		FirstName:    "Test",
		LastName:     "User",
		City:         "Pune",
	}
}

func TestGORMUserRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := setupGORMRepo(t)

	account := newAccount("asha", "Asha@Example.com")
	require.NoError(t, repo.Create(ctx, account))
	assert.NotEmpty(t, account.ID)
	assert.False(t, account.CreatedAt.IsZero())

	byID, err := repo.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "asha", byID.Username)
	assert.Equal(t, "asha@example.com", byID.Email)

	byUsername, err := repo.GetByUsername(ctx, "asha")
	require.NoError(t, err)
	assert.Equal(t, account.ID, byUsername.ID)

	byEmail, err := repo.GetByEmail(ctx, "ASHA@example.COM")
	require.NoError(t, err)
	assert.Equal(t, account.ID, byEmail.ID)

	_, err = repo.GetByUsername(ctx, "ASHA")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestGORMUserRepository_DuplicateKeys(t *testing.T) {
	ctx := context.Background()
	repo := setupGORMRepo(t)
	require.NoError(t, repo.Create(ctx, newAccount("asha", "asha@example.com")))

	err := repo.Create(ctx, newAccount("asha", "other@example.com"))
	var dup *repositories.DuplicateKeyError
	require.True(t, errors.As(err, &dup), "got %v", err)
	assert.Equal(t, repositories.FieldUsername, dup.Field)
	assert.ErrorIs(t, err, repositories.ErrDuplicateKey)

	err = repo.Create(ctx, newAccount("ravi", "ASHA@example.com"))
	require.True(t, errors.As(err, &dup), "got %v", err)
	assert.Equal(t, repositories.FieldEmail, dup.Field)
}

func TestGORMUserRepository_ConcurrentCreateEmailCaseVariants(t *testing.T) {
	ctx := context.Background()
	repo := setupGORMRepo(t)

	emails := []string{"shared@example.com", "SHARED@Example.com"}
	const attempts = 6
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		created  int
		conflict int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := repo.Create(ctx, newAccount(fmt.Sprintf("user%d", i), emails[i%len(emails)]))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, repositories.ErrDuplicateKey):
				conflict++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, attempts-1, conflict)
}

func TestGORMUserRepository_Update(t *testing.T) {
	ctx := context.Background()
	repo := setupGORMRepo(t)
	account := newAccount("asha", "asha@example.com")
	require.NoError(t, repo.Create(ctx, account))
	require.NoError(t, repo.Create(ctx, newAccount("ravi", "ravi@example.com")))

	account.City = "Mumbai"
	account.Email = "Asha.New@Example.com"
	require.NoError(t, repo.Update(ctx, account))

	updated, err := repo.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mumbai", updated.City)
	assert.Equal(t, "asha.new@example.com", updated.Email)

	account.Email = "ravi@example.com"
	err = repo.Update(ctx, account)
	var dup *repositories.DuplicateKeyError
	require.True(t, errors.As(err, &dup), "got %v", err)
	assert.Equal(t, repositories.FieldEmail, dup.Field)

	missing := newAccount("ghost", "ghost@example.com")
	missing.ID = uuid.NewString()
	assert.ErrorIs(t, repo.Update(ctx, missing), repositories.ErrNotFound)
}
