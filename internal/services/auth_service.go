package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"careportal/internal/models"
	"careportal/internal/repositories"

	"go.uber.org/zap"
)

// AuthService handles registration and credential checks.
type AuthService struct {
	userRepo  repositories.UserRepository
	hasher    PasswordHasher
	validator *RegistrationValidator
	events    EventPublisher
	logger    *zap.Logger
}

// NewAuthService creates a new AuthService. events may be nil.
func NewAuthService(userRepo repositories.UserRepository, hasher PasswordHasher, validator *RegistrationValidator, events EventPublisher, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		userRepo:  userRepo,
		hasher:    hasher,
		validator: validator,
		events:    events,
		logger:    logger.Named("auth"),
	}
}

// Register validates req, hashes the password once and inserts the account.
// A uniqueness violation detected by the repository at insert time, after
// validation passed, is reported as a *FieldValidationError like any other
// duplicate.
func (s *AuthService) Register(ctx context.Context, req SignupRequest) (*models.UserAccount, error) {
	// Validate and normalize the payload
	draft, err := s.validator.Validate(ctx, req)
	if err != nil {
		return nil, err
	}

	// Hash the password
	hash, err := s.hasher.Hash(draft.Password())
	if err != nil {
		return nil, err
	}

	account := &models.UserAccount{
		Username:          draft.Username,
		Email:             draft.Email,
		PasswordHash:      hash,
		Role:              draft.Role,
		FirstName:         draft.FirstName,
		LastName:          draft.LastName,
		PhoneNumber:       draft.PhoneNumber,
		AddressLine1:      draft.AddressLine1,
		City:              draft.City,
		State:             draft.State,
		Pincode:           draft.Pincode,
		ProfilePictureRef: draft.ProfilePictureRef,
	}

	// Save the account. The unique indexes have the final say: a signup that
	// passed validation can still lose a race here.
	if err := s.userRepo.Create(ctx, account); err != nil {
		var dup *repositories.DuplicateKeyError
		if errors.As(err, &dup) {
			s.logger.Info("signup lost uniqueness race", zap.String("field", dup.Field), zap.String("username", account.Username))
			return nil, duplicateFieldError(dup.Field)
		}
		return nil, fmt.Errorf("failed to register account: %w", err)
	}

	s.logger.Info("account registered",
		zap.String("account_id", account.ID),
		zap.String("username", account.Username),
		zap.String("role", string(account.Role)),
	)
	publishAccountEvent(s.events, s.logger, models.EventAccountRegistered, account)
	return account, nil
}

// ResolveIdentifier maps a login identifier to the username to verify. An
// identifier containing "@" is first tried as an email; when no account has
// that email the identifier itself is used as the username.
func (s *AuthService) ResolveIdentifier(ctx context.Context, identifier string) (string, error) {
	if !strings.Contains(identifier, "@") {
		return identifier, nil
	}
	account, err := s.userRepo.GetByEmail(ctx, identifier)
	if err == nil {
		return account.Username, nil
	}
	if errors.Is(err, repositories.ErrNotFound) {
		return identifier, nil
	}
	return "", fmt.Errorf("failed to resolve login identifier: %w", err)
}

// Authenticate returns the account for identifier if password verifies.
// Unknown identifiers and wrong passwords both yield ErrInvalidCredentials.
func (s *AuthService) Authenticate(ctx context.Context, identifier, password string) (*models.UserAccount, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	// Find the user by username or email
	username, err := s.ResolveIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}

	account, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	// Compare the provided password with the stored hash
	ok, err := s.hasher.Verify(password, account.PasswordHash)
	if err != nil {
		s.logger.Error("stored password hash unusable", zap.String("account_id", account.ID), zap.Error(err))
		return nil, ErrInvalidCredentials
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	publishAccountEvent(s.events, s.logger, models.EventAccountLoggedIn, account)
	return account, nil
}

// AccountLoggedOut records a logout.
func (s *AuthService) AccountLoggedOut(account *models.UserAccount) {
	publishAccountEvent(s.events, s.logger, models.EventAccountLoggedOut, account)
}

// GetAccount loads an account by ID.
func (s *AuthService) GetAccount(ctx context.Context, id string) (*models.UserAccount, error) {
	return s.userRepo.GetByID(ctx, id)
}

func duplicateFieldError(field string) *FieldValidationError {
	fields := FieldErrors{}
	switch field {
	case repositories.FieldUsername:
		fields.Add("username", MsgUsernameTaken)
	default:
		fields.Add("email", MsgEmailTaken)
	}
	return &FieldValidationError{Fields: fields}
}
