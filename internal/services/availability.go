package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"careportal/internal/models"
	"careportal/internal/repositories"
)

const minUsernameLength = 3

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Reason explains an availability outcome.
type Reason string

const (
	ReasonAvailable     Reason = "available"
	ReasonRequired      Reason = "required"
	ReasonTooShort      Reason = "too short"
	ReasonInvalidFormat Reason = "invalid format"
	ReasonTaken         Reason = "taken"
)

// Availability is the result of an advisory uniqueness check. It can be stale
// by the time the account is inserted; the repository's unique indexes are
// the authority.
type Availability struct {
	Available bool
	Reason    Reason
	Message   string
}

// AvailabilityChecker answers live-validation queries about usernames and
// emails.
type AvailabilityChecker struct {
	userRepo repositories.UserRepository
}

// NewAvailabilityChecker creates a new AvailabilityChecker.
func NewAvailabilityChecker(userRepo repositories.UserRepository) *AvailabilityChecker {
	return &AvailabilityChecker{userRepo: userRepo}
}

// CheckUsername fails closed on empty or short input, then looks for an exact
// match.
func (a *AvailabilityChecker) CheckUsername(ctx context.Context, candidate string) (Availability, error) {
	username := strings.TrimSpace(candidate)
	if username == "" {
		return Availability{Reason: ReasonRequired, Message: "Username is required"}, nil
	}
	if utf8.RuneCountInString(username) < minUsernameLength {
		return Availability{Reason: ReasonTooShort, Message: "Username must be at least 3 characters"}, nil
	}

	// Exact, case-sensitive match
	taken, err := a.UsernameTaken(ctx, username)
	if err != nil {
		return Availability{}, err
	}
	if taken {
		return Availability{Reason: ReasonTaken, Message: "This username is already taken"}, nil
	}
	return Availability{Available: true, Reason: ReasonAvailable, Message: "Username is available"}, nil
}

// CheckEmail fails closed on empty or malformed input, then looks for a
// case-insensitive match.
func (a *AvailabilityChecker) CheckEmail(ctx context.Context, candidate string) (Availability, error) {
	email := models.NormalizeEmail(candidate)
	if email == "" {
		return Availability{Reason: ReasonRequired, Message: "Email is required"}, nil
	}
	if !ValidEmailSyntax(email) {
		return Availability{Reason: ReasonInvalidFormat, Message: "Invalid email format"}, nil
	}

	taken, err := a.EmailTaken(ctx, email)
	if err != nil {
		return Availability{}, err
	}
	if taken {
		return Availability{Reason: ReasonTaken, Message: "This email address is already registered"}, nil
	}
	return Availability{Available: true, Reason: ReasonAvailable, Message: "Email is available"}, nil
}

// UsernameTaken reports whether an account already uses username.
func (a *AvailabilityChecker) UsernameTaken(ctx context.Context, username string) (bool, error) {
	return exists(a.userRepo.GetByUsername(ctx, username))
}

// EmailTaken reports whether an account already uses email, ignoring case.
func (a *AvailabilityChecker) EmailTaken(ctx context.Context, email string) (bool, error) {
	return exists(a.userRepo.GetByEmail(ctx, models.NormalizeEmail(email)))
}

// ValidEmailSyntax reports whether email is shaped like local@domain.tld.
func ValidEmailSyntax(email string) bool {
	return emailPattern.MatchString(email)
}

func exists(_ *models.UserAccount, err error) (bool, error) {
	if err == nil {
		return true, nil
	}
	if errors.Is(err, repositories.ErrNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("failed to check availability: %w", err)
}
