package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"careportal/internal/models"
)

var (
	// ErrInvalidCredentials is returned for every failed login, whatever the
	// cause, so callers cannot tell unknown accounts from wrong passwords.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrSessionNotFound is returned when a token is malformed, forged,
	// expired, or names a destroyed session.
	ErrSessionNotFound = errors.New("session not found")
)

// FieldErrors maps a form field name to its ordered error messages.
type FieldErrors map[string][]string

// Add appends msg to the messages of field.
func (f FieldErrors) Add(field, msg string) {
	f[field] = append(f[field], msg)
}

// Has reports whether field has any messages.
func (f FieldErrors) Has(field string) bool {
	return len(f[field]) > 0
}

// FieldValidationError carries per-field messages for a rejected form.
type FieldValidationError struct {
	Fields FieldErrors
}

func (e *FieldValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return "validation failed: " + strings.Join(names, ", ")
}

// AccessDeniedError is returned when an authenticated account lacks the role
// a resource requires.
type AccessDeniedError struct {
	Required models.Role
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("Access denied. You are not a %s.", e.Required)
}

// InvariantViolationError reports state that must never exist, such as a role
// outside the known set.
type InvariantViolationError struct {
	Detail string
}

func (e *InvariantViolationError) Error() string {
	return "invariant violation: " + e.Detail
}
