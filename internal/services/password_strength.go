package services

import (
	"strings"
	"unicode/utf8"
)

// Strength classifies a password.
type Strength string

const (
	StrengthWeak   Strength = "weak"
	StrengthMedium Strength = "medium"
	StrengthStrong Strength = "strong"
)

const (
	minPasswordLength = 8
	specialCharacters = `!@#$%^&*().?":{}|<>`
)

// Issue labels, in evaluation order.
const (
	IssueLength    = "At least 8 characters"
	IssueUppercase = "One uppercase letter"
	IssueLowercase = "One lowercase letter"
	IssueDigit     = "One number"
	IssueSpecial   = "One special character"
)

// PasswordScore is the outcome of ScorePassword.
type PasswordScore struct {
	Issues   []string
	Strength Strength
	Valid    bool
	Message  string
	// Empty is set when no password was supplied at all.
	Empty bool
}

// ScorePassword checks password against five independent criteria.
// No unmet criteria is strong, one or two is medium, three or more is weak
// and invalid. The empty password is weak with a single "required" message.
func ScorePassword(password string) PasswordScore {
	if password == "" {
		return PasswordScore{
			Issues:   []string{},
			Strength: StrengthWeak,
			Message:  "Password is required",
			Empty:    true,
		}
	}

	issues := make([]string, 0, 5)
	if utf8.RuneCountInString(password) < minPasswordLength {
		issues = append(issues, IssueLength)
	}
	if !containsRuneIn(password, 'A', 'Z') {
		issues = append(issues, IssueUppercase)
	}
	if !containsRuneIn(password, 'a', 'z') {
		issues = append(issues, IssueLowercase)
	}
	if !containsRuneIn(password, '0', '9') {
		issues = append(issues, IssueDigit)
	}
	if !strings.ContainsAny(password, specialCharacters) {
		issues = append(issues, IssueSpecial)
	}

	switch n := len(issues); {
	case n == 0:
		return PasswordScore{Issues: issues, Strength: StrengthStrong, Valid: true, Message: "Strong password"}
	case n <= 2:
		return PasswordScore{
			Issues:   issues,
			Strength: StrengthMedium,
			Valid:    true,
			Message:  "Medium strength. Add: " + strings.Join(issues, ", "),
		}
	default:
		return PasswordScore{
			Issues:   issues,
			Strength: StrengthWeak,
			Message:  "Weak password. Needs: " + strings.Join(issues, ", "),
		}
	}
}

func containsRuneIn(s string, lo, hi rune) bool {
	for _, r := range s {
		if r >= lo && r <= hi {
			return true
		}
	}
	return false
}
