package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode/utf8"

	"careportal/internal/models"

	"github.com/go-playground/validator/v10"
)

// bcrypt ignores everything past 72 bytes.
const maxPasswordBytes = 72

var (
	usernamePattern = regexp.MustCompile(`^[\p{L}\p{N}_.@+-]+$`)
	phonePattern    = regexp.MustCompile(`^\+?1?\d{9,15}$`)
)

// Field messages shown on the signup form.
const (
	MsgRequired        = "This field is required."
	MsgInvalidEmail    = "Enter a valid email address."
	MsgInvalidUsername = "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters."
	MsgInvalidPhone    = "Phone number must be entered in the format: '+999999999'. Up to 15 digits allowed."
	MsgUsernameTaken   = "This username is already taken."
	MsgEmailTaken      = "This email address is already registered."
	MsgPasswordMatch   = "Passwords do not match."
	MsgPasswordTooLong = "Ensure this value has at most 72 bytes."
)

// SignupRequest is the raw signup payload as submitted by the form.
type SignupRequest struct {
	FirstName      string `json:"first_name" form:"first_name" validate:"required,max=30"`
	LastName       string `json:"last_name" form:"last_name" validate:"required,max=30"`
	Username       string `json:"username" form:"username" validate:"required,max=150,username"`
	Email          string `json:"email" form:"email" validate:"required,max=254,email_syntax"`
	Role           string `json:"role" form:"role" validate:"required,role"`
	PhoneNumber    string `json:"phone_number" form:"phone_number" validate:"omitempty,max=17,phone"`
	AddressLine1   string `json:"address_line1" form:"address_line1" validate:"required,max=255"`
	City           string `json:"city" form:"city" validate:"required,max=100"`
	State          string `json:"state" form:"state" validate:"required,max=100"`
	Pincode        string `json:"pincode" form:"pincode" validate:"required,max=10"`
	ProfilePicture string `json:"profile_picture" form:"profile_picture" validate:"omitempty,max=255"`
	Password1      string `json:"password1" form:"password1" validate:"required"`
	Password2      string `json:"password2" form:"password2" validate:"required"`
}

// normalized trims every text field except the passwords and lowercases the
// email.
func (r SignupRequest) normalized() SignupRequest {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Username = strings.TrimSpace(r.Username)
	r.Email = models.NormalizeEmail(r.Email)
	r.Role = strings.TrimSpace(r.Role)
	r.PhoneNumber = strings.TrimSpace(r.PhoneNumber)
	r.AddressLine1 = strings.TrimSpace(r.AddressLine1)
	r.City = strings.TrimSpace(r.City)
	r.State = strings.TrimSpace(r.State)
	r.Pincode = strings.TrimSpace(r.Pincode)
	r.ProfilePicture = strings.TrimSpace(r.ProfilePicture)
	return r
}

// Redacted returns the submitted values with both password fields cleared,
// for echoing back to a form.
func (r SignupRequest) Redacted() SignupRequest {
	r.Password1 = ""
	r.Password2 = ""
	return r
}

// AccountDraft is a validated, normalized signup ready for persistence. The
// password is still in clear text and is only reachable through Password.
type AccountDraft struct {
	Username          string
	Email             string
	Role              models.Role
	FirstName         string
	LastName          string
	PhoneNumber       *string
	AddressLine1      string
	City              string
	State             string
	Pincode           string
	ProfilePictureRef *string
	password          string
}

// Password returns the clear-text password to be hashed.
func (d *AccountDraft) Password() string { return d.password }

// RegistrationValidator validates full signup payloads.
type RegistrationValidator struct {
	validate     *validator.Validate
	availability *AvailabilityChecker
}

// NewRegistrationValidator creates a validator that re-checks uniqueness
// through availability.
func NewRegistrationValidator(availability *AvailabilityChecker) *RegistrationValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("email_syntax", func(fl validator.FieldLevel) bool {
		return ValidEmailSyntax(fl.Field().String())
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		return models.Role(fl.Field().String()).Valid()
	})

	return &RegistrationValidator{validate: v, availability: availability}
}

// Validate checks req and returns a draft, a *FieldValidationError, or an
// infrastructure error from the uniqueness lookups.
func (rv *RegistrationValidator) Validate(ctx context.Context, req SignupRequest) (*AccountDraft, error) {
	req = req.normalized()
	fields := FieldErrors{}

	// Presence, length and format
	if err := rv.validate.Struct(req); err != nil {
		var ve validator.ValidationErrors
		if !errors.As(err, &ve) {
			return nil, fmt.Errorf("failed to validate signup: %w", err)
		}
		for _, fe := range ve {
			fields.Add(fe.Field(), fieldMessage(fe))
		}
	}

	// Uniqueness is re-checked on submit; the live checks may be stale.
	// Fields that already failed are not looked up.
	if !fields.Has("username") {
		taken, err := rv.availability.UsernameTaken(ctx, req.Username)
		if err != nil {
			return nil, err
		}
		if taken {
			fields.Add("username", MsgUsernameTaken)
		}
	}
	if !fields.Has("email") {
		taken, err := rv.availability.EmailTaken(ctx, req.Email)
		if err != nil {
			return nil, err
		}
		if taken {
			fields.Add("email", MsgEmailTaken)
		}
	}

	// Passwords
	if req.Password1 != "" {
		if len(req.Password1) > maxPasswordBytes {
			fields.Add("password1", MsgPasswordTooLong)
		} else if score := ScorePassword(req.Password1); !score.Valid {
			fields.Add("password1", score.Message)
		}
	}
	if req.Password1 != "" && req.Password2 != "" && req.Password1 != req.Password2 {
		fields.Add("password2", MsgPasswordMatch)
	}

	if len(fields) > 0 {
		return nil, &FieldValidationError{Fields: fields}
	}

	return &AccountDraft{
		Username:          req.Username,
		Email:             req.Email,
		Role:              models.Role(req.Role),
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		PhoneNumber:       optional(req.PhoneNumber),
		AddressLine1:      req.AddressLine1,
		City:              req.City,
		State:             req.State,
		Pincode:           req.Pincode,
		ProfilePictureRef: optional(req.ProfilePicture),
		password:          req.Password1,
	}, nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return MsgRequired
	case "max":
		value, _ := fe.Value().(string)
		return fmt.Sprintf("Ensure this value has at most %s characters (it has %d).", fe.Param(), utf8.RuneCountInString(value))
	case "email_syntax":
		return MsgInvalidEmail
	case "username":
		return MsgInvalidUsername
	case "phone":
		return MsgInvalidPhone
	case "role":
		return fmt.Sprintf("Select a valid choice. %v is not one of the available choices.", fe.Value())
	default:
		return fmt.Sprintf("Enter a valid value (%s).", fe.Tag())
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
