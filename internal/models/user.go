package models

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Role is the closed set of account roles.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
)

// Roles lists every valid role in display order.
var Roles = []Role{RolePatient, RoleDoctor}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleDoctor:
		return true
	}
	return false
}

// Display returns the human-readable role label.
func (r Role) Display() string {
	switch r {
	case RolePatient:
		return "Patient"
	case RoleDoctor:
		return "Doctor"
	}
	return string(r)
}

// UserAccount is the persisted identity and profile of a patient or doctor.
type UserAccount struct {
	ID                string    `json:"id" gorm:"primaryKey;type:varchar(36)" bson:"_id"`
	Username          string    `json:"username" gorm:"uniqueIndex;type:varchar(150);not null" bson:"username"`
	Email             string    `json:"email" gorm:"uniqueIndex;type:varchar(254);not null" bson:"email"`
	PasswordHash      string    `json:"-" gorm:"type:varchar(255);not null" bson:"password_hash"`
	Role              Role      `json:"role" gorm:"type:varchar(10);not null;default:patient;index" bson:"role"`
	FirstName         string    `json:"first_name" gorm:"type:varchar(30)" bson:"first_name"`
	LastName          string    `json:"last_name" gorm:"type:varchar(30)" bson:"last_name"`
	PhoneNumber       *string   `json:"phone_number,omitempty" gorm:"type:varchar(17)" bson:"phone_number,omitempty"`
	AddressLine1      string    `json:"address_line1" gorm:"type:varchar(255)" bson:"address_line1"`
	City              string    `json:"city" gorm:"type:varchar(100)" bson:"city"`
	State             string    `json:"state" gorm:"type:varchar(100)" bson:"state"`
	Pincode           string    `json:"pincode" gorm:"type:varchar(10)" bson:"pincode"`
	ProfilePictureRef *string   `json:"profile_picture,omitempty" gorm:"type:varchar(255)" bson:"profile_picture,omitempty"`
	CreatedAt         time.Time `json:"created_at" gorm:"autoCreateTime;index" bson:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" gorm:"autoUpdateTime" bson:"updated_at"`
}

// TableName pins the table name used by the gorm repository.
func (UserAccount) TableName() string { return "user_accounts" }

// BeforeSave keeps the stored email lowercased so the unique index is
// case-insensitive.
func (u *UserAccount) BeforeSave(tx *gorm.DB) error {
	u.Email = NormalizeEmail(u.Email)
	return nil
}

// FullName returns "first last", or the username when both are blank.
func (u *UserAccount) FullName() string {
	full := strings.TrimSpace(fmt.Sprintf("%s %s", u.FirstName, u.LastName))
	if full == "" {
		return u.Username
	}
	return full
}

// FullAddress joins the non-empty address parts with ", ".
func (u *UserAccount) FullAddress() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{u.AddressLine1, u.City, u.State, u.Pincode} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

func (u *UserAccount) String() string {
	return fmt.Sprintf("%s (%s)", u.Username, u.Role.Display())
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
