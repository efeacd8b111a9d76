package handlers

import (
	"time"

	"careportal/internal/models"
)

// accountView is the outward shape of an account. It never carries the
// password hash.
type accountView struct {
	ID             string      `json:"id"`
	Username       string      `json:"username"`
	Email          string      `json:"email"`
	Role           models.Role `json:"role"`
	RoleDisplay    string      `json:"role_display"`
	FirstName      string      `json:"first_name"`
	LastName       string      `json:"last_name"`
	FullName       string      `json:"full_name"`
	PhoneNumber    *string     `json:"phone_number,omitempty"`
	AddressLine1   string      `json:"address_line1"`
	City           string      `json:"city"`
	State          string      `json:"state"`
	Pincode        string      `json:"pincode"`
	FullAddress    string      `json:"full_address"`
	ProfilePicture *string     `json:"profile_picture,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

func newAccountView(a *models.UserAccount) accountView {
	return accountView{
		ID:             a.ID,
		Username:       a.Username,
		Email:          a.Email,
		Role:           a.Role,
		RoleDisplay:    a.Role.Display(),
		FirstName:      a.FirstName,
		LastName:       a.LastName,
		FullName:       a.FullName(),
		PhoneNumber:    a.PhoneNumber,
		AddressLine1:   a.AddressLine1,
		City:           a.City,
		State:          a.State,
		Pincode:        a.Pincode,
		FullAddress:    a.FullAddress(),
		ProfilePicture: a.ProfilePictureRef,
		CreatedAt:      a.CreatedAt,
	}
}
