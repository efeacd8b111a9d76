package services

import (
	"fmt"

	"careportal/internal/models"
)

// Dashboard destinations.
const (
	DashboardPath        = "/dashboard"
	PatientDashboardPath = "/dashboard/patient"
	DoctorDashboardPath  = "/dashboard/doctor"
	LoginPath            = "/login"
)

// RoleRouter maps roles to dashboards and guards role-specific resources.
type RoleRouter struct{}

// NewRoleRouter creates a new RoleRouter.
func NewRoleRouter() *RoleRouter { return &RoleRouter{} }

// RouteFor returns the dashboard path for role.
func (RoleRouter) RouteFor(role models.Role) (string, error) {
	switch role {
	case models.RolePatient:
		return PatientDashboardPath, nil
	case models.RoleDoctor:
		return DoctorDashboardPath, nil
	}
	return "", &InvariantViolationError{Detail: fmt.Sprintf("unknown role %q", role)}
}

// Guard allows role to access a resource reserved for required.
func (RoleRouter) Guard(role, required models.Role) error {
	if !role.Valid() {
		return &InvariantViolationError{Detail: fmt.Sprintf("unknown role %q", role)}
	}
	if !required.Valid() {
		return &InvariantViolationError{Detail: fmt.Sprintf("unknown required role %q", required)}
	}
	if role != required {
		return &AccessDeniedError{Required: required}
	}
	return nil
}
