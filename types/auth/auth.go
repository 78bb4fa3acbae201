package auth

import (
	"fmt"
	"strings"

	"workshop-tracker/constants"
)

// RegisterRequest is the staff registration payload.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,min=1,max=255"`
	Mobile   string `json:"mobile" validate:"required,min=6,max=20"`
	Email    string `json:"email" validate:"omitempty,email"`
	Password string `json:"password" validate:"required,min=4,max=128"`
	Role     string `json:"role" validate:"required"`
}

// Validate performs the first-step checks before hitting the database.
func (r RegisterRequest) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("name is required")
	}
	if r.Mobile == "" {
		return fmt.Errorf("mobile is required")
	}
	if r.Password == "" {
		return fmt.Errorf("password is required")
	}
	if !constants.IsAllowedRole(r.Role) {
		return fmt.Errorf("role %q is not a workshop role", r.Role)
	}
	return nil
}

// NormalizedEmail returns the trimmed, lowercased email or empty.
func (r RegisterRequest) NormalizedEmail() string {
	return strings.ToLower(strings.TrimSpace(r.Email))
}

// LoginRequest is the staff login payload.
type LoginRequest struct {
	Mobile   string `json:"mobile" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (r LoginRequest) Validate() error {
	if r.Mobile == "" || r.Password == "" {
		return fmt.Errorf("mobile and password are required")
	}
	return nil
}
