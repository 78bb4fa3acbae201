package user

import (
	"time"
)

// User is a workshop staff account. Role gates which vehicle-check events the
// account may submit.
type User struct {
	ID           uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	Uuid         string  `gorm:"type:varchar(255);not null;unique" json:"uuid"`
	Name         string  `gorm:"type:varchar(255);not null" json:"name"`
	Mobile       string  `gorm:"type:varchar(20);not null;unique" json:"mobile"`
	Email        *string `gorm:"type:varchar(255)" json:"email,omitempty"`
	PasswordHash string  `gorm:"type:varchar(255);not null" json:"-"`
	Role         string  `gorm:"type:varchar(50);not null" json:"role"`

	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt *time.Time `gorm:"index" json:"deleted_at,omitempty"`
}

// Sanitized returns the user without credential fields, for list endpoints.
func (u *User) Sanitized() map[string]interface{} {
	return map[string]interface{}{
		"id":     u.ID,
		"uuid":   u.Uuid,
		"name":   u.Name,
		"mobile": u.Mobile,
		"email":  u.Email,
		"role":   u.Role,
	}
}
