package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserType is the role of a user.
type UserType string

const (
	UserTypeUser  UserType = "user"
	UserTypeAdmin UserType = "admin"
)

// User represents an authenticated user in the system.
// Rows are hard-deleted so a removed email can be registered again.
type User struct {
	ID           uuid.UUID `json:"_id" gorm:"type:char(36);primaryKey"`
	Type         UserType  `json:"type" gorm:"type:varchar(16);not null;default:'user';index"`
	Name         string    `json:"name,omitempty" gorm:"size:255"`
	Username     string    `json:"username,omitempty" gorm:"size:255;index"`
	Email        string    `json:"email" gorm:"uniqueIndex;size:255;not null"`
	PasswordHash string    `json:"-" gorm:"size:255;not null"` // Never expose in JSON
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Type == UserTypeAdmin
}

// BeforeCreate sets UUID before creating the record.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.Type == "" {
		u.Type = UserTypeUser
	}
	return nil
}
