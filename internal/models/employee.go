package models

import (
	"time"

	"gorm.io/gorm"
)

type Employee struct {
	ID        string `gorm:"primaryKey;size:40" json:"id"`
	FirstName string `gorm:"not null" json:"first_name"`
	LastName  string `gorm:"not null" json:"last_name"`
	Email     string `gorm:"index" json:"email,omitempty"`
	Password  string `json:"-"` // bcrypt hash, empty means no login
	IsActive  bool   `gorm:"not null;default:true" json:"is_active"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
