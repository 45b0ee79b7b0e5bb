package models

import (
	"time"

	"gorm.io/gorm"
)

// Client entity. A client owns projects and contacts.
type Client struct {
	ID              string `gorm:"primaryKey;size:40" json:"id"`
	Name            string `gorm:"not null;index" json:"name"`
	Email           string `gorm:"index" json:"email,omitempty"`
	Company         string `json:"company,omitempty"`
	Phone           string `json:"phone,omitempty"`
	Address         string `json:"address,omitempty"`
	AccountingEmail string `json:"accounting_email,omitempty"` // invoices go here when set
	Notes           string `json:"notes,omitempty"`

	Contacts []Contact `gorm:"foreignKey:ClientID" json:"contacts,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

type Contact struct {
	ID       string `gorm:"primaryKey;size:40" json:"id"`
	ClientID string `gorm:"not null;index" json:"client_id"`
	Name     string `gorm:"not null" json:"name"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Role     string `json:"role,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
