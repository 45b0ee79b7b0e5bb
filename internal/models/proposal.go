package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	ProposalStatusDraft    = "draft"
	ProposalStatusSent     = "sent"
	ProposalStatusAccepted = "accepted"
)

// Proposal. TotalFee is derived from its tasks. Accepting a proposal
// promotes it into a contract; the proposal record is never edited
// retroactively after that.
type Proposal struct {
	ID                 string  `gorm:"primaryKey;size:40" json:"id"`
	ProjectID          string  `gorm:"not null;index" json:"project_id"`
	ClientCompany      string  `json:"client_company,omitempty"`
	ClientContactEmail string  `json:"client_contact_email,omitempty"`
	TotalFee           float64 `json:"total_fee"`
	EngineerKey        string  `json:"engineer_key,omitempty"`
	EngineerName       string  `json:"engineer_name,omitempty"`
	EngineerTitle      string  `json:"engineer_title,omitempty"`
	ContactMethod      string  `json:"contact_method,omitempty"`
	ProposalDate       string  `json:"proposal_date,omitempty"`
	Status             string  `gorm:"not null;default:'draft'" json:"status"`
	DataPath           string  `json:"data_path,omitempty"`
	PdfPath            string  `json:"pdf_path,omitempty"`

	SentAt *time.Time `json:"sent_at,omitempty"`

	Tasks []ProposalTask `gorm:"foreignKey:ProposalID" json:"tasks,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

type ProposalTask struct {
	ID          string  `gorm:"primaryKey;size:40" json:"id"`
	ProposalID  string  `gorm:"not null;index" json:"proposal_id"`
	SortOrder   int     `gorm:"not null" json:"sort_order"`
	Name        string  `gorm:"not null" json:"name"`
	Description string  `json:"description,omitempty"`
	Amount      float64 `gorm:"not null" json:"amount"`

	CreatedAt time.Time `json:"created_at"`
}
