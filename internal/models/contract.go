package models

import (
	"time"

	"gorm.io/gorm"
)

// Contract groups the billable tasks of a signed engagement. TotalAmount is
// derived: it is kept equal to the sum of its tasks' amounts.
type Contract struct {
	ID          string     `gorm:"primaryKey;size:40" json:"id"`
	ProjectID   string     `gorm:"not null;index" json:"project_id"`
	TotalAmount float64    `json:"total_amount"`
	SignedAt    *time.Time `json:"signed_at,omitempty"`
	FilePath    string     `json:"file_path,omitempty"`
	Notes       string     `json:"notes,omitempty"`

	Tasks []ContractTask `gorm:"foreignKey:ContractID" json:"tasks,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// ContractTask is a billable line of a contract with a fixed fee ceiling.
// BilledAmount and BilledPercent are never stored: they are computed on read
// from the line items of the contract's non-deleted invoices, so deleting an
// invoice reverses its billing contribution with no bookkeeping.
type ContractTask struct {
	ID          string  `gorm:"primaryKey;size:40" json:"id"`
	ContractID  string  `gorm:"not null;index" json:"contract_id"`
	SortOrder   int     `gorm:"not null" json:"sort_order"`
	Name        string  `gorm:"not null" json:"name"`
	Description string  `json:"description,omitempty"`
	Amount      float64 `gorm:"not null" json:"amount"`

	BilledAmount  float64 `gorm:"-" json:"billed_amount"`
	BilledPercent float64 `gorm:"-" json:"billed_percent"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
