package models

import (
	"time"

	"gorm.io/gorm"
)

// Project statuses are advisory display values, not an enforced state machine.
const (
	ProjectStatusProposal = "proposal"
	ProjectStatusContract = "contract"
	ProjectStatusInvoiced = "invoiced"
	ProjectStatusPaid     = "paid"
	ProjectStatusComplete = "complete"
)

// Project is the central entity: the ID is either a human-assigned job code
// (e.g. "JBHL21") or a generated short id, with project_number as the
// year-scoped sequence ("25-001").
type Project struct {
	ID                  string  `gorm:"primaryKey;size:40" json:"id"`
	Name                string  `gorm:"not null" json:"name"`
	ClientID            *string `gorm:"size:40;index" json:"client_id,omitempty"`
	PMID                *string `gorm:"size:40" json:"pm_id,omitempty"`
	PMName              string  `json:"pm_name,omitempty"`  // denormalized from employee
	PMEmail             string  `json:"pm_email,omitempty"` // denormalized from employee
	ProjectNumber       string  `gorm:"index" json:"project_number,omitempty"`
	JobCode             string  `json:"job_code,omitempty"`
	ClientProjectNumber string  `json:"client_project_number,omitempty"`
	Location            string  `json:"location,omitempty"`
	Status              string  `gorm:"not null;default:'proposal'" json:"status"`
	DataPath            string  `json:"data_path,omitempty"`
	CurrentInvoiceID    *string `gorm:"size:40" json:"current_invoice_id,omitempty"`
	Notes               string  `json:"notes,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

type ProjectNote struct {
	ID        string    `gorm:"primaryKey;size:40" json:"id"`
	ProjectID string    `gorm:"not null;index" json:"project_id"`
	AuthorID  *string   `gorm:"size:40" json:"author_id,omitempty"`
	Content   string    `gorm:"not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`

	AuthorName string `gorm:"-" json:"author_name,omitempty"`
}
