package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	InvoiceTypeTask = "task" // billed against contract tasks
	InvoiceTypeList = "list" // standalone itemized invoice

	SentStatusUnsent = "unsent"
	SentStatusSent   = "sent"

	PaidStatusUnpaid = "unpaid"
	PaidStatusPaid   = "paid"
)

// Invoice. Task-type invoices reference a contract and form a linked chain
// through PreviousInvoiceID; the chain head is the project's current invoice.
type Invoice struct {
	ID                string  `gorm:"primaryKey;size:40" json:"id"`
	InvoiceNumber     string  `gorm:"not null;uniqueIndex" json:"invoice_number"`
	ProjectID         string  `gorm:"not null;index" json:"project_id"`
	ContractID        *string `gorm:"size:40;index" json:"contract_id,omitempty"`
	PreviousInvoiceID *string `gorm:"size:40" json:"previous_invoice_id,omitempty"`
	Type              string  `gorm:"not null;default:'task'" json:"type"`
	Description       string  `json:"description,omitempty"`
	TotalDue          float64 `json:"total_due"`
	SentStatus        string  `gorm:"not null;default:'unsent'" json:"sent_status"`
	PaidStatus        string  `gorm:"not null;default:'unpaid'" json:"paid_status"`

	SentAt   *time.Time `json:"sent_at,omitempty"`
	PaidAt   *time.Time `json:"paid_at,omitempty"`
	DataPath string     `json:"data_path,omitempty"` // rendered document locator, opaque
	PdfPath  string     `json:"pdf_path,omitempty"`

	LineItems []InvoiceLineItem `gorm:"foreignKey:InvoiceID" json:"line_items,omitempty"`

	// Warning carries a non-fatal problem (e.g. renderer failure) back to the
	// caller of an otherwise successful operation.
	Warning string `gorm:"-" json:"_warning,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// InvoiceLineItem. For task-type invoices ContractTaskID snapshots the
// originating contract task at creation time; Name is kept as a display
// snapshot. Quantity is the percent of the task billed on this invoice,
// UnitPrice the task's contracted fee, Amount = UnitPrice * Quantity / 100,
// and PreviousBilling the cumulative amount billed by earlier invoices in
// the chain.
type InvoiceLineItem struct {
	ID              string  `gorm:"primaryKey;size:40" json:"id"`
	InvoiceID       string  `gorm:"not null;index" json:"invoice_id"`
	ContractTaskID  string  `gorm:"size:40;index" json:"contract_task_id,omitempty"`
	SortOrder       int     `gorm:"not null" json:"sort_order"`
	Name            string  `gorm:"not null" json:"name"`
	Description     string  `json:"description,omitempty"`
	Quantity        float64 `json:"quantity"`
	UnitPrice       float64 `json:"unit_price"`
	Amount          float64 `json:"amount"`
	PreviousBilling float64 `json:"previous_billing"`

	CreatedAt time.Time `json:"created_at"`
}
