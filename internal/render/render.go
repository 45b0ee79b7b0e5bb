// Package render produces client-facing invoice and proposal documents.
// Rendering is always best-effort from the caller's point of view: the
// financial write has already committed by the time a renderer runs, so a
// renderer error must surface as a warning, never roll anything back.
package render

import (
	"errors"
	"time"
)

// ErrNotConfigured marks a renderer or exporter that has no destination to
// write to. Handlers report it differently from a transient failure: the fix
// is configuration, not retrying.
var ErrNotConfigured = errors.New("renderer not configured")

// InvoiceDoc is the flattened, display-ready form of an invoice. It carries
// denormalized company, client and project fields so a document can be
// re-rendered byte-identically even after the source records change.
type InvoiceDoc struct {
	InvoiceNumber string    `json:"invoice_number"`
	Date          time.Time `json:"date"`

	CompanyName    string `json:"company_name"`
	CompanyAddress string `json:"company_address"`
	CompanyEmail   string `json:"company_email"`
	CompanyPhone   string `json:"company_phone"`

	ClientName    string `json:"client_name"`
	ClientCompany string `json:"client_company"`
	ClientAddress string `json:"client_address"`

	ProjectName         string `json:"project_name"`
	ProjectNumber       string `json:"project_number"`
	ClientProjectNumber string `json:"client_project_number,omitempty"`
	ProjectLocation     string `json:"project_location,omitempty"`

	Lines    []InvoiceDocLine `json:"lines"`
	TotalDue float64          `json:"total_due"`
}

// InvoiceDocLine mirrors one invoice line item. Percent is the share of the
// task fee billed on this invoice; PriorAmount what earlier invoices in the
// chain already billed for the same task.
type InvoiceDocLine struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Fee         float64 `json:"fee"`
	Percent     float64 `json:"percent"`
	PriorAmount float64 `json:"prior_amount"`
	Amount      float64 `json:"amount"`
}

// ProposalDoc is the display-ready form of a proposal.
type ProposalDoc struct {
	ProposalDate  string `json:"proposal_date"`
	CompanyName   string `json:"company_name"`
	CompanyEmail  string `json:"company_email"`
	EngineerName  string `json:"engineer_name"`
	EngineerTitle string `json:"engineer_title"`

	ClientCompany      string `json:"client_company"`
	ClientContactEmail string `json:"client_contact_email,omitempty"`

	ProjectName     string `json:"project_name"`
	ProjectLocation string `json:"project_location,omitempty"`

	Tasks    []ProposalDocTask `json:"tasks"`
	TotalFee float64           `json:"total_fee"`
}

type ProposalDocTask struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Amount      float64 `json:"amount"`
}

// Document is the envelope written next to every rendered file. The PDF
// exporter reads it back instead of re-querying the database, so the PDF
// always matches the document the client was shown.
type Document struct {
	Kind     string       `json:"kind"` // "invoice" or "proposal"
	Invoice  *InvoiceDoc  `json:"invoice,omitempty"`
	Proposal *ProposalDoc `json:"proposal,omitempty"`
}

// Renderer writes a human-readable document and returns an opaque locator
// for it (stored as data_path on the record).
type Renderer interface {
	RenderInvoice(doc InvoiceDoc) (string, error)
	RenderProposal(doc ProposalDoc) (string, error)
}

// Exporter turns a previously rendered document (by its locator) into a PDF
// and returns the PDF's locator.
type Exporter interface {
	ExportPDF(dataPath string) (string, error)
}
