package models

// Setting is a company-level key/value pair (company_name, company_email, ...).
type Setting struct {
	Key   string `gorm:"primaryKey;size:80" json:"key"`
	Value string `json:"value"`
}

// All lists every entity for AutoMigrate, dependencies first.
func All() []any {
	return []any{
		&Client{}, &Contact{}, &Employee{}, &Project{}, &ProjectNote{},
		&ProjectTask{}, &ProjectTaskAssignee{}, &ProjectTaskNote{},
		&Contract{}, &ContractTask{}, &Proposal{}, &ProposalTask{},
		&Invoice{}, &InvoiceLineItem{}, &ActivityLog{}, &Setting{},
	}
}
