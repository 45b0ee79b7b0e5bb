package billing

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/conductorhq/conductor/internal/ids"
	"github.com/conductorhq/conductor/internal/models"
)

// CreateNext advances an invoice chain: it mints the successor of the given
// invoice with every line item carried forward (previous_billing absorbs the
// predecessor's amount, quantity and amount reset to zero) and repoints the
// project's current invoice. The predecessor must have been sent; otherwise
// draft invoices would pile up in the chain before anything went out.
func (l *Ledger) CreateNext(invoiceID string) (*models.Invoice, error) {
	current, err := l.Get(invoiceID)
	if err != nil {
		return nil, err
	}
	if current.SentStatus != models.SentStatusSent {
		return nil, precondition("invoice must be sent before creating next")
	}
	if len(current.LineItems) == 0 {
		return nil, precondition("no line items on current invoice")
	}
	var project models.Project
	if err := l.DB.First(&project, "id = ?", current.ProjectID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, notFound("project")
		}
		return nil, err
	}

	release := l.Locks.Acquire(project.ID)
	defer release()

	next, err := l.createNextLocked(current, &project)
	if isUniqueViolation(err) {
		next, err = l.createNextLocked(current, &project)
	}
	return next, err
}

func (l *Ledger) createNextLocked(current *models.Invoice, project *models.Project) (*models.Invoice, error) {
	var next *models.Invoice
	err := l.DB.Transaction(func(tx *gorm.DB) error {
		number, err := ids.NextInvoiceNumber(tx, project)
		if err != nil {
			return err
		}
		created := models.Invoice{
			ID:                ids.New("inv-"),
			InvoiceNumber:     number,
			ProjectID:         current.ProjectID,
			ContractID:        current.ContractID,
			PreviousInvoiceID: &current.ID,
			Type:              models.InvoiceTypeTask,
			TotalDue:          0,
		}
		if err := tx.Create(&created).Error; err != nil {
			return err
		}
		items := make([]models.InvoiceLineItem, 0, len(current.LineItems))
		for i, li := range current.LineItems {
			items = append(items, models.InvoiceLineItem{
				ID:              ids.New("li-"),
				InvoiceID:       created.ID,
				ContractTaskID:  li.ContractTaskID,
				SortOrder:       i + 1,
				Name:            li.Name,
				Description:     li.Description,
				Quantity:        0,
				UnitPrice:       li.UnitPrice,
				Amount:          0,
				PreviousBilling: li.PreviousBilling + li.Amount,
			})
		}
		if err := tx.Create(&items).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Project{}).Where("id = ?", project.ID).
			Update("current_invoice_id", created.ID).Error; err != nil {
			return err
		}
		created.LineItems = items
		next = &created
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.Log.Info("created next invoice in chain",
		zap.String("invoice_number", next.InvoiceNumber),
		zap.String("previous", current.InvoiceNumber))
	return next, nil
}

// Chain walks the invoice chain backward from the given invoice, newest
// first. It fails on a cycle or a cross-contract link, which would mean the
// chain invariant has been violated.
func (l *Ledger) Chain(invoiceID string) ([]models.Invoice, error) {
	seen := make(map[string]bool)
	var out []models.Invoice
	id := invoiceID
	for id != "" {
		if seen[id] {
			return nil, precondition("invoice chain contains a cycle")
		}
		seen[id] = true
		var inv models.Invoice
		if err := l.DB.Unscoped().First(&inv, "id = ?", id).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil, notFound("invoice " + id)
			}
			return nil, err
		}
		if len(out) > 0 && !sameContract(out[len(out)-1].ContractID, inv.ContractID) {
			return nil, precondition("invoice chain crosses contracts")
		}
		out = append(out, inv)
		if inv.PreviousInvoiceID == nil {
			break
		}
		id = *inv.PreviousInvoiceID
	}
	return out, nil
}

func sameContract(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
