// Package billing is the core of the system: it answers "how much of each
// contract task has been invoiced", mints new invoices against a contract,
// and advances invoice chains. Billed state is always computed from the
// line items of non-deleted invoices, never stored, so soft-deleting an
// invoice reverses its contribution with no compensating writes.
package billing

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/conductorhq/conductor/internal/ids"
	"github.com/conductorhq/conductor/internal/models"
)

// overBillTolerance absorbs float rounding when comparing cumulative
// billing against a task's contracted amount.
const overBillTolerance = 0.01

type Ledger struct {
	DB    *gorm.DB
	Log   *zap.Logger
	Locks *ids.Locks

	// EnforceCap upgrades the over-billing warning to a hard reject.
	EnforceCap bool
}

func NewLedger(db *gorm.DB, log *zap.Logger, locks *ids.Locks) *Ledger {
	if locks == nil {
		locks = ids.NewLocks()
	}
	return &Ledger{DB: db, Log: log, Locks: locks}
}

type billedRow struct {
	ContractTaskID string
	Name           string
	Total          float64
}

// taskBilling sums line-item amounts per task across the contract's
// non-deleted invoices. Rows are keyed by the snapshotted contract_task_id;
// legacy rows without one fall back to the task-name join.
func (l *Ledger) taskBilling(tx *gorm.DB, contractID string) (byID, byName map[string]float64, err error) {
	var rows []billedRow
	err = tx.Table("invoice_line_items AS li").
		Select("li.contract_task_id, li.name, COALESCE(SUM(li.amount), 0) AS total").
		Joins("JOIN invoices inv ON inv.id = li.invoice_id").
		Where("inv.contract_id = ? AND inv.deleted_at IS NULL", contractID).
		Group("li.contract_task_id, li.name").
		Scan(&rows).Error
	if err != nil {
		return nil, nil, fmt.Errorf("sum task billing: %w", err)
	}
	byID = make(map[string]float64)
	byName = make(map[string]float64)
	for _, r := range rows {
		if r.ContractTaskID != "" {
			byID[r.ContractTaskID] += r.Total
		} else {
			byName[r.Name] += r.Total
		}
	}
	return byID, byName, nil
}

// ApplyTaskBilling fills in BilledAmount and BilledPercent on the given
// tasks from the contract's active invoices.
func (l *Ledger) ApplyTaskBilling(contractID string, tasks []models.ContractTask) error {
	byID, byName, err := l.taskBilling(l.DB, contractID)
	if err != nil {
		return err
	}
	for i := range tasks {
		t := &tasks[i]
		billed := byID[t.ID] + byName[t.Name]
		t.BilledAmount = billed
		if t.Amount != 0 {
			t.BilledPercent = billed / t.Amount * 100
		} else {
			t.BilledPercent = 0
		}
	}
	return nil
}

// previousBilling returns the cumulative amount already billed against one
// task, computed fresh inside the caller's transaction.
func (l *Ledger) previousBilling(tx *gorm.DB, contractID string, task *models.ContractTask) (float64, error) {
	var total float64
	err := tx.Table("invoice_line_items AS li").
		Select("COALESCE(SUM(li.amount), 0)").
		Joins("JOIN invoices inv ON inv.id = li.invoice_id").
		Where("inv.contract_id = ? AND inv.deleted_at IS NULL", contractID).
		Where("li.contract_task_id = ? OR (li.contract_task_id = '' AND li.name = ?)", task.ID, task.Name).
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("sum previous billing: %w", err)
	}
	return total, nil
}

// TaskPercent selects how much of one contract task this invoice bills.
type TaskPercent struct {
	TaskID  string  `json:"task_id"`
	Percent float64 `json:"percent_this_invoice"`
}

type FromContractInput struct {
	Tasks         []TaskPercent `json:"tasks"`
	InvoiceNumber string        `json:"invoice_number,omitempty"` // optional override
}

// CreateFromContract mints a task-type invoice billing the given percentages
// of the contract's tasks. The invoice, its line items, the chain link and
// the project's current-invoice pointer are written in one transaction.
func (l *Ledger) CreateFromContract(contractID string, in FromContractInput) (*models.Invoice, error) {
	var contract models.Contract
	if err := l.DB.First(&contract, "id = ?", contractID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, notFound("contract")
		}
		return nil, err
	}
	var project models.Project
	if err := l.DB.First(&project, "id = ?", contract.ProjectID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, notFound("project")
		}
		return nil, err
	}
	if len(in.Tasks) == 0 {
		return nil, precondition("no tasks selected")
	}

	release := l.Locks.Acquire(project.ID)
	defer release()

	inv, err := l.createFromContractLocked(&contract, &project, in)
	if isUniqueViolation(err) {
		// Another process got the same number first; recompute and retry once.
		in.InvoiceNumber = ""
		inv, err = l.createFromContractLocked(&contract, &project, in)
	}
	return inv, err
}

func (l *Ledger) createFromContractLocked(contract *models.Contract, project *models.Project, in FromContractInput) (*models.Invoice, error) {
	var inv *models.Invoice
	var warning string
	err := l.DB.Transaction(func(tx *gorm.DB) error {
		number := in.InvoiceNumber
		if number == "" {
			var err error
			number, err = ids.NextInvoiceNumber(tx, project)
			if err != nil {
				return err
			}
		}

		// Previous link in the chain: the most recent active invoice for
		// this project+contract.
		var prevID *string
		var prev models.Invoice
		err := tx.Where("project_id = ? AND contract_id = ?", project.ID, contract.ID).
			Order("created_at DESC").First(&prev).Error
		switch err {
		case nil:
			prevID = &prev.ID
		case gorm.ErrRecordNotFound:
			// first invoice in the chain
		default:
			return err
		}

		totalDue := 0.0
		items := make([]models.InvoiceLineItem, 0, len(in.Tasks))
		for i, spec := range in.Tasks {
			var task models.ContractTask
			if err := tx.First(&task, "id = ? AND contract_id = ?", spec.TaskID, contract.ID).Error; err != nil {
				if err == gorm.ErrRecordNotFound {
					return notFound("contract task " + spec.TaskID)
				}
				return err
			}
			currentBilling := task.Amount * spec.Percent / 100
			previousBilling, err := l.previousBilling(tx, contract.ID, &task)
			if err != nil {
				return err
			}
			if previousBilling+currentBilling > task.Amount+overBillTolerance {
				if l.EnforceCap {
					return fmt.Errorf("task %q: %w", task.Name, ErrOverBilled)
				}
				warning = fmt.Sprintf("task %q billed beyond its contracted amount", task.Name)
				l.Log.Warn("over-billing contract task",
					zap.String("contract_id", contract.ID),
					zap.String("task", task.Name),
					zap.Float64("previous", previousBilling),
					zap.Float64("current", currentBilling),
					zap.Float64("contracted", task.Amount))
			}
			items = append(items, models.InvoiceLineItem{
				ID:              ids.New("li-"),
				ContractTaskID:  task.ID,
				SortOrder:       i + 1,
				Name:            task.Name,
				Description:     task.Description,
				Quantity:        spec.Percent,
				UnitPrice:       task.Amount,
				Amount:          currentBilling,
				PreviousBilling: previousBilling,
			})
			totalDue += currentBilling
		}

		created := models.Invoice{
			ID:                ids.New("inv-"),
			InvoiceNumber:     number,
			ProjectID:         project.ID,
			ContractID:        &contract.ID,
			PreviousInvoiceID: prevID,
			Type:              models.InvoiceTypeTask,
			TotalDue:          totalDue,
		}
		if err := tx.Create(&created).Error; err != nil {
			return err
		}
		for i := range items {
			items[i].InvoiceID = created.ID
		}
		if err := tx.Create(&items).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Project{}).Where("id = ?", project.ID).
			Update("current_invoice_id", created.ID).Error; err != nil {
			return err
		}
		created.LineItems = items
		inv = &created
		return nil
	})
	if err != nil {
		return nil, err
	}
	inv.Warning = warning
	l.Log.Info("created invoice from contract",
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.String("contract_id", contract.ID),
		zap.Float64("total_due", inv.TotalDue))
	return inv, nil
}

// CreateStandalone mints a list-type invoice directly under a project.
func (l *Ledger) CreateStandalone(projectID, number, invoiceType, description string, totalDue float64) (*models.Invoice, error) {
	var project models.Project
	if err := l.DB.First(&project, "id = ?", projectID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, notFound("project")
		}
		return nil, err
	}
	if invoiceType == "" {
		invoiceType = models.InvoiceTypeList
	}

	release := l.Locks.Acquire(project.ID)
	defer release()

	create := func() (*models.Invoice, error) {
		n := number
		if n == "" {
			var err error
			n, err = ids.NextInvoiceNumber(l.DB, &project)
			if err != nil {
				return nil, err
			}
		}
		inv := models.Invoice{
			ID:            ids.New("inv-"),
			InvoiceNumber: n,
			ProjectID:     project.ID,
			Type:          invoiceType,
			Description:   description,
			TotalDue:      totalDue,
		}
		if err := l.DB.Create(&inv).Error; err != nil {
			return nil, err
		}
		return &inv, nil
	}
	inv, err := create()
	if isUniqueViolation(err) {
		number = ""
		inv, err = create()
	}
	return inv, err
}

// Get loads an active invoice with its ordered line items.
func (l *Ledger) Get(invoiceID string) (*models.Invoice, error) {
	var inv models.Invoice
	err := l.DB.Preload("LineItems", func(db *gorm.DB) *gorm.DB {
		return db.Order("sort_order")
	}).First(&inv, "id = ?", invoiceID).Error
	if err == gorm.ErrRecordNotFound {
		return nil, notFound("invoice")
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// GetByNumber loads an active invoice by its human-readable number.
func (l *Ledger) GetByNumber(number string) (*models.Invoice, error) {
	var inv models.Invoice
	err := l.DB.Preload("LineItems", func(db *gorm.DB) *gorm.DB {
		return db.Order("sort_order")
	}).First(&inv, "invoice_number = ?", number).Error
	if err == gorm.ErrRecordNotFound {
		return nil, notFound("invoice")
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// Delete soft-deletes an invoice. Billed state is computed from active
// invoices, so no reversal is needed; only the project's current-invoice
// pointer is cleared if it referenced this invoice.
func (l *Ledger) Delete(invoiceID string) error {
	inv, err := l.Get(invoiceID)
	if err != nil {
		return err
	}
	return l.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.Invoice{}, "id = ?", inv.ID).Error; err != nil {
			return err
		}
		return tx.Model(&models.Project{}).
			Where("id = ? AND current_invoice_id = ?", inv.ProjectID, inv.ID).
			Update("current_invoice_id", nil).Error
	})
}

// LineItemPatch edits one existing line item by position; nil fields keep
// their current value. Amount is always recomputed from unit price and
// quantity.
type LineItemPatch struct {
	Quantity        *float64 `json:"quantity,omitempty"`
	UnitPrice       *float64 `json:"unit_price,omitempty"`
	PreviousBilling *float64 `json:"previous_billing,omitempty"`
}

type UpdateInput struct {
	SentStatus  *string         `json:"sent_status,omitempty"`
	PaidStatus  *string         `json:"paid_status,omitempty"`
	TotalDue    *float64        `json:"total_due,omitempty"`
	Description *string         `json:"description,omitempty"`
	DataPath    *string         `json:"data_path,omitempty"`
	PdfPath     *string         `json:"pdf_path,omitempty"`
	LineItems   []LineItemPatch `json:"line_items,omitempty"`
}

// Update applies a partial edit. When line items are provided their amounts
// and the invoice's total_due are recomputed unless total_due is explicitly
// set. Status transitions stamp sent_at/paid_at.
func (l *Ledger) Update(invoiceID string, in UpdateInput) (*models.Invoice, error) {
	inv, err := l.Get(invoiceID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	err = l.DB.Transaction(func(tx *gorm.DB) error {
		if in.LineItems != nil {
			total := 0.0
			for i := range inv.LineItems {
				li := &inv.LineItems[i]
				if i < len(in.LineItems) {
					p := in.LineItems[i]
					if p.Quantity != nil {
						li.Quantity = *p.Quantity
					}
					if p.UnitPrice != nil {
						li.UnitPrice = *p.UnitPrice
					}
					if p.PreviousBilling != nil {
						li.PreviousBilling = *p.PreviousBilling
					}
					li.Amount = li.UnitPrice * li.Quantity / 100
					if err := tx.Model(&models.InvoiceLineItem{}).Where("id = ?", li.ID).
						Updates(map[string]any{
							"quantity":         li.Quantity,
							"unit_price":       li.UnitPrice,
							"amount":           li.Amount,
							"previous_billing": li.PreviousBilling,
						}).Error; err != nil {
						return err
					}
				}
				total += li.Amount
			}
			if in.TotalDue == nil {
				inv.TotalDue = total
			}
		}
		if in.TotalDue != nil {
			inv.TotalDue = *in.TotalDue
		}
		if in.Description != nil {
			inv.Description = *in.Description
		}
		if in.DataPath != nil {
			inv.DataPath = *in.DataPath
		}
		if in.PdfPath != nil {
			inv.PdfPath = *in.PdfPath
		}
		if in.SentStatus != nil {
			inv.SentStatus = *in.SentStatus
			if inv.SentStatus == models.SentStatusSent && inv.SentAt == nil {
				inv.SentAt = &now
			}
		}
		if in.PaidStatus != nil {
			inv.PaidStatus = *in.PaidStatus
			if inv.PaidStatus == models.PaidStatusPaid && inv.PaidAt == nil {
				inv.PaidAt = &now
			}
		}
		return tx.Omit("LineItems").Save(inv).Error
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// MarkSent stamps sent status and the rendered document paths after a
// successful delivery.
func (l *Ledger) MarkSent(invoiceID, pdfPath string) error {
	now := time.Now()
	updates := map[string]any{
		"sent_status": models.SentStatusSent,
		"sent_at":     now,
		"updated_at":  now,
	}
	if pdfPath != "" {
		updates["pdf_path"] = pdfPath
	}
	return l.DB.Model(&models.Invoice{}).Where("id = ?", invoiceID).Updates(updates).Error
}
