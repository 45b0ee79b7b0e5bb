package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/conductorhq/conductor/internal/activity"
	"github.com/conductorhq/conductor/internal/auth"
	"github.com/conductorhq/conductor/internal/billing"
	"github.com/conductorhq/conductor/internal/httpx"
	"github.com/conductorhq/conductor/internal/models"
	"github.com/conductorhq/conductor/internal/notify"
	"github.com/conductorhq/conductor/internal/render"
)

// InvoiceHandler owns the invoice read/edit surface and the document flow
// (generate sheet, export PDF, send). The renderer, exporter and notifier
// are injected so tests can substitute fakes and so credentials stay out of
// package state.
type InvoiceHandler struct {
	DB       *gorm.DB
	Log      *zap.Logger
	Ledger   *billing.Ledger
	Renderer render.Renderer
	Exporter render.Exporter
	Notifier notify.Notifier
}

func NewInvoiceHandler(db *gorm.DB, log *zap.Logger, ledger *billing.Ledger, renderer render.Renderer, exporter render.Exporter, notifier notify.Notifier) *InvoiceHandler {
	return &InvoiceHandler{DB: db, Log: log, Ledger: ledger, Renderer: renderer, Exporter: exporter, Notifier: notifier}
}

// List: GET /api/invoices?project_id=&sent_status=&paid_status=
func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	dbq := h.DB.Preload("LineItems", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order") })
	if v := r.URL.Query().Get("project_id"); v != "" {
		dbq = dbq.Where("project_id = ?", v)
	}
	if v := r.URL.Query().Get("sent_status"); v != "" {
		dbq = dbq.Where("sent_status = ?", v)
	}
	if v := r.URL.Query().Get("paid_status"); v != "" {
		dbq = dbq.Where("paid_status = ?", v)
	}
	var invoices []models.Invoice
	if err := dbq.Order("created_at DESC").Find(&invoices).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_list_invoices", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": invoices, "total": len(invoices)})
}

// Get: GET /api/invoices/{id}
func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	inv, err := h.Ledger.Get(r.PathValue("id"))
	if err != nil {
		httpx.DomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

// GetByNumber: GET /api/invoices/by-number/{number}
func (h *InvoiceHandler) GetByNumber(w http.ResponseWriter, r *http.Request) {
	inv, err := h.Ledger.GetByNumber(r.PathValue("number"))
	if err != nil {
		httpx.DomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

// Update: PATCH /api/invoices/{id}
func (h *InvoiceHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in billing.UpdateInput
	if !decodeJSON(w, r, &in) {
		return
	}
	inv, err := h.Ledger.Update(r.PathValue("id"), in)
	if err != nil {
		h.Log.Error("invoice update failed", zap.Error(err))
		httpx.DomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

// Delete: DELETE /api/invoices/{id} — soft delete; the billed amounts it
// contributed disappear from computed state immediately.
func (h *InvoiceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.Ledger.Delete(id); err != nil {
		httpx.DomainError(w, err)
		return
	}
	actor, _ := auth.UserID(r.Context())
	activity.Log(h.DB, h.Log, activity.Entry{
		ActorID: actor, Action: "invoice.deleted",
		EntityType: "invoice", EntityID: id,
	})
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// CreateNext: POST /api/invoices/{id}/next
func (h *InvoiceHandler) CreateNext(w http.ResponseWriter, r *http.Request) {
	inv, err := h.Ledger.CreateNext(r.PathValue("id"))
	if err != nil {
		httpx.DomainError(w, err)
		return
	}
	actor, _ := auth.UserID(r.Context())
	activity.Log(h.DB, h.Log, activity.Entry{
		ActorID: actor, Action: "invoice.created",
		EntityType: "invoice", EntityID: inv.ID, ProjectID: inv.ProjectID,
		Metadata: map[string]any{"invoice_number": inv.InvoiceNumber, "chained": true},
	})
	httpx.JSON(w, http.StatusCreated, inv)
}

// GenerateSheet: POST /api/invoices/{id}/generate-sheet?force=1 — renders
// the billing sheet. Without force an already rendered invoice is left
// untouched.
func (h *InvoiceHandler) GenerateSheet(w http.ResponseWriter, r *http.Request) {
	inv, err := h.Ledger.Get(r.PathValue("id"))
	if err != nil {
		httpx.DomainError(w, err)
		return
	}
	if inv.DataPath != "" && r.URL.Query().Get("force") != "1" {
		httpx.JSON(w, http.StatusOK, inv)
		return
	}
	doc, err := h.invoiceDoc(inv)
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_build_document", nil)
		return
	}
	path, err := h.Renderer.RenderInvoice(*doc)
	if err != nil {
		if errors.Is(err, render.ErrNotConfigured) {
			httpx.JSONError(w, http.StatusConflict, "renderer_not_configured", nil)
			return
		}
		h.Log.Error("invoice render failed", zap.String("invoice", inv.InvoiceNumber), zap.Error(err))
		httpx.JSONError(w, http.StatusInternalServerError, "render_failed", nil)
		return
	}
	updated, err := h.Ledger.Update(inv.ID, billing.UpdateInput{DataPath: &path})
	if err != nil {
		httpx.DomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

// ExportPDF: POST /api/invoices/{id}/export-pdf — requires a generated sheet.
func (h *InvoiceHandler) ExportPDF(w http.ResponseWriter, r *http.Request) {
	inv, err := h.Ledger.Get(r.PathValue("id"))
	if err != nil {
		httpx.DomainError(w, err)
		return
	}
	if inv.DataPath == "" {
		httpx.JSONError(w, http.StatusConflict, "sheet_not_generated", nil)
		return
	}
	pdfPath, err := h.Exporter.ExportPDF(inv.DataPath)
	if err != nil {
		h.Log.Error("invoice pdf export failed", zap.String("invoice", inv.InvoiceNumber), zap.Error(err))
		httpx.JSONError(w, http.StatusInternalServerError, "pdf_export_failed", nil)
		return
	}
	updated, err := h.Ledger.Update(inv.ID, billing.UpdateInput{PdfPath: &pdfPath})
	if err != nil {
		httpx.DomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

// Finalize: POST /api/invoices/{id}/finalize — recomputes total_due from the
// stored line items.
func (h *InvoiceHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	inv, err := h.Ledger.Get(r.PathValue("id"))
	if err != nil {
		httpx.DomainError(w, err)
		return
	}
	total := 0.0
	for _, li := range inv.LineItems {
		total += li.Amount
	}
	updated, err := h.Ledger.Update(inv.ID, billing.UpdateInput{TotalDue: &total})
	if err != nil {
		httpx.DomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

// Send: POST /api/invoices/{id}/send — render and export as needed, email
// the PDF to the client's accounting address, then mark sent. Renderer or
// exporter problems downgrade to warnings; an email delivery failure aborts
// before any status change.
func (h *InvoiceHandler) Send(w http.ResponseWriter, r *http.Request) {
	inv, err := h.Ledger.Get(r.PathValue("id"))
	if err != nil {
		httpx.DomainError(w, err)
		return
	}
	var project models.Project
	if err := h.DB.First(&project, "id = ?", inv.ProjectID).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_load_project", nil)
		return
	}
	if project.ClientID == nil {
		httpx.JSONError(w, http.StatusConflict, "project_has_no_client", nil)
		return
	}
	var client models.Client
	if err := h.DB.First(&client, "id = ?", *project.ClientID).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_load_client", nil)
		return
	}
	recipient := client.AccountingEmail
	if recipient == "" {
		recipient = client.Email
	}
	if recipient == "" {
		httpx.JSONError(w, http.StatusBadRequest, "client_has_no_email", nil)
		return
	}

	warning := ""
	if inv.DataPath == "" {
		if doc, err := h.invoiceDoc(inv); err == nil {
			if path, err := h.Renderer.RenderInvoice(*doc); err == nil {
				inv.DataPath = path
				if _, err := h.Ledger.Update(inv.ID, billing.UpdateInput{DataPath: &path}); err != nil {
					h.Log.Error("invoice data path update failed",
						zap.String("invoice", inv.InvoiceNumber), zap.Error(err))
				}
			} else {
				warning = "document not rendered: " + err.Error()
			}
		} else {
			warning = "document not built: " + err.Error()
		}
	}
	if inv.PdfPath == "" && inv.DataPath != "" {
		if pdfPath, err := h.Exporter.ExportPDF(inv.DataPath); err == nil {
			inv.PdfPath = pdfPath
		} else {
			warning = "pdf not exported: " + err.Error()
		}
	}

	settings := loadSettings(h.DB)
	msg := notify.Message{
		To:      []string{recipient},
		Subject: fmt.Sprintf("Invoice %s — %s", inv.InvoiceNumber, project.Name),
		Body: fmt.Sprintf("Please find attached invoice %s for %s.\nAmount due: $%.2f.\n\n%s",
			inv.InvoiceNumber, project.Name, inv.TotalDue, settings["company_name"]),
		AttachmentPath: inv.PdfPath,
	}
	if err := h.Notifier.Send(r.Context(), msg); err != nil {
		if errors.Is(err, notify.ErrNotConfigured) {
			warning = "email not sent: notifier not configured"
		} else {
			h.Log.Error("invoice email failed", zap.String("invoice", inv.InvoiceNumber), zap.Error(err))
			httpx.JSONError(w, http.StatusBadGateway, "email_failed", nil)
			return
		}
	}

	if err := h.Ledger.MarkSent(inv.ID, inv.PdfPath); err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_mark_sent", nil)
		return
	}
	actor, _ := auth.UserID(r.Context())
	activity.Log(h.DB, h.Log, activity.Entry{
		ActorID: actor, Action: "invoice.sent",
		EntityType: "invoice", EntityID: inv.ID, ProjectID: inv.ProjectID,
		Metadata: map[string]any{"invoice_number": inv.InvoiceNumber, "to": recipient},
	})
	sent, err := h.Ledger.Get(inv.ID)
	if err != nil {
		httpx.DomainError(w, err)
		return
	}
	sent.Warning = warning
	httpx.JSON(w, http.StatusOK, sent)
}

// invoiceDoc flattens an invoice with its project, client and company
// settings into a display-ready document.
func (h *InvoiceHandler) invoiceDoc(inv *models.Invoice) (*render.InvoiceDoc, error) {
	var project models.Project
	if err := h.DB.First(&project, "id = ?", inv.ProjectID).Error; err != nil {
		return nil, err
	}
	var client models.Client
	if project.ClientID != nil {
		if err := h.DB.First(&client, "id = ?", *project.ClientID).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	settings := loadSettings(h.DB)
	doc := render.InvoiceDoc{
		InvoiceNumber:       inv.InvoiceNumber,
		Date:                inv.CreatedAt,
		CompanyName:         settings["company_name"],
		CompanyAddress:      settings["company_address"],
		CompanyEmail:        settings["company_email"],
		CompanyPhone:        settings["company_phone"],
		ClientName:          client.Name,
		ClientCompany:       client.Company,
		ClientAddress:       client.Address,
		ProjectName:         project.Name,
		ProjectNumber:       project.ProjectNumber,
		ClientProjectNumber: project.ClientProjectNumber,
		ProjectLocation:     project.Location,
		TotalDue:            inv.TotalDue,
	}
	for _, li := range inv.LineItems {
		doc.Lines = append(doc.Lines, render.InvoiceDocLine{
			Name:        li.Name,
			Description: li.Description,
			Fee:         li.UnitPrice,
			Percent:     li.Quantity,
			PriorAmount: li.PreviousBilling,
			Amount:      li.Amount,
		})
	}
	return &doc, nil
}
