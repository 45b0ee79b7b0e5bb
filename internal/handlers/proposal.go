package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/conductorhq/conductor/internal/activity"
	"github.com/conductorhq/conductor/internal/auth"
	"github.com/conductorhq/conductor/internal/httpx"
	"github.com/conductorhq/conductor/internal/ids"
	"github.com/conductorhq/conductor/internal/models"
	"github.com/conductorhq/conductor/internal/notify"
	"github.com/conductorhq/conductor/internal/render"
	"github.com/conductorhq/conductor/internal/services"
)

type ProposalHandler struct {
	DB        *gorm.DB
	Log       *zap.Logger
	Promotion *services.Promotion
	Renderer  render.Renderer
	Exporter  render.Exporter
	Notifier  notify.Notifier
}

func NewProposalHandler(db *gorm.DB, log *zap.Logger, promotion *services.Promotion, renderer render.Renderer, exporter render.Exporter, notifier notify.Notifier) *ProposalHandler {
	return &ProposalHandler{DB: db, Log: log, Promotion: promotion, Renderer: renderer, Exporter: exporter, Notifier: notifier}
}

type createProposalReq struct {
	ProjectID          string `json:"project_id"`
	ClientCompany      string `json:"client_company,omitempty"`
	ClientContactEmail string `json:"client_contact_email,omitempty"`
	EngineerKey        string `json:"engineer_key,omitempty"`
	EngineerName       string `json:"engineer_name,omitempty"`
	EngineerTitle      string `json:"engineer_title,omitempty"`
	ContactMethod      string `json:"contact_method,omitempty"`
	ProposalDate       string `json:"proposal_date,omitempty"`
	Tasks              []struct {
		Name        string  `json:"name"`
		Description string  `json:"description,omitempty"`
		Amount      float64 `json:"amount"`
	} `json:"tasks"`
}

// Create: POST /api/proposals
func (h *ProposalHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createProposalReq
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ProjectID == "" {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", map[string]string{"project_id": "required"})
		return
	}
	var project models.Project
	if err := h.DB.First(&project, "id = ?", req.ProjectID).Error; err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	proposal := models.Proposal{
		ID:                 ids.New("prop-"),
		ProjectID:          req.ProjectID,
		ClientCompany:      req.ClientCompany,
		ClientContactEmail: req.ClientContactEmail,
		EngineerKey:        req.EngineerKey,
		EngineerName:       req.EngineerName,
		EngineerTitle:      req.EngineerTitle,
		ContactMethod:      req.ContactMethod,
		ProposalDate:       req.ProposalDate,
		Status:             models.ProposalStatusDraft,
	}
	if proposal.ProposalDate == "" {
		proposal.ProposalDate = time.Now().Format("January 2, 2006")
	}
	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&proposal).Error; err != nil {
			return err
		}
		total := 0.0
		if len(req.Tasks) > 0 {
			tasks := make([]models.ProposalTask, 0, len(req.Tasks))
			for i, t := range req.Tasks {
				total += t.Amount
				tasks = append(tasks, models.ProposalTask{
					ID:          ids.New("pt-"),
					ProposalID:  proposal.ID,
					SortOrder:   i + 1,
					Name:        t.Name,
					Description: t.Description,
					Amount:      t.Amount,
				})
			}
			if err := tx.Create(&tasks).Error; err != nil {
				return err
			}
			proposal.Tasks = tasks
		}
		proposal.TotalFee = total
		return tx.Model(&models.Proposal{}).Where("id = ?", proposal.ID).
			Update("total_fee", total).Error
	})
	if err != nil {
		h.Log.Error("proposal create failed", zap.Error(err))
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_create_proposal", nil)
		return
	}
	actor, _ := auth.UserID(r.Context())
	activity.Log(h.DB, h.Log, activity.Entry{
		ActorID: actor, Action: "proposal.created",
		EntityType: "proposal", EntityID: proposal.ID, ProjectID: proposal.ProjectID,
	})
	httpx.JSON(w, http.StatusCreated, proposal)
}

// Get: GET /api/proposals/{id}
func (h *ProposalHandler) Get(w http.ResponseWriter, r *http.Request) {
	var proposal models.Proposal
	err := h.DB.Preload("Tasks", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order") }).
		First(&proposal, "id = ?", r.PathValue("id")).Error
	if err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, proposal)
}

// Update: PATCH /api/proposals/{id} — replaces tasks wholesale when given.
func (h *ProposalHandler) Update(w http.ResponseWriter, r *http.Request) {
	var proposal models.Proposal
	if err := h.DB.First(&proposal, "id = ?", r.PathValue("id")).Error; err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	var req struct {
		Tasks *[]struct {
			Name        string  `json:"name"`
			Description string  `json:"description,omitempty"`
			Amount      float64 `json:"amount"`
		} `json:"tasks,omitempty"`
		ClientCompany      *string `json:"client_company,omitempty"`
		ClientContactEmail *string `json:"client_contact_email,omitempty"`
		EngineerKey        *string `json:"engineer_key,omitempty"`
		EngineerName       *string `json:"engineer_name,omitempty"`
		EngineerTitle      *string `json:"engineer_title,omitempty"`
		ContactMethod      *string `json:"contact_method,omitempty"`
		ProposalDate       *string `json:"proposal_date,omitempty"`
		Status             *string `json:"status,omitempty"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	updates := map[string]any{}
	setIf(updates, "client_company", req.ClientCompany)
	setIf(updates, "client_contact_email", req.ClientContactEmail)
	setIf(updates, "engineer_key", req.EngineerKey)
	setIf(updates, "engineer_name", req.EngineerName)
	setIf(updates, "engineer_title", req.EngineerTitle)
	setIf(updates, "contact_method", req.ContactMethod)
	setIf(updates, "proposal_date", req.ProposalDate)
	setIf(updates, "status", req.Status)

	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if req.Tasks != nil {
			if err := tx.Where("proposal_id = ?", proposal.ID).
				Delete(&models.ProposalTask{}).Error; err != nil {
				return err
			}
			total := 0.0
			if len(*req.Tasks) > 0 {
				tasks := make([]models.ProposalTask, 0, len(*req.Tasks))
				for i, t := range *req.Tasks {
					total += t.Amount
					tasks = append(tasks, models.ProposalTask{
						ID:          ids.New("pt-"),
						ProposalID:  proposal.ID,
						SortOrder:   i + 1,
						Name:        t.Name,
						Description: t.Description,
						Amount:      t.Amount,
					})
				}
				if err := tx.Create(&tasks).Error; err != nil {
					return err
				}
			}
			updates["total_fee"] = total
		}
		if len(updates) > 0 {
			return tx.Model(&proposal).Updates(updates).Error
		}
		return nil
	})
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_update_proposal", nil)
		return
	}
	h.Get(w, r)
}

func setIf(updates map[string]any, key string, v *string) {
	if v != nil {
		updates[key] = *v
	}
}

// Delete: DELETE /api/proposals/{id} (soft)
func (h *ProposalHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	res := h.DB.Delete(&models.Proposal{}, "id = ?", id)
	if res.Error != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_delete_proposal", nil)
		return
	}
	if res.RowsAffected == 0 {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	actor, _ := auth.UserID(r.Context())
	activity.Log(h.DB, h.Log, activity.Entry{
		ActorID: actor, Action: "proposal.deleted",
		EntityType: "proposal", EntityID: id,
	})
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Promote: POST /api/proposals/{id}/promote
func (h *ProposalHandler) Promote(w http.ResponseWriter, r *http.Request) {
	var in services.PromoteInput
	if r.ContentLength > 0 {
		if !decodeJSON(w, r, &in) {
			return
		}
	}
	contract, err := h.Promotion.Promote(r.PathValue("id"), in)
	if err != nil {
		httpx.DomainError(w, err)
		return
	}
	actor, _ := auth.UserID(r.Context())
	activity.Log(h.DB, h.Log, activity.Entry{
		ActorID: actor, Action: "proposal.promoted",
		EntityType: "contract", EntityID: contract.ID, ProjectID: contract.ProjectID,
		Metadata: map[string]any{"total_amount": contract.TotalAmount},
	})
	httpx.JSON(w, http.StatusCreated, contract)
}

// GenerateDoc: POST /api/proposals/{id}/generate-doc?force=1
func (h *ProposalHandler) GenerateDoc(w http.ResponseWriter, r *http.Request) {
	proposal, err := h.load(r.PathValue("id"))
	if err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	if proposal.DataPath != "" && r.URL.Query().Get("force") != "1" {
		httpx.JSON(w, http.StatusOK, proposal)
		return
	}
	doc := h.proposalDoc(proposal)
	path, err := h.Renderer.RenderProposal(*doc)
	if err != nil {
		if errors.Is(err, render.ErrNotConfigured) {
			httpx.JSONError(w, http.StatusConflict, "renderer_not_configured", nil)
			return
		}
		h.Log.Error("proposal render failed", zap.String("proposal_id", proposal.ID), zap.Error(err))
		httpx.JSONError(w, http.StatusInternalServerError, "render_failed", nil)
		return
	}
	if err := h.DB.Model(proposal).Update("data_path", path).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_update_proposal", nil)
		return
	}
	proposal.DataPath = path
	httpx.JSON(w, http.StatusOK, proposal)
}

// ExportPDF: POST /api/proposals/{id}/export-pdf
func (h *ProposalHandler) ExportPDF(w http.ResponseWriter, r *http.Request) {
	proposal, err := h.load(r.PathValue("id"))
	if err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	if proposal.DataPath == "" {
		httpx.JSONError(w, http.StatusConflict, "doc_not_generated", nil)
		return
	}
	pdfPath, err := h.Exporter.ExportPDF(proposal.DataPath)
	if err != nil {
		h.Log.Error("proposal pdf export failed", zap.String("proposal_id", proposal.ID), zap.Error(err))
		httpx.JSONError(w, http.StatusInternalServerError, "pdf_export_failed", nil)
		return
	}
	if err := h.DB.Model(proposal).Update("pdf_path", pdfPath).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_update_proposal", nil)
		return
	}
	proposal.PdfPath = pdfPath
	httpx.JSON(w, http.StatusOK, proposal)
}

// Send: POST /api/proposals/{id}/send — email the PDF to the client contact
// and mark the proposal sent.
func (h *ProposalHandler) Send(w http.ResponseWriter, r *http.Request) {
	proposal, err := h.load(r.PathValue("id"))
	if err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	if proposal.ClientContactEmail == "" {
		httpx.JSONError(w, http.StatusBadRequest, "proposal_has_no_contact_email", nil)
		return
	}

	warning := ""
	if proposal.DataPath == "" {
		doc := h.proposalDoc(proposal)
		if path, err := h.Renderer.RenderProposal(*doc); err == nil {
			proposal.DataPath = path
			h.DB.Model(proposal).Update("data_path", path)
		} else {
			warning = "document not rendered: " + err.Error()
		}
	}
	if proposal.PdfPath == "" && proposal.DataPath != "" {
		if pdfPath, err := h.Exporter.ExportPDF(proposal.DataPath); err == nil {
			proposal.PdfPath = pdfPath
			h.DB.Model(proposal).Update("pdf_path", pdfPath)
		} else {
			warning = "pdf not exported: " + err.Error()
		}
	}

	var project models.Project
	h.DB.First(&project, "id = ?", proposal.ProjectID)
	settings := loadSettings(h.DB)
	msg := notify.Message{
		To:      []string{proposal.ClientContactEmail},
		Subject: fmt.Sprintf("Proposal — %s", project.Name),
		Body: fmt.Sprintf("Please find attached our proposal for %s.\nTotal fee: $%.2f.\n\n%s",
			project.Name, proposal.TotalFee, settings["company_name"]),
		AttachmentPath: proposal.PdfPath,
	}
	if err := h.Notifier.Send(r.Context(), msg); err != nil {
		if errors.Is(err, notify.ErrNotConfigured) {
			warning = "email not sent: notifier not configured"
		} else {
			h.Log.Error("proposal email failed", zap.String("proposal_id", proposal.ID), zap.Error(err))
			httpx.JSONError(w, http.StatusBadGateway, "email_failed", nil)
			return
		}
	}

	now := time.Now()
	if err := h.DB.Model(proposal).Updates(map[string]any{
		"status":  models.ProposalStatusSent,
		"sent_at": now,
	}).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_mark_sent", nil)
		return
	}
	proposal.Status = models.ProposalStatusSent
	proposal.SentAt = &now
	actor, _ := auth.UserID(r.Context())
	activity.Log(h.DB, h.Log, activity.Entry{
		ActorID: actor, Action: "proposal.sent",
		EntityType: "proposal", EntityID: proposal.ID, ProjectID: proposal.ProjectID,
		Metadata: map[string]any{"to": proposal.ClientContactEmail},
	})
	httpx.JSON(w, http.StatusOK, map[string]any{"proposal": proposal, "_warning": warning})
}

func (h *ProposalHandler) load(id string) (*models.Proposal, error) {
	var proposal models.Proposal
	err := h.DB.Preload("Tasks", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order") }).
		First(&proposal, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &proposal, nil
}

func (h *ProposalHandler) proposalDoc(p *models.Proposal) *render.ProposalDoc {
	var project models.Project
	h.DB.First(&project, "id = ?", p.ProjectID)
	settings := loadSettings(h.DB)
	doc := render.ProposalDoc{
		ProposalDate:       p.ProposalDate,
		CompanyName:        settings["company_name"],
		CompanyEmail:       settings["company_email"],
		EngineerName:       p.EngineerName,
		EngineerTitle:      p.EngineerTitle,
		ClientCompany:      p.ClientCompany,
		ClientContactEmail: p.ClientContactEmail,
		ProjectName:        project.Name,
		ProjectLocation:    project.Location,
		TotalFee:           p.TotalFee,
	}
	for _, t := range p.Tasks {
		doc.Tasks = append(doc.Tasks, render.ProposalDocTask{
			Name:        t.Name,
			Description: t.Description,
			Amount:      t.Amount,
		})
	}
	return &doc
}
