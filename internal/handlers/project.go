package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/conductorhq/conductor/internal/activity"
	"github.com/conductorhq/conductor/internal/auth"
	"github.com/conductorhq/conductor/internal/billing"
	"github.com/conductorhq/conductor/internal/httpx"
	"github.com/conductorhq/conductor/internal/ids"
	"github.com/conductorhq/conductor/internal/models"
)

type ProjectHandler struct {
	DB     *gorm.DB
	Log    *zap.Logger
	Ledger *billing.Ledger
	Locks  *ids.Locks
}

func NewProjectHandler(db *gorm.DB, log *zap.Logger, ledger *billing.Ledger, locks *ids.Locks) *ProjectHandler {
	return &ProjectHandler{DB: db, Log: log, Ledger: ledger, Locks: locks}
}

// projectRollup is one row of the project list with billing totals attached.
type projectRollup struct {
	models.Project
	ClientName      string  `json:"client_name,omitempty"`
	ContractedTotal float64 `json:"contracted_total"`
	BilledTotal     float64 `json:"billed_total"`
	PaidTotal       float64 `json:"paid_total"`
}

// List: GET /api/projects?status=&q=
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	dbq := h.DB.Model(&models.Project{})
	if status := r.URL.Query().Get("status"); status != "" {
		dbq = dbq.Where("status = ?", status)
	}
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		dbq = dbq.Where("lower(name) LIKE ? OR lower(project_number) LIKE ? OR lower(job_code) LIKE ?", like, like, like)
	}
	var projects []models.Project
	if err := dbq.Order("created_at DESC").Find(&projects).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_list_projects", nil)
		return
	}

	out := make([]projectRollup, 0, len(projects))
	for _, p := range projects {
		row := projectRollup{Project: p}
		if p.ClientID != nil {
			var client models.Client
			if err := h.DB.Select("name").First(&client, "id = ?", *p.ClientID).Error; err == nil {
				row.ClientName = client.Name
			}
		}
		h.DB.Model(&models.Contract{}).Where("project_id = ?", p.ID).
			Select("COALESCE(SUM(total_amount), 0)").Scan(&row.ContractedTotal)
		h.DB.Model(&models.Invoice{}).Where("project_id = ?", p.ID).
			Select("COALESCE(SUM(total_due), 0)").Scan(&row.BilledTotal)
		h.DB.Model(&models.Invoice{}).Where("project_id = ? AND paid_status = ?", p.ID, models.PaidStatusPaid).
			Select("COALESCE(SUM(total_due), 0)").Scan(&row.PaidTotal)
		out = append(out, row)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": out, "total": len(out)})
}

type createProjectReq struct {
	models.Project
	// Client may be supplied inline; matched by email before creating.
	Client *struct {
		Name    string `json:"name"`
		Email   string `json:"email"`
		Company string `json:"company"`
	} `json:"client,omitempty"`
	Contract *struct {
		SignedAt *time.Time `json:"signed_at,omitempty"`
		Tasks    []struct {
			Name        string  `json:"name"`
			Description string  `json:"description,omitempty"`
			Amount      float64 `json:"amount"`
		} `json:"tasks"`
	} `json:"contract,omitempty"`
}

// Create: POST /api/projects — accepts an inline client and contract so a
// whole engagement can be set up in one call.
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createProjectReq
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", map[string]string{"name": "required"})
		return
	}

	release := h.Locks.Acquire("project-number")
	defer release()

	project := req.Project
	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if req.Client != nil && project.ClientID == nil {
			var client models.Client
			err := tx.First(&client, "email = ? AND email <> ''", req.Client.Email).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				client = models.Client{
					ID:      ids.New("cli-"),
					Name:    req.Client.Name,
					Email:   req.Client.Email,
					Company: req.Client.Company,
				}
				if err := tx.Create(&client).Error; err != nil {
					return err
				}
			} else if err != nil {
				return err
			}
			project.ClientID = &client.ID
		}
		if project.ID == "" {
			project.ID = ids.New("prj-")
		}
		if project.ProjectNumber == "" {
			number, err := ids.NextProjectNumber(tx, time.Now())
			if err != nil {
				return err
			}
			project.ProjectNumber = number
		}
		if project.Status == "" {
			project.Status = models.ProjectStatusProposal
		}
		if project.PMID != nil {
			var pm models.Employee
			if err := tx.First(&pm, "id = ?", *project.PMID).Error; err == nil {
				project.PMName = pm.FirstName + " " + pm.LastName
				project.PMEmail = pm.Email
			}
		}
		if err := tx.Create(&project).Error; err != nil {
			return err
		}
		if req.Contract != nil && len(req.Contract.Tasks) > 0 {
			contract := models.Contract{
				ID:        ids.New("con-"),
				ProjectID: project.ID,
				SignedAt:  req.Contract.SignedAt,
			}
			if err := tx.Create(&contract).Error; err != nil {
				return err
			}
			total := 0.0
			tasks := make([]models.ContractTask, 0, len(req.Contract.Tasks))
			for i, t := range req.Contract.Tasks {
				total += t.Amount
				tasks = append(tasks, models.ContractTask{
					ID:          ids.New("ct-"),
					ContractID:  contract.ID,
					SortOrder:   i + 1,
					Name:        t.Name,
					Description: t.Description,
					Amount:      t.Amount,
				})
			}
			if err := tx.Create(&tasks).Error; err != nil {
				return err
			}
			if err := tx.Model(&contract).Update("total_amount", total).Error; err != nil {
				return err
			}
			if err := tx.Model(&project).Update("status", models.ProjectStatusContract).Error; err != nil {
				return err
			}
			project.Status = models.ProjectStatusContract
		}
		return nil
	})
	if err != nil {
		h.Log.Error("project create failed", zap.Error(err))
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_create_project", nil)
		return
	}
	actor, _ := auth.UserID(r.Context())
	activity.Log(h.DB, h.Log, activity.Entry{
		ActorID: actor, Action: "project.created",
		EntityType: "project", EntityID: project.ID, ProjectID: project.ID,
	})
	httpx.JSON(w, http.StatusCreated, project)
}

// Get: GET /api/projects/{id} — full composition with computed billed state.
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	var project models.Project
	if err := h.DB.First(&project, "id = ?", r.PathValue("id")).Error; err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	var contracts []models.Contract
	h.DB.Preload("Tasks", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order") }).
		Where("project_id = ?", project.ID).Find(&contracts)
	for i := range contracts {
		if err := h.Ledger.ApplyTaskBilling(contracts[i].ID, contracts[i].Tasks); err != nil {
			httpx.JSONError(w, http.StatusInternalServerError, "failed_to_compute_billing", nil)
			return
		}
	}
	var proposals []models.Proposal
	h.DB.Preload("Tasks", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order") }).
		Where("project_id = ?", project.ID).Find(&proposals)
	var invoices []models.Invoice
	h.DB.Preload("LineItems", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order") }).
		Where("project_id = ?", project.ID).Order("created_at DESC").Find(&invoices)

	var client *models.Client
	if project.ClientID != nil {
		var c models.Client
		if err := h.DB.Preload("Contacts").First(&c, "id = ?", *project.ClientID).Error; err == nil {
			client = &c
		}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"project":   project,
		"client":    client,
		"contracts": contracts,
		"proposals": proposals,
		"invoices":  invoices,
	})
}

// Update: PATCH /api/projects/{id}
func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	var project models.Project
	if err := h.DB.First(&project, "id = ?", r.PathValue("id")).Error; err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	var req map[string]any
	if !decodeJSON(w, r, &req) {
		return
	}
	updates := pickFields(req,
		"name", "client_id", "job_code", "client_project_number",
		"location", "status", "notes", "data_path")
	if v, ok := req["pm_id"]; ok {
		// PM change re-syncs the denormalized name/email; clearing clears them.
		if s, ok := v.(string); ok && s != "" {
			var pm models.Employee
			if err := h.DB.First(&pm, "id = ?", s).Error; err != nil {
				httpx.JSONError(w, http.StatusBadRequest, "unknown_pm", nil)
				return
			}
			updates["pm_id"] = s
			updates["pm_name"] = pm.FirstName + " " + pm.LastName
			updates["pm_email"] = pm.Email
		} else {
			updates["pm_id"] = nil
			updates["pm_name"] = ""
			updates["pm_email"] = ""
		}
	}
	if len(updates) > 0 {
		if err := h.DB.Model(&project).Updates(updates).Error; err != nil {
			httpx.JSONError(w, http.StatusInternalServerError, "failed_to_update_project", nil)
			return
		}
	}
	httpx.JSON(w, http.StatusOK, project)
}

// Delete: DELETE /api/projects/{id}?cascade=1 — cascade soft-deletes the
// project's contracts, proposals and invoices too.
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var project models.Project
	if err := h.DB.First(&project, "id = ?", id).Error; err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	cascade := r.URL.Query().Get("cascade") == "1"
	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if cascade {
			if err := tx.Delete(&models.Invoice{}, "project_id = ?", id).Error; err != nil {
				return err
			}
			if err := tx.Delete(&models.Contract{}, "project_id = ?", id).Error; err != nil {
				return err
			}
			if err := tx.Delete(&models.Proposal{}, "project_id = ?", id).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.Project{}, "id = ?", id).Error
	})
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_delete_project", nil)
		return
	}
	actor, _ := auth.UserID(r.Context())
	activity.Log(h.DB, h.Log, activity.Entry{
		ActorID: actor, Action: "project.deleted",
		EntityType: "project", EntityID: id, ProjectID: id,
		Metadata: map[string]any{"cascade": cascade},
	})
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ListNotes: GET /api/projects/{id}/notes
func (h *ProjectHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	var notes []models.ProjectNote
	if err := h.DB.Where("project_id = ?", r.PathValue("id")).
		Order("created_at DESC").Find(&notes).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_list_notes", nil)
		return
	}
	for i := range notes {
		if notes[i].AuthorID != nil {
			var emp models.Employee
			if err := h.DB.First(&emp, "id = ?", *notes[i].AuthorID).Error; err == nil {
				notes[i].AuthorName = emp.FirstName + " " + emp.LastName
			}
		}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": notes, "total": len(notes)})
}

// AddNote: POST /api/projects/{id}/notes
func (h *ProjectHandler) AddNote(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")
	var project models.Project
	if err := h.DB.First(&project, "id = ?", projectID).Error; err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	var req struct {
		Content string `json:"content"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", map[string]string{"content": "required"})
		return
	}
	note := models.ProjectNote{
		ID:        ids.New("note-"),
		ProjectID: projectID,
		Content:   req.Content,
	}
	if actor, ok := auth.UserID(r.Context()); ok {
		note.AuthorID = &actor
	}
	if err := h.DB.Create(&note).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_create_note", nil)
		return
	}
	actor, _ := auth.UserID(r.Context())
	activity.Log(h.DB, h.Log, activity.Entry{
		ActorID: actor, Action: "note.created",
		EntityType: "project_note", EntityID: note.ID, ProjectID: projectID,
	})
	httpx.JSON(w, http.StatusCreated, note)
}

// CreateInvoice: POST /api/projects/{id}/invoices — standalone list-type
// invoice not tied to a contract.
func (h *ProjectHandler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		InvoiceNumber string  `json:"invoice_number,omitempty"`
		Type          string  `json:"type,omitempty"`
		Description   string  `json:"description,omitempty"`
		TotalDue      float64 `json:"total_due"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	inv, err := h.Ledger.CreateStandalone(r.PathValue("id"), req.InvoiceNumber, req.Type, req.Description, req.TotalDue)
	if err != nil {
		h.Log.Error("standalone invoice create failed", zap.Error(err))
		httpx.DomainError(w, err)
		return
	}
	actor, _ := auth.UserID(r.Context())
	activity.Log(h.DB, h.Log, activity.Entry{
		ActorID: actor, Action: "invoice.created",
		EntityType: "invoice", EntityID: inv.ID, ProjectID: inv.ProjectID,
		Metadata: map[string]any{"invoice_number": inv.InvoiceNumber, "type": inv.Type},
	})
	httpx.JSON(w, http.StatusCreated, inv)
}
