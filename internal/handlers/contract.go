package handlers

import (
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

type ContractHandler struct {
	DB     *gorm.DB
	Log    *zap.Logger
	Ledger *billing.Ledger
}

func NewContractHandler(db *gorm.DB, log *zap.Logger, ledger *billing.Ledger) *ContractHandler {
	return &ContractHandler{DB: db, Log: log, Ledger: ledger}
}

type createContractReq struct {
	ProjectID string     `json:"project_id"`
	SignedAt  *time.Time `json:"signed_at,omitempty"`
	FilePath  string     `json:"file_path,omitempty"`
	Notes     string     `json:"notes,omitempty"`
	Tasks     []struct {
		Name        string  `json:"name"`
		Description string  `json:"description,omitempty"`
		Amount      float64 `json:"amount"`
	} `json:"tasks"`
}

// Create: POST /api/contracts
func (h *ContractHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createContractReq
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
	contract := models.Contract{
		ID:        ids.New("con-"),
		ProjectID: req.ProjectID,
		SignedAt:  req.SignedAt,
		FilePath:  req.FilePath,
		Notes:     req.Notes,
	}
	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&contract).Error; err != nil {
			return err
		}
		total := 0.0
		if len(req.Tasks) > 0 {
			tasks := make([]models.ContractTask, 0, len(req.Tasks))
			for i, t := range req.Tasks {
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
			contract.Tasks = tasks
		}
		contract.TotalAmount = total
		return tx.Model(&models.Contract{}).Where("id = ?", contract.ID).
			Update("total_amount", total).Error
	})
	if err != nil {
		h.Log.Error("contract create failed", zap.Error(err))
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_create_contract", nil)
		return
	}
	actor, _ := auth.UserID(r.Context())
	activity.Log(h.DB, h.Log, activity.Entry{
		ActorID: actor, Action: "contract.created",
		EntityType: "contract", EntityID: contract.ID, ProjectID: contract.ProjectID,
	})
	httpx.JSON(w, http.StatusCreated, contract)
}

// Get: GET /api/contracts/{id} — tasks carry computed billed state.
func (h *ContractHandler) Get(w http.ResponseWriter, r *http.Request) {
	var contract models.Contract
	err := h.DB.Preload("Tasks", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order") }).
		First(&contract, "id = ?", r.PathValue("id")).Error
	if err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	if err := h.Ledger.ApplyTaskBilling(contract.ID, contract.Tasks); err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_compute_billing", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, contract)
}

// Update: PATCH /api/contracts/{id}
func (h *ContractHandler) Update(w http.ResponseWriter, r *http.Request) {
	var contract models.Contract
	if err := h.DB.First(&contract, "id = ?", r.PathValue("id")).Error; err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	var req map[string]any
	if !decodeJSON(w, r, &req) {
		return
	}
	updates := pickFields(req, "signed_at", "file_path", "notes")
	if len(updates) > 0 {
		if err := h.DB.Model(&contract).Updates(updates).Error; err != nil {
			httpx.JSONError(w, http.StatusInternalServerError, "failed_to_update_contract", nil)
			return
		}
	}
	httpx.JSON(w, http.StatusOK, contract)
}

// Delete: DELETE /api/contracts/{id} (soft)
func (h *ContractHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	res := h.DB.Delete(&models.Contract{}, "id = ?", id)
	if res.Error != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_delete_contract", nil)
		return
	}
	if res.RowsAffected == 0 {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	actor, _ := auth.UserID(r.Context())
	activity.Log(h.DB, h.Log, activity.Entry{
		ActorID: actor, Action: "contract.deleted",
		EntityType: "contract", EntityID: id,
	})
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// AddTask: POST /api/contracts/{id}/tasks — appends a task and bumps the
// contract total.
func (h *ContractHandler) AddTask(w http.ResponseWriter, r *http.Request) {
	contractID := r.PathValue("id")
	var contract models.Contract
	if err := h.DB.First(&contract, "id = ?", contractID).Error; err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	var req struct {
		Name        string  `json:"name"`
		Description string  `json:"description,omitempty"`
		Amount      float64 `json:"amount"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", map[string]string{"name": "required"})
		return
	}
	var maxOrder int
	h.DB.Model(&models.ContractTask{}).Where("contract_id = ?", contractID).
		Select("COALESCE(MAX(sort_order), 0)").Scan(&maxOrder)
	task := models.ContractTask{
		ID:          ids.New("ct-"),
		ContractID:  contractID,
		SortOrder:   maxOrder + 1,
		Name:        req.Name,
		Description: req.Description,
		Amount:      req.Amount,
	}
	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&task).Error; err != nil {
			return err
		}
		return h.recomputeTotal(tx, contractID)
	})
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_create_task", nil)
		return
	}
	httpx.JSON(w, http.StatusCreated, task)
}

// UpdateTask: PATCH /api/contract-tasks/{id}
func (h *ContractHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	var task models.ContractTask
	if err := h.DB.First(&task, "id = ?", r.PathValue("id")).Error; err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	var req map[string]any
	if !decodeJSON(w, r, &req) {
		return
	}
	updates := pickFields(req, "name", "description", "amount", "sort_order")
	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			if err := tx.Model(&task).Updates(updates).Error; err != nil {
				return err
			}
		}
		return h.recomputeTotal(tx, task.ContractID)
	})
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_update_task", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, task)
}

// DeleteTask: DELETE /api/contract-tasks/{id}
func (h *ContractHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	var task models.ContractTask
	if err := h.DB.First(&task, "id = ?", r.PathValue("id")).Error; err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&task).Error; err != nil {
			return err
		}
		return h.recomputeTotal(tx, task.ContractID)
	})
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_delete_task", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *ContractHandler) recomputeTotal(tx *gorm.DB, contractID string) error {
	var total float64
	if err := tx.Model(&models.ContractTask{}).Where("contract_id = ?", contractID).
		Select("COALESCE(SUM(amount), 0)").Scan(&total).Error; err != nil {
		return err
	}
	return tx.Model(&models.Contract{}).Where("id = ?", contractID).
		Update("total_amount", total).Error
}

// CreateInvoice: POST /api/contracts/{id}/invoices — task-type invoice
// billing percentages of the contract's tasks.
func (h *ContractHandler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var in billing.FromContractInput
	if !decodeJSON(w, r, &in) {
		return
	}
	inv, err := h.Ledger.CreateFromContract(r.PathValue("id"), in)
	if err != nil {
		h.Log.Error("invoice create failed", zap.Error(err))
		httpx.DomainError(w, err)
		return
	}
	actor, _ := auth.UserID(r.Context())
	activity.Log(h.DB, h.Log, activity.Entry{
		ActorID: actor, Action: "invoice.created",
		EntityType: "invoice", EntityID: inv.ID, ProjectID: inv.ProjectID,
		Metadata: map[string]any{"invoice_number": inv.InvoiceNumber, "total_due": inv.TotalDue},
	})
	httpx.JSON(w, http.StatusCreated, inv)
}
