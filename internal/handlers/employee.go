package handlers

import (
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/conductorhq/conductor/internal/auth"
	"github.com/conductorhq/conductor/internal/httpx"
	"github.com/conductorhq/conductor/internal/ids"
	"github.com/conductorhq/conductor/internal/models"
)

type EmployeeHandler struct {
	DB *gorm.DB
}

func NewEmployeeHandler(db *gorm.DB) *EmployeeHandler {
	return &EmployeeHandler{DB: db}
}

// List: GET /api/employees
func (h *EmployeeHandler) List(w http.ResponseWriter, r *http.Request) {
	var employees []models.Employee
	if err := h.DB.Order("last_name, first_name").Find(&employees).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_list_employees", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": employees, "total": len(employees)})
}

// Create: POST /api/employees
func (h *EmployeeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Email     string `json:"email"`
		Password  string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.FirstName) == "" || strings.TrimSpace(req.LastName) == "" {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", map[string]string{"first_name": "required", "last_name": "required"})
		return
	}
	emp := models.Employee{
		ID:        ids.New("emp-"),
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		IsActive:  true,
	}
	if req.Password != "" {
		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			httpx.JSONError(w, http.StatusInternalServerError, "failed_to_hash_password", nil)
			return
		}
		emp.Password = hash
	}
	if err := h.DB.Create(&emp).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_create_employee", nil)
		return
	}
	httpx.JSON(w, http.StatusCreated, emp)
}

// Get: GET /api/employees/{id}
func (h *EmployeeHandler) Get(w http.ResponseWriter, r *http.Request) {
	var emp models.Employee
	if err := h.DB.First(&emp, "id = ?", r.PathValue("id")).Error; err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, emp)
}

// Update: PATCH /api/employees/{id}
func (h *EmployeeHandler) Update(w http.ResponseWriter, r *http.Request) {
	var emp models.Employee
	if err := h.DB.First(&emp, "id = ?", r.PathValue("id")).Error; err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	var req map[string]any
	if !decodeJSON(w, r, &req) {
		return
	}
	updates := pickFields(req, "first_name", "last_name", "email", "is_active")
	if pw, ok := req["password"].(string); ok && pw != "" {
		hash, err := auth.HashPassword(pw)
		if err != nil {
			httpx.JSONError(w, http.StatusInternalServerError, "failed_to_hash_password", nil)
			return
		}
		updates["password"] = hash
	}
	if len(updates) > 0 {
		if err := h.DB.Model(&emp).Updates(updates).Error; err != nil {
			httpx.JSONError(w, http.StatusInternalServerError, "failed_to_update_employee", nil)
			return
		}
	}
	// Keep PM denormalization in sync on projects managed by this employee.
	if _, ok := updates["first_name"]; ok {
		h.syncPM(&emp)
	} else if _, ok := updates["last_name"]; ok {
		h.syncPM(&emp)
	} else if _, ok := updates["email"]; ok {
		h.syncPM(&emp)
	}
	httpx.JSON(w, http.StatusOK, emp)
}

func (h *EmployeeHandler) syncPM(emp *models.Employee) {
	h.DB.Model(&models.Project{}).Where("pm_id = ?", emp.ID).Updates(map[string]any{
		"pm_name":  emp.FirstName + " " + emp.LastName,
		"pm_email": emp.Email,
	})
}

// Delete: DELETE /api/employees/{id} (soft; sessions for it stop verifying)
func (h *EmployeeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	res := h.DB.Delete(&models.Employee{}, "id = ?", r.PathValue("id"))
	if res.Error != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_delete_employee", nil)
		return
	}
	if res.RowsAffected == 0 {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
