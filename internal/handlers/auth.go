package handlers

import (
	"net/http"

	"gorm.io/gorm"

	"github.com/conductorhq/conductor/internal/auth"
	"github.com/conductorhq/conductor/internal/httpx"
	"github.com/conductorhq/conductor/internal/models"
)

type AuthHandler struct {
	DB       *gorm.DB
	Sessions *auth.Sessions
}

func NewAuthHandler(db *gorm.DB, sessions *auth.Sessions) *AuthHandler {
	return &AuthHandler{DB: db, Sessions: sessions}
}

// Login: POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", map[string]string{"email": "required", "password": "required"})
		return
	}
	var emp models.Employee
	if err := h.DB.First(&emp, "email = ? AND is_active = ?", req.Email, true).Error; err != nil {
		httpx.JSONError(w, http.StatusUnauthorized, "invalid_credentials", nil)
		return
	}
	if emp.Password == "" || !auth.CheckPassword(emp.Password, req.Password) {
		httpx.JSONError(w, http.StatusUnauthorized, "invalid_credentials", nil)
		return
	}
	h.Sessions.Create(w, emp.ID)
	httpx.JSON(w, http.StatusOK, emp)
}

// Logout: POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.Sessions.Clear(w)
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// Me: GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.UserID(r.Context())
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var emp models.Employee
	if err := h.DB.First(&emp, "id = ?", id).Error; err != nil {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, emp)
}
