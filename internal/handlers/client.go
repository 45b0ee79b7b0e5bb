package handlers

import (
	"errors"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/conductorhq/conductor/internal/httpx"
	"github.com/conductorhq/conductor/internal/ids"
	"github.com/conductorhq/conductor/internal/models"
)

type ClientHandler struct {
	DB *gorm.DB
}

func NewClientHandler(db *gorm.DB) *ClientHandler {
	return &ClientHandler{DB: db}
}

// List: GET /api/clients?q=
func (h *ClientHandler) List(w http.ResponseWriter, r *http.Request) {
	dbq := h.DB.Preload("Contacts")
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		dbq = dbq.Where("lower(name) LIKE ? OR lower(company) LIKE ?", like, like)
	}
	var clients []models.Client
	if err := dbq.Order("name").Find(&clients).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_list_clients", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": clients, "total": len(clients)})
}

// Create: POST /api/clients
func (h *ClientHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.Client
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", map[string]string{"name": "required"})
		return
	}
	req.ID = ids.New("cli-")
	for i := range req.Contacts {
		req.Contacts[i].ID = ids.New("ct-")
		req.Contacts[i].ClientID = req.ID
	}
	if err := h.DB.Create(&req).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_create_client", nil)
		return
	}
	httpx.JSON(w, http.StatusCreated, req)
}

// Get: GET /api/clients/{id}
func (h *ClientHandler) Get(w http.ResponseWriter, r *http.Request) {
	var client models.Client
	err := h.DB.Preload("Contacts").First(&client, "id = ?", r.PathValue("id")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_load_client", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, client)
}

// Update: PATCH /api/clients/{id}
func (h *ClientHandler) Update(w http.ResponseWriter, r *http.Request) {
	var client models.Client
	if err := h.DB.First(&client, "id = ?", r.PathValue("id")).Error; err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	var req map[string]any
	if !decodeJSON(w, r, &req) {
		return
	}
	updates := pickFields(req, "name", "email", "company", "phone", "address", "accounting_email", "notes")
	if len(updates) == 0 {
		httpx.JSON(w, http.StatusOK, client)
		return
	}
	if err := h.DB.Model(&client).Updates(updates).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_update_client", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, client)
}

// Delete: DELETE /api/clients/{id} (soft)
func (h *ClientHandler) Delete(w http.ResponseWriter, r *http.Request) {
	res := h.DB.Delete(&models.Client{}, "id = ?", r.PathValue("id"))
	if res.Error != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_delete_client", nil)
		return
	}
	if res.RowsAffected == 0 {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// AddContact: POST /api/clients/{id}/contacts
func (h *ClientHandler) AddContact(w http.ResponseWriter, r *http.Request) {
	clientID := r.PathValue("id")
	var client models.Client
	if err := h.DB.First(&client, "id = ?", clientID).Error; err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	var contact models.Contact
	if !decodeJSON(w, r, &contact) {
		return
	}
	if strings.TrimSpace(contact.Name) == "" {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", map[string]string{"name": "required"})
		return
	}
	contact.ID = ids.New("ct-")
	contact.ClientID = clientID
	if err := h.DB.Create(&contact).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_create_contact", nil)
		return
	}
	httpx.JSON(w, http.StatusCreated, contact)
}

// DeleteContact: DELETE /api/contacts/{id}
func (h *ClientHandler) DeleteContact(w http.ResponseWriter, r *http.Request) {
	res := h.DB.Delete(&models.Contact{}, "id = ?", r.PathValue("id"))
	if res.Error != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_delete_contact", nil)
		return
	}
	if res.RowsAffected == 0 {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// pickFields copies the whitelisted keys present in req into an update map.
func pickFields(req map[string]any, keys ...string) map[string]any {
	updates := map[string]any{}
	for _, k := range keys {
		if v, ok := req[k]; ok {
			updates[k] = v
		}
	}
	return updates
}
