package handlers

import (
	"net/http"

	"gorm.io/gorm"

	"github.com/conductorhq/conductor/internal/httpx"
	"github.com/conductorhq/conductor/internal/models"
)

// CompanyHandler exposes the key/value company settings.
type CompanyHandler struct {
	DB *gorm.DB
}

func NewCompanyHandler(db *gorm.DB) *CompanyHandler {
	return &CompanyHandler{DB: db}
}

// Get: GET /api/company
func (h *CompanyHandler) Get(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, loadSettings(h.DB))
}

// Put: PUT /api/company — upserts the provided keys, leaves others alone.
func (h *CompanyHandler) Put(w http.ResponseWriter, r *http.Request) {
	var req map[string]string
	if !decodeJSON(w, r, &req) {
		return
	}
	err := h.DB.Transaction(func(tx *gorm.DB) error {
		for k, v := range req {
			setting := models.Setting{Key: k, Value: v}
			if err := tx.Save(&setting).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_update_settings", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, loadSettings(h.DB))
}

// loadSettings returns all company settings as a map; missing table rows
// simply yield an empty map.
func loadSettings(db *gorm.DB) map[string]string {
	var rows []models.Setting
	db.Find(&rows)
	out := make(map[string]string, len(rows))
	for _, s := range rows {
		out[s.Key] = s.Value
	}
	return out
}
