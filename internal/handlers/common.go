// Package handlers contains the JSON HTTP handlers, one file per entity.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/conductorhq/conductor/internal/httpx"
)

// decodeJSON decodes the request body into v and writes a 400 on failure.
// Returns false when the caller should stop.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return false
	}
	return true
}
