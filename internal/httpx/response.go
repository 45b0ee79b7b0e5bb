// Package httpx has small JSON response helpers shared by all handlers.
package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/conductorhq/conductor/internal/billing"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	var body []byte
	var err error
	if payload != nil {
		body, err = json.Marshal(payload)
		if err != nil {
			// best-effort error response; avoid writing partial JSON
			http.Error(w, `{"error":"encode_error"}`, http.StatusInternalServerError)
			return
		}
	} else {
		body = []byte("null")
	}
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		// nothing we can do at this point
		_ = err
	}
}

func JSONError(w http.ResponseWriter, status int, msg string, details any) {
	JSON(w, status, ErrorResponse{Error: msg, Details: details})
}

// DomainError maps the billing error taxonomy onto HTTP statuses. Anything
// unrecognized is a 500 with a generic body; the handler logs the cause.
func DomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, billing.ErrNotFound):
		JSONError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, billing.ErrPrecondition):
		JSONError(w, http.StatusConflict, "precondition_failed", err.Error())
	case errors.Is(err, billing.ErrOverBilled):
		JSONError(w, http.StatusBadRequest, "over_billed", err.Error())
	default:
		JSONError(w, http.StatusInternalServerError, "internal_error", nil)
	}
}
