// Package activity records an append-only trail of notable actions.
package activity

import (
	"encoding/json"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/conductorhq/conductor/internal/ids"
	"github.com/conductorhq/conductor/internal/models"
)

// Entry describes one action. Metadata is marshaled to JSON for storage.
type Entry struct {
	ActorID    string
	Action     string
	EntityType string
	EntityID   string
	ProjectID  string
	Metadata   map[string]any
}

// Log writes an activity row. It is strictly best-effort: a failure is
// logged and swallowed so bookkeeping can never fail a business operation.
func Log(db *gorm.DB, log *zap.Logger, e Entry) {
	meta := ""
	if len(e.Metadata) > 0 {
		if b, err := json.Marshal(e.Metadata); err == nil {
			meta = string(b)
		}
	}
	row := models.ActivityLog{
		ID:         ids.New("act-"),
		ActorID:    optional(e.ActorID),
		Action:     e.Action,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		ProjectID:  optional(e.ProjectID),
		Metadata:   meta,
	}
	if err := db.Create(&row).Error; err != nil {
		log.Warn("activity log write failed",
			zap.String("action", e.Action),
			zap.String("entity_id", e.EntityID),
			zap.Error(err))
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
