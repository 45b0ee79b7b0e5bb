package models

import "time"

// ActivityLog rows are append-only and written best-effort.
type ActivityLog struct {
	ID         string  `gorm:"primaryKey;size:40" json:"id"`
	ActorID    *string `gorm:"size:40" json:"actor_id,omitempty"`
	Action     string  `gorm:"not null" json:"action"`
	EntityType string  `gorm:"not null;index" json:"entity_type"`
	EntityID   string  `gorm:"not null;index" json:"entity_id"`
	ProjectID  *string `gorm:"size:40;index" json:"project_id,omitempty"`
	Metadata   string  `json:"metadata,omitempty"` // JSON blob

	CreatedAt time.Time `json:"created_at"`
}
