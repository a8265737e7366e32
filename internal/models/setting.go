package models

import (
	"encoding/json"
	"time"
)

// Setting is a durable key/value flag. The only writer today is the legacy
// usage import, which records its completion marker here so the migration
// runs at most once across process restarts.
type Setting struct {
	Key       string          `gorm:"type:varchar(255);primaryKey"` // Flag name.
	Value     json.RawMessage `gorm:"type:jsonb"`                   // Flag payload, JSON-encoded.
	UpdatedAt time.Time       `gorm:"not null;autoUpdateTime;default:CURRENT_TIMESTAMP"`
}
