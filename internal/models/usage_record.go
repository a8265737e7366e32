package models

import (
	"time"

	"gorm.io/datatypes"
)

// Source types attached to usage records for cost attribution.
const (
	SourceTypeEmployee        = "employee"
	SourceTypeDepartment      = "department"
	SourceTypeProject         = "project"
	SourceTypeAssistant       = "assistant"
	SourceTypeGlobalAssistant = "global-assistant"
	SourceTypeRaw             = "raw"
	SourceTypeUnknown         = "unknown"
)

// UsageRecord stores metering data for a single successful model call.
// Rows are append-only: nothing in the codebase updates or deletes them.
type UsageRecord struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"` // Primary key.

	RecordedAt time.Time `gorm:"not null;index" json:"time"` // Call completion timestamp.

	Provider string `gorm:"type:text;not null;index:idx_usage_provider_model,priority:1" json:"provider"` // Provider name.
	Model    string `gorm:"type:text;not null;index:idx_usage_provider_model,priority:2" json:"model"`    // Model name.

	SourceType  string         `gorm:"type:text;index:idx_usage_source,priority:1" json:"sourceType"`  // Attribution source type.
	SourceLabel string         `gorm:"type:text;index:idx_usage_source,priority:2" json:"sourceLabel"` // Resolved source label.
	SourceRaw   datatypes.JSON `gorm:"type:jsonb" json:"sourceRaw"`                                    // Caller-supplied descriptor, verbatim.

	PromptTokens     int64 `gorm:"not null;default:0" json:"promptTokens"`     // Prompt token count.
	CompletionTokens int64 `gorm:"not null;default:0" json:"completionTokens"` // Completion token count.
	TotalTokens      int64 `gorm:"not null;default:0" json:"totalTokens"`      // Total token count.

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"-"` // Row creation timestamp.
}

// TableName pins the table name shared with the legacy flat-file importer.
func (UsageRecord) TableName() string { return "usage_records" }
