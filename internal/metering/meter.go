package metering

import (
	"context"
	"encoding/json"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/orgdesk/modelgate/internal/models"
	"github.com/orgdesk/modelgate/internal/provider"
)

// Appender persists usage records. Satisfied by the usage store.
type Appender interface {
	Append(ctx context.Context, record *models.UsageRecord) error
}

// BuildRecord assembles one usage record from a provider usage payload and a
// raw source descriptor. Pure; shared by the live recorder and the legacy
// flat-file importer.
func BuildRecord(at time.Time, providerName, model string, usage provider.RawUsage, sourceRaw json.RawMessage) models.UsageRecord {
	prompt, completion, total := NormalizeTokens(usage)
	sourceType, sourceLabel := ResolveSource(sourceRaw)

	var rawColumn datatypes.JSON
	if len(sourceRaw) > 0 {
		rawColumn = datatypes.JSON(sourceRaw)
	} else {
		rawColumn = datatypes.JSON([]byte("null"))
	}

	return models.UsageRecord{
		RecordedAt:       at.UTC(),
		Provider:         providerName,
		Model:            model,
		SourceType:       sourceType,
		SourceLabel:      sourceLabel,
		SourceRaw:        rawColumn,
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      total,
	}
}

// Recorder appends usage records after successful upstream calls. Metering is
// a side channel: append failures are logged and swallowed so they never fail
// the chat response.
type Recorder struct {
	store Appender
}

// NewRecorder constructs a Recorder over an append-only store.
func NewRecorder(store Appender) *Recorder { return &Recorder{store: store} }

// Record meters one successful call. Best-effort.
func (r *Recorder) Record(ctx context.Context, providerName, model string, usage provider.RawUsage, sourceRaw json.RawMessage) {
	if r == nil || r.store == nil {
		return
	}

	record := BuildRecord(time.Now(), providerName, model, usage, sourceRaw)

	dbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if errAppend := r.store.Append(dbCtx, &record); errAppend != nil {
		log.WithError(errAppend).
			WithFields(log.Fields{"provider": providerName, "model": model}).
			Error("persist usage record failed")
	}
}
