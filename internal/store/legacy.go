package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/orgdesk/modelgate/internal/metering"
	"github.com/orgdesk/modelgate/internal/models"
	"github.com/orgdesk/modelgate/internal/provider"
)

// Import guard modes. The row-count gate matches the historical behavior; the
// marker gate persists a completion row and survives concurrent process
// startup.
const (
	GuardRowCount = "rowcount"
	GuardMarker   = "marker"
)

// legacyImportMarkerKey is the settings row written once the import ran.
const legacyImportMarkerKey = "legacy_usage_imported"

// legacyFile is the shape of the old flat-file usage log.
type legacyFile struct {
	Records []legacyRecord `json:"records"`
}

type legacyRecord struct {
	Time     string            `json:"time"`
	Provider string            `json:"provider"`
	Model    string            `json:"model"`
	Usage    provider.RawUsage `json:"usage"`
	Source   json.RawMessage   `json:"source"`
}

// ImportLegacyFile migrates the flat-file usage log into the store once. Each
// entry runs through the same normalization and source resolution as live
// metering, is inserted in file order, and the whole batch is one
// transaction. Returns the number of imported rows.
func (s *Store) ImportLegacyFile(ctx context.Context, path, guard string) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("store: not initialized")
	}
	if strings.TrimSpace(path) == "" {
		return 0, nil
	}

	switch guard {
	case "", GuardRowCount:
		count, errCount := s.Count(ctx)
		if errCount != nil {
			return 0, errCount
		}
		if count > 0 {
			return 0, nil
		}
		return s.importFile(ctx, path)
	case GuardMarker:
		// The marker is written only once the file is actually present.
		// A log that appears after an empty first boot still imports,
		// matching the row-count guard.
		if _, errStat := os.Stat(path); errStat != nil {
			if os.IsNotExist(errStat) {
				return 0, nil
			}
			return 0, fmt.Errorf("store: stat legacy log: %w", errStat)
		}
		imported := 0
		errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			marker := models.Setting{Key: legacyImportMarkerKey, Value: json.RawMessage(`true`)}
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&marker)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return nil
			}
			var errImport error
			imported, errImport = s.importRecordsTx(tx, path)
			return errImport
		})
		return imported, errTx
	default:
		return 0, fmt.Errorf("store: unknown import guard %q", guard)
	}
}

// importFile runs the import in its own transaction (row-count guard path).
func (s *Store) importFile(ctx context.Context, path string) (int, error) {
	imported := 0
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var errImport error
		imported, errImport = s.importRecordsTx(tx, path)
		return errImport
	})
	return imported, errTx
}

// importRecordsTx reads the legacy file and inserts its rows inside tx.
// A missing file is not an error: there is simply nothing to migrate.
func (s *Store) importRecordsTx(tx *gorm.DB, path string) (int, error) {
	raw, errRead := os.ReadFile(path)
	if errRead != nil {
		if os.IsNotExist(errRead) {
			return 0, nil
		}
		return 0, fmt.Errorf("store: read legacy log: %w", errRead)
	}

	var parsed legacyFile
	if errUnmarshal := json.Unmarshal(raw, &parsed); errUnmarshal != nil {
		return 0, fmt.Errorf("store: parse legacy log: %w", errUnmarshal)
	}
	if len(parsed.Records) == 0 {
		return 0, nil
	}

	for _, entry := range parsed.Records {
		record := metering.BuildRecord(
			legacyTime(entry.Time),
			valueOrUnknown(entry.Provider),
			valueOrUnknown(entry.Model),
			entry.Usage,
			entry.Source,
		)
		if errCreate := tx.Create(&record).Error; errCreate != nil {
			return 0, errCreate
		}
	}

	log.WithField("count", len(parsed.Records)).Info("imported legacy usage log")
	return len(parsed.Records), nil
}

func legacyTime(value string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if parsed, errParse := time.Parse(layout, strings.TrimSpace(value)); errParse == nil {
			return parsed
		}
	}
	return time.Now().UTC()
}

func valueOrUnknown(value string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return "unknown"
}
