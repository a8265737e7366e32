// Package store owns the durable usage-record log. The table is write-once,
// read-many: the store exposes appends and ordered scans, nothing else.
package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/orgdesk/modelgate/internal/models"
)

// Store is the append-only usage record log backed by GORM.
type Store struct {
	db *gorm.DB
}

// New constructs a Store.
func New(db *gorm.DB) *Store { return &Store{db: db} }

// Append inserts one usage record. Concurrent appends rely on the underlying
// database's transaction handling; no application-level lock exists.
func (s *Store) Append(ctx context.Context, record *models.UsageRecord) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store: not initialized")
	}
	if record == nil {
		return fmt.Errorf("store: nil record")
	}
	return s.db.WithContext(ctx).Create(record).Error
}

// All returns every usage record ordered by time then id ascending. The
// report aggregator and both exports rely on this ordering.
func (s *Store) All(ctx context.Context) ([]models.UsageRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store: not initialized")
	}
	var records []models.UsageRecord
	if errFind := s.db.WithContext(ctx).
		Order("recorded_at ASC, id ASC").
		Find(&records).Error; errFind != nil {
		return nil, errFind
	}
	return records, nil
}

// Count returns the number of stored usage records.
func (s *Store) Count(ctx context.Context) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("store: not initialized")
	}
	var count int64
	if errCount := s.db.WithContext(ctx).
		Model(&models.UsageRecord{}).
		Count(&count).Error; errCount != nil {
		return 0, errCount
	}
	return count, nil
}

// DB exposes the underlying connection for callers that need raw queries.
func (s *Store) DB() *gorm.DB {
	if s == nil {
		return nil
	}
	return s.db
}
