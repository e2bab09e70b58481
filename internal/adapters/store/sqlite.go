// Package store persists per-asset sync state in a local sqlite database.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/miltos211/iCloudImmichCleanSync/internal/core/domain"
	"github.com/miltos211/iCloudImmichCleanSync/pkg/logger"
)

// syncMeta is a small key/value table for informational run metadata
// (started_at, totals). Mirrors the original state db layout.
type syncMeta struct {
	Key   string `gorm:"primaryKey"`
	Value string
}

func (syncMeta) TableName() string {
	return "sync_meta"
}

// SQLiteStore implements ports.AssetStore on a local sqlite file
type SQLiteStore struct {
	db  *gorm.DB
	log *logger.Logger
}

// Open opens (or creates) the state database at path and migrates the
// schema
func Open(log *logger.Logger, path string) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	if err := db.AutoMigrate(&domain.AssetRecord{}, &syncMeta{}); err != nil {
		return nil, fmt.Errorf("failed to migrate state database: %w", err)
	}

	return &SQLiteStore{db: db, log: log.With("adapter", "store")}, nil
}

// Close releases the underlying connection
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ReplaceAll swaps the whole catalog in one transaction. If the insert
// fails the delete rolls back with it, so a crash can never leave an
// empty catalog that looks like "nothing to sync".
func (s *SQLiteStore) ReplaceAll(ctx context.Context, records []domain.AssetRecord) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&domain.AssetRecord{}).Error; err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		return tx.CreateInBatches(records, 500).Error
	})
}

// Eligible returns pending or retryable-failed records in creation-date
// order
func (s *SQLiteStore) Eligible(ctx context.Context, maxRetries int) ([]domain.AssetRecord, error) {
	var records []domain.AssetRecord
	err := s.db.WithContext(ctx).
		Where("status = ? OR (status = ? AND retry_count < ?)", domain.StatusPending, domain.StatusFailed, maxRetries).
		Order("creation_date ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to select eligible records: %w", err)
	}
	return records, nil
}

// MarkExisting flips ids to completed with the dedup sentinel remote id
func (s *SQLiteStore) MarkExisting(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).
		Model(&domain.AssetRecord{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{
			"status":       domain.StatusCompleted,
			"remote_id":    domain.RemoteIDExisting,
			"processed_at": at,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to mark existing: %w", err)
	}
	return nil
}

// MarkCompleted records a successful upload
func (s *SQLiteStore) MarkCompleted(ctx context.Context, id string, remoteID string, fileSize int64, uploadDuration float64, at time.Time) error {
	err := s.db.WithContext(ctx).
		Model(&domain.AssetRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":          domain.StatusCompleted,
			"remote_id":       remoteID,
			"file_size":       fileSize,
			"upload_duration": uploadDuration,
			"processed_at":    at,
			"error_message":   "",
		}).Error
	if err != nil {
		return fmt.Errorf("failed to mark completed: %w", err)
	}
	return nil
}

// MarkFailed records a failed attempt and bumps the retry count
func (s *SQLiteStore) MarkFailed(ctx context.Context, id string, message string) error {
	err := s.db.WithContext(ctx).
		Model(&domain.AssetRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        domain.StatusFailed,
			"error_message": message,
			"retry_count":   gorm.Expr("retry_count + 1"),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to mark failed: %w", err)
	}
	return nil
}

// ResetFailed returns failed records to pending and zeroes their retry
// counts
func (s *SQLiteStore) ResetFailed(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&domain.AssetRecord{}).
		Where("status = ?", domain.StatusFailed).
		Updates(map[string]interface{}{
			"status":        domain.StatusPending,
			"retry_count":   0,
			"error_message": "",
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to reset failed records: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Failed returns failed records in creation-date order
func (s *SQLiteStore) Failed(ctx context.Context) ([]domain.AssetRecord, error) {
	var records []domain.AssetRecord
	err := s.db.WithContext(ctx).
		Where("status = ?", domain.StatusFailed).
		Order("creation_date ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to select failed records: %w", err)
	}
	return records, nil
}

// Stats counts records per status
func (s *SQLiteStore) Stats(ctx context.Context) (domain.SyncStats, error) {
	var stats domain.SyncStats

	type statusCount struct {
		Status domain.SyncStatus
		Count  int64
	}
	var counts []statusCount
	err := s.db.WithContext(ctx).
		Model(&domain.AssetRecord{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&counts).Error
	if err != nil {
		return stats, fmt.Errorf("failed to count records: %w", err)
	}

	for _, c := range counts {
		stats.Total += c.Count
		switch c.Status {
		case domain.StatusPending:
			stats.Pending = c.Count
		case domain.StatusCompleted:
			stats.Completed = c.Count
		case domain.StatusFailed:
			stats.Failed = c.Count
		}
	}
	return stats, nil
}

// SetMeta upserts an informational metadata value
func (s *SQLiteStore) SetMeta(ctx context.Context, key, value string) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&syncMeta{Key: key, Value: value}).Error
	if err != nil {
		return fmt.Errorf("failed to set metadata %q: %w", key, err)
	}
	return nil
}

// GetMeta reads a metadata value; missing keys yield ""
func (s *SQLiteStore) GetMeta(ctx context.Context, key string) (string, error) {
	var meta syncMeta
	err := s.db.WithContext(ctx).
		Where("key = ?", key).
		First(&meta).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get metadata %q: %w", key, err)
	}
	return meta.Value, nil
}

// Wipe drops every asset record and all metadata. Used by sync --reset.
func (s *SQLiteStore) Wipe(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&domain.AssetRecord{}).Error; err != nil {
			return err
		}
		return tx.Where("1 = 1").Delete(&syncMeta{}).Error
	})
}
