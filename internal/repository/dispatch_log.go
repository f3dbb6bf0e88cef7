package repository

import (
	"context"
	"errors"
	"time"

	"github.com/dionfirmansyah/yonsense/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormDispatchLog stores dispatch summaries next to the subscriptions.
type GormDispatchLog struct {
	db *gorm.DB
}

// NewGormDispatchLog migrates the schema and returns the log.
func NewGormDispatchLog(db *gorm.DB) (*GormDispatchLog, error) {
	if err := db.AutoMigrate(&models.DispatchRecord{}); err != nil {
		return nil, err
	}
	return &GormDispatchLog{db: db}, nil
}

// Save inserts or replaces the record for rec.RequestID.
func (l *GormDispatchLog) Save(ctx context.Context, rec *models.DispatchRecord) error {
	now := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	return l.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "request_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"mode", "status", "total", "successful", "failed", "pruned", "message", "updated_at"}),
	}).Create(rec).Error
}

// Get retrieves the record for a request id.
func (l *GormDispatchLog) Get(ctx context.Context, requestID string) (*models.DispatchRecord, error) {
	var rec models.DispatchRecord
	err := l.db.WithContext(ctx).First(&rec, "request_id = ?", requestID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDispatchNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
