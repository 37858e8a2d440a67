package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	domain "github.com/nvclab/student-sync/internal/domain/sync"
	"github.com/nvclab/student-sync/internal/infrastructure/db/models"
)

// SyncPassRepository journals completed passes.
type SyncPassRepository struct {
	db *gorm.DB
}

func NewSyncPassRepository(db *gorm.DB) *SyncPassRepository {
	return &SyncPassRepository{db: db}
}

func (r *SyncPassRepository) RecordPass(ctx context.Context, result *domain.SyncResult) error {
	row := models.SyncPass{
		ID:                 result.PassID,
		TotalRecords:       result.TotalRecords,
		ProcessedRecords:   result.ProcessedRecords,
		NewStudents:        result.NewStudents,
		UpdatedStudents:    result.UpdatedStudents,
		NewLearningRecords: result.NewLearningRecords,
		ErrorCount:         result.ErrorCount(),
		ConflictCount:      result.ConflictCount(),
		DurationSeconds:    result.Duration().Seconds(),
		StartedAt:          result.StartedAt,
		FinishedAt:         result.FinishedAt,
	}

	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("record sync pass: %w", err)
	}
	return nil
}

// Recent returns the latest passes, newest first.
func (r *SyncPassRepository) Recent(ctx context.Context, limit int) ([]models.SyncPass, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []models.SyncPass
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list sync passes: %w", err)
	}
	return rows, nil
}
