package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/nvclab/student-sync/internal/config"
	"github.com/nvclab/student-sync/internal/infrastructure/db/models"
)

// MappingMemoryRepository remembers reviewer-confirmed column mappings per
// header layout and suggests them for later uploads with the same shape.
type MappingMemoryRepository struct {
	db *gorm.DB
}

func NewMappingMemoryRepository(db *gorm.DB) *MappingMemoryRepository {
	return &MappingMemoryRepository{db: db}
}

func (r *MappingMemoryRepository) Remember(ctx context.Context, signature string, rules []config.FieldRule) error {
	if len(rules) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("header_signature = ?", signature).
			Delete(&models.MappingChoice{}).Error; err != nil {
			return fmt.Errorf("clear mapping choices: %w", err)
		}

		rows := make([]models.MappingChoice, 0, len(rules))
		for _, rule := range rules {
			rows = append(rows, models.MappingChoice{
				HeaderSignature: signature,
				SourceColumn:    rule.Source,
				DestField:       rule.Dest,
				TargetTable:     rule.Table,
				Coercion:        string(rule.Coerce),
			})
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("save mapping choices: %w", err)
		}
		return nil
	})
}

func (r *MappingMemoryRepository) Suggest(ctx context.Context, signature string) ([]config.FieldRule, error) {
	var rows []models.MappingChoice
	err := r.db.WithContext(ctx).
		Where("header_signature = ?", signature).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load mapping choices: %w", err)
	}

	rules := make([]config.FieldRule, 0, len(rows))
	for _, row := range rows {
		rules = append(rules, config.FieldRule{
			Source: row.SourceColumn,
			Dest:   row.DestField,
			Table:  row.TargetTable,
			Coerce: config.CoercionKind(row.Coercion),
		})
	}
	return rules, nil
}
