package sync

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/nvclab/student-sync/internal/domain/sync"
)

// ApplyConflicts writes the conflict values a reviewer selected back to the
// student table, exactly the named fields and nothing else. Failures are
// collected per student and never abort the batch.
func (o *Orchestrator) ApplyConflicts(ctx context.Context, selected []domain.Conflict) (*domain.ConflictUpdateResult, error) {
	if o.cfg.StudentTable.IsZero() {
		return nil, ErrNotConfigured
	}

	result := &domain.ConflictUpdateResult{Errors: []string{}}

	byStudent := map[string][]domain.Conflict{}
	order := []string{}
	for _, conflict := range selected {
		if _, ok := byStudent[conflict.StudentID]; !ok {
			order = append(order, conflict.StudentID)
		}
		byStudent[conflict.StudentID] = append(byStudent[conflict.StudentID], conflict)
	}

	for _, studentID := range order {
		conflicts := byStudent[studentID]

		record, err := o.client.FindRecord(ctx, o.cfg.StudentTable, o.cfg.StudentIDField, studentID)
		if err != nil {
			result.FailedCount += len(conflicts)
			if errors.Is(err, domain.ErrRecordNotFound) {
				result.Errors = append(result.Errors, fmt.Sprintf("student %s no longer exists", studentID))
			} else {
				result.Errors = append(result.Errors, fmt.Sprintf("student %s: lookup failed: %v", studentID, err))
			}
			continue
		}

		fields := make(map[string]any, len(conflicts))
		for _, conflict := range conflicts {
			fields[conflict.FieldName] = conflict.NewValue
		}

		if err := o.client.UpdateRecord(ctx, o.cfg.StudentTable, record.ID, fields); err != nil {
			result.FailedCount += len(conflicts)
			result.Errors = append(result.Errors, fmt.Sprintf("student %s: update failed: %v", studentID, err))
			continue
		}

		result.UpdatedCount += len(conflicts)

		if stored, ok := o.cache.Get(studentID); ok {
			updated := stored.Clone()
			for k, v := range fields {
				updated.Fields[k] = v
			}
			o.cache.Put(studentID, updated)
		}

		o.logger.Info("applied conflict updates", "student_id", studentID, "fields", len(fields))
	}

	return result, nil
}
