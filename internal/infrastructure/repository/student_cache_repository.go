package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "github.com/nvclab/student-sync/internal/domain/sync"
	"github.com/nvclab/student-sync/internal/infrastructure/db/models"
)

// StudentCacheRepository keeps an in-memory mirror of the remote student
// table, warmed at most once per process: first from the local database,
// falling back to one full remote scan. Writes during a pass go to memory
// and are persisted by Flush.
type StudentCacheRepository struct {
	db      *gorm.DB
	client  domain.TableClient
	table   domain.TableRef
	idField string
	logger  *slog.Logger

	mu      sync.RWMutex
	records map[string]domain.Record
	dirty   map[string]struct{}
	loaded  bool
}

func NewStudentCacheRepository(db *gorm.DB, client domain.TableClient, table domain.TableRef, idField string, logger *slog.Logger) *StudentCacheRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &StudentCacheRepository{
		db:      db,
		client:  client,
		table:   table,
		idField: idField,
		logger:  logger,
		records: map[string]domain.Record{},
		dirty:   map[string]struct{}{},
	}
}

func (r *StudentCacheRepository) Load(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.loaded {
		return nil
	}

	count, err := r.loadFromDB(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		r.loaded = true
		r.logger.Info("student cache loaded from local store", "students", count)
		return nil
	}

	if err := r.warmFromRemote(ctx); err != nil {
		return err
	}
	r.loaded = true
	return nil
}

func (r *StudentCacheRepository) loadFromDB(ctx context.Context) (int, error) {
	var rows []models.CachedStudent
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return 0, fmt.Errorf("load cached students: %w", err)
	}

	for _, row := range rows {
		var fields map[string]any
		if err := json.Unmarshal([]byte(row.Fields), &fields); err != nil {
			r.logger.Warn("dropping unreadable cache row", "student_id", row.StudentID, "error", err)
			continue
		}
		r.records[row.StudentID] = domain.Record{ID: row.RecordID, Fields: fields}
	}
	return len(r.records), nil
}

func (r *StudentCacheRepository) warmFromRemote(ctx context.Context) error {
	records, err := r.client.ListRecords(ctx, r.table)
	if err != nil {
		return fmt.Errorf("warm student cache: %w", err)
	}

	for _, record := range records {
		studentID := record.FieldString(r.idField)
		if studentID == "" {
			continue
		}
		r.records[studentID] = record
		r.dirty[studentID] = struct{}{}
	}

	r.logger.Info("student cache warmed from remote table", "students", len(r.records))
	return nil
}

func (r *StudentCacheRepository) Get(studentID string) (*domain.Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.records[studentID]
	if !ok {
		return nil, false
	}
	cloned := record.Clone()
	return &cloned, true
}

func (r *StudentCacheRepository) Put(studentID string, record domain.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[studentID] = record.Clone()
	r.dirty[studentID] = struct{}{}
}

// Flush upserts every record changed since the previous flush.
func (r *StudentCacheRepository) Flush(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.dirty) == 0 {
		return nil
	}

	rows := make([]models.CachedStudent, 0, len(r.dirty))
	for studentID := range r.dirty {
		record := r.records[studentID]
		fields, err := json.Marshal(record.Fields)
		if err != nil {
			return fmt.Errorf("encode cache row %s: %w", studentID, err)
		}
		rows = append(rows, models.CachedStudent{
			StudentID: studentID,
			RecordID:  record.ID,
			Fields:    string(fields),
		})
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&rows).Error
	if err != nil {
		return fmt.Errorf("persist student cache: %w", err)
	}

	r.dirty = map[string]struct{}{}
	return nil
}
