package sync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nvclab/student-sync/internal/config"
	domain "github.com/nvclab/student-sync/internal/domain/sync"
)

const defaultCourseName = "基础信息导入"

// Service is the contract the presentation layer drives.
type Service interface {
	Run(ctx context.Context, rows []domain.CsvRow, courseName, learningDate string) (*domain.SyncResult, error)
	ApplyConflicts(ctx context.Context, selected []domain.Conflict) (*domain.ConflictUpdateResult, error)
	Running() bool
}

// studentCache is the pass-local view of the remote student table. Load warms
// it once; Get/Put never touch the remote store.
type studentCache interface {
	Load(ctx context.Context) error
	Get(studentID string) (*domain.Record, bool)
	Put(studentID string, rec domain.Record)
	Flush(ctx context.Context) error
}

// passJournal records completed passes for later inspection.
type passJournal interface {
	RecordPass(ctx context.Context, result *domain.SyncResult) error
}

// Orchestrator drives a full synchronization pass over the parsed CSV rows:
// mapping, dedup and conflict detection against the student cache, and the
// batched writes to both remote tables.
type Orchestrator struct {
	client  domain.TableClient
	cache   studentCache
	journal passJournal
	mapper  *FieldMapper
	cfg     *config.Config
	logger  *slog.Logger

	running atomic.Bool

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

func NewOrchestrator(client domain.TableClient, cache studentCache, journal passJournal, mapper *FieldMapper, cfg *config.Config, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		client:  client,
		cache:   cache,
		journal: journal,
		mapper:  mapper,
		cfg:     cfg,
		logger:  logger,
		locks:   map[string]*sync.Mutex{},
	}
}

func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

// rowOutcome is the terminal state of one row; outcomes are merged into the
// SyncResult in row order after the pass completes.
type rowOutcome struct {
	errMsg            string
	warnings          []string
	conflicts         []domain.Conflict
	newStudent        bool
	updatedStudent    bool
	newLearningRecord bool
}

// Run executes one synchronization pass. Row-scoped failures are collected
// into the result and never abort the remaining rows; only a concurrent
// invocation, missing table configuration, or a failed cache warm refuse the
// pass outright.
func (o *Orchestrator) Run(ctx context.Context, rows []domain.CsvRow, courseName, learningDate string) (*domain.SyncResult, error) {
	if o.cfg.StudentTable.IsZero() || o.cfg.LearningTable.IsZero() {
		return nil, ErrNotConfigured
	}
	if !o.running.CompareAndSwap(false, true) {
		return nil, ErrSyncInProgress
	}
	defer o.running.Store(false)

	if courseName == "" {
		courseName = defaultCourseName
	}
	if learningDate == "" {
		learningDate = time.Now().Format("2006-01-02")
	}
	dateMillis, err := DateMillis(learningDate)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	result := domain.NewSyncResult(uuid.NewString())
	result.TotalRecords = len(rows)

	o.logger.Info("sync pass started",
		"pass_id", result.PassID,
		"rows", len(rows),
		"course", courseName,
		"learning_date", learningDate)

	// One covering fetch for the whole pass. Without a loaded cache every
	// NEW decision would be a guess, so a failed warm refuses the pass
	// instead of mass-creating duplicate students.
	if err := o.cache.Load(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLookup, err)
	}

	outcomes := make([]rowOutcome, len(rows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Concurrency)
	for i, row := range rows {
		g.Go(func() error {
			outcomes[i] = o.processRow(gctx, row, courseName, dateMillis)
			return nil
		})
	}
	// Workers only report through their outcome slot.
	_ = g.Wait()

	for _, outcome := range outcomes {
		if outcome.errMsg != "" {
			result.Errors = append(result.Errors, outcome.errMsg)
		} else {
			result.ProcessedRecords++
		}
		result.Warnings = append(result.Warnings, outcome.warnings...)
		result.Conflicts = append(result.Conflicts, outcome.conflicts...)
		if outcome.newStudent {
			result.NewStudents++
		}
		if outcome.updatedStudent {
			result.UpdatedStudents++
		}
		if outcome.newLearningRecord {
			result.NewLearningRecords++
		}
	}
	result.Finish()

	if err := o.cache.Flush(ctx); err != nil {
		o.logger.Warn("persisting student cache failed", "error", err)
	}
	if o.journal != nil {
		if err := o.journal.RecordPass(ctx, result); err != nil {
			o.logger.Warn("recording sync pass failed", "pass_id", result.PassID, "error", err)
		}
	}

	o.logger.Info("sync pass finished",
		"pass_id", result.PassID,
		"processed", result.ProcessedRecords,
		"errors", result.ErrorCount(),
		"new_students", result.NewStudents,
		"new_learning_records", result.NewLearningRecords,
		"conflicts", result.ConflictCount(),
		"duration", result.Duration())

	return result, nil
}

func (o *Orchestrator) processRow(ctx context.Context, row domain.CsvRow, courseName string, dateMillis int64) rowOutcome {
	var outcome rowOutcome

	mapped, err := o.mapper.MapRow(row)
	if err != nil {
		outcome.errMsg = err.Error()
		return outcome
	}
	outcome.warnings = mapped.Warnings

	studentRecordID, err := o.syncStudent(ctx, mapped, &outcome)
	if err != nil {
		outcome.errMsg = fmt.Sprintf("student %s: %v", mapped.StudentID, err)
		return outcome
	}

	fields := make(map[string]any, len(mapped.LearningFields)+4)
	for k, v := range mapped.LearningFields {
		fields[k] = v
	}
	fields[o.cfg.StudentIDField] = mapped.StudentID
	fields[o.cfg.NicknameField] = mapped.Nickname
	// Course and learning date are supplied once for the whole pass and win
	// over any per-row values.
	fields[o.cfg.CourseField] = courseName
	fields[o.cfg.DateField] = dateMillis

	learningRecordID, err := o.client.CreateRecord(ctx, o.cfg.LearningTable, fields)
	if err != nil {
		outcome.errMsg = fmt.Sprintf("student %s: create learning record: %v", mapped.StudentID, err)
		return outcome
	}
	outcome.newLearningRecord = true

	if err := o.client.CreateLink(ctx, o.cfg.LearningTable, learningRecordID, o.cfg.StudentTable, studentRecordID, o.cfg.LinkField); err != nil {
		// The learning record stays behind unlinked; flag it for manual
		// follow-up instead of rolling it back.
		o.logger.Warn("orphaned learning record, link failed",
			"student_id", mapped.StudentID,
			"learning_record_id", learningRecordID,
			"error", err)
		outcome.errMsg = fmt.Sprintf("student %s: link learning record %s: %v", mapped.StudentID, learningRecordID, err)
		return outcome
	}

	return outcome
}

// syncStudent performs the read-decide-write sequence on the student cache
// under the per-student lock, so a later row with the same student id always
// observes the record created here.
func (o *Orchestrator) syncStudent(ctx context.Context, mapped MappedRow, outcome *rowOutcome) (string, error) {
	lock := o.lockFor(mapped.StudentID)
	lock.Lock()
	defer lock.Unlock()

	stored, _ := o.cache.Get(mapped.StudentID)
	decision := Resolve(mapped, stored)

	if decision.Kind == domain.DecisionNew {
		recordID, err := o.client.CreateRecord(ctx, o.cfg.StudentTable, mapped.StudentFields)
		if err != nil {
			return "", fmt.Errorf("create: %w", err)
		}
		o.cache.Put(mapped.StudentID, domain.Record{ID: recordID, Fields: mapped.StudentFields})
		outcome.newStudent = true
		return recordID, nil
	}

	outcome.conflicts = decision.Conflicts

	if len(decision.Additions) > 0 {
		if err := o.client.UpdateRecord(ctx, o.cfg.StudentTable, decision.RecordID, decision.Additions); err != nil {
			// The row can still get its learning record; surface the
			// failed fill-in as a warning only.
			outcome.warnings = append(outcome.warnings,
				fmt.Sprintf("student %s: updating fields failed: %v", mapped.StudentID, err))
		} else {
			updated := stored.Clone()
			for k, v := range decision.Additions {
				updated.Fields[k] = v
			}
			o.cache.Put(mapped.StudentID, updated)
			outcome.updatedStudent = true
		}
	}

	return decision.RecordID, nil
}

func (o *Orchestrator) lockFor(studentID string) *sync.Mutex {
	o.lockMu.Lock()
	defer o.lockMu.Unlock()
	lock, ok := o.locks[studentID]
	if !ok {
		lock = &sync.Mutex{}
		o.locks[studentID] = lock
	}
	return lock
}
