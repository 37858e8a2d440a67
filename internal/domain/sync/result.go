package sync

import "time"

// SyncResult aggregates the outcome of one synchronization pass. It is
// created when the pass starts and is immutable once the pass finishes.
type SyncResult struct {
	PassID             string     `json:"pass_id"`
	TotalRecords       int        `json:"total_records"`
	ProcessedRecords   int        `json:"processed_records"`
	NewStudents        int        `json:"new_students"`
	UpdatedStudents    int        `json:"updated_students"`
	NewLearningRecords int        `json:"new_learning_records"`
	Errors             []string   `json:"errors"`
	Warnings           []string   `json:"warnings"`
	Conflicts          []Conflict `json:"conflicts"`
	StartedAt          time.Time  `json:"started_at"`
	FinishedAt         time.Time  `json:"finished_at"`
}

func NewSyncResult(passID string) *SyncResult {
	return &SyncResult{
		PassID:    passID,
		Errors:    []string{},
		Warnings:  []string{},
		Conflicts: []Conflict{},
		StartedAt: time.Now(),
	}
}

func (r *SyncResult) Finish() {
	r.FinishedAt = time.Now()
}

func (r *SyncResult) ErrorCount() int {
	return len(r.Errors)
}

func (r *SyncResult) ConflictCount() int {
	return len(r.Conflicts)
}

// SuccessRate is processed/total, zero for an empty pass.
func (r *SyncResult) SuccessRate() float64 {
	if r.TotalRecords == 0 {
		return 0
	}
	return float64(r.ProcessedRecords) / float64(r.TotalRecords)
}

func (r *SyncResult) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// ConflictUpdateResult is the outcome of a follow-up conflict application
// pass. Failures are per conflict, never fatal to the batch.
type ConflictUpdateResult struct {
	UpdatedCount int      `json:"updated_count"`
	FailedCount  int      `json:"failed_count"`
	Errors       []string `json:"errors"`
}
