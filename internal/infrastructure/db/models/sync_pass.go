package models

import "time"

// SyncPass journals one completed synchronization pass.
type SyncPass struct {
	ID                 string `gorm:"size:36;primaryKey"`
	TotalRecords       int    `gorm:"not null;default:0"`
	ProcessedRecords   int    `gorm:"not null;default:0"`
	NewStudents        int    `gorm:"not null;default:0"`
	UpdatedStudents    int    `gorm:"not null;default:0"`
	NewLearningRecords int    `gorm:"not null;default:0"`
	ErrorCount         int    `gorm:"not null;default:0"`
	ConflictCount      int    `gorm:"not null;default:0"`
	DurationSeconds    float64
	StartedAt          time.Time
	FinishedAt         time.Time
	CreatedAt          time.Time
}

func (SyncPass) TableName() string {
	return "sync_passes"
}
