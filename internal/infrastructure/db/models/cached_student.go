package models

import "time"

// CachedStudent is one remote student-table row mirrored locally so a sync
// pass can dedup without re-fetching the whole table.
type CachedStudent struct {
	StudentID string `gorm:"primaryKey;size:64"`
	RecordID  string `gorm:"size:64;not null"`
	Fields    string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

func (CachedStudent) TableName() string {
	return "cached_students"
}
