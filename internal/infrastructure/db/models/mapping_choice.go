package models

import "time"

// MappingChoice is a reviewer-confirmed column mapping, remembered per CSV
// header layout so the next upload with the same shape gets it suggested.
type MappingChoice struct {
	ID              int64  `gorm:"primaryKey"`
	HeaderSignature string `gorm:"size:1024;index;not null"`
	SourceColumn    string `gorm:"size:255;not null"`
	DestField       string `gorm:"size:255;not null"`
	TargetTable     string `gorm:"size:16;not null"`
	Coercion        string `gorm:"size:16;not null"`
	UpdatedAt       time.Time
}

func (MappingChoice) TableName() string {
	return "mapping_choices"
}
