package model

import "time"

// Migration is a named data migration that already ran against this database
type Migration struct {
	ID   int    `gorm:"primaryKey"`
	Name string `gorm:"uniqueIndex;not null;size:128"`
	// Rows touched by the migration
	Affected   int64
	DurationMs int64
	AppliedAt  time.Time `gorm:"autoCreateTime"`
}
