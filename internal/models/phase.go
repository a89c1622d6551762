package models

import "time"

// Phase is a named stage in the BCR lifecycle. Each phase carries the label
// of its in-progress status and of its completed status.
type Phase struct {
	ID               uint   `gorm:"primaryKey;autoIncrement"`
	Name             string `gorm:"size:64;not null;uniqueIndex"`
	DisplayOrder     int    `gorm:"not null;index"`
	InProgressStatus string `gorm:"size:128;not null"`
	CompletedStatus  string `gorm:"size:128;not null"`
	DecisionPoint    bool   `gorm:"default:false"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
