package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Submission holds the intake metadata captured by the submission form.
type Submission struct {
	ID             uuid.UUID `gorm:"type:char(36);primaryKey"`
	BcrID          uint      `gorm:"not null;uniqueIndex"`
	SubmitterName  string    `gorm:"size:128;not null"`
	SubmitterEmail string    `gorm:"size:256;not null"`
	Organisation   string    `gorm:"size:128"`
	Title          string    `gorm:"size:256;not null"`
	Description    string    `gorm:"type:text"`
	Urgency        string    `gorm:"size:64"`
	ImpactAreas    string    `gorm:"size:512"`
	Justification  string    `gorm:"type:text"`
	CreatedAt      time.Time
}

// BeforeCreate fills in the primary key.
func (s *Submission) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
