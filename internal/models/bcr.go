package models

import "time"

// BCR statuses.
const (
	StatusSubmitted   = "submitted"
	StatusUnderReview = "under_review"
	StatusApproved    = "approved"
	StatusRejected    = "rejected"
	StatusImplemented = "implemented"
	StatusClosed      = "closed"
	StatusWithdrawn   = "withdrawn"
)

// Statuses lists every BCR status in lifecycle order.
var Statuses = []string{
	StatusSubmitted,
	StatusUnderReview,
	StatusApproved,
	StatusRejected,
	StatusImplemented,
	StatusClosed,
	StatusWithdrawn,
}

// IsTerminalStatus reports whether no further workflow progress is possible.
func IsTerminalStatus(status string) bool {
	switch status {
	case StatusRejected, StatusClosed, StatusWithdrawn:
		return true
	}
	return false
}

// Bcr is a business change request, the primary workflow entity.
type Bcr struct {
	ID                 uint   `gorm:"primaryKey;autoIncrement"`
	BcrNumber          string `gorm:"size:16;not null;uniqueIndex"`
	Title              string `gorm:"size:256;not null"`
	Description        string `gorm:"type:text"`
	Status             string `gorm:"size:16;default:submitted;index"`
	Priority           int    `gorm:"not null"`
	Urgency            string `gorm:"size:64;index"`
	ImpactAreas        string `gorm:"size:512"` // comma-separated config row names
	CurrentPhaseID     uint   `gorm:"index"`
	RequestedBy        string `gorm:"size:128"`
	AssignedTo         string `gorm:"size:128"`
	Notes              string `gorm:"type:text"`
	TargetDate         *time.Time
	AssignedAt         *time.Time
	DecisionAt         *time.Time
	ImplementationDate *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time

	Submission *Submission     `gorm:"foreignKey:BcrID"`
	History    []WorkflowEntry `gorm:"foreignKey:BcrID"`
}

// BcrSequence holds the last issued BCR number for a year.
type BcrSequence struct {
	Year       int `gorm:"primaryKey;autoIncrement:false"`
	LastNumber int `gorm:"not null;default:0"`
}
