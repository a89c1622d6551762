package models

import "time"

// Workflow entry actions.
const (
	ActionSubmit        = "submit"
	ActionTransition    = "transition"
	ActionCompletePhase = "complete_phase"
	ActionDecision      = "decision"
	ActionComment       = "comment"
	ActionAssign        = "assign"
	ActionImplement     = "implement"
	ActionWithdraw      = "withdraw"
	ActionReset         = "reset"
	ActionImport        = "import"
)

// WorkflowEntry is one event in a BCR's workflow history.
type WorkflowEntry struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	BcrID     uint   `gorm:"not null;index"`
	PhaseID   uint   `gorm:"index"`
	Action    string `gorm:"size:32;not null"`
	Status    string `gorm:"size:128"`
	Completed bool   `gorm:"default:false"`
	Actor     string `gorm:"size:128"`
	Comment   string `gorm:"type:text"`
	CreatedAt time.Time
}
