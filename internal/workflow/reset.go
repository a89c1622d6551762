package workflow

import (
	"fmt"

	"github.com/zulandar/changeboard/internal/models"
	"gorm.io/gorm"
)

// ResetLowerPhases reopens every phase that comes after target: history
// entries of the BCR belonging to phases with a greater display order are
// marked incomplete, and an audit entry is appended. Entries of target and
// earlier phases are left alone. It returns the audit entry.
func ResetLowerPhases(tx *gorm.DB, bcrID uint, target models.Phase, phases []models.Phase, actor string) (*models.WorkflowEntry, error) {
	var later []uint
	for _, p := range phases {
		if p.DisplayOrder > target.DisplayOrder {
			later = append(later, p.ID)
		}
	}

	if len(later) > 0 {
		if err := tx.Model(&models.WorkflowEntry{}).
			Where("bcr_id = ? AND phase_id IN ? AND completed = ?", bcrID, later, true).
			Update("completed", false).Error; err != nil {
			return nil, fmt.Errorf("workflow: reset phases after %q: %w", target.Name, err)
		}
	}

	audit := models.WorkflowEntry{
		BcrID:   bcrID,
		PhaseID: target.ID,
		Action:  models.ActionReset,
		Status:  target.InProgressStatus,
		Actor:   actor,
		Comment: "Phases Reset",
	}
	if err := tx.Create(&audit).Error; err != nil {
		return nil, fmt.Errorf("workflow: record reset: %w", err)
	}
	return &audit, nil
}

// reopenPhase marks the BCR's completed entries of one phase incomplete so a
// cleared decision can be taken again.
func reopenPhase(tx *gorm.DB, bcrID uint, p models.Phase) error {
	if err := tx.Model(&models.WorkflowEntry{}).
		Where("bcr_id = ? AND phase_id = ? AND completed = ?", bcrID, p.ID, true).
		Update("completed", false).Error; err != nil {
		return fmt.Errorf("workflow: reopen %q: %w", p.Name, err)
	}
	return nil
}
