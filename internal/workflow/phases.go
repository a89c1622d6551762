// Package workflow implements BCR phase and status progression.
package workflow

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zulandar/changeboard/internal/models"
	"gorm.io/gorm"
)

// UnknownPhase is shown when a phase id has no matching row.
const UnknownPhase = "Unknown Phase"

// Per-BCR phase states in the workflow diagram.
const (
	StatePending    = "pending"
	StateInProgress = "in_progress"
	StateCompleted  = "completed"
)

// ErrPhaseNotFound is returned when a phase id has no matching row.
var ErrPhaseNotFound = errors.New("workflow: phase not found")

// Statuses holds the two status labels of a phase.
type Statuses struct {
	InProgress string
	Completed  string
}

// PhaseView is one node of the workflow diagram.
type PhaseView struct {
	Phase    models.Phase
	Statuses Statuses
	State    string
	Current  bool
}

// AllPhases returns all phases ordered by display order.
func AllPhases(db *gorm.DB) ([]models.Phase, error) {
	var phases []models.Phase
	if err := db.Order("display_order ASC, id ASC").Find(&phases).Error; err != nil {
		return nil, fmt.Errorf("workflow: list phases: %w", err)
	}
	return phases, nil
}

// StatusesForPhase returns the status labels of one phase.
func StatusesForPhase(db *gorm.DB, phaseID uint) (Statuses, error) {
	var p models.Phase
	if err := db.First(&p, phaseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Statuses{}, fmt.Errorf("%w: %d", ErrPhaseNotFound, phaseID)
		}
		return Statuses{}, fmt.Errorf("workflow: get phase %d: %w", phaseID, err)
	}
	return Statuses{InProgress: p.InProgressStatus, Completed: p.CompletedStatus}, nil
}

// PhaseIDForStatus finds the phase owning a status label, matching either
// the in-progress or completed variant case-insensitively. ok is false when
// no phase owns it.
func PhaseIDForStatus(db *gorm.DB, status string) (id uint, ok bool, err error) {
	phases, err := AllPhases(db)
	if err != nil {
		return 0, false, err
	}
	p, ok := PhaseForStatus(phases, status)
	if !ok {
		return 0, false, nil
	}
	return p.ID, true, nil
}

// PhaseForStatus finds the phase owning a status label among phases.
func PhaseForStatus(phases []models.Phase, status string) (models.Phase, bool) {
	status = strings.TrimSpace(status)
	if status == "" {
		return models.Phase{}, false
	}
	for _, p := range phases {
		if strings.EqualFold(p.InProgressStatus, status) || strings.EqualFold(p.CompletedStatus, status) {
			return p, true
		}
	}
	return models.Phase{}, false
}

// PhaseByName finds a phase by name, case-insensitively.
func PhaseByName(phases []models.Phase, name string) (models.Phase, bool) {
	name = strings.TrimSpace(name)
	for _, p := range phases {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return models.Phase{}, false
}

// PhaseName returns the name of phase id, or UnknownPhase.
func PhaseName(phases []models.Phase, id uint) string {
	if p, ok := findPhase(phases, id); ok {
		return p.Name
	}
	return UnknownPhase
}

func findPhase(phases []models.Phase, id uint) (models.Phase, bool) {
	for _, p := range phases {
		if p.ID == id {
			return p, true
		}
	}
	return models.Phase{}, false
}

// PhaseIndex returns the position of id within the ordered phase list.
func PhaseIndex(phases []models.Phase, id uint) int {
	for i, p := range phases {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// completedPhases returns the ids of phases with at least one entry still
// marked completed.
func completedPhases(history []models.WorkflowEntry) map[uint]bool {
	done := make(map[uint]bool)
	for _, e := range history {
		if e.Completed {
			done[e.PhaseID] = true
		}
	}
	return done
}

// BuildPhaseViews derives the diagram for one BCR from its history.
func BuildPhaseViews(phases []models.Phase, b *models.Bcr, history []models.WorkflowEntry) []PhaseView {
	done := completedPhases(history)
	views := make([]PhaseView, len(phases))
	for i, p := range phases {
		v := PhaseView{
			Phase:    p,
			Statuses: Statuses{InProgress: p.InProgressStatus, Completed: p.CompletedStatus},
			State:    StatePending,
		}
		if b != nil {
			v.Current = p.ID == b.CurrentPhaseID
			switch {
			case done[p.ID]:
				v.State = StateCompleted
			case v.Current:
				v.State = StateInProgress
			}
		}
		views[i] = v
	}
	return views
}

// PhasesWithStatuses returns the workflow diagram for a BCR. With bcrID 0
// every phase is pending.
func PhasesWithStatuses(db *gorm.DB, bcrID uint) ([]PhaseView, error) {
	phases, err := AllPhases(db)
	if err != nil {
		return nil, err
	}
	if bcrID == 0 {
		return BuildPhaseViews(phases, nil, nil), nil
	}
	var b models.Bcr
	if err := db.First(&b, bcrID).Error; err != nil {
		return nil, fmt.Errorf("workflow: get bcr %d: %w", bcrID, err)
	}
	var history []models.WorkflowEntry
	if err := db.Where("bcr_id = ?", bcrID).Order("id ASC").Find(&history).Error; err != nil {
		return nil, fmt.Errorf("workflow: history %d: %w", bcrID, err)
	}
	return BuildPhaseViews(phases, &b, history), nil
}

// CurrentStatus returns the status label to show for a BCR: the completed
// label if its current phase is done, otherwise the in-progress label.
func CurrentStatus(phases []models.Phase, b *models.Bcr, history []models.WorkflowEntry) string {
	p, ok := findPhase(phases, b.CurrentPhaseID)
	if !ok {
		return UnknownPhase
	}
	if completedPhases(history)[p.ID] {
		return p.CompletedStatus
	}
	return p.InProgressStatus
}
