// Package legacy imports BCRs from the JSON file store that predates the
// database, turning free-text phase annotations into workflow history.
package legacy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/zulandar/changeboard/internal/bcr"
	"github.com/zulandar/changeboard/internal/events"
	"github.com/zulandar/changeboard/internal/models"
	"github.com/zulandar/changeboard/internal/refdata"
	"github.com/zulandar/changeboard/internal/workflow"
	"gorm.io/gorm"
)

// Record is one BCR file of the old store.
type Record struct {
	ID                 string     `json:"id"`
	BcrNumber          string     `json:"bcrNumber"`
	Title              string     `json:"title"`
	Description        string     `json:"description"`
	Status             string     `json:"status"`
	Priority           string     `json:"priority"`
	Urgency            string     `json:"urgency"`
	Impact             string     `json:"impact"`
	RequestedBy        string     `json:"requestedBy"`
	AssignedTo         string     `json:"assignedTo"`
	Notes              string     `json:"notes"`
	TargetDate         *time.Time `json:"targetDate"`
	ImplementationDate *time.Time `json:"implementationDate"`
	CreatedAt          *time.Time `json:"createdAt"`
	UpdatedAt          *time.Time `json:"updatedAt"`
}

var (
	phaseRe  = regexp.MustCompile(`(?im)^[ \t]*Current Phase:[ \t]*(.*?)[ \t]*$`)
	statusRe = regexp.MustCompile(`(?im)^[ \t]*Phase Status:[ \t]*(.*?)[ \t]*$`)
)

// Annotations holds the phase markers found in a notes field. The last
// occurrence of each marker wins, since the old store appended them.
type Annotations struct {
	Phase  string
	Status string
}

// ParseNotes extracts the annotations and returns the notes with the marker
// lines removed.
func ParseNotes(notes string) (Annotations, string) {
	var a Annotations
	if m := phaseRe.FindAllStringSubmatch(notes, -1); len(m) > 0 {
		a.Phase = m[len(m)-1][1]
	}
	if m := statusRe.FindAllStringSubmatch(notes, -1); len(m) > 0 {
		a.Status = m[len(m)-1][1]
	}
	rest := phaseRe.ReplaceAllString(notes, "")
	rest = statusRe.ReplaceAllString(rest, "")

	var lines []string
	for _, line := range strings.Split(rest, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, strings.TrimRight(line, " \t\r"))
		}
	}
	return a, strings.Join(lines, "\n")
}

// Report summarises an import run.
type Report struct {
	Imported []string
	Skipped  []string
	Failed   []Failure
}

// Failure is a file that could not be imported.
type Failure struct {
	File string
	Err  error
}

// Importer loads legacy files into the database.
type Importer struct {
	DB        *gorm.DB
	Observers events.Observers
	Now       func() time.Time
}

// ImportDir imports every *.json file in dir, in name order. Files whose BCR
// number already exists are skipped. A bad file is reported and does not
// stop the run.
func (im *Importer) ImportDir(ctx context.Context, dir string) (*Report, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("legacy: list %s: %w", dir, err)
	}
	sort.Strings(paths)

	report := &Report{}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			report.Failed = append(report.Failed, Failure{File: path, Err: err})
			continue
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			report.Failed = append(report.Failed, Failure{File: path, Err: fmt.Errorf("legacy: decode: %w", err)})
			continue
		}
		b, err := im.Import(ctx, rec)
		switch {
		case errors.Is(err, ErrExists):
			report.Skipped = append(report.Skipped, rec.BcrNumber)
		case err != nil:
			report.Failed = append(report.Failed, Failure{File: path, Err: err})
		default:
			report.Imported = append(report.Imported, b.BcrNumber)
		}
	}
	return report, nil
}

// ErrExists is returned by Import when the BCR number is already taken.
var ErrExists = errors.New("legacy: bcr already exists")

// Import stores one record with its reconstructed history.
func (im *Importer) Import(ctx context.Context, rec Record) (*models.Bcr, error) {
	number := strings.TrimSpace(rec.BcrNumber)
	if _, _, err := bcr.ParseNumber(number); err != nil {
		return nil, fmt.Errorf("legacy: %w", err)
	}
	if strings.TrimSpace(rec.Title) == "" {
		return nil, fmt.Errorf("legacy: %s has no title", number)
	}
	now := time.Now()
	if im.Now != nil {
		now = im.Now()
	}

	var created models.Bcr
	err := im.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Bcr{}).Where("bcr_number = ?", number).Count(&count).Error; err != nil {
			return fmt.Errorf("legacy: check %s: %w", number, err)
		}
		if count > 0 {
			return fmt.Errorf("%w: %s", ErrExists, number)
		}
		phases, err := workflow.AllPhases(tx)
		if err != nil {
			return err
		}
		if len(phases) == 0 {
			return fmt.Errorf("legacy: no phases configured")
		}

		ann, notes := ParseNotes(rec.Notes)
		current, completed := resolvePhase(phases, ann)
		ci := workflow.PhaseIndex(phases, current.ID)

		status := mapStatus(rec.Status, ci)
		assignedAt, decisionAt := stageTimes(rec, status, now)
		created = models.Bcr{
			BcrNumber:          number,
			Title:              strings.TrimSpace(rec.Title),
			Description:        rec.Description,
			Status:             status,
			Priority:           mapPriority(rec.Priority, rec.Urgency),
			Urgency:            strings.TrimSpace(rec.Urgency),
			ImpactAreas:        refdata.JoinList(refdata.SplitList(rec.Impact)),
			CurrentPhaseID:     current.ID,
			RequestedBy:        rec.RequestedBy,
			AssignedTo:         rec.AssignedTo,
			Notes:              notes,
			TargetDate:         rec.TargetDate,
			AssignedAt:         assignedAt,
			DecisionAt:         decisionAt,
			ImplementationDate: rec.ImplementationDate,
			CreatedAt:          timeOr(rec.CreatedAt, now),
			UpdatedAt:          timeOr(rec.UpdatedAt, timeOr(rec.CreatedAt, now)),
		}
		if err := tx.Create(&created).Error; err != nil {
			return fmt.Errorf("legacy: create %s: %w", number, err)
		}
		if err := bcr.ReserveNumber(tx, number); err != nil {
			return err
		}

		entries := make([]models.WorkflowEntry, 0, ci+1)
		for i := 0; i < ci; i++ {
			entries = append(entries, importEntry(created.ID, phases[i], phases[i].CompletedStatus, true, "Imported"))
		}
		label := current.InProgressStatus
		if completed {
			label = current.CompletedStatus
		}
		entries = append(entries, importEntry(created.ID, current, label, completed, importComment(ann)))
		if err := tx.Create(&entries).Error; err != nil {
			return fmt.Errorf("legacy: history for %s: %w", number, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	im.Observers.Publish(ctx, events.Change{
		Kind:      events.KindImported,
		BcrID:     created.ID,
		BcrNumber: created.BcrNumber,
		Title:     created.Title,
		Status:    created.Status,
		Actor:     "import",
		At:        now,
	})
	return &created, nil
}

// resolvePhase picks the phase named by the annotations. The phase name is
// tried first, then the status label; anything unresolvable lands in the
// first phase. completed reports whether the status label is the phase's
// completed variant.
func resolvePhase(phases []models.Phase, ann Annotations) (models.Phase, bool) {
	p, ok := workflow.PhaseByName(phases, ann.Phase)
	if !ok {
		p, ok = workflow.PhaseForStatus(phases, ann.Status)
	}
	if !ok {
		return phases[0], false
	}
	return p, ann.Status != "" && strings.EqualFold(ann.Status, p.CompletedStatus)
}

func importEntry(bcrID uint, p models.Phase, status string, completed bool, comment string) models.WorkflowEntry {
	return models.WorkflowEntry{
		BcrID:     bcrID,
		PhaseID:   p.ID,
		Action:    models.ActionImport,
		Status:    status,
		Completed: completed,
		Actor:     "import",
		Comment:   comment,
	}
}

func importComment(a Annotations) string {
	if a.Phase == "" && a.Status == "" {
		return "Imported without phase annotations"
	}
	return fmt.Sprintf("Imported from notes (phase %q, status %q)", a.Phase, a.Status)
}

// mapStatus normalises an old status label such as "Under Review".
func mapStatus(raw string, phaseIndex int) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	for _, known := range models.Statuses {
		if s == known {
			return known
		}
	}
	if phaseIndex > 0 {
		return models.StatusUnderReview
	}
	return models.StatusSubmitted
}

// mapPriority accepts the old numeric or named priorities, falling back to
// the urgency.
func mapPriority(priority, urgency string) int {
	switch strings.ToLower(strings.TrimSpace(priority)) {
	case "0", "critical":
		return 0
	case "1", "high":
		return 1
	case "2", "medium", "normal":
		return 2
	case "3", "4", "low":
		return 3
	}
	switch strings.ToLower(strings.TrimSpace(urgency)) {
	case "critical":
		return 0
	case "high":
		return 1
	case "low":
		return 3
	}
	return 2
}

// stageTimes reconstructs the SLA stage timestamps the old store never kept.
// A decided record counts as assigned. The record's last update stands in for
// both, capped at the implementation date.
func stageTimes(rec Record, status string, now time.Time) (assignedAt, decisionAt *time.Time) {
	stamp := timeOr(rec.UpdatedAt, timeOr(rec.CreatedAt, now))
	if rec.ImplementationDate != nil && !rec.ImplementationDate.IsZero() && rec.ImplementationDate.Before(stamp) {
		stamp = *rec.ImplementationDate
	}
	decided := false
	switch status {
	case models.StatusApproved, models.StatusImplemented, models.StatusRejected, models.StatusClosed:
		decided = true
	}
	if decided {
		t := stamp
		decisionAt = &t
	}
	if decided || strings.TrimSpace(rec.AssignedTo) != "" {
		t := stamp
		assignedAt = &t
	}
	return assignedAt, decisionAt
}

func timeOr(t *time.Time, fallback time.Time) time.Time {
	if t == nil || t.IsZero() {
		return fallback
	}
	return *t
}
