package legacy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/zulandar/changeboard/internal/bcr"
	"github.com/zulandar/changeboard/internal/config"
	"github.com/zulandar/changeboard/internal/db"
	"github.com/zulandar/changeboard/internal/models"
	"github.com/zulandar/changeboard/internal/sla"
	"github.com/zulandar/changeboard/internal/workflow"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, _ := gormDB.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(gormDB); err != nil {
		t.Fatal(err)
	}
	cfg, _ := config.Parse([]byte("{}"))
	if err := db.Seed(gormDB, cfg); err != nil {
		t.Fatal(err)
	}
	return gormDB
}

func TestParseNotes(t *testing.T) {
	notes := "Raised at the March forum.\nCurrent Phase: Prioritisation\nPhase Status: Prioritisation In Progress\n\nCurrent Phase: Technical Review  \nPhase Status: technical review complete\nChased vendor."
	ann, rest := ParseNotes(notes)
	if ann.Phase != "Technical Review" {
		t.Errorf("Phase = %q, want the last marker", ann.Phase)
	}
	if ann.Status != "technical review complete" {
		t.Errorf("Status = %q", ann.Status)
	}
	if rest != "Raised at the March forum.\nChased vendor." {
		t.Errorf("rest = %q", rest)
	}

	ann, rest = ParseNotes("plain notes")
	if ann != (Annotations{}) || rest != "plain notes" {
		t.Errorf("no markers: %+v %q", ann, rest)
	}
}

func writeRecord(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestImportDir(t *testing.T) {
	gormDB := openTestDB(t)
	dir := t.TempDir()
	writeRecord(t, dir, "a.json", `{
		"bcrNumber": "BCR-2025-0042",
		"title": "Update D0010 flow",
		"status": "Under Review",
		"priority": "High",
		"urgency": "High",
		"impact": "Metering, Market Messages",
		"notes": "Current Phase: Technical Review\nPhase Status: Technical Review Complete",
		"createdAt": "2025-06-01T10:00:00Z"
	}`)
	writeRecord(t, dir, "b.json", `{"bcrNumber": "BCR-2025-0007", "title": "Fix tariff codes", "notes": "Phase Status: Awaiting Governance Decision"}`)
	writeRecord(t, dir, "c.json", `{not json`)
	writeRecord(t, dir, "d.json", `{"bcrNumber": "CHG-1", "title": "Bad number"}`)
	writeRecord(t, dir, "notes.txt", `ignored`)

	im := &Importer{DB: gormDB}
	report, err := im.ImportDir(context.Background(), dir)
	if err != nil {
		t.Fatalf("ImportDir: %v", err)
	}
	if len(report.Imported) != 2 || len(report.Failed) != 2 || len(report.Skipped) != 0 {
		t.Fatalf("report = %+v", report)
	}

	phases, _ := workflow.AllPhases(gormDB)
	b, err := bcr.Get(gormDB, "BCR-2025-0042")
	if err != nil {
		t.Fatal(err)
	}
	if got := workflow.PhaseName(phases, b.CurrentPhaseID); got != "Technical Review" {
		t.Errorf("phase = %q", got)
	}
	if b.Status != models.StatusUnderReview || b.Priority != 1 {
		t.Errorf("status/priority = %q/%d", b.Status, b.Priority)
	}
	if b.ImpactAreas != "Metering, Market Messages" {
		t.Errorf("ImpactAreas = %q", b.ImpactAreas)
	}
	if b.Notes != "" {
		t.Errorf("Notes = %q, want markers stripped", b.Notes)
	}
	if b.CreatedAt.Year() != 2025 {
		t.Errorf("CreatedAt = %v, want the legacy timestamp", b.CreatedAt)
	}

	views, _ := workflow.PhasesWithStatuses(gormDB, b.ID)
	for _, v := range views[:3] {
		if v.State != workflow.StateCompleted {
			t.Errorf("%s = %s, want completed", v.Phase.Name, v.State)
		}
	}
	if views[3].State != workflow.StatePending {
		t.Errorf("%s = %s, want pending", views[3].Phase.Name, views[3].State)
	}

	gov, err := bcr.Get(gormDB, "BCR-2025-0007")
	if err != nil {
		t.Fatal(err)
	}
	if got := workflow.PhaseName(phases, gov.CurrentPhaseID); got != "Governance" {
		t.Errorf("status-only annotation phase = %q", got)
	}
	if gov.Status != models.StatusUnderReview {
		t.Errorf("Status = %q", gov.Status)
	}

	// The sequence continues after the highest imported number.
	var seq models.BcrSequence
	gormDB.First(&seq, "year = ?", 2025)
	if seq.LastNumber != 42 {
		t.Errorf("LastNumber = %d, want 42", seq.LastNumber)
	}

	// Re-running skips what is already there.
	report, err = im.ImportDir(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Imported) != 0 || len(report.Skipped) != 2 {
		t.Errorf("second run = %+v", report)
	}
}

func TestImport_UnknownPhaseFallsBackToFirst(t *testing.T) {
	gormDB := openTestDB(t)
	im := &Importer{DB: gormDB}
	b, err := im.Import(context.Background(), Record{BcrNumber: "BCR-2024-0001", Title: "Old", Notes: "Current Phase: Limbo"})
	if err != nil {
		t.Fatal(err)
	}
	phases, _ := workflow.AllPhases(gormDB)
	if b.CurrentPhaseID != phases[0].ID || b.Status != models.StatusSubmitted {
		t.Errorf("phase/status = %d/%q", b.CurrentPhaseID, b.Status)
	}
	history, _ := bcr.History(gormDB, b.ID)
	if len(history) != 1 || history[0].Action != models.ActionImport || history[0].Completed {
		t.Errorf("history = %+v", history)
	}
}

func TestImport_ReconstructsStageTimes(t *testing.T) {
	gormDB := openTestDB(t)
	created := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	updated := created.Add(72 * time.Hour)
	im := &Importer{DB: gormDB, Now: func() time.Time { return created.AddDate(1, 0, 0) }}

	approved, err := im.Import(context.Background(), Record{
		BcrNumber: "BCR-2024-0010", Title: "Approved", Status: "Approved",
		CreatedAt: &created, UpdatedAt: &updated,
	})
	if err != nil {
		t.Fatal(err)
	}
	if approved.AssignedAt == nil || !approved.AssignedAt.Equal(updated) || approved.DecisionAt == nil || !approved.DecisionAt.Equal(updated) {
		t.Errorf("approved assigned/decision = %v/%v, want %v", approved.AssignedAt, approved.DecisionAt, updated)
	}
	res := sla.Calculate(sla.InputFor(approved), sla.Default(), updated.Add(time.Hour))
	if res.Assignment.Status != sla.StatusComplete || res.Decision.Status != sla.StatusComplete {
		t.Errorf("sla = %+v", res)
	}

	assigned, err := im.Import(context.Background(), Record{
		BcrNumber: "BCR-2024-0011", Title: "Assigned", Status: "Under Review", AssignedTo: "sam@example.org",
		CreatedAt: &created,
	})
	if err != nil {
		t.Fatal(err)
	}
	if assigned.AssignedAt == nil || !assigned.AssignedAt.Equal(created) || assigned.DecisionAt != nil {
		t.Errorf("assigned assigned/decision = %v/%v", assigned.AssignedAt, assigned.DecisionAt)
	}

	fresh, err := im.Import(context.Background(), Record{BcrNumber: "BCR-2024-0012", Title: "Fresh", CreatedAt: &created})
	if err != nil {
		t.Fatal(err)
	}
	if fresh.AssignedAt != nil || fresh.DecisionAt != nil {
		t.Errorf("fresh assigned/decision = %v/%v, want nil", fresh.AssignedAt, fresh.DecisionAt)
	}
}

func TestMapPriority(t *testing.T) {
	tests := []struct {
		priority, urgency string
		want              int
	}{
		{"Critical", "", 0},
		{"1", "", 1},
		{"", "Low", 3},
		{"", "", 2},
		{"unknown", "High", 1},
	}
	for _, tt := range tests {
		if got := mapPriority(tt.priority, tt.urgency); got != tt.want {
			t.Errorf("mapPriority(%q, %q) = %d, want %d", tt.priority, tt.urgency, got, tt.want)
		}
	}
}

func TestMapStatus(t *testing.T) {
	if got := mapStatus("Under Review", 0); got != models.StatusUnderReview {
		t.Errorf("got %q", got)
	}
	if got := mapStatus("pending", 3); got != models.StatusUnderReview {
		t.Errorf("unknown status past first phase = %q", got)
	}
	if got := mapStatus("", 0); got != models.StatusSubmitted {
		t.Errorf("empty status = %q", got)
	}
}
