package models

import (
	"reflect"
	"strings"
	"testing"
)

// gormTag extracts the gorm tag from a struct field.
func gormTag(t *testing.T, typ reflect.Type, fieldName string) string {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	return f.Tag.Get("gorm")
}

// assertGormTag checks that a struct field's gorm tag contains the expected value.
func assertGormTag(t *testing.T, typ reflect.Type, fieldName, expected string) {
	t.Helper()
	tag := gormTag(t, typ, fieldName)
	if !strings.Contains(tag, expected) {
		t.Errorf("%s.%s gorm tag = %q, want to contain %q", typ.Name(), fieldName, tag, expected)
	}
}

// assertFieldType checks that a struct field has the expected Go type.
func assertFieldType(t *testing.T, typ reflect.Type, fieldName, expectedType string) {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	if got := f.Type.String(); got != expectedType {
		t.Errorf("%s.%s type = %q, want %q", typ.Name(), fieldName, got, expectedType)
	}
}

func TestBcr_Fields(t *testing.T) {
	typ := reflect.TypeOf(Bcr{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "BcrNumber", "uniqueIndex")
	assertGormTag(t, typ, "BcrNumber", "not null")
	assertGormTag(t, typ, "Title", "not null")
	assertGormTag(t, typ, "Description", "type:text")
	assertGormTag(t, typ, "Status", "default:submitted")
	assertGormTag(t, typ, "Status", "index")
	assertGormTag(t, typ, "Priority", "not null")
	assertGormTag(t, typ, "CurrentPhaseID", "index")
	assertGormTag(t, typ, "Notes", "type:text")
	assertGormTag(t, typ, "Submission", "foreignKey:BcrID")
	assertGormTag(t, typ, "History", "foreignKey:BcrID")

	assertFieldType(t, typ, "TargetDate", "*time.Time")
	assertFieldType(t, typ, "AssignedAt", "*time.Time")
	assertFieldType(t, typ, "DecisionAt", "*time.Time")
	assertFieldType(t, typ, "ImplementationDate", "*time.Time")
	assertFieldType(t, typ, "CreatedAt", "time.Time")
}

func TestBcrSequence_Fields(t *testing.T) {
	typ := reflect.TypeOf(BcrSequence{})
	assertGormTag(t, typ, "Year", "primaryKey")
	assertGormTag(t, typ, "Year", "autoIncrement:false")
	assertGormTag(t, typ, "LastNumber", "default:0")
}

func TestPhase_Fields(t *testing.T) {
	typ := reflect.TypeOf(Phase{})
	assertGormTag(t, typ, "Name", "uniqueIndex")
	assertGormTag(t, typ, "DisplayOrder", "index")
	assertGormTag(t, typ, "InProgressStatus", "not null")
	assertGormTag(t, typ, "CompletedStatus", "not null")
	assertGormTag(t, typ, "DecisionPoint", "default:false")
	if strings.Contains(gormTag(t, typ, "DisplayOrder"), "uniqueIndex") {
		t.Error("DisplayOrder must not be unique so phases can be reordered in place")
	}
}

func TestSubmission_Fields(t *testing.T) {
	typ := reflect.TypeOf(Submission{})
	assertFieldType(t, typ, "ID", "uuid.UUID")
	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "BcrID", "uniqueIndex")
	assertGormTag(t, typ, "SubmitterEmail", "not null")
	assertGormTag(t, typ, "Justification", "type:text")
}

func TestSubmission_BeforeCreateAssignsID(t *testing.T) {
	s := &Submission{}
	if err := s.BeforeCreate(nil); err != nil {
		t.Fatal(err)
	}
	first := s.ID
	if first.String() == "00000000-0000-0000-0000-000000000000" {
		t.Fatal("ID not assigned")
	}
	if err := s.BeforeCreate(nil); err != nil {
		t.Fatal(err)
	}
	if s.ID != first {
		t.Error("existing ID was replaced")
	}
}

func TestWorkflowEntry_Fields(t *testing.T) {
	typ := reflect.TypeOf(WorkflowEntry{})
	assertGormTag(t, typ, "BcrID", "index")
	assertGormTag(t, typ, "PhaseID", "index")
	assertGormTag(t, typ, "Action", "not null")
	assertGormTag(t, typ, "Completed", "default:false")
	assertGormTag(t, typ, "Comment", "type:text")
}

func TestConfigRow_CompositeUnique(t *testing.T) {
	typ := reflect.TypeOf(ConfigRow{})
	assertGormTag(t, typ, "Type", "uniqueIndex:idx_config_type_name")
	assertGormTag(t, typ, "Name", "uniqueIndex:idx_config_type_name")
}

func TestUser_Fields(t *testing.T) {
	typ := reflect.TypeOf(User{})
	assertGormTag(t, typ, "Email", "uniqueIndex")
	assertGormTag(t, typ, "PasswordHash", "not null")
	assertGormTag(t, typ, "Role", "default:viewer")
	assertGormTag(t, typ, "Active", "default:true")
}

func TestSlaAlert_UniquePerStage(t *testing.T) {
	typ := reflect.TypeOf(SlaAlert{})
	for _, f := range []string{"BcrID", "Stage", "Status"} {
		assertGormTag(t, typ, f, "uniqueIndex:idx_sla_alert")
	}
}

func TestIsTerminalStatus(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{StatusSubmitted, false},
		{StatusUnderReview, false},
		{StatusApproved, false},
		{StatusImplemented, false},
		{StatusRejected, true},
		{StatusClosed, true},
		{StatusWithdrawn, true},
	}
	for _, tt := range tests {
		if got := IsTerminalStatus(tt.status); got != tt.want {
			t.Errorf("IsTerminalStatus(%q) = %v, want %v", tt.status, got, tt.want)
		}
	}
}
