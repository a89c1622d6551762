package refdata

import (
	"reflect"
	"testing"

	"github.com/zulandar/changeboard/internal/db"
	"github.com/zulandar/changeboard/internal/models"
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
	if err := db.AutoMigrate(gormDB); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	if err := db.SeedReference(gormDB, models.ConfigUrgencyLevel, []string{"Low", "Medium", "High"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return gormDB
}

func TestNames_DisplayOrder(t *testing.T) {
	gormDB := openTestDB(t)
	names, err := Names(gormDB, models.ConfigUrgencyLevel)
	if err != nil {
		t.Fatalf("Names: %v", err)
	}
	want := []string{"Low", "Medium", "High"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("Names = %v, want %v", names, want)
	}
}

func TestNames_UnknownType(t *testing.T) {
	gormDB := openTestDB(t)
	names, err := Names(gormDB, "no_such_type")
	if err != nil {
		t.Fatalf("Names: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("Names = %v, want empty", names)
	}
}

func TestContains_CaseInsensitive(t *testing.T) {
	gormDB := openTestDB(t)
	tests := []struct {
		name string
		want bool
	}{
		{"High", true},
		{"high", true},
		{"  MEDIUM ", true},
		{"Urgent", false},
		{"", false},
	}
	for _, tt := range tests {
		got, err := Contains(gormDB, models.ConfigUrgencyLevel, tt.name)
		if err != nil {
			t.Fatalf("Contains(%q): %v", tt.name, err)
		}
		if got != tt.want {
			t.Errorf("Contains(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestCanonical(t *testing.T) {
	got, ok := Canonical([]string{"Market Messages", "Billing"}, "market messages")
	if !ok || got != "Market Messages" {
		t.Errorf("Canonical = (%q, %v), want (Market Messages, true)", got, ok)
	}
}

func TestSplitJoinList(t *testing.T) {
	got := SplitList(" Billing, ,Metering ,")
	want := []string{"Billing", "Metering"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SplitList = %v, want %v", got, want)
	}
	if JoinList(want) != "Billing, Metering" {
		t.Errorf("JoinList = %q", JoinList(want))
	}
	if SplitList("") != nil {
		t.Error("SplitList(\"\") should be nil")
	}
}
