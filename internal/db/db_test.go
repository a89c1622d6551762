package db

import (
	"strings"
	"testing"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/zulandar/changeboard/internal/config"
	"github.com/zulandar/changeboard/internal/models"
	"gorm.io/gorm"
)

func openMemory(t *testing.T) *gorm.DB {
	t.Helper()
	gormDB, err := Connect(config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := AutoMigrate(gormDB); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gormDB
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte("{}"))
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	return cfg
}

func TestMySQLDSN(t *testing.T) {
	tests := []struct {
		name     string
		user     string
		password string
		host     string
		port     int
		database string
	}{
		{"no password", "root", "", "127.0.0.1", 3306, "changeboard"},
		{"with password", "bcr", "s3cret", "10.0.0.5", 3307, "bcr_prod"},
		{"hostname", "app", "pw", "mysql.vpc.internal", 3306, "bcr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dsn := MySQLDSN(tt.user, tt.password, tt.host, tt.port, tt.database)
			if !strings.Contains(dsn, "parseTime=true") {
				t.Errorf("DSN missing parseTime=true: %s", dsn)
			}
			parsed, err := mysqldriver.ParseDSN(dsn)
			if err != nil {
				t.Fatalf("ParseDSN(%q): %v", dsn, err)
			}
			if parsed.User != tt.user || parsed.Passwd != tt.password {
				t.Errorf("credentials = %q/%q, want %q/%q", parsed.User, parsed.Passwd, tt.user, tt.password)
			}
			if parsed.DBName != tt.database {
				t.Errorf("DBName = %q, want %q", parsed.DBName, tt.database)
			}
			if !parsed.ParseTime {
				t.Error("ParseTime = false, want true")
			}
		})
	}
}

func TestDialector(t *testing.T) {
	for _, driver := range []string{"sqlite", "mysql", "postgres"} {
		d, err := Dialector(driver, "dsn")
		if err != nil {
			t.Errorf("Dialector(%q): %v", driver, err)
			continue
		}
		if d.Name() != driver {
			t.Errorf("Dialector(%q).Name() = %q", driver, d.Name())
		}
	}
	if _, err := Dialector("oracle", "dsn"); err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestAutoMigrate_CreatesTables(t *testing.T) {
	gormDB := openMemory(t)
	for _, m := range AllModels() {
		if !gormDB.Migrator().HasTable(m) {
			t.Errorf("table for %T not created", m)
		}
	}
}

func TestSeed_PhasesAndReference(t *testing.T) {
	gormDB := openMemory(t)
	cfg := testConfig(t)

	if err := Seed(gormDB, cfg); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	var phases []models.Phase
	gormDB.Order("display_order ASC").Find(&phases)
	if len(phases) != len(cfg.Phases) {
		t.Fatalf("phases = %d, want %d", len(phases), len(cfg.Phases))
	}
	for i, p := range phases {
		if p.DisplayOrder != i+1 {
			t.Errorf("phase %q order = %d, want %d", p.Name, p.DisplayOrder, i+1)
		}
	}
	var approval models.Phase
	gormDB.Where("name = ?", "Approval").First(&approval)
	if !approval.DecisionPoint {
		t.Error("Approval should be a decision point")
	}

	var urgency int64
	gormDB.Model(&models.ConfigRow{}).Where("type = ?", models.ConfigUrgencyLevel).Count(&urgency)
	if int(urgency) != len(cfg.Reference.UrgencyLevels) {
		t.Errorf("urgency rows = %d, want %d", urgency, len(cfg.Reference.UrgencyLevels))
	}
}

func TestSeed_Idempotent(t *testing.T) {
	gormDB := openMemory(t)
	cfg := testConfig(t)

	for i := 0; i < 2; i++ {
		if err := Seed(gormDB, cfg); err != nil {
			t.Fatalf("Seed pass %d: %v", i, err)
		}
	}
	var count int64
	gormDB.Model(&models.Phase{}).Count(&count)
	if int(count) != len(cfg.Phases) {
		t.Errorf("phases after reseed = %d, want %d", count, len(cfg.Phases))
	}
}

func TestSeedPhases_UpdatesLabels(t *testing.T) {
	gormDB := openMemory(t)
	phases := []config.PhaseConfig{{Name: "Intake", InProgressStatus: "Open", CompletedStatus: "Done"}}
	if err := SeedPhases(gormDB, phases); err != nil {
		t.Fatal(err)
	}
	phases[0].CompletedStatus = "Accepted"
	if err := SeedPhases(gormDB, phases); err != nil {
		t.Fatal(err)
	}
	var p models.Phase
	gormDB.Where("name = ?", "Intake").First(&p)
	if p.CompletedStatus != "Accepted" {
		t.Errorf("CompletedStatus = %q, want Accepted", p.CompletedStatus)
	}
}

func TestReset_EmptiesTables(t *testing.T) {
	gormDB := openMemory(t)
	if err := Seed(gormDB, testConfig(t)); err != nil {
		t.Fatal(err)
	}
	if err := Reset(gormDB); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	var count int64
	gormDB.Model(&models.Phase{}).Count(&count)
	if count != 0 {
		t.Errorf("phases after reset = %d, want 0", count)
	}
}
