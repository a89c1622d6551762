package db

import (
	"fmt"

	"github.com/zulandar/changeboard/internal/config"
	"github.com/zulandar/changeboard/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Phase{},
		&models.ConfigRow{},
		&models.Bcr{},
		&models.BcrSequence{},
		&models.Submission{},
		&models.WorkflowEntry{},
		&models.User{},
		&models.SlaAlert{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// Reset drops every table and migrates again.
func Reset(db *gorm.DB) error {
	if err := db.Migrator().DropTable(AllModels()...); err != nil {
		return fmt.Errorf("db: drop tables: %w", err)
	}
	return AutoMigrate(db)
}

// Seed upserts phases and reference data from configuration.
func Seed(db *gorm.DB, cfg *config.Config) error {
	if err := SeedPhases(db, cfg.Phases); err != nil {
		return err
	}
	if err := SeedReference(db, models.ConfigImpactArea, cfg.Reference.ImpactAreas); err != nil {
		return err
	}
	return SeedReference(db, models.ConfigUrgencyLevel, cfg.Reference.UrgencyLevels)
}

// SeedPhases upserts Phase rows keyed by name. Display order follows the
// position in the list, starting at 1.
func SeedPhases(db *gorm.DB, phases []config.PhaseConfig) error {
	for i, pc := range phases {
		phase := models.Phase{
			Name:             pc.Name,
			DisplayOrder:     i + 1,
			InProgressStatus: pc.InProgressStatus,
			CompletedStatus:  pc.CompletedStatus,
			DecisionPoint:    pc.Decision,
		}
		result := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"display_order", "in_progress_status", "completed_status", "decision_point", "updated_at"}),
		}).Create(&phase)
		if result.Error != nil {
			return fmt.Errorf("db: seed phase %q: %w", pc.Name, result.Error)
		}
	}
	return nil
}

// SeedReference upserts config rows of one type keyed by (type, name).
func SeedReference(db *gorm.DB, rowType string, names []string) error {
	for i, name := range names {
		row := models.ConfigRow{
			Type:         rowType,
			Name:         name,
			Value:        name,
			DisplayOrder: i + 1,
		}
		result := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "type"}, {Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"display_order"}),
		}).Create(&row)
		if result.Error != nil {
			return fmt.Errorf("db: seed %s %q: %w", rowType, name, result.Error)
		}
	}
	return nil
}
