package models

// Config row types.
const (
	ConfigImpactArea   = "impact_area"
	ConfigUrgencyLevel = "urgency_level"
)

// ConfigRow is a generic reference-data entry (impact areas, urgency levels).
type ConfigRow struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	Type         string `gorm:"size:32;not null;uniqueIndex:idx_config_type_name"`
	Name         string `gorm:"size:128;not null;uniqueIndex:idx_config_type_name"`
	Value        string `gorm:"size:256"`
	DisplayOrder int    `gorm:"default:0"`
}
