package models

import "time"

// SlaAlert records that an SLA notification was sent for a BCR stage.
type SlaAlert struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	BcrID     uint   `gorm:"not null;uniqueIndex:idx_sla_alert"`
	Stage     string `gorm:"size:32;not null;uniqueIndex:idx_sla_alert"`
	Status    string `gorm:"size:16;not null;uniqueIndex:idx_sla_alert"`
	CreatedAt time.Time
}
