package models

import "time"

// User roles.
const (
	RoleAdmin     = "admin"
	RoleReviewer  = "reviewer"
	RoleSubmitter = "submitter"
	RoleViewer    = "viewer"
)

// User is an account that can act on BCRs.
type User struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	Name         string `gorm:"size:128;not null"`
	Email        string `gorm:"size:256;not null;uniqueIndex"`
	PasswordHash string `gorm:"size:128;not null"`
	Role         string `gorm:"size:16;default:viewer"`
	Active       bool   `gorm:"default:true"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
