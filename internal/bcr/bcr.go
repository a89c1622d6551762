// Package bcr provides business change request records: intake, lookup,
// listing, and editing.
package bcr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/changeboard/internal/events"
	"github.com/zulandar/changeboard/internal/models"
	"github.com/zulandar/changeboard/internal/refdata"
	"gorm.io/gorm"
)

// ErrNotFound is returned when no BCR matches the requested number or id.
var ErrNotFound = errors.New("bcr: not found")

// Service owns BCR mutations and publishes a change after each commit.
type Service struct {
	DB        *gorm.DB
	Observers events.Observers
	Now       func() time.Time
}

// NewService returns a Service using the wall clock.
func NewService(db *gorm.DB, observers ...events.Observer) *Service {
	return &Service{DB: db, Observers: observers, Now: time.Now}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// ListFilters holds optional filters for listing BCRs.
type ListFilters struct {
	Status  string
	PhaseID uint
	Urgency string
	Search  string
	Limit   int
}

// UpdateFields holds the editable BCR fields; nil fields are left unchanged.
type UpdateFields struct {
	Title       *string
	Description *string
	Priority    *int
	Urgency     *string
	ImpactAreas *[]string
	Notes       *string
	TargetDate  *time.Time
}

// Get retrieves a BCR by number, preloading its submission.
func Get(db *gorm.DB, number string) (*models.Bcr, error) {
	var b models.Bcr
	if err := db.Preload("Submission").Where("bcr_number = ?", number).First(&b).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, number)
		}
		return nil, fmt.Errorf("bcr: get %s: %w", number, err)
	}
	return &b, nil
}

// GetByID retrieves a BCR by primary key.
func GetByID(db *gorm.DB, id uint) (*models.Bcr, error) {
	var b models.Bcr
	if err := db.Preload("Submission").First(&b, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("bcr: get id %d: %w", id, err)
	}
	return &b, nil
}

// List returns BCRs matching the filters, newest first.
func List(db *gorm.DB, filters ListFilters) ([]models.Bcr, error) {
	q := db.Model(&models.Bcr{})
	if filters.Status != "" {
		q = q.Where("status = ?", filters.Status)
	}
	if filters.PhaseID != 0 {
		q = q.Where("current_phase_id = ?", filters.PhaseID)
	}
	if filters.Urgency != "" {
		q = q.Where("urgency = ?", filters.Urgency)
	}
	if s := strings.TrimSpace(filters.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(title) LIKE ? OR LOWER(bcr_number) LIKE ?", like, like)
	}
	if filters.Limit > 0 {
		q = q.Limit(filters.Limit)
	}

	var bcrs []models.Bcr
	if err := q.Order("created_at DESC, id DESC").Find(&bcrs).Error; err != nil {
		return nil, fmt.Errorf("bcr: list: %w", err)
	}
	return bcrs, nil
}

// History returns the workflow entries of a BCR, oldest first.
func History(db *gorm.DB, bcrID uint) ([]models.WorkflowEntry, error) {
	var entries []models.WorkflowEntry
	if err := db.Where("bcr_id = ?", bcrID).Order("id ASC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("bcr: history %d: %w", bcrID, err)
	}
	return entries, nil
}

// Update modifies editable fields of a BCR.
func (s *Service) Update(ctx context.Context, number string, fields UpdateFields, actor string) (*models.Bcr, error) {
	b, err := Get(s.DB, number)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if fields.Title != nil {
		title := strings.TrimSpace(*fields.Title)
		if title == "" {
			return nil, &ValidationError{Errors: []FieldError{{Field: "title", Message: "Title is required"}}}
		}
		updates["title"] = title
	}
	if fields.Description != nil {
		updates["description"] = *fields.Description
	}
	if fields.Priority != nil {
		updates["priority"] = *fields.Priority
	}
	var errs []FieldError
	if fields.Urgency != nil {
		canon, fe, err := canonicalUrgency(s.DB, strings.TrimSpace(*fields.Urgency))
		if err != nil {
			return nil, err
		}
		if fe != nil {
			errs = append(errs, *fe)
		}
		updates["urgency"] = canon
	}
	if fields.ImpactAreas != nil {
		areas, areaErrs, err := canonicalAreas(s.DB, *fields.ImpactAreas)
		if err != nil {
			return nil, err
		}
		errs = append(errs, areaErrs...)
		updates["impact_areas"] = refdata.JoinList(areas)
	}
	if len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}
	if fields.Notes != nil {
		updates["notes"] = *fields.Notes
	}
	if fields.TargetDate != nil {
		updates["target_date"] = *fields.TargetDate
	}
	if len(updates) == 0 {
		return b, nil
	}

	if err := s.DB.Model(&models.Bcr{}).Where("id = ?", b.ID).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("bcr: update %s: %w", number, err)
	}
	b, err = GetByID(s.DB, b.ID)
	if err != nil {
		return nil, err
	}
	s.Observers.Publish(ctx, events.Change{
		Kind:      events.KindUpdated,
		BcrID:     b.ID,
		BcrNumber: b.BcrNumber,
		Title:     b.Title,
		Status:    b.Status,
		Actor:     actor,
		At:        s.now(),
	})
	return b, nil
}

// Delete removes a BCR with its submission and history.
func (s *Service) Delete(ctx context.Context, number, actor string) error {
	b, err := Get(s.DB, number)
	if err != nil {
		return err
	}
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("bcr_id = ?", b.ID).Delete(&models.WorkflowEntry{}).Error; err != nil {
			return fmt.Errorf("delete history: %w", err)
		}
		if err := tx.Where("bcr_id = ?", b.ID).Delete(&models.Submission{}).Error; err != nil {
			return fmt.Errorf("delete submission: %w", err)
		}
		if err := tx.Where("bcr_id = ?", b.ID).Delete(&models.SlaAlert{}).Error; err != nil {
			return fmt.Errorf("delete sla alerts: %w", err)
		}
		if err := tx.Delete(&models.Bcr{}, b.ID).Error; err != nil {
			return fmt.Errorf("delete bcr: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("bcr: delete %s: %w", number, err)
	}
	s.Observers.Publish(ctx, events.Change{
		Kind:      events.KindDeleted,
		BcrID:     b.ID,
		BcrNumber: b.BcrNumber,
		Title:     b.Title,
		Actor:     actor,
		At:        s.now(),
	})
	return nil
}
