package bcr

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/zulandar/changeboard/internal/events"
	"github.com/zulandar/changeboard/internal/models"
	"github.com/zulandar/changeboard/internal/refdata"
	"gorm.io/gorm"
)

// SubmitForm is the intake form for a new BCR.
type SubmitForm struct {
	Name          string
	Email         string
	Organisation  string
	Title         string
	Description   string
	Urgency       string
	ImpactAreas   []string
	Justification string
	TargetDate    *time.Time
}

// FieldError is one form validation failure.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError collects all field failures of a form.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		msgs[i] = fe.Message
	}
	return "bcr: validation failed: " + strings.Join(msgs, "; ")
}

// Messages returns the failure messages in field order.
func (e *ValidationError) Messages() []string {
	out := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		out[i] = fe.Message
	}
	return out
}

// IsValidation reports whether err carries form validation failures.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Validate checks the form against required fields and reference data, and
// canonicalises urgency and impact area spellings in place.
func Validate(db *gorm.DB, form *SubmitForm) error {
	var errs []FieldError
	add := func(field, msg string) { errs = append(errs, FieldError{Field: field, Message: msg}) }

	form.Name = strings.TrimSpace(form.Name)
	form.Email = strings.TrimSpace(form.Email)
	form.Title = strings.TrimSpace(form.Title)
	form.Description = strings.TrimSpace(form.Description)

	if form.Name == "" {
		add("name", "Name is required")
	}
	if form.Email == "" {
		add("email", "Email is required")
	} else if _, err := mail.ParseAddress(form.Email); err != nil {
		add("email", "Email address is not valid")
	}
	if form.Title == "" {
		add("title", "Title is required")
	}
	if form.Description == "" {
		add("description", "Description is required")
	}

	if strings.TrimSpace(form.Urgency) == "" {
		add("urgency", "Urgency is required")
	} else {
		canon, fe, err := canonicalUrgency(db, form.Urgency)
		if err != nil {
			return err
		}
		if fe != nil {
			errs = append(errs, *fe)
		} else {
			form.Urgency = canon
		}
	}

	areas, areaErrs, err := canonicalAreas(db, form.ImpactAreas)
	if err != nil {
		return err
	}
	errs = append(errs, areaErrs...)
	form.ImpactAreas = areas

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// canonicalUrgency resolves an urgency against the urgency levels.
func canonicalUrgency(db *gorm.DB, urgency string) (string, *FieldError, error) {
	levels, err := refdata.Names(db, models.ConfigUrgencyLevel)
	if err != nil {
		return "", nil, err
	}
	canon, ok := refdata.Canonical(levels, urgency)
	if !ok {
		return "", &FieldError{Field: "urgency", Message: fmt.Sprintf("Urgency %q is not recognised", urgency)}, nil
	}
	return canon, nil, nil
}

// canonicalAreas drops blank entries and resolves the rest against the
// impact areas. At least one area is required.
func canonicalAreas(db *gorm.DB, raw []string) ([]string, []FieldError, error) {
	var areas []string
	for _, a := range raw {
		if strings.TrimSpace(a) != "" {
			areas = append(areas, a)
		}
	}
	if len(areas) == 0 {
		return nil, []FieldError{{Field: "impactAreas", Message: "At least one impact area is required"}}, nil
	}
	known, err := refdata.Names(db, models.ConfigImpactArea)
	if err != nil {
		return nil, nil, err
	}
	var errs []FieldError
	for i, a := range areas {
		canon, ok := refdata.Canonical(known, a)
		if !ok {
			errs = append(errs, FieldError{Field: "impactAreas", Message: fmt.Sprintf("Impact area %q is not recognised", a)})
			continue
		}
		areas[i] = canon
	}
	return areas, errs, nil
}

// Submit validates the form and creates the BCR, its submission record, and
// the first workflow entry in a single transaction.
func (s *Service) Submit(ctx context.Context, form SubmitForm) (*models.Bcr, error) {
	if err := Validate(s.DB, &form); err != nil {
		return nil, err
	}
	now := s.now()

	var created models.Bcr
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var first models.Phase
		if err := tx.Order("display_order ASC").Limit(1).Find(&first).Error; err != nil {
			return fmt.Errorf("load first phase: %w", err)
		}

		number, err := GenerateNumber(tx, now)
		if err != nil {
			return err
		}

		impact := refdata.JoinList(form.ImpactAreas)
		created = models.Bcr{
			BcrNumber:      number,
			Title:          form.Title,
			Description:    form.Description,
			Status:         models.StatusSubmitted,
			Priority:       priorityFor(form.Urgency),
			Urgency:        form.Urgency,
			ImpactAreas:    impact,
			CurrentPhaseID: first.ID,
			RequestedBy:    form.Email,
			TargetDate:     form.TargetDate,
		}
		if err := tx.Create(&created).Error; err != nil {
			return fmt.Errorf("create bcr: %w", err)
		}

		sub := models.Submission{
			BcrID:          created.ID,
			SubmitterName:  form.Name,
			SubmitterEmail: form.Email,
			Organisation:   strings.TrimSpace(form.Organisation),
			Title:          form.Title,
			Description:    form.Description,
			Urgency:        form.Urgency,
			ImpactAreas:    impact,
			Justification:  strings.TrimSpace(form.Justification),
		}
		if err := tx.Create(&sub).Error; err != nil {
			return fmt.Errorf("create submission: %w", err)
		}
		created.Submission = &sub

		entry := models.WorkflowEntry{
			BcrID:   created.ID,
			PhaseID: first.ID,
			Action:  models.ActionSubmit,
			Status:  first.InProgressStatus,
			Actor:   form.Email,
			Comment: "Submission received",
		}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("create history: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("bcr: submit: %w", err)
	}

	s.Observers.Publish(ctx, events.Change{
		Kind:      events.KindSubmitted,
		BcrID:     created.ID,
		BcrNumber: created.BcrNumber,
		Title:     created.Title,
		Status:    created.Status,
		Actor:     form.Email,
		At:        now,
	})
	return &created, nil
}

// priorityFor maps an urgency label to a numeric priority (0 = highest).
func priorityFor(urgency string) int {
	switch strings.ToLower(urgency) {
	case "critical":
		return 0
	case "high":
		return 1
	case "medium":
		return 2
	case "low":
		return 3
	}
	return 2
}
