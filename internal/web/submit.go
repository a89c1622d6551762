package web

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/changeboard/internal/bcr"
	"github.com/zulandar/changeboard/internal/models"
)

// submitPage assembles the intake form data.
func (s *server) submitPage(c *gin.Context, form bcr.SubmitForm, errs *bcr.ValidationError) (gin.H, error) {
	areas, err := s.referenceNames(models.ConfigImpactArea)
	if err != nil {
		return nil, err
	}
	urgencies, err := s.referenceNames(models.ConfigUrgencyLevel)
	if err != nil {
		return nil, err
	}
	data := gin.H{
		"page":        "submit",
		"title":       "Submit a change request",
		"actor":       actorFrom(c),
		"form":        form,
		"impactAreas": areas,
		"urgencies":   urgencies,
		"fieldErrors": map[string]string{},
	}
	if form.TargetDate != nil {
		data["targetDate"] = form.TargetDate.Format("2006-01-02")
	}
	if errs != nil {
		fieldErrors := make(map[string]string, len(errs.Errors))
		for _, fe := range errs.Errors {
			fieldErrors[fe.Field] = fe.Message
		}
		data["errors"] = errs.Messages()
		data["fieldErrors"] = fieldErrors
	}
	return data, nil
}

func handleSubmitForm(s *server) gin.HandlerFunc {
	return func(c *gin.Context) {
		form := bcr.SubmitForm{}
		if a := actorFrom(c); a.Email != "" {
			form.Email = a.Email
			form.Name = a.Name
		}
		data, err := s.submitPage(c, form, nil)
		if err != nil {
			s.fail(c, "Could not load the submission form.", err)
			return
		}
		c.HTML(http.StatusOK, "layout.html", data)
	}
}

// bindSubmitForm reads the intake form fields. A malformed target date is
// reported as a field error.
func bindSubmitForm(c *gin.Context) (bcr.SubmitForm, *bcr.FieldError) {
	form := bcr.SubmitForm{
		Name:          c.PostForm("name"),
		Email:         c.PostForm("email"),
		Organisation:  c.PostForm("organisation"),
		Title:         c.PostForm("title"),
		Description:   c.PostForm("description"),
		Urgency:       c.PostForm("urgency"),
		ImpactAreas:   c.PostFormArray("impactAreas"),
		Justification: c.PostForm("justification"),
	}
	if v := strings.TrimSpace(c.PostForm("targetDate")); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return form, &bcr.FieldError{Field: "targetDate", Message: "Target date must be a valid date"}
		}
		form.TargetDate = &t
	}
	return form, nil
}

func handleSubmit(s *server) gin.HandlerFunc {
	return func(c *gin.Context) {
		form, dateErr := bindSubmitForm(c)

		var created *models.Bcr
		err := bcr.Validate(s.db, &form)
		if dateErr != nil && (err == nil || bcr.IsValidation(err)) {
			var ve *bcr.ValidationError
			if !errors.As(err, &ve) {
				ve = &bcr.ValidationError{}
			}
			ve.Errors = append(ve.Errors, *dateErr)
			err = ve
		}
		if err == nil {
			created, err = s.bcrs.Submit(c.Request.Context(), form)
		}

		var ve *bcr.ValidationError
		if errors.As(err, &ve) {
			if wantsJSON(c) {
				s.renderError(c, http.StatusBadRequest, "The submission has errors.", ve)
				return
			}
			data, perr := s.submitPage(c, form, ve)
			if perr != nil {
				s.fail(c, "Could not load the submission form.", perr)
				return
			}
			c.HTML(http.StatusBadRequest, "layout.html", data)
			return
		}
		if err != nil {
			s.fail(c, "The submission could not be saved.", err)
			return
		}

		if wantsJSON(c) {
			c.JSON(http.StatusCreated, gin.H{"success": true, "data": s.item(created)})
			return
		}
		c.Redirect(http.StatusSeeOther, "/bcr/submit/confirmation/"+created.BcrNumber)
	}
}

func handleConfirmation(s *server) gin.HandlerFunc {
	return func(c *gin.Context) {
		b, err := bcr.Get(s.db, c.Param("number"))
		if err != nil {
			s.fail(c, "No BCR with that number.", err)
			return
		}
		c.HTML(http.StatusOK, "layout.html", gin.H{
			"page":  "confirmation",
			"title": "Submission received",
			"actor": actorFrom(c),
			"bcr":   b,
		})
	}
}
