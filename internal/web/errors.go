package web

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/changeboard/internal/access"
	"github.com/zulandar/changeboard/internal/bcr"
	"github.com/zulandar/changeboard/internal/workflow"
)

// wantsJSON reports whether the caller expects a JSON error body: API
// routes, XHR requests, and clients that accept JSON.
func wantsJSON(c *gin.Context) bool {
	if strings.HasPrefix(c.Request.URL.Path, "/api/") {
		return true
	}
	if c.GetHeader("X-Requested-With") == "XMLHttpRequest" {
		return true
	}
	return strings.Contains(c.GetHeader("Accept"), "application/json")
}

// statusFor maps an error onto an HTTP status.
func statusFor(err error) int {
	var inputErr *access.InputError
	switch {
	case errors.Is(err, bcr.ErrNotFound), errors.Is(err, access.ErrNotFound), errors.Is(err, workflow.ErrPhaseNotFound):
		return http.StatusNotFound
	case bcr.IsValidation(err), errors.As(err, &inputErr),
		errors.Is(err, workflow.ErrInvalidAction),
		errors.Is(err, access.ErrSelfModification),
		errors.Is(err, access.ErrDuplicateEmail):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func titleFor(status int) string {
	switch status {
	case http.StatusNotFound:
		return "Not Found"
	case http.StatusBadRequest:
		return "Invalid Request"
	case http.StatusForbidden:
		return "Forbidden"
	}
	return "Something Went Wrong"
}

// fail renders err with the status statusFor picks.
func (s *server) fail(c *gin.Context, message string, err error) {
	s.renderError(c, statusFor(err), message, err)
}

// renderError writes the error page or JSON body. Error detail is only
// exposed in development.
func (s *server) renderError(c *gin.Context, status int, message string, err error) {
	if status >= http.StatusInternalServerError {
		log.Printf("web: %s %s: %s: %v", c.Request.Method, c.Request.URL.Path, message, err)
	}
	if status < http.StatusInternalServerError && err != nil {
		// Client errors carry a message meant for the user.
		message = userMessage(message, err)
	}

	if wantsJSON(c) {
		body := gin.H{"success": false, "message": message, "error": message}
		var ve *bcr.ValidationError
		if errors.As(err, &ve) {
			body["errors"] = ve.Messages()
		}
		if s.cfg.IsDevelopment() && err != nil {
			body["detail"] = err.Error()
		}
		c.AbortWithStatusJSON(status, body)
		return
	}

	data := gin.H{
		"page":    "error",
		"title":   titleFor(status),
		"message": message,
		"actor":   actorFrom(c),
	}
	if s.cfg.IsDevelopment() && err != nil {
		data["error"] = err.Error()
	}
	c.HTML(status, "layout.html", data)
	c.Abort()
}

// userMessage picks the most specific human-readable text for a client error.
func userMessage(fallback string, err error) string {
	var ve *bcr.ValidationError
	if errors.As(err, &ve) {
		return strings.Join(ve.Messages(), "; ")
	}
	var ie *access.InputError
	if errors.As(err, &ie) {
		return strings.Join(ie.Problems, "; ")
	}
	switch {
	case errors.Is(err, access.ErrSelfModification):
		return "You cannot deactivate or delete your own account."
	case errors.Is(err, access.ErrDuplicateEmail):
		return "That email address is already registered."
	case errors.Is(err, workflow.ErrInvalidAction):
		msg := err.Error()
		if i := strings.LastIndex(msg, workflow.ErrInvalidAction.Error()+": "); i >= 0 {
			return fallback + ": " + msg[i+len(workflow.ErrInvalidAction.Error())+2:]
		}
	}
	return fallback
}
