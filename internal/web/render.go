package web

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/zulandar/changeboard/internal/refdata"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

func (s *server) funcMap() template.FuncMap {
	return template.FuncMap{
		"timeAgo":     func(t time.Time) string { return TimeAgo(t, time.Now()) },
		"formatDate":  formatDate,
		"markdown":    s.markdown,
		"statusLabel": StatusLabel,
		"splitList":   refdata.SplitList,
		"contains":    containsString,
		"hours":       formatHours,
	}
}

// markdown renders BCR text. Raw HTML in the source is dropped.
func (s *server) markdown(src string) template.HTML {
	var buf bytes.Buffer
	if err := s.md.Convert([]byte(src), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(buf.String())
}

// TimeAgo formats the distance from t to now for list views.
func TimeAgo(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

// formatDate accepts time.Time or *time.Time and prints the date part.
func formatDate(v interface{}) string {
	switch t := v.(type) {
	case time.Time:
		if !t.IsZero() {
			return t.Format("2 Jan 2006")
		}
	case *time.Time:
		if t != nil && !t.IsZero() {
			return t.Format("2 Jan 2006")
		}
	}
	return "-"
}

// StatusLabel turns a status value such as "under_review" into "Under Review".
func StatusLabel(status string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(status, "_", " "))
}

func formatHours(d time.Duration) string {
	h := int(d.Hours())
	if h >= 48 {
		return fmt.Sprintf("%dd %dh", h/24, h%24)
	}
	return fmt.Sprintf("%dh", h)
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}
