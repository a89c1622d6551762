package notify

import (
	"fmt"
	"strings"

	"github.com/zulandar/changeboard/internal/events"
)

func verb(kind string) string {
	switch kind {
	case events.KindSubmitted:
		return "submitted"
	case events.KindTransitioned:
		return "moved"
	case events.KindPhaseCompleted:
		return "completed a phase"
	case events.KindPhasesReset:
		return "rolled back"
	case events.KindDecision:
		return "decided"
	case events.KindAssigned:
		return "assigned"
	case events.KindImplemented:
		return "implemented"
	case events.KindWithdrawn:
		return "withdrawn"
	case events.KindCommented:
		return "commented"
	case events.KindDeleted:
		return "deleted"
	case events.KindSLABreach:
		return "breached SLA"
	}
	return strings.ReplaceAll(kind, "_", " ")
}

func severity(ch events.Change) string {
	switch ch.Kind {
	case events.KindSLABreach:
		return SeverityError
	case events.KindPhasesReset, events.KindWithdrawn, events.KindDeleted:
		return SeverityWarning
	case events.KindImplemented:
		return SeveritySuccess
	case events.KindDecision:
		if ch.Status == "rejected" {
			return SeverityWarning
		}
		return SeveritySuccess
	}
	return SeverityInfo
}

// Relevant reports whether a change kind is worth a chat message. Field
// edits and imports are too noisy.
func Relevant(kind string) bool {
	switch kind {
	case events.KindUpdated, events.KindImported, events.KindCommented:
		return false
	}
	return true
}

// FromChange formats a change. baseURL, when set, links the BCR detail page.
func FromChange(ch events.Change, baseURL string) Event {
	ev := Event{
		Kind:      ch.Kind,
		BcrNumber: ch.BcrNumber,
		Title:     fmt.Sprintf("%s %s", ch.BcrNumber, verb(ch.Kind)),
		Severity:  severity(ch),
	}

	var body []string
	if ch.Title != "" {
		body = append(body, ch.Title)
	}
	if ch.Comment != "" {
		body = append(body, ch.Comment)
	}
	ev.Summary = strings.Join(body, "\n")

	if ch.Phase != "" {
		ev.Fields = append(ev.Fields, Field{Name: "Phase", Value: ch.Phase, Short: true})
	}
	if ch.Status != "" {
		ev.Fields = append(ev.Fields, Field{Name: "Status", Value: ch.Status, Short: true})
	}
	if ch.Actor != "" {
		ev.Fields = append(ev.Fields, Field{Name: "By", Value: ch.Actor, Short: true})
	}
	if baseURL != "" && ch.BcrNumber != "" && ch.Kind != events.KindDeleted {
		ev.URL = strings.TrimRight(baseURL, "/") + "/bcr/" + ch.BcrNumber
	}
	return ev
}
