package workflow

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/changeboard/internal/events"
	"github.com/zulandar/changeboard/internal/models"
	"gorm.io/gorm"
)

// ErrInvalidAction is returned when the transition table rejects a request.
var ErrInvalidAction = errors.New("workflow: action not allowed")

// Decisions accepted by the decision action.
const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
)

// Request asks for one workflow action on a BCR.
type Request struct {
	BcrNumber     string
	Action        string
	TargetPhaseID uint
	Decision      string
	Assignee      string
	Comment       string
	Actor         string
}

// Rule is one row of the transition table: the BCR statuses an action may
// start from, a precondition, and the effect.
type Rule struct {
	Action string
	Label  string
	From   []string
	check  func(s *step) error
	apply  func(s *step) error
}

var openStatuses = []string{models.StatusSubmitted, models.StatusUnderReview, models.StatusApproved, models.StatusImplemented}

// Rules is the transition table. Every status-changing path goes through it.
var Rules = []Rule{
	{
		Action: models.ActionTransition,
		Label:  "Move to phase",
		From:   openStatuses,
		check:  checkTransition,
		apply:  applyTransition,
	},
	{
		Action: models.ActionCompletePhase,
		Label:  "Complete phase",
		From:   openStatuses,
		check:  checkCompletePhase,
		apply:  applyCompletePhase,
	},
	{
		Action: models.ActionDecision,
		Label:  "Record decision",
		From:   []string{models.StatusSubmitted, models.StatusUnderReview},
		check:  checkDecision,
		apply:  applyDecision,
	},
	{
		Action: models.ActionAssign,
		Label:  "Assign",
		From:   openStatuses,
		check:  checkAssign,
		apply:  applyAssign,
	},
	{
		Action: models.ActionImplement,
		Label:  "Mark implemented",
		From:   []string{models.StatusApproved},
		check:  func(*step) error { return nil },
		apply:  applyImplement,
	},
	{
		Action: models.ActionWithdraw,
		Label:  "Withdraw",
		From:   []string{models.StatusSubmitted, models.StatusUnderReview, models.StatusApproved},
		check:  func(*step) error { return nil },
		apply:  applyWithdraw,
	},
	{
		Action: models.ActionComment,
		Label:  "Add comment",
		From:   models.Statuses,
		check:  checkComment,
		apply:  applyComment,
	},
}

// RuleFor returns the rule for an action; an empty action means comment.
func RuleFor(action string) (Rule, bool) {
	if action == "" {
		action = models.ActionComment
	}
	for _, r := range Rules {
		if r.Action == action {
			return r, true
		}
	}
	return Rule{}, false
}

// Allows reports whether the rule may start from status.
func (r Rule) Allows(status string) bool {
	for _, s := range r.From {
		if s == status {
			return true
		}
	}
	return false
}

// step carries the state of one Apply call through check and apply.
type step struct {
	tx      *gorm.DB
	req     Request
	now     time.Time
	bcr     *models.Bcr
	phases  []models.Phase
	history []models.WorkflowEntry
	current models.Phase
	known   bool // current phase exists
	done    map[uint]bool

	kind    string
	updates map[string]interface{}
	entries []models.WorkflowEntry
	reset   bool
}

func newStep(tx *gorm.DB, req Request, now time.Time, b *models.Bcr, phases []models.Phase, history []models.WorkflowEntry) *step {
	current, known := findPhase(phases, b.CurrentPhaseID)
	return &step{
		tx:      tx,
		req:     req,
		now:     now,
		bcr:     b,
		phases:  phases,
		history: history,
		current: current,
		known:   known,
		done:    completedPhases(history),
		updates: map[string]interface{}{},
	}
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidAction, fmt.Sprintf(format, args...))
}

func (s *step) entry(phaseID uint, status string, completed bool, comment string) {
	s.entries = append(s.entries, models.WorkflowEntry{
		BcrID:     s.bcr.ID,
		PhaseID:   phaseID,
		Action:    s.req.Action,
		Status:    status,
		Completed: completed,
		Actor:     s.req.Actor,
		Comment:   comment,
	})
}

func (s *step) setStatus(status string) {
	s.updates["status"] = status
}

func (s *step) currentLabel() string {
	return CurrentStatus(s.phases, s.bcr, s.history)
}

// lastDecisionPhase returns the decision-point phase with the highest order.
func lastDecisionPhase(phases []models.Phase) (models.Phase, bool) {
	var last models.Phase
	found := false
	for _, p := range phases {
		if p.DecisionPoint && (!found || p.DisplayOrder > last.DisplayOrder) {
			last, found = p, true
		}
	}
	return last, found
}

func checkTransition(s *step) error {
	target, ok := findPhase(s.phases, s.req.TargetPhaseID)
	if !ok {
		return invalid("unknown target phase %d", s.req.TargetPhaseID)
	}
	if target.ID == s.bcr.CurrentPhaseID {
		return invalid("already in phase %q", target.Name)
	}
	ti := PhaseIndex(s.phases, target.ID)
	ci := PhaseIndex(s.phases, s.bcr.CurrentPhaseID)
	if ci < 0 {
		if ti != 0 {
			return invalid("current phase is unknown; only %q can be entered", s.phases[0].Name)
		}
		return nil
	}
	if ti > ci {
		if ti != ci+1 {
			return invalid("cannot skip from %q to %q", s.current.Name, target.Name)
		}
		if !s.done[s.current.ID] {
			return invalid("complete %q before moving to %q", s.current.Name, target.Name)
		}
	}
	return nil
}

func applyTransition(s *step) error {
	target, _ := findPhase(s.phases, s.req.TargetPhaseID)
	ti := PhaseIndex(s.phases, target.ID)
	ci := PhaseIndex(s.phases, s.bcr.CurrentPhaseID)
	s.kind = events.KindTransitioned

	if ci >= 0 && ti < ci {
		if _, err := ResetLowerPhases(s.tx, s.bcr.ID, target, s.phases, s.req.Actor); err != nil {
			return err
		}
		s.reset = true
		if decision, ok := lastDecisionPhase(s.phases); ok && target.DisplayOrder <= decision.DisplayOrder {
			switch s.bcr.Status {
			case models.StatusApproved, models.StatusImplemented:
				s.setStatus(models.StatusUnderReview)
				s.updates["decision_at"] = nil
				s.updates["implementation_date"] = nil
				if target.ID == decision.ID {
					if err := reopenPhase(s.tx, s.bcr.ID, target); err != nil {
						return err
					}
				}
			}
		}
	}

	s.updates["current_phase_id"] = target.ID
	if s.bcr.Status == models.StatusSubmitted && ti > 0 {
		s.setStatus(models.StatusUnderReview)
	}

	if ti == len(s.phases)-1 {
		s.setStatus(models.StatusClosed)
		s.entry(target.ID, target.CompletedStatus, true, s.req.Comment)
		return nil
	}
	s.entry(target.ID, target.InProgressStatus, false, s.req.Comment)
	return nil
}

func checkCompletePhase(s *step) error {
	if !s.known {
		return invalid("current phase is unknown")
	}
	if s.done[s.current.ID] {
		return invalid("phase %q is already complete", s.current.Name)
	}
	if s.current.DecisionPoint {
		return invalid("phase %q needs a decision", s.current.Name)
	}
	return nil
}

func applyCompletePhase(s *step) error {
	s.kind = events.KindPhaseCompleted
	s.entry(s.current.ID, s.current.CompletedStatus, true, s.req.Comment)
	return nil
}

func checkDecision(s *step) error {
	if !s.known || !s.current.DecisionPoint {
		return invalid("no decision is due in the current phase")
	}
	if s.done[s.current.ID] {
		return invalid("phase %q already has a decision", s.current.Name)
	}
	switch s.req.Decision {
	case DecisionApprove, DecisionReject:
		return nil
	}
	return invalid("decision must be %q or %q", DecisionApprove, DecisionReject)
}

func applyDecision(s *step) error {
	s.kind = events.KindDecision
	if s.req.Decision == DecisionReject {
		s.setStatus(models.StatusRejected)
		s.updates["decision_at"] = s.now
		s.entry(s.current.ID, "Rejected", false, joinComment("Rejected", s.req.Comment))
		return nil
	}

	if last, ok := lastDecisionPhase(s.phases); ok && last.ID == s.current.ID {
		s.setStatus(models.StatusApproved)
		s.updates["decision_at"] = s.now
	} else if s.bcr.Status == models.StatusSubmitted {
		s.setStatus(models.StatusUnderReview)
	}
	s.entry(s.current.ID, s.current.CompletedStatus, true, joinComment("Approved", s.req.Comment))
	return nil
}

func checkAssign(s *step) error {
	if strings.TrimSpace(s.req.Assignee) == "" {
		return invalid("an assignee is required")
	}
	return nil
}

func applyAssign(s *step) error {
	s.kind = events.KindAssigned
	assignee := strings.TrimSpace(s.req.Assignee)
	s.updates["assigned_to"] = assignee
	if s.bcr.AssignedAt == nil {
		s.updates["assigned_at"] = s.now
	}
	s.entry(s.bcr.CurrentPhaseID, s.currentLabel(), false, joinComment("Assigned to "+assignee, s.req.Comment))
	return nil
}

func applyImplement(s *step) error {
	s.kind = events.KindImplemented
	s.setStatus(models.StatusImplemented)
	s.updates["implementation_date"] = s.now
	s.entry(s.bcr.CurrentPhaseID, s.currentLabel(), false, joinComment("Implemented", s.req.Comment))
	return nil
}

func applyWithdraw(s *step) error {
	s.kind = events.KindWithdrawn
	s.setStatus(models.StatusWithdrawn)
	s.entry(s.bcr.CurrentPhaseID, s.currentLabel(), false, joinComment("Withdrawn", s.req.Comment))
	return nil
}

func checkComment(s *step) error {
	if strings.TrimSpace(s.req.Comment) == "" {
		return invalid("a comment is required")
	}
	return nil
}

func applyComment(s *step) error {
	s.kind = events.KindCommented
	s.entry(s.bcr.CurrentPhaseID, s.currentLabel(), false, strings.TrimSpace(s.req.Comment))
	return nil
}

func joinComment(prefix, comment string) string {
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return prefix
	}
	return prefix + ": " + comment
}
