package web

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/changeboard/internal/bcr"
	"github.com/zulandar/changeboard/internal/models"
	"github.com/zulandar/changeboard/internal/refdata"
	"github.com/zulandar/changeboard/internal/sla"
	"github.com/zulandar/changeboard/internal/workflow"
)

// bcrRow holds list data for one BCR.
type bcrRow struct {
	Bcr         models.Bcr
	Phase       string
	ImpactAreas []string
	SLA         sla.Result
}

func (s *server) rows(list []models.Bcr) ([]bcrRow, error) {
	phases, err := s.allPhases()
	if err != nil {
		return nil, err
	}
	now := time.Now()
	rows := make([]bcrRow, len(list))
	for i, b := range list {
		rows[i] = bcrRow{
			Bcr:         b,
			Phase:       workflow.PhaseName(phases, b.CurrentPhaseID),
			ImpactAreas: refdata.SplitList(b.ImpactAreas),
			SLA:         sla.Calculate(sla.InputFor(&b), s.cfg.SLA, now),
		}
	}
	return rows, nil
}

func handleIndex(s *server) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, err := s.counters.Snapshot(c.Request.Context())
		if err != nil {
			s.fail(c, "Could not load dashboard counters.", err)
			return
		}
		recent, err := bcr.List(s.db, bcr.ListFilters{Limit: 10})
		if err != nil {
			s.fail(c, "Could not load recent BCRs.", err)
			return
		}
		rows, err := s.rows(recent)
		if err != nil {
			s.fail(c, "Could not load phases.", err)
			return
		}
		c.HTML(http.StatusOK, "layout.html", gin.H{
			"page":     "dashboard",
			"title":    "Dashboard",
			"actor":    actorFrom(c),
			"counters": snap,
			"recent":   rows,
		})
	}
}

// listFilters reads the list filters from the query string.
func listFilters(c *gin.Context) bcr.ListFilters {
	f := bcr.ListFilters{
		Status:  c.Query("status"),
		Urgency: c.Query("urgency"),
		Search:  strings.TrimSpace(c.Query("q")),
	}
	if id, err := strconv.ParseUint(c.Query("phase"), 10, 64); err == nil {
		f.PhaseID = uint(id)
	}
	if n, err := strconv.Atoi(c.Query("limit")); err == nil && n > 0 {
		f.Limit = n
	}
	return f
}

func handleBcrList(s *server) gin.HandlerFunc {
	return func(c *gin.Context) {
		filters := listFilters(c)
		list, err := bcr.List(s.db, filters)
		if err != nil {
			s.fail(c, "Could not list BCRs.", err)
			return
		}
		rows, err := s.rows(list)
		if err != nil {
			s.fail(c, "Could not load phases.", err)
			return
		}
		phases, _ := s.allPhases()
		urgencies, err := s.referenceNames(models.ConfigUrgencyLevel)
		if err != nil {
			s.fail(c, "Could not load reference data.", err)
			return
		}
		c.HTML(http.StatusOK, "layout.html", gin.H{
			"page":      "list",
			"title":     "Change requests",
			"actor":     actorFrom(c),
			"rows":      rows,
			"filters":   filters,
			"phases":    phases,
			"statuses":  models.Statuses,
			"urgencies": urgencies,
		})
	}
}

func handleWorkflow(s *server) gin.HandlerFunc {
	return func(c *gin.Context) {
		views, err := workflow.PhasesWithStatuses(s.db, 0)
		if err != nil {
			s.fail(c, "Could not load workflow phases.", err)
			return
		}
		c.HTML(http.StatusOK, "layout.html", gin.H{
			"page":   "workflow",
			"title":  "Workflow",
			"actor":  actorFrom(c),
			"phases": views,
			"rules":  workflow.Rules,
		})
	}
}

// historyRow is one workflow entry with its phase name resolved.
type historyRow struct {
	Entry models.WorkflowEntry
	Phase string
}

func handleBcrDetail(s *server) gin.HandlerFunc {
	return func(c *gin.Context) {
		b, err := bcr.Get(s.db, c.Param("number"))
		if err != nil {
			s.fail(c, "No BCR with that number.", err)
			return
		}
		phases, err := s.allPhases()
		if err != nil {
			s.fail(c, "Could not load phases.", err)
			return
		}
		history, err := bcr.History(s.db, b.ID)
		if err != nil {
			s.fail(c, "Could not load history.", err)
			return
		}
		options, err := workflow.AvailableActions(s.db, b)
		if err != nil {
			s.fail(c, "Could not load available actions.", err)
			return
		}

		urgencies, err := s.referenceNames(models.ConfigUrgencyLevel)
		if err != nil {
			s.fail(c, "Could not load urgency levels.", err)
			return
		}
		areas, err := s.referenceNames(models.ConfigImpactArea)
		if err != nil {
			s.fail(c, "Could not load impact areas.", err)
			return
		}

		rows := make([]historyRow, len(history))
		for i, e := range history {
			rows[len(history)-1-i] = historyRow{Entry: e, Phase: workflow.PhaseName(phases, e.PhaseID)}
		}
		c.HTML(http.StatusOK, "layout.html", gin.H{
			"page":          "detail",
			"title":         b.BcrNumber,
			"actor":         actorFrom(c),
			"bcr":           b,
			"phaseName":     workflow.PhaseName(phases, b.CurrentPhaseID),
			"currentStatus": workflow.CurrentStatus(phases, b, history),
			"impactAreas":   refdata.SplitList(b.ImpactAreas),
			"diagram":       workflow.BuildPhaseViews(phases, b, history),
			"sla":           sla.Calculate(sla.InputFor(b), s.cfg.SLA, time.Now()),
			"history":       rows,
			"options":       options,
			"urgencies":     urgencies,
			"allAreas":      areas,
		})
	}
}

func handleStatusUpdate(s *server) gin.HandlerFunc {
	return func(c *gin.Context) {
		number := c.Param("number")
		req := workflow.Request{
			BcrNumber: number,
			Action:    c.PostForm("action"),
			Decision:  c.PostForm("decision"),
			Assignee:  c.PostForm("assignee"),
			Comment:   c.PostForm("comment"),
			Actor:     actorFrom(c).Label(),
		}
		if v := c.PostForm("target_phase_id"); v != "" {
			id, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				s.renderError(c, http.StatusBadRequest, "Target phase must be a phase id.", err)
				return
			}
			req.TargetPhaseID = uint(id)
		}

		res, err := s.flow.Apply(c.Request.Context(), req)
		if err != nil {
			s.fail(c, "The workflow action was not applied", err)
			return
		}
		if wantsJSON(c) {
			c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{
				"item":  s.item(res.Bcr),
				"kind":  res.Kind,
				"reset": res.Reset,
			}})
			return
		}
		c.Redirect(http.StatusSeeOther, "/bcr/"+number)
	}
}

func handleBcrEdit(s *server) gin.HandlerFunc {
	return func(c *gin.Context) {
		number := c.Param("number")
		var fields bcr.UpdateFields
		if v, ok := c.GetPostForm("title"); ok {
			fields.Title = &v
		}
		if v, ok := c.GetPostForm("description"); ok {
			fields.Description = &v
		}
		if v, ok := c.GetPostForm("notes"); ok {
			fields.Notes = &v
		}
		if v, ok := c.GetPostForm("urgency"); ok {
			fields.Urgency = &v
		}
		if v, ok := c.GetPostFormArray("impactAreas"); ok {
			fields.ImpactAreas = &v
		}
		if v := c.PostForm("target_date"); v != "" {
			t, err := time.Parse("2006-01-02", v)
			if err != nil {
				s.renderError(c, http.StatusBadRequest, "Target date must be YYYY-MM-DD.", err)
				return
			}
			fields.TargetDate = &t
		}
		if _, err := s.bcrs.Update(c.Request.Context(), number, fields, actorFrom(c).Label()); err != nil {
			s.fail(c, "The BCR was not updated.", err)
			return
		}
		c.Redirect(http.StatusSeeOther, "/bcr/"+number)
	}
}

func handleBcrDelete(s *server) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.bcrs.Delete(c.Request.Context(), c.Param("number"), actorFrom(c).Label()); err != nil {
			s.fail(c, "The BCR was not deleted.", err)
			return
		}
		c.Redirect(http.StatusSeeOther, "/bcr")
	}
}

// referenceNames returns config row names through the lookup cache.
func (s *server) referenceNames(rowType string) ([]string, error) {
	return s.refs.GetOrSet(rowType, lookupTTL, func() ([]string, error) {
		return refdata.Names(s.db, rowType)
	})
}
