package web

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/changeboard/internal/bcr"
	"github.com/zulandar/changeboard/internal/models"
	"github.com/zulandar/changeboard/internal/refdata"
	"github.com/zulandar/changeboard/internal/sla"
	"github.com/zulandar/changeboard/internal/workflow"
)

// itemJSON is the API representation of a BCR.
type itemJSON struct {
	Number             string     `json:"number"`
	Title              string     `json:"title"`
	Description        string     `json:"description"`
	Status             string     `json:"status"`
	Priority           int        `json:"priority"`
	Urgency            string     `json:"urgency"`
	ImpactAreas        []string   `json:"impact_areas"`
	Phase              string     `json:"phase"`
	RequestedBy        string     `json:"requested_by,omitempty"`
	AssignedTo         string     `json:"assigned_to,omitempty"`
	TargetDate         *time.Time `json:"target_date,omitempty"`
	ImplementationDate *time.Time `json:"implementation_date,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

type stageJSON struct {
	Stage        string  `json:"stage"`
	Status       string  `json:"status"`
	ElapsedHours float64 `json:"elapsed_hours"`
}

type entryJSON struct {
	Phase     string    `json:"phase"`
	Action    string    `json:"action"`
	Status    string    `json:"status"`
	Completed bool      `json:"completed"`
	Actor     string    `json:"actor"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *server) item(b *models.Bcr) itemJSON {
	phases, _ := s.allPhases()
	areas := refdata.SplitList(b.ImpactAreas)
	if areas == nil {
		areas = []string{}
	}
	return itemJSON{
		Number:             b.BcrNumber,
		Title:              b.Title,
		Description:        b.Description,
		Status:             b.Status,
		Priority:           b.Priority,
		Urgency:            b.Urgency,
		ImpactAreas:        areas,
		Phase:              workflow.PhaseName(phases, b.CurrentPhaseID),
		RequestedBy:        b.RequestedBy,
		AssignedTo:         b.AssignedTo,
		TargetDate:         b.TargetDate,
		ImplementationDate: b.ImplementationDate,
		CreatedAt:          b.CreatedAt,
		UpdatedAt:          b.UpdatedAt,
	}
}

func handleHealth(s *server) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := s.db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			s.renderError(c, http.StatusServiceUnavailable, "database unavailable", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{
			"status":   "ok",
			"database": s.db.Dialector.Name(),
			"time":     time.Now().UTC().Format(time.RFC3339),
		}})
	}
}

func handleStatus(s *server) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, err := s.counters.Snapshot(c.Request.Context())
		if err != nil {
			s.fail(c, "could not load counters", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": snap})
	}
}

func handleItems(s *server) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := bcr.List(s.db, listFilters(c))
		if err != nil {
			s.fail(c, "could not list items", err)
			return
		}
		items := make([]itemJSON, len(list))
		for i := range list {
			items[i] = s.item(&list[i])
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": items})
	}
}

func handleItem(s *server) gin.HandlerFunc {
	return func(c *gin.Context) {
		b, err := bcr.Get(s.db, c.Param("number"))
		if err != nil {
			s.fail(c, "item not found", err)
			return
		}
		history, err := bcr.History(s.db, b.ID)
		if err != nil {
			s.fail(c, "could not load history", err)
			return
		}
		phases, _ := s.allPhases()
		entries := make([]entryJSON, len(history))
		for i, e := range history {
			entries[i] = entryJSON{
				Phase:     workflow.PhaseName(phases, e.PhaseID),
				Action:    e.Action,
				Status:    e.Status,
				Completed: e.Completed,
				Actor:     e.Actor,
				Comment:   e.Comment,
				CreatedAt: e.CreatedAt,
			}
		}
		var stages []stageJSON
		for _, st := range sla.Calculate(sla.InputFor(b), s.cfg.SLA, time.Now()).Stages() {
			stages = append(stages, stageJSON{Stage: st.Stage, Status: st.Status, ElapsedHours: st.Elapsed.Hours()})
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{
			"item":           s.item(b),
			"current_status": workflow.CurrentStatus(phases, b, history),
			"history":        entries,
			"sla":            stages,
		}})
	}
}
