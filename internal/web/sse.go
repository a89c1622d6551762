package web

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/changeboard/internal/models"
	"github.com/zulandar/changeboard/internal/workflow"
)

// workflowEvent is the payload of a "workflow" SSE event.
type workflowEvent struct {
	ID        uint      `json:"id"`
	BcrNumber string    `json:"bcr_number"`
	Phase     string    `json:"phase"`
	Action    string    `json:"action"`
	Status    string    `json:"status"`
	Actor     string    `json:"actor"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	ssePollInterval = 3 * time.Second
	sseHeartbeat    = 15 * time.Second
)

// handleSSE streams new workflow entries by polling the history table.
func handleSSE(s *server) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		writeSSE(c.Writer, "connected", map[string]string{"type": "connected"})
		c.Writer.Flush()

		// Only entries written after the client connected are streamed.
		var lastSeenID uint
		var latest models.WorkflowEntry
		if err := s.db.Order("id DESC").Limit(1).Find(&latest).Error; err == nil {
			lastSeenID = latest.ID
		}

		ctx := c.Request.Context()
		ticker := time.NewTicker(ssePollInterval)
		heartbeat := time.NewTicker(sseHeartbeat)
		defer ticker.Stop()
		defer heartbeat.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeat.C:
				writeSSE(c.Writer, "heartbeat", map[string]string{
					"timestamp": time.Now().UTC().Format(time.RFC3339),
				})
				c.Writer.Flush()
			case <-ticker.C:
				evts, err := s.entriesAfter(lastSeenID)
				if err != nil || len(evts) == 0 {
					continue
				}
				lastSeenID = evts[len(evts)-1].ID
				for _, evt := range evts {
					writeSSE(c.Writer, "workflow", evt)
				}
				c.Writer.Flush()
			}
		}
	}
}

// entriesAfter returns workflow entries with id greater than afterID.
func (s *server) entriesAfter(afterID uint) ([]workflowEvent, error) {
	var entries []models.WorkflowEntry
	if err := s.db.Where("id > ?", afterID).Order("id ASC").Limit(100).Find(&entries).Error; err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}

	ids := make([]uint, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.BcrID)
	}
	var bcrs []models.Bcr
	if err := s.db.Select("id", "bcr_number").Where("id IN ?", ids).Find(&bcrs).Error; err != nil {
		return nil, err
	}
	numbers := make(map[uint]string, len(bcrs))
	for _, b := range bcrs {
		numbers[b.ID] = b.BcrNumber
	}
	phases, _ := s.allPhases()

	out := make([]workflowEvent, len(entries))
	for i, e := range entries {
		out[i] = workflowEvent{
			ID:        e.ID,
			BcrNumber: numbers[e.BcrID],
			Phase:     workflow.PhaseName(phases, e.PhaseID),
			Action:    e.Action,
			Status:    e.Status,
			Actor:     e.Actor,
			CreatedAt: e.CreatedAt,
		}
	}
	return out, nil
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(jsonData))
}
