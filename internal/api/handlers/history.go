package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/roea-ai/botmind/internal/feedback"
	"github.com/roea-ai/botmind/pkg/types"
)

// HistoryLister reads archived tasks. *store.HistoryStore implements it.
type HistoryLister interface {
	List(filter *types.TaskFilter) ([]*types.ArchivedTask, error)
}

// EventLister reads stored events, newest first. *store.EventStore
// implements it.
type EventLister interface {
	ListEvents(limit int) ([]*types.Event, error)
}

// RecentEvents returns the latest in-memory events. *events.Hub implements it.
type RecentEvents interface {
	Recent(n int) []*types.Event
}

// HistoryHandler serves feedback counters, archived tasks and events.
type HistoryHandler struct {
	feedback *feedback.Recorder
	history  HistoryLister
	stored   EventLister
	recent   RecentEvents
}

// NewHistoryHandler creates a new HistoryHandler. Every source is optional.
func NewHistoryHandler(rec *feedback.Recorder, history HistoryLister, stored EventLister, recent RecentEvents) *HistoryHandler {
	return &HistoryHandler{
		feedback: rec,
		history:  history,
		stored:   stored,
		recent:   recent,
	}
}

// Feedback returns the per-behavior success counters.
func (h *HistoryHandler) Feedback(c *gin.Context) {
	if h.feedback == nil {
		c.JSON(http.StatusOK, []types.BehaviorStats{})
		return
	}
	type row struct {
		types.BehaviorStats
		SuccessRate float64 `json:"success_rate"`
	}
	all := h.feedback.All()
	out := make([]row, 0, len(all))
	for _, st := range all {
		out = append(out, row{BehaviorStats: st, SuccessRate: st.SuccessRate()})
	}
	c.JSON(http.StatusOK, out)
}

// History lists archived tasks, newest first.
func (h *HistoryHandler) History(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history store disabled"})
		return
	}

	filter := &types.TaskFilter{
		World:  c.Query("world"),
		Bot:    c.Query("bot"),
		JobID:  c.Query("job_id"),
		Limit:  queryInt(c, "limit", 50),
		Offset: queryInt(c, "offset", 0),
	}
	for _, s := range c.QueryArray("status") {
		filter.Status = append(filter.Status, types.TaskStatus(s))
	}

	tasks, err := h.history.List(filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if tasks == nil {
		tasks = []*types.ArchivedTask{}
	}
	c.JSON(http.StatusOK, tasks)
}

// Events returns the latest events, newest first. Stored events are
// preferred over the in-memory buffer.
func (h *HistoryHandler) Events(c *gin.Context) {
	limit := queryInt(c, "limit", 100)

	if h.stored != nil {
		events, err := h.stored.ListEvents(limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if events == nil {
			events = []*types.Event{}
		}
		c.JSON(http.StatusOK, events)
		return
	}

	out := []*types.Event{}
	if h.recent != nil {
		recent := h.recent.Recent(limit)
		for i := len(recent) - 1; i >= 0; i-- {
			out = append(out, recent[i])
		}
	}
	c.JSON(http.StatusOK, out)
}
