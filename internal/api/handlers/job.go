package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/roea-ai/botmind/internal/core/dispatch"
)

// JobHandler handles multi-bot jobs.
type JobHandler struct {
	dispatcher *dispatch.Dispatcher
}

// NewJobHandler creates a new JobHandler.
func NewJobHandler(dispatcher *dispatch.Dispatcher) *JobHandler {
	return &JobHandler{dispatcher: dispatcher}
}

type subtaskRequest struct {
	Type     string `json:"type"`
	Target   string `json:"target"`
	Quantity int    `json:"quantity"`
}

type createJobRequest struct {
	JobType  string           `json:"job_type"`
	Subtasks []subtaskRequest `json:"subtasks"`
}

// Create opens a job owned by the principal, with optional initial subtasks.
func (h *JobHandler) Create(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}
	var req createJobRequest
	if !bindValidated(c, jobSchema, &req) {
		return
	}

	job, err := h.dispatcher.CreateJob(principal, c.Param("world"), req.JobType)
	if err != nil {
		respondError(c, err)
		return
	}
	for _, st := range req.Subtasks {
		if _, err := h.dispatcher.AddSubtask(principal, job.JobID, st.Type, st.Target, st.Quantity); err != nil {
			respondError(c, err)
			return
		}
	}

	job, err = h.dispatcher.Job(job.JobID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, job)
}

// List returns the jobs of a world.
func (h *JobHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, h.dispatcher.Jobs(c.Param("world")))
}

// Get returns one job after pulling fresh subtask state.
func (h *JobHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if err := h.dispatcher.RefreshJob(id); err != nil {
		respondError(c, err)
		return
	}
	job, err := h.dispatcher.Job(id)
	if err != nil {
		respondError(c, err)
		return
	}
	if !strings.EqualFold(job.World, c.Param("world")) {
		respondError(c, fmt.Errorf("%w: %s in %s", dispatch.ErrJobNotFound, id, c.Param("world")))
		return
	}
	c.JSON(http.StatusOK, job)
}

// AddSubtask appends a subtask to a job.
func (h *JobHandler) AddSubtask(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}
	var req subtaskRequest
	if !bindValidated(c, subtaskSchema, &req) {
		return
	}

	st, err := h.dispatcher.AddSubtask(principal, c.Param("id"), req.Type, req.Target, req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, st)
}

// Dispatch assigns pending subtasks to the owner's available bots.
func (h *JobHandler) Dispatch(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}
	n, err := h.dispatcher.DispatchSubtasks(principal, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	h.respondJob(c, gin.H{"assigned": n})
}

// Pause pauses a job's running subtasks.
func (h *JobHandler) Pause(c *gin.Context) {
	h.action(c, h.dispatcher.PauseJob)
}

// Resume resumes a job's paused subtasks.
func (h *JobHandler) Resume(c *gin.Context) {
	h.action(c, h.dispatcher.ResumeJob)
}

// Cancel cancels every open subtask of a job.
func (h *JobHandler) Cancel(c *gin.Context) {
	h.action(c, h.dispatcher.CancelJob)
}

// Redispatch returns a subtask to pending.
func (h *JobHandler) Redispatch(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}
	if err := h.dispatcher.RedispatchSubtask(principal, c.Param("id"), c.Param("sid")); err != nil {
		respondError(c, err)
		return
	}
	h.respondJob(c, nil)
}

func (h *JobHandler) action(c *gin.Context, op func(principal, jobID string) error) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}
	if err := op(principal, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	h.respondJob(c, nil)
}

func (h *JobHandler) respondJob(c *gin.Context, extra gin.H) {
	job, err := h.dispatcher.Job(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	out := gin.H{"job": job}
	for k, v := range extra {
		out[k] = v
	}
	c.JSON(http.StatusOK, out)
}
