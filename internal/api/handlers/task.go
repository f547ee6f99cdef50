package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/roea-ai/botmind/internal/command"
	"github.com/roea-ai/botmind/internal/core/agent"
	"github.com/roea-ai/botmind/pkg/types"
)

// TaskHandler handles the task lifecycle of one bot.
type TaskHandler struct {
	worlds *agent.Worlds
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(worlds *agent.Worlds) *TaskHandler {
	return &TaskHandler{worlds: worlds}
}

type queueRequest struct {
	Command    string            `json:"command"`
	Kind       string            `json:"kind"`
	Parameters map[string]string `json:"parameters"`
	Priority   string            `json:"priority"`
}

func (r queueRequest) parse() (types.ParsedCommand, error) {
	if r.Command != "" {
		cmd, err := command.Parse(r.Command)
		if err != nil {
			return cmd, err
		}
		for k, v := range r.Parameters {
			if cmd.Parameters == nil {
				cmd.Parameters = make(map[string]string)
			}
			cmd.Parameters[strings.ToLower(k)] = v
		}
		return cmd, nil
	}

	kind, ok := command.Kind(r.Kind)
	if !ok {
		return types.ParsedCommand{}, fmt.Errorf("%w: %s", command.ErrUnknownKind, r.Kind)
	}
	return types.ParsedCommand{Kind: kind, Parameters: r.Parameters}, nil
}

// Queue queues a command on a bot. Without a priority the command kind's
// priority applies.
func (h *TaskHandler) Queue(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}
	b, ok := lookupBot(h.worlds, c)
	if !ok {
		return
	}

	var req queueRequest
	if !bindValidated(c, commandSchema, &req) {
		return
	}
	cmd, err := req.parse()
	if err != nil {
		respondError(c, err)
		return
	}
	priority := types.TaskPriority(0)
	if req.Priority != "" {
		priority, _ = types.ParsePriority(req.Priority)
	}

	t, err := b.QueueTask(principal, cmd, priority)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

// Current returns the bot's current task, or null.
func (h *TaskHandler) Current(c *gin.Context) {
	b, ok := lookupBot(h.worlds, c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, b.Tasks().CurrentTask())
}

// Queued returns the queued tasks in dispatch order.
func (h *TaskHandler) Queued(c *gin.Context) {
	b, ok := lookupBot(h.worlds, c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, b.Tasks().QueuedTasks())
}

// Completed returns the bot's in-memory task history.
func (h *TaskHandler) Completed(c *gin.Context) {
	b, ok := lookupBot(h.worlds, c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, b.Tasks().CompletedTasks())
}

// Pause pauses the current task.
func (h *TaskHandler) Pause(c *gin.Context) {
	h.lifecycle(c, func(b *agent.Bot, principal string) (bool, error) {
		return b.PauseCurrentTask(principal)
	})
}

// Resume resumes the current task.
func (h *TaskHandler) Resume(c *gin.Context) {
	h.lifecycle(c, func(b *agent.Bot, principal string) (bool, error) {
		return b.ResumeCurrentTask(principal)
	})
}

// Cancel cancels the current task.
func (h *TaskHandler) Cancel(c *gin.Context) {
	reason := c.DefaultQuery("reason", "cancelled by owner")
	h.lifecycle(c, func(b *agent.Bot, principal string) (bool, error) {
		return b.CancelCurrentTask(principal, reason)
	})
}

// Clear drops every queued task.
func (h *TaskHandler) Clear(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}
	b, ok := lookupBot(h.worlds, c)
	if !ok {
		return
	}
	n, err := b.ClearQueue(principal)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": n})
}

// Delete removes one queued task.
func (h *TaskHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	h.lifecycle(c, func(b *agent.Bot, principal string) (bool, error) {
		return b.RemoveTask(principal, id)
	})
}

// lifecycle runs a gated operation. A no-op answers 200 with applied=false.
func (h *TaskHandler) lifecycle(c *gin.Context, op func(b *agent.Bot, principal string) (bool, error)) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}
	b, ok := lookupBot(h.worlds, c)
	if !ok {
		return
	}
	applied, err := op(b, principal)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"applied": applied, "current": b.Tasks().CurrentTask()})
}
