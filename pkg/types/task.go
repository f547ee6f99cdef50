// Package types provides shared type definitions for the botmind scheduler.
package types

import (
	"time"
)

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	TaskQueued    TaskStatus = "queued"    // Waiting in the priority queue
	TaskExecuting TaskStatus = "executing" // Current task of its bot
	TaskPaused    TaskStatus = "paused"    // Current task, suspended
	TaskCompleted TaskStatus = "completed" // Closed successfully
	TaskFailed    TaskStatus = "failed"    // Closed (failed)
	TaskCancelled TaskStatus = "cancelled" // Closed (cancelled)
)

// IsTerminal reports whether the status is one of the closed states.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskCompleted || s == TaskFailed || s == TaskCancelled
}

// TaskPriority orders queued tasks. Higher values start first.
type TaskPriority int

const (
	PriorityDeferred TaskPriority = 1
	PriorityLow      TaskPriority = 3
	PriorityNormal   TaskPriority = 5
	PriorityHigh     TaskPriority = 7
	PriorityCritical TaskPriority = 10
)

// String returns the priority name.
func (p TaskPriority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	case PriorityLow:
		return "low"
	case PriorityDeferred:
		return "deferred"
	}
	return "unknown"
}

// ParsePriority maps a priority name back to its value.
func ParsePriority(name string) (TaskPriority, bool) {
	switch name {
	case "critical":
		return PriorityCritical, true
	case "high":
		return PriorityHigh, true
	case "normal":
		return PriorityNormal, true
	case "low":
		return PriorityLow, true
	case "deferred":
		return PriorityDeferred, true
	}
	return 0, false
}

// CommandKind identifies what a task asks the bot to do.
type CommandKind string

const (
	CommandAttack  CommandKind = "ATTACK"
	CommandDefend  CommandKind = "DEFEND"
	CommandFlee    CommandKind = "FLEE"
	CommandFollow  CommandKind = "FOLLOW"
	CommandCome    CommandKind = "COME"
	CommandGuard   CommandKind = "GUARD"
	CommandMine    CommandKind = "MINE"
	CommandGather  CommandKind = "GATHER"
	CommandFarm    CommandKind = "FARM"
	CommandBuild   CommandKind = "BUILD"
	CommandCraft   CommandKind = "CRAFT"
	CommandDeliver CommandKind = "DELIVER"
	CommandTrade   CommandKind = "TRADE"
	CommandFish    CommandKind = "FISH"
	CommandExplore CommandKind = "EXPLORE"
	CommandIdle    CommandKind = "IDLE"
)

// ParsedCommand is the command parser's output: a kind plus its arguments.
type ParsedCommand struct {
	Kind       CommandKind       `json:"kind"`
	Parameters map[string]string `json:"parameters,omitempty"`
}

// Task represents one schedulable unit of work for a bot.
type Task struct {
	ID            string            `json:"id"`
	Kind          CommandKind       `json:"kind"`
	Priority      TaskPriority      `json:"priority"`
	Parameters    map[string]string `json:"parameters,omitempty"`
	Status        TaskStatus        `json:"status"`
	IssuedBy      string            `json:"issued_by,omitempty"`     // Principal that queued it; lock owner while executing
	JobID         string            `json:"job_id,omitempty"`        // Set for delegated subtasks
	CreatedAt     time.Time         `json:"created_at"`
	StartedAt     *time.Time        `json:"started_at,omitempty"`
	CompletedAt   *time.Time        `json:"completed_at,omitempty"`
	FailureReason string            `json:"failure_reason,omitempty"`
	PauseData     map[string]string `json:"pause_data,omitempty"`
	PauseCount    int               `json:"pause_count,omitempty"`   // Incremented on every EXECUTING -> PAUSED
	StartAttempts int               `json:"start_attempts,omitempty"` // Failed Execute calls so far
}

// Clone returns a deep copy safe to hand to other goroutines.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	c.Parameters = cloneStrings(t.Parameters)
	c.PauseData = cloneStrings(t.PauseData)
	if t.StartedAt != nil {
		ts := *t.StartedAt
		c.StartedAt = &ts
	}
	if t.CompletedAt != nil {
		ts := *t.CompletedAt
		c.CompletedAt = &ts
	}
	return &c
}

// Param returns a parameter or the fallback when it is absent.
func (t *Task) Param(key, fallback string) string {
	if v, ok := t.Parameters[key]; ok && v != "" {
		return v
	}
	return fallback
}

func cloneStrings(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// TaskFilter defines criteria for filtering archived tasks.
type TaskFilter struct {
	World  string       `json:"world,omitempty"`
	Bot    string       `json:"bot,omitempty"`
	Status []TaskStatus `json:"status,omitempty"`
	JobID  string       `json:"job_id,omitempty"`
	Limit  int          `json:"limit,omitempty"`
	Offset int          `json:"offset,omitempty"`
}

// ArchivedTask is a terminal task as stored in the history database.
type ArchivedTask struct {
	World string `json:"world"`
	Bot   string `json:"bot"`
	Task  *Task  `json:"task"`
}

// TaskProgress represents progress reported by a task body.
type TaskProgress struct {
	TaskID          string `json:"task_id"`
	Message         string `json:"message"`
	PercentComplete int    `json:"percent_complete"` // 0-100
}
