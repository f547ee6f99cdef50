package types

import "time"

// EventType names a scheduler event.
type EventType string

const (
	EventTaskQueued     EventType = "task_queued"
	EventTaskStarted    EventType = "task_started"
	EventTaskPaused     EventType = "task_paused"
	EventTaskResumed    EventType = "task_resumed"
	EventTaskCompleted  EventType = "task_completed"
	EventTaskFailed     EventType = "task_failed"
	EventTaskCancelled  EventType = "task_cancelled"
	EventModeChanged    EventType = "mode_changed"
	EventBotRegistered  EventType = "bot_registered"
	EventBotRemoved     EventType = "bot_removed"
	EventJobUpdated     EventType = "job_updated"
	EventApprovalOpened EventType = "approval_requested"
	EventApprovalClosed EventType = "approval_resolved"
)

// Event represents a state change broadcast to subscribers.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	World     string    `json:"world,omitempty"`
	Bot       string    `json:"bot,omitempty"`
	TaskID    string    `json:"task_id,omitempty"`
	JobID     string    `json:"job_id,omitempty"`
	OldStatus string    `json:"old_status,omitempty"`
	NewStatus string    `json:"new_status,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// WebSocketMessage is a message sent to WebSocket clients.
type WebSocketMessage struct {
	Type    string      `json:"type"`    // "event", "snapshot"
	Payload interface{} `json:"payload"` // The actual data
}
