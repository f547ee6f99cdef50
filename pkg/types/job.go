package types

import "time"

// JobStatus is the aggregated state of a multi-bot job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"   // Created, never dispatched
	JobExecuting JobStatus = "executing"
	JobPaused    JobStatus = "paused"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// IsClosed reports whether the job reached a final status.
func (s JobStatus) IsClosed() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// SubTaskStatus tracks one subtask of a job.
type SubTaskStatus string

const (
	SubTaskPending    SubTaskStatus = "pending"     // Not assigned to any bot
	SubTaskAssigned   SubTaskStatus = "assigned"    // Queued on a bot
	SubTaskInProgress SubTaskStatus = "in_progress" // Executing or paused on a bot
	SubTaskCompleted  SubTaskStatus = "completed"
	SubTaskFailed     SubTaskStatus = "failed"
	SubTaskCancelled  SubTaskStatus = "cancelled"
)

// IsTerminal reports whether the subtask reached a closed state.
func (s SubTaskStatus) IsTerminal() bool {
	return s == SubTaskCompleted || s == SubTaskFailed || s == SubTaskCancelled
}

// SubTask is one piece of a decomposed job.
type SubTask struct {
	TaskID   string        `json:"task_id"`
	Type     string        `json:"type"`
	Target   string        `json:"target"`
	Quantity int           `json:"quantity"`
	Status   SubTaskStatus `json:"status"`
}

// SubTaskAssignment records which bot received a subtask.
type SubTaskAssignment struct {
	SubtaskID  string    `json:"subtask_id"`
	BotName    string    `json:"bot_name"`
	TaskID     string    `json:"task_id"`
	AssignedAt time.Time `json:"assigned_at"`
}

// MultiTaskJob is a compound goal split across several bots.
type MultiTaskJob struct {
	JobID       string                        `json:"job_id"`
	JobType     string                        `json:"job_type"`
	World       string                        `json:"world"`
	Owner       string                        `json:"owner"`
	Subtasks    []SubTask                     `json:"subtasks"`
	Assignments map[string]*SubTaskAssignment `json:"assignments"`
	Status      JobStatus                     `json:"status"`
	CreatedAt   time.Time                     `json:"created_at"`
	UpdatedAt   time.Time                     `json:"updated_at"`
}

// Clone returns a deep copy of the job.
func (j *MultiTaskJob) Clone() *MultiTaskJob {
	if j == nil {
		return nil
	}
	c := *j
	c.Subtasks = append([]SubTask(nil), j.Subtasks...)
	c.Assignments = make(map[string]*SubTaskAssignment, len(j.Assignments))
	for k, v := range j.Assignments {
		a := *v
		c.Assignments[k] = &a
	}
	return &c
}

// CountByStatus tallies subtasks per status.
func (j *MultiTaskJob) CountByStatus() map[SubTaskStatus]int {
	counts := make(map[SubTaskStatus]int)
	for _, st := range j.Subtasks {
		counts[st.Status]++
	}
	return counts
}
