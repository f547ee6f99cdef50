// Package remote runs task bodies in an external worker. The worker finds
// open sessions through the tool-call endpoint and drives each body to
// completion or failure.
package remote

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roea-ai/botmind/internal/core/execution"
	"github.com/roea-ai/botmind/pkg/types"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionClosed   = errors.New("session already closed")
	ErrSessionPaused   = errors.New("session is paused")
)

// Session is the worker-visible state of one remote body.
type Session struct {
	ID         string            `json:"id"`
	TaskID     string            `json:"task_id"`
	World      string            `json:"world"`
	Bot        string            `json:"bot"`
	Kind       types.CommandKind `json:"kind"`
	Parameters map[string]string `json:"parameters,omitempty"`
	Percent    int               `json:"percent_complete"`
	Message    string            `json:"message,omitempty"`
	Paused     bool              `json:"paused"`
	Done       bool              `json:"done"`
	Failure    string            `json:"failure,omitempty"`
	StartedAt  time.Time         `json:"started_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

func (s *Session) closed() bool {
	return s.Done || s.Failure != ""
}

// Backend holds the remote sessions of every bot.
type Backend struct {
	kinds  map[types.CommandKind]bool
	logger *log.Logger

	mu       sync.Mutex
	sessions map[string]*Session // by session ID
	byTask   map[string]string   // task ID -> session ID
}

// NewBackend creates a Backend for the given command kinds.
func NewBackend(kinds []types.CommandKind, logger *log.Logger) *Backend {
	if logger == nil {
		logger = log.Default()
	}
	b := &Backend{
		kinds:    make(map[types.CommandKind]bool, len(kinds)),
		logger:   logger,
		sessions: make(map[string]*Session),
		byTask:   make(map[string]string),
	}
	for _, k := range kinds {
		b.kinds[k] = true
	}
	return b
}

// Kinds returns the command kinds routed to remote workers.
func (b *Backend) Kinds() []types.CommandKind {
	out := make([]types.CommandKind, 0, len(b.kinds))
	for k := range b.kinds {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// For returns the executor backend of one bot.
func (b *Backend) For(world, bot string) execution.Backend {
	return &botBackend{parent: b, world: world, bot: bot}
}

func (b *Backend) open(world, bot string, t *types.Task) *Session {
	now := time.Now()
	s := &Session{
		ID:         uuid.NewString(),
		TaskID:     t.ID,
		World:      world,
		Bot:        bot,
		Kind:       t.Kind,
		Parameters: copyParams(t.Parameters),
		StartedAt:  now,
		UpdatedAt:  now,
	}
	if p := t.PauseData["percent"]; p != "" {
		fmt.Sscanf(p, "%d", &s.Percent)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if old, ok := b.byTask[t.ID]; ok {
		delete(b.sessions, old)
	}
	b.sessions[s.ID] = s
	b.byTask[t.ID] = s.ID
	return s
}

func (b *Backend) sessionForTask(taskID string) (*Session, bool) {
	id, ok := b.byTask[taskID]
	if !ok {
		return nil, false
	}
	s, ok := b.sessions[id]
	return s, ok
}

func (b *Backend) dropLocked(s *Session) {
	delete(b.sessions, s.ID)
	delete(b.byTask, s.TaskID)
}

// Sessions lists open sessions, oldest first. An empty world or bot matches
// everything.
func (b *Backend) Sessions(world, bot string) []Session {
	b.mu.Lock()
	out := make([]Session, 0, len(b.sessions))
	for _, s := range b.sessions {
		if s.closed() {
			continue
		}
		if (world == "" || s.World == world) && (bot == "" || s.Bot == bot) {
			c := *s
			c.Parameters = copyParams(s.Parameters)
			out = append(out, c)
		}
	}
	b.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

// Session returns one session.
func (b *Backend) Session(id string) (Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.sessions[id]
	if !ok {
		return Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	c := *s
	c.Parameters = copyParams(s.Parameters)
	return c, nil
}

func (b *Backend) update(id string, fn func(s *Session) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if s.closed() {
		return fmt.Errorf("%w: %s", ErrSessionClosed, id)
	}
	if err := fn(s); err != nil {
		return err
	}
	s.UpdatedAt = time.Now()
	return nil
}

// ReportProgress records worker progress. Paused sessions reject progress.
func (b *Backend) ReportProgress(id string, percent int, message string) error {
	return b.update(id, func(s *Session) error {
		if s.Paused {
			return fmt.Errorf("%w: %s", ErrSessionPaused, id)
		}
		if percent < 0 {
			percent = 0
		}
		if percent > 100 {
			percent = 100
		}
		s.Percent = percent
		s.Message = message
		return nil
	})
}

// Complete marks the body done. The scheduler closes the task on its next
// tick.
func (b *Backend) Complete(id, summary string) error {
	err := b.update(id, func(s *Session) error {
		s.Done = true
		s.Percent = 100
		s.Message = summary
		return nil
	})
	if err == nil {
		b.logger.Printf("remote: session %s completed", id)
	}
	return err
}

// Fail marks the body failed.
func (b *Backend) Fail(id, reason string) error {
	if reason == "" {
		reason = "remote body failed"
	}
	err := b.update(id, func(s *Session) error {
		s.Failure = reason
		return nil
	})
	if err == nil {
		b.logger.Printf("remote: session %s failed: %s", id, reason)
	}
	return err
}

type botBackend struct {
	parent *Backend
	world  string
	bot    string
}

var _ execution.Backend = (*botBackend)(nil)

func (bb *botBackend) Name() string { return "remote" }

func (bb *botBackend) CanExecute(t *types.Task) bool {
	return bb.parent.kinds[t.Kind]
}

func (bb *botBackend) Execute(t *types.Task) error {
	s := bb.parent.open(bb.world, bb.bot, t)
	bb.parent.logger.Printf("[%s] remote: session %s opened for %s %s", bb.bot, s.ID, t.Kind, t.ID)
	return nil
}

func (bb *botBackend) IsComplete(t *types.Task) bool {
	b := bb.parent
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.sessionForTask(t.ID)
	if !ok || !s.Done {
		return false
	}
	b.dropLocked(s)
	return true
}

func (bb *botBackend) Failure(t *types.Task) (string, bool) {
	b := bb.parent
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.sessionForTask(t.ID)
	if !ok || s.Failure == "" {
		return "", false
	}
	b.dropLocked(s)
	return s.Failure, true
}

func (bb *botBackend) Pause(t *types.Task) error {
	b := bb.parent
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.sessionForTask(t.ID)
	if !ok {
		return fmt.Errorf("%w: task %s", ErrSessionNotFound, t.ID)
	}
	s.Paused = true
	t.PauseData = map[string]string{
		"session": s.ID,
		"percent": fmt.Sprintf("%d", s.Percent),
	}
	return nil
}

func (bb *botBackend) Resume(t *types.Task) error {
	b := bb.parent
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.sessionForTask(t.ID)
	if !ok {
		return fmt.Errorf("%w: task %s", ErrSessionNotFound, t.ID)
	}
	s.Paused = false
	return nil
}

func (bb *botBackend) Cancel(t *types.Task) error {
	b := bb.parent
	b.mu.Lock()
	defer b.mu.Unlock()

	if s, ok := b.sessionForTask(t.ID); ok {
		b.dropLocked(s)
	}
	return nil
}

func copyParams(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
