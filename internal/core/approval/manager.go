// Package approval tracks owner-approval requests raised by task bodies.
// Requests are polled, never awaited, and expire on a fixed deadline.
package approval

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"

	"github.com/roea-ai/botmind/pkg/types"
)

// Status represents the resolution state of an approval.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusDenied   Status = "denied"
	StatusExpired  Status = "expired"
)

var (
	ErrNotFound = errors.New("approval not found")
	ErrNotOwner = errors.New("only the bot owner may answer")
	ErrResolved = errors.New("approval already resolved")
)

// Request is one owner-approval request.
type Request struct {
	ID         string     `json:"id"`
	World      string     `json:"world"`
	Bot        string     `json:"bot"`
	Owner      string     `json:"owner"`
	TaskID     string     `json:"task_id,omitempty"`
	Action     string     `json:"action"`
	Details    string     `json:"details,omitempty"`
	Status     Status     `json:"status"`
	AnsweredBy string     `json:"answered_by,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	Deadline   time.Time  `json:"deadline"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// Publisher broadcasts approval events. Optional.
type Publisher interface {
	Publish(event *types.Event)
}

// Manager holds approval requests in memory.
type Manager struct {
	timeout time.Duration
	events  Publisher
	logger  *log.Logger
	now     func() time.Time

	mu       sync.Mutex
	requests map[string]*Request
}

// NewManager creates a Manager whose requests expire after timeout.
func NewManager(timeout time.Duration, events Publisher, logger *log.Logger) *Manager {
	if timeout <= 0 {
		timeout = time.Minute
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{
		timeout:  timeout,
		events:   events,
		logger:   logger,
		now:      time.Now,
		requests: make(map[string]*Request),
	}
}

// Create opens a request and returns its ID.
func (m *Manager) Create(world, bot, owner, taskID, action, details string) string {
	now := m.now()
	r := &Request{
		ID:        uuid.NewString(),
		World:     world,
		Bot:       bot,
		Owner:     owner,
		TaskID:    taskID,
		Action:    action,
		Details:   details,
		Status:    StatusPending,
		CreatedAt: now,
		Deadline:  now.Add(m.timeout),
	}

	m.mu.Lock()
	m.requests[r.ID] = r
	m.mu.Unlock()

	m.logger.Printf("[%s] approval %s requested from %s: %s", bot, r.ID, owner, action)
	m.publish(types.EventApprovalOpened, r)
	return r.ID
}

// Answer resolves a pending request. Only the owner may answer.
func (m *Manager) Answer(id, principal string, approve bool) (Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.requests[id]
	if !ok {
		return Request{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	m.expireLocked(r)
	if r.Status != StatusPending {
		return *r, fmt.Errorf("%w: %s is %s", ErrResolved, id, r.Status)
	}
	if cases.Fold().String(principal) != cases.Fold().String(r.Owner) {
		return *r, fmt.Errorf("%w: %s", ErrNotOwner, principal)
	}

	now := m.now()
	r.Status = StatusDenied
	if approve {
		r.Status = StatusApproved
	}
	r.AnsweredBy = principal
	r.ResolvedAt = &now
	m.publish(types.EventApprovalClosed, r)
	return *r, nil
}

// Poll returns the current state of a request, expiring it if its deadline passed.
func (m *Manager) Poll(id string) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.requests[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	m.expireLocked(r)
	return r.Status, nil
}

// Get returns a copy of a request.
func (m *Manager) Get(id string) (Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.requests[id]
	if !ok {
		return Request{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	m.expireLocked(r)
	return *r, nil
}

// List returns requests owned by owner (all when empty), oldest first.
func (m *Manager) List(owner string, pendingOnly bool) []Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Request
	for _, r := range m.requests {
		m.expireLocked(r)
		if pendingOnly && r.Status != StatusPending {
			continue
		}
		if owner != "" && cases.Fold().String(owner) != cases.Fold().String(r.Owner) {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Forget drops a request once its asker no longer needs it.
func (m *Manager) Forget(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.requests, id)
}

func (m *Manager) expireLocked(r *Request) {
	if r.Status != StatusPending {
		return
	}
	now := m.now()
	if now.Before(r.Deadline) {
		return
	}
	r.Status = StatusExpired
	r.ResolvedAt = &now
	m.publish(types.EventApprovalClosed, r)
}

func (m *Manager) publish(eventType types.EventType, r *Request) {
	if m.events == nil {
		return
	}
	m.events.Publish(&types.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		World:     r.World,
		Bot:       r.Bot,
		TaskID:    r.TaskID,
		NewStatus: string(r.Status),
		Message:   r.Action,
		Timestamp: m.now(),
	})
}
