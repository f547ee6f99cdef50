// Package lock provides per-bot ownership locking and lifecycle-command authorization.
package lock

import (
	"log"
	"sync"

	"golang.org/x/text/cases"

	"github.com/roea-ai/botmind/pkg/types"
)

// TaskLock is an ownership claim on the executing task.
type TaskLock struct {
	TaskID string `json:"task_id"`
	Owner  string `json:"owner"`
}

// Manager decides whether a principal may issue lifecycle commands to one bot.
type Manager struct {
	mu           sync.RWMutex
	bot          string
	primaryOwner string
	trusted      map[string]string // folded -> display name
	lock         *TaskLock
	logger       *log.Logger
}

// NewManager creates a lock Manager for a bot owned by primaryOwner.
func NewManager(bot, primaryOwner string, trusted []string, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	m := &Manager{
		bot:          bot,
		primaryOwner: primaryOwner,
		trusted:      make(map[string]string),
		logger:       logger,
	}
	for _, p := range trusted {
		m.trusted[fold(p)] = p
	}
	return m
}

func fold(name string) string {
	return cases.Fold().String(name)
}

// PrimaryOwner returns the bot's primary owner.
func (m *Manager) PrimaryOwner() string {
	return m.primaryOwner
}

// IsPrimaryOwner reports whether the principal is the primary owner.
func (m *Manager) IsPrimaryOwner(principal string) bool {
	return principal != "" && fold(principal) == fold(m.primaryOwner)
}

// AuthorizeCommand reports whether principal may issue command against this bot.
func (m *Manager) AuthorizeCommand(principal, command string) bool {
	if m.IsPrimaryOwner(principal) {
		return true
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	key := fold(principal)
	if m.lock != nil {
		if fold(m.lock.Owner) == key {
			return true
		}
		m.logger.Printf("[%s] denied %s for %s: task %s locked by %s", m.bot, command, principal, m.lock.TaskID, m.lock.Owner)
		return false
	}

	if _, ok := m.trusted[key]; ok {
		return true
	}
	m.logger.Printf("[%s] denied %s for %s: not trusted", m.bot, command, principal)
	return false
}

// LockTask claims the executing task for owner. An empty owner leaves the bot unlocked.
func (m *Manager) LockTask(task *types.Task, owner string) {
	if task == nil || owner == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lock = &TaskLock{TaskID: task.ID, Owner: owner}
}

// UnlockTask releases the current lock, if any.
func (m *Manager) UnlockTask() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lock = nil
}

// ForceUnlock clears the lock regardless of holder. Only the primary owner may do this.
func (m *Manager) ForceUnlock(principal string) bool {
	if !m.IsPrimaryOwner(principal) {
		m.logger.Printf("[%s] denied force-unlock for %s", m.bot, principal)
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lock = nil
	return true
}

// CurrentLock returns the held lock.
func (m *Manager) CurrentLock() (TaskLock, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.lock == nil {
		return TaskLock{}, false
	}
	return *m.lock, true
}

// AddTrusted adds a principal to the trusted list.
func (m *Manager) AddTrusted(principal string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.trusted[fold(principal)] = principal
}

// RemoveTrusted removes a principal from the trusted list.
func (m *Manager) RemoveTrusted(principal string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.trusted, fold(principal))
}

// Trusted returns the trusted principals.
func (m *Manager) Trusted() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.trusted))
	for _, name := range m.trusted {
		out = append(out, name)
	}
	return out
}
