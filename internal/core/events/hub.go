// Package events fans scheduler events out to subscribers.
package events

import (
	"log"
	"sync"

	"github.com/roea-ai/botmind/pkg/types"
)

// Store persists events. Optional.
type Store interface {
	StoreEvent(event *types.Event) error
}

const (
	subscriberBuffer = 100
	defaultRecent    = 256
)

// Hub broadcasts events without ever blocking the publisher. Subscribers
// that fall behind miss events.
type Hub struct {
	store  Store
	logger *log.Logger

	subscribersMu sync.RWMutex
	subscribers   map[string]chan *types.Event

	recentMu sync.Mutex
	recent   []*types.Event
	limit    int
}

// NewHub creates a new event Hub.
func NewHub(store Store, logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{
		store:       store,
		logger:      logger,
		subscribers: make(map[string]chan *types.Event),
		limit:       defaultRecent,
	}
}

// Publish stores the event and notifies subscribers.
func (h *Hub) Publish(event *types.Event) {
	if event == nil {
		return
	}

	if h.store != nil {
		if err := h.store.StoreEvent(event); err != nil {
			h.logger.Printf("failed to store event %s: %v", event.Type, err)
		}
	}

	h.recentMu.Lock()
	h.recent = append(h.recent, event)
	if len(h.recent) > h.limit {
		h.recent = h.recent[len(h.recent)-h.limit:]
	}
	h.recentMu.Unlock()

	h.subscribersMu.RLock()
	defer h.subscribersMu.RUnlock()

	for _, ch := range h.subscribers {
		select {
		case ch <- event:
		default:
			// Channel full, skip
		}
	}
}

// Subscribe creates a new event subscription.
func (h *Hub) Subscribe(id string) <-chan *types.Event {
	h.subscribersMu.Lock()
	defer h.subscribersMu.Unlock()

	if old, ok := h.subscribers[id]; ok {
		close(old)
	}
	ch := make(chan *types.Event, subscriberBuffer)
	h.subscribers[id] = ch
	return ch
}

// Unsubscribe removes an event subscription.
func (h *Hub) Unsubscribe(id string) {
	h.subscribersMu.Lock()
	defer h.subscribersMu.Unlock()

	if ch, ok := h.subscribers[id]; ok {
		close(ch)
		delete(h.subscribers, id)
	}
}

// Recent returns up to n of the latest events, oldest first.
func (h *Hub) Recent(n int) []*types.Event {
	h.recentMu.Lock()
	defer h.recentMu.Unlock()

	if n <= 0 || n > len(h.recent) {
		n = len(h.recent)
	}
	out := make([]*types.Event, n)
	copy(out, h.recent[len(h.recent)-n:])
	return out
}
