package store

import (
	"fmt"
	"time"

	"github.com/roea-ai/botmind/pkg/types"
)

// EventStore keeps an audit trail of scheduler events.
type EventStore struct {
	store *Store
}

// NewEventStore creates a new EventStore.
func NewEventStore(store *Store) *EventStore {
	return &EventStore{store: store}
}

// StoreEvent stores one event.
func (es *EventStore) StoreEvent(event *types.Event) error {
	es.store.mu.Lock()
	defer es.store.mu.Unlock()

	_, err := es.store.db.Exec(`
		INSERT OR IGNORE INTO events (
			id, type, world, bot, task_id, job_id,
			old_status, new_status, message, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		event.ID,
		string(event.Type),
		event.World,
		event.Bot,
		event.TaskID,
		event.JobID,
		event.OldStatus,
		event.NewStatus,
		event.Message,
		event.Timestamp.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to store event: %w", err)
	}
	return nil
}

// ListEvents returns up to limit events, newest first.
func (es *EventStore) ListEvents(limit int) ([]*types.Event, error) {
	if limit <= 0 {
		limit = 100
	}

	es.store.mu.RLock()
	defer es.store.mu.RUnlock()

	rows, err := es.store.db.Query(`
		SELECT id, type, world, bot, task_id, job_id,
			old_status, new_status, message, timestamp
		FROM events
		ORDER BY timestamp DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var out []*types.Event
	for rows.Next() {
		var (
			e         types.Event
			eventType string
			timestamp string
		)
		err := rows.Scan(&e.ID, &eventType, &e.World, &e.Bot, &e.TaskID, &e.JobID,
			&e.OldStatus, &e.NewStatus, &e.Message, &timestamp)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Type = types.EventType(eventType)
		e.Timestamp, _ = time.Parse(timeLayout, timestamp)
		out = append(out, &e)
	}
	return out, rows.Err()
}
