package store

import (
	"fmt"
	"time"

	"github.com/roea-ai/botmind/pkg/types"
)

// FeedbackStore persists per-behavior success counters.
type FeedbackStore struct {
	store *Store
}

// NewFeedbackStore creates a new FeedbackStore.
func NewFeedbackStore(store *Store) *FeedbackStore {
	return &FeedbackStore{store: store}
}

// SaveStats upserts the counters of one behavior.
func (fs *FeedbackStore) SaveStats(stats types.BehaviorStats) error {
	fs.store.mu.Lock()
	defer fs.store.mu.Unlock()

	last := 0
	if stats.LastSuccess {
		last = 1
	}
	_, err := fs.store.db.Exec(`
		INSERT INTO behavior_stats (behavior, successes, failures, last_success, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(behavior) DO UPDATE SET
			successes = excluded.successes,
			failures = excluded.failures,
			last_success = excluded.last_success,
			updated_at = excluded.updated_at
	`,
		stats.Behavior,
		int64(stats.Successes),
		int64(stats.Failures),
		last,
		stats.UpdatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to save stats for %s: %w", stats.Behavior, err)
	}
	return nil
}

// LoadStats returns every stored counter, ordered by behavior.
func (fs *FeedbackStore) LoadStats() ([]types.BehaviorStats, error) {
	fs.store.mu.RLock()
	defer fs.store.mu.RUnlock()

	rows, err := fs.store.db.Query(`
		SELECT behavior, successes, failures, last_success, updated_at
		FROM behavior_stats
		ORDER BY behavior
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stats: %w", err)
	}
	defer rows.Close()

	var out []types.BehaviorStats
	for rows.Next() {
		var (
			st                  types.BehaviorStats
			successes, failures int64
			last                int
			updatedAt           string
		)
		if err := rows.Scan(&st.Behavior, &successes, &failures, &last, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan stats: %w", err)
		}
		st.Successes = uint64(successes)
		st.Failures = uint64(failures)
		st.LastSuccess = last == 1
		st.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
		out = append(out, st)
	}
	return out, rows.Err()
}
