package store

import (
	"encoding/json"
	"fmt"

	"github.com/roea-ai/botmind/pkg/types"
)

// JobStore persists job snapshots as JSON.
type JobStore struct {
	store *Store
}

// NewJobStore creates a new JobStore.
func NewJobStore(store *Store) *JobStore {
	return &JobStore{store: store}
}

// SaveJob upserts a job snapshot.
func (js *JobStore) SaveJob(job *types.MultiTaskJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	js.store.mu.Lock()
	defer js.store.mu.Unlock()

	_, err = js.store.db.Exec(`
		INSERT INTO jobs (id, world, owner, status, snapshot, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			snapshot = excluded.snapshot,
			updated_at = excluded.updated_at
	`,
		job.JobID,
		job.World,
		job.Owner,
		string(job.Status),
		string(data),
		job.UpdatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to save job %s: %w", job.JobID, err)
	}
	return nil
}

// LoadJobs returns stored snapshots, optionally filtered by status.
func (js *JobStore) LoadJobs(status ...types.JobStatus) ([]*types.MultiTaskJob, error) {
	js.store.mu.RLock()
	defer js.store.mu.RUnlock()

	rows, err := js.store.db.Query("SELECT status, snapshot FROM jobs ORDER BY updated_at")
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	want := make(map[string]bool, len(status))
	for _, s := range status {
		want[string(s)] = true
	}

	var out []*types.MultiTaskJob
	for rows.Next() {
		var st, snapshot string
		if err := rows.Scan(&st, &snapshot); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		if len(want) > 0 && !want[st] {
			continue
		}
		var job types.MultiTaskJob
		if err := json.Unmarshal([]byte(snapshot), &job); err != nil {
			return nil, fmt.Errorf("failed to decode job: %w", err)
		}
		out = append(out, &job)
	}
	return out, rows.Err()
}
