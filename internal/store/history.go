package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roea-ai/botmind/internal/crypto"
	"github.com/roea-ai/botmind/pkg/types"
)

const defaultHistoryBuffer = 256

// Fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type archived struct {
	world string
	bot   string
	task  *types.Task
}

// HistoryStore archives terminal tasks. Archive never blocks the scheduler:
// records are written by a background goroutine and dropped when its buffer
// is full.
type HistoryStore struct {
	store    *Store
	payloads *crypto.PayloadService
	logger   *log.Logger

	queue   chan archived
	done    chan struct{}
	closing sync.Once
	dropped atomic.Uint64
}

// NewHistoryStore starts the writer. With payloads set, task parameters
// are stored encrypted.
func NewHistoryStore(store *Store, payloads *crypto.PayloadService, buffer int, logger *log.Logger) *HistoryStore {
	if buffer <= 0 {
		buffer = defaultHistoryBuffer
	}
	if logger == nil {
		logger = log.Default()
	}
	h := &HistoryStore{
		store:    store,
		payloads: payloads,
		logger:   logger,
		queue:    make(chan archived, buffer),
		done:     make(chan struct{}),
	}
	go h.run()
	return h
}

// Archive queues a terminal task for writing.
func (h *HistoryStore) Archive(world, bot string, t *types.Task) {
	select {
	case h.queue <- archived{world: world, bot: bot, task: t.Clone()}:
	default:
		if n := h.dropped.Add(1); n == 1 || n%100 == 0 {
			h.logger.Printf("history buffer full, dropped %d records", n)
		}
	}
}

// Dropped returns how many records were discarded on a full buffer.
func (h *HistoryStore) Dropped() uint64 {
	return h.dropped.Load()
}

// Close flushes pending records and stops the writer.
func (h *HistoryStore) Close() {
	h.closing.Do(func() { close(h.queue) })
	<-h.done
}

func (h *HistoryStore) run() {
	defer close(h.done)
	for rec := range h.queue {
		if err := h.save(rec); err != nil {
			h.logger.Printf("failed to archive task %s: %v", rec.task.ID, err)
		}
	}
}

func (h *HistoryStore) save(rec archived) error {
	t := rec.task

	var params, sealed sql.NullString
	if len(t.Parameters) > 0 {
		if h.payloads != nil {
			payload, err := h.payloads.EncryptParams(t.Parameters)
			if err != nil {
				return fmt.Errorf("failed to encrypt params: %w", err)
			}
			data, _ := json.Marshal(payload)
			sealed = sql.NullString{String: string(data), Valid: true}
		} else {
			data, _ := json.Marshal(t.Parameters)
			params = sql.NullString{String: string(data), Valid: true}
		}
	}

	h.store.mu.Lock()
	defer h.store.mu.Unlock()

	_, err := h.store.db.Exec(`
		INSERT OR REPLACE INTO task_history (
			id, world, bot, kind, priority, status, issued_by, job_id,
			params, params_encrypted, failure_reason,
			created_at, started_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		t.ID,
		rec.world,
		rec.bot,
		string(t.Kind),
		int(t.Priority),
		string(t.Status),
		t.IssuedBy,
		t.JobID,
		params,
		sealed,
		t.FailureReason,
		t.CreatedAt.UTC().Format(timeLayout),
		formatTime(t.StartedAt),
		formatTime(t.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

// List returns archived tasks matching the filter, newest first.
func (h *HistoryStore) List(filter *types.TaskFilter) ([]*types.ArchivedTask, error) {
	var where []string
	var args []interface{}

	if filter != nil {
		if filter.World != "" {
			where = append(where, "world = ? COLLATE NOCASE")
			args = append(args, filter.World)
		}
		if filter.Bot != "" {
			where = append(where, "bot = ? COLLATE NOCASE")
			args = append(args, filter.Bot)
		}
		if filter.JobID != "" {
			where = append(where, "job_id = ?")
			args = append(args, filter.JobID)
		}
		if len(filter.Status) > 0 {
			placeholders := make([]string, len(filter.Status))
			for i, s := range filter.Status {
				placeholders[i] = "?"
				args = append(args, string(s))
			}
			where = append(where, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
		}
	}

	query := `
		SELECT id, world, bot, kind, priority, status, issued_by, job_id,
			params, params_encrypted, failure_reason,
			created_at, started_at, completed_at
		FROM task_history
	`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY completed_at DESC"

	if filter != nil && filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	h.store.mu.RLock()
	defer h.store.mu.RUnlock()

	rows, err := h.store.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var out []*types.ArchivedTask
	for rows.Next() {
		rec, err := h.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (h *HistoryStore) scan(rows *sql.Rows) (*types.ArchivedTask, error) {
	var (
		rec                      types.ArchivedTask
		t                        types.Task
		kind, status             string
		priority                 int
		issuedBy, jobID, failure sql.NullString
		params, sealed           sql.NullString
		createdAt                string
		startedAt, completedAt   sql.NullString
	)
	err := rows.Scan(
		&t.ID, &rec.World, &rec.Bot, &kind, &priority, &status, &issuedBy, &jobID,
		&params, &sealed, &failure,
		&createdAt, &startedAt, &completedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan task: %w", err)
	}

	t.Kind = types.CommandKind(kind)
	t.Priority = types.TaskPriority(priority)
	t.Status = types.TaskStatus(status)
	t.IssuedBy = issuedBy.String
	t.JobID = jobID.String
	t.FailureReason = failure.String
	t.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	t.StartedAt = parseTime(startedAt)
	t.CompletedAt = parseTime(completedAt)

	switch {
	case params.Valid:
		if err := json.Unmarshal([]byte(params.String), &t.Parameters); err != nil {
			return nil, fmt.Errorf("failed to decode params of %s: %w", t.ID, err)
		}
	case sealed.Valid && h.payloads != nil:
		var payload types.EncryptedPayload
		if err := json.Unmarshal([]byte(sealed.String), &payload); err != nil {
			return nil, fmt.Errorf("failed to decode payload of %s: %w", t.ID, err)
		}
		decrypted, err := h.payloads.DecryptParams(&payload)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt params of %s: %w", t.ID, err)
		}
		t.Parameters = decrypted
	}

	rec.Task = &t
	return &rec, nil
}

func formatTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(timeLayout), Valid: true}
}

func parseTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := time.Parse(timeLayout, s.String)
	if err != nil {
		return nil
	}
	return &t
}
