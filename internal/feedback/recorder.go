// Package feedback accumulates per-behavior success statistics reported by
// the scheduler and the decision engine.
package feedback

import (
	"log"
	"sort"
	"sync"
	"time"

	"github.com/roea-ai/botmind/pkg/types"
)

// Persister saves counters. Optional; *store.FeedbackStore implements it.
type Persister interface {
	SaveStats(stats types.BehaviorStats) error
	LoadStats() ([]types.BehaviorStats, error)
}

// Recorder keeps success counters in memory and mirrors them to a
// Persister.
type Recorder struct {
	persist Persister
	logger  *log.Logger
	now     func() time.Time

	mu    sync.RWMutex
	stats map[string]*types.BehaviorStats
}

// NewRecorder creates a Recorder, loading stored counters when persist is
// set.
func NewRecorder(persist Persister, logger *log.Logger) *Recorder {
	if logger == nil {
		logger = log.Default()
	}
	r := &Recorder{
		persist: persist,
		logger:  logger,
		now:     time.Now,
		stats:   make(map[string]*types.BehaviorStats),
	}
	if persist != nil {
		loaded, err := persist.LoadStats()
		if err != nil {
			logger.Printf("failed to load feedback stats: %v", err)
		}
		for i := range loaded {
			st := loaded[i]
			r.stats[st.Behavior] = &st
		}
	}
	return r
}

// Record counts one outcome of behavior.
func (r *Recorder) Record(behavior string, success bool) {
	if behavior == "" {
		return
	}

	r.mu.Lock()
	st, ok := r.stats[behavior]
	if !ok {
		st = &types.BehaviorStats{Behavior: behavior}
		r.stats[behavior] = st
	}
	if success {
		st.Successes++
	} else {
		st.Failures++
	}
	st.LastSuccess = success
	st.UpdatedAt = r.now()
	snapshot := *st
	r.mu.Unlock()

	if r.persist != nil {
		if err := r.persist.SaveStats(snapshot); err != nil {
			r.logger.Printf("failed to save feedback for %s: %v", behavior, err)
		}
	}
}

// Stats returns the counters of one behavior.
func (r *Recorder) Stats(behavior string) (types.BehaviorStats, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	st, ok := r.stats[behavior]
	if !ok {
		return types.BehaviorStats{}, false
	}
	return *st, true
}

// All returns every counter ordered by behavior.
func (r *Recorder) All() []types.BehaviorStats {
	r.mu.RLock()
	out := make([]types.BehaviorStats, 0, len(r.stats))
	for _, st := range r.stats {
		out = append(out, *st)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Behavior < out[j].Behavior })
	return out
}
