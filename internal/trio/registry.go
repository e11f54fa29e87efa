package trio

import (
	"sync"
	"time"
)

const (
	// historyHighWater is the history length that triggers a trim.
	historyHighWater = 1000
	// historyLowWater is the length history is trimmed down to.
	historyLowWater = 500
	// defaultHistoryLimit caps a history read when no limit is given.
	defaultHistoryLimit = 50
)

// Registry tracks in-flight transactions and retains a bounded history of
// completed ones. It is shared across concurrently running trios and all
// methods are safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	active  map[string]*Transaction
	history []Summary
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		active: make(map[string]*Transaction),
	}
}

// RegisterTransaction adds a transaction to the active set.
func (r *Registry) RegisterTransaction(t *Transaction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active[t.ID()] = t
}

// CompleteTransaction moves a transaction from the active set into history,
// trimming history to the low-water mark when it crosses the high-water mark.
// History is kept most-recent-first.
func (r *Registry) CompleteTransaction(t *Transaction) {
	summary := t.GetSummary()

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.active, t.ID())

	r.history = append([]Summary{summary}, r.history...)
	if len(r.history) > historyHighWater {
		r.history = r.history[:historyLowWater]
	}
}

// Statistics is the aggregate view over active and completed transactions.
type Statistics struct {
	ActiveCount     int           `json:"active_count"`
	CommittedCount  int           `json:"committed_count"`
	RolledBackCount int           `json:"rolled_back_count"`
	FailedCount     int           `json:"failed_count"`
	AverageDuration time.Duration `json:"average_duration_ns"`
}

// GetStatistics derives aggregates over the current registry state. The
// average duration is 0 when history is empty.
func (r *Registry) GetStatistics() Statistics {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := Statistics{ActiveCount: len(r.active)}

	var total time.Duration
	var counted int
	for _, s := range r.history {
		switch s.Status {
		case StatusCommitted:
			stats.CommittedCount++
		case StatusRolledBack:
			stats.RolledBackCount++
		case StatusFailed:
			stats.FailedCount++
		}
		if !s.EndedAt.IsZero() {
			total += s.EndedAt.Sub(s.StartedAt)
			counted++
		}
	}

	if counted > 0 {
		stats.AverageDuration = total / time.Duration(counted)
	}

	return stats
}

// GetTransactionHistory returns up to limit most-recent completed
// transactions. A non-positive limit returns the default-size slice.
func (r *Registry) GetTransactionHistory(limit int) []Summary {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if limit > len(r.history) {
		limit = len(r.history)
	}

	out := make([]Summary, limit)
	copy(out, r.history[:limit])
	return out
}

// Cleanup removes history entries completed before the cutoff and returns the
// removed count. This is a synchronous sweep invoked by callers, not a
// background job.
func (r *Registry) Cleanup(maxAge time.Duration) int {
	cutoff := time.Now().UTC().Add(-maxAge)

	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.history[:0]
	removed := 0
	for _, s := range r.history {
		if !s.EndedAt.IsZero() && s.EndedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, s)
	}
	r.history = kept

	return removed
}
