package recovery

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"
)

const (
	recoveryHistoryHighWater = 1000
	recoveryHistoryLowWater  = 500
	defaultRecoveryHistory   = 50

	// staleCounterAge is how long a type/service counter may go without a new
	// failure before the probabilistic sweep resets it.
	staleCounterAge = time.Hour
	// sweepProbability is the chance a failure recording also runs the stale
	// counter sweep.
	sweepProbability = 0.01
)

// FailureRecord is one handled failure retained for observability.
type FailureRecord struct {
	Timestamp     time.Time `json:"timestamp"`
	TransactionID string    `json:"transaction_id"`
	Type          ErrorType `json:"type"`
	Service       string    `json:"service"`
	Severity      Severity  `json:"severity"`
	Message       string    `json:"message"`
	Action        Action    `json:"action"`
}

// Statistics is the aggregate error view.
type Statistics struct {
	TotalFailures  int               `json:"total_failures"`
	ByType         map[ErrorType]int `json:"by_type"`
	ByService      map[string]int    `json:"by_service"`
	CircuitBreaker []BreakerSnapshot `json:"circuit_breaker"`
}

type counterState struct {
	count    int
	lastSeen time.Time
}

// Handler classifies failures, records them, and routes each one to exactly
// one recovery strategy. It owns the process-wide circuit breaker and error
// statistics; construct one per process and inject it where needed so tests
// can reset state explicitly.
type Handler struct {
	breaker  *CircuitBreaker
	retry    *RetryStrategy
	queue    *QueueStrategy
	deferred *DeferredStrategy
	logOnly  *LogStrategy
	logger   *slog.Logger

	mu        sync.Mutex
	total     int
	byType    map[ErrorType]*counterState
	byService map[string]*counterState
	history   []FailureRecord
}

// NewHandler creates a recovery handler. The queue backend may be a
// MemoryQueue when Redis is not configured.
func NewHandler(queueBackend QueueBackend, logger *slog.Logger) *Handler {
	return &Handler{
		breaker:   NewCircuitBreaker(),
		retry:     NewRetryStrategy(defaultMaxRetries),
		queue:     NewQueueStrategy(queueBackend, logger),
		deferred:  NewDeferredStrategy(logger),
		logOnly:   NewLogStrategy(logger),
		logger:    logger,
		byType:    make(map[ErrorType]*counterState),
		byService: make(map[string]*counterState),
	}
}

// Breaker exposes the circuit breaker, e.g. for resets after recovered
// deliveries.
func (h *Handler) Breaker() *CircuitBreaker {
	return h.breaker
}

// HandleTrioFailure is the public entry for a failed trio: it classifies the
// raw error, records it, consults the circuit breaker, selects a strategy,
// and returns the recovery result. It never returns an error; recovery is
// observability, not control flow.
func (h *Handler) HandleTrioFailure(ctx context.Context, raw error, fctx FailureContext) Result {
	d := Classify(raw)
	if fctx.Service != "" {
		d.Service = fctx.Service
	}

	verdict, failureCount := h.breaker.Record(d.Service, d.Type)

	var result Result
	switch verdict {
	case ActionCircuitOpen:
		result = Result{
			Success:    false,
			Action:     ActionCircuitOpen,
			RetryAfter: h.breaker.Remaining(d.Service, d.Type),
			Metadata:   map[string]any{"failure_count": failureCount},
		}
	case ActionCircuitReset:
		result = Result{
			Success:  true,
			Action:   ActionCircuitReset,
			Metadata: map[string]any{"failure_count": failureCount},
		}
	default:
		result = h.strategyFor(d).Recover(ctx, d, fctx)
		if result.Metadata == nil {
			result.Metadata = make(map[string]any)
		}
		result.Metadata["circuit"] = string(ActionCircuitRecording)
		result.Metadata["failure_count"] = failureCount
	}

	h.record(d, fctx, result.Action)

	h.logger.InfoContext(ctx, "trio failure handled",
		slog.String("transaction_id", fctx.TransactionID),
		slog.String("type", string(d.Type)),
		slog.String("service", d.Service),
		slog.String("severity", string(d.Severity)),
		slog.String("action", string(result.Action)),
		slog.Bool("recovered", result.Success),
	)

	return result
}

// strategyFor is the decision table over the descriptor.
func (h *Handler) strategyFor(d Descriptor) Strategy {
	switch d.Type {
	case TypeEmailService, TypeDatabase:
		if d.Severity == SeverityHigh || d.Severity == SeverityCritical {
			return h.queue
		}
	case TypeWebsocket:
		return h.deferred
	case TypeValidation, TypeAuth:
		return h.logOnly
	}

	if !d.Recoverable {
		return h.logOnly
	}
	return h.retry
}

// record updates counters and history, trimming history past the high-water
// mark and occasionally sweeping stale counters.
func (h *Handler) record(d Descriptor, fctx FailureContext, action Action) {
	now := time.Now().UTC()

	h.mu.Lock()
	defer h.mu.Unlock()

	h.total++

	ts, ok := h.byType[d.Type]
	if !ok {
		ts = &counterState{}
		h.byType[d.Type] = ts
	}
	ts.count++
	ts.lastSeen = now

	ss, ok := h.byService[d.Service]
	if !ok {
		ss = &counterState{}
		h.byService[d.Service] = ss
	}
	ss.count++
	ss.lastSeen = now

	h.history = append([]FailureRecord{{
		Timestamp:     now,
		TransactionID: fctx.TransactionID,
		Type:          d.Type,
		Service:       d.Service,
		Severity:      d.Severity,
		Message:       d.Message,
		Action:        action,
	}}, h.history...)
	if len(h.history) > recoveryHistoryHighWater {
		h.history = h.history[:recoveryHistoryLowWater]
	}

	if rand.Float64() < sweepProbability {
		h.sweepStaleCountersLocked(now)
	}
}

func (h *Handler) sweepStaleCountersLocked(now time.Time) {
	for t, st := range h.byType {
		if now.Sub(st.lastSeen) > staleCounterAge {
			delete(h.byType, t)
		}
	}
	for svc, st := range h.byService {
		if now.Sub(st.lastSeen) > staleCounterAge {
			delete(h.byService, svc)
		}
	}
}

// GetErrorStatistics returns the aggregate counters and breaker state.
func (h *Handler) GetErrorStatistics() Statistics {
	h.mu.Lock()
	stats := Statistics{
		TotalFailures: h.total,
		ByType:        make(map[ErrorType]int, len(h.byType)),
		ByService:     make(map[string]int, len(h.byService)),
	}
	for t, st := range h.byType {
		stats.ByType[t] = st.count
	}
	for svc, st := range h.byService {
		stats.ByService[svc] = st.count
	}
	h.mu.Unlock()

	stats.CircuitBreaker = h.breaker.Snapshot()
	return stats
}

// GetRecoveryHistory returns up to limit most-recent failure records. A
// non-positive limit returns the default-size slice.
func (h *Handler) GetRecoveryHistory(limit int) []FailureRecord {
	if limit <= 0 {
		limit = defaultRecoveryHistory
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if limit > len(h.history) {
		limit = len(h.history)
	}
	out := make([]FailureRecord, limit)
	copy(out, h.history[:limit])
	return out
}

// Reset clears all counters, history, retry state, and the circuit breaker.
// Intended for tests and logical reporting-period boundaries.
func (h *Handler) Reset() {
	h.mu.Lock()
	h.total = 0
	h.byType = make(map[ErrorType]*counterState)
	h.byService = make(map[string]*counterState)
	h.history = nil
	h.mu.Unlock()

	h.breaker.ResetAll()

	h.retry.mu.Lock()
	h.retry.attempts = make(map[string]int)
	h.retry.mu.Unlock()
}
