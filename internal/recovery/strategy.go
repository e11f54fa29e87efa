package recovery

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Action identifies the recovery behavior that was applied to a failure.
type Action string

const (
	ActionRetryScheduled     Action = "retry_scheduled"
	ActionMaxRetriesExceeded Action = "max_retries_exceeded"
	ActionQueued             Action = "queued"
	ActionDeferred           Action = "deferred"
	ActionLogged             Action = "logged"
	ActionCircuitReset       Action = "circuit_reset"
	ActionCircuitRecording   Action = "circuit_recording"
	ActionCircuitOpen        Action = "circuit_open"
)

// Result is the outcome of executing a recovery strategy.
type Result struct {
	Success    bool           `json:"success"`
	Action     Action         `json:"action"`
	RetryAfter time.Duration  `json:"retry_after_ns,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// FailureContext identifies the failing request for strategies that track
// per-request state.
type FailureContext struct {
	TransactionID string
	Service       string
}

// Strategy reacts to one classified failure.
type Strategy interface {
	Recover(ctx context.Context, d Descriptor, fctx FailureContext) Result
}

const (
	defaultMaxRetries   = 3
	retryBaseDelay      = time.Second
	queueEstimatedDelay = 60 * time.Second
	deferredRetryDelay  = 300 * time.Second
)

// RetryStrategy schedules bounded retries with exponential delays. Attempt
// counts are tracked per transaction and cleared once exhausted.
type RetryStrategy struct {
	mu         sync.Mutex
	attempts   map[string]int
	maxRetries int
	baseDelay  time.Duration
}

// NewRetryStrategy creates a retry strategy with the given attempt budget.
func NewRetryStrategy(maxRetries int) *RetryStrategy {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	return &RetryStrategy{
		attempts:   make(map[string]int),
		maxRetries: maxRetries,
		baseDelay:  retryBaseDelay,
	}
}

// Recover increments the attempt counter for the transaction. Attempts below
// the budget yield retry_scheduled with the next attempt number; the Nth
// failure yields max_retries_exceeded and clears the counter.
func (s *RetryStrategy) Recover(_ context.Context, d Descriptor, fctx FailureContext) Result {
	s.mu.Lock()
	s.attempts[fctx.TransactionID]++
	attempt := s.attempts[fctx.TransactionID]
	if attempt >= s.maxRetries {
		delete(s.attempts, fctx.TransactionID)
	}
	s.mu.Unlock()

	if attempt >= s.maxRetries {
		return Result{
			Success: false,
			Action:  ActionMaxRetriesExceeded,
			Metadata: map[string]any{
				"attempts":    attempt,
				"max_retries": s.maxRetries,
			},
		}
	}

	return Result{
		Success:    true,
		Action:     ActionRetryScheduled,
		RetryAfter: s.baseDelay << uint(attempt-1),
		Metadata: map[string]any{
			"next_attempt": attempt + 1,
			"max_retries":  s.maxRetries,
		},
	}
}

// QueueStrategy parks high-impact email and database failures on a durable
// queue for later processing.
type QueueStrategy struct {
	backend QueueBackend
	logger  *slog.Logger
}

// NewQueueStrategy creates a queue strategy over the given backend.
func NewQueueStrategy(backend QueueBackend, logger *slog.Logger) *QueueStrategy {
	return &QueueStrategy{backend: backend, logger: logger}
}

// Recover enqueues the failure and reports its queue position with a fixed
// estimated delay. An enqueue failure degrades into a plain logged result.
func (s *QueueStrategy) Recover(ctx context.Context, d Descriptor, fctx FailureContext) Result {
	job := QueuedJob{
		ID:            uuid.New().String(),
		TransactionID: fctx.TransactionID,
		Service:       d.Service,
		ErrorType:     d.Type,
		Message:       d.Message,
		QueuedAt:      time.Now().UTC(),
	}

	position, err := s.backend.Enqueue(ctx, job)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to enqueue recovery job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return Result{Success: false, Action: ActionLogged}
	}

	s.logger.InfoContext(ctx, "failure queued for recovery",
		slog.String("job_id", job.ID),
		slog.String("service", d.Service),
		slog.Int("position", position),
	)

	return Result{
		Success:    true,
		Action:     ActionQueued,
		RetryAfter: queueEstimatedDelay,
		Metadata: map[string]any{
			"job_id":         job.ID,
			"queue_position": position,
		},
	}
}

// DeferredStrategy schedules a background retry reference for best-effort
// channels whose failure is visible but not critical.
type DeferredStrategy struct {
	logger *slog.Logger
}

// NewDeferredStrategy creates a deferred strategy.
func NewDeferredStrategy(logger *slog.Logger) *DeferredStrategy {
	return &DeferredStrategy{logger: logger}
}

// Recover returns a deferred result with a background job reference and a
// long fixed delay.
func (s *DeferredStrategy) Recover(ctx context.Context, d Descriptor, fctx FailureContext) Result {
	ref := "bg-" + uuid.New().String()

	s.logger.InfoContext(ctx, "failure deferred to background retry",
		slog.String("reference", ref),
		slog.String("service", d.Service),
		slog.String("transaction_id", fctx.TransactionID),
	)

	return Result{
		Success:    true,
		Action:     ActionDeferred,
		RetryAfter: deferredRetryDelay,
		Metadata: map[string]any{
			"background_job": ref,
		},
	}
}

// LogStrategy records non-recoverable failures without scheduling anything.
type LogStrategy struct {
	logger *slog.Logger
}

// NewLogStrategy creates a log-only strategy.
func NewLogStrategy(logger *slog.Logger) *LogStrategy {
	return &LogStrategy{logger: logger}
}

// Recover logs the failure and reports no recovery.
func (s *LogStrategy) Recover(ctx context.Context, d Descriptor, fctx FailureContext) Result {
	s.logger.WarnContext(ctx, "non-recoverable failure logged",
		slog.String("type", string(d.Type)),
		slog.String("service", d.Service),
		slog.String("severity", string(d.Severity)),
		slog.String("message", d.Message),
		slog.String("transaction_id", fctx.TransactionID),
	)

	return Result{Success: false, Action: ActionLogged}
}
