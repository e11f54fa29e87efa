package trio

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	trioRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trio_requests_total",
			Help: "Total trio dispatches by outcome",
		},
		[]string{"outcome"},
	)

	trioChannelDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trio_channel_duration_seconds",
			Help:    "Per-channel step duration for trio dispatches",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"channel"},
	)

	trioRollbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trio_rollbacks_total",
			Help: "Total trio transactions rolled back",
		},
	)

	trioErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trio_errors_total",
			Help: "Total trio failures by classified error type",
		},
		[]string{"type"},
	)
)

// CallMetrics is the per-dispatch timing breakdown returned in a Result.
type CallMetrics struct {
	TotalDuration   time.Duration `json:"total_duration_ns"`
	EmailDuration   time.Duration `json:"email_duration_ns"`
	MessageDuration time.Duration `json:"message_duration_ns"`
	PushDuration    time.Duration `json:"push_duration_ns"`
}

// Metrics holds the engine's process-wide running totals. Counters only move
// forward; callers reset explicitly between logical runs or reporting
// periods. All methods are safe for concurrent use.
type Metrics struct {
	mu              sync.Mutex
	totalRequests   int64
	successfulTrios int64
	failedTrios     int64
	rollbackCount   int64
	totalLatency    time.Duration
	errorsByType    map[string]int64
}

// NewMetrics creates zeroed metrics.
func NewMetrics() *Metrics {
	return &Metrics{errorsByType: make(map[string]int64)}
}

func (m *Metrics) recordRequest() {
	m.mu.Lock()
	m.totalRequests++
	m.mu.Unlock()
}

func (m *Metrics) recordSuccess(call CallMetrics) {
	m.mu.Lock()
	m.successfulTrios++
	m.totalLatency += call.TotalDuration
	m.mu.Unlock()

	trioRequestsTotal.WithLabelValues("success").Inc()
	observeChannels(call)
}

func (m *Metrics) recordFailure(errType string, rolledBack bool, call CallMetrics) {
	m.mu.Lock()
	m.failedTrios++
	m.totalLatency += call.TotalDuration
	m.errorsByType[errType]++
	if rolledBack {
		m.rollbackCount++
	}
	m.mu.Unlock()

	trioRequestsTotal.WithLabelValues("failure").Inc()
	trioErrorsTotal.WithLabelValues(errType).Inc()
	if rolledBack {
		trioRollbacksTotal.Inc()
	}
	observeChannels(call)
}

func observeChannels(call CallMetrics) {
	if call.EmailDuration > 0 {
		trioChannelDuration.WithLabelValues("email").Observe(call.EmailDuration.Seconds())
	}
	if call.MessageDuration > 0 {
		trioChannelDuration.WithLabelValues("message").Observe(call.MessageDuration.Seconds())
	}
	if call.PushDuration > 0 {
		trioChannelDuration.WithLabelValues("websocket").Observe(call.PushDuration.Seconds())
	}
}

// Snapshot is the exported metrics view.
type Snapshot struct {
	TotalRequests   int64            `json:"total_requests"`
	SuccessfulTrios int64            `json:"successful_trios"`
	FailedTrios     int64            `json:"failed_trios"`
	AverageLatency  time.Duration    `json:"average_latency_ns"`
	RollbackCount   int64            `json:"rollback_count"`
	ErrorsByType    map[string]int64 `json:"errors_by_type"`
}

// Snapshot returns a copy of the running totals. Average latency is 0 when
// no dispatches have completed.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Snapshot{
		TotalRequests:   m.totalRequests,
		SuccessfulTrios: m.successfulTrios,
		FailedTrios:     m.failedTrios,
		RollbackCount:   m.rollbackCount,
		ErrorsByType:    make(map[string]int64, len(m.errorsByType)),
	}
	for k, v := range m.errorsByType {
		s.ErrorsByType[k] = v
	}

	completed := m.successfulTrios + m.failedTrios
	if completed > 0 {
		s.AverageLatency = m.totalLatency / time.Duration(completed)
	}
	return s
}

// Reset zeroes every counter. Prometheus counters are cumulative and are
// left alone.
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalRequests = 0
	m.successfulTrios = 0
	m.failedTrios = 0
	m.rollbackCount = 0
	m.totalLatency = 0
	m.errorsByType = make(map[string]int64)
}
