package recovery

import (
	"fmt"
	"sync"
	"time"
)

const (
	defaultFailureThreshold = 5
	defaultCooldown         = 60 * time.Second
)

// breakerState tracks failures for one service-errorType key.
type breakerState struct {
	failureCount    int
	lastFailureTime time.Time
	trippedAt       time.Time
}

// CircuitBreaker counts failures per service-errorType key and short-circuits
// recovery once a key trips. State is process-wide and shared across
// transactions.
type CircuitBreaker struct {
	mu        sync.Mutex
	states    map[string]*breakerState
	threshold int
	cooldown  time.Duration
}

// NewCircuitBreaker creates a breaker with the default threshold and
// cool-down window.
func NewCircuitBreaker() *CircuitBreaker {
	return &CircuitBreaker{
		states:    make(map[string]*breakerState),
		threshold: defaultFailureThreshold,
		cooldown:  defaultCooldown,
	}
}

func breakerKey(service string, t ErrorType) string {
	return fmt.Sprintf("%s-%s", service, t)
}

// Record registers a failure and returns the breaker verdict plus the current
// failure count for the key:
//
//   - ActionCircuitRecording while the key is below its threshold
//   - ActionCircuitOpen once at/above the threshold inside the cool-down
//   - ActionCircuitReset on the first failure after the cool-down elapses
//
// The cool-down is measured from the failure that tripped the key, so an open
// circuit always half-resets after the window regardless of traffic.
func (b *CircuitBreaker) Record(service string, t ErrorType) (Action, int) {
	key := breakerKey(service, t)
	now := time.Now()

	b.mu.Lock()
	defer b.mu.Unlock()

	st, ok := b.states[key]
	if !ok {
		st = &breakerState{}
		b.states[key] = st
	}

	if st.failureCount >= b.threshold {
		if now.Sub(st.trippedAt) >= b.cooldown {
			st.failureCount = 1
			st.lastFailureTime = now
			st.trippedAt = time.Time{}
			return ActionCircuitReset, st.failureCount
		}
		st.failureCount++
		st.lastFailureTime = now
		return ActionCircuitOpen, st.failureCount
	}

	st.failureCount++
	st.lastFailureTime = now
	if st.failureCount >= b.threshold {
		st.trippedAt = now
		return ActionCircuitOpen, st.failureCount
	}
	return ActionCircuitRecording, st.failureCount
}

// Remaining reports how much of the cool-down is left for a tripped key, or 0
// when the key is not open.
func (b *CircuitBreaker) Remaining(service string, t ErrorType) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	st, ok := b.states[breakerKey(service, t)]
	if !ok || st.failureCount < b.threshold {
		return 0
	}
	remaining := b.cooldown - time.Since(st.trippedAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Reset clears the state of one key, e.g. after a successful delivery through
// that service.
func (b *CircuitBreaker) Reset(service string, t ErrorType) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.states, breakerKey(service, t))
}

// ResetAll clears every key.
func (b *CircuitBreaker) ResetAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.states = make(map[string]*breakerState)
}

// BreakerSnapshot is the observable state of one key.
type BreakerSnapshot struct {
	Key             string    `json:"key"`
	FailureCount    int       `json:"failure_count"`
	LastFailureTime time.Time `json:"last_failure_time"`
	Open            bool      `json:"open"`
}

// Snapshot returns the state of every tracked key.
func (b *CircuitBreaker) Snapshot() []BreakerSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]BreakerSnapshot, 0, len(b.states))
	for key, st := range b.states {
		open := st.failureCount >= b.threshold && time.Since(st.trippedAt) < b.cooldown
		out = append(out, BreakerSnapshot{
			Key:             key,
			FailureCount:    st.failureCount,
			LastFailureTime: st.lastFailureTime,
			Open:            open,
		})
	}
	return out
}
