package recovery

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// QueuedJob is a failure parked for later processing by an operator or a
// background worker outside this engine.
type QueuedJob struct {
	ID            string    `json:"id"`
	TransactionID string    `json:"transaction_id"`
	Service       string    `json:"service"`
	ErrorType     ErrorType `json:"error_type"`
	Message       string    `json:"message"`
	QueuedAt      time.Time `json:"queued_at"`
}

// QueueBackend stores queued recovery jobs. Enqueue returns the job's 1-based
// position in the queue.
type QueueBackend interface {
	Enqueue(ctx context.Context, job QueuedJob) (int, error)
}

// redisQueueKey is the list that holds queued recovery jobs.
const redisQueueKey = "trio:recovery:queue"

// RedisQueue stores jobs in a Redis list. The LPUSH return value doubles as
// the queue position.
type RedisQueue struct {
	client *redis.Client
}

// NewRedisQueue creates a Redis-backed job queue.
func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client}
}

// Enqueue pushes the job and returns its position.
func (q *RedisQueue) Enqueue(ctx context.Context, job QueuedJob) (int, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return 0, fmt.Errorf("marshal queued job: %w", err)
	}

	length, err := q.client.LPush(ctx, redisQueueKey, payload).Result()
	if err != nil {
		return 0, fmt.Errorf("enqueue recovery job: %w", err)
	}
	return int(length), nil
}

// MemoryQueue is an in-process QueueBackend used in tests and when Redis is
// not configured.
type MemoryQueue struct {
	mu   sync.Mutex
	jobs []QueuedJob
}

// NewMemoryQueue creates an empty in-memory queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

// Enqueue appends the job and returns its position.
func (q *MemoryQueue) Enqueue(_ context.Context, job QueuedJob) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return len(q.jobs), nil
}

// Jobs returns a copy of the queued jobs, oldest first.
func (q *MemoryQueue) Jobs() []QueuedJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]QueuedJob, len(q.jobs))
	copy(out, q.jobs)
	return out
}
