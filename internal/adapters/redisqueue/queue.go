// Package redisqueue implements the task queue on Redis lists. Producers
// RPUSH JSON-encoded tasks; workers BLPOP them, so many workers can share
// one queue with at-least-once delivery.
package redisqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"copyTradeEngine/internal/domain"
	"copyTradeEngine/internal/ports"
)

// Config holds the Redis connection and queue naming parameters.
type Config struct {
	Addr     string
	Password string
	DB       int
	// QueueName is the list key tasks are pushed to. Results are pushed to
	// QueueName + ":results".
	QueueName string
}

// Queue is a Redis-list-backed ports.TaskQueue.
type Queue struct {
	client *redis.Client
	cfg    Config
	logger ports.Logger
}

// resultEnvelope is the acknowledgement record pushed to the results list.
type resultEnvelope struct {
	TaskID     string            `json:"task_id"`
	Status     domain.TaskStatus `json:"status"`
	Result     interface{}       `json:"result,omitempty"`
	FinishedAt time.Time         `json:"finished_at"`
}

// New connects to Redis and verifies the connection.
func New(cfg Config, logger ports.Logger) (*Queue, error) {
	if cfg.QueueName == "" {
		return nil, fmt.Errorf("redisqueue: queue name is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("redisqueue: logger is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrQueueUnavailable, err)
	}
	logger.Info(context.Background(), "connected to task queue", map[string]interface{}{
		"addr": cfg.Addr, "queue": cfg.QueueName,
	})
	return &Queue{client: client, cfg: cfg, logger: logger}, nil
}

// Close releases the underlying connection pool.
func (q *Queue) Close() error {
	return q.client.Close()
}

// ResultsKey returns the list key acknowledgements are pushed to.
func (q *Queue) ResultsKey() string {
	return q.cfg.QueueName + ":results"
}

// Push enqueues a task and returns its generated id.
func (q *Queue) Push(ctx context.Context, taskType domain.TaskType, payload interface{}) (string, error) {
	id, body, err := encodeTask(taskType, payload)
	if err != nil {
		return "", err
	}
	if err := q.client.RPush(ctx, q.cfg.QueueName, body).Err(); err != nil {
		return "", fmt.Errorf("%w: push: %v", ports.ErrQueueUnavailable, err)
	}
	return id, nil
}

// Pop blocks up to timeout for the next task. A timeout with no task
// returns nil, nil. On a transport error it retries once after a short
// pause; BLPOP removes nothing on failure so queue position is preserved.
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (*domain.Task, error) {
	for attempt := 0; ; attempt++ {
		vals, err := q.client.BLPop(ctx, timeout, q.cfg.QueueName).Result()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if attempt == 0 {
				q.logger.Warn(ctx, "task pop failed, retrying once", map[string]interface{}{
					"queue": q.cfg.QueueName, "error": err.Error(),
				})
				time.Sleep(500 * time.Millisecond)
				continue
			}
			return nil, fmt.Errorf("%w: pop: %v", ports.ErrQueueUnavailable, err)
		}
		// BLPOP returns [key, value].
		if len(vals) != 2 {
			return nil, fmt.Errorf("%w: unexpected BLPOP reply of %d values", ports.ErrQueueUnavailable, len(vals))
		}
		task, err := decodeTask([]byte(vals[1]))
		if err != nil {
			// A malformed record is dropped with a log rather than poisoning
			// the worker loop forever.
			q.logger.Error(ctx, err, "discarding malformed task record", map[string]interface{}{
				"queue": q.cfg.QueueName,
			})
			return nil, nil
		}
		return task, nil
	}
}

// Acknowledge pushes a result envelope to the results list. Failures are
// logged and swallowed; acknowledgement never blocks the task loop.
func (q *Queue) Acknowledge(ctx context.Context, taskID string, status domain.TaskStatus, result interface{}) {
	body, err := json.Marshal(resultEnvelope{
		TaskID:     taskID,
		Status:     status,
		Result:     result,
		FinishedAt: time.Now().UTC(),
	})
	if err != nil {
		q.logger.Error(ctx, err, "failed to encode task result", map[string]interface{}{"task_id": taskID})
		return
	}
	if err := q.client.RPush(ctx, q.ResultsKey(), body).Err(); err != nil {
		q.logger.Error(ctx, err, "failed to report task result", map[string]interface{}{
			"task_id": taskID, "status": status,
		})
	}
}

// encodeTask builds the wire form of a task with a fresh id.
func encodeTask(taskType domain.TaskType, payload interface{}) (string, []byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", nil, fmt.Errorf("redisqueue: encoding payload: %w", err)
	}
	task := domain.Task{
		ID:         uuid.NewString(),
		Type:       taskType,
		Payload:    raw,
		EnqueuedAt: time.Now().UTC(),
	}
	body, err := json.Marshal(task)
	if err != nil {
		return "", nil, err
	}
	return task.ID, body, nil
}

// decodeTask parses the wire form back into a task.
func decodeTask(body []byte) (*domain.Task, error) {
	var task domain.Task
	if err := json.Unmarshal(body, &task); err != nil {
		return nil, fmt.Errorf("redisqueue: decoding task: %w", err)
	}
	if task.ID == "" || task.Type == "" {
		return nil, fmt.Errorf("redisqueue: task record missing id or type")
	}
	return &task, nil
}
