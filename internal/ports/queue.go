package ports

import (
	"context"
	"time"

	"copyTradeEngine/internal/domain"
)

// TaskQueue is a thin wrapper over a shared blocking work queue.
// Delivery is at-least-once: consumers must tolerate redelivery of a task
// whose previous run partially failed.
type TaskQueue interface {
	// Push enqueues a task of the given type and returns its assigned id.
	Push(ctx context.Context, taskType domain.TaskType, payload interface{}) (string, error)

	// Pop blocks up to timeout for the next task. It returns nil, nil when
	// the timeout elapses with no task available. On a transport error the
	// implementation must reconnect and retry once without losing queue
	// position before giving up.
	Pop(ctx context.Context, timeout time.Duration) (*domain.Task, error)

	// Acknowledge reports a terminal status and result for a consumed task.
	// It is best-effort and must never block the caller's task loop.
	Acknowledge(ctx context.Context, taskID string, status domain.TaskStatus, result interface{})
}
