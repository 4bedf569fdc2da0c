package domain

import (
	"encoding/json"
	"time"
)

// TaskType identifies the kind of work a queued task carries.
type TaskType string

const (
	TaskExecuteStrategy TaskType = "EXECUTE_STRATEGY"
	TaskRunBacktest     TaskType = "RUN_BACKTEST"
)

// TaskStatus is the terminal status reported back on acknowledgement.
type TaskStatus string

const (
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// Task is one unit of queued work. Delivery is at-least-once, so consumers
// must be idempotent on partial failure.
type Task struct {
	ID         string          `json:"id"`
	Type       TaskType        `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// ExecuteStrategyPayload is the payload of a TaskExecuteStrategy task.
type ExecuteStrategyPayload struct {
	StrategyRef string        `json:"strategy_ref"`
	Settings    *Settings     `json:"settings"`
	Subscribers []*Subscriber `json:"subscribers"`
}

// BacktestPayload is the payload of a TaskRunBacktest task.
type BacktestPayload struct {
	StrategyRef    string             `json:"strategy_ref"`
	HistoricalData []*Candle          `json:"historical_data"`
	Config         map[string]float64 `json:"config"`
	Settings       *Settings          `json:"settings,omitempty"`
}

// ExecutionResult is the structured outcome of one strategy execution cycle.
// Per-subscriber failures are recorded in Errors keyed by user id; the task
// still reports Success unless the shared fetch/signal step failed.
type ExecutionResult struct {
	Success              bool              `json:"success"`
	SubscribersProcessed int               `json:"subscribers_processed"`
	TradesAttempted      int               `json:"trades_attempted"`
	Errors               map[string]string `json:"errors,omitempty"`
	Error                string            `json:"error,omitempty"`
}
