// Package worker runs the task consumption loop: pop a task from the shared
// queue, dispatch it to the executor or the simulator, and acknowledge the
// outcome. Shutdown is cooperative: the loop stops popping and finishes the
// task in flight.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"copyTradeEngine/internal/backtest"
	"copyTradeEngine/internal/domain"
	"copyTradeEngine/internal/executor"
	"copyTradeEngine/internal/obs"
	"copyTradeEngine/internal/ports"
	"copyTradeEngine/internal/strategy"
)

const defaultPopTimeout = 5 * time.Second

// Config holds the worker's operational parameters.
type Config struct {
	// WorkerID identifies this worker instance in logs.
	WorkerID string
	// PopTimeout bounds one blocking pop. Defaults to 5s.
	PopTimeout time.Duration
}

// Worker consumes tasks until its context is cancelled.
type Worker struct {
	cfg       Config
	queue     ports.TaskQueue
	registry  *strategy.Registry
	executor  *executor.Executor
	simulator *backtest.Simulator
	metrics   *obs.Metrics
	logger    ports.Logger
}

// New creates a worker. The metrics set is optional.
func New(cfg Config, queue ports.TaskQueue, registry *strategy.Registry, exec *executor.Executor, sim *backtest.Simulator, metrics *obs.Metrics, logger ports.Logger) (*Worker, error) {
	if queue == nil || registry == nil || exec == nil || sim == nil {
		return nil, fmt.Errorf("worker: queue, registry, executor and simulator are required")
	}
	if logger == nil {
		return nil, fmt.Errorf("worker: logger is required")
	}
	if cfg.PopTimeout <= 0 {
		cfg.PopTimeout = defaultPopTimeout
	}
	return &Worker{
		cfg:       cfg,
		queue:     queue,
		registry:  registry,
		executor:  exec,
		simulator: sim,
		metrics:   metrics,
		logger:    logger,
	}, nil
}

// Run blocks consuming tasks until ctx is cancelled. A task already popped
// when cancellation arrives is processed and acknowledged before returning.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info(ctx, "worker started", map[string]interface{}{"worker_id": w.cfg.WorkerID})
	for {
		select {
		case <-ctx.Done():
			w.logger.Info(ctx, "worker stopping", map[string]interface{}{"worker_id": w.cfg.WorkerID})
			return nil
		default:
		}

		task, err := w.queue.Pop(ctx, w.cfg.PopTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.logger.Error(ctx, err, "task pop failed, backing off", map[string]interface{}{"worker_id": w.cfg.WorkerID})
			select {
			case <-time.After(2 * time.Second):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		if task == nil {
			continue
		}

		// The in-flight task runs on a background-derived context so queue
		// shutdown does not abort half-placed orders.
		w.handleTask(context.WithoutCancel(ctx), task)
	}
}

func (w *Worker) handleTask(ctx context.Context, task *domain.Task) {
	start := time.Now()
	w.logger.Info(ctx, "task received", map[string]interface{}{
		"worker_id": w.cfg.WorkerID, "task_id": task.ID, "type": task.Type,
	})

	var (
		status domain.TaskStatus
		result interface{}
	)
	switch task.Type {
	case domain.TaskExecuteStrategy:
		status, result = w.runExecution(ctx, task)
	case domain.TaskRunBacktest:
		status, result = w.runBacktest(ctx, task)
	default:
		status = domain.TaskStatusFailed
		result = &domain.ExecutionResult{Success: false, Error: fmt.Sprintf("unknown task type %q", task.Type)}
		w.logger.Error(ctx, nil, "unknown task type", map[string]interface{}{"task_id": task.ID, "type": task.Type})
	}

	if w.metrics != nil {
		w.metrics.TasksProcessed.WithLabelValues(string(task.Type), string(status)).Inc()
		w.metrics.TaskDuration.WithLabelValues(string(task.Type)).Observe(time.Since(start).Seconds())
	}
	w.queue.Acknowledge(ctx, task.ID, status, result)
	w.logger.Info(ctx, "task finished", map[string]interface{}{
		"worker_id": w.cfg.WorkerID, "task_id": task.ID, "status": status, "duration": time.Since(start).String(),
	})
}

func (w *Worker) runExecution(ctx context.Context, task *domain.Task) (domain.TaskStatus, interface{}) {
	var payload domain.ExecuteStrategyPayload
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		return domain.TaskStatusFailed, failedExecution(fmt.Errorf("decoding payload: %w", err))
	}
	if payload.Settings == nil {
		return domain.TaskStatusFailed, failedExecution(fmt.Errorf("%w: settings", ports.ErrMissingParameter))
	}

	module, err := w.registry.Load(payload.StrategyRef)
	if err != nil {
		return domain.TaskStatusFailed, failedExecution(err)
	}

	result, err := w.executor.Execute(ctx, module, payload.Settings, payload.Subscribers)
	if err != nil {
		w.logger.Error(ctx, err, "strategy execution failed", map[string]interface{}{
			"task_id": task.ID, "strategy": payload.StrategyRef,
		})
		return domain.TaskStatusFailed, failedExecution(err)
	}

	if w.metrics != nil {
		w.metrics.TradesAttempted.Add(float64(result.TradesAttempted))
		if n := len(result.Errors); n > 0 {
			w.metrics.SubscriberErrors.WithLabelValues(payload.StrategyRef).Add(float64(n))
		}
	}
	for _, userID := range executor.SortedUserIDs(result.Errors) {
		w.logger.Warn(ctx, "subscriber failed during execution", map[string]interface{}{
			"task_id": task.ID, "user_id": userID, "error": result.Errors[userID],
		})
	}
	return domain.TaskStatusCompleted, result
}

func (w *Worker) runBacktest(ctx context.Context, task *domain.Task) (domain.TaskStatus, interface{}) {
	var payload domain.BacktestPayload
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		return domain.TaskStatusFailed, failedBacktest(fmt.Errorf("decoding payload: %w", err))
	}

	module, err := w.registry.Load(payload.StrategyRef)
	if err != nil {
		return domain.TaskStatusFailed, failedBacktest(err)
	}

	settings := payload.Settings
	if settings == nil {
		settings = &domain.Settings{StrategyID: payload.StrategyRef}
	}
	frame := domain.NewFrame(payload.HistoricalData)
	result, err := w.simulator.Run(ctx, module, frame, payload.Config, settings)
	if err != nil {
		w.logger.Error(ctx, err, "backtest failed", map[string]interface{}{
			"task_id": task.ID, "strategy": payload.StrategyRef,
		})
		return domain.TaskStatusFailed, failedBacktest(err)
	}
	return domain.TaskStatusCompleted, result
}

func failedExecution(err error) *domain.ExecutionResult {
	return &domain.ExecutionResult{Success: false, Error: err.Error()}
}

func failedBacktest(err error) *domain.BacktestResult {
	return &domain.BacktestResult{Success: false, Error: err.Error()}
}
