package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/workorder-watcher/internal/domain"
)

// spawnWorkerPool spawns N worker goroutines based on concurrency configuration
func (w *Watcher) spawnWorkerPool(ctx context.Context) {
	w.logger.Info("Spawning worker pool",
		slog.Int("concurrency", w.concurrency),
	)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, i)
	}
}

// workerLoop processes tasks until the queue is closed and drained
func (w *Watcher) workerLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("worker-%d", workerNum)
	w.logger.Debug("Worker goroutine started", slog.String("worker_name", workerName))

	for task := range w.tasksChan {
		w.runTask(ctx, workerName, task)
	}

	w.logger.Debug("Worker goroutine stopping - tasksChan closed",
		slog.String("worker_name", workerName),
	)
}

// runTask is the task boundary: nothing a task does may take the worker down
func (w *Watcher) runTask(ctx context.Context, workerName string, task domain.FileTask) {
	logger := w.logger.With(
		slog.String("worker_name", workerName),
		slog.String("task_id", task.ID),
		slog.String("path", task.Path),
	)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Task panicked", slog.Any("panic", r))
		}
	}()

	start := time.Now()
	err := w.handler.Process(ctx, task)
	elapsed := time.Since(start)

	switch {
	case err == nil:
		logger.Info("Task completed successfully", slog.Duration("elapsed", elapsed))
	case domain.IsBusinessOutcome(err):
		logger.Info("Task ended without publishing",
			slog.String("reason", err.Error()),
			slog.Duration("elapsed", elapsed),
		)
	default:
		logger.Warn("Task failed",
			slog.String("error", err.Error()),
			slog.Duration("elapsed", elapsed),
		)
	}
}
