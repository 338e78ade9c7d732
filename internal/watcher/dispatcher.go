package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cuongbtq/workorder-watcher/internal/domain"
	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
)

// scanDedupWindow is how long a file found by a directory scan suppresses its own Create event
const scanDedupWindow = 10 * time.Second

// startEventDispatcher turns creation events into FileTasks. It never runs
// pipeline logic itself.
func (w *Watcher) startEventDispatcher(ctx context.Context) {
	defer close(w.loopDone)

	w.logger.Info("Event dispatcher started")

	events := w.source.Events()
	errs := w.source.Errors()
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Event dispatcher stopped - context canceled")
			return

		case <-w.stopChan:
			w.logger.Info("Event dispatcher stopped - stopChan closed")
			return

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			w.logger.Warn("Filesystem watcher error", slog.Any("error", err))

		case event, ok := <-events:
			if !ok {
				w.logger.Info("Event dispatcher stopped - event source closed")
				return
			}
			if !event.Has(fsnotify.Create) {
				continue
			}

			for _, task := range w.tasksFor(event.Name) {
				if !w.dispatch(ctx, task) {
					return
				}
			}
		}
	}
}

// dispatch hands task to the pool. It reports false when the watcher is shutting down.
func (w *Watcher) dispatch(ctx context.Context, task domain.FileTask) bool {
	select {
	case w.tasksChan <- task:
		w.logger.Debug("Task dispatched to worker pool",
			slog.String("task_id", task.ID),
			slog.String("path", task.Path),
		)
		return true
	case <-w.stopChan:
		w.logger.Warn("Watcher stopping, task dropped",
			slog.String("path", task.Path),
		)
		return false
	case <-ctx.Done():
		w.logger.Warn("Event dispatcher stopped while dispatching task",
			slog.String("path", task.Path),
		)
		return false
	}
}

// tasksFor filters a created path. A new directory is subscribed and then scanned,
// because files moved or copied in with it produce no events of their own.
func (w *Watcher) tasksFor(path string) []domain.FileTask {
	now := time.Now()
	w.pruneScanned(now)

	info, err := os.Stat(path)
	if err == nil && info.IsDir() {
		if _, err := addTree(w.source, path); err != nil {
			w.logger.Warn("Failed to watch new directory",
				slog.String("path", path),
				slog.Any("error", err),
			)
			return nil
		}
		tasks := w.scanTree(path, now)
		w.logger.Info("Watching new directory",
			slog.String("path", path),
			slog.Int("files", len(tasks)),
		)
		return tasks
	}

	if !w.matches(path) {
		return nil
	}
	// already dispatched by a directory scan that raced this event
	if _, ok := w.scanned[path]; ok {
		delete(w.scanned, path)
		return nil
	}
	return []domain.FileTask{w.newTask(path, now)}
}

// scanTree returns tasks for the matching files already inside dir
func (w *Watcher) scanTree(dir string, now time.Time) []domain.FileTask {
	var tasks []domain.FileTask
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// skip entries that vanish mid-walk
			w.logger.Debug("Skipping unreadable path", slog.String("path", path), slog.Any("error", err))
			return nil
		}
		if d.IsDir() || !w.matches(path) {
			return nil
		}
		if _, ok := w.scanned[path]; ok {
			return nil
		}
		w.scanned[path] = now
		tasks = append(tasks, w.newTask(path, now))
		return nil
	})
	if err != nil {
		w.logger.Warn("Failed to scan new directory", slog.String("path", dir), slog.Any("error", err))
	}
	return tasks
}

// pruneScanned forgets scanned paths whose creation events can no longer be in flight
func (w *Watcher) pruneScanned(now time.Time) {
	for path, at := range w.scanned {
		if now.Sub(at) > scanDedupWindow {
			delete(w.scanned, path)
		}
	}
}

func (w *Watcher) newTask(path string, now time.Time) domain.FileTask {
	return domain.FileTask{
		ID:           uuid.NewString(),
		Path:         path,
		Root:         w.rootOf(path),
		DiscoveredAt: now,
	}
}

// matches reports whether name has a trigger extension and no ignored prefix
func (w *Watcher) matches(path string) bool {
	base := filepath.Base(path)
	for _, prefix := range w.ignorePrefixes {
		if prefix != "" && strings.HasPrefix(base, prefix) {
			return false
		}
	}

	ext := filepath.Ext(base)
	for _, want := range w.extensions {
		if strings.EqualFold(ext, want) {
			return true
		}
	}
	return false
}

func (w *Watcher) rootOf(path string) string {
	for _, root := range w.folders {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			return root
		}
	}
	return filepath.Dir(path)
}
