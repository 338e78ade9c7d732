package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cuongbtq/workorder-watcher/internal/domain"
)

// Handler processes one FileTask
type Handler interface {
	Process(ctx context.Context, task domain.FileTask) error
}

// Config holds watcher configuration
type Config struct {
	Logger         *slog.Logger
	Handler        Handler
	Folders        []string
	Extensions     []string
	IgnorePrefixes []string
	Concurrency    int
	QueueSize      int
	// NewSource overrides the fsnotify event source
	NewSource func() (EventSource, error)
}

// Watcher turns file creation events into FileTasks for a bounded worker pool
type Watcher struct {
	logger         *slog.Logger
	handler        Handler
	folders        []string
	extensions     []string
	ignorePrefixes []string
	concurrency    int
	newSource      func() (EventSource, error)

	source    EventSource
	tasksChan chan domain.FileTask
	stopChan  chan struct{}
	loopDone  chan struct{}
	wg        sync.WaitGroup
	started   bool
	stopOnce  sync.Once
	// scanned is owned by the dispatcher goroutine
	scanned map[string]time.Time
}

// NewWatcher creates a new watcher instance
func NewWatcher(cfg *Config) *Watcher {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	queueSize := cfg.QueueSize
	if queueSize < 0 {
		queueSize = 0
	}
	extensions := cfg.Extensions
	if len(extensions) == 0 {
		extensions = []string{domain.DefaultTriggerExtension}
	}
	newSource := cfg.NewSource
	if newSource == nil {
		newSource = NewFSSource
	}

	return &Watcher{
		logger:         cfg.Logger,
		handler:        cfg.Handler,
		folders:        cfg.Folders,
		extensions:     extensions,
		ignorePrefixes: cfg.IgnorePrefixes,
		concurrency:    concurrency,
		newSource:      newSource,
		tasksChan:      make(chan domain.FileTask, queueSize),
		stopChan:       make(chan struct{}),
		loopDone:       make(chan struct{}),
		scanned:        make(map[string]time.Time),
	}
}

// Start validates the folders, subscribes to them recursively and begins
// dispatching. It returns once watching is established.
func (w *Watcher) Start(ctx context.Context) error {
	w.logger.Info("Starting watcher",
		slog.Any("folders", w.folders),
		slog.Any("extensions", w.extensions),
		slog.Int("concurrency", w.concurrency),
	)

	roots, err := w.validateFolders()
	if err != nil {
		return err
	}

	source, err := w.newSource()
	if err != nil {
		return err
	}
	for _, root := range roots {
		added, err := addTree(source, root)
		if err != nil {
			source.Close()
			return fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
		}
		w.logger.Info("Watching folder",
			slog.String("folder", root),
			slog.Int("directories", added),
		)
	}
	w.source = source
	w.folders = roots
	w.started = true

	// Tasks outlive shutdown cancellation so in-flight confirmations finish.
	w.spawnWorkerPool(context.WithoutCancel(ctx))
	go w.startEventDispatcher(ctx)

	w.logger.Info("Watcher started")
	return nil
}

// Stop closes the subscriptions and waits for queued and in-flight tasks
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		w.logger.Info("Stopping watcher...")
		close(w.stopChan)
		if !w.started {
			return
		}

		if err := w.source.Close(); err != nil {
			w.logger.Warn("Failed to close event source", slog.Any("error", err))
		}
		<-w.loopDone

		close(w.tasksChan)
		w.wg.Wait()
		w.logger.Info("Watcher stopped")
	})
}

func (w *Watcher) validateFolders() ([]string, error) {
	if len(w.folders) == 0 {
		return nil, fmt.Errorf("%w: no folders to watch", domain.ErrConfiguration)
	}

	roots := make([]string, 0, len(w.folders))
	for _, folder := range w.folders {
		abs, err := filepath.Abs(folder)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid folder %q: %v", domain.ErrConfiguration, folder, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("%w: folder %q: %v", domain.ErrConfiguration, folder, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%w: %q is not a directory", domain.ErrConfiguration, folder)
		}
		roots = append(roots, abs)
	}
	return roots, nil
}
