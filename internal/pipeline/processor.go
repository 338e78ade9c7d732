package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cuongbtq/workorder-watcher/internal/audit"
	"github.com/cuongbtq/workorder-watcher/internal/confirm"
	"github.com/cuongbtq/workorder-watcher/internal/domain"
	"github.com/cuongbtq/workorder-watcher/internal/events"
	"github.com/cuongbtq/workorder-watcher/internal/reconcile"
	"github.com/cuongbtq/workorder-watcher/internal/remote"
	"github.com/cuongbtq/workorder-watcher/internal/status"
)

// Extractor reads a work order record from a document
type Extractor interface {
	Extract(ctx context.Context, path string) (domain.WorkOrderRecord, error)
}

// Reconciler decides whether a record may be published
type Reconciler interface {
	Reconcile(ctx context.Context, rec domain.WorkOrderRecord) (*reconcile.Result, error)
}

// ArtifactPublisher uploads auxiliary artifacts
type ArtifactPublisher interface {
	Publish(ctx context.Context, artifacts []remote.Artifact) error
}

// CounterWriter replaces the remote counter resource
type CounterWriter interface {
	WriteCounter(ctx context.Context, content []byte) error
}

// Notifier sends operator-facing messages
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// AuditSink records processed work orders
type AuditSink interface {
	Append(ctx context.Context, entry audit.Entry) error
}

// EventPublisher announces task outcomes
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// Config holds processor dependencies. Events and Tracker are optional.
type Config struct {
	Logger      *slog.Logger
	Extractor   Extractor
	Reconciler  Reconciler
	Publisher   ArtifactPublisher
	Counter     CounterWriter
	Notifier    Notifier
	Audit       AuditSink
	Events      EventPublisher
	Tracker     *status.Tracker
	LocalState  *LocalState
	WorkDir     string
	DetailsFile string
	Now         func() time.Time
}

// Processor runs the extract, reconcile and publish pipeline for one file
type Processor struct {
	logger      *slog.Logger
	extractor   Extractor
	reconciler  Reconciler
	publisher   ArtifactPublisher
	counter     CounterWriter
	notifier    Notifier
	audit       AuditSink
	events      EventPublisher
	tracker     *status.Tracker
	localState  *LocalState
	workDir     string
	detailsFile string
	now         func() time.Time
}

// NewProcessor creates a new Processor
func NewProcessor(cfg *Config) *Processor {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	detailsFile := cfg.DetailsFile
	if detailsFile == "" {
		detailsFile = domain.DefaultDetailsFile
	}
	return &Processor{
		logger:      cfg.Logger,
		extractor:   cfg.Extractor,
		reconciler:  cfg.Reconciler,
		publisher:   cfg.Publisher,
		counter:     cfg.Counter,
		notifier:    cfg.Notifier,
		audit:       cfg.Audit,
		events:      cfg.Events,
		tracker:     cfg.Tracker,
		localState:  cfg.LocalState,
		workDir:     cfg.WorkDir,
		detailsFile: detailsFile,
		now:         now,
	}
}

// Process handles one FileTask end to end. The returned error is informational:
// every failure has already been logged and reported to the operator.
// A panic inside a step is reported like any other failure.
func (p *Processor) Process(ctx context.Context, task domain.FileTask) (err error) {
	logger := p.logger.With(
		slog.String("task_id", task.ID),
		slog.String("path", task.Path),
	)
	logger.Info("Processing file")

	if p.tracker != nil {
		p.tracker.Begin()
	}

	var (
		rec      domain.WorkOrderRecord
		finished bool
	)
	settle := func(outcome, eventType string, cause error) {
		finished = true
		p.finish(ctx, logger, task, rec, outcome, eventType, cause)
	}
	fail := func(cause error) error {
		p.report(ctx, logger, task, cause)
		settle(status.OutcomeFailed, events.TypeFailed, cause)
		return cause
	}

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		err = fmt.Errorf("panic while processing %s: %v", filepath.Base(task.Path), r)
		if finished {
			logger.Error("Panic after the task was recorded", slog.Any("panic", r))
			return
		}
		err = fail(err)
	}()

	// Step 1: Extract fields from the document
	rec, err = p.extractor.Extract(ctx, task.Path)
	if err != nil {
		return fail(err)
	}
	logger = logger.With(slog.String("work_order", rec.ID))
	logger.Info("Extracted work order", slog.String("date", rec.Date))

	// Step 2: Reconcile against the remote counter, asking the operator if needed
	result, err := p.reconciler.Reconcile(ctx, rec)
	if err != nil {
		return fail(err)
	}
	if !result.Publish() {
		outcome := result.Err()
		logger.Info("File processing was cancelled or timed out",
			slog.String("state", result.State),
			slog.Any("reason", outcome),
		)
		settle(status.OutcomeAborted, events.TypeAborted, outcome)
		return outcome
	}

	// Step 3: Write artifacts and publish
	if err := p.publish(ctx, logger, rec); err != nil {
		return fail(err)
	}

	// Step 4: Local baseline, audit and notification
	if p.localState != nil {
		updated, err := p.localState.Update(rec.ID)
		if err != nil {
			logger.Warn("Failed to update local counter", slog.Any("error", err))
		} else if updated {
			logger.Info("Updated local counter", slog.String("file", p.localState.Path()))
		} else {
			logger.Info("Local counter already has a greater or equal number")
		}
	}

	processedAt := p.now()
	if p.audit != nil {
		entry := audit.Entry{TaskID: task.ID, Path: task.Path, Record: rec, ProcessedAt: processedAt}
		if err := p.audit.Append(ctx, entry); err != nil {
			// already published; failing here would invite a duplicate resubmission
			logger.Error("Failed to write audit log", slog.Any("error", err))
		}
	}

	p.notify(ctx, logger, confirm.SuccessMessage(processedAt, task.Path, rec.ID, rec.Date))
	settle(status.OutcomePublished, events.TypePublished, nil)

	logger.Info("File processed successfully")
	return nil
}

// publish writes the per-task artifacts into a private directory, uploads the
// details page and finally replaces the remote counter
func (p *Processor) publish(ctx context.Context, logger *slog.Logger, rec domain.WorkOrderRecord) error {
	dir, err := os.MkdirTemp(p.workDir, "workorder-*")
	if err != nil {
		return fmt.Errorf("failed to create work dir: %w", err)
	}
	defer os.RemoveAll(dir)

	line := domain.CounterLine(rec)
	counterPath := filepath.Join(dir, domain.LocalCounterArtifact)
	if err := writeCounterArtifact(counterPath, line); err != nil {
		return err
	}

	detailsPath := filepath.Join(dir, p.detailsFile)
	if err := writeDetails(detailsPath, rec); err != nil {
		return err
	}
	logger.Info("Artifacts written", slog.String("counter_line", line))

	if err := p.publisher.Publish(ctx, []remote.Artifact{
		{LocalPath: detailsPath, RemoteName: p.detailsFile},
	}); err != nil {
		return err
	}

	content, err := os.ReadFile(counterPath)
	if err != nil {
		return fmt.Errorf("failed to read counter artifact: %w", err)
	}
	if err := p.counter.WriteCounter(ctx, content); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPublishFailure, err)
	}
	return nil
}

func (p *Processor) report(ctx context.Context, logger *slog.Logger, task domain.FileTask, err error) {
	logger.Error("Error processing file", slog.Any("error", err))
	p.notify(ctx, logger, confirm.ErrorMessage(p.now(), task.Path, err))
}

func (p *Processor) finish(ctx context.Context, logger *slog.Logger, task domain.FileTask, rec domain.WorkOrderRecord, outcome, eventType string, cause error) {
	now := p.now()
	reason := ""
	if cause != nil {
		reason = cause.Error()
	}

	if p.tracker != nil {
		p.tracker.End(status.Record{
			TaskID:    task.ID,
			Path:      task.Path,
			WorkOrder: rec.ID,
			Date:      rec.Date,
			Outcome:   outcome,
			Reason:    reason,
			At:        now,
		})
	}

	if p.events != nil {
		event := events.Event{
			Type:      eventType,
			TaskID:    task.ID,
			Path:      task.Path,
			WorkOrder: rec.ID,
			Date:      rec.Date,
			Reason:    reason,
			Timestamp: now,
		}
		if err := p.events.Publish(ctx, event); err != nil {
			logger.Warn("Failed to publish work order event", slog.Any("error", err))
		}
	}
}

func (p *Processor) notify(ctx context.Context, logger *slog.Logger, text string) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.Notify(ctx, text); err != nil {
		logger.Warn("Failed to send chat notification", slog.Any("error", err))
	}
}
