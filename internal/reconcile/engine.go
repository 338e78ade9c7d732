package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cuongbtq/workorder-watcher/internal/confirm"
	"github.com/cuongbtq/workorder-watcher/internal/domain"
)

// CounterReader fetches the remote counter
type CounterReader interface {
	ReadCounter(ctx context.Context) domain.CounterReading
}

// Config holds the confirmation protocol settings
type Config struct {
	Timeout      time.Duration
	PollInterval time.Duration
	Affirmative  []string
	Negative     []string
	// OperatorID is the only chat identity whose replies count
	OperatorID string
}

// ConfirmationRequest is the state of one in-flight confirmation
type ConfirmationRequest struct {
	Proposed int
	Current  int
	Deadline time.Time
	Outcome  string
}

// Result describes how a record left the state machine
type Result struct {
	State    string
	Decision string
	Sequence int
	Remote   domain.CounterReading
	Request  *ConfirmationRequest
}

// Publish reports whether the record may be published
func (r *Result) Publish() bool {
	return r.Decision == domain.DecisionPublish
}

// Err maps an abort decision to its business outcome error
func (r *Result) Err() error {
	if r.Publish() || r.Request == nil {
		return nil
	}
	switch r.Request.Outcome {
	case domain.OutcomeDeclined:
		return fmt.Errorf("%w: %04d <= %04d", domain.ErrUserDeclined, r.Request.Proposed, r.Request.Current)
	case domain.OutcomeTimedOut:
		return fmt.Errorf("%w: no reply before %s", domain.ErrConfirmationTimedOut, r.Request.Deadline.Format(confirm.TimestampLayout))
	}
	return nil
}

// Engine decides whether a work order may be published
type Engine struct {
	counter CounterReader
	channel confirm.Channel
	config  Config
	clock   Clock
	logger  *slog.Logger
}

// NewEngine creates a new Engine. A nil clock uses the system clock.
func NewEngine(counter CounterReader, channel confirm.Channel, config Config, clock Clock, logger *slog.Logger) *Engine {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Engine{
		counter: counter,
		channel: channel,
		config:  config,
		clock:   clock,
		logger:  logger,
	}
}

// Reconcile runs the state machine for one record. The returned error is only set
// for a malformed sequence or a cancelled context; declines and timeouts are
// reported through the Result.
func (e *Engine) Reconcile(ctx context.Context, rec domain.WorkOrderRecord) (*Result, error) {
	logger := e.logger.With(slog.String("work_order", rec.ID))

	seq, err := domain.ParseSequence(rec.ID)
	if err != nil {
		logger.Warn("Cannot parse work order number", slog.Any("error", err))
		return nil, err
	}

	result := &Result{State: domain.StateCounterFetched, Sequence: seq}
	result.Remote = e.counter.ReadCounter(ctx)
	logger.Info("Counter fetched",
		slog.Int("sequence", seq),
		slog.String("remote", result.Remote.String()),
	)

	if !result.Remote.Known() || seq > result.Remote.Value {
		result.State = domain.StateProceeding
		result.Decision = domain.DecisionPublish
		logger.Info("Proceeding without confirmation", slog.String("state", result.State))
		result.State = domain.StateDone
		return result, nil
	}

	// one conversation per chat; the deadline starts once this request owns it
	release, err := e.channel.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("confirmation wait interrupted: %w", err)
	}
	defer release()

	result.State = domain.StateAwaitingConfirmation
	result.Request = &ConfirmationRequest{
		Proposed: seq,
		Current:  result.Remote.Value,
		Deadline: e.clock.Now().Add(e.config.Timeout),
		Outcome:  domain.OutcomePending,
	}
	logger.Info("Waiting for user confirmation",
		slog.Int("proposed", seq),
		slog.Int("current", result.Remote.Value),
		slog.Time("deadline", result.Request.Deadline),
	)

	outcome, err := e.await(ctx, logger, result.Request)
	if err != nil {
		return nil, err
	}
	result.Request.Outcome = outcome

	switch outcome {
	case domain.OutcomeConfirmed:
		result.State = domain.StateConfirmed
		result.Decision = domain.DecisionPublish
		e.notify(ctx, logger, confirm.ConfirmedMessage())
	case domain.OutcomeDeclined:
		result.State = domain.StateDeclined
		result.Decision = domain.DecisionAbort
		e.notify(ctx, logger, confirm.DeclinedMessage())
	default:
		result.State = domain.StateTimedOut
		result.Decision = domain.DecisionAbort
		e.notify(ctx, logger, confirm.TimedOutMessage())
	}
	logger.Info("Confirmation resolved",
		slog.String("state", result.State),
		slog.String("decision", result.Decision),
	)

	result.State = domain.StateDone
	return result, nil
}

// await drains stale replies, sends the prompt and polls until a decisive reply or the deadline
func (e *Engine) await(ctx context.Context, logger *slog.Logger, req *ConfirmationRequest) (string, error) {
	offset, err := e.channel.DiscardPending(ctx)
	if err != nil {
		logger.Warn("Failed to discard old replies", slog.Any("error", err))
	}

	e.notify(ctx, logger, confirm.PromptMessage(req.Proposed, req.Current, e.config.Affirmative, e.config.Negative))

	for {
		remaining := req.Deadline.Sub(e.clock.Now())
		if remaining <= 0 {
			return domain.OutcomeTimedOut, nil
		}

		replies, err := e.channel.PollReplies(ctx, offset)
		if err != nil {
			logger.Warn("Polling replies failed", slog.Any("error", err))
		}
		for _, reply := range replies {
			offset = max(offset, reply.Offset)
			if reply.SenderID != e.config.OperatorID {
				continue
			}
			switch token := strings.ToLower(strings.TrimSpace(reply.Text)); {
			case contains(e.config.Affirmative, token):
				return domain.OutcomeConfirmed, nil
			case contains(e.config.Negative, token):
				return domain.OutcomeDeclined, nil
			}
		}

		remaining = req.Deadline.Sub(e.clock.Now())
		if remaining <= 0 {
			return domain.OutcomeTimedOut, nil
		}
		select {
		case <-e.clock.After(min(e.config.PollInterval, remaining)):
		case <-ctx.Done():
			return "", fmt.Errorf("confirmation wait interrupted: %w", ctx.Err())
		}
	}
}

func (e *Engine) notify(ctx context.Context, logger *slog.Logger, text string) {
	if err := e.channel.Notify(ctx, text); err != nil {
		logger.Warn("Failed to send chat notification", slog.Any("error", err))
	}
}

func contains(tokens []string, token string) bool {
	for _, t := range tokens {
		if strings.EqualFold(t, token) {
			return true
		}
	}
	return false
}
