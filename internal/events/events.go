package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// Event types
const (
	TypePublished = "work_order.published"
	TypeAborted   = "work_order.aborted"
	TypeFailed    = "work_order.failed"
)

// Event describes the outcome of one work order task
type Event struct {
	Type      string    `json:"type"`
	TaskID    string    `json:"task_id"`
	Path      string    `json:"path"`
	WorkOrder string    `json:"work_order,omitempty"`
	Date      string    `json:"date,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Broker delivers encoded messages
type Broker interface {
	PublishWithRetry(ctx context.Context, body []byte, contentType string) error
}

// Publisher sends work order events to the broker
type Publisher struct {
	broker Broker
	logger *slog.Logger
}

// NewPublisher creates a new Publisher
func NewPublisher(broker Broker, logger *slog.Logger) *Publisher {
	return &Publisher{
		broker: broker,
		logger: logger,
	}
}

// Publish encodes event as JSON and hands it to the broker
func (p *Publisher) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.broker.PublishWithRetry(ctx, body, "application/json"); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.Type, err)
	}

	p.logger.Debug("Work order event published",
		slog.String("type", event.Type),
		slog.String("task_id", event.TaskID),
	)
	return nil
}
