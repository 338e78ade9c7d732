package handler

import (
	"context"
	"log/slog"

	"github.com/cuongbtq/workorder-watcher/internal/audit"
	"github.com/cuongbtq/workorder-watcher/internal/status"
)

// LocalCounter reads the locally accepted work order number
type LocalCounter interface {
	Read() (id string, seq int, ok bool, err error)
}

// WorkOrderLister pages through stored work orders
type WorkOrderLister interface {
	ListRecent(ctx context.Context, filter audit.Filter) ([]audit.WorkOrderRow, error)
}

// HealthChecker reports whether a backing service is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Dependencies holds all dependencies needed by handlers. Storage and DB are
// nil when the database is disabled.
type Dependencies struct {
	Logger       *slog.Logger
	Tracker      *status.Tracker
	LocalCounter LocalCounter
	Storage      WorkOrderLister
	DB           HealthChecker
	ServiceName  string
}

// StatusHandler handles status and work order HTTP requests
type StatusHandler struct {
	logger       *slog.Logger
	tracker      *status.Tracker
	localCounter LocalCounter
	storage      WorkOrderLister
}

// NewStatusHandler creates a new StatusHandler instance
func NewStatusHandler(deps *Dependencies) *StatusHandler {
	return &StatusHandler{
		logger:       deps.Logger,
		tracker:      deps.Tracker,
		localCounter: deps.LocalCounter,
		storage:      deps.Storage,
	}
}
