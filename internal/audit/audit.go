package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/workorder-watcher/internal/domain"
	"golang.org/x/sync/errgroup"
)

// Entry is one processed work order
type Entry struct {
	TaskID      string
	Path        string
	Record      domain.WorkOrderRecord
	ProcessedAt time.Time
}

// Sink appends entries to an audit trail
type Sink interface {
	Name() string
	Append(ctx context.Context, entry Entry) error
}

// Header is the column layout shared by the tabular sinks
var Header = []string{
	"Broj RNaloga", "Partner", "Aparat", "Serijski broj", "Šifra aparata",
	"Opis pogreške", "Opis posla", "Datum", "Izvorna datoteka",
}

func row(e Entry) []string {
	r := e.Record
	return []string{
		r.ID, r.Partner, r.Device, r.SerialNumber, r.DeviceCode,
		r.FaultDescription, r.WorkDescription, r.Date, e.Path,
	}
}

// Multi writes every entry to all sinks concurrently
type Multi struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewMulti creates a fan-out over sinks
func NewMulti(logger *slog.Logger, sinks ...Sink) *Multi {
	return &Multi{sinks: sinks, logger: logger}
}

// Len returns the number of sinks
func (m *Multi) Len() int {
	return len(m.sinks)
}

// Append writes entry to every sink. One failing sink does not stop the others;
// all failures are joined into the returned error.
func (m *Multi) Append(ctx context.Context, entry Entry) error {
	errs := make([]error, len(m.sinks))

	var g errgroup.Group
	for i, sink := range m.sinks {
		g.Go(func() error {
			if err := sink.Append(ctx, entry); err != nil {
				m.logger.Error("Audit append failed",
					slog.String("sink", sink.Name()),
					slog.String("path", entry.Path),
					slog.Any("error", err),
				)
				errs[i] = fmt.Errorf("%s: %w", sink.Name(), err)
			}
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}
