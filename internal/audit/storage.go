package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/workorder-watcher/internal/domain"
	"github.com/jmoiron/sqlx"
)

const schema = `
	CREATE TABLE IF NOT EXISTS work_orders (
		id                UUID PRIMARY KEY,
		work_order        TEXT NOT NULL,
		sequence          INTEGER NOT NULL,
		partner           TEXT NOT NULL DEFAULT '',
		device            TEXT NOT NULL DEFAULT '',
		serial_number     TEXT NOT NULL DEFAULT '',
		device_code       TEXT NOT NULL DEFAULT '',
		fault_description TEXT NOT NULL DEFAULT '',
		work_description  TEXT NOT NULL DEFAULT '',
		work_date         TEXT NOT NULL,
		source_path       TEXT NOT NULL,
		processed_at      TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_work_orders_processed_at ON work_orders (processed_at DESC, id DESC);
`

// WorkOrderRow is a stored audit entry
type WorkOrderRow struct {
	ID               string    `db:"id" json:"id"`
	WorkOrder        string    `db:"work_order" json:"work_order"`
	Sequence         int       `db:"sequence" json:"sequence"`
	Partner          string    `db:"partner" json:"partner"`
	Device           string    `db:"device" json:"device"`
	SerialNumber     string    `db:"serial_number" json:"serial_number"`
	DeviceCode       string    `db:"device_code" json:"device_code"`
	FaultDescription string    `db:"fault_description" json:"fault_description"`
	WorkDescription  string    `db:"work_description" json:"work_description"`
	WorkDate         string    `db:"work_date" json:"work_date"`
	SourcePath       string    `db:"source_path" json:"source_path"`
	ProcessedAt      time.Time `db:"processed_at" json:"processed_at"`
}

// NewWorkOrderRow converts an entry into its stored form
func NewWorkOrderRow(e Entry) WorkOrderRow {
	seq, _ := domain.ParseSequence(e.Record.ID)
	return WorkOrderRow{
		ID:               e.TaskID,
		WorkOrder:        e.Record.ID,
		Sequence:         seq,
		Partner:          e.Record.Partner,
		Device:           e.Record.Device,
		SerialNumber:     e.Record.SerialNumber,
		DeviceCode:       e.Record.DeviceCode,
		FaultDescription: e.Record.FaultDescription,
		WorkDescription:  e.Record.WorkDescription,
		WorkDate:         e.Record.Date,
		SourcePath:       e.Path,
		ProcessedAt:      e.ProcessedAt,
	}
}

// Cursor is the keyset position of the last row of a page
type Cursor struct {
	ProcessedAt time.Time
	ID          string
}

// Filter selects a page of work orders, newest first
type Filter struct {
	PageSize int
	Cursor   *Cursor
}

// Storage records work orders in PostgreSQL
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

func (s *Storage) Name() string { return "postgres" }

// EnsureSchema creates the work_orders table when missing
func (s *Storage) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create work_orders schema: %w", err)
	}
	return nil
}

// Append inserts one entry; replaying the same task is a no-op
func (s *Storage) Append(ctx context.Context, e Entry) error {
	query := `
		INSERT INTO work_orders (
			id, work_order, sequence, partner, device, serial_number,
			device_code, fault_description, work_description, work_date,
			source_path, processed_at
		) VALUES (
			:id, :work_order, :sequence, :partner, :device, :serial_number,
			:device_code, :fault_description, :work_description, :work_date,
			:source_path, :processed_at
		)
		ON CONFLICT (id) DO NOTHING
	`

	if _, err := s.db.NamedExecContext(ctx, query, NewWorkOrderRow(e)); err != nil {
		return fmt.Errorf("failed to insert work order: %w", err)
	}

	s.logger.Debug("Work order stored",
		slog.String("task_id", e.TaskID),
		slog.String("work_order", e.Record.ID),
	)
	return nil
}

// ListRecent returns up to PageSize+1 rows so callers can tell whether another page exists
func (s *Storage) ListRecent(ctx context.Context, filter Filter) ([]WorkOrderRow, error) {
	query, args := listQuery(filter)

	var rows []WorkOrderRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list work orders: %w", err)
	}
	return rows, nil
}

func listQuery(filter Filter) (string, []interface{}) {
	query := `
		SELECT
			id, work_order, sequence, partner, device, serial_number,
			device_code, fault_description, work_description, work_date,
			source_path, processed_at
		FROM work_orders
		WHERE 1=1
	`
	args := []interface{}{}
	argIdx := 1

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (processed_at, id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.ProcessedAt, filter.Cursor.ID)
		argIdx += 2
	}

	query += " ORDER BY processed_at DESC, id DESC"

	// one extra row tells whether there is a next page
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	return query, args
}
