package extractor

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/cuongbtq/workorder-watcher/internal/domain"
	"github.com/cuongbtq/workorder-watcher/shared/retry"
	"github.com/xuri/excelize/v2"
)

// Cells maps each work order field to a cell coordinate such as "C6"
type Cells struct {
	ID               string
	Partner          string
	Device           string
	SerialNumber     string
	DeviceCode       string
	FaultDescription string
	WorkDescription  string
	Date             string
}

// Config holds extraction settings
type Config struct {
	Cells             Cells
	LockRetryAttempts int
	LockRetryWait     time.Duration
}

// Extractor reads work order records from spreadsheet documents
type Extractor struct {
	config Config
	open   func(path string) (*excelize.File, error)
	policy retry.Policy
	logger *slog.Logger
}

// New creates a new Extractor
func New(config Config, logger *slog.Logger) *Extractor {
	e := &Extractor{
		config: config,
		open:   openWorkbook,
		logger: logger,
	}
	e.policy = retry.Policy{
		Attempts:  config.LockRetryAttempts,
		Wait:      config.LockRetryWait,
		Backoff:   retry.Linear,
		Retryable: domain.IsRetryable,
	}
	return e
}

// WithSleep replaces the sleep used between open attempts
func (e *Extractor) WithSleep(sleep func(ctx context.Context, d time.Duration) error) *Extractor {
	e.policy.Sleep = sleep
	return e
}

// Extract opens path and reads the configured cells of its active sheet.
// Failures wrap domain.ErrNotFound, domain.ErrLocked or domain.ErrMalformedDocument.
func (e *Extractor) Extract(ctx context.Context, path string) (domain.WorkOrderRecord, error) {
	f, err := e.openWithRetry(ctx, path)
	if err != nil {
		return domain.WorkOrderRecord{}, err
	}
	defer f.Close()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if sheet == "" {
		return domain.WorkOrderRecord{}, fmt.Errorf("%w: %s has no active sheet", domain.ErrMalformedDocument, path)
	}

	r := &cellReader{file: f, sheet: sheet}
	cells := e.config.Cells
	rec := domain.WorkOrderRecord{
		ID:               r.text(cells.ID),
		Partner:          r.text(cells.Partner),
		Device:           r.text(cells.Device),
		SerialNumber:     r.text(cells.SerialNumber),
		DeviceCode:       r.text(cells.DeviceCode),
		FaultDescription: r.text(cells.FaultDescription),
		WorkDescription:  r.text(cells.WorkDescription),
		Date:             r.date(cells.Date),
	}
	if r.err != nil {
		return domain.WorkOrderRecord{}, fmt.Errorf("%w: %s: %v", domain.ErrMalformedDocument, path, r.err)
	}

	if rec.ID == "" {
		return domain.WorkOrderRecord{}, fmt.Errorf("%w: %s: work order number cell %s is empty", domain.ErrMalformedDocument, path, cells.ID)
	}
	if rec.Date == "" {
		return domain.WorkOrderRecord{}, fmt.Errorf("%w: %s: date cell %s is empty", domain.ErrMalformedDocument, path, cells.Date)
	}

	e.logger.Info("Extracted work order",
		slog.String("path", path),
		slog.String("work_order", rec.ID),
		slog.String("date", rec.Date),
	)
	return rec, nil
}

func (e *Extractor) openWithRetry(ctx context.Context, path string) (*excelize.File, error) {
	policy := e.policy
	policy.OnRetry = func(attempt int, wait time.Duration, err error) {
		e.logger.Warn("File locked; retrying",
			slog.String("path", path),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", policy.Attempts),
			slog.Duration("retry_after", wait),
			slog.Any("error", err),
		)
	}

	var f *excelize.File
	err := policy.Do(ctx, func(ctx context.Context, attempt int) error {
		var err error
		f, err = e.open(path)
		if err == nil {
			return nil
		}
		if isLocked(err) || isIncomplete(err) {
			return domain.NewRetryableError(err)
		}
		return err
	})
	if err == nil {
		return f, nil
	}

	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, path)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, fmt.Errorf("open %s interrupted: %w", path, err)
	case isLocked(err):
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrLocked, path, err)
	default:
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrMalformedDocument, path, err)
	}
}

func openWorkbook(path string) (*excelize.File, error) {
	return excelize.OpenFile(path)
}

// isIncomplete reports a file that is still being written by its producer
func isIncomplete(err error) bool {
	return errors.Is(err, zip.ErrFormat) || errors.Is(err, io.ErrUnexpectedEOF)
}

// cellReader keeps the first read error so field reads stay flat
type cellReader struct {
	file  *excelize.File
	sheet string
	err   error
}

func (r *cellReader) text(cell string) string {
	if r.err != nil || cell == "" {
		return ""
	}
	v, err := r.file.GetCellValue(r.sheet, cell)
	if err != nil {
		r.err = fmt.Errorf("cell %s: %w", cell, err)
		return ""
	}
	return strings.TrimSpace(v)
}

// date returns DD.MM.YYYY. for native date cells and normalized text otherwise
func (r *cellReader) date(cell string) string {
	if r.err != nil || cell == "" {
		return ""
	}

	typ, err := r.file.GetCellType(r.sheet, cell)
	if err != nil {
		r.err = fmt.Errorf("cell %s: %w", cell, err)
		return ""
	}
	raw, err := r.file.GetCellValue(r.sheet, cell, excelize.Options{RawCellValue: true})
	if err != nil {
		r.err = fmt.Errorf("cell %s: %w", cell, err)
		return ""
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	switch typ {
	case excelize.CellTypeDate:
		if t, ok := parseISODate(raw); ok {
			return domain.FormatDate(t)
		}
	case excelize.CellTypeNumber, excelize.CellTypeUnset:
		if serial, err := strconv.ParseFloat(raw, 64); err == nil && r.isDateStyled(cell) {
			if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
				return domain.FormatDate(t)
			}
		}
	}

	return domain.NormalizeDate(r.text(cell))
}

func (r *cellReader) isDateStyled(cell string) bool {
	idx, err := r.file.GetCellStyle(r.sheet, cell)
	if err != nil || idx == 0 {
		return false
	}
	style, err := r.file.GetStyle(idx)
	if err != nil || style == nil {
		return false
	}
	if style.CustomNumFmt != nil {
		return isDateFormat(*style.CustomNumFmt)
	}
	return isBuiltInDateFormat(style.NumFmt)
}

// isBuiltInDateFormat covers the built-in formats that show a calendar date
func isBuiltInDateFormat(id int) bool {
	switch {
	case id >= 14 && id <= 17, id == 22:
		return true
	case id >= 27 && id <= 31, id == 36, id >= 50 && id <= 58:
		// East Asian locale date formats
		return true
	}
	return false
}

// isDateFormat reports whether a custom number format renders a calendar date
func isDateFormat(format string) bool {
	var b strings.Builder
	inQuote, inBracket := false, false
	for _, c := range strings.ToLower(format) {
		switch {
		case c == '"':
			inQuote = !inQuote
		case inQuote:
		case c == '[':
			inBracket = true
		case c == ']':
			inBracket = false
		case inBracket:
		default:
			b.WriteRune(c)
		}
	}
	return strings.ContainsAny(b.String(), "dy")
}

func parseISODate(raw string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
