package audit

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// CSVSink appends rows to a daily YYYY_MM_DD.csv file, ';' delimited
type CSVSink struct {
	dir string
	mu  sync.Mutex
}

// NewCSVSink creates a CSVSink writing into dir
func NewCSVSink(dir string) *CSVSink {
	return &CSVSink{dir: dir}
}

func (s *CSVSink) Name() string { return "csv" }

// FileName returns the CSV file used for t
func (s *CSVSink) FileName(t time.Time) string {
	return filepath.Join(s.dir, t.Format("2006_01_02")+".csv")
}

func (s *CSVSink) Append(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create audit dir: %w", err)
	}

	f, err := os.OpenFile(s.FileName(e.ProcessedAt), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open csv: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat csv: %w", err)
	}

	w := csv.NewWriter(f)
	w.Comma = ';'
	if info.Size() == 0 {
		if err := w.Write(Header); err != nil {
			return fmt.Errorf("failed to write csv header: %w", err)
		}
	}
	if err := w.Write(row(e)); err != nil {
		return fmt.Errorf("failed to write csv row: %w", err)
	}
	w.Flush()
	return w.Error()
}
