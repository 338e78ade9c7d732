package audit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// TextSink appends one line per entry to a monthly log_MM_YYYY.txt file
type TextSink struct {
	dir string
	mu  sync.Mutex
}

// NewTextSink creates a TextSink writing into dir
func NewTextSink(dir string) *TextSink {
	return &TextSink{dir: dir}
}

func (s *TextSink) Name() string { return "text" }

// FileName returns the log file used for t
func (s *TextSink) FileName(t time.Time) string {
	return filepath.Join(s.dir, fmt.Sprintf("log_%s_%d.txt", t.Format("01"), t.Year()))
}

func (s *TextSink) Append(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create audit dir: %w", err)
	}

	f, err := os.OpenFile(s.FileName(e.ProcessedAt), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	line := fmt.Sprintf("%s Processed: %s, RN: %s, Date: %s\n",
		e.ProcessedAt.Format(time.RFC3339), e.Path, e.Record.ID, e.Record.Date)
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}
