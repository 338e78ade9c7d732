package audit

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"
)

// MonthNames are the Croatian month names used as sheet names
var MonthNames = [12]string{
	"Siječanj", "Veljača", "Ožujak", "Travanj", "Svibanj", "Lipanj",
	"Srpanj", "Kolovoz", "Rujan", "Listopad", "Studeni", "Prosinac",
}

// WorkbookSink appends rows to a yearly workbook with one sheet per month
type WorkbookSink struct {
	dir string
	mu  sync.Mutex
}

// NewWorkbookSink creates a WorkbookSink writing into dir
func NewWorkbookSink(dir string) *WorkbookSink {
	return &WorkbookSink{dir: dir}
}

func (s *WorkbookSink) Name() string { return "workbook" }

// FileName returns the workbook used for t
func (s *WorkbookSink) FileName(t time.Time) string {
	return filepath.Join(s.dir, fmt.Sprintf("Lista radni nalozi %d.xlsx", t.Year()))
}

// SheetName returns the month sheet used for t
func SheetName(t time.Time) string {
	return MonthNames[t.Month()-1]
}

func (s *WorkbookSink) Append(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create audit dir: %w", err)
	}

	path := s.FileName(e.ProcessedAt)
	f, created, err := openOrCreate(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sheet := SheetName(e.ProcessedAt)
	idx, err := f.GetSheetIndex(sheet)
	if err != nil {
		return fmt.Errorf("failed to look up sheet %s: %w", sheet, err)
	}
	if idx == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
		}
		if err := f.SetSheetRow(sheet, "A1", &Header); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
		if created {
			// a new workbook starts with an empty default sheet
			if err := f.DeleteSheet("Sheet1"); err != nil {
				return fmt.Errorf("failed to drop default sheet: %w", err)
			}
		}
		if idx, err = f.GetSheetIndex(sheet); err == nil {
			f.SetActiveSheet(idx)
		}
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	cell, err := excelize.CoordinatesToCellName(1, len(rows)+1)
	if err != nil {
		return err
	}
	values := row(e)
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to append row: %w", err)
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

func openOrCreate(path string) (*excelize.File, bool, error) {
	f, err := excelize.OpenFile(path)
	if err == nil {
		return f, false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, false, fmt.Errorf("failed to open workbook: %w", err)
	}
	return excelize.NewFile(), true, nil
}
