package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// WorkOrderRecord holds the fields extracted from one work order document
type WorkOrderRecord struct {
	ID               string // <number>/<year>
	Partner          string
	Device           string
	SerialNumber     string
	DeviceCode       string
	FaultDescription string
	WorkDescription  string
	Date             string // DD.MM.YYYY. when normalization succeeded
}

// FileTask represents one creation event submitted to the worker pool
type FileTask struct {
	ID           string
	Path         string
	Root         string // watched folder the event came from
	DiscoveredAt time.Time
}

// CounterReading is the result of reading the remote counter
type CounterReading struct {
	State string // present, absent or unknown
	Value int
}

// Known reports whether the reading carries a usable counter value
func (r CounterReading) Known() bool {
	return r.State == CounterPresent
}

func (r CounterReading) String() string {
	if r.Known() {
		return strconv.Itoa(r.Value)
	}
	return r.State
}

// ParseSequence returns the integer prefix of a work order identifier
func ParseSequence(id string) (int, error) {
	prefix, _, _ := strings.Cut(strings.TrimSpace(id), "/")
	prefix = strings.TrimSpace(prefix)
	n, err := strconv.Atoi(prefix)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedSequence, id)
	}
	return n, nil
}

// FormatSequence zero-pads the number part to four digits, e.g. 7/2025 -> 0007/2025.
// Identifiers that do not split into number and year are returned trimmed.
func FormatSequence(id string) string {
	trimmed := strings.TrimSpace(id)
	number, year, ok := strings.Cut(trimmed, "/")
	if !ok {
		return trimmed
	}
	n, err := strconv.Atoi(strings.TrimSpace(number))
	if err != nil {
		return trimmed
	}
	return fmt.Sprintf("%04d/%s", n, strings.TrimSpace(year))
}

// NormalizeDate converts D.M.YYYY, D-M-YYYY and D,M,YYYY into DD.MM.YYYY.
// Text it cannot interpret is returned unchanged.
func NormalizeDate(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.NewReplacer(",", ".", "-", ".").Replace(s)
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '.' || r == ' '
	})
	if len(parts) < 3 {
		return raw
	}
	for _, p := range parts[:3] {
		if _, err := strconv.Atoi(p); err != nil {
			return raw
		}
	}
	if len(parts[0]) == 4 && len(parts[2]) <= 2 {
		// ISO order, YYYY-MM-DD
		parts[0], parts[2] = parts[2], parts[0]
	}
	return fmt.Sprintf("%s.%s.%s.", padLeft(parts[0], 2), padLeft(parts[1], 2), padLeft(parts[2], 4))
}

// FormatDate renders a native date value
func FormatDate(t time.Time) string {
	return t.Format("02.01.2006.")
}

// CounterLine is the single line published as the remote counter resource
func CounterLine(rec WorkOrderRecord) string {
	return FormatSequence(rec.ID) + strings.Repeat(" ", 8) + NormalizeDate(rec.Date)
}

func padLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}
