package remote

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/cuongbtq/workorder-watcher/internal/domain"
)

// errUnparsable marks a counter resource whose first line carries no number
var errUnparsable = errors.New("unparsable counter")

// CounterStore reads and writes the authoritative counter resource
type CounterStore struct {
	client     *Client
	remoteFile string
	logger     *slog.Logger
}

// NewCounterStore creates a new CounterStore for remoteFile
func NewCounterStore(client *Client, remoteFile string, logger *slog.Logger) *CounterStore {
	return &CounterStore{
		client:     client,
		remoteFile: remoteFile,
		logger:     logger,
	}
}

// ReadCounter fetches the current counter. It never fails: exhausted retries
// yield an unknown reading so processing can continue without the gate.
func (s *CounterStore) ReadCounter(ctx context.Context) domain.CounterReading {
	var firstLine string
	var empty bool

	err := s.client.Session(ctx, "read_counter", func(conn Conn) error {
		resp, err := conn.Retr(s.remoteFile)
		if err != nil {
			return fmt.Errorf("failed to retrieve %s: %w", s.remoteFile, err)
		}
		defer resp.Close()

		line, ok, err := readFirstLine(resp)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", s.remoteFile, err)
		}
		firstLine, empty = line, !ok
		return nil
	})
	if err != nil {
		s.logger.Error("FTP get failed after retries",
			slog.String("remote_file", s.remoteFile),
			slog.Any("error", err),
		)
		return domain.CounterReading{State: domain.CounterUnknown}
	}

	if empty {
		s.logger.Warn("Remote counter file empty", slog.String("remote_file", s.remoteFile))
		return domain.CounterReading{State: domain.CounterAbsent}
	}

	value, err := ParseCounter(firstLine)
	if err != nil {
		s.logger.Warn("Remote counter unreadable",
			slog.String("remote_file", s.remoteFile),
			slog.String("line", firstLine),
			slog.Any("error", err),
		)
		return domain.CounterReading{State: domain.CounterUnknown}
	}

	s.logger.Info("Current server number", slog.Int("value", value))
	return domain.CounterReading{State: domain.CounterPresent, Value: value}
}

// WriteCounter replaces the remote counter resource with content.
// Exhausted retries are fatal for the calling task.
func (s *CounterStore) WriteCounter(ctx context.Context, content []byte) error {
	err := s.client.Session(ctx, "write_counter", func(conn Conn) error {
		if err := conn.Stor(s.remoteFile, bytes.NewReader(content)); err != nil {
			return fmt.Errorf("failed to store %s: %w", s.remoteFile, err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("FTP counter upload failed after retries",
			slog.String("remote_file", s.remoteFile),
			slog.Any("error", err),
		)
		return fmt.Errorf("%w: write counter: %v", domain.ErrTransientIO, err)
	}

	s.logger.Info("Uploaded counter",
		slog.String("remote_dir", s.client.config.RemoteDir),
		slog.String("remote_file", s.remoteFile),
	)
	return nil
}

// ParseCounter extracts the integer prefix of a counter line such as "0012/2025        07.11.2025."
func ParseCounter(line string) (int, error) {
	field := strings.TrimSpace(line)
	prefix, _, _ := strings.Cut(field, "/")
	prefix = strings.TrimLeft(strings.TrimSpace(prefix), "0")
	if prefix == "" {
		prefix = "0"
	}
	n, err := strconv.Atoi(prefix)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q", errUnparsable, line)
	}
	return n, nil
}

// readFirstLine returns the first line of r; ok is false for an empty or blank resource
func readFirstLine(r io.Reader) (string, bool, error) {
	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		return "", false, scanner.Err()
	}
	line := strings.TrimSpace(scanner.Text())
	if line == "" {
		return "", false, nil
	}
	// drain so the data connection closes cleanly
	_, _ = io.Copy(io.Discard, r)
	return line, true, nil
}
