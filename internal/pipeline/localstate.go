package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cuongbtq/workorder-watcher/internal/domain"
)

// LocalState is the locally persisted highest accepted work order identifier
type LocalState struct {
	path string
	mu   sync.Mutex
}

// NewLocalState creates a LocalState backed by path
func NewLocalState(path string) *LocalState {
	return &LocalState{path: path}
}

// Path returns the backing file
func (s *LocalState) Path() string {
	return s.path
}

// Read returns the stored identifier; ok is false when nothing usable is stored
func (s *LocalState) Read() (id string, seq int, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *LocalState) read() (string, int, bool, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", 0, false, nil
	}
	if err != nil {
		return "", 0, false, fmt.Errorf("failed to read local state: %w", err)
	}

	id := strings.TrimSpace(string(data))
	seq, err := domain.ParseSequence(id)
	if err != nil {
		return id, 0, false, nil
	}
	return id, seq, true, nil
}

// Update stores id only when its integer prefix strictly exceeds the stored one.
// A missing or unreadable file always accepts the new value.
func (s *LocalState) Update(id string) (bool, error) {
	seq, err := domain.ParseSequence(id)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, current, ok, err := s.read()
	if err != nil {
		return false, err
	}
	if ok && seq <= current {
		return false, nil
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return false, fmt.Errorf("failed to create state dir: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(strings.TrimSpace(id)), 0o644); err != nil {
		return false, fmt.Errorf("failed to write local state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return false, fmt.Errorf("failed to replace local state: %w", err)
	}
	return true, nil
}
