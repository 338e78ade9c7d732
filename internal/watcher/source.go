package watcher

import (
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// EventSource delivers filesystem notifications for added directories
type EventSource interface {
	Add(path string) error
	Events() <-chan fsnotify.Event
	Errors() <-chan error
	Close() error
}

// fsSource adapts *fsnotify.Watcher, whose channels are fields
type fsSource struct {
	w *fsnotify.Watcher
}

// NewFSSource creates an EventSource backed by fsnotify
func NewFSSource() (EventSource, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	return &fsSource{w: w}, nil
}

func (s *fsSource) Add(path string) error         { return s.w.Add(path) }
func (s *fsSource) Events() <-chan fsnotify.Event { return s.w.Events }
func (s *fsSource) Errors() <-chan error          { return s.w.Errors }
func (s *fsSource) Close() error                  { return s.w.Close() }

// addTree subscribes root and every directory below it
func addTree(source EventSource, root string) (int, error) {
	added := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := source.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		added++
		return nil
	})
	return added, err
}
