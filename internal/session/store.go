// Package session persists the assistant conversation identifiers between runs.
package session

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// IDs identify one ongoing assistant conversation
type IDs struct {
	ThreadID    string `json:"thread_id"`
	AssistantID string `json:"assistant_id"`
}

// Complete reports whether both identifiers are present
func (ids IDs) Complete() bool {
	return ids.ThreadID != "" && ids.AssistantID != ""
}

// Store is a two-line text file: thread id, then assistant id
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a store backed by path
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file
func (s *Store) Path() string {
	return s.path
}

// Load reads the identifiers. found is false when the file does not exist.
func (s *Store) Load() (ids IDs, found bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return IDs{}, false, nil
	}
	if err != nil {
		return IDs{}, false, fmt.Errorf("failed to open session file: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() && len(lines) < 2 {
		lines = append(lines, strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return IDs{}, false, fmt.Errorf("failed to read session file: %w", err)
	}

	if len(lines) > 0 {
		ids.ThreadID = lines[0]
	}
	if len(lines) > 1 {
		ids.AssistantID = lines[1]
	}
	return ids, true, nil
}

// Save writes the identifiers, replacing any previous file atomically
func (s *Store) Save(ids IDs) error {
	if !ids.Complete() {
		return errors.New("session requires both thread and assistant ids")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".session-*")
	if err != nil {
		return fmt.Errorf("failed to create session file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := fmt.Fprintf(tmp, "%s\n%s\n", ids.ThreadID, ids.AssistantID); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace session file: %w", err)
	}
	return nil
}

// Reset deletes the identifiers. A missing file is not an error.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete session file: %w", err)
	}
	return nil
}
