// Package resume persists the set of URLs already brought to a terminal
// state, so an interrupted run can pick up where it left off instead of
// re-downloading everything.
package resume

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileStore is a line-per-URL append-only ledger. Adds buffer in memory;
// Flush pushes them to disk and syncs, so at most one flush window of
// completions is lost on a crash.
type FileStore struct {
	mu   sync.Mutex
	path string
	f    *os.File
	w    *bufio.Writer
}

// NewFileStore opens (creating if needed) the ledger at path.
func NewFileStore(path string) (*FileStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create ledger directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	return &FileStore{
		path: path,
		f:    f,
		w:    bufio.NewWriter(f),
	}, nil
}

// Load returns every URL recorded in the ledger. Blank lines are skipped
// so a hand-edited file still loads.
func (s *FileStore) Load(_ context.Context) ([]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	var urls []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			urls = append(urls, line)
		}
	}
	return urls, nil
}

// Add appends one URL to the ledger buffer.
func (s *FileStore) Add(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.WriteString(url + "\n"); err != nil {
		return fmt.Errorf("append to ledger: %w", err)
	}
	return nil
}

// Flush forces buffered entries to stable storage.
func (s *FileStore) Flush(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("flush ledger: %w", err)
	}
	if err := s.f.Sync(); err != nil {
		return fmt.Errorf("sync ledger: %w", err)
	}
	return nil
}

// Close flushes and releases the ledger file.
func (s *FileStore) Close(ctx context.Context) error {
	if err := s.Flush(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}
