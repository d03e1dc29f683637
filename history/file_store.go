package history

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// FileStore writes one JSON document per call. Suitable for single-node
// deployments and the CLI.
type FileStore struct {
	dir    string
	mu     sync.RWMutex
	closed bool
}

// NewFileStore creates the calls directory under baseDir if needed.
func NewFileStore(baseDir string) (*FileStore, error) {
	dir := filepath.Join(baseDir, "calls")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(id string) (string, error) {
	if _, err := uuid.Parse(id); err != nil {
		return "", fmt.Errorf("invalid call id %q: %w", id, err)
	}
	return filepath.Join(s.dir, id+".json"), nil
}

// Save implements Store. Writes are atomic: temp file then rename.
func (s *FileStore) Save(_ context.Context, call *Call) error {
	if call == nil {
		return fmt.Errorf("save call: nil call")
	}
	p, err := s.path(call.ID)
	if err != nil {
		return err
	}
	data, err := encode(call)
	if err != nil {
		return fmt.Errorf("save call %s: %w", call.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed()
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, p)
}

// Get implements Store.
func (s *FileStore) Get(_ context.Context, id string) (*Call, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed()
	}
	return s.read(id)
}

func (s *FileStore) read(id string) (*Call, error) {
	p, err := s.path(id)
	if err != nil {
		return nil, errNotFound(id)
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, errNotFound(id)
	}
	if err != nil {
		return nil, err
	}
	c, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode call %s: %w", id, err)
	}
	return c, nil
}

// List implements Store.
func (s *FileStore) List(_ context.Context, opts ListOptions) ([]*Call, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed()
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var out []*Call
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		c, err := s.read(strings.TrimSuffix(name, ".json"))
		if err != nil {
			return nil, err
		}
		if opts.match(c) {
			out = append(out, c)
		}
	}
	sortNewestFirst(out)
	return opts.page(out), nil
}

// Delete implements Store.
func (s *FileStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed()
	}
	p, err := s.path(id)
	if err != nil {
		return nil
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Close implements Store.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Ping implements Store.
func (s *FileStore) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errClosed()
	}
	_, err := os.Stat(s.dir)
	return err
}
