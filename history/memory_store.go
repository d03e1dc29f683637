package history

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore keeps calls in process. Suitable for development and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	calls  map[string]*Call
	closed bool
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{calls: make(map[string]*Call)}
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, call *Call) error {
	if call == nil || call.ID == "" {
		return fmt.Errorf("save call: missing id")
	}
	snap, err := snapshot(call)
	if err != nil {
		return fmt.Errorf("save call %s: %w", call.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed()
	}
	s.calls[call.ID] = snap
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id string) (*Call, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed()
	}
	c, ok := s.calls[id]
	if !ok {
		return nil, errNotFound(id)
	}
	return snapshot(c)
}

// List implements Store.
func (s *MemoryStore) List(_ context.Context, opts ListOptions) ([]*Call, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed()
	}

	var out []*Call
	for _, c := range s.calls {
		if opts.match(c) {
			out = append(out, c)
		}
	}
	sortNewestFirst(out)
	out = opts.page(out)

	for i, c := range out {
		cp, err := snapshot(c)
		if err != nil {
			return nil, err
		}
		out[i] = cp
	}
	return out, nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed()
	}
	delete(s.calls, id)
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Ping implements Store.
func (s *MemoryStore) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errClosed()
	}
	return nil
}

func sortNewestFirst(calls []*Call) {
	sort.SliceStable(calls, func(i, j int) bool {
		if calls[i].CreatedAt.Equal(calls[j].CreatedAt) {
			return calls[i].ID > calls[j].ID
		}
		return calls[i].CreatedAt.After(calls[j].CreatedAt)
	})
}
