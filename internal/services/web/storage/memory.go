package storage

import (
	"context"
	"sync"

	"github.com/kumia-devs/onboarding/internal/services/web/identity"
	"github.com/kumia-devs/onboarding/internal/services/web/session"
)

// MemoryStore keeps browser state in process memory. State is lost on restart.
type MemoryStore struct {
	mu     sync.RWMutex
	tokens map[string]identity.Record
	hints  map[string]session.Hint
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tokens: make(map[string]identity.Record),
		hints:  make(map[string]session.Hint),
	}
}

func (s *MemoryStore) LoadTokens(_ context.Context, browserID string) (identity.Record, bool, error) {
	browserID, err := NormalizeBrowserID(browserID)
	if err != nil {
		return identity.Record{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.tokens[browserID]
	return record, ok, nil
}

func (s *MemoryStore) SaveTokens(_ context.Context, browserID string, record identity.Record) error {
	browserID, err := NormalizeBrowserID(browserID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[browserID] = record
	return nil
}

func (s *MemoryStore) DeleteTokens(_ context.Context, browserID string) error {
	browserID, err := NormalizeBrowserID(browserID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, browserID)
	return nil
}

func (s *MemoryStore) LoadHint(_ context.Context, browserID string) (session.Hint, bool, error) {
	browserID, err := NormalizeBrowserID(browserID)
	if err != nil {
		return session.Hint{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	hint, ok := s.hints[browserID]
	return hint, ok, nil
}

func (s *MemoryStore) SaveHint(_ context.Context, browserID string, hint session.Hint) error {
	browserID, err := NormalizeBrowserID(browserID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hints[browserID] = hint
	return nil
}

func (s *MemoryStore) ClearHint(_ context.Context, browserID string) error {
	browserID, err := NormalizeBrowserID(browserID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.hints, browserID)
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
