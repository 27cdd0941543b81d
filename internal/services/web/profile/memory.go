package profile

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// MemoryStore keeps profiles in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]Profile
	now      func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{profiles: make(map[string]Profile), now: time.Now}
}

// GetProfile implements Store.
func (s *MemoryStore) GetProfile(_ context.Context, userID string) (Profile, error) {
	userID, err := ValidateUserID(userID)
	if err != nil {
		return Profile{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return Profile{}, ErrNotFound
	}
	return clone(p), nil
}

// UpsertProfile implements Store.
func (s *MemoryStore) UpsertProfile(_ context.Context, userID string, patch Patch) error {
	userID, err := ValidateUserID(userID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.profiles[userID]
	if !ok {
		existing = Profile{UserID: userID, Status: StatusActive, CreatedAt: s.now().UTC()}
	}
	s.profiles[userID] = patch.Apply(existing, s.now().UTC())
	return nil
}

// CreateProfile implements Store.
func (s *MemoryStore) CreateProfile(_ context.Context, p Profile) error {
	userID, err := ValidateUserID(p.UserID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[userID]; ok {
		return ErrAlreadyExists
	}
	p.UserID = userID
	s.profiles[userID] = clone(p)
	return nil
}

func clone(p Profile) Profile {
	if p.Progress != nil {
		p.Progress = append(json.RawMessage(nil), p.Progress...)
	}
	return p
}

var _ Store = (*MemoryStore)(nil)
