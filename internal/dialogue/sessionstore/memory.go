package sessionstore

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"barberline/pkg/model"
)

type memoryEntry struct {
	data    []byte
	savedAt time.Time
}

type memoryStore struct {
	mu       sync.RWMutex
	sessions map[string]memoryEntry
	ttl      time.Duration
	now      func() time.Time
}

type MemoryOption func(*memoryStore)

func WithClock(now func() time.Time) MemoryOption {
	return func(s *memoryStore) { s.now = now }
}

// NewMemoryStore keeps sessions in process for ttl after their last save, the
// way the Redis store expires its keys. A ttl of zero keeps them forever.
// Values are stored serialized so callers never share a session pointer with
// the store.
func NewMemoryStore(ttl time.Duration, opts ...MemoryOption) Store {
	s := &memoryStore{
		sessions: make(map[string]memoryEntry),
		ttl:      ttl,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *memoryStore) expired(e memoryEntry, now time.Time) bool {
	return s.ttl > 0 && now.Sub(e.savedAt) >= s.ttl
}

func (s *memoryStore) Get(_ context.Context, callID string) (*model.CallSession, error) {
	s.mu.RLock()
	e, ok := s.sessions[callID]
	s.mu.RUnlock()
	if !ok || s.expired(e, s.now()) {
		return nil, ErrNotFound
	}

	var session model.CallSession
	if err := json.Unmarshal(e.data, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *memoryStore) Save(_ context.Context, session *model.CallSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.sessions[session.CallID] = memoryEntry{data: data, savedAt: s.now()}
	s.mu.Unlock()
	return nil
}

// Prune drops every session past its retention and returns how many went.
func (s *memoryStore) Prune(ctx context.Context) (int, error) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.sessions {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if s.expired(e, now) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed, nil
}
