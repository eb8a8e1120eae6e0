package dialogue

import (
	"context"
	"errors"
	"sync"
	"time"

	"barberline/internal/dialogue/sessionstore"
	apperrors "barberline/pkg/errors"
	"barberline/pkg/logger"
	"barberline/pkg/model"
)

type callEntry struct {
	mu         sync.Mutex
	session    *model.CallSession
	lastActive time.Time
}

// Sessions owns the live CallSessions of this process. Turns of one call run
// one at a time under the call's mutex; distinct calls do not contend.
type Sessions struct {
	mu      sync.Mutex
	calls   map[string]*callEntry
	store   sessionstore.Store
	idleTTL time.Duration
	log     *logger.Logger
}

func NewSessions(store sessionstore.Store, idleTTL time.Duration, log *logger.Logger) *Sessions {
	if store == nil {
		store = sessionstore.NewMemoryStore(sessionstore.DefaultRetention)
	}
	return &Sessions{
		calls:   make(map[string]*callEntry),
		store:   store,
		idleTTL: idleTTL,
		log:     log,
	}
}

func (s *Sessions) entry(callID string) *callEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.calls[callID]
	if !ok {
		e = &callEntry{}
		s.calls[callID] = e
	}
	return e
}

// With runs fn with exclusive access to the call's session, creating it on
// first use. The session is mirrored to the store after fn returns; when it
// is no longer active it is dropped from memory.
func (s *Sessions) With(ctx context.Context, callID string, now time.Time, fn func(session *model.CallSession, created bool) error) error {
	for {
		e := s.entry(callID)
		e.mu.Lock()

		// The entry may have been evicted while we waited for it.
		s.mu.Lock()
		current := s.calls[callID]
		s.mu.Unlock()
		if current != e {
			e.mu.Unlock()
			continue
		}

		err := s.run(ctx, e, callID, now, fn)
		e.mu.Unlock()
		return err
	}
}

func (s *Sessions) run(ctx context.Context, e *callEntry, callID string, now time.Time, fn func(*model.CallSession, bool) error) error {
	created := false
	if e.session == nil {
		stored, err := s.store.Get(ctx, callID)
		switch {
		case err == nil:
			e.session = stored
		case errors.Is(err, sessionstore.ErrNotFound):
			e.session = model.NewCallSession(callID, now)
			created = true
		default:
			s.log.Warn("Session store unavailable, starting fresh", "call_id", callID, "error", err)
			e.session = model.NewCallSession(callID, now)
			created = true
		}
	}
	e.lastActive = now

	fnErr := fn(e.session, created)

	e.session.UpdatedAt = now
	if err := s.store.Save(ctx, e.session); err != nil {
		s.log.Warn("Failed to mirror session", "call_id", callID, "error", err)
	}
	if e.session.Status != model.SessionActive {
		s.evict(callID, e)
	}
	return fnErr
}

func (s *Sessions) evict(callID string, e *callEntry) {
	s.mu.Lock()
	if s.calls[callID] == e {
		delete(s.calls, callID)
	}
	s.mu.Unlock()
}

// Get returns a copy of the call's session from the store.
func (s *Sessions) Get(ctx context.Context, callID string) (*model.CallSession, error) {
	session, err := s.store.Get(ctx, callID)
	if errors.Is(err, sessionstore.ErrNotFound) {
		return nil, apperrors.NotFoundWithID("Call", callID)
	}
	return session, err
}

// ExpireIdle archives every live session idle for longer than the idle TTL
// and returns them. Sessions mid-turn are skipped.
func (s *Sessions) ExpireIdle(ctx context.Context, now time.Time, archive func(*model.CallSession)) int {
	s.mu.Lock()
	idle := make(map[string]*callEntry)
	for id, e := range s.calls {
		idle[id] = e
	}
	s.mu.Unlock()

	expired := 0
	for id, e := range idle {
		if !e.mu.TryLock() {
			continue
		}
		if e.session != nil && now.Sub(e.lastActive) > s.idleTTL {
			archive(e.session)
			e.session.UpdatedAt = now
			if err := s.store.Save(ctx, e.session); err != nil {
				s.log.Warn("Failed to mirror expired session", "call_id", id, "error", err)
			}
			s.evict(id, e)
			expired++
		}
		e.mu.Unlock()
	}
	return expired
}

// Prune drops sessions past retention from a store that does not expire them
// itself.
func (s *Sessions) Prune(ctx context.Context) (int, error) {
	p, ok := s.store.(sessionstore.Pruner)
	if !ok {
		return 0, nil
	}
	return p.Prune(ctx)
}

// Active is the number of sessions held in memory.
func (s *Sessions) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}
