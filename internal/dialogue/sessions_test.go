package dialogue

import (
	"context"
	"testing"
	"time"

	"barberline/internal/dialogue/sessionstore"
	apperrors "barberline/pkg/errors"
	"barberline/pkg/logger"
	"barberline/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionsWith(t *testing.T) {
	ctx := context.Background()
	store := sessionstore.NewMemoryStore(time.Hour)
	s := NewSessions(store, time.Minute, logger.Discard())

	err := s.With(ctx, "call-1", monday, func(session *model.CallSession, created bool) error {
		assert.True(t, created)
		session.State = model.StateCollectingService
		return nil
	})
	require.NoError(t, err)

	err = s.With(ctx, "call-1", monday.Add(time.Second), func(session *model.CallSession, created bool) error {
		assert.False(t, created)
		assert.Equal(t, model.StateCollectingService, session.State)
		return nil
	})
	require.NoError(t, err)

	stored, err := store.Get(ctx, "call-1")
	require.NoError(t, err)
	assert.Equal(t, monday.Add(time.Second), stored.UpdatedAt)
	assert.Equal(t, 1, s.Active())
}

func TestSessionsReloadFromStore(t *testing.T) {
	ctx := context.Background()
	store := sessionstore.NewMemoryStore(time.Hour)

	saved := model.NewCallSession("call-2", monday)
	saved.State = model.StateProposingSlot
	require.NoError(t, store.Save(ctx, saved))

	// A fresh process picks the call up where the previous one left it.
	s := NewSessions(store, time.Minute, logger.Discard())
	err := s.With(ctx, "call-2", monday, func(session *model.CallSession, created bool) error {
		assert.False(t, created)
		assert.Equal(t, model.StateProposingSlot, session.State)
		return nil
	})
	require.NoError(t, err)
}

func TestSessionsEvictArchived(t *testing.T) {
	ctx := context.Background()
	s := NewSessions(nil, time.Minute, logger.Discard())

	err := s.With(ctx, "call-3", monday, func(session *model.CallSession, _ bool) error {
		session.Status = model.SessionArchived
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, s.Active())

	got, err := s.Get(ctx, "call-3")
	require.NoError(t, err)
	assert.Equal(t, model.SessionArchived, got.Status)

	_, err = s.Get(ctx, "never-called")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestSessionsExpireIdle(t *testing.T) {
	ctx := context.Background()
	s := NewSessions(nil, time.Minute, logger.Discard())

	noop := func(*model.CallSession, bool) error { return nil }
	require.NoError(t, s.With(ctx, "old", monday, noop))
	require.NoError(t, s.With(ctx, "fresh", monday.Add(50*time.Second), noop))

	var archived []string
	n := s.ExpireIdle(ctx, monday.Add(90*time.Second), func(session *model.CallSession) {
		session.Status = model.SessionArchived
		archived = append(archived, session.CallID)
	})

	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"old"}, archived)
	assert.Equal(t, 1, s.Active())
}

func TestSessionsPruneArchived(t *testing.T) {
	ctx := context.Background()
	now := monday
	store := sessionstore.NewMemoryStore(time.Hour, sessionstore.WithClock(func() time.Time { return now }))
	s := NewSessions(store, time.Minute, logger.Discard())

	err := s.With(ctx, "call-done", monday, func(session *model.CallSession, _ bool) error {
		session.Status = model.SessionArchived
		return nil
	})
	require.NoError(t, err)

	pruned, err := s.Prune(ctx)
	require.NoError(t, err)
	assert.Zero(t, pruned)
	_, err = s.Get(ctx, "call-done")
	require.NoError(t, err)

	now = monday.Add(time.Hour)
	pruned, err = s.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pruned)

	_, err = s.Get(ctx, "call-done")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}
