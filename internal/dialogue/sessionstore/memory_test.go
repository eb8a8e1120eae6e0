package sessionstore

import (
	"context"
	"testing"
	"time"

	"barberline/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var monday = time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Hour)

	_, err := store.Get(ctx, "CA1")
	assert.ErrorIs(t, err, ErrNotFound)

	session := model.NewCallSession("CA1", monday)
	session.Fields.Service = &model.Field{Value: "HAIRCUT", Confidence: 1, Valid: true}
	require.NoError(t, store.Save(ctx, session))

	// Mutating the caller's copy does not reach the store.
	session.State = model.StateClosing

	got, err := store.Get(ctx, "CA1")
	require.NoError(t, err)
	assert.Equal(t, model.StateGreeting, got.State)
	assert.Equal(t, "HAIRCUT", got.Fields.Service.Value)
	assert.True(t, got.CreatedAt.Equal(session.CreatedAt))
}

func TestMemoryStoreRetention(t *testing.T) {
	ctx := context.Background()
	c := &clock{now: monday}
	store := NewMemoryStore(24*time.Hour, WithClock(c.Now))

	archived := model.NewCallSession("CA-old", monday)
	archived.Status = model.SessionArchived
	require.NoError(t, store.Save(ctx, archived))

	c.now = monday.Add(23 * time.Hour)
	require.NoError(t, store.Save(ctx, model.NewCallSession("CA-new", c.now)))

	_, err := store.Get(ctx, "CA-old")
	require.NoError(t, err, "still within retention")

	c.now = monday.Add(24 * time.Hour)
	_, err = store.Get(ctx, "CA-old")
	assert.ErrorIs(t, err, ErrNotFound)

	pruner, ok := store.(Pruner)
	require.True(t, ok)
	removed, err := pruner.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = store.Get(ctx, "CA-new")
	assert.NoError(t, err)
	assert.Len(t, store.(*memoryStore).sessions, 1)
}

func TestMemoryStoreSaveRefreshesRetention(t *testing.T) {
	ctx := context.Background()
	c := &clock{now: monday}
	store := NewMemoryStore(time.Hour, WithClock(c.Now))

	session := model.NewCallSession("CA1", monday)
	require.NoError(t, store.Save(ctx, session))

	c.now = monday.Add(50 * time.Minute)
	require.NoError(t, store.Save(ctx, session))

	c.now = monday.Add(100 * time.Minute)
	_, err := store.Get(ctx, "CA1")
	assert.NoError(t, err)
}

func TestMemoryStoreZeroTTLKeepsSessions(t *testing.T) {
	ctx := context.Background()
	c := &clock{now: monday}
	store := NewMemoryStore(0, WithClock(c.Now))
	require.NoError(t, store.Save(ctx, model.NewCallSession("CA1", monday)))

	c.now = monday.AddDate(1, 0, 0)
	removed, err := store.(Pruner).Prune(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)
	_, err = store.Get(ctx, "CA1")
	assert.NoError(t, err)
}
