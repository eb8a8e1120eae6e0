package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	availabilityerrors "barberline/internal/availability/errors"
	"barberline/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

func seed(t *testing.T, s Store, barber string, blocks int) []string {
	t.Helper()
	var slots []model.AvailabilitySlot
	var ids []string
	for i := range blocks {
		slot := model.NewFreeSlot(barber, base.Add(time.Duration(i*model.SlotBlockMinutes)*time.Minute))
		slots = append(slots, slot)
		ids = append(ids, slot.ID)
	}
	n, err := s.UpsertFree(context.Background(), slots)
	require.NoError(t, err)
	require.Equal(t, blocks, n)
	return ids
}

func appointmentFor(id, barber string, start time.Time, minutes int) *model.Appointment {
	return &model.Appointment{
		ID:        id,
		BarberID:  barber,
		ServiceID: "HAIRCUT",
		StartTime: start,
		EndTime:   start.Add(time.Duration(minutes) * time.Minute),
		Status:    model.AppointmentBooked,
		SlotID:    model.SlotID(barber, start, minutes),
	}
}

func TestUpsertFreeKeepsExisting(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	ids := seed(t, s, "alex", 2)

	require.NoError(t, s.Hold(ctx, ids[:1], "call-1", base, base.Add(time.Minute)))

	n, err := s.UpsertFree(ctx, []model.AvailabilitySlot{model.NewFreeSlot("alex", base)})
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := s.FindByIDs(ctx, ids[:1])
	require.NoError(t, err)
	assert.Equal(t, model.SlotHeld, got[0].State)
}

func TestHoldIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	ids := seed(t, s, "alex", 3)

	require.NoError(t, s.Hold(ctx, ids[1:2], "call-1", base, base.Add(time.Minute)))

	err := s.Hold(ctx, ids[0:2], "call-2", base, base.Add(time.Minute))
	assert.ErrorIs(t, err, availabilityerrors.ErrSlotUnavailable)

	got, err := s.FindByIDs(ctx, ids[0:1])
	require.NoError(t, err)
	assert.Equal(t, model.SlotFree, got[0].State, "first block must stay free after a failed hold")
}

func TestHoldUnknownBlock(t *testing.T) {
	s := NewMemoryStore()
	err := s.Hold(context.Background(), []string{"ghost:1:30"}, "call-1", base, base.Add(time.Minute))
	assert.ErrorIs(t, err, availabilityerrors.ErrSlotNotFound)
}

func TestHoldOverLapsedHold(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	ids := seed(t, s, "alex", 1)

	require.NoError(t, s.Hold(ctx, ids, "call-1", base, base.Add(90*time.Second)))
	assert.ErrorIs(t, s.Hold(ctx, ids, "call-1", base.Add(30*time.Second), base.Add(2*time.Minute)),
		availabilityerrors.ErrSlotUnavailable, "a live hold is not extended by its owner")
	assert.ErrorIs(t, s.Hold(ctx, ids, "call-2", base.Add(30*time.Second), base.Add(2*time.Minute)),
		availabilityerrors.ErrSlotUnavailable)
	assert.NoError(t, s.Hold(ctx, ids, "call-2", base.Add(90*time.Second), base.Add(3*time.Minute)))
}

func TestBookClassification(t *testing.T) {
	ctx := context.Background()
	now := base.Add(-time.Hour)

	tests := []struct {
		name    string
		prepare func(s Store, ids []string)
		wantErr error
	}{
		{
			name: "live own hold",
			prepare: func(s Store, ids []string) {
				_ = s.Hold(ctx, ids, "call-1", now, now.Add(time.Minute))
			},
		},
		{
			name: "held by another session",
			prepare: func(s Store, ids []string) {
				_ = s.Hold(ctx, ids, "call-2", now, now.Add(time.Minute))
			},
			wantErr: availabilityerrors.ErrSlotUnavailable,
		},
		{
			name: "own hold lapsed",
			prepare: func(s Store, ids []string) {
				_ = s.Hold(ctx, ids, "call-1", now.Add(-2*time.Minute), now.Add(-time.Second))
			},
			wantErr: availabilityerrors.ErrHoldLapsed,
		},
		{
			name:    "never held",
			prepare: func(Store, []string) {},
			wantErr: availabilityerrors.ErrHoldLapsed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewMemoryStore()
			ids := seed(t, s, "alex", 1)
			tt.prepare(s, ids)

			err := s.Book(ctx, ids, "call-1", now, appointmentFor("appt-1", "alex", base, 30))
			if tt.wantErr == nil {
				require.NoError(t, err)
				got, _ := s.FindByIDs(ctx, ids)
				assert.Equal(t, model.SlotBooked, got[0].State)
				assert.Equal(t, "appt-1", got[0].AppointmentID)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			count, _ := s.Count(ctx)
			assert.Zero(t, count, "no appointment may be created on failure")
		})
	}
}

func TestReleaseOnlyOwnHolds(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	ids := seed(t, s, "alex", 1)

	require.NoError(t, s.Hold(ctx, ids, "call-1", base, base.Add(time.Minute)))

	n, err := s.Release(ctx, ids, "call-2")
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = s.Release(ctx, ids, "call-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.Release(ctx, ids, "call-1")
	require.NoError(t, err)
	assert.Zero(t, n, "release is idempotent")
}

func TestReleaseExpiredAndFindOpen(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	ids := seed(t, s, "alex", 3)

	require.NoError(t, s.Hold(ctx, ids[0:1], "call-1", base, base.Add(time.Minute)))
	require.NoError(t, s.Hold(ctx, ids[1:2], "call-2", base, base.Add(time.Hour)))

	open, err := s.FindOpen(ctx, []string{"alex"}, base, base.Add(2*time.Hour), base)
	require.NoError(t, err)
	assert.Len(t, open, 1)

	later := base.Add(2 * time.Minute)
	open, err = s.FindOpen(ctx, []string{"alex"}, base, base.Add(2*time.Hour), later)
	require.NoError(t, err)
	assert.Len(t, open, 2, "a lapsed hold counts as open before the sweep runs")

	released, err := s.ReleaseExpired(ctx, later)
	require.NoError(t, err)
	assert.Equal(t, ids[0:1], released)

	got, _ := s.FindByIDs(ctx, ids[0:2])
	assert.Equal(t, model.SlotFree, got[0].State)
	assert.Equal(t, model.SlotHeld, got[1].State)
}

func TestCancelFreesBlocks(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	ids := seed(t, s, "alex", 2)

	require.NoError(t, s.Hold(ctx, ids, "call-1", base, base.Add(time.Minute)))
	require.NoError(t, s.Book(ctx, ids, "call-1", base, appointmentFor("appt-1", "alex", base, 45)))

	appt, err := s.Cancel(ctx, "appt-1", base)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentCancelled, appt.Status)
	require.NotNil(t, appt.CancelledAt)

	got, _ := s.FindByIDs(ctx, ids)
	for _, slot := range got {
		assert.Equal(t, model.SlotFree, slot.State)
	}

	_, err = s.Cancel(ctx, "appt-1", base)
	assert.ErrorIs(t, err, availabilityerrors.ErrAlreadyCancelled)

	_, err = s.Cancel(ctx, "missing", base)
	assert.ErrorIs(t, err, availabilityerrors.ErrAppointmentNotFound)

	count, _ := s.Count(ctx)
	assert.Equal(t, int64(1), count, "cancellation keeps the record")
}

func TestFindAllPaginates(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	ids := seed(t, s, "alex", 3)

	for i, id := range ids {
		require.NoError(t, s.Hold(ctx, []string{id}, "call-1", base, base.Add(time.Minute)))
		start := base.Add(time.Duration(i*model.SlotBlockMinutes) * time.Minute)
		require.NoError(t, s.Book(ctx, []string{id}, "call-1", base, appointmentFor(id, "alex", start, 30)))
	}

	page, err := s.FindAll(ctx, 2, 1)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[1], page[0].ID)

	page, err = s.FindAll(ctx, 10, 5)
	require.NoError(t, err)
	assert.Empty(t, page)
}
