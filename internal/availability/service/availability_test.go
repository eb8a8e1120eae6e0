package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"barberline/internal/availability/repository"
	"barberline/internal/availability/validator"
	"barberline/internal/catalog"
	"barberline/pkg/config"
	apperrors "barberline/pkg/errors"
	"barberline/pkg/events"
	"barberline/pkg/logger"
	"barberline/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Monday, before opening.
var monday = time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	svc      AvailabilityService
	store    repository.Store
	recorder *events.Recorder
	clock    *fakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.Discard()
	cfg := &config.Config{
		Log:           log,
		HoldTTL:       90 * time.Second,
		LookaheadDays: 14,
		Location:      time.UTC,
	}
	clock := &fakeClock{now: monday}
	store := repository.NewMemoryStore()
	recorder := events.NewRecorder()
	svc := NewAvailabilityService(store, catalog.Default(), validator.NewAvailabilityValidator(log), recorder, cfg, WithClock(clock.Now))

	_, err := svc.ExtendGrid(context.Background())
	require.NoError(t, err)

	return &fixture{svc: svc, store: store, recorder: recorder, clock: clock}
}

func mondayMorning() *model.TimeWindow {
	return &model.TimeWindow{
		Start: time.Date(2026, 10, 19, 6, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
		Label: "monday morning",
	}
}

func details(name string) model.AppointmentDetails {
	return model.AppointmentDetails{
		ServiceID:    "HAIRCUT",
		CustomerName: name,
		Phone:        "+15551234567",
		CallID:       "call-" + name,
	}
}

func TestFindCandidateSlotsOrdering(t *testing.T) {
	f := newFixture(t)

	got, err := f.svc.FindCandidateSlots(context.Background(), "HAIRCUT", mondayMorning())
	require.NoError(t, err)

	// 09:00 to 11:30 is six starts for each of three barbers.
	require.Len(t, got, 18)
	assert.Equal(t, time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC), got[0].StartTime)
	assert.Equal(t, "alex", got[0].BarberID)
	assert.Equal(t, "Alex", got[0].BarberName)
	assert.Equal(t, got[0].StartTime.Add(30*time.Minute), got[0].EndTime)
	for i := 1; i < len(got); i++ {
		assert.False(t, got[i].StartTime.Before(got[i-1].StartTime), "candidates must be soonest first")
	}
}

func TestFindCandidateSlotsQualifiedBarbersOnly(t *testing.T) {
	f := newFixture(t)

	got, err := f.svc.FindCandidateSlots(context.Background(), "COLOR", mondayMorning())
	require.NoError(t, err)
	require.NotEmpty(t, got)
	for _, c := range got {
		assert.NotEqual(t, "casey", c.BarberID)
		assert.Equal(t, 45*time.Minute, c.EndTime.Sub(c.StartTime))
	}
}

func TestFindCandidateSlotsNeedsConsecutiveBlocks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Take alex's 09:30 block with a haircut hold.
	nineThirty := model.SlotID("alex", time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC), 30)
	_, err := f.svc.Hold(ctx, nineThirty, "call-1")
	require.NoError(t, err)

	got, err := f.svc.FindCandidateSlots(ctx, "COLOR", mondayMorning())
	require.NoError(t, err)
	for _, c := range got {
		if c.BarberID == "alex" {
			assert.NotEqual(t, 9, c.StartTime.Hour(), "alex has no two free blocks starting at 9")
		}
	}

	// The last colour start of the day is 16:00, not 16:30.
	afternoon := &model.TimeWindow{
		Start: time.Date(2026, 10, 19, 16, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 10, 19, 17, 0, 0, 0, time.UTC),
	}
	got, err = f.svc.FindCandidateSlots(ctx, "COLOR", afternoon)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, c := range got {
		assert.Equal(t, 16, c.StartTime.Hour())
		assert.Equal(t, 0, c.StartTime.Minute())
	}
}

func TestFindCandidateSlotsEmptyOutsideHorizon(t *testing.T) {
	f := newFixture(t)

	past := &model.TimeWindow{
		Start: monday.AddDate(0, 0, -3),
		End:   monday.AddDate(0, 0, -2),
	}
	got, err := f.svc.FindCandidateSlots(context.Background(), "HAIRCUT", past)
	require.NoError(t, err)
	assert.Empty(t, got)

	farAway := &model.TimeWindow{
		Start: monday.AddDate(0, 1, 0),
		End:   monday.AddDate(0, 1, 1),
	}
	got, err = f.svc.FindCandidateSlots(context.Background(), "HAIRCUT", farAway)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFindCandidateSlotsUnknownService(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.FindCandidateSlots(context.Background(), "PERM", nil)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestFindNextAvailable(t *testing.T) {
	f := newFixture(t)

	got, err := f.svc.FindNextAvailable(context.Background(), "SHAVE")
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC), got[0].StartTime)
	assert.True(t, got[len(got)-1].StartTime.Before(monday.AddDate(0, 0, 3)))
}

func TestConcurrentHoldsHaveOneWinner(t *testing.T) {
	f := newFixture(t)
	slotID := model.SlotID("alex", time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC), 30)

	const callers = 25
	var wg sync.WaitGroup
	results := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = f.svc.Hold(context.Background(), slotID, fmt.Sprintf("call-%d", i))
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range results {
		if err == nil {
			wins++
			continue
		}
		assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, wins)
	assert.Len(t, f.recorder.OfType(events.TypeSlotHeld), 1)
}

func TestConcurrentOverlappingSpans(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	color := model.SlotID("alex", time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC), 45)
	haircut := model.SlotID("alex", time.Date(2026, 10, 19, 10, 30, 0, 0, time.UTC), 30)

	var wg sync.WaitGroup
	var colorErr, haircutErr error
	wg.Add(2)
	go func() { defer wg.Done(); _, colorErr = f.svc.Hold(ctx, color, "call-a") }()
	go func() { defer wg.Done(); _, haircutErr = f.svc.Hold(ctx, haircut, "call-b") }()
	wg.Wait()

	assert.True(t, (colorErr == nil) != (haircutErr == nil), "exactly one overlapping hold wins")
}

func TestHoldLapsesAfterTTL(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	slotID := model.SlotID("brook", time.Date(2026, 10, 19, 11, 0, 0, 0, time.UTC), 30)

	held, err := f.svc.Hold(ctx, slotID, "call-1")
	require.NoError(t, err)
	assert.Equal(t, monday.Add(90*time.Second), held.ExpiresAt)

	_, err = f.svc.Hold(ctx, slotID, "call-2")
	require.True(t, apperrors.HasCode(err, apperrors.CodeConflict))

	f.clock.Advance(91 * time.Second)
	n, err := f.svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, f.recorder.OfType(events.TypeSlotExpired), 1)

	_, err = f.svc.Hold(ctx, slotID, "call-2")
	assert.NoError(t, err, "another session can hold once the TTL passed")
}

func TestHoldIsNotRefreshedBySameSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	slotID := model.SlotID("casey", time.Date(2026, 10, 19, 11, 0, 0, 0, time.UTC), 30)

	held, err := f.svc.Hold(ctx, slotID, "call-1")
	require.NoError(t, err)

	f.clock.Advance(30 * time.Second)
	_, err = f.svc.Hold(ctx, slotID, "call-1")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict), "a slot already held is not free")

	slots, err := f.store.FindByIDs(ctx, held.BlockIDs)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	require.NotNil(t, slots[0].HoldExpiresAt)
	assert.True(t, slots[0].HoldExpiresAt.Equal(held.ExpiresAt), "the original expiry stands")
	assert.Len(t, f.recorder.OfType(events.TypeSlotHeld), 1)
}

func TestConfirmBooksHeldSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	slotID := model.SlotID("alex", time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC), 30)

	_, err := f.svc.Hold(ctx, slotID, "call-1")
	require.NoError(t, err)

	appt, err := f.svc.Confirm(ctx, slotID, "call-1", details("John Smith"))
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentBooked, appt.Status)
	assert.Equal(t, "alex", appt.BarberID)
	assert.Equal(t, slotID, appt.SlotID)

	blocks, _ := model.BlockIDs(slotID)
	got, err := f.store.FindByIDs(ctx, blocks)
	require.NoError(t, err)
	assert.Equal(t, model.SlotBooked, got[0].State)

	booked := f.recorder.OfType(events.TypeAppointmentBooked)
	require.Len(t, booked, 1)
	payload := booked[0].Payload.(events.AppointmentPayload)
	assert.Equal(t, "Haircut", payload.ServiceName)
	assert.Equal(t, "Riverside Cuts", payload.ShopName)

	_, err = f.svc.Hold(ctx, slotID, "call-2")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict), "a booked slot cannot be held")
}

func TestConfirmExpiredHold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	slotID := model.SlotID("alex", time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC), 30)

	_, err := f.svc.Hold(ctx, slotID, "call-1")
	require.NoError(t, err)

	f.clock.Advance(90 * time.Second)
	_, err = f.svc.Confirm(ctx, slotID, "call-1", details("John Smith"))
	require.True(t, apperrors.HasCode(err, apperrors.CodeExpired), "got %v", err)

	count, _ := f.store.Count(ctx)
	assert.Zero(t, count)

	blocks, _ := model.BlockIDs(slotID)
	got, _ := f.store.FindByIDs(ctx, blocks)
	assert.Equal(t, model.SlotFree, got[0].State)
}

func TestConfirmAfterSweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	slotID := model.SlotID("alex", time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC), 30)

	_, err := f.svc.Hold(ctx, slotID, "call-1")
	require.NoError(t, err)
	f.clock.Advance(2 * time.Minute)
	_, err = f.svc.SweepExpired(ctx)
	require.NoError(t, err)

	_, err = f.svc.Confirm(ctx, slotID, "call-1", details("John Smith"))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeExpired))
}

func TestConfirmSlotHeldByAnotherSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	slotID := model.SlotID("alex", time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC), 30)

	_, err := f.svc.Hold(ctx, slotID, "call-other")
	require.NoError(t, err)

	_, err = f.svc.Confirm(ctx, slotID, "call-1", details("John Smith"))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))

	count, _ := f.store.Count(ctx)
	assert.Zero(t, count)
}

func TestConfirmRejectsInvalidDetails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	slotID := model.SlotID("alex", time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC), 30)
	_, err := f.svc.Hold(ctx, slotID, "call-1")
	require.NoError(t, err)

	bad := details("John Smith")
	bad.Phone = "555"
	_, err = f.svc.Confirm(ctx, slotID, "call-1", bad)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	color := details("John Smith")
	color.ServiceID = "COLOR"
	caseySlot := model.SlotID("casey", time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC), 45)
	_, err = f.svc.Confirm(ctx, caseySlot, "call-1", color)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation), "casey does not offer colour")
}

func TestReleaseIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	slotID := model.SlotID("alex", time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC), 30)

	_, err := f.svc.Hold(ctx, slotID, "call-1")
	require.NoError(t, err)

	require.NoError(t, f.svc.Release(ctx, slotID, "call-2"))
	_, err = f.svc.Hold(ctx, slotID, "call-2")
	require.True(t, apperrors.HasCode(err, apperrors.CodeConflict), "release by a non-owner is a no-op")

	require.NoError(t, f.svc.Release(ctx, slotID, "call-1"))
	require.NoError(t, f.svc.Release(ctx, slotID, "call-1"))
	assert.Len(t, f.recorder.OfType(events.TypeSlotReleased), 1)

	_, err = f.svc.Hold(ctx, slotID, "call-2")
	assert.NoError(t, err)

	assert.True(t, apperrors.HasCode(f.svc.Release(ctx, "garbage", "call-1"), apperrors.CodeInvalidInput))
}

func TestCancelAppointment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	slotID := model.SlotID("alex", time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC), 30)

	_, err := f.svc.Hold(ctx, slotID, "call-1")
	require.NoError(t, err)
	appt, err := f.svc.Confirm(ctx, slotID, "call-1", details("John Smith"))
	require.NoError(t, err)

	cancelled, err := f.svc.CancelAppointment(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentCancelled, cancelled.Status)

	_, err = f.svc.CancelAppointment(ctx, appt.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))

	list, total, err := f.svc.ListAppointments(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, model.AppointmentCancelled, list[0].Status)

	_, err = f.svc.Hold(ctx, slotID, "call-2")
	assert.NoError(t, err, "cancelling frees the slot")

	_, err = f.svc.GetAppointment(ctx, "missing")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}
