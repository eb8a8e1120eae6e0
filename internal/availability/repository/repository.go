package repository

import (
	"context"
	"time"

	availabilityerrors "barberline/internal/availability/errors"
	"barberline/pkg/model"
)

const (
	SlotCollectionName        = "AvailabilitySlots"
	AppointmentCollectionName = "Appointments"
	BarberCollectionName      = "Barbers"
	ServiceCollectionName     = "Services"
)

// SlotRepository stores grid blocks. Every multi-block operation is
// all-or-nothing: either every block changes state or none does.
type SlotRepository interface {
	// UpsertFree inserts blocks that do not exist yet and leaves existing ones untouched.
	UpsertFree(ctx context.Context, slots []model.AvailabilitySlot) (int, error)
	// FindOpen returns blocks of the given barbers starting in [from, to) that are
	// free or whose hold lapsed at now, ordered by barber then start time.
	FindOpen(ctx context.Context, barberIDs []string, from, to, now time.Time) ([]model.AvailabilitySlot, error)
	FindByIDs(ctx context.Context, ids []string) ([]model.AvailabilitySlot, error)
	Hold(ctx context.Context, blockIDs []string, sessionID string, now, expiresAt time.Time) error
	// Book turns the session's live hold into an appointment in one step.
	Book(ctx context.Context, blockIDs []string, sessionID string, now time.Time, appt *model.Appointment) error
	// Release frees blocks held by sessionID and reports how many changed.
	Release(ctx context.Context, blockIDs []string, sessionID string) (int, error)
	// ReleaseExpired frees every block whose hold lapsed at now.
	ReleaseExpired(ctx context.Context, now time.Time) ([]string, error)
}

type AppointmentRepository interface {
	FindByID(ctx context.Context, id string) (*model.Appointment, error)
	FindAll(ctx context.Context, limit int, offset int64) ([]*model.Appointment, error)
	Count(ctx context.Context) (int64, error)
	// Cancel flips the status and frees the appointment's blocks.
	Cancel(ctx context.Context, id string, at time.Time) (*model.Appointment, error)
}

// Store is the availability data-access contract the service depends on.
type Store interface {
	SlotRepository
	AppointmentRepository
}

// checkHoldable accepts blocks that are free or whose hold lapsed. A live hold
// is a conflict even for the session that owns it; holds are never extended.
func checkHoldable(ids []string, found map[string]model.AvailabilitySlot, now time.Time) error {
	for _, id := range ids {
		slot, ok := found[id]
		if !ok {
			return availabilityerrors.ErrSlotNotFound
		}
		switch slot.State {
		case model.SlotFree:
		case model.SlotHeld:
			if !slot.HoldLapsed(now) {
				return availabilityerrors.ErrSlotUnavailable
			}
		default:
			return availabilityerrors.ErrSlotUnavailable
		}
	}
	return nil
}

// checkBookable requires every block to carry a live hold of sessionID.
// A block lost to someone else is a conflict; a block that fell back to free
// or whose own hold lapsed means the hold expired.
func checkBookable(ids []string, found map[string]model.AvailabilitySlot, sessionID string, now time.Time) error {
	var lapsed bool
	for _, id := range ids {
		slot, ok := found[id]
		if !ok {
			return availabilityerrors.ErrSlotNotFound
		}
		switch slot.State {
		case model.SlotBooked:
			return availabilityerrors.ErrSlotUnavailable
		case model.SlotHeld:
			if slot.HeldBy != sessionID {
				if !slot.HoldLapsed(now) {
					return availabilityerrors.ErrSlotUnavailable
				}
				lapsed = true
			} else if slot.HoldLapsed(now) {
				lapsed = true
			}
		default:
			lapsed = true
		}
	}
	if lapsed {
		return availabilityerrors.ErrHoldLapsed
	}
	return nil
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}
