package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	availabilityerrors "barberline/internal/availability/errors"
	"barberline/pkg/model"
)

type memoryStore struct {
	mu           sync.RWMutex
	slots        map[string]*model.AvailabilitySlot
	appointments map[string]*model.Appointment
	order        []string
}

// NewMemoryStore keeps slots and appointments in process memory. It backs the
// console driver and tests, and the agent when STORE_BACKEND=memory.
func NewMemoryStore() Store {
	return &memoryStore{
		slots:        make(map[string]*model.AvailabilitySlot),
		appointments: make(map[string]*model.Appointment),
	}
}

func (s *memoryStore) UpsertFree(_ context.Context, slots []model.AvailabilitySlot) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, slot := range slots {
		if _, ok := s.slots[slot.ID]; ok {
			continue
		}
		slot := slot
		slot.State = model.SlotFree
		s.slots[slot.ID] = &slot
		inserted++
	}
	return inserted, nil
}

func (s *memoryStore) FindOpen(_ context.Context, barberIDs []string, from, to, now time.Time) ([]model.AvailabilitySlot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[string]bool, len(barberIDs))
	for _, id := range barberIDs {
		wanted[id] = true
	}

	var out []model.AvailabilitySlot
	for _, slot := range s.slots {
		if !wanted[slot.BarberID] || slot.StartTime.Before(from) || !slot.StartTime.Before(to) {
			continue
		}
		if slot.State == model.SlotFree || slot.HoldLapsed(now) {
			out = append(out, *slot)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BarberID != out[j].BarberID {
			return out[i].BarberID < out[j].BarberID
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out, nil
}

func (s *memoryStore) FindByIDs(_ context.Context, ids []string) ([]model.AvailabilitySlot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.AvailabilitySlot, 0, len(ids))
	for _, id := range ids {
		if slot, ok := s.slots[id]; ok {
			out = append(out, *slot)
		}
	}
	return out, nil
}

func (s *memoryStore) snapshot(ids []string) map[string]model.AvailabilitySlot {
	found := make(map[string]model.AvailabilitySlot, len(ids))
	for _, id := range ids {
		if slot, ok := s.slots[id]; ok {
			found[id] = *slot
		}
	}
	return found
}

func (s *memoryStore) Hold(_ context.Context, blockIDs []string, sessionID string, now, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := checkHoldable(blockIDs, s.snapshot(blockIDs), now); err != nil {
		return err
	}
	for _, id := range blockIDs {
		slot := s.slots[id]
		exp := expiresAt
		slot.State = model.SlotHeld
		slot.HeldBy = sessionID
		slot.HoldExpiresAt = &exp
	}
	return nil
}

func (s *memoryStore) Book(_ context.Context, blockIDs []string, sessionID string, now time.Time, appt *model.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := checkBookable(blockIDs, s.snapshot(blockIDs), sessionID, now); err != nil {
		return err
	}
	for _, other := range s.appointments {
		if other.BarberID == appt.BarberID && other.Status == model.AppointmentBooked &&
			overlaps(other.StartTime, other.EndTime, appt.StartTime, appt.EndTime) {
			return availabilityerrors.ErrOverlappingAppointment
		}
	}

	for _, id := range blockIDs {
		slot := s.slots[id]
		slot.State = model.SlotBooked
		slot.HeldBy = ""
		slot.HoldExpiresAt = nil
		slot.AppointmentID = appt.ID
	}
	stored := *appt
	s.appointments[appt.ID] = &stored
	s.order = append(s.order, appt.ID)
	return nil
}

func (s *memoryStore) Release(_ context.Context, blockIDs []string, sessionID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	released := 0
	for _, id := range blockIDs {
		slot, ok := s.slots[id]
		if !ok || slot.State != model.SlotHeld || slot.HeldBy != sessionID {
			continue
		}
		freeSlot(slot)
		released++
	}
	return released, nil
}

func (s *memoryStore) ReleaseExpired(_ context.Context, now time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var released []string
	for id, slot := range s.slots {
		if slot.HoldLapsed(now) {
			freeSlot(slot)
			released = append(released, id)
		}
	}
	sort.Strings(released)
	return released, nil
}

func freeSlot(slot *model.AvailabilitySlot) {
	slot.State = model.SlotFree
	slot.HeldBy = ""
	slot.HoldExpiresAt = nil
	slot.AppointmentID = ""
}

func (s *memoryStore) FindByID(_ context.Context, id string) (*model.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	appt, ok := s.appointments[id]
	if !ok {
		return nil, availabilityerrors.ErrAppointmentNotFound
	}
	out := *appt
	return &out, nil
}

func (s *memoryStore) FindAll(_ context.Context, limit int, offset int64) ([]*model.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*model.Appointment, 0, len(s.order))
	for _, id := range s.order {
		appt := *s.appointments[id]
		all = append(all, &appt)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].StartTime.Before(all[j].StartTime) })

	if offset >= int64(len(all)) {
		return []*model.Appointment{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (s *memoryStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.appointments)), nil
}

func (s *memoryStore) Cancel(_ context.Context, id string, at time.Time) (*model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	appt, ok := s.appointments[id]
	if !ok {
		return nil, availabilityerrors.ErrAppointmentNotFound
	}
	if appt.Status == model.AppointmentCancelled {
		return nil, availabilityerrors.ErrAlreadyCancelled
	}
	cancelledAt := at
	appt.Status = model.AppointmentCancelled
	appt.CancelledAt = &cancelledAt

	for _, slot := range s.slots {
		if slot.State == model.SlotBooked && slot.AppointmentID == id {
			freeSlot(slot)
		}
	}
	out := *appt
	return &out, nil
}
