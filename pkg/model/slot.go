package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type SlotState string

const (
	SlotFree   SlotState = "free"
	SlotHeld   SlotState = "held"
	SlotBooked SlotState = "booked"
)

// SlotBlockMinutes is the size of one grid block. Longer services occupy
// several consecutive blocks of the same barber.
const SlotBlockMinutes = 30

// AvailabilitySlot is one grid block of one barber. (BarberID, StartTime) is unique.
type AvailabilitySlot struct {
	ID            string     `json:"id" bson:"_id"`
	BarberID      string     `json:"barber_id" bson:"barber_id"`
	StartTime     time.Time  `json:"start_time" bson:"start_time"`
	DurationMin   int        `json:"duration_min" bson:"duration_min"`
	State         SlotState  `json:"state" bson:"state"`
	HeldBy        string     `json:"held_by,omitempty" bson:"held_by,omitempty"`
	HoldExpiresAt *time.Time `json:"hold_expires_at,omitempty" bson:"hold_expires_at,omitempty"`
	AppointmentID string     `json:"appointment_id,omitempty" bson:"appointment_id,omitempty"`
}

func NewFreeSlot(barberID string, start time.Time) AvailabilitySlot {
	start = start.UTC()
	return AvailabilitySlot{
		ID:          SlotID(barberID, start, SlotBlockMinutes),
		BarberID:    barberID,
		StartTime:   start,
		DurationMin: SlotBlockMinutes,
		State:       SlotFree,
	}
}

func (s AvailabilitySlot) EndTime() time.Time {
	return s.StartTime.Add(time.Duration(s.DurationMin) * time.Minute)
}

// HoldLapsed reports a held block whose TTL has passed at now.
func (s AvailabilitySlot) HoldLapsed(now time.Time) bool {
	return s.State == SlotHeld && s.HoldExpiresAt != nil && !now.Before(*s.HoldExpiresAt)
}

// SlotID builds the identifier "<barber>:<unix start>:<minutes>". A grid block
// and a single-block candidate share the same form, so hold/confirm/release
// accept either.
func SlotID(barberID string, start time.Time, durationMin int) string {
	return fmt.Sprintf("%s:%d:%d", barberID, start.UTC().Unix(), durationMin)
}

func ParseSlotID(id string) (barberID string, start time.Time, durationMin int, err error) {
	parts := strings.Split(id, ":")
	if len(parts) != 3 || parts[0] == "" {
		return "", time.Time{}, 0, fmt.Errorf("malformed slot id %q", id)
	}
	unix, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", time.Time{}, 0, fmt.Errorf("malformed slot start in %q: %w", id, err)
	}
	minutes, err := strconv.Atoi(parts[2])
	if err != nil || minutes <= 0 {
		return "", time.Time{}, 0, fmt.Errorf("malformed slot duration in %q", id)
	}
	return parts[0], time.Unix(unix, 0).UTC(), minutes, nil
}

// BlockIDs expands a slot id into the ids of every grid block it covers.
func BlockIDs(id string) ([]string, error) {
	barberID, start, minutes, err := ParseSlotID(id)
	if err != nil {
		return nil, err
	}
	n := (minutes + SlotBlockMinutes - 1) / SlotBlockMinutes
	ids := make([]string, 0, n)
	for i := range n {
		blockStart := start.Add(time.Duration(i*SlotBlockMinutes) * time.Minute)
		ids = append(ids, SlotID(barberID, blockStart, SlotBlockMinutes))
	}
	return ids, nil
}

// Candidate is a bookable span for a specific service: one or more
// consecutive free blocks of a barber qualified for it.
type Candidate struct {
	SlotID     string    `json:"slot_id"`
	BarberID   string    `json:"barber_id"`
	BarberName string    `json:"barber_name"`
	ServiceID  string    `json:"service_id"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
}

// HeldSlot is the receipt for a successful hold.
type HeldSlot struct {
	SlotID    string    `json:"slot_id" bson:"slot_id"`
	SessionID string    `json:"session_id" bson:"session_id"`
	BarberID  string    `json:"barber_id" bson:"barber_id"`
	StartTime time.Time `json:"start_time" bson:"start_time"`
	ExpiresAt time.Time `json:"expires_at" bson:"expires_at"`
	BlockIDs  []string  `json:"block_ids" bson:"block_ids"`
}
