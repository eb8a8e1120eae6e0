package errors

import "errors"

var (
	ErrSlotNotFound = errors.New("availability slot not found")

	ErrInvalidSlotID = errors.New("invalid slot ID format")

	// ErrSlotUnavailable: a block is booked, or held by another session whose hold is still live.
	ErrSlotUnavailable = errors.New("slot is not available")

	// ErrHoldLapsed: the caller's hold is gone, either swept or past its expiry.
	ErrHoldLapsed = errors.New("slot hold has expired")

	ErrAppointmentNotFound = errors.New("appointment not found")

	ErrAlreadyCancelled = errors.New("appointment already cancelled")

	ErrOverlappingAppointment = errors.New("appointment overlaps an existing booking")
)
