// Package events defines the domain events the agent emits and the
// publishers that carry them.
package events

import (
	"context"
	"sync"
	"time"

	"barberline/pkg/model"
)

const (
	TypeSlotHeld             = "slot.held"
	TypeSlotReleased         = "slot.released"
	TypeSlotExpired          = "slot.expired"
	TypeAppointmentBooked    = "appointment.booked"
	TypeAppointmentCancelled = "appointment.cancelled"
	TypeCallTurn             = "call.turn"
	TypeCallClosed           = "call.closed"
)

type Event struct {
	Type       string
	Key        string
	CallID     string
	OccurredAt time.Time
	Payload    any
}

type SlotPayload struct {
	SlotIDs   []string   `json:"slot_ids"`
	SessionID string     `json:"session_id,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type AppointmentPayload struct {
	Appointment model.Appointment `json:"appointment"`
	ServiceName string            `json:"service_name"`
	BarberName  string            `json:"barber_name"`
	ShopName    string            `json:"shop_name"`
	TimeZone    string            `json:"time_zone"`
}

// TurnPayload is one line of the call log.
type TurnPayload struct {
	CallID    string              `json:"call_id"`
	Stage     model.DialogueState `json:"stage"`
	Timestamp time.Time           `json:"timestamp"`
	Intent    model.IntentLabel   `json:"intent,omitempty"`
	Utterance string              `json:"utterance,omitempty"`
	Response  string              `json:"response,omitempty"`
	Fields    model.SlotFields    `json:"fields"`
	Extra     map[string]any      `json:"extra,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }

// Recorder keeps every published event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Publish(_ context.Context, evt Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func (r *Recorder) Close() error { return nil }

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType returns the recorded events with the given type, in publish order.
func (r *Recorder) OfType(eventType string) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
