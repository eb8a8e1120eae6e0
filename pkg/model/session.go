package model

import "time"

type DialogueState string

const (
	StateGreeting             DialogueState = "GREETING"
	StateCollectingService    DialogueState = "COLLECTING_SERVICE"
	StateCollectingIdentity   DialogueState = "COLLECTING_IDENTITY"
	StateProposingSlot        DialogueState = "PROPOSING_SLOT"
	StateAwaitingConfirmation DialogueState = "AWAITING_CONFIRMATION"
	StateAnsweringQuestion    DialogueState = "ANSWERING_QUESTION"
	StateBooked               DialogueState = "BOOKED"
	StateDeclined             DialogueState = "DECLINED"
	StateClosing              DialogueState = "CLOSING"
)

// Terminal reports states after which the call is wrapping up.
func (s DialogueState) Terminal() bool {
	return s == StateBooked || s == StateDeclined || s == StateClosing
}

type ConfirmationStatus string

const (
	ConfirmationUnconfirmed ConfirmationStatus = "unconfirmed"
	ConfirmationProposed    ConfirmationStatus = "proposed"
	ConfirmationConfirmed   ConfirmationStatus = "confirmed"
	ConfirmationDeclined    ConfirmationStatus = "declined"
)

type SessionStatus string

const (
	SessionActive   SessionStatus = "active"
	SessionArchived SessionStatus = "archived"
)

// Field is one slot-filling value. Only a Valid field counts as known; an
// invalid one is kept so the next prompt can re-ask it.
type Field struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
	Valid      bool    `json:"valid"`
}

func (f *Field) Known() bool {
	return f != nil && f.Valid && f.Value != ""
}

// TimeWindow is a concrete preferred range resolved from caller phrasing.
// Open means "whenever": search the whole look-ahead horizon.
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Label string    `json:"label"`
	Open  bool      `json:"open,omitempty"`
}

type ProposedSlot struct {
	SlotID        string    `json:"slot_id"`
	BarberID      string    `json:"barber_id"`
	BarberName    string    `json:"barber_name"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	HoldExpiresAt time.Time `json:"hold_expires_at"`
}

type SlotFields struct {
	Service      *Field             `json:"service,omitempty"`
	Name         *Field             `json:"name,omitempty"`
	Phone        *Field             `json:"phone,omitempty"`
	Window       *TimeWindow        `json:"window,omitempty"`
	Proposed     *ProposedSlot      `json:"proposed,omitempty"`
	Confirmation ConfirmationStatus `json:"confirmation"`
}

type Turn struct {
	Index     int           `json:"index"`
	Utterance string        `json:"utterance"`
	Response  string        `json:"response"`
	Intent    IntentLabel   `json:"intent"`
	State     DialogueState `json:"state"`
	Audio     *AudioRef     `json:"audio,omitempty"`
	At        time.Time     `json:"at"`
}

// CallSession is the per-call conversation record. It is created on the
// first inbound turn and archived when the call closes or idles out.
type CallSession struct {
	CallID          string        `json:"call_id"`
	State           DialogueState `json:"state"`
	PriorState      DialogueState `json:"prior_state,omitempty"`
	Fields          SlotFields    `json:"fields"`
	Turns           []Turn        `json:"turns"`
	SilentTurns     int           `json:"silent_turns"`
	FailedTurns     int           `json:"failed_turns"`
	Declines        int           `json:"declines"`
	RejectedSlotIDs []string      `json:"rejected_slot_ids,omitempty"`
	AppointmentID   string        `json:"appointment_id,omitempty"`
	Status          SessionStatus `json:"status"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

func NewCallSession(callID string, now time.Time) *CallSession {
	return &CallSession{
		CallID: callID,
		State:  StateGreeting,
		Fields: SlotFields{
			Confirmation: ConfirmationUnconfirmed,
		},
		Status:    SessionActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NextTurnIndex is the zero-based index of the turn about to be recorded.
func (s *CallSession) NextTurnIndex() int {
	return len(s.Turns)
}

type AudioKind string

const (
	AudioPlay AudioKind = "play"
	AudioSay  AudioKind = "say"
)

// AudioRef points telephony at what to voice for a turn: a synthesized
// artifact URL to play, or the text itself to speak with the carrier's voice.
type AudioRef struct {
	Kind      AudioKind `json:"kind"`
	URL       string    `json:"url,omitempty"`
	Text      string    `json:"text"`
	CallID    string    `json:"call_id"`
	TurnIndex int       `json:"turn_index"`
}

type TurnOutcome struct {
	ResponseText string    `json:"response_text"`
	Continue     bool      `json:"continue"`
	Audio        *AudioRef `json:"audio,omitempty"`
}
