// Package dialogue drives one phone call from greeting to booking. Each
// caller turn runs through a fixed pipeline of steps that extract, answer
// side questions, collect missing fields, propose and confirm a slot.
package dialogue

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"barberline/internal/catalog"
	"barberline/internal/dialogue/flow"
	"barberline/internal/extractor"
	"barberline/internal/knowledge"
	"barberline/pkg/config"
	apperrors "barberline/pkg/errors"
	"barberline/pkg/events"
	"barberline/pkg/logger"
	"barberline/pkg/metrics"
	"barberline/pkg/model"
)

const (
	turnFlow = "turn"

	// maxHoldAttempts bounds how many candidates one proposal tries to hold
	// when other callers keep winning the race.
	maxHoldAttempts = 5
)

type Availability interface {
	FindCandidateSlots(ctx context.Context, serviceID string, window *model.TimeWindow) ([]model.Candidate, error)
	FindNextAvailable(ctx context.Context, serviceID string) ([]model.Candidate, error)
	Hold(ctx context.Context, slotID, sessionID string) (*model.HeldSlot, error)
	Confirm(ctx context.Context, slotID, sessionID string, details model.AppointmentDetails) (*model.Appointment, error)
	Release(ctx context.Context, slotID, sessionID string) error
}

type Knowledge interface {
	Ready() bool
	Answer(ctx context.Context, question string, topK int) (knowledge.Answer, error)
}

type Extractor interface {
	Extract(ctx context.Context, in extractor.Input) extractor.Result
}

type Renderer interface {
	Render(ctx context.Context, text, callID string, turnIndex int) (*model.AudioRef, error)
}

type Deps struct {
	Availability Availability
	Knowledge    Knowledge
	Extractor    Extractor
	// Renderer may be nil, in which case every turn is spoken by the carrier.
	Renderer  Renderer
	Sessions  *Sessions
	Publisher events.Publisher
	Catalog   *catalog.Catalog
}

type Option func(*Machine)

func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		m.now = now
	}
}

type Machine struct {
	availability Availability
	knowledge    Knowledge
	extractor    Extractor
	renderer     Renderer
	sessions     *Sessions
	publisher    events.Publisher
	prompts      *prompts
	engine       *flow.Engine[*turn]
	cfg          *config.Config
	now          func() time.Time
}

// turn is the state shared by the steps of one caller turn.
type turn struct {
	callID    string
	utterance string
	now       time.Time
	session   *model.CallSession
	log       *logger.Logger

	res       extractor.Result
	expecting extractor.FieldKey
	changed   []extractor.FieldKey
	// afterDecline is set when the caller just turned a proposal down.
	afterDecline bool

	reply []string
	end   bool
	extra map[string]any
}

func (t *turn) say(parts ...string) {
	for _, p := range parts {
		if p != "" {
			t.reply = append(t.reply, p)
		}
	}
}

func (t *turn) changedAny(keys ...extractor.FieldKey) bool {
	for _, k := range keys {
		if slices.Contains(t.changed, k) {
			return true
		}
	}
	return false
}

func NewMachine(deps Deps, cfg *config.Config, opts ...Option) *Machine {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	publisher := deps.Publisher
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	sessions := deps.Sessions
	if sessions == nil {
		sessions = NewSessions(nil, cfg.SessionIdleTTL, cfg.Log)
	}

	m := &Machine{
		availability: deps.Availability,
		knowledge:    deps.Knowledge,
		extractor:    deps.Extractor,
		renderer:     deps.Renderer,
		sessions:     sessions,
		publisher:    publisher,
		prompts:      newPrompts(deps.Catalog, loc),
		cfg:          cfg,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	m.engine = flow.NewEngine(flow.Flow[*turn]{
		Name: turnFlow,
		Steps: []flow.Step[*turn]{
			flow.NewStep("resume", m.resume),
			flow.NewStep("extract", m.extract),
			flow.NewStep("silence", m.silence),
			flow.NewStep("question", m.question),
			flow.NewStep("off_topic", m.offTopic),
			flow.NewStep("goodbye", m.goodbye),
			flow.NewStep("merge", m.merge),
			flow.NewStep("confirm", m.confirm),
			flow.NewStep("collect", m.collect),
			flow.NewStep("propose", m.propose),
		},
	})
	return m
}

// HandleTurn processes one caller utterance and returns what to say back.
// The first turn of a call may carry an empty utterance, which produces the
// greeting. Turns of one call are serialized; distinct calls run in parallel.
func (m *Machine) HandleTurn(ctx context.Context, callID, utterance string) (model.TurnOutcome, error) {
	callID = strings.TrimSpace(callID)
	if callID == "" {
		return model.TurnOutcome{}, apperrors.InvalidInput("call id is required")
	}
	if !m.knowledge.Ready() {
		return model.TurnOutcome{}, apperrors.FatalConfiguration("knowledge index is not built", nil)
	}

	started := time.Now()
	now := m.now()
	var outcome model.TurnOutcome

	err := m.sessions.With(ctx, callID, now, func(session *model.CallSession, created bool) error {
		t := &turn{
			callID:    callID,
			utterance: utterance,
			now:       now,
			session:   session,
			log:       m.cfg.Log.WithCall(callID),
			extra:     map[string]any{},
		}

		if session.Status != model.SessionActive {
			outcome = model.TurnOutcome{ResponseText: m.prompts.goodbye(), Continue: false}
			return nil
		}

		if created && strings.TrimSpace(utterance) == "" {
			t.log.Info("Call started")
			session.State = model.StateCollectingService
			t.say(m.prompts.greeting())
		} else {
			m.run(ctx, t)
		}

		outcome = m.finish(ctx, t, started)
		return nil
	})
	return outcome, err
}

func (m *Machine) run(ctx context.Context, t *turn) {
	halted, err := m.engine.Run(ctx, turnFlow, t)
	if err != nil {
		t.log.Error("Turn failed", "step", halted, "error", err)
		m.releaseProposed(ctx, t)
		t.reply = nil
		t.say(msgTechnicalIssue)
		t.session.State = model.StateClosing
		t.end = true
		return
	}
	if len(t.reply) == 0 {
		t.say(m.currentPrompt(t.session))
	}
	t.extra["halted_at"] = halted
}

func (m *Machine) finish(ctx context.Context, t *turn, started time.Time) model.TurnOutcome {
	s := t.session
	text := strings.Join(t.reply, " ")
	index := s.NextTurnIndex()

	audio := m.render(ctx, t, text, index)

	s.Turns = append(s.Turns, model.Turn{
		Index:     index,
		Utterance: t.utterance,
		Response:  text,
		Intent:    t.res.Intent,
		State:     s.State,
		Audio:     audio,
		At:        t.now,
	})

	intent := t.res.Intent
	if intent == "" {
		intent = model.IntentUnknown
	}
	metrics.DialogueTurns.WithLabelValues(string(s.State), string(intent)).Inc()
	metrics.DialogueTurnDuration.WithLabelValues(string(s.State)).Observe(time.Since(started).Seconds())

	events.Emit(ctx, m.publisher, t.log, events.Event{
		Type:       events.TypeCallTurn,
		Key:        s.CallID,
		CallID:     s.CallID,
		OccurredAt: t.now,
		Payload: events.TurnPayload{
			CallID:    s.CallID,
			Stage:     s.State,
			Timestamp: t.now,
			Intent:    t.res.Intent,
			Utterance: t.utterance,
			Response:  text,
			Fields:    s.Fields,
			Extra:     t.extra,
		},
	})

	t.log.Info("Turn handled",
		"turn", index,
		"state", s.State,
		"intent", t.res.Intent,
		"continue", !t.end,
	)

	if t.end {
		m.archive(ctx, s, t.now, "completed")
	}
	return model.TurnOutcome{ResponseText: text, Continue: !t.end, Audio: audio}
}

func (m *Machine) render(ctx context.Context, t *turn, text string, index int) *model.AudioRef {
	fallback := &model.AudioRef{Kind: model.AudioSay, Text: text, CallID: t.callID, TurnIndex: index}
	if m.renderer == nil {
		return fallback
	}
	ref, err := m.renderer.Render(ctx, text, t.callID, index)
	if err != nil || ref == nil {
		t.log.Warn("Render failed, speaking text", "turn", index, "error", err)
		return fallback
	}
	return ref
}

// archive closes the session. The final booking outcome stays readable from
// the last recorded turn and AppointmentID.
func (m *Machine) archive(ctx context.Context, s *model.CallSession, now time.Time, reason string) {
	outcome := s.State
	s.State = model.StateClosing
	s.Status = model.SessionArchived

	events.Emit(ctx, m.publisher, m.cfg.Log, events.Event{
		Type:       events.TypeCallClosed,
		Key:        s.CallID,
		CallID:     s.CallID,
		OccurredAt: now,
		Payload: events.TurnPayload{
			CallID:    s.CallID,
			Stage:     model.StateClosing,
			Timestamp: now,
			Fields:    s.Fields,
			Extra: map[string]any{
				"outcome":        outcome,
				"reason":         reason,
				"turns":          len(s.Turns),
				"appointment_id": s.AppointmentID,
			},
		},
	})
}

// ExpireIdle archives calls that stopped sending turns, releasing any slot
// they still hold.
func (m *Machine) ExpireIdle(ctx context.Context) error {
	now := m.now()
	n := m.sessions.ExpireIdle(ctx, now, func(s *model.CallSession) {
		if p := s.Fields.Proposed; p != nil {
			if err := m.availability.Release(ctx, p.SlotID, s.CallID); err != nil {
				m.cfg.Log.Warn("Failed to release idle hold", "call_id", s.CallID, "slot_id", p.SlotID, "error", err)
			}
			s.Fields.Proposed = nil
		}
		m.archive(ctx, s, now, "idle")
	})
	if n > 0 {
		m.cfg.Log.Info("Expired idle calls", "count", n)
	}

	pruned, err := m.sessions.Prune(ctx)
	if err != nil {
		return fmt.Errorf("failed to prune archived calls: %w", err)
	}
	if pruned > 0 {
		m.cfg.Log.Info("Pruned archived calls", "count", pruned)
	}
	return nil
}

func (m *Machine) Session(ctx context.Context, callID string) (*model.CallSession, error) {
	return m.sessions.Get(ctx, callID)
}

func (m *Machine) resume(_ context.Context, t *turn) error {
	s := t.session
	if s.State == model.StateAnsweringQuestion {
		s.State = s.PriorState
		s.PriorState = ""
	}
	if s.State.Terminal() {
		t.say(m.prompts.goodbye())
		t.end = true
		return flow.Halt
	}
	return nil
}

func (m *Machine) extract(ctx context.Context, t *turn) error {
	s := t.session
	if s.State != model.StateAwaitingConfirmation && s.State != model.StateGreeting {
		t.expecting = extractor.Missing(s.Fields)
	}
	t.res = m.extractor.Extract(ctx, extractor.Input{
		Utterance: t.utterance,
		State:     s.State,
		Expecting: t.expecting,
		Fields:    s.Fields,
		Now:       t.now,
	})
	return nil
}

func (m *Machine) silence(ctx context.Context, t *turn) error {
	s := t.session
	switch {
	case t.res.ClassifierFailed:
		s.FailedTurns++
		t.extra["classifier_failed"] = true
		t.say(msgNotCaught, m.currentPrompt(s))
		return flow.Halt
	case t.res.Silent:
		s.SilentTurns++
		if s.SilentTurns >= m.cfg.SilenceTurnLimit {
			m.releaseProposed(ctx, t)
			s.State = model.StateClosing
			t.say(m.prompts.callback())
			t.end = true
			return flow.Halt
		}
		t.say(msgNotCaught, m.currentPrompt(s))
		return flow.Halt
	}
	s.SilentTurns = 0
	return nil
}

func (m *Machine) question(ctx context.Context, t *turn) error {
	if t.res.Intent != model.IntentAncillaryQuestion {
		return nil
	}
	s := t.session
	prior := s.State

	// Details given alongside a question fill gaps only. The caller stays on
	// the same step, so nothing known is replaced and a proposal on the table
	// keeps its window.
	aside := t.res
	aside.Correction = false
	if s.Fields.Proposed != nil {
		aside.Window = nil
	}
	t.changed = extractor.Merge(&s.Fields, aside)
	if len(t.changed) > 0 {
		t.extra["changed"] = t.changed
	}

	answer, err := m.knowledge.Answer(ctx, t.utterance, m.cfg.RetrievalTopK)
	if err != nil {
		t.log.Warn("Knowledge lookup failed", "error", err)
		answer = knowledge.Answer{Text: msgLookupFailed, Degraded: true}
	}
	t.extra["knowledge_fallback"] = answer.Fallback
	t.extra["knowledge_degraded"] = answer.Degraded

	s.PriorState = prior
	s.State = model.StateAnsweringQuestion
	t.say(answer.Text, m.resumePrompt(s, prior))
	return flow.Halt
}

func (m *Machine) offTopic(_ context.Context, t *turn) error {
	if t.res.Intent != model.IntentOutOfScope {
		return nil
	}
	t.say(msgOffTopic, m.currentPrompt(t.session))
	return flow.Halt
}

// goodbye ends the call when the caller backs out before a slot is on the
// table. A decline that still carries booking details keeps the call going.
func (m *Machine) goodbye(ctx context.Context, t *turn) error {
	s := t.session
	if t.res.Intent != model.IntentDecline || s.State == model.StateAwaitingConfirmation || !t.res.Empty() {
		return nil
	}
	m.releaseProposed(ctx, t)
	s.State = model.StateDeclined
	s.Fields.Confirmation = model.ConfirmationDeclined
	t.say(m.prompts.declined())
	t.end = true
	return flow.Halt
}

func (m *Machine) merge(_ context.Context, t *turn) error {
	s := t.session
	// After every alternative was turned down the caller is asked to pick
	// again, so a new service replaces the old one without a correction cue.
	if s.State == model.StateCollectingService && s.Fields.Service.Known() {
		if f, ok := t.res.Fields[extractor.FieldService]; ok && f.Valid {
			t.res.Correction = true
		}
	}
	t.changed = extractor.Merge(&s.Fields, t.res)
	if len(t.changed) > 0 {
		t.extra["changed"] = t.changed
	}
	return nil
}

func (m *Machine) confirm(ctx context.Context, t *turn) error {
	s := t.session
	if s.State != model.StateAwaitingConfirmation {
		return nil
	}
	if s.Fields.Proposed == nil {
		s.State = model.StateProposingSlot
		return nil
	}

	switch {
	case t.res.Intent == model.IntentDecline:
		return m.declineProposal(ctx, t)
	case t.changedAny(extractor.FieldService, extractor.FieldWindow):
		m.releaseProposed(ctx, t)
		s.State = model.StateProposingSlot
		t.say("Sure, let me check that.")
		return nil
	case t.res.Intent == model.IntentConfirmation:
		return m.book(ctx, t)
	case t.changedAny(extractor.FieldName, extractor.FieldPhone):
		t.say(m.prompts.confirmAgain(s.Fields.Proposed, s.Fields.Service.Value))
		return flow.Halt
	}
	t.say(msgYesOrNo)
	return flow.Halt
}

func (m *Machine) book(ctx context.Context, t *turn) error {
	s := t.session
	proposed := s.Fields.Proposed
	details := model.AppointmentDetails{
		ServiceID:    s.Fields.Service.Value,
		CustomerName: s.Fields.Name.Value,
		Phone:        s.Fields.Phone.Value,
		CallID:       s.CallID,
	}

	appt, err := m.availability.Confirm(ctx, proposed.SlotID, s.CallID, details)
	switch {
	case err == nil:
		s.State = model.StateBooked
		s.AppointmentID = appt.ID
		s.Fields.Confirmation = model.ConfirmationConfirmed
		t.extra["appointment_id"] = appt.ID
		t.log.Info("Appointment booked", "appointment_id", appt.ID, "slot_id", proposed.SlotID)
		t.say(m.prompts.booked(proposed, details.CustomerName))
		t.end = true
		return flow.Halt

	case apperrors.HasCode(err, apperrors.CodeConflict):
		t.log.Info("Proposed slot was taken, re-proposing", "slot_id", proposed.SlotID)
		s.RejectedSlotIDs = append(s.RejectedSlotIDs, proposed.SlotID)
		m.dropProposal(s)
		t.say(msgSlotTaken)
		return nil

	case apperrors.HasCode(err, apperrors.CodeExpired):
		t.log.Info("Hold lapsed before confirmation, re-proposing", "slot_id", proposed.SlotID)
		m.dropProposal(s)
		t.say(msgHoldLapsed)
		return nil

	case apperrors.HasCode(err, apperrors.CodeValidation):
		appErr := apperrors.AsAppError(err)
		t.log.Info("Collected details rejected", "details", appErr.Details)
		m.releaseProposed(ctx, t)
		_, badName := appErr.Details["CustomerName"]
		_, badPhone := appErr.Details["Phone"]
		if badName {
			s.Fields.Name.Valid = false
		}
		if badPhone {
			s.Fields.Phone.Valid = false
		}
		if !badName && !badPhone {
			// Nothing the caller can fix; offer a different slot.
			s.RejectedSlotIDs = append(s.RejectedSlotIDs, proposed.SlotID)
		}
		return nil
	}

	return err
}

func (m *Machine) declineProposal(ctx context.Context, t *turn) error {
	s := t.session
	slotID := s.Fields.Proposed.SlotID
	m.releaseProposed(ctx, t)
	s.RejectedSlotIDs = append(s.RejectedSlotIDs, slotID)
	s.Declines++
	s.Fields.Confirmation = model.ConfirmationDeclined
	t.afterDecline = true

	if m.cfg.MaxDeclines > 0 && s.Declines >= m.cfg.MaxDeclines {
		s.State = model.StateDeclined
		t.say(m.prompts.declined())
		t.end = true
		return flow.Halt
	}
	t.say(msgNoProblem)
	return nil
}

// collect asks for the highest-priority field that is missing or was not
// understood, and moves to the state that owns it.
func (m *Machine) collect(_ context.Context, t *turn) error {
	s := t.session
	for _, key := range extractor.Priority {
		if key == extractor.FieldWindow {
			if s.Fields.Window != nil {
				continue
			}
			s.State = model.StateProposingSlot
			if t.res.IsAmbiguous(key) {
				t.say(m.prompts.askWindow(t.res.WindowReason))
			} else if t.afterDecline {
				t.say(msgAskWindowAgain)
			} else {
				t.say(m.prompts.ask(key, false))
			}
			return flow.Halt
		}

		f := fieldOf(&s.Fields, key)
		if f.Known() {
			continue
		}
		retry := f != nil || t.res.IsAmbiguous(key)
		if key == extractor.FieldService {
			s.State = model.StateCollectingService
		} else {
			s.State = model.StateCollectingIdentity
		}
		t.say(m.prompts.ask(key, retry))
		return flow.Halt
	}

	s.State = model.StateProposingSlot
	return nil
}

func (m *Machine) propose(ctx context.Context, t *turn) error {
	s := t.session
	serviceID := s.Fields.Service.Value
	window := s.Fields.Window

	var (
		candidates []model.Candidate
		err        error
	)
	if window == nil || window.Open {
		candidates, err = m.availability.FindNextAvailable(ctx, serviceID)
	} else {
		candidates, err = m.availability.FindCandidateSlots(ctx, serviceID, window)
	}
	if err != nil {
		return err
	}

	attempts := 0
	for _, c := range candidates {
		if slices.Contains(s.RejectedSlotIDs, c.SlotID) {
			continue
		}
		if attempts == maxHoldAttempts {
			break
		}
		attempts++

		held, err := m.availability.Hold(ctx, c.SlotID, s.CallID)
		if err != nil {
			if apperrors.HasCode(err, apperrors.CodeConflict) || apperrors.HasCode(err, apperrors.CodeNotFound) {
				t.log.Debug("Candidate taken, trying next", "slot_id", c.SlotID)
				continue
			}
			return err
		}

		s.Fields.Proposed = &model.ProposedSlot{
			SlotID:        c.SlotID,
			BarberID:      c.BarberID,
			BarberName:    c.BarberName,
			StartTime:     c.StartTime,
			EndTime:       c.EndTime,
			HoldExpiresAt: held.ExpiresAt,
		}
		s.Fields.Confirmation = model.ConfirmationProposed
		s.State = model.StateAwaitingConfirmation
		t.extra["slot_id"] = c.SlotID
		t.say(m.prompts.proposal(s.Fields.Proposed, serviceID))
		return flow.Halt
	}

	t.extra["no_availability"] = true
	if t.afterDecline {
		s.State = model.StateCollectingService
		s.Fields.Window = nil
		t.say(m.prompts.noAlternatives())
		return flow.Halt
	}
	t.say(m.prompts.noAvailability(window))
	s.Fields.Window = nil
	s.State = model.StateProposingSlot
	return flow.Halt
}

func (m *Machine) releaseProposed(ctx context.Context, t *turn) {
	s := t.session
	if s.Fields.Proposed == nil {
		return
	}
	if err := m.availability.Release(ctx, s.Fields.Proposed.SlotID, s.CallID); err != nil {
		t.log.Warn("Failed to release hold", "slot_id", s.Fields.Proposed.SlotID, "error", err)
	}
	m.dropProposal(s)
}

func (m *Machine) dropProposal(s *model.CallSession) {
	s.Fields.Proposed = nil
	s.Fields.Confirmation = model.ConfirmationUnconfirmed
	s.State = model.StateProposingSlot
}

// currentPrompt is what the agent would ask next from the session's state.
func (m *Machine) currentPrompt(s *model.CallSession) string {
	switch s.State {
	case model.StateGreeting:
		return "Are you calling to book an appointment, or can I answer a question?"
	case model.StateAwaitingConfirmation:
		if s.Fields.Proposed != nil {
			return m.prompts.proposal(s.Fields.Proposed, s.Fields.Service.Value)
		}
	}
	missing := extractor.Missing(s.Fields)
	if missing == "" {
		missing = extractor.FieldWindow
	}
	return m.prompts.ask(missing, false)
}

func (m *Machine) resumePrompt(s *model.CallSession, prior model.DialogueState) string {
	if prior == model.StateGreeting {
		return "Would you like me to book an appointment?"
	}
	return m.currentPrompt(&model.CallSession{State: prior, Fields: s.Fields})
}

func fieldOf(fields *model.SlotFields, key extractor.FieldKey) *model.Field {
	switch key {
	case extractor.FieldService:
		return fields.Service
	case extractor.FieldName:
		return fields.Name
	case extractor.FieldPhone:
		return fields.Phone
	}
	return nil
}
