package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	availabilityerrors "barberline/internal/availability/errors"
	"barberline/internal/availability/repository"
	"barberline/internal/availability/validator"
	"barberline/internal/catalog"
	"barberline/pkg/config"
	apperrors "barberline/pkg/errors"
	"barberline/pkg/events"
	"barberline/pkg/metrics"
	"barberline/pkg/model"

	"github.com/google/uuid"
)

// widenSteps are the look-ahead spans, in days, tried by FindNextAvailable.
var widenSteps = []int{3, 7, 14}

type AvailabilityService interface {
	// FindCandidateSlots lists bookable spans for serviceID inside window,
	// soonest first. A nil or open window searches the whole horizon. An
	// empty result is not an error.
	FindCandidateSlots(ctx context.Context, serviceID string, window *model.TimeWindow) ([]model.Candidate, error)
	// FindNextAvailable widens the search step by step until something is free.
	FindNextAvailable(ctx context.Context, serviceID string) ([]model.Candidate, error)
	Hold(ctx context.Context, slotID, sessionID string) (*model.HeldSlot, error)
	Confirm(ctx context.Context, slotID, sessionID string, details model.AppointmentDetails) (*model.Appointment, error)
	Release(ctx context.Context, slotID, sessionID string) error
	SweepExpired(ctx context.Context) (int, error)
	ExtendGrid(ctx context.Context) (int, error)

	GetAppointment(ctx context.Context, id string) (*model.Appointment, error)
	ListAppointments(ctx context.Context, limit int, offset int64) ([]*model.Appointment, int64, error)
	CancelAppointment(ctx context.Context, id string) (*model.Appointment, error)
}

type Option func(*availabilityService)

// WithClock replaces time.Now, for tests that step through hold expiry.
func WithClock(now func() time.Time) Option {
	return func(s *availabilityService) {
		s.now = now
	}
}

type availabilityService struct {
	store     repository.Store
	catalog   *catalog.Catalog
	validator *validator.AvailabilityValidator
	publisher events.Publisher
	cfg       *config.Config
	locks     *keyedMutex
	now       func() time.Time

	gridMu      sync.Mutex
	gridThrough time.Time
}

func NewAvailabilityService(
	store repository.Store,
	cat *catalog.Catalog,
	validator *validator.AvailabilityValidator,
	publisher events.Publisher,
	cfg *config.Config,
	opts ...Option,
) AvailabilityService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	s := &availabilityService{
		store:     store,
		catalog:   cat,
		validator: validator,
		publisher: publisher,
		cfg:       cfg,
		locks:     newKeyedMutex(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *availabilityService) location() *time.Location {
	if s.cfg.Location != nil {
		return s.cfg.Location
	}
	return time.UTC
}

func (s *availabilityService) horizon(now time.Time, days int) time.Time {
	return now.AddDate(0, 0, days)
}

func (s *availabilityService) ExtendGrid(ctx context.Context) (int, error) {
	now := s.now()
	slots, err := s.catalog.Grid(now, s.cfg.LookaheadDays, s.location())
	if err != nil {
		return 0, apperrors.Internal("Failed to build slot grid", err)
	}
	inserted, err := s.store.UpsertFree(ctx, slots)
	if err != nil {
		s.cfg.Log.Error("Failed to extend slot grid", "error", err)
		return 0, apperrors.Internal("Failed to extend slot grid", err)
	}

	s.gridMu.Lock()
	s.gridThrough = s.horizon(now, s.cfg.LookaheadDays)
	s.gridMu.Unlock()

	if inserted > 0 {
		s.cfg.Log.Info("Slot grid extended", "inserted", inserted, "lookahead_days", s.cfg.LookaheadDays)
	}
	return inserted, nil
}

// ensureGrid extends the grid when the horizon has moved more than a day past it.
func (s *availabilityService) ensureGrid(ctx context.Context, now time.Time) error {
	s.gridMu.Lock()
	stale := s.gridThrough.Before(s.horizon(now, s.cfg.LookaheadDays).Add(-24 * time.Hour))
	s.gridMu.Unlock()
	if !stale {
		return nil
	}
	_, err := s.ExtendGrid(ctx)
	return err
}

func (s *availabilityService) FindCandidateSlots(ctx context.Context, serviceID string, window *model.TimeWindow) ([]model.Candidate, error) {
	svc, ok := s.catalog.Service(serviceID)
	if !ok {
		return nil, apperrors.NotFoundWithID("Service", serviceID)
	}

	now := s.now()
	if err := s.ensureGrid(ctx, now); err != nil {
		return nil, err
	}

	from, to := now, s.horizon(now, s.cfg.LookaheadDays)
	if window != nil && !window.Open {
		if window.Start.After(from) {
			from = window.Start
		}
		if window.End.Before(to) {
			to = window.End
		}
	}
	if !from.Before(to) {
		return []model.Candidate{}, nil
	}

	return s.candidates(ctx, svc, from, to, now)
}

func (s *availabilityService) FindNextAvailable(ctx context.Context, serviceID string) ([]model.Candidate, error) {
	svc, ok := s.catalog.Service(serviceID)
	if !ok {
		return nil, apperrors.NotFoundWithID("Service", serviceID)
	}

	now := s.now()
	if err := s.ensureGrid(ctx, now); err != nil {
		return nil, err
	}

	for _, days := range widenSteps {
		if days > s.cfg.LookaheadDays {
			days = s.cfg.LookaheadDays
		}
		found, err := s.candidates(ctx, svc, now, s.horizon(now, days), now)
		if err != nil {
			return nil, err
		}
		if len(found) > 0 {
			return found, nil
		}
		if days == s.cfg.LookaheadDays {
			break
		}
	}
	return []model.Candidate{}, nil
}

// candidates finds every start in [from, to) where a qualified barber has
// enough consecutive open blocks for the service.
func (s *availabilityService) candidates(ctx context.Context, svc model.Service, from, to, now time.Time) ([]model.Candidate, error) {
	barbers := s.catalog.QualifiedBarbers(svc.ID)
	if len(barbers) == 0 {
		return []model.Candidate{}, nil
	}
	names := make(map[string]string, len(barbers))
	ids := make([]string, 0, len(barbers))
	for _, b := range barbers {
		names[b.ID] = b.Name
		ids = append(ids, b.ID)
	}

	blocks := (svc.DurationMin + model.SlotBlockMinutes - 1) / model.SlotBlockMinutes
	step := time.Duration(model.SlotBlockMinutes) * time.Minute
	tail := time.Duration(blocks-1) * step

	open, err := s.store.FindOpen(ctx, ids, from, to.Add(tail), now)
	if err != nil {
		s.cfg.Log.Error("Failed to query open slots", "service_id", svc.ID, "error", err)
		return nil, apperrors.Internal("Failed to query availability", err)
	}

	var out []model.Candidate
	for i := 0; i < len(open); i++ {
		first := open[i]
		if !first.StartTime.Before(to) {
			continue
		}
		contiguous := true
		for j := 1; j < blocks; j++ {
			if i+j >= len(open) {
				contiguous = false
				break
			}
			next := open[i+j]
			if next.BarberID != first.BarberID || !next.StartTime.Equal(first.StartTime.Add(time.Duration(j)*step)) {
				contiguous = false
				break
			}
		}
		if !contiguous {
			continue
		}
		out = append(out, model.Candidate{
			SlotID:     model.SlotID(first.BarberID, first.StartTime, svc.DurationMin),
			BarberID:   first.BarberID,
			BarberName: names[first.BarberID],
			ServiceID:  svc.ID,
			StartTime:  first.StartTime,
			EndTime:    first.StartTime.Add(svc.Duration()),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		return out[i].BarberID < out[j].BarberID
	})
	return out, nil
}

func (s *availabilityService) Hold(ctx context.Context, slotID, sessionID string) (*model.HeldSlot, error) {
	if sessionID == "" {
		return nil, apperrors.InvalidInput("Session ID cannot be empty")
	}
	barberID, start, _, err := model.ParseSlotID(slotID)
	if err != nil {
		return nil, apperrors.InvalidInput("Invalid slot ID format")
	}
	blockIDs, _ := model.BlockIDs(slotID)

	unlock := s.locks.Lock(blockIDs)
	defer unlock()

	now := s.now()
	expiresAt := now.Add(s.cfg.HoldTTL)
	if err := s.store.Hold(ctx, blockIDs, sessionID, now, expiresAt); err != nil {
		switch {
		case errors.Is(err, availabilityerrors.ErrSlotUnavailable):
			metrics.HoldOutcomes.WithLabelValues("conflict").Inc()
			s.cfg.Log.Info("Hold lost to another session", "slot_id", slotID, "session_id", sessionID)
			return nil, apperrors.Conflict("Slot is no longer available")
		case errors.Is(err, availabilityerrors.ErrSlotNotFound):
			metrics.HoldOutcomes.WithLabelValues("not_found").Inc()
			return nil, apperrors.NotFoundWithID("Slot", slotID)
		default:
			metrics.HoldOutcomes.WithLabelValues("error").Inc()
			s.cfg.Log.Error("Failed to hold slot", "slot_id", slotID, "error", err)
			return nil, apperrors.Internal("Failed to hold slot", err)
		}
	}

	metrics.HoldOutcomes.WithLabelValues("held").Inc()
	s.cfg.Log.Info("Slot held",
		"slot_id", slotID,
		"session_id", sessionID,
		"expires_at", expiresAt,
	)
	events.Emit(ctx, s.publisher, s.cfg.Log, events.Event{
		Type:       events.TypeSlotHeld,
		Key:        slotID,
		CallID:     sessionID,
		OccurredAt: now,
		Payload:    events.SlotPayload{SlotIDs: blockIDs, SessionID: sessionID, ExpiresAt: &expiresAt},
	})

	return &model.HeldSlot{
		SlotID:    slotID,
		SessionID: sessionID,
		BarberID:  barberID,
		StartTime: start,
		ExpiresAt: expiresAt,
		BlockIDs:  blockIDs,
	}, nil
}

func (s *availabilityService) Confirm(ctx context.Context, slotID, sessionID string, details model.AppointmentDetails) (*model.Appointment, error) {
	if err := s.validator.ValidateDetails(&details); err != nil {
		s.cfg.Log.Warn("Appointment details validation failed", "slot_id", slotID, "error", err)
		return nil, validationError(err)
	}
	barberID, start, _, err := model.ParseSlotID(slotID)
	if err != nil {
		return nil, apperrors.InvalidInput("Invalid slot ID format")
	}
	svc, ok := s.catalog.Service(details.ServiceID)
	if !ok {
		return nil, apperrors.NotFoundWithID("Service", details.ServiceID)
	}
	barber, ok := s.catalog.Barber(barberID)
	if !ok || !barber.Offers(svc.ID) {
		return nil, apperrors.Validation("Barber does not offer this service", map[string]any{
			"barber_id":  barberID,
			"service_id": svc.ID,
		})
	}

	now := s.now()
	appt := &model.Appointment{
		ID:           uuid.NewString(),
		BarberID:     barberID,
		ServiceID:    svc.ID,
		CustomerName: details.CustomerName,
		Phone:        details.Phone,
		StartTime:    start,
		EndTime:      start.Add(svc.Duration()),
		Status:       model.AppointmentBooked,
		SlotID:       slotID,
		CallID:       details.CallID,
		CreatedAt:    now.UTC().Truncate(time.Millisecond),
	}
	if err := s.validator.ValidateAppointment(appt); err != nil {
		return nil, validationError(err)
	}

	blockIDs, _ := model.BlockIDs(slotID)
	unlock := s.locks.Lock(blockIDs)
	defer unlock()

	if err := s.store.Book(ctx, blockIDs, sessionID, now, appt); err != nil {
		switch {
		case errors.Is(err, availabilityerrors.ErrHoldLapsed):
			metrics.ConfirmOutcomes.WithLabelValues("expired").Inc()
			if _, relErr := s.store.Release(ctx, blockIDs, sessionID); relErr != nil {
				s.cfg.Log.Warn("Failed to release lapsed hold", "slot_id", slotID, "error", relErr)
			}
			s.cfg.Log.Info("Confirm on lapsed hold", "slot_id", slotID, "session_id", sessionID)
			return nil, apperrors.Expired("Slot hold has expired")
		case errors.Is(err, availabilityerrors.ErrSlotUnavailable),
			errors.Is(err, availabilityerrors.ErrOverlappingAppointment):
			metrics.ConfirmOutcomes.WithLabelValues("conflict").Inc()
			s.cfg.Log.Info("Confirm lost to another session", "slot_id", slotID, "session_id", sessionID)
			return nil, apperrors.Conflict("Slot is no longer available")
		case errors.Is(err, availabilityerrors.ErrSlotNotFound):
			metrics.ConfirmOutcomes.WithLabelValues("not_found").Inc()
			return nil, apperrors.NotFoundWithID("Slot", slotID)
		default:
			metrics.ConfirmOutcomes.WithLabelValues("error").Inc()
			s.cfg.Log.Error("Failed to confirm appointment", "slot_id", slotID, "error", err)
			return nil, apperrors.Internal("Failed to confirm appointment", err)
		}
	}

	metrics.ConfirmOutcomes.WithLabelValues("booked").Inc()
	s.cfg.Log.Info("Appointment booked",
		"id", appt.ID,
		"barber_id", appt.BarberID,
		"service_id", appt.ServiceID,
		"start_time", appt.StartTime,
		"call_id", appt.CallID,
	)
	events.Emit(ctx, s.publisher, s.cfg.Log, s.appointmentEvent(events.TypeAppointmentBooked, appt, now))
	return appt, nil
}

func (s *availabilityService) appointmentEvent(eventType string, appt *model.Appointment, at time.Time) events.Event {
	payload := events.AppointmentPayload{
		Appointment: *appt,
		ShopName:    s.catalog.ShopName,
		TimeZone:    s.location().String(),
	}
	if svc, ok := s.catalog.Service(appt.ServiceID); ok {
		payload.ServiceName = svc.Name
	}
	if barber, ok := s.catalog.Barber(appt.BarberID); ok {
		payload.BarberName = barber.Name
	}
	return events.Event{
		Type:       eventType,
		Key:        appt.ID,
		CallID:     appt.CallID,
		OccurredAt: at,
		Payload:    payload,
	}
}

func (s *availabilityService) Release(ctx context.Context, slotID, sessionID string) error {
	blockIDs, err := model.BlockIDs(slotID)
	if err != nil {
		return apperrors.InvalidInput("Invalid slot ID format")
	}

	unlock := s.locks.Lock(blockIDs)
	defer unlock()

	released, err := s.store.Release(ctx, blockIDs, sessionID)
	if err != nil {
		s.cfg.Log.Error("Failed to release slot", "slot_id", slotID, "error", err)
		return apperrors.Internal("Failed to release slot", err)
	}
	if released == 0 {
		return nil
	}

	s.cfg.Log.Info("Slot released", "slot_id", slotID, "session_id", sessionID)
	events.Emit(ctx, s.publisher, s.cfg.Log, events.Event{
		Type:       events.TypeSlotReleased,
		Key:        slotID,
		CallID:     sessionID,
		OccurredAt: s.now(),
		Payload:    events.SlotPayload{SlotIDs: blockIDs, SessionID: sessionID},
	})
	return nil
}

func (s *availabilityService) SweepExpired(ctx context.Context) (int, error) {
	now := s.now()
	released, err := s.store.ReleaseExpired(ctx, now)
	if err != nil {
		s.cfg.Log.Error("Failed to sweep expired holds", "error", err)
		return 0, apperrors.Internal("Failed to sweep expired holds", err)
	}
	if len(released) == 0 {
		return 0, nil
	}

	metrics.SweptBlocks.Add(float64(len(released)))
	s.cfg.Log.Info("Expired holds released", "count", len(released))
	events.Emit(ctx, s.publisher, s.cfg.Log, events.Event{
		Type:       events.TypeSlotExpired,
		Key:        released[0],
		OccurredAt: now,
		Payload:    events.SlotPayload{SlotIDs: released},
	})
	return len(released), nil
}

func (s *availabilityService) GetAppointment(ctx context.Context, id string) (*model.Appointment, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Appointment ID cannot be empty")
	}

	appt, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, availabilityerrors.ErrAppointmentNotFound) {
			return nil, apperrors.NotFoundWithID("Appointment", id)
		}
		return nil, apperrors.Internal("Failed to retrieve appointment", err)
	}
	return appt, nil
}

func (s *availabilityService) ListAppointments(ctx context.Context, limit int, offset int64) ([]*model.Appointment, int64, error) {
	var count int64
	var appts []*model.Appointment
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.store.Count(ctx)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count appointments", "error", errCount)
			errCount = apperrors.Internal("Failed to count appointments", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		appts, errFind = s.store.FindAll(ctx, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list appointments", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve appointments", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return appts, count, nil
}

func (s *availabilityService) CancelAppointment(ctx context.Context, id string) (*model.Appointment, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Appointment ID cannot be empty")
	}

	now := s.now()
	appt, err := s.store.Cancel(ctx, id, now)
	if err != nil {
		switch {
		case errors.Is(err, availabilityerrors.ErrAppointmentNotFound):
			return nil, apperrors.NotFoundWithID("Appointment", id)
		case errors.Is(err, availabilityerrors.ErrAlreadyCancelled):
			return nil, apperrors.Conflict("Appointment is already cancelled")
		default:
			s.cfg.Log.Error("Failed to cancel appointment", "id", id, "error", err)
			return nil, apperrors.Internal("Failed to cancel appointment", err)
		}
	}

	s.cfg.Log.Info("Appointment cancelled", "id", id)
	events.Emit(ctx, s.publisher, s.cfg.Log, s.appointmentEvent(events.TypeAppointmentCancelled, appt, now))
	return appt, nil
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return apperrors.Validation("Invalid appointment details", verrs.Details())
	}
	return apperrors.Validation("Invalid appointment details", map[string]any{"error": err.Error()})
}
