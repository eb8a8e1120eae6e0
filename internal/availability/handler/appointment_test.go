package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperrors "barberline/pkg/errors"
	"barberline/pkg/logger"
	"barberline/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type mockAvailabilityService struct {
	listFunc       func(ctx context.Context, limit int, offset int64) ([]*model.Appointment, int64, error)
	getFunc        func(ctx context.Context, id string) (*model.Appointment, error)
	cancelFunc     func(ctx context.Context, id string) (*model.Appointment, error)
	candidatesFunc func(ctx context.Context, serviceID string, window *model.TimeWindow) ([]model.Candidate, error)
}

func (m *mockAvailabilityService) FindCandidateSlots(ctx context.Context, serviceID string, window *model.TimeWindow) ([]model.Candidate, error) {
	if m.candidatesFunc != nil {
		return m.candidatesFunc(ctx, serviceID, window)
	}
	return []model.Candidate{}, nil
}

func (m *mockAvailabilityService) FindNextAvailable(context.Context, string) ([]model.Candidate, error) {
	return nil, nil
}

func (m *mockAvailabilityService) Hold(context.Context, string, string) (*model.HeldSlot, error) {
	return nil, nil
}

func (m *mockAvailabilityService) Confirm(context.Context, string, string, model.AppointmentDetails) (*model.Appointment, error) {
	return nil, nil
}

func (m *mockAvailabilityService) Release(context.Context, string, string) error { return nil }

func (m *mockAvailabilityService) SweepExpired(context.Context) (int, error) { return 0, nil }

func (m *mockAvailabilityService) ExtendGrid(context.Context) (int, error) { return 0, nil }

func (m *mockAvailabilityService) GetAppointment(ctx context.Context, id string) (*model.Appointment, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, id)
	}
	return nil, apperrors.NotFoundWithID("Appointment", id)
}

func (m *mockAvailabilityService) ListAppointments(ctx context.Context, limit int, offset int64) ([]*model.Appointment, int64, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, limit, offset)
	}
	return []*model.Appointment{}, 0, nil
}

func (m *mockAvailabilityService) CancelAppointment(ctx context.Context, id string) (*model.Appointment, error) {
	if m.cancelFunc != nil {
		return m.cancelFunc(ctx, id)
	}
	return nil, nil
}

func newRouter(svc *mockAvailabilityService) *httprouter.Router {
	router := httprouter.New()
	NewAppointmentHandler(svc, logger.Discard()).RegisterRoutes(router)
	return router
}

func TestGetAll_QueryParameters(t *testing.T) {
	var receivedLimit int
	var receivedOffset int64
	svc := &mockAvailabilityService{
		listFunc: func(_ context.Context, limit int, offset int64) ([]*model.Appointment, int64, error) {
			receivedLimit = limit
			receivedOffset = offset
			return []*model.Appointment{}, 0, nil
		},
	}
	router := newRouter(svc)

	tests := []struct {
		name           string
		query          string
		expectHTTPCode int
		expectLimit    int
		expectOffset   int64
	}{
		{name: "defaults", query: "", expectHTTPCode: http.StatusOK, expectLimit: 10, expectOffset: 0},
		{name: "explicit", query: "?limit=5&offset=20", expectHTTPCode: http.StatusOK, expectLimit: 5, expectOffset: 20},
		{name: "limit clamped", query: "?limit=5000", expectHTTPCode: http.StatusOK, expectLimit: 100, expectOffset: 0},
		{name: "negative offset", query: "?offset=-4", expectHTTPCode: http.StatusOK, expectLimit: 10, expectOffset: 0},
		{name: "non-numeric limit", query: "?limit=abc", expectHTTPCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/appointments"+tt.query, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.expectHTTPCode {
				t.Fatalf("expected status %d, got %d: %s", tt.expectHTTPCode, w.Code, w.Body.String())
			}
			if tt.expectHTTPCode != http.StatusOK {
				return
			}
			if receivedLimit != tt.expectLimit || receivedOffset != tt.expectOffset {
				t.Errorf("expected limit=%d offset=%d, got limit=%d offset=%d",
					tt.expectLimit, tt.expectOffset, receivedLimit, receivedOffset)
			}
		})
	}
}

func TestGetByID_NotFound(t *testing.T) {
	router := newRouter(&mockAvailabilityService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/appointments/id/missing", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["code"] != apperrors.CodeNotFound {
		t.Errorf("expected code %s, got %v", apperrors.CodeNotFound, body["code"])
	}
}

func TestCancel_Conflict(t *testing.T) {
	router := newRouter(&mockAvailabilityService{
		cancelFunc: func(context.Context, string) (*model.Appointment, error) {
			return nil, apperrors.Conflict("Appointment is already cancelled")
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments/id/abc/cancel", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}

func TestCandidates(t *testing.T) {
	var gotWindow *model.TimeWindow
	router := newRouter(&mockAvailabilityService{
		candidatesFunc: func(_ context.Context, serviceID string, window *model.TimeWindow) ([]model.Candidate, error) {
			gotWindow = window
			return []model.Candidate{{SlotID: "alex:1:30", ServiceID: serviceID}}, nil
		},
	})

	tests := []struct {
		name       string
		query      string
		expectCode int
		expectOpen bool
	}{
		{name: "missing service", query: "", expectCode: http.StatusBadRequest},
		{name: "whole horizon", query: "?service=HAIRCUT", expectCode: http.StatusOK, expectOpen: true},
		{name: "window", query: "?service=HAIRCUT&from=2026-10-19T09:00:00Z&to=2026-10-19T12:00:00Z", expectCode: http.StatusOK},
		{name: "bad from", query: "?service=HAIRCUT&from=tomorrow&to=2026-10-19T12:00:00Z", expectCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotWindow = nil
			req := httptest.NewRequest(http.MethodGet, "/api/v1/availability"+tt.query, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.expectCode {
				t.Fatalf("expected status %d, got %d", tt.expectCode, w.Code)
			}
			if tt.expectCode != http.StatusOK {
				return
			}
			if gotWindow == nil || gotWindow.Open != tt.expectOpen {
				t.Fatalf("unexpected window %+v", gotWindow)
			}
			if !tt.expectOpen && !gotWindow.Start.Equal(time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)) {
				t.Errorf("unexpected window start %s", gotWindow.Start)
			}
		})
	}
}
