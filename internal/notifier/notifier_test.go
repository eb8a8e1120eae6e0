package notifier

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"barberline/pkg/events"
	"barberline/pkg/kafka"
	"barberline/pkg/logger"
	"barberline/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	twilioclient "github.com/twilio/twilio-go/client"
)

type mockSender struct {
	sendFunc func(ctx context.Context, to, body string) (string, error)
	to       []string
	bodies   []string
}

func (m *mockSender) Send(ctx context.Context, to, body string) (string, error) {
	m.to = append(m.to, to)
	m.bodies = append(m.bodies, body)
	if m.sendFunc != nil {
		return m.sendFunc(ctx, to, body)
	}
	return "SM123", nil
}

func buildMessage(t *testing.T, eventType string, payload any) kafka.Message {
	t.Helper()
	msg, err := kafka.NewMessage().
		WithKey("k").
		WithEventType(eventType).
		WithValue(payload).
		Build()
	require.NoError(t, err)
	return msg
}

func bookedPayload() events.AppointmentPayload {
	return events.AppointmentPayload{
		Appointment: model.Appointment{
			ID:           "appt-1",
			CustomerName: "Dana",
			Phone:        "+15551234567",
			ServiceID:    "SKIN_FADE",
			StartTime:    time.Date(2026, 10, 19, 14, 0, 0, 0, time.UTC),
			CallID:       "CA1",
		},
		ServiceName: "Skin Fade",
		BarberName:  "Marco",
		ShopName:    "Main Street Barbers",
		TimeZone:    "America/New_York",
	}
}

func TestConfirmationsSendsLocalTime(t *testing.T) {
	sender := &mockSender{}
	c := NewConfirmations(sender, logger.Discard())

	err := c.Handle(context.Background(), buildMessage(t, events.TypeAppointmentBooked, bookedPayload()))
	require.NoError(t, err)

	require.Len(t, sender.bodies, 1)
	assert.Equal(t, "+15551234567", sender.to[0])
	assert.Contains(t, sender.bodies[0], "Hi Dana")
	assert.Contains(t, sender.bodies[0], "Skin Fade with Marco")
	assert.Contains(t, sender.bodies[0], "Main Street Barbers")
	assert.Contains(t, sender.bodies[0], "Mon Oct 19 at 10:00 AM")
}

func TestConfirmationsIgnoresOtherEvents(t *testing.T) {
	sender := &mockSender{}
	c := NewConfirmations(sender, logger.Discard())

	err := c.Handle(context.Background(), buildMessage(t, events.TypeSlotHeld, events.SlotPayload{SlotIDs: []string{"s1"}}))
	require.NoError(t, err)
	assert.Empty(t, sender.bodies)
}

func TestConfirmationsErrorClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want kafka.ErrorType
	}{
		{"invalid number", &twilioclient.TwilioRestError{Status: http.StatusBadRequest, Code: 21211}, kafka.ErrorTypePermanent},
		{"throttled", &twilioclient.TwilioRestError{Status: http.StatusTooManyRequests}, kafka.ErrorTypeTransient},
		{"provider down", &twilioclient.TwilioRestError{Status: http.StatusBadGateway}, kafka.ErrorTypeTransient},
		{"network", errors.New("connection reset"), kafka.ErrorTypeTransient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &mockSender{sendFunc: func(context.Context, string, string) (string, error) {
				return "", tt.err
			}}
			c := NewConfirmations(sender, logger.Discard())

			err := c.Handle(context.Background(), buildMessage(t, events.TypeAppointmentBooked, bookedPayload()))
			require.Error(t, err)
			assert.Equal(t, tt.want, kafka.ClassifyError(err))
		})
	}
}

func TestConfirmationsUndecodable(t *testing.T) {
	c := NewConfirmations(&mockSender{}, logger.Discard())
	msg := kafka.Message{
		Value:   []byte("{not json"),
		Headers: map[string]string{kafka.HeaderEventType: events.TypeAppointmentBooked},
	}
	err := c.Handle(context.Background(), msg)
	assert.Equal(t, kafka.ErrorTypePermanent, kafka.ClassifyError(err))
}

func TestCallLogAppendsLines(t *testing.T) {
	var buf bytes.Buffer
	l := NewCallLog(&buf)
	ctx := context.Background()

	turn := events.TurnPayload{
		CallID:    "CA1",
		Stage:     model.StateCollectingService,
		Utterance: "a skin fade please",
		Response:  "Which day works for you?",
	}
	closed := events.TurnPayload{
		CallID: "CA1",
		Stage:  model.StateClosing,
		Extra:  map[string]any{"outcome": "booked"},
	}

	require.NoError(t, l.Handle(ctx, buildMessage(t, events.TypeCallTurn, turn)))
	require.NoError(t, l.Handle(ctx, buildMessage(t, events.TypeSlotHeld, events.SlotPayload{})))
	require.NoError(t, l.Handle(ctx, buildMessage(t, events.TypeCallClosed, closed)))

	var lines []map[string]any
	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		var line map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
		lines = append(lines, line)
	}
	require.Len(t, lines, 2)
	assert.Equal(t, "a skin fade please", lines[0]["utterance"])
	extra := lines[1]["extra"].(map[string]any)
	assert.Equal(t, "booked", extra["outcome"])
	assert.Equal(t, events.TypeCallClosed, extra["event"])
}

type fakeConsumer struct {
	started chan struct{}
	closed  bool
}

func (f *fakeConsumer) Start(ctx context.Context) error {
	close(f.started)
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeConsumer) Close() error {
	f.closed = true
	return nil
}

func TestRunnerStopsConsumers(t *testing.T) {
	a := &fakeConsumer{started: make(chan struct{})}
	b := &fakeConsumer{started: make(chan struct{})}
	r := &Runner{consumers: []consumer{a, b}, log: logger.Discard()}

	r.Start()
	<-a.started
	<-b.started

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r.Stop(ctx)

	assert.True(t, a.closed)
	assert.True(t, b.closed)
}
