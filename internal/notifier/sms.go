package notifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"barberline/pkg/events"
	"barberline/pkg/kafka"
	"barberline/pkg/logger"

	"github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

const smsTimeLayout = "Mon Jan 2 at 3:04 PM"

type SMSSender interface {
	// Send delivers body to the E.164 number to and returns the carrier's
	// message id.
	Send(ctx context.Context, to, body string) (string, error)
}

type TwilioSMS struct {
	client *twilio.RestClient
	from   string
}

func NewTwilioSMS(client *twilio.RestClient, from string) *TwilioSMS {
	return &TwilioSMS{client: client, from: from}
}

// Send ignores ctx: the Twilio REST client does not accept one.
func (s *TwilioSMS) Send(_ context.Context, to, body string) (string, error) {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.from)
	params.SetBody(body)

	resp, err := s.client.Api.CreateMessage(params)
	if err != nil {
		return "", err
	}
	if resp.Sid == nil {
		return "", nil
	}
	return *resp.Sid, nil
}

// Confirmations texts the customer when an appointment is booked.
type Confirmations struct {
	sender SMSSender
	log    *logger.Logger
}

func NewConfirmations(sender SMSSender, log *logger.Logger) *Confirmations {
	return &Confirmations{sender: sender, log: log}
}

func (c *Confirmations) Handle(ctx context.Context, msg kafka.Message) error {
	if msg.GetEventType() != events.TypeAppointmentBooked {
		return nil
	}

	var payload events.AppointmentPayload
	if err := msg.DecodeValue(&payload); err != nil {
		return kafka.NewPermanentError("undecodable appointment event", err)
	}
	appt := payload.Appointment

	sid, err := c.sender.Send(ctx, appt.Phone, confirmationText(payload))
	if err != nil {
		return classifySendError(err)
	}

	c.log.Info("Booking confirmation sent",
		"appointment_id", appt.ID,
		logger.CALL_ID, appt.CallID,
		"message_sid", sid,
	)
	return nil
}

func confirmationText(p events.AppointmentPayload) string {
	start := p.Appointment.StartTime
	if loc, err := time.LoadLocation(p.TimeZone); err == nil {
		start = start.In(loc)
	}
	service := p.ServiceName
	if service == "" {
		service = p.Appointment.ServiceID
	}
	barber := p.BarberName
	if barber == "" {
		barber = "your barber"
	}
	return fmt.Sprintf("Hi %s, you're booked for a %s with %s at %s on %s. Call us if you need to change it.",
		p.Appointment.CustomerName,
		service,
		barber,
		p.ShopName,
		start.Format(smsTimeLayout),
	)
}

// classifySendError retries throttling and server errors. Other rejections,
// such as an unreachable number, will not succeed on a retry.
func classifySendError(err error) error {
	var restErr *twilioclient.TwilioRestError
	if errors.As(err, &restErr) {
		if restErr.Status == http.StatusTooManyRequests || restErr.Status >= http.StatusInternalServerError {
			return kafka.NewTransientError("sms provider unavailable", err)
		}
		return kafka.NewPermanentError("sms rejected", err)
	}
	return kafka.NewTransientError("sms send failed", err)
}
