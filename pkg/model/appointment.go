package model

import "time"

type AppointmentStatus string

const (
	AppointmentBooked    AppointmentStatus = "booked"
	AppointmentCancelled AppointmentStatus = "cancelled"
)

type Appointment struct {
	ID           string            `json:"id" bson:"_id" validate:"required,uuid4"`
	BarberID     string            `json:"barber_id" bson:"barber_id" validate:"required"`
	ServiceID    string            `json:"service_id" bson:"service_id" validate:"required,service_code"`
	CustomerName string            `json:"customer_name" bson:"customer_name" validate:"required,min=1,max=100"`
	Phone        string            `json:"phone" bson:"phone" validate:"required,e164"`
	StartTime    time.Time         `json:"start_time" bson:"start_time" validate:"required"`
	EndTime      time.Time         `json:"end_time" bson:"end_time" validate:"required,gtfield=StartTime"`
	Status       AppointmentStatus `json:"status" bson:"status" validate:"required,oneof=booked cancelled"`
	SlotID       string            `json:"slot_id" bson:"slot_id" validate:"required"`
	CallID       string            `json:"call_id,omitempty" bson:"call_id,omitempty"`
	CreatedAt    time.Time         `json:"created_at" bson:"created_at"`
	CancelledAt  *time.Time        `json:"cancelled_at,omitempty" bson:"cancelled_at,omitempty"`
}

// AppointmentDetails is what the dialogue has collected when it asks the
// store to confirm a hold.
type AppointmentDetails struct {
	ServiceID    string `json:"service_id" validate:"required,service_code"`
	CustomerName string `json:"customer_name" validate:"required,min=1,max=100"`
	Phone        string `json:"phone" validate:"required,e164"`
	CallID       string `json:"call_id"`
}
