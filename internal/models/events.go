package models

import "time"

// NATS Event Types
const (
	EventBookingCreated   = "booking.created"
	EventBookingCancelled = "booking.cancelled"
	EventFieldChanged     = "field.changed"
)

// Field change actions
const (
	FieldActionCreated  = "created"
	FieldActionUpdated  = "updated"
	FieldActionDisabled = "disabled"
	FieldActionEnabled  = "enabled"
	FieldActionDeleted  = "deleted"
)

// BookingCreatedEvent represents a booking creation event
type BookingCreatedEvent struct {
	BookingID int64         `json:"booking_id"`
	UserID    int64         `json:"user_id"`
	FieldID   int64         `json:"field_id"`
	Date      string        `json:"date"`
	Time      string        `json:"time"`
	Duration  float64       `json:"duration"`
	Total     Money         `json:"total"`
	Status    BookingStatus `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
}

// BookingCancelledEvent represents a booking cancellation event
type BookingCancelledEvent struct {
	BookingID   int64     `json:"booking_id"`
	FieldID     int64     `json:"field_id"`
	Date        string    `json:"date"`
	Time        string    `json:"time"`
	CancelledBy int64     `json:"cancelled_by"`
	Reason      string    `json:"reason,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// FieldChangedEvent is published after any admin write on the field catalog
type FieldChangedEvent struct {
	FieldID   int64     `json:"field_id"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}
