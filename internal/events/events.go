package events

import (
	"context"
	"time"
)

// Names published on the booking exchange. They double as routing keys.
const (
	BookingCreated   = "booking.created"
	BookingPaid      = "booking.paid"
	BookingAssigned  = "booking.assigned"
	BookingStarted   = "booking.started"
	BookingCompleted = "booking.completed"
	BookingConfirmed = "booking.confirmed"
	BookingDisputed  = "booking.disputed"
	BookingResolved  = "booking.dispute_resolved"
	BookingCancelled = "booking.cancelled"
	BookingRefunded  = "booking.refunded"
	PayoutReleased   = "payout.released"
)

// Event is the fire-and-forget notification consumed by email/SMS workers.
type Event struct {
	Name       string         `json:"name"`
	BookingID  string         `json:"booking_id"`
	CustomerID string         `json:"customer_id"`
	ProviderID string         `json:"provider_id"`
	Data       map[string]any `json:"data,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}
