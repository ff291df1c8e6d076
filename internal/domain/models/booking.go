package models

import (
	"time"

	"detailhub/internal/domain"
)

// Booking is the ledger row for one customer/provider appointment.
// Money fields are integer cents; the store persists them as DECIMAL.
type Booking struct {
	ID            string `json:"id"`
	BookingNumber string `json:"booking_number"`
	CustomerID    string `json:"customer_id"`
	ProviderID    string `json:"provider_id"`
	ServiceID     string `json:"service_id"`

	BaseCents        int64  `json:"base_cents"`
	AddOnsCents      int64  `json:"add_ons_cents"`
	TaxCents         int64  `json:"tax_cents"`
	TipCents         int64  `json:"tip_cents"`
	TotalCents       int64  `json:"total_cents"`
	PlatformFeeCents int64  `json:"platform_fee_cents"`
	Currency         string `json:"currency"`

	ScheduledStart time.Time `json:"scheduled_start"`
	ScheduledEnd   time.Time `json:"scheduled_end"`
	ServiceAddress string    `json:"service_address"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`

	Status domain.Status `json:"status"`

	PaymentIntentID string `json:"payment_intent_id,omitempty"`
	ChargeID        string `json:"charge_id,omitempty"`
	TransferID      string `json:"transfer_id,omitempty"`
	RefundID        string `json:"refund_id,omitempty"`
	RefundedCents   int64  `json:"refunded_cents"`

	ActualStartTime     *time.Time `json:"actual_start_time,omitempty"`
	ActualEndTime       *time.Time `json:"actual_end_time,omitempty"`
	ProviderArrivedAt   *time.Time `json:"provider_arrived_at,omitempty"`
	ProviderCompletedAt *time.Time `json:"provider_completed_at,omitempty"`
	CustomerConfirmedAt *time.Time `json:"customer_confirmed_at,omitempty"`
	AutoConfirmAt       *time.Time `json:"auto_confirm_at,omitempty"`
	DisputeOpenedAt     *time.Time `json:"dispute_opened_at,omitempty"`
	DisputeResolvedAt   *time.Time `json:"dispute_resolved_at,omitempty"`
	CancelledAt         *time.Time `json:"cancelled_at,omitempty"`
	RefundedAt          *time.Time `json:"refunded_at,omitempty"`

	// Computed once at COMPLETE.
	ProviderGrossCents int64 `json:"provider_gross_cents"`
	ProviderNetCents   int64 `json:"provider_net_cents"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LineItemsCents is base + add-ons + tax + tip.
func (b Booking) LineItemsCents() int64 {
	return b.BaseCents + b.AddOnsCents + b.TaxCents + b.TipCents
}

// BookingPatch supports PATCH-style updates; nil fields are left untouched.
// Setting CustomerConfirmedAt only succeeds on a row that has not been
// confirmed yet.
type BookingPatch struct {
	Status          *domain.Status
	ProviderID      *string
	PaymentIntentID *string
	ChargeID        *string
	TransferID      *string
	RefundID        *string
	RefundedCents   *int64

	ActualStartTime     *time.Time
	ActualEndTime       *time.Time
	ProviderArrivedAt   *time.Time
	ProviderCompletedAt *time.Time
	CustomerConfirmedAt *time.Time
	AutoConfirmAt       *time.Time
	DisputeOpenedAt     *time.Time
	DisputeResolvedAt   *time.Time
	CancelledAt         *time.Time
	RefundedAt          *time.Time

	ProviderGrossCents *int64
	ProviderNetCents   *int64
}

// Apply copies the set fields of p onto b.
func (p BookingPatch) Apply(b *Booking) {
	if p.Status != nil {
		b.Status = *p.Status
	}
	setString(&b.ProviderID, p.ProviderID)
	setString(&b.PaymentIntentID, p.PaymentIntentID)
	setString(&b.ChargeID, p.ChargeID)
	setString(&b.TransferID, p.TransferID)
	setString(&b.RefundID, p.RefundID)
	setInt(&b.RefundedCents, p.RefundedCents)
	setTime(&b.ActualStartTime, p.ActualStartTime)
	setTime(&b.ActualEndTime, p.ActualEndTime)
	setTime(&b.ProviderArrivedAt, p.ProviderArrivedAt)
	setTime(&b.ProviderCompletedAt, p.ProviderCompletedAt)
	setTime(&b.CustomerConfirmedAt, p.CustomerConfirmedAt)
	setTime(&b.AutoConfirmAt, p.AutoConfirmAt)
	setTime(&b.DisputeOpenedAt, p.DisputeOpenedAt)
	setTime(&b.DisputeResolvedAt, p.DisputeResolvedAt)
	setTime(&b.CancelledAt, p.CancelledAt)
	setTime(&b.RefundedAt, p.RefundedAt)
	setInt(&b.ProviderGrossCents, p.ProviderGrossCents)
	setInt(&b.ProviderNetCents, p.ProviderNetCents)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int64, v *int64) {
	if v != nil {
		*dst = *v
	}
}

func setTime(dst **time.Time, v *time.Time) {
	if v != nil {
		t := *v
		*dst = &t
	}
}

// BookingEvent is one append-only audit row.
type BookingEvent struct {
	ID         string            `json:"id"`
	BookingID  string            `json:"booking_id"`
	Type       domain.Transition `json:"type"`
	FromStatus domain.Status     `json:"from_status"`
	ToStatus   domain.Status     `json:"to_status"`
	ActorID    string            `json:"actor_id"`
	ActorRole  domain.ActorRole  `json:"actor_role"`
	Metadata   map[string]any    `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}
