package models

import (
	"encoding/json"
	"time"

	"detailhub/internal/domain"
)

// PayoutRecord follows one booking's provider payout through escrow.
type PayoutRecord struct {
	ID               string              `json:"id"`
	BookingID        string              `json:"booking_id"`
	ProviderID       string              `json:"provider_id"`
	AmountCents      int64               `json:"amount_cents"`
	PlatformFeeCents int64               `json:"platform_fee_cents"`
	Currency         string              `json:"currency"`
	Status           domain.PayoutStatus `json:"status"`
	ScheduledFor     time.Time           `json:"scheduled_for"`
	TransferID       string              `json:"transfer_id,omitempty"`
	ReleasedAt       *time.Time          `json:"released_at,omitempty"`
	ReversedAt       *time.Time          `json:"reversed_at,omitempty"`
	ReversedCents    int64               `json:"reversed_cents"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

type PayoutPatch struct {
	Status        *domain.PayoutStatus
	TransferID    *string
	ReleasedAt    *time.Time
	ReversedAt    *time.Time
	ReversedCents *int64
}

func (p PayoutPatch) Apply(r *PayoutRecord) {
	if p.Status != nil {
		r.Status = *p.Status
	}
	setString(&r.TransferID, p.TransferID)
	setTime(&r.ReleasedAt, p.ReleasedAt)
	setTime(&r.ReversedAt, p.ReversedAt)
	setInt(&r.ReversedCents, p.ReversedCents)
}

// PayoutSummaryRow is one aggregated (status, count, sum) row.
type PayoutSummaryRow struct {
	Status      domain.PayoutStatus
	Count       int
	AmountCents int64
}

type EarningsBucket struct {
	Count       int   `json:"count"`
	AmountCents int64 `json:"amount_cents"`
}

// ProviderEarnings reports payouts for a provider over an optional range.
type ProviderEarnings struct {
	ProviderID string         `json:"provider_id"`
	From       *time.Time     `json:"from,omitempty"`
	To         *time.Time     `json:"to,omitempty"`
	Released   EarningsBucket `json:"released"`
	Pending    EarningsBucket `json:"pending_release"`
	Blocked    EarningsBucket `json:"blocked_dispute"`
}

// DisputeCase is opened by a customer or provider on a completed booking.
type DisputeCase struct {
	ID          string           `json:"id"`
	BookingID   string           `json:"booking_id"`
	OpenedBy    string           `json:"opened_by"`
	OpenerRole  domain.ActorRole `json:"opener_role"`
	ReasonCode  string           `json:"reason_code"`
	Description string           `json:"description"`
	Evidence    json.RawMessage  `json:"evidence,omitempty"`
	Resolution  *string          `json:"resolution,omitempty"`
	ResolvedBy  *string          `json:"resolved_by,omitempty"`
	ResolvedAt  *time.Time       `json:"resolved_at,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

// IsOpen reports whether the case has not been resolved.
func (d DisputeCase) IsOpen() bool {
	return d.Resolution == nil
}

// WebhookEvent is the durable idempotency record of an inbound processor event.
type WebhookEvent struct {
	ID           string          `json:"id"`
	Type         string          `json:"type"`
	Payload      json.RawMessage `json:"payload"`
	ReceivedAt   time.Time       `json:"received_at"`
	ProcessedAt  *time.Time      `json:"processed_at,omitempty"`
	ProcessError string          `json:"process_error,omitempty"`
}

// Provider is the subset of the provider profile the core reads.
type Provider struct {
	ID                 string `json:"id"`
	DisplayName        string `json:"display_name"`
	ProcessorAccountID string `json:"processor_account_id"`
	PayoutsEnabled     bool   `json:"payouts_enabled"`
	CompletedBookings  int    `json:"completed_bookings"`
}

// Service is a bookable catalog entry.
type Service struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}
