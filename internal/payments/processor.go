package payments

import (
	"context"
)

// Processor is the payment-processor collaborator. Implementations must treat
// a timeout as a failure and forward IdempotencyKey to the processor.
type Processor interface {
	CreatePaymentIntent(ctx context.Context, req PaymentIntentRequest) (PaymentIntent, error)
	CreateTransfer(ctx context.Context, req TransferRequest) (transferID string, err error)
	ReverseTransfer(ctx context.Context, req ReversalRequest) error
	IssueRefund(ctx context.Context, req RefundRequest) (Refund, error)
	VerifyWebhookSignature(raw []byte, signature string) (WebhookEvent, error)
}

type PaymentIntentRequest struct {
	AmountCents    int64
	Currency       string
	Metadata       map[string]string
	TransferGroup  string
	IdempotencyKey string
}

type PaymentIntent struct {
	ID           string
	ClientSecret string
}

type TransferRequest struct {
	AmountCents        int64
	Currency           string
	DestinationAccount string
	SourceCharge       string
	TransferGroup      string
	Metadata           map[string]string
	IdempotencyKey     string
}

// ReversalRequest reverses a transfer; AmountCents 0 means the full amount.
type ReversalRequest struct {
	TransferID     string
	AmountCents    int64
	Metadata       map[string]string
	IdempotencyKey string
}

// RefundRequest refunds a charge; AmountCents 0 means the full amount.
type RefundRequest struct {
	PaymentIntentID string
	ChargeID        string
	AmountCents     int64
	Reason          string
	Metadata        map[string]string
	IdempotencyKey  string
}

type Refund struct {
	ID          string
	AmountCents int64
}

type EventType string

const (
	EventPaymentSucceeded EventType = "payment_succeeded"
	EventPaymentFailed    EventType = "payment_failed"
	EventChargeRefunded   EventType = "charge_refunded"
	EventDisputeCreated   EventType = "dispute_created"
	EventDisputeClosed    EventType = "dispute_closed"
	EventAccountUpdated   EventType = "account_updated"
	EventUnknown          EventType = "unknown"
)

// WebhookEvent is a verified processor event normalized for the core.
type WebhookEvent struct {
	ID              string
	Type            EventType
	ProcessorType   string
	BookingID       string
	PaymentIntentID string
	ChargeID        string
	AccountID       string
	PayoutsEnabled  bool
	AmountCents     int64
	FailureMessage  string
	Raw             []byte
}
