package payments

import (
	"context"
	"errors"

	"detailhub/internal/domain"
)

var errNotConfigured = errors.New("payment processor is not configured")

// Unconfigured fails every call. It lets the service boot without processor
// credentials; booking creation still succeeds because intents are best-effort.
type Unconfigured struct{}

func (Unconfigured) CreatePaymentIntent(context.Context, PaymentIntentRequest) (PaymentIntent, error) {
	return PaymentIntent{}, domain.PaymentProcessorError{Op: "create_payment_intent", Err: errNotConfigured}
}

func (Unconfigured) CreateTransfer(context.Context, TransferRequest) (string, error) {
	return "", domain.PaymentProcessorError{Op: "create_transfer", Err: errNotConfigured}
}

func (Unconfigured) ReverseTransfer(context.Context, ReversalRequest) error {
	return domain.PaymentProcessorError{Op: "reverse_transfer", Err: errNotConfigured}
}

func (Unconfigured) IssueRefund(context.Context, RefundRequest) (Refund, error) {
	return Refund{}, domain.PaymentProcessorError{Op: "issue_refund", Err: errNotConfigured}
}

func (Unconfigured) VerifyWebhookSignature([]byte, string) (WebhookEvent, error) {
	return WebhookEvent{}, domain.AuthorizationError{Action: "deliver webhook", Msg: "webhook secret not configured"}
}
