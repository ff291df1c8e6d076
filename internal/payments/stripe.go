package payments

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"detailhub/internal/domain"
)

var tracer = otel.Tracer("detailhub/payments")

// StripeProcessor implements Processor on Stripe Connect. Transfers are
// sourced from the booking charge and land on the provider's connected account.
type StripeProcessor struct {
	api           *client.API
	webhookSecret string
	timeout       time.Duration
}

func NewStripeProcessor(secretKey, webhookSecret string, timeout time.Duration) *StripeProcessor {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	backends := stripe.NewBackends(&http.Client{Timeout: timeout})
	return &StripeProcessor{
		api:           client.New(secretKey, backends),
		webhookSecret: webhookSecret,
		timeout:       timeout,
	}
}

func (p *StripeProcessor) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, context.CancelFunc, trace.Span) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	ctx, span := tracer.Start(ctx, "stripe."+op, trace.WithAttributes(attrs...))
	return ctx, cancel, span
}

func (p *StripeProcessor) CreatePaymentIntent(ctx context.Context, req PaymentIntentRequest) (PaymentIntent, error) {
	ctx, cancel, span := p.start(ctx, "CreatePaymentIntent", attribute.Int64("amount_cents", req.AmountCents))
	defer cancel()
	defer span.End()

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.AmountCents),
		Currency: stripe.String(strings.ToLower(req.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if req.TransferGroup != "" {
		params.TransferGroup = stripe.String(req.TransferGroup)
	}
	params.Context = ctx
	applyMeta(&params.Params, req.Metadata, req.IdempotencyKey)

	pi, err := p.api.PaymentIntents.New(params)
	if err != nil {
		return PaymentIntent{}, failSpan(span, wrapStripe("create_payment_intent", err))
	}
	return PaymentIntent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

func (p *StripeProcessor) CreateTransfer(ctx context.Context, req TransferRequest) (string, error) {
	ctx, cancel, span := p.start(ctx, "CreateTransfer",
		attribute.Int64("amount_cents", req.AmountCents),
		attribute.String("destination", req.DestinationAccount),
	)
	defer cancel()
	defer span.End()

	params := &stripe.TransferParams{
		Amount:      stripe.Int64(req.AmountCents),
		Currency:    stripe.String(strings.ToLower(req.Currency)),
		Destination: stripe.String(req.DestinationAccount),
	}
	if req.SourceCharge != "" {
		params.SourceTransaction = stripe.String(req.SourceCharge)
	}
	if req.TransferGroup != "" {
		params.TransferGroup = stripe.String(req.TransferGroup)
	}
	params.Context = ctx
	applyMeta(&params.Params, req.Metadata, req.IdempotencyKey)

	tr, err := p.api.Transfers.New(params)
	if err != nil {
		return "", failSpan(span, wrapStripe("create_transfer", err))
	}
	if tr.ID == "" {
		return "", failSpan(span, domain.PaymentProcessorError{Op: "create_transfer", Err: errors.New("transfer created without id")})
	}
	return tr.ID, nil
}

func (p *StripeProcessor) ReverseTransfer(ctx context.Context, req ReversalRequest) error {
	ctx, cancel, span := p.start(ctx, "ReverseTransfer",
		attribute.String("transfer_id", req.TransferID),
		attribute.Int64("amount_cents", req.AmountCents),
	)
	defer cancel()
	defer span.End()

	params := &stripe.TransferReversalParams{ID: stripe.String(req.TransferID)}
	if req.AmountCents > 0 {
		params.Amount = stripe.Int64(req.AmountCents)
	}
	params.Context = ctx
	applyMeta(&params.Params, req.Metadata, req.IdempotencyKey)

	if _, err := p.api.TransferReversals.New(params); err != nil {
		return failSpan(span, wrapStripe("reverse_transfer", err))
	}
	return nil
}

func (p *StripeProcessor) IssueRefund(ctx context.Context, req RefundRequest) (Refund, error) {
	ctx, cancel, span := p.start(ctx, "IssueRefund", attribute.Int64("amount_cents", req.AmountCents))
	defer cancel()
	defer span.End()

	params := &stripe.RefundParams{}
	switch {
	case req.ChargeID != "":
		params.Charge = stripe.String(req.ChargeID)
	case req.PaymentIntentID != "":
		params.PaymentIntent = stripe.String(req.PaymentIntentID)
	default:
		return Refund{}, failSpan(span, domain.PaymentProcessorError{Op: "issue_refund", Err: errors.New("no charge or payment intent to refund")})
	}
	if req.AmountCents > 0 {
		params.Amount = stripe.Int64(req.AmountCents)
	}
	if reason := refundReason(req.Reason); reason != "" {
		params.Reason = stripe.String(reason)
	}
	params.Context = ctx
	applyMeta(&params.Params, req.Metadata, req.IdempotencyKey)

	rf, err := p.api.Refunds.New(params)
	if err != nil {
		return Refund{}, failSpan(span, wrapStripe("issue_refund", err))
	}
	return Refund{ID: rf.ID, AmountCents: rf.Amount}, nil
}

// VerifyWebhookSignature checks the Stripe-Signature header and normalizes
// the events the core reconciles. Other types come back as EventUnknown.
func (p *StripeProcessor) VerifyWebhookSignature(raw []byte, signature string) (WebhookEvent, error) {
	if p.webhookSecret == "" {
		return WebhookEvent{}, domain.AuthorizationError{Action: "deliver webhook", Msg: "webhook secret not configured"}
	}
	ev, err := webhook.ConstructEventWithOptions(raw, signature, p.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return WebhookEvent{}, domain.ValidationError{Field: "Stripe-Signature", Msg: "signature verification failed", Err: err}
	}
	return normalizeEvent(ev)
}

func normalizeEvent(ev stripe.Event) (WebhookEvent, error) {
	out := WebhookEvent{ID: ev.ID, ProcessorType: string(ev.Type), Type: EventUnknown}
	if ev.Data == nil {
		return out, nil
	}
	out.Raw = ev.Data.Raw
	decode := func(v any) error {
		if err := json.Unmarshal(ev.Data.Raw, v); err != nil {
			return domain.ValidationError{Field: "payload", Msg: "malformed event object", Err: err}
		}
		return nil
	}

	switch string(ev.Type) {
	case "payment_intent.succeeded", "payment_intent.payment_failed":
		var pi stripe.PaymentIntent
		if err := decode(&pi); err != nil {
			return out, err
		}
		out.Type = EventPaymentSucceeded
		if string(ev.Type) == "payment_intent.payment_failed" {
			out.Type = EventPaymentFailed
			if pi.LastPaymentError != nil {
				out.FailureMessage = pi.LastPaymentError.Msg
			}
		}
		out.PaymentIntentID = pi.ID
		out.BookingID = pi.Metadata["booking_id"]
		out.AmountCents = pi.Amount
		if pi.LatestCharge != nil {
			out.ChargeID = pi.LatestCharge.ID
		}
	case "charge.refunded":
		var ch stripe.Charge
		if err := decode(&ch); err != nil {
			return out, err
		}
		out.Type = EventChargeRefunded
		out.ChargeID = ch.ID
		out.BookingID = ch.Metadata["booking_id"]
		out.AmountCents = ch.AmountRefunded
		if ch.PaymentIntent != nil {
			out.PaymentIntentID = ch.PaymentIntent.ID
		}
	case "charge.dispute.created", "charge.dispute.closed":
		var dp stripe.Dispute
		if err := decode(&dp); err != nil {
			return out, err
		}
		out.Type = EventDisputeCreated
		if string(ev.Type) == "charge.dispute.closed" {
			out.Type = EventDisputeClosed
		}
		out.AmountCents = dp.Amount
		if dp.Charge != nil {
			out.ChargeID = dp.Charge.ID
		}
		if dp.PaymentIntent != nil {
			out.PaymentIntentID = dp.PaymentIntent.ID
		}
	case "account.updated":
		var acct stripe.Account
		if err := decode(&acct); err != nil {
			return out, err
		}
		out.Type = EventAccountUpdated
		out.AccountID = acct.ID
		out.PayoutsEnabled = acct.PayoutsEnabled
	}
	return out, nil
}

func applyMeta(params *stripe.Params, meta map[string]string, idempotencyKey string) {
	for k, v := range meta {
		params.AddMetadata(k, v)
	}
	if idempotencyKey != "" {
		params.SetIdempotencyKey(idempotencyKey)
	}
}

func refundReason(reason string) string {
	switch strings.ToLower(strings.TrimSpace(reason)) {
	case "duplicate":
		return string(stripe.RefundReasonDuplicate)
	case "fraudulent":
		return string(stripe.RefundReasonFraudulent)
	case "":
		return ""
	default:
		return string(stripe.RefundReasonRequestedByCustomer)
	}
}

func wrapStripe(op string, err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		return domain.PaymentProcessorError{Op: op, Code: string(se.Code), HTTPStatus: se.HTTPStatusCode, Err: err}
	}
	return domain.PaymentProcessorError{Op: op, Err: err}
}

func failSpan(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
