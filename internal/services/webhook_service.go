package services

import (
	"context"
	"encoding/json"

	"detailhub/internal/domain"
	"detailhub/internal/domain/models"
	"detailhub/internal/payments"
	"detailhub/internal/repositories"
	"detailhub/internal/utils"
)

// WebhookService ingests processor events exactly once per event id.
type WebhookService struct {
	Ledger    repositories.Ledger
	Processor payments.Processor
	Bookings  BookingService
	Payouts   PayoutService
	Now       Clock
}

type WebhookResult struct {
	EventID   string `json:"event_id"`
	Type      string `json:"type"`
	Duplicate bool   `json:"duplicate"`
	Error     string `json:"error,omitempty"`
}

// Handle verifies and records the event, then dispatches it. Once the event
// is recorded the processor is always acknowledged; handler failures are
// kept on the event row for inspection.
func (s WebhookService) Handle(ctx context.Context, raw []byte, signature string) (WebhookResult, error) {
	ev, err := s.Processor.VerifyWebhookSignature(raw, signature)
	if err != nil {
		return WebhookResult{}, err
	}
	res := WebhookResult{EventID: ev.ID, Type: ev.ProcessorType}

	payload := json.RawMessage(raw)
	if !json.Valid(payload) {
		payload = json.RawMessage("null")
	}
	inserted, err := s.Ledger.RecordWebhookEvent(ctx, models.WebhookEvent{
		ID:         ev.ID,
		Type:       ev.ProcessorType,
		Payload:    payload,
		ReceivedAt: s.Now.now(),
	})
	if err != nil {
		return WebhookResult{}, err
	}
	if !inserted {
		utils.LogEvent(ctx, "webhook", "duplicate", "webhook event already recorded", "event_id", ev.ID)
		res.Duplicate = true
		return res, nil
	}

	procErr := s.dispatch(ctx, ev)
	msg := ""
	if procErr != nil {
		msg = procErr.Error()
		res.Error = msg
		utils.LogWarn(ctx, "webhook", "dispatch_failed", procErr, "event_id", ev.ID, "type", ev.ProcessorType)
	}
	if err := s.Ledger.MarkWebhookProcessed(ctx, ev.ID, msg, s.Now.now()); err != nil {
		utils.LogError(ctx, "webhook", "mark_processed", err, "event_id", ev.ID)
	}
	return res, nil
}

func (s WebhookService) dispatch(ctx context.Context, ev payments.WebhookEvent) error {
	actor := domain.SystemActor(domain.SystemWebhookActorID)
	switch ev.Type {
	case payments.EventPaymentSucceeded:
		_, err := s.Bookings.ConfirmPayment(ctx, ev.BookingID, ev.PaymentIntentID, ev.ChargeID)
		return err
	case payments.EventPaymentFailed:
		return s.Bookings.RecordPaymentFailure(ctx, ev.BookingID, ev.PaymentIntentID, ev.FailureMessage)
	case payments.EventChargeRefunded:
		return s.audit(ctx, ev, domain.EventChargeRefunded, map[string]any{
			"charge_id":      ev.ChargeID,
			"amount_cents":   ev.AmountCents,
			"processor_type": ev.ProcessorType,
		})
	case payments.EventDisputeCreated:
		b, err := s.booking(ctx, ev)
		if err != nil {
			return err
		}
		if err := s.Payouts.BlockPayoutForDispute(ctx, b.ID, actor); err != nil {
			return err
		}
		return appendAudit(ctx, s.Ledger, b, domain.EventProcessorDisputeOpened, actor,
			map[string]any{"charge_id": ev.ChargeID, "amount_cents": ev.AmountCents}, s.Now.now())
	case payments.EventDisputeClosed:
		return s.audit(ctx, ev, domain.EventProcessorDisputeClosed, map[string]any{"charge_id": ev.ChargeID})
	case payments.EventAccountUpdated:
		err := s.Ledger.UpdateProviderPayoutsEnabled(ctx, ev.AccountID, ev.PayoutsEnabled)
		if domain.IsNotFound(err) {
			return nil
		}
		return err
	default:
		utils.LogEvent(ctx, "webhook", "ignored", "unhandled event type", "type", ev.ProcessorType)
		return nil
	}
}

func (s WebhookService) audit(ctx context.Context, ev payments.WebhookEvent, t domain.Transition, meta map[string]any) error {
	b, err := s.booking(ctx, ev)
	if err != nil {
		return err
	}
	return appendAudit(ctx, s.Ledger, b, t, domain.SystemActor(domain.SystemWebhookActorID), meta, s.Now.now())
}

func (s WebhookService) booking(ctx context.Context, ev payments.WebhookEvent) (models.Booking, error) {
	if ev.BookingID != "" {
		return s.Ledger.GetBooking(ctx, ev.BookingID)
	}
	if ev.PaymentIntentID == "" {
		return models.Booking{}, domain.NotFoundError{Resource: "booking"}
	}
	return s.Ledger.GetBookingByPaymentIntent(ctx, ev.PaymentIntentID)
}
