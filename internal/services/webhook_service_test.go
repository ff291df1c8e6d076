package services

import (
	"testing"

	"detailhub/internal/domain"
	"detailhub/internal/payments"
)

func TestWebhook_PaymentSucceededIsProcessedOnce(t *testing.T) {
	h := newHarness(t)
	res, err := h.core.Bookings.Create(h.ctx, customerActor, h.input("prov-1"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	b := res.Booking
	h.proc.webhook = payments.WebhookEvent{
		ID:              "evt_1",
		Type:            payments.EventPaymentSucceeded,
		ProcessorType:   "payment_intent.succeeded",
		BookingID:       b.ID,
		PaymentIntentID: b.PaymentIntentID,
		ChargeID:        "ch_1",
	}
	raw := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)

	first, err := h.core.Webhooks.Handle(h.ctx, raw, "sig")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if first.Duplicate || first.Error != "" {
		t.Fatalf("first = %+v", first)
	}
	second, err := h.core.Webhooks.Handle(h.ctx, raw, "sig")
	if err != nil {
		t.Fatalf("second handle: %v", err)
	}
	if !second.Duplicate {
		t.Fatalf("second delivery should be a duplicate")
	}

	got := h.booking(b.ID)
	if got.Status != domain.StatusConfirmed || got.ChargeID != "ch_1" {
		t.Fatalf("booking = %+v", got)
	}
	if n := len(h.eventsOf(b.ID, domain.TransitionConfirmPayment)); n != 1 {
		t.Fatalf("PAYMENT_CONFIRMED events = %d", n)
	}
	if h.ledger.WebhookEventCount() != 1 {
		t.Fatalf("webhook rows = %d", h.ledger.WebhookEventCount())
	}
	ev, ok := h.ledger.GetWebhookEvent("evt_1")
	if !ok || ev.ProcessedAt == nil {
		t.Fatalf("event not marked processed: %+v", ev)
	}
}

func TestWebhook_BadSignatureRecordsNothing(t *testing.T) {
	h := newHarness(t)
	h.proc.webhookErr = domain.AuthorizationError{Msg: "invalid signature"}
	if _, err := h.core.Webhooks.Handle(h.ctx, []byte(`{}`), "bad"); !domain.IsAuthorization(err) {
		t.Fatalf("expected authorization error, got %v", err)
	}
	if h.ledger.WebhookEventCount() != 0 {
		t.Fatalf("nothing should be recorded")
	}
}

func TestWebhook_HandlerErrorIsAcked(t *testing.T) {
	h := newHarness(t)
	h.proc.webhook = payments.WebhookEvent{
		ID:              "evt_2",
		Type:            payments.EventPaymentSucceeded,
		ProcessorType:   "payment_intent.succeeded",
		PaymentIntentID: "pi_unknown",
	}
	res, err := h.core.Webhooks.Handle(h.ctx, []byte(`{"id":"evt_2"}`), "sig")
	if err != nil {
		t.Fatalf("handle should ack: %v", err)
	}
	if res.Error == "" {
		t.Fatalf("expected handler error to be reported")
	}
	ev, _ := h.ledger.GetWebhookEvent("evt_2")
	if ev.ProcessError == "" {
		t.Fatalf("process error not stored")
	}
}

func TestWebhook_DisputeCreatedBlocksPayout(t *testing.T) {
	h := newHarness(t)
	b := h.completed("prov-1")
	h.proc.webhook = payments.WebhookEvent{
		ID:              "evt_3",
		Type:            payments.EventDisputeCreated,
		ProcessorType:   "charge.dispute.created",
		PaymentIntentID: b.PaymentIntentID,
		ChargeID:        b.ChargeID,
		AmountCents:     b.TotalCents,
	}
	if _, err := h.core.Webhooks.Handle(h.ctx, []byte(`{"id":"evt_3"}`), "sig"); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if h.payout(b.ID).Status != domain.PayoutBlockedDispute {
		t.Fatalf("payout should be blocked")
	}
	if n := len(h.eventsOf(b.ID, domain.EventProcessorDisputeOpened)); n != 1 {
		t.Fatalf("processor dispute events = %d", n)
	}
}

func TestWebhook_AccountUpdatedEnablesPayouts(t *testing.T) {
	h := newHarness(t)
	h.ledger.SeedProvider(h.mustProvider("prov-2", "acct_2"))
	h.proc.webhook = payments.WebhookEvent{
		ID:             "evt_4",
		Type:           payments.EventAccountUpdated,
		ProcessorType:  "account.updated",
		AccountID:      "acct_2",
		PayoutsEnabled: true,
	}
	if _, err := h.core.Webhooks.Handle(h.ctx, []byte(`{"id":"evt_4"}`), "sig"); err != nil {
		t.Fatalf("handle: %v", err)
	}
	p, err := h.ledger.GetProvider(h.ctx, "prov-2")
	if err != nil {
		t.Fatalf("get provider: %v", err)
	}
	if !p.PayoutsEnabled {
		t.Fatalf("payouts should be enabled")
	}
}
