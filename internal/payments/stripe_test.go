package payments

import (
	"context"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v76/webhook"

	"detailhub/internal/domain"
)

const testWebhookSecret = "whsec_test_secret"

func signed(t *testing.T, payload string) (raw []byte, header string) {
	t.Helper()
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
	})
	return sp.Payload, sp.Header
}

func TestVerifyWebhookSignature_PaymentSucceeded(t *testing.T) {
	p := NewStripeProcessor("sk_test_x", testWebhookSecret, time.Second)
	raw, header := signed(t, `{
		"id": "evt_1",
		"object": "event",
		"type": "payment_intent.succeeded",
		"data": {"object": {
			"id": "pi_1",
			"object": "payment_intent",
			"amount": 14460,
			"latest_charge": "ch_1",
			"metadata": {"booking_id": "bk-1"}
		}}
	}`)

	ev, err := p.VerifyWebhookSignature(raw, header)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.ID != "evt_1" || ev.Type != EventPaymentSucceeded {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.PaymentIntentID != "pi_1" || ev.ChargeID != "ch_1" || ev.BookingID != "bk-1" || ev.AmountCents != 14460 {
		t.Fatalf("payment intent fields not normalized: %+v", ev)
	}
}

func TestVerifyWebhookSignature_AccountUpdated(t *testing.T) {
	p := NewStripeProcessor("sk_test_x", testWebhookSecret, time.Second)
	raw, header := signed(t, `{
		"id": "evt_2",
		"object": "event",
		"type": "account.updated",
		"data": {"object": {"id": "acct_1", "object": "account", "payouts_enabled": true}}
	}`)

	ev, err := p.VerifyWebhookSignature(raw, header)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Type != EventAccountUpdated || ev.AccountID != "acct_1" || !ev.PayoutsEnabled {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestVerifyWebhookSignature_BadSignature(t *testing.T) {
	p := NewStripeProcessor("sk_test_x", testWebhookSecret, time.Second)
	raw, _ := signed(t, `{"id": "evt_3", "object": "event", "type": "charge.refunded", "data": {"object": {}}}`)

	_, err := p.VerifyWebhookSignature(raw, "t=1,v1=deadbeef")
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestVerifyWebhookSignature_UnknownTypePassesThrough(t *testing.T) {
	p := NewStripeProcessor("sk_test_x", testWebhookSecret, time.Second)
	raw, header := signed(t, `{"id": "evt_4", "object": "event", "type": "customer.created", "data": {"object": {"id": "cus_1"}}}`)

	ev, err := p.VerifyWebhookSignature(raw, header)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Type != EventUnknown || ev.ProcessorType != "customer.created" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestUnconfigured_ReturnsProcessorErrors(t *testing.T) {
	_, err := Unconfigured{}.CreateTransfer(context.Background(), TransferRequest{})
	if !domain.IsPaymentProcessor(err) {
		t.Fatalf("expected processor error, got %v", err)
	}
}
