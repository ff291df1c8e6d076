package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"detailhub/internal/domain"
	"detailhub/internal/domain/models"
	"detailhub/internal/events"
	"detailhub/internal/payments"
	"detailhub/internal/repositories"
)

var (
	customerActor = domain.Actor{ID: "cust-1", Role: domain.RoleCustomer}
	providerActor = domain.Actor{ID: "prov-1", Role: domain.RoleProvider}
	adminActor    = domain.Actor{ID: "admin-1", Role: domain.RoleAdmin}
)

type fakeProcessor struct {
	mu        sync.Mutex
	calls     []string
	seq       int
	transfers map[string]string
	lastXfer  payments.TransferRequest
	reversals []payments.ReversalRequest
	refunds   []payments.RefundRequest

	intentErr   error
	transferErr error
	reverseErr  error
	refundErr   error

	webhook    payments.WebhookEvent
	webhookErr error
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{transfers: map[string]string{}}
}

func (f *fakeProcessor) record(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	f.seq++
	return f.seq
}

func (f *fakeProcessor) CreatePaymentIntent(ctx context.Context, req payments.PaymentIntentRequest) (payments.PaymentIntent, error) {
	n := f.record("payment_intent")
	if f.intentErr != nil {
		return payments.PaymentIntent{}, f.intentErr
	}
	return payments.PaymentIntent{ID: fmt.Sprintf("pi_%d", n), ClientSecret: fmt.Sprintf("pi_%d_secret", n)}, nil
}

func (f *fakeProcessor) CreateTransfer(ctx context.Context, req payments.TransferRequest) (string, error) {
	n := f.record("transfer")
	if f.transferErr != nil {
		return "", f.transferErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastXfer = req
	if id, ok := f.transfers[req.IdempotencyKey]; ok {
		return id, nil
	}
	id := fmt.Sprintf("tr_%d", n)
	f.transfers[req.IdempotencyKey] = id
	return id, nil
}

func (f *fakeProcessor) ReverseTransfer(ctx context.Context, req payments.ReversalRequest) error {
	f.record("reverse_transfer")
	if f.reverseErr != nil {
		return f.reverseErr
	}
	f.mu.Lock()
	f.reversals = append(f.reversals, req)
	f.mu.Unlock()
	return nil
}

func (f *fakeProcessor) IssueRefund(ctx context.Context, req payments.RefundRequest) (payments.Refund, error) {
	n := f.record("refund")
	if f.refundErr != nil {
		return payments.Refund{}, f.refundErr
	}
	f.mu.Lock()
	f.refunds = append(f.refunds, req)
	f.mu.Unlock()
	return payments.Refund{ID: fmt.Sprintf("re_%d", n), AmountCents: req.AmountCents}, nil
}

func (f *fakeProcessor) VerifyWebhookSignature(raw []byte, signature string) (payments.WebhookEvent, error) {
	if f.webhookErr != nil {
		return payments.WebhookEvent{}, f.webhookErr
	}
	return f.webhook, nil
}

func (f *fakeProcessor) count(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeProcessor) callOrder() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) has(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ev := range p.events {
		if ev.Name == name {
			return true
		}
	}
	return false
}

type harness struct {
	t      *testing.T
	ctx    context.Context
	now    time.Time
	ledger *repositories.MemoryLedger
	proc   *fakeProcessor
	pub    *recordingPublisher
	core   Core
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:      t,
		ctx:    context.Background(),
		now:    time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC),
		ledger: repositories.NewMemoryLedger(),
		proc:   newFakeProcessor(),
		pub:    &recordingPublisher{},
	}
	clock := func() time.Time { return h.now }
	h.ledger.SetClock(clock)
	h.ledger.SeedService(models.Service{ID: "svc-1", Name: "Full detail", Active: true})
	h.ledger.SeedProvider(models.Provider{ID: "prov-1", DisplayName: "Shine Co", ProcessorAccountID: "acct_1", PayoutsEnabled: true})
	h.ledger.SeedProvider(models.Provider{ID: "prov-2", DisplayName: "No Account"})
	h.core = NewCore(h.ledger, h.proc, h.pub, DefaultPolicy(), clock)
	return h
}

func (h *harness) advance(d time.Duration) {
	h.now = h.now.Add(d)
}

func (h *harness) input(providerID string) CreateBookingInput {
	start := h.now.Add(24 * time.Hour)
	return CreateBookingInput{
		CustomerID:     customerActor.ID,
		ProviderID:     providerID,
		ServiceID:      "svc-1",
		BaseCents:      12000,
		AddOnsCents:    1500,
		TaxCents:       960,
		ScheduledStart: start,
		ScheduledEnd:   start.Add(2 * time.Hour),
		ServiceAddress: "12 Harbor Rd",
		Latitude:       37.7749,
		Longitude:      -122.4194,
	}
}

// paid creates a booking and confirms its payment.
func (h *harness) paid(providerID string) models.Booking {
	h.t.Helper()
	res, err := h.core.Bookings.Create(h.ctx, customerActor, h.input(providerID))
	if err != nil {
		h.t.Fatalf("create: %v", err)
	}
	b, err := h.core.Bookings.ConfirmPayment(h.ctx, res.Booking.ID, res.Booking.PaymentIntentID, "ch_"+res.Booking.ID)
	if err != nil {
		h.t.Fatalf("confirm payment: %v", err)
	}
	return b
}

// completed drives a booking to COMPLETED at the current harness time.
func (h *harness) completed(providerID string) models.Booking {
	h.t.Helper()
	b := h.paid(providerID)
	pa := domain.Actor{ID: providerID, Role: domain.RoleProvider}
	if _, err := h.core.Bookings.AssignProvider(h.ctx, pa, b.ID, ""); err != nil {
		h.t.Fatalf("assign: %v", err)
	}
	if _, err := h.core.Bookings.Arrive(h.ctx, pa, b.ID, nil); err != nil {
		h.t.Fatalf("arrive: %v", err)
	}
	b, err := h.core.Bookings.Complete(h.ctx, pa, b.ID)
	if err != nil {
		h.t.Fatalf("complete: %v", err)
	}
	return b
}

func (h *harness) booking(id string) models.Booking {
	h.t.Helper()
	b, err := h.ledger.GetBooking(h.ctx, id)
	if err != nil {
		h.t.Fatalf("get booking: %v", err)
	}
	return b
}

func (h *harness) payout(bookingID string) models.PayoutRecord {
	h.t.Helper()
	p, err := h.ledger.GetPayoutByBooking(h.ctx, bookingID)
	if err != nil {
		h.t.Fatalf("get payout: %v", err)
	}
	return p
}

func (h *harness) eventsOf(bookingID string, t domain.Transition) []models.BookingEvent {
	h.t.Helper()
	all, err := h.ledger.ListEvents(h.ctx, bookingID)
	if err != nil {
		h.t.Fatalf("list events: %v", err)
	}
	var out []models.BookingEvent
	for _, ev := range all {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func (h *harness) mustProvider(id, account string) models.Provider {
	h.t.Helper()
	p, err := h.ledger.GetProvider(h.ctx, id)
	if err != nil {
		h.t.Fatalf("get provider: %v", err)
	}
	p.ProcessorAccountID = account
	return p
}
