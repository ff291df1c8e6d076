package repositories

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"detailhub/internal/domain"
	"detailhub/internal/domain/models"
)

// MemoryLedger is an in-process Ledger with the same conditional-update
// semantics as MySQLLedger. It backs LEDGER_DRIVER=memory and the tests.
type MemoryLedger struct {
	store *memStore
	tx    *memData
}

type memStore struct {
	mu   sync.Mutex
	data *memData
	now  func() time.Time
}

type memData struct {
	bookings  map[string]models.Booking
	events    []models.BookingEvent
	payouts   map[string]models.PayoutRecord
	disputes  map[string]models.DisputeCase
	webhooks  map[string]models.WebhookEvent
	providers map[string]models.Provider
	services  map[string]models.Service
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{store: &memStore{data: &memData{
		bookings:  map[string]models.Booking{},
		payouts:   map[string]models.PayoutRecord{},
		disputes:  map[string]models.DisputeCase{},
		webhooks:  map[string]models.WebhookEvent{},
		providers: map[string]models.Provider{},
		services:  map[string]models.Service{},
	}}}
}

// SetClock overrides the time used for created_at/updated_at stamps.
func (l *MemoryLedger) SetClock(now func() time.Time) {
	l.store.mu.Lock()
	l.store.now = now
	l.store.mu.Unlock()
}

func (d *memData) clone() *memData {
	c := &memData{
		bookings:  make(map[string]models.Booking, len(d.bookings)),
		events:    append([]models.BookingEvent(nil), d.events...),
		payouts:   make(map[string]models.PayoutRecord, len(d.payouts)),
		disputes:  make(map[string]models.DisputeCase, len(d.disputes)),
		webhooks:  make(map[string]models.WebhookEvent, len(d.webhooks)),
		providers: make(map[string]models.Provider, len(d.providers)),
		services:  make(map[string]models.Service, len(d.services)),
	}
	for k, v := range d.bookings {
		c.bookings[k] = v
	}
	for k, v := range d.payouts {
		c.payouts[k] = v
	}
	for k, v := range d.disputes {
		c.disputes[k] = v
	}
	for k, v := range d.webhooks {
		c.webhooks[k] = v
	}
	for k, v := range d.providers {
		c.providers[k] = v
	}
	for k, v := range d.services {
		c.services[k] = v
	}
	return c
}

// with runs fn against the transaction snapshot, or under the store lock.
func (l *MemoryLedger) with(fn func(d *memData, now time.Time) error) error {
	if l.tx != nil {
		return fn(l.tx, l.store.clock())
	}
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	return fn(l.store.data, l.store.clock())
}

func (s *memStore) clock() time.Time {
	if s.now != nil {
		return s.now().UTC()
	}
	return time.Now().UTC()
}

func (l *MemoryLedger) RunInTx(ctx context.Context, fn func(tx Ledger) error) error {
	if l.tx != nil {
		return fn(l)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	l.store.mu.Lock()
	defer l.store.mu.Unlock()

	snapshot := l.store.data.clone()
	if err := fn(&MemoryLedger{store: l.store, tx: snapshot}); err != nil {
		return err
	}
	l.store.data = snapshot
	return nil
}

// SeedProvider inserts or replaces a provider profile.
func (l *MemoryLedger) SeedProvider(p models.Provider) {
	_ = l.with(func(d *memData, _ time.Time) error {
		d.providers[p.ID] = p
		return nil
	})
}

// SeedService inserts or replaces a catalog service.
func (l *MemoryLedger) SeedService(s models.Service) {
	_ = l.with(func(d *memData, _ time.Time) error {
		d.services[s.ID] = s
		return nil
	})
}

// WebhookEventCount returns how many webhook rows are stored.
func (l *MemoryLedger) WebhookEventCount() int {
	n := 0
	_ = l.with(func(d *memData, _ time.Time) error {
		n = len(d.webhooks)
		return nil
	})
	return n
}

// GetWebhookEvent returns a stored webhook row.
func (l *MemoryLedger) GetWebhookEvent(id string) (models.WebhookEvent, bool) {
	var (
		ev models.WebhookEvent
		ok bool
	)
	_ = l.with(func(d *memData, _ time.Time) error {
		ev, ok = d.webhooks[id]
		return nil
	})
	return ev, ok
}

func (l *MemoryLedger) GetBooking(ctx context.Context, id string) (models.Booking, error) {
	if strings.TrimSpace(id) == "" {
		return models.Booking{}, domain.ValidationError{Field: "booking_id", Msg: "is required"}
	}
	var out models.Booking
	err := l.with(func(d *memData, _ time.Time) error {
		b, ok := d.bookings[id]
		if !ok {
			return domain.NotFoundError{Resource: "booking"}
		}
		out = b
		return nil
	})
	return out, err
}

func (l *MemoryLedger) GetBookingByPaymentIntent(ctx context.Context, intentID string) (models.Booking, error) {
	var out models.Booking
	err := l.with(func(d *memData, _ time.Time) error {
		for _, b := range d.bookings {
			if intentID != "" && b.PaymentIntentID == intentID {
				out = b
				return nil
			}
		}
		return domain.NotFoundError{Resource: "booking"}
	})
	return out, err
}

func (l *MemoryLedger) CreateBooking(ctx context.Context, b models.Booking) (models.Booking, error) {
	err := l.with(func(d *memData, now time.Time) error {
		if _, ok := d.bookings[b.ID]; ok {
			return domain.ConflictError{Resource: "booking", Msg: "duplicate id"}
		}
		for _, existing := range d.bookings {
			if existing.BookingNumber == b.BookingNumber {
				return domain.ConflictError{Resource: "booking", Msg: "duplicate booking number"}
			}
		}
		if b.CreatedAt.IsZero() {
			b.CreatedAt = now
		}
		b.UpdatedAt = b.CreatedAt
		d.bookings[b.ID] = b
		return nil
	})
	if err != nil {
		return models.Booking{}, err
	}
	return b, nil
}

func (l *MemoryLedger) UpdateBooking(ctx context.Context, id string, expected domain.Status, patch models.BookingPatch) (models.Booking, error) {
	var out models.Booking
	err := l.with(func(d *memData, now time.Time) error {
		b, ok := d.bookings[id]
		if !ok {
			return domain.NotFoundError{Resource: "booking"}
		}
		if b.Status != expected {
			return domain.ConflictError{Resource: "booking", Msg: fmt.Sprintf("status is %s, expected %s", b.Status, expected)}
		}
		if patch.CustomerConfirmedAt != nil && b.CustomerConfirmedAt != nil {
			return domain.ConflictError{Resource: "booking", Msg: "already confirmed"}
		}
		patch.Apply(&b)
		b.UpdatedAt = now
		d.bookings[id] = b
		out = b
		return nil
	})
	return out, err
}

func (l *MemoryLedger) FindBookingsDueForAutoRelease(ctx context.Context, now time.Time, limit int) ([]models.Booking, error) {
	out := []models.Booking{}
	err := l.with(func(d *memData, _ time.Time) error {
		for _, b := range d.bookings {
			if b.Status != domain.StatusCompleted || b.CustomerConfirmedAt != nil || b.DisputeOpenedAt != nil {
				continue
			}
			if b.AutoConfirmAt == nil || b.AutoConfirmAt.After(now) {
				continue
			}
			out = append(out, b)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].AutoConfirmAt.Before(*out[j].AutoConfirmAt) })
	return truncate(out, limit), err
}

func (l *MemoryLedger) FindConfirmedWithPendingPayout(ctx context.Context, limit int) ([]models.Booking, error) {
	out := []models.Booking{}
	err := l.with(func(d *memData, _ time.Time) error {
		pending := map[string]bool{}
		for _, p := range d.payouts {
			if p.Status == domain.PayoutPendingRelease {
				pending[p.BookingID] = true
			}
		}
		for _, b := range d.bookings {
			if b.Status != domain.StatusCompleted || !pending[b.ID] {
				continue
			}
			if b.CustomerConfirmedAt == nil && b.DisputeResolvedAt == nil {
				continue
			}
			out = append(out, b)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return truncate(out, limit), err
}

func truncate(bs []models.Booking, limit int) []models.Booking {
	if limit > 0 && len(bs) > limit {
		return bs[:limit]
	}
	return bs
}

func (l *MemoryLedger) AppendEvent(ctx context.Context, ev models.BookingEvent) error {
	return l.with(func(d *memData, now time.Time) error {
		if ev.ID == "" {
			ev.ID = uuid.NewString()
		}
		if ev.CreatedAt.IsZero() {
			ev.CreatedAt = now
		}
		d.events = append(d.events, ev)
		return nil
	})
}

func (l *MemoryLedger) ListEvents(ctx context.Context, bookingID string) ([]models.BookingEvent, error) {
	out := []models.BookingEvent{}
	err := l.with(func(d *memData, _ time.Time) error {
		for _, ev := range d.events {
			if ev.BookingID == bookingID {
				out = append(out, ev)
			}
		}
		return nil
	})
	return out, err
}

func (l *MemoryLedger) CreatePayoutRecord(ctx context.Context, p models.PayoutRecord) (models.PayoutRecord, error) {
	err := l.with(func(d *memData, now time.Time) error {
		for _, existing := range d.payouts {
			if existing.BookingID == p.BookingID {
				return domain.ConflictError{Resource: "payout", Msg: "booking already has a payout record"}
			}
		}
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		p.CreatedAt, p.UpdatedAt = now, now
		d.payouts[p.ID] = p
		return nil
	})
	if err != nil {
		return models.PayoutRecord{}, err
	}
	return p, nil
}

func (l *MemoryLedger) GetPayoutByBooking(ctx context.Context, bookingID string) (models.PayoutRecord, error) {
	var out models.PayoutRecord
	err := l.with(func(d *memData, _ time.Time) error {
		for _, p := range d.payouts {
			if p.BookingID == bookingID {
				out = p
				return nil
			}
		}
		return domain.NotFoundError{Resource: "payout"}
	})
	return out, err
}

func (l *MemoryLedger) UpdatePayoutRecord(ctx context.Context, id string, expected domain.PayoutStatus, patch models.PayoutPatch) (models.PayoutRecord, error) {
	var out models.PayoutRecord
	err := l.with(func(d *memData, now time.Time) error {
		p, ok := d.payouts[id]
		if !ok {
			return domain.NotFoundError{Resource: "payout"}
		}
		out = p
		if p.Status != expected {
			return domain.ConflictError{Resource: "payout", Msg: fmt.Sprintf("status is %s, expected %s", p.Status, expected)}
		}
		patch.Apply(&p)
		p.UpdatedAt = now
		d.payouts[id] = p
		out = p
		return nil
	})
	return out, err
}

func (l *MemoryLedger) SummarizeProviderPayouts(ctx context.Context, providerID string, from, to *time.Time) ([]models.PayoutSummaryRow, error) {
	byStatus := map[domain.PayoutStatus]*models.PayoutSummaryRow{}
	err := l.with(func(d *memData, _ time.Time) error {
		for _, p := range d.payouts {
			if p.ProviderID != providerID {
				continue
			}
			if from != nil && p.CreatedAt.Before(*from) {
				continue
			}
			if to != nil && !p.CreatedAt.Before(*to) {
				continue
			}
			row, ok := byStatus[p.Status]
			if !ok {
				row = &models.PayoutSummaryRow{Status: p.Status}
				byStatus[p.Status] = row
			}
			row.Count++
			row.AmountCents += p.AmountCents
		}
		return nil
	})
	out := make([]models.PayoutSummaryRow, 0, len(byStatus))
	for _, row := range byStatus {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Status < out[j].Status })
	return out, err
}

func (l *MemoryLedger) CreateDisputeCase(ctx context.Context, dc models.DisputeCase) (models.DisputeCase, error) {
	err := l.with(func(d *memData, now time.Time) error {
		for _, existing := range d.disputes {
			if existing.BookingID == dc.BookingID && existing.IsOpen() {
				return domain.ConflictError{Resource: "dispute", Msg: "booking already has an open dispute"}
			}
		}
		if dc.ID == "" {
			dc.ID = uuid.NewString()
		}
		if dc.CreatedAt.IsZero() {
			dc.CreatedAt = now
		}
		d.disputes[dc.ID] = dc
		return nil
	})
	if err != nil {
		return models.DisputeCase{}, err
	}
	return dc, nil
}

func (l *MemoryLedger) GetOpenDisputeCase(ctx context.Context, bookingID string) (models.DisputeCase, error) {
	var out models.DisputeCase
	err := l.with(func(d *memData, _ time.Time) error {
		for _, dc := range d.disputes {
			if dc.BookingID == bookingID && dc.IsOpen() {
				out = dc
				return nil
			}
		}
		return domain.NotFoundError{Resource: "dispute"}
	})
	return out, err
}

func (l *MemoryLedger) ResolveDisputeCase(ctx context.Context, id, resolution, resolvedBy string, at time.Time) (models.DisputeCase, error) {
	var out models.DisputeCase
	err := l.with(func(d *memData, _ time.Time) error {
		dc, ok := d.disputes[id]
		if !ok || !dc.IsOpen() {
			return domain.ConflictError{Resource: "dispute", Msg: "case already resolved or missing"}
		}
		res, by, when := resolution, resolvedBy, at.UTC()
		dc.Resolution, dc.ResolvedBy, dc.ResolvedAt = &res, &by, &when
		d.disputes[id] = dc
		out = dc
		return nil
	})
	return out, err
}

func (l *MemoryLedger) RecordWebhookEvent(ctx context.Context, ev models.WebhookEvent) (bool, error) {
	inserted := false
	err := l.with(func(d *memData, now time.Time) error {
		if _, ok := d.webhooks[ev.ID]; ok {
			return nil
		}
		if ev.ReceivedAt.IsZero() {
			ev.ReceivedAt = now
		}
		d.webhooks[ev.ID] = ev
		inserted = true
		return nil
	})
	return inserted, err
}

func (l *MemoryLedger) MarkWebhookProcessed(ctx context.Context, id, processErr string, at time.Time) error {
	return l.with(func(d *memData, _ time.Time) error {
		ev, ok := d.webhooks[id]
		if !ok {
			return domain.NotFoundError{Resource: "webhook event"}
		}
		when := at.UTC()
		ev.ProcessedAt = &when
		ev.ProcessError = processErr
		d.webhooks[id] = ev
		return nil
	})
}

func (l *MemoryLedger) GetProvider(ctx context.Context, id string) (models.Provider, error) {
	var out models.Provider
	err := l.with(func(d *memData, _ time.Time) error {
		p, ok := d.providers[id]
		if !ok {
			return domain.NotFoundError{Resource: "provider"}
		}
		out = p
		return nil
	})
	return out, err
}

func (l *MemoryLedger) IncrementProviderCompleted(ctx context.Context, id string) error {
	return l.with(func(d *memData, _ time.Time) error {
		p, ok := d.providers[id]
		if !ok {
			return domain.NotFoundError{Resource: "provider"}
		}
		p.CompletedBookings++
		d.providers[id] = p
		return nil
	})
}

func (l *MemoryLedger) UpdateProviderPayoutsEnabled(ctx context.Context, accountID string, enabled bool) error {
	return l.with(func(d *memData, _ time.Time) error {
		for id, p := range d.providers {
			if p.ProcessorAccountID == accountID {
				p.PayoutsEnabled = enabled
				d.providers[id] = p
				return nil
			}
		}
		return domain.NotFoundError{Resource: "provider"}
	})
}

func (l *MemoryLedger) GetService(ctx context.Context, id string) (models.Service, error) {
	var out models.Service
	err := l.with(func(d *memData, _ time.Time) error {
		s, ok := d.services[id]
		if !ok {
			return domain.NotFoundError{Resource: "service"}
		}
		out = s
		return nil
	})
	return out, err
}
