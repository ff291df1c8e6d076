package services

import (
	"detailhub/internal/events"
	"detailhub/internal/payments"
	"detailhub/internal/repositories"
)

// Core bundles the services that share one ledger, processor and publisher.
type Core struct {
	Bookings   BookingService
	Payouts    PayoutService
	Disputes   DisputeService
	Sweep      AutoReleaseService
	Webhooks   WebhookService
	Statements StatementService
}

func NewCore(ledger repositories.Ledger, processor payments.Processor, pub events.Publisher, policy Policy, now Clock) Core {
	if pub == nil {
		pub = events.LogPublisher{}
	}
	payouts := PayoutService{Ledger: ledger, Processor: processor, Policy: policy, Now: now}
	bookings := BookingService{
		Ledger:    ledger,
		Processor: processor,
		Payouts:   payouts,
		Events:    pub,
		Policy:    policy,
		Now:       now,
	}
	return Core{
		Bookings: bookings,
		Payouts:  payouts,
		Disputes: DisputeService{
			Ledger:   ledger,
			Payouts:  payouts,
			Bookings: bookings,
			Events:   pub,
			Policy:   policy,
			Now:      now,
		},
		Sweep: AutoReleaseService{
			Ledger:   ledger,
			Bookings: bookings,
			Payouts:  payouts,
			Policy:   policy,
			Now:      now,
		},
		Webhooks: WebhookService{
			Ledger:    ledger,
			Processor: processor,
			Bookings:  bookings,
			Payouts:   payouts,
			Now:       now,
		},
		Statements: StatementService{Ledger: ledger, Payouts: payouts, Policy: policy, Now: now},
	}
}
