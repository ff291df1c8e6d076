package services

import (
	"testing"
	"time"

	"detailhub/internal/domain"
)

func TestSweep_AutoConfirmsAfterWindow(t *testing.T) {
	h := newHarness(t)
	due := h.completed("prov-1")
	h.advance(10 * time.Hour)
	notDue := h.completed("prov-1")

	h.advance(63 * time.Hour) // due completed 73h ago
	res, err := h.core.Sweep.Run(h.ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Processed != 1 || res.Confirmed != 1 || res.Released != 1 || res.Failed != 0 {
		t.Fatalf("result = %+v", res)
	}
	evs := h.eventsOf(due.ID, domain.TransitionAutoConfirm)
	if len(evs) != 1 || evs[0].ActorID != domain.SystemCronActorID {
		t.Fatalf("auto confirm events = %+v", evs)
	}
	if h.payout(due.ID).Status != domain.PayoutReleased {
		t.Fatalf("due payout not released")
	}
	if got := h.booking(notDue.ID); got.CustomerConfirmedAt != nil {
		t.Fatalf("booking inside the window was confirmed")
	}
}

func TestSweep_SkipsDisputed(t *testing.T) {
	h := newHarness(t)
	b := h.completed("prov-1")
	h.advance(time.Hour)
	if _, err := h.core.Disputes.Open(h.ctx, customerActor, b.ID, OpenDisputeInput{ReasonCode: "damage"}); err != nil {
		t.Fatalf("open: %v", err)
	}
	h.advance(80 * time.Hour)
	res, err := h.core.Sweep.Run(h.ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Processed != 0 {
		t.Fatalf("result = %+v", res)
	}
	if h.payout(b.ID).Status != domain.PayoutBlockedDispute {
		t.Fatalf("payout should stay blocked")
	}
}

func TestSweep_IsolatesFailures(t *testing.T) {
	h := newHarness(t)
	good := h.completed("prov-1")
	bad := h.completed("prov-2")
	h.advance(73 * time.Hour)

	res, err := h.core.Sweep.Run(h.ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Confirmed != 2 || res.Released != 1 || res.Failed != 1 {
		t.Fatalf("result = %+v", res)
	}
	if len(res.Failures) != 1 || res.Failures[0].BookingID != bad.ID {
		t.Fatalf("failures = %+v", res.Failures)
	}
	if h.payout(good.ID).Status != domain.PayoutReleased {
		t.Fatalf("good payout not released")
	}

	// The confirmed booking is retried on the next run.
	res, err = h.core.Sweep.Run(h.ctx)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if res.Processed != 1 || res.Failed != 1 || res.Failures[0].Stage != "release" {
		t.Fatalf("second result = %+v", res)
	}
}

func TestAutoConfirm_NotDue(t *testing.T) {
	h := newHarness(t)
	b := h.completed("prov-1")
	h.advance(71 * time.Hour)
	_, err := h.core.Bookings.AutoConfirm(h.ctx, b.ID)
	if domain.PreconditionReason(err) != domain.ReasonAutoConfirmNotDue {
		t.Fatalf("expected not due, got %v", err)
	}
}

func TestRelease_ConcurrentConfirmAndSweepTransferOnce(t *testing.T) {
	h := newHarness(t)
	b := h.completed("prov-1")
	h.advance(73 * time.Hour)
	if _, err := h.core.Bookings.CustomerConfirm(h.ctx, customerActor, b.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	_, err := h.core.Payouts.ReleasePayout(h.ctx, b.ID, domain.SystemActor(domain.SystemCronActorID))
	if domain.PreconditionReason(err) != domain.ReasonNoPendingPayout {
		t.Fatalf("expected no pending payout, got %v", err)
	}
	if n := h.proc.count("transfer"); n != 1 {
		t.Fatalf("transfers = %d", n)
	}
}
