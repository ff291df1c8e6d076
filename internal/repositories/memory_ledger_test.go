package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"detailhub/internal/domain"
	"detailhub/internal/domain/models"
)

func TestMemoryLedger_TxRollbackDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	if _, err := l.CreateBooking(ctx, models.Booking{ID: "bk-1", BookingNumber: "DTL-1-aaaa", Status: domain.StatusInProgress}); err != nil {
		t.Fatalf("create booking: %v", err)
	}

	boom := errors.New("boom")
	err := l.RunInTx(ctx, func(tx Ledger) error {
		completed := domain.StatusCompleted
		if _, err := tx.UpdateBooking(ctx, "bk-1", domain.StatusInProgress, models.BookingPatch{Status: &completed}); err != nil {
			return err
		}
		if _, err := tx.CreatePayoutRecord(ctx, models.PayoutRecord{BookingID: "bk-1", Status: domain.PayoutPendingRelease}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	b, _ := l.GetBooking(ctx, "bk-1")
	if b.Status != domain.StatusInProgress {
		t.Fatalf("status leaked out of rolled back tx: %s", b.Status)
	}
	if _, err := l.GetPayoutByBooking(ctx, "bk-1"); !domain.IsNotFound(err) {
		t.Fatalf("payout leaked out of rolled back tx: %v", err)
	}
}

func TestMemoryLedger_UpdateBookingGuards(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	_, _ = l.CreateBooking(ctx, models.Booking{ID: "bk-1", BookingNumber: "DTL-1-aaaa", Status: domain.StatusCompleted})

	now := time.Now().UTC()
	if _, err := l.UpdateBooking(ctx, "bk-1", domain.StatusCompleted, models.BookingPatch{CustomerConfirmedAt: &now}); err != nil {
		t.Fatalf("first confirm: %v", err)
	}
	if _, err := l.UpdateBooking(ctx, "bk-1", domain.StatusCompleted, models.BookingPatch{CustomerConfirmedAt: &now}); !domain.IsConflict(err) {
		t.Fatalf("second confirm should conflict, got %v", err)
	}
	if _, err := l.UpdateBooking(ctx, "bk-1", domain.StatusInProgress, models.BookingPatch{}); !domain.IsConflict(err) {
		t.Fatalf("stale expected status should conflict, got %v", err)
	}
	if _, err := l.UpdateBooking(ctx, "nope", domain.StatusCompleted, models.BookingPatch{}); !domain.IsNotFound(err) {
		t.Fatalf("missing booking should be not found, got %v", err)
	}
}

func TestMemoryLedger_SingleOpenDispute(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	first, err := l.CreateDisputeCase(ctx, models.DisputeCase{BookingID: "bk-1", OpenedBy: "cust-1"})
	if err != nil {
		t.Fatalf("first dispute: %v", err)
	}
	if _, err := l.CreateDisputeCase(ctx, models.DisputeCase{BookingID: "bk-1", OpenedBy: "prov-1"}); !domain.IsConflict(err) {
		t.Fatalf("second open dispute should conflict, got %v", err)
	}
	if _, err := l.ResolveDisputeCase(ctx, first.ID, "PROVIDER_FAVORED", "admin-1", time.Now()); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, err := l.CreateDisputeCase(ctx, models.DisputeCase{BookingID: "bk-1", OpenedBy: "cust-1"}); err != nil {
		t.Fatalf("dispute after resolution should be allowed at the ledger level: %v", err)
	}
}
