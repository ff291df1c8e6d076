package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"detailhub/internal/domain"
	"detailhub/internal/domain/models"
	"detailhub/internal/repositories"
	"detailhub/internal/utils"
)

// AutoReleaseService is the escrow sweep. Each run auto-confirms bookings
// whose window has elapsed and retries releases that failed earlier.
type AutoReleaseService struct {
	Ledger   repositories.Ledger
	Bookings BookingService
	Payouts  PayoutService
	Policy   Policy
	Now      Clock
}

type SweepFailure struct {
	BookingID string `json:"booking_id"`
	Stage     string `json:"stage"`
	Message   string `json:"message"`
}

type SweepResult struct {
	Processed int            `json:"processed"`
	Confirmed int            `json:"confirmed"`
	Released  int            `json:"released"`
	Failed    int            `json:"failed"`
	Failures  []SweepFailure `json:"failures,omitempty"`
}

type sweepTally struct {
	mu  sync.Mutex
	res SweepResult
}

func (t *sweepTally) fail(bookingID, stage string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.res.Failed++
	t.res.Failures = append(t.res.Failures, SweepFailure{BookingID: bookingID, Stage: stage, Message: err.Error()})
}

func (t *sweepTally) add(confirmed, released bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if confirmed {
		t.res.Confirmed++
	}
	if released {
		t.res.Released++
	}
}

// Run processes one batch. A failure on one booking never stops the others;
// only a failed ledger query fails the run.
func (s AutoReleaseService) Run(ctx context.Context) (SweepResult, error) {
	now := s.Now.now()
	limit := s.Policy.SweepBatchLimit
	if limit <= 0 {
		limit = 200
	}
	due, err := s.Ledger.FindBookingsDueForAutoRelease(ctx, now, limit)
	if err != nil {
		return SweepResult{}, err
	}
	retry, err := s.Ledger.FindConfirmedWithPendingPayout(ctx, limit)
	if err != nil {
		return SweepResult{}, err
	}

	tally := &sweepTally{}
	tally.res.Processed = len(due) + len(retry)

	g, gctx := errgroup.WithContext(ctx)
	pool := s.Policy.SweepPoolSize
	if pool <= 0 {
		pool = 1
	}
	g.SetLimit(pool)
	for _, b := range due {
		b := b
		g.Go(func() error {
			s.guard(gctx, tally, b.ID, "auto_confirm", func() error { return s.confirmOne(gctx, tally, b) })
			return nil
		})
	}
	for _, b := range retry {
		b := b
		g.Go(func() error {
			s.guard(gctx, tally, b.ID, "release", func() error { return s.releaseOne(gctx, tally, b) })
			return nil
		})
	}
	_ = g.Wait()

	utils.LogEvent(ctx, "sweep", "run", "auto-release sweep finished",
		"processed", tally.res.Processed, "confirmed", tally.res.Confirmed,
		"released", tally.res.Released, "failed", tally.res.Failed)
	return tally.res, nil
}

// guard records a failure or panic of one booking's work.
func (s AutoReleaseService) guard(ctx context.Context, tally *sweepTally, bookingID, stage string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			utils.LogError(ctx, "sweep", stage, err, "booking_id", bookingID)
			tally.fail(bookingID, stage, err)
		}
	}()
	if err := fn(); err != nil {
		utils.LogWarn(ctx, "sweep", stage, err, "booking_id", bookingID)
		tally.fail(bookingID, stage, err)
	}
}

func (s AutoReleaseService) confirmOne(ctx context.Context, tally *sweepTally, b models.Booking) error {
	res, err := s.Bookings.AutoConfirm(ctx, b.ID)
	if err != nil {
		// A customer confirming between the query and now is not a failure.
		if domain.IsStateTransition(err) {
			return nil
		}
		return err
	}
	tally.add(true, res.Payout != nil)
	if res.PayoutError != "" {
		return fmt.Errorf("release: %s", res.PayoutError)
	}
	return nil
}

func (s AutoReleaseService) releaseOne(ctx context.Context, tally *sweepTally, b models.Booking) error {
	if _, err := s.Payouts.ReleasePayout(ctx, b.ID, domain.SystemActor(domain.SystemPayoutActorID)); err != nil {
		return err
	}
	tally.add(false, true)
	return nil
}

// Start runs the sweep every interval until ctx is cancelled.
func (s AutoReleaseService) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Run(ctx); err != nil {
				utils.LogError(ctx, "sweep", "run", err)
			}
		}
	}
}
