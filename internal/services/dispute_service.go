package services

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"detailhub/internal/domain"
	"detailhub/internal/domain/models"
	"detailhub/internal/events"
	"detailhub/internal/repositories"
	"detailhub/internal/utils"
)

type DisputeService struct {
	Ledger   repositories.Ledger
	Payouts  PayoutService
	Bookings BookingService
	Events   events.Publisher
	Policy   Policy
	Now      Clock
}

type OpenDisputeInput struct {
	ReasonCode  string          `json:"reason_code" validate:"required,max=64"`
	Description string          `json:"description" validate:"max=4000"`
	Evidence    json.RawMessage `json:"evidence"`
}

type ResolveDisputeInput struct {
	Outcome     domain.DisputeOutcome `json:"outcome" validate:"required,oneof=CUSTOMER_FAVORED PROVIDER_FAVORED"`
	Notes       string                `json:"notes" validate:"max=4000"`
	RefundCents int64                 `json:"refund_cents" validate:"gte=0"`
}

type ResolveResult struct {
	Booking     models.Booking       `json:"booking"`
	Payout      *models.PayoutRecord `json:"payout,omitempty"`
	PayoutError string               `json:"payout_error,omitempty"`
}

// Open moves a completed booking to DISPUTED and blocks its pending payout.
// Only the booking's customer or provider may open, within the dispute window
// measured from provider completion.
func (s DisputeService) Open(ctx context.Context, actor domain.Actor, bookingID string, in OpenDisputeInput) (models.DisputeCase, error) {
	in.ReasonCode = strings.TrimSpace(in.ReasonCode)
	if err := validate.Struct(in); err != nil {
		return models.DisputeCase{}, validationError(err)
	}
	if len(in.Evidence) > 0 && !json.Valid(in.Evidence) {
		return models.DisputeCase{}, domain.ValidationError{Field: "evidence", Msg: "must be valid JSON"}
	}
	b, err := s.Ledger.GetBooking(ctx, bookingID)
	if err != nil {
		return models.DisputeCase{}, err
	}
	if !isParty(actor, b) {
		return models.DisputeCase{}, domain.AuthorizationError{Action: "open dispute", Msg: "caller is not a party to the booking"}
	}
	if err := domain.CheckTransition(domain.TransitionDispute, b.Status); err != nil {
		return models.DisputeCase{}, err
	}
	// One dispute per booking; a resolved case is never reopened.
	if b.DisputeOpenedAt != nil || b.DisputeResolvedAt != nil {
		return models.DisputeCase{}, domain.PreconditionError{Reason: domain.ReasonDisputeResolved}
	}
	now := s.Now.now()
	if b.ProviderCompletedAt == nil || utils.WindowElapsed(*b.ProviderCompletedAt, s.Policy.DisputeWindow, now) {
		return models.DisputeCase{}, domain.PreconditionError{Reason: domain.ReasonDisputeWindowExpired}
	}

	dc := models.DisputeCase{
		ID:          uuid.NewString(),
		BookingID:   b.ID,
		OpenedBy:    actor.ID,
		OpenerRole:  actor.Role,
		ReasonCode:  in.ReasonCode,
		Description: strings.TrimSpace(in.Description),
		Evidence:    in.Evidence,
		CreatedAt:   now,
	}
	updated, err := commitTransition(ctx, s.Ledger, transitionStep{
		booking:    b,
		transition: domain.TransitionDispute,
		to:         domain.StatusDisputed,
		actor:      actor,
		patch:      models.BookingPatch{DisputeOpenedAt: &now},
		metadata:   map[string]any{"dispute_id": dc.ID, "reason_code": dc.ReasonCode},
		within: func(tx repositories.Ledger, updated models.Booking) error {
			created, err := tx.CreateDisputeCase(ctx, dc)
			if err != nil {
				return err
			}
			dc = created
			return s.Payouts.blockInTx(ctx, tx, updated, actor, now)
		},
	}, now)
	if err != nil {
		return models.DisputeCase{}, err
	}
	utils.LogEvent(ctx, "dispute", "open", "dispute opened", "booking_id", b.ID, "dispute_id", dc.ID, "opener_role", string(actor.Role))
	emit(ctx, s.Events, events.BookingDisputed, updated, map[string]any{"dispute_id": dc.ID, "reason_code": dc.ReasonCode}, now)
	return dc, nil
}

// Resolve closes the open case. A customer-favored outcome refunds through
// the reversal-first path; a provider-favored one returns the booking to
// COMPLETED and re-queues the payout for release.
func (s DisputeService) Resolve(ctx context.Context, actor domain.Actor, bookingID string, in ResolveDisputeInput) (ResolveResult, error) {
	if err := requireStaff(actor, "resolve dispute"); err != nil {
		return ResolveResult{}, err
	}
	if err := validate.Struct(in); err != nil {
		return ResolveResult{}, validationError(err)
	}
	b, err := s.Ledger.GetBooking(ctx, bookingID)
	if err != nil {
		return ResolveResult{}, err
	}
	if err := domain.CheckTransition(domain.TransitionResolveDispute, b.Status); err != nil {
		return ResolveResult{}, err
	}
	dc, err := s.Ledger.GetOpenDisputeCase(ctx, b.ID)
	if err != nil {
		return ResolveResult{}, err
	}
	resolution := string(in.Outcome)
	if notes := strings.TrimSpace(in.Notes); notes != "" {
		resolution += ": " + notes
	}
	now := s.Now.now()
	closeCase := func(tx repositories.Ledger) error {
		_, err := tx.ResolveDisputeCase(ctx, dc.ID, resolution, actor.ID, now)
		return err
	}

	var res ResolveResult
	switch in.Outcome {
	case domain.OutcomeCustomerFavored:
		updated, err := s.Bookings.refund(ctx, b, domain.TransitionResolveDispute, actor,
			RefundInput{AmountCents: in.RefundCents, Reason: "dispute_customer_favored"}, closeCase)
		if err != nil {
			return ResolveResult{}, err
		}
		res.Booking = updated
	default:
		updated, err := commitTransition(ctx, s.Ledger, transitionStep{
			booking:    b,
			transition: domain.TransitionResolveDispute,
			to:         domain.StatusCompleted,
			actor:      actor,
			patch:      models.BookingPatch{DisputeResolvedAt: &now},
			metadata:   map[string]any{"dispute_id": dc.ID, "outcome": string(in.Outcome)},
			within: func(tx repositories.Ledger, _ models.Booking) error {
				if err := closeCase(tx); err != nil {
					return err
				}
				p, err := tx.GetPayoutByBooking(ctx, b.ID)
				if domain.IsNotFound(err) {
					return nil
				}
				if err != nil || p.Status != domain.PayoutBlockedDispute {
					return err
				}
				pending := domain.PayoutPendingRelease
				_, err = tx.UpdatePayoutRecord(ctx, p.ID, domain.PayoutBlockedDispute, models.PayoutPatch{Status: &pending})
				return err
			},
		}, now)
		if err != nil {
			return ResolveResult{}, err
		}
		res.Booking = updated
	}

	utils.LogEvent(ctx, "dispute", "resolve", "dispute resolved", "booking_id", b.ID, "dispute_id", dc.ID, "outcome", string(in.Outcome))
	emit(ctx, s.Events, events.BookingResolved, res.Booking, map[string]any{"dispute_id": dc.ID, "outcome": string(in.Outcome)}, now)

	if in.Outcome == domain.OutcomeProviderFavored {
		payout, err := s.Payouts.ReleasePayout(ctx, b.ID, actor)
		if err != nil {
			utils.LogWarn(ctx, "dispute", "payout_release_deferred", err, "booking_id", b.ID)
			res.PayoutError = err.Error()
			return res, nil
		}
		res.Payout = &payout
		if fresh, err := s.Ledger.GetBooking(ctx, b.ID); err == nil {
			res.Booking = fresh
		}
		emit(ctx, s.Events, events.PayoutReleased, res.Booking, map[string]any{"amount_cents": payout.AmountCents}, now)
	}
	return res, nil
}

// Get returns the open case, or the NotFoundError when none is open.
func (s DisputeService) Get(ctx context.Context, actor domain.Actor, bookingID string) (models.DisputeCase, error) {
	if _, err := s.Bookings.Get(ctx, actor, bookingID); err != nil {
		return models.DisputeCase{}, err
	}
	return s.Ledger.GetOpenDisputeCase(ctx, bookingID)
}
