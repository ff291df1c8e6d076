package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"detailhub/internal/domain"
	"detailhub/internal/domain/models"
	"detailhub/internal/payments"
	"detailhub/internal/repositories"
	"detailhub/internal/utils"
)

var tracer = otel.Tracer("detailhub/services")

// PayoutService moves escrowed booking funds to providers and back.
// It keeps no state; every decision is re-derived from the ledger.
type PayoutService struct {
	Ledger    repositories.Ledger
	Processor payments.Processor
	Policy    Policy
	Now       Clock
}

func spanFail(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// ReleasePayout transfers providerNet to the provider once every release
// precondition holds. On processor failure nothing is marked released and the
// call can be retried; the transfer idempotency key prevents a double transfer.
func (s PayoutService) ReleasePayout(ctx context.Context, bookingID string, actor domain.Actor) (models.PayoutRecord, error) {
	ctx, span := tracer.Start(ctx, "payout.Release", trace.WithAttributes(attribute.String("booking_id", bookingID)))
	defer span.End()

	now := s.Now.now()
	b, err := s.Ledger.GetBooking(ctx, bookingID)
	if err != nil {
		return models.PayoutRecord{}, spanFail(span, err)
	}
	provider, payout, err := s.checkRelease(ctx, b, now)
	if err != nil {
		return models.PayoutRecord{}, spanFail(span, err)
	}
	amount := b.ProviderNetCents
	span.SetAttributes(attribute.Int64("amount_cents", amount), attribute.String("payout_id", payout.ID))

	transferID, err := s.Processor.CreateTransfer(ctx, payments.TransferRequest{
		AmountCents:        amount,
		Currency:           b.Currency,
		DestinationAccount: provider.ProcessorAccountID,
		SourceCharge:       b.ChargeID,
		TransferGroup:      transferGroup(b.ID),
		Metadata: map[string]string{
			"booking_id":     b.ID,
			"booking_number": b.BookingNumber,
			"payout_id":      payout.ID,
		},
		IdempotencyKey: "payout-" + payout.ID,
	})
	if err != nil {
		utils.LogWarn(ctx, "payout", "transfer_failed", err, "booking_id", b.ID, "payout_id", payout.ID)
		return models.PayoutRecord{}, spanFail(span, err)
	}

	var released models.PayoutRecord
	err = s.Ledger.RunInTx(ctx, func(tx repositories.Ledger) error {
		status := domain.PayoutReleased
		p, err := tx.UpdatePayoutRecord(ctx, payout.ID, domain.PayoutPendingRelease, models.PayoutPatch{
			Status:     &status,
			TransferID: &transferID,
			ReleasedAt: &now,
		})
		if err != nil {
			return err
		}
		updated, err := tx.UpdateBooking(ctx, b.ID, domain.StatusCompleted, models.BookingPatch{TransferID: &transferID})
		if err != nil {
			return err
		}
		released = p
		return appendAudit(ctx, tx, updated, domain.EventPayoutReleased, actor, map[string]any{
			"payout_id":    p.ID,
			"transfer_id":  transferID,
			"amount_cents": amount,
		}, now)
	})
	if err != nil {
		return models.PayoutRecord{}, spanFail(span, s.compensateRelease(ctx, b, payout, transferID, err))
	}

	utils.LogEvent(ctx, "payout", "released", "payout released",
		"booking_id", b.ID, "transfer_id", transferID, "amount_cents", amount)
	return released, nil
}

func (s PayoutService) checkRelease(ctx context.Context, b models.Booking, now time.Time) (models.Provider, models.PayoutRecord, error) {
	fail := func(reason, msg string) (models.Provider, models.PayoutRecord, error) {
		return models.Provider{}, models.PayoutRecord{}, domain.PreconditionError{Reason: reason, Msg: msg}
	}
	if b.Status != domain.StatusCompleted {
		return fail(domain.ReasonNotCompleted, "booking status is "+string(b.Status))
	}
	autoDue := b.AutoConfirmAt != nil && !now.Before(*b.AutoConfirmAt)
	if b.CustomerConfirmedAt == nil && b.DisputeResolvedAt == nil && !autoDue {
		return fail(domain.ReasonNotConfirmed, "customer has not confirmed and auto-confirm is not due")
	}
	if _, err := s.Ledger.GetOpenDisputeCase(ctx, b.ID); err == nil {
		return fail(domain.ReasonDisputeOpen, "")
	} else if !domain.IsNotFound(err) {
		return models.Provider{}, models.PayoutRecord{}, err
	}
	provider, err := s.Ledger.GetProvider(ctx, b.ProviderID)
	if err != nil {
		return models.Provider{}, models.PayoutRecord{}, err
	}
	if provider.ProcessorAccountID == "" || !provider.PayoutsEnabled {
		return fail(domain.ReasonNoProcessorAccount, "provider has no payout-enabled processor account")
	}
	if b.ChargeID == "" {
		return fail(domain.ReasonNoCharge, "")
	}
	payout, err := s.Ledger.GetPayoutByBooking(ctx, b.ID)
	if domain.IsNotFound(err) {
		return fail(domain.ReasonNoPendingPayout, "")
	}
	if err != nil {
		return models.Provider{}, models.PayoutRecord{}, err
	}
	if payout.Status != domain.PayoutPendingRelease {
		return fail(domain.ReasonNoPendingPayout, "payout is "+string(payout.Status))
	}
	if b.ProviderNetCents < s.Policy.MinTransferCents {
		return fail(domain.ReasonBelowMinimum, fmt.Sprintf("%d cents is below the %d cent minimum", b.ProviderNetCents, s.Policy.MinTransferCents))
	}
	return provider, payout, nil
}

// compensateRelease runs after a transfer succeeded but the ledger finalize
// failed. A concurrent release of the same payout (same idempotency key, same
// transfer) needs no action; anything else gets the transfer reversed.
func (s PayoutService) compensateRelease(ctx context.Context, b models.Booking, payout models.PayoutRecord, transferID string, cause error) error {
	if current, err := s.Ledger.GetPayoutByBooking(ctx, b.ID); err == nil &&
		current.Status == domain.PayoutReleased && current.TransferID == transferID {
		return domain.PreconditionError{Reason: domain.ReasonNoPendingPayout, Msg: "payout already released"}
	}

	utils.LogWarn(ctx, "payout", "finalize_failed", cause, "booking_id", b.ID, "transfer_id", transferID)
	revErr := s.Processor.ReverseTransfer(ctx, payments.ReversalRequest{
		TransferID:     transferID,
		Metadata:       map[string]string{"booking_id": b.ID, "reason": "release_finalize_failed"},
		IdempotencyKey: "payout-compensate-" + payout.ID,
	})
	if revErr != nil {
		utils.LogError(ctx, "payout", "compensation_failed", revErr, "booking_id", b.ID, "transfer_id", transferID)
		return domain.InternalError{
			Msg: "transfer " + transferID + " succeeded but could not be recorded or reversed",
			Err: errors.Join(cause, revErr),
		}
	}
	if domain.IsConflict(cause) {
		return domain.PreconditionError{Reason: domain.ReasonDisputeOpen, Msg: "booking changed during release; transfer reversed"}
	}
	return cause
}

// BlockPayoutForDispute flips a PENDING_RELEASE payout to BLOCKED_DISPUTE.
// It is a no-op when there is no pending payout.
func (s PayoutService) BlockPayoutForDispute(ctx context.Context, bookingID string, actor domain.Actor) error {
	now := s.Now.now()
	return s.Ledger.RunInTx(ctx, func(tx repositories.Ledger) error {
		b, err := tx.GetBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		return s.blockInTx(ctx, tx, b, actor, now)
	})
}

func (s PayoutService) blockInTx(ctx context.Context, tx repositories.Ledger, b models.Booking, actor domain.Actor, now time.Time) error {
	p, err := tx.GetPayoutByBooking(ctx, b.ID)
	if domain.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if p.Status != domain.PayoutPendingRelease {
		return nil
	}
	blocked := domain.PayoutBlockedDispute
	if _, err := tx.UpdatePayoutRecord(ctx, p.ID, domain.PayoutPendingRelease, models.PayoutPatch{Status: &blocked}); err != nil {
		if domain.IsConflict(err) {
			return nil
		}
		return err
	}
	return appendAudit(ctx, tx, b, domain.EventPayoutBlocked, actor, map[string]any{"payout_id": p.ID}, now)
}

// ReverseAndRefund claws back a released payout and only then refunds the
// customer charge. A failed reversal stops before any refund is issued.
// amountCents 0 refunds whatever has not been refunded yet.
func (s PayoutService) ReverseAndRefund(ctx context.Context, b models.Booking, amountCents int64, reason string, actor domain.Actor) (payments.Refund, error) {
	ctx, span := tracer.Start(ctx, "payout.ReverseAndRefund", trace.WithAttributes(
		attribute.String("booking_id", b.ID),
		attribute.Int64("amount_cents", amountCents),
	))
	defer span.End()

	now := s.Now.now()
	refundable := b.TotalCents - b.RefundedCents
	if amountCents < 0 || amountCents > refundable {
		return payments.Refund{}, spanFail(span, domain.ValidationError{
			Field: "amount_cents",
			Msg:   fmt.Sprintf("must be between 0 and %d", refundable),
		})
	}
	if b.ChargeID == "" && b.PaymentIntentID == "" {
		return payments.Refund{}, spanFail(span, domain.PreconditionError{Reason: domain.ReasonNoCharge, Msg: "nothing was charged"})
	}

	p, err := s.Ledger.GetPayoutByBooking(ctx, b.ID)
	switch {
	case domain.IsNotFound(err):
	case err != nil:
		return payments.Refund{}, spanFail(span, err)
	case p.Status == domain.PayoutReleased:
		if err := s.reverseReleased(ctx, b, p, amountCents, reason, actor, now); err != nil {
			return payments.Refund{}, spanFail(span, err)
		}
	case p.Status == domain.PayoutPendingRelease:
		if err := s.Ledger.RunInTx(ctx, func(tx repositories.Ledger) error {
			return s.blockInTx(ctx, tx, b, actor, now)
		}); err != nil {
			return payments.Refund{}, spanFail(span, err)
		}
	}

	amount := amountCents
	if amount == 0 {
		amount = refundable
	}
	refund, err := s.Processor.IssueRefund(ctx, payments.RefundRequest{
		PaymentIntentID: b.PaymentIntentID,
		ChargeID:        b.ChargeID,
		AmountCents:     amount,
		Reason:          reason,
		Metadata:        map[string]string{"booking_id": b.ID, "booking_number": b.BookingNumber},
		IdempotencyKey:  fmt.Sprintf("refund-%s-%d", b.ID, b.RefundedCents),
	})
	if err != nil {
		utils.LogWarn(ctx, "payout", "refund_failed", err, "booking_id", b.ID)
		return payments.Refund{}, spanFail(span, err)
	}
	if refund.AmountCents == 0 {
		refund.AmountCents = amount
	}
	return refund, nil
}

func (s PayoutService) reverseReleased(ctx context.Context, b models.Booking, p models.PayoutRecord, amountCents int64, reason string, actor domain.Actor, now time.Time) error {
	reverse := int64(0)
	reversed := p.AmountCents
	if amountCents > 0 && amountCents < p.AmountCents {
		reverse, reversed = amountCents, amountCents
	}
	if err := s.Processor.ReverseTransfer(ctx, payments.ReversalRequest{
		TransferID:     p.TransferID,
		AmountCents:    reverse,
		Metadata:       map[string]string{"booking_id": b.ID, "reason": reason},
		IdempotencyKey: "reversal-" + p.ID,
	}); err != nil {
		utils.LogWarn(ctx, "payout", "reversal_failed", err, "booking_id", b.ID, "transfer_id", p.TransferID)
		return err
	}
	return s.Ledger.RunInTx(ctx, func(tx repositories.Ledger) error {
		status := domain.PayoutReversed
		if _, err := tx.UpdatePayoutRecord(ctx, p.ID, domain.PayoutReleased, models.PayoutPatch{
			Status:        &status,
			ReversedAt:    &now,
			ReversedCents: &reversed,
		}); err != nil {
			return err
		}
		return appendAudit(ctx, tx, b, domain.EventPayoutReversed, actor, map[string]any{
			"payout_id":      p.ID,
			"transfer_id":    p.TransferID,
			"reversed_cents": reversed,
		}, now)
	})
}

// GetProviderEarnings aggregates payouts by status. Read-only.
func (s PayoutService) GetProviderEarnings(ctx context.Context, providerID string, from, to *time.Time) (models.ProviderEarnings, error) {
	if providerID == "" {
		return models.ProviderEarnings{}, domain.ValidationError{Field: "provider_id", Msg: "is required"}
	}
	if from != nil && to != nil && !from.Before(*to) {
		return models.ProviderEarnings{}, domain.ValidationError{Field: "from", Msg: "must be before to"}
	}
	if _, err := s.Ledger.GetProvider(ctx, providerID); err != nil {
		return models.ProviderEarnings{}, err
	}
	rows, err := s.Ledger.SummarizeProviderPayouts(ctx, providerID, from, to)
	if err != nil {
		return models.ProviderEarnings{}, err
	}
	out := models.ProviderEarnings{ProviderID: providerID, From: from, To: to}
	for _, r := range rows {
		bucket := models.EarningsBucket{Count: r.Count, AmountCents: r.AmountCents}
		switch r.Status {
		case domain.PayoutReleased:
			out.Released = bucket
		case domain.PayoutPendingRelease:
			out.Pending = bucket
		case domain.PayoutBlockedDispute:
			out.Blocked = bucket
		}
	}
	return out, nil
}

func transferGroup(bookingID string) string {
	return "booking_" + bookingID
}
