package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"detailhub/internal/domain"
	"detailhub/internal/domain/models"
	"detailhub/internal/events"
	"detailhub/internal/payments"
	"detailhub/internal/repositories"
	"detailhub/internal/utils"
)

const bookingNumberAttempts = 3

// BookingService is the booking state machine. Each operation reads the
// booking fresh, checks the caller, checks the transition and commits the
// status change together with its audit event.
type BookingService struct {
	Ledger    repositories.Ledger
	Processor payments.Processor
	Payouts   PayoutService
	Events    events.Publisher
	Policy    Policy
	Now       Clock
}

type CreateBookingInput struct {
	CustomerID       string    `json:"customer_id" validate:"required,max=64"`
	ProviderID       string    `json:"provider_id" validate:"required,max=64"`
	ServiceID        string    `json:"service_id" validate:"required,max=64"`
	BaseCents        int64     `json:"base_cents" validate:"gt=0"`
	AddOnsCents      int64     `json:"add_ons_cents" validate:"gte=0"`
	TaxCents         int64     `json:"tax_cents" validate:"gte=0"`
	TipCents         int64     `json:"tip_cents" validate:"gte=0"`
	TotalCents       int64     `json:"total_cents" validate:"gte=0"`
	PlatformFeeCents *int64    `json:"platform_fee_cents" validate:"omitempty,gte=0"`
	Currency         string    `json:"currency" validate:"omitempty,len=3"`
	ScheduledStart   time.Time `json:"scheduled_start" validate:"required"`
	ScheduledEnd     time.Time `json:"scheduled_end" validate:"required,gtfield=ScheduledStart"`
	ServiceAddress   string    `json:"service_address" validate:"required,max=512"`
	Latitude         float64   `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude        float64   `json:"longitude" validate:"gte=-180,lte=180"`
}

type CreateBookingResult struct {
	Booking      models.Booking `json:"booking"`
	ClientSecret string         `json:"client_secret,omitempty"`
	PaymentError string         `json:"payment_error,omitempty"`
}

// ConfirmResult reports a confirmation and the best-effort payout release
// that followed it.
type ConfirmResult struct {
	Booking     models.Booking       `json:"booking"`
	Payout      *models.PayoutRecord `json:"payout,omitempty"`
	PayoutError string               `json:"payout_error,omitempty"`
}

type Location struct {
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
}

// Create stores a PENDING_PAYMENT booking and then asks the processor for a
// payment intent. Intent failure is reported but never rolls the booking back.
func (s BookingService) Create(ctx context.Context, actor domain.Actor, in CreateBookingInput) (CreateBookingResult, error) {
	if actor.Role == domain.RoleCustomer && strings.TrimSpace(in.CustomerID) == "" {
		in.CustomerID = actor.ID
	}
	in.CustomerID = strings.TrimSpace(in.CustomerID)
	in.ProviderID = strings.TrimSpace(in.ProviderID)
	in.ServiceID = strings.TrimSpace(in.ServiceID)
	in.ServiceAddress = utils.NormalizeSpace(in.ServiceAddress)
	if err := validate.Struct(in); err != nil {
		return CreateBookingResult{}, validationError(err)
	}
	if !actor.IsStaff() && !(actor.Role == domain.RoleCustomer && actor.ID == in.CustomerID) {
		return CreateBookingResult{}, domain.AuthorizationError{Action: "create booking", Msg: "customers can only book for themselves"}
	}

	lineItems := in.BaseCents + in.AddOnsCents + in.TaxCents + in.TipCents
	total := in.TotalCents
	if total == 0 {
		total = lineItems
	}
	if utils.AbsDiff(total, lineItems) > 1 {
		return CreateBookingResult{}, domain.ValidationError{
			Field: "total_cents",
			Msg:   fmt.Sprintf("%d does not match line items %d", total, lineItems),
		}
	}
	// An omitted fee takes the policy rate; an explicit zero is honored.
	fee := utils.BasisPointsOf(total, s.Policy.PlatformFeeBps)
	if in.PlatformFeeCents != nil {
		fee = *in.PlatformFeeCents
	}
	if fee > total {
		return CreateBookingResult{}, domain.ValidationError{Field: "platform_fee_cents", Msg: "exceeds total"}
	}

	svc, err := s.Ledger.GetService(ctx, in.ServiceID)
	if err != nil {
		return CreateBookingResult{}, err
	}
	if !svc.Active {
		return CreateBookingResult{}, domain.ValidationError{Field: "service_id", Msg: "service is not bookable"}
	}
	if _, err := s.Ledger.GetProvider(ctx, in.ProviderID); err != nil {
		return CreateBookingResult{}, err
	}

	currency := strings.ToLower(in.Currency)
	if currency == "" {
		currency = s.Policy.Currency
	}
	now := s.Now.now()
	b := models.Booking{
		ID:               uuid.NewString(),
		CustomerID:       in.CustomerID,
		ProviderID:       in.ProviderID,
		ServiceID:        in.ServiceID,
		BaseCents:        in.BaseCents,
		AddOnsCents:      in.AddOnsCents,
		TaxCents:         in.TaxCents,
		TipCents:         in.TipCents,
		TotalCents:       total,
		PlatformFeeCents: fee,
		Currency:         currency,
		ScheduledStart:   in.ScheduledStart.UTC(),
		ScheduledEnd:     in.ScheduledEnd.UTC(),
		ServiceAddress:   in.ServiceAddress,
		Latitude:         in.Latitude,
		Longitude:        in.Longitude,
		Status:           domain.StatusPendingPayment,
		CreatedAt:        now,
	}

	// Number collisions are practically impossible; the unique key is the backstop.
	for attempt := 1; ; attempt++ {
		b.BookingNumber = utils.BookingNumber(s.Policy.BookingNumberPrefix, now)
		err = s.Ledger.RunInTx(ctx, func(tx repositories.Ledger) error {
			created, err := tx.CreateBooking(ctx, b)
			if err != nil {
				return err
			}
			b = created
			return tx.AppendEvent(ctx, models.BookingEvent{
				BookingID: b.ID,
				Type:      domain.TransitionCreate,
				ToStatus:  domain.StatusPendingPayment,
				ActorID:   actor.ID,
				ActorRole: actor.Role,
				Metadata:  map[string]any{"booking_number": b.BookingNumber, "total_cents": b.TotalCents},
				CreatedAt: now,
			})
		})
		if err == nil {
			break
		}
		if !domain.IsConflict(err) || attempt == bookingNumberAttempts {
			return CreateBookingResult{}, err
		}
	}

	utils.LogEvent(ctx, "booking", "create", "booking created", "booking_id", b.ID, "booking_number", b.BookingNumber)
	emit(ctx, s.Events, events.BookingCreated, b, map[string]any{
		"booking_number":  b.BookingNumber,
		"total_cents":     b.TotalCents,
		"scheduled_start": b.ScheduledStart,
	}, now)

	res := CreateBookingResult{Booking: b}
	intent, err := s.Processor.CreatePaymentIntent(ctx, payments.PaymentIntentRequest{
		AmountCents: b.TotalCents,
		Currency:    b.Currency,
		Metadata: map[string]string{
			"booking_id":     b.ID,
			"booking_number": b.BookingNumber,
			"customer_id":    b.CustomerID,
			"provider_id":    b.ProviderID,
		},
		TransferGroup:  transferGroup(b.ID),
		IdempotencyKey: "pi-" + b.ID,
	})
	if err != nil {
		utils.LogWarn(ctx, "booking", "payment_intent_failed", err, "booking_id", b.ID)
		res.PaymentError = err.Error()
		return res, nil
	}
	res.ClientSecret = intent.ClientSecret

	err = s.Ledger.RunInTx(ctx, func(tx repositories.Ledger) error {
		updated, err := tx.UpdateBooking(ctx, b.ID, domain.StatusPendingPayment, models.BookingPatch{PaymentIntentID: &intent.ID})
		if err != nil {
			return err
		}
		res.Booking = updated
		return appendAudit(ctx, tx, updated, domain.EventPaymentIntentCreated, actor, map[string]any{"payment_intent_id": intent.ID}, now)
	})
	if err != nil {
		utils.LogWarn(ctx, "booking", "store_payment_intent_failed", err, "booking_id", b.ID, "payment_intent_id", intent.ID)
		res.PaymentError = err.Error()
	}
	return res, nil
}

// Get returns the booking projection to its parties and staff.
func (s BookingService) Get(ctx context.Context, actor domain.Actor, bookingID string) (models.Booking, error) {
	b, err := s.Ledger.GetBooking(ctx, bookingID)
	if err != nil {
		return models.Booking{}, err
	}
	if !actor.IsStaff() && !isParty(actor, b) {
		return models.Booking{}, domain.AuthorizationError{Action: "view booking"}
	}
	return b, nil
}

// History returns the audit log of a booking in order.
func (s BookingService) History(ctx context.Context, actor domain.Actor, bookingID string) ([]models.BookingEvent, error) {
	if _, err := s.Get(ctx, actor, bookingID); err != nil {
		return nil, err
	}
	return s.Ledger.ListEvents(ctx, bookingID)
}

// ConfirmPayment applies PAYMENT_CONFIRMED when the processor reports the
// intent succeeded. A booking already past PENDING_PAYMENT with the same
// intent is left as is.
func (s BookingService) ConfirmPayment(ctx context.Context, bookingID, intentID, chargeID string) (models.Booking, error) {
	b, err := s.findForPayment(ctx, bookingID, intentID)
	if err != nil {
		return models.Booking{}, err
	}
	if b.Status != domain.StatusPendingPayment && (intentID == "" || b.PaymentIntentID == intentID) {
		return b, nil
	}
	patch := models.BookingPatch{ChargeID: &chargeID}
	if intentID != "" {
		patch.PaymentIntentID = &intentID
	}
	now := s.Now.now()
	updated, err := commitTransition(ctx, s.Ledger, transitionStep{
		booking:    b,
		transition: domain.TransitionConfirmPayment,
		to:         domain.StatusConfirmed,
		actor:      domain.SystemActor(domain.SystemWebhookActorID),
		patch:      patch,
		metadata:   map[string]any{"payment_intent_id": intentID, "charge_id": chargeID},
	}, now)
	if err != nil {
		return models.Booking{}, err
	}
	emit(ctx, s.Events, events.BookingPaid, updated, map[string]any{"total_cents": updated.TotalCents}, now)
	return updated, nil
}

// RecordPaymentFailure appends a PAYMENT_FAILED audit event; status is unchanged.
func (s BookingService) RecordPaymentFailure(ctx context.Context, bookingID, intentID, reason string) error {
	b, err := s.findForPayment(ctx, bookingID, intentID)
	if err != nil {
		return err
	}
	return appendAudit(ctx, s.Ledger, b, domain.EventPaymentFailed, domain.SystemActor(domain.SystemWebhookActorID),
		map[string]any{"payment_intent_id": intentID, "reason": reason}, s.Now.now())
}

func (s BookingService) findForPayment(ctx context.Context, bookingID, intentID string) (models.Booking, error) {
	if bookingID != "" {
		return s.Ledger.GetBooking(ctx, bookingID)
	}
	return s.Ledger.GetBookingByPaymentIntent(ctx, intentID)
}

// AssignProvider moves a paid booking to PROVIDER_ASSIGNED. The booked
// provider may accept it; staff may also reassign to another provider.
func (s BookingService) AssignProvider(ctx context.Context, actor domain.Actor, bookingID, providerID string) (models.Booking, error) {
	b, err := s.Ledger.GetBooking(ctx, bookingID)
	if err != nil {
		return models.Booking{}, err
	}
	providerID = strings.TrimSpace(providerID)
	if providerID == "" {
		providerID = b.ProviderID
	}
	if !actor.IsStaff() {
		if err := requireProvider(actor, b, "accept booking"); err != nil {
			return models.Booking{}, err
		}
		if providerID != b.ProviderID {
			return models.Booking{}, domain.AuthorizationError{Action: "reassign booking"}
		}
	}
	if _, err := s.Ledger.GetProvider(ctx, providerID); err != nil {
		return models.Booking{}, err
	}

	now := s.Now.now()
	updated, err := commitTransition(ctx, s.Ledger, transitionStep{
		booking:    b,
		transition: domain.TransitionAssign,
		to:         domain.StatusProviderAssigned,
		actor:      actor,
		patch:      models.BookingPatch{ProviderID: &providerID},
		metadata:   map[string]any{"provider_id": providerID, "previous_provider_id": b.ProviderID},
	}, now)
	if err != nil {
		return models.Booking{}, err
	}
	emit(ctx, s.Events, events.BookingAssigned, updated, nil, now)
	return updated, nil
}

// Arrive starts the service. The geofence check is advisory: a provider
// outside the radius is logged and noted on the event, never rejected.
func (s BookingService) Arrive(ctx context.Context, actor domain.Actor, bookingID string, at *Location) (models.Booking, error) {
	b, err := s.Ledger.GetBooking(ctx, bookingID)
	if err != nil {
		return models.Booking{}, err
	}
	if err := requireProvider(actor, b, "mark arrival"); err != nil {
		return models.Booking{}, err
	}
	if at != nil {
		if err := validate.Struct(at); err != nil {
			return models.Booking{}, validationError(err)
		}
	}

	meta := map[string]any{}
	if at != nil && (b.Latitude != 0 || b.Longitude != 0) {
		miles := utils.HaversineMiles(at.Latitude, at.Longitude, b.Latitude, b.Longitude)
		meta["distance_miles"] = miles
		if miles > s.Policy.GeofenceRadiusMiles {
			meta["outside_geofence"] = true
			utils.LogEvent(ctx, "booking", "geofence_miss", "provider arrived outside geofence",
				"booking_id", b.ID, "distance_miles", miles, "radius_miles", s.Policy.GeofenceRadiusMiles)
		}
	}

	now := s.Now.now()
	updated, err := commitTransition(ctx, s.Ledger, transitionStep{
		booking:    b,
		transition: domain.TransitionArrive,
		to:         domain.StatusInProgress,
		actor:      actor,
		patch:      models.BookingPatch{ProviderArrivedAt: &now, ActualStartTime: &now},
		metadata:   meta,
	}, now)
	if err != nil {
		return models.Booking{}, err
	}
	emit(ctx, s.Events, events.BookingStarted, updated, nil, now)
	return updated, nil
}

// Complete closes the service, fixes the provider split and opens escrow:
// the payout record is created PENDING_RELEASE and scheduled for autoConfirmAt.
func (s BookingService) Complete(ctx context.Context, actor domain.Actor, bookingID string) (models.Booking, error) {
	b, err := s.Ledger.GetBooking(ctx, bookingID)
	if err != nil {
		return models.Booking{}, err
	}
	if err := requireProvider(actor, b, "complete booking"); err != nil {
		return models.Booking{}, err
	}

	now := s.Now.now()
	autoConfirmAt := now.Add(s.Policy.AutoConfirmWindow)
	gross := b.TotalCents
	net := gross - b.PlatformFeeCents
	if net < 0 {
		return models.Booking{}, domain.InternalError{Msg: "platform fee exceeds booking total"}
	}

	updated, err := commitTransition(ctx, s.Ledger, transitionStep{
		booking:    b,
		transition: domain.TransitionComplete,
		to:         domain.StatusCompleted,
		actor:      actor,
		patch: models.BookingPatch{
			ProviderCompletedAt: &now,
			ActualEndTime:       &now,
			AutoConfirmAt:       &autoConfirmAt,
			ProviderGrossCents:  &gross,
			ProviderNetCents:    &net,
		},
		metadata: map[string]any{"provider_net_cents": net, "auto_confirm_at": autoConfirmAt},
		within: func(tx repositories.Ledger, updated models.Booking) error {
			if _, err := tx.CreatePayoutRecord(ctx, models.PayoutRecord{
				ID:               uuid.NewString(),
				BookingID:        updated.ID,
				ProviderID:       updated.ProviderID,
				AmountCents:      net,
				PlatformFeeCents: updated.PlatformFeeCents,
				Currency:         updated.Currency,
				Status:           domain.PayoutPendingRelease,
				ScheduledFor:     autoConfirmAt,
			}); err != nil {
				return err
			}
			return tx.IncrementProviderCompleted(ctx, updated.ProviderID)
		},
	}, now)
	if err != nil {
		return models.Booking{}, err
	}
	emit(ctx, s.Events, events.BookingCompleted, updated, map[string]any{
		"auto_confirm_at":    autoConfirmAt,
		"provider_net_cents": net,
	}, now)
	return updated, nil
}

// CustomerConfirm records the customer's sign-off and then tries to release
// the payout. A failed release is logged and left for the retry sweep.
func (s BookingService) CustomerConfirm(ctx context.Context, actor domain.Actor, bookingID string) (ConfirmResult, error) {
	b, err := s.Ledger.GetBooking(ctx, bookingID)
	if err != nil {
		return ConfirmResult{}, err
	}
	if err := requireCustomer(actor, b, "confirm booking"); err != nil {
		return ConfirmResult{}, err
	}
	return s.confirm(ctx, b, domain.TransitionCustomerConfirm, actor)
}

// AutoConfirm is CUSTOMER_CONFIRM on behalf of the customer once the escrow
// window has elapsed without a dispute.
func (s BookingService) AutoConfirm(ctx context.Context, bookingID string) (ConfirmResult, error) {
	b, err := s.Ledger.GetBooking(ctx, bookingID)
	if err != nil {
		return ConfirmResult{}, err
	}
	now := s.Now.now()
	if err := domain.CheckTransition(domain.TransitionAutoConfirm, b.Status); err != nil {
		return ConfirmResult{}, err
	}
	if b.AutoConfirmAt == nil || now.Before(*b.AutoConfirmAt) {
		return ConfirmResult{}, domain.PreconditionError{Reason: domain.ReasonAutoConfirmNotDue}
	}
	if b.DisputeOpenedAt != nil && b.DisputeResolvedAt == nil {
		return ConfirmResult{}, domain.PreconditionError{Reason: domain.ReasonDisputeOpen}
	}
	if _, err := s.Ledger.GetOpenDisputeCase(ctx, b.ID); err == nil {
		return ConfirmResult{}, domain.PreconditionError{Reason: domain.ReasonDisputeOpen}
	} else if !domain.IsNotFound(err) {
		return ConfirmResult{}, err
	}
	return s.confirm(ctx, b, domain.TransitionAutoConfirm, domain.SystemActor(domain.SystemCronActorID))
}

func (s BookingService) confirm(ctx context.Context, b models.Booking, t domain.Transition, actor domain.Actor) (ConfirmResult, error) {
	if b.Status == domain.StatusCompleted && b.CustomerConfirmedAt != nil {
		return ConfirmResult{}, domain.StateTransitionError{Transition: t, Current: b.Status, Reason: "already confirmed"}
	}
	now := s.Now.now()
	updated, err := commitTransition(ctx, s.Ledger, transitionStep{
		booking:    b,
		transition: t,
		to:         domain.StatusCompleted,
		actor:      actor,
		patch:      models.BookingPatch{CustomerConfirmedAt: &now},
	}, now)
	if err != nil {
		return ConfirmResult{}, err
	}
	emit(ctx, s.Events, events.BookingConfirmed, updated, map[string]any{"auto": t == domain.TransitionAutoConfirm}, now)

	res := ConfirmResult{Booking: updated}
	payout, err := s.Payouts.ReleasePayout(ctx, updated.ID, actor)
	if err != nil {
		utils.LogWarn(ctx, "booking", "payout_release_deferred", err, "booking_id", updated.ID)
		res.PayoutError = err.Error()
		return res, nil
	}
	res.Payout = &payout
	if fresh, err := s.Ledger.GetBooking(ctx, updated.ID); err == nil {
		res.Booking = fresh
	}
	emit(ctx, s.Events, events.PayoutReleased, res.Booking, map[string]any{"amount_cents": payout.AmountCents}, now)
	return res, nil
}

// Cancel ends a booking before service starts. When money was captured the
// refund is issued first; if it fails the booking keeps its status.
func (s BookingService) Cancel(ctx context.Context, actor domain.Actor, bookingID, reason string) (models.Booking, error) {
	b, err := s.Ledger.GetBooking(ctx, bookingID)
	if err != nil {
		return models.Booking{}, err
	}
	if !actor.IsStaff() {
		if err := requireCustomer(actor, b, "cancel booking"); err != nil {
			return models.Booking{}, err
		}
	}
	if err := domain.CheckTransition(domain.TransitionCancel, b.Status); err != nil {
		return models.Booking{}, err
	}

	now := s.Now.now()
	patch := models.BookingPatch{CancelledAt: &now}
	meta := map[string]any{"reason": reason}
	if b.ChargeID != "" {
		amount := b.TotalCents - b.RefundedCents
		refund, err := s.Processor.IssueRefund(ctx, payments.RefundRequest{
			PaymentIntentID: b.PaymentIntentID,
			ChargeID:        b.ChargeID,
			AmountCents:     amount,
			Reason:          "requested_by_customer",
			Metadata:        map[string]string{"booking_id": b.ID, "booking_number": b.BookingNumber},
			IdempotencyKey:  "cancel-refund-" + b.ID,
		})
		if err != nil {
			utils.LogWarn(ctx, "booking", "cancel_refund_failed", err, "booking_id", b.ID)
			return models.Booking{}, err
		}
		refunded := b.RefundedCents + amount
		patch.RefundID = &refund.ID
		patch.RefundedCents = &refunded
		patch.RefundedAt = &now
		meta["refund_id"] = refund.ID
		meta["refunded_cents"] = amount
	}

	updated, err := commitTransition(ctx, s.Ledger, transitionStep{
		booking:    b,
		transition: domain.TransitionCancel,
		to:         domain.StatusCancelled,
		actor:      actor,
		patch:      patch,
		metadata:   meta,
	}, now)
	if err != nil {
		return models.Booking{}, err
	}
	emit(ctx, s.Events, events.BookingCancelled, updated, map[string]any{"reason": reason}, now)
	return updated, nil
}

type RefundInput struct {
	AmountCents int64  `json:"amount_cents" validate:"gte=0"`
	Reason      string `json:"reason" validate:"max=255"`
}

// Refund is the admin REFUND transition: reverse a released payout (or block
// a pending one), refund the customer, then mark the booking REFUNDED.
func (s BookingService) Refund(ctx context.Context, actor domain.Actor, bookingID string, in RefundInput) (models.Booking, error) {
	if err := requireStaff(actor, "refund booking"); err != nil {
		return models.Booking{}, err
	}
	if err := validate.Struct(in); err != nil {
		return models.Booking{}, validationError(err)
	}
	b, err := s.Ledger.GetBooking(ctx, bookingID)
	if err != nil {
		return models.Booking{}, err
	}
	return s.refund(ctx, b, domain.TransitionRefund, actor, in, nil)
}

// refund runs the money movement then commits t to REFUNDED. extra runs in
// the commit transaction.
func (s BookingService) refund(ctx context.Context, b models.Booking, t domain.Transition, actor domain.Actor, in RefundInput, extra func(tx repositories.Ledger) error) (models.Booking, error) {
	if err := domain.CheckTransition(t, b.Status); err != nil {
		return models.Booking{}, err
	}
	refund, err := s.Payouts.ReverseAndRefund(ctx, b, in.AmountCents, in.Reason, actor)
	if err != nil {
		return models.Booking{}, err
	}

	now := s.Now.now()
	refunded := b.RefundedCents + refund.AmountCents
	updated, err := commitTransition(ctx, s.Ledger, transitionStep{
		booking:    b,
		transition: t,
		to:         domain.StatusRefunded,
		actor:      actor,
		patch: models.BookingPatch{
			RefundID:      &refund.ID,
			RefundedCents: &refunded,
			RefundedAt:    &now,
		},
		metadata: map[string]any{"refund_id": refund.ID, "refunded_cents": refund.AmountCents, "reason": in.Reason},
		within: func(tx repositories.Ledger, _ models.Booking) error {
			if extra != nil {
				return extra(tx)
			}
			return nil
		},
	}, now)
	if err != nil {
		utils.LogError(ctx, "booking", "refund_commit_failed", err, "booking_id", b.ID, "refund_id", refund.ID)
		return models.Booking{}, err
	}
	emit(ctx, s.Events, events.BookingRefunded, updated, map[string]any{"refunded_cents": refund.AmountCents}, now)
	return updated, nil
}
