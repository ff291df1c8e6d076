package services

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"detailhub/internal/domain"
	"detailhub/internal/domain/models"
	"detailhub/internal/events"
	"detailhub/internal/repositories"
	"detailhub/internal/utils"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

func validationError(err error) error {
	var ves validator.ValidationErrors
	if errors.As(err, &ves) && len(ves) > 0 {
		fe := ves[0]
		return domain.ValidationError{Field: fe.Field(), Msg: "failed " + fe.Tag() + " check", Err: err}
	}
	return domain.ValidationError{Msg: err.Error(), Err: err}
}

// transitionStep describes one guarded status change of a booking read by
// the caller. The update, any extra writes and the audit event share one
// ledger transaction.
type transitionStep struct {
	booking    models.Booking
	transition domain.Transition
	to         domain.Status
	actor      domain.Actor
	patch      models.BookingPatch
	metadata   map[string]any
	within     func(tx repositories.Ledger, updated models.Booking) error
}

func commitTransition(ctx context.Context, ledger repositories.Ledger, step transitionStep, now time.Time) (models.Booking, error) {
	if err := domain.CheckTransition(step.transition, step.booking.Status); err != nil {
		return models.Booking{}, err
	}
	to := step.to
	step.patch.Status = &to

	var updated models.Booking
	err := ledger.RunInTx(ctx, func(tx repositories.Ledger) error {
		b, err := tx.UpdateBooking(ctx, step.booking.ID, step.booking.Status, step.patch)
		if err != nil {
			return err
		}
		if step.within != nil {
			if err := step.within(tx, b); err != nil {
				return err
			}
		}
		updated = b
		return tx.AppendEvent(ctx, models.BookingEvent{
			BookingID:  b.ID,
			Type:       step.transition,
			FromStatus: step.booking.Status,
			ToStatus:   to,
			ActorID:    step.actor.ID,
			ActorRole:  step.actor.Role,
			Metadata:   step.metadata,
			CreatedAt:  now,
		})
	})
	if err != nil {
		return models.Booking{}, lostRace(ctx, ledger, step.transition, step.booking.ID, err)
	}
	return updated, nil
}

// lostRace turns a booking conflict from the conditional update into the
// StateTransitionError the caller would have seen had it read the row later.
func lostRace(ctx context.Context, ledger repositories.Ledger, t domain.Transition, bookingID string, err error) error {
	var ce domain.ConflictError
	if !errors.As(err, &ce) || ce.Resource != "booking" {
		return err
	}
	current, getErr := ledger.GetBooking(ctx, bookingID)
	if getErr != nil {
		return getErr
	}
	return domain.StateTransitionError{Transition: t, Current: current.Status, Reason: ce.Msg, Err: err}
}

// appendAudit writes an event that does not change status.
func appendAudit(ctx context.Context, ledger repositories.Ledger, b models.Booking, t domain.Transition, actor domain.Actor, meta map[string]any, now time.Time) error {
	return ledger.AppendEvent(ctx, models.BookingEvent{
		BookingID:  b.ID,
		Type:       t,
		FromStatus: b.Status,
		ToStatus:   b.Status,
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Metadata:   meta,
		CreatedAt:  now,
	})
}

func emit(ctx context.Context, pub events.Publisher, name string, b models.Booking, data map[string]any, now time.Time) {
	if pub == nil {
		return
	}
	err := pub.Publish(ctx, events.Event{
		Name:       name,
		BookingID:  b.ID,
		CustomerID: b.CustomerID,
		ProviderID: b.ProviderID,
		Data:       data,
		OccurredAt: now,
	})
	if err != nil {
		utils.LogWarn(ctx, "events", "publish_failed", err, "event", name, "booking_id", b.ID)
	}
}

func isParty(actor domain.Actor, b models.Booking) bool {
	switch actor.Role {
	case domain.RoleCustomer:
		return actor.ID != "" && actor.ID == b.CustomerID
	case domain.RoleProvider:
		return actor.ID != "" && actor.ID == b.ProviderID
	}
	return false
}

func requireProvider(actor domain.Actor, b models.Booking, action string) error {
	if actor.Role != domain.RoleProvider || actor.ID == "" || actor.ID != b.ProviderID {
		return domain.AuthorizationError{Action: action, Msg: "caller is not the assigned provider"}
	}
	return nil
}

func requireCustomer(actor domain.Actor, b models.Booking, action string) error {
	if actor.Role != domain.RoleCustomer || actor.ID == "" || actor.ID != b.CustomerID {
		return domain.AuthorizationError{Action: action, Msg: "caller is not the booking customer"}
	}
	return nil
}

func requireStaff(actor domain.Actor, action string) error {
	if !actor.IsStaff() {
		return domain.AuthorizationError{Action: action, Msg: "admin or cron secret required"}
	}
	return nil
}
