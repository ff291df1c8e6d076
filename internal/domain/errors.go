package domain

import (
	"errors"
	"fmt"
)

type NotFoundError struct {
	Resource string
	Err      error
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e NotFoundError) Unwrap() error { return e.Err }

type ValidationError struct {
	Field string
	Msg   string
	Err   error
}

func (e ValidationError) Error() string {
	if e.Msg != "" && e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Msg)
	}
	if e.Msg != "" {
		return e.Msg
	}
	if e.Field != "" {
		return fmt.Sprintf("invalid %s", e.Field)
	}
	return "validation error"
}

func (e ValidationError) Unwrap() error { return e.Err }

// AuthorizationError means the caller is not the party entitled to act.
type AuthorizationError struct {
	Action string
	Msg    string
}

func (e AuthorizationError) Error() string {
	switch {
	case e.Action != "" && e.Msg != "":
		return fmt.Sprintf("not allowed to %s: %s", e.Action, e.Msg)
	case e.Action != "":
		return fmt.Sprintf("not allowed to %s", e.Action)
	case e.Msg != "":
		return e.Msg
	default:
		return "not allowed"
	}
}

type ConflictError struct {
	Resource string
	Msg      string
	Err      error
}

func (e ConflictError) Error() string {
	switch {
	case e.Msg != "" && e.Resource != "":
		return fmt.Sprintf("%s conflict: %s", e.Resource, e.Msg)
	case e.Msg != "":
		return e.Msg
	case e.Resource != "":
		return fmt.Sprintf("%s conflict", e.Resource)
	default:
		return "conflict"
	}
}

func (e ConflictError) Unwrap() error { return e.Err }

// StateTransitionError is returned whenever a transition is not legal from
// the booking's current status. It is never swallowed.
type StateTransitionError struct {
	Transition Transition
	Current    Status
	Reason     string
	Err        error
}

func (e StateTransitionError) Error() string {
	msg := fmt.Sprintf("illegal transition %s from status %s", e.Transition, e.Current)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e StateTransitionError) Unwrap() error { return e.Err }

// PaymentProcessorError wraps any failure from the external payment processor.
type PaymentProcessorError struct {
	Op         string
	Code       string
	HTTPStatus int
	Err        error
}

func (e PaymentProcessorError) Error() string {
	msg := "payment processor error"
	if e.Op != "" {
		msg = fmt.Sprintf("payment processor %s failed", e.Op)
	}
	if e.Code != "" {
		msg += " (" + e.Code + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e PaymentProcessorError) Unwrap() error { return e.Err }

// Precondition reasons for payout and dispute operations.
const (
	ReasonNotCompleted         = "booking_not_completed"
	ReasonNotConfirmed         = "not_confirmed"
	ReasonDisputeOpen          = "dispute_open"
	ReasonNoProcessorAccount   = "provider_account_missing"
	ReasonNoCharge             = "charge_missing"
	ReasonNoPendingPayout      = "no_pending_payout"
	ReasonBelowMinimum         = "below_minimum_transfer"
	ReasonDisputeWindowExpired = "dispute_window_expired"
	ReasonAutoConfirmNotDue    = "auto_confirm_not_due"
	ReasonDisputeResolved      = "dispute_already_resolved"
)

// PreconditionError is a business precondition failure (payout minimum,
// missing processor account, open dispute, expired window).
type PreconditionError struct {
	Reason string
	Msg    string
}

func (e PreconditionError) Error() string {
	if e.Msg == "" {
		return "precondition failed: " + e.Reason
	}
	return fmt.Sprintf("precondition failed: %s: %s", e.Reason, e.Msg)
}

type InternalError struct {
	Msg string
	Err error
}

func (e InternalError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return "internal error"
}

func (e InternalError) Unwrap() error { return e.Err }

func IsNotFound(err error) bool {
	var target NotFoundError
	return errors.As(err, &target)
}

func IsValidation(err error) bool {
	var target ValidationError
	return errors.As(err, &target)
}

func IsAuthorization(err error) bool {
	var target AuthorizationError
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target ConflictError
	return errors.As(err, &target)
}

func IsStateTransition(err error) bool {
	var target StateTransitionError
	return errors.As(err, &target)
}

func IsPaymentProcessor(err error) bool {
	var target PaymentProcessorError
	return errors.As(err, &target)
}

func IsPrecondition(err error) bool {
	var target PreconditionError
	return errors.As(err, &target)
}

// PreconditionReason returns the reason code of a PreconditionError, or "".
func PreconditionReason(err error) string {
	var target PreconditionError
	if errors.As(err, &target) {
		return target.Reason
	}
	return ""
}

func IsInternal(err error) bool {
	var target InternalError
	return errors.As(err, &target)
}
