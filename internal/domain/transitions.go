package domain

// Transition names a booking state transition. The same value is written as
// the type of the BookingEvent that records it.
type Transition string

const (
	TransitionCreate          Transition = "BOOKING_CREATED"
	TransitionConfirmPayment  Transition = "PAYMENT_CONFIRMED"
	TransitionAssign          Transition = "ASSIGN_PROVIDER"
	TransitionArrive          Transition = "ARRIVE"
	TransitionComplete        Transition = "COMPLETE"
	TransitionCustomerConfirm Transition = "CUSTOMER_CONFIRM"
	TransitionAutoConfirm     Transition = "AUTO_CONFIRM"
	TransitionDispute         Transition = "DISPUTE"
	TransitionResolveDispute  Transition = "RESOLVE_DISPUTE"
	TransitionRefund          Transition = "REFUND"
	TransitionCancel          Transition = "CANCEL"
)

// Audit-only event types. They never change booking status.
const (
	EventPaymentIntentCreated   Transition = "PAYMENT_INTENT_CREATED"
	EventPaymentFailed          Transition = "PAYMENT_FAILED"
	EventPayoutReleased         Transition = "PAYOUT_RELEASED"
	EventPayoutBlocked          Transition = "PAYOUT_BLOCKED"
	EventPayoutReversed         Transition = "PAYOUT_REVERSED"
	EventChargeRefunded         Transition = "CHARGE_REFUNDED"
	EventProcessorDisputeOpened Transition = "PROCESSOR_DISPUTE_OPENED"
	EventProcessorDisputeClosed Transition = "PROCESSOR_DISPUTE_CLOSED"
)

var legalFrom = map[Transition][]Status{
	TransitionConfirmPayment:  {StatusPendingPayment},
	TransitionAssign:          {StatusConfirmed},
	TransitionArrive:          {StatusConfirmed, StatusProviderAssigned},
	TransitionComplete:        {StatusInProgress},
	TransitionCustomerConfirm: {StatusCompleted},
	TransitionAutoConfirm:     {StatusCompleted},
	TransitionDispute:         {StatusCompleted},
	TransitionResolveDispute:  {StatusDisputed},
	// PENDING_PAYMENT holds no charge; CANCEL closes it instead.
	TransitionRefund:          {StatusConfirmed, StatusProviderAssigned, StatusInProgress, StatusCompleted, StatusDisputed},
	TransitionCancel:          {StatusPendingPayment, StatusConfirmed, StatusProviderAssigned},
}

// CanTransition reports whether t may be applied to a booking currently in from.
func CanTransition(t Transition, from Status) bool {
	if from.IsTerminal() {
		return false
	}
	for _, s := range legalFrom[t] {
		if s == from {
			return true
		}
	}
	return false
}

// CheckTransition returns a StateTransitionError when t is illegal from current.
func CheckTransition(t Transition, current Status) error {
	if CanTransition(t, current) {
		return nil
	}
	return StateTransitionError{Transition: t, Current: current}
}
