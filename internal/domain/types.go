package domain

// Status is the lifecycle status of a booking.
type Status string

const (
	StatusPendingPayment   Status = "PENDING_PAYMENT"
	StatusConfirmed        Status = "CONFIRMED"
	StatusProviderAssigned Status = "PROVIDER_ASSIGNED"
	StatusInProgress       Status = "IN_PROGRESS"
	StatusCompleted        Status = "COMPLETED"
	StatusDisputed         Status = "DISPUTED"
	StatusRefunded         Status = "REFUNDED"
	StatusCancelled        Status = "CANCELLED"
)

// IsTerminal reports whether no transition may leave s.
func (s Status) IsTerminal() bool {
	return s == StatusRefunded || s == StatusCancelled
}

// PayoutStatus tracks a payout record through escrow.
type PayoutStatus string

const (
	PayoutPendingRelease PayoutStatus = "PENDING_RELEASE"
	PayoutReleased       PayoutStatus = "RELEASED"
	PayoutBlockedDispute PayoutStatus = "BLOCKED_DISPUTE"
	PayoutReversed       PayoutStatus = "REVERSED"
)

// ActorRole identifies which party triggered an operation.
type ActorRole string

const (
	RoleCustomer ActorRole = "CUSTOMER"
	RoleProvider ActorRole = "PROVIDER"
	RoleAdmin    ActorRole = "ADMIN"
	RoleSystem   ActorRole = "SYSTEM"
)

const (
	SystemCronActorID    = "system_cron"
	SystemWebhookActorID = "system_webhook"
	SystemPayoutActorID  = "system_payout"
)

// Actor carries the authenticated caller of an operation.
type Actor struct {
	ID   string    `json:"id"`
	Role ActorRole `json:"role"`
}

// IsStaff reports whether the actor may run admin-only transitions.
func (a Actor) IsStaff() bool {
	return a.Role == RoleAdmin || a.Role == RoleSystem
}

func SystemActor(id string) Actor {
	return Actor{ID: id, Role: RoleSystem}
}

// DisputeOutcome is the admin decision closing a dispute case.
type DisputeOutcome string

const (
	OutcomeCustomerFavored DisputeOutcome = "CUSTOMER_FAVORED"
	OutcomeProviderFavored DisputeOutcome = "PROVIDER_FAVORED"
)
