package repositories

import (
	"context"
	"database/sql"
	"time"

	"detailhub/internal/domain"
	"detailhub/internal/domain/models"
)

// Ledger is the durable record of bookings and the payout, dispute, event and
// webhook rows derived from them. Every status-changing update carries the
// status the caller read; a mismatch fails with domain.ConflictError.
type Ledger interface {
	GetBooking(ctx context.Context, id string) (models.Booking, error)
	GetBookingByPaymentIntent(ctx context.Context, intentID string) (models.Booking, error)
	CreateBooking(ctx context.Context, b models.Booking) (models.Booking, error)
	UpdateBooking(ctx context.Context, id string, expected domain.Status, patch models.BookingPatch) (models.Booking, error)
	FindBookingsDueForAutoRelease(ctx context.Context, now time.Time, limit int) ([]models.Booking, error)
	FindConfirmedWithPendingPayout(ctx context.Context, limit int) ([]models.Booking, error)

	AppendEvent(ctx context.Context, ev models.BookingEvent) error
	ListEvents(ctx context.Context, bookingID string) ([]models.BookingEvent, error)

	CreatePayoutRecord(ctx context.Context, p models.PayoutRecord) (models.PayoutRecord, error)
	GetPayoutByBooking(ctx context.Context, bookingID string) (models.PayoutRecord, error)
	UpdatePayoutRecord(ctx context.Context, id string, expected domain.PayoutStatus, patch models.PayoutPatch) (models.PayoutRecord, error)
	SummarizeProviderPayouts(ctx context.Context, providerID string, from, to *time.Time) ([]models.PayoutSummaryRow, error)

	CreateDisputeCase(ctx context.Context, d models.DisputeCase) (models.DisputeCase, error)
	GetOpenDisputeCase(ctx context.Context, bookingID string) (models.DisputeCase, error)
	ResolveDisputeCase(ctx context.Context, id, resolution, resolvedBy string, at time.Time) (models.DisputeCase, error)

	// RecordWebhookEvent inserts the event; inserted is false when the id
	// was already recorded.
	RecordWebhookEvent(ctx context.Context, ev models.WebhookEvent) (inserted bool, err error)
	MarkWebhookProcessed(ctx context.Context, id, processErr string, at time.Time) error

	GetProvider(ctx context.Context, id string) (models.Provider, error)
	IncrementProviderCompleted(ctx context.Context, id string) error
	UpdateProviderPayoutsEnabled(ctx context.Context, accountID string, enabled bool) error
	GetService(ctx context.Context, id string) (models.Service, error)

	// RunInTx runs fn against a ledger bound to one transaction. Calls made
	// on an already transactional ledger join the outer transaction.
	RunInTx(ctx context.Context, fn func(tx Ledger) error) error
}

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// MySQLLedger implements Ledger over database/sql with the MySQL driver.
// Money is stored as DECIMAL(12,2) and converted to cents at the boundary.
type MySQLLedger struct {
	DB  *sql.DB
	q   dbtx
	now func() time.Time
}

func NewMySQLLedger(db *sql.DB) *MySQLLedger {
	return &MySQLLedger{DB: db, q: db}
}

func (l *MySQLLedger) conn() dbtx {
	if l.q != nil {
		return l.q
	}
	return l.DB
}

func (l *MySQLLedger) clock() time.Time {
	if l.now != nil {
		return l.now().UTC()
	}
	return time.Now().UTC()
}

func (l *MySQLLedger) RunInTx(ctx context.Context, fn func(tx Ledger) error) error {
	if _, inTx := l.q.(*sql.Tx); inTx {
		return fn(l)
	}
	tx, err := l.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.InternalError{Msg: "begin transaction", Err: err}
	}
	txl := &MySQLLedger{DB: l.DB, q: tx, now: l.now}
	if err := fn(txl); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return domain.InternalError{Msg: "commit transaction", Err: err}
	}
	return nil
}
