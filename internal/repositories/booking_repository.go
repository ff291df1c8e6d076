package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	intdb "detailhub/internal/db"
	"detailhub/internal/domain"
	"detailhub/internal/domain/models"
	"detailhub/internal/utils"
)

var bookingColumns = []string{
	"id", "booking_number", "customer_id", "provider_id", "service_id",
	"base_amount", "add_ons_amount", "tax_amount", "tip_amount", "total_amount", "platform_fee", "currency",
	"scheduled_start", "scheduled_end", "service_address", "latitude", "longitude",
	"status", "payment_intent_id", "charge_id", "transfer_id", "refund_id", "refunded_amount",
	"actual_start_time", "actual_end_time", "provider_arrived_at", "provider_completed_at",
	"customer_confirmed_at", "auto_confirm_at", "dispute_opened_at", "dispute_resolved_at",
	"cancelled_at", "refunded_at", "provider_gross", "provider_net",
	"created_at", "updated_at",
}

func bookingSelect(alias string) string {
	cols := make([]string, len(bookingColumns))
	for i, c := range bookingColumns {
		if alias != "" {
			c = alias + "." + c
		}
		cols[i] = c
	}
	return strings.Join(cols, ", ")
}

func scanBooking(s rowScanner) (models.Booking, error) {
	var (
		b                                              models.Booking
		base, addOns, tax, tip, total, fee, refunded   string
		gross, net                                     string
		status                                         string
		intentID, chargeID, transferID, refundID       sql.NullString
		actualStart, actualEnd, arrived, completed     sql.NullTime
		confirmed, autoConfirm, disputeOpened, resolve sql.NullTime
		cancelled, refundedAt                          sql.NullTime
	)
	if err := s.Scan(
		&b.ID, &b.BookingNumber, &b.CustomerID, &b.ProviderID, &b.ServiceID,
		&base, &addOns, &tax, &tip, &total, &fee, &b.Currency,
		&b.ScheduledStart, &b.ScheduledEnd, &b.ServiceAddress, &b.Latitude, &b.Longitude,
		&status, &intentID, &chargeID, &transferID, &refundID, &refunded,
		&actualStart, &actualEnd, &arrived, &completed,
		&confirmed, &autoConfirm, &disputeOpened, &resolve,
		&cancelled, &refundedAt, &gross, &net,
		&b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		return models.Booking{}, err
	}

	amounts := []struct {
		raw string
		dst *int64
	}{
		{base, &b.BaseCents}, {addOns, &b.AddOnsCents}, {tax, &b.TaxCents}, {tip, &b.TipCents},
		{total, &b.TotalCents}, {fee, &b.PlatformFeeCents}, {refunded, &b.RefundedCents},
		{gross, &b.ProviderGrossCents}, {net, &b.ProviderNetCents},
	}
	for _, a := range amounts {
		cents, err := utils.ParseCents(a.raw)
		if err != nil {
			return models.Booking{}, fmt.Errorf("booking %s: %w", b.ID, err)
		}
		*a.dst = cents
	}

	b.Status = domain.Status(status)
	b.PaymentIntentID = intentID.String
	b.ChargeID = chargeID.String
	b.TransferID = transferID.String
	b.RefundID = refundID.String
	b.ActualStartTime = intdb.TimePtr(actualStart)
	b.ActualEndTime = intdb.TimePtr(actualEnd)
	b.ProviderArrivedAt = intdb.TimePtr(arrived)
	b.ProviderCompletedAt = intdb.TimePtr(completed)
	b.CustomerConfirmedAt = intdb.TimePtr(confirmed)
	b.AutoConfirmAt = intdb.TimePtr(autoConfirm)
	b.DisputeOpenedAt = intdb.TimePtr(disputeOpened)
	b.DisputeResolvedAt = intdb.TimePtr(resolve)
	b.CancelledAt = intdb.TimePtr(cancelled)
	b.RefundedAt = intdb.TimePtr(refundedAt)
	b.ScheduledStart = b.ScheduledStart.UTC()
	b.ScheduledEnd = b.ScheduledEnd.UTC()
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()
	return b, nil
}

func (l *MySQLLedger) GetBooking(ctx context.Context, id string) (models.Booking, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return models.Booking{}, domain.ValidationError{Field: "booking_id", Msg: "is required"}
	}
	row := l.conn().QueryRowContext(ctx, `SELECT `+bookingSelect("")+` FROM bookings WHERE id = ? LIMIT 1`, id)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Booking{}, domain.NotFoundError{Resource: "booking"}
	}
	if err != nil {
		return models.Booking{}, domain.InternalError{Msg: "load booking", Err: err}
	}
	return b, nil
}

func (l *MySQLLedger) GetBookingByPaymentIntent(ctx context.Context, intentID string) (models.Booking, error) {
	if strings.TrimSpace(intentID) == "" {
		return models.Booking{}, domain.NotFoundError{Resource: "booking"}
	}
	row := l.conn().QueryRowContext(ctx, `SELECT `+bookingSelect("")+` FROM bookings WHERE payment_intent_id = ? LIMIT 1`, intentID)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Booking{}, domain.NotFoundError{Resource: "booking"}
	}
	if err != nil {
		return models.Booking{}, domain.InternalError{Msg: "load booking by payment intent", Err: err}
	}
	return b, nil
}

func (l *MySQLLedger) CreateBooking(ctx context.Context, b models.Booking) (models.Booking, error) {
	now := l.clock()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = b.CreatedAt

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(bookingColumns)), ", ")
	query := `INSERT INTO bookings (` + bookingSelect("") + `) VALUES (` + placeholders + `)`
	_, err := l.conn().ExecContext(ctx, query,
		b.ID, b.BookingNumber, b.CustomerID, b.ProviderID, b.ServiceID,
		utils.FormatCents(b.BaseCents), utils.FormatCents(b.AddOnsCents), utils.FormatCents(b.TaxCents),
		utils.FormatCents(b.TipCents), utils.FormatCents(b.TotalCents), utils.FormatCents(b.PlatformFeeCents), b.Currency,
		b.ScheduledStart.UTC(), b.ScheduledEnd.UTC(), b.ServiceAddress, b.Latitude, b.Longitude,
		string(b.Status), intdb.NullIfEmpty(b.PaymentIntentID), intdb.NullIfEmpty(b.ChargeID),
		intdb.NullIfEmpty(b.TransferID), intdb.NullIfEmpty(b.RefundID), utils.FormatCents(b.RefundedCents),
		intdb.NullTime(b.ActualStartTime), intdb.NullTime(b.ActualEndTime), intdb.NullTime(b.ProviderArrivedAt),
		intdb.NullTime(b.ProviderCompletedAt), intdb.NullTime(b.CustomerConfirmedAt), intdb.NullTime(b.AutoConfirmAt),
		intdb.NullTime(b.DisputeOpenedAt), intdb.NullTime(b.DisputeResolvedAt), intdb.NullTime(b.CancelledAt),
		intdb.NullTime(b.RefundedAt), utils.FormatCents(b.ProviderGrossCents), utils.FormatCents(b.ProviderNetCents),
		b.CreatedAt, b.UpdatedAt,
	)
	if intdb.IsDuplicateKey(err) {
		return models.Booking{}, domain.ConflictError{Resource: "booking", Msg: "duplicate booking number", Err: err}
	}
	if err != nil {
		return models.Booking{}, domain.InternalError{Msg: "insert booking", Err: err}
	}
	return b, nil
}

// UpdateBooking applies patch only while the row is still in expected status.
// A patch that stamps CustomerConfirmedAt additionally requires the row to be
// unconfirmed, so two concurrent confirmations cannot both win.
func (l *MySQLLedger) UpdateBooking(ctx context.Context, id string, expected domain.Status, patch models.BookingPatch) (models.Booking, error) {
	now := l.clock()
	sets := []string{}
	args := []any{}
	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}

	if patch.Status != nil {
		add("status", string(*patch.Status))
	}
	if patch.ProviderID != nil {
		add("provider_id", *patch.ProviderID)
	}
	if patch.PaymentIntentID != nil {
		add("payment_intent_id", intdb.NullIfEmpty(*patch.PaymentIntentID))
	}
	if patch.ChargeID != nil {
		add("charge_id", intdb.NullIfEmpty(*patch.ChargeID))
	}
	if patch.TransferID != nil {
		add("transfer_id", intdb.NullIfEmpty(*patch.TransferID))
	}
	if patch.RefundID != nil {
		add("refund_id", intdb.NullIfEmpty(*patch.RefundID))
	}
	if patch.RefundedCents != nil {
		add("refunded_amount", utils.FormatCents(*patch.RefundedCents))
	}
	timeCols := []struct {
		col string
		v   *time.Time
	}{
		{"actual_start_time", patch.ActualStartTime},
		{"actual_end_time", patch.ActualEndTime},
		{"provider_arrived_at", patch.ProviderArrivedAt},
		{"provider_completed_at", patch.ProviderCompletedAt},
		{"customer_confirmed_at", patch.CustomerConfirmedAt},
		{"auto_confirm_at", patch.AutoConfirmAt},
		{"dispute_opened_at", patch.DisputeOpenedAt},
		{"dispute_resolved_at", patch.DisputeResolvedAt},
		{"cancelled_at", patch.CancelledAt},
		{"refunded_at", patch.RefundedAt},
	}
	for _, tc := range timeCols {
		if tc.v != nil {
			add(tc.col, tc.v.UTC())
		}
	}
	if patch.ProviderGrossCents != nil {
		add("provider_gross", utils.FormatCents(*patch.ProviderGrossCents))
	}
	if patch.ProviderNetCents != nil {
		add("provider_net", utils.FormatCents(*patch.ProviderNetCents))
	}
	add("updated_at", now)

	query := `UPDATE bookings SET ` + strings.Join(sets, ", ") + ` WHERE id = ? AND status = ?`
	args = append(args, id, string(expected))
	if patch.CustomerConfirmedAt != nil {
		query += ` AND customer_confirmed_at IS NULL`
	}

	res, err := l.conn().ExecContext(ctx, query, args...)
	if err != nil {
		return models.Booking{}, domain.InternalError{Msg: "update booking", Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return models.Booking{}, domain.InternalError{Msg: "update booking", Err: err}
	}
	if affected == 0 {
		return models.Booking{}, l.explainBookingMiss(ctx, id, expected)
	}
	return l.GetBooking(ctx, id)
}

func (l *MySQLLedger) explainBookingMiss(ctx context.Context, id string, expected domain.Status) error {
	var (
		status    string
		confirmed sql.NullTime
	)
	err := l.conn().QueryRowContext(ctx,
		`SELECT status, customer_confirmed_at FROM bookings WHERE id = ? LIMIT 1`, id,
	).Scan(&status, &confirmed)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NotFoundError{Resource: "booking"}
	}
	if err != nil {
		return domain.InternalError{Msg: "load booking status", Err: err}
	}
	if domain.Status(status) != expected {
		return domain.ConflictError{Resource: "booking", Msg: fmt.Sprintf("status is %s, expected %s", status, expected)}
	}
	if confirmed.Valid {
		return domain.ConflictError{Resource: "booking", Msg: "already confirmed"}
	}
	return domain.ConflictError{Resource: "booking", Msg: "row changed concurrently"}
}

func (l *MySQLLedger) FindBookingsDueForAutoRelease(ctx context.Context, now time.Time, limit int) ([]models.Booking, error) {
	if limit <= 0 {
		limit = 200
	}
	query := `SELECT ` + bookingSelect("") + ` FROM bookings
		WHERE status = ?
		  AND customer_confirmed_at IS NULL
		  AND auto_confirm_at IS NOT NULL
		  AND auto_confirm_at <= ?
		  AND dispute_opened_at IS NULL
		ORDER BY auto_confirm_at ASC
		LIMIT ?`
	return l.queryBookings(ctx, query, string(domain.StatusCompleted), now.UTC(), limit)
}

// FindConfirmedWithPendingPayout returns confirmed (or provider-favored)
// bookings whose payout release failed earlier and is still pending.
func (l *MySQLLedger) FindConfirmedWithPendingPayout(ctx context.Context, limit int) ([]models.Booking, error) {
	if limit <= 0 {
		limit = 200
	}
	query := `SELECT ` + bookingSelect("b") + ` FROM bookings b
		JOIN payout_records p ON p.booking_id = b.id
		WHERE b.status = ?
		  AND p.status = ?
		  AND (b.customer_confirmed_at IS NOT NULL OR b.dispute_resolved_at IS NOT NULL)
		ORDER BY b.updated_at ASC
		LIMIT ?`
	return l.queryBookings(ctx, query, string(domain.StatusCompleted), string(domain.PayoutPendingRelease), limit)
}

func (l *MySQLLedger) queryBookings(ctx context.Context, query string, args ...any) ([]models.Booking, error) {
	rows, err := l.conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.InternalError{Msg: "query bookings", Err: err}
	}
	defer rows.Close()

	out := []models.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, domain.InternalError{Msg: "scan booking", Err: err}
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.InternalError{Msg: "iterate bookings", Err: err}
	}
	return out, nil
}
