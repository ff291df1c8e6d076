package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	intdb "detailhub/internal/db"
	"detailhub/internal/domain"
	"detailhub/internal/domain/models"
	"detailhub/internal/utils"
)

const payoutColumns = `id, booking_id, provider_id, amount, platform_fee, currency, status, scheduled_for,
	transfer_id, released_at, reversed_at, reversed_amount, created_at, updated_at`

func scanPayout(s rowScanner) (models.PayoutRecord, error) {
	var (
		p                             models.PayoutRecord
		amount, fee, reversed, status string
		transferID                    sql.NullString
		releasedAt, reversedAt        sql.NullTime
	)
	if err := s.Scan(&p.ID, &p.BookingID, &p.ProviderID, &amount, &fee, &p.Currency, &status, &p.ScheduledFor,
		&transferID, &releasedAt, &reversedAt, &reversed, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return models.PayoutRecord{}, err
	}
	var err error
	if p.AmountCents, err = utils.ParseCents(amount); err != nil {
		return models.PayoutRecord{}, err
	}
	if p.PlatformFeeCents, err = utils.ParseCents(fee); err != nil {
		return models.PayoutRecord{}, err
	}
	if p.ReversedCents, err = utils.ParseCents(reversed); err != nil {
		return models.PayoutRecord{}, err
	}
	p.Status = domain.PayoutStatus(status)
	p.TransferID = transferID.String
	p.ReleasedAt = intdb.TimePtr(releasedAt)
	p.ReversedAt = intdb.TimePtr(reversedAt)
	p.ScheduledFor = p.ScheduledFor.UTC()
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

// CreatePayoutRecord inserts the single payout row of a booking. The unique
// booking_id key rejects a second record.
func (l *MySQLLedger) CreatePayoutRecord(ctx context.Context, p models.PayoutRecord) (models.PayoutRecord, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := l.clock()
	p.CreatedAt, p.UpdatedAt = now, now
	_, err := l.conn().ExecContext(ctx, `
		INSERT INTO payout_records (`+payoutColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.BookingID, p.ProviderID, utils.FormatCents(p.AmountCents), utils.FormatCents(p.PlatformFeeCents),
		p.Currency, string(p.Status), p.ScheduledFor.UTC(), intdb.NullIfEmpty(p.TransferID),
		intdb.NullTime(p.ReleasedAt), intdb.NullTime(p.ReversedAt), utils.FormatCents(p.ReversedCents),
		p.CreatedAt, p.UpdatedAt,
	)
	if intdb.IsDuplicateKey(err) {
		return models.PayoutRecord{}, domain.ConflictError{Resource: "payout", Msg: "booking already has a payout record", Err: err}
	}
	if err != nil {
		return models.PayoutRecord{}, domain.InternalError{Msg: "insert payout record", Err: err}
	}
	return p, nil
}

func (l *MySQLLedger) GetPayoutByBooking(ctx context.Context, bookingID string) (models.PayoutRecord, error) {
	row := l.conn().QueryRowContext(ctx, `SELECT `+payoutColumns+` FROM payout_records WHERE booking_id = ? LIMIT 1`, bookingID)
	p, err := scanPayout(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PayoutRecord{}, domain.NotFoundError{Resource: "payout"}
	}
	if err != nil {
		return models.PayoutRecord{}, domain.InternalError{Msg: "load payout record", Err: err}
	}
	return p, nil
}

// UpdatePayoutRecord applies patch only while the record is in expected status.
func (l *MySQLLedger) UpdatePayoutRecord(ctx context.Context, id string, expected domain.PayoutStatus, patch models.PayoutPatch) (models.PayoutRecord, error) {
	sets := []string{}
	args := []any{}
	if patch.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*patch.Status))
	}
	if patch.TransferID != nil {
		sets = append(sets, "transfer_id = ?")
		args = append(args, intdb.NullIfEmpty(*patch.TransferID))
	}
	if patch.ReleasedAt != nil {
		sets = append(sets, "released_at = ?")
		args = append(args, patch.ReleasedAt.UTC())
	}
	if patch.ReversedAt != nil {
		sets = append(sets, "reversed_at = ?")
		args = append(args, patch.ReversedAt.UTC())
	}
	if patch.ReversedCents != nil {
		sets = append(sets, "reversed_amount = ?")
		args = append(args, utils.FormatCents(*patch.ReversedCents))
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, l.clock())
	args = append(args, id, string(expected))

	res, err := l.conn().ExecContext(ctx,
		`UPDATE payout_records SET `+strings.Join(sets, ", ")+` WHERE id = ? AND status = ?`, args...)
	if err != nil {
		return models.PayoutRecord{}, domain.InternalError{Msg: "update payout record", Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return models.PayoutRecord{}, domain.InternalError{Msg: "update payout record", Err: err}
	}

	row := l.conn().QueryRowContext(ctx, `SELECT `+payoutColumns+` FROM payout_records WHERE id = ? LIMIT 1`, id)
	p, err := scanPayout(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PayoutRecord{}, domain.NotFoundError{Resource: "payout"}
	}
	if err != nil {
		return models.PayoutRecord{}, domain.InternalError{Msg: "load payout record", Err: err}
	}
	if affected == 0 {
		return p, domain.ConflictError{Resource: "payout", Msg: fmt.Sprintf("status is %s, expected %s", p.Status, expected)}
	}
	return p, nil
}

// SummarizeProviderPayouts groups a provider's payouts by status, optionally
// limited to records created in [from, to).
func (l *MySQLLedger) SummarizeProviderPayouts(ctx context.Context, providerID string, from, to *time.Time) ([]models.PayoutSummaryRow, error) {
	query := `SELECT status, COUNT(*), COALESCE(SUM(amount), 0) FROM payout_records WHERE provider_id = ?`
	args := []any{providerID}
	if from != nil {
		query += ` AND created_at >= ?`
		args = append(args, from.UTC())
	}
	if to != nil {
		query += ` AND created_at < ?`
		args = append(args, to.UTC())
	}
	query += ` GROUP BY status`

	rows, err := l.conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.InternalError{Msg: "summarize payouts", Err: err}
	}
	defer rows.Close()

	out := []models.PayoutSummaryRow{}
	for rows.Next() {
		var (
			status, sum string
			count       int
		)
		if err := rows.Scan(&status, &count, &sum); err != nil {
			return nil, domain.InternalError{Msg: "scan payout summary", Err: err}
		}
		cents, err := utils.ParseCents(sum)
		if err != nil {
			return nil, domain.InternalError{Msg: "parse payout sum", Err: err}
		}
		out = append(out, models.PayoutSummaryRow{Status: domain.PayoutStatus(status), Count: count, AmountCents: cents})
	}
	if err := rows.Err(); err != nil {
		return nil, domain.InternalError{Msg: "iterate payout summary", Err: err}
	}
	return out, nil
}
