package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	intdb "detailhub/internal/db"
	"detailhub/internal/domain"
	"detailhub/internal/domain/models"
)

const disputeColumns = `id, booking_id, opened_by, opener_role, reason_code, description, evidence,
	resolution, resolved_by, resolved_at, created_at`

func scanDispute(s rowScanner) (models.DisputeCase, error) {
	var (
		d                      models.DisputeCase
		role                   string
		evidence               []byte
		resolution, resolvedBy sql.NullString
		resolvedAt             sql.NullTime
	)
	if err := s.Scan(&d.ID, &d.BookingID, &d.OpenedBy, &role, &d.ReasonCode, &d.Description, &evidence,
		&resolution, &resolvedBy, &resolvedAt, &d.CreatedAt); err != nil {
		return models.DisputeCase{}, err
	}
	d.OpenerRole = domain.ActorRole(role)
	if len(evidence) > 0 {
		d.Evidence = evidence
	}
	if resolution.Valid {
		d.Resolution = &resolution.String
	}
	if resolvedBy.Valid {
		d.ResolvedBy = &resolvedBy.String
	}
	d.ResolvedAt = intdb.TimePtr(resolvedAt)
	d.CreatedAt = d.CreatedAt.UTC()
	return d, nil
}

// CreateDisputeCase inserts an open case. The generated open_booking_id
// column is unique, so a second open case on a booking is rejected.
func (l *MySQLLedger) CreateDisputeCase(ctx context.Context, d models.DisputeCase) (models.DisputeCase, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = l.clock()
	}
	var evidence any
	if len(d.Evidence) > 0 {
		evidence = []byte(d.Evidence)
	}
	_, err := l.conn().ExecContext(ctx, `
		INSERT INTO dispute_cases (id, booking_id, opened_by, opener_role, reason_code, description, evidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.BookingID, d.OpenedBy, string(d.OpenerRole), d.ReasonCode, d.Description, evidence, d.CreatedAt.UTC(),
	)
	if intdb.IsDuplicateKey(err) {
		return models.DisputeCase{}, domain.ConflictError{Resource: "dispute", Msg: "booking already has an open dispute", Err: err}
	}
	if err != nil {
		return models.DisputeCase{}, domain.InternalError{Msg: "insert dispute case", Err: err}
	}
	return d, nil
}

func (l *MySQLLedger) GetOpenDisputeCase(ctx context.Context, bookingID string) (models.DisputeCase, error) {
	row := l.conn().QueryRowContext(ctx,
		`SELECT `+disputeColumns+` FROM dispute_cases WHERE booking_id = ? AND resolution IS NULL LIMIT 1`, bookingID)
	d, err := scanDispute(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DisputeCase{}, domain.NotFoundError{Resource: "dispute"}
	}
	if err != nil {
		return models.DisputeCase{}, domain.InternalError{Msg: "load dispute case", Err: err}
	}
	return d, nil
}

func (l *MySQLLedger) ResolveDisputeCase(ctx context.Context, id, resolution, resolvedBy string, at time.Time) (models.DisputeCase, error) {
	res, err := l.conn().ExecContext(ctx, `
		UPDATE dispute_cases SET resolution = ?, resolved_by = ?, resolved_at = ?
		WHERE id = ? AND resolution IS NULL`,
		resolution, resolvedBy, at.UTC(), id,
	)
	if err != nil {
		return models.DisputeCase{}, domain.InternalError{Msg: "resolve dispute case", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.DisputeCase{}, domain.ConflictError{Resource: "dispute", Msg: "case already resolved or missing"}
	}
	row := l.conn().QueryRowContext(ctx, `SELECT `+disputeColumns+` FROM dispute_cases WHERE id = ? LIMIT 1`, id)
	d, err := scanDispute(row)
	if err != nil {
		return models.DisputeCase{}, domain.InternalError{Msg: "load dispute case", Err: err}
	}
	return d, nil
}
