package repositories

import (
	"context"
	"database/sql"
	"errors"

	"detailhub/internal/domain"
	"detailhub/internal/domain/models"
)

func (l *MySQLLedger) GetProvider(ctx context.Context, id string) (models.Provider, error) {
	var (
		p       models.Provider
		account sql.NullString
	)
	err := l.conn().QueryRowContext(ctx, `
		SELECT id, display_name, processor_account_id, payouts_enabled, completed_bookings
		FROM providers WHERE id = ? LIMIT 1`, id,
	).Scan(&p.ID, &p.DisplayName, &account, &p.PayoutsEnabled, &p.CompletedBookings)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Provider{}, domain.NotFoundError{Resource: "provider"}
	}
	if err != nil {
		return models.Provider{}, domain.InternalError{Msg: "load provider", Err: err}
	}
	p.ProcessorAccountID = account.String
	return p, nil
}

func (l *MySQLLedger) IncrementProviderCompleted(ctx context.Context, id string) error {
	res, err := l.conn().ExecContext(ctx,
		`UPDATE providers SET completed_bookings = completed_bookings + 1 WHERE id = ?`, id)
	if err != nil {
		return domain.InternalError{Msg: "increment provider counter", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFoundError{Resource: "provider"}
	}
	return nil
}

// UpdateProviderPayoutsEnabled mirrors the processor account capability flag.
func (l *MySQLLedger) UpdateProviderPayoutsEnabled(ctx context.Context, accountID string, enabled bool) error {
	res, err := l.conn().ExecContext(ctx,
		`UPDATE providers SET payouts_enabled = ? WHERE processor_account_id = ?`, enabled, accountID)
	if err != nil {
		return domain.InternalError{Msg: "update provider payouts flag", Err: err}
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	// MySQL reports 0 affected rows when the flag is unchanged.
	var count int
	if err := l.conn().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM providers WHERE processor_account_id = ?`, accountID,
	).Scan(&count); err != nil {
		return domain.InternalError{Msg: "load provider", Err: err}
	}
	if count == 0 {
		return domain.NotFoundError{Resource: "provider"}
	}
	return nil
}

func (l *MySQLLedger) GetService(ctx context.Context, id string) (models.Service, error) {
	var s models.Service
	err := l.conn().QueryRowContext(ctx,
		`SELECT id, name, active FROM services WHERE id = ? LIMIT 1`, id,
	).Scan(&s.ID, &s.Name, &s.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Service{}, domain.NotFoundError{Resource: "service"}
	}
	if err != nil {
		return models.Service{}, domain.InternalError{Msg: "load service", Err: err}
	}
	return s, nil
}
