package repositories

import (
	"context"
	"time"

	intdb "detailhub/internal/db"
	"detailhub/internal/domain"
	"detailhub/internal/domain/models"
)

// RecordWebhookEvent is the write-before-process step of webhook handling.
func (l *MySQLLedger) RecordWebhookEvent(ctx context.Context, ev models.WebhookEvent) (bool, error) {
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = l.clock()
	}
	_, err := l.conn().ExecContext(ctx, `
		INSERT INTO webhook_events (id, type, payload, received_at)
		VALUES (?, ?, ?, ?)`,
		ev.ID, ev.Type, []byte(ev.Payload), ev.ReceivedAt.UTC(),
	)
	if intdb.IsDuplicateKey(err) {
		return false, nil
	}
	if err != nil {
		return false, domain.InternalError{Msg: "record webhook event", Err: err}
	}
	return true, nil
}

func (l *MySQLLedger) MarkWebhookProcessed(ctx context.Context, id, processErr string, at time.Time) error {
	_, err := l.conn().ExecContext(ctx,
		`UPDATE webhook_events SET processed_at = ?, process_error = ? WHERE id = ?`,
		at.UTC(), intdb.NullIfEmpty(processErr), id,
	)
	if err != nil {
		return domain.InternalError{Msg: "mark webhook processed", Err: err}
	}
	return nil
}
