package repositories

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"detailhub/internal/domain"
	"detailhub/internal/domain/models"
)

// AppendEvent writes one immutable audit row. Rows are never updated.
func (l *MySQLLedger) AppendEvent(ctx context.Context, ev models.BookingEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = l.clock()
	}
	var meta any
	if len(ev.Metadata) > 0 {
		raw, err := json.Marshal(ev.Metadata)
		if err != nil {
			return domain.ValidationError{Field: "metadata", Msg: "not serializable", Err: err}
		}
		meta = raw
	}
	_, err := l.conn().ExecContext(ctx, `
		INSERT INTO booking_events (id, booking_id, type, from_status, to_status, actor_id, actor_role, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.BookingID, string(ev.Type), string(ev.FromStatus), string(ev.ToStatus),
		ev.ActorID, string(ev.ActorRole), meta, ev.CreatedAt.UTC(),
	)
	if err != nil {
		return domain.InternalError{Msg: "append booking event", Err: err}
	}
	return nil
}

// ListEvents returns the audit log of a booking in write order.
func (l *MySQLLedger) ListEvents(ctx context.Context, bookingID string) ([]models.BookingEvent, error) {
	rows, err := l.conn().QueryContext(ctx, `
		SELECT id, booking_id, type, from_status, to_status, actor_id, actor_role, metadata, created_at
		FROM booking_events
		WHERE booking_id = ?
		ORDER BY seq ASC`, bookingID)
	if err != nil {
		return nil, domain.InternalError{Msg: "list booking events", Err: err}
	}
	defer rows.Close()

	out := []models.BookingEvent{}
	for rows.Next() {
		var (
			ev                       models.BookingEvent
			typ, from, to, actorRole string
			meta                     []byte
		)
		if err := rows.Scan(&ev.ID, &ev.BookingID, &typ, &from, &to, &ev.ActorID, &actorRole, &meta, &ev.CreatedAt); err != nil {
			return nil, domain.InternalError{Msg: "scan booking event", Err: err}
		}
		ev.Type = domain.Transition(typ)
		ev.FromStatus = domain.Status(from)
		ev.ToStatus = domain.Status(to)
		ev.ActorRole = domain.ActorRole(actorRole)
		ev.CreatedAt = ev.CreatedAt.UTC()
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &ev.Metadata); err != nil {
				return nil, domain.InternalError{Msg: "decode event metadata", Err: err}
			}
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.InternalError{Msg: "iterate booking events", Err: err}
	}
	return out, nil
}
