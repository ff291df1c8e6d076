package events

import (
	"context"
	"time"

	"detailhub/internal/utils"
)

// LogPublisher writes events to the log. Used when no broker is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(ctx context.Context, ev Event) error {
	utils.LogEvent(ctx, "events", "publish", ev.Name, "booking_id", ev.BookingID)
	return nil
}

// Async delivers through Next on a separate goroutine so callers never block
// on the broker. Failures are logged and dropped.
type Async struct {
	Next    Publisher
	Timeout time.Duration
}

func (a Async) Publish(ctx context.Context, ev Event) error {
	if a.Next == nil {
		return nil
	}
	timeout := a.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	reqID := utils.RequestIDFrom(ctx)
	go func() {
		pubCtx, cancel := context.WithTimeout(utils.WithRequestID(context.Background(), reqID), timeout)
		defer cancel()
		if err := a.Next.Publish(pubCtx, ev); err != nil {
			utils.LogWarn(pubCtx, "events", "publish_failed", err, "event", ev.Name, "booking_id", ev.BookingID)
		}
	}()
	return nil
}
