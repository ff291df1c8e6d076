package services

import (
	"time"

	"detailhub/internal/config"
	"detailhub/internal/utils"
)

// Policy holds the escrow and pricing knobs the state machine reads.
type Policy struct {
	Currency            string
	BookingNumberPrefix string
	PlatformFeeBps      int64
	AutoConfirmWindow   time.Duration
	DisputeWindow       time.Duration
	MinTransferCents    int64
	GeofenceRadiusMiles float64
	SweepPoolSize       int
	SweepBatchLimit     int
}

func DefaultPolicy() Policy {
	return Policy{
		Currency:            "usd",
		BookingNumberPrefix: "DTL",
		PlatformFeeBps:      850,
		AutoConfirmWindow:   72 * time.Hour,
		DisputeWindow:       48 * time.Hour,
		MinTransferCents:    50,
		GeofenceRadiusMiles: 0.5,
		SweepPoolSize:       4,
		SweepBatchLimit:     200,
	}
}

// PolicyFromEnv overlays configured values on the defaults.
func PolicyFromEnv(env config.Env) Policy {
	p := DefaultPolicy()
	if env.Currency != "" {
		p.Currency = env.Currency
	}
	if env.BookingNumberPrefix != "" {
		p.BookingNumberPrefix = env.BookingNumberPrefix
	}
	if env.PlatformFeeBps > 0 {
		p.PlatformFeeBps = env.PlatformFeeBps
	}
	if env.AutoConfirmWindow > 0 {
		p.AutoConfirmWindow = env.AutoConfirmWindow
	}
	if env.DisputeWindow > 0 {
		p.DisputeWindow = env.DisputeWindow
	}
	if env.MinTransferCents > 0 {
		p.MinTransferCents = env.MinTransferCents
	}
	if env.GeofenceRadiusMiles > 0 {
		p.GeofenceRadiusMiles = env.GeofenceRadiusMiles
	}
	if env.SweepPoolSize > 0 {
		p.SweepPoolSize = env.SweepPoolSize
	}
	if env.SweepBatchLimit > 0 {
		p.SweepBatchLimit = env.SweepBatchLimit
	}
	return p
}

// Clock returns the current time. A nil Clock means utils.NowUTC.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return utils.NowUTC()
	}
	return c().UTC()
}
