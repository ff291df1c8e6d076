package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Env struct {
	AppAddr string `envconfig:"APP_ADDR" default:":8080"`
	GinMode string `envconfig:"GIN_MODE"`

	// Ledger
	LedgerDriver string `envconfig:"LEDGER_DRIVER" default:"mysql"`
	DBDSN        string `envconfig:"DB_DSN"`

	// Payment processor
	StripeSecretKey     string        `envconfig:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string        `envconfig:"STRIPE_WEBHOOK_SECRET"`
	ProcessorTimeout    time.Duration `envconfig:"PROCESSOR_TIMEOUT" default:"20s"`

	// Booking and escrow policy
	Currency            string        `envconfig:"CURRENCY" default:"usd"`
	BookingNumberPrefix string        `envconfig:"BOOKING_NUMBER_PREFIX" default:"DTL"`
	PlatformFeeBps      int64         `envconfig:"PLATFORM_FEE_BPS" default:"850"`
	AutoConfirmWindow   time.Duration `envconfig:"AUTO_CONFIRM_WINDOW" default:"72h"`
	DisputeWindow       time.Duration `envconfig:"DISPUTE_WINDOW" default:"48h"`
	MinTransferCents    int64         `envconfig:"MIN_TRANSFER_CENTS" default:"50"`
	GeofenceRadiusMiles float64       `envconfig:"GEOFENCE_RADIUS_MILES" default:"0.5"`

	// Auto-release sweep
	SweepPoolSize   int           `envconfig:"SWEEP_POOL_SIZE" default:"4"`
	SweepInterval   time.Duration `envconfig:"SWEEP_INTERVAL" default:"0s"`
	SweepBatchLimit int           `envconfig:"SWEEP_BATCH_LIMIT" default:"200"`

	// Auth
	JWTSecret       string `envconfig:"JWT_SECRET"`
	AdminSecretHash string `envconfig:"ADMIN_SECRET_HASH"`
	CronSecretHash  string `envconfig:"CRON_SECRET_HASH"`

	// Event bus
	RabbitURL     string `envconfig:"RABBIT_URL"`
	EventExchange string `envconfig:"EVENT_EXCHANGE" default:"booking.exchange"`

	// Tracing
	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName  string `envconfig:"OTEL_SERVICE_NAME" default:"detailhub"`

	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`
}

// LoadEnv reads an optional .env file and then the process environment.
func LoadEnv() (Env, error) {
	_ = godotenv.Load()

	var env Env
	if err := envconfig.Process("", &env); err != nil {
		return Env{}, err
	}
	env.LedgerDriver = strings.ToLower(strings.TrimSpace(env.LedgerDriver))
	if env.DBDSN == "" && env.LedgerDriver == "mysql" {
		env.LedgerDriver = "memory"
	}
	env.Currency = strings.ToLower(strings.TrimSpace(env.Currency))
	return env, nil
}
