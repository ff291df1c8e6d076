package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"detailhub/internal/config"
	"detailhub/internal/events"
	router "detailhub/internal/http"
	"detailhub/internal/http/handlers"
	"detailhub/internal/obs"
	"detailhub/internal/payments"
	"detailhub/internal/repositories"
	"detailhub/internal/services"
	"detailhub/internal/utils"
)

func main() {
	utils.SetLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	ctx := context.Background()

	env, err := config.LoadEnv()
	if err != nil {
		fatal(ctx, "load_env", err)
	}
	if env.GinMode != "" {
		gin.SetMode(env.GinMode)
	}

	shutdownTracer, err := obs.InitTracer(ctx, env.ServiceName, env.OTLPEndpoint)
	if err != nil {
		fatal(ctx, "init_tracer", err)
	}

	var (
		db     *sql.DB
		ledger repositories.Ledger
	)
	switch env.LedgerDriver {
	case "memory":
		utils.LogEvent(ctx, "main", "ledger", "using in-memory ledger; data is lost on restart")
		ledger = repositories.NewMemoryLedger()
	default:
		db, err = config.OpenDB(ctx, env.DBDSN)
		if err != nil {
			fatal(ctx, "open_db", err)
		}
		defer db.Close()
		if err := repositories.EnsureSchema(ctx, db); err != nil {
			fatal(ctx, "ensure_schema", err)
		}
		ledger = repositories.NewMySQLLedger(db)
	}

	var processor payments.Processor = payments.Unconfigured{}
	if env.StripeSecretKey != "" {
		processor = payments.NewStripeProcessor(env.StripeSecretKey, env.StripeWebhookSecret, env.ProcessorTimeout)
	} else {
		utils.LogEvent(ctx, "main", "processor", "STRIPE_SECRET_KEY not set; payment operations will fail")
	}

	var publisher events.Publisher = events.LogPublisher{}
	if env.RabbitURL != "" {
		amqpPub, err := events.NewAMQPPublisher(env.RabbitURL, env.EventExchange)
		if err != nil {
			utils.LogWarn(ctx, "main", "event_bus", err, "fallback", "log")
		} else {
			defer amqpPub.Close()
			publisher = amqpPub
		}
	}

	core := services.NewCore(ledger, processor, events.Async{Next: publisher}, services.PolicyFromEnv(env), nil)
	r := router.NewRouter(env, &handlers.API{Core: core, DB: db})

	srv := &http.Server{
		Addr:              env.AppAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       20 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	if env.SweepInterval > 0 {
		go core.Sweep.Start(sweepCtx, env.SweepInterval)
	}

	go func() {
		utils.LogEvent(ctx, "main", "listen", "server listening", "addr", env.AppAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal(ctx, "listen", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	utils.LogEvent(ctx, "main", "shutdown", "shutting down")
	stopSweep()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.LogError(ctx, "main", "shutdown", err)
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		utils.LogWarn(ctx, "main", "tracer_shutdown", err)
	}
	utils.LogEvent(ctx, "main", "shutdown", "server stopped")
}

func fatal(ctx context.Context, action string, err error) {
	utils.LogError(ctx, "main", action, err)
	os.Exit(1)
}
