package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"campaigner/internal/config"
	"campaigner/internal/httpserver"
	"campaigner/internal/logging"
	"campaigner/internal/mailer"
	"campaigner/internal/observability"
	"campaigner/internal/providers/resend"
	"campaigner/internal/providers/sendgrid"
	"campaigner/internal/providers/ses"
	"campaigner/internal/render"
	"campaigner/internal/scheduler"
	"campaigner/internal/service"
	"campaigner/internal/store/pg"
)

func main() {
	cfg := config.LoadWorker()
	logging.Init("worker", cfg.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())

	db, err := pg.NewPool(ctx, cfg.DBDSN, pg.PoolOptions{
		MaxConns:          cfg.Pool.DBPoolMaxConns,
		MinConns:          cfg.Pool.DBPoolMinConns,
		MaxConnLifetime:   cfg.Pool.DBPoolMaxConnLifetime,
		MaxConnIdleTime:   cfg.Pool.DBPoolMaxConnIdleTime,
		HealthCheckPeriod: cfg.Pool.DBPoolHealthCheckPeriod,
	})
	if err != nil {
		slog.Error("worker db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	startupCtx, startupCancel := context.WithTimeout(ctx, 3*time.Second)
	defer startupCancel()
	if err := db.Ping(startupCtx); err != nil {
		slog.Error("db not reachable", "err", err)
		os.Exit(1)
	}

	observability.Register(prometheus.DefaultRegisterer)

	gateway := buildGateway(ctx, cfg.Provider)
	if !gateway.Configured() {
		slog.Warn("no email backend configured, scheduled sends will fail")
	}

	store := pg.New(db)
	svc := &service.CampaignService{
		Store:            store,
		Mailer:           gateway,
		Renderer:         render.Renderer{BaseURL: cfg.SiteBaseURL},
		BatchSize:        cfg.Dispatch.BatchSize,
		BatchDelay:       cfg.Dispatch.BatchDelay,
		DefaultFromName:  cfg.DefaultFromName,
		DefaultFromEmail: cfg.DefaultFromEmail,
	}
	sched := &scheduler.Scheduler{Store: store, Orchestrator: svc}

	healthMux := httpserver.New().Mux
	healthMux.HandleFunc("/healthz", httpserver.Healthz())
	healthMux.HandleFunc("/readyz", httpserver.Readyz(2*time.Second,
		func(c context.Context) error { return db.Ping(c) },
	))

	healthSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: httpserver.Logging(healthMux),
	}

	healthErrCh := make(chan error, 1)
	go func() {
		slog.Info("worker health listening", "port", cfg.Port)
		healthErrCh <- healthSrv.ListenAndServe()
	}()

	runErrCh := make(chan error, 1)
	go func() {
		slog.Info("worker scheduler starting", "interval", cfg.PollInterval.String())
		runErrCh <- sched.Run(ctx, cfg.PollInterval)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-runErrCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("worker scheduler failed", "err", err)
			os.Exit(1)
		}
	case err := <-healthErrCh:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("worker health server failed", "err", err)
			os.Exit(1)
		}
	case sig := <-sigCh:
		slog.Info("worker shutdown", "signal", sig.String())
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = healthSrv.Shutdown(shutdownCtx)

	select {
	case <-runErrCh:
	case <-time.After(10 * time.Second):
		slog.Info("worker shutdown timeout waiting for scheduler loop")
	}
}

func buildGateway(ctx context.Context, cfg config.ProviderConfig) *mailer.Gateway {
	sesClient, err := ses.NewClient(ctx, cfg.SESRegion, cfg.SESAccessKey, cfg.SESSecretKey)
	if err != nil {
		slog.Error("ses client init failed", "err", err)
		os.Exit(1)
	}

	backends := []mailer.Backend{
		sesClient,
		&sendgrid.Client{
			APIKey:  cfg.SendGridAPIKey,
			BaseURL: cfg.SendGridBaseURL,
			HTTP:    &http.Client{Timeout: 10 * time.Second},
		},
		&resend.Client{
			APIKey:  cfg.ResendAPIKey,
			BaseURL: cfg.ResendBaseURL,
			HTTP:    &http.Client{Timeout: 10 * time.Second},
		},
	}

	limiter := rate.NewLimiter(rate.Limit(cfg.SendRPS), cfg.SendBurst)
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "email",
		MaxRequests: 3,
		Timeout:     20 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 10 },
	})
	return mailer.NewGateway(backends, limiter, cb)
}
