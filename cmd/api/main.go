package main

import (
	"context"
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
	cfg := config.LoadAPI()
	logging.Init("api", cfg.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := pg.NewPool(ctx, cfg.DBDSN, pg.PoolOptions{
		MaxConns:          cfg.Pool.DBPoolMaxConns,
		MinConns:          cfg.Pool.DBPoolMinConns,
		MaxConnLifetime:   cfg.Pool.DBPoolMaxConnLifetime,
		MaxConnIdleTime:   cfg.Pool.DBPoolMaxConnIdleTime,
		HealthCheckPeriod: cfg.Pool.DBPoolHealthCheckPeriod,
	})
	if err != nil {
		slog.Error("api db connect failed", "err", err)
		os.Exit(1)
	}

	observability.Register(prometheus.DefaultRegisterer)

	gateway := buildGateway(ctx, cfg.Provider)
	if !gateway.Configured() {
		slog.Warn("no email backend configured, sends will fail")
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

	s := httpserver.New()
	api := &httpserver.API{
		Svc:        svc,
		Sched:      sched,
		CronSecret: cfg.CronSecret,
	}
	api.Register(s.Mux)

	s.Mux.HandleFunc("/healthz", httpserver.Healthz())
	s.Mux.HandleFunc("/readyz", httpserver.Readyz(2*time.Second, func(ctx context.Context) error {
		return db.Ping(ctx)
	}))

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: httpserver.Logging(s.Mux),
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("api shutdown", "signal", sig.String())
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("api listening", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("api server failed", "err", err)
		os.Exit(1)
	}

	db.Close()
}

// buildGateway wires the ESP backends in priority order behind a shared
// rate limiter and circuit breaker.
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
