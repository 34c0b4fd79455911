package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"salon/kiosk-service/internal/bookingrequest"
	"salon/kiosk-service/internal/checkin"
	"salon/kiosk-service/internal/checkout"
	"salon/kiosk-service/internal/config"
	"salon/kiosk-service/internal/httpapi"
	"salon/kiosk-service/internal/outbox"
	"salon/kiosk-service/internal/payments"
	"salon/kiosk-service/internal/store/postgres"
	"salon/kiosk-service/internal/summary"
	"salon/kiosk-service/internal/telemetry"
)

const serviceName = "kiosk-service"

func main() {
	cfg := config.Load()
	logger := cfg.Logger()
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry := telemetry.Setup(ctx, telemetry.Options{
		ServiceName: serviceName,
		Endpoint:    cfg.OTelEndpoint,
		Insecure:    cfg.OTelInsecure,
		Logger:      logger,
	})
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(shutdownCtx)
	}()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("db connect")
	}
	defer pool.Close()

	st := postgres.NewStore(pool)
	processor := payments.NewStripe(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
	if cfg.StripeSecretKey == "" {
		logger.Warn().Msg("STRIPE_SECRET_KEY unset, checkout session creation disabled")
	}

	handler := httpapi.NewHandler(httpapi.Options{
		CheckIn: checkin.NewEngine(st, checkin.Options{
			DefaultTimezone: cfg.DefaultTimezone,
			CountryCode:     cfg.DefaultCountryCode,
			Logger:          logger,
		}),
		BookingRequests: bookingrequest.NewManager(st, cfg.DefaultCountryCode, logger),
		Checkout: checkout.NewSessions(st, processor, checkout.SessionsOptions{
			AppURL:   cfg.AppURL,
			Currency: cfg.CheckoutCurrency,
			Debounce: cfg.CheckoutDebounce,
			Logger:   logger,
		}),
		Webhooks: checkout.NewReconciler(st, processor, logger),
		Summary:  summary.NewBuilder(st, cfg.DefaultTimezone, nil),
		Sessions: st,
		Audit:    st,
		Kiosk:    httpapi.KioskAuth{Tokens: cfg.KioskTokens, TenantID: cfg.KioskSalonID},
		RateLimit: httpapi.RateLimitConfig{
			IPPerMinute:     cfg.RateLimitPerMinute,
			IPBurst:         cfg.RateLimitBurst,
			TenantPerMinute: cfg.TenantRateLimitPerMinute,
			TenantBurst:     cfg.TenantRateLimitBurst,
		},
		Pinger: st,
		Logger: logger,
	})

	var publisher outbox.Publisher = outbox.LogPublisher{Logger: logger}
	if cfg.NATSURL != "" {
		natsPublisher, err := outbox.NewNATSPublisher(cfg.NATSURL, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("nats connect")
		}
		defer natsPublisher.Close()
		publisher = natsPublisher
	}
	relay := outbox.NewRelay(st, publisher, outbox.Config{BatchSize: cfg.OutboxBatchSize}, logger)
	go outbox.Start(ctx, cfg.OutboxRelayInterval, relay)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelhttp.NewHandler(handler.Routes(), serviceName),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("kiosk-service listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server error")
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
	}
}
