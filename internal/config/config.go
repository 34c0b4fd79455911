package config

import (
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

type Config struct {
	Port                     string
	DatabaseURL              string
	DefaultTimezone          string
	DefaultCountryCode       string
	KioskTokens              []string
	KioskSalonID             string
	StripeSecretKey          string
	StripeWebhookSecret      string
	AppURL                   string
	CheckoutCurrency         string
	CheckoutDebounce         time.Duration
	RateLimitPerMinute       int
	RateLimitBurst           int
	TenantRateLimitPerMinute int
	TenantRateLimitBurst     int
	NATSURL                  string
	OutboxRelayInterval      time.Duration
	OutboxBatchSize          int
	LogLevel                 string
	LogFormat                string
	OTelEndpoint             string
	OTelInsecure             bool
}

var defaults = map[string]interface{}{
	"PORT":                          "8080",
	"DEFAULT_TIMEZONE":              "America/Detroit",
	"DEFAULT_COUNTRY_CODE":          "1",
	"APP_URL":                       "http://localhost:3000",
	"CHECKOUT_CURRENCY":             "usd",
	"CHECKOUT_DEBOUNCE_MS":          2000,
	"RATE_LIMIT_PER_MIN":            120,
	"RATE_LIMIT_BURST":              30,
	"TENANT_RATE_LIMIT_PER_MIN":     600,
	"TENANT_RATE_LIMIT_BURST":       120,
	"OUTBOX_RELAY_INTERVAL_SECONDS": 5,
	"OUTBOX_BATCH_SIZE":             100,
	"LOG_LEVEL":                     "info",
	"LOG_FORMAT":                    "json",
}

// boundKeys have no default but must still be visible to AutomaticEnv
// lookups through Get.
var boundKeys = []string{
	"DB_DSN",
	"KIOSK_TOKEN",
	"KIOSK_TOKEN_2",
	"KIOSK_SALON_ID",
	"STRIPE_SECRET_KEY",
	"STRIPE_WEBHOOK_SECRET",
	"NATS_URL",
	"OTEL_EXPORTER_OTLP_ENDPOINT",
	"OTEL_EXPORTER_OTLP_INSECURE",
}

// Load reads configuration from the environment.
func Load() Config {
	return load(viper.New())
}

func load(v *viper.Viper) Config {
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	for _, key := range boundKeys {
		_ = v.BindEnv(key)
	}

	var tokens []string
	for _, key := range []string{"KIOSK_TOKEN", "KIOSK_TOKEN_2"} {
		if token := strings.TrimSpace(v.GetString(key)); token != "" {
			tokens = append(tokens, token)
		}
	}

	return Config{
		Port:                     v.GetString("PORT"),
		DatabaseURL:              v.GetString("DB_DSN"),
		DefaultTimezone:          v.GetString("DEFAULT_TIMEZONE"),
		DefaultCountryCode:       v.GetString("DEFAULT_COUNTRY_CODE"),
		KioskTokens:              tokens,
		KioskSalonID:             strings.TrimSpace(v.GetString("KIOSK_SALON_ID")),
		StripeSecretKey:          v.GetString("STRIPE_SECRET_KEY"),
		StripeWebhookSecret:      v.GetString("STRIPE_WEBHOOK_SECRET"),
		AppURL:                   v.GetString("APP_URL"),
		CheckoutCurrency:         v.GetString("CHECKOUT_CURRENCY"),
		CheckoutDebounce:         readDuration(v, "CHECKOUT_DEBOUNCE_MS", time.Millisecond),
		RateLimitPerMinute:       v.GetInt("RATE_LIMIT_PER_MIN"),
		RateLimitBurst:           v.GetInt("RATE_LIMIT_BURST"),
		TenantRateLimitPerMinute: v.GetInt("TENANT_RATE_LIMIT_PER_MIN"),
		TenantRateLimitBurst:     v.GetInt("TENANT_RATE_LIMIT_BURST"),
		NATSURL:                  v.GetString("NATS_URL"),
		OutboxRelayInterval:      readDuration(v, "OUTBOX_RELAY_INTERVAL_SECONDS", time.Second),
		OutboxBatchSize:          v.GetInt("OUTBOX_BATCH_SIZE"),
		LogLevel:                 v.GetString("LOG_LEVEL"),
		LogFormat:                v.GetString("LOG_FORMAT"),
		OTelEndpoint:             v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTelInsecure:             v.GetBool("OTEL_EXPORTER_OTLP_INSECURE"),
	}
}

func readDuration(v *viper.Viper, key string, unit time.Duration) time.Duration {
	value := v.GetInt(key)
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * unit
}

// Validate reports settings the service cannot start without.
func (c Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DB_DSN is required"))
	}
	if c.StripeWebhookSecret == "" {
		errs = append(errs, errors.New("STRIPE_WEBHOOK_SECRET is required"))
	}
	if len(c.KioskTokens) > 0 && c.KioskSalonID == "" {
		errs = append(errs, errors.New("KIOSK_SALON_ID is required when kiosk tokens are set"))
	}
	return errors.Join(errs...)
}

// Logger builds the process logger and sets the global level.
func (c Config) Logger() zerolog.Logger {
	return c.loggerTo(os.Stdout)
}

func (c Config) loggerTo(out io.Writer) zerolog.Logger {
	level := zerolog.InfoLevel
	switch strings.ToLower(c.LogLevel) {
	case "trace":
		level = zerolog.TraceLevel
	case "debug":
		level = zerolog.DebugLevel
	case "warn", "warning":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if strings.EqualFold(c.LogFormat, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).With().Timestamp().Str("service", "kiosk-service").Logger()
}
