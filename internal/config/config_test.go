package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("KIOSK_TOKEN", "")
	t.Setenv("KIOSK_TOKEN_2", "")
	t.Setenv("CHECKOUT_DEBOUNCE_MS", "")

	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "America/Detroit", cfg.DefaultTimezone)
	assert.Equal(t, "1", cfg.DefaultCountryCode)
	assert.Equal(t, "usd", cfg.CheckoutCurrency)
	assert.Equal(t, 2*time.Second, cfg.CheckoutDebounce)
	assert.Equal(t, 5*time.Second, cfg.OutboxRelayInterval)
	assert.Empty(t, cfg.KioskTokens)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DB_DSN", "postgres://localhost/kiosk")
	t.Setenv("KIOSK_TOKEN", " current ")
	t.Setenv("KIOSK_TOKEN_2", "previous")
	t.Setenv("KIOSK_SALON_ID", "11111111-1111-1111-1111-111111111111")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_x")
	t.Setenv("CHECKOUT_DEBOUNCE_MS", "500")
	t.Setenv("RATE_LIMIT_PER_MIN", "60")

	cfg := Load()
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "postgres://localhost/kiosk", cfg.DatabaseURL)
	assert.Equal(t, []string{"current", "previous"}, cfg.KioskTokens)
	assert.Equal(t, 500*time.Millisecond, cfg.CheckoutDebounce)
	assert.Equal(t, 60, cfg.RateLimitPerMinute)
	require.NoError(t, cfg.Validate())
}

func TestValidateReportsMissingSettings(t *testing.T) {
	err := Config{KioskTokens: []string{"t"}}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_DSN")
	assert.Contains(t, err.Error(), "STRIPE_WEBHOOK_SECRET")
	assert.Contains(t, err.Error(), "KIOSK_SALON_ID")
}

func TestLoggerLevel(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })
	var buf bytes.Buffer
	logger := Config{LogLevel: "warn"}.loggerTo(&buf)

	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"message":"shown"`)
	assert.Contains(t, buf.String(), `"service":"kiosk-service"`)
}
