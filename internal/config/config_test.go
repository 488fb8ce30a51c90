package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HOLD_TTL", "")
	t.Setenv("FALLBACK_VPA", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("RATE_LIMIT", "")
	t.Setenv("REQUEST_TIMEOUT", "")
	t.Setenv("PAYMENT_DELAY", "")
	t.Setenv("LOCK_TTL", "")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10*time.Minute, cfg.HoldTTL)
	assert.Equal(t, 800*time.Millisecond, cfg.PaymentDelay)
	assert.Equal(t, "merchant@bank", cfg.FallbackVPA)
	assert.Equal(t, "http://localhost:9004", cfg.BookingURL)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, 60, cfg.RateLimit)
	assert.Equal(t, 2*15*time.Second+800*time.Millisecond, cfg.LockTTL)
	assert.Equal(t, 1.0, cfg.TraceSampleRatio)
}

func TestLoad_LockTTLCoversSlowestStep(t *testing.T) {
	t.Setenv("REQUEST_TIMEOUT", "5s")
	t.Setenv("PAYMENT_DELAY", "1s")

	t.Setenv("LOCK_TTL", "2s")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 11*time.Second, cfg.LockTTL)

	t.Setenv("LOCK_TTL", "45s")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.LockTTL)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("HOLD_TTL", "2m")
	t.Setenv("REQUEST_TIMEOUT", "not-a-duration")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("BOOKING_URL", "http://booking.internal")
	t.Setenv("RATE_LIMIT", "-3")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2*time.Minute, cfg.HoldTTL)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "http://booking.internal", cfg.BookingURL)
	assert.Equal(t, 60, cfg.RateLimit)
	assert.Equal(t, 0.2, cfg.TraceSampleRatio)
}
