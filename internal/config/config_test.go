package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "12345:token")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("TICK_INTERVAL", "")
	t.Setenv("LOOKAHEAD_DAYS", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "starplanner.db", cfg.DatabaseURL)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 15*time.Minute, cfg.TickInterval)
	assert.Equal(t, 0, cfg.LookaheadDays)
	assert.Equal(t, 3, cfg.RetryAttempts)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "12345:token")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("TICK_INTERVAL", "5m")
	t.Setenv("LOOKAHEAD_DAYS", "7")
	t.Setenv("SEND_DELAY", "250ms")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.TickInterval)
	assert.Equal(t, 7, cfg.LookaheadDays)
	assert.Equal(t, 250*time.Millisecond, cfg.SendDelay)
}

func TestLoadRequiredFields(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "")
	t.Setenv("JWT_SECRET", "secret")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("TELEGRAM_TOKEN", "12345:token")
	t.Setenv("JWT_SECRET", "")
	_, err = Load()
	assert.Error(t, err)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "12345:token")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("TICK_INTERVAL", "soon")
	t.Setenv("LOOKAHEAD_DAYS", "-3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, cfg.TickInterval)
	assert.Equal(t, 0, cfg.LookaheadDays)
}
