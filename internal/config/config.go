package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config keeps runtime settings for the backend.
type Config struct {
	TelegramToken string
	DatabaseURL   string
	HTTPAddr      string
	JWTSecret     string
	TickInterval  time.Duration // generator + notifier cadence
	LookaheadDays int           // 0 means generate for today only
	SendDelay     time.Duration // pause between consecutive outbound sends
	RetryAttempts int
	RetryBackoff  time.Duration
}

// Load reads configuration from environment variables with sane defaults.
// A .env file is picked up when present.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		TelegramToken: strings.TrimSpace(os.Getenv("TELEGRAM_TOKEN")),
		DatabaseURL:   strings.TrimSpace(os.Getenv("DATABASE_URL")),
		HTTPAddr:      strings.TrimSpace(os.Getenv("HTTP_ADDR")),
		JWTSecret:     strings.TrimSpace(os.Getenv("JWT_SECRET")),
		TickInterval:  parseDuration(os.Getenv("TICK_INTERVAL"), 15*time.Minute),
		LookaheadDays: parseInt(os.Getenv("LOOKAHEAD_DAYS"), 0),
		SendDelay:     parseDuration(os.Getenv("SEND_DELAY"), 100*time.Millisecond),
		RetryAttempts: parseInt(os.Getenv("SEND_RETRY_ATTEMPTS"), 3),
		RetryBackoff:  parseDuration(os.Getenv("SEND_RETRY_BACKOFF"), time.Second),
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "starplanner.db"
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	if cfg.TelegramToken == "" {
		return cfg, fmt.Errorf("TELEGRAM_TOKEN is required")
	}
	if cfg.JWTSecret == "" {
		return cfg, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func parseInt(raw string, fallback int) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
