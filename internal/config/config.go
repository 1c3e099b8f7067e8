// Package config loads engine configuration from environment variables,
// with a .env file honored when present.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the complete engine configuration.
type Config struct {
	// Server
	Port            string
	CORSAllowOrigin string

	// Persistence
	DatabaseURL string // empty → in-memory repository
	RedisURL    string // empty → no snapshot cache
	CacheTTL    time.Duration

	// Feed
	Pair         string
	FeedMode     string // "sim" or "poll"
	FeedURL      string // spot endpoint for poll mode
	FeedInterval time.Duration
	SimStart     float64
	SimVol       float64

	// Notifications
	WebhookURL string
	BotName    string

	// Trading limits
	MinNotional      float64
	MaxNotional      float64
	MaxOpenPositions int
	MaxExposureRatio float64
}

// Load reads configuration from the environment. A .env file in the
// working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:            envStr("PORT", "8080"),
		CORSAllowOrigin: envStr("CORS_ALLOW_ORIGIN", "*"),

		DatabaseURL: envStr("DATABASE_URL", ""),
		RedisURL:    envStr("REDIS_URL", ""),
		CacheTTL:    envDuration("CACHE_TTL", 30*time.Second),

		Pair:         envStr("PAIR", "BTC-USD"),
		FeedMode:     envStr("FEED_MODE", "sim"),
		FeedURL:      envStr("FEED_URL", "https://api.coinbase.com/v2/prices/BTC-USD/spot"),
		FeedInterval: envDuration("FEED_INTERVAL", time.Second),
		SimStart:     envFloat("SIM_START_PRICE", 50000),
		SimVol:       envFloat("SIM_VOLATILITY", 0.002),

		WebhookURL: envStr("WEBHOOK_URL", ""),
		BotName:    envStr("BOT_NAME", "bot-engine"),

		MinNotional:      envFloat("MIN_NOTIONAL", 10),
		MaxNotional:      envFloat("MAX_NOTIONAL", 0),
		MaxOpenPositions: envInt("MAX_OPEN_POSITIONS", 0),
		MaxExposureRatio: envFloat("MAX_EXPOSURE_RATIO", 0),
	}

	if cfg.FeedMode != "sim" && cfg.FeedMode != "poll" {
		return nil, fmt.Errorf("config: FEED_MODE must be sim or poll, got %q", cfg.FeedMode)
	}
	return cfg, nil
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
