// Package config loads server configuration from flags and environment,
// with an optional .env file hydrating the environment first.
package config

import (
	"flag"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every tunable the server reads at startup.
type Config struct {
	Port string
	Host string

	DBPath string // MongoDB URI, or ":memory:" for the in-process backend

	InitialCash         float64
	RoundDurationSeconds int
	TickIntervalMs       int
	TradeRetentionDays   int
	SnapshotIntervalSec  int

	OrganizerSecret string
	NewsUpstreamURL string

	RNGSeed int64

	ObserverSendBuffer int
}

// RoundDuration is RoundDurationSeconds as a time.Duration.
func (c *Config) RoundDuration() time.Duration {
	return time.Duration(c.RoundDurationSeconds) * time.Second
}

// TickInterval is TickIntervalMs as a time.Duration.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMs) * time.Millisecond
}

// Load parses flags (seeded from environment, with .env loaded first if
// present) into a Config.
func Load() *Config {
	_ = godotenv.Load()

	c := &Config{}

	flag.StringVar(&c.Port, "port", envStr("PORT", "8000"), "HTTP listen port")
	flag.StringVar(&c.Host, "host", envStr("HOST", "0.0.0.0"), "HTTP listen host")

	flag.StringVar(&c.DBPath, "db-path", envStr("DB_PATH", "market.db"), "MongoDB URI, or :memory: for the in-process store")

	flag.Float64Var(&c.InitialCash, "initial-cash", envFloat("INITIAL_CASH", 100000), "Initial cash per team")
	flag.IntVar(&c.RoundDurationSeconds, "round-duration", envInt("ROUND_DURATION_SECONDS", 1800), "Round duration in seconds")
	flag.IntVar(&c.TickIntervalMs, "tick-interval", envInt("TICK_INTERVAL_MS", 2000), "Market simulator tick interval in milliseconds")
	flag.IntVar(&c.TradeRetentionDays, "trade-retention", envInt("TRADE_RETENTION_DAYS", 7), "Trade history retention in days (0 = keep forever)")
	flag.IntVar(&c.SnapshotIntervalSec, "snapshot-interval", envInt("SNAPSHOT_INTERVAL_SECONDS", 30), "Round state snapshot interval in seconds")

	flag.StringVar(&c.OrganizerSecret, "organizer-secret", envStr("ORGANIZER_SECRET", ""), "Shared secret required on /round/* calls")
	flag.StringVar(&c.NewsUpstreamURL, "news-upstream", envStr("NEWS_UPSTREAM_URL", ""), "Optional upstream news URL; empty serves fixtures")

	flag.Int64Var(&c.RNGSeed, "seed", envInt64("MARKET_SEED", 0), "PRNG seed (0 = random)")
	flag.IntVar(&c.ObserverSendBuffer, "observer-send-buffer", envInt("OBSERVER_SEND_BUFFER", 32), "Per-observer ops-stream send buffer size")

	flag.Parse()

	return c
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

func envInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
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
