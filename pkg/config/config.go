package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the backtest service.
type Config struct {
	Port     string
	GRPCPort string

	// Storage
	DBPath      string
	DatabaseURL string // optional PostgreSQL results store
	RedisURL    string // optional read-through cache for stored runs
	CacheTTL    time.Duration

	// Inputs
	DataDir        string // CSV / Parquet bar files
	StrategyConfig string // YAML strategy file
	CORSOrigins    []string

	// Backtests
	InitialCash  float64
	Commission   float64
	SweepWorkers int

	// Auth
	JWTSecret string // empty disables auth on the API

	// HTTP rate limiting (per client IP)
	RateLimit float64
	RateBurst int

	// Logging
	LogLevel  string
	LogFormat string // "json" or "text"
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	return &Config{
		Port:           getEnv("PORT", "8080"),
		GRPCPort:       getEnv("GRPC_PORT", "9090"),
		DBPath:         getEnv("DB_PATH", "./data/backtests.db"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		CacheTTL:       time.Duration(getEnvInt("CACHE_TTL_SECONDS", 300)) * time.Second,
		DataDir:        getEnv("DATA_DIR", "./data"),
		StrategyConfig: getEnv("STRATEGY_CONFIG", "./strategies.yaml"),
		CORSOrigins:    splitAndTrim(getEnv("CORS_ORIGINS", "*")),
		InitialCash:    getEnvFloat("INITIAL_CASH", 1000),
		Commission:     getEnvFloat("COMMISSION", 0.001),
		SweepWorkers:   getEnvInt("SWEEP_WORKERS", 0),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		RateLimit:      getEnvFloat("RATE_LIMIT_RPS", 20),
		RateBurst:      getEnvInt("RATE_LIMIT_BURST", 50),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:      strings.ToLower(getEnv("LOG_FORMAT", "json")),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitAndTrim(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
