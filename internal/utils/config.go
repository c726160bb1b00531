package utils

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ServerPort string
	Postgres   PostgresConfig
	Redis      RedisConfig
	MCP        MCPConfig
	Payment    PaymentConfig
	RateLimit  RateLimitConfig
	Logging    LoggingConfig
}

type PostgresConfig struct {
	DSN               string
	Host              string
	Port              int
	User              string
	Password          string
	Database          string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	ConnectTimeout    time.Duration
}

type RedisConfig struct {
	Addr       string
	MetricsTTL time.Duration
}

type MCPConfig struct {
	BaseURL string
	Timeout time.Duration
}

type PaymentConfig struct {
	RPCURL  string
	Timeout time.Duration
}

type RateLimitConfig struct {
	RequestsPerSecond int
	Burst             int
	CleanupInterval   time.Duration
}

type LoggingConfig struct {
	Level        string
	Encoding     string
	Development  bool
	EnableCaller bool
	ServiceName  string
}

func LoadConfig() (*Config, error) {
	port := envOrDefault("PORT", "8080")

	pgPort, _ := strconv.Atoi(envOrDefault("POSTGRES_PORT", "5432"))
	maxConns := parseInt32(envOrDefault("POSTGRES_MAX_CONNS", "8"), 8)
	minConns := parseInt32(envOrDefault("POSTGRES_MIN_CONNS", "1"), 1)

	logging := LoggingConfig{
		Level:        strings.ToLower(envOrDefault("LOG_LEVEL", "info")),
		Encoding:     strings.ToLower(envOrDefault("LOG_ENCODING", "console")),
		Development:  parseBool(envOrDefault("LOG_DEVELOPMENT", "false"), false),
		EnableCaller: parseBool(envOrDefault("LOG_CALLER", "false"), false),
		ServiceName:  envOrDefault("SERVICE_NAME", "poolmind-server"),
	}

	cfg := &Config{
		ServerPort: port,
		Postgres: PostgresConfig{
			DSN:               os.Getenv("POSTGRES_DSN"),
			Host:              envOrDefault("POSTGRES_HOST", "localhost"),
			Port:              pgPort,
			User:              envOrDefault("POSTGRES_USER", "postgres"),
			Password:          envOrDefault("POSTGRES_PASSWORD", "postgres"),
			Database:          envOrDefault("POSTGRES_DB", "poolmind"),
			MaxConns:          maxConns,
			MinConns:          minConns,
			MaxConnLifetime:   parseDuration(envOrDefault("POSTGRES_MAX_CONN_LIFETIME", "1h"), time.Hour),
			MaxConnIdleTime:   parseDuration(envOrDefault("POSTGRES_MAX_CONN_IDLE", "30m"), 30*time.Minute),
			HealthCheckPeriod: parseDuration(envOrDefault("POSTGRES_HEALTH_CHECK_PERIOD", "1m"), time.Minute),
			ConnectTimeout:    parseDuration(envOrDefault("POSTGRES_CONNECT_TIMEOUT", "5s"), 5*time.Second),
		},
		Redis: RedisConfig{
			Addr:       strings.TrimSpace(os.Getenv("REDIS_ADDR")),
			MetricsTTL: parseDuration(envOrDefault("POOL_METRICS_CACHE_TTL", "30s"), 30*time.Second),
		},
		MCP: MCPConfig{
			BaseURL: strings.TrimRight(envOrDefault("MCP_SERVER_URL", "http://localhost:3001"), "/"),
			Timeout: parseDuration(envOrDefault("MCP_TIMEOUT", "20s"), 20*time.Second),
		},
		Payment: PaymentConfig{
			RPCURL:  strings.TrimRight(envOrDefault("PAYMENT_RPC_URL", "https://api.mainnet-beta.solana.com"), "/"),
			Timeout: parseDuration(envOrDefault("PAYMENT_TIMEOUT", "15s"), 15*time.Second),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: parseInt(envOrDefault("RATE_LIMIT_RPS", "10"), 10),
			Burst:             parseInt(envOrDefault("RATE_LIMIT_BURST", "20"), 20),
			CleanupInterval:   parseDuration(envOrDefault("RATE_LIMIT_CLEANUP", "5m"), 5*time.Minute),
		},
		Logging: logging,
	}

	return cfg, nil
}

func (c PostgresConfig) BuildDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s", c.User, c.Password, c.Host, c.Port, c.Database)
}

func envOrDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func parseInt(value string, fallback int) int {
	i, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return i
}

func parseInt32(value string, fallback int32) int32 {
	i, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return int32(i)
}

func parseBool(value string, fallback bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return v
}
