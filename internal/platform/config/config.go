// Package config builds runtime configuration from environment variables so
// main stays lean. Empty connection values select in-memory implementations,
// which keeps local development dependency-free.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures all runtime configuration for the service.
type Config struct {
	Addr          string
	JWTSigningKey string

	PostgresDSN string
	RedisURL    string

	KafkaBrokers []string
	KafkaTopic   string

	Oracle   OracleConfig
	Redis    RedisConfig
	Narrower NarrowerConfig
}

// OracleConfig controls the classification oracle client.
type OracleConfig struct {
	// BaseURL of the oracle HTTP endpoint. Empty selects the deterministic
	// mock client (development mode).
	BaseURL string
	// Timeout per oracle round-trip. On expiry the response is treated as
	// unrecognized rather than failing the round.
	Timeout time.Duration
	// Retries is the immediate-retry budget for transport failures within
	// one round-trip.
	Retries int
}

// RedisConfig controls the Redis connection pool.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// NarrowerConfig tunes the narrowing engine.
type NarrowerConfig struct {
	// ForcingThreshold is the number of consecutive stalled rounds after
	// which the engine forces a single candidate.
	ForcingThreshold int
	// LockTTL bounds how long a per-user interview lock may be held.
	LockTTL time.Duration
}

// FromEnv builds a Config from environment variables with development
// defaults.
func FromEnv() Config {
	cfg := Config{
		Addr:          getEnv("VISAFLOW_ADDR", ":8080"),
		JWTSigningKey: getEnv("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		PostgresDSN:   os.Getenv("POSTGRES_DSN"),
		RedisURL:      os.Getenv("REDIS_URL"),
		KafkaTopic:    getEnv("KAFKA_TOPIC", "interview.completed"),
		Oracle: OracleConfig{
			BaseURL: os.Getenv("ORACLE_URL"),
			Timeout: getDuration("ORACLE_TIMEOUT", 15*time.Second),
			Retries: getInt("ORACLE_RETRIES", 2),
		},
		Narrower: NarrowerConfig{
			ForcingThreshold: getInt("FORCING_THRESHOLD", 3),
			LockTTL:          getDuration("INTERVIEW_LOCK_TTL", 30*time.Second),
		},
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	cfg.Redis = RedisConfig{
		URL:          cfg.RedisURL,
		PoolSize:     getInt("REDIS_POOL_SIZE", 10),
		MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
		DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return parsed
}
