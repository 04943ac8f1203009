package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg := FromEnv()

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Empty(t, cfg.PostgresDSN)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "interview.completed", cfg.KafkaTopic)
	assert.Equal(t, 15*time.Second, cfg.Oracle.Timeout)
	assert.Equal(t, 2, cfg.Oracle.Retries)
	assert.Equal(t, 3, cfg.Narrower.ForcingThreshold)
	assert.Equal(t, 30*time.Second, cfg.Narrower.LockTTL)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("VISAFLOW_ADDR", ":9999")
	t.Setenv("ORACLE_URL", "http://oracle.internal")
	t.Setenv("ORACLE_TIMEOUT", "5s")
	t.Setenv("FORCING_THRESHOLD", "5")
	t.Setenv("KAFKA_BROKERS", "broker-1:9092,broker-2:9092")

	cfg := FromEnv()

	assert.Equal(t, ":9999", cfg.Addr)
	assert.Equal(t, "http://oracle.internal", cfg.Oracle.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Oracle.Timeout)
	assert.Equal(t, 5, cfg.Narrower.ForcingThreshold)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.KafkaBrokers)
}

func TestFromEnv_MalformedValuesFallBack(t *testing.T) {
	t.Setenv("ORACLE_RETRIES", "many")
	t.Setenv("ORACLE_TIMEOUT", "soon")

	cfg := FromEnv()

	assert.Equal(t, 2, cfg.Oracle.Retries)
	assert.Equal(t, 15*time.Second, cfg.Oracle.Timeout)
}
