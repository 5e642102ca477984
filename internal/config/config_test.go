package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	assert.False(t, cfg.Database.Enabled)
	assert.Equal(t, 7*24*time.Hour, cfg.Store.Retention)
	assert.Equal(t, "1s", cfg.Analytics.Timeframe)
	assert.Equal(t, 60, cfg.Analytics.Window)
	assert.Equal(t, 2.0, cfg.Analytics.Entry)
	assert.Equal(t, 1e-5, cfg.Analytics.ProcessVariance)
	assert.Equal(t, time.Second, cfg.Live.HeartbeatInterval)
	assert.Equal(t, "pair-alerts", cfg.Kafka.AlertsTopic)
	assert.Empty(t, cfg.Kafka.BrokerList())
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  port: "9090"
database:
  enabled: true
  host: db.internal
kafka:
  brokers: "k1:9092, k2:9092"
feed:
  symbols: [btcusdt, ethusdt]
analytics:
  window: 120
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	t.Setenv("PAIRS_SERVER_PORT", "7070")
	t.Setenv("PAIRS_AUTH_JWTSECRET", "s3cret")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Server.Port, "environment wins over file")
	assert.True(t, cfg.Database.Enabled)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Contains(t, cfg.Database.DSN(), "host=db.internal port=5432")
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.BrokerList())
	assert.Equal(t, []string{"btcusdt", "ethusdt"}, cfg.Feed.Symbols)
	assert.Equal(t, 120, cfg.Analytics.Window)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
}

func TestLoadConfigMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unterminated"), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}
