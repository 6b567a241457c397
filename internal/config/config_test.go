package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_AppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("postgres:\n  dsn: host=db\n"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, DefaultBatchSize, cfg.Outbox.BatchSize)
	assert.Equal(t, DefaultMaxRetryCount, cfg.Outbox.MaxRetryCount)
	assert.Equal(t, DefaultWorkers, cfg.Outbox.Workers)
	assert.Equal(t, DefaultClaimTTL, cfg.Outbox.ClaimTTL)
	assert.Equal(t, DefaultPublishTimeout, cfg.Kafka.PublishTimeout)
	assert.Equal(t, "warehouse-events", cfg.Kafka.Topics.Warehouse)
	assert.Equal(t, "site-factory-distance-events", cfg.Kafka.Topics.SiteFactoryDistance)
}

func TestParse_KeepsExplicitValues(t *testing.T) {
	raw := `
outbox:
  poll_interval: 250ms
  batch_size: 25
  max_retry_count: 3
  workers: 4
kafka:
  brokers: ["k1:9092", "k2:9092"]
  publish_timeout: 5s
  topics:
    counterpart: vendors
`
	cfg, err := Parse([]byte(raw))
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, cfg.Outbox.PollInterval)
	assert.Equal(t, 25, cfg.Outbox.BatchSize)
	assert.Equal(t, 3, cfg.Outbox.MaxRetryCount)
	assert.Equal(t, 4, cfg.Outbox.Workers)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 5*time.Second, cfg.Kafka.PublishTimeout)
	assert.Equal(t, "vendors", cfg.Kafka.Topics.Counterpart)
	assert.Equal(t, "factory-events", cfg.Kafka.Topics.Factory)
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv("POSTGRES_PASSWORD", "s3cret")
	t.Setenv("KAKAO_API_KEY", "kakao-key")

	cfg, err := Parse([]byte("postgres:\n  dsn: host=db\n"))
	require.NoError(t, err)

	assert.Equal(t, "host=db password=s3cret", cfg.Postgres.DSN)
	assert.Equal(t, "kakao-key", cfg.Geocoder.KakaoAPIKey)
}

func TestLoad_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9999\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestPath_HonoursEnv(t *testing.T) {
	t.Setenv("CONFIG_PATH", "/etc/location/config.yaml")
	assert.Equal(t, "/etc/location/config.yaml", Path())
}
