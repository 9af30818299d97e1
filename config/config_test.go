package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`
database:
  host: "localhost"
  port: 5432
  username: "u"
  password: "p"
  name: "db"
kafka:
  host: "localhost"
  port: 9092
  shipment_updated_topic_name: "shipment.updated"
redis:
  host: "localhost"
  port: 6379
emissions:
  mode: "http"
  base_url: "https://api.example.com/data/v1"
  api_key: "secret"
  data_version: "^0"
carrier:
  mode: "shipglide"
  base_url: "http://localhost:9000"
greencore:
  http_addr: ":8080"
  kafka_consumer_group: "green-api"
  savings_multiplier: 0.9
  estimate_cache_ttl_seconds: 600
`), 0o600))

	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	require.Equal(t, "u", cfg.Database.Username)
	require.Equal(t, "shipment.updated", cfg.Kafka.ShipmentUpdatedTopicName)
	require.Equal(t, 6379, cfg.Redis.Port)
	require.Equal(t, "^0", cfg.Emissions.DataVersion)
	require.Equal(t, "shipglide", cfg.Carrier.Mode)
	require.Equal(t, ":8080", cfg.GreenCore.HTTPAddr)
	require.InDelta(t, 0.9, cfg.GreenCore.SavingsMultiplier, 1e-9)
}

func TestLoadConfig_missingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
