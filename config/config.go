package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Emissions EmissionsConfig `yaml:"emissions"`
	Carrier   CarrierConfig   `yaml:"carrier"`
	GreenCore GreenCoreConfig `yaml:"greencore"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type KafkaConfig struct {
	Host                     string `yaml:"host"`
	Port                     int    `yaml:"port"`
	ShipmentUpdatedTopicName string `yaml:"shipment_updated_topic_name"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// EmissionsConfig points at the external emission-factor catalog.
// Mode "http" talks to the real catalog; anything else falls back to the
// built-in deterministic fake (local dev and demos).
type EmissionsConfig struct {
	Mode        string `yaml:"mode"` // "http" | "fake"
	BaseURL     string `yaml:"base_url"`
	APIKey      string `yaml:"api_key"`
	DataVersion string `yaml:"data_version"`
}

type CarrierConfig struct {
	Mode    string `yaml:"mode"` // "shipglide" | "fake"
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

type GreenCoreConfig struct {
	HTTPAddr           string `yaml:"http_addr"`
	KafkaConsumerGroup string `yaml:"kafka_consumer_group"`

	// SavingsMultiplier is the assumed fraction of a new item's footprint
	// avoided by buying secondhand. Product policy, not catalog data.
	SavingsMultiplier float64 `yaml:"savings_multiplier"`

	EstimateCacheTTLSeconds int `yaml:"estimate_cache_ttl_seconds"`

	WorkerHTTPAddr            string `yaml:"worker_http_addr"`
	WorkerPollIntervalSeconds int    `yaml:"worker_poll_interval_seconds"`
	WorkerBatchSize           int    `yaml:"worker_batch_size"`
	WorkerConcurrency         int    `yaml:"worker_concurrency"`
	WorkerLeaseSeconds        int    `yaml:"worker_lease_seconds"`
	WorkerRateLimitPerMinute  int    `yaml:"worker_rate_limit_per_minute"`

	// Worker scheduling (optional). Zero values get planner defaults:
	// moving 30..120 minutes, pending 90 minutes, backoff 5/15/30/60 minutes.
	WorkerNextCheckMovingMinSeconds int `yaml:"worker_next_check_moving_min_seconds"`
	WorkerNextCheckMovingMaxSeconds int `yaml:"worker_next_check_moving_max_seconds"`
	WorkerNextCheckPendingSeconds   int `yaml:"worker_next_check_pending_seconds"`
	WorkerBackoff1Seconds           int `yaml:"worker_backoff_1_seconds"`
	WorkerBackoff2Seconds           int `yaml:"worker_backoff_2_seconds"`
	WorkerBackoff3Seconds           int `yaml:"worker_backoff_3_seconds"`
	WorkerBackoff4Seconds           int `yaml:"worker_backoff_4_seconds"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return &config, nil
}
