package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config top-level struct
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Outbox    OutboxConfig    `yaml:"outbox"`
	Geocoder  GeocoderConfig  `yaml:"geocoder"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// RedisConfig configures the distance cache. An empty Addr disables it.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type KafkaConfig struct {
	Brokers        []string      `yaml:"brokers"`
	PublishTimeout time.Duration `yaml:"publish_timeout"`
	Topics         TopicConfig   `yaml:"topics"`
}

// TopicConfig names the topic each aggregate family is published to.
type TopicConfig struct {
	Warehouse               string `yaml:"warehouse"`
	Factory                 string `yaml:"factory"`
	Counterpart             string `yaml:"counterpart"`
	SiteCounterpartDistance string `yaml:"site_counterpart_distance"`
	SiteFactoryDistance     string `yaml:"site_factory_distance"`
}

type OutboxConfig struct {
	PollInterval  time.Duration `yaml:"poll_interval"`
	BatchSize     int           `yaml:"batch_size"`
	MaxRetryCount int           `yaml:"max_retry_count"`
	Workers       int           `yaml:"workers"`
	ClaimTTL      time.Duration `yaml:"claim_ttl"`
}

type GeocoderConfig struct {
	KakaoAPIKey string        `yaml:"kakao_api_key"`
	BaseURL     string        `yaml:"base_url"`
	Timeout     time.Duration `yaml:"timeout"`
	RPS         int           `yaml:"rps"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type RateLimitConfig struct {
	RPS   int `yaml:"rps"`
	Burst int `yaml:"burst"`
}

const (
	DefaultPollInterval   = time.Second
	DefaultBatchSize      = 10
	DefaultMaxRetryCount  = 10
	DefaultWorkers        = 1
	DefaultClaimTTL       = 2 * time.Minute
	DefaultPublishTimeout = 30 * time.Second
	DefaultCacheTTL       = 5 * time.Minute
)

// Path returns the config file location, honouring CONFIG_PATH.
func Path() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "internal/config/config.yaml"
}

// Load reads yaml file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes raw yaml, applies env overrides and fills defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	// override secrets from env if present
	if pw := os.Getenv("POSTGRES_PASSWORD"); pw != "" {
		cfg.Postgres.DSN = cfg.Postgres.DSN + " password=" + pw
	}
	if key := os.Getenv("KAKAO_API_KEY"); key != "" {
		cfg.Geocoder.KakaoAPIKey = key
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Redis.TTL <= 0 {
		c.Redis.TTL = DefaultCacheTTL
	}
	if c.Kafka.PublishTimeout <= 0 {
		c.Kafka.PublishTimeout = DefaultPublishTimeout
	}
	t := &c.Kafka.Topics
	if t.Warehouse == "" {
		t.Warehouse = "warehouse-events"
	}
	if t.Factory == "" {
		t.Factory = "factory-events"
	}
	if t.Counterpart == "" {
		t.Counterpart = "counterpart-events"
	}
	if t.SiteCounterpartDistance == "" {
		t.SiteCounterpartDistance = "site-counterpart-distance-events"
	}
	if t.SiteFactoryDistance == "" {
		t.SiteFactoryDistance = "site-factory-distance-events"
	}
	if c.Outbox.PollInterval <= 0 {
		c.Outbox.PollInterval = DefaultPollInterval
	}
	if c.Outbox.BatchSize <= 0 {
		c.Outbox.BatchSize = DefaultBatchSize
	}
	if c.Outbox.MaxRetryCount <= 0 {
		c.Outbox.MaxRetryCount = DefaultMaxRetryCount
	}
	if c.Outbox.Workers <= 0 {
		c.Outbox.Workers = DefaultWorkers
	}
	if c.Outbox.ClaimTTL <= 0 {
		c.Outbox.ClaimTTL = DefaultClaimTTL
	}
	if c.Geocoder.Timeout <= 0 {
		c.Geocoder.Timeout = 5 * time.Second
	}
	if c.Geocoder.RPS <= 0 {
		c.Geocoder.RPS = 10
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9100"
	}
	if c.RateLimit.RPS <= 0 {
		c.RateLimit.RPS = 50
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = 100
	}
}
