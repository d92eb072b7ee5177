package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	ServiceID string
	CompanyID string

	HTTPPort int
	GRPCPort int

	StoreDriver string
	DatabaseURL string
	MaxDBConns  int32
	RedisURL    string

	KafkaBrokers       []string
	KafkaConsumerGroup string
	InboxTopicPrefix   string
	LocalEventsTopic   string
	DeadLetterTopic    string
	GatewayBufferSize  int

	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Prefix    string

	TaskServiceURL     string
	TaskServiceToken   string
	TaskRatePerSecond  float64
	TaskRetryAttempts  int
	TaskRetryBaseDelay time.Duration

	RegistrarID               string
	MaxSendPayloadBytes       int64
	UnregisteredShareProducts []string
	WSOriginPatterns          []string

	OutboxPollInterval   time.Duration
	OutboxBatchSize      int
	ConsumerPollInterval time.Duration
	ConsumerBatchSize    int
	ConsumerMaxAttempts  int
	HealthProbeInterval  time.Duration

	EventDedupTTL       time.Duration
	IdempotencyTTL      time.Duration
	CompanyNameCacheTTL time.Duration
}

type configFile struct {
	Service struct {
		ID        string `yaml:"id"`
		CompanyID string `yaml:"company_id"`
		HTTPPort  int    `yaml:"http_port"`
		GRPCPort  int    `yaml:"grpc_port"`
	} `yaml:"service"`
	Dependencies struct {
		StoreDriver        string   `yaml:"store_driver"`
		PostgresURL        string   `yaml:"postgres_url"`
		MaxDBConns         int32    `yaml:"max_db_conns"`
		RedisURL           string   `yaml:"redis_url"`
		KafkaBrokers       []string `yaml:"kafka_brokers"`
		KafkaConsumerGroup string   `yaml:"kafka_consumer_group"`
		InboxTopicPrefix   string   `yaml:"inbox_topic_prefix"`
		LocalEventsTopic   string   `yaml:"local_events_topic"`
		DeadLetterTopic    string   `yaml:"dead_letter_topic"`
		GatewayBufferSize  int      `yaml:"gateway_buffer_size"`
		S3Bucket           string   `yaml:"s3_bucket"`
		S3Region           string   `yaml:"s3_region"`
		S3Endpoint         string   `yaml:"s3_endpoint"`
		S3Prefix           string   `yaml:"s3_prefix"`
	} `yaml:"dependencies"`
	Exchange struct {
		RegistrarID               string   `yaml:"registrar_id"`
		MaxSendPayloadBytes       int64    `yaml:"max_send_payload_bytes"`
		UnregisteredShareProducts []string `yaml:"unregistered_share_products"`
		WSOriginPatterns          []string `yaml:"ws_origin_patterns"`
		OutboxPollInterval        string   `yaml:"outbox_poll_interval"`
		OutboxBatchSize           int      `yaml:"outbox_batch_size"`
		ConsumerPollInterval      string   `yaml:"consumer_poll_interval"`
		ConsumerBatchSize         int      `yaml:"consumer_batch_size"`
		ConsumerMaxAttempts       int      `yaml:"consumer_max_attempts"`
		EventDedupTTL             string   `yaml:"event_dedup_ttl"`
		IdempotencyTTL            string   `yaml:"idempotency_ttl"`
		CompanyNameCacheTTL       string   `yaml:"company_name_cache_ttl"`
	} `yaml:"exchange"`
	Tasks struct {
		ServiceURL     string  `yaml:"service_url"`
		RatePerSecond  float64 `yaml:"rate_per_second"`
		RetryAttempts  int     `yaml:"retry_attempts"`
		RetryBaseDelay string  `yaml:"retry_base_delay"`
	} `yaml:"tasks"`
}

func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:            "M32-Document-Exchange-Service",
		HTTPPort:             8080,
		GRPCPort:             9090,
		StoreDriver:          StoreDriverPostgres,
		MaxDBConns:           20,
		KafkaConsumerGroup:   "m32-document-exchange-service",
		InboxTopicPrefix:     "exchange.inbox.",
		LocalEventsTopic:     "exchange.local-events",
		DeadLetterTopic:      "exchange.dead-letter",
		GatewayBufferSize:    64,
		S3Region:             "us-east-1",
		TaskRatePerSecond:    20,
		TaskRetryAttempts:    4,
		TaskRetryBaseDelay:   200 * time.Millisecond,
		MaxSendPayloadBytes:  25 << 20,
		OutboxPollInterval:   2 * time.Second,
		OutboxBatchSize:      100,
		ConsumerPollInterval: 2 * time.Second,
		ConsumerBatchSize:    50,
		ConsumerMaxAttempts:  5,
		HealthProbeInterval:  10 * time.Second,
		EventDedupTTL:        7 * 24 * time.Hour,
		IdempotencyTTL:       7 * 24 * time.Hour,
		CompanyNameCacheTTL:  10 * time.Minute,
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		if applyErr := applyFile(&cfg, f); applyErr != nil {
			return Config{}, applyErr
		}
	}

	cfg.ServiceID = envOrDefault("SERVICE_ID", cfg.ServiceID)
	cfg.CompanyID = envOrDefault("COMPANY_ID", cfg.CompanyID)
	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.StoreDriver = strings.ToLower(envOrDefault("STORE_DRIVER", cfg.StoreDriver))
	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.KafkaBrokers = envCSV("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.KafkaConsumerGroup = envOrDefault("KAFKA_CONSUMER_GROUP", cfg.KafkaConsumerGroup)
	cfg.InboxTopicPrefix = envOrDefault("KAFKA_INBOX_TOPIC_PREFIX", cfg.InboxTopicPrefix)
	cfg.LocalEventsTopic = envOrDefault("KAFKA_LOCAL_EVENTS_TOPIC", cfg.LocalEventsTopic)
	cfg.DeadLetterTopic = envOrDefault("KAFKA_DEAD_LETTER_TOPIC", cfg.DeadLetterTopic)
	cfg.GatewayBufferSize = envInt("GATEWAY_BUFFER_SIZE", cfg.GatewayBufferSize)
	cfg.S3Bucket = envOrDefault("S3_BUCKET", cfg.S3Bucket)
	cfg.S3Region = envOrDefault("S3_REGION", cfg.S3Region)
	cfg.S3Endpoint = envOrDefault("S3_ENDPOINT", cfg.S3Endpoint)
	cfg.S3AccessKey = envOrDefault("S3_ACCESS_KEY_ID", cfg.S3AccessKey)
	cfg.S3SecretKey = envOrDefault("S3_SECRET_ACCESS_KEY", cfg.S3SecretKey)
	cfg.S3Prefix = envOrDefault("S3_PREFIX", cfg.S3Prefix)
	cfg.TaskServiceURL = envOrDefault("TASK_SERVICE_URL", cfg.TaskServiceURL)
	cfg.TaskServiceToken = envOrDefault("TASK_SERVICE_TOKEN", cfg.TaskServiceToken)
	cfg.TaskRatePerSecond = envFloat("TASK_RATE_PER_SECOND", cfg.TaskRatePerSecond)
	cfg.TaskRetryAttempts = envInt("TASK_RETRY_ATTEMPTS", cfg.TaskRetryAttempts)
	cfg.TaskRetryBaseDelay = envDuration("TASK_RETRY_BASE_DELAY", cfg.TaskRetryBaseDelay)
	cfg.RegistrarID = envOrDefault("REGISTRAR_ID", cfg.RegistrarID)
	cfg.MaxSendPayloadBytes = int64(envInt("MAX_SEND_PAYLOAD_BYTES", int(cfg.MaxSendPayloadBytes)))
	cfg.UnregisteredShareProducts = envCSV("UNREGISTERED_SHARE_PRODUCTS", cfg.UnregisteredShareProducts)
	cfg.WSOriginPatterns = envCSV("WS_ORIGIN_PATTERNS", cfg.WSOriginPatterns)
	cfg.OutboxPollInterval = envDuration("OUTBOX_POLL_INTERVAL", cfg.OutboxPollInterval)
	cfg.OutboxBatchSize = envInt("OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.ConsumerPollInterval = envDuration("CONSUMER_POLL_INTERVAL", cfg.ConsumerPollInterval)
	cfg.ConsumerBatchSize = envInt("CONSUMER_BATCH_SIZE", cfg.ConsumerBatchSize)
	cfg.ConsumerMaxAttempts = envInt("CONSUMER_MAX_ATTEMPTS", cfg.ConsumerMaxAttempts)
	cfg.HealthProbeInterval = envDuration("HEALTH_PROBE_INTERVAL", cfg.HealthProbeInterval)
	cfg.EventDedupTTL = time.Duration(envInt("EVENT_DEDUP_TTL_HOURS", int(cfg.EventDedupTTL.Hours()))) * time.Hour
	cfg.IdempotencyTTL = time.Duration(envInt("IDEMPOTENCY_TTL_HOURS", int(cfg.IdempotencyTTL.Hours()))) * time.Hour
	cfg.CompanyNameCacheTTL = envDuration("COMPANY_NAME_CACHE_TTL", cfg.CompanyNameCacheTTL)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, f configFile) error {
	if f.Service.ID != "" {
		cfg.ServiceID = f.Service.ID
	}
	if f.Service.CompanyID != "" {
		cfg.CompanyID = f.Service.CompanyID
	}
	if f.Service.HTTPPort > 0 {
		cfg.HTTPPort = f.Service.HTTPPort
	}
	if f.Service.GRPCPort > 0 {
		cfg.GRPCPort = f.Service.GRPCPort
	}

	d := f.Dependencies
	if d.StoreDriver != "" {
		cfg.StoreDriver = strings.ToLower(d.StoreDriver)
	}
	if d.PostgresURL != "" {
		cfg.DatabaseURL = d.PostgresURL
	}
	if d.MaxDBConns > 0 {
		cfg.MaxDBConns = d.MaxDBConns
	}
	cfg.RedisURL = d.RedisURL
	if len(d.KafkaBrokers) > 0 {
		cfg.KafkaBrokers = trimNonEmpty(d.KafkaBrokers)
	}
	if d.KafkaConsumerGroup != "" {
		cfg.KafkaConsumerGroup = d.KafkaConsumerGroup
	}
	if d.InboxTopicPrefix != "" {
		cfg.InboxTopicPrefix = d.InboxTopicPrefix
	}
	if d.LocalEventsTopic != "" {
		cfg.LocalEventsTopic = d.LocalEventsTopic
	}
	if d.DeadLetterTopic != "" {
		cfg.DeadLetterTopic = d.DeadLetterTopic
	}
	if d.GatewayBufferSize > 0 {
		cfg.GatewayBufferSize = d.GatewayBufferSize
	}
	cfg.S3Bucket = d.S3Bucket
	if d.S3Region != "" {
		cfg.S3Region = d.S3Region
	}
	cfg.S3Endpoint = d.S3Endpoint
	cfg.S3Prefix = d.S3Prefix

	x := f.Exchange
	if x.RegistrarID != "" {
		cfg.RegistrarID = x.RegistrarID
	}
	if x.MaxSendPayloadBytes > 0 {
		cfg.MaxSendPayloadBytes = x.MaxSendPayloadBytes
	}
	cfg.UnregisteredShareProducts = trimNonEmpty(x.UnregisteredShareProducts)
	cfg.WSOriginPatterns = trimNonEmpty(x.WSOriginPatterns)
	if x.OutboxBatchSize > 0 {
		cfg.OutboxBatchSize = x.OutboxBatchSize
	}
	if x.ConsumerBatchSize > 0 {
		cfg.ConsumerBatchSize = x.ConsumerBatchSize
	}
	if x.ConsumerMaxAttempts > 0 {
		cfg.ConsumerMaxAttempts = x.ConsumerMaxAttempts
	}
	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"exchange.outbox_poll_interval", x.OutboxPollInterval, &cfg.OutboxPollInterval},
		{"exchange.consumer_poll_interval", x.ConsumerPollInterval, &cfg.ConsumerPollInterval},
		{"exchange.event_dedup_ttl", x.EventDedupTTL, &cfg.EventDedupTTL},
		{"exchange.idempotency_ttl", x.IdempotencyTTL, &cfg.IdempotencyTTL},
		{"exchange.company_name_cache_ttl", x.CompanyNameCacheTTL, &cfg.CompanyNameCacheTTL},
		{"tasks.retry_base_delay", f.Tasks.RetryBaseDelay, &cfg.TaskRetryBaseDelay},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("parse %s: %w", d.name, err)
		}
		*d.dst = v
	}

	if f.Tasks.ServiceURL != "" {
		cfg.TaskServiceURL = f.Tasks.ServiceURL
	}
	if f.Tasks.RatePerSecond > 0 {
		cfg.TaskRatePerSecond = f.Tasks.RatePerSecond
	}
	if f.Tasks.RetryAttempts > 0 {
		cfg.TaskRetryAttempts = f.Tasks.RetryAttempts
	}
	return nil
}

func (c Config) validate() error {
	if strings.TrimSpace(c.CompanyID) == "" {
		return fmt.Errorf("missing COMPANY_ID")
	}
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("missing DB_URL/POSTGRES_URL")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("unknown store driver %q", c.StoreDriver)
	}
	if c.MaxSendPayloadBytes <= 0 {
		return fmt.Errorf("max send payload bytes must be positive")
	}
	return nil
}

func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envFloat(name string, fallback float64) float64 {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return v
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envCSV(name string, fallback []string) []string {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	items := strings.Split(raw, ",")
	return trimNonEmpty(items)
}

func trimNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
