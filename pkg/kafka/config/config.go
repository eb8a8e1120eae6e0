package kafka_config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

var (
	compressions = []string{"none", "gzip", "snappy", "lz4", "zstd"}
	requiredAcks = []int{-1, 0, 1}
)

// Config covers both sides of the event stream: the agent produces domain
// events, the notifier consumes them.
type Config struct {
	Brokers       []string
	EventsTopic   string
	DLQTopic      string
	ConsumerGroup string

	ProducerMaxAttempts  int
	ProducerBatchTimeout time.Duration
	ProducerRequireAcks  int    // -1 = all, 0 = none, 1 = leader only
	ProducerCompression  string // one of compressions
	ProducerAsync        bool

	ConsumerStartOffset       int64 // -1 = newest, -2 = oldest
	ConsumerMinBytes          int
	ConsumerMaxBytes          int
	ConsumerMaxWait           time.Duration
	ConsumerCommitInterval    time.Duration
	ConsumerHeartbeatInterval time.Duration
	ConsumerSessionTimeout    time.Duration
	ConsumerRebalanceTimeout  time.Duration
	ConsumerMaxRetries        int

	EnableMiddleware bool
}

func Load() (*Config, error) {
	var brokers []string
	for _, b := range strings.Split(envOr(EnvKafkaBrokers, DefaultKafkaBrokers, parseString), ",") {
		brokers = append(brokers, strings.TrimSpace(b))
	}

	cfg := &Config{
		Brokers:       brokers,
		EventsTopic:   envOr(EnvKafkaEventsTopic, DefaultEventsTopic, parseString),
		DLQTopic:      envOr(EnvKafkaDLQTopic, DefaultDLQTopic, parseString),
		ConsumerGroup: envOr(EnvKafkaConsumerGroup, DefaultConsumerGroup, parseString),

		ProducerMaxAttempts:  envOr(EnvKafkaProducerMaxAttempts, DefaultProducerMaxAttempts, strconv.Atoi),
		ProducerBatchTimeout: envOr(EnvKafkaProducerBatchTimeout, DefaultProducerBatchTimeout, time.ParseDuration),
		ProducerRequireAcks:  envOr(EnvKafkaProducerRequireAcks, DefaultProducerRequireAcks, strconv.Atoi),
		ProducerCompression:  envOr(EnvKafkaProducerCompression, DefaultProducerCompression, parseString),
		ProducerAsync:        envOr(EnvKafkaProducerAsync, DefaultProducerAsync, strconv.ParseBool),

		ConsumerStartOffset:       envOr(EnvKafkaConsumerStartOffset, int64(DefaultConsumerStartOffset), parseInt64),
		ConsumerMinBytes:          envOr(EnvKafkaConsumerMinBytes, DefaultConsumerMinBytes, strconv.Atoi),
		ConsumerMaxBytes:          envOr(EnvKafkaConsumerMaxBytes, DefaultConsumerMaxBytes, strconv.Atoi),
		ConsumerMaxWait:           envOr(EnvKafkaConsumerMaxWait, DefaultConsumerMaxWait, time.ParseDuration),
		ConsumerCommitInterval:    envOr(EnvKafkaConsumerCommitInterval, DefaultConsumerCommitInterval, time.ParseDuration),
		ConsumerHeartbeatInterval: envOr(EnvKafkaConsumerHeartbeatInterval, DefaultConsumerHeartbeatInterval, time.ParseDuration),
		ConsumerSessionTimeout:    envOr(EnvKafkaConsumerSessionTimeout, DefaultConsumerSessionTimeout, time.ParseDuration),
		ConsumerRebalanceTimeout:  envOr(EnvKafkaConsumerRebalanceTimeout, DefaultConsumerRebalanceTimeout, time.ParseDuration),
		ConsumerMaxRetries:        envOr(EnvKafkaConsumerMaxRetries, DefaultConsumerMaxRetries, strconv.Atoi),

		EnableMiddleware: envOr(EnvKafkaEnableMiddleware, DefaultEnableMiddleware, strconv.ParseBool),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every violated rule at once.
func (cfg *Config) Validate() error {
	rules := []struct {
		ok  bool
		msg string
	}{
		{len(cfg.Brokers) > 0 && !slices.Contains(cfg.Brokers, ""), fmt.Sprintf("Brokers must be a list of non-empty addresses, got: %q", cfg.Brokers)},
		{cfg.EventsTopic != "", "EventsTopic cannot be empty"},
		{cfg.DLQTopic == "" || cfg.DLQTopic != cfg.EventsTopic, "DLQTopic must differ from EventsTopic"},
		{cfg.ConsumerGroup != "", "ConsumerGroup cannot be empty"},
		{cfg.ProducerMaxAttempts > 0, fmt.Sprintf("ProducerMaxAttempts must be positive, got: %d", cfg.ProducerMaxAttempts)},
		{cfg.ProducerBatchTimeout > 0, fmt.Sprintf("ProducerBatchTimeout must be positive, got: %s", cfg.ProducerBatchTimeout)},
		{slices.Contains(compressions, cfg.ProducerCompression), fmt.Sprintf("ProducerCompression must be one of %v, got: %s", compressions, cfg.ProducerCompression)},
		{slices.Contains(requiredAcks, cfg.ProducerRequireAcks), fmt.Sprintf("ProducerRequireAcks must be one of %v, got: %d", requiredAcks, cfg.ProducerRequireAcks)},
		{cfg.ConsumerStartOffset == -1 || cfg.ConsumerStartOffset == -2, fmt.Sprintf("ConsumerStartOffset must be -1 (newest) or -2 (oldest), got: %d", cfg.ConsumerStartOffset)},
		{cfg.ConsumerMinBytes > 0, fmt.Sprintf("ConsumerMinBytes must be positive, got: %d", cfg.ConsumerMinBytes)},
		{cfg.ConsumerMaxBytes >= cfg.ConsumerMinBytes, fmt.Sprintf("ConsumerMaxBytes (%d) must be >= ConsumerMinBytes (%d)", cfg.ConsumerMaxBytes, cfg.ConsumerMinBytes)},
		{cfg.ConsumerMaxWait > 0, fmt.Sprintf("ConsumerMaxWait must be positive, got: %s", cfg.ConsumerMaxWait)},
		{cfg.ConsumerCommitInterval > 0, fmt.Sprintf("ConsumerCommitInterval must be positive, got: %s", cfg.ConsumerCommitInterval)},
		{cfg.ConsumerHeartbeatInterval > 0, fmt.Sprintf("ConsumerHeartbeatInterval must be positive, got: %s", cfg.ConsumerHeartbeatInterval)},
		{cfg.ConsumerSessionTimeout > cfg.ConsumerHeartbeatInterval, fmt.Sprintf("ConsumerSessionTimeout (%s) must exceed ConsumerHeartbeatInterval (%s)", cfg.ConsumerSessionTimeout, cfg.ConsumerHeartbeatInterval)},
		{cfg.ConsumerRebalanceTimeout > 0, fmt.Sprintf("ConsumerRebalanceTimeout must be positive, got: %s", cfg.ConsumerRebalanceTimeout)},
		{cfg.ConsumerMaxRetries >= 0, fmt.Sprintf("ConsumerMaxRetries cannot be negative, got: %d", cfg.ConsumerMaxRetries)},
	}

	var errs []error
	for _, r := range rules {
		if !r.ok {
			errs = append(errs, errors.New(r.msg))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid kafka configuration: %w", errors.Join(errs...))
	}
	return nil
}

func (cfg *Config) LogConfiguration(logFunc func(msg string, args ...any)) {
	if logFunc == nil {
		return
	}

	logFunc("Kafka configuration loaded",
		"brokers", cfg.Brokers,
		"events_topic", cfg.EventsTopic,
		"dlq_topic", cfg.DLQTopic,
		"consumer_group", cfg.ConsumerGroup,
		"producer_require_acks", cfg.ProducerRequireAcks,
		"producer_compression", cfg.ProducerCompression,
		"producer_async", cfg.ProducerAsync,
		"consumer_start_offset", cfg.ConsumerStartOffset,
		"consumer_max_retries", cfg.ConsumerMaxRetries,
		"enable_middleware", cfg.EnableMiddleware,
	)
}

// envOr parses the variable key, falling back to def when it is unset or
// does not parse.
func envOr[T any](key string, def T, parse func(string) (T, error)) T {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return def
	}
	v, err := parse(raw)
	if err != nil {
		return def
	}
	return v
}

func parseString(s string) (string, error) { return s, nil }

func parseInt64(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) }
