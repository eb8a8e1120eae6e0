package kafka_config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"localhost:9092"}, cfg.Brokers)
	assert.Equal(t, DefaultEventsTopic, cfg.EventsTopic)
	assert.Equal(t, int64(-2), cfg.ConsumerStartOffset)
	assert.True(t, cfg.EnableMiddleware)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv(EnvKafkaBrokers, " kafka-1:9092 , kafka-2:9092 ")
	t.Setenv(EnvKafkaProducerBatchTimeout, "25ms")
	t.Setenv(EnvKafkaConsumerStartOffset, "-1")
	t.Setenv(EnvKafkaConsumerMaxRetries, "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Brokers)
	assert.Equal(t, 25*time.Millisecond, cfg.ProducerBatchTimeout)
	assert.Equal(t, int64(-1), cfg.ConsumerStartOffset)
	assert.Equal(t, DefaultConsumerMaxRetries, cfg.ConsumerMaxRetries, "unparsable values fall back to the default")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr []string
	}{
		{"empty broker", func(c *Config) { c.Brokers = []string{"kafka:9092", ""} }, []string{"Brokers"}},
		{"dlq equals events topic", func(c *Config) { c.DLQTopic = c.EventsTopic }, []string{"DLQTopic must differ"}},
		{"bad compression", func(c *Config) { c.ProducerCompression = "brotli" }, []string{"ProducerCompression"}},
		{"bad acks", func(c *Config) { c.ProducerRequireAcks = 2 }, []string{"ProducerRequireAcks"}},
		{"explicit offset", func(c *Config) { c.ConsumerStartOffset = 42 }, []string{"ConsumerStartOffset"}},
		{
			name: "every violation is reported",
			mutate: func(c *Config) {
				c.ConsumerGroup = ""
				c.ConsumerSessionTimeout = c.ConsumerHeartbeatInterval
			},
			wantErr: []string{"ConsumerGroup", "ConsumerSessionTimeout"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)
			tt.mutate(cfg)

			err = cfg.Validate()
			require.Error(t, err)
			for _, want := range tt.wantErr {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}
