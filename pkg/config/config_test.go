package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const baseConfig = `
environment: test
server:
  port: 8080
  read_timeout: 10s
  write_timeout: 10s
  shutdown_timeout: 5s
logging:
  level: debug
  format: json
engine:
  max_duration: 5s
  remain_delay_quarters: 4
audit:
  backend: none
cache:
  enabled: true
  backend: memory
  ttl: 5m
`

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, baseConfig))
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.Environment)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Engine.MaxDuration)
	assert.Equal(t, 4, cfg.Engine.RemainDelayQuarters)
	assert.Equal(t, "none", cfg.Audit.Backend)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateAuditBackends(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Audit.Backend = "postgres" },
			wantErr: "audit.backend",
		},
		{
			name:    "kafka without brokers",
			mutate:  func(c *Config) { c.Audit.Backend = "kafka" },
			wantErr: "kafka.brokers",
		},
		{
			name: "kafka without topic",
			mutate: func(c *Config) {
				c.Audit.Backend = "kafka"
				c.Kafka.Brokers = []string{"localhost:9092"}
			},
			wantErr: "kafka.topic",
		},
		{
			name:    "clickhouse without host",
			mutate:  func(c *Config) { c.Audit.Backend = "clickhouse" },
			wantErr: "clickhouse.host",
		},
		{
			name: "redis cache without addr",
			mutate: func(c *Config) {
				c.Cache.Enabled = true
				c.Cache.Backend = "redis"
			},
			wantErr: "cache.redis.addr",
		},
		{
			name:    "negative engine budget",
			mutate:  func(c *Config) { c.Engine.MaxDuration = -time.Second },
			wantErr: "engine.max_duration",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, baseConfig))
			require.NoError(t, err)

			tc.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("AUDIT_BACKEND", "kafka")
	t.Setenv("KAFKA_BROKERS", "b1:9092,b2:9092")
	t.Setenv("KAFKA_TOPIC", "reserve-audit")
	t.Setenv("REDIS_ADDR", "redis:6379")

	cfg, err := LoadWithEnv(writeConfig(t, baseConfig))
	require.NoError(t, err)

	assert.Equal(t, "kafka", cfg.Audit.Backend)
	assert.Equal(t, []string{"b1:9092", "b2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "reserve-audit", cfg.Kafka.Topic)
	assert.Equal(t, "redis:6379", cfg.Cache.Redis.Addr)
}
