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
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(configPathEnv, "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Scan.TopK)
	assert.InDelta(t, 0.3, cfg.Scan.SimilarityFloor, 1e-9)
	assert.Equal(t, 64, cfg.Embedding.BatchSize)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Len(t, cfg.Sources, 2)
	assert.Equal(t, time.UTC.String(), cfg.Scheduler.Location().String())
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: memory
scheduler:
  cronExpression: "*/30 * * * *"
  timezone: Europe/Moscow
scan:
  topK: 3
  workers: 2
  oracleTimeout: 15s
lock:
  driver: local
sources:
  - name: custom
    scanner: html
    url: https://example.org/news
    options:
      item: li.news
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, "*/30 * * * *", cfg.Scheduler.CronExpression)
	assert.Equal(t, "Europe/Moscow", cfg.Scheduler.Location().String())
	assert.Equal(t, 3, cfg.Scan.TopK)
	assert.InDelta(t, 0.3, cfg.Scan.SimilarityFloor, 1e-9, "untouched fields keep defaults")
	assert.Equal(t, 15*time.Second, cfg.Scan.OracleTimeout)
	require.Len(t, cfg.Sources, 1)
	assert.Equal(t, "li.news", cfg.Sources[0].Options["item"])
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, "database:\n  dsn: postgres://file\n")
	t.Setenv(configPathEnv, path)
	t.Setenv(databaseDSNEnv, "postgres://env")
	t.Setenv(llmAPIKeyEnv, "sk-llm")
	t.Setenv(embeddingKeyEnv, "sk-emb")
	t.Setenv(logLevelEnv, "DEBUG")
	t.Setenv(redisAddrEnv, "localhost:6379")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "postgres://env", cfg.Database.DSN)
	assert.Equal(t, "sk-llm", cfg.LLM.APIKey)
	assert.Equal(t, "sk-emb", cfg.Embedding.APIKey)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "localhost:6379", cfg.Lock.RedisAddr)
}

func TestLoadUnknownTimezoneFallsBack(t *testing.T) {
	path := writeConfig(t, "scheduler:\n  timezone: Mars/Olympus\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "UTC", cfg.Scheduler.Location().String())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown database", func(c *Config) { c.Database.Driver = "mongo" }, "unknown database.driver"},
		{"postgres lock on memory store", func(c *Config) { c.Database.Driver = "memory" }, "lock.driver postgres"},
		{"redis without addr", func(c *Config) { c.Lock.Driver = "redis" }, "lock.redisAddr"},
		{"zero topK", func(c *Config) { c.Scan.TopK = 0 }, "scan.topK"},
		{"zero workers", func(c *Config) { c.Scan.Workers = 0 }, "scan.workers"},
		{"floor out of range", func(c *Config) { c.Scan.SimilarityFloor = 2 }, "scan.similarityFloor"},
		{"incomplete source", func(c *Config) { c.Sources = []SourceConfig{{Name: "x"}} }, "sources[0]"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig()
			tc.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tc.want)
		})
	}

	assert.NoError(t, defaultConfig().Validate())
}

func TestTelegramEnabled(t *testing.T) {
	assert.False(t, TelegramConfig{BotToken: "t"}.Enabled())
	assert.True(t, TelegramConfig{BotToken: "t", ChatID: "c"}.Enabled())
}
