package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StorePostgres, cfg.Store.Backend)
	assert.Equal(t, EvaluationInline, cfg.Evaluation.Mode)
	assert.Equal(t, 4, cfg.Evaluation.Workers)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, "", cfg.Redis.Addr)
	assert.Equal(t, time.Duration(0), cfg.Simulator.Interval)
	assert.Equal(t, "Village Reservoir", cfg.Simulator.Location)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, []string{"*"}, cfg.HTTP.AllowedOrigins)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("EVALUATION_MODE", "kafka")
	t.Setenv("EVALUATION_WORKERS", "8")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("HTTP_ALLOWED_ORIGINS", "http://localhost:5173")
	t.Setenv("KAFKA_PUBLISH_ALERTS", "true")
	t.Setenv("SIMULATOR_INTERVAL", "15s")
	t.Setenv("REDIS_CACHE_TTL", "not-a-duration")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreMemory, cfg.Store.Backend)
	assert.Equal(t, EvaluationKafka, cfg.Evaluation.Mode)
	assert.Equal(t, 8, cfg.Evaluation.Workers)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.HTTP.AllowedOrigins)
	assert.True(t, cfg.Kafka.PublishAlerts)
	assert.Equal(t, 15*time.Second, cfg.Simulator.Interval)
	assert.Equal(t, 30*time.Second, cfg.Redis.CacheTTL, "unparsable values fall back to the default")
}

func TestLoad_RejectsUnknownModes(t *testing.T) {
	t.Setenv("EVALUATION_MODE", "batch")
	_, err := Load()
	assert.ErrorContains(t, err, "EVALUATION_MODE")
}

func TestValidate_RejectsUnknownBackend(t *testing.T) {
	cfg := &Config{
		Store:      StoreConfig{Backend: "sqlite"},
		Evaluation: EvaluationConfig{Mode: EvaluationInline, Workers: 1},
	}
	assert.ErrorContains(t, cfg.Validate(), "STORE_BACKEND")
}

func TestDatabaseConfig_ConnectionString(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", DBName: "water", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=water sslmode=disable", d.ConnectionString())
}
