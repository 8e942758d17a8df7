package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("DATA_BACKEND", "")

	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, BackendSQLite, cfg.Backend)
	assert.Equal(t, QueueMemory, cfg.QueueBackend)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	require.NoError(t, cfg.Validate())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("WORKER_COUNT", "2")
	t.Setenv("QUEUE_BUFFER", "not-a-number")
	t.Setenv("SHUTDOWN_TIMEOUT", "5s")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 2, cfg.WorkerCount)
	assert.Equal(t, 100, cfg.QueueBuffer)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Load()
	cfg.Port = "abc"
	cfg.Backend = BackendBigQuery
	cfg.BigQueryProject = ""
	cfg.QueueBackend = QueueRabbitMQ
	cfg.AMQPURL = "http://localhost"
	cfg.WorkerCount = 0

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "invalid port 'abc'")
	assert.Contains(t, msg, "BIGQUERY_PROJECT is required")
	assert.Contains(t, msg, "invalid AMQP URL scheme 'http'")
	assert.Contains(t, msg, "invalid worker count 0")
}

func TestValidate_UnknownBackends(t *testing.T) {
	cfg := Load()
	cfg.Backend = "postgres"
	cfg.QueueBackend = "kafka"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid data backend 'postgres'")
	assert.Contains(t, err.Error(), "invalid queue backend 'kafka'")
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("FINANCE_TEST_VALUE=from-file\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("FINANCE_TEST_VALUE") })

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-file", os.Getenv("FINANCE_TEST_VALUE"))

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env")))
}
