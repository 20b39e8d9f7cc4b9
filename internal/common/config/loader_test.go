package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfigYAML = `
app:
  name: loan-intake
  version: 1.2.0
http:
  address: ":9090"
database:
  postgres:
    host: localhost
    database: loans
    user: loan_app
    password: ${LOAN_TEST_DB_PASSWORD}
  redis:
    address: localhost:6379
  elasticsearch:
    addresses:
      - http://localhost:9200
storage:
  endpoint: localhost:9000
workers:
  send-notification:
    enabled: true
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_AppliesDefaultsAndExpandsEnv(t *testing.T) {
	t.Setenv("LOAN_TEST_DB_PASSWORD", "s3cret")

	cfg, err := LoadFromFile(writeConfig(t, testConfigYAML))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTP.Address)
	assert.Equal(t, "s3cret", cfg.Database.Postgres.Password)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)
	assert.Equal(t, "loan_applications", cfg.Database.Elasticsearch.Index)
	assert.Equal(t, "loan-documents", cfg.Storage.Bucket)
	assert.Equal(t, "loan-application-review", cfg.Camunda.ReviewProcessID)
	assert.Equal(t, 7*24*time.Hour, cfg.Cache.DraftTTLDuration())

	worker := cfg.Workers["send-notification"]
	assert.True(t, worker.Enabled)
	assert.Equal(t, 5, worker.MaxJobsActive)
	assert.Equal(t, 3, worker.MaxRetries)
}

func TestLoadFromFile_MissingRequired(t *testing.T) {
	_, err := LoadFromFile(writeConfig(t, "app:\n  name: loan-intake\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.postgres.host is required")
}

func TestLoadFromFile_CamundaRequiresBroker(t *testing.T) {
	body := testConfigYAML + "camunda:\n  enabled: true\n"
	_, err := LoadFromFile(writeConfig(t, body))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "camunda.broker_address")
}

func TestGetWorkerConfig_Fallback(t *testing.T) {
	cfg := &Config{Workers: map[string]WorkerConfig{}}
	wc := GetWorkerConfig(cfg, "unknown")
	assert.True(t, wc.Enabled)
	assert.Equal(t, 30000, wc.Timeout)
	assert.Equal(t, 1500*time.Millisecond, GetDuration(1500))
}
