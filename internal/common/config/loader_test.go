// internal/common/config/loader_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
database:
  postgres:
    host: "localhost"
    port: 5432
    database: "transactions"
    user: "postgres"
  redis:
    address: "localhost:6379"
`)

	cfg, err := LoadFromFile(path)

	require.NoError(t, err)
	assert.Equal(t, 3600, cfg.Scheduler.ScanInterval)
	assert.Equal(t, 300, cfg.Scheduler.DispatchInterval)
	assert.Equal(t, 86400, cfg.Scheduler.JanitorInterval)
	assert.Equal(t, 50, cfg.Notifications.DispatchBatch)
	assert.Equal(t, 5, cfg.Notifications.MaxSendRetries)
	assert.Equal(t, 15000, cfg.Notifications.SendTimeout)
	assert.Equal(t, 48, cfg.Notifications.DraftTTLHours)
	assert.Equal(t, "America/New_York", cfg.Notifications.DefaultTimezone)
	assert.Equal(t, "communications", cfg.Database.Elasticsearch.FeedIndex)
	assert.Equal(t, ":8085", cfg.HTTP.Address)
}

func TestLoadFromFile_MissingRequiredFields(t *testing.T) {
	path := writeConfigFile(t, `
database:
  postgres:
    host: "localhost"
`)

	_, err := LoadFromFile(path)

	assert.Error(t, err)
}

func TestLoadFromFile_SESRequiresFromEmail(t *testing.T) {
	path := writeConfigFile(t, `
database:
  postgres:
    host: "localhost"
    database: "transactions"
    user: "postgres"
  redis:
    address: "localhost:6379"
integrations:
  aws:
    ses:
      enabled: true
`)

	_, err := LoadFromFile(path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "from_email")
}

func TestGetDurationAndInterval(t *testing.T) {
	assert.Equal(t, 15*time.Second, GetDuration(15000))
	assert.Equal(t, time.Hour, GetInterval(3600))
}

func TestPostgresConfig_GetDSN(t *testing.T) {
	cfg := PostgresConfig{
		Host: "db", Port: 5432, User: "app", Password: "secret",
		Database: "transactions", SSLMode: "disable",
	}
	assert.Equal(t,
		"host=db port=5432 user=app password=secret dbname=transactions sslmode=disable",
		cfg.GetDSN(),
	)
}
