package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: INFO
http_address: ":9000"
db_driver: sqlite3
db_address: "file:tasks.db"
timezone: Europe/Berlin
dispatch:
  interval: 10s
  max_attempts: 3
notify:
  provider: sendgrid
  from: reminders@example.com
  sendgrid:
    api_key: sg-key
auth:
  mode: header
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, ":9000", cfg.HTTPAddress)
	assert.Equal(t, ":8081", cfg.GRPCAddress)
	assert.Equal(t, "sqlite3", cfg.DBDriver)
	assert.Equal(t, 10*time.Second, cfg.Dispatch.Interval)
	assert.Equal(t, 3, cfg.Dispatch.MaxAttempts)
	assert.Equal(t, 100, cfg.Dispatch.BatchSize)
	assert.Equal(t, "sendgrid", cfg.Notify.Provider)
	assert.Equal(t, "sg-key", cfg.Notify.SendGrid.APIKey)
	assert.Equal(t, uint32(5), cfg.Notify.Breaker.MaxFailures)
	assert.Equal(t, "header", cfg.Auth.Mode)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", loc.String())

	dc := cfg.Dispatch.Core()
	assert.Equal(t, 2*time.Minute, dc.ClaimTTL)
}

func TestLoad_MissingFileFallsBackToEnv(t *testing.T) {
	t.Setenv("DB_ADDRESS", "postgres://localhost/tasks")
	t.Setenv("AUTH_JWT_SECRET", "s3cret")
	t.Setenv("DISPATCH_BATCH_SIZE", "7")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "pgx", cfg.DBDriver)
	assert.Equal(t, "postgres://localhost/tasks", cfg.DBAddress)
	assert.Equal(t, "jwt", cfg.Auth.Mode)
	assert.Equal(t, 7, cfg.Dispatch.BatchSize)
	assert.Equal(t, "log", cfg.Notify.Provider)
	assert.Equal(t, "UTC", cfg.Timezone)
}

func TestLoad_ClaimTTLCoversAttempt(t *testing.T) {
	t.Setenv("DB_ADDRESS", "x")
	t.Setenv("AUTH_MODE", "header")
	t.Setenv("DISPATCH_SEND_TIMEOUT", "30s")
	t.Setenv("DISPATCH_STORE_TIMEOUT", "5s")
	t.Setenv("DISPATCH_CLAIM_TTL", "51s")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 50*time.Second, cfg.Dispatch.Core().MinClaimTTL())
	assert.Equal(t, 51*time.Second, cfg.Dispatch.Core().ClaimTTL)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"no db address", map[string]string{"AUTH_MODE": "header"}},
		{"jwt without secret", map[string]string{"DB_ADDRESS": "x"}},
		{"unknown driver", map[string]string{"DB_ADDRESS": "x", "AUTH_MODE": "header", "DB_DRIVER": "mysql"}},
		{"bad timezone", map[string]string{"DB_ADDRESS": "x", "AUTH_MODE": "header", "TIMEZONE": "Mars/Olympus"}},
		{"unknown provider", map[string]string{"DB_ADDRESS": "x", "AUTH_MODE": "header", "NOTIFY_PROVIDER": "fax"}},
		{"claim ttl too short", map[string]string{"DB_ADDRESS": "x", "AUTH_MODE": "header", "DISPATCH_CLAIM_TTL": "10s"}},
		{"claim ttl below send and store budget", map[string]string{
			"DB_ADDRESS": "x", "AUTH_MODE": "header",
			"DISPATCH_SEND_TIMEOUT": "30s", "DISPATCH_STORE_TIMEOUT": "5s", "DISPATCH_CLAIM_TTL": "45s",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			require.Error(t, err)
		})
	}
}
