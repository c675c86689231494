package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_DefaultsWithEnvOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "operator-secret")
	t.Setenv("MAIL_DRIVER", "log")
	t.Setenv("MAIL_SEND_INTERVAL", "0s")
	t.Setenv("QR_SIZE", "512")
	t.Setenv("RATE_LIMIT_LOGIN_PER_MINUTE", "10")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "RECPTNOV2025", cfg.Ticket.DefaultEvent)
	assert.Equal(t, "payant", cfg.Ticket.DefaultType)
	assert.Equal(t, 365*24*time.Hour, cfg.Ticket.TokenTTL)
	assert.Equal(t, 45*time.Second, cfg.Mail.SendTimeout)
	assert.Equal(t, time.Duration(0), cfg.Mail.SendInterval)
	assert.Equal(t, 512, cfg.QR.Size)
	assert.Equal(t, time.Minute, cfg.Redis.LockTTL)
	assert.Equal(t, 15*time.Second, cfg.Locks.Heartbeat)
	assert.Equal(t, 10, cfg.RateLimit.LoginPerMinute)
	assert.Equal(t, 300, cfg.RateLimit.APIPerMinute)
	assert.Equal(t, "operator-secret", cfg.TicketTokenSecret())
}

func TestLoadConfig_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
server:
  port: "9090"
  mode: production
jwt:
  secret: yaml-secret
ticket:
  token_secret: ticket-secret
  token_ttl: 720h
  default_event: GALA2026
mail:
  driver: smtp
  host: smtp.example.org
  from_email: billetterie@example.org
  send_timeout: 30s
redis:
  url: redis://localhost:6379/0
locks:
  heartbeat: 5s
rate_limit:
  api_per_minute: 0
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "ticket-secret", cfg.TicketTokenSecret())
	assert.Equal(t, 720*time.Hour, cfg.Ticket.TokenTTL)
	assert.Equal(t, "GALA2026", cfg.Ticket.DefaultEvent)
	assert.Equal(t, 30*time.Second, cfg.Mail.SendTimeout)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
	assert.Equal(t, 5*time.Second, cfg.Locks.Heartbeat)
	assert.Zero(t, cfg.RateLimit.APIPerMinute)
}

func TestLoadConfig_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{
			name: "missing jwt secret",
			env:  map[string]string{"MAIL_DRIVER": "log"},
			want: "JWT secret is required",
		},
		{
			name: "smtp without host",
			env:  map[string]string{"JWT_SECRET": "s", "MAIL_DRIVER": "smtp"},
			want: "mail host is required",
		},
		{
			name: "unknown ticket type",
			env:  map[string]string{"JWT_SECRET": "s", "MAIL_DRIVER": "log", "TICKET_DEFAULT_TYPE": "student"},
			want: "unknown default ticket type",
		},
		{
			name: "bad duration",
			env:  map[string]string{"JWT_SECRET": "s", "MAIL_DRIVER": "log", "TICKET_TOKEN_TTL": "one year"},
			want: "invalid duration format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "")
			os.Unsetenv("JWT_SECRET")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := LoadConfig(filepath.Join(t.TempDir(), "none.yaml"))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, ".env", "CAMPUSPASS_DOTENV_PROBE=loaded\n")
	t.Cleanup(func() { os.Unsetenv("CAMPUSPASS_DOTENV_PROBE") })

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "loaded", os.Getenv("CAMPUSPASS_DOTENV_PROBE"))

	assert.NoError(t, LoadDotEnv(filepath.Join(dir, "absent.env")))
	assert.NoError(t, LoadDotEnv(""))
}
