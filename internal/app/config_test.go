package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join("testdata")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)

	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, "db.example.com", cfg.Database.Postgres.Host)
	require.Equal(t, 5433, cfg.Database.Postgres.Port)

	require.Equal(t, "memory", cfg.Cache.Backend)

	require.True(t, cfg.Email.SMTP.Enabled)
	require.Equal(t, "smtp.example.com", cfg.Email.SMTP.Host)
	require.Equal(t, 2525, cfg.Email.SMTP.Port)
	require.Equal(t, 15*time.Second, cfg.Email.SMTP.Timeout)

	require.False(t, cfg.Monitoring.Prometheus.Enabled)

	require.Equal(t, "@every 15m", cfg.Sweeps.Health.Schedule)
	require.Equal(t, 250*time.Millisecond, cfg.Sweeps.Health.Stagger)
	require.Equal(t, 2*time.Minute, cfg.Sweeps.Health.Cutoff)
	require.Equal(t, 45*time.Minute, cfg.Sweeps.Health.SnapshotTTL)

	require.Equal(t, "@every 10m", cfg.Sweeps.Timers.Schedule)
	require.Equal(t, 6*time.Hour, cfg.Sweeps.Timers.Threshold)
	require.Equal(t, []string{"ops@example.com", "oncall@example.com"}, cfg.Sweeps.Timers.Recipients)
	require.Equal(t, "https://center.example.com", cfg.Sweeps.Timers.BaseURL)

	require.Equal(t, "portal-secret", cfg.Portal.Secret)
	require.Equal(t, 4*time.Hour, cfg.Portal.TTL)

	require.Equal(t, "https://uptime.example.com/v2", cfg.Uptime.BaseURL)
	require.Equal(t, 5*time.Second, cfg.Uptime.Timeout)
	require.Equal(t, 3*time.Second, cfg.SSL.Timeout)
	require.Equal(t, "eu-central-1", cfg.Backup.Region)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, "database", cfg.Cache.Backend)
	require.Equal(t, "@hourly", cfg.Sweeps.Health.Schedule)
	require.Equal(t, 500*time.Millisecond, cfg.Sweeps.Health.Stagger)
	require.Equal(t, 4*time.Minute, cfg.Sweeps.Health.Cutoff)
	require.Equal(t, 90*time.Minute, cfg.Sweeps.Health.SnapshotTTL)
	require.Equal(t, 4*time.Hour, cfg.Sweeps.Timers.Threshold)
	require.Equal(t, 12*time.Hour, cfg.Portal.TTL)
	require.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	cfg.Cache.Backend = "redis"
	require.Error(t, cfg.Validate())
	cfg.Cache.Backend = "database"

	cfg.Sweeps.Health.Cutoff = 0
	require.Error(t, cfg.Validate())
	cfg.Sweeps.Health.Cutoff = time.Minute

	cfg.Email.SMTP.Enabled = true
	require.Error(t, cfg.Validate())
	cfg.Email.SMTP.Host = "smtp.example.com"
	cfg.Email.SMTP.From = "alerts@example.com"
	require.Error(t, cfg.Validate())
	cfg.Sweeps.Timers.Recipients = []string{"ops@example.com"}
	require.NoError(t, cfg.Validate())
}

func TestConfigAdapters(t *testing.T) {
	cfg := Config{
		Email: EmailConfig{
			SMTP: SMTPConfig{
				Enabled: true,
				Host:    " smtp.example.com ",
				Port:    2525,
				From:    " alerts@example.com ",
				UseTLS:  true,
				Timeout: 10 * time.Second,
			},
		},
		Portal: PortalConfig{
			Secret: " portal-secret ",
			Issuer: "issuer",
			TTL:    time.Hour,
		},
		Database: DatabaseConfig{
			Driver: "PostgreSQL",
			Postgres: DBAuthConfig{
				Host:     "db.example.com",
				Port:     5432,
				Database: "svc",
				Username: "svc",
				Password: "pw",
			},
		},
	}

	settings := cfg.Email.SMTPSettings()
	require.True(t, settings.Enabled)
	require.Equal(t, "smtp.example.com", settings.Host)
	require.Equal(t, "alerts@example.com", settings.From)

	capCfg := cfg.Portal.CapabilityConfig()
	require.Equal(t, "portal-secret", capCfg.Secret)
	require.Equal(t, time.Hour, capCfg.TTL)

	dbCfg := cfg.Database.DatabaseConfig()
	require.Equal(t, "postgres", dbCfg.Driver)
	require.Equal(t, "db.example.com", dbCfg.Host)
	require.Equal(t, "svc", dbCfg.Name)
}
