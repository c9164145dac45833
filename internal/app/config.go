package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config represents the runtime configuration for the service center backend.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Email      EmailConfig      `mapstructure:"email"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Sweeps     SweepsConfig     `mapstructure:"sweeps"`
	Portal     PortalConfig     `mapstructure:"portal"`
	Uptime     UptimeConfig     `mapstructure:"uptime"`
	SSL        SSLConfig        `mapstructure:"ssl"`
	Backup     BackupConfig     `mapstructure:"backup"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver   string       `mapstructure:"driver"`
	Path     string       `mapstructure:"path"`
	DSN      string       `mapstructure:"dsn"`
	Postgres DBAuthConfig `mapstructure:"postgres"`
	MySQL    DBAuthConfig `mapstructure:"mysql"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// CacheConfig selects the snapshot cache backend.
type CacheConfig struct {
	Backend string `mapstructure:"backend"` // database or memory
}

// EmailConfig captures outbound email settings.
type EmailConfig struct {
	SMTP SMTPConfig `mapstructure:"smtp"`
}

// SMTPConfig defines SMTP dialer settings for sending alert email.
type SMTPConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	From     string        `mapstructure:"from"`
	UseTLS   bool          `mapstructure:"use_tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// MonitoringConfig enables health checks and metrics.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

// PrometheusConfig toggles metrics endpoints.
type PrometheusConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// SweepsConfig groups the two scheduled jobs.
type SweepsConfig struct {
	Health HealthSweepConfig `mapstructure:"health"`
	Timers TimerSweepConfig  `mapstructure:"timers"`
}

// HealthSweepConfig configures the external-health collection sweep.
type HealthSweepConfig struct {
	Schedule    string        `mapstructure:"schedule"`
	Stagger     time.Duration `mapstructure:"stagger"`
	Cutoff      time.Duration `mapstructure:"cutoff"`
	SnapshotTTL time.Duration `mapstructure:"snapshot_ttl"`
}

// TimerSweepConfig configures the forgotten-timer alerting sweep.
type TimerSweepConfig struct {
	Schedule   string        `mapstructure:"schedule"`
	Threshold  time.Duration `mapstructure:"threshold"`
	Recipients []string      `mapstructure:"recipients"`
	BaseURL    string        `mapstructure:"base_url"`
}

// PortalConfig configures capability tokens for the client portal.
type PortalConfig struct {
	Secret string        `mapstructure:"secret"`
	Issuer string        `mapstructure:"issuer"`
	TTL    time.Duration `mapstructure:"token_ttl"`
}

// UptimeConfig configures the uptime SaaS client.
type UptimeConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SSLConfig configures the certificate inspector.
type SSLConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// BackupConfig configures the object-storage client used for backup checks.
type BackupConfig struct {
	Endpoint  string        `mapstructure:"endpoint"`
	Region    string        `mapstructure:"region"`
	AccessKey string        `mapstructure:"access_key"`
	SecretKey string        `mapstructure:"secret_key"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("BBAB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

// Validate rejects configurations that cannot produce a working runtime.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	switch strings.ToLower(strings.TrimSpace(c.Cache.Backend)) {
	case "", "database", "memory":
	default:
		return fmt.Errorf("cache.backend must be database or memory (got %q)", c.Cache.Backend)
	}

	if c.Sweeps.Health.Stagger < 0 {
		return errors.New("sweeps.health.stagger must not be negative")
	}
	if c.Sweeps.Health.Cutoff <= 0 {
		return errors.New("sweeps.health.cutoff must be positive")
	}
	if c.Sweeps.Health.SnapshotTTL <= 0 {
		return errors.New("sweeps.health.snapshot_ttl must be positive")
	}
	if c.Sweeps.Timers.Threshold <= 0 {
		return errors.New("sweeps.timers.threshold must be positive")
	}

	if c.Email.SMTP.Enabled {
		if strings.TrimSpace(c.Email.SMTP.Host) == "" {
			return errors.New("email.smtp.host must be configured when smtp is enabled")
		}
		if strings.TrimSpace(c.Email.SMTP.From) == "" {
			return errors.New("email.smtp.from must be configured when smtp is enabled")
		}
		if len(c.Sweeps.Timers.Recipients) == 0 {
			return errors.New("sweeps.timers.recipients must be configured when smtp is enabled")
		}
	}

	if strings.TrimSpace(c.Portal.Secret) != "" && c.Portal.TTL <= 0 {
		return errors.New("portal.token_ttl must be positive when portal.secret is set")
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/servicecenter.sqlite")

	v.SetDefault("cache.backend", "database")

	v.SetDefault("email.smtp.enabled", false)
	v.SetDefault("email.smtp.host", "")
	v.SetDefault("email.smtp.port", 587)
	v.SetDefault("email.smtp.use_tls", true)
	v.SetDefault("email.smtp.timeout", "10s")

	v.SetDefault("monitoring.prometheus.enabled", true)

	v.SetDefault("sweeps.health.schedule", "@hourly")
	v.SetDefault("sweeps.health.stagger", "500ms")
	v.SetDefault("sweeps.health.cutoff", "4m")
	v.SetDefault("sweeps.health.snapshot_ttl", "90m")

	v.SetDefault("sweeps.timers.schedule", "@every 30m")
	v.SetDefault("sweeps.timers.threshold", "4h")
	v.SetDefault("sweeps.timers.base_url", "http://localhost:8080")

	v.SetDefault("portal.issuer", "bbab-servicecenter")
	v.SetDefault("portal.token_ttl", "12h")

	v.SetDefault("uptime.base_url", "https://api.uptimerobot.com/v2")
	v.SetDefault("uptime.timeout", "15s")

	v.SetDefault("ssl.timeout", "10s")

	v.SetDefault("backup.region", "us-east-1")
	v.SetDefault("backup.timeout", "30s")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
