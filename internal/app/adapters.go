package app

import (
	"strings"

	"github.com/bbab/servicecenter/internal/auth"
	"github.com/bbab/servicecenter/internal/database"
	"github.com/bbab/servicecenter/pkg/mail"
)

// SMTPSettings converts the email section into mailer settings.
func (c EmailConfig) SMTPSettings() mail.SMTPSettings {
	return mail.SMTPSettings{
		Enabled:  c.SMTP.Enabled,
		Host:     strings.TrimSpace(c.SMTP.Host),
		Port:     c.SMTP.Port,
		Username: c.SMTP.Username,
		Password: c.SMTP.Password,
		From:     strings.TrimSpace(c.SMTP.From),
		UseTLS:   c.SMTP.UseTLS,
		Timeout:  c.SMTP.Timeout,
	}
}

// CapabilityConfig converts the portal section into capability service config.
func (c PortalConfig) CapabilityConfig() auth.CapabilityConfig {
	return auth.CapabilityConfig{
		Secret: strings.TrimSpace(c.Secret),
		Issuer: strings.TrimSpace(c.Issuer),
		TTL:    c.TTL,
	}
}

// DatabaseConfig converts the database section into connection options.
func (c DatabaseConfig) DatabaseConfig() database.Config {
	cfg := database.Config{
		Driver: strings.ToLower(strings.TrimSpace(c.Driver)),
		Path:   strings.TrimSpace(c.Path),
		DSN:    strings.TrimSpace(c.DSN),
	}

	switch cfg.Driver {
	case "", "sqlite":
		cfg.Driver = "sqlite"
	case "postgres", "postgresql":
		cfg.Driver = "postgres"
		cfg.Host = strings.TrimSpace(c.Postgres.Host)
		cfg.Port = c.Postgres.Port
		cfg.Name = strings.TrimSpace(c.Postgres.Database)
		cfg.User = strings.TrimSpace(c.Postgres.Username)
		cfg.Password = strings.TrimSpace(c.Postgres.Password)
	case "mysql":
		cfg.Host = strings.TrimSpace(c.MySQL.Host)
		cfg.Port = c.MySQL.Port
		cfg.Name = strings.TrimSpace(c.MySQL.Database)
		cfg.User = strings.TrimSpace(c.MySQL.Username)
		cfg.Password = strings.TrimSpace(c.MySQL.Password)
	default:
		// Leave driver as-is to surface unsupported driver error during open.
	}

	return cfg
}
