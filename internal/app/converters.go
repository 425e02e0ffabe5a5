package app

import (
	"strings"

	"github.com/permtrackhq/permtrack/internal/database"
	"github.com/permtrackhq/permtrack/internal/notify"
	"github.com/permtrackhq/permtrack/pkg/mail"
)

// SMTPSettings converts EmailConfig to the mail package representation.
func (c EmailConfig) SMTPSettings() mail.SMTPSettings {
	return mail.SMTPSettings{
		Enabled:  c.SMTP.Enabled,
		Host:     c.SMTP.Host,
		Port:     c.SMTP.Port,
		Username: c.SMTP.Username,
		Password: c.SMTP.Password,
		From:     c.SMTP.From,
		UseTLS:   c.SMTP.UseTLS,
		Timeout:  c.SMTP.Timeout,
	}
}

// PushClientConfig converts PushConfig to the notify package representation.
func (c PushConfig) PushClientConfig() notify.PushConfig {
	return notify.PushConfig{
		Enabled:         c.Enabled,
		VAPIDPublicKey:  strings.TrimSpace(c.VAPIDPublicKey),
		VAPIDPrivateKey: strings.TrimSpace(c.VAPIDPrivateKey),
		Subscriber:      strings.TrimSpace(c.Subscriber),
		TTLSeconds:      c.TTLSeconds,
	}
}

// DatabaseSettings converts DatabaseConfig to the database package
// representation, normalising the driver name.
func (c DatabaseConfig) DatabaseSettings() database.Config {
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
		cfg.Password = c.Postgres.Password
		cfg.Options = c.Postgres.Options
	case "mysql":
		cfg.Host = strings.TrimSpace(c.MySQL.Host)
		cfg.Port = c.MySQL.Port
		cfg.Name = strings.TrimSpace(c.MySQL.Database)
		cfg.User = strings.TrimSpace(c.MySQL.Username)
		cfg.Password = c.MySQL.Password
		cfg.Options = c.MySQL.Options
	}

	return cfg
}
