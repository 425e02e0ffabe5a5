package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/permtrackhq/permtrack/pkg/validator"
)

// Config represents the runtime configuration for the PERM tracker engine.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Email     EmailConfig     `mapstructure:"email"`
	Push      PushConfig      `mapstructure:"push"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Retention RetentionConfig `mapstructure:"retention"`
}

// ServerConfig configures the operational HTTP server.
type ServerConfig struct {
	Port        int    `mapstructure:"port" json:"port" validate:"min=1,max=65535"`
	LogLevel    string `mapstructure:"log_level"`
	LogEncoding string `mapstructure:"log_encoding"`
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
	Host     string            `mapstructure:"host"`
	Port     int               `mapstructure:"port"`
	Database string            `mapstructure:"database"`
	Username string            `mapstructure:"username"`
	Password string            `mapstructure:"password"`
	Options  map[string]string `mapstructure:"options"`
}

// EmailConfig captures outbound email settings.
type EmailConfig struct {
	SMTP SMTPConfig `mapstructure:"smtp"`
}

// SMTPConfig defines SMTP dialer settings for sending email.
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

// PushConfig defines Web Push (VAPID) settings.
type PushConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	VAPIDPublicKey  string `mapstructure:"vapid_public_key"`
	VAPIDPrivateKey string `mapstructure:"vapid_private_key"`
	Subscriber      string `mapstructure:"subscriber" json:"subscriber" validate:"omitempty,email|uri"`
	TTLSeconds      int    `mapstructure:"ttl_seconds"`
}

// ScheduleConfig holds the cron expressions for the background jobs.
type ScheduleConfig struct {
	Reminders string `mapstructure:"reminders"`
	Digest    string `mapstructure:"digest"`
	Retention string `mapstructure:"retention"`
}

// RetentionConfig bounds the notification retention sweep.
type RetentionConfig struct {
	Days      int `mapstructure:"days" json:"days" validate:"min=1"`
	BatchSize int `mapstructure:"batch_size" json:"batch_size" validate:"min=1,max=1000"`
}

// LoadConfig initialises configuration using Viper with sensible defaults.
// Values come from ./config/config.yaml (or the supplied paths) overlaid with
// PERMTRACK_-prefixed environment variables.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("PERMTRACK")
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

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate applies structural and cross-field checks.
func (c *Config) Validate() error {
	if err := validator.ValidateStruct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Push.Enabled {
		if strings.TrimSpace(c.Push.VAPIDPublicKey) == "" || strings.TrimSpace(c.Push.VAPIDPrivateKey) == "" {
			return errors.New("config: push.vapid_public_key and push.vapid_private_key must be set when push is enabled")
		}
	}
	if c.Email.SMTP.Enabled && strings.TrimSpace(c.Email.SMTP.Host) == "" {
		return errors.New("config: email.smtp.host must be set when smtp is enabled")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8600)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_encoding", "json")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/permtrack.sqlite")

	v.SetDefault("email.smtp.enabled", false)
	v.SetDefault("email.smtp.host", "")
	v.SetDefault("email.smtp.port", 587)
	v.SetDefault("email.smtp.use_tls", true)
	v.SetDefault("email.smtp.timeout", "10s")

	v.SetDefault("push.enabled", false)
	v.SetDefault("push.ttl_seconds", 43200)

	v.SetDefault("schedule.reminders", "0 9 * * *")
	v.SetDefault("schedule.digest", "0 13 * * 1")
	v.SetDefault("schedule.retention", "@daily")

	v.SetDefault("retention.days", 90)
	v.SetDefault("retention.batch_size", 1000)
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
