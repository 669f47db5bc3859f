package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ErrInvalid marks missing or malformed configuration, settings or account files
var ErrInvalid = errors.New("invalid configuration")

// State backends
const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendGCS      = "gcs"
)

// Notifiers
const (
	NotifierTwilio   = "twilio"
	NotifierTelegram = "telegram"
	NotifierLog      = "log"
)

// Config application configuration
type Config struct {
	// Files
	AccountsFile string `env:"MAILPAGER_ACCOUNTS_FILE" envDefault:"accountNames.yaml"`
	SettingsFile string `env:"MAILPAGER_SETTINGS_FILE" envDefault:"environment.yaml"`

	// State
	StateBackend string `env:"MAILPAGER_STATE_BACKEND" envDefault:"file"`
	DatabasePath string `env:"MAILPAGER_DATABASE_PATH" envDefault:"./data/mailpager.db"`
	DatabaseURL  string `env:"MAILPAGER_DATABASE_URL"` // postgres DSN
	GCSBucket    string `env:"MAILPAGER_GCS_BUCKET"`
	GCSObject    string `env:"MAILPAGER_GCS_OBJECT" envDefault:"accountNames.yaml"`

	// Notification
	Notifier       string `env:"MAILPAGER_NOTIFIER" envDefault:"twilio"`
	TelegramToken  string `env:"MAILPAGER_TELEGRAM_TOKEN"`
	TelegramChatID int64  `env:"MAILPAGER_TELEGRAM_CHAT_ID"`

	// Email
	IMAPDialTimeout time.Duration `env:"MAILPAGER_IMAP_DIAL_TIMEOUT" envDefault:"30s"`
	ScanTimeout     time.Duration `env:"MAILPAGER_SCAN_TIMEOUT" envDefault:"2m"`

	// Credentials
	KeyringService string `env:"MAILPAGER_KEYRING_SERVICE" envDefault:"mailpager"`

	// Logging
	LogLevel  string `env:"MAILPAGER_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"MAILPAGER_LOG_FORMAT" envDefault:"text"` // "json" or "text"

	DryRun bool `env:"MAILPAGER_DRY_RUN"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %w", ErrInvalid, err)
	}

	return cfg, nil
}

// Validate checks values that depend on each other
func (c *Config) Validate() error {
	c.StateBackend = strings.ToLower(strings.TrimSpace(c.StateBackend))
	c.Notifier = strings.ToLower(strings.TrimSpace(c.Notifier))
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "warning" {
		c.LogLevel = "warn"
	}

	switch c.StateBackend {
	case BackendFile:
		if c.AccountsFile == "" {
			return fmt.Errorf("%w: accounts file is required for the file backend", ErrInvalid)
		}
	case BackendSQLite:
		if c.DatabasePath == "" {
			return fmt.Errorf("%w: MAILPAGER_DATABASE_PATH is required for the sqlite backend", ErrInvalid)
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("%w: MAILPAGER_DATABASE_URL is required for the postgres backend", ErrInvalid)
		}
	case BackendGCS:
		if c.GCSBucket == "" || c.GCSObject == "" {
			return fmt.Errorf("%w: MAILPAGER_GCS_BUCKET and MAILPAGER_GCS_OBJECT are required for the gcs backend", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown state backend %q", ErrInvalid, c.StateBackend)
	}

	switch c.Notifier {
	case NotifierTwilio, NotifierLog:
	case NotifierTelegram:
		if c.TelegramToken == "" || c.TelegramChatID == 0 {
			return fmt.Errorf("%w: MAILPAGER_TELEGRAM_TOKEN and MAILPAGER_TELEGRAM_CHAT_ID are required for the telegram notifier", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown notifier %q", ErrInvalid, c.Notifier)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: invalid log level %q", ErrInvalid, c.LogLevel)
	}

	if c.IMAPDialTimeout <= 0 || c.ScanTimeout <= 0 {
		return fmt.Errorf("%w: timeouts must be positive", ErrInvalid)
	}

	return nil
}
