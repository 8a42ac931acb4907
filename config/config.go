// Package config loads the server configuration from the environment.
//
// Values come from, lowest precedence first: built-in defaults, a .env file
// (if present) and process environment variables. cmd/server applies its
// command-line flags on top.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port      int    `mapstructure:"ARTSIA_PORT"`
	DBPath    string `mapstructure:"ARTSIA_DB_PATH"`
	LogLevel  string `mapstructure:"ARTSIA_LOG_LEVEL"`
	LogPretty bool   `mapstructure:"ARTSIA_LOG_PRETTY"`

	SessionTTL  time.Duration `mapstructure:"ARTSIA_SESSION_TTL"`
	CORSOrigins []string      `mapstructure:"ARTSIA_CORS_ORIGINS"`

	// Maintenance
	PushRetention       time.Duration `mapstructure:"ARTSIA_PUSH_RETENTION"`
	MaintenanceInterval time.Duration `mapstructure:"ARTSIA_MAINTENANCE_INTERVAL"`

	// Web Push (VAPID). Push delivery is disabled when either key is empty.
	VAPIDPublicKey  string        `mapstructure:"ARTSIA_VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string        `mapstructure:"ARTSIA_VAPID_PRIVATE_KEY"`
	VAPIDSubject    string        `mapstructure:"ARTSIA_VAPID_SUBJECT"`
	PushTimeout     time.Duration `mapstructure:"ARTSIA_PUSH_TIMEOUT"`

	// Email through SES. Disabled when EmailSender is empty.
	EmailSender string `mapstructure:"ARTSIA_EMAIL_SENDER"`
	AWSRegion   string `mapstructure:"ARTSIA_AWS_REGION"`
	AWSEndpoint string `mapstructure:"ARTSIA_AWS_ENDPOINT"`

	// Bootstrap admin, created on startup when no employee has the email.
	AdminName     string `mapstructure:"ARTSIA_ADMIN_NAME"`
	AdminEmail    string `mapstructure:"ARTSIA_ADMIN_EMAIL"`
	AdminPassword string `mapstructure:"ARTSIA_ADMIN_PASSWORD"`
}

var defaults = map[string]any{
	"ARTSIA_PORT":                 8080,
	"ARTSIA_DB_PATH":              "artsia.db",
	"ARTSIA_LOG_LEVEL":            "info",
	"ARTSIA_LOG_PRETTY":           false,
	"ARTSIA_SESSION_TTL":          7 * 24 * time.Hour,
	"ARTSIA_CORS_ORIGINS":         []string{"http://localhost:5173", "http://localhost:8080"},
	"ARTSIA_PUSH_RETENTION":       60 * 24 * time.Hour,
	"ARTSIA_MAINTENANCE_INTERVAL": time.Hour,
	"ARTSIA_VAPID_PUBLIC_KEY":     "",
	"ARTSIA_VAPID_PRIVATE_KEY":    "",
	"ARTSIA_VAPID_SUBJECT":        "mailto:hr@artsia.it",
	"ARTSIA_PUSH_TIMEOUT":         10 * time.Second,
	"ARTSIA_EMAIL_SENDER":         "",
	"ARTSIA_AWS_REGION":           "eu-south-1",
	"ARTSIA_AWS_ENDPOINT":         "",
	"ARTSIA_ADMIN_NAME":           "Amministratore",
	"ARTSIA_ADMIN_EMAIL":          "",
	"ARTSIA_ADMIN_PASSWORD":       "",
}

// Load reads the configuration. envFile names an optional dotenv file; a
// missing file is not an error.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.CORSOrigins = splitOrigins(cfg.CORSOrigins)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later at startup.
func (c Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("ARTSIA_PORT out of range: %d", c.Port))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("ARTSIA_DB_PATH is empty"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("ARTSIA_SESSION_TTL must be positive"))
	}
	if c.MaintenanceInterval <= 0 {
		errs = append(errs, errors.New("ARTSIA_MAINTENANCE_INTERVAL must be positive"))
	}
	if c.PushRetention <= 0 {
		errs = append(errs, errors.New("ARTSIA_PUSH_RETENTION must be positive"))
	}
	if (c.VAPIDPublicKey == "") != (c.VAPIDPrivateKey == "") {
		errs = append(errs, errors.New("ARTSIA_VAPID_PUBLIC_KEY and ARTSIA_VAPID_PRIVATE_KEY must be set together"))
	}
	if (c.AdminEmail == "") != (c.AdminPassword == "") {
		errs = append(errs, errors.New("ARTSIA_ADMIN_EMAIL and ARTSIA_ADMIN_PASSWORD must be set together"))
	}
	return errors.Join(errs...)
}

// PushEnabled reports whether VAPID keys are configured.
func (c Config) PushEnabled() bool { return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != "" }

// EmailEnabled reports whether decision emails should be sent.
func (c Config) EmailEnabled() bool { return c.EmailSender != "" }

// splitOrigins accepts both a decoded list and a single comma separated entry.
func splitOrigins(in []string) []string {
	var out []string
	for _, entry := range in {
		for _, o := range strings.Split(entry, ",") {
			if o = strings.TrimSpace(o); o != "" {
				out = append(out, o)
			}
		}
	}
	return out
}
