// Package config loads runtime configuration for the server and the admin CLI.
//
// SOURCES, LOWEST PRIORITY FIRST:
//  1. Defaults set in Load
//  2. An optional YAML/TOML/JSON file passed with --config
//  3. Environment variables (the names deployment platforms already use,
//     e.g. PORT, DATABASE_DSN, FIREBASE_PROJECT_ID)
//
// Everything is read once at startup into a plain struct. Nothing else in the
// app touches viper or os.Getenv.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port               int
	Env                string // "development" or "production"
	Timezone           string // IANA name; record dates are pinned to noon here
	ExposeErrorDetails bool   // echo 5xx causes in response bodies

	Database DatabaseConfig
	Log      LogConfig
	Firebase FirebaseConfig
}

type DatabaseConfig struct {
	Driver          string // sqlite, postgres or mysql
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	SlowThreshold   time.Duration
	LogQueries      bool
}

type LogConfig struct {
	Level      string
	Format     string // text or json
	File       string // optional rotated log file
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// FirebaseConfig carries the identity-provider settings.
//
// ProjectID alone is enough to verify ID tokens. ClientEmail and PrivateKey
// (a service account) are only needed when CheckRevoked is on. WebAPIKey and
// AuthDomain are public values handed to the browser sign-in page.
type FirebaseConfig struct {
	ProjectID    string
	ClientEmail  string
	PrivateKey   string
	CheckRevoked bool
	WebAPIKey    string
	AuthDomain   string
}

var envBindings = map[string]string{
	"port":                   "PORT",
	"env":                    "APP_ENV",
	"timezone":               "TIMEZONE",
	"expose_error_details":   "EXPOSE_ERROR_DETAILS",
	"database.driver":        "DATABASE_DRIVER",
	"database.dsn":           "DATABASE_DSN",
	"database.max_open":      "DATABASE_MAX_OPEN_CONNS",
	"database.max_idle":      "DATABASE_MAX_IDLE_CONNS",
	"database.max_lifetime":  "DATABASE_CONN_MAX_LIFETIME",
	"database.slow":          "DATABASE_SLOW_THRESHOLD",
	"database.log_queries":   "DATABASE_LOG_QUERIES",
	"log.level":              "LOG_LEVEL",
	"log.format":             "LOG_FORMAT",
	"log.file":               "LOG_FILE",
	"log.max_size_mb":        "LOG_MAX_SIZE_MB",
	"log.max_backups":        "LOG_MAX_BACKUPS",
	"log.max_age_days":       "LOG_MAX_AGE_DAYS",
	"firebase.project_id":    "FIREBASE_PROJECT_ID",
	"firebase.client_email":  "FIREBASE_CLIENT_EMAIL",
	"firebase.private_key":   "FIREBASE_PRIVATE_KEY",
	"firebase.check_revoked": "FIREBASE_CHECK_REVOKED",
	"firebase.web_api_key":   "FIREBASE_WEB_API_KEY",
	"firebase.auth_domain":   "FIREBASE_AUTH_DOMAIN",
}

// Load reads configuration. path may be empty, in which case only defaults
// and the environment are used.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("port", 8080)
	v.SetDefault("env", "development")
	v.SetDefault("timezone", "Local")
	v.SetDefault("expose_error_details", false)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "data/invigorate.db")
	v.SetDefault("database.max_open", 10)
	v.SetDefault("database.max_idle", 5)
	v.SetDefault("database.max_lifetime", time.Hour)
	v.SetDefault("database.slow", 500*time.Millisecond)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 28)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("config: binding %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	cfg := &Config{
		Port:               v.GetInt("port"),
		Env:                strings.ToLower(strings.TrimSpace(v.GetString("env"))),
		Timezone:           v.GetString("timezone"),
		ExposeErrorDetails: v.GetBool("expose_error_details"),
		Database: DatabaseConfig{
			Driver:          strings.ToLower(v.GetString("database.driver")),
			DSN:             v.GetString("database.dsn"),
			MaxOpenConns:    v.GetInt("database.max_open"),
			MaxIdleConns:    v.GetInt("database.max_idle"),
			ConnMaxLifetime: v.GetDuration("database.max_lifetime"),
			SlowThreshold:   v.GetDuration("database.slow"),
			LogQueries:      v.GetBool("database.log_queries"),
		},
		Log: LogConfig{
			Level:      v.GetString("log.level"),
			Format:     v.GetString("log.format"),
			File:       v.GetString("log.file"),
			MaxSizeMB:  v.GetInt("log.max_size_mb"),
			MaxBackups: v.GetInt("log.max_backups"),
			MaxAgeDays: v.GetInt("log.max_age_days"),
		},
		Firebase: FirebaseConfig{
			ProjectID:    strings.TrimSpace(v.GetString("firebase.project_id")),
			ClientEmail:  strings.TrimSpace(v.GetString("firebase.client_email")),
			PrivateKey:   normalizePrivateKey(v.GetString("firebase.private_key")),
			CheckRevoked: v.GetBool("firebase.check_revoked"),
			WebAPIKey:    v.GetString("firebase.web_api_key"),
			AuthDomain:   v.GetString("firebase.auth_domain"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: PORT %d out of range", c.Port)
	}
	switch c.Database.Driver {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("config: unsupported DATABASE_DRIVER %q (want sqlite, postgres or mysql)", c.Database.Driver)
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("config: DATABASE_DSN is empty")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// IsProduction controls the Secure flag on the session cookie.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Location is the zone used for noon-pinned record dates and week boundaries.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// normalizePrivateKey undoes the "\n" escaping hosting dashboards apply to
// multi-line PEM values.
func normalizePrivateKey(key string) string {
	key = strings.Trim(strings.TrimSpace(key), `"`)
	return strings.TrimSpace(strings.ReplaceAll(key, `\n`, "\n"))
}
