package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the ingestion service. Values come from
// config.yaml with environment variable overrides; secrets (PGPASSWORD,
// KOBO_API_TOKEN) must only come from environment variables.
type Config struct {
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"0.0.0.0"`
	Port     string `yaml:"port" env:"PORT" env-default:"8000"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // set at load time from the build

	// MigrationsPath is where the bundled SQL migrations live.
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`

	// MappingPath optionally points at a YAML field-mapping table that
	// overrides or extends the built-in Kobo mapping. Empty means
	// built-in only.
	MappingPath string `yaml:"mapping_path" env:"MAPPING_PATH" env-default:""`

	Database DatabaseConfig `yaml:"database"`
	Kobo     KoboConfig     `yaml:"kobo"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"kobo"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"kobo_ingest"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"10"`
}

// KoboConfig holds settings for the forms platform API (pull adapter and
// webhook registration).
type KoboConfig struct {
	// APIURL is the paginated data endpoint for the survey asset.
	APIURL string `yaml:"api_url" env:"KOBO_API_URL" env-default:""`

	// APIToken authenticates against the forms API. Secret - env only.
	APIToken string `yaml:"-" env:"KOBO_API_TOKEN"`

	// Language is sent as the django_language cookie.
	Language string `yaml:"language" env:"DJANGO_LANGUAGE" env-default:"en"`

	// PageSize is the number of records requested per page.
	PageSize int `yaml:"page_size" env:"PAGE_SIZE" env-default:"100"`

	// FetchTimeoutSeconds bounds each page fetch. The upstream tool has
	// no server-side limit, so an unset timeout can hang a run forever.
	FetchTimeoutSeconds int `yaml:"fetch_timeout_seconds" env:"KOBO_FETCH_TIMEOUT_SECONDS" env-default:"30"`

	// WebhookRegistrationURL is the forms-platform endpoint that accepts
	// webhook registrations for the asset.
	WebhookRegistrationURL string `yaml:"webhook_registration_url" env:"WEBHOOK_REGISTRATION_URL" env-default:""`

	// WebhookURL is the public URL of this service's /webhook endpoint.
	WebhookURL string `yaml:"webhook_url" env:"WEBHOOK_URL" env-default:""`
}

// FetchTimeout returns the page-fetch timeout as a duration.
func (k *KoboConfig) FetchTimeout() time.Duration {
	return time.Duration(k.FetchTimeoutSeconds) * time.Second
}

// Load reads configuration from config.yaml with environment variable
// overrides. When no config.yaml exists, configuration comes from the
// environment alone.
func Load(version string) (*Config, error) {
	cfg := &Config{Version: version}

	err := cleanenv.ReadConfig("config.yaml", cfg)
	if os.IsNotExist(err) {
		err = cleanenv.ReadEnv(cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// ConnectionString returns a PostgreSQL connection URL for pgx and
// database/sql.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}
