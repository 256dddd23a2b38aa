package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const DefaultSecret = "default-secret"

var (
	ErrAPIBaseURLRequired      = errors.New("api base url is required")
	ErrInvalidAPIBaseURL       = errors.New("api base url must be an absolute http or https url")
	ErrAPITokensRequired       = errors.New("api tokens are required when the survey api is enabled")
	ErrInvalidSessionTTL       = errors.New("session ttl must be positive")
	ErrInvalidScopeCache       = errors.New("scope cache size must be positive")
	ErrMigrationSourceRequired = errors.New("migration source is required when a database url is set")
)

type Config struct {
	Debug bool   `yaml:"debug" env:"DEBUG"`
	Host  string `yaml:"host" env:"HOST"`
	Port  string `yaml:"port" env:"PORT"`

	Secret           string   `yaml:"secret" env:"SECRET"`
	OtelCollectorUrl string   `yaml:"otel_collector_url" env:"OTEL_COLLECTOR_URL"`
	AllowOrigins     []string `yaml:"allow_origins" env:"ALLOW_ORIGINS" envSeparator:","`

	// Widget host
	APIBaseURL     string        `yaml:"api_base_url" env:"API_BASE_URL"`
	SessionTTL     time.Duration `yaml:"session_ttl" env:"SESSION_TTL"`
	ScopeCacheSize int           `yaml:"scope_cache_size" env:"SCOPE_CACHE_SIZE"`
	SubmitRetries  uint          `yaml:"submit_retries" env:"SUBMIT_RETRIES"`

	// Survey API
	SurveyDir        string        `yaml:"survey_dir" env:"SURVEY_DIR"`
	APITokens        []string      `yaml:"api_tokens" env:"API_TOKENS" envSeparator:","`
	ResponseTokenTTL time.Duration `yaml:"response_token_ttl" env:"RESPONSE_TOKEN_TTL"`
	DatabaseURL      string        `yaml:"database_url" env:"DATABASE_URL"`
	MigrationSource  string        `yaml:"migration_source" env:"MIGRATION_SOURCE"`
	NATSURL          string        `yaml:"nats_url" env:"NATS_URL"`
}

// Override is applied after every other source, typically from command line flags.
type Override func(*Config)

func Default() Config {
	return Config{
		Host:             "localhost",
		Port:             "8080",
		Secret:           DefaultSecret,
		APIBaseURL:       "https://app.opineeo.com/api/survey/v0",
		SessionTTL:       10 * time.Minute,
		ScopeCacheSize:   256,
		SubmitRetries:    3,
		ResponseTokenTTL: 24 * time.Hour,
		MigrationSource:  "file://internal/database/migrations",
	}
}

// Load builds the configuration from, in order: defaults, the yaml file named
// by CONFIG_FILE (config.yaml if unset), a .env file, the environment and the
// overrides. Messages are buffered in the returned LogBuffer since no logger
// exists yet.
func Load(overrides ...Override) (Config, *LogBuffer) {
	cfg := Default()
	logs := &LogBuffer{}

	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		path = "config.yaml"
	}
	err := cfg.loadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logs.Debug("No config file found, skipping", zap.String("path", path))
	case err != nil:
		logs.Warn("Failed to load config file", zap.String("path", path), zap.Error(err))
	default:
		logs.Info("Loaded config file", zap.String("path", path))
	}

	err = godotenv.Load()
	if err != nil {
		logs.Debug("No .env file loaded", zap.Error(err))
	}

	err = env.Parse(&cfg)
	if err != nil {
		logs.Warn("Failed to parse environment variables", zap.Error(err))
	}

	for _, o := range overrides {
		o(&cfg)
	}

	cfg.AllowOrigins = trimAll(cfg.AllowOrigins)
	cfg.APITokens = trimAll(cfg.APITokens)
	return cfg, logs
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c Config) Validate() error {
	if c.APIBaseURL == "" {
		return ErrAPIBaseURLRequired
	}
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: %q", ErrInvalidAPIBaseURL, c.APIBaseURL)
	}
	if c.SessionTTL <= 0 {
		return ErrInvalidSessionTTL
	}
	if c.ScopeCacheSize <= 0 {
		return ErrInvalidScopeCache
	}
	if c.SurveyDir != "" && len(c.APITokens) == 0 {
		return ErrAPITokensRequired
	}
	if c.DatabaseURL != "" && c.MigrationSource == "" {
		return ErrMigrationSourceRequired
	}
	return nil
}

func (c Config) SurveyAPIEnabled() bool {
	return c.SurveyDir != ""
}

func trimAll(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
