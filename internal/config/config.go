// Package config loads the medharvest configuration. Precedence is
// environment (MEDHARVEST_*) over config file over built-in defaults;
// .env files are loaded into the environment first. Defaults reference
// the constants of the packages that own them, so changing a package
// default changes the configured default too.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"golang.org/x/text/language"

	"github.com/seekmed/medharvest"
	"github.com/seekmed/medharvest/internal/actionapi"
	"github.com/seekmed/medharvest/internal/transport"
	"github.com/seekmed/medharvest/internal/wdqs"
	"github.com/seekmed/medharvest/pkg/errors"
	"github.com/seekmed/medharvest/pkg/harvest"
	"github.com/seekmed/medharvest/pkg/logging"
	"github.com/seekmed/medharvest/pkg/pacing"
	"github.com/seekmed/medharvest/pkg/reconcile"
	"github.com/seekmed/medharvest/pkg/sparql"
)

// Config is the full configuration surface of the harvester.
type Config struct {
	API        APIConfig         `mapstructure:"api"`
	Harvest    HarvestConfig     `mapstructure:"harvest"`
	Backoff    BackoffConfig     `mapstructure:"backoff"`
	Store      StoreConfig       `mapstructure:"store"`
	Languages  []string          `mapstructure:"languages"`
	Properties map[string]string `mapstructure:"properties"`
	Catalog    string            `mapstructure:"catalog"`
	Logging    LoggingConfig     `mapstructure:"logging"`
}

// APIConfig identifies the remote endpoints and how to talk to them.
type APIConfig struct {
	SPARQLEndpoint string        `mapstructure:"sparql_endpoint"`
	ActionEndpoint string        `mapstructure:"action_endpoint"`
	UserAgent      string        `mapstructure:"user_agent"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// HarvestConfig tunes traversal sizes and pacing.
type HarvestConfig struct {
	PageSize        int           `mapstructure:"page_size"`
	ChunkSize       int           `mapstructure:"chunk_size"`
	MaxRetries      int           `mapstructure:"max_retries"`
	MaxEmptyPages   int           `mapstructure:"max_empty_pages"`
	MinCallInterval time.Duration `mapstructure:"min_call_interval"`
	PageWait        time.Duration `mapstructure:"page_wait"`
	ChunkWait       time.Duration `mapstructure:"chunk_wait"`
	CategoryWait    time.Duration `mapstructure:"category_wait"`
}

// BackoffConfig tunes the per-class retry wait curves.
type BackoffConfig struct {
	RetryBase     time.Duration `mapstructure:"retry_base"`
	RateLimitBase time.Duration `mapstructure:"rate_limit_base"`
	OverloadBase  time.Duration `mapstructure:"overload_base"`
	NetworkBase   time.Duration `mapstructure:"network_base"`
	MaxWait       time.Duration `mapstructure:"max_wait"`
}

// StoreConfig selects and addresses the database.
type StoreConfig struct {
	Driver     string `mapstructure:"driver"`
	DSN        string `mapstructure:"dsn"`
	CASRetries int    `mapstructure:"cas_retries"`
}

// LoggingConfig mirrors the logging package's configuration surface.
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Format  string `mapstructure:"format"`
	Output  string `mapstructure:"output"`
	NoColor bool   `mapstructure:"no_color"`
}

// ToLogging converts to the logging package's config type.
func (c LoggingConfig) ToLogging() *logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = c.Level
	cfg.Format = c.Format
	cfg.Output = c.Output
	if c.NoColor {
		cfg.NoColor = true
	}
	return cfg
}

// Load reads configuration from path, or from medharvest.yaml in the
// working directory or the home directory when path is empty. An
// explicitly named file must exist; the searched one may be absent.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("MEDHARVEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.NewConfigError("config", "reading "+path, err)
		}
	} else {
		v.SetConfigName("medharvest")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, errors.NewConfigError("config", "reading config file", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.NewConfigError("config", "decoding configuration", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.sparql_endpoint", wdqs.DefaultEndpoint)
	v.SetDefault("api.action_endpoint", actionapi.DefaultEndpoint)
	v.SetDefault("api.user_agent", transport.DefaultUserAgent)
	v.SetDefault("api.timeout", transport.DefaultTimeout)

	v.SetDefault("harvest.page_size", harvest.DefaultPageSize)
	v.SetDefault("harvest.chunk_size", harvest.DefaultChunkSize)
	v.SetDefault("harvest.max_retries", pacing.DefaultMaxRetries)
	v.SetDefault("harvest.max_empty_pages", harvest.DefaultMaxEmptyPages)
	v.SetDefault("harvest.min_call_interval", time.Second)
	v.SetDefault("harvest.page_wait", medharvest.DefaultPageWait)
	v.SetDefault("harvest.chunk_wait", medharvest.DefaultChunkWait)
	v.SetDefault("harvest.category_wait", medharvest.DefaultCategoryWait)

	v.SetDefault("backoff.retry_base", pacing.DefaultRetryBase)
	v.SetDefault("backoff.rate_limit_base", pacing.DefaultRateLimitBase)
	v.SetDefault("backoff.overload_base", pacing.DefaultOverloadBase)
	v.SetDefault("backoff.network_base", pacing.DefaultNetworkBase)
	v.SetDefault("backoff.max_wait", pacing.DefaultMaxWait)

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "medharvest.db")
	v.SetDefault("store.cas_retries", reconcile.DefaultCASRetries)

	v.SetDefault("languages", sparql.DefaultLanguages)
	v.SetDefault("properties", actionapi.DefaultProperties)
	v.SetDefault("catalog", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "auto")
	v.SetDefault("logging.output", "stderr")
}

// loadEnvFiles loads .env files into the environment. .env.local wins
// over .env; real environment variables win over both.
func loadEnvFiles() {
	for _, envFile := range []string{".env", ".env.local"} {
		_ = godotenv.Load(envFile)
	}
}

var propertyPattern = regexp.MustCompile(`^P\d+$`)

// Validate rejects configurations that would misbehave at runtime
// rather than letting them fail deep inside the pipeline.
func (c *Config) Validate() error {
	if c.API.Timeout <= 0 {
		return errors.NewConfigError("config", "api.timeout must be positive", nil)
	}
	if c.Harvest.PageSize < 1 {
		return errors.NewConfigError("config", "harvest.page_size must be at least 1", nil)
	}
	if c.Harvest.ChunkSize < 1 || c.Harvest.ChunkSize > actionapi.MaxIDsPerCall {
		return errors.NewConfigError("config",
			fmt.Sprintf("harvest.chunk_size must be between 1 and %d", actionapi.MaxIDsPerCall), nil)
	}
	if c.Harvest.MaxRetries < 0 {
		return errors.NewConfigError("config", "harvest.max_retries must not be negative", nil)
	}
	if c.Harvest.MaxEmptyPages < 1 {
		return errors.NewConfigError("config", "harvest.max_empty_pages must be at least 1", nil)
	}
	for key, d := range map[string]time.Duration{
		"harvest.min_call_interval": c.Harvest.MinCallInterval,
		"harvest.page_wait":         c.Harvest.PageWait,
		"harvest.chunk_wait":        c.Harvest.ChunkWait,
		"harvest.category_wait":     c.Harvest.CategoryWait,
		"backoff.retry_base":        c.Backoff.RetryBase,
		"backoff.rate_limit_base":   c.Backoff.RateLimitBase,
		"backoff.overload_base":     c.Backoff.OverloadBase,
		"backoff.network_base":      c.Backoff.NetworkBase,
		"backoff.max_wait":          c.Backoff.MaxWait,
	} {
		if d < 0 {
			return errors.NewConfigError("config", key+" must not be negative", nil)
		}
	}

	switch c.Store.Driver {
	case "sqlite", "sqlite3", "postgres", "pgx":
	default:
		return errors.NewConfigError("config", fmt.Sprintf("store.driver %q is not supported", c.Store.Driver), nil)
	}
	if c.Store.DSN == "" {
		return errors.NewConfigError("config", "store.dsn must not be empty", nil)
	}
	if c.Store.CASRetries < 0 {
		return errors.NewConfigError("config", "store.cas_retries must not be negative", nil)
	}

	if len(c.Languages) == 0 {
		return errors.NewConfigError("config", "at least one language is required", nil)
	}
	for _, lang := range c.Languages {
		if _, err := language.Parse(lang); err != nil {
			return errors.NewConfigError("config", fmt.Sprintf("invalid language %q", lang), err)
		}
	}

	if len(c.Properties) == 0 {
		return errors.NewConfigError("config", "at least one external-id property is required", nil)
	}
	for prop, scheme := range c.Properties {
		if !propertyPattern.MatchString(prop) {
			return errors.NewConfigError("config", fmt.Sprintf("invalid property identifier %q", prop), nil)
		}
		if scheme == "" {
			return errors.NewConfigError("config", fmt.Sprintf("property %s has no scheme name", prop), nil)
		}
	}
	return nil
}
