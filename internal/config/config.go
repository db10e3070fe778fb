// Package config provides configuration loading and validation for the lead collector.
package config

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// PlaceholderAPIKeys are values shipped in sample files that must never be sent upstream.
var PlaceholderAPIKeys = []string{"SUA_CHAVE_API_AQUI", "YOUR_API_KEY_HERE", "sua_chave_aqui"}

// Config represents the full configuration. Every field has a default, so an
// empty environment still produces a usable Config.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Places     PlacesConfig     `mapstructure:"places"`
	Fetch      FetchConfig      `mapstructure:"fetch"`
	Enrichment EnrichmentConfig `mapstructure:"enrichment"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Log        LogConfig        `mapstructure:"log"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	CORSOrigin      string        `mapstructure:"cors_origin"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	StreamInterval  time.Duration `mapstructure:"stream_interval"`
}

// PlacesConfig configures the Google Places lookup.
type PlacesConfig struct {
	APIKey             string        `mapstructure:"api_key"`
	BaseURL            string        `mapstructure:"base_url"`
	LanguageCode       string        `mapstructure:"language_code"`
	RegionCode         string        `mapstructure:"region_code"`
	MaxResultCount     int           `mapstructure:"max_result_count"`
	Timeout            time.Duration `mapstructure:"timeout"`
	QueryDelay         time.Duration `mapstructure:"query_delay"`
	Variants           []string      `mapstructure:"variants"`
	FetchDetails       bool          `mapstructure:"fetch_details"`
	DetailsConcurrency int           `mapstructure:"details_concurrency"`
}

// FetchConfig configures the website fetcher.
type FetchConfig struct {
	Timeout        time.Duration `mapstructure:"timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes"`
	UseBrowser     bool          `mapstructure:"use_browser"`
	BrowserTimeout time.Duration `mapstructure:"browser_timeout"`
}

// EnrichmentConfig configures the enrichment pipeline.
type EnrichmentConfig struct {
	Delay         time.Duration `mapstructure:"delay"`
	VerifyEmailMX bool          `mapstructure:"verify_email_mx"`
	DNSServers    []string      `mapstructure:"dns_servers"`
}

// RateLimitConfig configures request limiting on the HTTP API.
type RateLimitConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	DefaultLimit    int           `mapstructure:"default_limit"`
	DefaultWindow   time.Duration `mapstructure:"default_window"`
	SearchLimit     int           `mapstructure:"search_limit"`
	SearchWindow    time.Duration `mapstructure:"search_window"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// LogConfig configures the logger.
type LogConfig struct {
	JSON  bool   `mapstructure:"json"`
	Level string `mapstructure:"level"`
}

// DefaultVariants are the query templates sent to the places API.
// {niche} and {city} are substituted before the call.
func DefaultVariants() []string {
	return []string{
		"{niche} {city}",
		"{niche} em {city}",
		"distribuidora {niche} {city}",
		"comercio {niche} {city}",
		"loja {niche} {city}",
		"empresa {niche} {city}",
	}
}

// SetDefaults registers every default value on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.cors_origin", "*")
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.stream_interval", time.Second)

	v.SetDefault("places.api_key", "")
	v.SetDefault("places.base_url", "https://places.googleapis.com")
	v.SetDefault("places.language_code", "pt-BR")
	v.SetDefault("places.region_code", "BR")
	v.SetDefault("places.max_result_count", 20)
	v.SetDefault("places.timeout", 30*time.Second)
	v.SetDefault("places.query_delay", time.Second)
	v.SetDefault("places.variants", DefaultVariants())
	v.SetDefault("places.fetch_details", false)
	v.SetDefault("places.details_concurrency", 4)

	v.SetDefault("fetch.timeout", 10*time.Second)
	v.SetDefault("fetch.user_agent", "")
	v.SetDefault("fetch.max_body_bytes", 2<<20)
	v.SetDefault("fetch.use_browser", false)
	v.SetDefault("fetch.browser_timeout", 30*time.Second)

	v.SetDefault("enrichment.delay", 500*time.Millisecond)
	v.SetDefault("enrichment.verify_email_mx", false)
	v.SetDefault("enrichment.dns_servers", []string{"8.8.8.8:53", "1.1.1.1:53"})

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.default_limit", 600)
	v.SetDefault("ratelimit.default_window", time.Minute)
	v.SetDefault("ratelimit.search_limit", 30)
	v.SetDefault("ratelimit.search_window", time.Hour)
	v.SetDefault("ratelimit.cleanup_interval", 5*time.Minute)

	v.SetDefault("log.json", false)
	v.SetDefault("log.level", "info")
}

// newViper builds a viper instance with defaults and environment bindings.
func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix("LEAD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unprefixed names kept for compatibility with existing .env files.
	_ = v.BindEnv("places.api_key", "LEAD_PLACES_API_KEY", "GOOGLE_PLACES_API_KEY")
	_ = v.BindEnv("server.port", "LEAD_SERVER_PORT", "PORT")
	_ = v.BindEnv("log.level", "LEAD_LOG_LEVEL", "LOG_LEVEL")

	return v
}

// Load reads .env (if present), an optional config.yaml from the working
// directory or ./config, and environment variables, in increasing priority.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "failed to read config file")
		}
	}

	return unmarshal(v)
}

// LoadFromFile loads configuration from a specific YAML file path, still
// honoring environment overrides.
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", path)
	}

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	cfg.Places.APIKey = strings.TrimSpace(cfg.Places.APIKey)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the configuration has valid values.
// A missing API key is not an error here: the places lookup fails fast instead.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.Newf("config error: 'server.port' out of range: %d", c.Server.Port)
	}
	if c.Places.MaxResultCount < 1 || c.Places.MaxResultCount > 20 {
		return errors.Newf("config error: 'places.max_result_count' must be between 1 and 20, got %d", c.Places.MaxResultCount)
	}
	if len(c.Places.Variants) == 0 {
		return errors.New("config error: 'places.variants' must not be empty")
	}
	for _, variant := range c.Places.Variants {
		if !strings.Contains(variant, "{niche}") {
			return errors.Newf("config error: variant %q does not reference {niche}", variant)
		}
	}
	if c.Places.QueryDelay < 0 {
		return errors.New("config error: 'places.query_delay' must be non-negative")
	}
	if c.Enrichment.Delay < 0 {
		return errors.New("config error: 'enrichment.delay' must be non-negative")
	}
	if c.Fetch.Timeout <= 0 {
		return errors.New("config error: 'fetch.timeout' must be positive")
	}
	if c.Fetch.MaxBodyBytes <= 0 {
		return errors.New("config error: 'fetch.max_body_bytes' must be positive")
	}
	return nil
}

// HasAPIKey reports whether a real (non-placeholder) places API key is configured.
func (c *Config) HasAPIKey() bool {
	return IsUsableAPIKey(c.Places.APIKey)
}

// IsUsableAPIKey reports whether key is non-empty and not a known placeholder.
func IsUsableAPIKey(key string) bool {
	key = strings.TrimSpace(key)
	if key == "" {
		return false
	}
	for _, placeholder := range PlaceholderAPIKeys {
		if strings.EqualFold(key, placeholder) {
			return false
		}
	}
	return true
}
