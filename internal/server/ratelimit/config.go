package ratelimit

import (
	"net/http"
	"time"

	"github.com/jonathan/lead-collector/internal/config"
)

// EndpointConfig represents rate limiting configuration for a specific endpoint.
type EndpointConfig struct {
	Path   string        // Endpoint path pattern (supports prefix matching)
	Method string        // HTTP method (GET, POST, etc.)
	Limit  int           // Maximum requests per window
	Window time.Duration // Time window
	Burst  int           // Burst capacity (defaults to Limit if 0)
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool
	DefaultLimit    int
	DefaultWindow   time.Duration
	CleanupInterval time.Duration
	IdleTTL         time.Duration
	Whitelist       map[string]bool
	Blacklist       map[string]bool
	EndpointConfigs []EndpointConfig
}

// FromConfig builds the limiter configuration from the application config.
func FromConfig(cfg config.RateLimitConfig) *Config {
	if !cfg.Enabled {
		return &Config{Enabled: false}
	}
	return &Config{
		Enabled:         true,
		DefaultLimit:    cfg.DefaultLimit,
		DefaultWindow:   cfg.DefaultWindow,
		CleanupInterval: cfg.CleanupInterval,
		IdleTTL:         time.Hour,
		Whitelist:       make(map[string]bool),
		Blacklist:       make(map[string]bool),
		EndpointConfigs: DefaultEndpointConfigs(cfg.SearchLimit, cfg.SearchWindow),
	}
}

// DefaultEndpointConfigs returns the endpoint-specific limits. Starting a
// search triggers paid upstream calls, so it gets its own budget; everything
// else falls back to the default limit.
func DefaultEndpointConfigs(searchLimit int, searchWindow time.Duration) []EndpointConfig {
	if searchLimit <= 0 || searchWindow <= 0 {
		return nil
	}
	burst := searchLimit / 5
	if burst < 1 {
		burst = 1
	}
	return []EndpointConfig{
		{Path: "/api/search", Method: http.MethodPost, Limit: searchLimit, Window: searchWindow, Burst: burst},
	}
}
