// Package config содержит логику чтения конфигурации клиента витрины.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации клиента витрины.
type Config struct {
	RunAddress      string        `env:"RUN_ADDRESS"`
	APIBaseURL      string        `env:"API_BASE_URL"`
	StateStorageURI string        `env:"STATE_STORAGE_URI"`
	StateRootKey    string        `env:"STATE_ROOT_KEY"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT"`
	RateLimit       float64       `env:"API_RATE_LIMIT"`
	CacheKeepUnused time.Duration `env:"CACHE_KEEP_UNUSED"`
	TraceSpans      bool          `env:"TRACE_SPANS"`
}

const (
	defaultRunAddress      = "localhost:8080"
	defaultAPIBaseURL      = "http://localhost:5000/api"
	defaultStateRootKey    = "persist:root"
	defaultRequestTimeout  = 10 * time.Second
	defaultCacheKeepUnused = 60 * time.Second
)

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	envCfg := &Config{}
	if err := env.Parse(envCfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg := &Config{}
	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP gateway")
	flag.StringVar(&cfg.APIBaseURL, "b", defaultAPIBaseURL, "storefront API base URL")
	flag.StringVar(&cfg.StateStorageURI, "s", "", "persisted state URI (postgres://, redis://, file://; empty keeps state in memory)")
	flag.StringVar(&cfg.StateRootKey, "k", defaultStateRootKey, "root key of persisted state")
	flag.DurationVar(&cfg.RequestTimeout, "t", defaultRequestTimeout, "API request timeout")
	flag.Float64Var(&cfg.RateLimit, "l", 0, "outbound API requests per second, 0 disables the limit")
	flag.DurationVar(&cfg.CacheKeepUnused, "c", defaultCacheKeepUnused, "how long unused cache entries are kept")
	flag.BoolVar(&cfg.TraceSpans, "r", false, "record a span for every API request and write finished spans to the log")

	flag.Parse()

	if envCfg.RunAddress != "" {
		cfg.RunAddress = envCfg.RunAddress
	}
	if envCfg.APIBaseURL != "" {
		cfg.APIBaseURL = envCfg.APIBaseURL
	}
	if envCfg.StateStorageURI != "" {
		cfg.StateStorageURI = envCfg.StateStorageURI
	}
	if envCfg.StateRootKey != "" {
		cfg.StateRootKey = envCfg.StateRootKey
	}
	if envCfg.RequestTimeout != 0 {
		cfg.RequestTimeout = envCfg.RequestTimeout
	}
	if envCfg.RateLimit != 0 {
		cfg.RateLimit = envCfg.RateLimit
	}
	if envCfg.CacheKeepUnused != 0 {
		cfg.CacheKeepUnused = envCfg.CacheKeepUnused
	}
	if envCfg.TraceSpans {
		cfg.TraceSpans = true
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}
	if cfg.StateRootKey == "" {
		cfg.StateRootKey = defaultStateRootKey
	}
	if cfg.RequestTimeout <= 0 {
		return nil, fmt.Errorf("request timeout must be positive, got %s", cfg.RequestTimeout)
	}
	if cfg.RateLimit < 0 {
		return nil, fmt.Errorf("rate limit must not be negative, got %v", cfg.RateLimit)
	}

	return cfg, nil
}
