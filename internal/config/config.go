// Package config reads runtime settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderYahoo = "yahoo"
	ProviderEODHD = "eodhd"

	defaultPort       = "8080"
	defaultWorkers    = 5
	defaultRateLimit  = 5
	defaultTimeout    = 30 * time.Second
	defaultOutputName = "financial_ratios.csv"
)

// Config holds settings shared by the dashboard and the batch tool.
type Config struct {
	Port        string
	DatabaseURL string

	Provider          string
	EODHDAPIKey       string
	ProviderRateLimit int
	ProviderTimeout   time.Duration

	OutputPath string
	Workers    int

	LogLevel  string
	LogFormat string
}

// Load reads a .env file if present and then the environment. It only fails
// on malformed values; callers apply overrides and then call Validate.
// It returns whether the .env file was found so callers can log it.
func Load() (*Config, bool, error) {
	envLoaded := godotenv.Load() == nil

	cfg := &Config{
		Port:              getEnv("PORT", defaultPort),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		Provider:          getEnv("PROVIDER", ProviderYahoo),
		EODHDAPIKey:       os.Getenv("EODHD_API_KEY"),
		ProviderRateLimit: defaultRateLimit,
		ProviderTimeout:   defaultTimeout,
		OutputPath:        os.Getenv("RATIOS_OUTPUT_PATH"),
		Workers:           defaultWorkers,
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "console"),
	}

	var err error
	if cfg.ProviderRateLimit, err = getInt("PROVIDER_RATE_LIMIT", defaultRateLimit); err != nil {
		return nil, envLoaded, err
	}
	if cfg.Workers, err = getInt("RATIOS_WORKERS", defaultWorkers); err != nil {
		return nil, envLoaded, err
	}
	if v := os.Getenv("PROVIDER_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, envLoaded, fmt.Errorf("PROVIDER_TIMEOUT: %w", err)
		}
		cfg.ProviderTimeout = d
	}
	if cfg.OutputPath == "" {
		cfg.OutputPath = DefaultOutputPath()
	}

	return cfg, envLoaded, nil
}

// Validate checks settings that would otherwise fail later at runtime.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderYahoo:
	case ProviderEODHD:
		if c.EODHDAPIKey == "" {
			return fmt.Errorf("EODHD_API_KEY is required when PROVIDER=%s", ProviderEODHD)
		}
	default:
		return fmt.Errorf("unknown provider %q (want %s or %s)", c.Provider, ProviderYahoo, ProviderEODHD)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.ProviderRateLimit < 1 {
		return fmt.Errorf("provider rate limit must be at least 1, got %d", c.ProviderRateLimit)
	}
	return nil
}

// DefaultOutputPath returns $HOME/Documents/stock-ratios/financial_ratios.csv,
// falling back to the working directory when there is no home directory.
func DefaultOutputPath() string {
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, "Documents", "stock-ratios", defaultOutputName)
	}
	if wd, err := os.Getwd(); err == nil {
		return filepath.Join(wd, defaultOutputName)
	}
	return defaultOutputName
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
