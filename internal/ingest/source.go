package ingest

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mauv0809/stock-ratios/internal/config"
)

// NewSource builds the provider selected in cfg.
func NewSource(cfg *config.Config, logger zerolog.Logger) (Source, error) {
	opts := []Option{
		WithTimeout(cfg.ProviderTimeout),
		WithRateLimit(cfg.ProviderRateLimit),
		WithLogger(logger),
	}

	switch cfg.Provider {
	case config.ProviderYahoo, "":
		return NewYahooClient(opts...), nil
	case config.ProviderEODHD:
		if cfg.EODHDAPIKey == "" {
			return nil, fmt.Errorf("EODHD_API_KEY is required for provider %s", cfg.Provider)
		}
		return NewEODHDClient(cfg.EODHDAPIKey, opts...), nil
	}
	return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
}
