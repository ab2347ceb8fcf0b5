package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"github.com/mauv0809/stock-ratios/internal/batch"
	"github.com/mauv0809/stock-ratios/internal/config"
	"github.com/mauv0809/stock-ratios/internal/db"
	"github.com/mauv0809/stock-ratios/internal/handlers"
	"github.com/mauv0809/stock-ratios/internal/ingest"
	"github.com/mauv0809/stock-ratios/internal/logging"
)

func main() {
	cfg, envLoaded, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("loading configuration")
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if !envLoaded {
		log.Info().Msg("No .env file found, using environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source, err := ingest.NewSource(cfg, log.Logger.With().Str("component", "ingest").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("creating provider")
	}
	log.Info().Str("provider", source.Name()).Msg("Provider initialized")

	// Database is optional; without it the ratio history is disabled.
	var store handlers.RatioStore
	if cfg.DatabaseURL != "" {
		if err := db.RunMigrations(cfg.DatabaseURL); err != nil {
			log.Warn().Err(err).Msg("Could not run migrations")
		} else {
			log.Info().Msg("Migrations completed")
		}

		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Warn().Err(err).Msg("Could not connect to database, continuing without ratio history")
		} else {
			defer pool.Close()
			store = db.NewRepository(pool)
			log.Info().Msg("Connected to database")
		}
	} else {
		log.Info().Msg("DATABASE_URL not set, ratio history disabled")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error == nil {
				log.Info().Str("method", v.Method).Str("uri", v.URI).Int("status", v.Status).Dur("latency", v.Latency).Msg("request")
			} else {
				log.Error().Err(v.Error).Str("method", v.Method).Str("uri", v.URI).Int("status", v.Status).Msg("request")
			}
			return nil
		},
	}))
	e.Use(middleware.Recover())

	h := handlers.New(source, store, log.Logger.With().Str("component", "handlers").Logger())

	// Routes
	e.GET("/health", h.Health)
	e.GET("/", h.Index)
	e.GET("/ratios", h.Ratios)
	e.GET("/api/tickers/:symbol", h.Ticker)

	// Admin routes for ratio runs
	if store != nil {
		runner := batch.NewRunner(source, cfg.Workers, log.Logger.With().Str("component", "batch").Logger())
		ratiosHandler := handlers.NewRatiosHandler(runner, store, source.Name(), log.Logger)

		admin := e.Group("/admin")
		admin.GET("/ratios/status", ratiosHandler.RatiosStatus)
		admin.POST("/ratios", ratiosHandler.RunRatios)
		log.Info().Msg("Ratio endpoints registered")
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown failed")
	}
}
