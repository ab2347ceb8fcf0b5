package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/mauv0809/stock-ratios/internal/batch"
	"github.com/mauv0809/stock-ratios/internal/db"
	"github.com/mauv0809/stock-ratios/internal/models"
)

// RatiosHandler runs the batch calculator over HTTP and stores the results.
type RatiosHandler struct {
	runner   *batch.Runner
	store    RatioStore
	provider string
	logger   zerolog.Logger
}

// NewRatiosHandler creates a new ratios handler.
func NewRatiosHandler(runner *batch.Runner, store RatioStore, provider string, logger zerolog.Logger) *RatiosHandler {
	return &RatiosHandler{
		runner:   runner,
		store:    store,
		provider: provider,
		logger:   logger,
	}
}

// RatiosResponse is the JSON response for the ratio endpoints.
type RatiosResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	RunID   string   `json:"run_id,omitempty"`
	Count   int      `json:"count,omitempty"`
	Failed  []string `json:"failed,omitempty"`
	Elapsed string   `json:"elapsed,omitempty"`
}

// RunRatios handles POST /admin/ratios
// Computes ratios for a batch of tickers and stores the run.
// Query params:
// - ticker: comma-separated tickers (optional, defaults to every stored ticker)
func (h *RatiosHandler) RunRatios(c echo.Context) error {
	ctx := c.Request().Context()
	start := time.Now()

	tickers := models.ParseTickers(c.QueryParam("ticker"), true)
	if len(tickers) == 0 {
		snaps, err := h.store.LatestSnapshots(ctx)
		if err != nil {
			h.logger.Error().Err(err).Msg("loading stored tickers")
			return c.JSON(http.StatusInternalServerError, RatiosResponse{
				Success: false,
				Message: fmt.Sprintf("Failed to get tickers: %v", err),
			})
		}
		for _, s := range snaps {
			tickers = append(tickers, s.Ticker)
		}
	}

	if len(tickers) == 0 {
		return c.JSON(http.StatusBadRequest, RatiosResponse{
			Success: false,
			Message: "ticker parameter is required (e.g., ?ticker=AAPL,MSFT)",
		})
	}

	h.logger.Info().Strs("tickers", tickers).Msg("starting ratio run")

	res := h.runner.Run(ctx, tickers)
	summary := res.Summary()

	count, err := h.store.SaveRun(ctx, db.Run{
		Summary:  summary,
		Provider: h.provider,
		Elapsed:  res.Elapsed,
		Rows:     res.Rows(),
		Errors:   res.Errors(),
	})
	if err != nil {
		h.logger.Error().Err(err).Str("run_id", res.RunID).Msg("saving ratio run")
		return c.JSON(http.StatusInternalServerError, RatiosResponse{
			Success: false,
			Message: fmt.Sprintf("Failed to save run: %v", err),
			RunID:   res.RunID,
		})
	}

	elapsed := time.Since(start)
	h.logger.Info().Str("run_id", res.RunID).Int("stored", count).Dur("elapsed", elapsed).Msg("ratio run complete")

	msg := fmt.Sprintf("Computed ratios for %d tickers", count)
	if len(summary.Failed) > 0 {
		msg += ". Failed tickers: " + batch.FailureSummary(summary.Failed)
	}
	return c.JSON(http.StatusOK, RatiosResponse{
		Success: true,
		Message: msg,
		RunID:   res.RunID,
		Count:   count,
		Failed:  summary.Failed,
		Elapsed: elapsed.String(),
	})
}

// RatiosStatus handles GET /admin/ratios/status
// Returns stored counts and the time of the last run.
func (h *RatiosHandler) RatiosStatus(c echo.Context) error {
	status, err := h.store.GetStatus(c.Request().Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("loading ratio status")
		return c.JSON(http.StatusInternalServerError, RatiosResponse{
			Success: false,
			Message: fmt.Sprintf("Failed to get status: %v", err),
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"provider":  h.provider,
		"runs":      status.Runs,
		"snapshots": status.Snapshots,
		"failures":  status.Failures,
		"last_run":  status.LastRun,
	})
}
