package handlers

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/mauv0809/stock-ratios/internal/db"
	"github.com/mauv0809/stock-ratios/internal/ingest"
	"github.com/mauv0809/stock-ratios/internal/models"
	"github.com/mauv0809/stock-ratios/internal/payload"
	"github.com/mauv0809/stock-ratios/internal/views"
)

// RatioStore is the part of the repository the handlers use.
type RatioStore interface {
	SaveRun(ctx context.Context, run db.Run) (int, error)
	LatestSnapshots(ctx context.Context) ([]models.StoredSnapshot, error)
	GetStatus(ctx context.Context) (db.Status, error)
}

type Handler struct {
	source ingest.Source
	store  RatioStore // nil without a database
	logger zerolog.Logger
}

func New(source ingest.Source, store RatioStore, logger zerolog.Logger) *Handler {
	return &Handler{source: source, store: store, logger: logger}
}

// Health returns application health status
// @Summary Health check
// @Description Returns the health status of the application
// @Tags system
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":   "ok",
		"provider": h.source.Name(),
	})
}

// Index handles GET /
// Query params:
// - tickers: comma-separated tickers typed by the user
// - ticker: the selected ticker (defaults to the first one)
func (h *Handler) Index(c echo.Context) error {
	input := c.QueryParam("tickers")
	page := views.IndexPage{
		Input:   input,
		Tickers: models.ParseTickers(input, true),
	}
	if len(page.Tickers) == 0 {
		return Render(c, http.StatusOK, views.Index(page))
	}

	page.Selected = page.Tickers[0]
	if sel := strings.ToUpper(strings.TrimSpace(c.QueryParam("ticker"))); sel != "" {
		for _, t := range page.Tickers {
			if t == sel {
				page.Selected = sel
				break
			}
		}
	}

	data, err := h.source.Dump(c.Request().Context(), page.Selected)
	if err != nil {
		status := dumpStatus(err)
		h.logger.Warn().Err(err).Str("ticker", page.Selected).Int("status", status).Msg("fetching ticker data")
		page.Error = dumpMessage(page.Selected, status)
		return Render(c, status, views.Index(page))
	}
	page.Data = data
	return Render(c, http.StatusOK, views.Index(page))
}

// TickerResponse is the JSON form of a ticker dump.
type TickerResponse struct {
	Ticker   string            `json:"ticker"`
	Provider string            `json:"provider"`
	Sections []SectionResponse `json:"sections"`
}

type SectionResponse struct {
	Title string        `json:"title"`
	Kind  string        `json:"kind"`
	Data  payload.Value `json:"data"`
}

// Ticker handles GET /api/tickers/:symbol
func (h *Handler) Ticker(c echo.Context) error {
	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
	if symbol == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "symbol is required")
	}

	data, err := h.source.Dump(c.Request().Context(), symbol)
	if err != nil {
		h.logger.Warn().Err(err).Str("ticker", symbol).Msg("fetching ticker data")
		status := dumpStatus(err)
		return echo.NewHTTPError(status, dumpMessage(symbol, status))
	}

	resp := TickerResponse{
		Ticker:   data.Ticker,
		Provider: h.source.Name(),
		Sections: make([]SectionResponse, 0, len(data.Sections)),
	}
	for _, s := range data.Sections {
		resp.Sections = append(resp.Sections, SectionResponse{Title: s.Title, Kind: s.Data.Kind.String(), Data: s.Data})
	}
	return c.JSON(http.StatusOK, resp)
}

// Ratios handles GET /ratios
func (h *Handler) Ratios(c echo.Context) error {
	page := views.RatiosPage{Enabled: h.store != nil}
	if h.store == nil {
		return Render(c, http.StatusOK, views.Ratios(page))
	}

	snaps, err := h.store.LatestSnapshots(c.Request().Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("loading snapshots")
		page.Error = "Failed to load stored ratios"
		return Render(c, http.StatusInternalServerError, views.Ratios(page))
	}
	page.Snapshots = snaps
	return Render(c, http.StatusOK, views.Ratios(page))
}

// Render writes a templ component as the HTML response.
func Render(c echo.Context, status int, t templ.Component) error {
	var buf bytes.Buffer
	if err := t.Render(c.Request().Context(), &buf); err != nil {
		return err
	}
	return c.HTMLBlob(status, buf.Bytes())
}

// dumpMessage is the client-facing text for a failed dump. Provider errors
// stay in the log since they can carry request URLs.
func dumpMessage(ticker string, status int) string {
	if status == http.StatusNotFound {
		return "Ticker " + ticker + " was not found"
	}
	return "Could not load " + ticker + " from the data provider"
}

func dumpStatus(err error) int {
	if errors.Is(err, ingest.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusBadGateway
}
