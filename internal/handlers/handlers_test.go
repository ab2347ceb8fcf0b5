package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mauv0809/stock-ratios/internal/batch"
	"github.com/mauv0809/stock-ratios/internal/db"
	"github.com/mauv0809/stock-ratios/internal/ingest"
	"github.com/mauv0809/stock-ratios/internal/models"
	"github.com/mauv0809/stock-ratios/internal/payload"
)

type fakeSource struct {
	dumped []string
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Fundamentals(ctx context.Context, ticker string) (*ingest.Fundamentals, error) {
	if ticker == "NOPE" {
		return nil, ingest.ErrNotFound
	}
	price := decimal.NewFromInt(100)
	bs := models.Statement{}
	bs.Set("Total Current Assets", "2024-12-31", models.Float(200))
	bs.Set("Total Current Liabilities", "2024-12-31", models.Float(100))
	return &ingest.Fundamentals{
		Snapshot:   models.Snapshot{Price: &price},
		Statements: models.Statements{BalanceSheet: bs},
	}, nil
}

func (f *fakeSource) Dump(ctx context.Context, ticker string) (*ingest.TickerData, error) {
	f.dumped = append(f.dumped, ticker)
	switch ticker {
	case "NOPE":
		return nil, ingest.ErrNotFound
	case "DOWN":
		return nil, errors.New(`Get "https://provider.test/fundamentals/DOWN?api_token=SECRETKEY": connection refused`)
	}
	return &ingest.TickerData{
		Ticker: ticker,
		Sections: []ingest.Section{
			{Title: ingest.SectionInfo, Data: payload.Mapping(
				payload.Field{Key: "longName", Value: payload.Scalar(ticker + " Corp")},
			)},
		},
	}, nil
}

type fakeStore struct {
	runs      []db.Run
	snapshots []models.StoredSnapshot
	err       error
}

func (s *fakeStore) SaveRun(ctx context.Context, run db.Run) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.runs = append(s.runs, run)
	return len(run.Rows), nil
}

func (s *fakeStore) LatestSnapshots(ctx context.Context) ([]models.StoredSnapshot, error) {
	return s.snapshots, s.err
}

func (s *fakeStore) GetStatus(ctx context.Context) (db.Status, error) {
	if s.err != nil {
		return db.Status{}, s.err
	}
	last := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	return db.Status{Runs: len(s.runs), Snapshots: 2, LastRun: &last}, nil
}

func newContext(method, target string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestHealth(t *testing.T) {
	h := New(&fakeSource{}, nil, zerolog.Nop())
	c, rec := newContext(http.MethodGet, "/health")

	require.NoError(t, h.Health(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","provider":"fake"}`, rec.Body.String())
}

func TestIndexEmpty(t *testing.T) {
	src := &fakeSource{}
	h := New(src, nil, zerolog.Nop())
	c, rec := newContext(http.MethodGet, "/")

	require.NoError(t, h.Index(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="tickers"`)
	assert.Empty(t, src.dumped)
}

func TestIndexDefaultsToFirstTicker(t *testing.T) {
	src := &fakeSource{}
	h := New(src, nil, zerolog.Nop())
	c, rec := newContext(http.MethodGet, "/?tickers=+aapl+,,msft")

	require.NoError(t, h.Index(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"AAPL"}, src.dumped)
	assert.Contains(t, rec.Body.String(), `<option value="MSFT">MSFT</option>`)
	assert.Contains(t, rec.Body.String(), "AAPL Corp")
}

func TestIndexSelectedTicker(t *testing.T) {
	src := &fakeSource{}
	h := New(src, nil, zerolog.Nop())
	c, _ := newContext(http.MethodGet, "/?tickers=aapl,msft&ticker=msft")

	require.NoError(t, h.Index(c))
	assert.Equal(t, []string{"MSFT"}, src.dumped)
}

func TestIndexUnknownSelectionFallsBack(t *testing.T) {
	src := &fakeSource{}
	h := New(src, nil, zerolog.Nop())
	c, _ := newContext(http.MethodGet, "/?tickers=aapl&ticker=tsla")

	require.NoError(t, h.Index(c))
	assert.Equal(t, []string{"AAPL"}, src.dumped)
}

func TestIndexProviderErrors(t *testing.T) {
	h := New(&fakeSource{}, nil, zerolog.Nop())

	c, rec := newContext(http.MethodGet, "/?tickers=nope")
	require.NoError(t, h.Index(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Ticker NOPE was not found")

	c, rec = newContext(http.MethodGet, "/?tickers=down")
	require.NoError(t, h.Index(c))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "Could not load DOWN from the data provider")
	assert.NotContains(t, rec.Body.String(), "SECRETKEY")
}

func TestTickerProviderErrorIsGeneric(t *testing.T) {
	h := New(&fakeSource{}, nil, zerolog.Nop())
	c, _ := newContext(http.MethodGet, "/api/tickers/down")
	c.SetParamNames("symbol")
	c.SetParamValues("down")

	err := h.Ticker(c)
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusBadGateway, he.Code)
	assert.Equal(t, "Could not load DOWN from the data provider", he.Message)
}

func TestIndexDoesNotExposeProviderToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	src := ingest.NewEODHDClient("SECRETKEY", ingest.WithBaseURL(addr), ingest.WithRetries(0))
	h := New(src, nil, zerolog.Nop())
	c, rec := newContext(http.MethodGet, "/?tickers=AAPL")

	require.NoError(t, h.Index(c))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.NotContains(t, rec.Body.String(), "SECRETKEY")
}

func TestTickerJSON(t *testing.T) {
	h := New(&fakeSource{}, nil, zerolog.Nop())
	c, rec := newContext(http.MethodGet, "/api/tickers/aapl")
	c.SetParamNames("symbol")
	c.SetParamValues("aapl")

	require.NoError(t, h.Ticker(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "AAPL", resp["ticker"])
	sections := resp["sections"].([]any)
	require.Len(t, sections, 1)
	first := sections[0].(map[string]any)
	assert.Equal(t, "Company Info", first["title"])
	assert.Equal(t, "mapping", first["kind"])
	assert.Equal(t, map[string]any{"longName": "AAPL Corp"}, first["data"])
}

func TestTickerNotFound(t *testing.T) {
	h := New(&fakeSource{}, nil, zerolog.Nop())
	c, _ := newContext(http.MethodGet, "/api/tickers/nope")
	c.SetParamNames("symbol")
	c.SetParamValues("nope")

	err := h.Ticker(c)
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusNotFound, he.Code)
}

func TestRatiosPageWithoutStore(t *testing.T) {
	h := New(&fakeSource{}, nil, zerolog.Nop())
	c, rec := newContext(http.MethodGet, "/ratios")

	require.NoError(t, h.Ratios(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "DATABASE_URL")
}

func TestRatiosPageStoreError(t *testing.T) {
	h := New(&fakeSource{}, &fakeStore{err: errors.New("db down")}, zerolog.Nop())
	c, rec := newContext(http.MethodGet, "/ratios")

	require.NoError(t, h.Ratios(c))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRunRatios(t *testing.T) {
	src := &fakeSource{}
	store := &fakeStore{}
	h := NewRatiosHandler(batch.NewRunner(src, 5, zerolog.Nop()), store, "fake", zerolog.Nop())
	c, rec := newContext(http.MethodPost, "/admin/ratios?ticker=aapl,nope")

	require.NoError(t, h.RunRatios(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp RatiosResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, []string{"NOPE"}, resp.Failed)
	assert.Contains(t, resp.Message, "Failed tickers: NOPE")

	require.Len(t, store.runs, 1)
	assert.Equal(t, "fake", store.runs[0].Provider)
	assert.Equal(t, resp.RunID, store.runs[0].Summary.RunID)
	assert.Contains(t, store.runs[0].Errors, "NOPE")
}

func TestRunRatiosDefaultsToStoredTickers(t *testing.T) {
	store := &fakeStore{snapshots: []models.StoredSnapshot{{Ticker: "MSFT"}}}
	h := NewRatiosHandler(batch.NewRunner(&fakeSource{}, 5, zerolog.Nop()), store, "fake", zerolog.Nop())
	c, rec := newContext(http.MethodPost, "/admin/ratios")

	require.NoError(t, h.RunRatios(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, store.runs, 1)
	require.Len(t, store.runs[0].Rows, 1)
	assert.Equal(t, "MSFT", store.runs[0].Rows[0].Ticker)
}

func TestRunRatiosNoTickers(t *testing.T) {
	h := NewRatiosHandler(batch.NewRunner(&fakeSource{}, 5, zerolog.Nop()), &fakeStore{}, "fake", zerolog.Nop())
	c, rec := newContext(http.MethodPost, "/admin/ratios")

	require.NoError(t, h.RunRatios(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRatiosStatus(t *testing.T) {
	h := NewRatiosHandler(batch.NewRunner(&fakeSource{}, 5, zerolog.Nop()), &fakeStore{}, "fake", zerolog.Nop())
	c, rec := newContext(http.MethodGet, "/admin/ratios/status")

	require.NoError(t, h.RatiosStatus(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"provider":"fake","runs":0,"snapshots":2,"failures":0,"last_run":"2026-03-01T00:00:00Z"}`, rec.Body.String())
}
