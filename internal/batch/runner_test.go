package batch

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mauv0809/stock-ratios/internal/ingest"
	"github.com/mauv0809/stock-ratios/internal/models"
)

// fakeFetcher serves canned fundamentals and tracks concurrency.
type fakeFetcher struct {
	data  map[string]*ingest.Fundamentals
	errs  map[string]error
	panic map[string]bool
	delay time.Duration

	inFlight int32
	maxSeen  int32
	mu       sync.Mutex
	calls    []string
}

func (f *fakeFetcher) Fundamentals(ctx context.Context, ticker string) (*ingest.Fundamentals, error) {
	n := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		m := atomic.LoadInt32(&f.maxSeen)
		if n <= m || atomic.CompareAndSwapInt32(&f.maxSeen, m, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, ticker)
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.panic[ticker] {
		panic("boom")
	}
	if err, ok := f.errs[ticker]; ok {
		return nil, err
	}
	if d, ok := f.data[ticker]; ok {
		return d, nil
	}
	return &ingest.Fundamentals{}, nil // no price: unknown ticker
}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func fundamentals(ca, cl, inv float64) *ingest.Fundamentals {
	bs := models.Statement{}
	bs.Set("Total Current Assets", "2024-12-31", models.Float(ca))
	bs.Set("Total Current Liabilities", "2024-12-31", models.Float(cl))
	bs.Set("Inventory", "2024-12-31", models.Float(inv))
	return &ingest.Fundamentals{
		Snapshot: models.Snapshot{
			Price:           dec("100"),
			MarketCap:       dec("1000000"),
			EnterpriseValue: dec("1200000"),
			EBITDA:          dec("50000"),
			PERatio:         dec("20.5"),
			PSRatio:         dec("3.25"),
		},
		Statements: models.Statements{BalanceSheet: bs},
	}
}

func newFake() *fakeFetcher {
	return &fakeFetcher{
		data: map[string]*ingest.Fundamentals{
			"AAPL": fundamentals(200, 100, 50),
			"MSFT": fundamentals(300, 100, 0),
			"GOOG": fundamentals(150, 50, 30),
		},
		errs:  map[string]error{},
		panic: map[string]bool{},
	}
}

func TestRunInvalidTickerIsIsolated(t *testing.T) {
	f := newFake()
	r := NewRunner(f, 5, zerolog.Nop())

	res := r.Run(context.Background(), []string{"AAPL", "BOGUS", "MSFT", "GOOG"})

	assert.Equal(t, []string{"BOGUS"}, res.Failed())
	assert.True(t, errors.Is(res.Errors()["BOGUS"], models.ErrInvalidTicker))

	tickers := make([]string, 0, len(res.Rows()))
	for _, row := range res.Rows() {
		assert.False(t, row.Failed())
		tickers = append(tickers, row.Ticker)
	}
	sort.Strings(tickers)
	assert.Equal(t, []string{"AAPL", "GOOG", "MSFT"}, tickers)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, res.Rows()))
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	for _, rec := range records[1:] {
		assert.NotEqual(t, "BOGUS", rec[0])
	}
}

func TestRunProviderErrorAndPanicAreIsolated(t *testing.T) {
	f := newFake()
	f.errs["MSFT"] = errors.New("connection reset")
	f.panic["GOOG"] = true
	r := NewRunner(f, 2, zerolog.Nop())

	res := r.Run(context.Background(), []string{"AAPL", "MSFT", "GOOG"})

	failed := res.Failed()
	sort.Strings(failed)
	assert.Equal(t, []string{"GOOG", "MSFT"}, failed)
	assert.ErrorContains(t, res.Errors()["GOOG"], "panic")
	require.Len(t, res.Rows(), 1)
	assert.Equal(t, "AAPL", res.Rows()[0].Ticker)
}

func TestRunComputesRatios(t *testing.T) {
	r := NewRunner(newFake(), 5, zerolog.Nop())
	res := r.Run(context.Background(), []string{"AAPL"})

	require.Len(t, res.Rows(), 1)
	row := res.Rows()[0]
	assert.InDelta(t, 2.0, row.Ratios[models.CurrentRatio], 1e-9)
	assert.InDelta(t, 1.5, row.Ratios[models.QuickRatio], 1e-9)
	assert.Equal(t, "AAPL", row.Snapshot.Ticker)
}

func TestRunRespectsWorkerLimit(t *testing.T) {
	f := newFake()
	f.delay = 20 * time.Millisecond
	tickers := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		tickers = append(tickers, "AAPL")
	}

	res := NewRunner(f, 5, zerolog.Nop()).Run(context.Background(), tickers)

	assert.Len(t, res.Rows(), 20)
	assert.LessOrEqual(t, atomic.LoadInt32(&f.maxSeen), int32(5))
	assert.Greater(t, atomic.LoadInt32(&f.maxSeen), int32(1))
}

func TestRunIsDeterministic(t *testing.T) {
	tickers := []string{"AAPL", "MSFT", "GOOG"}

	byTicker := func() map[string][]string {
		res := NewRunner(newFake(), 5, zerolog.Nop()).Run(context.Background(), tickers)
		out := make(map[string][]string)
		for _, row := range res.Rows() {
			out[row.Ticker] = Record(row)
		}
		return out
	}

	assert.Equal(t, byTicker(), byTicker())
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := NewRunner(newFake(), 5, zerolog.Nop()).Run(ctx, []string{"AAPL", "MSFT"})
	assert.Empty(t, res.Rows())
	assert.Len(t, res.Failed(), 2)
}

func TestRunSummary(t *testing.T) {
	res := NewRunner(newFake(), 0, zerolog.Nop()).Run(context.Background(), []string{"AAPL"})
	s := res.Summary()
	assert.Equal(t, 1, s.Succeeded)
	assert.Equal(t, []string{}, s.Failed)
	assert.NotEmpty(t, s.RunID)
}
