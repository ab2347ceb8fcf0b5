package ingest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eodhdFundamentals = `{
	"General": {"Code": "AAPL", "Name": "Apple Inc", "CurrencyCode": "USD"},
	"Highlights": {"MarketCapitalization": 3400000000000, "EBITDA": 134661000000, "PERatio": 34.1},
	"Valuation": {"EnterpriseValue": 3500000000000, "PriceSalesTTM": 8.7},
	"ESGScores": {"totalEsg": 17.2},
	"Earnings": {"Annual": {"2023-09-30": {"date": "2023-09-30", "epsActual": 6.13}, "2024-09-30": {"date": "2024-09-30", "epsActual": 6.75}}},
	"Financials": {
		"Balance_Sheet": {"currency_symbol": "USD", "yearly": {
			"2024-09-30": {"date": "2024-09-30", "filing_date": "2024-11-01", "currency_symbol": "USD",
				"totalCurrentAssets": "152987000000.00", "totalCurrentLiabilities": "176392000000.00",
				"inventory": "7286000000.00", "totalAssets": "364980000000.00", "totalLiab": "308030000000.00"},
			"2023-09-30": {"date": "2023-09-30", "totalCurrentAssets": "143566000000.00", "totalCurrentLiabilities": null}
		}},
		"Income_Statement": {"yearly": {"2024-09-30": {"date": "2024-09-30", "netIncome": "93736000000.00"}}},
		"Cash_Flow": {"yearly": {"2024-09-30": {"date": "2024-09-30", "totalCashflowsFromInvestingActivities": "2935000000.00"}}}
	}
}`

func newEODHDServer(t *testing.T, close string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("api_token") != "demo" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		switch r.URL.Path {
		case "/fundamentals/AAPL.US":
			_, _ = w.Write([]byte(eodhdFundamentals))
		case "/real-time/AAPL.US":
			_, _ = w.Write([]byte(`{"code": "AAPL.US", "close": ` + close + `}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("Ticker Not Found."))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestEODHD(srv *httptest.Server) *EODHDClient {
	return NewEODHDClient("demo", WithBaseURL(srv.URL), WithRateLimit(100), WithBackoff(time.Millisecond))
}

func TestEODHDSymbol(t *testing.T) {
	c := NewEODHDClient("demo")
	assert.Equal(t, "AAPL.US", c.Symbol(" aapl "))
	assert.Equal(t, "BHP.AU", c.Symbol("BHP.AU"))
}

func TestEODHDFundamentals(t *testing.T) {
	c := newTestEODHD(newEODHDServer(t, "227.52"))

	f, err := c.Fundamentals(context.Background(), "AAPL")
	require.NoError(t, err)

	require.NotNil(t, f.Snapshot.Price)
	assert.Equal(t, "227.52", f.Snapshot.Price.String())
	assert.Equal(t, "Apple Inc", f.Snapshot.Name)
	assert.Equal(t, "8.7", f.Snapshot.PSRatio.String())

	bs := f.Statements.BalanceSheet
	assert.Equal(t, []string{"2024-09-30", "2023-09-30"}, bs.Periods())
	assert.NotContains(t, bs, "Filing Date")
	assert.NotContains(t, bs, "Currency Symbol")

	v, ok := bs.Latest("Total Liab")
	require.True(t, ok)
	assert.Equal(t, 308030000000.0, v)
}

func TestEODHDMissingPrice(t *testing.T) {
	c := newTestEODHD(newEODHDServer(t, `"NA"`))

	f, err := c.Fundamentals(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Nil(t, f.Snapshot.Price)
}

func TestEODHDNotFound(t *testing.T) {
	c := newTestEODHD(newEODHDServer(t, "1"))

	_, err := c.Fundamentals(context.Background(), "ZZZZ")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestEODHDDump(t *testing.T) {
	c := newTestEODHD(newEODHDServer(t, "1"))

	td, err := c.Dump(context.Background(), "AAPL")
	require.NoError(t, err)

	info, _ := td.Section(SectionInfo)
	name, ok := info.Get("Name")
	require.True(t, ok)
	assert.Equal(t, "Apple Inc", name.Scalar)

	earnings, _ := td.Section(SectionEarnings)
	require.NotNil(t, earnings.Table)
	require.Len(t, earnings.Table.Rows, 2)
	// newest first
	assert.Equal(t, 6.75, earnings.Table.Rows[0].Cells[1].Scalar)

	esg, _ := td.Section(SectionSustainability)
	assert.False(t, esg.IsEmpty())
}

func TestEODHDErrorsDoNotExposeToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	c := NewEODHDClient("SECRETKEY", WithBaseURL(addr), WithRetries(0))

	_, err := c.Fundamentals(context.Background(), "AAPL")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "SECRETKEY")
	assert.Contains(t, err.Error(), "/fundamentals/AAPL.US")

	_, err = c.Dump(context.Background(), "AAPL")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "SECRETKEY")
}
