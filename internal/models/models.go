package models

import (
	"errors"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidTicker is returned when the provider has no market price for a symbol.
var ErrInvalidTicker = errors.New("invalid ticker")

// RatioName identifies one derived ratio.
type RatioName string

const (
	DebtToEquity      RatioName = "Debt-to-Equity Ratio"
	CurrentRatio      RatioName = "Current Ratio"
	QuickRatio        RatioName = "Quick Ratio"
	ReturnOnEquity    RatioName = "Return on Equity (ROE)"
	InterestCoverage  RatioName = "Interest Coverage Ratio"
	InvestingCashFlow RatioName = "Cash Flow from Investing Activities"
)

// RatioNames lists every ratio in output column order.
var RatioNames = []RatioName{
	DebtToEquity,
	CurrentRatio,
	QuickRatio,
	ReturnOnEquity,
	InterestCoverage,
	InvestingCashFlow,
}

// Unavailable is the sentinel stored for a ratio whose inputs are missing or whose denominator is zero.
var Unavailable = math.Inf(1)

// RatioResult maps a ratio to its value. An empty result means the
// current assets or current liabilities could not be found at all.
type RatioResult map[RatioName]float64

// Available reports whether the ratio holds a real number.
func (r RatioResult) Available(name RatioName) bool {
	v, ok := r[name]
	return ok && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// Snapshot is the market data captured for a ticker alongside its statements.
type Snapshot struct {
	Ticker          string           `json:"ticker"`
	Name            string           `json:"name"`
	Currency        string           `json:"currency"`
	Price           *decimal.Decimal `json:"price"`
	MarketCap       *decimal.Decimal `json:"market_cap"`
	EnterpriseValue *decimal.Decimal `json:"enterprise_value"`
	EBITDA          *decimal.Decimal `json:"ebitda"`
	PERatio         *decimal.Decimal `json:"pe_ratio"`
	PSRatio         *decimal.Decimal `json:"ps_ratio"`
}

// Statements bundles the three annual statements ratios are computed from.
type Statements struct {
	BalanceSheet    Statement
	IncomeStatement Statement
	CashFlow        Statement
}

// BatchRow is one ticker's outcome in a batch run. It either carries a
// snapshot and ratios or only a ticker and an error, never both.
type BatchRow struct {
	Ticker   string
	Snapshot Snapshot
	Ratios   RatioResult
	Err      error
}

// NewBatchRow builds a successful row.
func NewBatchRow(ticker string, snap Snapshot, ratios RatioResult) BatchRow {
	if ratios == nil {
		ratios = RatioResult{}
	}
	return BatchRow{Ticker: ticker, Snapshot: snap, Ratios: ratios}
}

// FailedRow builds a row carrying only the ticker and the failure.
func FailedRow(ticker string, err error) BatchRow {
	return BatchRow{Ticker: ticker, Err: err}
}

// Failed reports whether the row is an error marker.
func (r BatchRow) Failed() bool {
	return r.Err != nil
}

// StoredSnapshot is a persisted successful batch row.
type StoredSnapshot struct {
	ID        int                 `json:"id"`
	RunID     string              `json:"run_id"`
	Ticker    string              `json:"ticker"`
	Snapshot  Snapshot            `json:"snapshot"`
	Ratios    map[string]*float64 `json:"ratios"`
	CreatedAt time.Time           `json:"created_at"`
}

// RunSummary describes one batch run.
type RunSummary struct {
	RunID     string    `json:"run_id"`
	Succeeded int       `json:"succeeded"`
	Failed    []string  `json:"failed"`
	StartedAt time.Time `json:"started_at"`
	Elapsed   string    `json:"elapsed"`
}
