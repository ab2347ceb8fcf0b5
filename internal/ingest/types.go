package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/mauv0809/stock-ratios/internal/models"
	"github.com/mauv0809/stock-ratios/internal/payload"
)

// ErrNotFound is returned when the provider does not know a symbol.
var ErrNotFound = errors.New("symbol not found")

// Source is a market-data provider.
type Source interface {
	// Name identifies the provider in logs and stored rows.
	Name() string
	// Fundamentals fetches the market snapshot and annual statements used for ratios.
	Fundamentals(ctx context.Context, ticker string) (*Fundamentals, error)
	// Dump fetches every raw dataset the dashboard shows for a ticker.
	Dump(ctx context.Context, ticker string) (*TickerData, error)
}

// Fundamentals is what the batch calculator needs for one ticker.
// Snapshot.Price is nil when the provider has no market price.
type Fundamentals struct {
	Snapshot   models.Snapshot
	Statements models.Statements
}

// TickerData is the raw view of a ticker, section by section.
type TickerData struct {
	Ticker   string
	Sections []Section
}

// Section is one titled block of the dashboard dump.
type Section struct {
	Title string
	Data  payload.Value
}

// Section titles, in display order.
const (
	SectionInfo                  = "Company Info"
	SectionFinancials            = "Financials"
	SectionQuarterlyFinancials   = "Quarterly Financials"
	SectionBalanceSheet          = "Balance Sheet"
	SectionQuarterlyBalanceSheet = "Quarterly Balance Sheet"
	SectionCashflow              = "Cashflow"
	SectionQuarterlyCashflow     = "Quarterly Cashflow"
	SectionEarnings              = "Earnings"
	SectionQuarterlyEarnings     = "Quarterly Earnings"
	SectionSustainability        = "Sustainability"
	SectionRecommendations       = "Recommendations"
)

// SectionTitles lists every section in display order.
var SectionTitles = []string{
	SectionInfo,
	SectionFinancials,
	SectionQuarterlyFinancials,
	SectionBalanceSheet,
	SectionQuarterlyBalanceSheet,
	SectionCashflow,
	SectionQuarterlyCashflow,
	SectionEarnings,
	SectionQuarterlyEarnings,
	SectionSustainability,
	SectionRecommendations,
}

// newTickerData builds a dump with every section present, filled from values.
// Titles missing from values are shown as empty.
func newTickerData(ticker string, values map[string]payload.Value) *TickerData {
	td := &TickerData{Ticker: ticker, Sections: make([]Section, 0, len(SectionTitles))}
	for _, title := range SectionTitles {
		v, ok := values[title]
		if !ok {
			v = payload.Null()
		}
		td.Sections = append(td.Sections, Section{Title: title, Data: v})
	}
	return td
}

// Section returns the section with the given title.
func (td *TickerData) Section(title string) (payload.Value, bool) {
	for _, s := range td.Sections {
		if s.Title == title {
			return s.Data, true
		}
	}
	return payload.Value{}, false
}

// APIError is a non-200 response from a provider.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error: %s (status: %d, endpoint: %s)", e.Provider, e.Message, e.StatusCode, e.Endpoint)
}

// Is lets a 404 response match ErrNotFound.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}
