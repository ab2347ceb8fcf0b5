package ingest

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/mauv0809/stock-ratios/internal/models"
	"github.com/mauv0809/stock-ratios/internal/payload"
)

const (
	// EODHDBaseURL is the base URL for the EODHD API.
	EODHDBaseURL = "https://eodhd.com/api"
	// eodhdDefaultExchange is appended to symbols given without an exchange.
	eodhdDefaultExchange = "US"
)

// metadata fields inside EODHD statement records
var eodhdRecordMeta = []string{"filing_date", "currency_symbol"}

// EODHDClient reads the EODHD fundamentals and real-time APIs.
type EODHDClient struct {
	*transport
	baseURL string
	apiKey  string
}

// NewEODHDClient creates an EODHD client.
func NewEODHDClient(apiKey string, opts ...Option) *EODHDClient {
	o := buildOptions(EODHDBaseURL, opts)
	return &EODHDClient{
		transport: newTransport("eodhd", o),
		baseURL:   strings.TrimRight(o.baseURL, "/"),
		apiKey:    apiKey,
	}
}

func (c *EODHDClient) Name() string { return "eodhd" }

// Symbol converts a ticker to EODHD's CODE.EXCHANGE form.
func (c *EODHDClient) Symbol(ticker string) string {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	if strings.Contains(t, ".") {
		return t
	}
	return t + "." + eodhdDefaultExchange
}

// apiGet performs a GET with the API token appended.
func (c *EODHDClient) apiGet(ctx context.Context, path string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_token", c.apiKey)
	params.Set("fmt", "json")
	return c.getJSON(ctx, c.baseURL+path+"?"+params.Encode(), path, out)
}

func (c *EODHDClient) fundamentals(ctx context.Context, ticker string) (map[string]any, error) {
	var result map[string]any
	if err := c.apiGet(ctx, "/fundamentals/"+url.PathEscape(c.Symbol(ticker)), nil, &result); err != nil {
		return nil, fmt.Errorf("fetching fundamentals for %s: %w", ticker, err)
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("%s: %w", ticker, ErrNotFound)
	}
	return result, nil
}

// price returns the latest close from the real-time endpoint, nil when EODHD
// reports "NA".
func (c *EODHDClient) price(ctx context.Context, ticker string) (map[string]any, error) {
	var quote map[string]any
	if err := c.apiGet(ctx, "/real-time/"+url.PathEscape(c.Symbol(ticker)), nil, &quote); err != nil {
		return nil, fmt.Errorf("fetching quote for %s: %w", ticker, err)
	}
	return quote, nil
}

// Fundamentals fetches the snapshot and annual statements for ticker.
func (c *EODHDClient) Fundamentals(ctx context.Context, ticker string) (*Fundamentals, error) {
	result, err := c.fundamentals(ctx, ticker)
	if err != nil {
		return nil, err
	}
	quote, err := c.price(ctx, ticker)
	if err != nil {
		return nil, err
	}

	return &Fundamentals{
		Snapshot:   eodhdSnapshot(ticker, result, quote),
		Statements: eodhdStatements(result, "yearly"),
	}, nil
}

// Dump fetches every dashboard section for ticker.
func (c *EODHDClient) Dump(ctx context.Context, ticker string) (*TickerData, error) {
	result, err := c.fundamentals(ctx, ticker)
	if err != nil {
		return nil, err
	}

	annual := eodhdStatements(result, "yearly")
	quarterly := eodhdStatements(result, "quarterly")
	earnings := getMap(result, "Earnings")

	info := make(map[string]any)
	for _, section := range []string{"General", "Highlights", "Valuation", "SharesStats", "Technicals"} {
		for k, v := range getMap(result, section) {
			info[k] = v
		}
	}

	return newTickerData(ticker, map[string]payload.Value{
		SectionInfo:                  payload.FromJSON(info),
		SectionFinancials:            payload.FromStatement(annual.IncomeStatement),
		SectionQuarterlyFinancials:   payload.FromStatement(quarterly.IncomeStatement),
		SectionBalanceSheet:          payload.FromStatement(annual.BalanceSheet),
		SectionQuarterlyBalanceSheet: payload.FromStatement(quarterly.BalanceSheet),
		SectionCashflow:              payload.FromStatement(annual.CashFlow),
		SectionQuarterlyCashflow:     payload.FromStatement(quarterly.CashFlow),
		SectionEarnings:              payload.FromJSON(datedRecords(getMap(earnings, "Annual"))),
		SectionQuarterlyEarnings:     payload.FromJSON(datedRecords(getMap(earnings, "History"))),
		SectionSustainability:        payload.FromJSON(anyOrNil(result, "ESGScores")),
		SectionRecommendations:       payload.FromJSON(anyOrNil(result, "AnalystRatings")),
	}), nil
}

func eodhdSnapshot(ticker string, result, quote map[string]any) models.Snapshot {
	general := getMap(result, "General")
	highlights := getMap(result, "Highlights")
	valuation := getMap(result, "Valuation")

	return models.Snapshot{
		Ticker:          ticker,
		Name:            getString(general, "Name"),
		Currency:        getString(general, "CurrencyCode"),
		Price:           decimalFrom(anyOrNil(quote, "close")),
		MarketCap:       decimalFrom(highlights["MarketCapitalization"]),
		EnterpriseValue: decimalFrom(valuation["EnterpriseValue"]),
		EBITDA:          decimalFrom(highlights["EBITDA"]),
		PERatio:         decimalFrom(highlights["PERatio"]),
		PSRatio:         decimalFrom(valuation["PriceSalesTTM"]),
	}
}

// eodhdStatements reads Financials.{Balance_Sheet,Income_Statement,Cash_Flow}
// for the given frequency ("yearly" or "quarterly").
func eodhdStatements(result map[string]any, frequency string) models.Statements {
	financials := getMap(result, "Financials")
	read := func(name string) models.Statement {
		byDate := getMap(getMap(financials, name), frequency)
		records := make([]map[string]any, 0, len(byDate))
		for date, v := range byDate {
			rec, ok := v.(map[string]any)
			if !ok {
				continue
			}
			if _, ok := rec["date"]; !ok {
				rec["date"] = date
			}
			records = append(records, rec)
		}
		return statementFromRecords(records, "date", eodhdRecordMeta...)
	}
	return models.Statements{
		BalanceSheet:    read("Balance_Sheet"),
		IncomeStatement: read("Income_Statement"),
		CashFlow:        read("Cash_Flow"),
	}
}

// datedRecords flattens a {date: record} object into records ordered newest first.
func datedRecords(byDate map[string]any) []any {
	if len(byDate) == 0 {
		return nil
	}
	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))

	out := make([]any, 0, len(dates))
	for _, d := range dates {
		out = append(out, byDate[d])
	}
	return out
}
