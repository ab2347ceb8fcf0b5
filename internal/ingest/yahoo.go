package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/mauv0809/stock-ratios/internal/models"
	"github.com/mauv0809/stock-ratios/internal/payload"
)

const (
	// YahooBaseURL serves the quoteSummary and crumb endpoints.
	YahooBaseURL = "https://query2.finance.yahoo.com"
	// yahooCookieURL hands out the session cookie the crumb is bound to.
	yahooCookieURL = "https://fc.yahoo.com"
)

// Modules needed for the ratio calculator.
var yahooFundamentalModules = []string{
	"price",
	"summaryDetail",
	"financialData",
	"defaultKeyStatistics",
	"balanceSheetHistory",
	"incomeStatementHistory",
	"cashflowStatementHistory",
}

// Modules shown on the dashboard.
var yahooDumpModules = []string{
	"assetProfile",
	"price",
	"summaryDetail",
	"financialData",
	"defaultKeyStatistics",
	"incomeStatementHistory",
	"incomeStatementHistoryQuarterly",
	"balanceSheetHistory",
	"balanceSheetHistoryQuarterly",
	"cashflowStatementHistory",
	"cashflowStatementHistoryQuarterly",
	"earnings",
	"esgScores",
	"recommendationTrend",
}

// YahooClient reads Yahoo Finance's quoteSummary API.
type YahooClient struct {
	*transport
	baseURL   string
	cookieURL string

	mu    sync.Mutex
	crumb string
}

// NewYahooClient creates a Yahoo Finance client.
func NewYahooClient(opts ...Option) *YahooClient {
	o := buildOptions(YahooBaseURL, opts)
	cookieURL := yahooCookieURL
	if o.baseURL != YahooBaseURL {
		// Test servers serve the cookie themselves.
		cookieURL = o.baseURL + "/cookie"
	}
	return &YahooClient{
		transport: newTransport("yahoo", o),
		baseURL:   strings.TrimRight(o.baseURL, "/"),
		cookieURL: cookieURL,
	}
}

func (c *YahooClient) Name() string { return "yahoo" }

// quoteSummaryResponse is the envelope of /v10/finance/quoteSummary.
type quoteSummaryResponse struct {
	QuoteSummary struct {
		Result []map[string]any `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteSummary"`
}

// ensureCrumb fetches the session cookie and crumb once per client.
func (c *YahooClient) ensureCrumb(ctx context.Context, refresh bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.crumb != "" && !refresh {
		return c.crumb, nil
	}

	// The cookie endpoint answers 404 but still sets the session cookie.
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cookieURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating cookie request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	if resp, err := c.httpClient.Do(req); err == nil {
		resp.Body.Close()
	} else {
		c.logger.Debug().Err(err).Msg("cookie request failed")
	}

	body, err := c.get(ctx, c.baseURL+"/v1/test/getcrumb", "/v1/test/getcrumb")
	if err != nil {
		return "", fmt.Errorf("fetching crumb: %w", err)
	}
	crumb := strings.TrimSpace(string(body))
	if crumb == "" || strings.HasPrefix(crumb, "<") {
		return "", errors.New("fetching crumb: empty crumb")
	}
	c.crumb = crumb
	return crumb, nil
}

// quoteSummary returns the merged module objects for symbol.
func (c *YahooClient) quoteSummary(ctx context.Context, symbol string, modules []string) (map[string]any, error) {
	endpoint := "/v10/finance/quoteSummary/" + url.PathEscape(symbol)

	var resp quoteSummaryResponse
	err := c.withCrumb(ctx, func(crumb string) error {
		q := url.Values{}
		q.Set("modules", strings.Join(modules, ","))
		q.Set("crumb", crumb)
		return c.getJSON(ctx, c.baseURL+endpoint+"?"+q.Encode(), endpoint, &resp)
	})
	if err != nil {
		return nil, fmt.Errorf("fetching quote summary for %s: %w", symbol, err)
	}

	if e := resp.QuoteSummary.Error; e != nil {
		if strings.EqualFold(e.Code, "Not Found") {
			return nil, fmt.Errorf("%s: %w", symbol, ErrNotFound)
		}
		return nil, &APIError{Provider: c.Name(), StatusCode: http.StatusOK, Message: e.Description, Endpoint: endpoint}
	}
	if len(resp.QuoteSummary.Result) == 0 {
		return nil, fmt.Errorf("%s: %w", symbol, ErrNotFound)
	}
	return resp.QuoteSummary.Result[0], nil
}

// withCrumb runs fn with a crumb, refreshing it once if Yahoo rejects it.
func (c *YahooClient) withCrumb(ctx context.Context, fn func(crumb string) error) error {
	crumb, err := c.ensureCrumb(ctx, false)
	if err != nil {
		return err
	}
	err = fn(crumb)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
		c.logger.Debug().Msg("crumb rejected, refreshing")
		if crumb, err = c.ensureCrumb(ctx, true); err != nil {
			return err
		}
		return fn(crumb)
	}
	return err
}

// Fundamentals fetches the snapshot and annual statements for ticker.
func (c *YahooClient) Fundamentals(ctx context.Context, ticker string) (*Fundamentals, error) {
	result, err := c.quoteSummary(ctx, ticker, yahooFundamentalModules)
	if err != nil {
		return nil, err
	}
	return &Fundamentals{
		Snapshot:   yahooSnapshot(ticker, result),
		Statements: yahooStatements(result, false),
	}, nil
}

// Dump fetches every dashboard section for ticker.
func (c *YahooClient) Dump(ctx context.Context, ticker string) (*TickerData, error) {
	result, err := c.quoteSummary(ctx, ticker, yahooDumpModules)
	if err != nil {
		return nil, err
	}

	annual := yahooStatements(result, false)
	quarterly := yahooStatements(result, true)
	earnings := getMap(getMap(result, "earnings"), "financialsChart")

	return newTickerData(ticker, map[string]payload.Value{
		SectionInfo:                  yahooInfo(result),
		SectionFinancials:            payload.FromStatement(annual.IncomeStatement),
		SectionQuarterlyFinancials:   payload.FromStatement(quarterly.IncomeStatement),
		SectionBalanceSheet:          payload.FromStatement(annual.BalanceSheet),
		SectionQuarterlyBalanceSheet: payload.FromStatement(quarterly.BalanceSheet),
		SectionCashflow:              payload.FromStatement(annual.CashFlow),
		SectionQuarterlyCashflow:     payload.FromStatement(quarterly.CashFlow),
		SectionEarnings:              payload.FromJSON(anyOrNil(earnings, "yearly")),
		SectionQuarterlyEarnings:     payload.FromJSON(anyOrNil(earnings, "quarterly")),
		SectionSustainability:        payload.FromJSON(anyOrNil(result, "esgScores")),
		SectionRecommendations:       payload.FromJSON(anyOrNil(getMap(result, "recommendationTrend"), "trend")),
	}), nil
}

// yahooInfo merges the profile and quote modules into one flat mapping,
// later modules winning on key clashes.
func yahooInfo(result map[string]any) payload.Value {
	info := make(map[string]any)
	for _, module := range []string{"assetProfile", "summaryDetail", "defaultKeyStatistics", "financialData", "price"} {
		for k, v := range getMap(result, module) {
			if k == "maxAge" {
				continue
			}
			info[k] = v
		}
	}
	if len(info) == 0 {
		return payload.Null()
	}
	return payload.FromJSON(info)
}

func yahooSnapshot(ticker string, result map[string]any) models.Snapshot {
	price := getMap(result, "price")
	summary := getMap(result, "summaryDetail")
	stats := getMap(result, "defaultKeyStatistics")
	financial := getMap(result, "financialData")

	name := getString(price, "longName")
	if name == "" {
		name = getString(price, "shortName")
	}

	marketCap := decimalFrom(summary["marketCap"])
	if marketCap == nil {
		marketCap = decimalFrom(price["marketCap"])
	}

	return models.Snapshot{
		Ticker:          ticker,
		Name:            name,
		Currency:        getString(price, "currency"),
		Price:           decimalFrom(price["regularMarketPrice"]),
		MarketCap:       marketCap,
		EnterpriseValue: decimalFrom(stats["enterpriseValue"]),
		EBITDA:          decimalFrom(financial["ebitda"]),
		PERatio:         decimalFrom(summary["trailingPE"]),
		PSRatio:         decimalFrom(summary["priceToSalesTrailing12Months"]),
	}
}

// yahooStatements reads the three statement modules, annual or quarterly.
func yahooStatements(result map[string]any, quarterly bool) models.Statements {
	suffix := ""
	if quarterly {
		suffix = "Quarterly"
	}
	skip := []string{"maxAge"}
	return models.Statements{
		BalanceSheet: statementFromRecords(
			getRecords(getMap(result, "balanceSheetHistory"+suffix), "balanceSheetStatements"), "endDate", skip...),
		IncomeStatement: statementFromRecords(
			getRecords(getMap(result, "incomeStatementHistory"+suffix), "incomeStatementHistory"), "endDate", skip...),
		CashFlow: statementFromRecords(
			getRecords(getMap(result, "cashflowStatementHistory"+suffix), "cashflowStatements"), "endDate", skip...),
	}
}

func anyOrNil(m map[string]any, key string) any {
	if m == nil {
		return nil
	}
	return m[key]
}
