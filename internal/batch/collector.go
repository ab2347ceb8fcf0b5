package batch

import (
	"strings"

	"github.com/mauv0809/stock-ratios/internal/models"
)

// Collector accumulates batch rows. Failed rows are kept out of the table
// and only recorded by ticker. It is not safe for concurrent use; the batch
// driver owns it.
type Collector struct {
	rows   []models.BatchRow
	failed []string
	errs   map[string]error
}

func NewCollector() *Collector {
	return &Collector{errs: make(map[string]error)}
}

// Add records one finished row.
func (c *Collector) Add(row models.BatchRow) {
	if row.Failed() {
		c.failed = append(c.failed, row.Ticker)
		c.errs[row.Ticker] = row.Err
		return
	}
	c.rows = append(c.rows, row)
}

func (c *Collector) Rows() []models.BatchRow { return c.rows }

func (c *Collector) Failed() []string { return c.failed }

func (c *Collector) Errors() map[string]error { return c.errs }

// FailureSummary joins the failed tickers with commas, empty when none failed.
func FailureSummary(failed []string) string {
	return strings.Join(failed, ", ")
}
