// Package views holds the dashboard's templ components.
package views

import (
	"fmt"
	"math"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/mauv0809/stock-ratios/internal/batch"
	"github.com/mauv0809/stock-ratios/internal/ingest"
	"github.com/mauv0809/stock-ratios/internal/models"
	"github.com/mauv0809/stock-ratios/internal/payload"
)

// IndexPage is what the dashboard shows.
type IndexPage struct {
	Input    string   // raw ticker list as typed
	Tickers  []string // parsed tickers offered in the picker
	Selected string
	Data     *ingest.TickerData
	Error    string
}

// RatiosPage lists the latest stored snapshot per ticker.
type RatiosPage struct {
	Enabled   bool // false when no database is configured
	Snapshots []models.StoredSnapshot
	Error     string
}

// companyName picks a display name out of the info section.
func companyName(td *ingest.TickerData) string {
	info, ok := td.Section(ingest.SectionInfo)
	if !ok {
		return ""
	}
	for _, key := range []string{"longName", "shortName", "Name"} {
		v, ok := info.Get(key)
		if !ok || v.Kind != payload.KindScalar {
			continue
		}
		if s, ok := v.Scalar.(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func formatScalar(s any) string {
	switch x := s.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		if math.IsInf(x, 1) {
			return "inf"
		}
		if math.IsNaN(x) {
			return "NaN"
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	return fmt.Sprint(s)
}

func ratioHeaders() []string {
	return append(append([]string{}, batch.Columns...), "Updated")
}

// snapshotCells formats a stored snapshot in ratioHeaders order.
func snapshotCells(s models.StoredSnapshot) []string {
	cells := []string{s.Ticker}
	for _, d := range []*decimal.Decimal{
		s.Snapshot.MarketCap, s.Snapshot.EnterpriseValue, s.Snapshot.EBITDA,
		s.Snapshot.PERatio, s.Snapshot.PSRatio,
	} {
		cells = append(cells, decimalCell(d))
	}

	ratios := models.RatioResult{}
	for name, v := range s.Ratios {
		if v != nil {
			ratios[models.RatioName(name)] = *v
		}
	}
	for _, name := range models.RatioNames {
		cells = append(cells, ratioCell(ratios, name))
	}
	return append(cells, s.CreatedAt.Format("2006-01-02 15:04"))
}

func decimalCell(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.StringFixedBank(2)
}

func ratioCell(r models.RatioResult, name models.RatioName) string {
	v, ok := r[name]
	switch {
	case !ok:
		return ""
	case !r.Available(name):
		return "inf"
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}
