package batch

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/mauv0809/stock-ratios/internal/models"
)

// Columns is the fixed CSV schema.
var Columns = []string{
	"Ticker",
	"Market Cap",
	"Enterprise Value",
	"EBITDA",
	"P/E Ratio",
	"P/S Ratio",
	string(models.DebtToEquity),
	string(models.CurrentRatio),
	string(models.QuickRatio),
	string(models.ReturnOnEquity),
	string(models.InterestCoverage),
	string(models.InvestingCashFlow),
}

// WriteCSVFile writes rows to path, creating parent directories.
func WriteCSVFile(path string, rows []models.BatchRow) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	if err := WriteCSV(f, rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteCSV writes the header and one record per successful row.
// Failed rows are skipped so no partial record is ever written.
func WriteCSV(w io.Writer, rows []models.BatchRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, row := range rows {
		if row.Failed() {
			continue
		}
		if err := cw.Write(Record(row)); err != nil {
			return fmt.Errorf("writing %s: %w", row.Ticker, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}
	return nil
}

// Record formats a row in column order.
func Record(row models.BatchRow) []string {
	s := row.Snapshot
	rec := []string{
		row.Ticker,
		formatDecimal(s.MarketCap),
		formatDecimal(s.EnterpriseValue),
		formatDecimal(s.EBITDA),
		formatDecimal(s.PERatio),
		formatDecimal(s.PSRatio),
	}
	for _, name := range models.RatioNames {
		rec = append(rec, FormatRatio(row.Ratios, name))
	}
	return rec
}

// FormatRatio renders a ratio cell: "inf" for the unavailable sentinel and
// an empty cell when the ratio set has no entry.
func FormatRatio(r models.RatioResult, name models.RatioName) string {
	v, ok := r[name]
	if !ok || math.IsNaN(v) {
		return ""
	}
	if math.IsInf(v, 1) {
		return "inf"
	}
	if math.IsInf(v, -1) {
		return "-inf"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatDecimal(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}
