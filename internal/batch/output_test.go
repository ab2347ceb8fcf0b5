package batch

import (
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mauv0809/stock-ratios/internal/models"
)

func TestColumnsSchema(t *testing.T) {
	assert.Equal(t, []string{
		"Ticker", "Market Cap", "Enterprise Value", "EBITDA", "P/E Ratio", "P/S Ratio",
		"Debt-to-Equity Ratio", "Current Ratio", "Quick Ratio", "Return on Equity (ROE)",
		"Interest Coverage Ratio", "Cash Flow from Investing Activities",
	}, Columns)
}

func TestRecordFormatting(t *testing.T) {
	row := models.NewBatchRow("AAPL", models.Snapshot{
		MarketCap: dec("3450000000000"),
		PERatio:   dec("34.6"),
	}, models.RatioResult{
		models.DebtToEquity:      math.Inf(1),
		models.CurrentRatio:      2,
		models.QuickRatio:        1.5,
		models.ReturnOnEquity:    0.25,
		models.InterestCoverage:  math.Inf(1),
		models.InvestingCashFlow: -7500,
	})

	assert.Equal(t, []string{
		"AAPL", "3450000000000", "", "", "34.6", "",
		"inf", "2", "1.5", "0.25", "inf", "-7500",
	}, Record(row))
}

func TestRecordEmptyRatioSet(t *testing.T) {
	rec := Record(models.NewBatchRow("XOM", models.Snapshot{}, models.RatioResult{}))
	require.Len(t, rec, len(Columns))
	for _, cell := range rec[1:] {
		assert.Empty(t, cell)
	}
}

func TestWriteCSVFileSkipsFailedRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ratios.csv")
	rows := []models.BatchRow{
		models.NewBatchRow("MSFT", models.Snapshot{}, models.RatioResult{models.CurrentRatio: 1.25}),
		models.FailedRow("BAD", errors.New("nope")),
		models.NewBatchRow("AAPL", models.Snapshot{}, models.RatioResult{models.CurrentRatio: 2}),
	}

	require.NoError(t, WriteCSVFile(path, rows))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, Columns, records[0])
	assert.Equal(t, "MSFT", records[1][0])
	assert.Equal(t, "1.25", records[1][7])
	assert.Equal(t, "AAPL", records[2][0])
}

func TestCollector(t *testing.T) {
	c := NewCollector()
	c.Add(models.NewBatchRow("AAPL", models.Snapshot{}, nil))
	c.Add(models.FailedRow("X", errors.New("bad")))
	c.Add(models.FailedRow("Y", errors.New("bad")))

	assert.Len(t, c.Rows(), 1)
	assert.Equal(t, []string{"X", "Y"}, c.Failed())
	assert.Equal(t, "X, Y", FailureSummary(c.Failed()))
	assert.Equal(t, "", FailureSummary(nil))
}
