package ratios

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mauv0809/stock-ratios/internal/models"
)

const period = "2024-12-31"

func statement(items map[string]float64) models.Statement {
	s := models.Statement{}
	for label, v := range items {
		s.Set(label, period, models.Float(v))
	}
	return s
}

func TestLookupFirstMatchWins(t *testing.T) {
	s := statement(map[string]float64{
		"Current Assets":       10,
		"Total Current Assets": 20,
	})

	v, ok := Lookup(s, "Total Current Assets", "Current Assets")
	require.True(t, ok)
	assert.Equal(t, 20.0, v)

	v, ok = Lookup(s, "Current Assets", "Total Current Assets")
	require.True(t, ok)
	assert.Equal(t, 10.0, v)
}

func TestLookupSkipsNullValues(t *testing.T) {
	s := models.Statement{}
	s.Set("Total Current Assets", period, nil)
	s.Set("Current Assets", period, models.Float(42))

	v, ok := Lookup(s, CurrentAssetsLabels...)
	require.True(t, ok)
	assert.Equal(t, 42.0, v)
}

func TestLookupNotFound(t *testing.T) {
	_, ok := Lookup(models.Statement{}, "Total Current Assets")
	assert.False(t, ok)

	_, ok = Lookup(statement(map[string]float64{"Inventory": 1}))
	assert.False(t, ok)
}

func TestComputeCurrentAndQuickRatio(t *testing.T) {
	res := Compute(models.Statements{
		BalanceSheet: statement(map[string]float64{
			"Total Current Assets":      200,
			"Total Current Liabilities": 100,
			"Inventory":                 50,
		}),
	})

	assert.InDelta(t, 2.0, res[models.CurrentRatio], 1e-9)
	assert.InDelta(t, 1.5, res[models.QuickRatio], 1e-9)
}

func TestComputeFullSet(t *testing.T) {
	res := Compute(models.Statements{
		BalanceSheet: statement(map[string]float64{
			"Current Assets":      300,
			"Current Liabilities": 150,
			"Inventories":         30,
			"Total Assets":        1000,
			"Total Liabilities":   600,
		}),
		IncomeStatement: statement(map[string]float64{
			"Net Income":       80,
			"Operating Income": 120,
			"Interest Expense": 40,
		}),
		CashFlow: statement(map[string]float64{
			"Investing Cash Flow": -75,
		}),
	})

	require.Len(t, res, len(models.RatioNames))
	assert.InDelta(t, 1.5, res[models.DebtToEquity], 1e-9)
	assert.InDelta(t, 2.0, res[models.CurrentRatio], 1e-9)
	assert.InDelta(t, 1.8, res[models.QuickRatio], 1e-9)
	assert.InDelta(t, 0.2, res[models.ReturnOnEquity], 1e-9)
	assert.InDelta(t, 3.0, res[models.InterestCoverage], 1e-9)
	assert.Equal(t, -75.0, res[models.InvestingCashFlow])
	for _, name := range models.RatioNames {
		assert.True(t, res.Available(name), string(name))
	}
}

func TestComputeZeroLiabilitiesIsInfinite(t *testing.T) {
	res := Compute(models.Statements{
		BalanceSheet: statement(map[string]float64{
			"Total Current Assets":      200,
			"Total Current Liabilities": 100,
			"Total Assets":              500,
			"Total Liab":                0,
		}),
	})

	assert.True(t, math.IsInf(res[models.DebtToEquity], 1))
	assert.True(t, math.IsInf(res[models.ReturnOnEquity], 1))
}

func TestComputeZeroEquityIsInfinite(t *testing.T) {
	res := Compute(models.Statements{
		BalanceSheet: statement(map[string]float64{
			"Total Current Assets":      200,
			"Total Current Liabilities": 100,
			"Total Assets":              500,
			"Total Liab":                500,
		}),
		IncomeStatement: statement(map[string]float64{"Net Income": 10}),
	})

	assert.True(t, math.IsInf(res[models.DebtToEquity], 1))
	assert.True(t, math.IsInf(res[models.ReturnOnEquity], 1))
}

func TestComputeZeroCurrentLiabilities(t *testing.T) {
	res := Compute(models.Statements{
		BalanceSheet: statement(map[string]float64{
			"Total Current Assets":      200,
			"Total Current Liabilities": 0,
			"Inventory":                 50,
		}),
	})

	require.NotEmpty(t, res)
	assert.True(t, math.IsInf(res[models.CurrentRatio], 1))
	assert.True(t, math.IsInf(res[models.QuickRatio], 1))
}

func TestComputeMissingInventoryAndInterest(t *testing.T) {
	res := Compute(models.Statements{
		BalanceSheet: statement(map[string]float64{
			"Total Current Assets":      200,
			"Total Current Liabilities": 100,
		}),
		IncomeStatement: statement(map[string]float64{
			"Operating Income": 50,
			"Interest Expense": 0,
		}),
	})

	assert.InDelta(t, 2.0, res[models.CurrentRatio], 1e-9)
	assert.True(t, math.IsInf(res[models.QuickRatio], 1))
	assert.True(t, math.IsInf(res[models.InterestCoverage], 1))
	assert.True(t, math.IsInf(res[models.InvestingCashFlow], 1))
}

func TestComputeMissingCurrentItemsIsEmpty(t *testing.T) {
	tests := map[string]models.Statement{
		"no current assets": statement(map[string]float64{
			"Total Current Liabilities": 100,
			"Total Assets":              500,
			"Total Liab":                200,
		}),
		"no current liabilities": statement(map[string]float64{
			"Total Current Assets": 100,
			"Inventory":            10,
		}),
		"empty": {},
	}

	for name, bs := range tests {
		t.Run(name, func(t *testing.T) {
			res := Compute(models.Statements{
				BalanceSheet:    bs,
				IncomeStatement: statement(map[string]float64{"Net Income": 10}),
			})
			assert.Empty(t, res)
		})
	}
}

func TestComputeIsDeterministic(t *testing.T) {
	st := models.Statements{
		BalanceSheet: statement(map[string]float64{
			"Total Current Assets":      321.5,
			"Total Current Liabilities": 123.25,
			"Inventory":                 17,
			"Total Assets":              999,
			"Total Liab":                444,
		}),
	}
	assert.Equal(t, Compute(st), Compute(st))
}
