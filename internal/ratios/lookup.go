// Package ratios derives financial ratios from loosely labelled statements.
package ratios

import "github.com/mauv0809/stock-ratios/internal/models"

// Synonym lists, most likely label first. Providers and data vintages
// disagree on naming, so every input is searched under several labels.
var (
	CurrentAssetsLabels      = []string{"Total Current Assets", "Current Assets"}
	CurrentLiabilitiesLabels = []string{"Total Current Liabilities", "Current Liabilities"}
	InventoryLabels          = []string{"Inventory", "Inventories"}
	TotalAssetsLabels        = []string{"Total Assets"}
	TotalLiabilitiesLabels   = []string{
		"Total Liab",
		"Total Liabilities",
		"Total Liabilities Net Minority Interest",
	}
	NetIncomeLabels = []string{
		"Net Income",
		"Net Income Common Stockholders",
		"Net Income From Continuing Operations",
	}
	OperatingIncomeLabels = []string{"Operating Income", "EBIT", "Total Operating Income As Reported"}
	InterestExpenseLabels = []string{"Interest Expense", "Interest Expense Non Operating"}
	InvestingCashLabels   = []string{
		"Total Cashflows From Investing Activities",
		"Investing Cash Flow",
		"Cash Flow From Continuing Investing Activities",
	}
)

// Lookup returns the value of the first label present in s with a number.
// Later labels are never consulted once one matches.
func Lookup(s models.Statement, labels ...string) (float64, bool) {
	for _, label := range labels {
		if v, ok := s.Latest(label); ok {
			return v, true
		}
	}
	return 0, false
}
