package ratios

import "github.com/mauv0809/stock-ratios/internal/models"

// value is a looked-up input. It counts as usable only when found and non-zero.
type value struct {
	v  float64
	ok bool
}

func lookup(s models.Statement, labels []string) value {
	v, ok := Lookup(s, labels...)
	return value{v: v, ok: ok}
}

func (x value) usable() bool {
	return x.ok && x.v != 0
}

// quotient divides num by den, or returns the unavailable sentinel when
// either side is missing or zero.
func quotient(num, den value) float64 {
	if !num.usable() || !den.usable() {
		return models.Unavailable
	}
	return num.v / den.v
}

// Compute derives every ratio for one ticker. When current assets or current
// liabilities cannot be found at all it returns an empty result; a zero
// denominator yields the unavailable sentinel instead.
func Compute(st models.Statements) models.RatioResult {
	currentAssets := lookup(st.BalanceSheet, CurrentAssetsLabels)
	currentLiabilities := lookup(st.BalanceSheet, CurrentLiabilitiesLabels)
	if !currentAssets.ok || !currentLiabilities.ok {
		return models.RatioResult{}
	}

	inventory := lookup(st.BalanceSheet, InventoryLabels)
	totalAssets := lookup(st.BalanceSheet, TotalAssetsLabels)
	totalLiabilities := lookup(st.BalanceSheet, TotalLiabilitiesLabels)
	netIncome := lookup(st.IncomeStatement, NetIncomeLabels)
	operatingIncome := lookup(st.IncomeStatement, OperatingIncomeLabels)
	interestExpense := lookup(st.IncomeStatement, InterestExpenseLabels)
	investing := lookup(st.CashFlow, InvestingCashLabels)

	var equity value
	if totalAssets.usable() && totalLiabilities.usable() {
		equity = value{v: totalAssets.v - totalLiabilities.v, ok: true}
	}

	res := models.RatioResult{
		models.DebtToEquity:     quotient(totalLiabilities, equity),
		models.ReturnOnEquity:   quotient(netIncome, equity),
		models.InterestCoverage: quotient(operatingIncome, interestExpense),
	}

	if currentLiabilities.usable() {
		res[models.CurrentRatio] = currentAssets.v / currentLiabilities.v
	} else {
		res[models.CurrentRatio] = models.Unavailable
	}

	if inventory.usable() && currentLiabilities.usable() {
		res[models.QuickRatio] = (currentAssets.v - inventory.v) / currentLiabilities.v
	} else {
		res[models.QuickRatio] = models.Unavailable
	}

	if investing.ok {
		res[models.InvestingCashFlow] = investing.v
	} else {
		res[models.InvestingCashFlow] = models.Unavailable
	}

	return res
}
