package exporter

import (
	"github.com/shopspring/decimal"
)

const (
	moneyPlaces  = 2
	sharesPlaces = 4
)

// formatMoney formats a currency amount with exactly 2 decimal places
func formatMoney(f float64) string {
	return decimal.NewFromFloat(f).StringFixed(moneyPlaces)
}

// formatShares formats a share quantity with exactly 4 decimal places
func formatShares(f float64) string {
	return decimal.NewFromFloat(f).StringFixed(sharesPlaces)
}

// formatPercent formats a percentage with 2 decimal places and no sign symbol
func formatPercent(f float64) string {
	return decimal.NewFromFloat(f).StringFixed(moneyPlaces)
}
