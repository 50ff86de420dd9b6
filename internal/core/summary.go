package core

import "github.com/shopspring/decimal"

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// MonthSummary is a compact summary of the published views for one month.
// Month 0 covers the whole year; Year 0 covers every record.
type MonthSummary struct {
	Year       int              `json:"year"`
	Month      int              `json:"month"`
	Income     decimal.Decimal  `json:"income"`
	Expense    decimal.Decimal  `json:"expense"`
	Net        decimal.Decimal  `json:"net"`
	Count      int              `json:"count"`
	ByCategory []CategoryAmount `json:"by_category"`
}
