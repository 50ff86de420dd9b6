// Package aggregate builds the published views from normalized records.
package aggregate

import (
	"sort"

	"github.com/shopspring/decimal"

	"finboard/internal/core"
)

// Aggregate partitions records by kind and sorts each collection by date,
// newest first. The sort is stable, so same-day records keep their merge
// order. Returned slices are fresh and never nil.
func Aggregate(txs []core.Transaction) core.Views {
	v := core.Views{
		All:     make([]core.Transaction, 0, len(txs)),
		Income:  make([]core.Transaction, 0),
		Expense: make([]core.Transaction, 0),
	}
	for _, t := range txs {
		switch t.Kind {
		case core.KindIncome:
			v.Income = append(v.Income, t)
		case core.KindExpense:
			v.Expense = append(v.Expense, t)
		default:
			continue
		}
	}
	v.All = append(v.All, v.Income...)
	v.All = append(v.All, v.Expense...)

	sortByDateDesc(v.All)
	sortByDateDesc(v.Income)
	sortByDateDesc(v.Expense)
	return v
}

func sortByDateDesc(txs []core.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].Date.After(txs[j].Date.Time)
	})
}

// Summarize totals the views for one month. Month 0 selects the whole year
// and year 0 selects every record. Categories are listed in order of first
// appearance in the expense collection.
func Summarize(v core.Views, year, month int) core.MonthSummary {
	s := core.MonthSummary{
		Year:       year,
		Month:      month,
		Income:     decimal.Zero,
		Expense:    decimal.Zero,
		ByCategory: make([]core.CategoryAmount, 0),
	}

	for _, t := range v.Income {
		if inPeriod(t.Date, year, month) {
			s.Income = s.Income.Add(t.Amount)
			s.Count++
		}
	}

	index := map[string]int{}
	for _, t := range v.Expense {
		if !inPeriod(t.Date, year, month) {
			continue
		}
		s.Expense = s.Expense.Add(t.Amount)
		s.Count++
		i, ok := index[t.Category]
		if !ok {
			i = len(s.ByCategory)
			index[t.Category] = i
			s.ByCategory = append(s.ByCategory, core.CategoryAmount{Name: t.Category, Amount: decimal.Zero})
		}
		s.ByCategory[i].Amount = s.ByCategory[i].Amount.Add(t.Amount)
	}

	s.Net = s.Income.Sub(s.Expense)
	return s
}

func inPeriod(d core.Date, year, month int) bool {
	if year != 0 && d.Year() != year {
		return false
	}
	if month != 0 && int(d.Month()) != month {
		return false
	}
	return true
}
