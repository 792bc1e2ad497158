// Package analytics computes the derived figures shown on the dashboard.
//
// Every function is a pure function of the slice it receives. Callers pass a
// filtered subset to get figures for that subset; there is no separate path
// for filtered and unfiltered input.
package analytics

import (
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

type (
	Totals struct {
		Income  core.Money
		Expense core.Money
		Balance core.Money
	}

	Summary struct {
		Totals
		IncomeCount  int
		ExpenseCount int
		TotalCount   int
	}

	YTD struct {
		Year    int
		Income  core.Money
		Expense core.Money
	}

	CategoryTotal struct {
		Category string
		Total    core.Money
	}

	// Averages holds per-month means over the months that contain at least
	// one transaction. SavingsRate is a whole percentage.
	Averages struct {
		AvgMonthlyIncome  core.Money
		AvgMonthlyExpense core.Money
		SavingsRate       int64
		Months            int
	}
)

// ComputeTotals sums amounts by type.
func ComputeTotals(ts []core.Transaction) Totals {
	var out Totals
	for _, t := range ts {
		switch t.Type {
		case core.Income:
			out.Income = out.Income.Add(t.Amount)
		case core.Expense:
			out.Expense = out.Expense.Add(t.Amount)
		}
	}
	out.Balance = out.Income.Sub(out.Expense)
	return out
}

// Summarize is ComputeTotals plus per-type counts.
func Summarize(ts []core.Transaction) Summary {
	s := Summary{Totals: ComputeTotals(ts), TotalCount: len(ts)}
	for _, t := range ts {
		switch t.Type {
		case core.Income:
			s.IncomeCount++
		case core.Expense:
			s.ExpenseCount++
		}
	}
	return s
}

// YearToDate totals the transactions whose normalized date falls in year.
func YearToDate(ts []core.Transaction, year int) YTD {
	var inYear []core.Transaction
	for _, t := range ts {
		when := t.When()
		if !when.IsZero() && when.Year() == year {
			inYear = append(inYear, t)
		}
	}
	totals := ComputeTotals(inYear)
	return YTD{Year: year, Income: totals.Income, Expense: totals.Expense}
}

// CurrentYearToDate is YearToDate for the calendar year of now.
func CurrentYearToDate(ts []core.Transaction, now time.Time) YTD {
	return YearToDate(ts, now.UTC().Year())
}

// TopCategory returns the expense category with the greatest total. Ties go
// to the category that appears first in ts. ok is false when ts holds no
// expenses.
func TopCategory(ts []core.Transaction) (top CategoryTotal, ok bool) {
	totals := make(map[string]core.Money)
	var order []string
	for _, t := range ts {
		if t.Type != core.Expense {
			continue
		}
		if _, seen := totals[t.Category]; !seen {
			order = append(order, t.Category)
		}
		totals[t.Category] = totals[t.Category].Add(t.Amount)
	}
	for _, name := range order {
		if !ok || totals[name].Cents > top.Total.Cents {
			top = CategoryTotal{Category: name, Total: totals[name]}
			ok = true
		}
	}
	return top, ok
}

// CategoryBreakdown returns expense totals per category in first-seen order.
func CategoryBreakdown(ts []core.Transaction) []CategoryTotal {
	index := make(map[string]int)
	var out []CategoryTotal
	for _, t := range ts {
		if t.Type != core.Expense {
			continue
		}
		i, seen := index[t.Category]
		if !seen {
			i = len(out)
			index[t.Category] = i
			out = append(out, CategoryTotal{Category: t.Category})
		}
		out[i].Total = out[i].Total.Add(t.Amount)
	}
	return out
}

type bucketKey struct {
	year  int
	month time.Month
}

// MonthlyAverages buckets transactions by (year, month) of their normalized
// date and averages income and expense over the occupied buckets only.
func MonthlyAverages(ts []core.Transaction) Averages {
	buckets := make(map[bucketKey]struct{})
	var income, expense int64
	for _, t := range ts {
		when := t.When()
		if when.IsZero() {
			continue
		}
		buckets[bucketKey{year: when.Year(), month: when.Month()}] = struct{}{}
		switch t.Type {
		case core.Income:
			income += t.Amount.Cents
		case core.Expense:
			expense += t.Amount.Cents
		}
	}
	if len(buckets) == 0 {
		return Averages{}
	}

	months := decimal.NewFromInt(int64(len(buckets)))
	avgIncome := decimal.NewFromInt(income).Div(months)
	avgExpense := decimal.NewFromInt(expense).Div(months)

	out := Averages{
		AvgMonthlyIncome:  core.Money{Cents: avgIncome.Round(0).IntPart()},
		AvgMonthlyExpense: core.Money{Cents: avgExpense.Round(0).IntPart()},
		Months:            len(buckets),
	}
	if avgIncome.IsPositive() {
		rate := avgIncome.Sub(avgExpense).Div(avgIncome).Mul(decimal.NewFromInt(100))
		out.SavingsRate = rate.Round(0).IntPart()
	}
	return out
}
