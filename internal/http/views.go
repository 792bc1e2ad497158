package http

import (
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/analytics"
	"fintrack/internal/core"
	"fintrack/internal/dashboard"
)

// View-models returned by the API. Amounts carry both the integer cents
// and the decimal value; the decimal encodes as a JSON string.
type (
	moneyJSON struct {
		Cents     int64           `json:"cents"`
		Amount    decimal.Decimal `json:"amount"`
		Formatted string          `json:"formatted"`
	}

	transactionJSON struct {
		ID          string    `json:"id"`
		Type        core.Type `json:"type"`
		Amount      moneyJSON `json:"amount"`
		Category    string    `json:"category"`
		Icon        string    `json:"icon"`
		Description string    `json:"description"`
		Date        string    `json:"date"`
		DisplayDate string    `json:"display_date"`
		ReceiptURL  string    `json:"receipt_url,omitempty"`
		CreatedAt   time.Time `json:"created_at"`
		UpdatedAt   time.Time `json:"updated_at"`
	}

	summaryJSON struct {
		Income       moneyJSON `json:"income"`
		Expense      moneyJSON `json:"expense"`
		Balance      moneyJSON `json:"balance"`
		IncomeCount  int       `json:"income_count"`
		ExpenseCount int       `json:"expense_count"`
		TotalCount   int       `json:"total_count"`
	}

	categoryTotalJSON struct {
		Category string    `json:"category"`
		Icon     string    `json:"icon"`
		Total    moneyJSON `json:"total"`
	}

	ytdJSON struct {
		Year    int       `json:"year"`
		Income  moneyJSON `json:"income"`
		Expense moneyJSON `json:"expense"`
	}

	averagesJSON struct {
		AvgMonthlyIncome  moneyJSON `json:"avg_monthly_income"`
		AvgMonthlyExpense moneyJSON `json:"avg_monthly_expense"`
		SavingsRate       int64     `json:"savings_rate"`
		Months            int       `json:"months"`
	}

	analyticsJSON struct {
		YTD         ytdJSON             `json:"ytd"`
		TopCategory *categoryTotalJSON  `json:"top_category"`
		Breakdown   []categoryTotalJSON `json:"breakdown"`
		Averages    averagesJSON        `json:"averages"`
	}

	cardsJSON struct {
		Balance moneyJSON `json:"balance"`
		Income  moneyJSON `json:"income"`
		Expense moneyJSON `json:"expense"`
	}

	dashboardJSON struct {
		Version      uint64            `json:"version"`
		Cards        cardsJSON         `json:"cards"`
		Recent       []transactionJSON `json:"recent"`
		Summary      summaryJSON       `json:"summary"`
		Analytics    analyticsJSON     `json:"analytics"`
		ClientSorted bool              `json:"client_sorted"`
		UpdatedAt    time.Time         `json:"updated_at"`
	}

	transactionListJSON struct {
		Version      uint64            `json:"version"`
		Transactions []transactionJSON `json:"transactions"`
		Summary      summaryJSON       `json:"summary"`
	}
)

func toMoney(m core.Money) moneyJSON {
	return moneyJSON{Cents: m.Cents, Amount: m.Decimal(), Formatted: core.FormatCurrency(m)}
}

func toTransaction(t core.Transaction) transactionJSON {
	out := transactionJSON{
		ID:          t.ID,
		Type:        t.Type,
		Amount:      toMoney(t.Amount),
		Category:    t.Category,
		Icon:        core.CategoryIcon(t.Category),
		Description: t.Description,
		ReceiptURL:  t.ReceiptURL,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if when := t.When(); !when.IsZero() {
		out.Date = when.UTC().Format(core.CalendarLayout)
		out.DisplayDate = core.FormatDate(when)
	}
	return out
}

func toTransactions(ts []core.Transaction) []transactionJSON {
	out := make([]transactionJSON, 0, len(ts))
	for _, t := range ts {
		out = append(out, toTransaction(t))
	}
	return out
}

func toSummary(s analytics.Summary) summaryJSON {
	return summaryJSON{
		Income:       toMoney(s.Income),
		Expense:      toMoney(s.Expense),
		Balance:      toMoney(s.Balance),
		IncomeCount:  s.IncomeCount,
		ExpenseCount: s.ExpenseCount,
		TotalCount:   s.TotalCount,
	}
}

func toCategoryTotal(c analytics.CategoryTotal) categoryTotalJSON {
	return categoryTotalJSON{Category: c.Category, Icon: core.CategoryIcon(c.Category), Total: toMoney(c.Total)}
}

func toAnalytics(ytd analytics.YTD, top *analytics.CategoryTotal, breakdown []analytics.CategoryTotal, avg analytics.Averages) analyticsJSON {
	out := analyticsJSON{
		YTD: ytdJSON{Year: ytd.Year, Income: toMoney(ytd.Income), Expense: toMoney(ytd.Expense)},
		Averages: averagesJSON{
			AvgMonthlyIncome:  toMoney(avg.AvgMonthlyIncome),
			AvgMonthlyExpense: toMoney(avg.AvgMonthlyExpense),
			SavingsRate:       avg.SavingsRate,
			Months:            avg.Months,
		},
		Breakdown: make([]categoryTotalJSON, 0, len(breakdown)),
	}
	if top != nil {
		c := toCategoryTotal(*top)
		out.TopCategory = &c
	}
	for _, c := range breakdown {
		out.Breakdown = append(out.Breakdown, toCategoryTotal(c))
	}
	return out
}

func toDashboard(v dashboard.View) dashboardJSON {
	return dashboardJSON{
		Version: v.Version,
		Cards: cardsJSON{
			Balance: toMoney(v.Totals.Balance),
			Income:  toMoney(v.Totals.Income),
			Expense: toMoney(v.Totals.Expense),
		},
		Recent:       toTransactions(v.Recent),
		Summary:      toSummary(v.Summary),
		Analytics:    toAnalytics(v.YTD, v.TopCategory, v.Breakdown, v.Averages),
		ClientSorted: v.ClientSorted,
		UpdatedAt:    v.UpdatedAt,
	}
}

func toTransactionList(v dashboard.FilteredView) transactionListJSON {
	return transactionListJSON{
		Version:      v.Version,
		Transactions: toTransactions(v.Transactions),
		Summary:      toSummary(v.Summary),
	}
}
