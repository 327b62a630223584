package core

import "sort"

// TrendWindow is the length of the trailing income/expense series.
const TrendWindow = 12

// UncategorizedName labels transactions whose category no longer exists.
const UncategorizedName = "Uncategorized"

type (
	// Totals are the month-scoped running figures shown in the summary.
	Totals struct {
		Income  Money
		Expense Money
		Balance Money
	}

	// BudgetStatus is one row of the budget-vs-spend report.
	BudgetStatus struct {
		CategoryID      string
		Spent           Money
		BudgetAmount    Money
		ProgressPercent float64
	}

	// DayBuckets partitions a month's transactions by calendar day.
	// Keys are sorted newest-first; within a bucket, source order is kept.
	DayBuckets struct {
		Keys   []string
		Groups map[string][]Transaction
	}

	// TrendPoint is one slot of the dense trailing series.
	TrendPoint struct {
		Month   Month
		Income  Money
		Expense Money
	}

	// CategoryIndex resolves category references for display.
	CategoryIndex struct {
		byID map[string]Category
	}
)

// FilterMonth returns the transactions dated inside the given month.
// Records without a valid calendar date are silently excluded.
func FilterMonth(txs []Transaction, m Month) []Transaction {
	var out []Transaction
	for _, tx := range txs {
		if m.Contains(tx.Date) {
			out = append(out, tx)
		}
	}
	return out
}

// FilterBudgets returns the budgets scoped to the given month.
func FilterBudgets(budgets []Budget, m Month) []Budget {
	var out []Budget
	for _, b := range budgets {
		if b.Year == m.Year && b.Month == m.Month {
			out = append(out, b)
		}
	}
	return out
}

// Summarize folds a transaction set into income, expense and balance.
// An empty set yields zeros, never an absent value.
func Summarize(txs []Transaction) Totals {
	var t Totals
	for _, tx := range txs {
		if tx.Type == Income {
			t.Income.Cents += tx.Amount.Cents
		} else {
			t.Expense.Cents += tx.Amount.Cents
		}
	}
	t.Balance.Cents = t.Income.Cents - t.Expense.Cents
	return t
}

// CategorySpend maps category IDs to summed expense amounts. Only expense
// transactions contribute; categories with no spend are absent from the map.
func CategorySpend(txs []Transaction) map[string]Money {
	spend := make(map[string]Money)
	for _, tx := range txs {
		if tx.Type != Expense {
			continue
		}
		m := spend[tx.CategoryID]
		m.Cents += tx.Amount.Cents
		spend[tx.CategoryID] = m
	}
	return spend
}

// BudgetReport builds one status row per expense category, combining the
// month's budgets with the spend map. The percentage is deliberately left
// unclamped: clamping to 100 is a presentation concern, and an over-budget
// magnitude must stay recoverable.
func BudgetReport(categories []Category, budgets []Budget, spend map[string]Money) []BudgetStatus {
	var out []BudgetStatus
	for _, cat := range categories {
		if cat.Type != Expense {
			continue
		}
		spent := spend[cat.ID]
		var budget Money
		for _, b := range budgets {
			if b.CategoryID == cat.ID {
				budget = b.Amount
				break
			}
		}
		progress := 0.0
		if budget.Cents > 0 {
			progress = float64(spent.Cents) / float64(budget.Cents) * 100
		}
		out = append(out, BudgetStatus{
			CategoryID:      cat.ID,
			Spent:           spent,
			BudgetAmount:    budget,
			ProgressPercent: progress,
		})
	}
	return out
}

// GroupByDay partitions transactions into calendar-day buckets. All types are
// included. Bucket keys sort in strictly descending order, which for the
// zero-padded day key is newest-first; inside a bucket the incoming order is
// preserved, no secondary sort.
func GroupByDay(txs []Transaction) DayBuckets {
	buckets := DayBuckets{Groups: make(map[string][]Transaction)}
	for _, tx := range txs {
		if !tx.Date.Valid() {
			continue
		}
		key := tx.Date.Key()
		if _, ok := buckets.Groups[key]; !ok {
			buckets.Keys = append(buckets.Keys, key)
		}
		buckets.Groups[key] = append(buckets.Groups[key], tx)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(buckets.Keys)))
	return buckets
}

// TrendSeries folds every transaction into a dense window of TrendWindow
// months ending at end. Months with no activity keep zero values and still
// appear; transactions outside the window are ignored.
func TrendSeries(txs []Transaction, end Month) []TrendPoint {
	window := TrailingMonths(end, TrendWindow)
	points := make([]TrendPoint, len(window))
	index := make(map[Month]int, len(window))
	for i, m := range window {
		points[i] = TrendPoint{Month: m}
		index[m] = i
	}
	for _, tx := range txs {
		if !tx.Date.Valid() {
			continue
		}
		i, ok := index[MonthOf(tx.Date.Time)]
		if !ok {
			continue
		}
		if tx.Type == Income {
			points[i].Income.Cents += tx.Amount.Cents
		} else {
			points[i].Expense.Cents += tx.Amount.Cents
		}
	}
	return points
}

// NewCategoryIndex builds a lookup over the current category snapshot.
func NewCategoryIndex(categories []Category) CategoryIndex {
	byID := make(map[string]Category, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}
	return CategoryIndex{byID: byID}
}

// Resolve returns the category for a reference. A dangling reference resolves
// to an "Uncategorized" fallback instead of failing; aggregation and display
// proceed normally around deleted categories.
func (ix CategoryIndex) Resolve(categoryID string) Category {
	if c, ok := ix.byID[categoryID]; ok {
		return c
	}
	return Category{ID: categoryID, Name: UncategorizedName, Icon: IconShopping, Type: Expense}
}
