// Package services holds the application layer: the ledger for derived reads
// and the gateway for mutations.
package services

import (
	"fmt"
	"sync"
	"time"

	"tally/internal/core"
	"tally/internal/log"
	"tally/internal/mirror"
)

// State is the full derived picture for one month, computed fresh from the
// replica on every call.
type State struct {
	Month        core.Month
	Totals       core.Totals
	Budgets      []core.BudgetStatus
	Days         core.DayBuckets
	Trend        []core.TrendPoint
	Categories   []core.Category
	Revision     uint64
	StreamErrors map[string]error
}

// Ledger owns the month scope cursor and answers every derived-state
// question by folding over the current replica. It holds no caches of its
// own; two calls at the same revision fold the same data.
type Ledger struct {
	mirror *mirror.Mirror
	logger *log.Logger
	clock  func() time.Time

	mu     sync.Mutex
	cursor core.Month
}

func NewLedger(m *mirror.Mirror, logger *log.Logger) *Ledger {
	return NewLedgerWithClock(m, logger, time.Now)
}

// NewLedgerWithClock injects the time source; tests pin it.
func NewLedgerWithClock(m *mirror.Mirror, logger *log.Logger, clock func() time.Time) *Ledger {
	return &Ledger{
		mirror: m,
		logger: logger.WithComponent("ledger"),
		clock:  clock,
		cursor: core.MonthOf(clock()),
	}
}

// Month returns the current scope cursor.
func (l *Ledger) Month() core.Month {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cursor
}

// AdvanceMonth moves the cursor one month in the given direction and returns
// the new scope. Navigation is unbounded in both directions.
func (l *Ledger) AdvanceMonth(d core.Direction) (core.Month, error) {
	if !d.IsValid() {
		return core.Month{}, fmt.Errorf("advance month: %q is not a direction", d)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cursor = l.cursor.Advance(d)
	l.logger.Info("month scope moved", "month", l.cursor.String())
	return l.cursor, nil
}

// Ready reports whether the replica has its initial data.
func (l *Ledger) Ready() bool {
	return l.mirror.Ready()
}

// Revision exposes the replica's change counter, used for response caching.
func (l *Ledger) Revision() uint64 {
	return l.mirror.Revision()
}

// StreamErrors exposes the replica's per-collection watch failures.
func (l *Ledger) StreamErrors() map[string]error {
	return l.mirror.Errs()
}

// Summary folds the scoped month into income, expense and balance.
func (l *Ledger) Summary() core.Totals {
	v := l.mirror.View()
	return core.Summarize(core.FilterMonth(v.Transactions, l.Month()))
}

// BudgetReport builds the budget-vs-spend rows for the scoped month.
func (l *Ledger) BudgetReport() []core.BudgetStatus {
	month := l.Month()
	v := l.mirror.View()
	scoped := core.FilterMonth(v.Transactions, month)
	return core.BudgetReport(v.Categories, core.FilterBudgets(v.Budgets, month), core.CategorySpend(scoped))
}

// DayGroups partitions the scoped month's transactions by calendar day.
func (l *Ledger) DayGroups() core.DayBuckets {
	v := l.mirror.View()
	return core.GroupByDay(core.FilterMonth(v.Transactions, l.Month()))
}

// Trend returns the dense trailing series ending at the real current month.
// The scope cursor has no effect on it.
func (l *Ledger) Trend() []core.TrendPoint {
	v := l.mirror.View()
	return core.TrendSeries(v.Transactions, core.MonthOf(l.clock()))
}

// Categories returns the current category set.
func (l *Ledger) Categories() []core.Category {
	return l.mirror.View().Categories
}

// ResolveCategory looks a reference up against the current snapshot, falling
// back to the uncategorized placeholder for dangling references.
func (l *Ledger) ResolveCategory(id string) core.Category {
	return core.NewCategoryIndex(l.mirror.View().Categories).Resolve(id)
}

// FullState computes every derived view in one pass over a single replica
// copy, so all parts describe the same revision.
func (l *Ledger) FullState() State {
	month := l.Month()
	v := l.mirror.View()
	scoped := core.FilterMonth(v.Transactions, month)
	return State{
		Month:        month,
		Totals:       core.Summarize(scoped),
		Budgets:      core.BudgetReport(v.Categories, core.FilterBudgets(v.Budgets, month), core.CategorySpend(scoped)),
		Days:         core.GroupByDay(scoped),
		Trend:        core.TrendSeries(v.Transactions, core.MonthOf(l.clock())),
		Categories:   v.Categories,
		Revision:     v.Revision,
		StreamErrors: l.mirror.Errs(),
	}
}
