package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"tally/internal/core"
	"tally/internal/log"
	"tally/internal/mirror"
	"tally/internal/store/memory"
)

func testLogger() *log.Logger {
	return log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
}

func fixedClock(year, month, day int) func() time.Time {
	return func() time.Time {
		return time.Date(year, time.Month(month), day, 10, 0, 0, 0, time.UTC)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func startLedger(t *testing.T, s *memory.Store, clock func() time.Time) *Ledger {
	t.Helper()
	m := mirror.New(s, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go m.Run(ctx)
	waitFor(t, m.Ready)
	return NewLedgerWithClock(m, testLogger(), clock)
}

func TestCursorStartsAtCurrentMonth(t *testing.T) {
	s := memory.New()
	defer s.Close()

	l := startLedger(t, s, fixedClock(2024, 3, 15))
	if got := l.Month(); got != (core.Month{Year: 2024, Month: 3}) {
		t.Fatalf("cursor should start at the clock's month, got %v", got)
	}
}

func TestAdvanceMonthRollsOver(t *testing.T) {
	s := memory.New()
	defer s.Close()

	l := startLedger(t, s, fixedClock(2024, 12, 1))
	got, err := l.AdvanceMonth(core.Later)
	if err != nil {
		t.Fatal(err)
	}
	if got != (core.Month{Year: 2025, Month: 1}) {
		t.Fatalf("December must roll into January, got %v", got)
	}

	if _, err := l.AdvanceMonth(core.Direction("sideways")); err == nil {
		t.Fatal("invalid direction must be rejected")
	}
}

func TestSummaryScopedToCursor(t *testing.T) {
	s := memory.New()
	defer s.Close()
	s.Seed([]core.Transaction{
		{ID: "t1", Description: "salary", Amount: core.Money{Cents: 200000}, Type: core.Income, Date: core.NewDate(2024, 3, 1), CategoryID: "salary"},
		{ID: "t2", Description: "rent", Amount: core.Money{Cents: 90000}, Type: core.Expense, Date: core.NewDate(2024, 3, 2), CategoryID: "housing"},
		{ID: "t3", Description: "old", Amount: core.Money{Cents: 5000}, Type: core.Expense, Date: core.NewDate(2024, 2, 20), CategoryID: "food"},
	}, nil, nil)

	l := startLedger(t, s, fixedClock(2024, 3, 15))
	got := l.Summary()
	if got.Income.Cents != 200000 || got.Expense.Cents != 90000 || got.Balance.Cents != 110000 {
		t.Fatalf("unexpected totals: %+v", got)
	}

	// Moving to February rescopes every derived view without new writes.
	if _, err := l.AdvanceMonth(core.Earlier); err != nil {
		t.Fatal(err)
	}
	got = l.Summary()
	if got.Expense.Cents != 5000 || got.Income.Cents != 0 {
		t.Fatalf("totals did not follow the cursor: %+v", got)
	}
}

func TestBudgetReportUsesScopedSpend(t *testing.T) {
	s := memory.New()
	defer s.Close()
	s.Seed(
		[]core.Transaction{
			{ID: "t1", Description: "lunch", Amount: core.Money{Cents: 15000}, Type: core.Expense, Date: core.NewDate(2024, 3, 5), CategoryID: "food"},
		},
		[]core.Category{
			{ID: "food", Name: "Dining", Icon: core.IconFood, Type: core.Expense},
			{ID: "salary", Name: "Salary", Icon: core.IconIncome, Type: core.Income},
		},
		[]core.Budget{core.NewBudget(2024, 3, "food", core.Money{Cents: 10000})},
	)

	l := startLedger(t, s, fixedClock(2024, 3, 15))
	report := l.BudgetReport()
	if len(report) != 1 {
		t.Fatalf("only expense categories belong in the report, got %d rows", len(report))
	}
	row := report[0]
	if row.CategoryID != "food" || row.Spent.Cents != 15000 || row.ProgressPercent != 150 {
		t.Fatalf("unexpected row: %+v", row)
	}
}

func TestFullStateIsInternallyConsistent(t *testing.T) {
	s := memory.New()
	defer s.Close()
	s.Seed([]core.Transaction{
		{ID: "t1", Description: "coffee", Amount: core.Money{Cents: 400}, Type: core.Expense, Date: core.NewDate(2024, 3, 5), CategoryID: "food"},
		{ID: "t2", Description: "bus", Amount: core.Money{Cents: 250}, Type: core.Expense, Date: core.NewDate(2024, 3, 5), CategoryID: "transport"},
	}, nil, nil)

	l := startLedger(t, s, fixedClock(2024, 3, 15))
	st := l.FullState()

	if st.Month != (core.Month{Year: 2024, Month: 3}) {
		t.Fatalf("unexpected month: %v", st.Month)
	}
	if st.Totals.Expense.Cents != 650 {
		t.Fatalf("unexpected totals: %+v", st.Totals)
	}
	if len(st.Days.Keys) != 1 || len(st.Days.Groups["2024-03-05"]) != 2 {
		t.Fatalf("unexpected buckets: %+v", st.Days)
	}
	if len(st.Trend) != core.TrendWindow || st.Trend[core.TrendWindow-1].Month != st.Month {
		t.Fatal("trend must be dense and end at the scoped month")
	}
}

func TestTrendIgnoresCursor(t *testing.T) {
	s := memory.New()
	defer s.Close()
	s.Seed([]core.Transaction{
		{ID: "t1", Description: "coffee", Amount: core.Money{Cents: 400}, Type: core.Expense, Date: core.NewDate(2024, 3, 5), CategoryID: "food"},
	}, nil, nil)

	l := startLedger(t, s, fixedClock(2024, 3, 15))
	if _, err := l.AdvanceMonth(core.Earlier); err != nil {
		t.Fatal(err)
	}

	series := l.Trend()
	last := series[len(series)-1]
	if last.Month != (core.Month{Year: 2024, Month: 3}) {
		t.Fatalf("trend must end at the clock's month regardless of the cursor, got %v", last.Month)
	}
	if last.Expense.Cents != 400 {
		t.Fatalf("march activity missing from the trend: %+v", last)
	}
}

func TestResolveCategoryFallback(t *testing.T) {
	s := memory.New()
	defer s.Close()
	s.Seed(nil, []core.Category{{ID: "food", Name: "Dining", Icon: core.IconFood, Type: core.Expense}}, nil)

	l := startLedger(t, s, fixedClock(2024, 3, 15))
	if got := l.ResolveCategory("food"); got.Name != "Dining" {
		t.Fatalf("known reference should resolve, got %+v", got)
	}
	if got := l.ResolveCategory("gone"); got.Name != core.UncategorizedName {
		t.Fatalf("dangling reference should fall back, got %+v", got)
	}
}
