package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"tally/internal/core"
	"tally/internal/store"
)

func recvSnapshot[T any](t *testing.T, ch <-chan store.Snapshot[T]) store.Snapshot[T] {
	t.Helper()
	select {
	case s, ok := <-ch:
		if !ok {
			t.Fatal("snapshot channel closed unexpectedly")
		}
		return s
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	return store.Snapshot[T]{}
}

func TestCreateTransactionBroadcasts(t *testing.T) {
	s := New()
	defer s.Close()

	ch, cancel := s.WatchTransactions(context.Background())
	defer cancel()

	initial := recvSnapshot(t, ch)
	if len(initial.Records) != 0 {
		t.Fatalf("initial snapshot should be empty, got %d", len(initial.Records))
	}

	ref, err := s.CreateTransaction(context.Background(), core.Transaction{
		Description: "coffee",
		Amount:      core.Money{Cents: 300},
		Type:        core.Expense,
		Date:        core.NewDate(2024, 3, 5),
		CategoryID:  "food",
	})
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	if ref == "" {
		t.Fatal("expected a store-assigned reference")
	}

	snap := recvSnapshot(t, ch)
	if len(snap.Records) != 1 || snap.Records[0].ID != ref {
		t.Fatalf("unexpected snapshot: %+v", snap.Records)
	}
}

func TestSnapshotSupersedes(t *testing.T) {
	s := New()
	defer s.Close()

	ch, cancel := s.WatchCategories(context.Background())
	defer cancel()
	recvSnapshot(t, ch)

	// Two writes before the watcher reads again: only the latest snapshot
	// must be observable.
	if _, err := s.CreateCategory(context.Background(), core.Category{Name: "A", Icon: core.IconFood, Type: core.Expense}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateCategory(context.Background(), core.Category{Name: "B", Icon: core.IconHealth, Type: core.Expense}); err != nil {
		t.Fatal(err)
	}

	snap := recvSnapshot(t, ch)
	if len(snap.Records) != 2 {
		t.Fatalf("expected the superseding snapshot with 2 records, got %d", len(snap.Records))
	}
}

func TestCategoryUpdateAndDelete(t *testing.T) {
	s := New()
	defer s.Close()
	ctx := context.Background()

	id, err := s.CreateCategory(ctx, core.Category{Name: "Dining", Icon: core.IconFood, Type: core.Expense})
	if err != nil {
		t.Fatal(err)
	}

	name := "Eating out"
	if err := s.UpdateCategory(ctx, id, store.CategoryPatch{Name: &name}); err != nil {
		t.Fatalf("UpdateCategory: %v", err)
	}
	cats, err := s.ListCategories(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(cats) != 1 || cats[0].Name != "Eating out" || cats[0].Icon != core.IconFood {
		t.Fatalf("partial update went wrong: %+v", cats)
	}

	if err := s.DeleteCategory(ctx, id); err != nil {
		t.Fatalf("DeleteCategory: %v", err)
	}
	if err := s.DeleteCategory(ctx, id); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("second delete should be not-found, got %v", err)
	}
}

func TestSetBudgetUpserts(t *testing.T) {
	s := New()
	defer s.Close()
	ctx := context.Background()

	first := core.NewBudget(2024, 3, "food", core.Money{Cents: 10000})
	second := core.NewBudget(2024, 3, "food", core.Money{Cents: 20000})

	if err := s.SetBudget(ctx, first); err != nil {
		t.Fatal(err)
	}
	if err := s.SetBudget(ctx, second); err != nil {
		t.Fatal(err)
	}

	ch, cancel := s.WatchBudgets(ctx)
	defer cancel()
	snap := recvSnapshot(t, ch)
	if len(snap.Records) != 1 {
		t.Fatalf("same composite key must yield one record, got %d", len(snap.Records))
	}
	if snap.Records[0].Amount.Cents != 20000 {
		t.Fatalf("record should hold the latest amount, got %d", snap.Records[0].Amount.Cents)
	}
}

func TestBatchCreateCategories(t *testing.T) {
	s := New()
	defer s.Close()
	ctx := context.Background()

	if err := s.BatchCreateCategories(ctx, core.DefaultCategories()); err != nil {
		t.Fatal(err)
	}
	cats, err := s.ListCategories(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(cats) != 8 {
		t.Fatalf("expected 8 categories, got %d", len(cats))
	}
	for _, c := range cats {
		if c.ID == "" {
			t.Fatalf("batch record missing ID: %+v", c)
		}
	}
}

func TestCloseStopsDelivery(t *testing.T) {
	s := New()
	ch, cancel := s.WatchTransactions(context.Background())
	defer cancel()
	recvSnapshot(t, ch)

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	if _, ok := <-ch; ok {
		t.Fatal("channel must be closed after store teardown")
	}
	if _, err := s.CreateTransaction(context.Background(), core.Transaction{}); !errors.Is(err, store.ErrClosed) {
		t.Fatalf("writes after close should fail with ErrClosed, got %v", err)
	}
}
