package mirror

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"tally/internal/core"
	"tally/internal/log"
	"tally/internal/store/memory"
)

func testLogger() *log.Logger {
	return log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
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

func TestReadyAfterInitialSnapshots(t *testing.T) {
	s := memory.New()
	defer s.Close()

	m := New(s, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	waitFor(t, m.Ready)
	if rev := m.Revision(); rev < 3 {
		t.Fatalf("three initial snapshots should have applied, revision = %d", rev)
	}
}

func TestViewTracksWrites(t *testing.T) {
	s := memory.New()
	defer s.Close()

	m := New(s, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)
	waitFor(t, m.Ready)

	if _, err := s.CreateTransaction(ctx, core.Transaction{
		Description: "lunch",
		Amount:      core.Money{Cents: 1200},
		Type:        core.Expense,
		Date:        core.NewDate(2024, 3, 5),
		CategoryID:  "food",
	}); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { return len(m.View().Transactions) == 1 })
	v := m.View()
	if v.Transactions[0].Description != "lunch" {
		t.Fatalf("unexpected replica contents: %+v", v.Transactions)
	}
}

func TestRevisionAdvancesOnEveryChange(t *testing.T) {
	s := memory.New()
	defer s.Close()

	m := New(s, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)
	waitFor(t, m.Ready)

	before := m.Revision()
	if err := s.SetBudget(ctx, core.NewBudget(2024, 3, "food", core.Money{Cents: 5000})); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return m.Revision() > before })
}

func TestUpdatesCoalesce(t *testing.T) {
	s := memory.New()
	defer s.Close()

	m := New(s, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)
	waitFor(t, m.Ready)

	for i := 0; i < 5; i++ {
		if _, err := s.CreateCategory(ctx, core.Category{Name: "X", Icon: core.IconFood, Type: core.Expense}); err != nil {
			t.Fatal(err)
		}
	}
	waitFor(t, func() bool { return len(m.View().Categories) == 5 })

	// Drain the single pending signal; the channel must then be empty even
	// though several changes happened.
	select {
	case <-m.Updates():
	default:
		t.Fatal("expected a pending update signal")
	}
	select {
	case <-m.Updates():
		t.Fatal("update signals must coalesce to one")
	default:
	}
}

func TestViewReturnsCopies(t *testing.T) {
	s := memory.New()
	defer s.Close()

	m := New(s, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)
	waitFor(t, m.Ready)

	if _, err := s.CreateCategory(ctx, core.Category{Name: "Dining", Icon: core.IconFood, Type: core.Expense}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return len(m.View().Categories) == 1 })

	v := m.View()
	v.Categories[0].Name = "mutated"
	if m.View().Categories[0].Name != "Dining" {
		t.Fatal("caller mutation leaked into the replica")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	s := memory.New()
	defer s.Close()

	m := New(s, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()
	waitFor(t, m.Ready)

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
