package services

import (
	"context"
	"errors"
	"testing"

	"tally/internal/amqp"
	"tally/internal/core"
	"tally/internal/store"
	"tally/internal/store/memory"
)

type recordingPublisher struct {
	messages []amqp.ChangeMessage
	fail     bool
}

func (p *recordingPublisher) PublishChange(_ context.Context, msg amqp.ChangeMessage) error {
	if p.fail {
		return errors.New("broker unavailable")
	}
	p.messages = append(p.messages, msg)
	return nil
}

func TestAddTransactionValidatesFirst(t *testing.T) {
	s := memory.New()
	defer s.Close()
	pub := &recordingPublisher{}
	g := NewGateway(s, pub, testLogger())
	ctx := context.Background()

	tests := []struct {
		name    string
		draft   TransactionDraft
		wantErr error
	}{
		{
			name: "empty description",
			draft: TransactionDraft{
				Description: "  ",
				Amount:      "10.00",
				Type:        core.Expense,
				Date:        core.NewDate(2024, 3, 5),
				CategoryID:  "food",
			},
			wantErr: core.ErrEmptyDescription,
		},
		{
			name: "bad amount",
			draft: TransactionDraft{
				Description: "lunch",
				Amount:      "ten",
				Type:        core.Expense,
				Date:        core.NewDate(2024, 3, 5),
				CategoryID:  "food",
			},
			wantErr: core.ErrInvalidAmount,
		},
		{
			name: "missing category",
			draft: TransactionDraft{
				Description: "lunch",
				Amount:      "10.00",
				Type:        core.Expense,
				Date:        core.NewDate(2024, 3, 5),
			},
			wantErr: core.ErrMissingCategory,
		},
		{
			name: "zero date",
			draft: TransactionDraft{
				Description: "lunch",
				Amount:      "10.00",
				Type:        core.Expense,
				CategoryID:  "food",
			},
			wantErr: core.ErrInvalidDate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := g.AddTransaction(ctx, tt.draft); !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
	if len(pub.messages) != 0 {
		t.Fatal("rejected drafts must not announce changes")
	}
}

func TestAddTransactionPersistsAndAnnounces(t *testing.T) {
	s := memory.New()
	defer s.Close()
	pub := &recordingPublisher{}
	g := NewGateway(s, pub, testLogger())

	ref, err := g.AddTransaction(context.Background(), TransactionDraft{
		Description: "lunch",
		Amount:      "12.50",
		Type:        core.Expense,
		Date:        core.NewDate(2024, 3, 5),
		CategoryID:  "food",
	})
	if err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}

	if len(pub.messages) != 1 {
		t.Fatalf("expected one change event, got %d", len(pub.messages))
	}
	msg := pub.messages[0]
	if msg.Collection != store.CollectionTransactions || msg.Ref != ref || msg.Op != amqp.OpCreate {
		t.Fatalf("unexpected change event: %+v", msg)
	}
}

func TestAddTransactionSurvivesPublishFailure(t *testing.T) {
	s := memory.New()
	defer s.Close()
	g := NewGateway(s, &recordingPublisher{fail: true}, testLogger())

	ref, err := g.AddTransaction(context.Background(), TransactionDraft{
		Description: "lunch",
		Amount:      "8.00",
		Type:        core.Expense,
		Date:        core.NewDate(2024, 3, 5),
		CategoryID:  "food",
	})
	if err != nil {
		t.Fatalf("write must succeed even when the broker is down: %v", err)
	}
	if ref == "" {
		t.Fatal("expected an assigned reference")
	}
}

func TestUpdateCategoryPatchValidation(t *testing.T) {
	s := memory.New()
	defer s.Close()
	g := NewGateway(s, nil, testLogger())
	ctx := context.Background()

	id, err := g.CreateCategory(ctx, core.Category{Name: "Dining", Icon: core.IconFood, Type: core.Expense})
	if err != nil {
		t.Fatal(err)
	}

	empty := ""
	if err := g.UpdateCategory(ctx, id, store.CategoryPatch{Name: &empty}); !errors.Is(err, core.ErrEmptyName) {
		t.Fatalf("empty name must be rejected, got %v", err)
	}
	badIcon := core.Icon("rocket")
	if err := g.UpdateCategory(ctx, id, store.CategoryPatch{Icon: &badIcon}); !errors.Is(err, core.ErrInvalidIcon) {
		t.Fatalf("unknown icon must be rejected, got %v", err)
	}

	name := "Eating out"
	if err := g.UpdateCategory(ctx, id, store.CategoryPatch{Name: &name}); err != nil {
		t.Fatalf("valid patch failed: %v", err)
	}
}

func TestSetBudgetParsesAndUpserts(t *testing.T) {
	s := memory.New()
	defer s.Close()
	pub := &recordingPublisher{}
	g := NewGateway(s, pub, testLogger())
	ctx := context.Background()

	if err := g.SetBudget(ctx, 2024, 3, "food", "150.00"); err != nil {
		t.Fatal(err)
	}
	// Zero clears the limit, it is a legal budget value
	if err := g.SetBudget(ctx, 2024, 3, "food", "0"); err != nil {
		t.Fatal(err)
	}

	if err := g.SetBudget(ctx, 2024, 13, "food", "10"); !errors.Is(err, core.ErrInvalidMonth) {
		t.Fatalf("month 13 must be rejected, got %v", err)
	}
	if err := g.SetBudget(ctx, 2024, 3, "food", "-5"); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("negative amount must be rejected, got %v", err)
	}

	for _, msg := range pub.messages {
		if msg.Ref != core.BudgetKey(2024, 3, "food") {
			t.Fatalf("budget events must carry the composite key, got %q", msg.Ref)
		}
	}
}

func TestSeedDefaultCategoriesOnce(t *testing.T) {
	s := memory.New()
	defer s.Close()
	g := NewGateway(s, nil, testLogger())
	ctx := context.Background()

	if err := g.SeedDefaultCategories(ctx); err != nil {
		t.Fatal(err)
	}
	if err := g.SeedDefaultCategories(ctx); err != nil {
		t.Fatal(err)
	}

	cats, err := s.ListCategories(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(cats) != 8 {
		t.Fatalf("seeding must happen exactly once, got %d categories", len(cats))
	}
}

func TestSeedSkipsNonEmptyStore(t *testing.T) {
	s := memory.New()
	defer s.Close()
	g := NewGateway(s, nil, testLogger())
	ctx := context.Background()

	if _, err := s.CreateCategory(ctx, core.Category{Name: "Custom", Icon: core.IconFood, Type: core.Expense}); err != nil {
		t.Fatal(err)
	}
	if err := g.SeedDefaultCategories(ctx); err != nil {
		t.Fatal(err)
	}

	cats, _ := s.ListCategories(ctx)
	if len(cats) != 1 {
		t.Fatalf("non-empty store must not be seeded, got %d categories", len(cats))
	}
}
