package core

import (
	"errors"
	"testing"
)

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		Description: "groceries",
		Amount:      Money{Cents: 1250},
		Type:        Expense,
		Date:        NewDate(2024, 3, 5),
		CategoryID:  "food",
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name string
		tx   Transaction
		want error
	}{
		{"empty description", Transaction{Description: "  ", Amount: Money{Cents: 1}, Type: Expense, Date: NewDate(2024, 3, 5), CategoryID: "food"}, ErrEmptyDescription},
		{"missing category", Transaction{Description: "a", Amount: Money{Cents: 1}, Type: Expense, Date: NewDate(2024, 3, 5)}, ErrMissingCategory},
		{"bad type", Transaction{Description: "a", Amount: Money{Cents: 1}, Type: "transfer", Date: NewDate(2024, 3, 5), CategoryID: "food"}, ErrInvalidType},
		{"negative amount", Transaction{Description: "a", Amount: Money{Cents: -1}, Type: Expense, Date: NewDate(2024, 3, 5), CategoryID: "food"}, ErrInvalidAmount},
		{"zero date", Transaction{Description: "a", Amount: Money{Cents: 1}, Type: Expense, CategoryID: "food"}, ErrInvalidDate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.tx.Validate(); !errors.Is(err, tc.want) {
				t.Errorf("Validate() = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestCategoryValidate(t *testing.T) {
	good := Category{Name: "Dining", Icon: IconFood, Type: Expense}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Category{
		{Name: "", Icon: IconFood, Type: Expense},
		{Name: "x", Icon: "sparkles", Type: Expense},
		{Name: "x", Icon: IconFood, Type: "other"},
	}
	for i, c := range bads {
		if err := c.Validate(); err == nil {
			t.Errorf("case %d expected error", i)
		}
	}
}

func TestBudgetKeyDeterministic(t *testing.T) {
	a := BudgetKey(2024, 3, "food")
	b := BudgetKey(2024, 3, "food")
	if a != b {
		t.Fatalf("same triple produced different keys: %q vs %q", a, b)
	}
	if a != "2024-3-food" {
		t.Fatalf("unexpected key format: %q", a)
	}
	if BudgetKey(2024, 12, "food") == BudgetKey(2024, 1, "food") {
		t.Fatal("distinct months must produce distinct keys")
	}
}

func TestNewBudget(t *testing.T) {
	b := NewBudget(2024, 3, "food", Money{Cents: 10000})
	if b.ID != "2024-3-food" {
		t.Errorf("ID = %q", b.ID)
	}
	if err := b.Validate(); err != nil {
		t.Errorf("expected valid budget, got %v", err)
	}
	if err := NewBudget(2024, 13, "food", Money{}).Validate(); !errors.Is(err, ErrInvalidMonth) {
		t.Error("month 13 should be invalid")
	}
}

func TestDefaultCategories(t *testing.T) {
	cats := DefaultCategories()
	if len(cats) != 8 {
		t.Fatalf("expected 8 default categories, got %d", len(cats))
	}
	var expense, income int
	for _, c := range cats {
		switch c.Type {
		case Expense:
			expense++
		case Income:
			income++
		}
		if !c.Icon.IsValid() {
			t.Errorf("category %q has invalid icon %q", c.Name, c.Icon)
		}
	}
	if expense != 6 || income != 2 {
		t.Fatalf("expected 6 expense + 2 income, got %d + %d", expense, income)
	}
}

func TestDateKey(t *testing.T) {
	if got := NewDate(2024, 3, 5).Key(); got != "2024-03-05" {
		t.Fatalf("Key() = %q", got)
	}
}
