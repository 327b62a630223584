package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Expense TransactionType = "expense"
	Income  TransactionType = "income"
)

const (
	IconFood          Icon = "food"
	IconTransport     Icon = "transport"
	IconShopping      Icon = "shopping"
	IconEntertainment Icon = "entertainment"
	IconHousing       Icon = "housing"
	IconHealth        Icon = "health"
	IconIncome        Icon = "income"
	IconInvestment    Icon = "investment"
)

type (
	// TransactionType marks a record as money in or money out.
	TransactionType string

	// Icon is a symbolic identifier from the fixed icon set. The view layer
	// resolves it to a renderer; the core only validates membership.
	Icon string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Transaction struct {
		ID          string
		Description string
		Amount      Money
		Type        TransactionType
		Date        Date
		CategoryID  string
	}

	Category struct {
		ID   string
		Name string
		Icon Icon
		Type TransactionType
	}

	Budget struct {
		ID         string
		Year       int
		Month      int // 1-12
		CategoryID string
		Amount     Money
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidType      = errors.New("invalid transaction type")
	ErrInvalidMonth     = errors.New("invalid month")
	ErrInvalidIcon      = errors.New("invalid icon")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyName        = errors.New("empty category name")
	ErrMissingCategory  = errors.New("missing category reference")
)

func (t TransactionType) IsValid() bool {
	return t == Expense || t == Income
}

func (i Icon) IsValid() bool {
	switch i {
	case IconFood, IconTransport, IconShopping, IconEntertainment,
		IconHousing, IconHealth, IconIncome, IconInvestment:
		return true
	default:
		return false
	}
}

// NewDate creates a Date from year, month, day at midnight UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Valid reports whether the date carries a real calendar value.
func (d Date) Valid() bool {
	return !d.IsZero()
}

// Key returns the zero-padded calendar-day key, e.g. "2024-03-05".
// Time-of-day is dropped.
func (d Date) Key() string {
	return d.Format("2006-01-02")
}

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (t Transaction) Validate() error {
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if strings.TrimSpace(t.CategoryID) == "" {
		return ErrMissingCategory
	}
	if !t.Type.IsValid() {
		return ErrInvalidType
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if !t.Date.Valid() {
		return ErrInvalidDate
	}
	return nil
}

func (c Category) Validate() error {
	if len(strings.TrimSpace(c.Name)) == 0 {
		return ErrEmptyName
	}
	if !c.Type.IsValid() {
		return ErrInvalidType
	}
	if !c.Icon.IsValid() {
		return ErrInvalidIcon
	}
	return nil
}

func (b Budget) Validate() error {
	if b.Month < 1 || b.Month > 12 {
		return ErrInvalidMonth
	}
	if strings.TrimSpace(b.CategoryID) == "" {
		return ErrMissingCategory
	}
	return b.Amount.Validate()
}

// BudgetKey computes the deterministic composite identifier for a budget.
// Setting a budget for the same (year, month, category) triple always lands
// on the same record, so writes are natural upserts.
func BudgetKey(year, month int, categoryID string) string {
	return fmt.Sprintf("%d-%d-%s", year, month, categoryID)
}

// NewBudget builds a budget record keyed by its composite identifier.
func NewBudget(year, month int, categoryID string, amount Money) Budget {
	return Budget{
		ID:         BudgetKey(year, month, categoryID),
		Year:       year,
		Month:      month,
		CategoryID: categoryID,
		Amount:     amount,
	}
}

// DefaultCategories is the fixed seed set written once into an empty store:
// six expense categories and two income categories.
func DefaultCategories() []Category {
	return []Category{
		{Name: "Dining", Icon: IconFood, Type: Expense},
		{Name: "Transport", Icon: IconTransport, Type: Expense},
		{Name: "Shopping", Icon: IconShopping, Type: Expense},
		{Name: "Entertainment", Icon: IconEntertainment, Type: Expense},
		{Name: "Housing", Icon: IconHousing, Type: Expense},
		{Name: "Health", Icon: IconHealth, Type: Expense},
		{Name: "Salary", Icon: IconIncome, Type: Income},
		{Name: "Investments", Icon: IconInvestment, Type: Income},
	}
}
