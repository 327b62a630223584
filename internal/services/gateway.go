package services

import (
	"context"
	"fmt"
	"sync"

	"tally/internal/amqp"
	"tally/internal/core"
	"tally/internal/log"
	"tally/internal/store"
)

// ChangePublisher announces acknowledged mutations downstream. Publishing is
// best-effort; the write has already landed when it runs.
type ChangePublisher interface {
	PublishChange(ctx context.Context, msg amqp.ChangeMessage) error
}

// TransactionDraft is caller input for a new transaction; the amount arrives
// as a decimal string and is normalized to cents.
type TransactionDraft struct {
	Description string
	Amount      string
	Type        core.TransactionType
	Date        core.Date
	CategoryID  string
}

// Gateway is the single mutation path. Every write validates first, persists
// through the store, and only then announces the change.
type Gateway struct {
	store     store.Store
	publisher ChangePublisher
	logger    *log.Logger

	seedMu sync.Mutex
	seeded bool
}

// NewGateway wires the mutation path. publisher may be nil, in which case
// changes are not announced.
func NewGateway(s store.Store, publisher ChangePublisher, logger *log.Logger) *Gateway {
	return &Gateway{
		store:     s,
		publisher: publisher,
		logger:    logger.WithComponent("gateway"),
	}
}

// AddTransaction validates the draft, persists it and returns the assigned
// identifier. Nothing is written when validation fails.
func (g *Gateway) AddTransaction(ctx context.Context, draft TransactionDraft) (string, error) {
	cents, err := core.ParseDecimalToCents(draft.Amount)
	if err != nil {
		return "", fmt.Errorf("parse amount %q: %w", draft.Amount, err)
	}

	tx := core.Transaction{
		Description: draft.Description,
		Amount:      core.Money{Cents: cents},
		Type:        draft.Type,
		Date:        draft.Date,
		CategoryID:  draft.CategoryID,
	}
	if err := tx.Validate(); err != nil {
		return "", err
	}

	ref, err := g.store.CreateTransaction(ctx, tx)
	if err != nil {
		return "", fmt.Errorf("create transaction: %w", err)
	}

	g.announce(ctx, store.CollectionTransactions, ref, amqp.OpCreate)
	g.logger.InfoContext(ctx, "transaction added", "ref", ref, "type", string(tx.Type), "cents", tx.Amount.Cents)
	return ref, nil
}

func (g *Gateway) CreateCategory(ctx context.Context, c core.Category) (string, error) {
	if err := c.Validate(); err != nil {
		return "", err
	}
	ref, err := g.store.CreateCategory(ctx, c)
	if err != nil {
		return "", fmt.Errorf("create category: %w", err)
	}
	g.announce(ctx, store.CollectionCategories, ref, amqp.OpCreate)
	return ref, nil
}

func (g *Gateway) UpdateCategory(ctx context.Context, id string, patch store.CategoryPatch) error {
	if patch.Name != nil && *patch.Name == "" {
		return core.ErrEmptyName
	}
	if patch.Icon != nil && !patch.Icon.IsValid() {
		return core.ErrInvalidIcon
	}
	if patch.Type != nil && !patch.Type.IsValid() {
		return core.ErrInvalidType
	}

	if err := g.store.UpdateCategory(ctx, id, patch); err != nil {
		return err
	}
	g.announce(ctx, store.CollectionCategories, id, amqp.OpUpdate)
	return nil
}

// DeleteCategory removes the category record only. Transactions referencing
// it are left alone and resolve to the uncategorized fallback from then on.
func (g *Gateway) DeleteCategory(ctx context.Context, id string) error {
	if err := g.store.DeleteCategory(ctx, id); err != nil {
		return err
	}
	g.announce(ctx, store.CollectionCategories, id, amqp.OpDelete)
	return nil
}

// SetBudget overwrites the budget at its composite (year, month, category)
// key. The amount arrives as a decimal string; zero clears the limit.
func (g *Gateway) SetBudget(ctx context.Context, year, month int, categoryID, amount string) error {
	cents, err := core.ParseDecimalToCents(amount)
	if err != nil {
		return fmt.Errorf("parse amount %q: %w", amount, err)
	}

	b := core.NewBudget(year, month, categoryID, core.Money{Cents: cents})
	if err := b.Validate(); err != nil {
		return err
	}
	if err := g.store.SetBudget(ctx, b); err != nil {
		return fmt.Errorf("set budget: %w", err)
	}
	g.announce(ctx, store.CollectionBudgets, b.ID, amqp.OpUpdate)
	return nil
}

// SeedDefaultCategories writes the default category set once into an empty
// store. The batch is all-or-nothing and repeat calls in the same process
// are no-ops, so a concurrent start cannot double-seed through this gateway.
func (g *Gateway) SeedDefaultCategories(ctx context.Context) error {
	g.seedMu.Lock()
	defer g.seedMu.Unlock()
	if g.seeded {
		return nil
	}

	existing, err := g.store.ListCategories(ctx)
	if err != nil {
		return fmt.Errorf("check existing categories: %w", err)
	}
	if len(existing) > 0 {
		g.seeded = true
		return nil
	}

	if err := g.store.BatchCreateCategories(ctx, core.DefaultCategories()); err != nil {
		return fmt.Errorf("seed default categories: %w", err)
	}
	g.seeded = true
	g.logger.InfoContext(ctx, "seeded default categories", "count", len(core.DefaultCategories()))
	return nil
}

// announce publishes the change event if a publisher is wired. A failed
// publish is logged and swallowed: the write already succeeded and callers
// must see it as such.
func (g *Gateway) announce(ctx context.Context, collection, ref, op string) {
	if g.publisher == nil {
		return
	}
	if err := g.publisher.PublishChange(ctx, amqp.NewChangeMessage(collection, ref, op)); err != nil {
		g.logger.WarnContext(ctx, "change event not published", "collection", collection, "ref", ref, "error", err)
	}
}
