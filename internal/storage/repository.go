// Package storage is the sqlite-backed persistence collaborator. Every
// acknowledged write re-reads its collection and broadcasts the replacement
// snapshot, so watchers observe the same semantics as the in-memory backend.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"tally/internal/core"
	"tally/internal/store"
)

// Export bookkeeping states for the spreadsheet worker.
const (
	ExportPending = "pending"
	ExportDone    = "done"
	ExportError   = "error"
)

type Repository struct {
	db *sql.DB

	txHub  *store.Hub[core.Transaction]
	catHub *store.Hub[core.Category]
	budHub *store.Hub[core.Budget]
}

var _ store.Store = (*Repository)(nil)

func NewRepository(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Repository{
		db:     db,
		txHub:  store.NewHub[core.Transaction](),
		catHub: store.NewHub[core.Category](),
		budHub: store.NewHub[core.Budget](),
	}, nil
}

func (r *Repository) CreateTransaction(ctx context.Context, tx core.Transaction) (string, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (description, amount_cents, type, date, category_id, export_status)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		tx.Description, tx.Amount.Cents, string(tx.Type), tx.Date.Key(), tx.CategoryID, ExportPending)
	if err != nil {
		return "", fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("read transaction id: %w", err)
	}

	if err := r.broadcastTransactions(ctx); err != nil {
		return "", err
	}
	return strconv.FormatInt(id, 10), nil
}

func (r *Repository) CreateCategory(ctx context.Context, c core.Category) (string, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (name, icon, type) VALUES (?, ?, ?)`,
		c.Name, string(c.Icon), string(c.Type))
	if err != nil {
		return "", fmt.Errorf("insert category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("read category id: %w", err)
	}

	if err := r.broadcastCategories(ctx); err != nil {
		return "", err
	}
	return strconv.FormatInt(id, 10), nil
}

func (r *Repository) UpdateCategory(ctx context.Context, id string, patch store.CategoryPatch) error {
	var (
		name, icon, typ string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT name, icon, type FROM categories WHERE id = ?`, id).
		Scan(&name, &icon, &typ)
	if err == sql.ErrNoRows {
		return fmt.Errorf("update category %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("load category %s: %w", id, err)
	}

	if patch.Name != nil {
		name = *patch.Name
	}
	if patch.Icon != nil {
		icon = string(*patch.Icon)
	}
	if patch.Type != nil {
		typ = string(*patch.Type)
	}

	if _, err := r.db.ExecContext(ctx,
		`UPDATE categories SET name = ?, icon = ?, type = ? WHERE id = ?`,
		name, icon, typ, id); err != nil {
		return fmt.Errorf("update category %s: %w", id, err)
	}

	return r.broadcastCategories(ctx)
}

func (r *Repository) DeleteCategory(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete category %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete category %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete category %s: %w", id, store.ErrNotFound)
	}

	return r.broadcastCategories(ctx)
}

func (r *Repository) BatchCreateCategories(ctx context.Context, cs []core.Category) error {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer dbTx.Rollback()

	for _, c := range cs {
		if _, err := dbTx.ExecContext(ctx,
			`INSERT INTO categories (name, icon, type) VALUES (?, ?, ?)`,
			c.Name, string(c.Icon), string(c.Type)); err != nil {
			return fmt.Errorf("insert category %q: %w", c.Name, err)
		}
	}
	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}

	return r.broadcastCategories(ctx)
}

func (r *Repository) ListCategories(ctx context.Context) ([]core.Category, error) {
	return r.queryCategories(ctx)
}

func (r *Repository) SetBudget(ctx context.Context, b core.Budget) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO budgets (id, year, month, category_id, amount_cents)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		     year = excluded.year,
		     month = excluded.month,
		     category_id = excluded.category_id,
		     amount_cents = excluded.amount_cents`,
		b.ID, b.Year, b.Month, b.CategoryID, b.Amount.Cents)
	if err != nil {
		return fmt.Errorf("upsert budget %s: %w", b.ID, err)
	}

	return r.broadcastBudgets(ctx)
}

func (r *Repository) WatchTransactions(ctx context.Context) (<-chan store.Snapshot[core.Transaction], store.CancelFunc) {
	initial, err := r.queryTransactions(ctx)
	if err != nil {
		return failedWatch[core.Transaction](err)
	}
	return r.txHub.Subscribe(initial)
}

func (r *Repository) WatchCategories(ctx context.Context) (<-chan store.Snapshot[core.Category], store.CancelFunc) {
	initial, err := r.queryCategories(ctx)
	if err != nil {
		return failedWatch[core.Category](err)
	}
	return r.catHub.Subscribe(initial)
}

func (r *Repository) WatchBudgets(ctx context.Context) (<-chan store.Snapshot[core.Budget], store.CancelFunc) {
	initial, err := r.queryBudgets(ctx)
	if err != nil {
		return failedWatch[core.Budget](err)
	}
	return r.budHub.Subscribe(initial)
}

func (r *Repository) Close() error {
	r.txHub.Close()
	r.catHub.Close()
	r.budHub.Close()
	return r.db.Close()
}

// GetTransaction fetches a single record by identifier, used by the export
// worker when it processes a change message.
func (r *Repository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, description, amount_cents, type, date, category_id
		 FROM transactions WHERE id = ?`, id)
	tx, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %s: %w", id, err)
	}
	return tx, nil
}

// ListPendingExport returns transactions not yet written to the spreadsheet,
// oldest first, including earlier failed attempts.
func (r *Repository) ListPendingExport(ctx context.Context, limit int) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, description, amount_cents, type, date, category_id
		 FROM transactions WHERE export_status != ? ORDER BY id LIMIT ?`,
		ExportDone, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending export: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending transaction: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (r *Repository) MarkExported(ctx context.Context, id string) error {
	return r.setExportStatus(ctx, id, ExportDone)
}

func (r *Repository) MarkExportError(ctx context.Context, id string) error {
	return r.setExportStatus(ctx, id, ExportError)
}

func (r *Repository) setExportStatus(ctx context.Context, id, status string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET export_status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("mark transaction %s %s: %w", id, status, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark transaction %s %s: %w", id, status, err)
	}
	if n == 0 {
		return fmt.Errorf("mark transaction %s: %w", id, store.ErrNotFound)
	}
	return nil
}

func (r *Repository) broadcastTransactions(ctx context.Context) error {
	snap, err := r.queryTransactions(ctx)
	if err != nil {
		return err
	}
	r.txHub.Publish(snap)
	return nil
}

func (r *Repository) broadcastCategories(ctx context.Context) error {
	snap, err := r.queryCategories(ctx)
	if err != nil {
		return err
	}
	r.catHub.Publish(snap)
	return nil
}

func (r *Repository) broadcastBudgets(ctx context.Context) error {
	snap, err := r.queryBudgets(ctx)
	if err != nil {
		return err
	}
	r.budHub.Publish(snap)
	return nil
}

// Insertion order is the autoincrement id, which matches the order writers
// observed their acknowledgements in.
func (r *Repository) queryTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, description, amount_cents, type, date, category_id
		 FROM transactions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (r *Repository) queryCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, icon, type FROM categories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var (
			id        int64
			c         core.Category
			icon, typ string
		)
		if err := rows.Scan(&id, &c.Name, &icon, &typ); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.ID = strconv.FormatInt(id, 10)
		c.Icon = core.Icon(icon)
		c.Type = core.TransactionType(typ)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) queryBudgets(ctx context.Context) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, year, month, category_id, amount_cents FROM budgets ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query budgets: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		var b core.Budget
		if err := rows.Scan(&b.ID, &b.Year, &b.Month, &b.CategoryID, &b.Amount.Cents); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		id        int64
		tx        core.Transaction
		typ, date string
	)
	if err := row.Scan(&id, &tx.Description, &tx.Amount.Cents, &typ, &date, &tx.CategoryID); err != nil {
		return core.Transaction{}, err
	}
	tx.ID = strconv.FormatInt(id, 10)
	tx.Type = core.TransactionType(typ)
	if t, err := time.Parse("2006-01-02", date); err == nil {
		tx.Date = core.Date{Time: t}
	}
	return tx, nil
}

// failedWatch delivers a single terminal error snapshot and closes.
func failedWatch[T any](err error) (<-chan store.Snapshot[T], store.CancelFunc) {
	ch := make(chan store.Snapshot[T], 1)
	ch <- store.Snapshot[T]{Err: err}
	close(ch)
	return ch, func() {}
}
