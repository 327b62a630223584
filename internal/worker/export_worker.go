// Package worker drains acknowledged transaction changes into the
// spreadsheet export.
package worker

import (
	"context"
	"fmt"
	"time"

	"tally/internal/amqp"
	"tally/internal/core"
	"tally/internal/export"
	"tally/internal/log"
	"tally/internal/storage"
	"tally/internal/store"
)

// ExportWorker consumes change events and mirrors new transactions into the
// spreadsheet. A periodic catch-up scan picks up anything the event path
// missed, so a lost message delays an export but never loses it.
type ExportWorker struct {
	repo      *storage.Repository
	appender  export.Appender
	logger    *log.Logger
	batchSize int
}

func NewExportWorker(repo *storage.Repository, appender export.Appender, logger *log.Logger, batchSize int) *ExportWorker {
	return &ExportWorker{
		repo:      repo,
		appender:  appender,
		logger:    logger.WithComponent("export-worker"),
		batchSize: batchSize,
	}
}

// HandleChange processes one change event. Only transaction creations carry
// export work; every other event is acknowledged and dropped.
func (w *ExportWorker) HandleChange(ctx context.Context, msg amqp.ChangeMessage) error {
	if msg.Collection != store.CollectionTransactions || msg.Op != amqp.OpCreate {
		return nil
	}

	w.logger.InfoContext(ctx, "processing change event", "ref", msg.Ref, "op", msg.Op)

	tx, err := w.repo.GetTransaction(ctx, msg.Ref)
	if err != nil {
		return fmt.Errorf("load transaction %s: %w", msg.Ref, err)
	}
	return w.exportOne(ctx, tx)
}

// CatchUp exports every pending transaction up to the batch size. It keeps
// going past individual failures and reports the first error afterwards.
func (w *ExportWorker) CatchUp(ctx context.Context) error {
	pending, err := w.repo.ListPendingExport(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("list pending export: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	w.logger.InfoContext(ctx, "catch-up scan", "pending", len(pending))

	var firstErr error
	for _, tx := range pending {
		if err := w.exportOne(ctx, tx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Run performs catch-up scans on the given interval until the context ends.
func (w *ExportWorker) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.CatchUp(ctx); err != nil {
				w.logger.ErrorContext(ctx, "catch-up failed", "error", err)
			}
		}
	}
}

func (w *ExportWorker) exportOne(ctx context.Context, tx core.Transaction) error {
	categoryName := w.categoryName(ctx, tx.CategoryID)

	if err := w.appender.AppendTransaction(ctx, tx, categoryName); err != nil {
		if markErr := w.repo.MarkExportError(ctx, tx.ID); markErr != nil {
			w.logger.ErrorContext(ctx, "mark export error failed", "ref", tx.ID, "error", markErr)
		}
		return fmt.Errorf("export transaction %s: %w", tx.ID, err)
	}

	if err := w.repo.MarkExported(ctx, tx.ID); err != nil {
		return fmt.Errorf("mark exported %s: %w", tx.ID, err)
	}
	w.logger.InfoContext(ctx, "transaction exported", "ref", tx.ID, "cents", tx.Amount.Cents)
	return nil
}

func (w *ExportWorker) categoryName(ctx context.Context, categoryID string) string {
	cats, err := w.repo.ListCategories(ctx)
	if err != nil {
		w.logger.WarnContext(ctx, "category lookup failed", "error", err)
		return core.UncategorizedName
	}
	return core.NewCategoryIndex(cats).Resolve(categoryID).Name
}
