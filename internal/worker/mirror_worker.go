package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"pocketmoney/internal/core"
	"pocketmoney/internal/events"
	"pocketmoney/internal/sheets"
)

// MirrorStore is the slice of the Ledger Store the worker needs.
type MirrorStore interface {
	PendingMirror(ctx context.Context, limit int) ([]core.Transaction, error)
	MarkMirrored(ctx context.Context, id int64) error
	MarkMirrorError(ctx context.Context, id int64) error
}

// MirrorWorker appends pending transactions to the spreadsheet mirror.
// It polls on an interval and can be woken early by a created event, so the
// mirror catches up even when the broker drops messages.
type MirrorWorker struct {
	store     MirrorStore
	appender  sheets.RowAppender
	batchSize int
	wake      chan struct{}
}

func NewMirrorWorker(store MirrorStore, appender sheets.RowAppender, batchSize int) *MirrorWorker {
	return &MirrorWorker{
		store:     store,
		appender:  appender,
		batchSize: batchSize,
		wake:      make(chan struct{}, 1),
	}
}

// ProcessPending mirrors one batch. A failed append marks the row with an
// error state and moves on; it never blocks the rest of the batch.
func (w *MirrorWorker) ProcessPending(ctx context.Context) (int, error) {
	pending, err := w.store.PendingMirror(ctx, w.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list pending transactions: %w", err)
	}

	mirrored := 0
	for _, t := range pending {
		if err := w.appender.AppendTransaction(ctx, t); err != nil {
			slog.ErrorContext(ctx, "Failed to mirror transaction",
				"error", err,
				"id", t.ID,
				"account", t.Account)
			if markErr := w.store.MarkMirrorError(ctx, t.ID); markErr != nil {
				slog.ErrorContext(ctx, "Failed to mark mirror error", "error", markErr, "id", t.ID)
			}
			continue
		}

		if err := w.store.MarkMirrored(ctx, t.ID); err != nil {
			return mirrored, fmt.Errorf("mark transaction %d mirrored: %w", t.ID, err)
		}
		mirrored++
	}

	if mirrored > 0 {
		slog.InfoContext(ctx, "Mirror batch completed",
			"mirrored", mirrored,
			"pending", len(pending))
	}

	return mirrored, nil
}

// Run polls until ctx is done.
func (w *MirrorWorker) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "Mirror worker started",
		"interval", interval,
		"batch_size", w.batchSize)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Mirror worker stopping", "reason", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
		case <-w.wake:
		}

		if _, err := w.ProcessPending(ctx); err != nil {
			slog.ErrorContext(ctx, "Mirror batch failed", "error", err)
		}
	}
}

// HandleEvent wakes the poll loop when a transaction was created. Other
// actions are ignored: the mirror is append-only.
func (w *MirrorWorker) HandleEvent(event *events.LedgerEvent) error {
	if event.Action != events.ActionCreated {
		return nil
	}
	select {
	case w.wake <- struct{}{}:
	default: // a wake-up is already queued
	}
	return nil
}
