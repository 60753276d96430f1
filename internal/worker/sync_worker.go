// Package worker drives item syncs from queue messages and a periodic
// full-estate pass.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"finlink/internal/amqp"
	"finlink/internal/core"
	"finlink/internal/services"
	"finlink/internal/store"

	"golang.org/x/sync/errgroup"
)

// SyncWorker resolves linked items and runs the sync engine for them.
type SyncWorker struct {
	items       store.ItemStore
	engine      *services.SyncEngine
	concurrency int
}

// NewSyncWorker creates a worker. concurrency bounds how many different
// items sync at once during a full pass; syncs of the same item are already
// serialized by the engine.
func NewSyncWorker(items store.ItemStore, engine *services.SyncEngine, concurrency int) *SyncWorker {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &SyncWorker{
		items:       items,
		engine:      engine,
		concurrency: concurrency,
	}
}

// HandleSyncRequest processes a single sync request from the queue.
// Returning an error requeues the message, so errors that cannot succeed on
// retry are logged and swallowed instead.
func (w *SyncWorker) HandleSyncRequest(ctx context.Context, msg *amqp.SyncRequestMessage) error {
	slog.InfoContext(ctx, "Processing sync request",
		"message_id", msg.ID,
		"item_key", msg.ItemKey,
		"full", msg.Full)

	item, err := w.items.Item(ctx, msg.ItemKey)
	if errors.Is(err, store.ErrNotFound) {
		// The item was unlinked after the request was queued.
		slog.WarnContext(ctx, "Dropping sync request for unknown item", "item_key", msg.ItemKey)
		return nil
	}
	if err != nil {
		return fmt.Errorf("resolve item %s: %w", msg.ItemKey, err)
	}

	if msg.Full {
		err = w.engine.FullSync(ctx, item.ItemKey, item.AccessToken)
	} else {
		err = w.engine.Sync(ctx, item.ItemKey, item.AccessToken)
	}

	switch {
	case err == nil:
		return nil
	case errors.Is(err, core.ErrReauthRequired):
		// Requeueing cannot fix an expired credential; the item stays at
		// its last good cursor until the user re-links.
		slog.WarnContext(ctx, "Item needs re-link, not retrying",
			"item_key", msg.ItemKey, "error", err)
		return nil
	case errors.Is(err, services.ErrSyncIncomplete), core.IsRetryable(err):
		return err
	default:
		slog.ErrorContext(ctx, "Sync failed permanently for this attempt",
			"item_key", msg.ItemKey, "error", err)
		return nil
	}
}

// SyncAll syncs every linked item, different items concurrently. The first
// error is returned after the remaining syncs finish.
func (w *SyncWorker) SyncAll(ctx context.Context) error {
	items, err := w.items.Items(ctx)
	if err != nil {
		return fmt.Errorf("list items: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)

	for _, item := range items {
		g.Go(func() error {
			if err := w.engine.Sync(gctx, item.ItemKey, item.AccessToken); err != nil {
				if errors.Is(err, core.ErrReauthRequired) {
					slog.WarnContext(gctx, "Skipping item pending re-link", "item_key", item.ItemKey)
					return nil
				}
				return err
			}
			return nil
		})
	}

	return g.Wait()
}
