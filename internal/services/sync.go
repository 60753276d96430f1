package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"finlink/internal/core"
	"finlink/internal/provider"
	"finlink/internal/store"
)

// ErrSyncIncomplete is returned when a sync hits its page budget while the
// provider still reports more pages. The cursor has advanced past every
// reconciled page, so invoking Sync again resumes where this run stopped.
var ErrSyncIncomplete = errors.New("sync stopped before the change stream was exhausted")

// SyncEngineConfig holds configuration for the sync engine.
type SyncEngineConfig struct {
	// MaxPagesPerSync bounds the page loop of one invocation (default: 50).
	MaxPagesPerSync int

	// CallTimeout applies to each provider and store call (default: 30s).
	CallTimeout time.Duration
}

// DefaultSyncEngineConfig returns sensible defaults.
func DefaultSyncEngineConfig() SyncEngineConfig {
	return SyncEngineConfig{
		MaxPagesPerSync: 50,
		CallTimeout:     30 * time.Second,
	}
}

// SyncStore is the slice of the row store the engine needs.
type SyncStore interface {
	store.TransactionStore
	store.CursorStore
}

// SyncEngine pulls one linked item's transaction changes from the provider
// and reconciles them into the store. Reconciliation is idempotent and the
// cursor only advances after a page has been fully applied, so a failed or
// interrupted run can always be retried from its last good state.
type SyncEngine struct {
	store    SyncStore
	provider provider.TransactionSource
	config   SyncEngineConfig

	// mu guards itemLocks; each item's lock serializes its syncs.
	mu        sync.Mutex
	itemLocks map[string]*sync.Mutex
}

// NewSyncEngine creates a sync engine.
func NewSyncEngine(st SyncStore, src provider.TransactionSource, config SyncEngineConfig) *SyncEngine {
	if config.MaxPagesPerSync <= 0 {
		config.MaxPagesPerSync = DefaultSyncEngineConfig().MaxPagesPerSync
	}
	if config.CallTimeout <= 0 {
		config.CallTimeout = DefaultSyncEngineConfig().CallTimeout
	}
	return &SyncEngine{
		store:     st,
		provider:  src,
		config:    config,
		itemLocks: make(map[string]*sync.Mutex),
	}
}

// Sync applies the item's pending provider changes to the store, resuming
// from the persisted cursor. Syncs for the same item are serialized; syncs
// for different items run independently.
func (e *SyncEngine) Sync(ctx context.Context, itemKey, accessToken string) error {
	return e.sync(ctx, itemKey, accessToken, false)
}

// FullSync discards the item's cursor and replays the whole change stream.
// Safe because reconciliation by transaction id is idempotent.
func (e *SyncEngine) FullSync(ctx context.Context, itemKey, accessToken string) error {
	return e.sync(ctx, itemKey, accessToken, true)
}

func (e *SyncEngine) sync(ctx context.Context, itemKey, accessToken string, fresh bool) error {
	if itemKey == "" {
		return core.ErrEmptyItemKey
	}

	lock := e.itemLock(itemKey)
	lock.Lock()
	defer lock.Unlock()

	cursor, err := e.loadCursor(ctx, itemKey)
	if err != nil {
		return err
	}
	if fresh {
		cursor.Cursor = ""
		cursor.Exhausted = false
	}

	start := time.Now()
	pages := 0

	for pages < e.config.MaxPagesPerSync {
		page, err := e.fetchPage(ctx, accessToken, cursor.Cursor)
		if err != nil {
			return fmt.Errorf("sync %s: %w", itemKey, err)
		}
		pages++

		// The page must be fully reconciled before the cursor moves, in
		// this order: upsert, delete, then cursor. A failure at any point
		// leaves the cursor at the previous page, and the next invocation
		// re-requests and re-applies the same page.
		if err := e.reconcile(ctx, page); err != nil {
			return fmt.Errorf("sync %s: %w", itemKey, err)
		}

		cursor.Cursor = page.NextCursor
		cursor.Exhausted = !page.HasMore
		if err := e.saveCursor(ctx, cursor); err != nil {
			return fmt.Errorf("sync %s: %w", itemKey, err)
		}

		if !page.HasMore {
			slog.InfoContext(ctx, "Sync complete",
				"item_key", itemKey,
				"pages", pages,
				"duration", time.Since(start))
			return nil
		}
	}

	slog.WarnContext(ctx, "Sync page budget exhausted",
		"item_key", itemKey,
		"pages", pages,
		"max_pages", e.config.MaxPagesPerSync)
	return fmt.Errorf("sync %s after %d pages: %w", itemKey, pages, ErrSyncIncomplete)
}

func (e *SyncEngine) loadCursor(ctx context.Context, itemKey string) (core.SyncCursor, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.config.CallTimeout)
	defer cancel()

	cursor, err := e.store.Cursor(callCtx, itemKey)
	if errors.Is(err, store.ErrNotFound) {
		return core.SyncCursor{ItemKey: itemKey}, nil
	}
	if err != nil {
		return core.SyncCursor{}, &core.StoreError{Op: "load cursor", Err: err}
	}
	return cursor, nil
}

func (e *SyncEngine) fetchPage(ctx context.Context, accessToken, cursor string) (provider.SyncPage, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.config.CallTimeout)
	defer cancel()
	return e.provider.SyncTransactions(callCtx, accessToken, cursor)
}

func (e *SyncEngine) reconcile(ctx context.Context, page provider.SyncPage) error {
	upserts := make([]core.Transaction, 0, len(page.Added)+len(page.Modified))
	upserts = append(upserts, page.Added...)
	upserts = append(upserts, page.Modified...)

	if len(upserts) > 0 {
		callCtx, cancel := context.WithTimeout(ctx, e.config.CallTimeout)
		err := e.store.UpsertTransactions(callCtx, upserts)
		cancel()
		if err != nil {
			return &core.StoreError{Op: "upsert transactions", Err: err}
		}
	}

	if len(page.Removed) > 0 {
		callCtx, cancel := context.WithTimeout(ctx, e.config.CallTimeout)
		err := e.store.DeleteTransactions(callCtx, page.Removed)
		cancel()
		if err != nil {
			return &core.StoreError{Op: "delete transactions", Err: err}
		}
	}

	return nil
}

func (e *SyncEngine) saveCursor(ctx context.Context, cursor core.SyncCursor) error {
	callCtx, cancel := context.WithTimeout(ctx, e.config.CallTimeout)
	defer cancel()

	if err := e.store.SaveCursor(callCtx, cursor); err != nil {
		return &core.StoreError{Op: "save cursor", Err: err}
	}
	return nil
}

func (e *SyncEngine) itemLock(itemKey string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.itemLocks[itemKey]
	if !ok {
		lock = &sync.Mutex{}
		e.itemLocks[itemKey] = lock
	}
	return lock
}
