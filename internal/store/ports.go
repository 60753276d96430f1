// Package store defines the row-store ports the service reads and writes
// through. Implementations live in subpackages: rest (remote REST row
// store), sqlite (local database) and memory (in-process fake).
package store

import (
	"context"
	"errors"

	"finlink/internal/core"
)

// ErrNotFound is returned when a keyed row does not exist.
var ErrNotFound = errors.New("not found")

// Range selects a window of rows: Limit rows starting at Offset.
type Range struct {
	Offset int
	Limit  int
}

// Ports for the row store.
type (
	// TransactionStore reconciles and lists stored transactions.
	TransactionStore interface {
		// UpsertTransactions writes rows keyed by transaction id. Re-applying
		// the same rows leaves the store unchanged.
		UpsertTransactions(ctx context.Context, txns []core.Transaction) error

		// DeleteTransactions removes rows by id. Missing ids are not an error.
		DeleteTransactions(ctx context.Context, ids []string) error

		// SelectTransactions returns rows matching the filter's store-side
		// predicates (date lower bound only), ordered by date descending,
		// windowed by r, together with the exact total count of matching rows
		// ignoring the window and the filter's category field.
		SelectTransactions(ctx context.Context, f core.TransactionFilter, r Range) ([]core.Transaction, int64, error)
	}

	// CursorStore persists per-item sync cursors.
	CursorStore interface {
		// Cursor returns the item's cursor, or ErrNotFound before first sync.
		Cursor(ctx context.Context, itemKey string) (core.SyncCursor, error)
		SaveCursor(ctx context.Context, c core.SyncCursor) error
	}

	// BudgetStore holds user budgets keyed by (user id, category id).
	BudgetStore interface {
		Budgets(ctx context.Context, userID string) ([]core.Budget, error)
		SaveBudget(ctx context.Context, b core.Budget) error
		DeleteBudget(ctx context.Context, userID, categoryID string) error
	}

	// ItemStore holds linked items and their access credentials.
	ItemStore interface {
		Items(ctx context.Context) ([]core.LinkedItem, error)
		// Item returns the linked item, or ErrNotFound.
		Item(ctx context.Context, itemKey string) (core.LinkedItem, error)
		SaveItem(ctx context.Context, item core.LinkedItem) error
		DeleteItem(ctx context.Context, itemKey string) error
	}

	// Store is the full row-store surface a backend must provide.
	Store interface {
		TransactionStore
		CursorStore
		BudgetStore
		ItemStore
	}
)
