package services

import (
	"context"
	"fmt"

	"finlink/internal/core"
	"finlink/internal/store"
)

// DefaultPageSize is used when a caller passes a non-positive page size.
const DefaultPageSize = 25

// TransactionPager serves filtered, paginated views of stored transactions
// with the store's exact total count, so callers can derive
// total_pages = total / page_size.
type TransactionPager struct {
	store store.TransactionStore
}

// NewTransactionPager creates a pager over the given store.
func NewTransactionPager(st store.TransactionStore) *TransactionPager {
	return &TransactionPager{store: st}
}

// Page returns one page of transactions plus the exact count of rows
// matching the date filter. Pages are zero-based; clamping an out-of-range
// page number is the caller's responsibility.
//
// The category filter is applied after retrieval, against the leaf element
// of each transaction's category path, and does not affect the reported
// total. A filtered page can therefore contain fewer than pageSize rows
// while later pages still hold matches.
func (p *TransactionPager) Page(ctx context.Context, filter core.TransactionFilter, pageNumber, pageSize int) (int64, []core.Transaction, error) {
	if pageNumber < 0 {
		pageNumber = 0
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	rows, total, err := p.store.SelectTransactions(ctx, filter, store.Range{
		Offset: pageNumber * pageSize,
		Limit:  pageSize,
	})
	if err != nil {
		return 0, nil, fmt.Errorf("page transactions: %w", err)
	}

	if filter.Category != "" {
		filtered := rows[:0]
		for _, t := range rows {
			if leaf, ok := core.Leaf(t.Category); ok && leaf == filter.Category {
				filtered = append(filtered, t)
			}
		}
		rows = filtered
	}

	return total, rows, nil
}
