package provider

import (
	"context"

	"finlink/internal/core"
)

// SyncPage is one page of an item's change stream.
type SyncPage struct {
	Added      []core.Transaction `json:"added"`
	Modified   []core.Transaction `json:"modified"`
	Removed    []string           `json:"removed"`
	NextCursor string             `json:"next_cursor"`
	HasMore    bool               `json:"has_more"`
}

// Ports for the external financial-data provider.
type (
	// TransactionSource pages through an item's transaction change stream.
	// An empty cursor requests the stream from the beginning.
	TransactionSource interface {
		SyncTransactions(ctx context.Context, accessToken, cursor string) (SyncPage, error)
	}

	// CategorySource fetches the provider's full category taxonomy.
	CategorySource interface {
		Categories(ctx context.Context) ([]core.Category, error)
	}

	// Source bundles everything the service needs from the provider.
	Source interface {
		TransactionSource
		CategorySource
	}
)
