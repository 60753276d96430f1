// Package memory is an in-process provider used by tests and the demo
// backend. Sync pages are scripted per access token and consumed in order,
// keyed by the cursor the caller presents, so retries of the same page
// replay the same change set.
package memory

import (
	"context"
	"fmt"
	"sync"

	"finlink/internal/core"
	ports "finlink/internal/provider"
)

type Source struct {
	mu         sync.Mutex
	categories []core.Category
	// pages maps access token -> cursor -> page. The first page of a stream
	// is keyed by the empty cursor.
	pages map[string]map[string]ports.SyncPage
	// errs maps access token -> error returned instead of a page.
	errs map[string]error
}

// Ensure interface conformance
var (
	_ ports.TransactionSource = (*Source)(nil)
	_ ports.CategorySource    = (*Source)(nil)
)

func New(categories []core.Category) *Source {
	return &Source{
		categories: categories,
		pages:      make(map[string]map[string]ports.SyncPage),
		errs:       make(map[string]error),
	}
}

// Script registers the pages of one item's change stream. Pages are chained
// automatically: page i is served for the cursor page i-1 announced.
func (s *Source) Script(accessToken string, pages ...ports.SyncPage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byCursor := make(map[string]ports.SyncPage, len(pages))
	cursor := ""
	for _, p := range pages {
		byCursor[cursor] = p
		cursor = p.NextCursor
	}
	s.pages[accessToken] = byCursor
}

// Fail makes every sync call for the token return err until cleared with a
// new Script or a nil err.
func (s *Source) Fail(accessToken string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.errs, accessToken)
		return
	}
	s.errs[accessToken] = err
}

// SyncTransactions implements ports.TransactionSource.
func (s *Source) SyncTransactions(_ context.Context, accessToken, cursor string) (ports.SyncPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err, ok := s.errs[accessToken]; ok {
		return ports.SyncPage{}, err
	}

	stream, ok := s.pages[accessToken]
	if !ok {
		return ports.SyncPage{}, fmt.Errorf("%w: unknown access token", core.ErrReauthRequired)
	}

	page, ok := stream[cursor]
	if !ok {
		// Past the end of the script: an empty terminal page keeps the
		// stream exhausted without inventing changes.
		return ports.SyncPage{NextCursor: cursor, HasMore: false}, nil
	}
	return page, nil
}

// Categories implements ports.CategorySource.
func (s *Source) Categories(context.Context) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Category, len(s.categories))
	copy(out, s.categories)
	return out, nil
}
