// Package memory is an in-process row store for tests and demo mode.
package memory

import (
	"context"
	"sort"
	"sync"

	"finlink/internal/core"
	"finlink/internal/store"
)

type Store struct {
	mu           sync.RWMutex
	transactions map[string]core.Transaction
	cursors      map[string]core.SyncCursor
	budgets      map[core.BudgetKey]core.Budget
	items        map[string]core.LinkedItem
}

// Ensure interface conformance
var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		transactions: make(map[string]core.Transaction),
		cursors:      make(map[string]core.SyncCursor),
		budgets:      make(map[core.BudgetKey]core.Budget),
		items:        make(map[string]core.LinkedItem),
	}
}

// UpsertTransactions implements store.TransactionStore.
func (s *Store) UpsertTransactions(_ context.Context, txns []core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range txns {
		if err := t.Validate(); err != nil {
			return err
		}
		s.transactions[t.ID] = t
	}
	return nil
}

// DeleteTransactions implements store.TransactionStore.
func (s *Store) DeleteTransactions(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.transactions, id)
	}
	return nil
}

// SelectTransactions implements store.TransactionStore. Rows are ordered by
// date descending with the id as a tie break so paging is deterministic.
func (s *Store) SelectTransactions(_ context.Context, f core.TransactionFilter, r store.Range) ([]core.Transaction, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]core.Transaction, 0, len(s.transactions))
	for _, t := range s.transactions {
		if f.StartDate != nil && t.Date.Before(f.StartDate.Time) {
			continue
		}
		matched = append(matched, t)
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].Date.Equal(matched[j].Date.Time) {
			return matched[i].Date.After(matched[j].Date.Time)
		}
		return matched[i].ID < matched[j].ID
	})

	total := int64(len(matched))

	if r.Limit <= 0 {
		return matched, total, nil
	}
	if r.Offset >= len(matched) {
		return []core.Transaction{}, total, nil
	}
	end := r.Offset + r.Limit
	if end > len(matched) {
		end = len(matched)
	}
	page := make([]core.Transaction, end-r.Offset)
	copy(page, matched[r.Offset:end])
	return page, total, nil
}

// Cursor implements store.CursorStore.
func (s *Store) Cursor(_ context.Context, itemKey string) (core.SyncCursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cursors[itemKey]
	if !ok {
		return core.SyncCursor{}, store.ErrNotFound
	}
	return c, nil
}

// SaveCursor implements store.CursorStore.
func (s *Store) SaveCursor(_ context.Context, c core.SyncCursor) error {
	if c.ItemKey == "" {
		return core.ErrEmptyItemKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors[c.ItemKey] = c
	return nil
}

// Budgets implements store.BudgetStore. Results are ordered by category id
// for stable listings.
func (s *Store) Budgets(_ context.Context, userID string) ([]core.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Budget
	for key, b := range s.budgets {
		if key.UserID == userID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CategoryID < out[j].CategoryID
	})
	return out, nil
}

// SaveBudget implements store.BudgetStore.
func (s *Store) SaveBudget(_ context.Context, b core.Budget) error {
	if err := b.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.budgets[b.Key()] = b
	return nil
}

// DeleteBudget implements store.BudgetStore.
func (s *Store) DeleteBudget(_ context.Context, userID, categoryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.budgets, core.BudgetKey{UserID: userID, CategoryID: categoryID})
	return nil
}

// Items implements store.ItemStore.
func (s *Store) Items(context.Context) ([]core.LinkedItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.LinkedItem
	for _, item := range s.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ItemKey < out[j].ItemKey
	})
	return out, nil
}

// Item implements store.ItemStore.
func (s *Store) Item(_ context.Context, itemKey string) (core.LinkedItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[itemKey]
	if !ok {
		return core.LinkedItem{}, store.ErrNotFound
	}
	return item, nil
}

// SaveItem implements store.ItemStore.
func (s *Store) SaveItem(_ context.Context, item core.LinkedItem) error {
	if err := item.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ItemKey] = item
	return nil
}

// DeleteItem implements store.ItemStore.
func (s *Store) DeleteItem(_ context.Context, itemKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, itemKey)
	return nil
}
