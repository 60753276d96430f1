package services

import (
	"context"
	"fmt"

	"finlink/internal/core"
	"finlink/internal/store"
)

// BudgetService owns budget CRUD and the spend-vs-budget summary. The
// summary is recomputed from a fresh snapshot of stored transactions on
// every call.
type BudgetService struct {
	transactions store.TransactionStore
	budgets      store.BudgetStore
	aggregator   *BudgetAggregator
}

// NewBudgetService creates a budget service.
func NewBudgetService(txns store.TransactionStore, budgets store.BudgetStore) *BudgetService {
	return &BudgetService{
		transactions: txns,
		budgets:      budgets,
		aggregator:   NewBudgetAggregator(),
	}
}

// Summary aggregates the user's stored transactions against their budgets.
// Budgets are processed in the store's category order, which is also the
// claiming priority for transactions matching more than one budget.
func (s *BudgetService) Summary(ctx context.Context, userID string, filter core.TransactionFilter) (core.AggregationResult, error) {
	transactions, _, err := s.transactions.SelectTransactions(ctx, filter, store.Range{})
	if err != nil {
		return core.AggregationResult{}, fmt.Errorf("load transactions: %w", err)
	}

	budgets, err := s.budgets.Budgets(ctx, userID)
	if err != nil {
		return core.AggregationResult{}, fmt.Errorf("load budgets: %w", err)
	}

	return s.aggregator.Aggregate(transactions, budgets), nil
}

// List returns the user's budgets ordered by category id.
func (s *BudgetService) List(ctx context.Context, userID string) ([]core.Budget, error) {
	return s.budgets.Budgets(ctx, userID)
}

// Save creates or replaces the budget identified by (user id, category id).
func (s *BudgetService) Save(ctx context.Context, b core.Budget) error {
	if err := b.Validate(); err != nil {
		return err
	}
	return s.budgets.SaveBudget(ctx, b)
}

// Delete removes one budget. Deleting a missing budget is not an error.
func (s *BudgetService) Delete(ctx context.Context, userID, categoryID string) error {
	if userID == "" {
		return core.ErrEmptyUserID
	}
	if categoryID == "" {
		return core.ErrEmptyCategoryID
	}
	return s.budgets.DeleteBudget(ctx, userID, categoryID)
}
