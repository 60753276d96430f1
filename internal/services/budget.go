package services

import (
	"sort"

	"finlink/internal/core"

	"github.com/shopspring/decimal"
)

// BudgetAggregator splits a transaction set into budgeted spending and the
// residual income/spending groups. It is a pure computation over the inputs;
// nothing is cached, because budgets and transactions can change between
// calls.
type BudgetAggregator struct{}

// NewBudgetAggregator creates an aggregator.
func NewBudgetAggregator() *BudgetAggregator {
	return &BudgetAggregator{}
}

// Aggregate partitions transactions by sign, drains spending into budgets in
// the given order and groups what remains by top-level category.
//
// A transaction matching several budgets is claimed by whichever budget
// comes first in the input order (drain-once). That overlap policy is a
// deliberate simplification, not an error. Zero-amount transactions and
// transactions without a category are excluded from the grouped residuals.
func (a *BudgetAggregator) Aggregate(transactions []core.Transaction, budgets []core.Budget) core.AggregationResult {
	result := core.NewAggregationResult()

	var spending []core.Transaction
	for _, t := range transactions {
		switch t.Amount.Sign() {
		case -1:
			// Provider sign convention: negative is money in. Income is
			// reported as a positive magnitude.
			if top, ok := core.TopLevel(t.Category); ok {
				result.OtherIncome[top] = result.OtherIncome[top].Add(t.Amount.Neg())
			}
		case 1:
			spending = append(spending, t)
		}
	}

	// Spent totals are keyed by the budget's explicit identity; a duplicate
	// (user, category) pair folds into the first occurrence.
	spent := make(map[core.BudgetKey]decimal.Decimal)
	order := make([]core.Budget, 0, len(budgets))
	for _, b := range budgets {
		if _, seen := spent[b.Key()]; seen {
			continue
		}
		spent[b.Key()] = decimal.Zero
		order = append(order, b)

		claimed, remaining := partitionByCategory(spending, b.CategoryID)
		for _, t := range claimed {
			spent[b.Key()] = spent[b.Key()].Add(t.Amount)
		}
		spending = remaining
	}

	for _, b := range order {
		result.BudgetedSpending = append(result.BudgetedSpending, core.BudgetSpend{
			Budget: b,
			Spent:  spent[b.Key()],
		})
	}
	sort.SliceStable(result.BudgetedSpending, func(i, j int) bool {
		return result.BudgetedSpending[i].Budget.CategoryID < result.BudgetedSpending[j].Budget.CategoryID
	})

	for _, t := range spending {
		if top, ok := core.TopLevel(t.Category); ok {
			result.OtherSpending[top] = result.OtherSpending[top].Add(t.Amount)
		}
	}

	return result
}

// partitionByCategory splits transactions into those whose category path
// contains categoryID and the rest, preserving order in both halves.
func partitionByCategory(transactions []core.Transaction, categoryID string) (claimed, remaining []core.Transaction) {
	for _, t := range transactions {
		if core.Matches(categoryID, t.Category) {
			claimed = append(claimed, t)
		} else {
			remaining = append(remaining, t)
		}
	}
	return claimed, remaining
}
