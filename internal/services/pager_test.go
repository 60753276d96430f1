package services

import (
	"context"
	"testing"

	"finlink/internal/core"
	storemem "finlink/internal/store/memory"
)

func seedPagerStore(t *testing.T) *storemem.Store {
	t.Helper()
	st := storemem.New()
	seed := []core.Transaction{
		txn("t1", "2024-03-05", 10, "Food and Drink", "Coffee Shop"),
		txn("t2", "2024-03-04", 20, "Travel", "Taxi"),
		txn("t3", "2024-03-03", 30, "Food and Drink", "Coffee Shop"),
		txn("t4", "2024-03-02", 40, "Shops"),
		txn("t5", "2024-03-01", 50, "Travel", "Taxi"),
		txn("t6", "2024-02-15", 60, "Food and Drink", "Coffee Shop"),
	}
	if err := st.UpsertTransactions(context.Background(), seed); err != nil {
		t.Fatalf("UpsertTransactions: %v", err)
	}
	return st
}

func pageIDs(txns []core.Transaction) []string {
	ids := make([]string, len(txns))
	for i, tx := range txns {
		ids[i] = tx.ID
	}
	return ids
}

func TestPageOrderAndWindow(t *testing.T) {
	pager := NewTransactionPager(seedPagerStore(t))

	total, txns, err := pager.Page(context.Background(), core.TransactionFilter{}, 0, 2)
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if total != 6 {
		t.Errorf("total = %d, want 6", total)
	}
	if got := pageIDs(txns); len(got) != 2 || got[0] != "t1" || got[1] != "t2" {
		t.Errorf("page 0 = %v, want [t1 t2] (date desc)", got)
	}

	_, txns, err = pager.Page(context.Background(), core.TransactionFilter{}, 2, 2)
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if got := pageIDs(txns); len(got) != 2 || got[0] != "t5" || got[1] != "t6" {
		t.Errorf("page 2 = %v, want [t5 t6]", got)
	}
}

func TestPageCompleteness(t *testing.T) {
	pager := NewTransactionPager(seedPagerStore(t))

	// Walking all pages yields every row exactly once.
	seen := make(map[string]int)
	for page := 0; ; page++ {
		total, txns, err := pager.Page(context.Background(), core.TransactionFilter{}, page, 2)
		if err != nil {
			t.Fatalf("Page %d: %v", page, err)
		}
		if len(txns) == 0 {
			break
		}
		for _, tx := range txns {
			seen[tx.ID]++
		}
		if int64((page+1)*2) >= total {
			break
		}
	}
	if len(seen) != 6 {
		t.Fatalf("saw %d distinct rows, want 6", len(seen))
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("row %s seen %d times, want once", id, n)
		}
	}
}

func TestPageStartDateFilter(t *testing.T) {
	pager := NewTransactionPager(seedPagerStore(t))

	start, err := core.ParseDate("2024-03-01")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	total, txns, err := pager.Page(context.Background(), core.TransactionFilter{StartDate: &start}, 0, 10)
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5 (t6 is before the start date)", total)
	}
	for _, tx := range txns {
		if tx.Date.Before(start.Time) {
			t.Errorf("row %s dated %s precedes start date", tx.ID, tx.Date)
		}
	}
}

func TestPageCategoryFilterIsLeafOnlyAndAfterPagination(t *testing.T) {
	pager := NewTransactionPager(seedPagerStore(t))

	// "Food and Drink" is a non-leaf node of t1/t3/t6's paths: the leaf-only
	// comparison matches nothing.
	total, txns, err := pager.Page(context.Background(), core.TransactionFilter{Category: "Food and Drink"}, 0, 10)
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if len(txns) != 0 {
		t.Errorf("rows = %v, want none for non-leaf category", pageIDs(txns))
	}
	if total != 6 {
		t.Errorf("total = %d, want 6 (category filter never affects the count)", total)
	}

	// Leaf match, applied after the page window: page 0 of size 2 holds
	// t1 and t2, so only t1 survives the filter even though t3 and t6
	// also match.
	total, txns, err = pager.Page(context.Background(), core.TransactionFilter{Category: "Coffee Shop"}, 0, 2)
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if got := pageIDs(txns); len(got) != 1 || got[0] != "t1" {
		t.Errorf("rows = %v, want [t1]", got)
	}
	if total != 6 {
		t.Errorf("total = %d, want 6", total)
	}
}

func TestPageDefaults(t *testing.T) {
	pager := NewTransactionPager(seedPagerStore(t))

	// Negative page clamps to 0, non-positive size falls back to the default.
	total, txns, err := pager.Page(context.Background(), core.TransactionFilter{}, -3, 0)
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if total != 6 || len(txns) != 6 {
		t.Errorf("total = %d, rows = %d; want 6/6 under default page size", total, len(txns))
	}
	if txns[0].ID != "t1" {
		t.Errorf("first row = %s, want t1", txns[0].ID)
	}
}

func TestPagePastTheEnd(t *testing.T) {
	pager := NewTransactionPager(seedPagerStore(t))

	total, txns, err := pager.Page(context.Background(), core.TransactionFilter{}, 10, 25)
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if total != 6 {
		t.Errorf("total = %d, want 6", total)
	}
	if len(txns) != 0 {
		t.Errorf("rows = %v, want empty page past the end", pageIDs(txns))
	}
}
