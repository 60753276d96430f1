package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"finlink/internal/core"
	"finlink/internal/provider"
	providermem "finlink/internal/provider/memory"
	"finlink/internal/services"
	"finlink/internal/store"
	storemem "finlink/internal/store/memory"

	"github.com/shopspring/decimal"
)

func providerPage(added []core.Transaction, removed []string, nextCursor string, hasMore bool) provider.SyncPage {
	return provider.SyncPage{
		Added:      added,
		Removed:    removed,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}
}

func newTestServer(t *testing.T) (*Server, *storemem.Store, *providermem.Source) {
	t.Helper()

	st := storemem.New()
	src := providermem.New([]core.Category{
		{ID: "cat-food", Group: "special", Hierarchy: []string{"Food and Drink"}},
		{ID: "cat-coffee", Group: "special", Hierarchy: []string{"Food and Drink", "Coffee Shop"}},
	})

	engine := services.NewSyncEngine(st, src, services.DefaultSyncEngineConfig())
	budgets := services.NewBudgetService(st, st)
	pager := services.NewTransactionPager(st)
	taxonomy := services.NewTaxonomyService(src, 0)

	srv := NewServer(":0", st, engine, budgets, pager, taxonomy, Options{})
	return srv, st, src
}

func doRequest(srv *Server, method, target string, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func mustDate(t *testing.T, s string) core.Date {
	t.Helper()
	d, err := core.ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate(%q): %v", s, err)
	}
	return d
}

func TestHandleSyncItem(t *testing.T) {
	srv, st, src := newTestServer(t)
	ctx := context.Background()

	if err := st.SaveItem(ctx, core.LinkedItem{ItemKey: "item-1", UserID: "u1", AccessToken: "tok-1"}); err != nil {
		t.Fatalf("SaveItem: %v", err)
	}

	src.Script("tok-1",
		providerPage([]core.Transaction{
			{ID: "t1", AccountID: "a1", Amount: decimal.NewFromInt(10), Date: mustDate(t, "2024-03-01")},
		}, nil, "cur-1", false),
	)

	t.Run("unknown item", func(t *testing.T) {
		rec := doRequest(srv, http.MethodPost, "/api/items/missing/sync", "")
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
		}
	})

	t.Run("successful sync stores transactions", func(t *testing.T) {
		rec := doRequest(srv, http.MethodPost, "/api/items/item-1/sync", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d (body: %s)", rec.Code, http.StatusOK, rec.Body.String())
		}

		txns, total, err := st.SelectTransactions(ctx, core.TransactionFilter{}, store.Range{})
		if err != nil {
			t.Fatalf("SelectTransactions: %v", err)
		}
		if total != 1 || len(txns) != 1 {
			t.Fatalf("stored %d transactions (total %d), want 1", len(txns), total)
		}
	})

	t.Run("expired credential maps to conflict", func(t *testing.T) {
		if err := st.SaveItem(ctx, core.LinkedItem{ItemKey: "item-2", UserID: "u1", AccessToken: "tok-unknown"}); err != nil {
			t.Fatalf("SaveItem: %v", err)
		}
		rec := doRequest(srv, http.MethodPost, "/api/items/item-2/sync", "")
		if rec.Code != http.StatusConflict {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusConflict)
		}
		var resp struct {
			Code string `json:"code"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if resp.Code != "reauth_required" {
			t.Fatalf("code = %q, want reauth_required", resp.Code)
		}
	})

	t.Run("async without publisher is rejected", func(t *testing.T) {
		rec := doRequest(srv, http.MethodPost, "/api/items/item-1/sync?async=true", "")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}
	})
}

func TestHandleBudgets(t *testing.T) {
	srv, st, _ := newTestServer(t)
	ctx := context.Background()

	t.Run("summary requires user_id", func(t *testing.T) {
		rec := doRequest(srv, http.MethodGet, "/api/budgets/summary", "")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}
	})

	t.Run("save validates", func(t *testing.T) {
		rec := doRequest(srv, http.MethodPut, "/api/budgets", `{"user_id":"u1","category_id":"","max":"50"}`)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d, want %d (body: %s)", rec.Code, http.StatusUnprocessableEntity, rec.Body.String())
		}
	})

	t.Run("save then list", func(t *testing.T) {
		rec := doRequest(srv, http.MethodPut, "/api/budgets", `{"user_id":"u1","category_id":"Food and Drink","max":"250"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("save status = %d, want %d (body: %s)", rec.Code, http.StatusOK, rec.Body.String())
		}

		rec = doRequest(srv, http.MethodGet, "/api/budgets?user_id=u1", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("list status = %d, want %d", rec.Code, http.StatusOK)
		}
		var resp struct {
			Budgets []core.Budget `json:"budgets"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if len(resp.Budgets) != 1 || resp.Budgets[0].CategoryID != "Food and Drink" {
			t.Fatalf("budgets = %+v, want one Food and Drink entry", resp.Budgets)
		}
	})

	t.Run("summary partitions income and spending", func(t *testing.T) {
		seed := []core.Transaction{
			{ID: "s1", AccountID: "a1", Amount: decimal.NewFromInt(30), Date: mustDate(t, "2024-03-01"), Category: []string{"Food and Drink", "Coffee Shop"}},
			{ID: "s2", AccountID: "a1", Amount: decimal.NewFromInt(-100), Date: mustDate(t, "2024-03-02"), Category: []string{"Transfer", "Deposit"}},
		}
		if err := st.UpsertTransactions(ctx, seed); err != nil {
			t.Fatalf("UpsertTransactions: %v", err)
		}

		rec := doRequest(srv, http.MethodGet, "/api/budgets/summary?user_id=u1", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d (body: %s)", rec.Code, http.StatusOK, rec.Body.String())
		}
		var result core.AggregationResult
		if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if len(result.BudgetedSpending) != 1 {
			t.Fatalf("budgeted spending = %+v, want one entry", result.BudgetedSpending)
		}
		if !result.BudgetedSpending[0].Spent.Equal(decimal.NewFromInt(30)) {
			t.Fatalf("spent = %s, want 30", result.BudgetedSpending[0].Spent)
		}
		if !result.OtherIncome["Transfer"].Equal(decimal.NewFromInt(100)) {
			t.Fatalf("other income = %v, want Transfer=100", result.OtherIncome)
		}
	})

	t.Run("delete", func(t *testing.T) {
		rec := doRequest(srv, http.MethodDelete, "/api/budgets?user_id=u1&category_id=Food+and+Drink", "")
		if rec.Code != http.StatusNoContent {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
		}
	})
}

func TestHandleListTransactions(t *testing.T) {
	srv, st, _ := newTestServer(t)
	ctx := context.Background()

	seed := []core.Transaction{
		{ID: "t1", AccountID: "a1", Amount: decimal.NewFromInt(5), Date: mustDate(t, "2024-03-03"), Category: []string{"Food and Drink", "Coffee Shop"}},
		{ID: "t2", AccountID: "a1", Amount: decimal.NewFromInt(7), Date: mustDate(t, "2024-03-02"), Category: []string{"Travel"}},
		{ID: "t3", AccountID: "a1", Amount: decimal.NewFromInt(9), Date: mustDate(t, "2024-02-01"), Category: []string{"Travel"}},
	}
	if err := st.UpsertTransactions(ctx, seed); err != nil {
		t.Fatalf("UpsertTransactions: %v", err)
	}

	t.Run("date filter and total", func(t *testing.T) {
		rec := doRequest(srv, http.MethodGet, "/api/transactions?start_date=2024-03-01&page=0&page_size=10", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d (body: %s)", rec.Code, http.StatusOK, rec.Body.String())
		}
		var resp struct {
			Total        int64              `json:"total"`
			Transactions []core.Transaction `json:"transactions"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if resp.Total != 2 || len(resp.Transactions) != 2 {
			t.Fatalf("total = %d, rows = %d, want 2/2", resp.Total, len(resp.Transactions))
		}
		if resp.Transactions[0].ID != "t1" {
			t.Fatalf("first row = %s, want t1 (date desc)", resp.Transactions[0].ID)
		}
	})

	t.Run("category filter narrows rows but not total", func(t *testing.T) {
		rec := doRequest(srv, http.MethodGet, "/api/transactions?category=Coffee+Shop&page=0&page_size=10", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
		}
		var resp struct {
			Total        int64              `json:"total"`
			Transactions []core.Transaction `json:"transactions"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if resp.Total != 3 {
			t.Fatalf("total = %d, want 3 (category filter must not affect total)", resp.Total)
		}
		if len(resp.Transactions) != 1 || resp.Transactions[0].ID != "t1" {
			t.Fatalf("rows = %+v, want only t1", resp.Transactions)
		}
	})

	t.Run("invalid date", func(t *testing.T) {
		rec := doRequest(srv, http.MethodGet, "/api/transactions?start_date=03/01/2024", "")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}
	})
}

func TestHandleListCategories(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodGet, "/api/categories", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var resp struct {
		Categories []core.Category `json:"categories"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(resp.Categories) != 2 {
		t.Fatalf("categories = %d, want 2", len(resp.Categories))
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv, _, _ := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := doRequest(srv, http.MethodGet, path, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status = %d, want %d", path, rec.Code, http.StatusOK)
		}
	}
}
