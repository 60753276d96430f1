// Package rest implements the row-store ports against a PostgREST-style
// remote store: one REST resource per table, filters as query parameters,
// upserts via the merge-duplicates preference and exact row counts reported
// in the Content-Range header.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"finlink/internal/core"
	"finlink/internal/store"
)

const (
	tableTransactions = "transactions"
	tableCursors      = "sync_cursors"
	tableBudgets      = "budgets"
	tableItems        = "linked_items"

	defaultTimeout = 15 * time.Second
)

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// Ensure interface conformance
var _ store.Store = (*Client)(nil)

// New creates a remote row-store client. baseURL points at the store's REST
// root (e.g. https://host/rest/v1).
func New(baseURL, apiKey string, timeout time.Duration) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("missing store URL")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("missing store API key")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}, nil
}

// NewFromEnv creates a client from STORE_REST_URL and STORE_REST_KEY.
func NewFromEnv() (*Client, error) {
	return New(
		strings.TrimSpace(os.Getenv("STORE_REST_URL")),
		strings.TrimSpace(os.Getenv("STORE_REST_KEY")),
		0,
	)
}

// UpsertTransactions implements store.TransactionStore.
func (c *Client) UpsertTransactions(ctx context.Context, txns []core.Transaction) error {
	if len(txns) == 0 {
		return nil
	}
	params := url.Values{"on_conflict": {"transaction_id"}}
	return c.upsert(ctx, tableTransactions, params, txns)
}

// DeleteTransactions implements store.TransactionStore.
func (c *Client) DeleteTransactions(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	params := url.Values{"transaction_id": {inList(ids)}}
	req, err := c.newRequest(ctx, http.MethodDelete, tableTransactions, params, nil)
	if err != nil {
		return err
	}
	_, _, err = c.do(req, nil)
	return err
}

// SelectTransactions implements store.TransactionStore. The date filter is a
// lower bound only; ordering is date descending with the id as tie break and
// the exact count comes from the Content-Range header.
func (c *Client) SelectTransactions(ctx context.Context, f core.TransactionFilter, r store.Range) ([]core.Transaction, int64, error) {
	params := url.Values{
		"select": {"*"},
		"order":  {"date.desc,transaction_id.asc"},
	}
	if f.StartDate != nil {
		params.Set("date", "gte."+f.StartDate.String())
	}

	req, err := c.newRequest(ctx, http.MethodGet, tableTransactions, params, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Prefer", "count=exact")
	if r.Limit > 0 {
		req.Header.Set("Range-Unit", "items")
		req.Header.Set("Range", fmt.Sprintf("%d-%d", r.Offset, r.Offset+r.Limit-1))
	}

	var rows []core.Transaction
	_, contentRange, err := c.do(req, &rows)
	if err != nil {
		return nil, 0, err
	}

	total, err := parseExactCount(contentRange)
	if err != nil {
		return nil, 0, &core.SchemaError{Op: "select " + tableTransactions, Err: err}
	}
	return rows, total, nil
}

// Cursor implements store.CursorStore.
func (c *Client) Cursor(ctx context.Context, itemKey string) (core.SyncCursor, error) {
	params := url.Values{
		"select":   {"*"},
		"item_key": {"eq." + itemKey},
	}
	req, err := c.newRequest(ctx, http.MethodGet, tableCursors, params, nil)
	if err != nil {
		return core.SyncCursor{}, err
	}

	var rows []core.SyncCursor
	if _, _, err := c.do(req, &rows); err != nil {
		return core.SyncCursor{}, err
	}
	if len(rows) == 0 {
		return core.SyncCursor{}, store.ErrNotFound
	}
	return rows[0], nil
}

// SaveCursor implements store.CursorStore.
func (c *Client) SaveCursor(ctx context.Context, cur core.SyncCursor) error {
	params := url.Values{"on_conflict": {"item_key"}}
	return c.upsert(ctx, tableCursors, params, []core.SyncCursor{cur})
}

// Budgets implements store.BudgetStore.
func (c *Client) Budgets(ctx context.Context, userID string) ([]core.Budget, error) {
	params := url.Values{
		"select":  {"*"},
		"user_id": {"eq." + userID},
		"order":   {"category_id.asc"},
	}
	req, err := c.newRequest(ctx, http.MethodGet, tableBudgets, params, nil)
	if err != nil {
		return nil, err
	}
	var rows []core.Budget
	if _, _, err := c.do(req, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// SaveBudget implements store.BudgetStore.
func (c *Client) SaveBudget(ctx context.Context, b core.Budget) error {
	if err := b.Validate(); err != nil {
		return err
	}
	params := url.Values{"on_conflict": {"user_id,category_id"}}
	return c.upsert(ctx, tableBudgets, params, []core.Budget{b})
}

// DeleteBudget implements store.BudgetStore.
func (c *Client) DeleteBudget(ctx context.Context, userID, categoryID string) error {
	params := url.Values{
		"user_id":     {"eq." + userID},
		"category_id": {"eq." + categoryID},
	}
	req, err := c.newRequest(ctx, http.MethodDelete, tableBudgets, params, nil)
	if err != nil {
		return err
	}
	_, _, err = c.do(req, nil)
	return err
}

// Items implements store.ItemStore.
func (c *Client) Items(ctx context.Context) ([]core.LinkedItem, error) {
	params := url.Values{
		"select": {"*"},
		"order":  {"item_key.asc"},
	}
	req, err := c.newRequest(ctx, http.MethodGet, tableItems, params, nil)
	if err != nil {
		return nil, err
	}
	var rows []core.LinkedItem
	if _, _, err := c.do(req, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Item implements store.ItemStore.
func (c *Client) Item(ctx context.Context, itemKey string) (core.LinkedItem, error) {
	params := url.Values{
		"select":   {"*"},
		"item_key": {"eq." + itemKey},
	}
	req, err := c.newRequest(ctx, http.MethodGet, tableItems, params, nil)
	if err != nil {
		return core.LinkedItem{}, err
	}
	var rows []core.LinkedItem
	if _, _, err := c.do(req, &rows); err != nil {
		return core.LinkedItem{}, err
	}
	if len(rows) == 0 {
		return core.LinkedItem{}, store.ErrNotFound
	}
	return rows[0], nil
}

// SaveItem implements store.ItemStore.
func (c *Client) SaveItem(ctx context.Context, item core.LinkedItem) error {
	if err := item.Validate(); err != nil {
		return err
	}
	params := url.Values{"on_conflict": {"item_key"}}
	return c.upsert(ctx, tableItems, params, []core.LinkedItem{item})
}

// DeleteItem implements store.ItemStore.
func (c *Client) DeleteItem(ctx context.Context, itemKey string) error {
	params := url.Values{"item_key": {"eq." + itemKey}}
	req, err := c.newRequest(ctx, http.MethodDelete, tableItems, params, nil)
	if err != nil {
		return err
	}
	_, _, err = c.do(req, nil)
	return err
}

func (c *Client) upsert(ctx context.Context, table string, params url.Values, rows any) error {
	body, err := json.Marshal(rows)
	if err != nil {
		return &core.SchemaError{Op: "encode " + table, Err: err}
	}
	req, err := c.newRequest(ctx, http.MethodPost, table, params, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Prefer", "resolution=merge-duplicates")
	_, _, err = c.do(req, nil)
	return err
}

func (c *Client) newRequest(ctx context.Context, method, table string, params url.Values, body io.Reader) (*http.Request, error) {
	u := c.baseURL + "/" + table
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// do executes the request, decodes a JSON body into out when non-nil and
// returns the status code and Content-Range header.
func (c *Client) do(req *http.Request, out any) (int, string, error) {
	op := req.Method + " " + req.URL.Path

	res, err := c.httpClient.Do(req)
	if err != nil {
		return 0, "", &core.TransportError{Op: op, Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusInternalServerError {
		return res.StatusCode, "", &core.TransportError{Op: op, Err: fmt.Errorf("store status %d", res.StatusCode)}
	}
	if res.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(io.LimitReader(res.Body, 1<<14))
		return res.StatusCode, "", fmt.Errorf("%s: store status %d: %s", op, res.StatusCode, strings.TrimSpace(string(raw)))
	}

	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			return res.StatusCode, "", &core.SchemaError{Op: "decode " + op, Err: err}
		}
	} else {
		io.Copy(io.Discard, res.Body)
	}
	return res.StatusCode, res.Header.Get("Content-Range"), nil
}

// parseExactCount extracts the total from a Content-Range header such as
// "0-24/613" or "*/0".
func parseExactCount(contentRange string) (int64, error) {
	if contentRange == "" {
		return 0, errors.New("missing Content-Range header")
	}
	parts := strings.Split(contentRange, "/")
	raw := parts[len(parts)-1]
	if raw == "*" {
		return 0, errors.New("store did not report an exact count")
	}
	total, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad Content-Range %q: %w", contentRange, err)
	}
	return total, nil
}

// inList renders ids as a PostgREST in.(...) filter value.
func inList(ids []string) string {
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = `"` + id + `"`
	}
	return "in.(" + strings.Join(quoted, ",") + ")"
}
