// Package gateway talks to the financial-data provider through a small HTTP
// relay that holds the provider secrets. Every call is a POST of an
// {endpoint, data} envelope to a single gateway URL.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"finlink/internal/core"
	ports "finlink/internal/provider"
)

const (
	endpointTransactionsSync = "/transactions/sync"
	endpointCategoriesGet    = "/categories/get"

	defaultTimeout = 30 * time.Second
)

type Client struct {
	httpClient *http.Client
	gatewayURL string
	apiKey     string
}

// Ensure interface conformance
var (
	_ ports.TransactionSource = (*Client)(nil)
	_ ports.CategorySource    = (*Client)(nil)
)

// envelope is the request shape the gateway expects.
type envelope struct {
	Endpoint string          `json:"endpoint"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// apiError is the provider's error shape, passed through by the gateway.
type apiError struct {
	ErrorType      string  `json:"error_type"`
	ErrorCode      string  `json:"error_code"`
	ErrorMessage   string  `json:"error_message"`
	DisplayMessage *string `json:"display_message"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("provider error %s/%s: %s", e.ErrorType, e.ErrorCode, e.ErrorMessage)
}

// New creates a gateway client. Timeout applies per request; zero means the
// default of 30s.
func New(gatewayURL, apiKey string, timeout time.Duration) (*Client, error) {
	if strings.TrimSpace(gatewayURL) == "" {
		return nil, errors.New("missing gateway URL")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("missing gateway API key")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		gatewayURL: strings.TrimRight(gatewayURL, "/"),
		apiKey:     apiKey,
	}, nil
}

// NewFromEnv creates a gateway client from PROVIDER_GATEWAY_URL and
// PROVIDER_GATEWAY_KEY.
func NewFromEnv() (*Client, error) {
	return New(
		strings.TrimSpace(os.Getenv("PROVIDER_GATEWAY_URL")),
		strings.TrimSpace(os.Getenv("PROVIDER_GATEWAY_KEY")),
		0,
	)
}

// SyncTransactions implements ports.TransactionSource.
func (c *Client) SyncTransactions(ctx context.Context, accessToken, cursor string) (ports.SyncPage, error) {
	req := struct {
		AccessToken string `json:"access_token"`
		Cursor      string `json:"cursor,omitempty"`
	}{
		AccessToken: accessToken,
		Cursor:      cursor,
	}

	var page ports.SyncPage
	if err := c.post(ctx, endpointTransactionsSync, req, &page); err != nil {
		return ports.SyncPage{}, err
	}

	slog.DebugContext(ctx, "Fetched sync page",
		"added", len(page.Added),
		"modified", len(page.Modified),
		"removed", len(page.Removed),
		"has_more", page.HasMore)

	return page, nil
}

// Categories implements ports.CategorySource.
func (c *Client) Categories(ctx context.Context) ([]core.Category, error) {
	var res struct {
		Categories []core.Category `json:"categories"`
	}
	if err := c.post(ctx, endpointCategoriesGet, nil, &res); err != nil {
		return nil, err
	}
	return res.Categories, nil
}

func (c *Client) post(ctx context.Context, endpoint string, data, out any) error {
	env := envelope{Endpoint: endpoint}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return &core.SchemaError{Op: "encode " + endpoint, Err: err}
		}
		env.Data = raw
	}

	body, err := json.Marshal(env)
	if err != nil {
		return &core.SchemaError{Op: "encode " + endpoint, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.gatewayURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return &core.TransportError{Op: endpoint, Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusInternalServerError {
		return &core.TransportError{Op: endpoint, Err: fmt.Errorf("gateway status %d", res.StatusCode)}
	}
	if res.StatusCode >= http.StatusBadRequest {
		return c.decodeError(endpoint, res)
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return &core.SchemaError{Op: "decode " + endpoint, Err: err}
	}
	return nil
}

// decodeError maps a provider error body onto the sync error taxonomy.
// A credential the provider no longer accepts becomes ErrReauthRequired so
// the caller can prompt a re-link instead of retrying.
func (c *Client) decodeError(endpoint string, res *http.Response) error {
	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<16))
	if err != nil {
		return &core.TransportError{Op: endpoint, Err: err}
	}

	var apiErr apiError
	if err := json.Unmarshal(raw, &apiErr); err != nil || apiErr.ErrorCode == "" {
		return &core.SchemaError{
			Op:  endpoint,
			Err: fmt.Errorf("unexpected status %d: %s", res.StatusCode, strings.TrimSpace(string(raw))),
		}
	}

	if apiErr.ErrorCode == "ITEM_LOGIN_REQUIRED" || apiErr.ErrorType == "ITEM_ERROR" && apiErr.ErrorCode == "ITEM_LOCKED" {
		return fmt.Errorf("%w: %s", core.ErrReauthRequired, apiErr.ErrorMessage)
	}

	return &apiErr
}
