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
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"expensetracker/internal/core"
)

// ResourcePath is the expense resource below the API base URL.
const ResourcePath = "/api/expenses"

// DefaultTimeout bounds a single call when no WithTimeout option is given.
const DefaultTimeout = 10 * time.Second

// Client implements Gateway against the expense REST API.
type Client struct {
	base       string
	httpClient *http.Client
	timeout    time.Duration

	// Identical list reads that overlap in time share one request. Nothing is kept
	// once the request returns.
	inflight singleflight.Group
}

// Ensure interface conformance
var _ Gateway = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout bounds every call made by the client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// NewClient creates a client for the API rooted at baseURL (scheme and host, optionally a prefix).
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse gateway base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("gateway base URL %q: scheme must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("gateway base URL %q: missing host", baseURL)
	}
	c := &Client{
		base:       strings.TrimRight(u.String(), "/"),
		httpClient: &http.Client{},
		timeout:    DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// List implements ExpenseLister: GET /api/expenses.
func (c *Client) List(ctx context.Context) ([]core.Expense, error) {
	return c.list(ctx, "list", "", nil)
}

// ListByCategory implements ExpenseLister: GET /api/expenses/category/{category}.
func (c *Client) ListByCategory(ctx context.Context, category core.Category) ([]core.Expense, error) {
	return c.list(ctx, "list by category", "/category/"+url.PathEscape(string(category)), nil)
}

// ListByDateRange implements ExpenseLister: GET /api/expenses/date-range?startDate=&endDate=.
func (c *Client) ListByDateRange(ctx context.Context, start, end core.Date) ([]core.Expense, error) {
	return c.list(ctx, "list by date range", "/date-range", rangeQuery(start, end))
}

// ListByCategoryAndDateRange implements ExpenseLister:
// GET /api/expenses/category/{category}/date-range?startDate=&endDate=.
func (c *Client) ListByCategoryAndDateRange(ctx context.Context, category core.Category, start, end core.Date) ([]core.Expense, error) {
	path := "/category/" + url.PathEscape(string(category)) + "/date-range"
	return c.list(ctx, "list by category and date range", path, rangeQuery(start, end))
}

// Get implements ExpenseReader: GET /api/expenses/{id}.
func (c *Client) Get(ctx context.Context, id core.ID) (core.Expense, error) {
	if id.IsEmpty() {
		return core.Expense{}, fmt.Errorf("get expense: %w", ErrNotFound)
	}
	var e core.Expense
	if err := c.do(ctx, "get expense", http.MethodGet, idPath(id), nil, nil, &e); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

// Create implements ExpenseWriter: POST /api/expenses.
func (c *Client) Create(ctx context.Context, e core.Expense) (core.Expense, error) {
	e.ID = ""
	var created core.Expense
	if err := c.do(ctx, "create expense", http.MethodPost, "", nil, e, &created); err != nil {
		return core.Expense{}, err
	}
	return created, nil
}

// Update implements ExpenseWriter: PUT /api/expenses/{id}.
func (c *Client) Update(ctx context.Context, id core.ID, e core.Expense) (core.Expense, error) {
	if id.IsEmpty() {
		return core.Expense{}, fmt.Errorf("update expense: %w", ErrNotFound)
	}
	e.ID = id
	var updated core.Expense
	if err := c.do(ctx, "update expense", http.MethodPut, idPath(id), nil, e, &updated); err != nil {
		return core.Expense{}, err
	}
	return updated, nil
}

// Delete implements ExpenseDeleter: DELETE /api/expenses/{id}.
func (c *Client) Delete(ctx context.Context, id core.ID) error {
	if id.IsEmpty() {
		return fmt.Errorf("delete expense: %w", ErrNotFound)
	}
	return c.do(ctx, "delete expense", http.MethodDelete, idPath(id), nil, nil, nil)
}

func (c *Client) list(ctx context.Context, op, path string, query url.Values) ([]core.Expense, error) {
	key := c.endpoint(path, query)
	ch := c.inflight.DoChan(key, func() (any, error) {
		// The shared request must outlive a single caller giving up.
		var out []core.Expense
		err := c.do(context.WithoutCancel(ctx), op, http.MethodGet, path, query, nil, &out)
		return out, err
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			slog.DebugContext(ctx, "Shared in-flight expense listing", "operation", op, "url", key)
		}
		items, _ := res.Val.([]core.Expense)
		out := make([]core.Expense, len(items))
		copy(out, items)
		return out, nil
	}
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	slog.DebugContext(ctx, "Expense API call",
		"operation", op,
		"method", method,
		"url", req.URL.String(),
		"status_code", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%s: empty response body", op)
		}
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.base + ResourcePath + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func idPath(id core.ID) string {
	return "/" + url.PathEscape(string(id))
}

func rangeQuery(start, end core.Date) url.Values {
	return url.Values{
		"startDate": {start.String()},
		"endDate":   {end.String()},
	}
}
