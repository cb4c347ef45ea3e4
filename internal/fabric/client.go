// Package fabric talks to Azure AD and the Microsoft Fabric REST API.
package fabric

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/starford/fabric-mcp/internal/apperr"
	"github.com/starford/fabric-mcp/internal/queryguard"
)

// DefaultBaseURL is the Fabric REST API root.
const DefaultBaseURL = "https://api.fabric.microsoft.com/v1"

const maxResponseSize = 64 << 20

// Tokener yields bearer tokens for the Fabric API.
type Tokener interface {
	Token(ctx context.Context) (string, error)
}

// TableInfo is one item of the lakehouse table listing.
type TableInfo struct {
	Name       string         `json:"name"`
	Schema     string         `json:"schema"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
}

// Column describes one result column.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// QueryResult is the raw tabular result of a query.
type QueryResult struct {
	Columns []Column `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Client calls the Fabric REST API for one workspace and lakehouse.
type Client struct {
	baseURL     string
	workspaceID string
	lakehouseID string
	tokens      Tokener
	http        *http.Client
}

// NewClient creates a Fabric client. An empty baseURL uses DefaultBaseURL.
func NewClient(baseURL, workspaceID, lakehouseID string, tokens Tokener, client *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		workspaceID: workspaceID,
		lakehouseID: lakehouseID,
		tokens:      tokens,
		http:        client,
	}
}

// ListTables returns the tables of the configured lakehouse.
func (c *Client) ListTables(ctx context.Context) ([]TableInfo, error) {
	endpoint := fmt.Sprintf("%s/workspaces/%s/lakehouses/%s/tables",
		c.baseURL, url.PathEscape(c.workspaceID), url.PathEscape(c.lakehouseID))

	body, err := c.do(ctx, "list tables", http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var out struct {
		Value []TableInfo `json:"value"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("fabric: decode tables: %w", err)
	}
	return out.Value, nil
}

// ExecuteQuery runs a read-only SQL query against the lakehouse SQL endpoint.
// Queries rejected by queryguard fail with apperr.ErrUnsafeQuery before any
// request is made. A non-200 answer is returned with the backend body as-is.
func (c *Client) ExecuteQuery(ctx context.Context, query string) (*QueryResult, error) {
	if !queryguard.IsSafe(query) {
		return nil, apperr.ErrUnsafeQuery
	}

	payload, err := json.Marshal(map[string]string{
		"query":       query,
		"lakehouseId": c.lakehouseID,
	})
	if err != nil {
		return nil, fmt.Errorf("fabric: encode query: %w", err)
	}

	endpoint := fmt.Sprintf("%s/workspaces/%s/datamarts/query", c.baseURL, url.PathEscape(c.workspaceID))
	body, err := c.do(ctx, "query", http.MethodPost, endpoint, payload)
	if err != nil {
		return nil, err
	}

	var res QueryResult
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("fabric: decode query result: %w", err)
	}
	return &res, nil
}

// do sends an authenticated request and returns the body of a 200 response.
func (c *Client) do(ctx context.Context, op, method, endpoint string, payload []byte) ([]byte, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("fabric: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fabric: %s: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("fabric: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &BackendError{Op: op, Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// BackendError carries a non-200 Fabric response verbatim.
type BackendError struct {
	Op     string
	Status int
	Body   string
}

func (e *BackendError) Error() string {
	return e.Op + " failed: " + e.Body
}

// Unwrap classifies backend errors as upstream failures.
func (e *BackendError) Unwrap() error {
	return apperr.ErrUpstream
}
