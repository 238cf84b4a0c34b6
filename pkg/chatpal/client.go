package chatpal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/klauspost/compress/gzhttp"

	"github.com/assistify/chatpal-search/pkg/config"
)

// Engine is the narrow contract against the search engine. The production
// implementation is Client; tests substitute fakes.
type Engine interface {
	Upsert(ctx context.Context, docs []Document) error
	DeleteAll(ctx context.Context) error
	DeleteByID(ctx context.Context, id string) error
	Query(ctx context.Context, rawQuery string) (*RawResponse, error)
	FacetStats(ctx context.Context, rawQuery string) (*RawFacetResponse, error)
	Ping(ctx context.Context) error
}

// RawResponse is the engine's select response as it comes off the wire. The
// client does not interpret it; alignment happens in align.go.
type RawResponse struct {
	Response     RawDocList                     `json:"response"`
	Highlighting map[string]map[string][]string `json:"highlighting,omitempty"`
	Grouped      map[string]RawGroupField       `json:"grouped,omitempty"`
}

// RawDocList is one page of raw hits.
type RawDocList struct {
	NumFound int        `json:"numFound"`
	Start    int        `json:"start"`
	Docs     []Document `json:"docs"`
}

// RawGroupField holds the groups of one grouped-by field.
type RawGroupField struct {
	Matches int        `json:"matches"`
	Groups  []RawGroup `json:"groups"`
}

// RawGroup is one group bucket with its own doc list.
type RawGroup struct {
	GroupValue string     `json:"groupValue"`
	DocList    RawDocList `json:"doclist"`
}

// RawFacetResponse is the engine's facet response. Field facets come back as
// flat [value, count, value, count, ...] arrays, range facets nest the same
// shape under "counts".
type RawFacetResponse struct {
	FacetCounts struct {
		FacetFields map[string][]any `json:"facet_fields"`
		FacetRanges map[string]struct {
			Counts []any `json:"counts"`
		} `json:"facet_ranges"`
	} `json:"facet_counts"`
}

// Client talks to a Solr-style engine core over HTTP. It is stateless aside
// from connection configuration and safe for concurrent use.
type Client struct {
	baseURL     string
	headerName  string
	headerValue string
	httpClient  *http.Client
}

// NewClient builds a Client for the configured engine. The optional extra
// header is attached to every request.
func NewClient(cfg config.EngineConfig) *Client {
	timeout := cfg.Timeout.Duration
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	c := &Client{
		baseURL: cfg.URL,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: gzhttp.Transport(http.DefaultTransport),
		},
	}
	if name, value, ok := cfg.ExtraHeaderKV(); ok {
		c.headerName = name
		c.headerValue = value
	}
	return c
}

// Upsert bulk add/replaces documents. The engine commits before answering.
func (c *Client) Upsert(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	return c.post(ctx, "upsert", "/update?commit=true", docs)
}

// DeleteAll wipes the index. Used only before a fresh bootstrap.
func (c *Client) DeleteAll(ctx context.Context) error {
	body := map[string]any{
		"delete": map[string]string{"query": "*:*"},
		"commit": map[string]any{},
	}
	return c.post(ctx, "delete-all", "/update", body)
}

// DeleteByID removes a single document.
func (c *Client) DeleteByID(ctx context.Context, id string) error {
	body := map[string]any{
		"delete": map[string]string{"id": id},
		"commit": map[string]any{},
	}
	return c.post(ctx, "delete", "/update", body)
}

// Query runs a select query. rawQuery is a pre-encoded query string built by
// the query builder; the client passes it through uninterpreted.
func (c *Client) Query(ctx context.Context, rawQuery string) (*RawResponse, error) {
	var resp RawResponse
	if err := c.get(ctx, "query", rawQuery, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FacetStats runs a facet query for the statistics view.
func (c *Client) FacetStats(ctx context.Context, rawQuery string) (*RawFacetResponse, error) {
	var resp RawFacetResponse
	if err := c.get(ctx, "facet-stats", rawQuery, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Ping probes the engine with a zero-row match-all query.
func (c *Client) Ping(ctx context.Context) error {
	var resp RawResponse
	return c.get(ctx, "ping", "q=*:*&rows=0", &resp)
}

func (c *Client) post(ctx context.Context, op, path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling %s body: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(op, req, nil)
}

func (c *Client) get(ctx context.Context, op, rawQuery string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/select?"+rawQuery, nil)
	if err != nil {
		return fmt.Errorf("building %s request: %w", op, err)
	}
	return c.do(op, req, out)
}

func (c *Client) do(op string, req *http.Request, out any) error {
	if c.headerName != "" {
		req.Header.Set(c.headerName, c.headerValue)
	}
	if req.Method == http.MethodGet {
		if q := req.URL.Query(); q.Get("wt") == "" {
			q.Set("wt", "json")
			req.URL.RawQuery = q.Encode()
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(op, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			fmt.Printf("Warning: failed to close response body: %v\n", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck
		return classifyStatus(op, resp.StatusCode)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", op, err)
	}
	return nil
}
