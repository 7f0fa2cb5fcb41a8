package vectordb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/onsikgu/famiq/internal/circuitbreaker"
	"github.com/onsikgu/famiq/internal/tracing"
)

// Client is a minimal Chroma HTTP API client scoped to one collection.
type Client struct {
	baseURL      string
	http         *circuitbreaker.HTTPWrapper
	logger       *zap.Logger
	collectionID string
}

// Config holds Chroma connection settings.
type Config struct {
	Host    string
	Port    int
	Timeout time.Duration
}

// NewClient creates a Chroma client. EnsureCollection must run before any
// data operation.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 8000
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := &http.Client{Timeout: cfg.Timeout}
	return &Client{
		baseURL: fmt.Sprintf("http://%s:%d", cfg.Host, cfg.Port),
		http:    circuitbreaker.NewHTTPWrapper(httpClient, "chroma", logger),
		logger:  logger,
	}
}

// Heartbeat verifies the server is reachable.
func (c *Client) Heartbeat(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/heartbeat", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("chroma heartbeat: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("chroma heartbeat status %d", resp.StatusCode)
	}
	return nil
}

// EnsureCollection gets or creates the named collection and remembers its id.
func (c *Client) EnsureCollection(ctx context.Context, name string) error {
	var out collectionResponse
	err := c.post(ctx, "/api/v1/collections", collectionRequest{Name: name, GetOrCreate: true}, &out)
	if err != nil {
		return fmt.Errorf("ensure collection %s: %w", name, err)
	}
	if out.ID == "" {
		return fmt.Errorf("ensure collection %s: empty id in response", name)
	}
	c.collectionID = out.ID
	c.logger.Info("Chroma collection ready",
		zap.String("name", name),
		zap.String("id", out.ID),
	)
	return nil
}

// Add appends vectors to the collection.
func (c *Client) Add(ctx context.Context, req AddRequest) error {
	if err := c.requireCollection(); err != nil {
		return err
	}
	path := fmt.Sprintf("/api/v1/collections/%s/add", c.collectionID)
	if err := c.post(ctx, path, req, nil); err != nil {
		return fmt.Errorf("chroma add: %w", err)
	}
	return nil
}

// Query runs a filtered k-NN search.
func (c *Client) Query(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	if err := c.requireCollection(); err != nil {
		return nil, err
	}
	if len(req.Include) == 0 {
		req.Include = []string{"metadatas", "documents", "distances"}
	}
	path := fmt.Sprintf("/api/v1/collections/%s/query", c.collectionID)
	var out QueryResponse
	if err := c.post(ctx, path, req, &out); err != nil {
		return nil, fmt.Errorf("chroma query: %w", err)
	}
	return &out, nil
}

// Get scans the collection by metadata filter.
func (c *Client) Get(ctx context.Context, req GetRequest) (*GetResponse, error) {
	if err := c.requireCollection(); err != nil {
		return nil, err
	}
	if len(req.Include) == 0 {
		req.Include = []string{"metadatas", "documents"}
	}
	path := fmt.Sprintf("/api/v1/collections/%s/get", c.collectionID)
	var out GetResponse
	if err := c.post(ctx, path, req, &out); err != nil {
		return nil, fmt.Errorf("chroma get: %w", err)
	}
	return &out, nil
}

// Delete removes vectors matching the filter and returns the deleted ids.
func (c *Client) Delete(ctx context.Context, req DeleteRequest) ([]string, error) {
	if err := c.requireCollection(); err != nil {
		return nil, err
	}
	path := fmt.Sprintf("/api/v1/collections/%s/delete", c.collectionID)
	var ids []string
	if err := c.post(ctx, path, req, &ids); err != nil {
		return nil, fmt.Errorf("chroma delete: %w", err)
	}
	return ids, nil
}

func (c *Client) requireCollection() error {
	if c.collectionID == "" {
		return fmt.Errorf("collection not initialized")
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	url := c.baseURL + path

	ctx, span := tracing.StartHTTPSpan(ctx, http.MethodPost, url)
	defer span.End()

	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	tracing.InjectTraceparent(ctx, req)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(detail))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
