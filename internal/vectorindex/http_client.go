package vectorindex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hyperjump/semsearch/internal/models"
	"github.com/hyperjump/semsearch/pkg/utils"
)

// APIKeyHeader carries the service API key on every request.
const APIKeyHeader = "Api-Key"

// HTTPClient talks to the index service REST API. Control-plane calls go to the
// controller URL; data-plane calls go to the host reported for each index.
type HTTPClient struct {
	controllerURL string
	apiKey        string
	environment   string
	httpClient    *http.Client
	limiter       *rate.Limiter
	logger        *zap.Logger

	mu    sync.Mutex
	hosts map[string]string
}

// HTTPOption configures an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithHTTPClient replaces the default *http.Client.
func WithHTTPClient(hc *http.Client) HTTPOption {
	return func(c *HTTPClient) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout of the default *http.Client.
func WithTimeout(d time.Duration) HTTPOption {
	return func(c *HTTPClient) {
		if d > 0 {
			c.httpClient = &http.Client{Timeout: d}
		}
	}
}

// WithRateLimit caps data-plane requests per second. Zero or negative disables the limit.
func WithRateLimit(rps float64) HTTPOption {
	return func(c *HTTPClient) {
		if rps > 0 {
			burst := int(rps)
			if burst < 1 {
				burst = 1
			}
			c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// WithEnvironment places indexes created by this client in a pod environment.
func WithEnvironment(env string) HTTPOption {
	return func(c *HTTPClient) { c.environment = env }
}

// WithLogger sets a logger for request debug output.
func WithLogger(l *zap.Logger) HTTPOption {
	return func(c *HTTPClient) { c.logger = l }
}

// NewHTTPClient returns a client for the service at controllerURL.
func NewHTTPClient(controllerURL, apiKey string, opts ...HTTPOption) (*HTTPClient, error) {
	u, err := url.Parse(controllerURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid controller url %q", controllerURL)
	}
	c := &HTTPClient{
		controllerURL: strings.TrimRight(controllerURL, "/"),
		apiKey:        apiKey,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		hosts:         make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = utils.OrNop(c.logger)
	return c, nil
}

// ListIndexes returns the names of all indexes.
func (c *HTTPClient) ListIndexes(ctx context.Context) ([]string, error) {
	var out ListIndexesResponse
	if err := c.do(ctx, http.MethodGet, c.controllerURL+"/indexes", nil, &out); err != nil {
		return nil, fmt.Errorf("list indexes: %w", err)
	}
	names := make([]string, 0, len(out.Indexes))
	for _, d := range out.Indexes {
		names = append(names, d.Name)
	}
	return names, nil
}

// CreateIndex creates an index. A pod spec is attached when the client has an environment.
func (c *HTTPClient) CreateIndex(ctx context.Context, req CreateIndexRequest) error {
	if req.Spec == nil && c.environment != "" {
		req.Spec = &IndexSpec{Pod: &PodSpec{Environment: c.environment, PodType: "p1.x1"}}
	}
	err := c.do(ctx, http.MethodPost, c.controllerURL+"/indexes", req, nil)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusConflict {
			return fmt.Errorf("%w: %s", ErrIndexExists, req.Name)
		}
		return fmt.Errorf("create index %s: %w", req.Name, err)
	}
	return nil
}

// DescribeIndex returns the description of a named index, including its data-plane host.
func (c *HTTPClient) DescribeIndex(ctx context.Context, name string) (*models.IndexDescription, error) {
	var out models.IndexDescription
	err := c.do(ctx, http.MethodGet, c.controllerURL+"/indexes/"+url.PathEscape(name), nil, &out)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, name)
		}
		return nil, fmt.Errorf("describe index %s: %w", name, err)
	}
	return &out, nil
}

// Index resolves the data-plane host for name and returns a handle to it.
// Hosts are cached per client.
func (c *HTTPClient) Index(ctx context.Context, name string) (Index, error) {
	c.mu.Lock()
	host, ok := c.hosts[name]
	c.mu.Unlock()
	if !ok {
		desc, err := c.DescribeIndex(ctx, name)
		if err != nil {
			return nil, err
		}
		if desc.Host == "" {
			return nil, fmt.Errorf("index %s has no host yet", name)
		}
		host = desc.Host
		if !strings.Contains(host, "://") {
			host = "https://" + host
		}
		host = strings.TrimRight(host, "/")
		c.mu.Lock()
		c.hosts[name] = host
		c.mu.Unlock()
	}
	return &httpIndex{client: c, name: name, host: host}, nil
}

// do sends a JSON request and decodes a JSON response into out (when non-nil).
// Non-2xx responses become *StatusError.
func (c *HTTPClient) do(ctx context.Context, method, endpoint string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set(APIKeyHeader, c.apiKey)
	}
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	c.logger.Debug("index service request",
		zap.String("method", method),
		zap.String("url", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		se := &StatusError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(b))}
		var er ErrorResponse
		if json.Unmarshal(b, &er) == nil && er.Message != "" {
			se.Message = er.Message
		}
		return se
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *HTTPClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// httpIndex is the data-plane handle of one index.
type httpIndex struct {
	client *HTTPClient
	name   string
	host   string
}

// Upsert sends the batch in one request. The service must acknowledge every vector;
// a short count is reported as a failure so no document is silently dropped.
func (x *httpIndex) Upsert(ctx context.Context, docs []*models.Document) error {
	if err := x.client.wait(ctx); err != nil {
		return &UpsertError{Count: len(docs), Err: err}
	}
	var out UpsertResponse
	if err := x.client.do(ctx, http.MethodPost, x.host+"/vectors/upsert", UpsertRequest{Vectors: docs}, &out); err != nil {
		return &UpsertError{Count: len(docs), Err: err}
	}
	if out.UpsertedCount != len(docs) {
		return &UpsertError{Count: len(docs), Err: fmt.Errorf("service acknowledged %d of %d vectors", out.UpsertedCount, len(docs))}
	}
	return nil
}

func (x *httpIndex) Query(ctx context.Context, req models.QueryRequest) ([]*models.Match, error) {
	if req.TopK <= 0 {
		return nil, ErrInvalidTopK
	}
	if err := x.client.wait(ctx); err != nil {
		return nil, err
	}
	var out QueryResponse
	if err := x.client.do(ctx, http.MethodPost, x.host+"/query", req, &out); err != nil {
		return nil, fmt.Errorf("query %s: %w", x.name, err)
	}
	if out.Matches == nil {
		out.Matches = []*models.Match{}
	}
	return out.Matches, nil
}

func (x *httpIndex) DescribeStats(ctx context.Context) (*models.IndexStats, error) {
	if err := x.client.wait(ctx); err != nil {
		return nil, err
	}
	var out models.IndexStats
	if err := x.client.do(ctx, http.MethodPost, x.host+"/describe_index_stats", struct{}{}, &out); err != nil {
		return nil, fmt.Errorf("describe stats %s: %w", x.name, err)
	}
	return &out, nil
}
