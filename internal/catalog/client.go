package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kennedymwaniki/resource-explorer/internal/fault"
	"github.com/kennedymwaniki/resource-explorer/internal/filter"
	"github.com/kennedymwaniki/resource-explorer/internal/metrics"
)

//go:generate mockgen -package=mock -source=client.go -destination=mock/datasource.go

// DataSource is the remote read capability the query caches call through.
// This interface is implemented by *Client and can be mocked in tests.
type DataSource interface {
	ListRecords(ctx context.Context, filters filter.State) (*Page, error)
	GetRecord(ctx context.Context, id int) (*Record, error)
	GetRecords(ctx context.Context, ids []int) ([]Record, error)
}

// Ensure Client implements DataSource at compile time.
var _ DataSource = (*Client)(nil)

// Client talks to the character API.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
	logger    *zap.Logger
}

const (
	// DefaultBaseURL is the public API host.
	DefaultBaseURL   = "https://rickandmortyapi.com"
	defaultUserAgent = "resource-explorer/0.1"
	defaultTimeout   = 10 * time.Second
	requestIDHeader  = "X-Request-ID"
)

// NewClient builds a Client for baseURL. A zero timeout uses the default.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	base, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:   base,
		http:      &http.Client{Timeout: timeout},
		userAgent: defaultUserAgent,
		logger:    logger,
	}, nil
}

// ListRecords retrieves one page of characters matching filters.
func (c *Client) ListRecords(ctx context.Context, filters filter.State) (*Page, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	rel := &url.URL{Path: "/api/character", RawQuery: filters.Encode()}
	var payload Page
	if err := c.doURL(ctx, "list records", rel, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// GetRecord retrieves one character by id.
func (c *Client) GetRecord(ctx context.Context, id int) (*Record, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	op := "get record " + strconv.Itoa(id)
	if id <= 0 {
		return nil, fault.NotFound(op, 0, fmt.Errorf("invalid id %d", id))
	}
	rel := &url.URL{Path: "/api/character/" + strconv.Itoa(id)}
	var payload Record
	if err := c.doURL(ctx, op, rel, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// GetRecords retrieves several characters in one request. Unknown ids are
// silently absent from the result, matching the API.
func (c *Client) GetRecords(ctx context.Context, ids []int) ([]Record, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	valid := make([]int, 0, len(ids))
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		if id > 0 {
			valid = append(valid, id)
			parts = append(parts, strconv.Itoa(id))
		}
	}
	if len(parts) == 0 {
		return nil, nil
	}
	// A single id returns an object rather than an array.
	if len(parts) == 1 {
		rec, err := c.GetRecord(ctx, valid[0])
		if err != nil {
			if fault.IsNotFound(err) {
				return nil, nil
			}
			return nil, err
		}
		return []Record{*rec}, nil
	}
	rel := &url.URL{Path: "/api/character/" + strings.Join(parts, ",")}
	var payload []Record
	if err := c.doURL(ctx, "get records", rel, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func (c *Client) doURL(ctx context.Context, op string, rel *url.URL, dest any) error {
	reqURL := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(requestIDHeader, requestID)

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveAPIRequest(0, time.Since(started))
		c.logger.Debug("request failed",
			zap.String("op", op),
			zap.String("request_id", requestID),
			zap.String("url", reqURL.String()),
			zap.Error(err))
		return classifyTransportError(ctx, op, err)
	}
	defer func() { _ = resp.Body.Close() }()
	metrics.ObserveAPIRequest(resp.StatusCode, time.Since(started))

	c.logger.Debug("request completed",
		zap.String("op", op),
		zap.String("request_id", requestID),
		zap.String("url", reqURL.String()),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(started)))

	if err := classifyStatus(op, resp.StatusCode); err != nil {
		return err
	}
	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		if ctx.Err() != nil {
			return fault.Cancelled(op, ctx.Err())
		}
		return fault.Transient(op, resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// classifyStatus maps a response status onto the failure taxonomy.
func classifyStatus(op string, status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusNotFound:
		return fault.NotFound(op, status, nil)
	default:
		return fault.Transient(op, status, fmt.Errorf("api returned status %d", status))
	}
}

func classifyTransportError(ctx context.Context, op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		return fault.Cancelled(op, err)
	}
	return fault.Transient(op, 0, fmt.Errorf("execute request: %w", err))
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = DefaultBaseURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api base %q: %w", raw, err)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
