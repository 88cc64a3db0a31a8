package modelscope

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zey041022/poem-web-app/internal/domain"
)

const (
	// DefaultBaseURL is the ModelScope inference endpoint.
	DefaultBaseURL = "https://api-inference.modelscope.cn/"

	maxErrorBody    = 4 << 10
	maxDownloadSize = 32 << 20
)

// Client represents the ModelScope API client
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *zap.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/") + "/"
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a new ModelScope API client. Per-call deadlines come from
// the caller's context; the HTTP client timeout is only an upper bound.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Minute,
		},
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		logger:  zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, domain.NewError(domain.KindProtocol, "marshal request", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+strings.TrimLeft(path, "/"), r)
	if err != nil {
		return nil, domain.NewError(domain.KindProtocol, "create request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// do sends req and returns the response when the status is 2xx.
func (c *Client) do(req *http.Request, op string) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewError(domain.KindTransport, op, fmt.Errorf("failed to send request: %w", err))
	}
	if resp.StatusCode/100 != 2 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, domain.Errorf(domain.KindForStatus(resp.StatusCode), op,
			"unexpected status code: %d, body: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return resp, nil
}

func decodeJSON(r io.Reader, v any, op string) error {
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return domain.NewError(domain.KindProtocol, op, fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}
