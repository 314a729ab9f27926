// Package backend is the REST client for the agent platform API.
package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/agentdeck/agentctl/internal/auth"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultBaseURL is used when neither the caller nor the environment supplies one.
const DefaultBaseURL = "http://localhost:8000/api"

// APIError is returned for any non-2xx response.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("API error (status %d) for %s %s", e.StatusCode, e.Method, e.Path)
	}
	return fmt.Sprintf("API error (status %d) for %s %s: %s", e.StatusCode, e.Method, e.Path, body)
}

// notFoundMarkers are the phrases the backend uses for unknown or expired runs.
var notFoundMarkers = []string{"not found", "404", "does not exist"}

// IsNotFound reports whether err means the requested resource is unknown.
// It recognises a 404 APIError and, for errors that lost their type on the
// way, the textual markers the backend uses. Transport failures are never
// not-found: their text carries the request URL, run id included.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusNotFound || hasNotFoundMarker(apiErr.Body)
	}
	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) {
		return false
	}
	return hasNotFoundMarker(err.Error())
}

func hasNotFoundMarker(s string) bool {
	s = strings.ToLower(s)
	for _, marker := range notFoundMarkers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

// Client talks to the backend API.
type Client struct {
	baseURL string
	tokens  auth.TokenProvider
	http    *resty.Client
	logger  *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient makes resty use hc for transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = resty.NewWithClient(hc)
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a client for baseURL. An empty baseURL falls back to
// AGENTCTL_API_URL and then DefaultBaseURL.
func New(baseURL string, tokens auth.TokenProvider, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("AGENTCTL_API_URL")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		http:    resty.New().SetTimeout(30 * time.Second),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.http.
		SetBaseURL(c.baseURL).
		SetHeader("Accept", "application/json").
		OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
			c.logger.Debug("backend response",
				zap.String("method", resp.Request.Method),
				zap.String("url", resp.Request.URL),
				zap.Int("status", resp.StatusCode()),
				zap.Duration("took", resp.Time()),
				zap.String("request_id", resp.Request.Header.Get("X-Request-ID")))
			return nil
		})

	return c
}

// BaseURL returns the API root without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Token fetches a bearer token from the provider.
func (c *Client) Token(ctx context.Context) (string, error) {
	if c.tokens == nil {
		return "", auth.ErrNoCredential
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", auth.ErrNoCredential
	}
	return token, nil
}

// request prepares an authenticated request. The token is resolved before any
// I/O so a missing credential never reaches the network.
func (c *Client) request(ctx context.Context) (*resty.Request, error) {
	token, err := c.Token(ctx)
	if err != nil {
		return nil, err
	}
	return c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("X-Request-ID", uuid.NewString()), nil
}

func (c *Client) do(ctx context.Context, method, path string, body, target interface{}) error {
	req, err := c.request(ctx)
	if err != nil {
		return err
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	if target != nil {
		req.SetResult(target)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		return &APIError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode(),
			Body:       resp.String(),
		}
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, target interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, target)
}

func (c *Client) post(ctx context.Context, path string, body, target interface{}) error {
	return c.do(ctx, http.MethodPost, path, body, target)
}

func escape(id string) string {
	return url.PathEscape(id)
}
