// Package httpapi implements the platform capabilities against a Scribe
// server: the auth provider over /auth/v1, the row store over /rest/v1, and
// the object store over /storage/v1. It keeps the provider session in
// memory, persists it through a localstore.Store so later runs restore it,
// and emits auth-state events to local listeners.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/keyxmakerx/scribe/internal/client/localstore"
	"github.com/keyxmakerx/scribe/internal/client/platform"
)

const (
	headerContentType = "Content-Type"
	headerUserAgent   = "User-Agent"
	contentTypeJSON   = "application/json"
	userAgent         = "scribe-cli/1.0"

	// expiryMargin refreshes tokens slightly before they lapse.
	expiryMargin = 30 * time.Second
)

// Client talks to one Scribe server. It satisfies platform.AuthProvider,
// platform.RowStore and platform.ObjectStore.
type Client struct {
	baseURL    string
	httpClient *http.Client
	store      localstore.Store
	logger     *slog.Logger
	now        func() time.Time

	auth *authState
}

var (
	_ platform.AuthProvider = (*Client)(nil)
	_ platform.RowStore     = (*Client)(nil)
	_ platform.ObjectStore  = (*Client)(nil)
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger used for persistence warnings.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithClock overrides time.Now, for expiry tests.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New creates a client for the server at baseURL. store persists the
// provider session; pass localstore.NewMemory() for a throwaway client.
func New(baseURL string, store localstore.Store, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		store:      store,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.auth = newAuthState()
	return c
}

// BaseURL returns the server URL without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// request is one JSON API call.
type request struct {
	method string
	path   string
	query  url.Values
	body   any
	bearer string
	header http.Header
}

// do performs r and decodes a 2xx JSON body into result when non-nil.
// Non-2xx responses become *platform.APIError.
func (c *Client) do(ctx context.Context, r request, result any) error {
	var bodyReader io.Reader
	if r.body != nil {
		b, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := c.newRequest(ctx, r, bodyReader)
	if err != nil {
		return err
	}
	if r.body != nil {
		req.Header.Set(headerContentType, contentTypeJSON)
	}
	return c.send(req, result)
}

func (c *Client) newRequest(ctx context.Context, r request, body io.Reader) (*http.Request, error) {
	u := c.baseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, r.method, u, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set(headerUserAgent, userAgent)
	req.Header.Set("Accept", contentTypeJSON)
	if r.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+r.bearer)
	}
	for k, vs := range r.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return req, nil
}

func (c *Client) send(req *http.Request, result any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 300 {
		return parseError(resp.StatusCode, body)
	}
	if result != nil && len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// parseError turns an error response into *platform.APIError, falling back
// to the status text when the body is not the server's JSON shape.
func parseError(status int, body []byte) error {
	apiErr := &platform.APIError{Status: status}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Code = strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
		apiErr.Message = strings.TrimSpace(string(body))
		if apiErr.Message == "" || len(apiErr.Message) > 200 {
			apiErr.Message = http.StatusText(status)
		}
	}
	apiErr.Status = status
	return apiErr
}
