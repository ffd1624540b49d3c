package connector

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/flux9s/internal/domain/plugin"
)

// DefaultHTTPTimeout bounds an Http source request when the manifest sets no timeout.
const DefaultHTTPTimeout = 5 * time.Second

// RequestIDHeader carries a per-request UUID for correlating server logs.
const RequestIDHeader = "X-Request-ID"

// HTTPConnector fetches JSON from a URL with GET and probes it with HEAD.
type HTTPConnector struct {
	url       string
	client    *http.Client
	auth      *plugin.AuthConfig
	headers   map[string]string
	lookupEnv func(string) (string, bool)
	userAgent string
}

// NewHTTPConnector creates a connector for endpoint. A zero timeout selects
// DefaultHTTPTimeout.
func NewHTTPConnector(endpoint string, timeout time.Duration, auth *plugin.AuthConfig, headers map[string]string, opts ...Option) *HTTPConnector {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	o := newOptions(opts)
	return &HTTPConnector{
		url:       endpoint,
		client:    &http.Client{Timeout: timeout, Transport: o.transport},
		auth:      auth,
		headers:   headers,
		lookupEnv: o.lookupEnv,
		userAgent: o.userAgent,
	}
}

// URL returns the fetched URL.
func (c *HTTPConnector) URL() string {
	return c.url
}

// Timeout returns the per-request timeout.
func (c *HTTPConnector) Timeout() time.Duration {
	return c.client.Timeout
}

// Fetch issues a GET and decodes the JSON body. Any non-2xx status fails.
func (c *HTTPConnector) Fetch(ctx context.Context) (any, error) {
	resp, err := c.do(ctx, http.MethodGet)
	if err != nil {
		return nil, &FetchError{Op: opFetch, Target: c.url, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{
			Op:         opFetch,
			Target:     c.url,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%w %d", ErrUnexpectedStatus, resp.StatusCode),
		}
	}

	data, err := readLimited(resp.Body)
	if err != nil {
		return nil, &FetchError{Op: opFetch, Target: c.url, StatusCode: resp.StatusCode, Err: err}
	}
	v, err := decodeJSON(data)
	if err != nil {
		return nil, &FetchError{Op: opFetch, Target: c.url, StatusCode: resp.StatusCode, Err: err}
	}
	return v, nil
}

// HealthCheck issues a HEAD. 2xx and 404 are healthy: a 404 means the
// endpoint is reachable but has nothing to serve yet.
func (c *HTTPConnector) HealthCheck(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodHead)
	if err != nil {
		return &FetchError{Op: opHealth, Target: c.url, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound || (resp.StatusCode >= 200 && resp.StatusCode <= 299) {
		return nil
	}
	return &FetchError{
		Op:         opHealth,
		Target:     c.url,
		StatusCode: resp.StatusCode,
		Err:        fmt.Errorf("%w %d", ErrUnexpectedStatus, resp.StatusCode),
	}
}

// String describes the connector.
func (c *HTTPConnector) String() string {
	return "Http " + c.url
}

func (c *HTTPConnector) do(ctx context.Context, method string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(RequestIDHeader, uuid.NewString())
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	// Secrets are resolved on every request, never cached.
	if err := applyAuth(req, c.auth, c.lookupEnv); err != nil {
		return nil, err
	}

	return c.client.Do(req)
}

func applyAuth(req *http.Request, auth *plugin.AuthConfig, lookupEnv func(string) (string, bool)) error {
	if auth == nil {
		return nil
	}
	switch auth.Type {
	case plugin.AuthBearer:
		token, err := resolveSecret(auth.TokenEnv, lookupEnv)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	case plugin.AuthBasic:
		password, err := resolveSecret(auth.PasswordEnv, lookupEnv)
		if err != nil {
			return err
		}
		req.SetBasicAuth(auth.Username, password)
	case plugin.AuthAPIKey:
		key, err := resolveSecret(auth.TokenEnv, lookupEnv)
		if err != nil {
			return err
		}
		req.Header.Set(auth.Header, key)
	}
	return nil
}

func resolveSecret(name string, lookupEnv func(string) (string, bool)) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: no variable configured", ErrMissingSecret)
	}
	v, ok := lookupEnv(name)
	if !ok || strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingSecret, name)
	}
	return v, nil
}

// Option configures connectors built by New.
type Option func(*options)

type options struct {
	transport http.RoundTripper
	lookupEnv func(string) (string, bool)
	userAgent string
}

// DefaultUserAgent is sent with every HTTP request.
const DefaultUserAgent = "flux9s"

func newOptions(opts []Option) options {
	o := options{
		lookupEnv: os.LookupEnv,
		userAgent: DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithHTTPTransport sets the transport for HTTP and cluster-service
// connectors. A nil transport selects http.DefaultTransport.
func WithHTTPTransport(rt http.RoundTripper) Option {
	return func(o *options) {
		o.transport = rt
	}
}

// WithEnvLookup sets how auth secrets are resolved. Defaults to os.LookupEnv.
func WithEnvLookup(lookup func(string) (string, bool)) Option {
	return func(o *options) {
		o.lookupEnv = lookup
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(o *options) {
		o.userAgent = ua
	}
}
