// Package idp talks to the external identity provider. The provider owns
// credential issuance and session records; the gateway only resolves sessions
// from request headers and proxies /api/auth/* through verbatim.
package idp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/modelgate/modelgate/internal/domain"
)

const defaultTimeout = 10 * time.Second

// ClientOption configures the client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithSessionPath overrides the provider's session-resolution endpoint.
func WithSessionPath(path string) ClientOption {
	return func(c *Client) {
		c.sessionPath = path
	}
}

// Client is an HTTP client for the identity provider.
type Client struct {
	baseURL     string
	sessionPath string
	httpClient  *http.Client
}

var _ domain.SessionResolver = (*Client)(nil)

// NewClient creates an identity provider client rooted at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		sessionPath: "/api/auth/get-session",
		httpClient:  &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ResolveSession asks the provider to resolve a session from the request's
// cookie and authorization headers. A 200 with a null body means no session;
// any provider-declared failure is carried through with its status.
func (c *Client) ResolveSession(ctx context.Context, headers http.Header) (*domain.SessionInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+c.sessionPath, nil)
	if err != nil {
		return nil, domain.ErrIdentityProvider(0, "failed to build session request", err)
	}

	// Only the credential-bearing headers are forwarded.
	for _, name := range []string{"Cookie", "Authorization"} {
		if v := headers.Get(name); v != "" {
			req.Header.Set(name, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.ErrIdentityProvider(0, "identity provider unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, domain.ErrIdentityProvider(0, "failed to read identity provider response", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, domain.ErrIdentityProvider(resp.StatusCode, providerMessage(body), nil)
	}

	// The provider answers 200 with a JSON null when no session exists.
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}

	var info domain.SessionInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, domain.ErrIdentityProvider(0, "malformed identity provider response", err)
	}
	if info.Session.UserID == "" {
		return nil, nil
	}

	return &info, nil
}

// providerMessage extracts the provider's own message when its body carries
// one, falling back to a status-based message.
func providerMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	return fmt.Sprintf("identity provider error: %s", strings.TrimSpace(string(body)))
}
