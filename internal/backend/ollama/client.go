// Package ollama is the HTTP client for the model-inference backend. The
// backend fails opaquely: every failure surfaces as a backend error whose
// cause stays in server-side logs and never reaches a response body.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/modelgate/modelgate/internal/domain"
)

const (
	defaultHost      = "http://localhost:11434"
	defaultModel     = "qwen3:0.6b-q8_0"
	defaultKeepAlive = "5m"
	defaultTimeout   = 120 * time.Second
)

// ClientOption configures the client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithDefaultModel sets the model used when a request does not name one.
func WithDefaultModel(model string) ClientOption {
	return func(c *Client) {
		c.defaultModel = model
	}
}

// WithKeepAlive sets how long the backend keeps the model loaded after a call.
func WithKeepAlive(keepAlive string) ClientOption {
	return func(c *Client) {
		c.keepAlive = keepAlive
	}
}

// WithTimeout bounds every backend call. Generation against larger models
// can take tens of seconds, so the default is generous.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// Client talks to an Ollama server.
type Client struct {
	host         string
	defaultModel string
	keepAlive    string
	httpClient   *http.Client
}

var _ domain.Backend = (*Client)(nil)

// NewClient creates a client for the Ollama server at host.
func NewClient(host string, opts ...ClientOption) *Client {
	if host == "" {
		host = defaultHost
	}
	c := &Client{
		host:         strings.TrimSuffix(host, "/"),
		defaultModel: defaultModel,
		keepAlive:    defaultKeepAlive,
		httpClient:   &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// generatePayload is the wire format of POST /api/generate. Streaming is
// always disabled; the gateway returns one complete response per call.
type generatePayload struct {
	Model     string   `json:"model"`
	Prompt    string   `json:"prompt"`
	Images    []string `json:"images,omitempty"`
	Format    string   `json:"format,omitempty"`
	Suffix    string   `json:"suffix,omitempty"`
	Think     *bool    `json:"think,omitempty"`
	Stream    bool     `json:"stream"`
	KeepAlive string   `json:"keep_alive,omitempty"`
}

// Generate sends a prompt to the backend and returns its completed response.
func (c *Client) Generate(ctx context.Context, req *domain.GenerateRequest) (*domain.Generation, error) {
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	payload := generatePayload{
		Model:     model,
		Prompt:    req.Prompt,
		Images:    stripDataURIs(req.Images),
		Format:    "json",
		Suffix:    req.Suffix,
		Think:     req.Think,
		Stream:    false,
		KeepAlive: c.keepAlive,
	}

	var generation domain.Generation
	if err := c.post(ctx, "/api/generate", payload, &generation); err != nil {
		return nil, err
	}
	return &generation, nil
}

// ListModels returns the models available on the backend.
func (c *Client) ListModels(ctx context.Context) ([]domain.Model, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/api/tags", nil)
	if err != nil {
		return nil, domain.ErrBackend(err)
	}

	var result struct {
		Models []domain.Model `json:"models"`
	}
	if err := c.do(httpReq, &result); err != nil {
		return nil, err
	}
	return result.Models, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.ErrBackend(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+path, bytes.NewReader(body))
	if err != nil {
		return domain.ErrBackend(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	return c.do(httpReq, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.ErrBackend(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.ErrBackend(err)
	}

	if resp.StatusCode != http.StatusOK {
		return domain.ErrBackend(fmt.Errorf("ollama %s: status %d: %s",
			req.URL.Path, resp.StatusCode, strings.TrimSpace(string(respBody))))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return domain.ErrBackend(fmt.Errorf("ollama %s: malformed response: %w", req.URL.Path, err))
	}
	return nil
}

// stripDataURIs reduces validated data-URI images to the bare base64 payload
// the backend expects.
func stripDataURIs(images []string) []string {
	if len(images) == 0 {
		return nil
	}
	out := make([]string, len(images))
	for i, img := range images {
		if idx := strings.Index(img, ","); idx != -1 && strings.HasPrefix(img, "data:") {
			out[i] = img[idx+1:]
			continue
		}
		out[i] = img
	}
	return out
}
