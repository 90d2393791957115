// Package llm provides a provider-agnostic text-generation client with
// retry, endpoint fallback, and circuit breaking. Model selection goes
// through the model.Registry by capability rather than by model name.
package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/metacogma/edc-rule-validator-sub000/model"
)

// maxResponseSize bounds how much of a response body is read.
const maxResponseSize = 10 * 1024 * 1024

// Message is one entry in a chat exchange.
type Message struct {
	Role    string `json:"role"` // "system", "user", or "assistant"
	Content string `json:"content"`
}

// Request describes a completion to run. Capability is resolved to a
// concrete model chain by the registry, so callers never name models.
type Request struct {
	Capability string
	Messages   []Message

	// Temperature is nil for the endpoint default, 0 for deterministic.
	Temperature *float64

	// MaxTokens limits response length. 0 uses the endpoint default.
	MaxTokens int
}

// TokenUsage reports token consumption for a single call.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the result of a completion.
type Response struct {
	// RequestID correlates log lines for one Complete call. Assigned
	// by the client, not the provider.
	RequestID string

	Content      string
	Model        string
	Usage        TokenUsage
	FinishReason string
}

// Client issues completion requests against whatever endpoints the
// registry considers healthy for the requested capability.
type Client struct {
	registry    *model.Registry
	httpClient  *http.Client
	retryConfig RetryConfig
	logger      *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) { client.httpClient = c }
}

// WithRetryConfig replaces the default retry settings.
func WithRetryConfig(cfg RetryConfig) ClientOption {
	return func(client *Client) { client.retryConfig = cfg }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(client *Client) { client.logger = logger }
}

// NewClient creates a client backed by the given model registry.
func NewClient(registry *model.Registry, opts ...ClientOption) *Client {
	c := &Client{
		registry:    registry,
		retryConfig: DefaultRetryConfig(),
		// Generous timeout: large completions can take minutes.
		httpClient: &http.Client{Timeout: 180 * time.Second},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete runs a completion request, walking the capability's fallback
// chain. Each endpoint gets the configured number of attempts; fatal
// errors abort the whole walk since they indicate a request or auth
// problem, not an unhealthy endpoint.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	if req.Capability == "" {
		return nil, fmt.Errorf("capability is required")
	}
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("at least one message is required")
	}

	capVal := model.ParseCapability(req.Capability)
	if capVal == "" {
		capVal = model.CapabilityFast
	}
	chain := c.registry.GetAvailableFallbackChain(capVal)
	if len(chain) == 0 {
		return nil, fmt.Errorf("no models configured for capability %s", req.Capability)
	}

	requestID := uuid.New().String()
	var lastErr error

	for _, modelName := range chain {
		endpoint := c.registry.GetEndpoint(modelName)
		if endpoint == nil {
			c.logger.Debug("no endpoint for model, skipping", "model", modelName)
			continue
		}
		if !c.registry.IsEndpointAvailable(modelName) {
			c.logger.Debug("endpoint circuit open, skipping", "model", modelName)
			continue
		}

		resp, err := c.tryEndpoint(ctx, endpoint, modelName, req)
		if err == nil {
			resp.RequestID = requestID
			return resp, nil
		}
		lastErr = err

		if IsFatal(err) {
			c.logger.Warn("fatal error, abandoning fallback chain",
				"request_id", requestID,
				"model", modelName,
				"error", err)
			return nil, err
		}

		c.logger.Warn("endpoint failed, trying fallback",
			"request_id", requestID,
			"model", modelName,
			"provider", endpoint.Provider,
			"error", err)
	}

	return nil, fmt.Errorf("all endpoints failed for capability %s: %w", req.Capability, lastErr)
}

// tryEndpoint runs the retry loop for one endpoint and feeds the
// outcome back into the registry's health tracking. Fatal errors do
// not count against endpoint health.
func (c *Client) tryEndpoint(ctx context.Context, ep *model.EndpointConfig, modelName string, req Request) (*Response, error) {
	var lastErr error

	for attempt := 1; attempt <= c.retryConfig.MaxAttempts; attempt++ {
		resp, err := c.doRequest(ctx, ep, req)
		if err == nil {
			c.registry.MarkEndpointSuccess(modelName)
			return resp, nil
		}
		if IsFatal(err) {
			return nil, err
		}
		lastErr = err

		if attempt == c.retryConfig.MaxAttempts {
			break
		}

		wait := c.calculateBackoff(attempt)
		c.logger.Debug("request failed, retrying",
			"attempt", attempt,
			"max_attempts", c.retryConfig.MaxAttempts,
			"backoff", wait,
			"error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}

	c.registry.MarkEndpointFailure(modelName)
	return nil, lastErr
}

func (c *Client) calculateBackoff(attempt int) time.Duration {
	return c.retryConfig.backoff(attempt)
}

// doRequest performs one HTTP round trip through the endpoint's
// provider adapter.
func (c *Client) doRequest(ctx context.Context, ep *model.EndpointConfig, req Request) (*Response, error) {
	provider := GetProvider(ep.Provider)
	if provider == nil {
		return nil, NewFatalError(fmt.Errorf("unknown provider: %s", ep.Provider))
	}

	body, err := provider.BuildRequestBody(ep.Model, req.Messages, req.Temperature, req.MaxTokens)
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("build request body: %w", err))
	}

	url := provider.BuildURL(ep.URL)
	c.logger.Debug("sending completion request",
		"provider", ep.Provider,
		"model", ep.Model,
		"url", url,
		"messages", len(req.Messages))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("create HTTP request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	provider.SetHeaders(httpReq)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("HTTP request failed: %w", err))
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("read response body: %w", err))
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, classifyHTTPError(httpResp.StatusCode, respBody)
	}

	return provider.ParseResponse(respBody, ep.Model)
}

// classifyHTTPError maps an HTTP status to a retry disposition. Rate
// limits and server errors are transient; everything else, including
// auth and malformed-request responses, is fatal.
func classifyHTTPError(statusCode int, body []byte) error {
	detail := string(body)
	if len(detail) > 200 {
		detail = detail[:200] + "..."
	}
	err := fmt.Errorf("completion API error (status %d): %s", statusCode, detail)

	if statusCode == http.StatusTooManyRequests || statusCode >= 500 {
		return NewTransientError(err)
	}
	return NewFatalError(err)
}
