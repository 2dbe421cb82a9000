// Package chat forwards user questions about the loaded documents to the
// assistant backend.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spherical/pdf-viewer/internal/domain"
	"github.com/spherical/pdf-viewer/internal/observability"
)

// ErrEmptyMessage is returned for a blank question.
var ErrEmptyMessage = errors.New("no message provided")

// ErrNotConfigured is returned when no backend endpoint is set.
var ErrNotConfigured = errors.New("chat backend not configured")

// Responder answers a chat message.
type Responder interface {
	Ask(ctx context.Context, message string) (string, error)
}

// Request is the body sent to the backend.
type Request struct {
	Message string `json:"message"`
}

// Response is the body returned by the backend.
type Response struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

// Client posts messages to an assistant endpoint.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	retry      RetryConfig
	logger     *observability.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithRetry overrides the retry policy.
func WithRetry(cfg RetryConfig) Option {
	return func(c *Client) {
		c.retry = cfg
	}
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *observability.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new chat client.
func NewClient(endpoint, apiKey string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	c := &Client{
		endpoint:   strings.TrimSpace(endpoint),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		retry:      DefaultRetryConfig(),
		logger:     observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ask sends message and returns the backend's answer.
func (c *Client) Ask(ctx context.Context, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", ErrEmptyMessage
	}
	if c.endpoint == "" {
		return "", ErrNotConfigured
	}

	body, err := json.Marshal(Request{Message: message})
	if err != nil {
		return "", domain.APIError("failed to marshal request", err)
	}

	resp, err := c.retryWithBackoff(ctx, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}
		return c.httpClient.Do(req)
	})
	if err != nil {
		return "", domain.APIError("failed to send chat request", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", domain.APIError("failed to read chat response", err)
	}

	var out Response
	decodeErr := json.Unmarshal(data, &out)

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(data))
		if decodeErr == nil && out.Error != "" {
			msg = out.Error
		}
		return "", domain.APIError(fmt.Sprintf("chat backend returned status %d: %s", resp.StatusCode, msg), nil)
	}
	if decodeErr != nil {
		return "", domain.APIError("failed to decode chat response", decodeErr)
	}

	c.logger.Debug().Int("message_len", len(message)).Int("response_len", len(out.Response)).Msg("Chat answered")
	return out.Response, nil
}
