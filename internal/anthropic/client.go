// Package anthropic is a focused streaming client for the Anthropic
// Messages API. It forwards text deltas as they arrive and filters out
// structural stream events.
package anthropic

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/blankpage/blankpage/internal/domain"
)

const (
	defaultBaseURL = "https://api.anthropic.com"
	apiVersion     = "2023-06-01"
)

// StatusError captures a non-2xx provider response with status-aware
// context. The chat service inspects the status to decide whether a
// fallback model should be attempted.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("anthropic: unexpected status %d: %s", e.StatusCode, e.Body)
}

// ModelUnavailable reports whether err is a provider rejection indicating
// the requested model is unavailable or forbidden.
func ModelUnavailable(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.StatusCode == http.StatusForbidden || se.StatusCode == http.StatusNotFound
}

// MessagesRequest is the minimal request shape for the Messages endpoint.
type MessagesRequest struct {
	Model       string           `json:"model"`
	MaxTokens   int              `json:"max_tokens"`
	Temperature float64          `json:"temperature"`
	System      string           `json:"system,omitempty"`
	Messages    []domain.Message `json:"messages"`
	Stream      bool             `json:"stream"`
}

// streamEvent is the subset of stream event fields we inspect. Everything
// except text deltas is structural and dropped.
type streamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Client calls the Anthropic Messages API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the provider endpoint.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/"); baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a Client. The API key is required.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic: api key must not be empty")
	}
	c := &Client{
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		// No overall timeout: streams are open-ended. Connection setup is
		// still bounded by the dial/TLS defaults.
		httpClient: &http.Client{Timeout: 0},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Stream issues a streaming Messages request and yields text fragments in
// arrival order. The sequence is finite and not restartable. A non-2xx
// response yields a single *StatusError; a mid-stream failure yields the
// transport error after whatever fragments already arrived.
func (c *Client) Stream(ctx context.Context, req MessagesRequest) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		req.Stream = true
		body, err := json.Marshal(req)
		if err != nil {
			yield("", fmt.Errorf("anthropic: marshal request: %w", err))
			return
		}

		url := c.baseURL + "/v1/messages"
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			yield("", fmt.Errorf("anthropic: create request: %w", err))
			return
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("X-Api-Key", c.apiKey)
		httpReq.Header.Set("Anthropic-Version", apiVersion)
		httpReq.Header.Set("Accept", "text/event-stream")

		res, err := c.httpClient.Do(httpReq)
		if err != nil {
			yield("", fmt.Errorf("anthropic: request failed: %w", err))
			return
		}
		defer func() { _ = res.Body.Close() }()

		if res.StatusCode < 200 || res.StatusCode >= 300 {
			buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
			yield("", &StatusError{StatusCode: res.StatusCode, Body: string(buf)})
			return
		}

		scanner := bufio.NewScanner(res.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if payload == "" {
				continue
			}

			var ev streamEvent
			if err := json.Unmarshal([]byte(payload), &ev); err != nil {
				// Unparseable frame: skip rather than kill the stream.
				continue
			}
			switch ev.Type {
			case "content_block_delta":
				if ev.Delta.Type == "text_delta" && ev.Delta.Text != "" {
					if !yield(ev.Delta.Text, nil) {
						return
					}
				}
			case "error":
				yield("", fmt.Errorf("anthropic: stream error %s: %s", ev.Error.Type, ev.Error.Message))
				return
			case "message_stop":
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield("", fmt.Errorf("anthropic: read stream: %w", err))
		}
	}
}

// Ping issues a minimal non-streaming request to verify credentials.
// Used by health checks; a 4xx other than rate limiting means the
// credential is bad.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	for _, err := range c.Stream(ctx, MessagesRequest{
		Model:     "claude-3-haiku-20240307",
		MaxTokens: 1,
		Messages:  []domain.Message{{Role: domain.RoleUser, Content: "ping"}},
	}) {
		if err != nil {
			return err
		}
		break
	}
	return nil
}
