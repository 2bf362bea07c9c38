package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/blankpage/blankpage/internal/domain"
)

func sseServer(t *testing.T, status int, lines ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/messages" {
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("X-Api-Key"); got != "test-key" {
			t.Errorf("Expected api key header, got %q", got)
		}
		if got := r.Header.Get("Anthropic-Version"); got != apiVersion {
			t.Errorf("Expected version %q, got %q", apiVersion, got)
		}
		var req MessagesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode request body: %v", err)
		}
		if !req.Stream {
			t.Error("Expected stream=true on the wire")
		}

		if status != http.StatusOK {
			http.Error(w, `{"error":{"type":"not_found_error"}}`, status)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, line := range lines {
			fmt.Fprintf(w, "%s\n", line)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient("test-key", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return c
}

func streamOnce(t *testing.T, c *Client) ([]string, error) {
	t.Helper()
	var frags []string
	for frag, err := range c.Stream(context.Background(), MessagesRequest{
		Model:     "claude-3-haiku-20240307",
		MaxTokens: 150,
		Messages:  []domain.Message{{Role: domain.RoleUser, Content: "hello"}},
	}) {
		if err != nil {
			return frags, err
		}
		frags = append(frags, frag)
	}
	return frags, nil
}

func TestClient_RequiresAPIKey(t *testing.T) {
	if _, err := NewClient(""); err == nil {
		t.Error("Expected an error for empty api key")
	}
}

func TestStream_YieldsTextDeltasOnly(t *testing.T) {
	srv := sseServer(t, http.StatusOK,
		`event: message_start`,
		`data: {"type":"message_start"}`,
		``,
		`data: {"type":"content_block_delta","delta":{"type":"text_delta","text":"What "}}`,
		`data: {"type":"content_block_delta","delta":{"type":"text_delta","text":"matters?"}}`,
		`data: {"type":"content_block_stop"}`,
		`data: {"type":"message_stop"}`,
	)
	c := newTestClient(t, srv)

	frags, err := streamOnce(t, c)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(frags) != 2 || frags[0] != "What " || frags[1] != "matters?" {
		t.Errorf("Expected the two text deltas, got %v", frags)
	}
}

func TestStream_SkipsUnparseableFrames(t *testing.T) {
	srv := sseServer(t, http.StatusOK,
		`data: this is not json`,
		`data: {"type":"content_block_delta","delta":{"type":"text_delta","text":"still alive"}}`,
		`data: {"type":"message_stop"}`,
	)
	c := newTestClient(t, srv)

	frags, err := streamOnce(t, c)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(frags) != 1 || frags[0] != "still alive" {
		t.Errorf("Expected the valid delta only, got %v", frags)
	}
}

func TestStream_ErrorEventTerminates(t *testing.T) {
	srv := sseServer(t, http.StatusOK,
		`data: {"type":"content_block_delta","delta":{"type":"text_delta","text":"partial"}}`,
		`data: {"type":"error","error":{"type":"overloaded_error","message":"overloaded"}}`,
	)
	c := newTestClient(t, srv)

	frags, err := streamOnce(t, c)
	if err == nil {
		t.Fatal("Expected an error from the error event")
	}
	if !strings.Contains(err.Error(), "overloaded") {
		t.Errorf("Expected the provider message, got %v", err)
	}
	if len(frags) != 1 || frags[0] != "partial" {
		t.Errorf("Fragments before the error must be preserved, got %v", frags)
	}
}

func TestStream_NonOKStatusIsStatusError(t *testing.T) {
	srv := sseServer(t, http.StatusNotFound)
	c := newTestClient(t, srv)

	_, err := streamOnce(t, c)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("Expected *StatusError, got %v", err)
	}
	if se.StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", se.StatusCode)
	}
	if !strings.Contains(se.Body, "not_found_error") {
		t.Errorf("Expected the response body to be captured, got %q", se.Body)
	}
}

func TestModelUnavailable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"403", &StatusError{StatusCode: http.StatusForbidden}, true},
		{"404", &StatusError{StatusCode: http.StatusNotFound}, true},
		{"wrapped 404", fmt.Errorf("call: %w", &StatusError{StatusCode: http.StatusNotFound}), true},
		{"500", &StatusError{StatusCode: http.StatusInternalServerError}, false},
		{"429", &StatusError{StatusCode: http.StatusTooManyRequests}, false},
		{"plain error", errors.New("boom"), false},
		{"nil", nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ModelUnavailable(tc.err); got != tc.want {
				t.Errorf("Expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestWithBaseURL_TrimsTrailingSlash(t *testing.T) {
	c, err := NewClient("test-key", WithBaseURL("https://example.com/api/"))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if c.baseURL != "https://example.com/api" {
		t.Errorf("Expected trimmed base URL, got %q", c.baseURL)
	}
}
