// Package client is a Go client for the portfolio copilot streaming API. It
// decodes the server's event frames and maintains a chat transcript the way
// the site's chat widget does.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// PageSuggestion is a site section the server recommends for a question.
type PageSuggestion struct {
	Title       string `json:"title"`
	Href        string `json:"href"`
	Description string `json:"description,omitempty"`
}

// Frame is one event from the stream. Type is chunk, suggestions, done, or
// error.
type Frame struct {
	Type    string           `json:"type"`
	Content string           `json:"content,omitempty"`
	Pages   []PageSuggestion `json:"pages,omitempty"`
	Message string           `json:"message,omitempty"`
}

// Config holds the settings needed to construct a Client.
type Config struct {
	// BaseURL is the root URL of the copilot server (e.g. "http://localhost:8080").
	BaseURL string

	// HTTPClient is an optional custom HTTP client. If nil, a default client
	// with no overall timeout is used: streams are long-lived, cancellation
	// happens through the request context.
	HTTPClient *http.Client
}

// Client is an HTTP client for the copilot API. All methods are safe for
// concurrent use.
type Client struct {
	baseURL string
	client  *http.Client
}

// New creates a Client from the given configuration.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("client: BaseURL is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  httpClient,
	}, nil
}

// StreamQuestion posts a question and invokes fn for every decoded frame in
// arrival order. Lines that are not event frames, and frames that fail to
// parse, are skipped silently. A non-nil error from fn stops consumption and
// is returned. The server closing the stream ends iteration with a nil error;
// fn sees the terminal done/error frame first.
func (c *Client) StreamQuestion(ctx context.Context, question string, fn func(Frame) error) error {
	payload, err := json.Marshal(map[string]string{"question": question})
	if err != nil {
		return fmt.Errorf("client: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/rag-stream", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("client: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("client: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("client: server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var frame Frame
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &frame); err != nil {
			continue // skip malformed frames, never abort the stream
		}
		if err := fn(frame); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("client: read stream: %w", err)
	}
	return nil
}

// Query runs a blocking, non-streaming query against the server.
func (c *Client) Query(ctx context.Context, question string) (*QueryResult, error) {
	payload, err := json.Marshal(map[string]string{"question": question})
	if err != nil {
		return nil, fmt.Errorf("client: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/rag", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("client: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("client: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("client: server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var result QueryResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("client: decode response: %w", err)
	}
	return &result, nil
}

// PerformanceMetrics is the server's per-request timing breakdown.
type PerformanceMetrics struct {
	TotalTimeMs     int64 `json:"total_time_ms"`
	RetrievalTimeMs int64 `json:"retrieval_time_ms"`
	ModelTimeMs     int64 `json:"model_time_ms"`
}

// QueryResult is the aggregate answer from the non-streaming endpoint.
type QueryResult struct {
	Answer         string              `json:"answer"`
	SuggestedPages []PageSuggestion    `json:"suggested_pages,omitempty"`
	Performance    *PerformanceMetrics `json:"performance,omitempty"`
}
