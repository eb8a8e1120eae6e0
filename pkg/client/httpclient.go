package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	// maxResponseBytes bounds what is read back; synthesized audio for one
	// turn stays well under it.
	maxResponseBytes = 16 << 20
	maxErrorSnippet  = 200
)

// HttpClient is a small JSON-over-HTTP client bound to one base URL.
type HttpClient struct {
	baseURL string
	headers http.Header
	http    *http.Client
}

type HttpOption func(*HttpClient)

// WithHeader sets a header sent on every request.
func WithHeader(key, value string) HttpOption {
	return func(c *HttpClient) { c.headers.Set(key, value) }
}

func WithTimeout(d time.Duration) HttpOption {
	return func(c *HttpClient) { c.http.Timeout = d }
}

func NewHttpClient(baseURL string, opts ...HttpOption) *HttpClient {
	c := &HttpClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		headers: make(http.Header),
		http:    &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (r *Response) DecodeJSON(target any) error {
	return json.Unmarshal(r.Body, target)
}

func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func (c *HttpClient) GET(ctx context.Context, path string) (*Response, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

// POST sends body as JSON. A nil body sends no content.
func (c *HttpClient) POST(ctx context.Context, path string, body any) (*Response, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

func (c *HttpClient) do(ctx context.Context, method, path string, body any) (*Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, values := range c.headers {
		req.Header[key] = values
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// GetErrorMessage pulls a human readable reason out of an error response,
// whether it is one of our JSON envelopes, a provider's JSON or plain text.
func GetErrorMessage(resp *Response) string {
	var errResp struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Code    string `json:"code"`
	}
	if err := resp.DecodeJSON(&errResp); err != nil {
		snippet := strings.TrimSpace(string(resp.Body))
		if len(snippet) > maxErrorSnippet {
			snippet = snippet[:maxErrorSnippet]
		}
		return snippet
	}

	switch {
	case errResp.Message != "":
		return errResp.Message
	case errResp.Error != "":
		return errResp.Error
	default:
		return errResp.Code
	}
}
