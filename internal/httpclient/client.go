package httpclient

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	ierr "github.com/flexprice/billing-engine/internal/errors"
	"github.com/samber/lo"
)

const (
	userAgent = "billing-engine/1.0"

	// receivers are expected to answer with a short ack; anything past this
	// is dropped
	maxResponseBytes = 64 << 10
)

// Request is an outbound call. A non-nil Body is sent as JSON.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// Response carries the first value of each response header
type Response struct {
	StatusCode int
	Body       []byte
	Headers    map[string]string
}

// Client sends outbound requests. Non-2xx responses come back as an *Error.
type Client interface {
	Send(ctx context.Context, req *Request) (*Response, error)
}

type ClientConfig struct {
	Timeout time.Duration
}

type client struct {
	http *http.Client
}

// NewDefaultClient returns a client with a 30s timeout
func NewDefaultClient() Client {
	return NewClient(ClientConfig{Timeout: 30 * time.Second})
}

func NewClient(cfg ClientConfig) Client {
	return &client{http: &http.Client{Timeout: cfg.Timeout}}
}

func (c *client) Send(ctx context.Context, req *Request) (*Response, error) {
	httpReq, err := c.newRequest(ctx, req)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Invalid outbound request").
			Mark(ierr.ErrHTTPClient)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Request to %s failed", httpReq.URL.Host).
			Mark(ierr.ErrHTTPClient)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Failed to read response from %s", httpReq.URL.Host).
			Mark(ierr.ErrHTTPClient)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, NewError(resp.StatusCode, body)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       body,
		Headers: lo.MapValues(resp.Header, func(v []string, _ string) string {
			return lo.FirstOrEmpty(v)
		}),
	}, nil
}

func (c *client) newRequest(ctx context.Context, req *Request) (*http.Request, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("User-Agent", userAgent)
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	return httpReq, nil
}
