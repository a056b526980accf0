package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client wraps resty for calls to rotation endpoints and platform APIs.
type Client struct {
	r *resty.Client
}

// New creates a client with a 30s timeout. Retries are off: callers decide
// whether a POST is safe to repeat.
func New() *Client {
	r := resty.New().
		SetTimeout(30*time.Second).
		SetHeader("User-Agent", "postdispatch/1.0")

	return &Client{r: r}
}

// WithTimeout sets a custom timeout.
func (c *Client) WithTimeout(d time.Duration) *Client {
	c.r.SetTimeout(d)
	return c
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, truncate(e.Body, 200))
}

// PostJSON sends body as JSON and decodes a 2xx response into out. A
// non-empty token is sent as a bearer token.
func (c *Client) PostJSON(ctx context.Context, url, token string, body, out any) error {
	req := c.r.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json")
	if token != "" {
		req.SetAuthToken(token)
	}
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Post(url)
	return decode(resp, err, out)
}

// PostForm sends form data and decodes a 2xx JSON response into out.
func (c *Client) PostForm(ctx context.Context, url string, data map[string]string, out any) error {
	req := c.r.R().SetContext(ctx).SetFormData(data)
	resp, err := req.Post(url)
	return decode(resp, err, out)
}

// decode checks the status and unmarshals the body whatever content type
// the remote side declared.
func decode(resp *resty.Response, err error, out any) error {
	if err != nil {
		return err
	}
	if resp.IsError() {
		return &StatusError{StatusCode: resp.StatusCode(), Body: resp.String()}
	}
	if out == nil || len(resp.Body()) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
