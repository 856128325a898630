package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultBaseURL is the public HubSpot API host
const DefaultBaseURL = "https://api.hubapi.com"

// Options tunes the underlying HTTP transport
type Options struct {
	Timeout    time.Duration
	RetryCount int
}

// Client represents a CRM API client authenticated with a private app token
type Client struct {
	baseURL string
	http    *resty.Client
}

// NewClient creates a new CRM API client
func NewClient(baseURL, accessToken string, opts Options) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.RetryCount < 0 {
		opts.RetryCount = 0
	}

	client := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
	}

	client.http = resty.New().
		SetAuthToken(accessToken).
		SetHeader("Accept", "application/json").
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			// 429 means the request was refused before anything was written
			return r != nil && r.StatusCode() == http.StatusTooManyRequests
		})

	return client
}

// Post performs a POST request that must not be repeated once the server may
// have acted on it. Only rate-limited attempts are retried.
func (c *Client) Post(ctx context.Context, endpoint string, payload interface{}, out interface{}) error {
	return c.post(ctx, endpoint, payload, out, false)
}

// Query performs a read-only POST, such as a search. It is also retried on
// server errors and transport failures.
func (c *Client) Query(ctx context.Context, endpoint string, payload interface{}, out interface{}) error {
	return c.post(ctx, endpoint, payload, out, true)
}

func (c *Client) post(ctx context.Context, endpoint string, payload interface{}, out interface{}, readOnly bool) error {
	url := c.buildURL(endpoint)
	req := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload)
	if readOnly {
		req.AddRetryCondition(func(r *resty.Response, err error) bool {
			if ctx.Err() != nil {
				return false
			}
			if r == nil || r.RawResponse == nil {
				return err != nil
			}
			return r.StatusCode() >= 500 && r.StatusCode() <= 504
		})
	}

	resp, err := req.Post(url)
	if err != nil {
		return &APIError{Endpoint: endpoint, Message: "request failed", Err: err}
	}

	if !resp.IsSuccess() {
		return newAPIError(endpoint, resp)
	}

	if out == nil || len(resp.Body()) == 0 {
		return nil
	}

	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return &APIError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode(),
			Message:    "failed to parse response",
			Err:        err,
		}
	}

	return nil
}

// buildURL constructs the full URL for an endpoint
func (c *Client) buildURL(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "/")
	return fmt.Sprintf("%s/%s", c.baseURL, endpoint)
}
