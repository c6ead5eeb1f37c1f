// Package api is the HTTP collaborator the sync store talks to. It speaks the
// storefront's JSON envelope ({"success", "message", "data"}) and owns the
// bearer credential attached to every request.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/storesync/internal/logger"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	// DefaultTimeout applies when no http.Client is supplied.
	DefaultTimeout = 30 * time.Second

	defaultUserAgent = "storesync"
)

// Params are the list query parameters understood by the storefront API.
type Params struct {
	Page    int
	Limit   int
	Summary bool
}

// Values encodes the parameters, skipping zero values.
func (p Params) Values() url.Values {
	v := url.Values{}
	if p.Page > 0 {
		v.Set("page", strconv.Itoa(p.Page))
	}
	if p.Limit > 0 {
		v.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Summary {
		v.Set("summary", "true")
	}
	return v
}

// Response is the envelope wrapping every API payload.
type Response struct {
	Success *bool           `json:"success,omitempty"`
	Message string          `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (r *Response) message() string {
	if r.Message != "" {
		return r.Message
	}
	return r.Error
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying http.Client. Its transport is wrapped,
// not replaced.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithRetries enables up to n retries of GET requests that fail with a
// transport error or a 502/503/504. Retries are off by default.
func WithRetries(n uint) Option {
	return func(c *Client) {
		c.retries = n
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// Client is a JSON REST client for the storefront API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	bearer     *bearerTransport
	retries    uint
	userAgent  string
}

// New creates a client for baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q: scheme and host are required", baseURL)
	}

	c := &Client{
		baseURL:   u,
		userAgent: defaultUserAgent,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: DefaultTimeout}
	}

	// copy so the caller's client keeps its own transport
	httpClient := *c.httpClient
	c.bearer = &bearerTransport{
		next: logger.NewHTTPRequests(log.Logger, httpClient.Transport),
	}
	httpClient.Transport = otelhttp.NewTransport(c.bearer)
	c.httpClient = &httpClient

	return c, nil
}

// SetToken attaches token as a bearer credential to all subsequent requests.
func (c *Client) SetToken(token string) {
	c.bearer.set(token)
}

// ClearToken removes the bearer credential.
func (c *Client) ClearToken() {
	c.bearer.set("")
}

// Get fetches path with params and decodes the envelope data into out.
func (c *Client) Get(ctx context.Context, path string, params Params, out any) error {
	return c.do(ctx, http.MethodGet, path, params.Values(), nil, out)
}

// Post sends body as JSON and decodes the envelope data into out.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, nil, body, out)
}

// Put sends body as JSON and decodes the envelope data into out.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPut, path, nil, body, out)
}

// Patch sends body as JSON and decodes the envelope data into out.
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPatch, path, nil, body, out)
}

func (c *Client) resolve(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.TrimPrefix(path, "/")
	u.RawQuery = query.Encode()
	return u.String()
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	target := c.resolve(path, query)
	requestID := uuid.NewString()

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return &Error{Method: method, URL: target, RequestID: requestID, Err: fmt.Errorf("failed to marshal payload: %w", err)}
		}
	}

	attempt := func() (*result, error) {
		return c.roundTrip(ctx, method, target, requestID, payload)
	}

	var (
		res *result
		err error
	)
	if method == http.MethodGet && c.retries > 0 {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = 150 * time.Millisecond
		res, err = backoff.Retry(ctx, attempt,
			backoff.WithBackOff(b),
			backoff.WithMaxTries(c.retries+1),
			backoff.WithNotify(func(err error, next time.Duration) {
				log.Debug().Err(err).Str("url", target).Dur("next", next).Msg("retrying api request")
			}),
		)
	} else {
		res, err = attempt()
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			err = permanent.Err
		}
	}
	if err != nil {
		return err
	}

	return c.decode(method, target, requestID, res, out)
}

type result struct {
	status int
	body   []byte
}

// roundTrip performs one attempt. Errors worth retrying are returned as is,
// everything else is wrapped with backoff.Permanent.
func (c *Client) roundTrip(ctx context.Context, method, target, requestID string, payload []byte) (*result, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, backoff.Permanent(&Error{Method: method, URL: target, RequestID: requestID, Err: fmt.Errorf("failed to create request: %w", err)})
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-Id", requestID)
	if method == http.MethodGet {
		// an HTTP cache below may only answer with a revalidated body
		req.Header.Set("Cache-Control", "max-age=0")
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, backoff.Permanent(err)
		}
		return nil, &Error{Method: method, URL: target, RequestID: requestID, Err: fmt.Errorf("failed to send request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Method: method, URL: target, Status: resp.StatusCode, RequestID: requestID, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	switch resp.StatusCode {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return nil, c.statusError(method, target, requestID, resp.StatusCode, body)
	}

	return &result{status: resp.StatusCode, body: body}, nil
}

func (c *Client) decode(method, target, requestID string, res *result, out any) error {
	if res.status > 299 {
		return c.statusError(method, target, requestID, res.status, res.body)
	}

	if len(bytes.TrimSpace(res.body)) == 0 {
		return nil
	}

	var env Response
	if err := json.Unmarshal(res.body, &env); err != nil {
		return &Error{Method: method, URL: target, Status: res.status, RequestID: requestID, Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	if env.Success != nil && !*env.Success {
		return &Error{Method: method, URL: target, Status: res.status, RequestID: requestID, Message: env.message()}
	}

	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}

	if err := json.Unmarshal(env.Data, out); err != nil {
		return &Error{Method: method, URL: target, Status: res.status, RequestID: requestID, Err: fmt.Errorf("failed to decode response data: %w", err)}
	}

	return nil
}

func (c *Client) statusError(method, target, requestID string, status int, body []byte) *Error {
	apiErr := &Error{
		Method:    method,
		URL:       target,
		Status:    status,
		RequestID: requestID,
		Err:       fmt.Errorf("request failed with status %d", status),
	}

	var env Response
	if err := json.Unmarshal(body, &env); err == nil {
		apiErr.Message = env.message()
	}

	return apiErr
}
