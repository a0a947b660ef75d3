// Package api provides an HTTP client for the presentation service.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/slidecraft/slides-cli/internal/auth"
	"github.com/slidecraft/slides-cli/internal/config"
	"github.com/slidecraft/slides-cli/internal/hostutil"
	"github.com/slidecraft/slides-cli/internal/logging"
	"github.com/slidecraft/slides-cli/internal/output"
	"github.com/slidecraft/slides-cli/internal/version"
)

// Header names.
const (
	HeaderAdminAuthorization = "Admin-Authorization"
	HeaderRequestID          = "X-Request-ID"
)

// loginRequiredMessage is the error text for an expired or missing login.
const loginRequiredMessage = "Please log in first"

// Recorder receives one event per HTTP request. Status 0 means no response.
type Recorder interface {
	RequestDone(method string, status int, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RequestDone(string, int, time.Duration) {}

// Client is an HTTP client for the presentation service. Requests carry the
// stored tokens, and a 401 clears the token it was sent with.
type Client struct {
	httpClient *http.Client
	tokens     *auth.TokenStore
	cfg        *config.Config
	logger     *slog.Logger
	recorder   Recorder
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(c *Client) {
		if r != nil {
			c.recorder = r
		}
	}
}

// Response wraps an API response.
type Response struct {
	Data       json.RawMessage
	StatusCode int
	Headers    http.Header
}

// UnmarshalData unmarshals the response data into the given value.
func (r *Response) UnmarshalData(v any) error {
	if err := json.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// NewClient creates a new API client.
func NewClient(cfg *config.Config, tokens *auth.TokenStore, opts ...Option) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = config.DefaultRequestTimeout
	}
	c := &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		tokens:   tokens,
		cfg:      cfg,
		logger:   logging.NewNop(),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, http.MethodGet, path, nil)
}

// Post performs a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, http.MethodPost, path, body)
}

// Patch performs a PATCH request with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, http.MethodPatch, path, body)
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, http.MethodDelete, path, nil)
}

// URL returns the absolute URL for a service path.
func (c *Client) URL(path string) string {
	return hostutil.JoinURL(c.cfg.BaseURL, c.cfg.APIPrefix, path)
}

// Do sends one request. There are no retries.
func (c *Client) Do(ctx context.Context, method, path string, body any) (*Response, error) {
	var bodyReader io.Reader
	if body != nil {
		if err := validateRequest(body); err != nil {
			return nil, err
		}
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	reqURL := c.URL(path)
	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return nil, err
	}

	admin := c.isAdminPath(path)
	requestID := uuid.NewString()
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderRequestID, requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(ctx, req, admin)

	if req.Header.Get("Authorization") != "" {
		if err := hostutil.RequireSecureURL(reqURL); err != nil {
			return nil, output.ErrUsageHint(err.Error(), "Use an https:// base_url")
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recorder.RequestDone(method, 0, time.Since(start))
		c.logger.Debug("http request failed", "method", method, "url", reqURL, "request_id", requestID, "error", err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, output.ErrNetwork(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	elapsed := time.Since(start)
	c.recorder.RequestDone(method, resp.StatusCode, elapsed)
	c.logger.Debug("http request",
		"method", method,
		"url", reqURL,
		"status", resp.StatusCode,
		"duration", elapsed,
		"request_id", requestID,
	)
	if err != nil {
		return nil, output.ErrNetwork(fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return &Response{
			Data:       respBody,
			StatusCode: resp.StatusCode,
			Headers:    resp.Header,
		}, nil
	}

	return nil, c.handleError(ctx, resp.StatusCode, respBody, admin, path)
}

// isAdminPath reports whether a service path targets the admin API.
func (c *Client) isAdminPath(p string) bool {
	p, _, _ = strings.Cut(p, "?")
	if strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://") {
		return strings.Contains(p, c.cfg.APIPrefix+"/admin")
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if prefix := strings.TrimSuffix(c.cfg.APIPrefix, "/"); prefix != "" && strings.HasPrefix(p, prefix+"/") {
		p = strings.TrimPrefix(p, prefix)
	}
	return p == "/admin" || strings.HasPrefix(p, "/admin/")
}

// authorize sets Authorization and Admin-Authorization. Admin paths use the
// admin token when there is one, otherwise the user token.
func (c *Client) authorize(ctx context.Context, req *http.Request, admin bool) {
	adminToken := c.tokens.Authorization(ctx, auth.Admin)
	userToken := c.tokens.Authorization(ctx, auth.User)

	switch {
	case admin && adminToken != "":
		req.Header.Set("Authorization", adminToken)
	case userToken != "":
		req.Header.Set("Authorization", userToken)
	}
	if adminToken != "" {
		req.Header.Set(HeaderAdminAuthorization, adminToken)
	}
}

// errorBody is the server's error shape. Detail is a string for handled
// errors and a list for request validation failures.
type errorBody struct {
	Detail  json.RawMessage `json:"detail"`
	Message string          `json:"message"`
}

func (b errorBody) detail() string {
	if len(b.Detail) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(b.Detail, &s) == nil {
		return s
	}
	var items []struct {
		Loc []any  `json:"loc"`
		Msg string `json:"msg"`
	}
	if json.Unmarshal(b.Detail, &items) == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if len(it.Loc) > 0 {
				msgs = append(msgs, fmt.Sprintf("%v: %s", it.Loc[len(it.Loc)-1], it.Msg))
			} else {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}

func (c *Client) handleError(ctx context.Context, status int, body []byte, admin bool, path string) error {
	var eb errorBody
	_ = json.Unmarshal(body, &eb)
	detail := eb.detail()

	switch status {
	case http.StatusUnauthorized:
		principal := auth.User
		if admin {
			principal = auth.Admin
		}
		if err := c.tokens.Remove(ctx, principal); err != nil {
			c.logger.Warn("clearing token after 401 failed", "principal", principal, "error", err)
		}
		if admin {
			return output.ErrAdminAuth(loginRequiredMessage)
		}
		return output.ErrAuth(loginRequiredMessage)

	case http.StatusBadRequest:
		return output.ErrBadRequest(detail)

	case http.StatusPaymentRequired:
		msg := detail
		if msg == "" {
			msg = eb.Message
		}
		return output.ErrInsufficientPoints(msg)

	case http.StatusTooManyRequests:
		return output.ErrRateLimit()

	case http.StatusForbidden:
		msg := firstNonEmpty(detail, eb.Message, "Access denied")
		return output.ErrForbidden(msg)

	case http.StatusNotFound:
		if detail != "" {
			return &output.Error{Code: output.CodeNotFound, Message: detail, HTTPStatus: status}
		}
		return output.ErrNotFound("Resource", path)

	default:
		msg := firstNonEmpty(detail, eb.Message, fmt.Sprintf("Request failed (HTTP %d)", status))
		e := output.ErrAPI(status, msg)
		e.Retryable = status >= 500
		return e
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// decode issues a request and unmarshals the response into a new T.
func decode[T any](ctx context.Context, c *Client, method, path string, body any) (*T, error) {
	resp, err := c.Do(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	var v T
	if err := resp.UnmarshalData(&v); err != nil {
		return nil, err
	}
	return &v, nil
}

// withQuery appends non-empty query parameters to path.
func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

// raw issues a GET and returns the body as-is.
func (c *Client) raw(ctx context.Context, path string) (json.RawMessage, error) {
	resp, err := c.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(resp.Data)) == 0 {
		return nil, errors.New("empty response body")
	}
	return resp.Data, nil
}
