// Copyright 2026 The labctl Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/homelab/labctl/pkg/defaults"
	apperrors "github.com/homelab/labctl/pkg/errors"
)

const (
	// BasePath is the API prefix appended to the Harbor URL.
	BasePath = "/api/v2.0"

	// UserAgent identifies labctl to Harbor.
	UserAgent = "labctl-harbor/1.0"

	headerRequestID    = "X-Request-Id"
	headerResourceName = "X-Is-Resource-Name"
	maxErrorBody       = 4096
)

// Client calls the Harbor API.
type Client struct {
	baseURL  string
	username string
	password string

	httpClient *http.Client
	limiter    *rate.Limiter
	executor   failsafe.Executor[*http.Response]

	insecureSkipVerify bool
	retries            int
	retryDelay         time.Duration
	retryMaxDelay      time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. Transport options are ignored.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithInsecureSkipVerify disables TLS certificate verification, for
// registries still serving a staging or self-signed certificate.
func WithInsecureSkipVerify(skip bool) Option {
	return func(cl *Client) {
		cl.insecureSkipVerify = skip
	}
}

// WithRateLimit sets the client-side request rate.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(cl *Client) {
		cl.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithRetry sets the retry budget and backoff bounds.
func WithRetry(maxRetries int, delay, maxDelay time.Duration) Option {
	return func(cl *Client) {
		cl.retries = maxRetries
		cl.retryDelay = delay
		cl.retryMaxDelay = maxDelay
	}
}

// New returns a client for the Harbor instance at harborURL
// (for example https://harbor.example.com).
func New(harborURL, username, password string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(harborURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, apperrors.New(apperrors.ErrCodeInvalidRequest, fmt.Sprintf("invalid harbor URL %q", harborURL))
	}

	c := &Client{
		baseURL:       u.String() + BasePath,
		username:      username,
		password:      password,
		limiter:       rate.NewLimiter(rate.Limit(defaults.HarborRequestsPerSecond), defaults.HarborRequestBurst),
		retries:       defaults.HTTPRetryMax,
		retryDelay:    defaults.HTTPRetryDelay,
		retryMaxDelay: defaults.HTTPRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{
			Timeout:   defaults.HTTPClientTimeout,
			Transport: newTransport(c.insecureSkipVerify),
		}
	}
	c.executor = failsafe.NewExecutor[*http.Response](c.retryPolicy())
	return c, nil
}

func newTransport(insecure bool) *http.Transport {
	return &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
		DialContext: (&net.Dialer{
			Timeout:   defaults.HTTPConnectTimeout,
			KeepAlive: defaults.HTTPKeepAlive,
		}).DialContext,
		TLSHandshakeTimeout:   defaults.HTTPTLSHandshakeTimeout,
		ResponseHeaderTimeout: defaults.HTTPResponseHeaderTimeout,
		IdleConnTimeout:       defaults.HTTPIdleConnTimeout,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
		TLSClientConfig: &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: insecure, //nolint:gosec // opt-in for staging certificates
		},
	}
}

func (c *Client) retryPolicy() retrypolicy.RetryPolicy[*http.Response] {
	return retrypolicy.Builder[*http.Response]().
		HandleIf(func(resp *http.Response, err error) bool {
			if err != nil {
				return true
			}
			return resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError
		}).
		WithBackoff(c.retryDelay, c.retryMaxDelay).
		WithMaxRetries(c.retries).
		ReturnLastFailure().
		OnRetry(func(e failsafe.ExecutionEvent[*http.Response]) {
			if resp := e.LastResult(); resp != nil {
				slog.Debug("retrying harbor request", "status", resp.StatusCode, "attempt", e.Attempts())
				drainAndCloseBody(resp)
				return
			}
			slog.Debug("retrying harbor request", "error", e.LastError(), "attempt", e.Attempts())
		}).
		Build()
}

// request describes one API call.
type request struct {
	method string
	path   string
	query  url.Values
	body   any
	// byName sets X-Is-Resource-Name so project names are accepted in the path.
	byName bool
}

// do performs the request and returns the response on 2xx. The caller closes
// the body. Other statuses are converted into structured errors.
func (c *Client) do(ctx context.Context, r request) (*http.Response, error) {
	var payload []byte
	if r.body != nil {
		var err error
		payload, err = json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	target := c.baseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}
	requestID := uuid.NewString()

	resp, err := c.executor.WithContext(ctx).Get(func() (*http.Response, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, r.method, target, body)
		if err != nil {
			return nil, err
		}
		req.SetBasicAuth(c.username, c.password)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", UserAgent)
		req.Header.Set(headerRequestID, requestID)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if r.byName {
			req.Header.Set(headerResourceName, "true")
		}
		return c.httpClient.Do(req)
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperrors.Wrap(apperrors.ErrCodeTimeout, fmt.Sprintf("%s %s canceled", r.method, r.path), err)
		}
		return nil, apperrors.WrapWithContext(apperrors.ErrCodeUnavailable,
			fmt.Sprintf("%s %s failed", r.method, r.path), err,
			map[string]any{"request_id": requestID})
	}

	slog.Debug("harbor request",
		"method", r.method,
		"path", r.path,
		"status", resp.StatusCode,
		"request_id", requestID)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer drainAndCloseBody(resp)
	return nil, statusError(r.method, r.path, requestID, resp)
}

// doJSON performs the request and decodes a JSON response into out when out is non-nil.
func (c *Client) doJSON(ctx context.Context, r request, out any) (http.Header, error) {
	resp, err := c.do(ctx, r)
	if err != nil {
		return nil, err
	}
	defer drainAndCloseBody(resp)

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
			return nil, fmt.Errorf("failed to decode %s %s response: %w", r.method, r.path, err)
		}
	}
	return resp.Header, nil
}

// errorBody is Harbor's error payload.
type errorBody struct {
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

func statusError(method, p, requestID string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	msg := fmt.Sprintf("%s %s returned %d", method, p, resp.StatusCode)
	var eb errorBody
	if json.Unmarshal(raw, &eb) == nil && len(eb.Errors) > 0 {
		parts := make([]string, 0, len(eb.Errors))
		for _, e := range eb.Errors {
			parts = append(parts, e.Message)
		}
		msg += ": " + strings.Join(parts, "; ")
	} else if s := strings.TrimSpace(string(raw)); s != "" {
		msg += ": " + s
	}

	return apperrors.NewWithContext(apperrors.FromHTTPStatus(resp.StatusCode), msg, map[string]any{
		"status":     resp.StatusCode,
		"request_id": requestID,
	})
}

// IsNotFound reports whether err is a Harbor 404.
func IsNotFound(err error) bool {
	return apperrors.IsCode(err, apperrors.ErrCodeNotFound)
}

// IsConflict reports whether err is a Harbor 409.
func IsConflict(err error) bool {
	return apperrors.IsCode(err, apperrors.ErrCodeConflict)
}

// idFromLocation parses the trailing numeric ID of a Location header such as
// /api/v2.0/retentions/7.
func idFromLocation(h http.Header) (int64, error) {
	loc := h.Get("Location")
	if loc == "" {
		return 0, apperrors.New(apperrors.ErrCodeInternal, "response has no Location header")
	}
	id, err := strconv.ParseInt(path.Base(loc), 10, 64)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrCodeInternal, fmt.Sprintf("unexpected Location %q", loc), err)
	}
	return id, nil
}

func drainAndCloseBody(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
