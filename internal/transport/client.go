// Package transport implements the HTTP client for the Arrow3 API: request
// envelope decoding, bearer authentication, bounded retry, and a one-shot
// transparent refresh-and-retry on 401 responses.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	apperrors "github.com/KshitijGomber/arrow3-sub001/pkg/errors"
	"github.com/KshitijGomber/arrow3-sub001/pkg/logger"
	"github.com/KshitijGomber/arrow3-sub001/pkg/tracing"
)

// Doer abstracts the underlying HTTP round trip so the circuit breaker can
// wrap it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// TokenProvider yields the current access token, or "" when the session is
// anonymous. The session manager owns the token; the transport only reads it.
type TokenProvider func(ctx context.Context) string

// RefreshFunc mints a new access token after a 401. It is called at most once
// per request.
type RefreshFunc func(ctx context.Context) (string, error)

// Config holds HTTP client configuration.
type Config struct {
	BaseURL      string
	Timeout      time.Duration
	MaxRetries   int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

// DefaultConfig returns sensible defaults for the API client.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		Timeout:      30 * time.Second,
		MaxRetries:   3,
		RetryWaitMin: time.Second,
		RetryWaitMax: 5 * time.Second,
	}
}

// envelope is the response convention used by every Arrow3 endpoint:
// {success, data?, message?} with errors under message or error.message.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   *envelopeError  `json:"error"`
}

type envelopeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorMessage returns the server's error message following the envelope
// preference order: error.message, then the top-level message.
func (e *envelope) errorMessage() string {
	if e.Error != nil && e.Error.Message != "" {
		return e.Error.Message
	}
	return e.Message
}

func (e *envelope) errorCode() string {
	if e.Error != nil {
		return e.Error.Code
	}
	return ""
}

// Client is the envelope-aware Arrow3 API client.
type Client struct {
	doer    Doer
	cfg     Config
	logger  *slog.Logger
	token   TokenProvider
	refresh RefreshFunc
}

// Option configures a Client.
type Option func(*Client)

// WithTokenProvider attaches the session's access token reader. Requests
// carry an Authorization header whenever the provider yields a token.
func WithTokenProvider(p TokenProvider) Option {
	return func(c *Client) { c.token = p }
}

// WithRefresh enables the transparent refresh-and-retry on 401 responses.
func WithRefresh(fn RefreshFunc) Option {
	return func(c *Client) { c.refresh = fn }
}

// WithDoer replaces the underlying round tripper, e.g. with a circuit
// breaker wrapper.
func WithDoer(d Doer) Option {
	return func(c *Client) { c.doer = d }
}

// NewHTTPClient returns a pooled http.Client suitable for the API origin.
// Used as the default Doer and as the inner client behind the breaker.
func NewHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// New creates an API client with connection pooling and retry.
func New(cfg Config, log *slog.Logger, opts ...Option) *Client {
	c := &Client{
		doer:   NewHTTPClient(cfg.Timeout),
		cfg:    cfg,
		logger: log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get performs a GET request and decodes the envelope data into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Call(ctx, http.MethodGet, path, nil, out)
}

// Post performs a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Call(ctx, http.MethodPost, path, body, out)
}

// Put performs a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Call(ctx, http.MethodPut, path, body, out)
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.Call(ctx, http.MethodDelete, path, nil, out)
}

// Call executes an API request. On success the envelope's data field is
// decoded into out (when out is non-nil). On failure it returns an
// *apperrors.APIError carrying the server's code, message, and status.
//
// Retry policy: for idempotent requests (GET, HEAD) network errors and 5xx
// responses are retried up to MaxRetries with exponential backoff. Writes
// are never replayed by the transport; the cache's mutation path owns the
// single write retry. 4xx responses are never retried. A 401 on a non-auth
// path triggers exactly one refresh-and-retry before the error is surfaced.
func (c *Client) Call(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
	}

	ctx, span := tracing.Tracer("transport").Start(ctx, method+" "+path)
	defer span.End()

	correlationID := logger.CorrelationIDFromContext(ctx)
	if correlationID == "" {
		correlationID = uuid.New().String()
		ctx = logger.WithCorrelationID(ctx, correlationID)
	}

	resp, data, err := c.roundTrip(ctx, method, path, payload, correlationID, "")
	if err == nil && resp.StatusCode == http.StatusUnauthorized && c.refresh != nil && !isAuthPath(path) {
		// One transparent refresh, then retry the original request once.
		token, refreshErr := c.refresh(ctx)
		if refreshErr != nil {
			c.logger.WarnContext(ctx, "token refresh after 401 failed",
				slog.String("path", path),
				slog.String("error", refreshErr.Error()),
			)
		} else {
			refreshRetriesTotal.Inc()
			resp, data, err = c.roundTrip(ctx, method, path, payload, correlationID, token)
		}
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	return decode(resp.StatusCode, data, out)
}

// roundTrip runs the retry loop for a single logical request. overrideToken,
// when non-empty, replaces the provider's token (used after a refresh).
// It returns the last response with its body fully read and closed.
func (c *Client) roundTrip(ctx context.Context, method, path string, payload []byte, correlationID, overrideToken string) (*http.Response, []byte, error) {
	start := time.Now()
	var resp *http.Response
	var data []byte

	retries := c.cfg.MaxRetries
	if !isIdempotent(method) {
		retries = 0
	}

	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			wait := c.cfg.RetryWaitMin * time.Duration(1<<uint(attempt-1))
			if wait > c.cfg.RetryWaitMax {
				wait = c.cfg.RetryWaitMax
			}
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, nil, ctx.Err()
			}
		}

		req, err := c.newRequest(ctx, method, path, payload, correlationID, overrideToken)
		if err != nil {
			return nil, nil, err
		}

		resp, err = c.doer.Do(req)
		if err != nil {
			// A breaker-consumed 5xx follows the same retry policy as a raw one.
			var ssErr *ServerStatusError
			if errors.As(err, &ssErr) {
				if attempt < retries {
					continue
				}
				apiRequestsTotal.WithLabelValues(method, resource(path), fmt.Sprintf("%d", ssErr.StatusCode)).Inc()
				return nil, nil, decode(ssErr.StatusCode, ssErr.Body, nil)
			}
			if isRetryable(err) && attempt < retries {
				continue
			}
			apiRequestsTotal.WithLabelValues(method, resource(path), "error").Inc()
			return nil, nil, normalizeTransportError(err, attempt+1)
		}

		data, err = io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return nil, nil, fmt.Errorf("read response body: %w", err)
		}

		// Retry server errors (except 501 Not Implemented); 4xx is final.
		if resp.StatusCode >= 500 && resp.StatusCode != http.StatusNotImplemented && attempt < retries {
			continue
		}
		break
	}

	status := fmt.Sprintf("%d", resp.StatusCode)
	apiRequestsTotal.WithLabelValues(method, resource(path), status).Inc()
	apiRequestDuration.WithLabelValues(method, resource(path)).Observe(time.Since(start).Seconds())

	return resp, data, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, payload []byte, correlationID, overrideToken string) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", method, err)
	}

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Correlation-ID", correlationID)

	token := overrideToken
	if token == "" && c.token != nil {
		token = c.token(ctx)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req, nil
}

// Health probes the API health endpoint.
func (c *Client) Health(ctx context.Context) error {
	return c.Get(ctx, "/health", nil)
}

// decode maps the response status and envelope into either out or an APIError.
func decode(status int, data []byte, out any) error {
	var env envelope
	if len(data) > 0 {
		// A non-envelope body (e.g. a bare proxy error page) is tolerated;
		// classification then falls back to the status code alone.
		_ = json.Unmarshal(data, &env)
	}

	if status >= 400 || (len(data) > 0 && !env.Success && env.errorMessage() != "") {
		if status < 400 {
			// success:false with a 2xx status; treat as a client error.
			status = http.StatusBadRequest
		}
		return apperrors.FromStatus(status, env.errorCode(), env.errorMessage())
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}

// isIdempotent reports whether the transport may replay a request after a
// network failure or 5xx. Writes get a single attempt here so a failed
// POST is never silently resubmitted.
func isIdempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead:
		return true
	}
	return false
}

// isAuthPath reports whether the path belongs to the auth surface. Auth
// requests never trigger the transparent refresh: the session manager
// sequences verification and refresh itself.
func isAuthPath(path string) bool {
	return strings.HasPrefix(path, "/auth/")
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	// Context errors are not retryable.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func normalizeTransportError(err error, attempts int) error {
	return apperrors.Wrap(err, fmt.Sprintf("request failed after %d attempts", attempts))
}

// resource extracts the first path segment for metric labels, keeping
// cardinality bounded.
func resource(path string) string {
	trimmed := strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(trimmed, '/'); i >= 0 {
		return trimmed[:i]
	}
	if i := strings.IndexByte(trimmed, '?'); i >= 0 {
		return trimmed[:i]
	}
	return trimmed
}
