package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/createathon/client-go/domain"
	"github.com/createathon/client-go/telemetry"
)

// RequestIDHeader carries the client-generated request ID for correlation
// with server-side logs.
const RequestIDHeader = "X-Request-ID"

// refreshPath is the token exchange endpoint. The pipeline owns it; every
// other path comes from callers.
const refreshPath = "/api/users/refresh/"

// Request describes one outbound API call.
type Request struct {
	Method string
	Path   string
	Body   any
	Params url.Values
}

// Response is the raw outcome of a Request.
type Response struct {
	StatusCode int
	Body       []byte
}

// Pipeline sends authenticated requests to the Createathon API.
// It reads the access token from the credential store on every call, so
// a login or logout elsewhere takes effect on the next request without
// re-wiring. A 401 triggers at most one refresh-and-retry per request;
// concurrent 401s share a single refresh (see refreshAccessToken).
type Pipeline struct {
	baseURL    string
	httpClient *http.Client
	store      domain.CredentialStore
	limiter    *rate.Limiter

	refreshMu sync.Mutex
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Pipeline) { p.httpClient = c }
}

// WithRateLimit caps outbound requests at rps with the given burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(p *Pipeline) { p.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// New creates a Pipeline against baseURL using store for credentials.
func New(baseURL string, store domain.CredentialStore, opts ...Option) *Pipeline {
	p := &Pipeline{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		store:      store,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Do sends req and returns the raw response. Non-2xx responses return
// both the response and the decoded *APIError. A rejected access token is
// refreshed and the request re-sent exactly once; if the refresh is
// impossible both tokens are cleared and the error wraps
// ErrSessionTerminated.
func (p *Pipeline) Do(ctx context.Context, req Request) (*Response, error) {
	return p.do(ctx, req, 0)
}

func (p *Pipeline) do(ctx context.Context, req Request, attempt int) (*Response, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	requestID := uuid.NewString()
	logger := log.With().Str("request_id", requestID).Logger()
	ctx = logger.WithContext(ctx)

	ctx, span := telemetry.StartSpan(ctx, "http.request", trace.WithAttributes(
		attribute.String("layer", "transport"),
		attribute.String("http.method", req.Method),
		attribute.String("http.path", req.Path),
		attribute.Int("http.attempt", attempt),
	))
	defer span.End()

	token := p.store.Get(domain.KeyAccessToken)

	httpReq, err := p.build(ctx, req, token, requestID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	// Diagnostic side-channel only; never affects control flow.
	logger.Debug().
		Str("method", req.Method).
		Str("path", req.Path).
		Str("params", req.Params.Encode()).
		Int("attempt", attempt).
		Msg("API request")

	start := time.Now()
	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("send %s %s: %w", req.Method, req.Path, err)
	}

	body, readErr := io.ReadAll(httpResp.Body)
	httpResp.Body.Close()
	if readErr != nil {
		span.RecordError(readErr)
		return nil, fmt.Errorf("read %s %s response: %w", req.Method, req.Path, readErr)
	}

	duration := time.Since(start)
	observeRequest(req.Method, httpResp.StatusCode, duration.Seconds())
	span.SetAttributes(attribute.Int("http.status_code", httpResp.StatusCode))

	var event *zerolog.Event
	if httpResp.StatusCode >= 400 {
		event = logger.Warn()
	} else {
		event = logger.Debug()
	}
	event.
		Str("method", req.Method).
		Str("path", req.Path).
		Int("status", httpResp.StatusCode).
		Dur("duration", duration).
		Msg("API response")

	if httpResp.StatusCode == http.StatusUnauthorized && attempt == 0 {
		if _, refreshErr := p.refreshAccessToken(ctx, token); refreshErr != nil {
			p.store.Remove(domain.KeyAccessToken)
			p.store.Remove(domain.KeyRefreshToken)
			span.RecordError(refreshErr)
			logger.Warn().Err(refreshErr).Msg("Token refresh failed, session terminated")
			return nil, fmt.Errorf("refresh after 401 on %s %s (%v): %w",
				req.Method, req.Path, refreshErr, ErrSessionTerminated)
		}
		return p.do(ctx, req, 1)
	}

	resp := &Response{StatusCode: httpResp.StatusCode, Body: body}
	if httpResp.StatusCode >= 400 {
		return resp, decodeAPIError(httpResp.StatusCode, body)
	}
	return resp, nil
}

// DoJSON sends a request and decodes a successful response into out.
// out may be nil when the caller only cares about success.
func (p *Pipeline) DoJSON(ctx context.Context, method, path string, params url.Values, body, out any) error {
	resp, err := p.Do(ctx, Request{Method: method, Path: path, Body: body, Params: params})
	if err != nil {
		return err
	}
	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

// build assembles the http.Request for one attempt.
func (p *Pipeline) build(ctx context.Context, req Request, token, requestID string) (*http.Request, error) {
	u := p.baseURL + req.Path
	if len(req.Params) > 0 {
		u += "?" + req.Params.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s body: %w", req.Method, req.Path, err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u, body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", req.Method, req.Path, err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(RequestIDHeader, requestID)
	if token != "" {
		httpReq.Header.Set("Authorization", "Token "+token)
	}
	return httpReq, nil
}

// refreshAccessToken exchanges the stored refresh token for a new access
// token and persists it. usedToken is the access token the failed request
// carried: when the stored token already differs, another in-flight
// request won the refresh while we waited on the lock, so the exchange is
// skipped and the fresh token reused. This coalesces concurrent 401s into
// a single refresh call.
func (p *Pipeline) refreshAccessToken(ctx context.Context, usedToken string) (string, error) {
	p.refreshMu.Lock()
	defer p.refreshMu.Unlock()

	if current := p.store.Get(domain.KeyAccessToken); current != "" && current != usedToken {
		refreshTotal.WithLabelValues(refreshOutcomeCoalesced).Inc()
		return current, nil
	}

	refreshToken := p.store.Get(domain.KeyRefreshToken)
	if refreshToken == "" {
		refreshTotal.WithLabelValues(refreshOutcomeFailed).Inc()
		return "", errors.New("no refresh token")
	}

	ctx, span := telemetry.StartSpan(ctx, "auth.refresh", trace.WithAttributes(
		attribute.String("layer", "transport"),
	))
	defer span.End()

	payload, err := json.Marshal(map[string]string{"refresh_token": refreshToken})
	if err != nil {
		refreshTotal.WithLabelValues(refreshOutcomeFailed).Inc()
		return "", fmt.Errorf("encode refresh body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+refreshPath, bytes.NewReader(payload))
	if err != nil {
		refreshTotal.WithLabelValues(refreshOutcomeFailed).Inc()
		return "", fmt.Errorf("build refresh request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		refreshTotal.WithLabelValues(refreshOutcomeFailed).Inc()
		return "", fmt.Errorf("send refresh request: %w", err)
	}

	body, readErr := io.ReadAll(httpResp.Body)
	httpResp.Body.Close()
	if readErr != nil {
		refreshTotal.WithLabelValues(refreshOutcomeFailed).Inc()
		return "", fmt.Errorf("read refresh response: %w", readErr)
	}

	if httpResp.StatusCode != http.StatusOK {
		span.SetAttributes(attribute.Bool("auth.refresh_success", false))
		refreshTotal.WithLabelValues(refreshOutcomeFailed).Inc()
		return "", decodeAPIError(httpResp.StatusCode, body)
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		refreshTotal.WithLabelValues(refreshOutcomeFailed).Inc()
		return "", fmt.Errorf("decode refresh response: %w", err)
	}
	if out.Token == "" {
		refreshTotal.WithLabelValues(refreshOutcomeFailed).Inc()
		return "", errors.New("refresh response missing token")
	}

	p.store.Set(domain.KeyAccessToken, out.Token)
	span.SetAttributes(attribute.Bool("auth.refresh_success", true))
	refreshTotal.WithLabelValues(refreshOutcomeSuccess).Inc()
	zerolog.Ctx(ctx).Info().Msg("Access token refreshed")

	return out.Token, nil
}
