// Package httpclient is the single HTTP path to every provider. It owns
// timeouts, retry policy, header conventions, error mapping, SSE framing,
// and telemetry emission, so provider adapters stay thin translators.
package httpclient

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	aierrors "github.com/blueberrycongee/aiproxy/pkg/errors"
	"github.com/blueberrycongee/aiproxy/telemetry"
)

const (
	defaultConnectTimeout = 5 * time.Second
	defaultRequestTimeout = 60 * time.Second
	defaultRetryBase      = 200 * time.Millisecond

	userAgent = "ai-proxy/0.1"

	// maxRetries bounds re-sends after the first attempt. Retries happen
	// only when the caller supplied an idempotency key.
	maxRetries = 2
	backoffCap = 3 * time.Second

	maxErrorBodyLen = 300
)

// requestIDHeaders are checked in order; the first present wins.
var requestIDHeaders = []string{
	"x-request-id",
	"request-id",
	"x-amzn-requestid",
	"x-amz-request-id",
	"x-cdn-request-id",
}

// Config carries transport knobs, normally derived from config.HTTPCfg.
type Config struct {
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
	MaxIdlePerHost int

	// RetryBase overrides the backoff base. Tests set 1ms.
	RetryBase time.Duration

	Logger *slog.Logger
}

// Client is a provider-agnostic HTTP client.
type Client struct {
	hc        *http.Client
	retryBase time.Duration
	logger    *slog.Logger
	tracer    trace.Tracer
}

// New builds a Client. Zero-value Config fields fall back to defaults.
func New(cfg Config) *Client {
	connect := cfg.ConnectTimeout
	if connect <= 0 {
		connect = defaultConnectTimeout
	}
	request := cfg.RequestTimeout
	if request <= 0 {
		request = defaultRequestTimeout
	}
	retryBase := cfg.RetryBase
	if retryBase <= 0 {
		retryBase = defaultRetryBase
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	transport := &http.Transport{
		DialContext:       (&net.Dialer{Timeout: connect}).DialContext,
		ForceAttemptHTTP2: true,
	}
	if cfg.MaxIdlePerHost > 0 {
		transport.MaxIdleConnsPerHost = cfg.MaxIdlePerHost
	}

	return &Client{
		hc:        &http.Client{Transport: transport, Timeout: request},
		retryBase: retryBase,
		logger:    logger,
		tracer:    otel.Tracer("aiproxy/httpclient"),
	}
}

// Call identifies one logical provider operation for headers, telemetry,
// and retry policy.
type Call struct {
	Provider string
	Model    string

	RequestID      string
	TurnID         string
	IdempotencyKey string
}

// Meta is transport-level metadata about a completed call.
type Meta struct {
	Status            int
	ProviderRequestID string
	LatencyMS         uint64
}

// PostJSON sends body as JSON and decodes the 2xx response into out.
// Exactly one ProviderTrace is emitted per call, success or failure.
func (c *Client) PostJSON(ctx context.Context, call Call, url string, headers http.Header, body, out any) (Meta, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return Meta{}, aierrors.Other(err)
	}
	return c.doJSON(ctx, call, http.MethodPost, url, headers, payload, out)
}

// GetJSON fetches url and decodes the 2xx response into out.
func (c *Client) GetJSON(ctx context.Context, call Call, url string, headers http.Header, out any) (Meta, error) {
	return c.doJSON(ctx, call, http.MethodGet, url, headers, nil, out)
}

func (c *Client) doJSON(ctx context.Context, call Call, method, url string, headers http.Header, payload []byte, out any) (Meta, error) {
	ctx, span := c.startSpan(ctx, "http.request", call)
	defer span.End()

	start := time.Now()
	resp, err := c.do(ctx, call, method, url, headers, payload, false)
	if err != nil {
		latency := elapsedMS(start)
		c.emitError(call, Meta{LatencyMS: latency}, span, "provider_unavailable", err.Error())
		return Meta{LatencyMS: latency}, err
	}
	defer resp.Body.Close()

	meta := Meta{
		Status:            resp.StatusCode,
		ProviderRequestID: providerRequestID(resp.Header),
	}

	raw, readErr := io.ReadAll(resp.Body)
	meta.LatencyMS = elapsedMS(start)
	if readErr != nil {
		c.emitError(call, meta, span, "provider_unavailable", readErr.Error())
		return meta, aierrors.ProviderUnavailable(call.Provider)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text := string(raw)
		c.emitError(call, meta, span, "http_error", text)
		return meta, mapHTTPError(call.Provider, resp.StatusCode, resp.Header, text)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		msg := "json decode error: " + err.Error()
		c.emitError(call, meta, span, "decode_error", msg)
		return meta, aierrors.ProviderFailure(call.Provider, strconv.Itoa(resp.StatusCode), msg)
	}

	c.emitOK(call, meta, span)
	return meta, nil
}

// do runs the request, retrying transport failures and retryable statuses
// when an idempotency key authorizes re-sends. The response body of the
// final attempt is left open for the caller.
func (c *Client) do(ctx context.Context, call Call, method, url string, headers http.Header, payload []byte, stream bool) (*http.Response, error) {
	retriesLeft := 0
	if call.IdempotencyKey != "" {
		retriesLeft = maxRetries
	}

	for attempt := 0; ; attempt++ {
		req, err := c.buildRequest(ctx, call, method, url, headers, payload, stream, attempt)
		if err != nil {
			return nil, aierrors.Other(err)
		}

		resp, err := c.hc.Do(req)
		if err != nil {
			if attempt < retriesLeft {
				if sleepErr := c.backoff(ctx, attempt, nil); sleepErr != nil {
					return nil, aierrors.ProviderUnavailable(call.Provider)
				}
				continue
			}
			return nil, aierrors.ProviderUnavailable(call.Provider)
		}

		if retryableStatus(resp.StatusCode) && attempt < retriesLeft {
			retryAfter := parseRetryAfter(resp.Header)
			io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			if sleepErr := c.backoff(ctx, attempt, retryAfter); sleepErr != nil {
				return nil, aierrors.ProviderUnavailable(call.Provider)
			}
			continue
		}

		return resp, nil
	}
}

func (c *Client) buildRequest(ctx context.Context, call Call, method, url string, headers http.Header, payload []byte, stream bool, attempt int) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}
	if call.RequestID != "" {
		req.Header.Set("X-Request-Id", call.RequestID)
	}
	if call.TurnID != "" {
		req.Header.Set("X-Turn-Id", call.TurnID)
	}
	if call.IdempotencyKey != "" {
		req.Header.Set("Idempotency-Key", call.IdempotencyKey)
	}
	// Every try carries its 0-based index, so upstream logs can tell a
	// first attempt from a re-send.
	req.Header.Set("X-Retry-Attempt", strconv.Itoa(attempt))

	c.debugCurl(req, payload)
	return req, nil
}

// backoff sleeps min(base·2^attempt, cap), or the server's numeric
// Retry-After when present.
func (c *Client) backoff(ctx context.Context, attempt int, retryAfter *uint64) error {
	delay := c.retryBase << uint(attempt)
	if delay > backoffCap {
		delay = backoffCap
	}
	if retryAfter != nil {
		delay = time.Duration(*retryAfter) * time.Second
		if delay > backoffCap {
			delay = backoffCap
		}
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func retryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// parseRetryAfter returns the Retry-After header as seconds. Only the
// numeric form is honored; HTTP-dates are ignored.
func parseRetryAfter(h http.Header) *uint64 {
	v := h.Get("Retry-After")
	if v == "" {
		return nil
	}
	secs, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return nil
	}
	return &secs
}

func providerRequestID(h http.Header) string {
	for _, name := range requestIDHeaders {
		if v := h.Get(name); v != "" {
			return v
		}
	}
	return ""
}

// mapHTTPError turns a non-2xx status into the canonical taxonomy.
func mapHTTPError(provider string, status int, h http.Header, body string) error {
	switch {
	case status == http.StatusTooManyRequests:
		return aierrors.RateLimited(provider, parseRetryAfter(h))
	case status >= 500:
		return aierrors.ProviderUnavailable(provider)
	default:
		return aierrors.ProviderFailure(provider, strconv.Itoa(status), truncateBody(body))
	}
}

// truncateBody bounds provider error bodies carried inside error values.
func truncateBody(s string) string {
	if len(s) <= maxErrorBodyLen {
		return s
	}
	cut := maxErrorBodyLen
	for cut > 0 && s[cut]&0xC0 == 0x80 {
		cut--
	}
	return s[:cut] + "…"
}

func (c *Client) startSpan(ctx context.Context, name string, call Call) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String(telemetry.KeyProvider, call.Provider),
		attribute.String(telemetry.KeyModel, call.Model),
		attribute.String(telemetry.KeyRequestID, call.RequestID),
		attribute.String(telemetry.KeyTurnID, call.TurnID),
	))
}

func (c *Client) emitOK(call Call, meta Meta, span trace.Span) {
	span.SetAttributes(
		attribute.Int("http.status", meta.Status),
		attribute.Int64(telemetry.KeyLatencyMS, int64(meta.LatencyMS)),
	)
	telemetry.Emit(telemetry.ProviderTrace{
		Provider:          call.Provider,
		Model:             call.Model,
		TurnID:            call.TurnID,
		RequestID:         call.RequestID,
		ProviderRequestID: meta.ProviderRequestID,
		HTTPStatus:        meta.Status,
		LatencyMS:         meta.LatencyMS,
		OK:                true,
	})
}

func (c *Client) emitError(call Call, meta Meta, span trace.Span, kind, message string) {
	message = telemetry.Truncate(message, telemetry.MaxErrorMessageLen)
	span.SetAttributes(
		attribute.Int("http.status", meta.Status),
		attribute.Int64(telemetry.KeyLatencyMS, int64(meta.LatencyMS)),
		attribute.String(telemetry.KeyErrorKind, kind),
		attribute.String(telemetry.KeyErrorMessage, message),
	)
	span.SetStatus(codes.Error, kind)
	telemetry.Emit(telemetry.ProviderTrace{
		Provider:          call.Provider,
		Model:             call.Model,
		TurnID:            call.TurnID,
		RequestID:         call.RequestID,
		ProviderRequestID: meta.ProviderRequestID,
		HTTPStatus:        meta.Status,
		LatencyMS:         meta.LatencyMS,
		ErrorKind:         kind,
		ErrorMessage:      message,
	})
}

func elapsedMS(start time.Time) uint64 {
	ms := time.Since(start).Milliseconds()
	if ms < 0 {
		return 0
	}
	return uint64(ms)
}
