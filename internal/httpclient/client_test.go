package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	aierrors "github.com/blueberrycongee/aiproxy/pkg/errors"
	"github.com/blueberrycongee/aiproxy/telemetry"
)

var captured = telemetry.NewCaptureSink()

func init() {
	telemetry.SetSink(captured)
}

func newTestClient() *Client {
	return New(Config{RetryBase: time.Millisecond})
}

type echoOut struct {
	Value string `json:"value"`
}

func TestPostJSONDecodesAndEmitsOneTrace(t *testing.T) {
	captured.Reset()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ai-proxy/0.1", r.Header.Get("User-Agent"))
		assert.Equal(t, "req-1", r.Header.Get("X-Request-Id"))
		assert.Equal(t, "turn-1", r.Header.Get("X-Turn-Id"))
		assert.Equal(t, "0", r.Header.Get("X-Retry-Attempt"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Header().Set("x-request-id", "upstream-9")
		w.Write([]byte(`{"value":"ok"}`))
	}))
	defer srv.Close()

	call := Call{Provider: "openai", Model: "m", RequestID: "req-1", TurnID: "turn-1"}
	var out echoOut
	meta, err := newTestClient().PostJSON(context.Background(), call, srv.URL, nil, map[string]string{"x": "y"}, &out)
	require.NoError(t, err)

	assert.Equal(t, "ok", out.Value)
	assert.Equal(t, http.StatusOK, meta.Status)
	assert.Equal(t, "upstream-9", meta.ProviderRequestID)

	traces := captured.Traces()
	require.Len(t, traces, 1)
	assert.True(t, traces[0].OK)
	assert.Equal(t, "openai", traces[0].Provider)
	assert.Equal(t, "upstream-9", traces[0].ProviderRequestID)
}

func TestPostJSONMaps429WithNumericRetryAfter(t *testing.T) {
	captured.Reset()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	var out echoOut
	_, err := newTestClient().PostJSON(context.Background(), Call{Provider: "openai"}, srv.URL, nil, struct{}{}, &out)

	e, ok := aierrors.As(err)
	require.True(t, ok)
	assert.Equal(t, aierrors.KindRateLimited, e.Kind)
	require.NotNil(t, e.RetryAfter)
	assert.Equal(t, uint64(7), *e.RetryAfter)

	traces := captured.Traces()
	require.Len(t, traces, 1)
	assert.Equal(t, "http_error", traces[0].ErrorKind)
}

func TestPostJSONIgnoresHTTPDateRetryAfter(t *testing.T) {
	captured.Reset()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "Wed, 21 Oct 2026 07:28:00 GMT")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	var out echoOut
	_, err := newTestClient().PostJSON(context.Background(), Call{Provider: "p"}, srv.URL, nil, struct{}{}, &out)

	e, ok := aierrors.As(err)
	require.True(t, ok)
	assert.Equal(t, aierrors.KindRateLimited, e.Kind)
	assert.Nil(t, e.RetryAfter)
}

func TestPostJSONMaps5xxToUnavailable(t *testing.T) {
	captured.Reset()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	var out echoOut
	_, err := newTestClient().PostJSON(context.Background(), Call{Provider: "anthropic"}, srv.URL, nil, struct{}{}, &out)

	e, ok := aierrors.As(err)
	require.True(t, ok)
	assert.Equal(t, aierrors.KindProviderUnavailable, e.Kind)
	assert.Equal(t, "anthropic", e.Provider)
}

func TestPostJSONTruncatesErrorBody(t *testing.T) {
	captured.Reset()

	body := strings.Repeat("x", 1000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(body))
	}))
	defer srv.Close()

	var out echoOut
	_, err := newTestClient().PostJSON(context.Background(), Call{Provider: "p"}, srv.URL, nil, struct{}{}, &out)

	e, ok := aierrors.As(err)
	require.True(t, ok)
	assert.Equal(t, aierrors.KindProviderError, e.Kind)
	assert.Equal(t, "400", e.Code)
	assert.Equal(t, strings.Repeat("x", 300)+"…", e.Message)
}

func TestPostJSONMapsBadSuccessBodyToDecodeError(t *testing.T) {
	captured.Reset()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	var out echoOut
	_, err := newTestClient().PostJSON(context.Background(), Call{Provider: "p"}, srv.URL, nil, struct{}{}, &out)

	e, ok := aierrors.As(err)
	require.True(t, ok)
	assert.Equal(t, aierrors.KindProviderError, e.Kind)
	assert.Equal(t, "200", e.Code)
	assert.True(t, strings.HasPrefix(e.Message, "json decode error:"))

	traces := captured.Traces()
	require.Len(t, traces, 1)
	assert.Equal(t, "decode_error", traces[0].ErrorKind)
}

func TestPostJSONTransportErrorIsUnavailable(t *testing.T) {
	captured.Reset()

	var out echoOut
	_, err := newTestClient().PostJSON(context.Background(), Call{Provider: "p"}, "http://127.0.0.1:1", nil, struct{}{}, &out)

	e, ok := aierrors.As(err)
	require.True(t, ok)
	assert.Equal(t, aierrors.KindProviderUnavailable, e.Kind)
}

func TestProviderRequestIDHeaderOrder(t *testing.T) {
	h := http.Header{}
	h.Set("x-amz-request-id", "amz")
	h.Set("request-id", "plain")
	assert.Equal(t, "plain", providerRequestID(h))

	h = http.Header{}
	h.Set("x-cdn-request-id", "cdn")
	assert.Equal(t, "cdn", providerRequestID(h))

	assert.Equal(t, "", providerRequestID(http.Header{}))
}

func TestRetriesOnlyWithIdempotencyKey(t *testing.T) {
	captured.Reset()

	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	var out echoOut
	_, err := newTestClient().PostJSON(context.Background(), Call{Provider: "p"}, srv.URL, nil, struct{}{}, &out)
	require.Error(t, err)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestRetryRecoversWithIdempotencyKey(t *testing.T) {
	captured.Reset()

	var attempts atomic.Int32
	var retryHeaders []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := attempts.Add(1)
		retryHeaders = append(retryHeaders, r.Header.Get("X-Retry-Attempt"))
		assert.Equal(t, "idem-1", r.Header.Get("Idempotency-Key"))
		if n < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"value":"finally"}`))
	}))
	defer srv.Close()

	var out echoOut
	call := Call{Provider: "p", IdempotencyKey: "idem-1"}
	_, err := newTestClient().PostJSON(context.Background(), call, srv.URL, nil, struct{}{}, &out)
	require.NoError(t, err)

	assert.Equal(t, "finally", out.Value)
	assert.Equal(t, int32(3), attempts.Load())
	assert.Equal(t, []string{"0", "1", "2"}, retryHeaders)

	// One call, one trace, retries included.
	assert.Len(t, captured.Traces(), 1)
}

func TestRetryGivesUpAfterMaxAttempts(t *testing.T) {
	captured.Reset()

	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusGatewayTimeout)
	}))
	defer srv.Close()

	var out echoOut
	call := Call{Provider: "p", IdempotencyKey: "idem-2"}
	_, err := newTestClient().PostJSON(context.Background(), call, srv.URL, nil, struct{}{}, &out)

	e, ok := aierrors.As(err)
	require.True(t, ok)
	assert.Equal(t, aierrors.KindProviderUnavailable, e.Kind)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestRetryDoesNotResendNonRetryableStatus(t *testing.T) {
	captured.Reset()

	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	var out echoOut
	call := Call{Provider: "p", IdempotencyKey: "idem-3"}
	_, err := newTestClient().PostJSON(context.Background(), call, srv.URL, nil, struct{}{}, &out)
	require.Error(t, err)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestBackoffCapsDelay(t *testing.T) {
	c := New(Config{RetryBase: time.Second})
	start := time.Now()
	// attempt 4 would be 16s uncapped; Retry-After of 0 short-circuits.
	zero := uint64(0)
	require.NoError(t, c.backoff(context.Background(), 4, &zero))
	assert.Less(t, time.Since(start), time.Second)
}
