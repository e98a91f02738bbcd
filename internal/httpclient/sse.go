package httpclient

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	aierrors "github.com/blueberrycongee/aiproxy/pkg/errors"
	"github.com/blueberrycongee/aiproxy/telemetry"
)

// maxSSELineBuffer bounds an unterminated SSE line. A provider that
// streams 2 MiB without a newline is broken; fail instead of growing.
const maxSSELineBuffer = 2 << 20

// PostSSE sends body as JSON and returns the response as a line stream.
// The stream owns telemetry for the call: exactly one ProviderTrace is
// emitted when the stream ends, errors, or is closed, whichever happens
// first. A non-2xx response is mapped and emitted here, and no stream is
// returned.
func (c *Client) PostSSE(ctx context.Context, call Call, url string, headers http.Header, body any) (*SSEStream, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, aierrors.Other(err)
	}

	ctx, span := c.startSpan(ctx, "sse.stream", call)

	start := time.Now()
	resp, err := c.do(ctx, call, http.MethodPost, url, headers, payload, true)
	if err != nil {
		meta := Meta{LatencyMS: elapsedMS(start)}
		c.emitError(call, meta, span, "provider_unavailable", err.Error())
		span.End()
		return nil, err
	}

	meta := Meta{
		Status:            resp.StatusCode,
		ProviderRequestID: providerRequestID(resp.Header),
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		resp.Body.Close()
		meta.LatencyMS = elapsedMS(start)
		text := string(raw)
		c.emitError(call, meta, span, "http_error", text)
		span.End()
		return nil, mapHTTPError(call.Provider, resp.StatusCode, resp.Header, text)
	}

	return &SSEStream{
		client: c,
		call:   call,
		meta:   meta,
		span:   span,
		start:  start,
		body:   resp.Body,
	}, nil
}

// SSEStream yields SSE lines from an open response body. Lines are split
// on '\n' with a single trailing '\r' trimmed; a non-terminated tail is
// flushed once at EOF. Next and Close are safe to call from different
// goroutines, but Next itself is single-consumer.
type SSEStream struct {
	client *Client
	call   Call
	meta   Meta
	span   trace.Span
	start  time.Time
	body   io.ReadCloser

	pending     []byte
	tailFlushed bool
	done        atomic.Bool

	closeOnce sync.Once
	traceOnce sync.Once
}

// ProviderRequestID returns the upstream request id from the response
// headers, when the provider sent one.
func (s *SSEStream) ProviderRequestID() string { return s.meta.ProviderRequestID }

// Next returns the next line. io.EOF signals a clean end of stream. Any
// other error is terminal and already mapped to the canonical taxonomy.
func (s *SSEStream) Next() (string, error) {
	if s.done.Load() {
		return "", io.EOF
	}

	for {
		if i := bytes.IndexByte(s.pending, '\n'); i >= 0 {
			line := trimCR(s.pending[:i])
			s.pending = s.pending[i+1:]
			return string(line), nil
		}

		if len(s.pending) > maxSSELineBuffer {
			err := aierrors.ProviderFailure(s.call.Provider, "sse_buffer_overflow", "sse line exceeds buffer limit")
			s.fail("sse_buffer_overflow", err.Error())
			return "", err
		}

		chunk := make([]byte, 4096)
		n, err := s.body.Read(chunk)
		if n > 0 {
			s.pending = append(s.pending, chunk[:n]...)
			continue
		}
		if err == io.EOF {
			if len(s.pending) > 0 && !s.tailFlushed {
				s.tailFlushed = true
				line := trimCR(s.pending)
				s.pending = nil
				return string(line), nil
			}
			s.finishOK()
			return "", io.EOF
		}
		if err != nil {
			s.fail("provider_unavailable", err.Error())
			return "", aierrors.ProviderUnavailable(s.call.Provider)
		}
	}
}

// Close releases the connection. If the stream was abandoned before its
// natural end, the drop guard still emits the call's single trace.
func (s *SSEStream) Close() error {
	s.closeOnce.Do(func() { s.body.Close() })
	s.finishOK()
	return nil
}

func (s *SSEStream) finishOK() {
	s.done.Store(true)
	s.traceOnce.Do(func() {
		s.meta.LatencyMS = streamLatencyMS(s.start)
		s.client.emitOK(s.call, s.meta, s.span)
		s.span.End()
	})
}

func (s *SSEStream) fail(kind, message string) {
	s.done.Store(true)
	s.closeOnce.Do(func() { s.body.Close() })
	s.traceOnce.Do(func() {
		s.meta.LatencyMS = streamLatencyMS(s.start)
		message = telemetry.Truncate(message, telemetry.MaxErrorMessageLen)
		s.span.SetAttributes(
			attribute.Int("http.status", s.meta.Status),
			attribute.Int64(telemetry.KeyLatencyMS, int64(s.meta.LatencyMS)),
			attribute.String(telemetry.KeyErrorKind, kind),
			attribute.String(telemetry.KeyErrorMessage, message),
		)
		s.span.SetStatus(codes.Error, kind)
		telemetry.Emit(telemetry.ProviderTrace{
			Provider:          s.call.Provider,
			Model:             s.call.Model,
			TurnID:            s.call.TurnID,
			RequestID:         s.call.RequestID,
			ProviderRequestID: s.meta.ProviderRequestID,
			HTTPStatus:        s.meta.Status,
			LatencyMS:         s.meta.LatencyMS,
			ErrorKind:         kind,
			ErrorMessage:      message,
		})
		s.span.End()
	})
}

func trimCR(b []byte) []byte {
	if len(b) > 0 && b[len(b)-1] == '\r' {
		return b[:len(b)-1]
	}
	return b
}

// streamLatencyMS reports elapsed milliseconds, never below 1 so that a
// dropped stream is still visible in latency metrics.
func streamLatencyMS(start time.Time) uint64 {
	ms := time.Since(start).Milliseconds()
	if ms < 1 {
		return 1
	}
	return uint64(ms)
}
