package telemetry

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// MaxErrorMessageLen bounds error text in traces and completion logs so a
// multi-kilobyte provider body never lands in a metrics pipeline.
const MaxErrorMessageLen = 200

// Sink receives telemetry. Implementations must be safe for concurrent
// use; Record is called on request goroutines and must not block.
type Sink interface {
	Record(ProviderTrace)
	RecordCompletion(CompletionLog)
}

var (
	sinkOnce sync.Once
	sink     atomic.Pointer[sinkHolder]
)

type sinkHolder struct{ s Sink }

// SetSink installs the process-wide sink. The first call wins; later calls
// are ignored and return false. When no sink is installed, Emit and
// EmitCompletion are no-ops.
func SetSink(s Sink) bool {
	set := false
	sinkOnce.Do(func() {
		sink.Store(&sinkHolder{s: s})
		set = true
	})
	return set
}

func current() Sink {
	h := sink.Load()
	if h == nil {
		return nil
	}
	return h.s
}

// Emit delivers a trace to the installed sink, truncating the error
// message first.
func Emit(t ProviderTrace) {
	s := current()
	if s == nil {
		return
	}
	t.ErrorMessage = Truncate(t.ErrorMessage, MaxErrorMessageLen)
	s.Record(t)
}

// EmitCompletion delivers a completion log to the installed sink.
func EmitCompletion(l CompletionLog) {
	s := current()
	if s == nil {
		return
	}
	l.ErrorMessage = Truncate(l.ErrorMessage, MaxErrorMessageLen)
	s.RecordCompletion(l)
}

// Truncate cuts s to at most n bytes, appending "…" when it had to cut.
// The cut lands on a rune boundary.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && s[cut]&0xC0 == 0x80 {
		cut--
	}
	return s[:cut] + "…"
}

// SlogSink logs traces and completions through slog. Failed calls log at
// Warn, successes at Debug.
type SlogSink struct {
	Logger *slog.Logger
}

func (s SlogSink) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s SlogSink) Record(t ProviderTrace) {
	attrs := []any{
		KeyProvider, t.Provider,
		KeyModel, t.Model,
		KeyRequestID, t.RequestID,
		KeyProviderReqID, t.ProviderRequestID,
		KeyLatencyMS, t.LatencyMS,
	}
	if t.OK {
		s.logger().Debug("provider call", attrs...)
		return
	}
	attrs = append(attrs, KeyErrorKind, t.ErrorKind, KeyErrorMessage, t.ErrorMessage)
	s.logger().Warn("provider call failed", attrs...)
}

func (s SlogSink) RecordCompletion(l CompletionLog) {
	s.logger().Debug("completion",
		KeyProvider, l.Provider,
		KeyModel, l.Model,
		KeyRequestID, l.RequestID,
		KeyFinishReason, l.StopReason,
		KeyLatencyMS, l.LatencyMS,
	)
}
