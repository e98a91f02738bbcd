// Package telemetry carries per-call traces and per-completion logs from
// the transport and client to a pluggable sink. The module itself never
// persists anything; a host application installs a Sink once at startup
// and the proxy emits into it.
package telemetry

// ProviderTrace records one provider HTTP call or one SSE stream.
// Exactly one trace is emitted per transport operation.
type ProviderTrace struct {
	Provider          string
	Model             string
	TurnID            string
	RequestID         string
	ProviderRequestID string

	HTTPStatus int
	LatencyMS  uint64
	OK         bool

	TokensPrompt     *uint32
	TokensCompletion *uint32
	TokensTotal      *uint32

	FinishReason string

	// ErrorKind is a short per-site label ("http_error", "decode_error",
	// "provider_unavailable") or a provider error code.
	ErrorKind string
	// ErrorMessage is truncated to MaxErrorMessageLen on emit.
	ErrorMessage string
}

// CompletionLog records one finished chat completion, cached or live.
type CompletionLog struct {
	Provider          string
	Model             string
	RequestID         string
	TurnID            string
	ProviderRequestID string

	CreatedAtMS uint64
	LatencyMS   uint64

	Text       string
	StopReason string

	TokensPrompt     *uint32
	TokensCompletion *uint32
	TokensTotal      *uint32

	ErrorKind    string
	ErrorMessage string
}
