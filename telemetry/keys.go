package telemetry

// Attribute keys shared between traces, spans, and sinks. Downstream
// dashboards key on these exact strings.
const (
	KeyProvider         = "llm.provider"
	KeyModel            = "llm.model"
	KeyTurnID           = "turn.id"
	KeyRequestID        = "req.id"
	KeyProviderReqID    = "llm.req_id"
	KeyLatencyMS        = "latency.ms"
	KeyFinishReason     = "finish.reason"
	KeyTokensPrompt     = "tokens.prompt"
	KeyTokensCompletion = "tokens.completion"
	KeyTokensTotal      = "tokens.total"
	KeyErrorKind        = "error.kind"
	KeyErrorMessage     = "error.message"
)
