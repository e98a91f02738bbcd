// Package types defines the canonical request/response model shared by
// every provider adapter. Adapters translate between these types and
// provider wire formats; nothing outside an adapter ever sees a
// provider-specific shape.
package types

import (
	"github.com/goccy/go-json"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Valid reports whether r is one of the canonical roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

// StopReason is the canonical, provider-neutral reason a completion ended.
type StopReason string

const (
	StopReasonStop          StopReason = "stop"
	StopReasonLength        StopReason = "length"
	StopReasonToolUse       StopReason = "tool_use"
	StopReasonEndTurn       StopReason = "end_turn"
	StopReasonContentFilter StopReason = "content_filter"
	StopReasonOther         StopReason = "other"
)

// StopReasonFromFinish maps an OpenAI-style finish_reason string onto the
// canonical set. Unknown values collapse to StopReasonOther; callers that
// saw no finish_reason at all should keep nil instead of calling this.
func StopReasonFromFinish(finish string) StopReason {
	switch finish {
	case "stop":
		return StopReasonStop
	case "length":
		return StopReasonLength
	case "content_filter":
		return StopReasonContentFilter
	case "tool_calls":
		return StopReasonToolUse
	default:
		return StopReasonOther
	}
}

// ChatMessage is a single turn of conversation.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the provider-agnostic chat completion request.
//
// Pointer fields distinguish "absent" from zero: an absent temperature is
// defaulted during normalization, an explicit 0 is clamped and kept.
// String fields treat "" as absent.
type ChatRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`

	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`

	// Metadata is carried opaquely; the proxy never interprets it.
	Metadata json.RawMessage `json:"metadata,omitempty"`

	ClientKey      string `json:"client_key,omitempty"`
	RequestID      string `json:"request_id,omitempty"`
	TraceID        string `json:"trace_id,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`

	MaxOutputTokens *uint32  `json:"max_output_tokens,omitempty"`
	StopSequences   []string `json:"stop_sequences,omitempty"`
}

// Clone returns a deep copy; normalization mutates the copy, never the
// caller's request.
func (r *ChatRequest) Clone() *ChatRequest {
	out := *r
	out.Messages = make([]ChatMessage, len(r.Messages))
	copy(out.Messages, r.Messages)
	if r.Temperature != nil {
		t := *r.Temperature
		out.Temperature = &t
	}
	if r.TopP != nil {
		p := *r.TopP
		out.TopP = &p
	}
	if r.MaxOutputTokens != nil {
		m := *r.MaxOutputTokens
		out.MaxOutputTokens = &m
	}
	if r.StopSequences != nil {
		out.StopSequences = append([]string(nil), r.StopSequences...)
	}
	if r.Metadata != nil {
		out.Metadata = append(json.RawMessage(nil), r.Metadata...)
	}
	return &out
}

// ChatResponse is the provider-agnostic chat completion result.
type ChatResponse struct {
	Text     string `json:"text"`
	Provider string `json:"provider"`
	Model    string `json:"model"`

	UsagePromptTokens     *uint32 `json:"usage_prompt_tokens,omitempty"`
	UsageCompletionTokens *uint32 `json:"usage_completion_tokens,omitempty"`

	StopReason *StopReason `json:"stop_reason,omitempty"`

	// Cached marks responses served from the response cache rather than
	// a live provider call.
	Cached bool `json:"cached"`

	ProviderRequestID string `json:"provider_request_id,omitempty"`

	// TranscriptID is set by transcript-writing hosts, never by adapters.
	TranscriptID string `json:"transcript_id,omitempty"`

	// TurnID correlates the response with logs and traces for one
	// user/assistant round trip.
	TurnID string `json:"turn_id,omitempty"`

	CreatedAtMS int64  `json:"created_at_ms"`
	LatencyMS   uint64 `json:"latency_ms"`
}
