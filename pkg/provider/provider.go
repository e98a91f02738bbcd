// Package provider defines the interfaces every adapter implements.
// Adapters accept canonical requests, translate to their wire format,
// call through the shared transport, and translate back. They never leak
// provider wire types to callers.
package provider

import (
	"context"

	"github.com/blueberrycongee/aiproxy/pkg/types"
)

// Capability names a verb a provider supports.
type Capability string

const (
	CapabilityChat       Capability = "chat"
	CapabilityChatStream Capability = "chat_stream"
	CapabilityEmbed      Capability = "embed"
	CapabilityTranscribe Capability = "transcribe"
	CapabilityModerate   Capability = "moderate"
	CapabilityRerank     Capability = "rerank"
)

// CapabilityReporter is implemented by providers that advertise their
// verbs explicitly. Registration falls back to interface-implied
// capabilities when a provider does not report.
type CapabilityReporter interface {
	Capabilities() []Capability
}

// ChatProvider serves chat completions, unary and streaming.
type ChatProvider interface {
	Name() string
	Chat(ctx context.Context, req *types.ChatRequest) (*types.ChatResponse, error)
	ChatStream(ctx context.Context, req *types.ChatRequest) (*types.EventStream, error)
}

// EmbedProvider serves embeddings.
type EmbedProvider interface {
	Name() string
	Embed(ctx context.Context, req *types.EmbedRequest) (*types.EmbedResponse, error)
}

// TurnID derives the turn identifier for telemetry: the caller's request
// id when present, else the literal "turn".
func TurnID(requestID string) string {
	if requestID == "" {
		return "turn"
	}
	return requestID
}
