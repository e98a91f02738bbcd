// Package aiproxy is a provider-agnostic client-side proxy for LLM APIs.
//
// It normalizes requests into one canonical model, routes them to a
// provider via regex rules, and returns canonical responses and stream
// events, so application code never sees a provider wire format. OpenAI,
// OpenRouter, and Anthropic adapters ship in providers/; a null provider
// keeps everything runnable offline.
//
// Basic usage:
//
//	client, err := aiproxy.New()
//	if err != nil {
//		log.Fatal(err)
//	}
//	resp, err := client.Chat(ctx, &aiproxy.ChatRequest{
//		Model:    "gpt-4o-mini",
//		Messages: []aiproxy.ChatMessage{{Role: aiproxy.RoleUser, Content: "hello"}},
//	})
package aiproxy

import "github.com/blueberrycongee/aiproxy/pkg/types"

// Version is the library version, also sent as part of telemetry by
// hosts that want it.
const Version = "0.1.0"

// Re-exported canonical types, so typical callers only import the root
// package.
type (
	ChatRequest   = types.ChatRequest
	ChatResponse  = types.ChatResponse
	ChatMessage   = types.ChatMessage
	EmbedRequest  = types.EmbedRequest
	EmbedResponse = types.EmbedResponse
	Role          = types.Role
	StopReason    = types.StopReason

	StreamEvent = types.StreamEvent
	EventStream = types.EventStream
	Delta       = types.Delta
	Usage       = types.Usage
	Stop        = types.Stop
	StreamError = types.StreamError
)

// Role and stop reason constants, re-exported.
const (
	RoleSystem    = types.RoleSystem
	RoleUser      = types.RoleUser
	RoleAssistant = types.RoleAssistant
	RoleTool      = types.RoleTool

	StopReasonStop          = types.StopReasonStop
	StopReasonLength        = types.StopReasonLength
	StopReasonToolUse       = types.StopReasonToolUse
	StopReasonEndTurn       = types.StopReasonEndTurn
	StopReasonContentFilter = types.StopReasonContentFilter
	StopReasonOther         = types.StopReasonOther
)
