// Package anthropic provides the Anthropic Messages provider.
// API Reference: https://docs.anthropic.com/en/api/messages
package anthropic

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/blueberrycongee/aiproxy/internal/httpclient"
	aierrors "github.com/blueberrycongee/aiproxy/pkg/errors"
	"github.com/blueberrycongee/aiproxy/pkg/provider"
	"github.com/blueberrycongee/aiproxy/pkg/types"
)

const (
	// ProviderName is the registry identifier.
	ProviderName = "anthropic"

	// DefaultBaseURL is the Anthropic API endpoint.
	DefaultBaseURL = "https://api.anthropic.com"

	apiVersion = "2023-06-01"

	// defaultMaxTokens applies when the caller did not set a budget;
	// Anthropic requires max_tokens on every request.
	defaultMaxTokens = 1024
)

// Provider implements chat over the Anthropic Messages API. Embeddings
// and streaming are not supported.
type Provider struct {
	apiKey  string
	baseURL string
	http    *httpclient.Client
}

// Option configures the provider.
type Option func(*Provider)

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(p *Provider) { p.apiKey = key }
}

// WithBaseURL overrides the default endpoint. Empty is ignored.
func WithBaseURL(url string) Option {
	return func(p *Provider) {
		if url != "" {
			p.baseURL = url
		}
	}
}

// WithHTTPClient sets the shared transport.
func WithHTTPClient(c *httpclient.Client) Option {
	return func(p *Provider) { p.http = c }
}

// New creates an Anthropic provider.
func New(opts ...Option) *Provider {
	p := &Provider{baseURL: DefaultBaseURL}
	for _, opt := range opts {
		opt(p)
	}
	if p.http == nil {
		p.http = httpclient.New(httpclient.Config{})
	}
	return p
}

func (*Provider) Name() string { return ProviderName }

// Capabilities reports chat only.
func (*Provider) Capabilities() []provider.Capability {
	return []provider.Capability{provider.CapabilityChat}
}

// Anthropic Messages wire types.

type wireContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type wireMessage struct {
	Role    string        `json:"role"`
	Content []wireContent `json:"content"`
}

type wireRequest struct {
	Model     string        `json:"model"`
	Messages  []wireMessage `json:"messages"`
	System    string        `json:"system,omitempty"`
	MaxTokens uint32        `json:"max_tokens"`

	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
}

type wireResponse struct {
	ID      string `json:"id"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason *string `json:"stop_reason"`
	Usage      *struct {
		InputTokens  *uint32 `json:"input_tokens"`
		OutputTokens *uint32 `json:"output_tokens"`
	} `json:"usage"`
}

// mapStop translates Anthropic stop reasons. Unknown reasons map to nil
// rather than Other: Anthropic adds reasons over time and a wrong guess
// is worse than none.
func mapStop(reason string) *types.StopReason {
	var r types.StopReason
	switch reason {
	case "end_turn":
		r = types.StopReasonEndTurn
	case "max_tokens":
		r = types.StopReasonLength
	case "tool_use":
		r = types.StopReasonToolUse
	case "stop_sequence":
		r = types.StopReasonStop
	default:
		return nil
	}
	return &r
}

// Chat performs a unary completion. System messages are joined into the
// top-level system field; tool messages are dropped.
func (p *Provider) Chat(ctx context.Context, req *types.ChatRequest) (*types.ChatResponse, error) {
	var systems []string
	var messages []wireMessage
	for _, m := range req.Messages {
		switch m.Role {
		case types.RoleSystem:
			systems = append(systems, m.Content)
		case types.RoleUser, types.RoleAssistant:
			messages = append(messages, wireMessage{
				Role:    string(m.Role),
				Content: []wireContent{{Type: "text", Text: m.Content}},
			})
		}
	}

	maxTokens := uint32(defaultMaxTokens)
	if req.MaxOutputTokens != nil {
		maxTokens = *req.MaxOutputTokens
		if maxTokens < 1 {
			maxTokens = 1
		}
	}

	payload := wireRequest{
		Model:       req.Model,
		Messages:    messages,
		System:      strings.Join(systems, "\n"),
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
	}

	headers := http.Header{}
	headers.Set("x-api-key", p.apiKey)
	headers.Set("anthropic-version", apiVersion)

	call := httpclient.Call{
		Provider:       ProviderName,
		Model:          req.Model,
		RequestID:      req.RequestID,
		TurnID:         provider.TurnID(req.RequestID),
		IdempotencyKey: req.IdempotencyKey,
	}

	var result wireResponse
	meta, err := p.http.PostJSON(ctx, call,
		strings.TrimSuffix(p.baseURL, "/")+"/v1/messages",
		headers, payload, &result)
	if err != nil {
		return nil, err
	}

	var text string
	for _, c := range result.Content {
		if c.Text != "" {
			text = c.Text
			break
		}
	}

	resp := &types.ChatResponse{
		Text:              text,
		Provider:          ProviderName,
		Model:             req.Model,
		ProviderRequestID: meta.ProviderRequestID,
		TurnID:            call.TurnID,
		CreatedAtMS:       time.Now().UnixMilli(),
		LatencyMS:         meta.LatencyMS,
	}
	if resp.ProviderRequestID == "" {
		resp.ProviderRequestID = result.ID
	}
	if result.StopReason != nil {
		resp.StopReason = mapStop(*result.StopReason)
	}
	if result.Usage != nil {
		resp.UsagePromptTokens = result.Usage.InputTokens
		resp.UsageCompletionTokens = result.Usage.OutputTokens
	}
	return resp, nil
}

// ChatStream is not supported; the Messages streaming dialect is not
// wired into the canonical bridge.
func (p *Provider) ChatStream(context.Context, *types.ChatRequest) (*types.EventStream, error) {
	return nil, aierrors.Validation("anthropic streaming is not supported")
}

// Embed is not supported.
func (p *Provider) Embed(context.Context, *types.EmbedRequest) (*types.EmbedResponse, error) {
	return nil, aierrors.Validation("anthropic embeddings are not supported")
}
