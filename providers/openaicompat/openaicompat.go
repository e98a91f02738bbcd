// Package openaicompat is the shared adapter core for providers that
// speak the OpenAI wire format. Vendor packages wrap it with their base
// URL, key shape, and extra headers.
package openaicompat

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/blueberrycongee/aiproxy/internal/httpclient"
	"github.com/blueberrycongee/aiproxy/internal/streaming"
	"github.com/blueberrycongee/aiproxy/pkg/provider"
	"github.com/blueberrycongee/aiproxy/pkg/types"
)

// Info carries the vendor-specific wiring.
type Info struct {
	// Name is the provider identifier ("openai", "openrouter").
	Name string
	// DefaultBaseURL is used when no override is configured.
	DefaultBaseURL string
	// ChatEndpoint defaults to "/v1/chat/completions".
	ChatEndpoint string
	// EmbedEndpoint defaults to "/v1/embeddings".
	EmbedEndpoint string
}

// Provider implements ChatProvider and EmbedProvider over the OpenAI
// wire format.
type Provider struct {
	info    Info
	apiKey  string
	baseURL string
	headers map[string]string
	http    *httpclient.Client
}

// Option configures a Provider.
type Option func(*Provider)

// WithAPIKey sets the bearer key.
func WithAPIKey(key string) Option {
	return func(p *Provider) { p.apiKey = key }
}

// WithBaseURL overrides the vendor default. Empty is ignored.
func WithBaseURL(url string) Option {
	return func(p *Provider) {
		if url != "" {
			p.baseURL = url
		}
	}
}

// WithHeader adds a static header to every request.
func WithHeader(key, value string) Option {
	return func(p *Provider) { p.headers[key] = value }
}

// WithHTTPClient sets the shared transport.
func WithHTTPClient(c *httpclient.Client) Option {
	return func(p *Provider) { p.http = c }
}

// New builds a Provider. A transport is created on demand when none was
// injected.
func New(info Info, opts ...Option) *Provider {
	p := &Provider{
		info:    info,
		baseURL: info.DefaultBaseURL,
		headers: make(map[string]string),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.http == nil {
		p.http = httpclient.New(httpclient.Config{})
	}
	return p
}

func (p *Provider) Name() string { return p.info.Name }

// Capabilities reports the full OpenAI-compatible surface. Vendor
// wrappers override this when they support less.
func (p *Provider) Capabilities() []provider.Capability {
	return []provider.Capability{
		provider.CapabilityChat,
		provider.CapabilityChatStream,
		provider.CapabilityEmbed,
	}
}

// BaseURL returns the effective base URL.
func (p *Provider) BaseURL() string { return p.baseURL }

func (p *Provider) endpoint(path, fallback string) string {
	if path == "" {
		path = fallback
	}
	return strings.TrimSuffix(p.baseURL, "/") + path
}

func (p *Provider) requestHeaders() http.Header {
	h := http.Header{}
	if p.apiKey != "" {
		h.Set("Authorization", "Bearer "+p.apiKey)
	}
	for k, v := range p.headers {
		h.Set(k, v)
	}
	return h
}

func (p *Provider) call(req *types.ChatRequest) httpclient.Call {
	return httpclient.Call{
		Provider:       p.info.Name,
		Model:          req.Model,
		RequestID:      req.RequestID,
		TurnID:         provider.TurnID(req.RequestID),
		IdempotencyKey: req.IdempotencyKey,
	}
}

type chatPayload struct {
	Model       string              `json:"model"`
	Messages    []types.ChatMessage `json:"messages"`
	Temperature *float64            `json:"temperature,omitempty"`
	TopP        *float64            `json:"top_p,omitempty"`
	MaxTokens   *uint32             `json:"max_tokens,omitempty"`
	Stop        []string            `json:"stop,omitempty"`

	Stream        bool           `json:"stream,omitempty"`
	StreamOptions *streamOptions `json:"stream_options,omitempty"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type usagePayload struct {
	PromptTokens     *uint32 `json:"prompt_tokens"`
	CompletionTokens *uint32 `json:"completion_tokens"`
}

type chatResult struct {
	ID      string `json:"id"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *usagePayload `json:"usage"`
}

func (p *Provider) chatPayload(req *types.ChatRequest) chatPayload {
	return chatPayload{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		MaxTokens:   req.MaxOutputTokens,
		Stop:        req.StopSequences,
	}
}

// Chat performs a unary completion.
func (p *Provider) Chat(ctx context.Context, req *types.ChatRequest) (*types.ChatResponse, error) {
	var result chatResult
	meta, err := p.http.PostJSON(ctx, p.call(req),
		p.endpoint(p.info.ChatEndpoint, "/v1/chat/completions"),
		p.requestHeaders(), p.chatPayload(req), &result)
	if err != nil {
		return nil, err
	}

	// Empty choices is a degenerate success: empty text, no stop reason.
	var text string
	var stop *types.StopReason
	if len(result.Choices) > 0 {
		choice := result.Choices[0]
		text = choice.Message.Content
		if choice.FinishReason != nil {
			reason := types.StopReasonFromFinish(*choice.FinishReason)
			stop = &reason
		}
	}

	resp := &types.ChatResponse{
		Text:              text,
		Provider:          p.info.Name,
		Model:             req.Model,
		StopReason:        stop,
		ProviderRequestID: firstNonEmpty(meta.ProviderRequestID, result.ID),
		TurnID:            provider.TurnID(req.RequestID),
		CreatedAtMS:       time.Now().UnixMilli(),
		LatencyMS:         meta.LatencyMS,
	}
	if result.Usage != nil {
		resp.UsagePromptTokens = result.Usage.PromptTokens
		resp.UsageCompletionTokens = result.Usage.CompletionTokens
	}
	return resp, nil
}

// ChatStream starts a streaming completion and bridges it to canonical
// events.
func (p *Provider) ChatStream(ctx context.Context, req *types.ChatRequest) (*types.EventStream, error) {
	payload := p.chatPayload(req)
	payload.Stream = true
	payload.StreamOptions = &streamOptions{IncludeUsage: true}

	sse, err := p.http.PostSSE(ctx, p.call(req),
		p.endpoint(p.info.ChatEndpoint, "/v1/chat/completions"),
		p.requestHeaders(), payload)
	if err != nil {
		return nil, err
	}
	return streaming.Bridge(sse), nil
}

type embedPayload struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResult struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed performs an embedding call.
func (p *Provider) Embed(ctx context.Context, req *types.EmbedRequest) (*types.EmbedResponse, error) {
	call := httpclient.Call{
		Provider:  p.info.Name,
		Model:     req.Model,
		RequestID: "",
		TurnID:    provider.TurnID(""),
	}

	var result embedResult
	if _, err := p.http.PostJSON(ctx, call,
		p.endpoint(p.info.EmbedEndpoint, "/v1/embeddings"),
		p.requestHeaders(), embedPayload{Model: req.Model, Input: req.Inputs}, &result); err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(result.Data))
	for i, d := range result.Data {
		vectors[i] = d.Embedding
	}
	return &types.EmbedResponse{
		Vectors:  vectors,
		Provider: p.info.Name,
		Model:    req.Model,
	}, nil
}

type modelsResult struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// ListModels fetches the provider's model catalog, mainly for smoke
// checks and capability discovery.
func (p *Provider) ListModels(ctx context.Context) ([]string, error) {
	call := httpclient.Call{Provider: p.info.Name, TurnID: provider.TurnID("")}

	var result modelsResult
	if _, err := p.http.GetJSON(ctx, call,
		p.endpoint("", "/v1/models"), p.requestHeaders(), &result); err != nil {
		return nil, err
	}

	models := make([]string, 0, len(result.Data))
	for _, m := range result.Data {
		models = append(models, m.ID)
	}
	return models, nil
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
