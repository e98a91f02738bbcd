package aiproxy

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/blueberrycongee/aiproxy/caches/local"
	"github.com/blueberrycongee/aiproxy/config"
	"github.com/blueberrycongee/aiproxy/internal/httpclient"
	"github.com/blueberrycongee/aiproxy/internal/normalize"
	"github.com/blueberrycongee/aiproxy/pkg/cache"
	aierrors "github.com/blueberrycongee/aiproxy/pkg/errors"
	"github.com/blueberrycongee/aiproxy/pkg/provider"
	"github.com/blueberrycongee/aiproxy/pkg/types"
	"github.com/blueberrycongee/aiproxy/providers"
	"github.com/blueberrycongee/aiproxy/router"
	"github.com/blueberrycongee/aiproxy/telemetry"
)

// Client is the provider-agnostic entry point. Every request flows
// normalize, route, cache, provider; responses come back in canonical
// form regardless of which upstream served them.
type Client struct {
	cfg      *config.Config
	registry *providers.Registry
	resolver *router.Resolver
	store    cache.Cache
	logger   *slog.Logger
}

// New builds a client from options. With no options it uses default
// config, env-driven providers, and an in-process cache.
func New(opts ...Option) (*Client, error) {
	cc := defaultClientConfig()
	for _, opt := range opts {
		opt(cc)
	}
	if cc.Config == nil {
		cc.Config = config.Default()
	}

	transport := cc.transport
	if transport == nil {
		transport = httpclient.New(httpclient.Config{
			ConnectTimeout: cc.Config.HTTP.ConnectTimeout(),
			RequestTimeout: cc.Config.HTTP.RequestTimeout(),
			MaxIdlePerHost: derefInt(cc.Config.HTTP.PoolMaxIdlePerHost),
			Logger:         cc.Logger,
		})
	}

	registry := cc.Registry
	if registry == nil {
		var err error
		registry, err = providers.NewRegistry(cc.Config, transport)
		if err != nil {
			return nil, err
		}
	}

	resolver, err := router.New(cc.Config.Routing)
	if err != nil {
		return nil, err
	}

	store := cc.Cache
	if store == nil && !cc.disableCache {
		store = local.New(cc.Config.Cache.TTL())
	}

	return &Client{
		cfg:      cc.Config,
		registry: registry,
		resolver: resolver,
		store:    store,
		logger:   cc.Logger,
	}, nil
}

// Registry exposes the provider registry, mainly for capability checks.
func (c *Client) Registry() *providers.Registry { return c.registry }

// Close releases the cache backend.
func (c *Client) Close() error {
	if c.store != nil {
		return c.store.Close()
	}
	return nil
}

// Chat runs a unary completion.
func (c *Client) Chat(ctx context.Context, req *types.ChatRequest) (*types.ChatResponse, error) {
	if req == nil || req.Model == "" {
		return nil, aierrors.Validation("chat request needs a model")
	}

	norm := normalize.Chat(req)
	if norm.RequestID == "" {
		norm.RequestID = uuid.NewString()
	}

	p, err := c.resolver.SelectChat(c.registry, norm.Model)
	if err != nil {
		return nil, err
	}

	key := chatCacheKey(p.Name(), norm)
	if resp, ok := c.cachedChat(ctx, key); ok {
		return resp, nil
	}

	started := time.Now()
	resp, err := p.Chat(ctx, norm)
	if err != nil {
		return nil, err
	}

	c.logCompletion(norm, resp, started)
	c.storeChat(ctx, key, resp)
	return resp, nil
}

// ChatStream runs a streaming completion. Streams bypass the cache.
func (c *Client) ChatStream(ctx context.Context, req *types.ChatRequest) (*types.EventStream, error) {
	if req == nil || req.Model == "" {
		return nil, aierrors.Validation("chat request needs a model")
	}

	norm := normalize.Chat(req)
	if norm.RequestID == "" {
		norm.RequestID = uuid.NewString()
	}

	p, err := c.resolver.SelectChatStream(c.registry, norm.Model)
	if err != nil {
		return nil, err
	}
	return p.ChatStream(ctx, norm)
}

// Embed runs an embedding request.
func (c *Client) Embed(ctx context.Context, req *types.EmbedRequest) (*types.EmbedResponse, error) {
	if req == nil || req.Model == "" {
		return nil, aierrors.Validation("embed request needs a model")
	}

	norm := normalize.Embed(req)

	p, err := c.resolver.SelectEmbed(c.registry, norm.Model)
	if err != nil {
		return nil, err
	}

	key := embedCacheKey(p.Name(), norm)
	if c.store != nil {
		if raw, ok, cerr := c.store.Get(ctx, key); cerr == nil && ok {
			var resp types.EmbedResponse
			if json.Unmarshal(raw, &resp) == nil {
				resp.Cached = true
				return &resp, nil
			}
		}
	}

	resp, err := p.Embed(ctx, norm)
	if err != nil {
		return nil, err
	}

	if c.store != nil {
		if raw, merr := json.Marshal(resp); merr == nil {
			if cerr := c.store.Set(ctx, key, raw, c.cfg.Cache.TTL()); cerr != nil {
				c.logger.Warn("embed cache store failed", "error", cerr)
			}
		}
	}
	return resp, nil
}

func (c *Client) cachedChat(ctx context.Context, key string) (*types.ChatResponse, bool) {
	if c.store == nil {
		return nil, false
	}
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil || !ok {
		if err != nil {
			c.logger.Warn("chat cache lookup failed", "error", err)
		}
		return nil, false
	}
	var resp types.ChatResponse
	if json.Unmarshal(raw, &resp) != nil {
		return nil, false
	}
	resp.Cached = true
	return &resp, true
}

func (c *Client) storeChat(ctx context.Context, key string, resp *types.ChatResponse) {
	if c.store == nil {
		return
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if err := c.store.Set(ctx, key, raw, c.cfg.Cache.TTL()); err != nil {
		c.logger.Warn("chat cache store failed", "error", err)
	}
}

func (c *Client) logCompletion(req *types.ChatRequest, resp *types.ChatResponse, started time.Time) {
	log := telemetry.CompletionLog{
		Provider:          resp.Provider,
		Model:             resp.Model,
		RequestID:         req.RequestID,
		TurnID:            provider.TurnID(req.RequestID),
		ProviderRequestID: resp.ProviderRequestID,
		CreatedAtMS:       uint64(started.UnixMilli()),
		LatencyMS:         uint64(time.Since(started).Milliseconds()),
		Text:              resp.Text,
		TokensPrompt:      resp.UsagePromptTokens,
		TokensCompletion:  resp.UsageCompletionTokens,
	}
	if resp.StopReason != nil {
		log.StopReason = string(*resp.StopReason)
	}
	if resp.UsagePromptTokens != nil && resp.UsageCompletionTokens != nil {
		total := *resp.UsagePromptTokens + *resp.UsageCompletionTokens
		log.TokensTotal = &total
	}
	telemetry.EmitCompletion(log)
}

// chatCacheKey hashes the semantic content of a normalized request. Two
// requests that normalize identically share one cache entry.
func chatCacheKey(provider string, req *types.ChatRequest) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "chat\x00%s\x00%s\x00", provider, req.Model)
	for _, m := range req.Messages {
		fmt.Fprintf(h, "%s\x1f%s\x1e", m.Role, m.Content)
	}
	if req.Temperature != nil {
		fmt.Fprintf(h, "t%g\x00", *req.Temperature)
	}
	if req.TopP != nil {
		fmt.Fprintf(h, "p%g\x00", *req.TopP)
	}
	if req.MaxOutputTokens != nil {
		fmt.Fprintf(h, "m%d\x00", *req.MaxOutputTokens)
	}
	for _, s := range req.StopSequences {
		fmt.Fprintf(h, "s%s\x1e", s)
	}
	return fmt.Sprintf("aiproxy:chat:%016x", h.Sum64())
}

func embedCacheKey(provider string, req *types.EmbedRequest) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "embed\x00%s\x00%s\x00", provider, req.Model)
	for _, in := range req.Inputs {
		fmt.Fprintf(h, "%s\x1e", in)
	}
	return fmt.Sprintf("aiproxy:embed:%016x", h.Sum64())
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
