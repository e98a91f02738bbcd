// Package providers assembles the provider registry. Enablement is
// env-driven: a provider joins the registry when its key variable is set,
// and a present-but-malformed key fails the build. The null provider is
// always registered so the proxy works offline.
package providers

import (
	"os"
	"sort"

	"github.com/blueberrycongee/aiproxy/config"
	"github.com/blueberrycongee/aiproxy/internal/httpclient"
	"github.com/blueberrycongee/aiproxy/pkg/provider"
	"github.com/blueberrycongee/aiproxy/providers/anthropic"
	"github.com/blueberrycongee/aiproxy/providers/null"
	"github.com/blueberrycongee/aiproxy/providers/openai"
	"github.com/blueberrycongee/aiproxy/providers/openaicompat"
	"github.com/blueberrycongee/aiproxy/providers/openrouter"
)

// Environment variables consulted by NewRegistry. A config file can
// override the key variable per provider.
const (
	EnvOpenAIKey     = "OPENAI_API_KEY"
	EnvOpenAIBase    = "OPENAI_BASE"
	EnvOpenAIOrg     = "OPENAI_ORG"
	EnvOpenAIProject = "OPENAI_PROJECT"

	EnvOpenRouterKey  = "OPENROUTER_API_KEY"
	EnvOpenRouterBase = "OPENROUTER_BASE"

	EnvAnthropicKey = "ANTHROPIC_API_KEY"
)

// Registry maps provider names to their chat and embed implementations.
type Registry struct {
	chat  map[string]provider.ChatProvider
	embed map[string]provider.EmbedProvider
	caps  map[string][]provider.Capability
}

// NewRegistry builds a registry from config and environment. A missing
// key silently skips its provider; a malformed key is an error.
func NewRegistry(cfg *config.Config, transport *httpclient.Client) (*Registry, error) {
	r := &Registry{
		chat:  make(map[string]provider.ChatProvider),
		embed: make(map[string]provider.EmbedProvider),
		caps:  make(map[string][]provider.Capability),
	}

	n := null.New()
	r.RegisterChat(n)
	r.RegisterEmbed(n)

	if key := keyFor(cfg.Providers.OpenAI, EnvOpenAIKey); key != "" {
		project := os.Getenv(EnvOpenAIProject)
		if err := openai.ValidateKey(key); err != nil {
			return nil, err
		}
		// The project requirement only bites when routing can actually
		// send traffic to openai.
		if routesTo(cfg.Routing, openai.ProviderName) {
			if err := openai.ValidateProjectKey(key, project); err != nil {
				return nil, err
			}
		}
		opts := []openaicompat.Option{
			openaicompat.WithAPIKey(key),
			openaicompat.WithBaseURL(os.Getenv(EnvOpenAIBase)),
			openaicompat.WithHTTPClient(transport),
		}
		if org := os.Getenv(EnvOpenAIOrg); org != "" {
			opts = append(opts, openai.WithOrganization(org))
		}
		if project != "" {
			opts = append(opts, openai.WithProject(project))
		}
		p := openai.New(opts...)
		r.RegisterChat(p)
		r.RegisterEmbed(p)
	}

	if key := keyFor(cfg.Providers.OpenRouter, EnvOpenRouterKey); key != "" {
		if err := openrouter.ValidateKey(key); err != nil {
			return nil, err
		}
		p := openrouter.New(
			openaicompat.WithAPIKey(key),
			openaicompat.WithBaseURL(os.Getenv(EnvOpenRouterBase)),
			openaicompat.WithHTTPClient(transport),
		)
		r.RegisterChat(p)
		r.RegisterEmbed(p)
	}

	if key := keyFor(cfg.Providers.Anthropic, EnvAnthropicKey); key != "" {
		p := anthropic.New(
			anthropic.WithAPIKey(key),
			anthropic.WithHTTPClient(transport),
		)
		r.RegisterChat(p)
	}

	return r, nil
}

// routesTo reports whether routing can reach the named provider, by
// default or by rule.
func routesTo(rc config.RoutingCfg, name string) bool {
	if rc.Default == name {
		return true
	}
	for _, r := range rc.Rules {
		if r.Provider == name {
			return true
		}
	}
	return false
}

// keyFor resolves a provider's key, honoring an api_key_env override.
func keyFor(pc *config.ProviderCfg, defaultEnv string) string {
	env := defaultEnv
	if pc != nil && pc.APIKeyEnv != "" {
		env = pc.APIKeyEnv
	}
	return os.Getenv(env)
}

// RegisterChat adds (or replaces) a chat provider. Providers that report
// their capabilities decide their own streaming support; the rest are
// assumed to stream.
func (r *Registry) RegisterChat(p provider.ChatProvider) {
	r.chat[p.Name()] = p
	r.addCap(p.Name(), provider.CapabilityChat)
	if rep, ok := p.(provider.CapabilityReporter); ok {
		for _, c := range rep.Capabilities() {
			r.addCap(p.Name(), c)
		}
		return
	}
	r.addCap(p.Name(), provider.CapabilityChatStream)
}

// RegisterEmbed adds (or replaces) an embed provider.
func (r *Registry) RegisterEmbed(p provider.EmbedProvider) {
	r.embed[p.Name()] = p
	r.addCap(p.Name(), provider.CapabilityEmbed)
}

func (r *Registry) addCap(name string, c provider.Capability) {
	for _, have := range r.caps[name] {
		if have == c {
			return
		}
	}
	r.caps[name] = append(r.caps[name], c)
}

// Chat returns the named chat provider.
func (r *Registry) Chat(name string) (provider.ChatProvider, bool) {
	p, ok := r.chat[name]
	return p, ok
}

// Embed returns the named embed provider.
func (r *Registry) Embed(name string) (provider.EmbedProvider, bool) {
	p, ok := r.embed[name]
	return p, ok
}

// Capabilities returns what the named provider supports.
func (r *Registry) Capabilities(name string) []provider.Capability {
	return r.caps[name]
}

// Has reports whether the named provider supports c.
func (r *Registry) Has(name string, c provider.Capability) bool {
	for _, have := range r.caps[name] {
		if have == c {
			return true
		}
	}
	return false
}

// Names lists registered providers, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.caps))
	for name := range r.caps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
