// Package router resolves model names to providers through an ordered
// list of regular expression rules.
package router

import (
	"regexp"

	"github.com/blueberrycongee/aiproxy/config"
	aierrors "github.com/blueberrycongee/aiproxy/pkg/errors"
	"github.com/blueberrycongee/aiproxy/pkg/provider"
	"github.com/blueberrycongee/aiproxy/providers"
)

type rule struct {
	re       *regexp.Regexp
	provider string
}

// Resolver matches model names against compiled rules, first match wins,
// falling back to the default provider.
type Resolver struct {
	rules    []rule
	fallback string
}

// New compiles the routing rules. Patterns are compiled eagerly so a bad
// config fails at startup, not on the first matching request.
func New(cfg config.RoutingCfg) (*Resolver, error) {
	r := &Resolver{fallback: cfg.Default}
	for _, rc := range cfg.Rules {
		re, err := regexp.Compile(rc.Model)
		if err != nil {
			return nil, aierrors.Validation("invalid routing regex '%s': %v", rc.Model, err)
		}
		r.rules = append(r.rules, rule{re: re, provider: rc.Provider})
	}
	return r, nil
}

// ProviderFor returns the provider name for model.
func (r *Resolver) ProviderFor(model string) string {
	for _, rule := range r.rules {
		if rule.re.MatchString(model) {
			return rule.provider
		}
	}
	return r.fallback
}

// SelectChat resolves model to a registered chat provider.
func (r *Resolver) SelectChat(reg *providers.Registry, model string) (provider.ChatProvider, error) {
	name := r.ProviderFor(model)
	p, ok := reg.Chat(name)
	if !ok {
		return nil, aierrors.Validation("provider '%s' not found or lacks chat capability", name)
	}
	return p, nil
}

// SelectChatStream resolves model to a chat provider that supports
// streaming, so an unsupported stream fails at routing rather than on
// the provider call.
func (r *Resolver) SelectChatStream(reg *providers.Registry, model string) (provider.ChatProvider, error) {
	name := r.ProviderFor(model)
	p, ok := reg.Chat(name)
	if !ok || !reg.Has(name, provider.CapabilityChatStream) {
		return nil, aierrors.Validation("provider '%s' not found or lacks chat_stream capability", name)
	}
	return p, nil
}

// SelectEmbed resolves model to a registered embed provider.
func (r *Resolver) SelectEmbed(reg *providers.Registry, model string) (provider.EmbedProvider, error) {
	name := r.ProviderFor(model)
	p, ok := reg.Embed(name)
	if !ok {
		return nil, aierrors.Validation("provider '%s' not found or lacks embed capability", name)
	}
	return p, nil
}
