// Package openrouter provides the OpenRouter provider.
// OpenRouter is OpenAI-compatible on the wire; only the endpoint, key
// shape, and defaults differ.
// API Reference: https://openrouter.ai/docs
package openrouter

import (
	"strings"

	"github.com/blueberrycongee/aiproxy/internal/secret"
	aierrors "github.com/blueberrycongee/aiproxy/pkg/errors"
	"github.com/blueberrycongee/aiproxy/pkg/provider"
	"github.com/blueberrycongee/aiproxy/providers/openaicompat"
)

const (
	// ProviderName is the registry identifier.
	ProviderName = "openrouter"

	// DefaultBaseURL is the default OpenRouter API endpoint.
	DefaultBaseURL = "https://openrouter.ai/api"

	minKeyLen = 20
	keyPrefix = "sk-or-"
)

var providerInfo = openaicompat.Info{
	Name:           ProviderName,
	DefaultBaseURL: DefaultBaseURL,
}

// Provider wraps the OpenAI-compatible core for OpenRouter.
type Provider struct {
	*openaicompat.Provider
}

// New creates an OpenRouter provider.
func New(opts ...openaicompat.Option) *Provider {
	return &Provider{Provider: openaicompat.New(providerInfo, opts...)}
}

// Capabilities reports chat, streaming, and embeddings.
func (*Provider) Capabilities() []provider.Capability {
	return []provider.Capability{
		provider.CapabilityChat,
		provider.CapabilityChatStream,
		provider.CapabilityEmbed,
	}
}

// ValidateKey checks the configured key shape. The returned error only
// ever contains a redacted key.
func ValidateKey(key string) error {
	if !strings.HasPrefix(key, keyPrefix) || len(key) < minKeyLen {
		return aierrors.Validation("invalid openrouter api key %s: must start with %q and be at least %d characters",
			secret.RedactTail(key), keyPrefix, minKeyLen)
	}
	return nil
}
