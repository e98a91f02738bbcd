// Package openai provides the OpenAI provider.
// API Reference: https://platform.openai.com/docs/api-reference
package openai

import (
	"strings"

	"github.com/blueberrycongee/aiproxy/internal/secret"
	aierrors "github.com/blueberrycongee/aiproxy/pkg/errors"
	"github.com/blueberrycongee/aiproxy/pkg/provider"
	"github.com/blueberrycongee/aiproxy/providers/openaicompat"
)

const (
	// ProviderName is the registry identifier.
	ProviderName = "openai"

	// DefaultBaseURL is the default OpenAI API endpoint.
	DefaultBaseURL = "https://api.openai.com"

	minKeyLen        = 40
	keyPrefix        = "sk-"
	projectKeyPrefix = "sk-proj-"
)

var providerInfo = openaicompat.Info{
	Name:           ProviderName,
	DefaultBaseURL: DefaultBaseURL,
}

// Provider wraps the OpenAI-compatible core with OpenAI headers and key
// validation.
type Provider struct {
	*openaicompat.Provider
}

// New creates an OpenAI provider. Organization and project, when set, are
// sent as OpenAI-Organization and OpenAI-Project on every request.
func New(opts ...openaicompat.Option) *Provider {
	return &Provider{Provider: openaicompat.New(providerInfo, opts...)}
}

// WithOrganization sets the OpenAI-Organization header.
func WithOrganization(org string) openaicompat.Option {
	return openaicompat.WithHeader("OpenAI-Organization", org)
}

// WithProject sets the OpenAI-Project header.
func WithProject(project string) openaicompat.Option {
	return openaicompat.WithHeader("OpenAI-Project", project)
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
		return aierrors.Validation("invalid openai api key %s: must start with %q and be at least %d characters",
			secret.RedactTail(key), keyPrefix, minKeyLen)
	}
	return nil
}

// ValidateProjectKey requires a project id for project-scoped keys
// (sk-proj-), because OpenAI rejects them without one and the upstream
// failure mode is a confusing 401. Callers apply it only when routing
// can actually reach this provider.
func ValidateProjectKey(key, project string) error {
	if strings.HasPrefix(key, projectKeyPrefix) && project == "" {
		return aierrors.Validation("openai project key %s requires a project id", secret.RedactTail(key))
	}
	return nil
}
