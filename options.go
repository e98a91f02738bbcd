package aiproxy

import (
	"log/slog"

	"github.com/blueberrycongee/aiproxy/config"
	"github.com/blueberrycongee/aiproxy/internal/httpclient"
	"github.com/blueberrycongee/aiproxy/pkg/cache"
	"github.com/blueberrycongee/aiproxy/providers"
)

// ClientConfig collects everything New needs. Options mutate it; zero
// fields are filled with defaults.
type ClientConfig struct {
	Config   *config.Config
	Cache    cache.Cache
	Logger   *slog.Logger
	Registry *providers.Registry

	disableCache bool
	transport    *httpclient.Client
}

// Option configures the client.
type Option func(*ClientConfig)

// WithConfig supplies a loaded configuration. Without it the documented
// defaults apply.
func WithConfig(cfg *config.Config) Option {
	return func(c *ClientConfig) { c.Config = cfg }
}

// WithCache replaces the default in-process response cache.
func WithCache(store cache.Cache) Option {
	return func(c *ClientConfig) { c.Cache = store }
}

// WithoutCache disables response caching entirely.
func WithoutCache() Option {
	return func(c *ClientConfig) { c.disableCache = true }
}

// WithLogger sets the structured logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(c *ClientConfig) { c.Logger = logger }
}

// WithRegistry injects a pre-built provider registry, bypassing the
// env-driven build. Useful for custom providers.
func WithRegistry(reg *providers.Registry) Option {
	return func(c *ClientConfig) { c.Registry = reg }
}

// withTransport injects a transport; tests use it to shrink backoff.
func withTransport(t *httpclient.Client) Option {
	return func(c *ClientConfig) { c.transport = t }
}

func defaultClientConfig() *ClientConfig {
	return &ClientConfig{
		Config: config.Default(),
		Logger: slog.Default(),
	}
}
