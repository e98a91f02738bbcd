// Package config defines the proxy configuration and file loading.
// Files are YAML by default; a .json extension switches to JSON. Loading
// starts from defaults, so files only state what differs.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	aierrors "github.com/blueberrycongee/aiproxy/pkg/errors"
)

// Config is the root configuration.
type Config struct {
	Providers  Providers     `yaml:"providers" json:"providers"`
	Cache      CacheCfg      `yaml:"cache" json:"cache"`
	Transcript TranscriptCfg `yaml:"transcript" json:"transcript"`
	Routing    RoutingCfg    `yaml:"routing" json:"routing"`
	HTTP       HTTPCfg       `yaml:"http" json:"http"`
}

// Providers holds per-provider settings. A nil entry disables nothing by
// itself; enablement is driven by the key environment variables.
type Providers struct {
	OpenAI     *ProviderCfg `yaml:"openai,omitempty" json:"openai,omitempty"`
	Anthropic  *ProviderCfg `yaml:"anthropic,omitempty" json:"anthropic,omitempty"`
	OpenRouter *ProviderCfg `yaml:"openrouter,omitempty" json:"openrouter,omitempty"`
}

// ProviderCfg overrides where a provider's key comes from.
type ProviderCfg struct {
	APIKeyEnv string `yaml:"api_key_env" json:"api_key_env"`
}

// CacheCfg configures the response cache.
type CacheCfg struct {
	Path       string `yaml:"path" json:"path"`
	TTLSeconds uint64 `yaml:"ttl_seconds" json:"ttl_seconds"`
}

// TTL returns the cache TTL as a duration.
func (c CacheCfg) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// FsyncPolicy controls transcript durability.
type FsyncPolicy string

const (
	FsyncOff    FsyncPolicy = "off"
	FsyncCommit FsyncPolicy = "commit"
	FsyncAlways FsyncPolicy = "always"
)

// TranscriptCfg is carried for transcript-writing hosts; this module does
// not persist transcripts itself.
type TranscriptCfg struct {
	Dir           string      `yaml:"dir" json:"dir"`
	SegmentMB     uint32      `yaml:"segment_mb" json:"segment_mb"`
	Fsync         FsyncPolicy `yaml:"fsync" json:"fsync"`
	RedactBuiltin bool        `yaml:"redact_builtin" json:"redact_builtin"`
}

// RoutingRule maps a model-name regex to a provider.
type RoutingRule struct {
	Model    string `yaml:"model" json:"model"`
	Provider string `yaml:"provider" json:"provider"`
}

// RoutingCfg is an ordered rule list with a fallback provider.
type RoutingCfg struct {
	Default string        `yaml:"default" json:"default"`
	Rules   []RoutingRule `yaml:"rules" json:"rules"`
}

// HTTPCfg carries transport knobs.
type HTTPCfg struct {
	ConnectTimeoutMS   uint64 `yaml:"connect_timeout_ms" json:"connect_timeout_ms"`
	RequestTimeoutMS   uint64 `yaml:"request_timeout_ms" json:"request_timeout_ms"`
	PoolMaxIdlePerHost *int   `yaml:"pool_max_idle_per_host,omitempty" json:"pool_max_idle_per_host,omitempty"`
}

// ConnectTimeout returns the dial timeout.
func (h HTTPCfg) ConnectTimeout() time.Duration {
	return time.Duration(h.ConnectTimeoutMS) * time.Millisecond
}

// RequestTimeout returns the whole-request timeout.
func (h HTTPCfg) RequestTimeout() time.Duration {
	return time.Duration(h.RequestTimeoutMS) * time.Millisecond
}

// Default returns the documented defaults.
func Default() *Config {
	return &Config{
		Cache: CacheCfg{
			Path:       ":memory:",
			TTLSeconds: 60,
		},
		Transcript: TranscriptCfg{
			Dir:       ".tx",
			SegmentMB: 64,
			Fsync:     FsyncCommit,
		},
		Routing: RoutingCfg{
			Default: "openai",
		},
		HTTP: HTTPCfg{
			ConnectTimeoutMS: 5000,
			RequestTimeoutMS: 60000,
		},
	}
}

// Load reads path into a Config, starting from Default so absent fields
// keep their defaults.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, aierrors.IO(err)
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(raw, cfg)
	default:
		err = yaml.Unmarshal(raw, cfg)
	}
	if err != nil {
		return nil, aierrors.Validation("parse config %s: %v", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Transcript.Fsync {
	case FsyncOff, FsyncCommit, FsyncAlways:
	default:
		return aierrors.Validation("invalid transcript fsync policy %q", c.Transcript.Fsync)
	}
	if c.Routing.Default == "" {
		return aierrors.Validation("routing default provider must be set")
	}
	for _, r := range c.Routing.Rules {
		if r.Provider == "" {
			return aierrors.Validation("routing rule for model %q names no provider", r.Model)
		}
	}
	return nil
}

// String renders a short, secret-free summary for logs.
func (c *Config) String() string {
	return fmt.Sprintf("config{routing default=%s rules=%d cache ttl=%ds}",
		c.Routing.Default, len(c.Routing.Rules), c.Cache.TTLSeconds)
}
