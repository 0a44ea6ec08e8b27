// Package provider implements streaming adapters for the supported
// model vendors plus a factory that builds them from configuration.
package provider

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/ferdousbhai/llm-terminal/pkg/llm"
)

// Type identifies a supported vendor.
type Type string

const (
	TypeOpenAI    Type = "openai"
	TypeAnthropic Type = "anthropic"
	TypeGemini    Type = "gemini"
)

// Types lists the supported vendors in display order.
func Types() []Type {
	return []Type{TypeOpenAI, TypeAnthropic, TypeGemini}
}

// Config holds provider construction options.
type Config struct {
	APIKey     string
	BaseURL    string
	HTTPClient HTTPClient
}

// ConfigOption modifies provider configuration.
type ConfigOption func(*Config)

// WithAPIKey sets the API key.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) { c.APIKey = key }
}

// WithBaseURL sets the base URL.
func WithBaseURL(url string) ConfigOption {
	return func(c *Config) { c.BaseURL = url }
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(client HTTPClient) ConfigOption {
	return func(c *Config) { c.HTTPClient = client }
}

// Builder constructs a provider from config.
type Builder func(cfg Config) llm.Provider

// Factory creates providers, caching instances per config.
type Factory struct {
	mu       sync.RWMutex
	cache    map[string]llm.Provider
	builders map[Type]Builder
}

func NewFactory() *Factory {
	f := &Factory{
		cache:    make(map[string]llm.Provider),
		builders: make(map[Type]Builder),
	}
	f.Register(TypeOpenAI, func(cfg Config) llm.Provider {
		return NewOpenAI(cfg.APIKey, cfg.BaseURL, cfg.HTTPClient)
	})
	f.Register(TypeAnthropic, func(cfg Config) llm.Provider {
		return NewAnthropic(cfg.APIKey, cfg.BaseURL, cfg.HTTPClient)
	})
	f.Register(TypeGemini, func(cfg Config) llm.Provider {
		return NewGemini(cfg.APIKey, cfg.BaseURL, cfg.HTTPClient)
	})
	return f
}

// Register adds a builder, allowing extension with custom vendors.
func (f *Factory) Register(t Type, builder Builder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builders[t] = builder
}

// Create returns a provider instance for the vendor.
func (f *Factory) Create(t Type, opts ...ConfigOption) (llm.Provider, error) {
	cfg := Config{HTTPClient: &http.Client{}}
	for _, opt := range opts {
		opt(&cfg)
	}

	// The full key participates in the cache key: settings changes must
	// yield a provider built with the new credential, and vendor key
	// prefixes are shared across accounts.
	cacheKey := fmt.Sprintf("%s:%s:%s", t, cfg.APIKey, cfg.BaseURL)

	f.mu.RLock()
	if p, ok := f.cache[cacheKey]; ok {
		f.mu.RUnlock()
		return p, nil
	}
	f.mu.RUnlock()

	f.mu.Lock()
	defer f.mu.Unlock()

	if p, ok := f.cache[cacheKey]; ok {
		return p, nil
	}

	builder, ok := f.builders[t]
	if !ok {
		return nil, fmt.Errorf("unknown provider type: %s", t)
	}

	p := builder(cfg)
	f.cache[cacheKey] = p
	return p, nil
}

// KeyedRegistry builds a registry holding one provider per vendor,
// configured with the given credentials. Vendors without a key are
// still registered so their model catalogs remain listable.
func (f *Factory) KeyedRegistry(creds func(t Type) (apiKey, baseURL string)) (*llm.Registry, error) {
	registry := llm.NewRegistry()
	for _, t := range Types() {
		key, baseURL := creds(t)
		p, err := f.Create(t, WithAPIKey(key), WithBaseURL(baseURL))
		if err != nil {
			return nil, err
		}
		registry.Register(p)
	}
	return registry, nil
}
