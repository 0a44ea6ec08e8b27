// Package llm defines the provider abstraction the rest of the
// application programs against.
package llm

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ferdousbhai/llm-terminal/internal/domain"
)

// Provider is the interface all model providers implement.
type Provider interface {
	ID() string
	Name() string
	Models() []domain.Model

	// Chat sends the conversation and returns a streaming response.
	Chat(ctx context.Context, req *ChatRequest) (<-chan domain.StreamEvent, error)

	// Verify checks that the configured credentials are usable.
	Verify(ctx context.Context) error
}

// ChatRequest represents one model invocation.
type ChatRequest struct {
	Model        string
	Messages     []domain.Message
	Tools        []domain.Tool
	MaxTokens    int
	Temperature  float64
	SystemPrompt string
}

// ParseModelID splits a "provider:model" identifier.
func ParseModelID(id string) (provider, model string, err error) {
	provider, model, ok := strings.Cut(id, ":")
	if !ok || provider == "" || model == "" {
		return "", "", fmt.Errorf("invalid model identifier %q, want provider:model", id)
	}
	return provider, model, nil
}

// Registry holds the available providers.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

func (r *Registry) Register(p Provider) {
	r.providers[p.ID()] = p
}

func (r *Registry) Get(id string) (Provider, bool) {
	p, ok := r.providers[id]
	return p, ok
}

// Resolve maps a "provider:model" identifier to its provider and model name.
func (r *Registry) Resolve(modelID string) (Provider, string, error) {
	providerID, model, err := ParseModelID(modelID)
	if err != nil {
		return nil, "", err
	}
	p, ok := r.providers[providerID]
	if !ok {
		return nil, "", fmt.Errorf("unknown provider %q", providerID)
	}
	return p, model, nil
}

func (r *Registry) List() []Provider {
	result := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID() < result[j].ID() })
	return result
}
