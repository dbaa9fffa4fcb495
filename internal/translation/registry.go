package translation

import (
	"fmt"
	"strings"
	"sync"
)

var displayNames = map[string]string{
	ProviderGoogle:         "Google Translate",
	ProviderMicrosoft:      "Microsoft Translator",
	ProviderDeepL:          "DeepL",
	ProviderAmazon:         "Amazon Translate",
	ProviderLibreTranslate: "LibreTranslate",
	ProviderMyMemory:       "MyMemory",
}

// DisplayName returns the human-readable name of a provider.
func DisplayName(name string) string {
	normalized := normalizeProviderName(name)
	if display, ok := displayNames[normalized]; ok {
		return display
	}
	return name
}

// Registry stores translation providers in registration order.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	order     []string
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds one provider. Registering a name twice replaces the provider
// and keeps its original position.
func (r *Registry) Register(provider Provider) error {
	if r == nil {
		return fmt.Errorf("registry is nil")
	}
	if provider == nil {
		return fmt.Errorf("provider is nil")
	}
	name := normalizeProviderName(provider.Name())
	if name == "" {
		return fmt.Errorf("provider name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[name]; !exists {
		r.order = append(r.order, name)
	}
	r.providers[name] = provider
	return nil
}

// Provider resolves a provider by name.
func (r *Registry) Provider(name string) (Provider, error) {
	if r == nil {
		return nil, fmt.Errorf("registry is nil")
	}
	resolved := normalizeProviderName(name)

	r.mu.RLock()
	defer r.mu.RUnlock()
	provider, ok := r.providers[resolved]
	if !ok {
		return nil, fmt.Errorf("translation provider %q (available: %s): %w", resolved, strings.Join(r.order, ", "), ErrUnknownProvider)
	}
	return provider, nil
}

// Providers returns every registered provider in registration order.
func (r *Registry) Providers() []Provider {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Provider, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.providers[name])
	}
	return out
}

func (r *Registry) ProviderNames() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

func normalizeProviderName(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
