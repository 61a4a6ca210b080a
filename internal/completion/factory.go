package completion

import (
	"fmt"
	"sort"
	"sync"

	"clausewise/internal/config"
	"clausewise/internal/port"
)

// ProviderFactory creates a CompletionClient from a provider config.
type ProviderFactory func(cfg *config.CompletionProviderConfig) (port.CompletionClient, error)

var (
	providersMu sync.RWMutex
	providers   = map[string]ProviderFactory{}
)

// RegisterProvider registers a completion provider factory by name.
func RegisterProvider(name string, factory ProviderFactory) {
	providersMu.Lock()
	defer providersMu.Unlock()
	providers[name] = factory
}

// Providers lists the registered provider names.
func Providers() []string {
	providersMu.RLock()
	defer providersMu.RUnlock()
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewClient creates a CompletionClient using the factory registered for cfg.Provider.
func NewClient(cfg *config.CompletionProviderConfig) (port.CompletionClient, error) {
	providersMu.RLock()
	factory, ok := providers[cfg.Provider]
	providersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown completion provider: %s", cfg.Provider)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("completion provider %s: api key is not set", cfg.Provider)
	}
	return factory(cfg)
}
