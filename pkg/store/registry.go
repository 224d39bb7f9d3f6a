package store

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// ProviderConfig selects and configures a store backend.
type ProviderConfig struct {
	Type   string          `yaml:"type" json:"type"`
	Config json.RawMessage `yaml:"config" json:"config"`
}

// PluginConfig provides initialization parameters to store plugins.
type PluginConfig struct {
	// Config contains plugin-specific configuration.
	Config json.RawMessage

	// TTL bounds how long cached records live in backends that support
	// expiry. Zero means no expiry.
	TTL time.Duration
}

// PluginFactory creates a store from configuration.
type PluginFactory func(config PluginConfig) (Store, error)

var (
	registry = make(map[string]PluginFactory)
	mu       sync.RWMutex
)

// RegisterProvider registers a store factory for a provider type.
func RegisterProvider(providerType string, factory PluginFactory) {
	mu.Lock()
	defer mu.Unlock()
	registry[providerType] = factory
}

// NewStore creates a store from provider configuration.
func NewStore(providerConfig ProviderConfig, pluginConfig PluginConfig) (Store, error) {
	mu.RLock()
	factory, ok := registry[providerConfig.Type]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown store provider type: %s", providerConfig.Type)
	}

	pluginConfig.Config = providerConfig.Config
	return factory(pluginConfig)
}

// ListProviders returns registered provider types.
func ListProviders() []string {
	mu.RLock()
	defer mu.RUnlock()

	providers := make([]string, 0, len(registry))
	for name := range registry {
		providers = append(providers, name)
	}
	return providers
}
