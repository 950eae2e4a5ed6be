package marketplace

import (
	"fmt"

	"github.com/catalogsync/backend/internal/domain/channel"
)

// Registry maps system codes to adapter factories. It is assembled once at
// startup and read-only afterwards, so no locking is needed.
type Registry struct {
	factories map[channel.SystemCode]channel.AdapterFactory
}

var _ channel.AdapterRegistry = (*Registry)(nil)

// NewRegistry returns a registry with every built-in adapter registered
func NewRegistry() *Registry {
	return &Registry{
		factories: map[channel.SystemCode]channel.AdapterFactory{
			channel.SystemCodeOzon:         factoryFunc(func(c *channel.ExternalSystemConfig) (channel.MarketplaceAdapter, error) { return NewOzonAdapter(c) }),
			channel.SystemCodeYandexMarket: factoryFunc(func(c *channel.ExternalSystemConfig) (channel.MarketplaceAdapter, error) { return NewYandexMarketAdapter(c) }),
			channel.SystemCodeAmazon:       factoryFunc(func(c *channel.ExternalSystemConfig) (channel.MarketplaceAdapter, error) { return NewAmazonAdapter(c) }),
			channel.SystemCodeETM:          factoryFunc(func(c *channel.ExternalSystemConfig) (channel.MarketplaceAdapter, error) { return NewETMAdapter(c) }),
			channel.SystemCodeRS24:         factoryFunc(func(c *channel.ExternalSystemConfig) (channel.MarketplaceAdapter, error) { return NewRS24Adapter(c) }),
		},
	}
}

// Factory returns the factory registered for the code
func (r *Registry) Factory(code channel.SystemCode) (channel.AdapterFactory, error) {
	factory, ok := r.factories[code]
	if !ok {
		return nil, fmt.Errorf("%w: no adapter for system %s", channel.ErrNotConfigured, code)
	}
	return factory, nil
}

// SupportedSystems lists every registered system code
func (r *Registry) SupportedSystems() []channel.SystemCode {
	codes := make([]channel.SystemCode, 0, len(r.factories))
	for _, code := range channel.AllSystemCodes() {
		if _, ok := r.factories[code]; ok {
			codes = append(codes, code)
		}
	}
	return codes
}

// factoryFunc adapts a constructor function to the AdapterFactory interface
type factoryFunc func(*channel.ExternalSystemConfig) (channel.MarketplaceAdapter, error)

func (f factoryFunc) NewAdapter(config *channel.ExternalSystemConfig) (channel.MarketplaceAdapter, error) {
	return f(config)
}
