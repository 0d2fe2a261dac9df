package storage

import (
	"fmt"
	"sync"
)

// Constructor creates an uninitialized provider
type Constructor func() Provider

// Factory creates providers by type name and remembers types whose initialization failed
type Factory struct {
	constructors map[string]Constructor
	mu           sync.RWMutex
	// Track unavailable providers
	unavailableProviders map[string]string
}

// NewFactory creates a factory with the built-in local, s3 and gcs providers registered
func NewFactory() *Factory {
	f := &Factory{
		constructors:         make(map[string]Constructor),
		unavailableProviders: make(map[string]string),
	}

	local := func() Provider { return NewLocalStorage() }
	s3 := func() Provider { return NewAmazonS3Storage() }
	gcs := func() Provider { return NewGoogleCloudStorage() }

	f.Register("local", local)
	for _, alias := range []string{"s3", "amazon", "aws"} {
		f.Register(alias, s3)
	}
	for _, alias := range []string{"gcs", "google"} {
		f.Register(alias, gcs)
	}
	return f
}

// Register adds or replaces a provider type
func (f *Factory) Register(providerType string, constructor Constructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.constructors[providerType] = constructor
	delete(f.unavailableProviders, providerType)
}

// MarkProviderUnavailable marks a provider type as unavailable with a reason
func (f *Factory) MarkProviderUnavailable(providerType, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unavailableProviders[providerType] = reason
}

// IsProviderAvailable checks if a provider type is available
func (f *Factory) IsProviderAvailable(providerType string) (bool, string) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	reason, unavailable := f.unavailableProviders[providerType]
	return !unavailable, reason
}

// CreateProvider creates and initializes a provider of the given type
func (f *Factory) CreateProvider(providerType string, config map[string]string) (Provider, error) {
	f.mu.RLock()
	reason, unavailable := f.unavailableProviders[providerType]
	constructor, ok := f.constructors[providerType]
	f.mu.RUnlock()

	if unavailable {
		return nil, fmt.Errorf("%s provider is currently unavailable: %s", providerType, reason)
	}
	if !ok {
		return nil, fmt.Errorf("unsupported storage provider type: %s", providerType)
	}

	provider := constructor()
	if err := provider.Initialize(config); err != nil {
		f.MarkProviderUnavailable(providerType, err.Error())
		return nil, fmt.Errorf("failed to initialize %s storage provider: %w", providerType, err)
	}
	return provider, nil
}

// DefaultFactory is the default storage factory instance
var DefaultFactory = NewFactory()

// New creates a provider using the default factory
func New(cfg Config) (Provider, error) {
	return DefaultFactory.CreateProvider(cfg.Provider, cfg.Options)
}
