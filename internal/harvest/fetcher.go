package harvest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"usage-harvester/internal/domain"
)

// Fetcher turns one planned unit into raw report content. The vendor-
// specific request shaping behind it is out of scope here; a fetch fails
// with a transport, protocol or vendor-side error.
type Fetcher interface {
	Fetch(ctx context.Context, reportType string, begin, end time.Time) ([]byte, error)
}

// FetcherFactory constructs a Fetcher for a provider, optionally fronted
// by an aggregator.
type FetcherFactory func(provider domain.Provider, settings *domain.AggregatorSettings) (Fetcher, error)

// FetcherRegistry maps service types to fetcher factories. Registration
// happens once at startup; lookups are concurrent.
type FetcherRegistry struct {
	mu        sync.RWMutex
	factories map[string]FetcherFactory
}

// NewFetcherRegistry creates an empty registry.
func NewFetcherRegistry() *FetcherRegistry {
	return &FetcherRegistry{factories: make(map[string]FetcherFactory)}
}

// Register binds a factory to a service type. A later registration for
// the same type replaces the earlier one.
func (r *FetcherRegistry) Register(serviceType string, factory FetcherFactory) {
	if serviceType == "" || factory == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[serviceType] = factory
}

// Create builds the fetcher for a provider. The service type comes from
// the aggregator settings when the provider is aggregator-fronted, from
// the provider itself otherwise.
func (r *FetcherRegistry) Create(provider domain.Provider, settings *domain.AggregatorSettings) (Fetcher, error) {
	serviceType := provider.ServiceType
	if settings != nil {
		serviceType = settings.ServiceType
	}

	r.mu.RLock()
	factory, ok := r.factories[serviceType]
	r.mu.RUnlock()
	if !ok {
		return nil, domain.NewDomainError(domain.CodeNoFetcher,
			fmt.Sprintf("no fetcher registered for service type %q (provider %s)", serviceType, provider.Label), nil)
	}
	return factory(provider, settings)
}
