package harvest

import (
	"context"

	"usage-harvester/internal/config"
	"usage-harvester/internal/domain"
	"usage-harvester/internal/gateway"
	"usage-harvester/internal/observability"
)

// ProviderCatalog lists the providers with active harvesting for one
// tenant, paging through the gateway until all records are read.
type ProviderCatalog struct {
	gw       *gateway.Client
	pageSize int
	logger   observability.Logger
	metrics  observability.Metrics
}

// NewProviderCatalog creates a catalog using the configured page size.
func NewProviderCatalog(gw *gateway.Client, cfg config.Config, logger observability.Logger, metrics observability.Metrics) *ProviderCatalog {
	return &ProviderCatalog{
		gw:       gw,
		pageSize: cfg.PageSize,
		logger:   logger,
		metrics:  metrics,
	}
}

// ListActiveProviders returns every active provider of the tenant in the
// gateway's order.
func (c *ProviderCatalog) ListActiveProviders(ctx context.Context, s gateway.Session) ([]domain.Provider, error) {
	var providers []domain.Provider
	offset := 0
	total := -1

	for {
		page, err := c.gw.Providers(ctx, s, c.pageSize, offset)
		if err != nil {
			c.metrics.RecordError("list_providers", "gateway")
			return nil, err
		}
		providers = append(providers, page.Providers...)
		total = page.TotalRecords

		offset += len(page.Providers)
		if len(page.Providers) == 0 || offset >= total {
			break
		}
	}

	c.metrics.RecordSuccess("list_providers")
	c.logger.Info(ctx, "Listed active providers", observability.Fields{
		"tenant": s.Tenant,
		"total":  total,
		"listed": len(providers),
	})
	return providers, nil
}
