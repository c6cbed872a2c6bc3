package harvest

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"usage-harvester/internal/config"
	"usage-harvester/internal/domain"
	"usage-harvester/internal/gateway"
	"usage-harvester/internal/observability"
	"usage-harvester/internal/storage"
)

// Orchestrator drives one harvesting run across all tenants, providers
// and planned units. Failures are isolated at the smallest scope that
// keeps siblings running: a unit's fetch failure becomes a failure-marker
// record, a provider or tenant failure is logged and skipped, and nothing
// in one pipeline can fail the overall run.
type Orchestrator struct {
	cfg      config.Config
	gw       *gateway.Client
	sessions *SessionManager
	catalog  *ProviderCatalog
	planner  *Planner
	upserter *Upserter
	fetchers *FetcherRegistry
	archive  storage.ObjectStorage
	logger   observability.Logger
	metrics  observability.Metrics
	now      func() time.Time

	// inFlight guards against overlapping runs racing on the same upsert
	// identities: a tenant still being harvested by a previous run is
	// skipped, not queued.
	inFlight sync.Map
}

// NewOrchestrator wires the orchestrator from its collaborators. archive
// may be nil to disable raw-payload archiving.
func NewOrchestrator(
	cfg config.Config,
	gw *gateway.Client,
	sessions *SessionManager,
	catalog *ProviderCatalog,
	planner *Planner,
	upserter *Upserter,
	fetchers *FetcherRegistry,
	archive storage.ObjectStorage,
	logger observability.Logger,
	metrics observability.Metrics,
) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		gw:       gw,
		sessions: sessions,
		catalog:  catalog,
		planner:  planner,
		upserter: upserter,
		fetchers: fetchers,
		archive:  archive,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}
}

// Run executes one harvesting run over every known tenant. The only
// error it can return is a failure to list tenants; everything below
// that is isolated per tenant.
func (o *Orchestrator) Run(ctx context.Context) error {
	runID := uuid.NewString()
	logger := o.logger.WithFields(observability.Fields{"run_id": runID})
	start := o.now()

	o.metrics.StartOperation("run")
	defer o.metrics.EndOperation("run")
	defer func() {
		o.metrics.RecordDuration("run", time.Since(start).Seconds())
	}()

	tenants, err := o.gw.Tenants(ctx)
	if err != nil {
		o.metrics.RecordError("run", "tenant_listing")
		logger.Error(ctx, "Failed to list tenants", err, nil)
		return fmt.Errorf("failed to list tenants: %w", err)
	}
	logger.Info(ctx, "Starting harvesting run", observability.Fields{"tenants": len(tenants)})

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.TenantConcurrency)
	for _, tenant := range tenants {
		tenant := tenant
		g.Go(func() error {
			o.harvestTenant(gctx, logger, tenant.ID)
			return nil
		})
	}
	g.Wait()

	logger.Info(ctx, "Harvesting run finished", observability.Fields{
		"duration": time.Since(start).String(),
	})
	o.metrics.RecordSuccess("run")
	return nil
}

// harvestTenant runs the per-tenant pipeline: module check, login,
// provider listing, then independent per-provider harvesting. Every
// failure terminates only this tenant.
func (o *Orchestrator) harvestTenant(ctx context.Context, logger observability.Logger, tenant string) {
	if _, running := o.inFlight.LoadOrStore(tenant, struct{}{}); running {
		logger.Warn(ctx, "Tenant still in flight from a previous run, skipping", observability.Fields{
			"tenant": tenant,
		})
		o.metrics.RecordError("tenant", "overlapping_run")
		return
	}
	defer o.inFlight.Delete(tenant)

	logger = logger.WithFields(observability.Fields{"tenant": tenant})

	enabled, err := o.gw.HasEnabledModule(ctx, tenant, o.cfg.ModuleID)
	if err != nil {
		logger.Error(ctx, "Module check failed", err, nil)
		o.metrics.RecordError("tenant", "module_check")
		return
	}
	if !enabled {
		logger.Info(ctx, "Module not enabled, skipping tenant", nil)
		return
	}

	session, err := o.sessions.Authenticate(ctx, tenant)
	if err != nil {
		logger.Error(ctx, "Authentication failed", err, nil)
		o.metrics.RecordError("tenant", "auth")
		return
	}

	providers, err := o.catalog.ListActiveProviders(ctx, session)
	if err != nil {
		logger.Error(ctx, "Provider listing failed", err, nil)
		o.metrics.RecordError("tenant", "provider_listing")
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.ProviderConcurrency)
	for _, provider := range providers {
		provider := provider
		g.Go(func() error {
			o.harvestProvider(gctx, logger, session, provider)
			return nil
		})
	}
	g.Wait()
	o.metrics.RecordSuccess("tenant")
}

// harvestProvider resolves the provider's fetcher, plans its missing
// months and harvests each planned unit independently.
func (o *Orchestrator) harvestProvider(ctx context.Context, logger observability.Logger, s gateway.Session, provider domain.Provider) {
	logger = logger.WithFields(observability.Fields{"provider": provider.Label})

	units, err := o.planner.Plan(ctx, s, provider)
	if err != nil {
		logger.Error(ctx, "Planning failed", err, nil)
		o.metrics.RecordError("provider", "planning")
		return
	}
	if len(units) == 0 {
		return
	}

	fetcher, err := o.resolveFetcher(ctx, s, provider)
	if err != nil {
		logger.Error(ctx, "Could not build fetcher", err, nil)
		o.metrics.RecordError("provider", "fetcher")
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.UnitConcurrency)
	for _, unit := range units {
		unit := unit
		g.Go(func() error {
			o.harvestUnit(gctx, logger, s, provider, fetcher, unit)
			return nil
		})
	}
	g.Wait()
	o.metrics.RecordSuccess("provider")
}

// resolveFetcher loads the referenced aggregator settings, if any, and
// builds the fetcher for the provider. A dangling aggregator reference is
// a domain error that skips the provider.
func (o *Orchestrator) resolveFetcher(ctx context.Context, s gateway.Session, provider domain.Provider) (Fetcher, error) {
	var settings *domain.AggregatorSettings
	if provider.Aggregator != nil {
		if provider.Aggregator.ID == "" {
			return nil, domain.NewDomainError(domain.CodeAggregatorUnresolved,
				fmt.Sprintf("provider %s references an aggregator without id", provider.Label), nil)
		}
		loaded, err := o.gw.AggregatorSettings(ctx, s, provider.Aggregator.ID)
		if err != nil {
			return nil, domain.NewDomainError(domain.CodeAggregatorUnresolved,
				fmt.Sprintf("failed to resolve aggregator %s for provider %s", provider.Aggregator.ID, provider.Label), err)
		}
		settings = &loaded
	}
	return o.fetchers.Create(provider, settings)
}

// harvestUnit fetches one planned month and saves the outcome. A fetch
// failure becomes a failure-marker record instead of an error; only the
// save itself can fail, and that is logged without affecting siblings.
func (o *Orchestrator) harvestUnit(ctx context.Context, logger observability.Logger, s gateway.Session, provider domain.Provider, fetcher Fetcher, unit domain.PlannedUnit) {
	month := unit.Month()
	start := o.now()

	payload, err := fetcher.Fetch(ctx, unit.ReportType, unit.Begin, unit.End)
	o.metrics.RecordDuration("fetch", time.Since(start).Seconds())

	var candidate domain.HarvestRecord
	if err != nil {
		logger.Error(ctx, "Fetch failed, recording failure", err, observability.Fields{
			"reportType": unit.ReportType,
			"yearMonth":  month.String(),
		})
		o.metrics.RecordError("fetch", "fetch_failed")
		candidate = domain.NewFailureRecord(provider, unit.ReportType, month, o.now())
	} else {
		o.metrics.RecordSuccess("fetch")
		o.metrics.RecordPayloadSize(unit.ReportType, int64(len(payload)))
		candidate = domain.NewSuccessRecord(provider, unit.ReportType, month, payload, o.now())
		o.archivePayload(ctx, logger, s, provider, unit, payload)
	}

	stored, err := o.upserter.Save(ctx, s, candidate)
	if err != nil {
		logger.Error(ctx, "Failed to save record", err, observability.Fields{
			"reportType": unit.ReportType,
			"yearMonth":  month.String(),
		})
		o.metrics.RecordError("save", "save_failed")
		return
	}

	logger.Debug(ctx, "Saved record", observability.Fields{
		"reportType": unit.ReportType,
		"yearMonth":  month.String(),
		"recordId":   stored.ID,
		"failure":    stored.IsFailure(),
	})
}

// archivePayload copies the raw payload to the configured archive. The
// archive is best effort: a failed write is logged and never affects the
// upsert.
func (o *Orchestrator) archivePayload(ctx context.Context, logger observability.Logger, s gateway.Session, provider domain.Provider, unit domain.PlannedUnit, payload []byte) {
	if o.archive == nil {
		return
	}
	key := fmt.Sprintf("%s/%s/%s/%s", s.Tenant, provider.VendorID, unit.ReportType, unit.Month())
	err := o.archive.Put(ctx, "", key, bytes.NewReader(payload), storage.ObjectMetadata{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		logger.Warn(ctx, "Failed to archive payload", observability.Fields{
			"key":   key,
			"error": err.Error(),
		})
	}
}
