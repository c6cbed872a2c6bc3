package harvest

import (
	"context"
	"time"

	"usage-harvester/internal/config"
	"usage-harvester/internal/domain"
	"usage-harvester/internal/gateway"
	"usage-harvester/internal/observability"
)

// Planner computes, for one provider, the set of (report type, month)
// units still missing from the store within the harvesting window.
//
// A month counts as covered only when the store holds a successful record
// for it. A recorded failure leaves the month missing, so every future
// run plans it again; that cross-run re-planning is the only retry
// mechanism, unbounded, with the failure counter kept for observability.
type Planner struct {
	gw       *gateway.Client
	earliest domain.YearMonth
	now      func() time.Time
	logger   observability.Logger
	metrics  observability.Metrics
}

// NewPlanner creates a planner. The earliest supported month from the
// configuration clips open-started windows.
func NewPlanner(gw *gateway.Client, cfg config.Config, logger observability.Logger, metrics observability.Metrics) *Planner {
	return &Planner{
		gw:       gw,
		earliest: cfg.EarliestMonth,
		now:      time.Now,
		logger:   logger,
		metrics:  metrics,
	}
}

// Plan returns one unit per missing month per requested report type, in
// report-type order then month order. An inactive provider yields an
// empty plan without touching the store.
func (p *Planner) Plan(ctx context.Context, s gateway.Session, provider domain.Provider) ([]domain.PlannedUnit, error) {
	if provider.HarvestingStatus != domain.HarvestingActive {
		p.logger.Info(ctx, "Skipping provider, harvesting not active", observability.Fields{
			"tenant":   s.Tenant,
			"provider": provider.Label,
			"status":   string(provider.HarvestingStatus),
		})
		return nil, nil
	}

	start, end := p.window(provider)

	var units []domain.PlannedUnit
	for _, reportType := range provider.RequestedReports {
		missing, err := p.missingMonths(ctx, s, provider.VendorID, reportType, start, end)
		if err != nil {
			return nil, err
		}
		for _, month := range missing {
			units = append(units, domain.PlannedUnit{
				ReportType: reportType,
				Begin:      month.FirstDay(),
				End:        month.LastDay(),
			})
		}
	}

	p.metrics.RecordSuccess("plan")
	p.logger.Info(ctx, "Planned provider", observability.Fields{
		"tenant":   s.Tenant,
		"provider": provider.Label,
		"window":   start.String() + ".." + end.String(),
		"units":    len(units),
	})
	return units, nil
}

// window resolves the provider's harvesting window: an open start falls
// back to the earliest supported month, an open or future end is clamped
// to the current month.
func (p *Planner) window(provider domain.Provider) (domain.YearMonth, domain.YearMonth) {
	current := domain.YearMonthFromTime(p.now())

	start := provider.HarvestingStart
	if start.IsZero() || start.Before(p.earliest) {
		start = p.earliest
	}

	end := provider.HarvestingEnd
	if end.IsZero() || end.After(current) {
		end = current
	}

	return start, end
}

// missingMonths subtracts the covered months from the required range for
// one report type. Coverage comes from a single tiny range query, refined
// client-side to records without a failure counter.
func (p *Planner) missingMonths(ctx context.Context, s gateway.Session, vendorID, reportType string, start, end domain.YearMonth) ([]domain.YearMonth, error) {
	records, err := p.gw.Reports(ctx, s, gateway.ReportQuery{
		VendorID:   vendorID,
		ReportName: reportType,
		Start:      start,
		End:        end,
		Tiny:       true,
	})
	if err != nil {
		p.metrics.RecordError("plan", "store_query")
		return nil, err
	}

	covered := make(map[domain.YearMonth]bool, len(records))
	for _, r := range records {
		if !r.IsFailure() {
			covered[r.YearMonth] = true
		}
	}

	var missing []domain.YearMonth
	for _, month := range domain.MonthsBetween(start, end) {
		if !covered[month] {
			missing = append(missing, month)
		}
	}
	return missing, nil
}
