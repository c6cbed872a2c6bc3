package harvest

import (
	"context"

	"usage-harvester/internal/domain"
	"usage-harvester/internal/gateway"
	"usage-harvester/internal/observability"
)

// Upserter idempotently writes a fetch outcome into the store, merging
// with any record already present for the same (vendor, report type,
// month) identity. The store's lookup is the sole uniqueness enforcement
// point; 0 or >1 matches are both treated as "no unique existing record"
// and lead to an insert.
type Upserter struct {
	gw      *gateway.Client
	logger  observability.Logger
	metrics observability.Metrics
}

// NewUpserter creates an upserter backed by the gateway store.
func NewUpserter(gw *gateway.Client, logger observability.Logger, metrics observability.Metrics) *Upserter {
	return &Upserter{gw: gw, logger: logger, metrics: metrics}
}

// Save persists the candidate and returns the stored record.
//
// When a unique existing record is found its id is kept and the record is
// replaced wholesale. A failure candidate accumulates the prior failure
// counter; a success candidate supersedes whatever was there before
// (last write wins). Without a unique match the candidate is inserted and
// the store assigns its id.
func (u *Upserter) Save(ctx context.Context, s gateway.Session, candidate domain.HarvestRecord) (domain.HarvestRecord, error) {
	// Summary-only lookup; payloads stay on the server.
	matches, err := u.gw.Reports(ctx, s, gateway.ReportQuery{
		VendorID:   candidate.VendorID,
		ReportName: candidate.ReportName,
		Start:      candidate.YearMonth,
		End:        candidate.YearMonth,
		Tiny:       true,
	})
	if err != nil {
		u.metrics.RecordError("save", "lookup")
		return domain.HarvestRecord{}, err
	}

	if len(matches) != 1 {
		if len(matches) > 1 {
			// The identity should be unique in the store. Record the
			// anomaly and insert a fresh record rather than guessing
			// which duplicate to overwrite.
			u.logger.Warn(ctx, "Ambiguous record lookup, inserting new record", observability.Fields{
				"tenant":     s.Tenant,
				"vendorId":   candidate.VendorID,
				"reportName": candidate.ReportName,
				"yearMonth":  candidate.YearMonth.String(),
				"matches":    len(matches),
			})
			u.metrics.RecordError("save", "ambiguous_lookup")
		}
		stored, err := u.gw.CreateReport(ctx, s, candidate)
		if err != nil {
			u.metrics.RecordError("save", "create")
			return domain.HarvestRecord{}, err
		}
		u.metrics.RecordSuccess("save")
		return stored, nil
	}

	existing := matches[0]
	if candidate.IsFailure() {
		// A success never carries a counter, so the prior count defaults
		// to zero when the existing record was a success snapshot.
		prior := 0
		if existing.FailedAttempts != nil {
			prior = *existing.FailedAttempts
		}
		attempts := prior + 1
		candidate.FailedAttempts = &attempts
	}
	candidate.ID = existing.ID

	if err := u.gw.UpdateReport(ctx, s, candidate); err != nil {
		u.metrics.RecordError("save", "update")
		return domain.HarvestRecord{}, err
	}
	u.metrics.RecordSuccess("save")
	return candidate, nil
}
