// Package domain holds the harvesting data model shared by the planner,
// the upserter and the orchestrator, together with the error kinds used
// across the gateway and fetcher boundaries.
package domain

import "time"

// HarvestingStatus gates whether a provider participates in harvesting.
type HarvestingStatus string

// Harvesting status values as they appear on the wire.
const (
	HarvestingActive   HarvestingStatus = "active"
	HarvestingInactive HarvestingStatus = "inactive"
)

// Tenant is an isolated customer account of the platform. Every gateway
// call is scoped to exactly one tenant.
type Tenant struct {
	ID string `json:"id"`
}

// AggregatorRef points a provider at the aggregator settings it is
// fetched through. A nil reference means the provider is fetched directly.
type AggregatorRef struct {
	ID string `json:"id"`
}

// Provider describes one usage data provider configured for a tenant.
type Provider struct {
	ID               string           `json:"id"`
	Label            string           `json:"label"`
	VendorID         string           `json:"vendorId"`
	PlatformID       string           `json:"platformId,omitempty"`
	CustomerID       string           `json:"customerId,omitempty"`
	RequestedReports []string         `json:"requestedReports"`
	ReportRelease    string           `json:"reportRelease,omitempty"`
	HarvestingStatus HarvestingStatus `json:"harvestingStatus"`
	HarvestingStart  YearMonth        `json:"harvestingStart,omitempty"`
	HarvestingEnd    YearMonth        `json:"harvestingEnd,omitempty"`
	Aggregator       *AggregatorRef   `json:"aggregator,omitempty"`

	// ServiceType and ServiceURL configure direct fetching when no
	// aggregator is referenced.
	ServiceType string `json:"serviceType,omitempty"`
	ServiceURL  string `json:"serviceUrl,omitempty"`
}

// AggregatorSettings holds the connection parameters of an aggregator
// service fronting one or more providers.
type AggregatorSettings struct {
	ID          string            `json:"id"`
	Label       string            `json:"label"`
	ServiceType string            `json:"serviceType"`
	ServiceURL  string            `json:"serviceUrl"`
	APIKey      string            `json:"apiKey,omitempty"`
	Extra       map[string]string `json:"accountConfig,omitempty"`
}

// PlannedUnit is one calendar month of fetch-and-save work for one report
// type of one provider. Begin and End are the first and last day of the
// month.
type PlannedUnit struct {
	ReportType string
	Begin      time.Time
	End        time.Time
}

// Month returns the calendar month the unit covers.
func (u PlannedUnit) Month() YearMonth {
	return YearMonthFromTime(u.Begin)
}

// UnknownFormat is stored in the format field of every record. Detecting
// the actual payload format is unresolved upstream; the constant is
// carried as-is until that is settled.
const UnknownFormat = "???"

// HarvestRecord is the stored outcome for one (vendor, report type, month)
// identity: either a success snapshot carrying the payload, or a failure
// marker carrying an attempt counter. Exactly one of Report and
// FailedAttempts is set.
type HarvestRecord struct {
	ID             string    `json:"id,omitempty"`
	VendorID       string    `json:"vendorId"`
	PlatformID     string    `json:"platformId,omitempty"`
	CustomerID     string    `json:"customerId,omitempty"`
	ReportName     string    `json:"reportName"`
	YearMonth      YearMonth `json:"yearMonth"`
	Release        string    `json:"release,omitempty"`
	Format         string    `json:"format,omitempty"`
	DownloadTime   time.Time `json:"downloadTime"`
	Report         string    `json:"report,omitempty"`
	FailedAttempts *int      `json:"failedAttempts,omitempty"`
}

// IsFailure reports whether the record is a failure marker.
func (r HarvestRecord) IsFailure() bool {
	return r.FailedAttempts != nil
}

// NewSuccessRecord builds a success snapshot for one fetched month.
func NewSuccessRecord(p Provider, reportType string, month YearMonth, payload []byte, now time.Time) HarvestRecord {
	return HarvestRecord{
		VendorID:     p.VendorID,
		PlatformID:   p.PlatformID,
		CustomerID:   p.CustomerID,
		ReportName:   reportType,
		YearMonth:    month,
		Release:      p.ReportRelease,
		Format:       UnknownFormat,
		DownloadTime: now.UTC(),
		Report:       string(payload),
	}
}

// NewFailureRecord builds a failure marker for one month whose fetch
// failed. The attempt counter starts at 1; the upserter accumulates it
// against any previously stored marker.
func NewFailureRecord(p Provider, reportType string, month YearMonth, now time.Time) HarvestRecord {
	attempts := 1
	return HarvestRecord{
		VendorID:       p.VendorID,
		PlatformID:     p.PlatformID,
		CustomerID:     p.CustomerID,
		ReportName:     reportType,
		YearMonth:      month,
		Release:        p.ReportRelease,
		DownloadTime:   now.UTC(),
		FailedAttempts: &attempts,
	}
}
