package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleProvider() Provider {
	return Provider{
		ID:               "p1",
		Label:            "Test Provider",
		VendorID:         "vendor-1",
		PlatformID:       "platform-1",
		CustomerID:       "customer-1",
		RequestedReports: []string{"JR1"},
		ReportRelease:    "4",
		HarvestingStatus: HarvestingActive,
	}
}

func TestNewSuccessRecord(t *testing.T) {
	now := time.Date(2020, time.April, 1, 12, 30, 0, 0, time.FixedZone("CET", 3600))
	rec := NewSuccessRecord(sampleProvider(), "JR1", YearMonthOf(2020, time.March), []byte(`{"rows":[]}`), now)

	assert.Equal(t, "vendor-1", rec.VendorID)
	assert.Equal(t, "platform-1", rec.PlatformID)
	assert.Equal(t, "customer-1", rec.CustomerID)
	assert.Equal(t, "JR1", rec.ReportName)
	assert.Equal(t, YearMonthOf(2020, time.March), rec.YearMonth)
	assert.Equal(t, "4", rec.Release)
	assert.Equal(t, UnknownFormat, rec.Format)
	assert.Equal(t, `{"rows":[]}`, rec.Report)
	assert.Equal(t, time.UTC, rec.DownloadTime.Location())
	assert.False(t, rec.IsFailure())
	assert.Nil(t, rec.FailedAttempts)
}

func TestNewFailureRecord(t *testing.T) {
	rec := NewFailureRecord(sampleProvider(), "JR1", YearMonthOf(2020, time.March), time.Now())

	assert.True(t, rec.IsFailure())
	require.NotNil(t, rec.FailedAttempts)
	assert.Equal(t, 1, *rec.FailedAttempts)
	assert.Empty(t, rec.Report)
	assert.Empty(t, rec.Format)
}

func TestDomainErrors(t *testing.T) {
	t.Run("network error unwraps its cause", func(t *testing.T) {
		cause := assert.AnError
		err := &NetworkError{URL: "http://x", Err: cause}
		assert.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), "http://x")
	})

	t.Run("domain error carries its code", func(t *testing.T) {
		err := NewDomainError(CodeNoFetcher, "no fetcher for type counter", nil)
		assert.Contains(t, err.Error(), CodeNoFetcher)
		assert.Contains(t, err.Error(), "counter")
	})

	t.Run("auth error names the tenant", func(t *testing.T) {
		err := &AuthError{Tenant: "t1", Reason: "no token received"}
		assert.Contains(t, err.Error(), "t1")
		assert.Contains(t, err.Error(), "no token received")
	})
}
