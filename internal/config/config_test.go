package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"usage-harvester/internal/domain"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("GATEWAY_URL", "http://gateway:9130")
	t.Setenv("MODULE_ID", "mod-usage-1.0.0")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "usage-harvester", cfg.ServiceName)
	assert.Equal(t, "/_/proxy/tenants", cfg.TenantsPath)
	assert.Equal(t, "/counter-reports", cfg.ReportsPath)
	assert.Equal(t, "/usage-data-providers", cfg.ProviderPath)
	assert.Equal(t, "/aggregator-settings", cfg.AggregatorPath)
	assert.Equal(t, "/bl-users/login", cfg.LoginPath)
	assert.Equal(t, "ermusage.all", cfg.RequiredPerm)
	assert.Equal(t, domain.YearMonthOf(2000, time.January), cfg.EarliestMonth)
	assert.Equal(t, 30, cfg.PageSize)
	assert.Equal(t, 4, cfg.TenantConcurrency)
	assert.Equal(t, 4, cfg.ProviderConcurrency)
	assert.Equal(t, 8, cfg.UnitConcurrency)
	assert.Equal(t, 24*time.Hour, cfg.HarvestInterval)
	assert.Equal(t, ":8081", cfg.ListenAddr)
	assert.Empty(t, cfg.ArchiveAdapter)
}

func TestLoad_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("HARVEST_EARLIEST_MONTH", "2018-06")
	t.Setenv("PROVIDER_PAGE_SIZE", "100")
	t.Setenv("TENANT_CONCURRENCY", "2")
	t.Setenv("HARVEST_INTERVAL", "6h")
	t.Setenv("ARCHIVE_ADAPTER", "filesystem")
	t.Setenv("ARCHIVE_BUCKET", "raw-reports")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, domain.YearMonthOf(2018, time.June), cfg.EarliestMonth)
	assert.Equal(t, 100, cfg.PageSize)
	assert.Equal(t, 2, cfg.TenantConcurrency)
	assert.Equal(t, 6*time.Hour, cfg.HarvestInterval)
	assert.Equal(t, "filesystem", cfg.ArchiveAdapter)
	assert.Equal(t, "raw-reports", cfg.ArchiveBucket)
}

func TestLoad_InvalidEarliestMonth(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("HARVEST_EARLIEST_MONTH", "June 2018")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := Config{
		GatewayURL:          "http://gateway:9130",
		TenantsPath:         "/_/proxy/tenants",
		ReportsPath:         "/counter-reports",
		ProviderPath:        "/usage-data-providers",
		AggregatorPath:      "/aggregator-settings",
		LoginPath:           "/bl-users/login",
		ModuleID:            "mod-usage-1.0.0",
		PageSize:            30,
		TenantConcurrency:   4,
		ProviderConcurrency: 4,
		UnitConcurrency:     8,
	}
	require.NoError(t, valid.Validate())

	t.Run("missing gateway url", func(t *testing.T) {
		cfg := valid
		cfg.GatewayURL = ""
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "GATEWAY_URL")
	})

	t.Run("missing module id", func(t *testing.T) {
		cfg := valid
		cfg.ModuleID = "  "
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "MODULE_ID")
	})

	t.Run("non-positive page size", func(t *testing.T) {
		cfg := valid
		cfg.PageSize = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("non-positive concurrency", func(t *testing.T) {
		cfg := valid
		cfg.UnitConcurrency = -1
		assert.Error(t, cfg.Validate())
	})

	t.Run("unknown archive adapter", func(t *testing.T) {
		cfg := valid
		cfg.ArchiveAdapter = "ftp"
		assert.Error(t, cfg.Validate())
	})

	t.Run("archive adapter without bucket", func(t *testing.T) {
		cfg := valid
		cfg.ArchiveAdapter = "s3"
		assert.Error(t, cfg.Validate())
	})
}
