// Package config loads the harvester configuration from environment
// variables and optional .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"usage-harvester/internal/domain"
)

// Config is the complete, immutable runtime configuration. It is built
// once at startup and passed into the orchestrator and its collaborators.
type Config struct {
	ServiceName string
	Environment string
	LogLevel    string

	// Gateway connection. All paths are relative to GatewayURL.
	GatewayURL     string
	TenantsPath    string
	ReportsPath    string
	ProviderPath   string
	AggregatorPath string
	LoginPath      string

	// ModuleID is checked per tenant before harvesting; RequiredPerm must
	// be among the permissions granted at login.
	ModuleID     string
	RequiredPerm string

	// Harvester service credentials used for every tenant login.
	Username string
	Password string

	// EarliestMonth clips open-started harvesting windows.
	EarliestMonth domain.YearMonth

	// PageSize bounds one provider-listing page; the catalog pages through
	// all of them.
	PageSize int

	// Concurrency limits per fan-out level.
	TenantConcurrency   int
	ProviderConcurrency int
	UnitConcurrency     int

	HTTPTimeout time.Duration
	UserAgent   string

	// HarvestInterval schedules periodic runs; zero disables the timer so
	// runs only happen at startup and via the admin API.
	HarvestInterval time.Duration
	ListenAddr      string

	// Raw-payload archive. Adapter is "filesystem", "s3" or empty to
	// disable archiving.
	ArchiveAdapter string
	ArchiveBucket  string
	S3Region       string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
}

// Load reads .env files (missing files are fine) and builds the
// configuration from the environment, validating it before returning.
func Load() (Config, error) {
	for _, f := range []string{".env.local", ".env"} {
		if _, err := os.Stat(f); err == nil {
			if err := godotenv.Load(f); err != nil {
				return Config{}, fmt.Errorf("failed to load %s: %w", f, err)
			}
		}
	}

	earliest, err := getEnvYearMonth("HARVEST_EARLIEST_MONTH", domain.YearMonthOf(2000, time.January))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		ServiceName: getEnv("SERVICE_NAME", "usage-harvester"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		GatewayURL:     getEnv("GATEWAY_URL", ""),
		TenantsPath:    getEnv("TENANTS_PATH", "/_/proxy/tenants"),
		ReportsPath:    getEnv("REPORTS_PATH", "/counter-reports"),
		ProviderPath:   getEnv("PROVIDER_PATH", "/usage-data-providers"),
		AggregatorPath: getEnv("AGGREGATOR_PATH", "/aggregator-settings"),
		LoginPath:      getEnv("LOGIN_PATH", "/bl-users/login"),

		ModuleID:     getEnv("MODULE_ID", ""),
		RequiredPerm: getEnv("REQUIRED_PERM", "ermusage.all"),

		Username: getEnv("HARVESTER_USERNAME", "harvester"),
		Password: getEnv("HARVESTER_PASSWORD", ""),

		EarliestMonth: earliest,

		PageSize:            getEnvInt("PROVIDER_PAGE_SIZE", 30),
		TenantConcurrency:   getEnvInt("TENANT_CONCURRENCY", 4),
		ProviderConcurrency: getEnvInt("PROVIDER_CONCURRENCY", 4),
		UnitConcurrency:     getEnvInt("UNIT_CONCURRENCY", 8),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 30*time.Second),
		UserAgent:   getEnv("USER_AGENT", "usage-harvester/1.0"),

		HarvestInterval: getEnvDuration("HARVEST_INTERVAL", 24*time.Hour),
		ListenAddr:      getEnv("LISTEN_ADDR", ":8081"),

		ArchiveAdapter: getEnv("ARCHIVE_ADAPTER", ""),
		ArchiveBucket:  getEnv("ARCHIVE_BUCKET", ""),
		S3Region:       getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:     getEnv("S3_ENDPOINT", ""),
		S3AccessKey:    getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:    getEnv("S3_SECRET_KEY", ""),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks that the gateway connection is fully specified.
func (c Config) Validate() error {
	var missing []string
	required := map[string]string{
		"GATEWAY_URL":     c.GatewayURL,
		"TENANTS_PATH":    c.TenantsPath,
		"REPORTS_PATH":    c.ReportsPath,
		"PROVIDER_PATH":   c.ProviderPath,
		"AGGREGATOR_PATH": c.AggregatorPath,
		"LOGIN_PATH":      c.LoginPath,
		"MODULE_ID":       c.ModuleID,
	}
	for name, value := range required {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if c.PageSize <= 0 {
		return fmt.Errorf("PROVIDER_PAGE_SIZE must be positive, got %d", c.PageSize)
	}
	for name, v := range map[string]int{
		"TENANT_CONCURRENCY":   c.TenantConcurrency,
		"PROVIDER_CONCURRENCY": c.ProviderConcurrency,
		"UNIT_CONCURRENCY":     c.UnitConcurrency,
	} {
		if v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, v)
		}
	}

	switch c.ArchiveAdapter {
	case "", "filesystem", "s3":
	default:
		return fmt.Errorf("unsupported archive adapter: %s", c.ArchiveAdapter)
	}
	if c.ArchiveAdapter != "" && c.ArchiveBucket == "" {
		return fmt.Errorf("ARCHIVE_BUCKET is required when ARCHIVE_ADAPTER is set")
	}

	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getEnvYearMonth(key string, def domain.YearMonth) (domain.YearMonth, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	ym, err := domain.ParseYearMonth(v)
	if err != nil {
		return domain.YearMonth{}, fmt.Errorf("invalid %s: %w", key, err)
	}
	return ym, nil
}
