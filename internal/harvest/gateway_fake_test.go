package harvest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"usage-harvester/internal/config"
	"usage-harvester/internal/domain"
	"usage-harvester/internal/gateway"
	"usage-harvester/internal/observability/mocks"
)

// fakeGateway is an in-memory stand-in for the gateway API, backing the
// planner, upserter and orchestrator tests with a real HTTP round trip.
type fakeGateway struct {
	t *testing.T

	mu          sync.Mutex
	tenants     []string
	enabled     map[string]bool
	moduleID    string
	loginStatus int
	token       string
	permissions []string
	providers   map[string][]domain.Provider
	aggregators map[string]domain.AggregatorSettings
	records     []domain.HarvestRecord
	nextID      int

	srv *httptest.Server
}

func newFakeGateway(t *testing.T) *fakeGateway {
	g := &fakeGateway{
		t:           t,
		enabled:     make(map[string]bool),
		moduleID:    "mod-usage-1.0.0",
		loginStatus: http.StatusCreated,
		token:       "test-token",
		permissions: []string{"ermusage.all"},
		providers:   make(map[string][]domain.Provider),
		aggregators: make(map[string]domain.AggregatorSettings),
	}
	g.srv = httptest.NewServer(http.HandlerFunc(g.handle))
	t.Cleanup(g.srv.Close)
	return g
}

func (g *fakeGateway) config() config.Config {
	return config.Config{
		GatewayURL:          g.srv.URL,
		TenantsPath:         "/_/proxy/tenants",
		ReportsPath:         "/counter-reports",
		ProviderPath:        "/usage-data-providers",
		AggregatorPath:      "/aggregator-settings",
		LoginPath:           "/bl-users/login",
		ModuleID:            g.moduleID,
		RequiredPerm:        "ermusage.all",
		Username:            "harvester",
		Password:            "secret",
		EarliestMonth:       domain.YearMonthOf(2000, time.January),
		PageSize:            2,
		TenantConcurrency:   2,
		ProviderConcurrency: 2,
		UnitConcurrency:     4,
		HTTPTimeout:         5 * time.Second,
		UserAgent:           "usage-harvester/test",
	}
}

func (g *fakeGateway) client() *gateway.Client {
	return gateway.NewClient(g.config(), mocks.NopLogger{}, mocks.NopMetrics{})
}

func (g *fakeGateway) session(tenant string) gateway.Session {
	return gateway.Session{Tenant: tenant, Token: g.token}
}

// recordFor returns a copy of the stored record for an identity, or nil.
func (g *fakeGateway) recordFor(vendorID, reportName string, month domain.YearMonth) *domain.HarvestRecord {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, r := range g.records {
		if r.VendorID == vendorID && r.ReportName == reportName && r.YearMonth == month {
			copied := r
			return &copied
		}
	}
	return nil
}

func (g *fakeGateway) storedRecords() []domain.HarvestRecord {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]domain.HarvestRecord(nil), g.records...)
}

func (g *fakeGateway) addRecord(r domain.HarvestRecord) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextID++
	if r.ID == "" {
		r.ID = fmt.Sprintf("rec-%d", g.nextID)
	}
	g.records = append(g.records, r)
}

func (g *fakeGateway) handle(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case path == "/bl-users/login" && r.Method == http.MethodPost:
		g.handleLogin(w, r)
	case path == "/_/proxy/tenants" && r.Method == http.MethodGet:
		g.handleTenants(w)
	case strings.HasPrefix(path, "/_/proxy/tenants/") && strings.Contains(path, "/modules/"):
		g.handleModuleCheck(w, r)
	case path == "/usage-data-providers" && r.Method == http.MethodGet:
		g.handleProviders(w, r)
	case strings.HasPrefix(path, "/aggregator-settings/"):
		g.handleAggregator(w, r)
	case path == "/counter-reports" && r.Method == http.MethodGet:
		g.handleReportQuery(w, r)
	case path == "/counter-reports" && r.Method == http.MethodPost:
		g.handleReportCreate(w, r)
	case strings.HasPrefix(path, "/counter-reports/") && r.Method == http.MethodPut:
		g.handleReportUpdate(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (g *fakeGateway) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get(gateway.TenantHeader) == "" {
		http.Error(w, "missing tenant header", http.StatusBadRequest)
		return
	}
	if g.token != "" {
		w.Header().Set(gateway.TokenHeader, g.token)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(g.loginStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"permissions": map[string]interface{}{"permissions": g.permissions},
	})
}

func (g *fakeGateway) handleTenants(w http.ResponseWriter) {
	g.mu.Lock()
	defer g.mu.Unlock()
	tenants := make([]domain.Tenant, 0, len(g.tenants))
	for _, id := range g.tenants {
		tenants = append(tenants, domain.Tenant{ID: id})
	}
	writeJSON(w, http.StatusOK, tenants)
}

func (g *fakeGateway) handleModuleCheck(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/_/proxy/tenants/"), "/modules/")
	if len(parts) != 2 {
		http.NotFound(w, r)
		return
	}
	tenant, moduleID := parts[0], parts[1]
	g.mu.Lock()
	enabled := g.enabled[tenant]
	g.mu.Unlock()
	if !enabled || moduleID != g.moduleID {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": moduleID})
}

func (g *fakeGateway) handleProviders(w http.ResponseWriter, r *http.Request) {
	tenant := r.Header.Get(gateway.TenantHeader)
	if tenant == "" || r.Header.Get(gateway.TokenHeader) == "" {
		http.Error(w, "missing tenant or token header", http.StatusUnauthorized)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	g.mu.Lock()
	all := g.providers[tenant]
	g.mu.Unlock()

	page := []domain.Provider{}
	for i := offset; i < len(all) && i < offset+limit; i++ {
		page = append(page, all[i])
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"usageDataProviders": page,
		"totalRecords":       len(all),
	})
}

func (g *fakeGateway) handleAggregator(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/aggregator-settings/")
	g.mu.Lock()
	settings, ok := g.aggregators[id]
	g.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

var (
	vendorRe     = regexp.MustCompile(`vendorId=([^ )]+)`)
	reportNameRe = regexp.MustCompile(`reportName=([^ )]+)`)
	monthEqRe    = regexp.MustCompile(`yearMonth=([^ )]+)`)
	monthGeRe    = regexp.MustCompile(`yearMonth>=([^ )]+)`)
	monthLeRe    = regexp.MustCompile(`yearMonth<=([^ )]+)`)
)

func (g *fakeGateway) handleReportQuery(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	tiny := r.URL.Query().Get("tiny") == "true"

	vendorID := submatch(vendorRe, query)
	reportName := submatch(reportNameRe, query)
	var start, end domain.YearMonth
	if m := submatch(monthGeRe, query); m != "" {
		start, _ = domain.ParseYearMonth(m)
		e, _ := domain.ParseYearMonth(submatch(monthLeRe, query))
		end = e
	} else if m := submatch(monthEqRe, query); m != "" {
		start, _ = domain.ParseYearMonth(m)
		end = start
	}

	g.mu.Lock()
	matches := []domain.HarvestRecord{}
	for _, rec := range g.records {
		if rec.VendorID != vendorID || rec.ReportName != reportName {
			continue
		}
		if rec.YearMonth.Before(start) || rec.YearMonth.After(end) {
			continue
		}
		if tiny {
			rec.Report = ""
		}
		matches = append(matches, rec)
	}
	g.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"counterReports": matches,
		"totalRecords":   len(matches),
	})
}

func (g *fakeGateway) handleReportCreate(w http.ResponseWriter, r *http.Request) {
	var rec domain.HarvestRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	g.mu.Lock()
	g.nextID++
	rec.ID = fmt.Sprintf("rec-%d", g.nextID)
	g.records = append(g.records, rec)
	g.mu.Unlock()
	writeJSON(w, http.StatusCreated, rec)
}

func (g *fakeGateway) handleReportUpdate(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/counter-reports/")
	var rec domain.HarvestRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range g.records {
		if g.records[i].ID == id {
			rec.ID = id
			g.records[i] = rec
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	http.Error(w, "not found", http.StatusNotFound)
}

func submatch(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) != 2 {
		return ""
	}
	return m[1]
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
