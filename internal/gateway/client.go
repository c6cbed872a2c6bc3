// Package gateway implements the HTTP client for the tenant-scoped
// gateway API: tenant directory, module checks, login, provider listing,
// aggregator settings and the harvest-record store.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"usage-harvester/internal/config"
	"usage-harvester/internal/domain"
	"usage-harvester/internal/observability"
)

// Header names carried on every tenant-scoped request. The login call
// itself carries only the tenant header.
const (
	TenantHeader = "X-Okapi-Tenant"
	TokenHeader  = "X-Okapi-Token"
)

// Session scopes gateway calls to one tenant with the token issued for
// this run.
type Session struct {
	Tenant string
	Token  string
}

// Client talks to the gateway. All methods map transport failures to
// NetworkError, unexpected status codes to ProtocolError and malformed
// bodies to DecodeError.
type Client struct {
	baseURL        string
	tenantsPath    string
	reportsPath    string
	providerPath   string
	aggregatorPath string
	loginPath      string
	userAgent      string

	http    *http.Client
	logger  observability.Logger
	metrics observability.Metrics
}

// NewClient creates a gateway client from the runtime configuration.
func NewClient(cfg config.Config, logger observability.Logger, metrics observability.Metrics) *Client {
	return &Client{
		baseURL:        strings.TrimRight(cfg.GatewayURL, "/"),
		tenantsPath:    cfg.TenantsPath,
		reportsPath:    cfg.ReportsPath,
		providerPath:   cfg.ProviderPath,
		aggregatorPath: cfg.AggregatorPath,
		loginPath:      cfg.LoginPath,
		userAgent:      cfg.UserAgent,
		http:           &http.Client{Timeout: cfg.HTTPTimeout},
		logger:         logger,
		metrics:        metrics,
	}
}

// Tenants lists every tenant identity known to the gateway.
func (c *Client) Tenants(ctx context.Context) ([]domain.Tenant, error) {
	u := c.baseURL + c.tenantsPath
	var tenants []domain.Tenant
	if err := c.get(ctx, u, Session{}, &tenants); err != nil {
		return nil, err
	}
	return tenants, nil
}

// HasEnabledModule checks whether the harvesting module is enabled for a
// tenant. A 404 is the valid "disabled" outcome, not an error.
func (c *Client) HasEnabledModule(ctx context.Context, tenant, moduleID string) (bool, error) {
	u := fmt.Sprintf("%s%s/%s/modules/%s", c.baseURL, c.tenantsPath, tenant, moduleID)

	resp, err := c.do(ctx, http.MethodGet, u, Session{Tenant: tenant}, nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var mod struct {
			ID string `json:"id"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&mod); err != nil {
			return false, &domain.DecodeError{URL: u, Err: err}
		}
		return mod.ID == moduleID, nil
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	default:
		return false, protocolError(resp, u)
	}
}

// LoginResult carries the raw outcome of a login call. The session
// manager applies the token and permission checks.
type LoginResult struct {
	Token       string
	Permissions []string
}

// Login posts the service credentials for one tenant. Any 2xx status is a
// successful call; the token comes back in a response header.
func (c *Client) Login(ctx context.Context, tenant, username, password string) (LoginResult, error) {
	u := c.baseURL + c.loginPath

	body, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return LoginResult{}, err
	}

	resp, err := c.do(ctx, http.MethodPost, u, Session{Tenant: tenant}, bytes.NewReader(body))
	if err != nil {
		return LoginResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return LoginResult{}, protocolError(resp, u)
	}

	var granted struct {
		Permissions struct {
			Permissions []string `json:"permissions"`
		} `json:"permissions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&granted); err != nil && err != io.EOF {
		return LoginResult{}, &domain.DecodeError{URL: u, Err: err}
	}

	return LoginResult{
		Token:       resp.Header.Get(TokenHeader),
		Permissions: granted.Permissions.Permissions,
	}, nil
}

// ProviderPage is one page of the provider listing.
type ProviderPage struct {
	Providers    []domain.Provider `json:"usageDataProviders"`
	TotalRecords int               `json:"totalRecords"`
}

// Providers fetches one page of providers with active harvesting.
func (c *Client) Providers(ctx context.Context, s Session, limit, offset int) (ProviderPage, error) {
	q := url.Values{}
	q.Set("query", fmt.Sprintf("(harvestingStatus=%s)", domain.HarvestingActive))
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	u := c.baseURL + c.providerPath + "?" + q.Encode()

	var page ProviderPage
	if err := c.get(ctx, u, s, &page); err != nil {
		return ProviderPage{}, err
	}
	return page, nil
}

// AggregatorSettings fetches the aggregator settings referenced by a
// provider.
func (c *Client) AggregatorSettings(ctx context.Context, s Session, id string) (domain.AggregatorSettings, error) {
	u := fmt.Sprintf("%s%s/%s", c.baseURL, c.aggregatorPath, id)

	var settings domain.AggregatorSettings
	if err := c.get(ctx, u, s, &settings); err != nil {
		return domain.AggregatorSettings{}, err
	}
	return settings, nil
}

// ReportQuery selects harvest records by identity fields and an inclusive
// month range. Tiny requests summary fields only, omitting payloads.
type ReportQuery struct {
	VendorID   string
	ReportName string
	Start      domain.YearMonth
	End        domain.YearMonth
	Tiny       bool
}

func (q ReportQuery) queryString() string {
	if q.Start == q.End {
		return fmt.Sprintf("(vendorId=%s AND reportName=%s AND yearMonth=%s)",
			q.VendorID, q.ReportName, q.Start)
	}
	return fmt.Sprintf("(vendorId=%s AND reportName=%s AND yearMonth>=%s AND yearMonth<=%s)",
		q.VendorID, q.ReportName, q.Start, q.End)
}

// Reports runs one record query against the store.
func (c *Client) Reports(ctx context.Context, s Session, query ReportQuery) ([]domain.HarvestRecord, error) {
	q := url.Values{}
	q.Set("query", query.queryString())
	q.Set("tiny", strconv.FormatBool(query.Tiny))
	u := c.baseURL + c.reportsPath + "?" + q.Encode()

	var page struct {
		Reports      []domain.HarvestRecord `json:"counterReports"`
		TotalRecords int                    `json:"totalRecords"`
	}
	if err := c.get(ctx, u, s, &page); err != nil {
		return nil, err
	}
	return page.Reports, nil
}

// CreateReport inserts a new record; the store assigns its id.
func (c *Client) CreateReport(ctx context.Context, s Session, rec domain.HarvestRecord) (domain.HarvestRecord, error) {
	u := c.baseURL + c.reportsPath

	body, err := json.Marshal(rec)
	if err != nil {
		return domain.HarvestRecord{}, err
	}

	resp, err := c.do(ctx, http.MethodPost, u, s, bytes.NewReader(body))
	if err != nil {
		return domain.HarvestRecord{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return domain.HarvestRecord{}, protocolError(resp, u)
	}

	stored := rec
	if err := json.NewDecoder(resp.Body).Decode(&stored); err != nil && err != io.EOF {
		return domain.HarvestRecord{}, &domain.DecodeError{URL: u, Err: err}
	}
	return stored, nil
}

// UpdateReport replaces the record with the given id wholesale.
func (c *Client) UpdateReport(ctx context.Context, s Session, rec domain.HarvestRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("cannot update record without id")
	}
	u := c.baseURL + c.reportsPath + "/" + rec.ID

	body, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	resp, err := c.do(ctx, http.MethodPut, u, s, bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return protocolError(resp, u)
	}
	return nil
}

// get performs a GET expecting a 200 with a JSON body decoded into out.
func (c *Client) get(ctx context.Context, u string, s Session, out interface{}) error {
	resp, err := c.do(ctx, http.MethodGet, u, s, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return protocolError(resp, u)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &domain.DecodeError{URL: u, Err: err}
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, u string, s Session, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.Tenant != "" {
		req.Header.Set(TenantHeader, s.Tenant)
	}
	if s.Token != "" {
		req.Header.Set(TokenHeader, s.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.RecordError("gateway_request", "network")
		return nil, &domain.NetworkError{URL: u, Err: err}
	}
	return resp, nil
}

func protocolError(resp *http.Response, u string) error {
	msg := resp.Status
	if body, err := io.ReadAll(io.LimitReader(resp.Body, 512)); err == nil && len(body) > 0 {
		msg = strings.TrimSpace(string(body))
	}
	return &domain.ProtocolError{Status: resp.StatusCode, Message: msg, URL: u}
}
