// Package harvest implements the harvest reconciliation and orchestration
// engine: session management, provider cataloguing, gap planning,
// idempotent upserts and the per-run orchestration across tenants,
// providers and planned units.
package harvest

import (
	"context"
	"errors"
	"fmt"

	"usage-harvester/internal/config"
	"usage-harvester/internal/domain"
	"usage-harvester/internal/gateway"
	"usage-harvester/internal/observability"
)

// SessionManager obtains a short-lived credential for one tenant. The
// credential is valid for a single run and carries no refresh semantics.
type SessionManager struct {
	gw           *gateway.Client
	username     string
	password     string
	requiredPerm string
	logger       observability.Logger
	metrics      observability.Metrics
}

// NewSessionManager creates a session manager using the harvester service
// credentials from the configuration.
func NewSessionManager(gw *gateway.Client, cfg config.Config, logger observability.Logger, metrics observability.Metrics) *SessionManager {
	return &SessionManager{
		gw:           gw,
		username:     cfg.Username,
		password:     cfg.Password,
		requiredPerm: cfg.RequiredPerm,
		logger:       logger,
		metrics:      metrics,
	}
}

// Authenticate logs in for one tenant and validates the outcome. All
// three checks fail closed: a non-successful login, an empty token, or a
// granted permission set lacking the required permission each abort
// authentication for this tenant with an AuthError.
func (m *SessionManager) Authenticate(ctx context.Context, tenant string) (gateway.Session, error) {
	result, err := m.gw.Login(ctx, tenant, m.username, m.password)
	if err != nil {
		var perr *domain.ProtocolError
		if errors.As(err, &perr) {
			m.metrics.RecordError("authenticate", "login_status")
			return gateway.Session{}, &domain.AuthError{
				Tenant: tenant,
				Reason: fmt.Sprintf("login returned status %d: %s", perr.Status, perr.Message),
			}
		}
		return gateway.Session{}, err
	}

	if result.Token == "" {
		m.metrics.RecordError("authenticate", "empty_token")
		return gateway.Session{}, &domain.AuthError{Tenant: tenant, Reason: "no token received"}
	}

	if !containsPermission(result.Permissions, m.requiredPerm) {
		m.metrics.RecordError("authenticate", "missing_permission")
		return gateway.Session{}, &domain.AuthError{
			Tenant: tenant,
			Reason: fmt.Sprintf("required permission %s not granted", m.requiredPerm),
		}
	}

	m.metrics.RecordSuccess("authenticate")
	m.logger.Debug(ctx, "Authenticated tenant", observability.Fields{"tenant": tenant})
	return gateway.Session{Tenant: tenant, Token: result.Token}, nil
}

func containsPermission(granted []string, perm string) bool {
	for _, p := range granted {
		if p == perm {
			return true
		}
	}
	return false
}
