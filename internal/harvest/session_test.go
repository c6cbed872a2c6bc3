package harvest

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"usage-harvester/internal/domain"
	"usage-harvester/internal/observability/mocks"
)

func newTestSessionManager(g *fakeGateway) *SessionManager {
	return NewSessionManager(g.client(), g.config(), mocks.NopLogger{}, mocks.NopMetrics{})
}

func TestSessionManager_Authenticate(t *testing.T) {
	ctx := context.Background()

	t.Run("successful login yields a tenant-bound session", func(t *testing.T) {
		g := newFakeGateway(t)

		session, err := newTestSessionManager(g).Authenticate(ctx, "t1")

		require.NoError(t, err)
		assert.Equal(t, "t1", session.Tenant)
		assert.Equal(t, "test-token", session.Token)
	})

	t.Run("non-2xx login status fails with AuthError", func(t *testing.T) {
		g := newFakeGateway(t)
		g.loginStatus = http.StatusUnprocessableEntity

		_, err := newTestSessionManager(g).Authenticate(ctx, "t1")

		var authErr *domain.AuthError
		require.ErrorAs(t, err, &authErr)
		assert.Equal(t, "t1", authErr.Tenant)
		assert.Contains(t, authErr.Reason, "422")
	})

	t.Run("empty token fails with AuthError", func(t *testing.T) {
		g := newFakeGateway(t)
		g.token = ""

		_, err := newTestSessionManager(g).Authenticate(ctx, "t1")

		var authErr *domain.AuthError
		require.ErrorAs(t, err, &authErr)
		assert.Contains(t, authErr.Reason, "no token")
	})

	t.Run("missing required permission fails with AuthError", func(t *testing.T) {
		g := newFakeGateway(t)
		g.permissions = []string{"some.other.perm"}

		_, err := newTestSessionManager(g).Authenticate(ctx, "t1")

		var authErr *domain.AuthError
		require.ErrorAs(t, err, &authErr)
		assert.Contains(t, authErr.Reason, "ermusage.all")
	})

	t.Run("required permission among others succeeds", func(t *testing.T) {
		g := newFakeGateway(t)
		g.permissions = []string{"first.perm", "ermusage.all", "last.perm"}

		_, err := newTestSessionManager(g).Authenticate(ctx, "t1")

		assert.NoError(t, err)
	})
}
